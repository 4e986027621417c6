package events

import (
	"fmt"
	"sync"

	"github.com/your-org/eventfaces/internal/models"
)

// Collector gathers per-photo outcomes that may complete in any order and
// hands them back in submission order. Parallel workers fill slots by index;
// the fold never sees completion order.
type Collector struct {
	mu       sync.Mutex
	slots    []*models.PhotoResult
	failed   []bool
	received int
}

// NewCollector makes a collector for a batch of the given size.
func NewCollector(total int) *Collector {
	return &Collector{
		slots:  make([]*models.PhotoResult, total),
		failed: make([]bool, total),
	}
}

// AddResult records a successful photo result at its submission index.
func (c *Collector) AddResult(index int, result models.PhotoResult) error {
	return c.fill(index, &result)
}

// AddFailure records a failed photo attempt at its submission index. The slot
// still counts toward completion; the photo is simply absent from the fold.
func (c *Collector) AddFailure(index int) error {
	return c.fill(index, nil)
}

func (c *Collector) fill(index int, result *models.PhotoResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.slots) {
		return fmt.Errorf("photo index %d out of range (batch size %d)", index, len(c.slots))
	}
	if c.slots[index] != nil || c.failed[index] {
		return fmt.Errorf("photo index %d already recorded", index)
	}

	if result != nil {
		c.slots[index] = result
	} else {
		c.failed[index] = true
	}
	c.received++
	return nil
}

// Complete reports whether every slot has been filled.
func (c *Collector) Complete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received == len(c.slots)
}

// Attempted returns the batch size.
func (c *Collector) Attempted() int {
	return len(c.slots)
}

// Results returns the successful results in submission order.
func (c *Collector) Results() []models.PhotoResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]models.PhotoResult, 0, len(c.slots))
	for _, r := range c.slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results
}
