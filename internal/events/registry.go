package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/your-org/eventfaces/internal/models"
)

// Registry tracks in-flight distributed batches: the API registers a batch
// when it enqueues photo tasks, workers report per-photo outcomes in any
// order, and once every slot is filled the registry folds them in submission
// order, stores the aggregate and completes the event.
type Registry struct {
	mu      sync.Mutex
	batches map[string]*Collector
	store   ResultStore
	states  *StateTracker
	now     func() time.Time
}

func NewRegistry(store ResultStore, states *StateTracker) *Registry {
	return &Registry{
		batches: make(map[string]*Collector),
		store:   store,
		states:  states,
		now:     time.Now,
	}
}

// SetClock overrides the timestamp source, for deterministic tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Begin registers a batch of the given size and moves the event to
// processing. Re-registering an event discards any incomplete prior batch.
func (r *Registry) Begin(eventID string, total int) {
	r.mu.Lock()
	r.batches[eventID] = NewCollector(total)
	r.mu.Unlock()
	r.states.SetProcessing(eventID)
}

// Abort discards an in-flight batch and rolls the event status back to the
// last stored outcome. Used when enqueueing a batch fails partway.
func (r *Registry) Abort(ctx context.Context, eventID string) {
	r.mu.Lock()
	delete(r.batches, eventID)
	r.mu.Unlock()

	if _, err := r.store.Get(ctx, eventID); err == nil {
		r.states.SetCompleted(eventID)
		return
	}
	r.states.Reset(eventID)
}

// Record stores one worker outcome. When the batch completes, the aggregated
// EventResult is stored and returned; otherwise nil.
//
// A failed save keeps the batch registered, so the redelivery of the message
// that completed it lands on an already-filled slot; that duplicate is the
// retry signal and re-attempts the save. Saving is idempotent (last write
// wins), so retrying after a partial failure is safe.
func (r *Registry) Record(ctx context.Context, msg models.PhotoProcessed) (*models.EventResult, error) {
	col := r.collector(msg.EventID, msg.Total)

	var fillErr error
	if msg.Error != "" || msg.Result == nil {
		fillErr = col.AddFailure(msg.Index)
	} else {
		fillErr = col.AddResult(msg.Index, *msg.Result)
	}
	if fillErr != nil && !col.Complete() {
		return nil, fmt.Errorf("record photo %s: %w", msg.PhotoID, fillErr)
	}

	if !col.Complete() {
		return nil, nil
	}

	result := Aggregate(msg.EventID, col.Results(), col.Attempted(), r.now())
	if err := r.store.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("save event result: %w", err)
	}
	r.states.SetCompleted(msg.EventID)

	r.mu.Lock()
	delete(r.batches, msg.EventID)
	r.mu.Unlock()

	return &result, nil
}

// collector returns the batch collector, recreating it from the message's
// batch size after an API restart.
func (r *Registry) collector(eventID string, total int) *Collector {
	r.mu.Lock()
	defer r.mu.Unlock()

	col, ok := r.batches[eventID]
	if !ok || col.Attempted() != total {
		col = NewCollector(total)
		r.batches[eventID] = col
		r.states.SetProcessing(eventID)
	}
	return col
}
