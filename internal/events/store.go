package events

import (
	"context"
	"errors"
	"sync"

	"github.com/your-org/eventfaces/internal/models"
)

// ErrNoResult is returned when an event has never completed a processing run.
var ErrNoResult = errors.New("no result for event")

// ResultStore keeps the last EventResult per event. Saving is last-write-wins:
// a re-run replaces the prior result wholesale, there are no merge semantics.
type ResultStore interface {
	Save(ctx context.Context, result models.EventResult) error
	Get(ctx context.Context, eventID string) (models.EventResult, error)
}

// MemoryStore is an in-memory ResultStore safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]models.EventResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]models.EventResult)}
}

func (s *MemoryStore) Save(_ context.Context, result models.EventResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.EventID] = result
	return nil
}

func (s *MemoryStore) Get(_ context.Context, eventID string) (models.EventResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[eventID]
	if !ok {
		return models.EventResult{}, ErrNoResult
	}
	return r, nil
}

// StateTracker tracks each event's processing lifecycle:
// not_processed → processing → completed, with completed again on re-run.
// There is no failed terminal state; a run that loses photos still completes.
type StateTracker struct {
	mu     sync.RWMutex
	states map[string]models.EventStatus
}

func NewStateTracker() *StateTracker {
	return &StateTracker{states: make(map[string]models.EventStatus)}
}

func (t *StateTracker) Status(eventID string) models.EventStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if s, ok := t.states[eventID]; ok {
		return s
	}
	return models.EventNotProcessed
}

func (t *StateTracker) SetProcessing(eventID string) {
	t.set(eventID, models.EventProcessing)
}

func (t *StateTracker) SetCompleted(eventID string) {
	t.set(eventID, models.EventCompleted)
}

// Reset forgets an event's state, returning it to not_processed.
func (t *StateTracker) Reset(eventID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, eventID)
}

func (t *StateTracker) set(eventID string, s models.EventStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[eventID] = s
}
