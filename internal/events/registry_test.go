package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/your-org/eventfaces/internal/models"
)

// flakyStore fails a fixed number of saves before recovering, as a result
// store does during a brief database outage.
type flakyStore struct {
	*MemoryStore
	failures int
}

func (s *flakyStore) Save(ctx context.Context, result models.EventResult) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset by peer")
	}
	return s.MemoryStore.Save(ctx, result)
}

func processedMsg(eventID, photoID string, index, total int) models.PhotoProcessed {
	return models.PhotoProcessed{
		EventID: eventID,
		PhotoID: photoID,
		Index:   index,
		Total:   total,
		Result: &models.PhotoResult{
			PhotoID:    photoID,
			Recognized: []models.RecognizedFace{{UserID: "u1", Confidence: 0.9}},
			TotalFaces: 1,
		},
	}
}

func failedMsg(eventID, photoID string, index, total int) models.PhotoProcessed {
	return models.PhotoProcessed{
		EventID: eventID,
		PhotoID: photoID,
		Index:   index,
		Total:   total,
		Error:   "decode photo: unexpected EOF",
	}
}

func TestRegistryFoldsOutOfOrderArrivals(t *testing.T) {
	store := NewMemoryStore()
	states := NewStateTracker()
	reg := NewRegistry(store, states)
	reg.SetClock(func() time.Time { return time.Date(2025, 7, 4, 18, 0, 0, 0, time.UTC) })

	ctx := context.Background()
	reg.Begin("ev1", 3)

	if states.Status("ev1") != models.EventProcessing {
		t.Fatalf("status after Begin = %s, want processing", states.Status("ev1"))
	}

	// Workers report in completion order, not submission order.
	for _, msg := range []models.PhotoProcessed{
		processedMsg("ev1", "C", 2, 3),
		processedMsg("ev1", "A", 0, 3),
	} {
		final, err := reg.Record(ctx, msg)
		if err != nil {
			t.Fatalf("Record %s: %v", msg.PhotoID, err)
		}
		if final != nil {
			t.Fatalf("batch completed early after %s", msg.PhotoID)
		}
	}

	final, err := reg.Record(ctx, processedMsg("ev1", "B", 1, 3))
	if err != nil {
		t.Fatalf("Record B: %v", err)
	}
	if final == nil {
		t.Fatal("expected aggregate after last photo")
	}

	// The fold ran in submission order.
	want := []string{"A", "B", "C"}
	for i, op := range final.OrganizerPhotos {
		if op.PhotoID != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, op.PhotoID, want[i])
		}
	}
	if states.Status("ev1") != models.EventCompleted {
		t.Fatalf("status = %s, want completed", states.Status("ev1"))
	}

	stored, err := store.Get(ctx, "ev1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.PhotosProcessed != 3 {
		t.Fatalf("stored PhotosProcessed = %d, want 3", stored.PhotosProcessed)
	}
}

func TestRegistryFailedPhotoCompletesBatch(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(), NewStateTracker())
	ctx := context.Background()
	reg.Begin("ev1", 2)

	if _, err := reg.Record(ctx, failedMsg("ev1", "A", 0, 2)); err != nil {
		t.Fatalf("Record failure: %v", err)
	}
	final, err := reg.Record(ctx, processedMsg("ev1", "B", 1, 2))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if final == nil {
		t.Fatal("failed photo must still count toward completion")
	}
	if final.PhotosAttempted != 2 || final.PhotosProcessed != 1 {
		t.Fatalf("attempted %d processed %d, want 2/1", final.PhotosAttempted, final.PhotosProcessed)
	}
}

func TestRegistryRebuildsBatchFromMessages(t *testing.T) {
	// No Begin call: the registry recreates the batch from the message's
	// total, as after an API restart.
	states := NewStateTracker()
	reg := NewRegistry(NewMemoryStore(), states)
	ctx := context.Background()

	if _, err := reg.Record(ctx, processedMsg("ev1", "A", 0, 2)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if states.Status("ev1") != models.EventProcessing {
		t.Fatalf("status = %s, want processing", states.Status("ev1"))
	}

	final, err := reg.Record(ctx, processedMsg("ev1", "B", 1, 2))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if final == nil || final.PhotosProcessed != 2 {
		t.Fatalf("rebuilt batch did not complete: %+v", final)
	}
}

func TestRegistryDuplicateDeliveryRejected(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(), NewStateTracker())
	ctx := context.Background()
	reg.Begin("ev1", 2)

	if _, err := reg.Record(ctx, processedMsg("ev1", "A", 0, 2)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := reg.Record(ctx, processedMsg("ev1", "A", 0, 2)); err == nil {
		t.Fatal("redelivered message accepted into a filled slot")
	}
}

func TestRegistryRetriesSaveOnRedelivery(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 1}
	states := NewStateTracker()
	reg := NewRegistry(store, states)
	ctx := context.Background()
	reg.Begin("ev1", 2)

	if _, err := reg.Record(ctx, processedMsg("ev1", "A", 0, 2)); err != nil {
		t.Fatalf("Record A: %v", err)
	}

	// The batch completes but the save fails, so the message is nacked
	// and the queue redelivers it.
	if _, err := reg.Record(ctx, processedMsg("ev1", "B", 1, 2)); err == nil {
		t.Fatal("expected save failure on first delivery")
	}
	if states.Status("ev1") != models.EventProcessing {
		t.Fatalf("status after failed save = %s, want processing", states.Status("ev1"))
	}

	final, err := reg.Record(ctx, processedMsg("ev1", "B", 1, 2))
	if err != nil {
		t.Fatalf("redelivered Record: %v", err)
	}
	if final == nil {
		t.Fatal("redelivery of the final photo must retry the save")
	}
	if states.Status("ev1") != models.EventCompleted {
		t.Fatalf("status = %s, want completed", states.Status("ev1"))
	}
	stored, err := store.Get(ctx, "ev1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.PhotosProcessed != 2 {
		t.Fatalf("stored PhotosProcessed = %d, want 2", stored.PhotosProcessed)
	}
}

func TestRegistryAbortRollsBackStatus(t *testing.T) {
	store := NewMemoryStore()
	states := NewStateTracker()
	reg := NewRegistry(store, states)
	ctx := context.Background()

	reg.Begin("ev1", 3)
	reg.Abort(ctx, "ev1")
	if states.Status("ev1") != models.EventNotProcessed {
		t.Fatalf("status = %s, want not_processed", states.Status("ev1"))
	}

	// With a stored result from an earlier run, aborting restores completed.
	reg.Begin("ev2", 1)
	if _, err := reg.Record(ctx, processedMsg("ev2", "A", 0, 1)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	reg.Begin("ev2", 3)
	reg.Abort(ctx, "ev2")
	if states.Status("ev2") != models.EventCompleted {
		t.Fatalf("status = %s, want completed", states.Status("ev2"))
	}
}

func TestRegistryIndependentEvents(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(), NewStateTracker())
	ctx := context.Background()
	reg.Begin("ev1", 1)
	reg.Begin("ev2", 1)

	final1, err := reg.Record(ctx, processedMsg("ev1", "A", 0, 1))
	if err != nil || final1 == nil {
		t.Fatalf("ev1 Record: %v %v", final1, err)
	}
	final2, err := reg.Record(ctx, processedMsg("ev2", "B", 0, 1))
	if err != nil || final2 == nil {
		t.Fatalf("ev2 Record: %v %v", final2, err)
	}
	if final1.EventID == final2.EventID {
		t.Fatal("events folded into the same aggregate")
	}
}
