package events

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/eventfaces/internal/models"
	"github.com/your-org/eventfaces/internal/observability"
)

// Processor is the per-photo pipeline the runner fans work out to.
type Processor interface {
	Process(ctx context.Context, photoID string, img image.Image) (models.PhotoResult, error)
}

// Photo is one decoded batch member.
type Photo struct {
	ID    string
	Image image.Image
}

// Runner executes a batch of photos for one event: photo-level work runs on a
// bounded worker pool, the aggregation fold observes submission order, and one
// photo's failure never aborts the batch. Cancellation is honored between
// photos; a photo already dispatched finishes.
type Runner struct {
	proc    Processor
	store   ResultStore
	states  *StateTracker
	workers int
	now     func() time.Time
}

func NewRunner(proc Processor, store ResultStore, states *StateTracker, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		proc:    proc,
		store:   store,
		states:  states,
		workers: workers,
		now:     time.Now,
	}
}

// SetClock overrides the timestamp source, for deterministic tests.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// Run processes the batch and stores the aggregate, replacing any prior
// result for the event. On cancellation nothing is stored and the event's
// status reflects the last completed run, if any.
func (r *Runner) Run(ctx context.Context, eventID string, photos []Photo) (models.EventResult, error) {
	r.states.SetProcessing(eventID)

	col := NewCollector(len(photos))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := r.proc.Process(ctx, photos[i].ID, photos[i].Image)
				if err != nil {
					slog.Warn("photo processing failed", "event", eventID, "photo", photos[i].ID, "error", err)
					_ = col.AddFailure(i)
					continue
				}
				_ = col.AddResult(i, res)
				observability.PhotosProcessed.Inc()
			}
		}()
	}

	cancelled := false
dispatch:
	for i := range photos {
		select {
		case <-ctx.Done():
			cancelled = true
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		r.restoreStatus(eventID)
		return models.EventResult{}, ctx.Err()
	}

	result := Aggregate(eventID, col.Results(), col.Attempted(), r.now())
	if err := r.store.Save(context.WithoutCancel(ctx), result); err != nil {
		r.restoreStatus(eventID)
		return result, fmt.Errorf("save event result: %w", err)
	}
	r.states.SetCompleted(eventID)

	slog.Info("event batch completed",
		"event", eventID,
		"attempted", result.PhotosAttempted,
		"processed", result.PhotosProcessed,
		"faces", result.Stats.TotalFaces,
		"recognized", result.Stats.RecognizedCount,
	)
	return result, nil
}

// restoreStatus rolls the lifecycle back to the last stored outcome: completed
// when a prior result exists, not_processed otherwise.
func (r *Runner) restoreStatus(eventID string) {
	if _, err := r.store.Get(context.Background(), eventID); err == nil {
		r.states.SetCompleted(eventID)
		return
	}
	r.states.Reset(eventID)
}
