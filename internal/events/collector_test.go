package events

import (
	"sync"
	"testing"

	"github.com/your-org/eventfaces/internal/models"
)

func TestCollectorOrdersResults(t *testing.T) {
	col := NewCollector(3)

	// Fill out of order; Results must come back in submission order.
	if err := col.AddResult(2, models.PhotoResult{PhotoID: "C"}); err != nil {
		t.Fatalf("AddResult: %v", err)
	}
	if err := col.AddResult(0, models.PhotoResult{PhotoID: "A"}); err != nil {
		t.Fatalf("AddResult: %v", err)
	}
	if col.Complete() {
		t.Fatal("collector complete with one slot empty")
	}
	if err := col.AddResult(1, models.PhotoResult{PhotoID: "B"}); err != nil {
		t.Fatalf("AddResult: %v", err)
	}
	if !col.Complete() {
		t.Fatal("collector not complete with all slots filled")
	}

	results := col.Results()
	want := []string{"A", "B", "C"}
	for i, r := range results {
		if r.PhotoID != want[i] {
			t.Errorf("position %d: got %s, want %s", i, r.PhotoID, want[i])
		}
	}
}

func TestCollectorFailuresCountTowardCompletion(t *testing.T) {
	col := NewCollector(2)

	if err := col.AddResult(0, models.PhotoResult{PhotoID: "A"}); err != nil {
		t.Fatalf("AddResult: %v", err)
	}
	if err := col.AddFailure(1); err != nil {
		t.Fatalf("AddFailure: %v", err)
	}

	if !col.Complete() {
		t.Fatal("failure must fill its slot")
	}
	if got := len(col.Results()); got != 1 {
		t.Fatalf("Results len = %d, want 1 (failures excluded)", got)
	}
	if col.Attempted() != 2 {
		t.Fatalf("Attempted = %d, want 2", col.Attempted())
	}
}

func TestCollectorRejectsBadIndices(t *testing.T) {
	col := NewCollector(2)

	if err := col.AddResult(2, models.PhotoResult{}); err == nil {
		t.Error("out-of-range index accepted")
	}
	if err := col.AddResult(-1, models.PhotoResult{}); err == nil {
		t.Error("negative index accepted")
	}
	if err := col.AddResult(0, models.PhotoResult{}); err != nil {
		t.Fatalf("AddResult: %v", err)
	}
	if err := col.AddResult(0, models.PhotoResult{}); err == nil {
		t.Error("double fill accepted")
	}
	if err := col.AddFailure(0); err == nil {
		t.Error("failure over a filled slot accepted")
	}
}

func TestCollectorConcurrentFill(t *testing.T) {
	const n = 64
	col := NewCollector(n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%7 == 0 {
				_ = col.AddFailure(i)
			} else {
				_ = col.AddResult(i, models.PhotoResult{PhotoID: string(rune('a' + i%26))})
			}
		}(i)
	}
	wg.Wait()

	if !col.Complete() {
		t.Fatal("all slots filled but collector not complete")
	}
}
