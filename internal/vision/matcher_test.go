package vision

import (
	"errors"
	"math"
	"testing"

	"github.com/your-org/eventfaces/internal/gallery"
	"github.com/your-org/eventfaces/internal/models"
)

func sig(dhash uint64, aspect float32) models.Signature {
	return models.Signature{DHash: dhash, PHash: dhash, AspectRatio: aspect}
}

func entry(id, name string, s models.Signature) gallery.Entry {
	return gallery.Entry{UserID: id, Name: name, Signature: s}
}

func TestMatchEmptyGallery(t *testing.T) {
	m := NewMatcher(NewHashScorer(), DefaultThreshold)

	match, err := m.Match(sig(42, 1.0), nil)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if match != nil {
		t.Fatalf("empty gallery must yield no match, got %+v", match)
	}
}

func TestMatchIdenticalSignature(t *testing.T) {
	m := NewMatcher(NewHashScorer(), DefaultThreshold)
	s := sig(0xABCDEF0123456789, 1.25)

	match, err := m.Match(s, []gallery.Entry{entry("u1", "alice", s)})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if match == nil {
		t.Fatal("identical signature must match")
	}
	if match.UserID != "u1" {
		t.Errorf("UserID = %s, want u1", match.UserID)
	}
	// Identical signatures score 1.0; confidence is capped below it.
	if match.Confidence <= DefaultThreshold || match.Confidence > 0.99 {
		t.Errorf("Confidence = %v, want in (%v, 0.99]", match.Confidence, DefaultThreshold)
	}
}

func TestMatchThresholdIsStrict(t *testing.T) {
	// A scorer pinned exactly at the threshold must not produce a match.
	m := NewMatcher(constScorer(DefaultThreshold), DefaultThreshold)

	match, err := m.Match(sig(1, 1.0), []gallery.Entry{entry("u1", "alice", sig(2, 1.0))})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if match != nil {
		t.Fatalf("score equal to threshold must not match, got %+v", match)
	}
}

func TestMatchBelowThreshold(t *testing.T) {
	m := NewMatcher(NewHashScorer(), DefaultThreshold)

	// Inverted hash bits and a far aspect ratio score near zero.
	query := sig(0, 1.0)
	far := sig(^uint64(0), 2.0)

	match, err := m.Match(query, []gallery.Entry{entry("u1", "alice", far)})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if match != nil {
		t.Fatalf("dissimilar signature must not match, got %+v", match)
	}
}

func TestMatchFirstEnrolledWinsTies(t *testing.T) {
	m := NewMatcher(constScorer(0.9), 0.7)
	s := sig(7, 1.0)

	entries := []gallery.Entry{
		entry("first", "alice", s),
		entry("second", "bob", s),
		entry("third", "carol", s),
	}

	for i := 0; i < 10; i++ {
		match, err := m.Match(sig(7, 1.0), entries)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if match == nil || match.UserID != "first" {
			t.Fatalf("tie must go to the first enrolled user, got %+v", match)
		}
	}
}

func TestMatchPicksBestScore(t *testing.T) {
	m := NewMatcher(NewHashScorer(), 0.7)
	query := sig(0xFF00FF00FF00FF00, 1.0)

	entries := []gallery.Entry{
		entry("close", "alice", sig(0xFF00FF00FF00FF01, 1.0)), // 1 bit off
		entry("exact", "bob", query),
	}

	match, err := m.Match(query, entries)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if match == nil || match.UserID != "exact" {
		t.Fatalf("expected the exact signature to win, got %+v", match)
	}
}

func TestMatchMalformedSignature(t *testing.T) {
	m := NewMatcher(NewHashScorer(), DefaultThreshold)

	_, err := m.Match(models.Signature{}, []gallery.Entry{entry("u1", "alice", sig(1, 1.0))})
	if !errors.Is(err, ErrMalformedSignature) {
		t.Fatalf("expected ErrMalformedSignature, got %v", err)
	}
}

func TestHashScorerBounds(t *testing.T) {
	s := NewHashScorer()

	tests := []struct {
		name            string
		query, enrolled models.Signature
		min, max        float64
	}{
		{"identical", sig(5, 1.0), sig(5, 1.0), 1.0, 1.0},
		{"opposite", sig(0, 1.0), sig(^uint64(0), 2.0), 0.0, 0.0},
		{"hash match aspect far", sig(5, 1.0), sig(5, 2.0), 0.8, 0.8},
		{"one bit off", sig(0, 1.0), sig(1, 1.0), 0.98, 0.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.query, tt.enrolled)
			if got < tt.min-1e-9 || got > tt.max+1e-9 {
				t.Errorf("Score = %v, want in [%v, %v]", got, tt.min, tt.max)
			}
		})
	}
}

func TestHashScorerWeighsBothHashes(t *testing.T) {
	s := NewHashScorer()
	query := models.Signature{DHash: 5, PHash: 5, AspectRatio: 1.0}
	enrolled := models.Signature{DHash: 5, PHash: ^uint64(5), AspectRatio: 1.0}

	// dHash agrees, pHash is fully inverted: the hash term halves.
	got := s.Score(query, enrolled)
	want := 0.8/2 + 0.2
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Score = %v, want %v", got, want)
	}
	if identical := s.Score(query, query); got >= identical {
		t.Fatalf("diverging pHash must lower the score: %v >= %v", got, identical)
	}
}

func TestEmbeddingScorerFallsBackWithoutVectors(t *testing.T) {
	s := NewEmbeddingScorer()
	a := sig(5, 1.0)
	b := sig(5, 1.0)

	if got := s.Score(a, b); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("hash fallback Score = %v, want 1.0", got)
	}

	a.Vec = []float32{1, 0, 0}
	b.Vec = []float32{1, 0, 0}
	if got := s.Score(a, b); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("identical vectors Score = %v, want 1.0", got)
	}

	b.Vec = []float32{0, 1, 0}
	if got := s.Score(a, b); math.Abs(got-0.2) > 1e-9 {
		t.Fatalf("orthogonal vectors Score = %v, want 0.2 (aspect term only)", got)
	}
}

// constScorer returns the same score for every pair.
type constScorer float64

func (c constScorer) Score(_, _ models.Signature) float64 { return float64(c) }
