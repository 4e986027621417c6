package vision

import (
	"errors"
	"math"

	"github.com/your-org/eventfaces/internal/gallery"
	"github.com/your-org/eventfaces/internal/models"
)

// ErrMalformedSignature is a computation failure, distinct from the no-match
// outcome, which is reported as a nil match with a nil error.
var ErrMalformedSignature = errors.New("malformed signature")

// DefaultThreshold is the recognition threshold a match must strictly exceed.
const DefaultThreshold = 0.7

// maxConfidence caps the confidence reported for an accepted match.
const maxConfidence = 0.99

// Scorer computes a bounded similarity score between a query signature and an
// enrolled one. Higher is more similar; implementations keep the total within
// [0, 1] by capping each weighted sub-score.
type Scorer interface {
	Score(query, enrolled models.Signature) float64
}

// HashScorer scores by perceptual-hash closeness plus aspect-ratio closeness.
// The hash term averages the dHash and pHash Hamming similarities; identical
// signatures score the full HashWeight on it, so an enrolled user
// photographed again under identical pixels scores HashWeight+AspectWeight.
type HashScorer struct {
	HashWeight    float64
	AspectWeight  float64
	MaxAspectDiff float64
}

// NewHashScorer returns the default scoring weights: 0.8 for the hash term,
// 0.2 for the aspect term, matching the default 0.7 threshold so that only
// strong hash agreement can produce a match on its own.
func NewHashScorer() HashScorer {
	return HashScorer{
		HashWeight:    0.8,
		AspectWeight:  0.2,
		MaxAspectDiff: 0.5,
	}
}

func (s HashScorer) Score(query, enrolled models.Signature) float64 {
	dSim := 1 - float64(HammingDistance(query.DHash, enrolled.DHash))/64
	pSim := 1 - float64(HammingDistance(query.PHash, enrolled.PHash))/64
	hashTerm := s.HashWeight * (dSim + pSim) / 2

	return hashTerm + aspectTerm(query, enrolled, s.AspectWeight, s.MaxAspectDiff)
}

// EmbeddingScorer scores by cosine similarity of ONNX embeddings, falling back
// to hash scoring when either signature lacks a vector.
type EmbeddingScorer struct {
	VecWeight     float64
	AspectWeight  float64
	MaxAspectDiff float64
	Fallback      HashScorer
}

func NewEmbeddingScorer() EmbeddingScorer {
	return EmbeddingScorer{
		VecWeight:     0.8,
		AspectWeight:  0.2,
		MaxAspectDiff: 0.5,
		Fallback:      NewHashScorer(),
	}
}

func (s EmbeddingScorer) Score(query, enrolled models.Signature) float64 {
	if len(query.Vec) == 0 || len(enrolled.Vec) == 0 {
		return s.Fallback.Score(query, enrolled)
	}

	cos := float64(CosineSimilarity(query.Vec, enrolled.Vec))
	if cos < 0 {
		cos = 0
	}
	return s.VecWeight*cos + aspectTerm(query, enrolled, s.AspectWeight, s.MaxAspectDiff)
}

// aspectTerm is the bounded auxiliary sub-score: full weight for identical
// aspect ratios, falling linearly to zero at maxDiff.
func aspectTerm(query, enrolled models.Signature, weight, maxDiff float64) float64 {
	diff := math.Abs(float64(query.AspectRatio - enrolled.AspectRatio))
	if diff > maxDiff {
		diff = maxDiff
	}
	return weight * (1 - diff/maxDiff)
}

// Match is an accepted gallery candidate.
type Match struct {
	UserID     string
	UserName   string
	Confidence float64
}

// Matcher selects the best-scoring gallery candidate above the recognition
// threshold. Tie-break: the snapshot is in enrollment order and only a
// strictly greater score displaces the current best, so the first-enrolled
// candidate wins ties.
type Matcher struct {
	scorer    Scorer
	threshold float64
}

func NewMatcher(scorer Scorer, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{scorer: scorer, threshold: threshold}
}

// Match scores the query against every enrolled entry. A nil match with nil
// error means no candidate cleared the threshold; an empty gallery always
// yields no match.
func (m *Matcher) Match(query models.Signature, entries []gallery.Entry) (*Match, error) {
	if !query.Valid() {
		return nil, ErrMalformedSignature
	}

	var best *Match
	bestScore := 0.0

	for _, e := range entries {
		score := m.scorer.Score(query, e.Signature)
		if score > bestScore {
			bestScore = score
			best = &Match{UserID: e.UserID, UserName: e.Name}
		}
	}

	if best == nil || bestScore <= m.threshold {
		return nil, nil
	}

	best.Confidence = math.Min(bestScore, maxConfidence)
	return best, nil
}
