package vision

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/your-org/eventfaces/internal/models"
)

// ErrExtraction marks signature extraction failures. At the photo level these
// are soft: the region is skipped and counted, the photo is not aborted.
var ErrExtraction = errors.New("signature extraction failed")

// Extractor derives a comparable signature from a face crop. Extraction is
// deterministic: the same pixel content always yields the same signature.
// The crop is canonicalized (fixed bilinear resize, grayscale) before hashing,
// so signatures from differently sized source photos compare meaningfully.
type Extractor struct {
	embedder *Embedder // optional, fills Signature.Vec
}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// NewExtractorWithEmbedder returns an extractor that additionally runs the
// ONNX embedder on every crop.
func NewExtractorWithEmbedder(emb *Embedder) *Extractor {
	return &Extractor{embedder: emb}
}

// Extract computes the signature of a face crop.
func (e *Extractor) Extract(img image.Image) (models.Signature, error) {
	if img == nil {
		return models.Signature{}, fmt.Errorf("%w: nil image", ErrExtraction)
	}
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return models.Signature{}, fmt.Errorf("%w: empty region %dx%d", ErrExtraction, w, h)
	}

	sig := models.Signature{
		DHash:       computeDHash(img),
		PHash:       computePHash(img),
		AspectRatio: float32(w) / float32(h),
	}

	if e.embedder != nil {
		vec, err := e.embedder.EmbedCrop(img)
		if err != nil {
			return models.Signature{}, fmt.Errorf("%w: %v", ErrExtraction, err)
		}
		sig.Vec = vec
	}

	return sig, nil
}

// HammingDistance counts differing bits between two 64-bit hashes.
func HammingDistance(a, b uint64) int {
	xor := a ^ b
	distance := 0
	for xor != 0 {
		distance++
		xor &= xor - 1
	}
	return distance
}

// computeDHash computes a 64-bit difference hash: resize to 9x8 grayscale and
// compare horizontally adjacent pixels, one bit per comparison.
func computeDHash(img image.Image) uint64 {
	gray := toGrayscale(resizeImage(img, 9, 8))

	var hash uint64
	bit := 63
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if gray[x][y] > gray[x+1][y] {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

// computePHash computes a 64-bit perceptual hash: 32x32 grayscale DCT, keep
// the low-frequency 8x8 block minus the DC component, threshold at the median.
func computePHash(img image.Image) uint64 {
	gray := toGrayscale(resizeImage(img, 32, 32))
	dct := computeDCT(gray)

	lowFreq := make([]float64, 0, 64)
	for u := 0; u < 8; u++ {
		for v := 0; v < 8; v++ {
			if u == 0 && v == 0 {
				continue
			}
			lowFreq = append(lowFreq, dct[u][v])
		}
	}
	lowFreq = append(lowFreq, dct[8][0])

	median := computeMedian(lowFreq)

	var hash uint64
	for i, v := range lowFreq {
		if v > median {
			hash |= 1 << (63 - i)
		}
	}
	return hash
}

// computeDCT computes a 2D type-II DCT of a square grayscale matrix.
func computeDCT(gray [][]float64) [][]float64 {
	n := len(gray)
	dct := make([][]float64, n)
	for u := 0; u < n; u++ {
		dct[u] = make([]float64, n)
		for v := 0; v < n; v++ {
			var sum float64
			for x := 0; x < n; x++ {
				for y := 0; y < n; y++ {
					sum += gray[x][y] *
						math.Cos(float64(2*x+1)*float64(u)*math.Pi/float64(2*n)) *
						math.Cos(float64(2*y+1)*float64(v)*math.Pi/float64(2*n))
				}
			}
			cu := 1.0
			if u == 0 {
				cu = 1 / math.Sqrt2
			}
			cv := 1.0
			if v == 0 {
				cv = 1 / math.Sqrt2
			}
			dct[u][v] = sum * cu * cv * 2 / float64(n)
		}
	}
	return dct
}

func computeMedian(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
