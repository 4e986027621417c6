package vision

import (
	"image"
	"math"
	"sort"

	"github.com/your-org/eventfaces/internal/models"
)

// Locator finds candidate face regions in a photo. Implementations must be
// deterministic for identical input, return only regions inside the image
// bounds, and scale region size with image size. Finding nothing is an empty
// slice, not an error.
type Locator interface {
	Locate(img image.Image) ([]models.Region, error)
}

// candidate is a scored region prior to overlap suppression.
type candidate struct {
	region models.Region
	score  float64
}

// VarianceLocator is a deterministic classical detector: it slides a window
// sized relative to the image over a grayscale view and keeps windows whose
// local contrast (stddev) clears a threshold, then suppresses overlaps by IoU.
// It is not a biometric model; it satisfies the locator contract for
// deployments without ONNX models and for reproducible tests.
type VarianceLocator struct {
	// WindowDivisor controls window size: min(w,h)/WindowDivisor.
	WindowDivisor int
	// MinWindow is the smallest window in pixels.
	MinWindow int
	// ScoreThreshold is the minimum grayscale stddev (0-255 scale).
	ScoreThreshold float64
	// IoUThreshold controls overlap suppression.
	IoUThreshold float64
	// MaxRegions caps the number of returned regions.
	MaxRegions int
}

// NewVarianceLocator returns a locator with the default tuning.
func NewVarianceLocator() *VarianceLocator {
	return &VarianceLocator{
		WindowDivisor:  4,
		MinWindow:      16,
		ScoreThreshold: 24,
		IoUThreshold:   0.3,
		MaxRegions:     16,
	}
}

func (l *VarianceLocator) Locate(img image.Image) ([]models.Region, error) {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, nil
	}

	short := w
	if h < short {
		short = h
	}
	win := short / l.WindowDivisor
	if win < l.MinWindow {
		win = l.MinWindow
	}
	if win > short {
		win = short
	}
	stride := win / 2
	if stride < 1 {
		stride = 1
	}

	gray := toGrayscale(img)
	sum, sumSq := integralImages(gray, w, h)

	var cands []candidate
	for top := 0; top+win <= h; top += stride {
		for left := 0; left+win <= w; left += stride {
			sd := windowStddev(sum, sumSq, left, top, win)
			if sd < l.ScoreThreshold {
				continue
			}
			cands = append(cands, candidate{
				region: models.Region{
					Left:   left,
					Top:    top,
					Right:  left + win,
					Bottom: top + win,
				},
				score: sd,
			})
		}
	}
	if len(cands) == 0 {
		return nil, nil
	}

	kept := suppressOverlaps(cands, l.IoUThreshold)
	if len(kept) > l.MaxRegions {
		kept = kept[:l.MaxRegions]
	}

	regions := make([]models.Region, len(kept))
	for i, c := range kept {
		regions[i] = c.region
	}
	return regions, nil
}

// integralImages builds summed-area tables of values and squared values, with
// a one-cell border so lookups need no edge cases. Indexed [y][x].
func integralImages(gray [][]float64, w, h int) ([][]float64, [][]float64) {
	sum := make([][]float64, h+1)
	sumSq := make([][]float64, h+1)
	for y := 0; y <= h; y++ {
		sum[y] = make([]float64, w+1)
		sumSq[y] = make([]float64, w+1)
	}
	for y := 1; y <= h; y++ {
		for x := 1; x <= w; x++ {
			v := gray[x-1][y-1]
			sum[y][x] = v + sum[y-1][x] + sum[y][x-1] - sum[y-1][x-1]
			sumSq[y][x] = v*v + sumSq[y-1][x] + sumSq[y][x-1] - sumSq[y-1][x-1]
		}
	}
	return sum, sumSq
}

// windowStddev computes the grayscale standard deviation of a win×win window
// from the integral images in constant time.
func windowStddev(sum, sumSq [][]float64, left, top, win int) float64 {
	n := float64(win * win)
	r, b := left+win, top+win
	s := sum[b][r] - sum[top][r] - sum[b][left] + sum[top][left]
	sq := sumSq[b][r] - sumSq[top][r] - sumSq[b][left] + sumSq[top][left]
	mean := s / n
	variance := sq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// suppressOverlaps performs IoU-based non-maximum suppression, keeping
// higher-scored candidates. Ties sort by position so the result is stable.
func suppressOverlaps(cands []candidate, iouThreshold float64) []candidate {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		if cands[i].region.Top != cands[j].region.Top {
			return cands[i].region.Top < cands[j].region.Top
		}
		return cands[i].region.Left < cands[j].region.Left
	})

	keep := make([]bool, len(cands))
	for i := range keep {
		keep[i] = true
	}
	for i := 0; i < len(cands); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(cands); j++ {
			if !keep[j] {
				continue
			}
			if iouRegions(cands[i].region, cands[j].region) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []candidate
	for i, c := range cands {
		if keep[i] {
			result = append(result, c)
		}
	}
	return result
}

func iouRegions(a, b models.Region) float64 {
	x1 := max(a.Left, b.Left)
	y1 := max(a.Top, b.Top)
	x2 := min(a.Right, b.Right)
	y2 := min(a.Bottom, b.Bottom)

	iw := x2 - x1
	ih := y2 - y1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	intersection := float64(iw * ih)
	union := float64(a.Width()*a.Height()+b.Width()*b.Height()) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}
