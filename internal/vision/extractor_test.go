package vision

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

// gradientImage renders a horizontal brightness gradient. The pattern is
// smooth, so its perceptual hashes survive resizing.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / (w - 1))
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

// checkerImage renders an alternating block pattern, visually distinct from
// any gradient.
func checkerImage(w, h, block int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x/block+y/block)%2 == 0 {
				v = 255
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func TestExtractDeterministic(t *testing.T) {
	e := NewExtractor()
	img := gradientImage(64, 64)

	first, err := e.Extract(img)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	second, err := e.Extract(img)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if first.DHash != second.DHash || first.PHash != second.PHash || first.AspectRatio != second.AspectRatio {
		t.Fatalf("extraction not deterministic: %+v vs %+v", first, second)
	}
}

func TestExtractCanonicalizesSize(t *testing.T) {
	e := NewExtractor()

	small, err := e.Extract(gradientImage(48, 48))
	if err != nil {
		t.Fatalf("Extract small: %v", err)
	}
	large, err := e.Extract(gradientImage(192, 192))
	if err != nil {
		t.Fatalf("Extract large: %v", err)
	}

	if d := HammingDistance(small.DHash, large.DHash); d > 4 {
		t.Errorf("dhash of same pattern at different sizes differs by %d bits", d)
	}
	if d := HammingDistance(small.PHash, large.PHash); d > 8 {
		t.Errorf("phash of same pattern at different sizes differs by %d bits", d)
	}
}

func TestExtractDistinguishesContent(t *testing.T) {
	e := NewExtractor()

	grad, err := e.Extract(gradientImage(64, 64))
	if err != nil {
		t.Fatalf("Extract gradient: %v", err)
	}
	check, err := e.Extract(checkerImage(64, 64, 8))
	if err != nil {
		t.Fatalf("Extract checker: %v", err)
	}

	if d := HammingDistance(grad.DHash, check.DHash); d < 8 {
		t.Errorf("dhash cannot separate gradient from checker: distance %d", d)
	}
}

func TestExtractAspectRatio(t *testing.T) {
	e := NewExtractor()

	sig, err := e.Extract(gradientImage(120, 80))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if sig.AspectRatio != 1.5 {
		t.Fatalf("AspectRatio = %v, want 1.5", sig.AspectRatio)
	}
	if !sig.Valid() {
		t.Fatal("expected well-formed signature")
	}
}

func TestExtractRejectsBadInput(t *testing.T) {
	e := NewExtractor()

	if _, err := e.Extract(nil); !errors.Is(err, ErrExtraction) {
		t.Fatalf("nil image: expected ErrExtraction, got %v", err)
	}
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	if _, err := e.Extract(empty); !errors.Is(err, ErrExtraction) {
		t.Fatalf("empty image: expected ErrExtraction, got %v", err)
	}
}

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xDEADBEEF, 0xDEADBEEF, 0},
		{"one bit", 0, 1, 1},
		{"all bits", 0, ^uint64(0), 64},
		{"half", 0x00000000FFFFFFFF, 0xFFFFFFFF00000000, 64},
		{"nibble", 0xF0, 0x0F, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HammingDistance(tt.a, tt.b); got != tt.want {
				t.Errorf("HammingDistance(%x, %x) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
