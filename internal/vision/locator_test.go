package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/your-org/eventfaces/internal/models"
)

// flatImage renders a uniform gray frame with zero local contrast.
func flatImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{128, 128, 128, 255})
		}
	}
	return img
}

// texturedPatch overlays a high-contrast checker patch on a flat frame.
func texturedPatch(img *image.RGBA, left, top, size int) {
	for y := top; y < top+size; y++ {
		for x := left; x < left+size; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
}

func TestLocateFlatImage(t *testing.T) {
	l := NewVarianceLocator()

	regions, err := l.Locate(flatImage(256, 256))
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(regions) != 0 {
		t.Fatalf("flat image must yield no regions, got %d", len(regions))
	}
}

func TestLocateFindsTexture(t *testing.T) {
	l := NewVarianceLocator()

	img := flatImage(256, 256)
	texturedPatch(img, 32, 32, 80)

	regions, err := l.Locate(img)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(regions) == 0 {
		t.Fatal("expected at least one region over the textured patch")
	}
	for _, r := range regions {
		if !r.Within(256, 256) {
			t.Errorf("region %+v outside image bounds", r)
		}
	}
}

func TestLocateDeterministic(t *testing.T) {
	l := NewVarianceLocator()

	img := flatImage(200, 150)
	texturedPatch(img, 20, 20, 50)
	texturedPatch(img, 120, 80, 50)

	first, err := l.Locate(img)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	second, err := l.Locate(img)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("region count differs across runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("region %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestLocateWindowScalesWithImage(t *testing.T) {
	l := NewVarianceLocator()

	small := flatImage(128, 128)
	texturedPatch(small, 0, 0, 128)
	large := flatImage(512, 512)
	texturedPatch(large, 0, 0, 512)

	smallRegions, err := l.Locate(small)
	if err != nil {
		t.Fatalf("Locate small: %v", err)
	}
	largeRegions, err := l.Locate(large)
	if err != nil {
		t.Fatalf("Locate large: %v", err)
	}
	if len(smallRegions) == 0 || len(largeRegions) == 0 {
		t.Fatal("expected regions in both fully textured images")
	}

	if smallRegions[0].Width() >= largeRegions[0].Width() {
		t.Errorf("window did not scale: %d (small) vs %d (large)",
			smallRegions[0].Width(), largeRegions[0].Width())
	}
}

func TestLocateEmptyImage(t *testing.T) {
	l := NewVarianceLocator()

	regions, err := l.Locate(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if regions != nil {
		t.Fatalf("empty image must yield nil regions, got %v", regions)
	}
}

func TestSuppressOverlaps(t *testing.T) {
	a := candidate{region: models.Region{Left: 0, Top: 0, Right: 100, Bottom: 100}, score: 10}
	b := candidate{region: models.Region{Left: 10, Top: 10, Right: 110, Bottom: 110}, score: 5}
	c := candidate{region: models.Region{Left: 300, Top: 300, Right: 400, Bottom: 400}, score: 7}

	kept := suppressOverlaps([]candidate{b, c, a}, 0.3)

	if len(kept) != 2 {
		t.Fatalf("expected 2 surviving candidates, got %d", len(kept))
	}
	if kept[0].region != a.region {
		t.Errorf("highest-scored candidate must survive first, got %+v", kept[0].region)
	}
	if kept[1].region != c.region {
		t.Errorf("disjoint candidate must survive, got %+v", kept[1].region)
	}
}

func TestIoURegions(t *testing.T) {
	tests := []struct {
		name string
		a, b models.Region
		want float64
	}{
		{
			"identical",
			models.Region{Left: 0, Top: 0, Right: 10, Bottom: 10},
			models.Region{Left: 0, Top: 0, Right: 10, Bottom: 10},
			1.0,
		},
		{
			"disjoint",
			models.Region{Left: 0, Top: 0, Right: 10, Bottom: 10},
			models.Region{Left: 20, Top: 20, Right: 30, Bottom: 30},
			0.0,
		},
		{
			"half overlap",
			models.Region{Left: 0, Top: 0, Right: 10, Bottom: 10},
			models.Region{Left: 5, Top: 0, Right: 15, Bottom: 10},
			50.0 / 150.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := iouRegions(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("iou = %v, want %v", got, tt.want)
			}
		})
	}
}
