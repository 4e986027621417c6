package vision

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"testing"

	"github.com/your-org/eventfaces/internal/gallery"
	"github.com/your-org/eventfaces/internal/models"
)

// stubLocator returns a fixed set of regions for any image.
type stubLocator struct {
	regions []models.Region
	err     error
}

func (s stubLocator) Locate(image.Image) ([]models.Region, error) {
	return s.regions, s.err
}

// sequentialIDs returns face IDs f0, f1, ... for deterministic assertions.
func sequentialIDs() func() string {
	n := 0
	return func() string {
		id := fmt.Sprintf("f%d", n)
		n++
		return id
	}
}

// compose pastes src into dst at the given offset.
func compose(dst *image.RGBA, src image.Image, left, top int) {
	b := src.Bounds()
	draw.Draw(dst, image.Rect(left, top, left+b.Dx(), top+b.Dy()), src, b.Min, draw.Src)
}

func newTestProcessor(loc Locator, g gallery.Gallery) *Processor {
	p := NewProcessor(loc, NewExtractor(), NewMatcher(NewHashScorer(), DefaultThreshold), g)
	p.SetFaceIDGenerator(sequentialIDs())
	return p
}

func TestProcessNoFaces(t *testing.T) {
	p := newTestProcessor(stubLocator{}, gallery.NewMemory())

	result, err := p.Process(context.Background(), "p1", gradientImage(100, 100))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.TotalFaces != 0 || len(result.Recognized) != 0 || len(result.Unrecognized) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if result.Recognized == nil || result.Unrecognized == nil {
		t.Fatal("result slices must be initialized, not nil")
	}
}

func TestProcessAllUnrecognized(t *testing.T) {
	regions := []models.Region{
		{Left: 0, Top: 0, Right: 40, Bottom: 40},
		{Left: 60, Top: 0, Right: 100, Bottom: 40},
	}
	p := newTestProcessor(stubLocator{regions: regions}, gallery.NewMemory())

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	compose(img, gradientImage(40, 40), 0, 0)
	compose(img, checkerImage(40, 40, 4), 60, 0)

	result, err := p.Process(context.Background(), "p1", img)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(result.Unrecognized) != 2 {
		t.Fatalf("expected 2 unrecognized faces, got %d", len(result.Unrecognized))
	}
	if result.TotalFaces != 2 {
		t.Errorf("TotalFaces = %d, want 2", result.TotalFaces)
	}

	// Each unknown face gets its own ID and a preview.
	a, b := result.Unrecognized[0], result.Unrecognized[1]
	if a.FaceID == b.FaceID {
		t.Errorf("face IDs must be distinct, both %q", a.FaceID)
	}
	for _, f := range result.Unrecognized {
		if len(f.Preview) == 0 {
			t.Errorf("face %s has no preview", f.FaceID)
		}
		if _, err := DecodeImage(f.Preview); err != nil {
			t.Errorf("face %s preview is not a decodable image: %v", f.FaceID, err)
		}
	}
}

func TestProcessRecognizesEnrolledUser(t *testing.T) {
	face := gradientImage(40, 40)
	region := models.Region{Left: 10, Top: 10, Right: 50, Bottom: 50}

	g := gallery.NewMemory()
	sig, err := NewExtractor().Extract(face)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, err := g.Enroll(context.Background(), "u1", "alice", sig); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	compose(img, face, 10, 10)

	p := newTestProcessor(stubLocator{regions: []models.Region{region}}, g)
	result, err := p.Process(context.Background(), "p1", img)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(result.Recognized) != 1 {
		t.Fatalf("expected 1 recognized face, got %+v", result)
	}
	rec := result.Recognized[0]
	if rec.UserID != "u1" || rec.UserName != "alice" {
		t.Errorf("recognized %s/%s, want u1/alice", rec.UserID, rec.UserName)
	}
	if rec.Confidence <= DefaultThreshold || rec.Confidence > 0.99 {
		t.Errorf("Confidence = %v, want in (%v, 0.99]", rec.Confidence, DefaultThreshold)
	}
	if rec.Region != region {
		t.Errorf("Region = %+v, want %+v", rec.Region, region)
	}
	if len(result.Unrecognized) != 0 {
		t.Errorf("unexpected unrecognized faces: %+v", result.Unrecognized)
	}
}

func TestProcessSkipsBadRegions(t *testing.T) {
	regions := []models.Region{
		{Left: 0, Top: 0, Right: 40, Bottom: 40},
		{Left: 200, Top: 200, Right: 240, Bottom: 240}, // outside the image
	}
	p := newTestProcessor(stubLocator{regions: regions}, gallery.NewMemory())

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	compose(img, gradientImage(40, 40), 0, 0)

	result, err := p.Process(context.Background(), "p1", img)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.SkippedRegions != 1 {
		t.Errorf("SkippedRegions = %d, want 1", result.SkippedRegions)
	}
	if len(result.Unrecognized) != 1 {
		t.Errorf("the valid region must still be processed, got %+v", result)
	}
	if result.TotalFaces != 1 {
		t.Errorf("TotalFaces = %d, want 1 (skipped regions excluded)", result.TotalFaces)
	}
}

func TestProcessLocatorError(t *testing.T) {
	p := newTestProcessor(stubLocator{err: fmt.Errorf("model exploded")}, gallery.NewMemory())

	_, err := p.Process(context.Background(), "p1", gradientImage(100, 100))
	if err == nil {
		t.Fatal("expected locator failure to surface")
	}
}

func TestProcessCapsFaces(t *testing.T) {
	var regions []models.Region
	for i := 0; i < 5; i++ {
		regions = append(regions, models.Region{Left: i * 20, Top: 0, Right: i*20 + 20, Bottom: 20})
	}
	p := newTestProcessor(stubLocator{regions: regions}, gallery.NewMemory())
	p.SetLimits(3, 0)

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	compose(img, checkerImage(100, 20, 4), 0, 0)

	result, err := p.Process(context.Background(), "p1", img)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.TotalFaces != 3 {
		t.Fatalf("TotalFaces = %d, want 3 after cap", result.TotalFaces)
	}
}

func TestEnrollmentSignaturePicksLargestFace(t *testing.T) {
	small := models.Region{Left: 0, Top: 0, Right: 20, Bottom: 20}
	big := models.Region{Left: 30, Top: 30, Right: 90, Bottom: 90}
	p := newTestProcessor(stubLocator{regions: []models.Region{small, big}}, gallery.NewMemory())

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	compose(img, checkerImage(20, 20, 2), 0, 0)
	compose(img, gradientImage(60, 60), 30, 30)

	sig, region, err := p.EnrollmentSignature(img)
	if err != nil {
		t.Fatalf("EnrollmentSignature: %v", err)
	}
	if region != big {
		t.Fatalf("region = %+v, want the larger %+v", region, big)
	}

	want, err := NewExtractor().Extract(gradientImage(60, 60))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if sig.DHash != want.DHash {
		t.Errorf("signature not derived from the larger face crop")
	}
}

func TestEnrollmentSignatureNoFace(t *testing.T) {
	p := newTestProcessor(stubLocator{}, gallery.NewMemory())

	_, _, err := p.EnrollmentSignature(gradientImage(100, 100))
	if err != ErrNoFace {
		t.Fatalf("expected ErrNoFace, got %v", err)
	}
}

func TestExtractSignatureFromBytes(t *testing.T) {
	p := newTestProcessor(stubLocator{}, gallery.NewMemory())

	data := EncodeJPEG(gradientImage(64, 64), 90)
	sig, err := p.ExtractSignature(data)
	if err != nil {
		t.Fatalf("ExtractSignature: %v", err)
	}
	if !sig.Valid() {
		t.Fatal("expected well-formed signature from jpeg bytes")
	}

	if _, err := p.ExtractSignature([]byte("not an image")); err == nil {
		t.Fatal("expected decode failure for garbage bytes")
	}
}
