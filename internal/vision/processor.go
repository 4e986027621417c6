package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/eventfaces/internal/gallery"
	"github.com/your-org/eventfaces/internal/models"
	"github.com/your-org/eventfaces/internal/observability"
)

// Processor composes locate → crop → extract → match for one photo.
// It has no side effects beyond the returned result; persistence belongs to
// the caller.
type Processor struct {
	locator   Locator
	extractor *Extractor
	matcher   *Matcher
	gallery   gallery.Gallery

	newFaceID      func() string
	previewQuality int
	maxFaces       int
}

// NewProcessor wires the pipeline components together.
func NewProcessor(locator Locator, extractor *Extractor, matcher *Matcher, g gallery.Gallery) *Processor {
	return &Processor{
		locator:        locator,
		extractor:      extractor,
		matcher:        matcher,
		gallery:        g,
		newFaceID:      uuid.NewString,
		previewQuality: 85,
		maxFaces:       16,
	}
}

// SetFaceIDGenerator overrides unrecognized-face ID generation, for tests.
func (p *Processor) SetFaceIDGenerator(gen func() string) {
	p.newFaceID = gen
}

// SetLimits configures the per-photo face cap and preview JPEG quality.
// Zero values keep the current settings.
func (p *Processor) SetLimits(maxFaces, previewQuality int) {
	if maxFaces > 0 {
		p.maxFaces = maxFaces
	}
	if previewQuality > 0 {
		p.previewQuality = previewQuality
	}
}

// Process locates faces in the photo and partitions them into recognized and
// unrecognized outcomes. The gallery is snapshotted once, so the whole photo
// matches against a consistent view even while enrollment churns. Regions
// whose signature cannot be extracted are skipped and counted; they never
// abort the photo.
func (p *Processor) Process(ctx context.Context, photoID string, img image.Image) (models.PhotoResult, error) {
	result := models.PhotoResult{
		PhotoID:      photoID,
		Recognized:   []models.RecognizedFace{},
		Unrecognized: []models.UnrecognizedFace{},
	}

	start := time.Now()
	regions, err := p.locator.Locate(img)
	observability.StageDuration.WithLabelValues("locate").Observe(time.Since(start).Seconds())
	if err != nil {
		return result, fmt.Errorf("locate faces: %w", err)
	}
	if len(regions) == 0 {
		return result, nil
	}
	if p.maxFaces > 0 && len(regions) > p.maxFaces {
		regions = regions[:p.maxFaces]
	}

	observability.FacesDetected.Add(float64(len(regions)))

	entries, err := p.gallery.Snapshot(ctx)
	if err != nil {
		return result, fmt.Errorf("snapshot gallery: %w", err)
	}

	for _, region := range regions {
		crop := cropRegion(img, region)

		start = time.Now()
		sig, err := p.extractor.Extract(crop)
		observability.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
		if err != nil {
			result.SkippedRegions++
			slog.Warn("skip region", "photo", photoID, "region", region, "error", err)
			continue
		}

		start = time.Now()
		match, err := p.matcher.Match(sig, entries)
		observability.StageDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())
		if err != nil {
			// Scoring failure counts like extraction failure: skip the
			// region, keep the photo.
			result.SkippedRegions++
			slog.Warn("skip region", "photo", photoID, "region", region, "error", err)
			continue
		}

		if match != nil {
			result.Recognized = append(result.Recognized, models.RecognizedFace{
				UserID:     match.UserID,
				UserName:   match.UserName,
				Confidence: match.Confidence,
				Region:     region,
			})
			observability.FacesRecognized.Inc()
		} else {
			result.Unrecognized = append(result.Unrecognized, models.UnrecognizedFace{
				FaceID:  p.newFaceID(),
				Region:  region,
				Preview: EncodeJPEG(crop, p.previewQuality),
			})
			observability.FacesUnrecognized.Inc()
		}
	}

	result.TotalFaces = len(result.Recognized) + len(result.Unrecognized)
	return result, nil
}

// EnrollmentSignature extracts a signature for user enrollment from a full
// photo: the largest located face is used, or an error when none is found.
func (p *Processor) EnrollmentSignature(img image.Image) (models.Signature, models.Region, error) {
	regions, err := p.locator.Locate(img)
	if err != nil {
		return models.Signature{}, models.Region{}, fmt.Errorf("locate faces: %w", err)
	}
	if len(regions) == 0 {
		return models.Signature{}, models.Region{}, ErrNoFace
	}

	best := regions[0]
	for _, r := range regions[1:] {
		if r.Width()*r.Height() > best.Width()*best.Height() {
			best = r
		}
	}

	sig, err := p.extractor.Extract(cropRegion(img, best))
	if err != nil {
		return models.Signature{}, models.Region{}, err
	}
	return sig, best, nil
}

// ExtractSignature extracts a signature directly from already-cropped face
// bytes, used when tagging a stored unrecognized-face preview.
func (p *Processor) ExtractSignature(imageData []byte) (models.Signature, error) {
	img, err := DecodeImage(imageData)
	if err != nil {
		return models.Signature{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return p.extractor.Extract(img)
}

// ErrNoFace is returned by EnrollmentSignature when the locator finds no
// face-like region in the enrollment photo.
var ErrNoFace = errors.New("no face detected in image")
