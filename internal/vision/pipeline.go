package vision

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/your-org/eventfaces/internal/config"
	"github.com/your-org/eventfaces/internal/gallery"
	"github.com/your-org/eventfaces/internal/models"
)

// Pipeline assembles the photo processor from configuration. With a models
// directory configured (and the ONNX runtime initialized by the caller) it
// runs the RetinaFace locator and ArcFace embedder; otherwise it falls back
// to the deterministic variance locator with hash-only scoring.
type Pipeline struct {
	Processor *Processor

	onnxLocator *ONNXLocator
	embedder    *Embedder
}

func NewPipeline(cfg config.VisionConfig, g gallery.Gallery) (*Pipeline, error) {
	p := &Pipeline{}

	var locator Locator
	extractor := NewExtractor()
	var scorer Scorer = NewHashScorer()

	if cfg.ModelsDir != "" {
		onnxLoc, err := NewONNXLocator(filepath.Join(cfg.ModelsDir, "det_10g.onnx"), float32(cfg.DetectionThreshold), nil)
		if err != nil {
			return nil, fmt.Errorf("load detection model: %w", err)
		}
		p.onnxLocator = onnxLoc
		locator = onnxLoc

		emb, err := NewEmbedder(filepath.Join(cfg.ModelsDir, "w600k_r50.onnx"))
		if err != nil {
			onnxLoc.Close()
			return nil, fmt.Errorf("load recognition model: %w", err)
		}
		p.embedder = emb
		extractor = NewExtractorWithEmbedder(emb)
		scorer = NewEmbeddingScorer()

		slog.Info("vision pipeline using onnx models", "dir", cfg.ModelsDir)
	} else {
		locator = NewVarianceLocator()
		slog.Info("vision pipeline using variance locator")
	}

	threshold := cfg.RecognitionThreshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	p.Processor = NewProcessor(locator, extractor, NewMatcher(scorer, threshold), g)
	p.Processor.SetLimits(cfg.MaxFacesPerPhoto, cfg.PreviewQuality)
	return p, nil
}

// EnrollFromBytes decodes an enrollment photo and extracts the signature of
// its largest face.
func (p *Pipeline) EnrollFromBytes(imageData []byte) (models.Signature, models.Region, error) {
	img, err := DecodeImage(imageData)
	if err != nil {
		return models.Signature{}, models.Region{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return p.Processor.EnrollmentSignature(img)
}

func (p *Pipeline) Close() {
	if p.onnxLocator != nil {
		p.onnxLocator.Close()
	}
	if p.embedder != nil {
		p.embedder.Close()
	}
}
