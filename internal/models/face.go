package models

// Region is a pixel rectangle locating a candidate face in an image,
// half-open like image.Rectangle: Left <= x < Right, Top <= y < Bottom.
type Region struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func (r Region) Width() int {
	return r.Right - r.Left
}

func (r Region) Height() int {
	return r.Bottom - r.Top
}

// Within reports whether the region lies inside an image of the given size.
func (r Region) Within(width, height int) bool {
	return r.Left >= 0 && r.Top >= 0 &&
		r.Left < r.Right && r.Top < r.Bottom &&
		r.Right <= width && r.Bottom <= height
}

// Signature is the comparable representation of a face region. It is derived
// from a canonical form of the crop (fixed resize, grayscale), so signatures
// from images of differing size and format are comparable.
//
// DHash and PHash are 64-bit perceptual hashes of the canonical thumbnail.
// AspectRatio is taken from the crop before canonicalization; a well-formed
// signature always has AspectRatio > 0, so the zero value is detectably
// malformed. Vec is an optional L2-normalized embedding filled in when an
// ONNX embedder is configured.
type Signature struct {
	DHash       uint64    `json:"dhash"`
	PHash       uint64    `json:"phash"`
	AspectRatio float32   `json:"aspect_ratio"`
	Vec         []float32 `json:"vec,omitempty"`
}

// Valid reports whether the signature was produced by an extractor.
func (s Signature) Valid() bool {
	return s.AspectRatio > 0
}
