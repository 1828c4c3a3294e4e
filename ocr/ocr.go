// Package ocr recognizes text on scanned pages so PDF outputs can carry an
// invisible, searchable text layer.
package ocr

// Region is one recognized word with its pixel bounding box on the source
// image. Coordinates follow image convention: origin top-left, Bottom > Top.
type Region struct {
	Text       string
	Left       int
	Top        int
	Right      int
	Bottom     int
	Confidence float64
}

// Engine recognizes text on one image file at a time. Implementations are
// not required to be safe for concurrent use; the pipeline gives each
// worker its own engine.
type Engine interface {
	Recognize(imagePath string) ([]Region, error)
	Close() error
}

// FilterByConfidence drops regions below the threshold (0..1 scale).
// Engines reporting percentages are normalized before this is applied.
// The input slice is left untouched.
func FilterByConfidence(regions []Region, threshold float64) []Region {
	kept := make([]Region, 0, len(regions))
	for _, r := range regions {
		if r.Confidence >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}
