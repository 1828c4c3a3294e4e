//go:build cgo

package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// tesseractEngine wraps a gosseract client. One engine per worker; the
// underlying Tesseract API is not reentrant.
type tesseractEngine struct {
	client *gosseract.Client
}

// NewEngine starts a Tesseract-backed engine for the given languages
// (ISO 639-2, e.g. "spa", "eng"). Failure here means Tesseract or its
// language data is not installed; callers degrade to image-only PDFs.
func NewEngine(languages []string) (Engine, error) {
	client := gosseract.NewClient()
	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			client.Close()
			return nil, fmt.Errorf("setting OCR languages %s: %w", strings.Join(languages, "+"), err)
		}
	}
	return &tesseractEngine{client: client}, nil
}

func (e *tesseractEngine) Recognize(imagePath string) ([]Region, error) {
	if err := e.client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("loading %s for OCR: %w", imagePath, err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognizing %s: %w", imagePath, err)
	}

	regions := make([]Region, 0, len(boxes))
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		conf := box.Confidence
		if conf > 1 {
			// Tesseract reports 0..100
			conf /= 100
		}
		regions = append(regions, Region{
			Text:       word,
			Left:       box.Box.Min.X,
			Top:        box.Box.Min.Y,
			Right:      box.Box.Max.X,
			Bottom:     box.Box.Max.Y,
			Confidence: conf,
		})
	}
	return regions, nil
}

func (e *tesseractEngine) Close() error {
	return e.client.Close()
}
