//go:build !cgo

package ocr

import "fmt"

// NewEngine needs cgo for the Tesseract bindings. Without it the pipeline
// still runs; PDFs just come out without a text layer.
func NewEngine(languages []string) (Engine, error) {
	return nil, fmt.Errorf("OCR requires a cgo build with Tesseract installed")
}
