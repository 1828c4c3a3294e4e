package converter

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/phpdave11/gofpdf"

	"tiffmill/contracts"
	"tiffmill/eventlog"
	"tiffmill/files_manager"
	"tiffmill/ocr"
)

// PDFOCRConverter writes one searchable PDF per source TIFF: the page
// shows the scan, an invisible text layer underneath carries whatever
// the OCR engine recognized. With no engine the PDF is still produced,
// just without text.
type PDFOCRConverter struct {
	format        string
	quality       int
	minConfidence float64
	encoder       Encoder
	log           *eventlog.Logger

	// Tesseract handles one image at a time
	mu     sync.Mutex
	engine ocr.Engine
}

func NewPDFOCRConverter(format string, quality int, minConfidence float64, encoder Encoder, engine ocr.Engine, log *eventlog.Logger) *PDFOCRConverter {
	return &PDFOCRConverter{
		format:        format,
		quality:       quality,
		minConfidence: minConfidence,
		encoder:       encoder,
		engine:        engine,
		log:           log,
	}
}

func (c *PDFOCRConverter) Name() string {
	return c.format
}

func (c *PDFOCRConverter) Extension() string {
	return ".pdf"
}

func (c *PDFOCRConverter) OutputPath(inputPath string, unitOutDir string) string {
	name := files_manager.BaseName(inputPath) + c.Extension()
	return filepath.Join(unitOutDir, "PDF", name)
}

func (c *PDFOCRConverter) recognize(inputPath string) []ocr.Region {
	if c.engine == nil {
		return nil
	}
	c.mu.Lock()
	regions, err := c.engine.Recognize(inputPath)
	c.mu.Unlock()
	if err != nil {
		c.log.Warnf("OCR failed for %s, writing image-only PDF: %v", inputPath, err)
		return nil
	}
	return ocr.FilterByConfidence(regions, c.minConfidence)
}

func (c *PDFOCRConverter) Convert(job contracts.ConversionJob) error {
	encoded, err := c.encoder.EncodeJPEG(job.InputPath, 0, c.quality, false)
	if err != nil {
		return err
	}
	regions := c.recognize(job.InputPath)

	// points per pixel at the scan's resolution
	scale := 72.0 / encoded.DPI
	wPt := float64(encoded.WidthPx) * scale
	hPt := float64(encoded.HeightPx) * scale

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: wPt, Ht: hPt},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("P", gofpdf.SizeType{Wd: wPt, Ht: hPt})

	opts := gofpdf.ImageOptions{ImageType: "JPG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(encoded.Data))
	pdf.ImageOptions("page", 0, 0, wPt, hPt, false, opts, 0, "")

	if len(regions) > 0 {
		tr := pdf.UnicodeTranslatorFromDescriptor("")
		pdf.SetFont("Helvetica", "", 12)
		pdf.SetAlpha(0, "Normal")
		for _, region := range regions {
			boxH := float64(region.Bottom-region.Top) * scale
			if boxH <= 0 {
				continue
			}
			pdf.SetFontSize(boxH)
			x := float64(region.Left) * scale
			y := float64(region.Bottom) * scale
			pdf.Text(x, y, tr(region.Text))
		}
		pdf.SetAlpha(1, "Normal")
	}

	if err := pdf.OutputFileAndClose(job.OutputPath); err != nil {
		return fmt.Errorf("writing %s: %w", job.OutputPath, err)
	}
	return nil
}
