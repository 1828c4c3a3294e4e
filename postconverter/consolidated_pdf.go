// Package postconverter holds the per-unit stages that run after the
// per-file conversions: consolidated PDF assembly and per-format
// metadata aggregation.
package postconverter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tiffmill/config"
	"tiffmill/contracts"
	"tiffmill/converter"
	"tiffmill/eventlog"
	"tiffmill/ocr"
	"tiffmill/pdf_compressor"
	"tiffmill/pdf_writer"
)

// ConsolidatedPDF merges a unit's TIFFs into one or more PDFs, splitting
// whenever the next page would push a part over the size budget. Parts
// optionally get a text layer from OCR and a second compression pass.
type ConsolidatedPDF struct {
	cfg           config.ConsolidatedPDFConfig
	encoder       converter.Encoder
	minConfidence float64
	compressor    *pdf_compressor.Chain
	log           *eventlog.Logger

	mu     sync.Mutex
	engine ocr.Engine
}

func NewConsolidatedPDF(cfg config.ConsolidatedPDFConfig, encoder converter.Encoder, engine ocr.Engine,
	minConfidence float64, compressor *pdf_compressor.Chain, log *eventlog.Logger) *ConsolidatedPDF {
	return &ConsolidatedPDF{
		cfg:           cfg,
		encoder:       encoder,
		engine:        engine,
		minConfidence: minConfidence,
		compressor:    compressor,
		log:           log,
	}
}

func (c *ConsolidatedPDF) Name() string {
	return "consolidated_pdf"
}

type openPart struct {
	file   *os.File
	writer *pdf_writer.PDFWriter
}

func (c *ConsolidatedPDF) startPart(dir string) (*openPart, error) {
	f, err := os.CreateTemp(dir, "part_*.pdf.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating part file: %w", err)
	}
	w, err := pdf_writer.NewPDFWriter(f)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &openPart{file: f, writer: w}, nil
}

func (c *ConsolidatedPDF) finishPart(ctx context.Context, part *openPart) (string, error) {
	if err := part.writer.Finish(); err != nil {
		part.file.Close()
		os.Remove(part.file.Name())
		return "", err
	}
	if err := part.file.Close(); err != nil {
		os.Remove(part.file.Name())
		return "", err
	}
	path := part.file.Name()
	if c.cfg.Compression.Enabled {
		path = c.compress(ctx, path)
	}
	return path, nil
}

// compress runs the second-stage chain and keeps whichever file is
// smaller. The original is returned untouched when compression does not
// help or is unavailable.
func (c *ConsolidatedPDF) compress(ctx context.Context, path string) string {
	compressed := path + ".c"
	name, err := c.compressor.Compress(ctx, path, compressed, pdf_compressor.Options{
		Level:        c.cfg.Compression.Level,
		TargetDPI:    c.cfg.Compression.TargetDPI,
		ImageQuality: c.cfg.Compression.ImageQuality,
	})
	if err != nil {
		c.log.Warnf("compression failed, keeping uncompressed part: %v", err)
		os.Remove(compressed)
		return path
	}
	before, err1 := os.Stat(path)
	after, err2 := os.Stat(compressed)
	if err1 != nil || err2 != nil || after.Size() >= before.Size() {
		os.Remove(compressed)
		return path
	}
	c.log.Debugf("compressed part via %s: %d -> %d bytes", name, before.Size(), after.Size())
	os.Remove(path)
	return compressed
}

func (c *ConsolidatedPDF) recognize(path string) []ocr.Region {
	if !c.cfg.OCR || c.engine == nil {
		return nil
	}
	c.mu.Lock()
	regions, err := c.engine.Recognize(path)
	c.mu.Unlock()
	if err != nil {
		c.log.Warnf("OCR failed for %s in consolidated PDF: %v", path, err)
		return nil
	}
	return ocr.FilterByConfidence(regions, c.minConfidence)
}

// Run assembles the unit's consolidated PDF parts. Unreadable source
// images are skipped with a warning; the stage fails only when not a
// single page could be processed.
func (c *ConsolidatedPDF) Run(ctx context.Context, unit contracts.ProcessingUnit, unitOutDir string, _ []contracts.FileResult) error {
	if !c.cfg.Enabled {
		return nil
	}
	if len(unit.TIFFFiles) == 0 {
		return nil
	}

	outDir := filepath.Join(unitOutDir, c.cfg.OutputFolder)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", outDir, err)
	}

	budget := int64(c.cfg.MaxSizeMB) * 1024 * 1024

	quality := c.cfg.Compression.ImageQuality
	targetDPI := 0
	if c.cfg.Compression.Enabled {
		targetDPI = c.cfg.Compression.TargetDPI
	}

	var partPaths []string
	var part *openPart
	processed := 0

	abort := func(err error) error {
		if part != nil {
			part.file.Close()
			os.Remove(part.file.Name())
		}
		for _, p := range partPaths {
			os.Remove(p)
		}
		return err
	}

	for _, file := range unit.TIFFFiles {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		encoded, err := c.encoder.EncodeJPEG(file, targetDPI, quality, false)
		if err != nil {
			c.log.Warnf("skipping %s in consolidated PDF: %v", file, err)
			continue
		}
		text := c.recognize(file)

		if part == nil {
			part, err = c.startPart(outDir)
			if err != nil {
				return abort(err)
			}
		}

		cost := part.writer.EstimatePageCost(len(encoded.Data), encoded.WidthPx, encoded.HeightPx, encoded.DPI, text)
		if part.writer.PageCount() > 0 && part.writer.BytesWritten()+cost > budget {
			path, err := c.finishPart(ctx, part)
			if err != nil {
				part = nil
				return abort(err)
			}
			partPaths = append(partPaths, path)
			part, err = c.startPart(outDir)
			if err != nil {
				return abort(err)
			}
		}

		if err := part.writer.AddJPEGPage(encoded.Data, encoded.WidthPx, encoded.HeightPx, encoded.Gray, encoded.DPI, text); err != nil {
			return abort(fmt.Errorf("adding %s: %w", file, err))
		}
		processed++
	}

	if part != nil {
		path, err := c.finishPart(ctx, part)
		part = nil
		if err != nil {
			return abort(err)
		}
		partPaths = append(partPaths, path)
	}

	if processed == 0 {
		return abort(fmt.Errorf("no readable images in %s", unit.TIFFDir))
	}

	return c.renameParts(unit.Name, outDir, partPaths)
}

// renameParts applies the naming rule once the part count is known: a
// single part is "<unit>_consolidated.pdf", multiple parts are
// "<unit>_01.pdf", "<unit>_02.pdf", ...
func (c *ConsolidatedPDF) renameParts(unitName, outDir string, partPaths []string) error {
	for i, tmp := range partPaths {
		var name string
		if len(partPaths) == 1 {
			name = fmt.Sprintf("%s_consolidated.pdf", unitName)
		} else {
			name = fmt.Sprintf("%s_%02d.pdf", unitName, i+1)
		}
		final := filepath.Join(outDir, name)
		if err := os.Rename(tmp, final); err != nil {
			return fmt.Errorf("renaming part %d: %w", i+1, err)
		}
		c.log.Infof("wrote %s", final)
	}
	return nil
}
