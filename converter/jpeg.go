package converter

import (
	"fmt"
	"os"
	"path/filepath"

	"tiffmill/contracts"
	"tiffmill/files_manager"
)

// JPEGConverter writes one resized JPEG per source TIFF. The 400 and
// 200 DPI variants land in JPGHIGH and JPGLOW; any other resolution gets
// a JPG<dpi> directory.
type JPEGConverter struct {
	format      string
	dpi         int
	quality     int
	progressive bool
	encoder     Encoder
}

func NewJPEGConverter(format string, dpi, quality int, progressive bool, encoder Encoder) *JPEGConverter {
	return &JPEGConverter{
		format:      format,
		dpi:         dpi,
		quality:     quality,
		progressive: progressive,
		encoder:     encoder,
	}
}

func (c *JPEGConverter) Name() string {
	return c.format
}

func (c *JPEGConverter) Extension() string {
	return ".jpg"
}

func (c *JPEGConverter) subdir() string {
	switch c.dpi {
	case 400:
		return "JPGHIGH"
	case 200:
		return "JPGLOW"
	default:
		return fmt.Sprintf("JPG%d", c.dpi)
	}
}

func (c *JPEGConverter) OutputPath(inputPath string, unitOutDir string) string {
	name := files_manager.BaseName(inputPath) + c.Extension()
	return filepath.Join(unitOutDir, c.subdir(), name)
}

func (c *JPEGConverter) Convert(job contracts.ConversionJob) error {
	encoded, err := c.encoder.EncodeJPEG(job.InputPath, c.dpi, c.quality, c.progressive)
	if err != nil {
		return err
	}
	if err := os.WriteFile(job.OutputPath, encoded.Data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", job.OutputPath, err)
	}
	return nil
}
