//go:build cgo

package pdf_compressor

import (
	"context"
	"fmt"

	"gopkg.in/gographics/imagick.v2/imagick"
)

// magick re-rasterizes the PDF through ImageMagick. Heavier than
// Ghostscript but catches systems where only the MagickWand library is
// present.
type magick struct{}

func newMagickStrategy() Strategy { return &magick{} }

func (m *magick) Name() string { return "imagemagick" }

func (m *magick) Compress(ctx context.Context, inputPath, outputPath string, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	imagick.Initialize()
	defer imagick.Terminate()

	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	dpi := float64(opts.TargetDPI)
	if dpi <= 0 {
		dpi = 200
	}
	if err := mw.SetResolution(dpi, dpi); err != nil {
		return fmt.Errorf("setting raster resolution: %w", err)
	}
	if err := mw.ReadImage(inputPath); err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}
	quality := opts.ImageQuality
	if quality <= 0 {
		quality = 85
	}
	if err := mw.SetCompressionQuality(uint(quality)); err != nil {
		return fmt.Errorf("setting compression quality: %w", err)
	}
	if err := mw.WriteImages(outputPath, true); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	return nil
}
