//go:build !cgo

package pdf_compressor

import (
	"context"
	"fmt"
)

type magick struct{}

func newMagickStrategy() Strategy { return &magick{} }

func (m *magick) Name() string { return "imagemagick" }

func (m *magick) Compress(ctx context.Context, inputPath, outputPath string, opts Options) error {
	return fmt.Errorf("imagemagick compression requires a cgo build")
}
