//go:build cgo

package converter

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"tiffmill/imageinfo"
)

var vipsStartup sync.Once

// vipsEncoder resamples through libvips. Considerably faster than the
// in-process path on large scans and the only one that can write
// progressive JPEGs.
type vipsEncoder struct{}

// NewEncoder returns the libvips-backed encoder on cgo builds.
func NewEncoder() Encoder {
	vipsStartup.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelError)
		vips.Startup(nil)
	})
	return &vipsEncoder{}
}

func (e *vipsEncoder) EncodeJPEG(inputPath string, targetDPI, quality int, progressive bool) (EncodedImage, error) {
	img, err := vips.NewImageFromFile(inputPath)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("loading %s: %w", inputPath, err)
	}
	defer img.Close()

	srcDPI, _, derr := imageinfo.DPI(inputPath)
	if derr != nil || srcDPI <= 0 {
		srcDPI = 300
	}

	outDPI := srcDPI
	if targetDPI > 0 && float64(targetDPI) < srcDPI {
		if err := img.Resize(float64(targetDPI)/srcDPI, vips.KernelLanczos3); err != nil {
			return EncodedImage{}, fmt.Errorf("resizing %s: %w", inputPath, err)
		}
		outDPI = float64(targetDPI)
	}

	params := vips.NewJpegExportParams()
	params.Quality = clampQuality(quality)
	params.Interlace = progressive
	params.StripMetadata = true

	data, _, err := img.ExportJpeg(params)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("encoding %s: %w", inputPath, err)
	}

	return EncodedImage{
		Data:     data,
		WidthPx:  img.Width(),
		HeightPx: img.Height(),
		Gray:     img.Bands() == 1,
		DPI:      outDPI,
	}, nil
}
