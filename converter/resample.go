package converter

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"tiffmill/imageinfo"
)

// goEncoder is the in-process fallback: x/image TIFF decode, CatmullRom
// resampling, stdlib JPEG encode. Progressive encoding is not supported
// here and is silently dropped.
type goEncoder struct{}

func (e *goEncoder) EncodeJPEG(inputPath string, targetDPI, quality int, progressive bool) (EncodedImage, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("opening %s: %w", inputPath, err)
	}
	img, err := tiff.Decode(f)
	f.Close()
	if err != nil {
		return EncodedImage{}, fmt.Errorf("decoding %s: %w", inputPath, err)
	}

	srcDPI, _, derr := imageinfo.DPI(inputPath)
	if derr != nil || srcDPI <= 0 {
		srcDPI = 300
	}

	gray := isGray(img)

	outDPI := srcDPI
	if targetDPI > 0 && float64(targetDPI) < srcDPI {
		img = scale(img, float64(targetDPI)/srcDPI, gray)
		outDPI = float64(targetDPI)
	}
	if gray {
		img = toGray(img)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return EncodedImage{}, fmt.Errorf("encoding %s: %w", inputPath, err)
	}

	bounds := img.Bounds()
	return EncodedImage{
		Data:     buf.Bytes(),
		WidthPx:  bounds.Dx(),
		HeightPx: bounds.Dy(),
		Gray:     gray,
		DPI:      outDPI,
	}, nil
}

func clampQuality(q int) int {
	if q <= 0 {
		return 85
	}
	if q > 100 {
		return 100
	}
	return q
}

func scale(img image.Image, factor float64, gray bool) image.Image {
	bounds := img.Bounds()
	w := int(float64(bounds.Dx())*factor + 0.5)
	h := int(float64(bounds.Dy())*factor + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	var dst draw.Image
	if gray {
		dst = image.NewGray(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

func isGray(img image.Image) bool {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return true
	}
	return false
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	dst := image.NewGray(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)
	return dst
}
