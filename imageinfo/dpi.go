package imageinfo

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// defaultDPI is assumed for scans carrying no resolution metadata. Archive
// masters are scanned at 300 unless the directory says otherwise.
const defaultDPI = 300.0

// DPI reads XResolution/YResolution from the file's EXIF block. Resolutions
// stated per centimeter (ResolutionUnit 3) are converted to per inch. When
// no resolution is recorded, both axes fall back to 300 and the error says
// why.
func DPI(filePath string) (float64, float64, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return defaultDPI, defaultDPI, err
	}

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return defaultDPI, defaultDPI, fmt.Errorf("EXIF not found: %v", err)
	}

	im := exifcommon.NewIfdMapping()
	ti := exif.NewTagIndex()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		return defaultDPI, defaultDPI, err
	}

	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		return defaultDPI, defaultDPI, err
	}

	dpiX, dpiY := defaultDPI, defaultDPI

	if tag, err := index.RootIfd.FindTagWithName("XResolution"); err == nil {
		if val, err := tag[0].Value(); err == nil {
			if rats, ok := val.([]exifcommon.Rational); ok && len(rats) > 0 && rats[0].Denominator != 0 {
				dpiX = float64(rats[0].Numerator) / float64(rats[0].Denominator)
			}
		}
	}

	if tag, err := index.RootIfd.FindTagWithName("YResolution"); err == nil {
		if val, err := tag[0].Value(); err == nil {
			if rats, ok := val.([]exifcommon.Rational); ok && len(rats) > 0 && rats[0].Denominator != 0 {
				dpiY = float64(rats[0].Numerator) / float64(rats[0].Denominator)
			}
		}
	}

	if tag, err := index.RootIfd.FindTagWithName("ResolutionUnit"); err == nil {
		if val, err := tag[0].Value(); err == nil {
			if u, ok := val.(uint16); ok && u == 3 {
				dpiX *= 2.54
				dpiY *= 2.54
			}
		}
	}

	return dpiX, dpiY, nil
}
