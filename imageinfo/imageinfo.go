// Package imageinfo collects the technical attributes that feed metadata
// records: pixel dimensions, resolution, page count, compression, checksum.
// Every probe is best-effort; a missing attribute stays at its zero value
// and never fails the caller.
package imageinfo

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	gtiff "github.com/google/tiff"
	"golang.org/x/image/tiff"
)

// Info holds whatever could be read about one source image. Zero values
// mean "unknown" and are omitted from emitted metadata.
type Info struct {
	WidthPx     int
	HeightPx    int
	DPIX        float64
	DPIY        float64
	Pages       int
	Compression string
	SizeBytes   int64
	Modified    time.Time
	MD5         string
}

// TIFF compression tag (259) values that show up in scanned material.
var compressionNames = map[uint16]string{
	1: "Uncompressed",
	2: "CCITT RLE",
	3: "CCITT G3",
	4: "CCITT G4",
	5: "LZW",
	7: "JPEG",
	8: "Deflate",
}

// Probe gathers everything it can about the file at path. Only a stat
// failure is an error; unreadable image attributes are simply left unset.
func Probe(path string) (Info, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("stat %s: %w", path, err)
	}
	info := Info{
		SizeBytes: stat.Size(),
		Modified:  stat.ModTime(),
	}

	if f, err := os.Open(path); err == nil {
		if cfg, derr := tiff.DecodeConfig(f); derr == nil {
			info.WidthPx = cfg.Width
			info.HeightPx = cfg.Height
		}
		f.Close()
	}

	if dx, dy, err := DPI(path); err == nil {
		info.DPIX = dx
		info.DPIY = dy
	}

	if pages, comp, err := probeIFDs(path); err == nil {
		info.Pages = pages
		info.Compression = comp
	}

	if sum, err := MD5Checksum(path); err == nil {
		info.MD5 = sum
	}

	return info, nil
}

// probeIFDs walks the raw TIFF directory structure: the IFD count is the
// page count of a multi-page TIFF, and tag 259 on the first IFD names the
// compression scheme. x/image/tiff only ever decodes the first page, so
// this is the only place multi-page sources are detected.
func probeIFDs(path string) (pages int, compression string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	t, err := gtiff.Parse(f, nil, nil)
	if err != nil {
		return 0, "", fmt.Errorf("parsing TIFF structure: %v", err)
	}
	ifds := t.IFDs()
	if len(ifds) == 0 {
		return 0, "", fmt.Errorf("no IFDs in %s", path)
	}

	const compressionTag = 259
	for _, fld := range ifds[0].Fields() {
		if fld.Tag().ID() != compressionTag {
			continue
		}
		v := fld.Value()
		if b := v.Bytes(); len(b) >= 2 {
			code := v.Order().Uint16(b)
			if name, ok := compressionNames[code]; ok {
				compression = name
			} else {
				compression = fmt.Sprintf("Unknown (%d)", code)
			}
		}
		break
	}
	return len(ifds), compression, nil
}

// MD5Checksum streams the file through MD5 and returns the hex digest.
func MD5Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
