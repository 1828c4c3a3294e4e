package imageinfo

import (
	"crypto/md5"
	"encoding/hex"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func writeTestTIFF(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}
	path := filepath.Join(dir, "page.tiff")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, img, nil))
	require.NoError(t, f.Close())
	return path
}

func TestProbe(t *testing.T) {
	path := writeTestTIFF(t, t.TempDir(), 64, 48)

	info, err := Probe(path)
	require.NoError(t, err)

	assert.Equal(t, 64, info.WidthPx)
	assert.Equal(t, 48, info.HeightPx)
	assert.Equal(t, 1, info.Pages)
	assert.Positive(t, info.SizeBytes)
	assert.False(t, info.Modified.IsZero())
	assert.Len(t, info.MD5, 32)
}

func TestProbeMissingFile(t *testing.T) {
	_, err := Probe(filepath.Join(t.TempDir(), "nope.tiff"))
	assert.Error(t, err)
}

func TestProbeNonTIFFStaysPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.tiff")
	require.NoError(t, os.WriteFile(path, []byte("not an image at all"), 0o644))

	info, err := Probe(path)
	require.NoError(t, err, "unreadable attributes are omitted, not fatal")
	assert.Zero(t, info.WidthPx)
	assert.Zero(t, info.Pages)
	assert.NotEmpty(t, info.MD5, "checksum works on any file")
}

func TestDPIReadsResolutionTags(t *testing.T) {
	// the fixture encoder stamps 72 dpi resolution tags into the IFD
	path := writeTestTIFF(t, t.TempDir(), 8, 8)

	dx, dy, err := DPI(path)
	require.NoError(t, err)
	assert.Equal(t, 72.0, dx)
	assert.Equal(t, 72.0, dy)
}

func TestDPIFallsBackWithoutMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.bin")
	require.NoError(t, os.WriteFile(path, []byte("no resolution here"), 0o644))

	dx, dy, err := DPI(path)
	assert.Error(t, err)
	assert.Equal(t, 300.0, dx)
	assert.Equal(t, 300.0, dy)
}

func TestMD5Checksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	content := []byte("checksum me")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	sum, err := MD5Checksum(path)
	require.NoError(t, err)

	want := md5.Sum(content)
	assert.Equal(t, hex.EncodeToString(want[:]), sum)
}
