package converter

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"tiffmill/contracts"
	"tiffmill/eventlog"
	"tiffmill/metxml"
	"tiffmill/ocr"
)

func writeTestTIFF(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x * y) % 256)})
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, img, nil))
	require.NoError(t, f.Close())
}

func TestGoEncoderKeepsSizeWithoutTarget(t *testing.T) {
	in := filepath.Join(t.TempDir(), "a.tiff")
	writeTestTIFF(t, in, 120, 80)

	enc, err := (&goEncoder{}).EncodeJPEG(in, 0, 90, false)
	require.NoError(t, err)

	assert.Equal(t, 120, enc.WidthPx)
	assert.Equal(t, 80, enc.HeightPx)
	assert.True(t, enc.Gray)
	assert.True(t, bytes.HasPrefix(enc.Data, []byte{0xFF, 0xD8}), "output is JPEG")
}

func TestGoEncoderDownscales(t *testing.T) {
	in := filepath.Join(t.TempDir(), "a.tiff")
	writeTestTIFF(t, in, 100, 100)

	// the fixture encoder stamps 72 dpi resolution tags, so a 36 dpi
	// target halves the dimensions
	enc, err := (&goEncoder{}).EncodeJPEG(in, 36, 90, false)
	require.NoError(t, err)

	assert.Equal(t, 50, enc.WidthPx)
	assert.Equal(t, 50, enc.HeightPx)
	assert.Equal(t, 36.0, enc.DPI)
}

func TestGoEncoderNeverUpscales(t *testing.T) {
	in := filepath.Join(t.TempDir(), "a.tiff")
	writeTestTIFF(t, in, 100, 100)

	// target above the fixture's 72 dpi: dimensions and dpi stay put
	enc, err := (&goEncoder{}).EncodeJPEG(in, 400, 90, false)
	require.NoError(t, err)

	assert.Equal(t, 100, enc.WidthPx)
	assert.Equal(t, 72.0, enc.DPI)
}

func TestJPEGConverterOutputPath(t *testing.T) {
	enc := &goEncoder{}
	cases := []struct {
		dpi    int
		subdir string
	}{
		{400, "JPGHIGH"},
		{200, "JPGLOW"},
		{300, "JPG300"},
	}
	for _, tc := range cases {
		c := NewJPEGConverter("jpg_test", tc.dpi, 90, false, enc)
		got := c.OutputPath("/in/u/TIFF/0001.tiff", "/out/u")
		assert.Equal(t, filepath.Join("/out/u", tc.subdir, "0001.jpg"), got)
	}
}

func TestJPEGConverterConvert(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scan.tiff")
	writeTestTIFF(t, in, 60, 60)

	c := NewJPEGConverter("jpg_400", 400, 95, false, &goEncoder{})
	out := c.OutputPath(in, dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))

	err := c.Convert(contracts.ConversionJob{InputPath: in, OutputPath: out, Format: "jpg_400", Unit: "u"})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte{0xFF, 0xD8}))
}

type fakeEngine struct {
	regions []ocr.Region
	err     error
}

func (f *fakeEngine) Recognize(string) ([]ocr.Region, error) { return f.regions, f.err }
func (f *fakeEngine) Close() error                           { return nil }

func TestPDFOCRConverter(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scan.tiff")
	writeTestTIFF(t, in, 200, 300)

	engine := &fakeEngine{regions: []ocr.Region{
		{Text: "archivo", Left: 10, Top: 20, Right: 100, Bottom: 45, Confidence: 0.95},
		{Text: "ruido", Left: 10, Top: 60, Right: 60, Bottom: 80, Confidence: 0.2},
	}}
	c := NewPDFOCRConverter("pdf_ocr", 90, 0.5, &goEncoder{}, engine, eventlog.NewStderr(false))

	out := c.OutputPath(in, dir)
	assert.Equal(t, filepath.Join(dir, "PDF", "scan.pdf"), out)
	require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))

	err := c.Convert(contracts.ConversionJob{InputPath: in, OutputPath: out, Format: "pdf_ocr", Unit: "u"})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestPDFOCRConverterWithoutEngine(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scan.tiff")
	writeTestTIFF(t, in, 50, 50)

	c := NewPDFOCRConverter("pdf_ocr", 90, 0.5, &goEncoder{}, nil, eventlog.NewStderr(false))
	out := filepath.Join(dir, "out.pdf")

	err := c.Convert(contracts.ConversionJob{InputPath: in, OutputPath: out})
	require.NoError(t, err, "no engine still produces an image-only PDF")
	stat, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, stat.Size())
}

func TestMETConverter(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scan.tiff")
	writeTestTIFF(t, in, 30, 30)

	builder := &metxml.Builder{Organization: "org", Creator: "c", IncludeImage: true, IncludeFile: true}
	c := NewMETConverter("met_metadata", builder)

	out := c.OutputPath(in, dir)
	assert.Equal(t, filepath.Join(dir, "METS", "scan_MET.xml"), out)

	err := c.Convert(contracts.ConversionJob{InputPath: in, OutputPath: out})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<met ")
	assert.Contains(t, string(data), "CHECKSUMTYPE=\"MD5\"")
}
