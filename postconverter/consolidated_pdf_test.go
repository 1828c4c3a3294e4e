package postconverter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiffmill/config"
	"tiffmill/contracts"
	"tiffmill/converter"
	"tiffmill/eventlog"
	"tiffmill/pdf_compressor"
)

// fakeEncoder hands back fixed-size payloads without touching the
// filesystem; files named "bad*" fail to encode.
type fakeEncoder struct {
	payload int
}

func (f *fakeEncoder) EncodeJPEG(inputPath string, targetDPI, quality int, progressive bool) (converter.EncodedImage, error) {
	if strings.HasPrefix(filepath.Base(inputPath), "bad") {
		return converter.EncodedImage{}, fmt.Errorf("cannot decode %s", inputPath)
	}
	return converter.EncodedImage{
		Data:     make([]byte, f.payload),
		WidthPx:  1000,
		HeightPx: 1500,
		Gray:     true,
		DPI:      300,
	}, nil
}

func testConsolidated(payload int, maxSizeMB int) *ConsolidatedPDF {
	cfg := config.ConsolidatedPDFConfig{
		Enabled:      true,
		MaxSizeMB:    maxSizeMB,
		OutputFolder: "PDF",
	}
	return NewConsolidatedPDF(cfg, &fakeEncoder{payload: payload}, nil, 0.5,
		pdf_compressor.NewChain(), eventlog.NewStderr(false))
}

func unitWithFiles(names ...string) contracts.ProcessingUnit {
	files := make([]string, len(names))
	for i, n := range names {
		files[i] = filepath.Join("/in/box01/TIFF", n)
	}
	return contracts.ProcessingUnit{
		Name:      "box01",
		Path:      "/in/box01",
		TIFFDir:   "/in/box01/TIFF",
		TIFFFiles: files,
	}
}

func pdfFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestConsolidatedSinglePart(t *testing.T) {
	out := t.TempDir()
	c := testConsolidated(100*1024, 10)

	err := c.Run(context.Background(), unitWithFiles("a.tiff", "b.tiff", "c.tiff"), out, nil)
	require.NoError(t, err)

	names := pdfFiles(t, filepath.Join(out, "PDF"))
	assert.Equal(t, []string{"box01_consolidated.pdf"}, names)
}

func TestConsolidatedSplitsOnBudget(t *testing.T) {
	out := t.TempDir()
	// 400KB pages against a 1MB budget: two pages fit, three do not
	c := testConsolidated(400*1024, 1)

	unit := unitWithFiles("a.tiff", "b.tiff", "c.tiff", "d.tiff", "e.tiff")
	err := c.Run(context.Background(), unit, out, nil)
	require.NoError(t, err)

	dir := filepath.Join(out, "PDF")
	names := pdfFiles(t, dir)
	assert.Equal(t, []string{"box01_01.pdf", "box01_02.pdf", "box01_03.pdf"}, names)

	budget := int64(1024 * 1024)
	for _, name := range names {
		stat, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.LessOrEqual(t, stat.Size(), budget, "%s exceeds the size budget", name)
	}
}

func TestConsolidatedOversizedSinglePage(t *testing.T) {
	out := t.TempDir()
	// one page alone is over budget: it still gets written, in its own part
	c := testConsolidated(2*1024*1024, 1)

	err := c.Run(context.Background(), unitWithFiles("huge.tiff"), out, nil)
	require.NoError(t, err)

	names := pdfFiles(t, filepath.Join(out, "PDF"))
	assert.Equal(t, []string{"box01_consolidated.pdf"}, names)
}

func TestConsolidatedSkipsUnreadable(t *testing.T) {
	out := t.TempDir()
	c := testConsolidated(10*1024, 10)

	err := c.Run(context.Background(), unitWithFiles("a.tiff", "bad.tiff", "c.tiff"), out, nil)
	require.NoError(t, err, "one broken scan does not sink the unit")

	names := pdfFiles(t, filepath.Join(out, "PDF"))
	assert.Equal(t, []string{"box01_consolidated.pdf"}, names)
}

func TestConsolidatedAllUnreadableFails(t *testing.T) {
	out := t.TempDir()
	c := testConsolidated(10*1024, 10)

	err := c.Run(context.Background(), unitWithFiles("bad1.tiff", "bad2.tiff"), out, nil)
	assert.Error(t, err)

	names := pdfFiles(t, filepath.Join(out, "PDF"))
	assert.Empty(t, names, "no leftover temp parts")
}

func TestConsolidatedDisabled(t *testing.T) {
	out := t.TempDir()
	c := testConsolidated(10*1024, 10)
	c.cfg.Enabled = false

	err := c.Run(context.Background(), unitWithFiles("a.tiff"), out, nil)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "PDF"))
	assert.True(t, os.IsNotExist(err))
}
