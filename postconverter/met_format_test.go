package postconverter

import (
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiffmill/config"
	"tiffmill/contracts"
	"tiffmill/eventlog"
	"tiffmill/metxml"
)

func metResult(t *testing.T, unitOutDir, format, input string, ok bool) contracts.FileResult {
	t.Helper()
	out := filepath.Join(unitOutDir, format, filepath.Base(input)+".out")
	res := contracts.FileResult{Job: contracts.ConversionJob{
		InputPath:  input,
		OutputPath: out,
		Format:     format,
		Unit:       "box01",
	}}
	if ok {
		require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))
		require.NoError(t, os.WriteFile(out, []byte("payload"), 0o644))
	} else {
		res.Err = os.ErrNotExist
	}
	return res
}

func TestMETFormatWritesOneDocumentPerFormat(t *testing.T) {
	unitOutDir := t.TempDir()
	m := NewMETFormat(
		config.METFormatConfig{Enabled: true, IncludeFileMetadata: true},
		&metxml.Builder{Organization: "org", Creator: "c", IncludeFile: true},
		eventlog.NewStderr(false),
	)

	results := []contracts.FileResult{
		metResult(t, unitOutDir, "jpg_400", "/in/box01/TIFF/b.tiff", true),
		metResult(t, unitOutDir, "jpg_400", "/in/box01/TIFF/a.tiff", true),
		metResult(t, unitOutDir, "pdf_ocr", "/in/box01/TIFF/a.tiff", true),
		metResult(t, unitOutDir, "jpg_400", "/in/box01/TIFF/broken.tiff", false),
	}

	unit := contracts.ProcessingUnit{Name: "box01"}
	require.NoError(t, m.Run(context.Background(), unit, unitOutDir, results))

	jpgDoc, err := os.ReadFile(filepath.Join(unitOutDir, "jpg_400.xml"))
	require.NoError(t, err)
	var parsed struct {
		ObjID   string `xml:"objid"`
		FileSec struct {
			Groups []struct {
				Use   string `xml:"USE,attr"`
				Files []struct {
					ID string `xml:"ID,attr"`
				} `xml:"file"`
			} `xml:"fileGrp"`
		} `xml:"fileSec"`
	}
	require.NoError(t, xml.Unmarshal(jpgDoc, &parsed))
	assert.Equal(t, "MET_JPG_400", parsed.ObjID)
	require.Len(t, parsed.FileSec.Groups, 1)
	require.Len(t, parsed.FileSec.Groups[0].Files, 2, "failed conversions are excluded")
	assert.Equal(t, "FILE_a_jpg_400", parsed.FileSec.Groups[0].Files[0].ID, "files sorted by source name")

	assert.FileExists(t, filepath.Join(unitOutDir, "pdf_ocr.xml"))
}

func TestMETFormatDisabled(t *testing.T) {
	unitOutDir := t.TempDir()
	m := NewMETFormat(config.METFormatConfig{}, &metxml.Builder{}, eventlog.NewStderr(false))

	results := []contracts.FileResult{
		metResult(t, unitOutDir, "jpg_400", "/in/box01/TIFF/a.tiff", true),
	}
	require.NoError(t, m.Run(context.Background(), contracts.ProcessingUnit{Name: "box01"}, unitOutDir, results))
	assert.NoFileExists(t, filepath.Join(unitOutDir, "jpg_400.xml"))
}
