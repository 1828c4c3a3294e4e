package converter

import (
	"path/filepath"

	"tiffmill/contracts"
	"tiffmill/files_manager"
	"tiffmill/imageinfo"
	"tiffmill/metxml"
)

// METConverter writes one MET metadata record per source TIFF into the
// unit's METS directory, named "<stem>_MET.xml".
type METConverter struct {
	format  string
	builder *metxml.Builder
}

func NewMETConverter(format string, builder *metxml.Builder) *METConverter {
	return &METConverter{format: format, builder: builder}
}

func (c *METConverter) Name() string {
	return c.format
}

func (c *METConverter) Extension() string {
	return ".xml"
}

func (c *METConverter) OutputPath(inputPath string, unitOutDir string) string {
	name := files_manager.BaseName(inputPath) + "_MET" + c.Extension()
	return filepath.Join(unitOutDir, "METS", name)
}

func (c *METConverter) Convert(job contracts.ConversionJob) error {
	info, err := imageinfo.Probe(job.InputPath)
	if err != nil {
		return err
	}
	doc := c.builder.FileDocument(job.InputPath, info)
	return doc.WriteFile(job.OutputPath)
}
