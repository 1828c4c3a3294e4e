package postconverter

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tiffmill/config"
	"tiffmill/contracts"
	"tiffmill/eventlog"
	"tiffmill/imageinfo"
	"tiffmill/metxml"
)

// METFormat writes one aggregate metadata document per output format at
// the unit root, named "<format>.xml", listing every derivative the
// format produced plus a PREMIS object section.
type METFormat struct {
	cfg     config.METFormatConfig
	builder *metxml.Builder
	log     *eventlog.Logger
}

func NewMETFormat(cfg config.METFormatConfig, builder *metxml.Builder, log *eventlog.Logger) *METFormat {
	return &METFormat{cfg: cfg, builder: builder, log: log}
}

func (m *METFormat) Name() string {
	return "met_format"
}

func (m *METFormat) Run(ctx context.Context, unit contracts.ProcessingUnit, unitOutDir string, results []contracts.FileResult) error {
	if !m.cfg.Enabled {
		return nil
	}

	byFormat := make(map[string][]metxml.OutputFile)
	for _, res := range results {
		if !res.OK() {
			continue
		}
		of := metxml.OutputFile{
			InputPath:  res.Job.InputPath,
			OutputPath: res.Job.OutputPath,
		}
		if stat, err := os.Stat(res.Job.OutputPath); err == nil {
			of.Size = stat.Size()
		}
		// image attributes only make sense for image derivatives
		if m.cfg.IncludeImageMetadata && strings.HasPrefix(res.Job.Format, "jpg") {
			if info, err := imageinfo.Probe(res.Job.InputPath); err == nil {
				of.Info = info
			}
		} else if stat, err := os.Stat(res.Job.InputPath); err == nil {
			of.Info = imageinfo.Info{SizeBytes: stat.Size(), Modified: stat.ModTime()}
		}
		byFormat[res.Job.Format] = append(byFormat[res.Job.Format], of)
	}

	formats := make([]string, 0, len(byFormat))
	for format := range byFormat {
		formats = append(formats, format)
	}
	sort.Strings(formats)

	for _, format := range formats {
		if err := ctx.Err(); err != nil {
			return err
		}
		files := byFormat[format]
		sort.Slice(files, func(i, j int) bool {
			return strings.ToLower(filepath.Base(files[i].InputPath)) < strings.ToLower(filepath.Base(files[j].InputPath))
		})
		doc := m.builder.FormatDocument(format, files)
		path := filepath.Join(unitOutDir, format+".xml")
		if err := doc.WriteFile(path); err != nil {
			return err
		}
		m.log.Debugf("wrote %s (%d files)", path, len(files))
	}
	return nil
}
