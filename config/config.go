package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v2"
)

// FormatConfig is the option bag for one named output format. Numeric and
// list fields left at their zero value count as unset and are filled from
// the built-in defaults on load; an explicit 0 cannot be distinguished
// from an omitted key.
type FormatConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Quality       int      `yaml:"quality"`
	Progressive   bool     `yaml:"progressive"`
	DPI           int      `yaml:"dpi"`
	OCRLanguages  []string `yaml:"ocr_languages"`
	Searchable    bool     `yaml:"create_searchable_pdf"`
	OCRConfidence float64  `yaml:"ocr_confidence"`
}

type CompressionConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Level        string `yaml:"compression_level"`
	TargetDPI    int    `yaml:"target_dpi"`
	ImageQuality int    `yaml:"image_quality"`
}

type ConsolidatedPDFConfig struct {
	Enabled      bool              `yaml:"enabled"`
	MaxSizeMB    int               `yaml:"max_size_mb"`
	OutputFolder string            `yaml:"output_folder"`
	OCR          bool              `yaml:"ocr"`
	Compression  CompressionConfig `yaml:"compression"`
}

type METFormatConfig struct {
	Enabled              bool   `yaml:"enabled"`
	Organization         string `yaml:"organization"`
	Creator              string `yaml:"creator"`
	IncludeImageMetadata bool   `yaml:"include_image_metadata"`
	IncludeFileMetadata  bool   `yaml:"include_file_metadata"`
	IncludeProcessing    bool   `yaml:"include_processing_info"`
}

type PostConverters struct {
	ConsolidatedPDF ConsolidatedPDFConfig `yaml:"consolidated_pdf"`
	METFormat       METFormatConfig       `yaml:"met_format"`
}

type Processing struct {
	MaxWorkers        int  `yaml:"max_workers"`
	OverwriteExisting bool `yaml:"overwrite_existing"`
}

type Config struct {
	Formats      map[string]FormatConfig `yaml:"formats"`
	PostConv     PostConverters          `yaml:"postconverters"`
	Processing   Processing              `yaml:"processing"`
	Organization string                  `yaml:"organization"`
	Creator      string                  `yaml:"creator"`
}

// knownFormats are the format identifiers the registry can build.
var knownFormats = map[string]bool{
	"jpg_400":      true,
	"jpg_200":      true,
	"pdf_ocr":      true,
	"met_metadata": true,
}

// Default returns the built-in configuration, mirroring what a fresh run
// writes to disk when no config file exists.
func Default() *Config {
	return &Config{
		Formats: map[string]FormatConfig{
			"jpg_400": {Enabled: true, Quality: 95, DPI: 400},
			"jpg_200": {Enabled: true, Quality: 90, Progressive: true, DPI: 200},
			"pdf_ocr": {
				Enabled:       true,
				OCRLanguages:  []string{"spa"},
				Searchable:    true,
				OCRConfidence: 0.5,
			},
			"met_metadata": {Enabled: true},
		},
		PostConv: PostConverters{
			ConsolidatedPDF: ConsolidatedPDFConfig{
				Enabled:      true,
				MaxSizeMB:    10,
				OutputFolder: "PDF",
				OCR:          true,
				Compression: CompressionConfig{
					Enabled:      true,
					Level:        "ebook",
					TargetDPI:    200,
					ImageQuality: 85,
				},
			},
			METFormat: METFormatConfig{
				Enabled:              true,
				Organization:         "Document Preservation Unit",
				Creator:              "tiffmill",
				IncludeImageMetadata: true,
				IncludeFileMetadata:  true,
				IncludeProcessing:    true,
			},
		},
		Processing:   Processing{MaxWorkers: 4},
		Organization: "Document Preservation Unit",
		Creator:      "tiffmill",
	}
}

// Load reads the YAML config at path. A missing file yields the defaults,
// written back to path so the operator has something to edit. Any content
// or validation error is fatal: bad top-level configuration is the one
// thing that stops a run before it starts.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if werr := Save(cfg, path); werr == nil {
			fmt.Fprintf(os.Stderr, "config file created at %s\n", path)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyDefaults fills gaps in a partially specified config so operators can
// write minimal files that only override what they care about.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Formats == nil {
		cfg.Formats = def.Formats
	} else {
		for name, dfc := range def.Formats {
			fc, ok := cfg.Formats[name]
			if !ok {
				continue
			}
			if fc.Quality == 0 {
				fc.Quality = dfc.Quality
			}
			if fc.DPI == 0 {
				fc.DPI = dfc.DPI
			}
			if fc.OCRConfidence == 0 {
				fc.OCRConfidence = dfc.OCRConfidence
			}
			if len(fc.OCRLanguages) == 0 {
				fc.OCRLanguages = dfc.OCRLanguages
			}
			cfg.Formats[name] = fc
		}
	}
	if cfg.Processing.MaxWorkers == 0 {
		cfg.Processing.MaxWorkers = def.Processing.MaxWorkers
	}
	if cfg.PostConv.ConsolidatedPDF.MaxSizeMB == 0 {
		cfg.PostConv.ConsolidatedPDF.MaxSizeMB = def.PostConv.ConsolidatedPDF.MaxSizeMB
	}
	if cfg.PostConv.ConsolidatedPDF.OutputFolder == "" {
		cfg.PostConv.ConsolidatedPDF.OutputFolder = def.PostConv.ConsolidatedPDF.OutputFolder
	}
	if cfg.PostConv.ConsolidatedPDF.Compression.Level == "" {
		cfg.PostConv.ConsolidatedPDF.Compression.Level = def.PostConv.ConsolidatedPDF.Compression.Level
	}
	if cfg.PostConv.ConsolidatedPDF.Compression.TargetDPI == 0 {
		cfg.PostConv.ConsolidatedPDF.Compression.TargetDPI = def.PostConv.ConsolidatedPDF.Compression.TargetDPI
	}
	if cfg.PostConv.ConsolidatedPDF.Compression.ImageQuality == 0 {
		cfg.PostConv.ConsolidatedPDF.Compression.ImageQuality = def.PostConv.ConsolidatedPDF.Compression.ImageQuality
	}
	if cfg.PostConv.METFormat.Organization == "" {
		cfg.PostConv.METFormat.Organization = orDefault(cfg.Organization, def.Organization)
	}
	if cfg.PostConv.METFormat.Creator == "" {
		cfg.PostConv.METFormat.Creator = orDefault(cfg.Creator, def.Creator)
	}
	if cfg.Organization == "" {
		cfg.Organization = def.Organization
	}
	if cfg.Creator == "" {
		cfg.Creator = def.Creator
	}
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

var validCompressionLevels = map[string]bool{
	"screen": true, "ebook": true, "printer": true, "prepress": true,
}

// Validate checks everything that should stop a run before any file is
// touched.
func (c *Config) Validate() error {
	for name, fc := range c.Formats {
		if !knownFormats[name] {
			return fmt.Errorf("unknown format %q (known: %v)", name, sortedFormatNames())
		}
		if fc.Quality < 0 || fc.Quality > 100 {
			return fmt.Errorf("format %q: quality %d out of range 0-100", name, fc.Quality)
		}
		if fc.DPI < 0 {
			return fmt.Errorf("format %q: negative dpi %d", name, fc.DPI)
		}
		if fc.OCRConfidence < 0 || fc.OCRConfidence > 1 {
			return fmt.Errorf("format %q: ocr_confidence %.2f out of range 0-1", name, fc.OCRConfidence)
		}
	}
	if c.Processing.MaxWorkers < 1 {
		return fmt.Errorf("processing.max_workers must be >= 1, got %d", c.Processing.MaxWorkers)
	}
	if c.PostConv.ConsolidatedPDF.Enabled && c.PostConv.ConsolidatedPDF.MaxSizeMB < 1 {
		return fmt.Errorf("consolidated_pdf.max_size_mb must be >= 1, got %d", c.PostConv.ConsolidatedPDF.MaxSizeMB)
	}
	if lvl := c.PostConv.ConsolidatedPDF.Compression.Level; lvl != "" && !validCompressionLevels[lvl] {
		return fmt.Errorf("consolidated_pdf.compression.compression_level %q not one of screen/ebook/printer/prepress", lvl)
	}
	return nil
}

// EnabledFormats returns the enabled format names in stable order.
func (c *Config) EnabledFormats() []string {
	var names []string
	for name, fc := range c.Formats {
		if fc.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (c *Config) Format(name string) FormatConfig {
	return c.Formats[name]
}

func sortedFormatNames() []string {
	names := make([]string, 0, len(knownFormats))
	for n := range knownFormats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
