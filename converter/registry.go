package converter

import (
	"fmt"

	"tiffmill/config"
	"tiffmill/contracts"
	"tiffmill/eventlog"
	"tiffmill/metxml"
	"tiffmill/ocr"
)

// BuildConverters assembles one converter per enabled format. The
// returned cleanup releases the OCR engine; call it after the run. A
// broken OCR setup is reported and the searchable-PDF format degrades to
// image-only output rather than failing the run.
func BuildConverters(cfg *config.Config, log *eventlog.Logger) (map[string]contracts.Converter, func(), error) {
	encoder := NewEncoder()
	converters := make(map[string]contracts.Converter)
	cleanup := func() {}

	builder := &metxml.Builder{
		Organization:      cfg.PostConv.METFormat.Organization,
		Creator:           cfg.PostConv.METFormat.Creator,
		IncludeImage:      cfg.PostConv.METFormat.IncludeImageMetadata,
		IncludeFile:       cfg.PostConv.METFormat.IncludeFileMetadata,
		IncludeProcessing: cfg.PostConv.METFormat.IncludeProcessing,
	}

	for _, name := range cfg.EnabledFormats() {
		fc := cfg.Format(name)
		switch name {
		case "jpg_400", "jpg_200":
			converters[name] = NewJPEGConverter(name, fc.DPI, fc.Quality, fc.Progressive, encoder)
		case "pdf_ocr":
			var engine ocr.Engine
			if fc.Searchable {
				var err error
				engine, err = ocr.NewEngine(fc.OCRLanguages)
				if err != nil {
					log.Warnf("OCR unavailable, PDFs will have no text layer: %v", err)
					engine = nil
				} else {
					prev := cleanup
					cleanup = func() {
						engine.Close()
						prev()
					}
				}
			}
			converters[name] = NewPDFOCRConverter(name, fc.Quality, fc.OCRConfidence, encoder, engine, log)
		case "met_metadata":
			converters[name] = NewMETConverter(name, builder)
		default:
			cleanup()
			return nil, nil, fmt.Errorf("no converter registered for format %q", name)
		}
	}
	return converters, cleanup, nil
}
