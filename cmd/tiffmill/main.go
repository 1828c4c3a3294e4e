// Package main is the tiffmill CLI: batch conversion of archival TIFF
// scans into JPEG, searchable PDF and MET metadata derivatives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"tiffmill/config"
	"tiffmill/contracts"
	"tiffmill/converter"
	"tiffmill/eventlog"
	"tiffmill/metxml"
	"tiffmill/ocr"
	"tiffmill/pdf_compressor"
	"tiffmill/postconverter"
)

var rootCmd = &cobra.Command{
	Use:   "tiffmill",
	Short: "Convert archival TIFF scans into distribution derivatives",
	Long: `tiffmill walks an input tree for folders named TIFF, treats each parent
folder as one processing unit, and converts every TIFF inside into the
enabled output formats: resized JPEGs, searchable PDFs with an invisible
OCR text layer, consolidated size-bounded PDFs and MET metadata records.`,
	RunE: runConvert,
}

func init() {
	rootCmd.Flags().StringP("input", "i", "", "input root containing TIFF folders (required)")
	rootCmd.Flags().StringP("output", "o", "", "output root (default: the input root)")
	rootCmd.Flags().StringP("config", "c", "tiffmill.yaml", "config file; created with defaults when missing")
	rootCmd.Flags().StringSliceP("formats", "f", nil, "restrict to these formats (default: all enabled in config)")
	rootCmd.Flags().IntP("workers", "w", 0, "worker count override")
	rootCmd.Flags().BoolP("verbose", "v", false, "debug logging")
	rootCmd.Flags().Bool("overwrite", false, "regenerate outputs that already exist")
	rootCmd.Flags().String("journal", "", "journal file (default: <output>/conversion_journal.log)")
	rootCmd.Flags().Bool("info", false, "print the configured formats and exit")
}

func runConvert(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	inputRoot, _ := flags.GetString("input")
	outputRoot, _ := flags.GetString("output")
	configPath, _ := flags.GetString("config")
	only, _ := flags.GetStringSlice("formats")
	workers, _ := flags.GetInt("workers")
	verbose, _ := flags.GetBool("verbose")
	overwrite, _ := flags.GetBool("overwrite")
	journalPath, _ := flags.GetString("journal")
	info, _ := flags.GetBool("info")

	if outputRoot == "" {
		outputRoot = inputRoot
	}

	log := eventlog.NewStderr(verbose)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if info {
		printFormats(cmd.OutOrStdout(), cfg)
		return nil
	}
	if inputRoot == "" {
		return fmt.Errorf("--input is required")
	}
	if workers > 0 {
		cfg.Processing.MaxWorkers = workers
	}
	if overwrite {
		cfg.Processing.OverwriteExisting = true
	}
	if len(only) > 0 {
		if err := restrictFormats(cfg, only); err != nil {
			return err
		}
	}

	converters, cleanup, err := converter.BuildConverters(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()
	if len(converters) == 0 && !cfg.PostConv.ConsolidatedPDF.Enabled {
		return fmt.Errorf("no formats enabled")
	}

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return fmt.Errorf("cannot create output root %s: %w", outputRoot, err)
	}
	if journalPath == "" {
		journalPath = filepath.Join(outputRoot, "conversion_journal.log")
	}
	journal, err := eventlog.OpenJournal(journalPath)
	if err != nil {
		return err
	}
	defer journal.Close()
	log.Debugf("journal run %s -> %s", journal.RunID(), journalPath)

	posts := buildPostConverters(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline := converter.NewPipeline(cfg, log, journal, converters, posts)
	result, err := pipeline.Run(ctx, inputRoot, outputRoot)
	if err != nil {
		return err
	}

	printSummary(cmd, result)
	if result.Failed > 0 {
		return fmt.Errorf("%d conversion(s) failed", result.Failed)
	}
	return nil
}

// restrictFormats disables everything not named on the command line.
func restrictFormats(cfg *config.Config, only []string) error {
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		if _, ok := cfg.Formats[name]; !ok && name != "consolidated_pdf" && name != "met_format" {
			return fmt.Errorf("unknown format %q", name)
		}
		wanted[name] = true
	}
	for name, fc := range cfg.Formats {
		fc.Enabled = fc.Enabled && wanted[name]
		cfg.Formats[name] = fc
	}
	cfg.PostConv.ConsolidatedPDF.Enabled = cfg.PostConv.ConsolidatedPDF.Enabled && wanted["consolidated_pdf"]
	cfg.PostConv.METFormat.Enabled = cfg.PostConv.METFormat.Enabled && wanted["met_format"]
	return nil
}

func buildPostConverters(cfg *config.Config, log *eventlog.Logger) []contracts.PostConverter {
	var posts []contracts.PostConverter

	if cfg.PostConv.ConsolidatedPDF.Enabled {
		var engine ocr.Engine
		if cfg.PostConv.ConsolidatedPDF.OCR {
			ocrCfg := cfg.Format("pdf_ocr")
			eng, err := ocr.NewEngine(ocrCfg.OCRLanguages)
			if err != nil {
				log.Warnf("OCR unavailable for consolidated PDFs: %v", err)
			} else {
				engine = eng
			}
		}
		posts = append(posts, postconverter.NewConsolidatedPDF(
			cfg.PostConv.ConsolidatedPDF,
			converter.NewEncoder(),
			engine,
			cfg.Format("pdf_ocr").OCRConfidence,
			pdf_compressor.NewChain(),
			log,
		))
	}

	if cfg.PostConv.METFormat.Enabled {
		builder := &metxml.Builder{
			Organization:      cfg.PostConv.METFormat.Organization,
			Creator:           cfg.PostConv.METFormat.Creator,
			IncludeImage:      cfg.PostConv.METFormat.IncludeImageMetadata,
			IncludeFile:       cfg.PostConv.METFormat.IncludeFileMetadata,
			IncludeProcessing: cfg.PostConv.METFormat.IncludeProcessing,
		}
		posts = append(posts, postconverter.NewMETFormat(cfg.PostConv.METFormat, builder, log))
	}
	return posts
}

func printSummary(cmd *cobra.Command, r contracts.RunResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nUnits:      %d\n", r.Units)
	fmt.Fprintf(out, "Files:      %d\n", r.Files)
	fmt.Fprintf(out, "Formats:    %v\n", r.Formats)
	fmt.Fprintf(out, "Converted:  %d\n", r.Successful)
	fmt.Fprintf(out, "Failed:     %d\n", r.Failed)
	fmt.Fprintf(out, "Skipped:    %d\n", r.Skipped)
	fmt.Fprintf(out, "Elapsed:    %.1fs\n", r.Elapsed)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
