package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tiffmill/config"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List output formats and their configured state",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		printFormats(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func init() {
	formatsCmd.Flags().StringP("config", "c", "tiffmill.yaml", "config file")
	rootCmd.AddCommand(formatsCmd)
}

func printFormats(out io.Writer, cfg *config.Config) {
	state := func(enabled bool) string {
		if enabled {
			return "enabled"
		}
		return "disabled"
	}

	for _, name := range []string{"jpg_400", "jpg_200", "pdf_ocr", "met_metadata"} {
		fc := cfg.Format(name)
		switch name {
		case "jpg_400", "jpg_200":
			fmt.Fprintf(out, "%-16s %-9s dpi=%d quality=%d\n", name, state(fc.Enabled), fc.DPI, fc.Quality)
		case "pdf_ocr":
			fmt.Fprintf(out, "%-16s %-9s languages=%v confidence=%.2f\n", name, state(fc.Enabled), fc.OCRLanguages, fc.OCRConfidence)
		default:
			fmt.Fprintf(out, "%-16s %s\n", name, state(fc.Enabled))
		}
	}

	cp := cfg.PostConv.ConsolidatedPDF
	fmt.Fprintf(out, "%-16s %-9s max_size_mb=%d folder=%s compression=%s\n",
		"consolidated_pdf", state(cp.Enabled), cp.MaxSizeMB, cp.OutputFolder, cp.Compression.Level)
	fmt.Fprintf(out, "%-16s %s\n", "met_format", state(cfg.PostConv.METFormat.Enabled))
}
