// Package pdf_compressor shrinks consolidated PDFs after assembly. It
// tries a chain of strategies in fixed order and falls back to copying
// the input untouched when none of them is available, so a missing
// Ghostscript install never loses output.
package pdf_compressor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
)

// Options mirror the compression block of the consolidated PDF config.
type Options struct {
	Level        string // screen, ebook, printer, prepress
	TargetDPI    int
	ImageQuality int
}

// Strategy is one way of rewriting a PDF smaller.
type Strategy interface {
	Name() string
	Compress(ctx context.Context, inputPath, outputPath string, opts Options) error
}

// Chain tries strategies in order and reports which one produced the
// output. When every strategy fails the input is copied verbatim and the
// returned name is "copy".
type Chain struct {
	strategies []Strategy
}

// NewChain builds the default strategy order: Ghostscript first, then
// ImageMagick, then verbatim copy.
func NewChain() *Chain {
	return &Chain{strategies: []Strategy{
		&ghostscript{candidates: gsCandidates},
		newMagickStrategy(),
	}}
}

func (c *Chain) Compress(ctx context.Context, inputPath, outputPath string, opts Options) (string, error) {
	var lastErr error
	for _, s := range c.strategies {
		if err := s.Compress(ctx, inputPath, outputPath, opts); err == nil {
			if ok, verr := validOutput(outputPath); verr == nil && ok {
				return s.Name(), nil
			}
			lastErr = fmt.Errorf("%s produced no usable output", s.Name())
			continue
		} else {
			lastErr = err
		}
	}
	if err := copyFile(inputPath, outputPath); err != nil {
		return "", fmt.Errorf("compression failed (%v) and copy fallback failed: %w", lastErr, err)
	}
	return "copy", nil
}

func validOutput(path string) (bool, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return false, nil
	}
	return stat.Size() > 0, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// gsCandidates covers the usual binary names across platforms.
var gsCandidates = []string{"gs", "gswin64c", "gswin32c"}

type ghostscript struct {
	candidates []string
}

func (g *ghostscript) Name() string { return "ghostscript" }

func (g *ghostscript) Compress(ctx context.Context, inputPath, outputPath string, opts Options) error {
	var bin string
	for _, cand := range g.candidates {
		if path, err := exec.LookPath(cand); err == nil {
			bin = path
			break
		}
	}
	if bin == "" {
		return fmt.Errorf("ghostscript not found in PATH")
	}

	level := opts.Level
	if level == "" {
		level = "ebook"
	}
	dpi := opts.TargetDPI
	if dpi <= 0 {
		dpi = 200
	}
	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=/" + level,
		"-dDownsampleColorImages=true",
		"-dColorImageResolution=" + strconv.Itoa(dpi),
		"-dDownsampleGrayImages=true",
		"-dGrayImageResolution=" + strconv.Itoa(dpi),
		"-dDownsampleMonoImages=true",
		"-dMonoImageResolution=" + strconv.Itoa(dpi),
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-sOutputFile=" + outputPath,
	}
	if opts.ImageQuality > 0 {
		args = append(args, "-dJPEGQ="+strconv.Itoa(opts.ImageQuality))
	}
	args = append(args, inputPath)

	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ghostscript failed: %v: %s", err, out)
	}
	return nil
}
