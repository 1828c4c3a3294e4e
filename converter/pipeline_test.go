package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiffmill/config"
	"tiffmill/contracts"
	"tiffmill/eventlog"
)

type fakeConverter struct {
	name    string
	failOn  string
	mu      sync.Mutex
	handled []string
}

func (f *fakeConverter) Name() string      { return f.name }
func (f *fakeConverter) Extension() string { return ".out" }

func (f *fakeConverter) OutputPath(inputPath, unitOutDir string) string {
	base := filepath.Base(inputPath)
	return filepath.Join(unitOutDir, f.name, base+".out")
}

func (f *fakeConverter) Convert(job contracts.ConversionJob) error {
	f.mu.Lock()
	f.handled = append(f.handled, job.InputPath)
	f.mu.Unlock()
	if filepath.Base(job.InputPath) == f.failOn {
		return fmt.Errorf("simulated failure")
	}
	return os.WriteFile(job.OutputPath, []byte("derived"), 0o644)
}

type fakePost struct {
	mu   sync.Mutex
	runs []int // result counts seen per unit
	fail bool
}

func (f *fakePost) Name() string { return "fake_post" }

func (f *fakePost) Run(ctx context.Context, unit contracts.ProcessingUnit, unitOutDir string, results []contracts.FileResult) error {
	f.mu.Lock()
	f.runs = append(f.runs, len(results))
	f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("post failure")
	}
	return nil
}

func seedUnit(t *testing.T, root, unit string, files ...string) {
	t.Helper()
	for _, name := range files {
		path := filepath.Join(root, unit, "TIFF", name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("tiff bytes"), 0o644))
	}
}

func testPipeline(converters map[string]contracts.Converter, posts []contracts.PostConverter) *Pipeline {
	cfg := config.Default()
	cfg.Processing.MaxWorkers = 2
	return NewPipeline(cfg, eventlog.NewStderr(false), nil, converters, posts)
}

func TestPipelineRun(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	seedUnit(t, in, "box01", "a.tiff", "b.tiff")
	seedUnit(t, in, "box02", "c.tiff")

	conv := &fakeConverter{name: "fmt_a"}
	post := &fakePost{}
	p := testPipeline(map[string]contracts.Converter{"fmt_a": conv}, []contracts.PostConverter{post})

	result, err := p.Run(context.Background(), in, out)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Units)
	assert.Equal(t, 3, result.Files)
	assert.Equal(t, 3, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Equal(t, []string{"fmt_a"}, result.Formats)

	assert.FileExists(t, filepath.Join(out, "box01", "fmt_a", "a.tiff.out"))
	assert.FileExists(t, filepath.Join(out, "box02", "fmt_a", "c.tiff.out"))
	assert.Equal(t, []int{2, 1}, post.runs, "postconverter sees each unit's results")
}

func TestPipelineCountsFailures(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	seedUnit(t, in, "box01", "a.tiff", "bad.tiff")

	conv := &fakeConverter{name: "fmt_a", failOn: "bad.tiff"}
	p := testPipeline(map[string]contracts.Converter{"fmt_a": conv}, nil)

	result, err := p.Run(context.Background(), in, out)
	require.NoError(t, err, "per-file failures do not fail the run")
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
}

func TestPipelineSkipsExistingOutputs(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	seedUnit(t, in, "box01", "a.tiff")

	conv := &fakeConverter{name: "fmt_a"}
	p := testPipeline(map[string]contracts.Converter{"fmt_a": conv}, nil)

	_, err := p.Run(context.Background(), in, out)
	require.NoError(t, err)

	conv2 := &fakeConverter{name: "fmt_a"}
	p2 := testPipeline(map[string]contracts.Converter{"fmt_a": conv2}, nil)
	result, err := p2.Run(context.Background(), in, out)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Successful)
	assert.Empty(t, conv2.handled, "skipped files never reach the converter")
}

func TestPipelinePostConverterFailureIsCounted(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	seedUnit(t, in, "box01", "a.tiff")

	p := testPipeline(
		map[string]contracts.Converter{"fmt_a": &fakeConverter{name: "fmt_a"}},
		[]contracts.PostConverter{&fakePost{fail: true}},
	)

	result, err := p.Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
}

func TestPipelineEmptyInputFails(t *testing.T) {
	p := testPipeline(map[string]contracts.Converter{"fmt_a": &fakeConverter{name: "fmt_a"}}, nil)
	_, err := p.Run(context.Background(), t.TempDir(), t.TempDir())
	assert.Error(t, err)
}
