package contracts

// Converter turns one source TIFF into one derivative file. Implementations
// must be safe for concurrent use across independent jobs.
type Converter interface {
	Convert(job ConversionJob) error
	Extension() string
	// OutputPath resolves the derivative path for a source file inside a
	// unit's output directory.
	OutputPath(inputPath string, unitOutDir string) string
	Name() string
}

// ConversionJob is one source file, one target path, one format identifier.
// Immutable after creation.
type ConversionJob struct {
	InputPath  string
	OutputPath string
	Format     string
	Unit       string
}

// FileResult records the outcome of one conversion attempt.
type FileResult struct {
	Job     ConversionJob
	Err     error
	Skipped bool
}

func (r FileResult) OK() bool {
	return r.Err == nil && !r.Skipped
}

// RunResult aggregates the whole run for the final summary.
type RunResult struct {
	Units      int
	Files      int
	Formats    []string
	Successful int
	Failed     int
	Skipped    int
	Elapsed    float64
}
