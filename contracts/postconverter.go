package contracts

import "context"

// PostConverter runs once per processing unit after all per-file
// conversions finished, consuming their results (consolidated PDFs,
// per-format metadata).
type PostConverter interface {
	Name() string
	Run(ctx context.Context, unit ProcessingUnit, unitOutDir string, results []FileResult) error
}
