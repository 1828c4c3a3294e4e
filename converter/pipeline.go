package converter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tiffmill/config"
	"tiffmill/contracts"
	"tiffmill/eventlog"
	"tiffmill/files_manager"
)

// Pipeline drives one run: discover processing units, fan their files out
// to format converters on a bounded worker pool, then hand each unit's
// results to the postconverters.
type Pipeline struct {
	cfg            *config.Config
	log            *eventlog.Logger
	journal        *eventlog.Journal
	converters     map[string]contracts.Converter
	postconverters []contracts.PostConverter
}

func NewPipeline(cfg *config.Config, log *eventlog.Logger, journal *eventlog.Journal,
	converters map[string]contracts.Converter, postconverters []contracts.PostConverter) *Pipeline {
	return &Pipeline{
		cfg:            cfg,
		log:            log,
		journal:        journal,
		converters:     converters,
		postconverters: postconverters,
	}
}

func (p *Pipeline) formats() []string {
	names := make([]string, 0, len(p.converters))
	for name := range p.converters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Pipeline) record(unit, format, input, output, status, reason string) {
	if p.journal == nil {
		return
	}
	if err := p.journal.Record(unit, format, input, output, status, reason); err != nil {
		p.log.Warnf("journal write failed: %v", err)
	}
}

// Run processes every unit under inputRoot. Per-file and per-unit
// failures are logged, journaled and counted; only a broken root setup
// or an empty input tree fails the run itself.
func (p *Pipeline) Run(ctx context.Context, inputRoot, outputRoot string) (contracts.RunResult, error) {
	start := time.Now()
	result := contracts.RunResult{Formats: p.formats()}

	if err := files_manager.CheckProvidedDirs(inputRoot, outputRoot); err != nil {
		return result, err
	}
	units, err := files_manager.FindUnits(inputRoot)
	if err != nil {
		return result, err
	}
	if len(units) == 0 {
		return result, fmt.Errorf("no TIFF folders found under %s", inputRoot)
	}

	p.log.Infof("found %d processing unit(s), formats: %v", len(units), result.Formats)

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Units++
		result.Files += len(unit.TIFFFiles)
		p.processUnit(ctx, unit, outputRoot, &result)
	}

	result.Elapsed = time.Since(start).Seconds()
	p.log.Infof("done: %d ok, %d failed, %d skipped in %.1fs",
		result.Successful, result.Failed, result.Skipped, result.Elapsed)
	return result, nil
}

func (p *Pipeline) processUnit(ctx context.Context, unit contracts.ProcessingUnit, outputRoot string, result *contracts.RunResult) {
	unitOutDir, err := files_manager.EnsureUnitDir(outputRoot, unit)
	if err != nil {
		p.log.Errorf("unit %s: %v", unit.Name, err)
		result.Failed += len(unit.TIFFFiles) * len(p.converters)
		return
	}

	p.log.Infof("unit %s: %d file(s)", unit.Name, len(unit.TIFFFiles))

	var jobList []contracts.ConversionJob
	for _, file := range unit.TIFFFiles {
		for _, format := range p.formats() {
			conv := p.converters[format]
			jobList = append(jobList, contracts.ConversionJob{
				InputPath:  file,
				OutputPath: conv.OutputPath(file, unitOutDir),
				Format:     format,
				Unit:       unit.Name,
			})
		}
	}

	jobs := make(chan contracts.ConversionJob)
	resultsCh := make(chan contracts.FileResult)

	workers := p.cfg.Processing.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(jobs, resultsCh, &wg)
	}
	go func() {
		defer close(jobs)
		for _, job := range jobList {
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	results := make([]contracts.FileResult, 0, len(jobList))
	for res := range resultsCh {
		results = append(results, res)
		switch {
		case res.Skipped:
			result.Skipped++
			p.record(unit.Name, res.Job.Format, res.Job.InputPath, res.Job.OutputPath, eventlog.StatusSkipped, "output exists")
		case res.Err != nil:
			result.Failed++
			p.log.Errorf("%s [%s]: %v", res.Job.InputPath, res.Job.Format, res.Err)
			p.record(unit.Name, res.Job.Format, res.Job.InputPath, "", eventlog.StatusFailed, res.Err.Error())
		default:
			result.Successful++
			p.record(unit.Name, res.Job.Format, res.Job.InputPath, res.Job.OutputPath, eventlog.StatusOK, "")
		}
	}

	for _, post := range p.postconverters {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := post.Run(ctx, unit, unitOutDir, results); err != nil {
			result.Failed++
			p.log.Errorf("unit %s [%s]: %v", unit.Name, post.Name(), err)
			p.record(unit.Name, post.Name(), unit.TIFFDir, "", eventlog.StatusFailed, err.Error())
		} else {
			p.record(unit.Name, post.Name(), unit.TIFFDir, unitOutDir, eventlog.StatusOK, "")
		}
	}
}

func (p *Pipeline) worker(jobs <-chan contracts.ConversionJob, results chan<- contracts.FileResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		writable, err := files_manager.ShouldWrite(job.OutputPath, p.cfg.Processing.OverwriteExisting)
		if err != nil {
			results <- contracts.FileResult{Job: job, Err: err}
			continue
		}
		if !writable {
			results <- contracts.FileResult{Job: job, Skipped: true}
			continue
		}
		err = p.converters[job.Format].Convert(job)
		results <- contracts.FileResult{Job: job, Err: err}
	}
}
