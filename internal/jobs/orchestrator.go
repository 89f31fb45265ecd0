package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/SoubhikGhosh/neev-cheques-clearing/constants"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/archive"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/batch"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/common"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/extract"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/fields"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/report"
)

// Orchestrator drives a submission through unpack, bounded extraction,
// aggregation and report persistence. It is the only component that
// mutates job state; per-unit failures become error rows, never a
// failed job.
type Orchestrator struct {
	registry  *Registry
	executor  *batch.Executor
	extractor extract.UnitExtractor
	defs      []fields.Definition
	outputDir string
	log       *slog.Logger
}

// NewOrchestrator wires an Orchestrator. A nil logger falls back to
// slog.Default().
func NewOrchestrator(registry *Registry, executor *batch.Executor, extractor extract.UnitExtractor, defs []fields.Definition, outputDir string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if outputDir == "" {
		outputDir = "job_outputs"
	}
	return &Orchestrator{
		registry:  registry,
		executor:  executor,
		extractor: extractor,
		defs:      defs,
		outputDir: outputDir,
		log:       logger,
	}
}

// Submit creates a queued job for the uploaded archives and returns
// immediately; processing continues in the background regardless of
// the caller's continued attention.
func (o *Orchestrator) Submit(archives [][]byte, names []string) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	job := o.registry.Create(names, cancel)
	o.log.Info("job.submitted", "job_id", job.ID(), "archives", len(archives))
	go o.run(ctx, job, archives)
	return job
}

// Snapshot returns the current state of a job.
func (o *Orchestrator) Snapshot(id string) (Snapshot, error) {
	job, err := o.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return job.Snapshot(), nil
}

// OutputPath returns the report location of a completed job. It
// signals common.ErrNotReady while the job is still in flight.
func (o *Orchestrator) OutputPath(id string) (string, error) {
	job, err := o.registry.Get(id)
	if err != nil {
		return "", err
	}
	s := job.Snapshot()
	if s.Status != constants.JobStatusCompleted || s.OutputPath == "" {
		return "", fmt.Errorf("job %s is %s: %w", id, s.Status, common.ErrNotReady)
	}
	return s.OutputPath, nil
}

// Cancel aborts a job's in-flight waits. Units already past their last
// suspension point still land; the job then completes with whatever
// outcomes were produced.
func (o *Orchestrator) Cancel(id string) error {
	job, err := o.registry.Get(id)
	if err != nil {
		return err
	}
	job.Cancel()
	return nil
}

func (o *Orchestrator) run(ctx context.Context, job *Job, archives [][]byte) {
	defer job.Cancel() // release the context once the job is terminal
	start := time.Now()

	units, err := archive.Unpack(archives)
	if err != nil {
		o.log.Error("job.unpack_failed", "job_id", job.ID(), "error", err)
		job.fail(fmt.Sprintf("unpack archives: %v", err))
		return
	}
	if len(units) == 0 {
		o.log.Error("job.empty_upload", "job_id", job.ID())
		job.fail("no processable cheque images found in upload")
		return
	}

	job.begin(len(units))
	o.log.Info("job.processing", "job_id", job.ID(), "total_units", len(units))

	outcomes := o.executor.Run(ctx, units, o.extractor, func(extract.Outcome) {
		job.unitDone()
	})

	table := report.Aggregate(outcomes, o.defs)
	outputPath := filepath.Join(o.outputDir, fmt.Sprintf("cheque_extraction_results_%s.csv", job.ID()))
	if err := report.WriteCSV(table, outputPath); err != nil {
		o.log.Error("job.report_write_failed", "job_id", job.ID(), "path", outputPath, "error", err)
		job.fail(fmt.Sprintf("write report: %v", err))
		return
	}

	job.complete(outputPath)

	failures := 0
	for _, outcome := range outcomes {
		if outcome.Failed() {
			failures++
		}
	}
	o.log.Info("job.completed",
		"job_id", job.ID(),
		"total_units", len(units),
		"failed_units", failures,
		"output_path", outputPath,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
