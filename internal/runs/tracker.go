// Package runs records pipeline stage executions so each invocation
// leaves a durable run record with stats and an error log.
package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/actuaryhelp/casefeed/internal/core/domain"
	"github.com/actuaryhelp/casefeed/internal/platform/observability"
	"github.com/actuaryhelp/casefeed/internal/storage"
)

// Repository is the storage surface the tracker needs.
type Repository interface {
	StartPipelineRun(ctx context.Context, pipelineName string) (*domain.PipelineRun, error)
	CompletePipelineRun(ctx context.Context, run *domain.PipelineRun) error
}

// Compile-time assertion that *storage.DB implements Repository.
var _ Repository = (*storage.DB)(nil)

// Stage is a pipeline stage entrypoint.
type Stage func(ctx context.Context) (domain.RunStats, []domain.RunError)

// Tracker wraps stage executions with run bookkeeping.
type Tracker struct {
	database Repository
	logger   *zerolog.Logger
}

func New(database Repository, logger *zerolog.Logger) *Tracker {
	return &Tracker{database: database, logger: logger}
}

// Run executes one stage under a run record. The record always reaches
// a terminal state: a panic inside the stage marks the run failed and
// is re-raised after the record is written.
func (t *Tracker) Run(ctx context.Context, name string, stage Stage) (err error) {
	run, err := t.database.StartPipelineRun(ctx, name)
	if err != nil {
		return fmt.Errorf("start pipeline run %q: %w", name, err)
	}

	t.logger.Info().Str("pipeline", name).Str("run_id", run.ID).Msg("pipeline run started")

	started := time.Now()

	defer func() {
		observability.PipelineStageDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())

		if r := recover(); r != nil {
			run.Status = domain.RunFailed
			run.ErrorLog = append(run.ErrorLog, domain.RunError{
				Message:   fmt.Sprintf("panic: %v", r),
				Timestamp: time.Now().UTC(),
			})
			t.complete(ctx, run)

			panic(r)
		}

		t.complete(ctx, run)

		if run.Status == domain.RunFailed && err == nil {
			err = fmt.Errorf("pipeline run %q failed with %d errors", name, len(run.ErrorLog))
		}
	}()

	stats, errLog := stage(ctx)

	run.Stats = stats
	run.ErrorLog = errLog
	run.Status = domain.RunCompleted

	// A run where nothing succeeded but errors piled up is a failure.
	// Processed == 0 with errors covers a workset that never loaded:
	// no item ran, so nothing was counted failed either.
	if len(errLog) > 0 && stats.Succeeded == 0 && (stats.Failed > 0 || stats.Processed == 0) {
		run.Status = domain.RunFailed
	}

	t.logger.Info().
		Str("pipeline", name).
		Str("status", string(run.Status)).
		Int("processed", stats.Processed).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("errors", len(errLog)).
		Msg("pipeline run finished")

	return nil
}

func (t *Tracker) complete(ctx context.Context, run *domain.PipelineRun) {
	now := time.Now().UTC()
	run.CompletedAt = &now

	// The record must be written even when the stage context is gone.
	if err := t.database.CompletePipelineRun(context.WithoutCancel(ctx), run); err != nil {
		t.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to complete pipeline run record")
	}
}
