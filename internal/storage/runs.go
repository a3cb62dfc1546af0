package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/actuaryhelp/casefeed/internal/core/domain"
)

// StartPipelineRun opens a run record in running status and returns it.
func (db *DB) StartPipelineRun(ctx context.Context, pipelineName string) (*domain.PipelineRun, error) {
	run := &domain.PipelineRun{
		PipelineName: pipelineName,
		Status:       domain.RunRunning,
		StartedAt:    time.Now().UTC(),
	}

	var id pgtype.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO pipeline_runs (pipeline_name, status, started_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, run.PipelineName, string(run.Status), toTimestamptz(run.StartedAt)).Scan(&id)
	if err != nil {
		return nil, err
	}

	run.ID = fromUUID(id)

	return run, nil
}

// CompletePipelineRun writes the terminal state, stats and error log
// for a run.
func (db *DB) CompletePipelineRun(ctx context.Context, run *domain.PipelineRun) error {
	statsJSON, err := json.Marshal(map[string]int{
		"processed": run.Stats.Processed,
		"succeeded": run.Stats.Succeeded,
		"failed":    run.Stats.Failed,
	})
	if err != nil {
		return err
	}

	errorsJSON, err := json.Marshal(run.ErrorLog)
	if err != nil {
		return err
	}

	tag, err := db.Pool.Exec(ctx, `
		UPDATE pipeline_runs
		SET status = $2, completed_at = $3, stats = $4, errors = $5
		WHERE id = $1
	`, toUUID(run.ID), string(run.Status), toTimestamptzPtr(run.CompletedAt),
		statsJSON, errorsJSON)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// RecentPipelineRuns returns the latest run records, newest first.
func (db *DB) RecentPipelineRuns(ctx context.Context, limit int) ([]domain.PipelineRun, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, pipeline_name, status, started_at, completed_at, stats, errors
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.PipelineRun

	for rows.Next() {
		var (
			run         domain.PipelineRun
			id          pgtype.UUID
			status      string
			completedAt pgtype.Timestamptz
			statsJSON   []byte
			errorsJSON  []byte
		)

		if err := rows.Scan(&id, &run.PipelineName, &status, &run.StartedAt,
			&completedAt, &statsJSON, &errorsJSON); err != nil {
			return nil, err
		}

		run.ID = fromUUID(id)
		run.Status = domain.RunStatus(status)
		run.CompletedAt = fromTimestamptzPtr(completedAt)

		if len(statsJSON) > 0 {
			var stats map[string]int
			if err := json.Unmarshal(statsJSON, &stats); err != nil {
				return nil, err
			}

			run.Stats = domain.RunStats{
				Processed: stats["processed"],
				Succeeded: stats["succeeded"],
				Failed:    stats["failed"],
			}
		}

		if len(errorsJSON) > 0 {
			if err := json.Unmarshal(errorsJSON, &run.ErrorLog); err != nil {
				return nil, err
			}
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}
