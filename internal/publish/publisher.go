// Package publish selects ready cases for the day's publication run,
// balancing coverage of the innovation matrix and sentiment, and
// refreshes the frontend cache afterwards.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/actuaryhelp/casefeed/internal/config"
	"github.com/actuaryhelp/casefeed/internal/core/domain"
	"github.com/actuaryhelp/casefeed/internal/core/normalize"
	"github.com/actuaryhelp/casefeed/internal/platform/observability"
	"github.com/actuaryhelp/casefeed/internal/storage"
)

// Repository is the storage surface the publisher needs.
type Repository interface {
	ReadyCases(ctx context.Context) ([]domain.Case, error)
	PublishedSince(ctx context.Context, cutoff time.Time) ([]domain.Case, error)
	PublishCase(ctx context.Context, caseID string, publishedAt time.Time) error
}

// Compile-time assertion that *storage.DB implements Repository.
var _ Repository = (*storage.DB)(nil)

// Status summarizes today's publication progress.
type Status struct {
	PublishedToday int
	Target         int
	CoverageByCell map[string]int
}

// Publisher runs the daily selection and publication pass.
type Publisher struct {
	cfg         *config.Config
	database    Repository
	revalidator *Revalidator
	logger      *zerolog.Logger
}

func New(cfg *config.Config, database Repository, logger *zerolog.Logger) *Publisher {
	return &Publisher{
		cfg:         cfg,
		database:    database,
		revalidator: NewRevalidator(cfg.RevalidateBaseURL, cfg.RevalidateToken, logger),
		logger:      logger,
	}
}

// startOfToday is the UTC midnight boundary used for the daily quota.
func startOfToday() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Run publishes up to the remaining daily quota. Individual publish
// failures are logged and reported without aborting the rest of the
// batch.
func (p *Publisher) Run(ctx context.Context) (domain.RunStats, []domain.RunError) {
	var (
		stats  domain.RunStats
		errLog []domain.RunError
	)

	publishedToday, err := p.database.PublishedSince(ctx, startOfToday())
	if err != nil {
		return stats, []domain.RunError{{
			Message:   fmt.Sprintf("load published cases: %s", err),
			Timestamp: time.Now().UTC(),
		}}
	}

	remaining := p.cfg.DailyTarget - len(publishedToday)
	if remaining <= 0 {
		p.logger.Info().Int("published_today", len(publishedToday)).Msg("daily target already reached")
		return stats, nil
	}

	p.logger.Info().Int("remaining", remaining).Msg("starting publication")

	ready, err := p.database.ReadyCases(ctx)
	if err != nil {
		return stats, []domain.RunError{{
			Message:   fmt.Sprintf("load ready cases: %s", err),
			Timestamp: time.Now().UTC(),
		}}
	}

	selected := selectDaily(ready, publishedToday, p.cfg.DailyTarget)
	if len(selected) == 0 {
		p.logger.Warn().Msg("no ready cases available for publication")
		return stats, nil
	}

	p.logger.Info().Int("cases", len(selected)).Msg("publishing selected cases")

	now := time.Now().UTC()

	for i := range selected {
		c := &selected[i]
		stats.Processed++

		if err := p.database.PublishCase(ctx, c.ID, now); err != nil {
			// A concurrent run may have published it already.
			if errors.Is(err, storage.ErrAlreadyPublished) {
				p.logger.Debug().Str("case_id", c.ID).Msg("case already published, skipping")
				continue
			}

			stats.Failed++
			errLog = append(errLog, domain.RunError{
				Message:   fmt.Sprintf("publish case %s: %s", c.ID, err),
				Timestamp: time.Now().UTC(),
			})

			continue
		}

		stats.Succeeded++
		observability.CasesPublished.WithLabelValues(c.Cell().Key()).Inc()
		p.logger.Info().
			Str("case_id", c.ID).
			Str("cell", c.Cell().Key()).
			Str("headline", normalize.Truncate(c.HeadlineEN, 50)).
			Msg("case published")
	}

	p.revalidator.Trigger(ctx)

	p.logger.Info().
		Int("published", stats.Succeeded).
		Int("total_today", len(publishedToday)+stats.Succeeded).
		Int("target", p.cfg.DailyTarget).
		Msg("publication complete")

	return stats, errLog
}

// Status reports today's publication counts per matrix cell.
func (p *Publisher) Status(ctx context.Context) (Status, error) {
	publishedToday, err := p.database.PublishedSince(ctx, startOfToday())
	if err != nil {
		return Status{}, fmt.Errorf("load published cases: %w", err)
	}

	coverage := make(map[string]int, len(domain.MatrixCells()))

	for _, cell := range domain.MatrixCells() {
		coverage[cell.Key()] = 0
	}

	for i := range publishedToday {
		coverage[publishedToday[i].Cell().Key()]++
	}

	return Status{
		PublishedToday: len(publishedToday),
		Target:         p.cfg.DailyTarget,
		CoverageByCell: coverage,
	}, nil
}
