// Package collect gathers candidate documents from RSS feeds, scraped
// websites and model-assisted search, deduplicates them by content hash
// and stores them as raw items pending screening.
package collect

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/actuaryhelp/casefeed/internal/config"
	"github.com/actuaryhelp/casefeed/internal/core/domain"
	"github.com/actuaryhelp/casefeed/internal/core/llm"
	"github.com/actuaryhelp/casefeed/internal/platform/observability"
	"github.com/actuaryhelp/casefeed/internal/storage"
)

// Repository is the storage surface the collectors need.
type Repository interface {
	DueSources(ctx context.Context, sourceType domain.SourceType) ([]domain.Source, error)
	InsertRawItem(ctx context.Context, item *domain.RawItem) (bool, error)
	HasContentHash(ctx context.Context, hash string) (bool, error)
	FilterExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error)
	UpdateLastChecked(ctx context.Context, sourceID string, checkedAt time.Time) error
	RecentCaseCountByCell(ctx context.Context, since time.Time) (map[string]int, error)
	ActiveSources(ctx context.Context, sourceType domain.SourceType) ([]domain.Source, error)
}

// Compile-time assertion that *storage.DB implements Repository.
var _ Repository = (*storage.DB)(nil)

// Result aggregates the outcome of one collector phase.
type Result struct {
	Collected int
	Skipped   int
	Errors    []domain.RunError
}

func (r *Result) merge(other Result) {
	r.Collected += other.Collected
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
}

func (r *Result) addError(msg string) {
	r.Errors = append(r.Errors, domain.RunError{
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}

// Collector runs the three collection phases in order. A phase failure
// is recorded and the remaining phases still run.
type Collector struct {
	cfg      *config.Config
	database Repository
	fetcher  *Fetcher
	rss      *rssCollector
	web      *webCollector
	search   *searchCollector
	logger   *zerolog.Logger
}

func New(cfg *config.Config, database Repository, llmClient llm.Client, logger *zerolog.Logger) *Collector {
	fetcher := NewFetcher(cfg.WebFetchRPS, cfg.WebFetchTimeout)

	return &Collector{
		cfg:      cfg,
		database: database,
		fetcher:  fetcher,
		rss:      newRSSCollector(database, cfg.MaxItemsPerSource, logger),
		web:      newWebCollector(database, fetcher, cfg.MaxItemsPerSource, logger),
		search:   newSearchCollector(database, fetcher, llmClient, cfg.AISearchMaxQueries, logger),
		logger:   logger,
	}
}

// Run executes RSS collection, web scraping and model-assisted search.
func (c *Collector) Run(ctx context.Context) (domain.RunStats, []domain.RunError) {
	var total Result

	c.logger.Info().Msg("starting collection pipeline")

	rssResult := c.rss.collectAll(ctx)
	c.logPhase("rss", rssResult)
	total.merge(rssResult)

	webResult := c.web.collectAll(ctx)
	c.logPhase("web", webResult)
	total.merge(webResult)

	searchResult := c.search.collectAll(ctx)
	c.logPhase("ai_search", searchResult)
	total.merge(searchResult)

	c.logger.Info().
		Int("collected", total.Collected).
		Int("skipped", total.Skipped).
		Int("errors", len(total.Errors)).
		Msg("collection pipeline complete")

	return domain.RunStats{
		Processed: total.Collected + total.Skipped,
		Succeeded: total.Collected,
		Failed:    len(total.Errors),
	}, total.Errors
}

func (c *Collector) logPhase(phase string, result Result) {
	c.logger.Info().
		Str("phase", phase).
		Int("collected", result.Collected).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("collection phase complete")
}

// storeItem deduplicates by content hash and persists the item. The
// bool reports whether the item was stored.
func storeItem(ctx context.Context, database Repository, sourceType domain.SourceType, item *domain.RawItem) (bool, error) {
	exists, err := database.HasContentHash(ctx, item.ContentHash)
	if err != nil {
		return false, err
	}

	if exists {
		observability.ItemsDeduplicated.WithLabelValues(string(sourceType)).Inc()
		return false, nil
	}

	inserted, err := database.InsertRawItem(ctx, item)
	if err != nil {
		return false, err
	}

	if !inserted {
		observability.ItemsDeduplicated.WithLabelValues(string(sourceType)).Inc()
		return false, nil
	}

	observability.ItemsCollected.WithLabelValues(string(sourceType)).Inc()

	return true, nil
}
