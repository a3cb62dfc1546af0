// Package screen runs the three-gate relevance filter over pending raw
// items: structural-shift relevance, specificity, and classification
// into the innovation matrix.
package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/actuaryhelp/casefeed/internal/config"
	"github.com/actuaryhelp/casefeed/internal/core/domain"
	"github.com/actuaryhelp/casefeed/internal/core/llm"
	"github.com/actuaryhelp/casefeed/internal/platform/observability"
	"github.com/actuaryhelp/casefeed/internal/storage"
)

const batchPauseInterval = 2 * time.Second

// Repository is the storage surface the screener needs.
type Repository interface {
	PendingRawItems(ctx context.Context, limit int) ([]domain.RawItem, error)
	CountPendingRawItems(ctx context.Context) (int, error)
	UpdateRawItemScreening(ctx context.Context, itemID string, status domain.ScreeningStatus, result *domain.ScreeningResult) error
}

// Compile-time assertion that *storage.DB implements Repository.
var _ Repository = (*storage.DB)(nil)

// screeningOutput is the JSON shape the model is instructed to return.
// Classification fields arrive as raw strings and are validated against
// the domain enums before being accepted.
type screeningOutput struct {
	Gate1Relevance bool    `json:"gate1_relevance"`
	Gate1Score     float64 `json:"gate1_score"`
	Gate1Reason    string  `json:"gate1_reason"`
	Gate2Novelty   bool    `json:"gate2_novelty"`
	Gate2Score     float64 `json:"gate2_score"`
	Gate2Reason    string  `json:"gate2_reason"`
	Classification *struct {
		InnovationType string `json:"innovation_type"`
		InsuranceLine  string `json:"insurance_line"`
		Sentiment      string `json:"sentiment"`
	} `json:"gate3_classification"`
	PriorityScore   float64 `json:"priority_score"`
	RejectionReason string  `json:"rejection_reason"`
}

// Screener evaluates pending raw items in small concurrent batches.
type Screener struct {
	cfg       *config.Config
	database  Repository
	llmClient llm.Client
	logger    *zerolog.Logger
}

func New(cfg *config.Config, database Repository, llmClient llm.Client, logger *zerolog.Logger) *Screener {
	return &Screener{
		cfg:       cfg,
		database:  database,
		llmClient: llmClient,
		logger:    logger,
	}
}

// Run screens up to the configured limit of pending items and records
// each gate decision. Items that fail the model call are rejected with
// a diagnostic reason rather than left pending forever.
func (s *Screener) Run(ctx context.Context) (domain.RunStats, []domain.RunError) {
	var (
		stats  domain.RunStats
		errLog []domain.RunError
	)

	items, err := s.database.PendingRawItems(ctx, s.cfg.ScreeningLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load pending items")

		return stats, []domain.RunError{{
			Message:   fmt.Sprintf("load pending items: %s", err),
			Timestamp: time.Now().UTC(),
		}}
	}

	if len(items) == 0 {
		s.logger.Info().Msg("no pending items to screen")
		s.updateBacklog(ctx)

		return stats, nil
	}

	s.logger.Info().Int("items", len(items)).Msg("starting screening")

	batchSize := s.cfg.ScreeningBatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		batchStats, batchErrs := s.screenBatch(ctx, items[start:end])
		stats.Processed += batchStats.Processed
		stats.Succeeded += batchStats.Succeeded
		stats.Failed += batchStats.Failed
		errLog = append(errLog, batchErrs...)

		if end < len(items) {
			select {
			case <-ctx.Done():
				errLog = append(errLog, domain.RunError{
					Message:   fmt.Sprintf("screening interrupted: %s", ctx.Err()),
					Timestamp: time.Now().UTC(),
				})
				s.updateBacklog(context.WithoutCancel(ctx))

				return stats, errLog
			case <-time.After(batchPauseInterval):
			}
		}
	}

	s.updateBacklog(ctx)

	s.logger.Info().
		Int("processed", stats.Processed).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Msg("screening complete")

	return stats, errLog
}

func (s *Screener) screenBatch(ctx context.Context, items []domain.RawItem) (domain.RunStats, []domain.RunError) {
	var (
		stats  domain.RunStats
		errLog []domain.RunError
		mu     sync.Mutex
		wg     sync.WaitGroup
	)

	for i := range items {
		wg.Add(1)

		go func(item domain.RawItem) {
			defer wg.Done()

			err := s.screenItem(ctx, item)

			mu.Lock()
			defer mu.Unlock()

			stats.Processed++

			if err != nil {
				stats.Failed++
				errLog = append(errLog, domain.RunError{
					Message:   err.Error(),
					Timestamp: time.Now().UTC(),
					ItemID:    item.ID,
				})

				return
			}

			stats.Succeeded++
		}(items[i])
	}

	wg.Wait()

	return stats, errLog
}

func (s *Screener) screenItem(ctx context.Context, item domain.RawItem) error {
	req := llm.Request{
		System: systemPrompt,
		Prompt: buildScreeningPrompt(item),
		Mode:   llm.ModeFast,
	}

	var output screeningOutput
	if err := s.llmClient.GenerateJSON(ctx, req, &output); err != nil {
		s.logger.Warn().Err(err).Str("item_id", item.ID).Msg("screening model call failed")

		result := &domain.ScreeningResult{
			RejectionReason: fmt.Sprintf("AI screening failed: %s", err),
		}

		if updateErr := s.database.UpdateRawItemScreening(ctx, item.ID, domain.ScreeningRejected, result); updateErr != nil {
			if errors.Is(updateErr, storage.ErrAlreadyScreened) {
				s.logger.Debug().Str("item_id", item.ID).Msg("item already screened by a concurrent run")
				return nil
			}

			return fmt.Errorf("store failure result for item %s: %w", item.ID, updateErr)
		}

		observability.ScreeningDecisions.WithLabelValues(string(domain.ScreeningRejected)).Inc()

		return fmt.Errorf("screen item %s: %w", item.ID, err)
	}

	status, result := evaluate(output)

	if err := s.database.UpdateRawItemScreening(ctx, item.ID, status, result); err != nil {
		if errors.Is(err, storage.ErrAlreadyScreened) {
			s.logger.Debug().Str("item_id", item.ID).Msg("item already screened by a concurrent run")
			return nil
		}

		return fmt.Errorf("store screening result for item %s: %w", item.ID, err)
	}

	observability.ScreeningDecisions.WithLabelValues(string(status)).Inc()

	s.logger.Debug().
		Str("item_id", item.ID).
		Str("status", string(status)).
		Float64("priority", result.PriorityScore).
		Msg("item screened")

	return nil
}

// evaluate turns the raw model output into a screening decision. An item
// passes only when both gates pass and the classification is present and
// valid. Rejected items carry the most specific reason available.
func evaluate(output screeningOutput) (domain.ScreeningStatus, *domain.ScreeningResult) {
	result := &domain.ScreeningResult{
		Gate1Relevance: output.Gate1Relevance,
		Gate1Score:     output.Gate1Score,
		Gate1Reason:    output.Gate1Reason,
		Gate2Novelty:   output.Gate2Novelty,
		Gate2Score:     output.Gate2Score,
		Gate2Reason:    output.Gate2Reason,
		Classification: parseClassification(output),
		PriorityScore:  output.PriorityScore,
	}

	if output.Gate1Relevance && output.Gate2Novelty && result.Classification != nil {
		return domain.ScreeningPassed, result
	}

	switch {
	case output.RejectionReason != "":
		result.RejectionReason = output.RejectionReason
	case output.Gate1Reason != "":
		result.RejectionReason = output.Gate1Reason
	default:
		result.RejectionReason = output.Gate2Reason
	}

	return domain.ScreeningRejected, result
}

// parseClassification validates the model's classification against the
// domain enums. Any unknown value invalidates the whole classification.
func parseClassification(output screeningOutput) *domain.Classification {
	if output.Classification == nil {
		return nil
	}

	innovationType, err := domain.ParseInnovationType(output.Classification.InnovationType)
	if err != nil {
		return nil
	}

	insuranceLine, err := domain.ParseInsuranceLine(output.Classification.InsuranceLine)
	if err != nil {
		return nil
	}

	sentiment, err := domain.ParseSentiment(output.Classification.Sentiment)
	if err != nil {
		return nil
	}

	return &domain.Classification{
		InnovationType: innovationType,
		InsuranceLine:  insuranceLine,
		Sentiment:      sentiment,
	}
}

func (s *Screener) updateBacklog(ctx context.Context) {
	count, err := s.database.CountPendingRawItems(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to count screening backlog")
		return
	}

	observability.ScreeningBacklog.Set(float64(count))
}
