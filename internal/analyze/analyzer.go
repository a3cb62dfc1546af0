// Package analyze turns screened items into bilingual five-layer case
// studies: one deep analysis call per item followed by a quality check
// that decides whether the case is ready for publication.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/actuaryhelp/casefeed/internal/config"
	"github.com/actuaryhelp/casefeed/internal/core/domain"
	"github.com/actuaryhelp/casefeed/internal/core/llm"
	"github.com/actuaryhelp/casefeed/internal/core/normalize"
	"github.com/actuaryhelp/casefeed/internal/platform/observability"
	"github.com/actuaryhelp/casefeed/internal/storage"
)

const (
	batchPauseInterval = 500 * time.Millisecond

	readyThreshold = 0.5
)

// Repository is the storage surface the analyzer needs.
type Repository interface {
	PassedItemsWithoutCase(ctx context.Context, limit int) ([]domain.RawItem, error)
	InsertCase(ctx context.Context, c *domain.Case) error
}

// Compile-time assertion that *storage.DB implements Repository.
var _ Repository = (*storage.DB)(nil)

// analysisResult is the JSON shape of the deep analysis call.
type analysisResult struct {
	HeadlineEN   string              `json:"headline_en"`
	HeadlineZH   string              `json:"headline_zh"`
	AnalysisEN   domain.CaseAnalysis `json:"analysis_en"`
	AnalysisZH   domain.CaseAnalysis `json:"analysis_zh"`
	CompanyNames []string            `json:"company_names"`
	QualityNotes string              `json:"quality_notes"`
}

// qualityCheckResult is the JSON shape of the quality check call.
type qualityCheckResult struct {
	OverallPass  bool    `json:"overall_pass"`
	QualityScore float64 `json:"quality_score"`
	Issues       []struct {
		CheckItem        string  `json:"check_item"`
		Passed           bool    `json:"passed"`
		IssueDescription *string `json:"issue_description"`
	} `json:"issues"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
	ReadyForPublication    bool     `json:"ready_for_publication"`
}

// Analyzer processes passed items in small concurrent batches.
type Analyzer struct {
	cfg       *config.Config
	database  Repository
	llmClient llm.Client
	logger    *zerolog.Logger
}

func New(cfg *config.Config, database Repository, llmClient llm.Client, logger *zerolog.Logger) *Analyzer {
	return &Analyzer{
		cfg:       cfg,
		database:  database,
		llmClient: llmClient,
		logger:    logger,
	}
}

// Run analyzes every passed item that has no case yet, up to the
// configured limit.
func (a *Analyzer) Run(ctx context.Context) (domain.RunStats, []domain.RunError) {
	var (
		stats  domain.RunStats
		errLog []domain.RunError
	)

	items, err := a.database.PassedItemsWithoutCase(ctx, a.cfg.AnalysisLimit)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to load items for analysis")

		return stats, []domain.RunError{{
			Message:   fmt.Sprintf("load items for analysis: %s", err),
			Timestamp: time.Now().UTC(),
		}}
	}

	if len(items) == 0 {
		a.logger.Info().Msg("no items to analyze")
		return stats, nil
	}

	a.logger.Info().Int("items", len(items)).Msg("starting analysis")

	batchSize := a.cfg.AnalysisBatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		batchStats, batchErrs := a.analyzeBatch(ctx, items[start:end])
		stats.Processed += batchStats.Processed
		stats.Succeeded += batchStats.Succeeded
		stats.Failed += batchStats.Failed
		errLog = append(errLog, batchErrs...)

		if end < len(items) {
			select {
			case <-ctx.Done():
				errLog = append(errLog, domain.RunError{
					Message:   fmt.Sprintf("analysis interrupted: %s", ctx.Err()),
					Timestamp: time.Now().UTC(),
				})

				return stats, errLog
			case <-time.After(batchPauseInterval):
			}
		}
	}

	a.logger.Info().
		Int("processed", stats.Processed).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Msg("analysis complete")

	return stats, errLog
}

func (a *Analyzer) analyzeBatch(ctx context.Context, items []domain.RawItem) (domain.RunStats, []domain.RunError) {
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

			err := a.analyzeItem(ctx, item)

			mu.Lock()
			defer mu.Unlock()

			stats.Processed++

			if err != nil {
				stats.Failed++
				observability.AnalysisCompleted.WithLabelValues("failed").Inc()
				errLog = append(errLog, domain.RunError{
					Message:   err.Error(),
					Timestamp: time.Now().UTC(),
					ItemID:    item.ID,
				})

				return
			}

			stats.Succeeded++
			observability.AnalysisCompleted.WithLabelValues("succeeded").Inc()
		}(items[i])
	}

	wg.Wait()

	return stats, errLog
}

func (a *Analyzer) analyzeItem(ctx context.Context, item domain.RawItem) error {
	if item.ScreeningResult == nil || item.ScreeningResult.Classification == nil {
		return fmt.Errorf("item %s has no classification", item.ID)
	}

	classification := item.ScreeningResult.Classification
	region := normalize.InferRegion(item.SourceURL, item.Content)
	companyNames := normalize.ExtractCompanyNames(item.Title + " " + item.Content)
	sourceURLs := []string{item.SourceURL}

	analysis, err := a.performAnalysis(ctx, item, *classification, region, companyNames, sourceURLs)
	if err != nil {
		return fmt.Errorf("analyze item %s: %w", item.ID, err)
	}

	quality := a.performQualityCheck(ctx, *analysis, sourceURLs)
	observability.QualityScore.Observe(quality.QualityScore)

	if !quality.ReadyForPublication && quality.QualityScore < readyThreshold {
		return fmt.Errorf("quality check failed for item %s: %s",
			item.ID, strings.Join(quality.ImprovementSuggestions, ", "))
	}

	status := domain.CasePendingSupplement
	if quality.QualityScore >= readyThreshold {
		status = domain.CaseReady
	}

	score := quality.QualityScore
	newCase := &domain.Case{
		RawItemID:      item.ID,
		InnovationType: classification.InnovationType,
		InsuranceLine:  classification.InsuranceLine,
		Sentiment:      classification.Sentiment,
		HeadlineEN:     analysis.HeadlineEN,
		HeadlineZH:     analysis.HeadlineZH,
		AnalysisEN:     analysis.AnalysisEN,
		AnalysisZH:     analysis.AnalysisZH,
		SourceURLs:     sourceURLs,
		CompanyNames:   analysis.CompanyNames,
		Region:         region,
		Status:         status,
		QualityScore:   &score,
	}

	if err := a.database.InsertCase(ctx, newCase); err != nil {
		// Another run already created a case for this item.
		if errors.Is(err, storage.ErrCaseExists) {
			a.logger.Debug().Str("item_id", item.ID).Msg("case already exists, skipping")
			return nil
		}

		return fmt.Errorf("insert case for item %s: %w", item.ID, err)
	}

	a.logger.Info().
		Str("item_id", item.ID).
		Str("case_id", newCase.ID).
		Str("status", string(status)).
		Float64("quality", quality.QualityScore).
		Msg("case created")

	return nil
}

func (a *Analyzer) performAnalysis(
	ctx context.Context,
	item domain.RawItem,
	classification domain.Classification,
	region string,
	companyNames []string,
	sourceURLs []string,
) (*analysisResult, error) {
	req := llm.Request{
		System: systemPrompt,
		Prompt: buildAnalysisPrompt(analysisInput{
			title:          item.Title,
			content:        item.Content,
			sourceURLs:     sourceURLs,
			companyNames:   companyNames,
			region:         region,
			innovationType: classification.InnovationType,
			insuranceLine:  classification.InsuranceLine,
			sentiment:      classification.Sentiment,
		}),
		Mode: llm.ModeCreative,
	}

	var result analysisResult
	if err := a.llmClient.GenerateJSON(ctx, req, &result); err != nil {
		return nil, fmt.Errorf("analysis generation failed: %w", err)
	}

	return &result, nil
}

// performQualityCheck fails open: when the model call errors the case
// still moves forward with a passing default score.
func (a *Analyzer) performQualityCheck(ctx context.Context, analysis analysisResult, sourceURLs []string) qualityCheckResult {
	req := llm.Request{
		System: systemPrompt,
		Prompt: buildQualityCheckPrompt(analysis, sourceURLs),
		Mode:   llm.ModeFast,
	}

	var result qualityCheckResult
	if err := a.llmClient.GenerateJSON(ctx, req, &result); err != nil {
		a.logger.Warn().Err(err).Msg("quality check call failed, using default score")

		return qualityCheckResult{
			OverallPass:         true,
			QualityScore:        0.7,
			ReadyForPublication: true,
		}
	}

	return result
}
