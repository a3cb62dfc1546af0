// Package review re-audits the existing case base: every non-rejected
// case gets one keep/no-keep call, and cases that no longer clear the
// structural-shift bar are rejected.
package review

import (
	"context"
	"fmt"
	"strings"
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
	casePauseInterval = 500 * time.Millisecond

	maxLayer1Len = 500
)

const reviewSystemPrompt = `You are an insurance innovation quality reviewer. Respond only with valid JSON.`

const (
	headlineENPlaceholder     = "{{HEADLINE_EN}}"
	headlineZHPlaceholder     = "{{HEADLINE_ZH}}"
	innovationTypePlaceholder = "{{INNOVATION_TYPE}}"
	insuranceLinePlaceholder  = "{{INSURANCE_LINE}}"
	layer1Placeholder         = "{{LAYER1}}"
)

const reviewPromptTemplate = `You are reviewing an existing case in an insurance innovation database.

## Case to Review
Headline (EN): {{HEADLINE_EN}}
Headline (ZH): {{HEADLINE_ZH}}
Innovation Type: {{INNOVATION_TYPE}}
Insurance Line: {{INSURANCE_LINE}}
Analysis Layer 1 (EN): {{LAYER1}}

## Question
Does this represent a STRUCTURAL SHIFT in insurance logic — a significant change in who insures, what is insured, how it's priced, who sells it, or how it pays out?

KEEP if it describes:
- A new risk category previously deemed "uninsurable" (boundary expansion)
- Dynamic/real-time pricing driven by IoT, sensors, or AI (pricing evolution)
- Insurance bundled with prevention/service delivery (prevention-as-product)
- Parametric, smart contract, or non-cash payout mechanisms (payout innovation)
- Embedded insurance in non-insurance platforms (contextual distribution)
- Non-traditional players entering insurance (distribution shift)
- AI-driven hyper-personalization or behavioral incentive loops

REJECT if it is:
- M&A / acquisition / merger news
- Market entry / expansion without specific product innovation
- Financial results / earnings / funding rounds
- Regulatory changes / policy discussions
- Industry forecasts / opinion / commentary
- Executive appointments / restructuring
- Reinsurance treaties / capital markets
- Vague strategy announcements without specific product detail

Respond with JSON:
{
  "keep": boolean,
  "reason": string (brief explanation)
}`

// Repository is the storage surface the reviewer needs.
type Repository interface {
	NonRejectedCases(ctx context.Context, limit int) ([]domain.Case, error)
	RejectCase(ctx context.Context, caseID string) error
}

// Compile-time assertion that *storage.DB implements Repository.
var _ Repository = (*storage.DB)(nil)

type reviewResult struct {
	Keep   bool   `json:"keep"`
	Reason string `json:"reason"`
}

// Reviewer walks the case base sequentially with a short pause between
// calls.
type Reviewer struct {
	cfg       *config.Config
	database  Repository
	llmClient llm.Client
	logger    *zerolog.Logger
}

func New(cfg *config.Config, database Repository, llmClient llm.Client, logger *zerolog.Logger) *Reviewer {
	return &Reviewer{
		cfg:       cfg,
		database:  database,
		llmClient: llmClient,
		logger:    logger,
	}
}

// Run reviews every non-rejected case. A failed model call skips the
// case untouched rather than rejecting on bad evidence.
func (r *Reviewer) Run(ctx context.Context) (domain.RunStats, []domain.RunError) {
	var (
		stats  domain.RunStats
		errLog []domain.RunError
	)

	cases, err := r.database.NonRejectedCases(ctx, r.cfg.ReviewLimit)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to load cases for review")

		return stats, []domain.RunError{{
			Message:   fmt.Sprintf("load cases for review: %s", err),
			Timestamp: time.Now().UTC(),
		}}
	}

	r.logger.Info().Int("cases", len(cases)).Msg("starting case review")

	var kept, rejected int

	for i := range cases {
		c := cases[i]
		stats.Processed++

		decision, err := r.reviewCase(ctx, c)

		switch {
		case err != nil:
			// Model failure: leave the case alone.
			stats.Failed++
			r.logger.Warn().Err(err).Str("case_id", c.ID).Msg("review call failed, skipping case")
			errLog = append(errLog, domain.RunError{
				Message:   fmt.Sprintf("review case %s: %s", c.ID, err),
				Timestamp: time.Now().UTC(),
			})
		case decision.Keep:
			stats.Succeeded++
			kept++
			observability.CasesReviewed.WithLabelValues("kept").Inc()
			r.logger.Info().
				Str("case_id", c.ID).
				Str("headline", normalize.Truncate(c.HeadlineEN, 60)).
				Str("reason", decision.Reason).
				Msg("case kept")
		default:
			if err := r.database.RejectCase(ctx, c.ID); err != nil {
				stats.Failed++
				errLog = append(errLog, domain.RunError{
					Message:   fmt.Sprintf("reject case %s: %s", c.ID, err),
					Timestamp: time.Now().UTC(),
				})

				break
			}

			stats.Succeeded++
			rejected++
			observability.CasesReviewed.WithLabelValues("rejected").Inc()
			r.logger.Info().
				Str("case_id", c.ID).
				Str("headline", normalize.Truncate(c.HeadlineEN, 60)).
				Str("reason", decision.Reason).
				Msg("case rejected")
		}

		if i < len(cases)-1 {
			select {
			case <-ctx.Done():
				errLog = append(errLog, domain.RunError{
					Message:   fmt.Sprintf("review interrupted: %s", ctx.Err()),
					Timestamp: time.Now().UTC(),
				})

				return stats, errLog
			case <-time.After(casePauseInterval):
			}
		}
	}

	r.logger.Info().
		Int("kept", kept).
		Int("rejected", rejected).
		Int("total", len(cases)).
		Msg("case review complete")

	return stats, errLog
}

func (r *Reviewer) reviewCase(ctx context.Context, c domain.Case) (reviewResult, error) {
	req := llm.Request{
		System: reviewSystemPrompt,
		Prompt: buildReviewPrompt(c),
		Mode:   llm.ModeFast,
	}

	var result reviewResult
	if err := r.llmClient.GenerateJSON(ctx, req, &result); err != nil {
		return reviewResult{}, err
	}

	return result, nil
}

func buildReviewPrompt(c domain.Case) string {
	prompt := strings.ReplaceAll(reviewPromptTemplate, headlineENPlaceholder, c.HeadlineEN)
	prompt = strings.ReplaceAll(prompt, headlineZHPlaceholder, c.HeadlineZH)
	prompt = strings.ReplaceAll(prompt, innovationTypePlaceholder, string(c.InnovationType))
	prompt = strings.ReplaceAll(prompt, insuranceLinePlaceholder, string(c.InsuranceLine))

	return strings.ReplaceAll(prompt, layer1Placeholder, normalize.Truncate(c.AnalysisEN.Layer1, maxLayer1Len))
}
