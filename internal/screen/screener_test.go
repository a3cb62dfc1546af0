package screen

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actuaryhelp/casefeed/internal/config"
	"github.com/actuaryhelp/casefeed/internal/core/domain"
	"github.com/actuaryhelp/casefeed/internal/core/llm"
	"github.com/actuaryhelp/casefeed/internal/storage"
)

type screeningUpdate struct {
	status domain.ScreeningStatus
	result *domain.ScreeningResult
}

type fakeRepository struct {
	pending           []domain.RawItem
	updates           map[string]screeningUpdate
	screenedElsewhere map[string]bool
}

func newFakeRepository(pending ...domain.RawItem) *fakeRepository {
	return &fakeRepository{
		pending: pending,
		updates: map[string]screeningUpdate{},
	}
}

func (f *fakeRepository) PendingRawItems(_ context.Context, limit int) ([]domain.RawItem, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}

	return f.pending, nil
}

func (f *fakeRepository) CountPendingRawItems(_ context.Context) (int, error) {
	return len(f.pending) - len(f.updates), nil
}

func (f *fakeRepository) UpdateRawItemScreening(_ context.Context, itemID string, status domain.ScreeningStatus, result *domain.ScreeningResult) error {
	if f.screenedElsewhere[itemID] {
		return storage.ErrAlreadyScreened
	}

	f.updates[itemID] = screeningUpdate{status: status, result: result}

	return nil
}

type stubClient struct {
	responses map[string]string
	err       error
}

func (s *stubClient) Complete(_ context.Context, req llm.Request) (string, error) {
	if s.err != nil {
		return "", s.err
	}

	for needle, response := range s.responses {
		if strings.Contains(req.Prompt, needle) {
			return response, nil
		}
	}

	return "", errors.New("no canned response")
}

func (s *stubClient) GenerateJSON(ctx context.Context, req llm.Request, target any) error {
	response, err := s.Complete(ctx, req)
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(response), target)
}

func testScreener(repo Repository, client llm.Client) *Screener {
	logger := zerolog.Nop()
	cfg := &config.Config{ScreeningBatchSize: 5, ScreeningLimit: 100}

	return New(cfg, repo, client, &logger)
}

func passingOutput() screeningOutput {
	return screeningOutput{
		Gate1Relevance: true,
		Gate1Score:     0.9,
		Gate1Reason:    "structural shift in payout mechanism",
		Gate2Novelty:   true,
		Gate2Score:     0.8,
		Gate2Reason:    "specific mechanism described",
		Classification: &struct {
			InnovationType string `json:"innovation_type"`
			InsuranceLine  string `json:"insurance_line"`
			Sentiment      string `json:"sentiment"`
		}{
			InnovationType: "product",
			InsuranceLine:  "property",
			Sentiment:      "positive",
		},
		PriorityScore: 0.95,
	}
}

func TestEvaluatePassed(t *testing.T) {
	status, result := evaluate(passingOutput())

	assert.Equal(t, domain.ScreeningPassed, status)
	require.NotNil(t, result.Classification)
	assert.Equal(t, domain.InnovationProduct, result.Classification.InnovationType)
	assert.Equal(t, domain.LineProperty, result.Classification.InsuranceLine)
	assert.Equal(t, domain.SentimentPositive, result.Classification.Sentiment)
	assert.Empty(t, result.RejectionReason)
	assert.InDelta(t, 0.95, result.PriorityScore, 1e-9)
}

func TestEvaluateGateFailures(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*screeningOutput)
		wantReason string
	}{
		{
			name: "gate1 fails with explicit rejection reason",
			mutate: func(o *screeningOutput) {
				o.Gate1Relevance = false
				o.RejectionReason = "routine promotional pricing"
			},
			wantReason: "routine promotional pricing",
		},
		{
			name: "gate1 reason used when no explicit reason",
			mutate: func(o *screeningOutput) {
				o.Gate1Relevance = false
				o.Gate1Reason = "minor coverage adjustment"
			},
			wantReason: "minor coverage adjustment",
		},
		{
			name: "gate2 reason is the last fallback",
			mutate: func(o *screeningOutput) {
				o.Gate2Novelty = false
				o.Gate1Reason = ""
				o.Gate2Reason = "vague announcement without detail"
			},
			wantReason: "vague announcement without detail",
		},
		{
			name: "missing classification rejects even when gates pass",
			mutate: func(o *screeningOutput) {
				o.Classification = nil
				o.Gate1Reason = "relevant"
			},
			wantReason: "relevant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := passingOutput()
			tt.mutate(&output)

			status, result := evaluate(output)

			assert.Equal(t, domain.ScreeningRejected, status)
			assert.Equal(t, tt.wantReason, result.RejectionReason)
		})
	}
}

func TestEvaluateInvalidEnumInvalidatesClassification(t *testing.T) {
	output := passingOutput()
	output.Classification.InsuranceLine = "crypto"

	status, result := evaluate(output)

	assert.Equal(t, domain.ScreeningRejected, status)
	assert.Nil(t, result.Classification)
}

func TestRunScreensPendingItems(t *testing.T) {
	repo := newFakeRepository(
		domain.RawItem{ID: "item-1", Title: "Parametric flood cover launched", Content: "IoT sensors trigger instant payout"},
		domain.RawItem{ID: "item-2", Title: "Insurer summer discount", Content: "20% off travel policies"},
	)
	client := &stubClient{responses: map[string]string{
		"Parametric flood cover launched": `{
			"gate1_relevance": true, "gate1_score": 0.9, "gate1_reason": "payout shift",
			"gate2_novelty": true, "gate2_score": 0.85, "gate2_reason": "specific",
			"gate3_classification": {"innovation_type": "product", "insurance_line": "property", "sentiment": "positive"},
			"priority_score": 0.9
		}`,
		"Insurer summer discount": `{
			"gate1_relevance": false, "gate1_score": 0.1, "gate1_reason": "seasonal promotion",
			"gate2_novelty": false, "gate2_score": 0.2, "gate2_reason": "",
			"gate3_classification": null,
			"priority_score": 0,
			"rejection_reason": "Routine promotional pricing."
		}`,
	}}

	stats, errLog := testScreener(repo, client).Run(context.Background())

	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Zero(t, stats.Failed)
	assert.Empty(t, errLog)

	require.Contains(t, repo.updates, "item-1")
	assert.Equal(t, domain.ScreeningPassed, repo.updates["item-1"].status)

	require.Contains(t, repo.updates, "item-2")
	assert.Equal(t, domain.ScreeningRejected, repo.updates["item-2"].status)
	assert.Equal(t, "Routine promotional pricing.", repo.updates["item-2"].result.RejectionReason)
}

func TestRunConcurrentlyScreenedItemIsSkipped(t *testing.T) {
	repo := newFakeRepository(
		domain.RawItem{ID: "item-1", Title: "Parametric flood cover launched", Content: "IoT sensors trigger instant payout"},
	)
	repo.screenedElsewhere = map[string]bool{"item-1": true}

	client := &stubClient{responses: map[string]string{
		"Parametric flood cover launched": `{
			"gate1_relevance": true, "gate1_score": 0.9, "gate1_reason": "payout shift",
			"gate2_novelty": true, "gate2_score": 0.85, "gate2_reason": "specific",
			"gate3_classification": {"innovation_type": "product", "insurance_line": "property", "sentiment": "positive"},
			"priority_score": 0.9
		}`,
	}}

	stats, errLog := testScreener(repo, client).Run(context.Background())

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Zero(t, stats.Failed)
	assert.Empty(t, errLog, "an item another run already screened must not be reported as a failure")
	assert.NotContains(t, repo.updates, "item-1")
}

func TestRunModelFailureRejectsItem(t *testing.T) {
	repo := newFakeRepository(domain.RawItem{ID: "item-1", Title: "Anything"})
	client := &stubClient{err: errors.New("provider unreachable")}

	stats, errLog := testScreener(repo, client).Run(context.Background())

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, errLog, 1)
	assert.Equal(t, "item-1", errLog[0].ItemID)

	require.Contains(t, repo.updates, "item-1")
	update := repo.updates["item-1"]
	assert.Equal(t, domain.ScreeningRejected, update.status)
	assert.Contains(t, update.result.RejectionReason, "AI screening failed")
	assert.False(t, update.result.Gate1Relevance)
	assert.Zero(t, update.result.PriorityScore)
	assert.Nil(t, update.result.Classification)
}

func TestRunNoPendingItems(t *testing.T) {
	repo := newFakeRepository()
	client := &stubClient{}

	stats, errLog := testScreener(repo, client).Run(context.Background())

	assert.Zero(t, stats.Processed)
	assert.Empty(t, errLog)
	assert.Empty(t, repo.updates)
}

func TestBuildScreeningPromptSubstitutesFields(t *testing.T) {
	item := domain.RawItem{
		Title:     "Embedded cargo insurance",
		Content:   "Integrated into logistics dashboard",
		SourceURL: "https://example.org/news/1",
		Language:  "en",
	}

	prompt := buildScreeningPrompt(item)

	assert.Contains(t, prompt, "Title: Embedded cargo insurance")
	assert.Contains(t, prompt, "Source URL: https://example.org/news/1")
	assert.Contains(t, prompt, "Language: en")
	assert.NotContains(t, prompt, "{{")
}
