package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actuaryhelp/casefeed/internal/config"
	"github.com/actuaryhelp/casefeed/internal/core/domain"
	"github.com/actuaryhelp/casefeed/internal/core/llm"
	"github.com/actuaryhelp/casefeed/internal/storage"
)

type fakeRepository struct {
	mu        sync.Mutex
	items     []domain.RawItem
	cases     []*domain.Case
	insertErr error
}

func (f *fakeRepository) PassedItemsWithoutCase(_ context.Context, limit int) ([]domain.RawItem, error) {
	if len(f.items) > limit {
		return f.items[:limit], nil
	}

	return f.items, nil
}

func (f *fakeRepository) InsertCase(_ context.Context, c *domain.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return f.insertErr
	}

	c.ID = "case-1"
	f.cases = append(f.cases, c)

	return nil
}

// queueClient returns canned JSON responses in order.
type queueClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
}

func (q *queueClient) enqueue(response string) {
	q.responses = append(q.responses, response)
	q.errs = append(q.errs, nil)
}

func (q *queueClient) enqueueError(err error) {
	q.responses = append(q.responses, "")
	q.errs = append(q.errs, err)
}

func (q *queueClient) Complete(_ context.Context, _ llm.Request) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.responses) == 0 {
		return "", errors.New("queue exhausted")
	}

	response, err := q.responses[0], q.errs[0]
	q.responses = q.responses[1:]
	q.errs = q.errs[1:]

	return response, err
}

func (q *queueClient) GenerateJSON(ctx context.Context, req llm.Request, target any) error {
	response, err := q.Complete(ctx, req)
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(response), target)
}

func passedItem(id string) domain.RawItem {
	return domain.RawItem{
		ID:        id,
		Title:     "Parametric flood cover launched",
		Content:   "IoT sensors trigger instant payout for Lemonade customers",
		SourceURL: "https://example.org/news/1",
		Language:  "en",
		ScreeningResult: &domain.ScreeningResult{
			Gate1Relevance: true,
			Gate2Novelty:   true,
			Classification: &domain.Classification{
				InnovationType: domain.InnovationProduct,
				InsuranceLine:  domain.LineProperty,
				Sentiment:      domain.SentimentPositive,
			},
		},
	}
}

const analysisResponse = `{
	"headline_en": "Parametric flood cover pays in hours",
	"headline_zh": "参数化洪水保险数小时内赔付",
	"analysis_en": {"layer1": "a", "layer2": "b", "layer3": "c", "layer4": "d", "layer5": "e"},
	"analysis_zh": {"layer1": "一", "layer2": "二", "layer3": "三", "layer4": "四", "layer5": "五"},
	"company_names": ["FloodFlash"],
	"quality_notes": ""
}`

func qualityResponse(score float64, ready bool) string {
	response, _ := json.Marshal(map[string]any{
		"overall_pass":            ready,
		"quality_score":           score,
		"issues":                  []any{},
		"improvement_suggestions": []string{"add concrete numbers"},
		"ready_for_publication":   ready,
	})

	return string(response)
}

func testAnalyzer(repo Repository, client llm.Client) *Analyzer {
	logger := zerolog.Nop()
	cfg := &config.Config{AnalysisBatchSize: 8, AnalysisLimit: 300}

	return New(cfg, repo, client, &logger)
}

func TestRunCreatesReadyCase(t *testing.T) {
	repo := &fakeRepository{items: []domain.RawItem{passedItem("item-1")}}
	client := &queueClient{}
	client.enqueue(analysisResponse)
	client.enqueue(qualityResponse(0.85, true))

	stats, errLog := testAnalyzer(repo, client).Run(context.Background())

	assert.Equal(t, 1, stats.Succeeded)
	assert.Empty(t, errLog)
	require.Len(t, repo.cases, 1)

	created := repo.cases[0]
	assert.Equal(t, domain.CaseReady, created.Status)
	assert.Equal(t, "item-1", created.RawItemID)
	assert.Equal(t, []string{"FloodFlash"}, created.CompanyNames)
	require.NotNil(t, created.QualityScore)
	assert.InDelta(t, 0.85, *created.QualityScore, 1e-9)
	assert.Equal(t, "global", created.Region)
}

func TestRunLowScoreButReadyBecomesPendingSupplement(t *testing.T) {
	repo := &fakeRepository{items: []domain.RawItem{passedItem("item-1")}}
	client := &queueClient{}
	client.enqueue(analysisResponse)
	client.enqueue(qualityResponse(0.4, true))

	stats, _ := testAnalyzer(repo, client).Run(context.Background())

	assert.Equal(t, 1, stats.Succeeded)
	require.Len(t, repo.cases, 1)
	assert.Equal(t, domain.CasePendingSupplement, repo.cases[0].Status)
}

func TestRunQualityGateRejectsLowNotReady(t *testing.T) {
	repo := &fakeRepository{items: []domain.RawItem{passedItem("item-1")}}
	client := &queueClient{}
	client.enqueue(analysisResponse)
	client.enqueue(qualityResponse(0.3, false))

	stats, errLog := testAnalyzer(repo, client).Run(context.Background())

	assert.Equal(t, 1, stats.Failed)
	assert.Empty(t, repo.cases)
	require.Len(t, errLog, 1)
	assert.Contains(t, errLog[0].Message, "quality check failed")
	assert.Contains(t, errLog[0].Message, "add concrete numbers")
}

func TestRunQualityCheckFailureFailsOpen(t *testing.T) {
	repo := &fakeRepository{items: []domain.RawItem{passedItem("item-1")}}
	client := &queueClient{}
	client.enqueue(analysisResponse)
	client.enqueueError(errors.New("provider unreachable"))

	stats, errLog := testAnalyzer(repo, client).Run(context.Background())

	assert.Equal(t, 1, stats.Succeeded)
	assert.Empty(t, errLog)
	require.Len(t, repo.cases, 1)
	assert.Equal(t, domain.CaseReady, repo.cases[0].Status)
	require.NotNil(t, repo.cases[0].QualityScore)
	assert.InDelta(t, 0.7, *repo.cases[0].QualityScore, 1e-9)
}

func TestRunAnalysisFailureFailsItem(t *testing.T) {
	repo := &fakeRepository{items: []domain.RawItem{passedItem("item-1")}}
	client := &queueClient{}
	client.enqueueError(errors.New("provider unreachable"))

	stats, errLog := testAnalyzer(repo, client).Run(context.Background())

	assert.Equal(t, 1, stats.Failed)
	assert.Empty(t, repo.cases)
	require.Len(t, errLog, 1)
	assert.Contains(t, errLog[0].Message, "analysis generation failed")
}

func TestRunMissingClassificationFailsItem(t *testing.T) {
	item := passedItem("item-1")
	item.ScreeningResult.Classification = nil
	repo := &fakeRepository{items: []domain.RawItem{item}}

	stats, errLog := testAnalyzer(repo, &queueClient{}).Run(context.Background())

	assert.Equal(t, 1, stats.Failed)
	require.Len(t, errLog, 1)
	assert.Contains(t, errLog[0].Message, "no classification")
}

func TestRunExistingCaseIsSkippedNotFailed(t *testing.T) {
	repo := &fakeRepository{
		items:     []domain.RawItem{passedItem("item-1")},
		insertErr: storage.ErrCaseExists,
	}
	client := &queueClient{}
	client.enqueue(analysisResponse)
	client.enqueue(qualityResponse(0.85, true))

	stats, errLog := testAnalyzer(repo, client).Run(context.Background())

	assert.Equal(t, 1, stats.Succeeded)
	assert.Empty(t, errLog)
}

func TestBuildAnalysisPromptVariants(t *testing.T) {
	input := analysisInput{
		title:          "Collapse of a telematics insurer",
		content:        "The startup withdrew its product",
		sourceURLs:     []string{"https://example.org/a", "https://example.org/b"},
		region:         "north-america",
		innovationType: domain.InnovationProduct,
		insuranceLine:  domain.LineProperty,
		sentiment:      domain.SentimentNegative,
	}

	prompt := buildAnalysisPrompt(input)

	assert.Contains(t, prompt, "failure/warning case")
	assert.Contains(t, prompt, "Root Cause Analysis")
	assert.Contains(t, prompt, "Company: Unknown")
	assert.Contains(t, prompt, "https://example.org/a\nhttps://example.org/b")

	input.sentiment = domain.SentimentPositive
	input.companyNames = []string{"Acme Insurance", "Lemonade"}

	prompt = buildAnalysisPrompt(input)

	assert.Contains(t, prompt, "innovation case")
	assert.Contains(t, prompt, "Actionable Insights")
	assert.Contains(t, prompt, "Company: Acme Insurance, Lemonade")
	assert.NotContains(t, prompt, "{{")
}
