package collect

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"

	"github.com/actuaryhelp/casefeed/internal/core/domain"
	"github.com/actuaryhelp/casefeed/internal/core/llm"
	"github.com/actuaryhelp/casefeed/internal/core/normalize"
	"github.com/actuaryhelp/casefeed/internal/platform/observability"
)

const (
	coverageWindowDays   = 7
	coverageGapThreshold = 3
	queryPauseInterval   = 2 * time.Second
	maxSearchContentLen  = 5000
	minVerifiedContent   = 100
)

// fakeDomains are hosts the model is known to hallucinate.
var fakeDomains = []string{"example.com", "test.com", "fake.com"}

type searchQuery struct {
	Query            string             `json:"query"`
	Language         string             `json:"language"`
	TargetMatrixCell *domain.MatrixCell `json:"target_matrix_cell"`
	Region           *string            `json:"region"`
	Priority         string             `json:"priority"`
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// searchCollector fills coverage gaps in the matrix with model-assisted
// web search. Every candidate URL is fetched and verified before it
// becomes a raw item.
type searchCollector struct {
	database   Repository
	fetcher    *Fetcher
	llmClient  llm.Client
	maxQueries int
	logger     *zerolog.Logger
}

func newSearchCollector(database Repository, fetcher *Fetcher, llmClient llm.Client, maxQueries int, logger *zerolog.Logger) *searchCollector {
	return &searchCollector{
		database:   database,
		fetcher:    fetcher,
		llmClient:  llmClient,
		maxQueries: maxQueries,
		logger:     logger,
	}
}

func (c *searchCollector) collectAll(ctx context.Context) Result {
	var result Result

	sources, err := c.database.ActiveSources(ctx, domain.SourceAISearch)
	if err != nil {
		result.addError(fmt.Sprintf("fetch search sources: %v", err))
		return result
	}

	if len(sources) == 0 {
		c.logger.Info().Msg("no search source configured, skipping")
		return result
	}

	source := sources[0]

	queries := c.generateQueries(ctx)
	c.logger.Info().Int("queries", len(queries)).Msg("generated search queries")

	sort.SliceStable(queries, func(i, j int) bool {
		return priorityRank(queries[i].Priority) < priorityRank(queries[j].Priority)
	})

	if len(queries) > c.maxQueries {
		queries = queries[:c.maxQueries]
	}

	for _, query := range queries {
		queryResult := c.runQuery(ctx, source, query)
		result.merge(queryResult)

		select {
		case <-ctx.Done():
			result.addError(fmt.Sprintf("search interrupted: %v", ctx.Err()))
			return result
		case <-time.After(queryPauseInterval):
		}
	}

	if err := c.database.UpdateLastChecked(ctx, source.ID, time.Now().UTC()); err != nil {
		result.addError(fmt.Sprintf("update last checked for %s: %v", source.Name, err))
	}

	return result
}

// generateQueries asks the model for gap-targeted queries; on failure
// a static default set keeps the phase running.
func (c *searchCollector) generateQueries(ctx context.Context) []searchQuery {
	gaps := c.coverageGaps(ctx)

	var response struct {
		Queries []searchQuery `json:"queries"`
	}

	err := c.llmClient.GenerateJSON(ctx, llm.Request{
		System: searchSystemPrompt,
		Prompt: fmt.Sprintf(generateQueriesPromptTemplate, gaps, coverageWindowDays),
		Mode:   llm.ModeFast,
	}, &response)
	if err != nil || len(response.Queries) == 0 {
		c.logger.Warn().Err(err).Msg("query generation failed, using default queries")
		return defaultSearchQueries()
	}

	return response.Queries
}

// coverageGaps summarizes which matrix cells fell short over the last
// window, as prompt text.
func (c *searchCollector) coverageGaps(ctx context.Context) string {
	since := time.Now().UTC().AddDate(0, 0, -coverageWindowDays)

	counts, err := c.database.RecentCaseCountByCell(ctx, since)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to compute coverage")
		return "All cells need coverage"
	}

	var gaps []string

	for _, cell := range domain.MatrixCells() {
		count := counts[cell.Key()]
		if count < coverageGapThreshold {
			gaps = append(gaps, fmt.Sprintf("- %s innovation in %s insurance (current: %d cases)",
				cell.InnovationType, cell.InsuranceLine, count))
		}
	}

	if len(gaps) == 0 {
		return "Good coverage across all cells. Focus on high-impact stories."
	}

	return "Priority gaps:\n" + strings.Join(gaps, "\n")
}

func (c *searchCollector) runQuery(ctx context.Context, source domain.Source, query searchQuery) Result {
	var result Result

	c.logger.Info().Str("query", query.Query).Str("language", query.Language).Str("priority", query.Priority).Msg("searching")

	var response struct {
		Results []searchResult `json:"results"`
	}

	err := c.llmClient.GenerateJSON(ctx, llm.Request{
		Prompt: fmt.Sprintf(webSearchPromptTemplate, query.Query),
		Mode:   llm.ModeFast,
	}, &response)
	if err != nil {
		observability.CollectorErrors.WithLabelValues(string(domain.SourceAISearch)).Inc()
		result.addError(fmt.Sprintf("error with query %q: %v", query.Query, err))

		return result
	}

	for _, sr := range response.Results {
		if !plausibleURL(sr.URL) {
			result.Skipped++
			continue
		}

		stored, err := c.verifyAndStore(ctx, source, sr)
		if err != nil {
			observability.CollectorErrors.WithLabelValues(string(domain.SourceAISearch)).Inc()
			result.addError(fmt.Sprintf("error processing result %s: %v", sr.URL, err))

			continue
		}

		if stored {
			result.Collected++
		} else {
			result.Skipped++
		}
	}

	return result
}

// verifyAndStore fetches the candidate URL and extracts readable
// content. Model search results are untrusted until a real page backs
// them up.
func (c *searchCollector) verifyAndStore(ctx context.Context, source domain.Source, sr searchResult) (bool, error) {
	body, err := c.fetcher.Fetch(ctx, sr.URL)
	if err != nil {
		// Unreachable result means a hallucinated or dead link; skip
		// without failing the query.
		c.logger.Debug().Err(err).Str("url", sr.URL).Msg("search result not fetchable")
		return false, nil
	}

	pageURL, err := url.Parse(sr.URL)
	if err != nil {
		return false, nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return false, nil
	}

	title := normalize.Clean(article.Title)
	content := normalize.Truncate(normalize.Clean(article.TextContent), maxSearchContentLen)

	if title == "" || len([]rune(content)) < minVerifiedContent {
		return false, nil
	}

	rawItem := &domain.RawItem{
		SourceID:    source.ID,
		SourceURL:   sr.URL,
		Title:       title,
		Content:     content,
		Language:    normalize.DetectLanguage(title + " " + content),
		ContentHash: normalize.Hash(content + sr.URL),
		CollectedAt: time.Now().UTC(),
	}

	return storeItem(ctx, c.database, domain.SourceAISearch, rawItem)
}

func plausibleURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	for _, fake := range fakeDomains {
		if strings.Contains(host, fake) {
			return false
		}
	}

	return true
}

func priorityRank(priority string) int {
	switch priority {
	case "high":
		return 0
	case "medium":
		return 1
	default:
		return 2
	}
}

func defaultSearchQueries() []searchQuery {
	china := "china"

	return []searchQuery{
		{Query: "parametric insurance smart contract 2026", Language: "en", TargetMatrixCell: &domain.MatrixCell{InnovationType: domain.InnovationProduct, InsuranceLine: domain.LineProperty}, Priority: "high"},
		{Query: "health insurance prevention service bundle wearable", Language: "en", TargetMatrixCell: &domain.MatrixCell{InnovationType: domain.InnovationProduct, InsuranceLine: domain.LineHealth}, Priority: "high"},
		{Query: "dynamic pricing IoT insurance real-time", Language: "en", TargetMatrixCell: &domain.MatrixCell{InnovationType: domain.InnovationProduct, InsuranceLine: domain.LineProperty}, Priority: "medium"},
		{Query: "life insurance instant underwriting AI", Language: "en", TargetMatrixCell: &domain.MatrixCell{InnovationType: domain.InnovationProduct, InsuranceLine: domain.LineLife}, Priority: "medium"},
		{Query: "embedded insurance platform partnership 2026", Language: "en", TargetMatrixCell: &domain.MatrixCell{InnovationType: domain.InnovationMarketing, InsuranceLine: domain.LineProperty}, Priority: "high"},
		{Query: "Tesla Amazon insurance non-traditional insurer", Language: "en", TargetMatrixCell: &domain.MatrixCell{InnovationType: domain.InnovationMarketing, InsuranceLine: domain.LineProperty}, Priority: "medium"},
		{Query: "参数保险 智能合约 2026", Language: "zh", TargetMatrixCell: &domain.MatrixCell{InnovationType: domain.InnovationProduct, InsuranceLine: domain.LineProperty}, Region: &china, Priority: "high"},
		{Query: "嵌入式保险 场景化 平台合作", Language: "zh", TargetMatrixCell: &domain.MatrixCell{InnovationType: domain.InnovationMarketing, InsuranceLine: domain.LineProperty}, Region: &china, Priority: "medium"},
		{Query: "健康险 预防服务 可穿戴设备", Language: "zh", TargetMatrixCell: &domain.MatrixCell{InnovationType: domain.InnovationProduct, InsuranceLine: domain.LineHealth}, Region: &china, Priority: "medium"},
	}
}
