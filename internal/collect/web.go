package collect

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/actuaryhelp/casefeed/internal/core/domain"
	"github.com/actuaryhelp/casefeed/internal/core/normalize"
	"github.com/actuaryhelp/casefeed/internal/platform/observability"
	"github.com/actuaryhelp/casefeed/internal/platform/retry"
)

const (
	minScrapedTitleLength = 10
	sitePauseInterval     = 2 * time.Second
)

// Selector cascades tried in order when a source carries no scraping
// configuration.
var (
	defaultArticleSelectors = []string{
		"article", ".article", ".news-item", ".post", ".entry", ".story",
		"[class*='article']", "[class*='news']", ".list-item", "li.item",
	}
	defaultTitleSelectors   = []string{"h1", "h2", "h3", ".title", "a.title", "[class*='title']", "a"}
	defaultContentSelectors = []string{".summary", ".excerpt", ".description", "p", ".content"}
)

type scraperConfig struct {
	articleSelector string
	titleSelector   string
	contentSelector string
	baseURL         string
}

type scrapedItem struct {
	title   string
	url     string
	content string
}

type webCollector struct {
	database Repository
	fetcher  *Fetcher
	maxItems int
	logger   *zerolog.Logger
}

func newWebCollector(database Repository, fetcher *Fetcher, maxItems int, logger *zerolog.Logger) *webCollector {
	return &webCollector{
		database: database,
		fetcher:  fetcher,
		maxItems: maxItems,
		logger:   logger,
	}
}

func (c *webCollector) collectAll(ctx context.Context) Result {
	var result Result

	sources, err := c.database.DueSources(ctx, domain.SourceWebsite)
	if err != nil {
		result.addError(fmt.Sprintf("fetch website sources: %v", err))
		return result
	}

	if len(sources) == 0 {
		c.logger.Info().Msg("no website sources due for checking")
		return result
	}

	for i, source := range sources {
		sourceResult := c.collectSource(ctx, source)
		result.merge(sourceResult)

		if i < len(sources)-1 {
			select {
			case <-ctx.Done():
				result.addError(fmt.Sprintf("web collection interrupted: %v", ctx.Err()))
				return result
			case <-time.After(sitePauseInterval):
			}
		}
	}

	return result
}

func (c *webCollector) collectSource(ctx context.Context, source domain.Source) Result {
	var result Result

	c.logger.Info().Str("source", source.Name).Str("url", source.URL).Msg("scraping website")

	var body []byte

	retryCfg := retry.DefaultConfig()
	retryCfg.OnRetry = func(attempt int, err error) {
		c.logger.Warn().Err(err).Str("source", source.Name).Int("attempt", attempt).Msg("page fetch failed, retrying")
	}

	err := retry.Do(ctx, retryCfg, func() error {
		var fetchErr error

		body, fetchErr = c.fetcher.Fetch(ctx, source.URL)

		return fetchErr
	})
	if err != nil {
		observability.CollectorErrors.WithLabelValues(string(domain.SourceWebsite)).Inc()
		result.addError(fmt.Sprintf("failed to scrape %s: %v", source.Name, err))

		return result
	}

	items, err := scrapeListing(body, configForSource(source))
	if err != nil {
		observability.CollectorErrors.WithLabelValues(string(domain.SourceWebsite)).Inc()
		result.addError(fmt.Sprintf("parse %s: %v", source.Name, err))

		return result
	}

	if len(items) > c.maxItems {
		items = items[:c.maxItems]
	}

	// One listing page yields a whole batch of candidates, so known
	// hashes are filtered in a single round-trip before storing.
	existing, err := c.database.FilterExistingHashes(ctx, itemHashes(items))
	if err != nil {
		result.addError(fmt.Sprintf("filter hashes for %s: %v", source.Name, err))

		existing = map[string]struct{}{}
	}

	for _, item := range items {
		if _, ok := existing[scrapedItemHash(item)]; ok {
			observability.ItemsDeduplicated.WithLabelValues(string(domain.SourceWebsite)).Inc()
			result.Skipped++

			continue
		}

		stored, err := c.processItem(ctx, source, item)
		if err != nil {
			observability.CollectorErrors.WithLabelValues(string(domain.SourceWebsite)).Inc()
			result.addError(fmt.Sprintf("error processing item %q: %v", truncateForLog(item.title), err))

			continue
		}

		if stored {
			result.Collected++
		} else {
			result.Skipped++
		}
	}

	if err := c.database.UpdateLastChecked(ctx, source.ID, time.Now().UTC()); err != nil {
		result.addError(fmt.Sprintf("update last checked for %s: %v", source.Name, err))
	}

	c.logger.Info().
		Str("source", source.Name).
		Int("collected", result.Collected).
		Int("skipped", result.Skipped).
		Msg("website source complete")

	return result
}

func (c *webCollector) processItem(ctx context.Context, source domain.Source, item scrapedItem) (bool, error) {
	title := normalize.Clean(item.title)
	content := normalize.Clean(item.content)

	// Listing fragments and nav links produce near-empty titles.
	if len([]rune(title)) < minScrapedTitleLength {
		return false, nil
	}

	rawItem := &domain.RawItem{
		SourceID:    source.ID,
		SourceURL:   item.url,
		Title:       title,
		Content:     content,
		Language:    normalize.DetectLanguage(title + " " + content),
		ContentHash: scrapedItemHash(item),
		CollectedAt: time.Now().UTC(),
	}

	return storeItem(ctx, c.database, domain.SourceWebsite, rawItem)
}

func scrapedItemHash(item scrapedItem) string {
	return normalize.Hash(normalize.Clean(item.content) + item.url)
}

func itemHashes(items []scrapedItem) []string {
	hashes := make([]string, 0, len(items))
	for _, item := range items {
		hashes = append(hashes, scrapedItemHash(item))
	}

	return hashes
}

// configForSource reads scraping selectors from the source config,
// leaving the default cascades in place for anything unset.
func configForSource(source domain.Source) scraperConfig {
	cfg := scraperConfig{}

	if u, err := url.Parse(source.URL); err == nil {
		cfg.baseURL = u.Scheme + "://" + u.Host
	}

	if v, ok := source.Config["article_selector"].(string); ok {
		cfg.articleSelector = v
	}

	if v, ok := source.Config["title_selector"].(string); ok {
		cfg.titleSelector = v
	}

	if v, ok := source.Config["content_selector"].(string); ok {
		cfg.contentSelector = v
	}

	return cfg
}

// scrapeListing extracts article stubs from a listing page. Selector
// cascades are tried in order and the first one that yields items
// wins.
func scrapeListing(body []byte, cfg scraperConfig) ([]scrapedItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	articleSelectors := defaultArticleSelectors
	if cfg.articleSelector != "" {
		articleSelectors = []string{cfg.articleSelector}
	}

	for _, selector := range articleSelectors {
		items := extractArticles(doc, selector, cfg)
		if len(items) > 0 {
			return items, nil
		}
	}

	return nil, nil
}

func extractArticles(doc *goquery.Document, articleSelector string, cfg scraperConfig) []scrapedItem {
	var items []scrapedItem

	doc.Find(articleSelector).Each(func(_ int, el *goquery.Selection) {
		title, link := extractTitleAndLink(el, cfg)
		if title == "" {
			return
		}

		if link == "" {
			link, _ = el.Find("a").First().Attr("href")
		}

		link = resolveLink(link, cfg.baseURL)
		if !strings.HasPrefix(link, "http") {
			return
		}

		content := extractContent(el, cfg, title)
		if content == "" {
			content = title
		}

		items = append(items, scrapedItem{title: title, url: link, content: content})
	})

	return items
}

func extractTitleAndLink(el *goquery.Selection, cfg scraperConfig) (string, string) {
	titleSelectors := defaultTitleSelectors
	if cfg.titleSelector != "" {
		titleSelectors = []string{cfg.titleSelector}
	}

	for _, selector := range titleSelectors {
		titleEl := el.Find(selector).First()
		if titleEl.Length() == 0 {
			continue
		}

		title := strings.TrimSpace(titleEl.Text())
		if title == "" {
			continue
		}

		link, ok := titleEl.Attr("href")
		if !ok {
			link, _ = titleEl.Find("a").First().Attr("href")
		}

		return title, link
	}

	return "", ""
}

func extractContent(el *goquery.Selection, cfg scraperConfig, title string) string {
	contentSelectors := defaultContentSelectors
	if cfg.contentSelector != "" {
		contentSelectors = []string{cfg.contentSelector}
	}

	for _, selector := range contentSelectors {
		contentEl := el.Find(selector).First()
		if contentEl.Length() == 0 {
			continue
		}

		content := strings.TrimSpace(contentEl.Text())
		if content != "" && content != title {
			return content
		}
	}

	return ""
}

func resolveLink(link, baseURL string) string {
	if link == "" || strings.HasPrefix(link, "http") {
		return link
	}

	if strings.HasPrefix(link, "/") {
		return baseURL + link
	}

	return baseURL + "/" + link
}
