package collect

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/actuaryhelp/casefeed/internal/core/domain"
	"github.com/actuaryhelp/casefeed/internal/core/normalize"
	"github.com/actuaryhelp/casefeed/internal/platform/observability"
	"github.com/actuaryhelp/casefeed/internal/platform/retry"
)

const (
	rssFetchTimeout   = 30 * time.Second
	feedPauseInterval = time.Second
)

type rssCollector struct {
	database Repository
	parser   *gofeed.Parser
	maxItems int
	logger   *zerolog.Logger
}

func newRSSCollector(database Repository, maxItems int, logger *zerolog.Logger) *rssCollector {
	parser := gofeed.NewParser()
	parser.UserAgent = "InsuranceIntelBot/1.0 (+https://actuaryhelp.com)"

	return &rssCollector{
		database: database,
		parser:   parser,
		maxItems: maxItems,
		logger:   logger,
	}
}

// collectAll walks every due RSS source. Source failures are isolated:
// one broken feed does not stop the rest.
func (c *rssCollector) collectAll(ctx context.Context) Result {
	var result Result

	sources, err := c.database.DueSources(ctx, domain.SourceRSS)
	if err != nil {
		result.addError(fmt.Sprintf("fetch RSS sources: %v", err))
		return result
	}

	if len(sources) == 0 {
		c.logger.Info().Msg("no RSS sources due for checking")
		return result
	}

	for i, source := range sources {
		sourceResult := c.collectSource(ctx, source)
		result.merge(sourceResult)

		if i < len(sources)-1 {
			select {
			case <-ctx.Done():
				result.addError(fmt.Sprintf("RSS collection interrupted: %v", ctx.Err()))
				return result
			case <-time.After(feedPauseInterval):
			}
		}
	}

	return result
}

func (c *rssCollector) collectSource(ctx context.Context, source domain.Source) Result {
	var result Result

	c.logger.Info().Str("source", source.Name).Str("url", source.URL).Msg("collecting from RSS feed")

	feedCtx, cancel := context.WithTimeout(ctx, rssFetchTimeout)
	defer cancel()

	var feed *gofeed.Feed

	retryCfg := retry.DefaultConfig()
	retryCfg.OnRetry = func(attempt int, err error) {
		c.logger.Warn().Err(err).Str("source", source.Name).Int("attempt", attempt).Msg("RSS fetch failed, retrying")
	}

	err := retry.Do(feedCtx, retryCfg, func() error {
		var parseErr error

		feed, parseErr = c.parser.ParseURLWithContext(source.URL, feedCtx)

		return parseErr
	})
	if err != nil {
		observability.CollectorErrors.WithLabelValues(string(domain.SourceRSS)).Inc()
		result.addError(fmt.Sprintf("failed to collect from %s: %v", source.Name, err))

		return result
	}

	items := feed.Items
	if len(items) > c.maxItems {
		items = items[:c.maxItems]
	}

	for _, item := range items {
		stored, err := c.processItem(ctx, source, item)
		if err != nil {
			observability.CollectorErrors.WithLabelValues(string(domain.SourceRSS)).Inc()
			result.addError(fmt.Sprintf("error processing item %q: %v", truncateForLog(item.Title), err))

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
		Msg("RSS source complete")

	return result
}

func (c *rssCollector) processItem(ctx context.Context, source domain.Source, item *gofeed.Item) (bool, error) {
	if item.Title == "" || item.Link == "" {
		return false, nil
	}

	rawContent := item.Content
	if rawContent == "" {
		rawContent = item.Description
	}

	if rawContent == "" {
		rawContent = item.Title
	}

	content := normalize.Clean(rawContent)
	title := normalize.Clean(item.Title)

	collectedAt := time.Now().UTC()
	if item.PublishedParsed != nil {
		collectedAt = item.PublishedParsed.UTC()
	} else if published := normalize.ParsePublishedDate(item.Published); published != nil {
		collectedAt = *published
	}

	rawItem := &domain.RawItem{
		SourceID:    source.ID,
		SourceURL:   item.Link,
		Title:       title,
		Content:     content,
		Language:    normalize.DetectLanguage(title + " " + content),
		ContentHash: normalize.Hash(content + item.Link),
		CollectedAt: collectedAt,
	}

	return storeItem(ctx, c.database, domain.SourceRSS, rawItem)
}

func truncateForLog(s string) string {
	const maxLen = 50

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	return string(runes[:maxLen]) + "..."
}
