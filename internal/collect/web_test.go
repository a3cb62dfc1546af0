package collect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actuaryhelp/casefeed/internal/core/domain"
)

const listingHTML = `
<html><body>
<article>
  <h2><a href="/news/parametric-flood-launch">Insurer launches parametric flood product</a></h2>
  <p>A carrier introduced automatic payouts triggered by river gauge readings.</p>
</article>
<article>
  <h2><a href="https://other.example.org/story">Embedded cover lands in a travel app</a></h2>
  <p>Policies are now bundled at checkout.</p>
</article>
</body></html>`

func TestScrapeListing_Defaults(t *testing.T) {
	items, err := scrapeListing([]byte(listingHTML), scraperConfig{baseURL: "https://news.example.com"})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Insurer launches parametric flood product", items[0].title)
	assert.Equal(t, "https://news.example.com/news/parametric-flood-launch", items[0].url)
	assert.Contains(t, items[0].content, "river gauge")

	assert.Equal(t, "https://other.example.org/story", items[1].url)
}

func TestScrapeListing_CustomSelectors(t *testing.T) {
	html := `<html><body>
		<div class="news-card"><span class="headline"><a href="/a">Custom selector headline here</a></span></div>
	</body></html>`

	items, err := scrapeListing([]byte(html), scraperConfig{
		baseURL:         "https://example.net",
		articleSelector: ".news-card",
		titleSelector:   ".headline a",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Custom selector headline here", items[0].title)
	assert.Equal(t, "https://example.net/a", items[0].url)
}

func TestScrapeListing_NoMatches(t *testing.T) {
	items, err := scrapeListing([]byte("<html><body><nav>menu</nav></body></html>"), scraperConfig{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestItemHashes(t *testing.T) {
	items := []scrapedItem{
		{title: "A", url: "https://a.com/1", content: "same summary"},
		{title: "B", url: "https://a.com/2", content: "same summary"},
		{title: "A again", url: "https://a.com/1", content: "  same   summary "},
	}

	hashes := itemHashes(items)
	require.Len(t, hashes, 3)

	assert.NotEqual(t, hashes[0], hashes[1], "distinct URLs must hash differently")
	assert.Equal(t, hashes[0], hashes[2], "whitespace variants of the same page must collide")
}

func TestConfigForSource(t *testing.T) {
	source := domain.Source{
		URL: "https://www.example.com/news/latest",
		Config: map[string]any{
			"article_selector": ".item",
			"title_selector":   "h3",
		},
	}

	cfg := configForSource(source)
	assert.Equal(t, "https://www.example.com", cfg.baseURL)
	assert.Equal(t, ".item", cfg.articleSelector)
	assert.Equal(t, "h3", cfg.titleSelector)
	assert.Empty(t, cfg.contentSelector)
}

func TestResolveLink(t *testing.T) {
	assert.Equal(t, "https://a.com/x", resolveLink("/x", "https://a.com"))
	assert.Equal(t, "https://a.com/x", resolveLink("x", "https://a.com"))
	assert.Equal(t, "https://b.com/y", resolveLink("https://b.com/y", "https://a.com"))
	assert.Empty(t, resolveLink("", "https://a.com"))
}

func TestPlausibleURL(t *testing.T) {
	assert.True(t, plausibleURL("https://www.insurancejournal.com/news/1"))
	assert.False(t, plausibleURL("https://www.example.com/fake-story"))
	assert.False(t, plausibleURL("not a url"))
	assert.False(t, plausibleURL(""))
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, priorityRank("high"), priorityRank("medium"))
	assert.Less(t, priorityRank("medium"), priorityRank("low"))
	assert.Equal(t, priorityRank("low"), priorityRank("unknown"))
}
