package collect

import (
	"context"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actuaryhelp/casefeed/internal/core/domain"
)

type fakeRepository struct {
	hashes   map[string]struct{}
	inserted []*domain.RawItem
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{hashes: map[string]struct{}{}}
}

func (f *fakeRepository) DueSources(_ context.Context, _ domain.SourceType) ([]domain.Source, error) {
	return nil, nil
}

func (f *fakeRepository) InsertRawItem(_ context.Context, item *domain.RawItem) (bool, error) {
	if _, ok := f.hashes[item.ContentHash]; ok {
		return false, nil
	}

	f.hashes[item.ContentHash] = struct{}{}
	item.ID = "item-1"
	f.inserted = append(f.inserted, item)

	return true, nil
}

func (f *fakeRepository) HasContentHash(_ context.Context, hash string) (bool, error) {
	_, ok := f.hashes[hash]
	return ok, nil
}

func (f *fakeRepository) FilterExistingHashes(_ context.Context, hashes []string) (map[string]struct{}, error) {
	existing := map[string]struct{}{}
	for _, hash := range hashes {
		if _, ok := f.hashes[hash]; ok {
			existing[hash] = struct{}{}
		}
	}

	return existing, nil
}

func (f *fakeRepository) UpdateLastChecked(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (f *fakeRepository) RecentCaseCountByCell(_ context.Context, _ time.Time) (map[string]int, error) {
	return nil, nil
}

func (f *fakeRepository) ActiveSources(_ context.Context, _ domain.SourceType) ([]domain.Source, error) {
	return nil, nil
}

func testRSSCollector(repo Repository) *rssCollector {
	logger := zerolog.Nop()
	return newRSSCollector(repo, 50, &logger)
}

func TestProcessItemContentFallbackChain(t *testing.T) {
	repo := newFakeRepository()
	collector := testRSSCollector(repo)
	source := domain.Source{ID: "c7f3a1de-0000-0000-0000-000000000001", Name: "Feed"}

	tests := []struct {
		name        string
		item        *gofeed.Item
		wantContent string
	}{
		{
			name: "content preferred",
			item: &gofeed.Item{
				Title:       "Parametric flood cover launched",
				Link:        "https://example.org/a",
				Content:     "Full body text",
				Description: "Snippet",
			},
			wantContent: "Full body text",
		},
		{
			name: "description when content empty",
			item: &gofeed.Item{
				Title:       "Embedded cargo insurance",
				Link:        "https://example.org/b",
				Description: "Snippet only",
			},
			wantContent: "Snippet only",
		},
		{
			name: "title as last resort",
			item: &gofeed.Item{
				Title: "Telematics pricing goes live in Brazil",
				Link:  "https://example.org/c",
			},
			wantContent: "Telematics pricing goes live in Brazil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored, err := collector.processItem(context.Background(), source, tt.item)

			require.NoError(t, err)
			assert.True(t, stored)

			last := repo.inserted[len(repo.inserted)-1]
			assert.Equal(t, tt.wantContent, last.Content)
			assert.Len(t, last.ContentHash, 32)
		})
	}
}

func TestProcessItemSkipsIncompleteItems(t *testing.T) {
	repo := newFakeRepository()
	collector := testRSSCollector(repo)
	source := domain.Source{ID: "c7f3a1de-0000-0000-0000-000000000001"}

	stored, err := collector.processItem(context.Background(), source, &gofeed.Item{Title: "No link"})

	require.NoError(t, err)
	assert.False(t, stored)
	assert.Empty(t, repo.inserted)
}

func TestProcessItemDeduplicatesByHash(t *testing.T) {
	repo := newFakeRepository()
	collector := testRSSCollector(repo)
	source := domain.Source{ID: "c7f3a1de-0000-0000-0000-000000000001"}
	item := &gofeed.Item{Title: "Same story", Link: "https://example.org/a", Content: "body"}

	stored, err := collector.processItem(context.Background(), source, item)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = collector.processItem(context.Background(), source, item)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Len(t, repo.inserted, 1)
}

func TestProcessItemUsesFeedPublishedDate(t *testing.T) {
	repo := newFakeRepository()
	collector := testRSSCollector(repo)
	source := domain.Source{ID: "c7f3a1de-0000-0000-0000-000000000001"}

	published := time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)
	item := &gofeed.Item{
		Title:           "Dated story",
		Link:            "https://example.org/a",
		Content:         "body",
		PublishedParsed: &published,
	}

	stored, err := collector.processItem(context.Background(), source, item)

	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, published, repo.inserted[0].CollectedAt)
}

func TestProcessItemParsesRawPublishedDate(t *testing.T) {
	repo := newFakeRepository()
	collector := testRSSCollector(repo)
	source := domain.Source{ID: "c7f3a1de-0000-0000-0000-000000000001"}

	item := &gofeed.Item{
		Title:     "Dated story",
		Link:      "https://example.org/a",
		Content:   "body",
		Published: "Mon, 03 Nov 2025 09:30:00 +0000",
	}

	stored, err := collector.processItem(context.Background(), source, item)

	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC), repo.inserted[0].CollectedAt)
}
