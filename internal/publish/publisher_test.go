package publish

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actuaryhelp/casefeed/internal/config"
	"github.com/actuaryhelp/casefeed/internal/core/domain"
	"github.com/actuaryhelp/casefeed/internal/storage"
)

type fakeRepository struct {
	ready      []domain.Case
	published  []domain.Case
	publishErr map[string]error
	calls      []string
}

func (f *fakeRepository) ReadyCases(_ context.Context) ([]domain.Case, error) {
	return f.ready, nil
}

func (f *fakeRepository) PublishedSince(_ context.Context, _ time.Time) ([]domain.Case, error) {
	return f.published, nil
}

func (f *fakeRepository) PublishCase(_ context.Context, caseID string, _ time.Time) error {
	if err := f.publishErr[caseID]; err != nil {
		return err
	}

	f.calls = append(f.calls, caseID)

	return nil
}

func testPublisher(repo Repository, target int) *Publisher {
	logger := zerolog.Nop()
	cfg := &config.Config{DailyTarget: target}

	return New(cfg, repo, &logger)
}

func TestRunPublishesSelectedCases(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeRepository{ready: []domain.Case{
		readyCase("pp", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.9, now),
		readyCase("ph", domain.InnovationProduct, domain.LineHealth, domain.SentimentPositive, 0.8, now),
	}}

	stats, errLog := testPublisher(repo, 10).Run(context.Background())

	assert.Equal(t, 2, stats.Succeeded)
	assert.Empty(t, errLog)
	assert.Equal(t, []string{"pp", "ph"}, repo.calls)
}

func TestRunTargetAlreadyReached(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeRepository{
		ready:     []domain.Case{readyCase("pp", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.9, now)},
		published: []domain.Case{readyCase("done", domain.InnovationProduct, domain.LineHealth, domain.SentimentPositive, 0.9, now)},
	}

	stats, errLog := testPublisher(repo, 1).Run(context.Background())

	assert.Zero(t, stats.Processed)
	assert.Empty(t, errLog)
	assert.Empty(t, repo.calls)
}

func TestRunAlreadyPublishedCaseIsSkipped(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeRepository{
		ready: []domain.Case{
			readyCase("pp", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.9, now),
			readyCase("ph", domain.InnovationProduct, domain.LineHealth, domain.SentimentPositive, 0.8, now),
		},
		publishErr: map[string]error{"pp": storage.ErrAlreadyPublished},
	}

	stats, errLog := testPublisher(repo, 10).Run(context.Background())

	assert.Equal(t, 1, stats.Succeeded)
	assert.Zero(t, stats.Failed)
	assert.Empty(t, errLog)
	assert.Equal(t, []string{"ph"}, repo.calls)
}

func TestStatusReportsCoverage(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeRepository{published: []domain.Case{
		readyCase("a", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.9, now),
		readyCase("b", domain.InnovationProduct, domain.LineProperty, domain.SentimentNegative, 0.8, now),
		readyCase("c", domain.InnovationMarketing, domain.LineLife, domain.SentimentPositive, 0.7, now),
	}}

	status, err := testPublisher(repo, 200).Status(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, status.PublishedToday)
	assert.Equal(t, 200, status.Target)
	assert.Equal(t, 2, status.CoverageByCell["product-property"])
	assert.Equal(t, 1, status.CoverageByCell["marketing-life"])
	assert.Equal(t, 0, status.CoverageByCell["product-life"])
	assert.Len(t, status.CoverageByCell, 6)
}

func TestRevalidatorTriggersAllPaths(t *testing.T) {
	var requests []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		requests = append(requests, r.URL.Query().Get("path"))
	}))
	defer server.Close()

	logger := zerolog.Nop()
	NewRevalidator(server.URL, "secret", &logger).Trigger(context.Background())

	assert.Equal(t, []string{"/cases", "/matrix", "/"}, requests)
}

func TestRevalidatorSkipsWhenUnconfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected without a token")
	}))
	defer server.Close()

	logger := zerolog.Nop()
	NewRevalidator(server.URL, "", &logger).Trigger(context.Background())
}
