package publish

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actuaryhelp/casefeed/internal/core/domain"
)

func readyCase(id string, it domain.InnovationType, il domain.InsuranceLine, sentiment domain.Sentiment, quality float64, createdAt time.Time) domain.Case {
	return domain.Case{
		ID:             id,
		InnovationType: it,
		InsuranceLine:  il,
		Sentiment:      sentiment,
		Status:         domain.CaseReady,
		QualityScore:   &quality,
		CreatedAt:      createdAt,
	}
}

func caseIDs(cases []domain.Case) []string {
	ids := make([]string, len(cases))
	for i := range cases {
		ids[i] = cases[i].ID
	}

	return ids
}

func TestSelectDailyFillsUncoveredCellsFirst(t *testing.T) {
	now := time.Now().UTC()
	ready := []domain.Case{
		readyCase("pp", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.9, now),
		readyCase("ph", domain.InnovationProduct, domain.LineHealth, domain.SentimentPositive, 0.8, now),
		readyCase("ml", domain.InnovationMarketing, domain.LineLife, domain.SentimentNegative, 0.7, now),
	}

	selected := selectDaily(ready, nil, 3)

	assert.Equal(t, []string{"pp", "ph", "ml"}, caseIDs(selected))
}

func TestSelectDailySkipsCoveredCells(t *testing.T) {
	now := time.Now().UTC()
	published := []domain.Case{
		readyCase("done", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.9, now),
	}
	ready := []domain.Case{
		readyCase("pp2", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.95, now),
		readyCase("ph", domain.InnovationProduct, domain.LineHealth, domain.SentimentPositive, 0.6, now),
	}

	selected := selectDaily(ready, published, 3)

	// product-property is already covered today, so the fill stage
	// picks pp2 after the uncovered cell is served.
	assert.Equal(t, []string{"ph", "pp2"}, caseIDs(selected))
}

func TestSelectDailyQualityDecidesOutsideTieBand(t *testing.T) {
	now := time.Now().UTC()
	ready := []domain.Case{
		readyCase("old-good", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.95, now.Add(-48*time.Hour)),
		readyCase("new-weak", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.5, now),
	}

	selected := selectDaily(ready, nil, 1)

	require.Len(t, selected, 1)
	assert.Equal(t, "old-good", selected[0].ID)
}

func TestSelectDailyNearTieGoesToNewerCase(t *testing.T) {
	now := time.Now().UTC()
	ready := []domain.Case{
		readyCase("older", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.85, now.Add(-48*time.Hour)),
		readyCase("newer", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.81, now),
	}

	selected := selectDaily(ready, nil, 1)

	require.Len(t, selected, 1)
	assert.Equal(t, "newer", selected[0].ID)
}

func TestSelectDailyEqualTimestampsFallBackToID(t *testing.T) {
	now := time.Now().UTC()
	ready := []domain.Case{
		readyCase("aaa", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.8, now),
		readyCase("zzz", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.8, now),
	}

	selected := selectDaily(ready, nil, 1)

	require.Len(t, selected, 1)
	assert.Equal(t, "zzz", selected[0].ID)
}

func TestSelectDailyTargetReached(t *testing.T) {
	now := time.Now().UTC()
	published := []domain.Case{
		readyCase("a", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.9, now),
		readyCase("b", domain.InnovationProduct, domain.LineHealth, domain.SentimentPositive, 0.9, now),
	}
	ready := []domain.Case{
		readyCase("c", domain.InnovationProduct, domain.LineLife, domain.SentimentPositive, 0.9, now),
	}

	assert.Empty(t, selectDaily(ready, published, 2))
}

func TestSelectDailyFillBalancesSentiment(t *testing.T) {
	now := time.Now().UTC()
	ready := []domain.Case{
		// One positive case covers the first cell.
		readyCase("pp", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.9, now),
		// Fill candidates in the same cell: the negative one should be
		// preferred over a higher-quality positive one.
		readyCase("fill-pos", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.95, now),
		readyCase("fill-neg", domain.InnovationProduct, domain.LineProperty, domain.SentimentNegative, 0.6, now),
	}

	selected := selectDaily(ready, nil, 2)

	assert.Equal(t, []string{"pp", "fill-neg"}, caseIDs(selected))
}

func TestSelectDailyExcludesAlreadyPublished(t *testing.T) {
	now := time.Now().UTC()
	published := []domain.Case{
		readyCase("pp", domain.InnovationProduct, domain.LineProperty, domain.SentimentPositive, 0.9, now),
	}
	// The same case still shows up as ready (stale read); it must not
	// be selected twice.
	ready := []domain.Case{published[0]}

	assert.Empty(t, selectDaily(ready, published, 10))
}
