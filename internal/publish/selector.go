package publish

import (
	"sort"

	"github.com/actuaryhelp/casefeed/internal/core/domain"
)

// qualityTieDelta is the band within which two quality scores are
// considered equal and freshness decides instead.
const qualityTieDelta = 0.1

func qualityOf(c *domain.Case) float64 {
	if c.QualityScore == nil {
		return 0
	}

	return *c.QualityScore
}

// betterCase reports whether a should be published before b within one
// matrix cell: clearly higher quality wins, near-ties go to the newer
// case, and equal timestamps fall back to the higher ID so the choice
// is deterministic.
func betterCase(a, b *domain.Case) bool {
	qualityDiff := qualityOf(a) - qualityOf(b)
	if qualityDiff > qualityTieDelta {
		return true
	}

	if qualityDiff < -qualityTieDelta {
		return false
	}

	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}

	return a.ID > b.ID
}

// bestCaseForCell picks the publication candidate for one matrix cell,
// or nil when the cell has no candidates.
func bestCaseForCell(cases []domain.Case, cell domain.MatrixCell, taken map[string]struct{}) *domain.Case {
	var best *domain.Case

	for i := range cases {
		c := &cases[i]

		if c.InnovationType != cell.InnovationType || c.InsuranceLine != cell.InsuranceLine {
			continue
		}

		if _, ok := taken[c.ID]; ok {
			continue
		}

		if best == nil || betterCase(c, best) {
			best = c
		}
	}

	return best
}

// selectDaily chooses the cases to publish this run. Uncovered matrix
// cells are filled first in the fixed cell order; the rest of the
// quota is filled preferring the sentiment currently under-represented
// among this run's picks, then quality.
func selectDaily(ready, publishedToday []domain.Case, target int) []domain.Case {
	remaining := target - len(publishedToday)
	if remaining <= 0 {
		return nil
	}

	publishedIDs := make(map[string]struct{}, len(publishedToday))
	coveredCells := make(map[string]struct{})

	for i := range publishedToday {
		publishedIDs[publishedToday[i].ID] = struct{}{}
		coveredCells[publishedToday[i].Cell().Key()] = struct{}{}
	}

	available := make([]domain.Case, 0, len(ready))

	for i := range ready {
		if _, ok := publishedIDs[ready[i].ID]; !ok {
			available = append(available, ready[i])
		}
	}

	if len(available) == 0 {
		return nil
	}

	var selected []domain.Case

	taken := make(map[string]struct{})

	for _, cell := range domain.MatrixCells() {
		if len(selected) >= remaining {
			break
		}

		if _, ok := coveredCells[cell.Key()]; ok {
			continue
		}

		best := bestCaseForCell(available, cell, taken)
		if best == nil {
			continue
		}

		selected = append(selected, *best)
		taken[best.ID] = struct{}{}
		coveredCells[cell.Key()] = struct{}{}
	}

	if len(selected) >= remaining {
		return selected
	}

	// Sentiment balance is computed against the coverage picks above.
	var positive, negative int

	for i := range selected {
		if selected[i].Sentiment == domain.SentimentPositive {
			positive++
		} else {
			negative++
		}
	}

	rest := make([]domain.Case, 0, len(available))

	for i := range available {
		if _, ok := taken[available[i].ID]; !ok {
			rest = append(rest, available[i])
		}
	}

	preference := func(c *domain.Case) int {
		// A sentiment scores higher when the opposite one dominates
		// the picks so far.
		if c.Sentiment == domain.SentimentPositive {
			return negative
		}

		return positive
	}

	sort.SliceStable(rest, func(i, j int) bool {
		a, b := &rest[i], &rest[j]

		if pa, pb := preference(a), preference(b); pa != pb {
			return pa > pb
		}

		if qa, qb := qualityOf(a), qualityOf(b); qa != qb {
			return qa > qb
		}

		return a.ID > b.ID
	})

	needed := remaining - len(selected)
	if needed > len(rest) {
		needed = len(rest)
	}

	return append(selected, rest[:needed]...)
}
