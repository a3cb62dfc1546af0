package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/actuaryhelp/casefeed/internal/core/domain"
)

const caseColumns = `id, raw_item_id, innovation_type, insurance_line, sentiment,
	headline_en, headline_zh, analysis_en, analysis_zh, source_urls, company_names,
	region, status, supplement_rounds, quality_score, published_at,
	upvotes, downvotes, view_count, created_at, updated_at`

// InsertCase stores a new case. Each raw item can back at most one
// case; a second insert for the same raw item returns ErrCaseExists.
func (db *DB) InsertCase(ctx context.Context, c *domain.Case) error {
	analysisEN, err := json.Marshal(c.AnalysisEN)
	if err != nil {
		return err
	}

	analysisZH, err := json.Marshal(c.AnalysisZH)
	if err != nil {
		return err
	}

	var id pgtype.UUID

	err = db.Pool.QueryRow(ctx, `
		INSERT INTO cases (raw_item_id, innovation_type, insurance_line, sentiment,
		                   headline_en, headline_zh, analysis_en, analysis_zh,
		                   source_urls, company_names, region, status,
		                   supplement_rounds, quality_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, toUUID(c.RawItemID), string(c.InnovationType), string(c.InsuranceLine),
		string(c.Sentiment), c.HeadlineEN, c.HeadlineZH, analysisEN, analysisZH,
		c.SourceURLs, c.CompanyNames, c.Region, string(c.Status),
		c.SupplementRounds, toFloat8Ptr(c.QualityScore)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrCaseExists
		}

		return err
	}

	c.ID = fromUUID(id)

	return nil
}

// ReadyCases returns all cases eligible for publication.
func (db *DB) ReadyCases(ctx context.Context) ([]domain.Case, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+caseColumns+`
		FROM cases
		WHERE status = 'ready'
		ORDER BY quality_score DESC NULLS LAST, created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCases(rows)
}

// PublishedSince returns cases published at or after the cutoff,
// used to compute the remaining daily quota and cell coverage.
func (db *DB) PublishedSince(ctx context.Context, cutoff time.Time) ([]domain.Case, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+caseColumns+`
		FROM cases
		WHERE status = 'published'
		  AND published_at >= $1
		ORDER BY published_at ASC
	`, toTimestamptz(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCases(rows)
}

// PublishCase flips a ready case to published. The status guard makes
// the transition idempotent under concurrent publishers: only one
// caller observes the ready row, the rest get ErrAlreadyPublished.
func (db *DB) PublishCase(ctx context.Context, caseID string, publishedAt time.Time) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE cases
		SET status = 'published', published_at = $2, updated_at = NOW()
		WHERE id = $1
		  AND status = 'ready'
	`, toUUID(caseID), toTimestamptz(publishedAt))
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrAlreadyPublished
	}

	return nil
}

// RejectCase marks a case rejected.
func (db *DB) RejectCase(ctx context.Context, caseID string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE cases
		SET status = 'rejected', updated_at = NOW()
		WHERE id = $1
	`, toUUID(caseID))
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// NonRejectedCases returns every case still in play, oldest first.
// Used by the review stage.
func (db *DB) NonRejectedCases(ctx context.Context, limit int) ([]domain.Case, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+caseColumns+`
		FROM cases
		WHERE status != 'rejected'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCases(rows)
}

// IncrementViewCount bumps a published case's view counter.
func (db *DB) IncrementViewCount(ctx context.Context, caseID string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE cases
		SET view_count = view_count + 1
		WHERE id = $1
	`, toUUID(caseID))

	return err
}

// AddVote records an up or down vote on a published case.
func (db *DB) AddVote(ctx context.Context, caseID string, up bool) error {
	column := "downvotes"
	if up {
		column = "upvotes"
	}

	_, err := db.Pool.Exec(ctx, `
		UPDATE cases
		SET `+column+` = `+column+` + 1
		WHERE id = $1
	`, toUUID(caseID))

	return err
}

// RecentCaseCountByCell counts cases created within the window per
// matrix cell. Used to spot coverage gaps before the search collector
// runs.
func (db *DB) RecentCaseCountByCell(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT innovation_type, insurance_line, COUNT(*)
		FROM cases
		WHERE created_at >= $1
		GROUP BY innovation_type, insurance_line
	`, toTimestamptz(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var (
			innovationType string
			insuranceLine  string
			count          int
		)

		if err := rows.Scan(&innovationType, &insuranceLine, &count); err != nil {
			return nil, err
		}

		cell := domain.MatrixCell{
			InnovationType: domain.InnovationType(innovationType),
			InsuranceLine:  domain.InsuranceLine(insuranceLine),
		}
		counts[cell.Key()] = count
	}

	return counts, rows.Err()
}

// CaseStatusCounts returns how many cases sit in each status.
func (db *DB) CaseStatusCounts(ctx context.Context) (map[domain.CaseStatus]int, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM cases
		GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.CaseStatus]int)

	for rows.Next() {
		var (
			status string
			count  int
		)

		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}

		counts[domain.CaseStatus(status)] = count
	}

	return counts, rows.Err()
}

func scanCases(rows pgx.Rows) ([]domain.Case, error) {
	var cases []domain.Case

	for rows.Next() {
		var (
			c              domain.Case
			id             pgtype.UUID
			rawItemID      pgtype.UUID
			innovationType string
			insuranceLine  string
			sentiment      string
			status         string
			analysisEN     []byte
			analysisZH     []byte
			qualityScore   pgtype.Float8
			publishedAt    pgtype.Timestamptz
		)

		if err := rows.Scan(&id, &rawItemID, &innovationType, &insuranceLine, &sentiment,
			&c.HeadlineEN, &c.HeadlineZH, &analysisEN, &analysisZH,
			&c.SourceURLs, &c.CompanyNames, &c.Region, &status,
			&c.SupplementRounds, &qualityScore, &publishedAt,
			&c.Upvotes, &c.Downvotes, &c.ViewCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}

		c.ID = fromUUID(id)
		c.RawItemID = fromUUID(rawItemID)
		c.InnovationType = domain.InnovationType(innovationType)
		c.InsuranceLine = domain.InsuranceLine(insuranceLine)
		c.Sentiment = domain.Sentiment(sentiment)
		c.Status = domain.CaseStatus(status)
		c.QualityScore = fromFloat8Ptr(qualityScore)
		c.PublishedAt = fromTimestamptzPtr(publishedAt)

		if len(analysisEN) > 0 {
			if err := json.Unmarshal(analysisEN, &c.AnalysisEN); err != nil {
				return nil, err
			}
		}

		if len(analysisZH) > 0 {
			if err := json.Unmarshal(analysisZH, &c.AnalysisZH); err != nil {
				return nil, err
			}
		}

		cases = append(cases, c)
	}

	return cases, rows.Err()
}
