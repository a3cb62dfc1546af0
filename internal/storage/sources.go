package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/actuaryhelp/casefeed/internal/core/domain"
)

// DueSources returns active sources whose check_frequency interval has
// elapsed since last_checked_at. Sources never checked are always due.
// The frequency column holds a PostgreSQL interval expression such as
// "30 minutes" or "4 hours".
func (db *DB) DueSources(ctx context.Context, sourceType domain.SourceType) ([]domain.Source, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, name, url, type, language, region, quality_score,
		       check_frequency, last_checked_at, status, config, created_at, updated_at
		FROM sources
		WHERE status = 'active'
		  AND type = $1
		  AND (last_checked_at IS NULL
		       OR last_checked_at + check_frequency::interval <= NOW())
		ORDER BY last_checked_at NULLS FIRST
	`, string(sourceType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSources(rows)
}

// ActiveSources returns all active sources of the given type regardless
// of schedule.
func (db *DB) ActiveSources(ctx context.Context, sourceType domain.SourceType) ([]domain.Source, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, name, url, type, language, region, quality_score,
		       check_frequency, last_checked_at, status, config, created_at, updated_at
		FROM sources
		WHERE status = 'active'
		  AND type = $1
		ORDER BY quality_score DESC
	`, string(sourceType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSources(rows)
}

func scanSources(rows pgx.Rows) ([]domain.Source, error) {
	var sources []domain.Source

	for rows.Next() {
		var (
			s            domain.Source
			id           pgtype.UUID
			lastChecked  pgtype.Timestamptz
			configJSON   []byte
			sourceType   string
			sourceStatus string
		)

		if err := rows.Scan(&id, &s.Name, &s.URL, &sourceType, &s.Language, &s.Region,
			&s.QualityScore, &s.CheckFrequency, &lastChecked, &sourceStatus,
			&configJSON, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}

		s.ID = fromUUID(id)
		s.Type = domain.SourceType(sourceType)
		s.Status = domain.SourceStatus(sourceStatus)
		s.LastCheckedAt = fromTimestamptzPtr(lastChecked)

		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &s.Config); err != nil {
				return nil, err
			}
		}

		sources = append(sources, s)
	}

	return sources, rows.Err()
}

// InsertSource stores a new source and fills in its generated ID.
func (db *DB) InsertSource(ctx context.Context, s *domain.Source) error {
	configJSON, err := json.Marshal(s.Config)
	if err != nil {
		return err
	}

	var id pgtype.UUID

	err = db.Pool.QueryRow(ctx, `
		INSERT INTO sources (name, url, type, language, region, quality_score,
		                     check_frequency, status, config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, s.Name, s.URL, string(s.Type), s.Language, s.Region, s.QualityScore,
		s.CheckFrequency, string(s.Status), configJSON).Scan(&id)
	if err != nil {
		return err
	}

	s.ID = fromUUID(id)

	return nil
}

// UpdateLastChecked records a completed check for the source.
func (db *DB) UpdateLastChecked(ctx context.Context, sourceID string, checkedAt time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE sources
		SET last_checked_at = $2, updated_at = NOW()
		WHERE id = $1
	`, toUUID(sourceID), toTimestamptz(checkedAt))

	return err
}

// UpdateSourceStatus moves a source between active, probation and
// disabled.
func (db *DB) UpdateSourceStatus(ctx context.Context, sourceID string, status domain.SourceStatus) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE sources
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, toUUID(sourceID), string(status))

	return err
}
