package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/actuaryhelp/casefeed/internal/core/domain"
)

const uniqueViolationCode = "23505"

// InsertRawItem stores a collected item and fills in its generated ID.
// The bool reports whether a row was inserted; a content hash collision
// is not an error, it just returns false.
func (db *DB) InsertRawItem(ctx context.Context, item *domain.RawItem) (bool, error) {
	var id pgtype.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO raw_items (source_id, source_url, title, content, language,
		                       content_hash, collected_at, screening_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
		RETURNING id
	`, toUUID(item.SourceID), item.SourceURL, item.Title, item.Content,
		item.Language, item.ContentHash, toTimestamptz(item.CollectedAt)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return false, nil
		}

		return false, err
	}

	item.ID = fromUUID(id)
	item.ScreeningStatus = domain.ScreeningPending

	return true, nil
}

// FilterExistingHashes returns the subset of hashes already present.
func (db *DB) FilterExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT content_hash
		FROM raw_items
		WHERE content_hash = ANY($1)
	`, hashes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]struct{})

	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}

		existing[hash] = struct{}{}
	}

	return existing, rows.Err()
}

// HasContentHash reports whether an item with the hash already exists.
func (db *DB) HasContentHash(ctx context.Context, hash string) (bool, error) {
	var exists bool

	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM raw_items WHERE content_hash = $1)
	`, hash).Scan(&exists)

	return exists, err
}

// PendingRawItems returns unscreened items, oldest first.
func (db *DB) PendingRawItems(ctx context.Context, limit int) ([]domain.RawItem, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, source_id, source_url, title, content, language,
		       content_hash, collected_at, screening_status, screening_result, created_at
		FROM raw_items
		WHERE screening_status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRawItems(rows)
}

// CountPendingRawItems returns the screening backlog size.
func (db *DB) CountPendingRawItems(ctx context.Context) (int, error) {
	var count int

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM raw_items WHERE screening_status = 'pending'
	`).Scan(&count)

	return count, err
}

// UpdateRawItemScreening writes the screening outcome atomically:
// status and result always land together. Only a pending item is
// updated, so two overlapping runs that both loaded the same item
// cannot overwrite each other's decision; the loser gets
// ErrAlreadyScreened.
func (db *DB) UpdateRawItemScreening(ctx context.Context, itemID string, status domain.ScreeningStatus, result *domain.ScreeningResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}

	tag, err := db.Pool.Exec(ctx, `
		UPDATE raw_items
		SET screening_status = $2, screening_result = $3
		WHERE id = $1 AND screening_status = 'pending'
	`, toUUID(itemID), string(status), resultJSON)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrAlreadyScreened
	}

	return nil
}

// PassedItemsWithoutCase returns screened-passed items that have no
// case yet, newest first.
func (db *DB) PassedItemsWithoutCase(ctx context.Context, limit int) ([]domain.RawItem, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT ri.id, ri.source_id, ri.source_url, ri.title, ri.content, ri.language,
		       ri.content_hash, ri.collected_at, ri.screening_status, ri.screening_result, ri.created_at
		FROM raw_items ri
		LEFT JOIN cases c ON c.raw_item_id = ri.id
		WHERE ri.screening_status = 'passed'
		  AND c.id IS NULL
		ORDER BY ri.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRawItems(rows)
}

func scanRawItems(rows pgx.Rows) ([]domain.RawItem, error) {
	var items []domain.RawItem

	for rows.Next() {
		var (
			item       domain.RawItem
			id         pgtype.UUID
			sourceID   pgtype.UUID
			status     string
			resultJSON []byte
		)

		if err := rows.Scan(&id, &sourceID, &item.SourceURL, &item.Title, &item.Content,
			&item.Language, &item.ContentHash, &item.CollectedAt, &status,
			&resultJSON, &item.CreatedAt); err != nil {
			return nil, err
		}

		item.ID = fromUUID(id)
		item.SourceID = fromUUID(sourceID)
		item.ScreeningStatus = domain.ScreeningStatus(status)

		if len(resultJSON) > 0 {
			var result domain.ScreeningResult
			if err := json.Unmarshal(resultJSON, &result); err != nil {
				return nil, err
			}

			item.ScreeningResult = &result
		}

		items = append(items, item)
	}

	return items, rows.Err()
}
