package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

// RawFetchRepository archives raw network responses for audit and replay.
type RawFetchRepository struct {
	db *sqlx.DB
}

// NewRawFetchRepository creates a new raw-fetch repository.
func NewRawFetchRepository(db *sqlx.DB) *RawFetchRepository {
	return &RawFetchRepository{db: db}
}

// Save stores one fetch record. Rows are append-only.
func (r *RawFetchRepository) Save(ctx context.Context, raw *models.RawFetch) (int64, error) {
	const query = `
		INSERT INTO raw_fetches
			(source, fetched_at, request_fingerprint, http_status, content_type, raw_hash, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		raw.Source, raw.FetchedAt, raw.RequestFingerprint,
		raw.HTTPStatus, raw.ContentType, raw.RawHash, raw.RawPayload,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save raw fetch: %w", err)
	}
	id, idErr := result.LastInsertId()
	if idErr != nil {
		return 0, fmt.Errorf("failed to read raw fetch id: %w", idErr)
	}
	return id, nil
}

// CountBySource returns the number of archived fetches for a source.
func (r *RawFetchRepository) CountBySource(ctx context.Context, source string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM raw_fetches WHERE source = ?`, source)
	if err != nil {
		return 0, fmt.Errorf("failed to count raw fetches: %w", err)
	}
	return count, nil
}
