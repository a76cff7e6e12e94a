package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

// SavedSearchRepository persists saved searches, their run history,
// and per-run hit records.
type SavedSearchRepository struct {
	db *sqlx.DB
}

// NewSavedSearchRepository creates a new saved-search repository.
func NewSavedSearchRepository(db *sqlx.DB) *SavedSearchRepository {
	return &SavedSearchRepository{db: db}
}

// Create inserts a new saved search. Names are unique.
func (r *SavedSearchRepository) Create(ctx context.Context, search *models.SavedSearch) (int64, error) {
	now := time.Now().UTC()
	const query = `
		INSERT INTO saved_searches
			(name, filters_json, query_ref, order_by, schedule, only_new, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		search.Name, search.FiltersJSON, search.QueryRef, search.OrderBy,
		search.Schedule, search.OnlyNew, search.Enabled, now, now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, models.ErrAlreadyExists
		}
		return 0, fmt.Errorf("failed to create saved search: %w", err)
	}
	id, idErr := result.LastInsertId()
	if idErr != nil {
		return 0, fmt.Errorf("failed to read saved search id: %w", idErr)
	}
	return id, nil
}

// GetByName retrieves a saved search by its unique name.
func (r *SavedSearchRepository) GetByName(ctx context.Context, name string) (*models.SavedSearch, error) {
	search := &models.SavedSearch{}
	err := r.db.GetContext(ctx, search, `SELECT * FROM saved_searches WHERE name = ?`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get saved search: %w", err)
	}
	return search, nil
}

// GetByID retrieves a saved search by id.
func (r *SavedSearchRepository) GetByID(ctx context.Context, id int64) (*models.SavedSearch, error) {
	search := &models.SavedSearch{}
	err := r.db.GetContext(ctx, search, `SELECT * FROM saved_searches WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get saved search: %w", err)
	}
	return search, nil
}

// List returns saved searches ordered by name.
func (r *SavedSearchRepository) List(ctx context.Context, enabledOnly bool) ([]models.SavedSearch, error) {
	query := `SELECT * FROM saved_searches`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY name`

	searches := []models.SavedSearch{}
	if err := r.db.SelectContext(ctx, &searches, query); err != nil {
		return nil, fmt.Errorf("failed to list saved searches: %w", err)
	}
	return searches, nil
}

// Delete removes a saved search by name.
func (r *SavedSearchRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM saved_searches WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete saved search: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// TouchLastRun records the time a saved search last ran.
func (r *SavedSearchRepository) TouchLastRun(ctx context.Context, searchID int64, lastRunAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE saved_searches SET last_run_at = ?, updated_at = ? WHERE id = ?`,
		lastRunAt, time.Now().UTC(), searchID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch last run: %w", err)
	}
	return nil
}

// CreateRun opens a run record in running status.
func (r *SavedSearchRepository) CreateRun(
	ctx context.Context,
	searchID int64,
	queryRef *string,
	filtersSnapshot *string,
) (int64, error) {
	const query = `
		INSERT INTO saved_search_runs
			(saved_search_id, query_ref, filters_snapshot, run_at, hit_count, status)
		VALUES (?, ?, ?, ?, 0, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		searchID, queryRef, filtersSnapshot, time.Now().UTC(), models.RunStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}
	id, idErr := result.LastInsertId()
	if idErr != nil {
		return 0, fmt.Errorf("failed to read run id: %w", idErr)
	}
	return id, nil
}

// RunOutcome carries the terminal state written by FinalizeRun.
type RunOutcome struct {
	HitCount         int
	Status           string
	ErrorMessage     *string
	NotifiedChannels []string
	NotifyStatus     *string
	NotifyError      *string
}

// FinalizeRun writes the terminal state of a run. Runs are immutable
// after this call.
func (r *SavedSearchRepository) FinalizeRun(ctx context.Context, runID int64, outcome RunOutcome) error {
	var channels *string
	if len(outcome.NotifiedChannels) > 0 {
		joined := strings.Join(outcome.NotifiedChannels, ",")
		channels = &joined
	}

	const query = `
		UPDATE saved_search_runs SET
			hit_count = ?, status = ?, error_message = ?,
			notified_channels = ?, notify_status = ?, notify_error = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		outcome.HitCount, outcome.Status, outcome.ErrorMessage,
		channels, outcome.NotifyStatus, outcome.NotifyError, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize run: %w", err)
	}
	return nil
}

// GetRun retrieves one run by id.
func (r *SavedSearchRepository) GetRun(ctx context.Context, runID int64) (*models.SavedSearchRun, error) {
	run := &models.SavedSearchRun{}
	err := r.db.GetContext(ctx, run, `SELECT * FROM saved_search_runs WHERE id = ?`, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs for a saved search.
func (r *SavedSearchRepository) ListRuns(ctx context.Context, searchID int64, limit int) ([]models.SavedSearchRun, error) {
	runs := []models.SavedSearchRun{}
	err := r.db.SelectContext(ctx, &runs,
		`SELECT * FROM saved_search_runs WHERE saved_search_id = ? ORDER BY run_at DESC LIMIT ?`,
		searchID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// CreateHit records one matched item for a run.
func (r *SavedSearchRepository) CreateHit(ctx context.Context, runID int64, itemID *int64, contentHash string) (int64, error) {
	const query = `
		INSERT INTO saved_search_hits
			(saved_search_run_id, item_id, content_hash, matched_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query, runID, itemID, contentHash, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to create hit: %w", err)
	}
	id, idErr := result.LastInsertId()
	if idErr != nil {
		return 0, fmt.Errorf("failed to read hit id: %w", idErr)
	}
	return id, nil
}

// PreviousHitItemIDs returns the set of item ids hit by any prior run
// of the saved search. This set is the authoritative "already seen"
// side of the only-new diff.
func (r *SavedSearchRepository) PreviousHitItemIDs(ctx context.Context, searchID int64) (map[int64]struct{}, error) {
	var ids []int64
	const query = `
		SELECT DISTINCT h.item_id
		FROM saved_search_hits h
		JOIN saved_search_runs r ON h.saved_search_run_id = r.id
		WHERE r.saved_search_id = ? AND h.item_id IS NOT NULL
	`
	if err := r.db.SelectContext(ctx, &ids, query, searchID); err != nil {
		return nil, fmt.Errorf("failed to load previous hits: %w", err)
	}

	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return seen, nil
}

// HitItemIDs returns the item ids matched by one run, insertion order.
func (r *SavedSearchRepository) HitItemIDs(ctx context.Context, runID int64) ([]int64, error) {
	var ids []int64
	const query = `
		SELECT item_id FROM saved_search_hits
		WHERE saved_search_run_id = ? AND item_id IS NOT NULL
		ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &ids, query, runID); err != nil {
		return nil, fmt.Errorf("failed to load run hits: %w", err)
	}
	return ids, nil
}

// MarkHitsNotified stamps all hits of a run as notified.
func (r *SavedSearchRepository) MarkHitsNotified(ctx context.Context, runID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE saved_search_hits SET notified_at = ? WHERE saved_search_run_id = ?`,
		time.Now().UTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark hits notified: %w", err)
	}
	return nil
}
