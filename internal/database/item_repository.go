package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

// ItemRepository persists canonical items and resolves their identity.
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository creates a new item repository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Upsert inserts the item or updates the existing row it resolves to.
// Identity resolution is priority ordered: (source, source_item_id)
// first, then url, then content_hash. The first match wins; the native
// id is the most authoritative signal a source can give us and the
// content hash is only the fallback for sources without stable ids or
// URLs. Returns the row id and whether a new row was inserted.
func (r *ItemRepository) Upsert(ctx context.Context, item *models.Item) (int64, bool, error) {
	existingID, err := r.resolveIdentity(ctx, item)
	if err != nil {
		return 0, false, err
	}

	now := time.Now().UTC()

	if existingID != 0 {
		const query = `
			UPDATE items SET
				source_item_id = ?, url = ?, title = ?, organization_name = ?,
				published_at = ?, deadline_at = ?, category = ?, region = ?,
				body = ?, body_hash = ?, content_hash = ?, updated_at = ?
			WHERE id = ?
		`
		if _, execErr := r.db.ExecContext(ctx, query,
			item.SourceItemID, item.URL, item.Title, item.OrganizationName,
			item.PublishedAt, item.DeadlineAt, item.Category, item.Region,
			item.Body, item.BodyHash, item.ContentHash, now, existingID,
		); execErr != nil {
			return 0, false, fmt.Errorf("failed to update item: %w", execErr)
		}
		return existingID, false, nil
	}

	const query = `
		INSERT INTO items
			(source, source_item_id, url, title, organization_name,
			 published_at, deadline_at, category, region, body, body_hash,
			 content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, execErr := r.db.ExecContext(ctx, query,
		item.Source, item.SourceItemID, item.URL, item.Title, item.OrganizationName,
		item.PublishedAt, item.DeadlineAt, item.Category, item.Region,
		item.Body, item.BodyHash, item.ContentHash, now, now,
	)
	if execErr != nil {
		return 0, false, fmt.Errorf("failed to insert item: %w", execErr)
	}
	id, idErr := result.LastInsertId()
	if idErr != nil {
		return 0, false, fmt.Errorf("failed to read inserted item id: %w", idErr)
	}
	return id, true, nil
}

// resolveIdentity returns the id of the existing row the item resolves
// to, or 0 when no identity signal matches.
func (r *ItemRepository) resolveIdentity(ctx context.Context, item *models.Item) (int64, error) {
	lookups := []struct {
		enabled bool
		query   string
		args    []any
	}{
		{
			enabled: item.SourceItemID != nil && *item.SourceItemID != "",
			query:   `SELECT id FROM items WHERE source = ? AND source_item_id = ?`,
			args:    []any{item.Source, item.SourceItemID},
		},
		{
			enabled: item.URL != nil && *item.URL != "",
			query:   `SELECT id FROM items WHERE url = ?`,
			args:    []any{item.URL},
		},
		{
			enabled: true,
			query:   `SELECT id FROM items WHERE content_hash = ?`,
			args:    []any{item.ContentHash},
		},
	}

	for _, lookup := range lookups {
		if !lookup.enabled {
			continue
		}
		var id int64
		err := r.db.GetContext(ctx, &id, lookup.query, lookup.args...)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("failed to resolve item identity: %w", err)
		}
	}
	return 0, nil
}

// GetByID retrieves an item by id.
func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*models.Item, error) {
	item := &models.Item{}
	err := r.db.GetContext(ctx, item, `SELECT * FROM items WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// Search queries items by the stored filter shape and returns the page
// plus the total match count.
func (r *ItemRepository) Search(
	ctx context.Context,
	filters models.SearchFilters,
	orderBy string,
	limit, offset int,
) ([]models.Item, int, error) {
	conditions := []string{"1=1"}
	args := []any{}

	if filters.Keyword != "" {
		conditions = append(conditions, "(title LIKE ? OR body LIKE ?)")
		pattern := "%" + filters.Keyword + "%"
		args = append(args, pattern, pattern)
	}
	if filters.From != "" {
		conditions = append(conditions, "published_at >= ?")
		args = append(args, filters.From)
	}
	if filters.To != "" {
		conditions = append(conditions, "published_at <= ?")
		args = append(args, filters.To)
	}
	if filters.Org != "" {
		conditions = append(conditions, "organization_name LIKE ?")
		args = append(args, "%"+filters.Org+"%")
	}
	if filters.Source != "" && filters.Source != "all" {
		conditions = append(conditions, "source = ?")
		args = append(args, filters.Source)
	}

	where := strings.Join(conditions, " AND ")

	var order string
	if orderBy == "deadline" {
		order = "CASE WHEN deadline_at IS NULL THEN 1 ELSE 0 END, deadline_at ASC"
	} else {
		order = "COALESCE(published_at, created_at) DESC"
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM items WHERE " + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	items := []models.Item{}
	query := fmt.Sprintf("SELECT * FROM items WHERE %s ORDER BY %s LIMIT ? OFFSET ?", where, order)
	if err := r.db.SelectContext(ctx, &items, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to search items: %w", err)
	}

	return items, total, nil
}
