package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Stats reports per-table row counts for operational visibility.
func Stats(ctx context.Context, db *sqlx.DB) (map[string]int, error) {
	tables := []string{"raw_fetches", "items", "saved_searches", "saved_search_runs", "notifications"}

	stats := make(map[string]int, len(tables))
	for _, table := range tables {
		var count int
		if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+table); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[table] = count
	}
	return stats, nil
}
