package database_test

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/canonical"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/database"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

// newTestDB opens a fresh in-memory store with the schema applied.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// makeItem builds a normalized item with a consistent content hash.
func makeItem(source, sourceItemID, url, title, org string) *models.Item {
	item := &models.Item{
		Source:           source,
		Title:            canonical.Normalize(title),
		OrganizationName: canonical.Normalize(org),
		ContentHash:      canonical.ContentHash(title, org, "", "", url, sourceItemID),
	}
	if sourceItemID != "" {
		item.SourceItemID = strPtr(sourceItemID)
	}
	if url != "" {
		item.URL = strPtr(url)
	}
	return item
}
