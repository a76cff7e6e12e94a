package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/canonical"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/database"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

func TestItemRepositoryUpsertIsNewExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewItemRepository(db)
	ctx := context.Background()

	item := makeItem("kkj", "key-1", "https://example.go.jp/1", "道路補修工事", "国土交通省")

	id1, isNew, err := repo.Upsert(ctx, item)
	require.NoError(t, err)
	assert.True(t, isNew)
	require.NotZero(t, id1)

	id2, isNew, err := repo.Upsert(ctx, item)
	require.NoError(t, err)
	assert.False(t, isNew, "re-upserting the same identity must not insert")
	assert.Equal(t, id1, id2)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM items`))
	assert.Equal(t, 1, count)
}

func TestItemRepositoryUpsertResolutionOrder(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewItemRepository(db)
	ctx := context.Background()

	testCases := []struct {
		name    string
		first   *models.Item
		second  *models.Item
		sameRow bool
	}{
		{
			name:    "matches on source native id even when url differs",
			first:   makeItem("kkj", "key-a", "https://example.go.jp/a", "title a", "org"),
			second:  makeItem("kkj", "key-a", "https://example.go.jp/a-moved", "title a v2", "org"),
			sameRow: true,
		},
		{
			name:    "matches on url when no native id",
			first:   makeItem("pportal", "", "https://example.go.jp/b", "title b", "org"),
			second:  makeItem("pportal", "", "https://example.go.jp/b", "title b updated", "org"),
			sameRow: true,
		},
		{
			name:    "matches on content hash when neither id nor url",
			first:   makeItem("kkj", "", "", "title c", "org c"),
			second:  makeItem("kkj", "", "", "title c", "org c"),
			sameRow: true,
		},
		{
			name:    "distinct native ids stay distinct",
			first:   makeItem("kkj", "key-d1", "", "title d", "org"),
			second:  makeItem("kkj", "key-d2", "", "title d", "org"),
			sameRow: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id1, isNew, err := repo.Upsert(ctx, tc.first)
			require.NoError(t, err)
			require.True(t, isNew)

			id2, isNew2, err := repo.Upsert(ctx, tc.second)
			require.NoError(t, err)

			if tc.sameRow {
				assert.False(t, isNew2)
				assert.Equal(t, id1, id2)
			} else {
				assert.True(t, isNew2)
				assert.NotEqual(t, id1, id2)
			}
		})
	}
}

func TestItemRepositoryUpsertWhitespaceVariantUpdatesExistingRow(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewItemRepository(db)
	ctx := context.Background()

	// No native id and no URL: identity rides on the content hash, and
	// canonicalization makes whitespace variants hash identically.
	first := &models.Item{
		Source:           "kkj",
		Title:            canonical.Normalize("システム保守  業務"),
		OrganizationName: canonical.Normalize("経済産業省"),
		ContentHash:      canonical.ContentHash("システム保守  業務", "経済産業省", "", "", "", ""),
	}
	second := &models.Item{
		Source:           "kkj",
		Title:            canonical.Normalize("システム保守\n業務"),
		OrganizationName: canonical.Normalize(" 経済産業省 "),
		ContentHash:      canonical.ContentHash("システム保守\n業務", " 経済産業省 ", "", "", "", ""),
	}

	id1, isNew, err := repo.Upsert(ctx, first)
	require.NoError(t, err)
	require.True(t, isNew)

	id2, isNew2, err := repo.Upsert(ctx, second)
	require.NoError(t, err)
	assert.False(t, isNew2, "whitespace-only differences must update, not duplicate")
	assert.Equal(t, id1, id2)
}

func TestItemRepositoryUpsertRefreshesUpdatedAt(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewItemRepository(db)
	ctx := context.Background()

	item := makeItem("kkj", "key-ts", "", "timestamps", "org")
	id, _, err := repo.Upsert(ctx, item)
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, stored.CreatedAt, stored.UpdatedAt)

	time.Sleep(10 * time.Millisecond)
	_, _, err = repo.Upsert(ctx, item)
	require.NoError(t, err)

	updated, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, stored.CreatedAt, updated.CreatedAt, "created_at is immutable")
	assert.True(t, updated.UpdatedAt.After(stored.UpdatedAt))
}

func TestItemRepositorySearch(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewItemRepository(db)
	ctx := context.Background()

	jan := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	seed := []*models.Item{
		{Source: "kkj", Title: "AI開発業務", OrganizationName: "デジタル庁", PublishedAt: timePtr(jan), ContentHash: canonical.ContentHash("AI開発業務", "デジタル庁", "2025-01-10", "", "", "")},
		{Source: "kkj", Title: "庁舎清掃業務", OrganizationName: "財務省", PublishedAt: timePtr(feb), ContentHash: canonical.ContentHash("庁舎清掃業務", "財務省", "2025-02-10", "", "", "")},
		{Source: "pportal", Title: "AI実証実験", OrganizationName: "経済産業省", PublishedAt: timePtr(feb), ContentHash: canonical.ContentHash("AI実証実験", "経済産業省", "2025-02-10", "", "", "")},
	}
	for _, item := range seed {
		_, _, err := repo.Upsert(ctx, item)
		require.NoError(t, err)
	}

	t.Run("keyword filter", func(t *testing.T) {
		items, total, err := repo.Search(ctx, models.SearchFilters{Keyword: "AI"}, "newest", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, items, 2)
	})

	t.Run("source filter", func(t *testing.T) {
		items, total, err := repo.Search(ctx, models.SearchFilters{Source: "pportal"}, "newest", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, "AI実証実験", items[0].Title)
	})

	t.Run("date bounds", func(t *testing.T) {
		_, total, err := repo.Search(ctx, models.SearchFilters{From: "2025-02-01"}, "newest", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
	})

	t.Run("newest ordering", func(t *testing.T) {
		items, _, err := repo.Search(ctx, models.SearchFilters{}, "newest", 10, 0)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, feb.Unix(), items[0].PublishedAt.Unix())
	})

	t.Run("limit and total diverge", func(t *testing.T) {
		items, total, err := repo.Search(ctx, models.SearchFilters{}, "newest", 1, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, items, 1)
	})
}
