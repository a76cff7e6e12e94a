package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/database"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

func newTestServer(t *testing.T) (*Server, *sqlx.DB) {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	server := NewServer(":0", db,
		database.NewItemRepository(db),
		database.NewSavedSearchRepository(db),
		logger.NewNoop(), false)
	return server, db
}

func seedItems(t *testing.T, db *sqlx.DB) {
	t.Helper()
	repo := database.NewItemRepository(db)
	for _, item := range []models.Item{
		{Source: "kkj", Title: "庁舎清掃業務", OrganizationName: "総務省", ContentHash: "h1"},
		{Source: "kkj", Title: "システム保守", OrganizationName: "経済産業省", ContentHash: "h2"},
		{Source: "pportal", Title: "清掃用具調達", OrganizationName: "国土交通省", ContentHash: "h3"},
	} {
		item := item
		_, _, err := repo.Upsert(context.Background(), &item)
		require.NoError(t, err)
	}
}

func doGET(t *testing.T, server *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	server.Engine().ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)
	rec, body := doGET(t, server, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestListItems(t *testing.T) {
	server, db := newTestServer(t)
	seedItems(t, db)

	t.Run("all items", func(t *testing.T) {
		rec, body := doGET(t, server, "/api/v1/items")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 3, body["total"])
		assert.Len(t, body["items"], 3)
	})

	t.Run("keyword filter", func(t *testing.T) {
		rec, body := doGET(t, server, "/api/v1/items?keyword=清掃")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 2, body["total"])
	})

	t.Run("source filter", func(t *testing.T) {
		_, body := doGET(t, server, "/api/v1/items?source=pportal")
		assert.EqualValues(t, 1, body["total"])
	})

	t.Run("pagination", func(t *testing.T) {
		_, body := doGET(t, server, "/api/v1/items?limit=2&offset=2")
		assert.EqualValues(t, 3, body["total"])
		assert.Len(t, body["items"], 1)
	})
}

func TestGetItem(t *testing.T) {
	server, db := newTestServer(t)
	seedItems(t, db)

	t.Run("found", func(t *testing.T) {
		rec, body := doGET(t, server, "/api/v1/items/1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "庁舎清掃業務", body["title"])
	})

	t.Run("not found", func(t *testing.T) {
		rec, _ := doGET(t, server, "/api/v1/items/999")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec, _ := doGET(t, server, "/api/v1/items/banana")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListSavedSearches(t *testing.T) {
	server, db := newTestServer(t)
	repo := database.NewSavedSearchRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.SavedSearch{
		Name: "active", FiltersJSON: "{}", OrderBy: "newest", Enabled: true,
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.SavedSearch{
		Name: "dormant", FiltersJSON: "{}", OrderBy: "newest", Enabled: false,
	})
	require.NoError(t, err)

	t.Run("all", func(t *testing.T) {
		_, body := doGET(t, server, "/api/v1/saved-searches")
		assert.Len(t, body["saved_searches"], 2)
	})

	t.Run("enabled only", func(t *testing.T) {
		_, body := doGET(t, server, "/api/v1/saved-searches?enabled=true")
		assert.Len(t, body["saved_searches"], 1)
	})
}

func TestListRuns(t *testing.T) {
	server, db := newTestServer(t)
	repo := database.NewSavedSearchRepository(db)
	ctx := context.Background()

	searchID, err := repo.Create(ctx, &models.SavedSearch{
		Name: "watched", FiltersJSON: "{}", OrderBy: "newest", Enabled: true,
	})
	require.NoError(t, err)

	runID, err := repo.CreateRun(ctx, searchID, nil, nil)
	require.NoError(t, err)
	require.NoError(t, repo.FinalizeRun(ctx, runID, database.RunOutcome{
		HitCount: 4, Status: models.RunStatusOK,
	}))

	t.Run("runs returned", func(t *testing.T) {
		rec, body := doGET(t, server, "/api/v1/saved-searches/watched/runs")
		assert.Equal(t, http.StatusOK, rec.Code)
		runs := body["runs"].([]any)
		require.Len(t, runs, 1)
		run := runs[0].(map[string]any)
		assert.EqualValues(t, 4, run["hit_count"])
		assert.Equal(t, models.RunStatusOK, run["status"])
	})

	t.Run("unknown search", func(t *testing.T) {
		rec, _ := doGET(t, server, "/api/v1/saved-searches/ghost/runs")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestStats(t *testing.T) {
	server, db := newTestServer(t)
	seedItems(t, db)

	rec, body := doGET(t, server, "/api/v1/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["items"])
	assert.EqualValues(t, 0, body["saved_searches"])
}
