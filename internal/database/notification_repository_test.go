package database_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/database"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

func seedRun(t *testing.T, db *sqlx.DB) int64 {
	t.Helper()

	searches := database.NewSavedSearchRepository(db)
	searchID := seedSearch(t, searches, "notify-target")
	runID, err := searches.CreateRun(context.Background(), searchID, nil, nil)
	require.NoError(t, err)
	return runID
}

func TestNotificationDedupeKeyUnique(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewNotificationRepository(db)
	ctx := context.Background()
	runID := seedRun(t, db)

	id, err := repo.Create(ctx, runID, "slack", "#bids", models.NotifyStatusOK, "dedupe-1", nil)
	require.NoError(t, err)
	require.NotZero(t, id)

	_, err = repo.Create(ctx, runID, "slack", "#bids", models.NotifyStatusOK, "dedupe-1", nil)
	assert.ErrorIs(t, err, models.ErrAlreadyExists)

	// A distinct recipient gets a distinct key and its own row.
	_, err = repo.Create(ctx, runID, "slack", "#ops", models.NotifyStatusOK, "dedupe-2", nil)
	assert.NoError(t, err)
}

func TestNotificationRetryBookkeeping(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewNotificationRepository(db)
	ctx := context.Background()
	runID := seedRun(t, db)

	id, err := repo.Create(ctx, runID, "email", "ops@example.com", models.NotifyStatusFailed, "dedupe-retry", strPtr("smtp timeout"))
	require.NoError(t, err)

	failed, err := repo.ListFailed(ctx, 3)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].AttemptCount)
	require.NotNil(t, failed[0].ErrorMessage)
	assert.Equal(t, "smtp timeout", *failed[0].ErrorMessage)

	// Second failed attempt stays selectable, third hits the ceiling.
	require.NoError(t, repo.UpdateStatus(ctx, id, models.NotifyStatusFailed, strPtr("smtp timeout again")))
	failed, err = repo.ListFailed(ctx, 3)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].AttemptCount)

	require.NoError(t, repo.UpdateStatus(ctx, id, models.NotifyStatusFailed, strPtr("gave up")))
	failed, err = repo.ListFailed(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, failed, "attempt_count=3 is no longer under the ceiling")
}

func TestNotificationRetrySuccessClearsFromQueue(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewNotificationRepository(db)
	ctx := context.Background()
	runID := seedRun(t, db)

	id, err := repo.Create(ctx, runID, "slack", "#bids", models.NotifyStatusFailed, "dedupe-ok", strPtr("transient"))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, id, models.NotifyStatusOK, nil))

	failed, err := repo.ListFailed(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, failed)

	all, err := repo.ListByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.NotifyStatusOK, all[0].Status)
	assert.Equal(t, 2, all[0].AttemptCount)
}

func TestNotificationListFailedOrderedByOldestAttempt(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewNotificationRepository(db)
	ctx := context.Background()
	runID := seedRun(t, db)

	_, err := repo.Create(ctx, runID, "email", "first@example.com", models.NotifyStatusFailed, "k1", nil)
	require.NoError(t, err)
	_, err = repo.Create(ctx, runID, "email", "second@example.com", models.NotifyStatusFailed, "k2", nil)
	require.NoError(t, err)

	failed, err := repo.ListFailed(ctx, 3)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.False(t, failed[0].LastAttemptAt.After(failed[1].LastAttemptAt))
}

func TestNotificationCreateDatabaseError(t *testing.T) {
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer rawDB.Close()

	repo := database.NewNotificationRepository(sqlx.NewDb(rawDB, "sqlite3"))

	mock.ExpectExec("INSERT INTO notifications").WillReturnError(sql.ErrConnDone)

	_, err = repo.Create(context.Background(), 1, "slack", "#bids", models.NotifyStatusOK, "key", nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
