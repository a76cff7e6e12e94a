package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/database"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

// fakeSender records deliveries and fails for listed recipients.
type fakeSender struct {
	channel string
	failFor map[string]bool
	sent    []string
}

func (f *fakeSender) Channel() string { return f.channel }

func (f *fakeSender) Send(_ context.Context, recipient string, _ Message) error {
	if f.failFor[recipient] {
		return errors.New("webhook returned 500")
	}
	f.sent = append(f.sent, recipient)
	return nil
}

type fixture struct {
	db         *sqlx.DB
	dispatcher *Dispatcher
	sender     *fakeSender
	searches   *database.SavedSearchRepository
	notifs     *database.NotificationRepository
	searchID   int64
	runID      int64
	items      []models.Item
}

func newFixture(t *testing.T, failFor map[string]bool) *fixture {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	searches := database.NewSavedSearchRepository(db)
	itemRepo := database.NewItemRepository(db)
	notifs := database.NewNotificationRepository(db)

	searchID, err := searches.Create(ctx, &models.SavedSearch{
		Name:        "cleaning-tenders",
		FiltersJSON: `{"keyword":"清掃"}`,
		OrderBy:     "newest",
		OnlyNew:     true,
		Enabled:     true,
	})
	require.NoError(t, err)

	runID, err := searches.CreateRun(ctx, searchID, nil, nil)
	require.NoError(t, err)

	var items []models.Item
	for _, title := range []string{"案件1", "案件2"} {
		item := &models.Item{
			Source:           "kkj",
			Title:            title,
			OrganizationName: "総務省",
			ContentHash:      "hash-" + title,
		}
		id, _, err := itemRepo.Upsert(ctx, item)
		require.NoError(t, err)
		item.ID = id
		_, err = searches.CreateHit(ctx, runID, &id, item.ContentHash)
		require.NoError(t, err)
		items = append(items, *item)
	}

	sender := &fakeSender{channel: ChannelSlack, failFor: failFor}
	dispatcher := NewDispatcher(
		[]Sender{sender}, notifs, searches, itemRepo, logger.NewNoop())

	return &fixture{
		db: db, dispatcher: dispatcher, sender: sender,
		searches: searches, notifs: notifs,
		searchID: searchID, runID: runID, items: items,
	}
}

func notifyCfg(recipients ...string) models.NotifyConfig {
	return models.NotifyConfig{
		Channel:    ChannelSlack,
		Recipients: recipients,
		Enabled:    true,
	}
}

func TestDedupeKey(t *testing.T) {
	key := DedupeKey(1, 2, "slack", "https://hooks.example/a")
	assert.Len(t, key, 64)
	assert.Equal(t, key, DedupeKey(1, 2, "slack", "https://hooks.example/a"))
	assert.NotEqual(t, key, DedupeKey(1, 3, "slack", "https://hooks.example/a"))
	assert.NotEqual(t, key, DedupeKey(1, 2, "email", "https://hooks.example/a"))
}

func TestDispatcherSend(t *testing.T) {
	ctx := context.Background()

	t.Run("all recipients ok", func(t *testing.T) {
		f := newFixture(t, nil)

		outcome := f.dispatcher.Send(ctx, f.searchID, f.runID, "cleaning-tenders",
			f.items, notifyCfg("hook-a", "hook-b"), false)

		assert.Equal(t, models.NotifyStatusOK, outcome.Status)
		assert.Equal(t, []string{"slack:hook-a", "slack:hook-b"}, outcome.NotifiedChannels)
		assert.Nil(t, outcome.ErrorMessage)

		rows, err := f.notifs.ListByRun(ctx, f.runID)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		for _, row := range rows {
			assert.Equal(t, models.NotifyStatusOK, row.Status)
			assert.Equal(t, 1, row.AttemptCount)
		}
	})

	t.Run("one failing recipient is partial", func(t *testing.T) {
		f := newFixture(t, map[string]bool{"hook-b": true})

		outcome := f.dispatcher.Send(ctx, f.searchID, f.runID, "cleaning-tenders",
			f.items, notifyCfg("hook-a", "hook-b", "hook-c"), false)

		assert.Equal(t, models.NotifyStatusPartial, outcome.Status)
		assert.Equal(t, []string{"slack:hook-a", "slack:hook-c"}, outcome.NotifiedChannels)
		require.NotNil(t, outcome.ErrorMessage)
		assert.Contains(t, *outcome.ErrorMessage, "500")

		rows, err := f.notifs.ListByRun(ctx, f.runID)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, models.NotifyStatusFailed, rows[1].Status)
		assert.Equal(t, 1, rows[1].AttemptCount)

		// Hits are marked because at least one delivery landed.
		var notified int
		require.NoError(t, f.db.Get(&notified,
			`SELECT COUNT(*) FROM saved_search_hits WHERE saved_search_run_id = ? AND notified_at IS NOT NULL`,
			f.runID))
		assert.Equal(t, 2, notified)
	})

	t.Run("every recipient failing is failed", func(t *testing.T) {
		f := newFixture(t, map[string]bool{"hook-a": true})

		outcome := f.dispatcher.Send(ctx, f.searchID, f.runID, "cleaning-tenders",
			f.items, notifyCfg("hook-a"), false)

		assert.Equal(t, models.NotifyStatusFailed, outcome.Status)
		assert.Empty(t, outcome.NotifiedChannels)

		var notified int
		require.NoError(t, f.db.Get(&notified,
			`SELECT COUNT(*) FROM saved_search_hits WHERE notified_at IS NOT NULL`))
		assert.Zero(t, notified)
	})

	t.Run("no recipients configured", func(t *testing.T) {
		f := newFixture(t, nil)

		outcome := f.dispatcher.Send(ctx, f.searchID, f.runID, "cleaning-tenders",
			f.items, notifyCfg(), false)

		assert.Empty(t, outcome.Status)
		require.NotNil(t, outcome.ErrorMessage)
		assert.Empty(t, f.sender.sent)
	})

	t.Run("unsupported channel", func(t *testing.T) {
		f := newFixture(t, nil)

		cfg := notifyCfg("someone")
		cfg.Channel = "pager"
		outcome := f.dispatcher.Send(ctx, f.searchID, f.runID, "cleaning-tenders",
			f.items, cfg, false)

		assert.Equal(t, models.NotifyStatusFailed, outcome.Status)
	})

	t.Run("dry run delivers and records nothing", func(t *testing.T) {
		f := newFixture(t, nil)

		outcome := f.dispatcher.Send(ctx, f.searchID, f.runID, "cleaning-tenders",
			f.items, notifyCfg("hook-a"), true)

		assert.Equal(t, models.NotifyStatusOK, outcome.Status)
		assert.Equal(t, []string{"slack:hook-a"}, outcome.NotifiedChannels)
		assert.Empty(t, f.sender.sent)

		rows, err := f.notifs.ListByRun(ctx, f.runID)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("re-dispatch does not double-record", func(t *testing.T) {
		f := newFixture(t, nil)

		f.dispatcher.Send(ctx, f.searchID, f.runID, "cleaning-tenders",
			f.items, notifyCfg("hook-a"), false)
		f.dispatcher.Send(ctx, f.searchID, f.runID, "cleaning-tenders",
			f.items, notifyCfg("hook-a"), false)

		rows, err := f.notifs.ListByRun(ctx, f.runID)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}

func TestDispatcherRetryFailed(t *testing.T) {
	ctx := context.Background()

	t.Run("successful retry clears the queue", func(t *testing.T) {
		f := newFixture(t, map[string]bool{"hook-a": true})

		f.dispatcher.Send(ctx, f.searchID, f.runID, "cleaning-tenders",
			f.items, notifyCfg("hook-a"), false)

		// Transient failure resolves before the retry pass.
		f.sender.failFor = nil

		result, err := f.dispatcher.RetryFailed(ctx, DefaultMaxAttempts)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Attempted)
		assert.Equal(t, 1, result.Succeeded)

		rows, err := f.notifs.ListByRun(ctx, f.runID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, models.NotifyStatusOK, rows[0].Status)
		assert.Equal(t, 2, rows[0].AttemptCount)

		remaining, err := f.notifs.ListFailed(ctx, DefaultMaxAttempts)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})

	t.Run("retries stop at the attempt ceiling", func(t *testing.T) {
		f := newFixture(t, map[string]bool{"hook-a": true})

		f.dispatcher.Send(ctx, f.searchID, f.runID, "cleaning-tenders",
			f.items, notifyCfg("hook-a"), false)

		for i := 0; i < 2; i++ {
			result, err := f.dispatcher.RetryFailed(ctx, DefaultMaxAttempts)
			require.NoError(t, err)
			assert.Equal(t, 1, result.Attempted)
			assert.Zero(t, result.Succeeded)
		}

		// Third pass finds nothing under the ceiling.
		result, err := f.dispatcher.RetryFailed(ctx, DefaultMaxAttempts)
		require.NoError(t, err)
		assert.Zero(t, result.Attempted)

		rows, err := f.notifs.ListByRun(ctx, f.runID)
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxAttempts, rows[0].AttemptCount)
	})

	t.Run("retry message is rebuilt from stored hits", func(t *testing.T) {
		f := newFixture(t, map[string]bool{"hook-a": true})

		f.dispatcher.Send(ctx, f.searchID, f.runID, "cleaning-tenders",
			f.items, notifyCfg("hook-a"), false)

		msg, err := f.dispatcher.rebuildMessage(ctx, f.runID)
		require.NoError(t, err)
		assert.Equal(t, "cleaning-tenders", msg.SearchName)
		require.Len(t, msg.Items, 2)
		assert.Equal(t, "案件1", msg.Items[0].Title)
	})
}
