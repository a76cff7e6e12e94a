package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

// NotificationRepository tracks delivery attempts per recipient. The
// dedupe key uniqueness is what prevents double-creating the same
// logical delivery.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create records a delivery attempt with attempt_count=1. Returns
// models.ErrAlreadyExists when the dedupe key is already present.
func (r *NotificationRepository) Create(
	ctx context.Context,
	runID int64,
	channel, recipient, status, dedupeKey string,
	errorMessage *string,
) (int64, error) {
	const query = `
		INSERT INTO notifications
			(saved_search_run_id, channel, recipient, status, attempt_count, last_attempt_at, error_message, dedupe_key)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		runID, channel, recipient, status, time.Now().UTC(), errorMessage, dedupeKey,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, models.ErrAlreadyExists
		}
		return 0, fmt.Errorf("failed to create notification: %w", err)
	}
	id, idErr := result.LastInsertId()
	if idErr != nil {
		return 0, fmt.Errorf("failed to read notification id: %w", idErr)
	}
	return id, nil
}

// UpdateStatus records the outcome of a retry: status and error are
// overwritten, attempt_count is incremented in place.
func (r *NotificationRepository) UpdateStatus(
	ctx context.Context,
	notificationID int64,
	status string,
	errorMessage *string,
) error {
	const query = `
		UPDATE notifications SET
			status = ?, attempt_count = attempt_count + 1,
			last_attempt_at = ?, error_message = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), errorMessage, notificationID)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}

// ListFailed returns failed notifications still under the attempt
// ceiling, oldest attempt first. This is the offline retry queue.
func (r *NotificationRepository) ListFailed(ctx context.Context, maxAttempts int) ([]models.Notification, error) {
	notifications := []models.Notification{}
	const query = `
		SELECT * FROM notifications
		WHERE status = ? AND attempt_count < ?
		ORDER BY last_attempt_at ASC
	`
	err := r.db.SelectContext(ctx, &notifications, query, models.NotifyStatusFailed, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed notifications: %w", err)
	}
	return notifications, nil
}

// ListByRun returns all notifications recorded for a run.
func (r *NotificationRepository) ListByRun(ctx context.Context, runID int64) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := r.db.SelectContext(ctx, &notifications,
		`SELECT * FROM notifications WHERE saved_search_run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}
