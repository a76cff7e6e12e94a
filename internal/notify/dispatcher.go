// Package notify delivers saved-search alerts over Slack webhooks and
// SMTP email, records every delivery attempt with a dedupe key, and
// drains the offline retry queue of failed deliveries.
package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/database"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

// Channel identifiers.
const (
	ChannelSlack = "slack"
	ChannelEmail = "email"
)

// DefaultMaxAttempts is the retry ceiling for failed deliveries.
const DefaultMaxAttempts = 3

// DedupeKey identifies one logical delivery. The same search, run,
// channel, and recipient always produce the same key, which is what
// makes re-dispatch idempotent.
func DedupeKey(searchID, runID int64, channel, recipient string) string {
	content := fmt.Sprintf("%d:%d:%s:%s", searchID, runID, channel, recipient)
	digest := sha256.Sum256([]byte(content))
	return hex.EncodeToString(digest[:])
}

// Sender is one delivery channel.
type Sender interface {
	// Channel returns the channel identifier.
	Channel() string
	// Send delivers a message to one recipient.
	Send(ctx context.Context, recipient string, msg Message) error
}

// Outcome summarizes a dispatch across all recipients.
type Outcome struct {
	Status           string
	NotifiedChannels []string
	ErrorMessage     *string
}

// Dispatcher fans a run's new items out to the configured recipients.
type Dispatcher struct {
	senders       map[string]Sender
	notifications *database.NotificationRepository
	searches      *database.SavedSearchRepository
	items         *database.ItemRepository
	log           logger.Interface
}

// NewDispatcher creates a Dispatcher over the given senders.
func NewDispatcher(
	senders []Sender,
	notifications *database.NotificationRepository,
	searches *database.SavedSearchRepository,
	items *database.ItemRepository,
	log logger.Interface,
) *Dispatcher {
	byChannel := make(map[string]Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Dispatcher{
		senders:       byChannel,
		notifications: notifications,
		searches:      searches,
		items:         items,
		log:           log.WithComponent("notify"),
	}
}

// Send dispatches to every recipient independently: one failed
// recipient never blocks the others. Every attempt is recorded; the
// dedupe key keeps re-dispatch of the same run from double-sending.
func (d *Dispatcher) Send(
	ctx context.Context,
	searchID, runID int64,
	searchName string,
	items []models.Item,
	cfg models.NotifyConfig,
	dryRun bool,
) *Outcome {
	channel := cfg.Channel
	if channel == "" {
		channel = ChannelSlack
	}

	if len(cfg.Recipients) == 0 {
		msg := "no recipients configured"
		return &Outcome{ErrorMessage: &msg}
	}

	sender, ok := d.senders[channel]
	if !ok {
		msg := fmt.Sprintf("unsupported channel %q", channel)
		return &Outcome{Status: models.NotifyStatusFailed, ErrorMessage: &msg}
	}

	msg := Message{SearchName: searchName, Items: items, MaxItems: cfg.MaxItems}

	var notified []string
	var failures []string

	for _, recipient := range cfg.Recipients {
		dedupeKey := DedupeKey(searchID, runID, channel, recipient)

		if dryRun {
			d.log.Info("dry run, skipping delivery",
				"channel", channel, "recipient", recipient, "items", len(items))
			notified = append(notified, channel+":"+recipient)
			continue
		}

		sendErr := sender.Send(ctx, recipient, msg)
		if sendErr == nil {
			if _, err := d.notifications.Create(ctx, runID, channel, recipient,
				models.NotifyStatusOK, dedupeKey, nil); err != nil && !errors.Is(err, models.ErrAlreadyExists) {
				d.log.Error("failed to record delivery", "recipient", recipient, "error", err)
			}
			notified = append(notified, channel+":"+recipient)
			continue
		}

		deliveryErr := &DeliveryError{Channel: channel, Recipient: recipient, Err: sendErr}
		d.log.Error("delivery failed", "channel", channel, "recipient", recipient, "error", sendErr)
		failures = append(failures, deliveryErr.Error())
		errMsg := deliveryErr.Error()
		if _, err := d.notifications.Create(ctx, runID, channel, recipient,
			models.NotifyStatusFailed, dedupeKey, &errMsg); err != nil && !errors.Is(err, models.ErrAlreadyExists) {
			d.log.Error("failed to record delivery", "recipient", recipient, "error", err)
		}
	}

	if len(notified) > 0 && !dryRun {
		if err := d.searches.MarkHitsNotified(ctx, runID); err != nil {
			d.log.Error("failed to mark hits notified", "run_id", runID, "error", err)
		}
	}

	outcome := &Outcome{NotifiedChannels: notified}
	switch {
	case len(failures) == 0:
		outcome.Status = models.NotifyStatusOK
	case len(notified) > 0:
		outcome.Status = models.NotifyStatusPartial
	default:
		outcome.Status = models.NotifyStatusFailed
	}
	if len(failures) > 0 {
		joined := strings.Join(failures, "; ")
		outcome.ErrorMessage = &joined
	}
	return outcome
}

// RetryResult summarizes one drain of the retry queue.
type RetryResult struct {
	Attempted int
	Succeeded int
}

// RetryFailed re-attempts failed deliveries still under the attempt
// ceiling, oldest first. The message is rebuilt from the run's stored
// hits; a run whose search or items are gone is counted and skipped.
func (d *Dispatcher) RetryFailed(ctx context.Context, maxAttempts int) (*RetryResult, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	pending, err := d.notifications.ListFailed(ctx, maxAttempts)
	if err != nil {
		return nil, err
	}

	result := &RetryResult{}
	for _, n := range pending {
		result.Attempted++

		msg, buildErr := d.rebuildMessage(ctx, n.RunID)
		if buildErr != nil {
			d.log.Warn("cannot rebuild notification", "notification_id", n.ID, "error", buildErr)
			errMsg := buildErr.Error()
			if err := d.notifications.UpdateStatus(ctx, n.ID, models.NotifyStatusFailed, &errMsg); err != nil {
				d.log.Error("failed to update notification", "notification_id", n.ID, "error", err)
			}
			continue
		}

		sender, ok := d.senders[n.Channel]
		if !ok {
			d.log.Warn("unsupported channel in retry queue", "channel", n.Channel)
			continue
		}

		if sendErr := sender.Send(ctx, n.Recipient, *msg); sendErr != nil {
			d.log.Error("retry failed", "notification_id", n.ID, "error", sendErr)
			errMsg := sendErr.Error()
			if err := d.notifications.UpdateStatus(ctx, n.ID, models.NotifyStatusFailed, &errMsg); err != nil {
				d.log.Error("failed to update notification", "notification_id", n.ID, "error", err)
			}
			continue
		}

		if err := d.notifications.UpdateStatus(ctx, n.ID, models.NotifyStatusOK, nil); err != nil {
			d.log.Error("failed to update notification", "notification_id", n.ID, "error", err)
			continue
		}
		result.Succeeded++
	}

	d.log.Info("retry queue drained", "attempted", result.Attempted, "succeeded", result.Succeeded)
	return result, nil
}

// rebuildMessage reloads the search name and hit items behind a run.
func (d *Dispatcher) rebuildMessage(ctx context.Context, runID int64) (*Message, error) {
	run, err := d.searches.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %d: %w", runID, err)
	}
	search, err := d.searches.GetByID(ctx, run.SavedSearchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saved search %d: %w", run.SavedSearchID, err)
	}
	itemIDs, err := d.searches.HitItemIDs(ctx, runID)
	if err != nil {
		return nil, err
	}

	items := make([]models.Item, 0, len(itemIDs))
	for _, id := range itemIDs {
		item, err := d.items.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		items = append(items, *item)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("run %d has no surviving items", runID)
	}

	return &Message{SearchName: search.Name, Items: items}, nil
}
