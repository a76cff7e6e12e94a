// Package normalizer maps raw source records onto canonical items.
// It owns the permissive date parsing, the unknown-organization
// fallback, and the identity hash computation; everything downstream
// works with fully formed models.Item values.
package normalizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/canonical"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/sources"
)

// RecordError reports one record that could not be normalized. The
// source key is carried so the failure can be correlated back to the
// archived raw payload.
type RecordError struct {
	SourceKey string
	Err       error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %q: %v", e.SourceKey, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// dateLayouts are tried in order. Source date strings range from full
// RFC 3339 timestamps to bare dates.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// Normalizer converts source records to items.
type Normalizer struct {
	log logger.Interface
}

// New creates a Normalizer.
func New(log logger.Interface) *Normalizer {
	return &Normalizer{log: log.WithComponent("normalizer")}
}

// NormalizeRecord converts one record. The title is the only hard
// requirement; a missing organization falls back to the sentinel and
// unparsable dates are dropped with a log line, never an error.
func (n *Normalizer) NormalizeRecord(rec sources.Record, source string) (*models.Item, error) {
	title := canonical.Normalize(rec.Title)
	if title == "" {
		return nil, &RecordError{SourceKey: rec.Key, Err: fmt.Errorf("missing title")}
	}

	org := canonical.Normalize(rec.Organization)
	if org == "" {
		org = models.UnknownOrganization
	}

	publishedAt := n.parseDate(rec.PublishedRaw, rec.Key, "published")
	deadlineAt := n.parseDate(rec.DeadlineRaw, rec.Key, "deadline")

	item := &models.Item{
		Source:           source,
		Title:            title,
		OrganizationName: org,
		PublishedAt:      publishedAt,
		DeadlineAt:       deadlineAt,
	}

	if key := canonical.Normalize(rec.Key); key != "" {
		item.SourceItemID = &key
	}
	if u := strings.TrimSpace(rec.URL); u != "" {
		item.URL = &u
	}
	if category := canonical.Normalize(rec.Category); category != "" {
		item.Category = &category
	}
	if region := joinRegion(rec.Prefecture, rec.City); region != "" {
		item.Region = &region
	}
	if body := canonical.Normalize(rec.Body); body != "" {
		item.Body = &body
		bodyHash := canonical.BodyHash(rec.Body)
		item.BodyHash = &bodyHash
	}

	// The hash sees the raw date strings, not the parsed times, so a
	// record keeps its identity even when a date fails to parse.
	item.ContentHash = canonical.ContentHash(
		rec.Title,
		valueOrUnknown(rec.Organization),
		rec.PublishedRaw,
		rec.DeadlineRaw,
		strings.TrimSpace(rec.URL),
		rec.Key,
	)

	return item, nil
}

// NormalizeBatch converts a batch, partitioning it into items and
// per-record errors. Output order follows input order and one bad
// record never blocks the rest.
func (n *Normalizer) NormalizeBatch(recs []sources.Record, source string) ([]*models.Item, []error) {
	items := make([]*models.Item, 0, len(recs))
	var errs []error
	for _, rec := range recs {
		item, err := n.NormalizeRecord(rec, source)
		if err != nil {
			n.log.Warn("skipping record", "source", source, "key", rec.Key, "error", err)
			errs = append(errs, err)
			continue
		}
		items = append(items, item)
	}
	return items, errs
}

// parseDate tries each accepted layout. A failure is logged and the
// date dropped; identity hashing works from the raw strings and is
// unaffected.
func (n *Normalizer) parseDate(raw, key, field string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	n.log.Warn("unparsable date", "key", key, "field", field, "value", raw)
	return nil
}

func joinRegion(prefecture, city string) string {
	parts := make([]string, 0, 2)
	if p := canonical.Normalize(prefecture); p != "" {
		parts = append(parts, p)
	}
	if c := canonical.Normalize(city); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, " ")
}

func valueOrUnknown(org string) string {
	if canonical.Normalize(org) == "" {
		return models.UnknownOrganization
	}
	return org
}
