// Package models defines the canonical entities shared across the
// ingestion pipeline, the saved-search engine, and the notification
// dispatcher.
package models

import "time"

// Run and notification status values persisted to the store.
const (
	RunStatusRunning = "running"
	RunStatusOK      = "ok"
	RunStatusFailed  = "failed"

	NotifyStatusOK      = "ok"
	NotifyStatusPartial = "partial"
	NotifyStatusFailed  = "failed"
)

// UnknownOrganization is the sentinel stored when a source record
// carries no organization name.
const UnknownOrganization = "unknown"

// RawFetch is the archival record of one raw network response. It is
// written once per fetch and never mutated, so failed normalizations
// can always be replayed from the stored payload.
type RawFetch struct {
	ID                 int64     `db:"id"`
	Source             string    `db:"source"`
	FetchedAt          time.Time `db:"fetched_at"`
	RequestFingerprint string    `db:"request_fingerprint"`
	HTTPStatus         int       `db:"http_status"`
	ContentType        string    `db:"content_type"`
	RawHash            string    `db:"raw_hash"`
	RawPayload         []byte    `db:"raw_payload"`
}

// Item is the canonical, deduplicated representation of one
// procurement announcement. ContentHash is mandatory and acts as the
// dedup fallback key when neither SourceItemID nor URL is available.
type Item struct {
	ID               int64      `db:"id"                json:"id"`
	Source           string     `db:"source"            json:"source"`
	SourceItemID     *string    `db:"source_item_id"    json:"source_item_id,omitempty"`
	URL              *string    `db:"url"               json:"url,omitempty"`
	Title            string     `db:"title"             json:"title"`
	OrganizationName string     `db:"organization_name" json:"organization_name"`
	PublishedAt      *time.Time `db:"published_at"      json:"published_at,omitempty"`
	DeadlineAt       *time.Time `db:"deadline_at"       json:"deadline_at,omitempty"`
	Category         *string    `db:"category"          json:"category,omitempty"`
	Region           *string    `db:"region"            json:"region,omitempty"`
	Body             *string    `db:"body"              json:"body,omitempty"`
	BodyHash         *string    `db:"body_hash"         json:"body_hash,omitempty"`
	ContentHash      string     `db:"content_hash"      json:"content_hash"`
	CreatedAt        time.Time  `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"        json:"updated_at"`
}

// SavedSearch is a persisted filter definition re-evaluated
// periodically to detect newly matching items.
type SavedSearch struct {
	ID          int64      `db:"id"           json:"id"`
	Name        string     `db:"name"         json:"name"`
	FiltersJSON string     `db:"filters_json" json:"filters_json"`
	QueryRef    *string    `db:"query_ref"    json:"query_ref,omitempty"`
	OrderBy     string     `db:"order_by"     json:"order_by"`
	Schedule    *string    `db:"schedule"     json:"schedule,omitempty"`
	OnlyNew     bool       `db:"only_new"     json:"only_new"`
	Enabled     bool       `db:"enabled"      json:"enabled"`
	LastRunAt   *time.Time `db:"last_run_at"  json:"last_run_at,omitempty"`
	LastHitAt   *time.Time `db:"last_hit_at"  json:"last_hit_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
}

// SavedSearchRun is one execution instance of a saved search. A run is
// created in running status and finalized exactly once.
type SavedSearchRun struct {
	ID               int64     `db:"id"                json:"id"`
	SavedSearchID    int64     `db:"saved_search_id"   json:"saved_search_id"`
	QueryRef         *string   `db:"query_ref"         json:"query_ref,omitempty"`
	FiltersSnapshot  *string   `db:"filters_snapshot"  json:"filters_snapshot,omitempty"`
	RunAt            time.Time `db:"run_at"            json:"run_at"`
	HitCount         int       `db:"hit_count"         json:"hit_count"`
	Status           string    `db:"status"            json:"status"`
	ErrorMessage     *string   `db:"error_message"     json:"error_message,omitempty"`
	NotifiedChannels *string   `db:"notified_channels" json:"notified_channels,omitempty"`
	NotifyStatus     *string   `db:"notify_status"     json:"notify_status,omitempty"`
	NotifyError      *string   `db:"notify_error"      json:"notify_error,omitempty"`
}

// SavedSearchHit links a run to an item it matched. ContentHash is
// retained alongside the item id so hits survive even when the item
// row was never persisted (dry runs).
type SavedSearchHit struct {
	ID          int64      `db:"id"`
	RunID       int64      `db:"saved_search_run_id"`
	ItemID      *int64     `db:"item_id"`
	ContentHash *string    `db:"content_hash"`
	MatchedAt   time.Time  `db:"matched_at"`
	NotifiedAt  *time.Time `db:"notified_at"`
}

// Notification is one delivery attempt record. DedupeKey is unique so
// the same logical delivery is never recorded twice; retries update
// the existing row and bump AttemptCount.
type Notification struct {
	ID            int64     `db:"id"`
	RunID         int64     `db:"saved_search_run_id"`
	Channel       string    `db:"channel"`
	Recipient     string    `db:"recipient"`
	Status        string    `db:"status"`
	AttemptCount  int       `db:"attempt_count"`
	LastAttemptAt time.Time `db:"last_attempt_at"`
	ErrorMessage  *string   `db:"error_message"`
	DedupeKey     string    `db:"dedupe_key"`
}
