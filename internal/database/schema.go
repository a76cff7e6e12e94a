package database

// schema is the full DDL for the canonical store. Unique indexes on
// (source, source_item_id) and url are partial: NULL identity signals
// must not collide with each other.
const schema = `
CREATE TABLE IF NOT EXISTS raw_fetches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    fetched_at TIMESTAMP NOT NULL,
    request_fingerprint TEXT NOT NULL,
    http_status INTEGER NOT NULL,
    content_type TEXT NOT NULL,
    raw_hash TEXT NOT NULL,
    raw_payload BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_fetches_source ON raw_fetches(source);
CREATE INDEX IF NOT EXISTS idx_raw_fetches_fetched_at ON raw_fetches(fetched_at);
CREATE INDEX IF NOT EXISTS idx_raw_fetches_raw_hash ON raw_fetches(raw_hash);

CREATE TABLE IF NOT EXISTS items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    source_item_id TEXT,
    url TEXT,
    title TEXT NOT NULL,
    organization_name TEXT NOT NULL,
    published_at TIMESTAMP,
    deadline_at TIMESTAMP,
    category TEXT,
    region TEXT,
    body TEXT,
    body_hash TEXT,
    content_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_source_item
    ON items(source, source_item_id) WHERE source_item_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_items_url
    ON items(url) WHERE url IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_items_content_hash ON items(content_hash);
CREATE INDEX IF NOT EXISTS idx_items_published_at ON items(published_at);
CREATE INDEX IF NOT EXISTS idx_items_deadline_at ON items(deadline_at);
CREATE INDEX IF NOT EXISTS idx_items_organization_name ON items(organization_name);

CREATE TABLE IF NOT EXISTS saved_searches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    filters_json TEXT NOT NULL,
    query_ref TEXT,
    order_by TEXT NOT NULL DEFAULT 'newest',
    schedule TEXT,
    only_new INTEGER NOT NULL DEFAULT 1,
    enabled INTEGER NOT NULL DEFAULT 1,
    last_run_at TIMESTAMP,
    last_hit_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS saved_search_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    saved_search_id INTEGER NOT NULL REFERENCES saved_searches(id),
    query_ref TEXT,
    filters_snapshot TEXT,
    run_at TIMESTAMP NOT NULL,
    hit_count INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    error_message TEXT,
    notified_channels TEXT,
    notify_status TEXT,
    notify_error TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_saved_search_id ON saved_search_runs(saved_search_id);
CREATE INDEX IF NOT EXISTS idx_runs_run_at ON saved_search_runs(run_at);

CREATE TABLE IF NOT EXISTS saved_search_hits (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    saved_search_run_id INTEGER NOT NULL REFERENCES saved_search_runs(id),
    item_id INTEGER REFERENCES items(id),
    content_hash TEXT,
    matched_at TIMESTAMP NOT NULL,
    notified_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_hits_run_id ON saved_search_hits(saved_search_run_id);
CREATE INDEX IF NOT EXISTS idx_hits_item_id ON saved_search_hits(item_id);
CREATE INDEX IF NOT EXISTS idx_hits_notified_at ON saved_search_hits(notified_at);

CREATE TABLE IF NOT EXISTS notifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    saved_search_run_id INTEGER NOT NULL REFERENCES saved_search_runs(id),
    channel TEXT NOT NULL,
    recipient TEXT NOT NULL,
    status TEXT NOT NULL,
    attempt_count INTEGER NOT NULL DEFAULT 0,
    last_attempt_at TIMESTAMP NOT NULL,
    error_message TEXT,
    dedupe_key TEXT NOT NULL UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_notifications_run_id ON notifications(saved_search_run_id);
CREATE INDEX IF NOT EXISTS idx_notifications_channel ON notifications(channel);
CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);
`
