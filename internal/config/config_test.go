package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "data/bid_aggregator.db", cfg.Database.Path)
		assert.Equal(t, "http://www.kkj.go.jp/api/", cfg.KKJ.BaseURL)
		assert.Equal(t, 1*time.Second, cfg.KKJ.RequestInterval)
		assert.Equal(t, 2*time.Second, cfg.PPortal.RequestInterval)
		assert.Equal(t, 100, cfg.Notify.MaxItems)
		assert.Equal(t, 587, cfg.SMTP.Port)
		assert.Equal(t, ":8080", cfg.HTTP.Addr)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := writeFile(t, "config.yml", `
log:
  level: debug
database:
  path: /tmp/test.db
kkj:
  request_interval: 3s
pportal:
  procurement_types: [bid_wto, proposal]
  organization_codes: [meti]
smtp:
  host: smtp.example.com
  from: alerts@example.com
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
		assert.Equal(t, 3*time.Second, cfg.KKJ.RequestInterval)
		assert.Equal(t, []string{"bid_wto", "proposal"}, cfg.PPortal.ProcurementTypes)
		assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
		// Untouched settings keep their defaults.
		assert.Equal(t, 2*time.Second, cfg.PPortal.RequestInterval)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		t.Setenv("BID_DATABASE_PATH", "/env/override.db")
		t.Setenv("BID_LOG_LEVEL", "warn")

		path := writeFile(t, "config.yml", "database:\n  path: /file/value.db\n")
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "/env/override.db", cfg.Database.Path)
		assert.Equal(t, "warn", cfg.Log.Level)
	})

	t.Run("bad log level is rejected", func(t *testing.T) {
		path := writeFile(t, "config.yml", "log:\n  level: loud\n")
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestLoadQueries(t *testing.T) {
	t.Run("full file", func(t *testing.T) {
		path := writeFile(t, "queries.yml", `
queries:
  - name: cleaning
    source: kkj
    enabled: true
    params:
      query: 清掃
      count: 100
  - name: portal-maintenance
    source: pportal
    enabled: true
    params:
      query: 保守
    date_range:
      from: "2025-01-01"
      to: "2025-01-31"

saved_searches:
  - name: cleaning-alerts
    filters:
      keyword: 清掃
    order_by: newest
    only_new: true
    enabled: true

notify:
  cleaning-alerts:
    channel: slack
    recipients:
      - https://hooks.slack.com/services/T/B/x
    enabled: true
`)
		f, err := LoadQueries(path)
		require.NoError(t, err)

		require.Len(t, f.Queries, 2)
		assert.Equal(t, "清掃", f.Queries[0].Params.Query)
		require.NotNil(t, f.Queries[1].DateRange)
		assert.Equal(t, "2025-01-01", f.Queries[1].DateRange.From)

		q, ok := f.Query("cleaning")
		require.True(t, ok)
		assert.Equal(t, "kkj", q.Source)
		_, ok = f.Query("nope")
		assert.False(t, ok)

		require.Len(t, f.SavedSearches, 1)
		assert.True(t, f.SavedSearches[0].OnlyNew)

		cfg := f.NotifyFor("cleaning-alerts")
		require.NotNil(t, cfg)
		assert.Equal(t, "slack", cfg.Channel)
		assert.Nil(t, f.NotifyFor("other"))
	})

	t.Run("kkj query without anchor is rejected", func(t *testing.T) {
		path := writeFile(t, "queries.yml", `
queries:
  - name: anchorless
    source: kkj
    params:
      count: 10
`)
		_, err := LoadQueries(path)
		assert.Error(t, err)
	})

	t.Run("unknown source is rejected", func(t *testing.T) {
		path := writeFile(t, "queries.yml", "queries:\n  - name: q\n    source: ebay\n")
		_, err := LoadQueries(path)
		assert.Error(t, err)
	})

	t.Run("duplicate query names are rejected", func(t *testing.T) {
		path := writeFile(t, "queries.yml", `
queries:
  - name: q
    source: pportal
  - name: q
    source: pportal
`)
		_, err := LoadQueries(path)
		assert.Error(t, err)
	})

	t.Run("notify for unknown search is rejected", func(t *testing.T) {
		path := writeFile(t, "queries.yml", `
notify:
  ghost:
    channel: slack
    recipients: [x]
`)
		_, err := LoadQueries(path)
		assert.Error(t, err)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadQueries(filepath.Join(t.TempDir(), "absent.yml"))
		assert.Error(t, err)
	})
}
