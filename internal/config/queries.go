package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/sources"
)

// QueriesFile is the declarative queries configuration: what to ingest,
// which saved searches to evaluate, and where their alerts go.
type QueriesFile struct {
	Queries       []models.QueryConfig           `mapstructure:"queries"`
	SavedSearches []models.SavedSearchConfig     `mapstructure:"saved_searches"`
	Notify        map[string]models.NotifyConfig `mapstructure:"notify"`
}

// Query finds a query definition by name.
func (f *QueriesFile) Query(name string) (*models.QueryConfig, bool) {
	for i := range f.Queries {
		if f.Queries[i].Name == name {
			return &f.Queries[i], true
		}
	}
	return nil, false
}

// NotifyFor returns the notification config for a saved search name.
func (f *QueriesFile) NotifyFor(name string) *models.NotifyConfig {
	if cfg, ok := f.Notify[name]; ok {
		return &cfg
	}
	return nil
}

// LoadQueries reads and validates a queries file.
func LoadQueries(path string) (*QueriesFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read queries file %s: %w", path, err)
	}

	f := &QueriesFile{}
	if err := v.Unmarshal(f); err != nil {
		return nil, fmt.Errorf("failed to decode queries file %s: %w", path, err)
	}

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid queries file %s: %w", path, err)
	}
	return f, nil
}

func (f *QueriesFile) validate() error {
	names := map[string]bool{}
	for _, q := range f.Queries {
		if q.Name == "" {
			return fmt.Errorf("query with empty name")
		}
		if names[q.Name] {
			return fmt.Errorf("duplicate query name %q", q.Name)
		}
		names[q.Name] = true

		switch q.Source {
		case sources.SourceKKJ:
			if !q.Params.HasAnchor() {
				return fmt.Errorf("query %q: %w", q.Name, sources.ErrMissingAnchor)
			}
		case sources.SourcePPortal:
		default:
			return fmt.Errorf("query %q: unknown source %q", q.Name, q.Source)
		}
	}

	searchNames := map[string]bool{}
	for _, s := range f.SavedSearches {
		if s.Name == "" {
			return fmt.Errorf("saved search with empty name")
		}
		if searchNames[s.Name] {
			return fmt.Errorf("duplicate saved search name %q", s.Name)
		}
		searchNames[s.Name] = true
	}

	for name, cfg := range f.Notify {
		if !searchNames[name] {
			return fmt.Errorf("notify entry %q has no matching saved search", name)
		}
		if cfg.Enabled && len(cfg.Recipients) == 0 {
			return fmt.Errorf("notify entry %q is enabled with no recipients", name)
		}
		switch cfg.Channel {
		case "", "slack", "email":
		default:
			return fmt.Errorf("notify entry %q: unsupported channel %q", name, cfg.Channel)
		}
	}

	return nil
}
