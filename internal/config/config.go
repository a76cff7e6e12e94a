// Package config loads application settings from a YAML file with
// environment variable overrides, and the queries file that defines
// ingestion queries, saved searches, and notification routing.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultDatabasePath = "data/bid_aggregator.db"
	defaultLogLevel     = "info"
	defaultLogEncoding  = "console"

	defaultKKJAPIURL         = "http://www.kkj.go.jp/api/"
	defaultKKJInterval       = 1 * time.Second
	defaultPPortalBaseURL    = "https://www.p-portal.go.jp/pps-web-biz"
	defaultPPortalInterval   = 2 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultNotifyMaxItems    = 100
	defaultNotifyMaxAttempts = 3
	defaultSMTPPort          = 587
	defaultHTTPAddr          = ":8080"
)

// Config is the application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	KKJ      ClientConfig   `mapstructure:"kkj"`
	PPortal  PPortalConfig  `mapstructure:"pportal"`
	Notify   NotifySettings `mapstructure:"notify"`
	SMTP     SMTPSettings   `mapstructure:"smtp"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ClientConfig holds the shared per-source HTTP settings.
type ClientConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
}

// PPortalConfig extends the client settings with the portal's search
// narrowing knobs.
type PPortalConfig struct {
	ClientConfig      `mapstructure:",squash"`
	ProcurementTypes  []string `mapstructure:"procurement_types"`
	OrganizationCodes []string `mapstructure:"organization_codes"`
	Classification    string   `mapstructure:"classification"`
}

// NotifySettings holds global notification limits.
type NotifySettings struct {
	MaxItems    int `mapstructure:"max_items"`
	MaxAttempts int `mapstructure:"max_attempts"`
}

// SMTPSettings configures email delivery.
type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	StartTLS bool   `mapstructure:"starttls"`
}

// HTTPConfig configures the read API server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Validate checks settings that have no sensible fallback.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// Load reads the application config. A missing file is not an error:
// defaults plus environment variables are a complete configuration.
// Environment overrides use the BID_ prefix with underscores, e.g.
// BID_DATABASE_PATH, BID_SMTP_HOST.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("BID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = "config.yml"
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadEnvFiles loads .env.local then .env. Missing files are fine;
// already-set environment variables always win.
func loadEnvFiles() {
	for _, name := range []string{".env.local", ".env"} {
		_ = godotenv.Load(name)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.encoding", defaultLogEncoding)
	v.SetDefault("log.development", false)

	v.SetDefault("database.path", defaultDatabasePath)

	v.SetDefault("kkj.base_url", defaultKKJAPIURL)
	v.SetDefault("kkj.timeout", defaultClientTimeout)
	v.SetDefault("kkj.request_interval", defaultKKJInterval)

	v.SetDefault("pportal.base_url", defaultPPortalBaseURL)
	v.SetDefault("pportal.timeout", defaultClientTimeout)
	v.SetDefault("pportal.request_interval", defaultPPortalInterval)

	v.SetDefault("notify.max_items", defaultNotifyMaxItems)
	v.SetDefault("notify.max_attempts", defaultNotifyMaxAttempts)

	v.SetDefault("smtp.port", defaultSMTPPort)
	v.SetDefault("smtp.starttls", true)

	v.SetDefault("http.addr", defaultHTTPAddr)
}
