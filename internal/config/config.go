// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Resolve ResolveConfig `mapstructure:"resolve"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// StorageConfig names the cache tiers. Provider selects the blob backend;
// the legacy buckets are optional and read-only.
type StorageConfig struct {
	Provider        string `mapstructure:"provider"`
	HTMLBucket      string `mapstructure:"html_bucket"`
	PDFBucket       string `mapstructure:"pdf_bucket"`
	LegacyPDF       string `mapstructure:"legacy_pdf_bucket"`
	LegacyPublisher string `mapstructure:"legacy_publisher_bucket"`
	LegacyRepo      string `mapstructure:"legacy_repo_bucket"`
}

// DBConfig controls access to the relational database holding fetch
// policies and the legacy crosswalk tables.
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	PolicyTable string `mapstructure:"policy_table"`
}

// PubSubConfig holds metadata for harvest notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// FetchConfig configures the fetch clients and retry behavior.
type FetchConfig struct {
	UserAgent        string `mapstructure:"user_agent"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	APIURL           string `mapstructure:"api_url"`
	APIKey           string `mapstructure:"api_key"`
	ProxyURL         string `mapstructure:"proxy_url"`
}

// ResolveConfig configures the DOI redirect probe.
type ResolveConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TAXICAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.html_bucket", "harvested-html")
	v.SetDefault("storage.pdf_bucket", "harvested-pdf")
	v.SetDefault("db.policy_table", "fetch_policies")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("fetch.user_agent", "taxicab/0.1")
	v.SetDefault("fetch.timeout_seconds", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_initial_ms", 250)
	v.SetDefault("fetch.backoff_max_ms", 5000)
	v.SetDefault("resolve.timeout_seconds", 10)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Storage.Provider {
	case "gcs", "memory", "noop":
	default:
		return fmt.Errorf("storage.provider must be gcs, memory, or noop")
	}
	if c.Storage.HTMLBucket == "" || c.Storage.PDFBucket == "" {
		return fmt.Errorf("storage.html_bucket and storage.pdf_bucket must be set")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxRetries <= 0 {
		return fmt.Errorf("fetch.max_retries must be > 0")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// FetchTimeout returns the fetch client timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// ResolveTimeout returns the redirect probe timeout as a duration.
func (c Config) ResolveTimeout() time.Duration {
	return time.Duration(c.Resolve.TimeoutSeconds) * time.Second
}
