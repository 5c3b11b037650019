package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "memory", cfg.Storage.Provider)
	require.Equal(t, "harvested-html", cfg.Storage.HTMLBucket)
	require.Equal(t, "fetch_policies", cfg.DB.PolicyTable)
	require.Equal(t, 3, cfg.Fetch.MaxRetries)
	require.Equal(t, 60*time.Second, cfg.FetchTimeout())
	require.Equal(t, 10*time.Second, cfg.ResolveTimeout())
	require.False(t, cfg.PubSub.Enabled)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
logging:
  development: false
storage:
  provider: gcs
  html_bucket: prod-html
  pdf_bucket: prod-pdf
  legacy_pdf_bucket: legacy-pdf
db:
  dsn: postgres://app@db/harvest
  policy_table: fetch_policies
pubsub:
  enabled: true
  project_id: prod-project
  topic_name: harvest-complete
fetch:
  user_agent: taxicab/1.0
  timeout_seconds: 30
  max_retries: 5
  api_url: https://api.zyte.com/v1/extract
  api_key: secret
resolve:
  timeout_seconds: 5
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "gcs", cfg.Storage.Provider)
	require.Equal(t, "prod-html", cfg.Storage.HTMLBucket)
	require.Equal(t, "legacy-pdf", cfg.Storage.LegacyPDF)
	require.Equal(t, "postgres://app@db/harvest", cfg.DB.DSN)
	require.True(t, cfg.PubSub.Enabled)
	require.Equal(t, 5, cfg.Fetch.MaxRetries)
	require.Equal(t, 30*time.Second, cfg.FetchTimeout())
	require.Equal(t, 5*time.Second, cfg.ResolveTimeout())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown provider", func(c *Config) { c.Storage.Provider = "s3" }},
		{"missing buckets", func(c *Config) { c.Storage.HTMLBucket = "" }},
		{"zero timeout", func(c *Config) { c.Fetch.TimeoutSeconds = 0 }},
		{"zero retries", func(c *Config) { c.Fetch.MaxRetries = 0 }},
		{"pubsub without project", func(c *Config) {
			c.PubSub.Enabled = true
			c.PubSub.TopicName = "t"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
