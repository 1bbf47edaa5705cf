package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotEmpty(t, cfg.Storage.Path)
	assert.Equal(t, 1000, cfg.Search.CacheSize)
	assert.Equal(t, 30*time.Second, cfg.Search.CacheTTL)
	assert.Equal(t, 4, cfg.Crawler.Workers)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadNonExistentDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvDBPath, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv(EnvDBPath, "")
	content := `
storage:
  path: /tmp/index.db
search:
  cache_ttl: 45s
  default_limit: 20
crawler:
  workers: 8
  initial_backoff: 500ms
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "artifactfinder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/index.db", cfg.Storage.Path)
	assert.Equal(t, 45*time.Second, cfg.Search.CacheTTL)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 8, cfg.Crawler.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawler.InitialBackoff)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset fields keep defaults
	assert.Equal(t, 1000, cfg.Search.CacheSize)
	assert.Equal(t, 5, cfg.Crawler.MaxRetries)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvDBPath, ":memory:")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Storage.Path)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty path", func(c *Config) { c.Storage.Path = "" }},
		{"negative cache", func(c *Config) { c.Search.CacheSize = -1 }},
		{"zero limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"max below default", func(c *Config) { c.Search.MaxLimit = 1 }},
		{"zero workers", func(c *Config) { c.Crawler.Workers = 0 }},
		{"zero retries", func(c *Config) { c.Crawler.MaxRetries = 0 }},
		{"zero attempts", func(c *Config) { c.Crawler.FetchAttempts = 0 }},
		{"backoff order", func(c *Config) { c.Crawler.MaxBackoff = time.Millisecond }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestClampLimit(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 50, cfg.ClampLimit(0))
	assert.Equal(t, 50, cfg.ClampLimit(-3))
	assert.Equal(t, 10, cfg.ClampLimit(10))
	assert.Equal(t, 500, cfg.ClampLimit(10000))
}
