package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultFileName is looked up in the current directory when no path is given
	DefaultFileName = "artifactfinder.yaml"

	// EnvDBPath overrides storage.path
	EnvDBPath = "ARTIFACTFINDER_DB_PATH"
)

// Config represents the ArtifactFinder configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
	Crawler CrawlerConfig `yaml:"crawler"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig locates the index database.
type StorageConfig struct {
	Path string `yaml:"path"` // ":memory:" for an ephemeral index
}

// SearchConfig tunes the query engine.
type SearchConfig struct {
	CacheSize    int           `yaml:"cache_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	DefaultLimit int           `yaml:"default_limit"`
	MaxLimit     int           `yaml:"max_limit"`
}

// CrawlerConfig tunes the crawl driver.
type CrawlerConfig struct {
	Workers        int           `yaml:"workers"`
	MaxRetries     int           `yaml:"max_retries"`
	FetchAttempts  int           `yaml:"fetch_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Path: defaultDBPath(),
		},
		Search: SearchConfig{
			CacheSize:    1000,
			CacheTTL:     30 * time.Second,
			DefaultLimit: 50,
			MaxLimit:     500,
		},
		Crawler: CrawlerConfig{
			Workers:        4,
			MaxRetries:     5,
			FetchAttempts:  3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "artifactfinder.db"
	}
	return filepath.Join(home, ".artifactfinder", "index.db")
}

// Load reads configuration from file, falling back to defaults.
// If configPath is empty, it looks for artifactfinder.yaml in the current
// directory and a missing file is not an error. Fields absent from the file
// keep their defaults. The ARTIFACTFINDER_DB_PATH environment variable
// overrides storage.path.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultFileName
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No config file, use defaults
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if path := strings.TrimSpace(os.Getenv(EnvDBPath)); path != "" {
		c.Storage.Path = path
	}
}

// Validate checks that values are usable.
func (c *Config) Validate() error {
	var errs []error

	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if c.Search.CacheSize < 0 {
		errs = append(errs, errors.New("search.cache_size must not be negative"))
	}
	if c.Search.CacheTTL < 0 {
		errs = append(errs, errors.New("search.cache_ttl must not be negative"))
	}
	if c.Search.DefaultLimit <= 0 {
		errs = append(errs, errors.New("search.default_limit must be positive"))
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		errs = append(errs, errors.New("search.max_limit must be at least search.default_limit"))
	}
	if c.Crawler.Workers <= 0 {
		errs = append(errs, errors.New("crawler.workers must be positive"))
	}
	if c.Crawler.MaxRetries <= 0 {
		errs = append(errs, errors.New("crawler.max_retries must be positive"))
	}
	if c.Crawler.FetchAttempts <= 0 {
		errs = append(errs, errors.New("crawler.fetch_attempts must be positive"))
	}
	if c.Crawler.InitialBackoff < 0 || c.Crawler.MaxBackoff < c.Crawler.InitialBackoff {
		errs = append(errs, errors.New("crawler backoff must satisfy 0 <= initial_backoff <= max_backoff"))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ClampLimit applies the default and maximum search limits.
func (c *Config) ClampLimit(limit int) int {
	if limit <= 0 {
		return c.Search.DefaultLimit
	}
	if limit > c.Search.MaxLimit {
		return c.Search.MaxLimit
	}
	return limit
}
