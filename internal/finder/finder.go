// Package finder wires storage, queue, indexer and searcher into the single
// entry point used by the MCP server and the CLI.
package finder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Hazer/ArtifactFinder/internal/config"
	"github.com/Hazer/ArtifactFinder/internal/crawler"
	"github.com/Hazer/ArtifactFinder/internal/indexer"
	"github.com/Hazer/ArtifactFinder/internal/metrics"
	"github.com/Hazer/ArtifactFinder/internal/queue"
	"github.com/Hazer/ArtifactFinder/internal/searcher"
	"github.com/Hazer/ArtifactFinder/internal/storage"
	"github.com/Hazer/ArtifactFinder/pkg/types"
)

// Finder owns one store and the components built on it
type Finder struct {
	cfg      *config.Config
	storage  storage.Storage
	queue    *queue.Queue
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Open opens the store at cfg.Storage.Path, creating its directory if
// needed, and wires the components. logger and m may be nil.
func Open(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*Finder, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	path := cfg.Storage.Path
	if path != storage.MemoryLocation {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	f, err := New(store, cfg, logger, m)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	return f, nil
}

// New wires the components over an already opened store. The Finder takes
// ownership of s and closes it in Close.
func New(s storage.Storage, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*Finder, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	srch, err := searcher.NewSearcher(s, searcher.Config{
		CacheSize: cfg.Search.CacheSize,
		CacheTTL:  cfg.Search.CacheTTL,
	}, logger.Named("searcher"), m)
	if err != nil {
		return nil, fmt.Errorf("failed to create searcher: %w", err)
	}

	return &Finder{
		cfg:      cfg,
		storage:  s,
		queue:    queue.New(s, logger.Named("queue"), m),
		indexer:  indexer.New(s, logger.Named("indexer"), m),
		searcher: srch,
		logger:   logger,
		metrics:  m,
	}, nil
}

// Search runs a query. The limit is clamped to the configured default and
// maximum.
func (f *Finder) Search(ctx context.Context, params searcher.SearchParams) ([]types.SearchRecord, error) {
	params.Limit = f.cfg.ClampLimit(params.Limit)
	return f.searcher.Search(ctx, params)
}

// AddPendingArtifact enqueues a coordinate. It returns false if the
// coordinate is already known.
func (f *Finder) AddPendingArtifact(ctx context.Context, groupID, artifactID string, version types.Version, artifactory types.Artifactory) (bool, error) {
	return f.queue.Add(ctx, groupID, artifactID, version, artifactory)
}

// FindNextPendingArtifact returns the next unfetched entry not in excludeIDs
func (f *Finder) FindNextPendingArtifact(ctx context.Context, excludeIDs []int64) (*storage.PendingArtifact, bool, error) {
	return f.queue.Next(ctx, excludeIDs)
}

// IncrementPendingArtifactRetry records a failed attempt
func (f *Finder) IncrementPendingArtifactRetry(ctx context.Context, pending *storage.PendingArtifact) error {
	return f.queue.IncrementRetry(ctx, pending)
}

// SaveParsedArtifact indexes a parsed artifact and drops cached search
// results when anything was written.
func (f *Finder) SaveParsedArtifact(ctx context.Context, pending *storage.PendingArtifact, info *types.ParsedArtifactInfo) (*indexer.Result, error) {
	result, err := f.indexer.SaveParsedArtifact(ctx, pending, info)
	if err != nil {
		return nil, err
	}
	if !result.Skipped {
		f.searcher.Invalidate()
	}
	return result, nil
}

// NewCrawler builds a crawl driver over this Finder's queue using the
// configured worker and retry settings
func (f *Finder) NewCrawler(fetcher crawler.Fetcher, parser crawler.Parser) *crawler.Crawler {
	c := f.cfg.Crawler
	return crawler.New(f.queue, f, fetcher, parser, crawler.Config{
		Workers:    c.Workers,
		MaxRetries: c.MaxRetries,
		Retry: crawler.RetryConfig{
			Attempts:   c.FetchAttempts,
			BaseDelay:  c.InitialBackoff,
			MaxDelay:   c.MaxBackoff,
			Multiplier: 2,
		},
	}, f.logger.Named("crawler"), f.metrics)
}

// Sync checkpoints the write-ahead log into the main database file
func (f *Finder) Sync(ctx context.Context) error {
	if err := f.storage.Sync(ctx); err != nil {
		return fmt.Errorf("failed to sync index: %w", err)
	}
	f.logger.Debug("index synced")
	return nil
}

// Status returns index statistics
func (f *Finder) Status(ctx context.Context) (*storage.Status, error) {
	return f.storage.GetStatus(ctx)
}

// Close closes the underlying store
func (f *Finder) Close() error {
	return f.storage.Close()
}

// Config returns the configuration the Finder was built with
func (f *Finder) Config() *config.Config {
	return f.cfg
}

// Queue exposes the pending-work queue to crawl drivers
func (f *Finder) Queue() *queue.Queue {
	return f.queue
}

// Storage exposes the underlying store
func (f *Finder) Storage() storage.Storage {
	return f.storage
}
