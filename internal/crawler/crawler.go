package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Hazer/ArtifactFinder/internal/indexer"
	"github.com/Hazer/ArtifactFinder/internal/metrics"
	"github.com/Hazer/ArtifactFinder/internal/queue"
	"github.com/Hazer/ArtifactFinder/internal/storage"
	"github.com/Hazer/ArtifactFinder/pkg/types"
)

// ErrCrawlInProgress is returned when Run is called while another run is active
var ErrCrawlInProgress = errors.New("crawl already in progress")

// Fetcher downloads an artifact's binary contents
type Fetcher interface {
	Fetch(ctx context.Context, coordinate types.Coordinate) ([]byte, error)
}

// Parser extracts classes and methods from an artifact's binary contents
type Parser interface {
	Parse(ctx context.Context, coordinate types.Coordinate, data []byte) (*types.ParsedArtifactInfo, error)
}

// Saver persists a parsed artifact. *finder.Finder and *indexer.Indexer implement it.
type Saver interface {
	SaveParsedArtifact(ctx context.Context, pending *storage.PendingArtifact, info *types.ParsedArtifactInfo) (*indexer.Result, error)
}

// Config contains configuration for the crawler
type Config struct {
	Workers    int // Number of concurrent workers (default: 4)
	MaxRetries int // Entries with at least this many retries are left alone (default: 5)
	Retry      RetryConfig
}

// Statistics contains statistics about a crawl run
type Statistics struct {
	Indexed        int // Parsed and written
	AlreadyIndexed int // Found already indexed, nothing written
	Failed         int // Fetch, parse or save failed, retry counter incremented
	Exhausted      int // Skipped for having reached MaxRetries
	Duration       time.Duration
	ErrorMessages  []string
}

// Crawler drains the pending queue: claim, fetch, parse, save
type Crawler struct {
	queue   *queue.Queue
	saver   Saver
	fetcher Fetcher
	parser  Parser
	config  Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	lock    RunLock
}

// New creates a new Crawler instance. logger and m may be nil.
func New(q *queue.Queue, saver Saver, fetcher Fetcher, parser Parser, config Config, logger *zap.Logger, m *metrics.Metrics) *Crawler {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.Retry.Attempts <= 0 {
		config.Retry = DefaultRetryConfig()
	}
	if config.Retry.Multiplier < 1 {
		config.Retry.Multiplier = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Crawler{
		queue:   q,
		saver:   saver,
		fetcher: fetcher,
		parser:  parser,
		config:  config,
		logger:  logger,
		metrics: m,
	}
}

// runState is shared by the workers of one run
type runState struct {
	mu       sync.Mutex
	excluded map[int64]struct{}
	errors   []string

	indexed        atomic.Int32
	alreadyIndexed atomic.Int32
	failed         atomic.Int32
	exhausted      atomic.Int32
}

func (s *runState) exclude(id int64) {
	s.mu.Lock()
	s.excluded[id] = struct{}{}
	s.mu.Unlock()
}

func (s *runState) excludedIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.excluded))
	for id := range s.excluded {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *runState) addError(msg string) {
	s.mu.Lock()
	s.errors = append(s.errors, msg)
	s.mu.Unlock()
}

// Run processes pending artifacts until none is claimable or ctx is
// cancelled. Failed entries are excluded for the rest of the run. A contract
// violation from the saver aborts the run.
func (c *Crawler) Run(ctx context.Context) (*Statistics, error) {
	if !c.lock.TryAcquire() {
		return nil, ErrCrawlInProgress
	}
	defer c.lock.Release()

	startTime := time.Now()
	state := &runState{excluded: make(map[int64]struct{})}

	c.logger.Info("crawl started", zap.Int("workers", c.config.Workers))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.config.Workers; i++ {
		worker := i
		g.Go(func() error {
			c.metrics.IncWorkers()
			defer c.metrics.DecWorkers()
			return c.work(gctx, worker, state)
		})
	}
	err := g.Wait()

	state.mu.Lock()
	stats := &Statistics{
		Indexed:        int(state.indexed.Load()),
		AlreadyIndexed: int(state.alreadyIndexed.Load()),
		Failed:         int(state.failed.Load()),
		Exhausted:      int(state.exhausted.Load()),
		Duration:       time.Since(startTime),
		ErrorMessages:  append([]string(nil), state.errors...),
	}
	state.mu.Unlock()

	c.logger.Info("crawl finished",
		zap.Int("indexed", stats.Indexed),
		zap.Int("already_indexed", stats.AlreadyIndexed),
		zap.Int("failed", stats.Failed),
		zap.Int("exhausted", stats.Exhausted),
		zap.Duration("duration", stats.Duration),
		zap.Error(err),
	)

	return stats, err
}

// Running reports whether a run is in progress
func (c *Crawler) Running() bool {
	return c.lock.Held()
}

// work is one worker's loop
func (c *Crawler) work(ctx context.Context, worker int, state *runState) error {
	logger := c.logger.With(zap.Int("worker", worker))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pending, ok, err := c.queue.Claim(ctx, state.excludedIDs())
		if err != nil {
			return fmt.Errorf("failed to claim pending artifact: %w", err)
		}
		if !ok {
			return nil
		}

		err = c.process(ctx, logger, pending, state)
		c.queue.Release(pending.ID)
		if err != nil {
			return err
		}
	}
}

// process handles one claimed entry. Only fatal errors are returned.
func (c *Crawler) process(ctx context.Context, logger *zap.Logger, pending *storage.PendingArtifact, state *runState) error {
	coordinate := pending.Coordinate()
	logger = logger.With(zap.Stringer("artifact", coordinate), zap.Int64("pending_id", pending.ID))

	if pending.Retries >= c.config.MaxRetries {
		state.exclude(pending.ID)
		state.exhausted.Add(1)
		c.metrics.RecordCrawl("exhausted")
		logger.Debug("retries exhausted", zap.Int("retries", pending.Retries))
		return nil
	}

	data, err := retryWithBackoff(ctx, c.config.Retry, func() ([]byte, error) {
		return c.fetcher.Fetch(ctx, coordinate)
	})
	if err != nil {
		return c.fail(ctx, logger, pending, state, "fetch", err)
	}

	info, err := c.parser.Parse(ctx, coordinate, data)
	if err != nil {
		return c.fail(ctx, logger, pending, state, "parse", err)
	}

	result, err := c.saver.SaveParsedArtifact(ctx, pending, info)
	if err != nil {
		if errors.Is(err, types.ErrContractViolation) {
			return err
		}
		return c.fail(ctx, logger, pending, state, "save", err)
	}

	if result.Skipped {
		state.alreadyIndexed.Add(1)
		c.metrics.RecordCrawl("already_indexed")
		state.exclude(pending.ID)
		return nil
	}
	state.indexed.Add(1)
	c.metrics.RecordCrawl("indexed")
	return nil
}

// fail records a failed attempt and excludes the entry for the rest of the run
func (c *Crawler) fail(ctx context.Context, logger *zap.Logger, pending *storage.PendingArtifact, state *runState, stage string, cause error) error {
	// Abandoned work is not a failed attempt
	if ctx.Err() != nil {
		return ctx.Err()
	}

	state.exclude(pending.ID)
	state.failed.Add(1)
	state.addError(fmt.Sprintf("%s: %s: %v", pending.Coordinate(), stage, cause))
	c.metrics.RecordCrawl(stage + "_failed")
	logger.Warn("artifact failed", zap.String("stage", stage), zap.Error(cause))

	if err := c.queue.IncrementRetry(ctx, pending); err != nil {
		return fmt.Errorf("failed to record retry for %s: %w", pending.Coordinate(), err)
	}
	return nil
}
