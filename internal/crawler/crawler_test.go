package crawler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hazer/ArtifactFinder/internal/indexer"
	"github.com/Hazer/ArtifactFinder/internal/queue"
	"github.com/Hazer/ArtifactFinder/internal/storage"
	"github.com/Hazer/ArtifactFinder/pkg/types"
)

// fakeFetcher serves canned bytes and fails for listed artifact ids
type fakeFetcher struct {
	mu       sync.Mutex
	failures map[string]int // artifact id -> remaining failures, -1 for always
	calls    map[string]int
	block    chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{failures: make(map[string]int), calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, c types.Coordinate) ([]byte, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[c.ArtifactID]++
	switch n := f.failures[c.ArtifactID]; {
	case n < 0:
		return nil, errors.New("unreachable")
	case n > 0:
		f.failures[c.ArtifactID] = n - 1
		return nil, errors.New("flaky")
	}
	return []byte(c.ArtifactID), nil
}

func (f *fakeFetcher) callCount(artifactID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[artifactID]
}

// fakeParser turns the fetched bytes into one class named after the artifact
type fakeParser struct {
	fail map[string]bool
}

func (p *fakeParser) Parse(ctx context.Context, c types.Coordinate, data []byte) (*types.ParsedArtifactInfo, error) {
	if p.fail[string(data)] {
		return nil, errors.New("corrupt archive")
	}
	return &types.ParsedArtifactInfo{
		Classes: []types.ClassInfo{{Pkg: c.GroupID, Name: "Main$" + string(data)}},
		Methods: []types.MethodInfo{{Pkg: c.GroupID, Name: "run" + string(data)}},
	}, nil
}

// saverFunc adapts a function to Saver
type saverFunc func(ctx context.Context, pending *storage.PendingArtifact, info *types.ParsedArtifactInfo) (*indexer.Result, error)

func (f saverFunc) SaveParsedArtifact(ctx context.Context, pending *storage.PendingArtifact, info *types.ParsedArtifactInfo) (*indexer.Result, error) {
	return f(ctx, pending, info)
}

type testEnv struct {
	store   *storage.SQLiteStorage
	queue   *queue.Queue
	indexer *indexer.Indexer
	fetcher *fakeFetcher
	parser  *fakeParser
}

func setupTestEnv(t *testing.T, artifactIDs ...string) *testEnv {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		store:   store,
		queue:   queue.New(store, nil, nil),
		indexer: indexer.New(store, nil, nil),
		fetcher: newFakeFetcher(),
		parser:  &fakeParser{fail: map[string]bool{}},
	}
	for _, id := range artifactIDs {
		added, err := env.queue.Add(context.Background(), "com.example", id, types.MustParseVersion("1.0.0"), types.ArtifactoryMaven)
		require.NoError(t, err)
		require.True(t, added)
	}
	return env
}

func fastConfig(workers int) Config {
	return Config{
		Workers:    workers,
		MaxRetries: 3,
		Retry: RetryConfig{
			Attempts:   2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   2 * time.Millisecond,
			Multiplier: 2,
		},
	}
}

func (e *testEnv) crawler(cfg Config) *Crawler {
	return New(e.queue, e.indexer, e.fetcher, e.parser, cfg, nil, nil)
}

func (e *testEnv) pending(t *testing.T, artifactID string) *storage.PendingArtifact {
	t.Helper()
	p, err := e.store.FindPendingArtifact(context.Background(), "com.example", artifactID, types.MustParseVersion("1.0.0"))
	require.NoError(t, err)
	return p
}

func TestRun_IndexesEverything(t *testing.T) {
	env := setupTestEnv(t, "a", "b", "c", "d", "e")

	stats, err := env.crawler(fastConfig(3)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Indexed)
	assert.Zero(t, stats.Failed)

	status, err := env.store.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, status.Artifacts)
	assert.Equal(t, 5, status.PendingFetched)
	assert.Equal(t, 10, status.ClassLookups)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, 1, env.fetcher.callCount(id), "each artifact fetched once")
	}
	assert.Zero(t, env.queue.Held(), "all claims released")
}

func TestRun_RetriesFlakyFetch(t *testing.T) {
	env := setupTestEnv(t, "a")
	env.fetcher.failures["a"] = 1

	stats, err := env.crawler(fastConfig(1)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 2, env.fetcher.callCount("a"))
	assert.Zero(t, env.pending(t, "a").Retries)
}

func TestRun_FailureIncrementsRetry(t *testing.T) {
	env := setupTestEnv(t, "good", "bad", "corrupt")
	env.fetcher.failures["bad"] = -1
	env.parser.fail["corrupt"] = true

	stats, err := env.crawler(fastConfig(2)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 2, stats.Failed)
	assert.Len(t, stats.ErrorMessages, 2)

	bad := env.pending(t, "bad")
	assert.Equal(t, 1, bad.Retries, "one increment per run")
	assert.False(t, bad.Fetched)
	assert.Equal(t, 2, env.fetcher.callCount("bad"), "fetch attempts within the run")

	corrupt := env.pending(t, "corrupt")
	assert.Equal(t, 1, corrupt.Retries)
	assert.True(t, env.pending(t, "good").Fetched)
}

func TestRun_PermanentFetchErrorNotRetried(t *testing.T) {
	env := setupTestEnv(t, "gone")
	fetcher := &permanentFetcher{}

	c := New(env.queue, env.indexer, fetcher, env.parser, fastConfig(1), nil, nil)
	stats, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, 1, env.pending(t, "gone").Retries)
}

type permanentFetcher struct {
	calls atomic.Int32
}

func (f *permanentFetcher) Fetch(ctx context.Context, c types.Coordinate) ([]byte, error) {
	f.calls.Add(1)
	return nil, Permanent(errors.New("404"))
}

func TestRun_SkipsExhaustedEntries(t *testing.T) {
	env := setupTestEnv(t, "tired")
	ctx := context.Background()
	p := env.pending(t, "tired")
	for i := 0; i < 3; i++ {
		require.NoError(t, env.queue.IncrementRetry(ctx, p))
	}

	stats, err := env.crawler(fastConfig(1)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Exhausted)
	assert.Zero(t, env.fetcher.callCount("tired"))
}

func TestRun_RepeatedRunsEventuallyExhaust(t *testing.T) {
	env := setupTestEnv(t, "bad")
	env.fetcher.failures["bad"] = -1
	c := env.crawler(fastConfig(1))

	for i := 0; i < 3; i++ {
		_, err := c.Run(context.Background())
		require.NoError(t, err)
	}
	stats, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Exhausted)
	assert.Equal(t, 3, env.pending(t, "bad").Retries)
}

func TestRun_AlreadyIndexed(t *testing.T) {
	env := setupTestEnv(t, "dup")
	ctx := context.Background()

	// Index the artifact out of band without marking the queue entry fetched
	p := env.pending(t, "dup")
	_, err := env.store.InsertArtifact(ctx, p.ToArtifact())
	require.NoError(t, err)

	stats, err := env.crawler(fastConfig(1)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AlreadyIndexed)
	assert.Zero(t, stats.Indexed)
}

func TestRun_ContractViolationAborts(t *testing.T) {
	env := setupTestEnv(t, "a", "b")
	saver := saverFunc(func(ctx context.Context, pending *storage.PendingArtifact, info *types.ParsedArtifactInfo) (*indexer.Result, error) {
		return nil, types.ErrContractViolation
	})

	c := New(env.queue, saver, env.fetcher, env.parser, fastConfig(1), nil, nil)
	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, types.ErrContractViolation)
	assert.Zero(t, env.pending(t, "a").Retries, "contract violations are not retried")
}

func TestRun_InProgress(t *testing.T) {
	env := setupTestEnv(t, "slow")
	env.fetcher.block = make(chan struct{})
	c := env.crawler(fastConfig(1))

	done := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background())
		done <- err
	}()

	require.Eventually(t, c.Running, time.Second, time.Millisecond)
	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrCrawlInProgress)

	close(env.fetcher.block)
	require.NoError(t, <-done)
	assert.False(t, c.Running())
}

func TestRun_Cancelled(t *testing.T) {
	env := setupTestEnv(t, "slow")
	env.fetcher.block = make(chan struct{})
	c := env.crawler(fastConfig(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Run(ctx)
		done <- err
	}()

	require.Eventually(t, c.Running, time.Second, time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	p := env.pending(t, "slow")
	assert.Zero(t, p.Retries, "cancelled work is not counted as a failure")
	assert.False(t, p.Fetched)
}

func TestRetryWithBackoff(t *testing.T) {
	cfg := RetryConfig{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	calls := 0
	result, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)

	calls = 0
	_, err = retryWithBackoff(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, errors.New("always")
	})
	assert.EqualError(t, err, "always")
	assert.Equal(t, 3, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = retryWithBackoff(ctx, cfg, func() (int, error) {
		return 0, errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunLock(t *testing.T) {
	var l RunLock

	assert.True(t, l.TryAcquire())
	assert.True(t, l.Held())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.False(t, l.Held())
	assert.True(t, l.TryAcquire())
}
