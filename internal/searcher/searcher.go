package searcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Hazer/ArtifactFinder/internal/metrics"
	"github.com/Hazer/ArtifactFinder/internal/storage"
	"github.com/Hazer/ArtifactFinder/pkg/types"
)

const (
	DefaultCacheSize = 1000
	DefaultCacheTTL  = 30 * time.Second
)

// SearchParams contains parameters for a search operation
type SearchParams struct {
	Query                   string
	IncludeClasses          bool
	IncludeExtensionMethods bool
	IncludeGlobalMethods    bool
	Limit                   int // Zero or negative means no limit
}

// Config controls the result cache
type Config struct {
	CacheSize int           // Zero disables caching
	CacheTTL  time.Duration // Default: DefaultCacheTTL
}

// cacheEntry represents cached search results with expiration time
type cacheEntry struct {
	records   []types.SearchRecord
	expiresAt time.Time
}

// Searcher sanitizes queries, fans out to class and method lookups, and
// ranks the merged results.
//
// Invalidate only sees writes made through this process. When another
// process indexes into the same database, cached results stay visible until
// their TTL expires, so keep CacheTTL short for long-lived servers.
type Searcher struct {
	storage storage.Storage
	logger  *zap.Logger
	metrics *metrics.Metrics

	cache      *lru.Cache[SearchParams, *cacheEntry]
	cacheTTL   time.Duration
	cacheMu    sync.RWMutex
	generation uint64 // Bumped by Invalidate, guarded by cacheMu
}

// NewSearcher creates a new Searcher instance. logger and m may be nil.
func NewSearcher(s storage.Storage, cfg Config, logger *zap.Logger, m *metrics.Metrics) (*Searcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	searcher := &Searcher{
		storage:  s,
		logger:   logger,
		metrics:  m,
		cacheTTL: cfg.CacheTTL,
	}

	if cfg.CacheSize > 0 {
		cache, err := lru.New[SearchParams, *cacheEntry](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create LRU cache: %w", err)
		}
		searcher.cache = cache
	}
	return searcher, nil
}

// Search returns ranked records matching the query. An empty query or a
// request that includes nothing yields an empty result without touching storage.
func (s *Searcher) Search(ctx context.Context, params SearchParams) ([]types.SearchRecord, error) {
	startTime := time.Now()

	query := Sanitize(params.Query)
	mode := ModeFor(params)
	if query == "" || mode == ModeNone {
		return []types.SearchRecord{}, nil
	}

	if cached, ok := s.checkCache(params); ok {
		s.metrics.RecordCacheHit()
		s.metrics.RecordSearch(mode.String(), time.Since(startTime), len(cached))
		return cached, nil
	}
	s.metrics.RecordCacheMiss()
	generation := s.currentGeneration()

	records := make([]types.SearchRecord, 0)

	if params.IncludeClasses {
		classes, err := s.storage.SearchClasses(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, match := range classes {
			records = append(records, match.ToSearchRecord())
		}
	}

	if searchType, ok := mode.MethodSearchType(); ok {
		methods, err := s.storage.SearchMethods(ctx, query, searchType)
		if err != nil {
			return nil, err
		}
		for _, match := range methods {
			records = append(records, match.ToSearchRecord())
		}
	}

	ranked := Rank(params.Query, records)
	if params.Limit > 0 && len(ranked) > params.Limit {
		ranked = ranked[:params.Limit]
	}

	s.storeInCache(params, ranked, generation)

	duration := time.Since(startTime)
	s.metrics.RecordSearch(mode.String(), duration, len(ranked))
	s.logger.Debug("search completed",
		zap.String("query", query),
		zap.Stringer("mode", mode),
		zap.Int("results", len(ranked)),
		zap.Duration("duration", duration),
	)
	return ranked, nil
}

// Invalidate drops every cached result. Call it after each index write.
func (s *Searcher) Invalidate() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.generation++
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *Searcher) currentGeneration() uint64 {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.generation
}

// checkCache looks up cached search results
func (s *Searcher) checkCache(params SearchParams) ([]types.SearchRecord, bool) {
	if s.cache == nil {
		return nil, false
	}

	s.cacheMu.RLock()
	entry, found := s.cache.Get(params)
	if !found {
		s.cacheMu.RUnlock()
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		// Remove expired entry - need write lock
		s.cacheMu.Lock()
		s.cache.Remove(params)
		s.cacheMu.Unlock()
		return nil, false
	}

	records := copyRecords(entry.records)
	s.cacheMu.RUnlock()
	return records, true
}

// storeInCache saves results unless the index changed since the search started
func (s *Searcher) storeInCache(params SearchParams, records []types.SearchRecord, generation uint64) {
	if s.cache == nil {
		return
	}

	entry := &cacheEntry{
		records:   copyRecords(records),
		expiresAt: time.Now().Add(s.cacheTTL),
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if generation != s.generation {
		return
	}
	s.cache.Add(params, entry)
}

// copyRecords creates a deep copy so callers cannot mutate cached results
func copyRecords(src []types.SearchRecord) []types.SearchRecord {
	dst := make([]types.SearchRecord, len(src))
	copy(dst, src)
	for i := range dst {
		if dst[i].Receiver != nil {
			receiver := *dst[i].Receiver
			dst[i].Receiver = &receiver
		}
	}
	return dst
}
