package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "artifactfinder"

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Indexing metrics
	ArtifactsIndexed *prometheus.CounterVec
	IndexDuration    prometheus.Histogram
	LookupsWritten   *prometheus.CounterVec

	// Queue metrics
	PendingAdded   *prometheus.CounterVec
	PendingRetries prometheus.Counter

	// Search metrics
	SearchRequests *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	SearchResults  prometheus.Histogram
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter

	// Crawl metrics
	CrawlArtifacts *prometheus.CounterVec
	CrawlWorkers   prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics on reg.
// A nil reg registers on the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ArtifactsIndexed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_indexed_total",
				Help:      "Total number of parsed artifacts handed to the indexer",
			},
			[]string{"status"},
		),

		IndexDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "index_duration_seconds",
				Help:      "Duration of the indexing transaction",
				Buckets:   prometheus.DefBuckets,
			},
		),

		LookupsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_written_total",
				Help:      "Total number of lookup rows written",
			},
			[]string{"kind"},
		),

		PendingAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pending_added_total",
				Help:      "Total number of add requests to the pending queue",
			},
			[]string{"result"},
		),

		PendingRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pending_retries_total",
				Help:      "Total number of pending artifact retry increments",
			},
		),

		SearchRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_requests_total",
				Help:      "Total number of search requests",
			},
			[]string{"mode"},
		),

		SearchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Duration of search requests",
				Buckets:   prometheus.DefBuckets,
			},
		),

		SearchResults: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results",
				Help:      "Number of results returned per search",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),

		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_cache_hits_total",
				Help:      "Total number of search cache hits",
			},
		),

		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_cache_misses_total",
				Help:      "Total number of search cache misses",
			},
		),

		CrawlArtifacts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crawl_artifacts_total",
				Help:      "Total number of pending artifacts processed by the crawler",
			},
			[]string{"outcome"},
		),

		CrawlWorkers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "crawl_workers_active",
				Help:      "Number of crawl workers currently running",
			},
		),
	}
}

// RecordIndexed records a completed indexing transaction
func (m *Metrics) RecordIndexed(duration time.Duration, classLookups, methodLookups int) {
	if m == nil {
		return
	}
	m.ArtifactsIndexed.WithLabelValues("indexed").Inc()
	m.IndexDuration.Observe(duration.Seconds())
	m.LookupsWritten.WithLabelValues("class").Add(float64(classLookups))
	m.LookupsWritten.WithLabelValues("method").Add(float64(methodLookups))
}

// RecordIndexSkipped records an artifact that was already indexed
func (m *Metrics) RecordIndexSkipped() {
	if m == nil {
		return
	}
	m.ArtifactsIndexed.WithLabelValues("skipped").Inc()
}

// RecordIndexError records a rolled back indexing transaction
func (m *Metrics) RecordIndexError() {
	if m == nil {
		return
	}
	m.ArtifactsIndexed.WithLabelValues("error").Inc()
}

// RecordPendingAdded records an add request and whether it enqueued a new entry
func (m *Metrics) RecordPendingAdded(added bool) {
	if m == nil {
		return
	}
	result := "duplicate"
	if added {
		result = "added"
	}
	m.PendingAdded.WithLabelValues(result).Inc()
}

// RecordRetry records a retry increment
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.PendingRetries.Inc()
}

// RecordSearch records a served search
func (m *Metrics) RecordSearch(mode string, duration time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchRequests.WithLabelValues(mode).Inc()
	m.SearchDuration.Observe(duration.Seconds())
	m.SearchResults.Observe(float64(results))
}

// RecordCacheHit records a search cache hit
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// RecordCacheMiss records a search cache miss
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// RecordCrawl records the outcome of processing one pending artifact
func (m *Metrics) RecordCrawl(outcome string) {
	if m == nil {
		return
	}
	m.CrawlArtifacts.WithLabelValues(outcome).Inc()
}

// IncWorkers marks a crawl worker as started
func (m *Metrics) IncWorkers() {
	if m == nil {
		return
	}
	m.CrawlWorkers.Inc()
}

// DecWorkers marks a crawl worker as stopped
func (m *Metrics) DecWorkers() {
	if m == nil {
		return
	}
	m.CrawlWorkers.Dec()
}
