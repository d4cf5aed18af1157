// Package metrics exposes Prometheus instrumentation for the query engine,
// view-tracking pipeline, and background compactor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueryDuration tracks how long each logical query takes, by query name
	// and the path it resolved to (fts_index, scan_fallback, vector_index, ...).
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marginalia_query_duration_seconds",
			Help:    "Duration of query engine operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query", "path"},
	)

	// QueryPathTotal counts query completions by the path label they took.
	QueryPathTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marginalia_query_path_total",
			Help: "Total query completions broken down by chosen execution path",
		},
		[]string{"query", "path", "is_fastest"},
	)

	// StoreErrorsTotal counts structured store errors by kind and table.
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marginalia_store_errors_total",
			Help: "Total store adapter errors by kind and table",
		},
		[]string{"table", "kind"},
	)

	// APIRequestsTotal counts HTTP requests by method, route, and status.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marginalia_api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// APIRequestDuration tracks HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marginalia_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// ViewTrackTotal counts track_view outcomes by whether they counted.
	ViewTrackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marginalia_view_track_total",
			Help: "Total view-tracking calls by dedupe outcome",
		},
		[]string{"counted"},
	)

	// CompactionDuration tracks time spent compacting a single table.
	CompactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marginalia_compaction_duration_seconds",
			Help:    "Duration of a single table's compaction run",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"table"},
	)

	// CompactionErrorsTotal counts per-table compaction failures.
	CompactionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marginalia_compaction_errors_total",
			Help: "Total compaction failures by table",
		},
		[]string{"table"},
	)

	// EmbeddingBreakerTrips counts circuit-breaker state transitions for the
	// embedding collaborator.
	EmbeddingBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marginalia_embedding_breaker_transitions_total",
			Help: "Embedding collaborator circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)

	// CacheHits / CacheMisses track the rendered-HTML/snippet cache.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marginalia_cache_hits_total",
			Help: "Cache hits by cache name",
		},
		[]string{"cache"},
	)
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marginalia_cache_misses_total",
			Help: "Cache misses by cache name",
		},
		[]string{"cache"},
	)
)

// RecordQuery records a query completion's duration and path outcome.
func RecordQuery(query, path string, isFastest bool, elapsed time.Duration) {
	QueryDuration.WithLabelValues(query, path).Observe(elapsed.Seconds())
	QueryPathTotal.WithLabelValues(query, path, boolLabel(isFastest)).Inc()
}

// RecordStoreError records a structured store error.
func RecordStoreError(table, kind string) {
	StoreErrorsTotal.WithLabelValues(table, kind).Inc()
}

// RecordAPIRequest records an HTTP request's outcome and latency.
func RecordAPIRequest(method, route, status string, elapsed time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordViewTrack records a view-tracking call's dedupe outcome.
func RecordViewTrack(counted bool) {
	ViewTrackTotal.WithLabelValues(boolLabel(counted)).Inc()
}

// RecordCompaction records a table compaction's duration and any failure.
func RecordCompaction(table string, elapsed time.Duration, err error) {
	CompactionDuration.WithLabelValues(table).Observe(elapsed.Seconds())
	if err != nil {
		CompactionErrorsTotal.WithLabelValues(table).Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
