// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vnmarket_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"level"}, // memory, store
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vnmarket_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	CacheExpirations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vnmarket_cache_expirations_total",
			Help: "Expired entries purged on lookup",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vnmarket_cache_entries",
			Help: "Entries held in the in-memory cache tier",
		},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vnmarket_upstream_requests_total",
			Help: "Upstream HTTP requests by service and outcome",
		},
		[]string{"service", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vnmarket_upstream_request_duration_seconds",
			Help:    "Duration of upstream HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	BatchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vnmarket_batch_items_total",
			Help: "Batch orchestrator items processed by result",
		},
		[]string{"result"}, // success, failure
	)
)

// RecordCacheHit records a hit served from the given tier
func RecordCacheHit(level string) {
	CacheHits.WithLabelValues(level).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMisses.Inc()
}

// RecordCacheExpiration records a lazily purged entry
func RecordCacheExpiration() {
	CacheExpirations.Inc()
}

// SetCacheEntries updates the in-memory entry gauge
func SetCacheEntries(n int) {
	CacheEntries.Set(float64(n))
}

// ObserveUpstream records one upstream call
func ObserveUpstream(service, outcome string, started time.Time) {
	UpstreamRequests.WithLabelValues(service, outcome).Inc()
	UpstreamDuration.WithLabelValues(service).Observe(time.Since(started).Seconds())
}

// RecordBatchItem records one orchestrator item outcome
func RecordBatchItem(success bool) {
	if success {
		BatchItems.WithLabelValues("success").Inc()
		return
	}
	BatchItems.WithLabelValues("failure").Inc()
}
