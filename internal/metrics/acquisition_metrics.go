// Package metrics defines collaborator feed metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Feed counter vectors
var (
	FetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_fetches_total",
		Help:      "Total feed fetches by source type and status (ok, degraded, unavailable)",
	}, []string{"source_type", "status"})

	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Feed cache lookups by source type and result (hit, miss, stale)",
	}, []string{"source_type", "result"})

	StreamMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_messages_total",
		Help:      "Odds stream messages by result (accepted, dropped, invalid)",
	}, []string{"result"})
)

// Feed histogram vectors
var (
	FetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "source_fetch_duration_seconds",
		Help:      "Feed fetch latency by source type",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"source_type"})
)

// RecordFetch records a feed fetch outcome and its latency.
func RecordFetch(sourceType, status string, durationSeconds float64) {
	FetchesTotal.WithLabelValues(sourceType, status).Inc()
	FetchDuration.WithLabelValues(sourceType).Observe(durationSeconds)
}

// RecordCacheLookup records a cache lookup.
// result should be one of: "hit", "miss", "stale"
func RecordCacheLookup(sourceType, result string) {
	CacheLookupsTotal.WithLabelValues(sourceType, result).Inc()
}

// RecordStreamMessage records an odds stream message.
func RecordStreamMessage(result string) {
	StreamMessagesTotal.WithLabelValues(result).Inc()
}
