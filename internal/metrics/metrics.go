// Package metrics registers the Prometheus metrics used by termwise.
// Metrics are package-level and registered on the default registry at init,
// so they are ready before the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache metrics, labelled by cache name ("<backend>/<operation>").
var (
	// CacheLookups counts get-or-compute lookups by result ("hit", "miss").
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termwise_cache_lookups_total",
			Help: "Total response cache lookups by result.",
		},
		[]string{"cache", "result"},
	)

	// CacheEvictions counts entries dropped for capacity or found expired.
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termwise_cache_evictions_total",
			Help: "Total response cache evictions by reason.",
		},
		[]string{"cache", "reason"},
	)

	// CacheEntries tracks the current number of stored entries.
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "termwise_cache_entries",
			Help: "Current number of entries in the response cache.",
		},
		[]string{"cache"},
	)

	// CacheCoalesced counts callers that received a result from another
	// caller's in-flight backend call.
	CacheCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termwise_cache_coalesced_total",
			Help: "Total cache misses served by a shared in-flight backend call.",
		},
		[]string{"cache"},
	)

	// BackendCalls counts backend invocations made on cache misses, labelled
	// by outcome ("success", "error").
	BackendCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termwise_backend_calls_total",
			Help: "Total backend calls issued on cache misses.",
		},
		[]string{"cache", "status"},
	)
)

// Request-level metrics.
var (
	// RequestDuration observes assistant request latency in seconds, hits included.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "termwise_request_duration_seconds",
			Help:    "Assistant request duration in seconds.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation", "backend"},
	)

	// CircuitBreakerState tracks per-backend breaker state:
	// 0 = closed, 1 = open, 2 = half_open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "termwise_circuit_breaker_state",
			Help: "Circuit breaker state per backend (0=closed 1=open 2=half_open).",
		},
		[]string{"backend"},
	)
)
