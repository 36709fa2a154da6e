// Package metrics provides Prometheus metrics for atsync. It exposes
// counters and histograms for the shared transport, the resolver cache,
// and per-kind upsert outcomes. Collectors are registered once at package
// init via promauto; components record through the package-level helpers.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by target system, method and status class.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atsync_requests_total",
			Help: "HTTP requests issued through the rate-limited transport",
		},
		[]string{"system", "method", "status_class"},
	)

	// RequestLatency tracks HTTP round-trip latency per target system.
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atsync_request_latency_seconds",
			Help:    "HTTP request latency through the rate-limited transport",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"system"},
	)

	// RetriesTotal counts retried requests by cause (rate_limit, server_error).
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atsync_request_retries_total",
			Help: "HTTP request retries by cause",
		},
		[]string{"system", "cause"},
	)

	// RecordsTotal counts upserted records by kind and terminal outcome.
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atsync_records_total",
			Help: "Canonical records processed by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// ResolverLookups counts resolver cache hits and misses.
	ResolverLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atsync_resolver_lookups_total",
			Help: "External-id resolver lookups by result",
		},
		[]string{"kind", "result"},
	)
)

// ObserveRequest records one completed HTTP request.
func ObserveRequest(system, method string, status int, elapsed time.Duration) {
	RequestsTotal.WithLabelValues(system, method, statusClass(status)).Inc()
	RequestLatency.WithLabelValues(system).Observe(elapsed.Seconds())
}

// statusClass buckets a status code into "2xx".."5xx"; 0 means a transport error.
func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

// Timer measures the duration of a single operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time since the timer started.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
