// Package metrics holds the Prometheus collectors exported by racksum.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// LocalWrites counts writes to local durable storage by key and result
	LocalWrites = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "racksum",
			Subsystem: "sync",
			Name:      "local_writes_total",
			Help:      "Total number of local storage writes",
		},
		[]string{"key", "result"},
	)

	// RemoteWrites counts remote configuration saves by result
	RemoteWrites = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "racksum",
			Subsystem: "sync",
			Name:      "remote_writes_total",
			Help:      "Total number of remote configuration saves",
		},
		[]string{"result"},
	)

	// RemoteSuperseded counts scheduled remote writes replaced by a later change before firing
	RemoteSuperseded = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "racksum",
			Subsystem: "sync",
			Name:      "remote_superseded_total",
			Help:      "Total number of debounced remote writes superseded by a later change",
		},
	)

	// HTTPRequests counts served requests
	HTTPRequests = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "racksum",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks request latency
	HTTPDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "racksum",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RateLimited counts requests rejected by the rate limiter
	RateLimited = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "racksum",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
