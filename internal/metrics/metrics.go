// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP surface
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfnotes_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Provider calls
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfnotes_upstream_requests_total",
			Help: "Requests made to metadata providers by outcome",
		},
		[]string{"provider", "outcome"}, // "success", "failure", "rejected"
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfnotes_upstream_request_duration_seconds",
			Help:    "Duration of metadata provider requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shelfnotes_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfnotes_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Summaries
	SummaryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfnotes_summary_requests_total",
			Help: "Summary requests by outcome",
		},
		[]string{"outcome"}, // "cache_hit", "generated", "partial", "error"
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfnotes_completion_duration_seconds",
			Help:    "Duration of summarization and translation calls in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"backend", "kind"},
	)

	// Disposable provider response cache
	ResponseCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfnotes_response_cache_lookups_total",
			Help: "Provider response cache lookups by table and result",
		},
		[]string{"table", "result"}, // "hit", "miss"
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfnotes_websocket_clients",
			Help: "Currently connected websocket clients",
		},
	)
)
