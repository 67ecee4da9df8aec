// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the greetings server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// StreamBuckets defines histogram buckets for request durations. Short
// buckets cover rejected and zero-delay requests, long ones cover
// streams with a per-step delay of several seconds.
var StreamBuckets = []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts HTTP requests by method, route and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greetings_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds. For the
	// stream route this is the lifetime of the whole stream.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greetings_request_duration_seconds",
			Help:    "Request duration",
			Buckets: StreamBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "greetings_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// EmissionsTotal counts message snapshots delivered to clients.
	EmissionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "greetings_emissions_total",
			Help: "Message snapshots emitted",
		},
	)

	// StreamsTotal counts finished greeting streams by outcome
	// (completed or cancelled).
	StreamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greetings_streams_total",
			Help: "Finished greeting streams",
		},
		[]string{"outcome"},
	)

	// DecodeErrorsTotal counts rejected greeting requests by decode error kind.
	DecodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greetings_decode_errors_total",
			Help: "Rejected greeting requests",
		},
		[]string{"kind"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greetings_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		EmissionsTotal,
		StreamsTotal,
		DecodeErrorsTotal,
		RateLimitRejectedTotal,
	)
}
