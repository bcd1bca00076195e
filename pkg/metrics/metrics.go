// Package metrics defines the Prometheus instrumentation for chatrelay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 30, 120},
		},
		[]string{"method", "path"},
	)

	// Stream relay metrics
	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrelay_active_streams",
			Help: "Client streams currently being relayed",
		},
	)

	StreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_streams_total",
			Help: "Relayed streams by terminal outcome",
		},
		[]string{"outcome"}, // "clean", "exhausted", "failed"
	)

	RestreamsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_restreams_total",
			Help: "Upstream calls re-issued after truncated turns",
		},
	)

	UpstreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_upstream_events_total",
			Help: "Normalized upstream events by type",
		},
		[]string{"type"},
	)

	DroppedEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_dropped_events_total",
			Help: "Upstream events discarded by the mapper",
		},
	)
)

// Stream outcome label values.
const (
	OutcomeClean     = "clean"
	OutcomeExhausted = "exhausted"
	OutcomeFailed    = "failed"
)
