// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// QueryDuration tracks end-to-end query pipeline duration.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "query_duration_seconds",
			Help:    "End-to-end query pipeline duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"mode", "state"},
	)

	// QueriesTotal tracks queries by mode and final state.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queries_total",
			Help: "Total queries by mode and final state",
		},
		[]string{"mode", "state"},
	)

	// RetrievalDuration tracks per-backend retrieval duration.
	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrieval_duration_seconds",
			Help:    "Per-backend retrieval duration",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"backend", "status"},
	)

	// RetrievalsTotal tracks retrieval calls by backend and status.
	RetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrievals_total",
			Help: "Total retrieval calls by backend and status",
		},
		[]string{"backend", "status"},
	)

	// ScoringCallsTotal tracks scoring calls by mode and status.
	ScoringCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_calls_total",
			Help: "Total scoring calls by mode and status",
		},
		[]string{"mode", "status"},
	)

	// ScoringTokens tracks total LLM tokens spent on scoring.
	ScoringTokens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoring_tokens_total",
			Help: "Total LLM tokens spent on scoring",
		},
	)

	// SessionsTotal tracks total conversation sessions created.
	SessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_total",
			Help: "Total conversation sessions created",
		},
	)

	// MessagesTotal tracks total messages recorded on sessions.
	MessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages recorded on sessions",
		},
	)

	// CapacityRejections tracks message appends rejected at the queue limit.
	CapacityRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_capacity_rejections_total",
			Help: "Message appends rejected by the session queue limit",
		},
	)

	// NATSStreamMessages tracks messages in NATS stream.
	NATSStreamMessages = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_messages",
			Help: "Number of messages in NATS stream",
		},
		[]string{"stream"},
	)

	// NATSStreamBytes tracks bytes in NATS stream.
	NATSStreamBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_bytes",
			Help: "Bytes in NATS stream",
		},
		[]string{"stream"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordQuery records metrics for one query pipeline run.
func RecordQuery(mode, state string, duration float64) {
	QueryDuration.WithLabelValues(mode, state).Observe(duration)
	QueriesTotal.WithLabelValues(mode, state).Inc()
}

// RecordRetrieval records metrics for one backend retrieval call.
func RecordRetrieval(backend, status string, duration float64) {
	RetrievalDuration.WithLabelValues(backend, status).Observe(duration)
	RetrievalsTotal.WithLabelValues(backend, status).Inc()
}

// RecordScoring records one scoring call outcome.
func RecordScoring(mode, status string) {
	ScoringCallsTotal.WithLabelValues(mode, status).Inc()
}
