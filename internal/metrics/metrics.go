// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Source call outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

var (
	SourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latent_source_requests_total",
			Help: "Shadow source calls by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	SourceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "latent_source_request_duration_seconds",
			Help:    "Duration of shadow source calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "latent_source_breaker_state",
			Help: "Circuit breaker state per source",
		},
		[]string{"source"},
	)

	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latent_catalog_requests_total",
			Help: "Catalog API calls by endpoint and HTTP status class",
		},
		[]string{"endpoint", "status"},
	)

	CatalogRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latent_catalog_retries_total",
			Help: "Catalog API calls retried after a 429, 5xx or transport error",
		},
		[]string{"endpoint"},
	)

	CatalogCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latent_catalog_cache_hits_total",
			Help: "Catalog responses served from the local cache",
		},
		[]string{"endpoint"},
	)

	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latent_gate_decisions_total",
			Help: "Confidence gate decisions",
		},
		[]string{"decision"},
	)

	CandidatePoolSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "latent_candidate_pool_size",
			Help:    "Candidates produced per expansion",
			Buckets: []float64{0, 5, 10, 25, 50, 75, 100},
		},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "latent_scan_duration_seconds",
			Help:    "End-to-end omission scan duration",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40},
		},
	)

	FeedbackVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latent_feedback_verdicts_total",
			Help: "Recorded feedback verdicts",
		},
		[]string{"verdict"},
	)
)

// ObserveSource records one shadow source call.
func ObserveSource(source, outcome string, elapsed time.Duration) {
	SourceRequests.WithLabelValues(source, outcome).Inc()
	SourceDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}
