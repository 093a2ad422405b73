// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes used as the "outcome" label of FetchRequestsTotal.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeNotFound    = "not_found"
	OutcomeForbidden   = "forbidden"
	OutcomeRejected    = "rejected"
	OutcomeMalformed   = "malformed"
	OutcomeCanceled    = "canceled"
)

// Pipeline results used as the "result" label of PipelineUsersTotal.
const (
	ResultStored   = "stored"
	ResultExcluded = "excluded"
)

var (
	// Fetch Client Metrics
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "malrec_fetch_requests_total",
			Help: "Total number of list fetch attempts by outcome",
		},
		[]string{"outcome"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "malrec_fetch_duration_seconds",
			Help:    "Duration of a single list fetch in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// Backoff Metrics
	BackoffWaitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "malrec_backoff_waits_total",
			Help: "Total number of rate-limit waits performed",
		},
	)

	BackoffWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "malrec_backoff_wait_seconds",
			Help:    "Length of each rate-limit wait in seconds",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 60, 120},
		},
	)

	// Pipeline Metrics
	PipelineUsersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "malrec_pipeline_users_total",
			Help: "Total number of users processed by result",
		},
		[]string{"result"}, // "stored", "excluded"
	)

	PipelineInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "malrec_pipeline_inflight",
			Help: "Current number of users being fetched",
		},
	)

	CheckpointDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "malrec_checkpoint_duration_seconds",
			Help:    "Duration of successful checkpoints in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CheckpointFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "malrec_checkpoint_failures_total",
			Help: "Total number of failed checkpoint attempts",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "malrec_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "malrec_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Recommendation Metrics
	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "malrec_recommend_duration_seconds",
			Help:    "Duration of a recommendation query in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Status Server Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "malrec_api_requests_total",
			Help: "Total number of status server requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "malrec_api_request_duration_seconds",
			Help:    "Status server request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordFetch records the outcome and latency of one fetch attempt.
func RecordFetch(outcome string, duration time.Duration) {
	FetchRequestsTotal.WithLabelValues(outcome).Inc()
	FetchDuration.Observe(duration.Seconds())
}

// RecordBackoffWait records one rate-limit wait.
func RecordBackoffWait(d time.Duration) {
	BackoffWaitsTotal.Inc()
	BackoffWaitSeconds.Observe(d.Seconds())
}

// RecordUserResult counts a processed user under the given result label.
func RecordUserResult(result string) {
	PipelineUsersTotal.WithLabelValues(result).Inc()
}

// TrackInflight adjusts the in-flight fetch gauge.
func TrackInflight(inc bool) {
	if inc {
		PipelineInflight.Inc()
	} else {
		PipelineInflight.Dec()
	}
}

// RecordCheckpoint records a checkpoint attempt. Failed attempts are counted
// but their duration is not observed.
func RecordCheckpoint(duration time.Duration, err error) {
	if err != nil {
		CheckpointFailures.Inc()
		return
	}
	CheckpointDuration.Observe(duration.Seconds())
}

// RecordRecommend records the latency of one recommendation query.
func RecordRecommend(duration time.Duration) {
	RecommendDuration.Observe(duration.Seconds())
}

// RecordAPIRequest records a status server request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
