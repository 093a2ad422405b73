// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

/*
Package metrics provides Prometheus instrumentation for the crawler and the
recommendation engine.

All collectors are registered with the default registry through promauto and
are exposed by the status server at /metrics when it is enabled:

	curl http://127.0.0.1:9464/metrics

# Available Metrics

Fetch Metrics:
  - malrec_fetch_requests_total: Fetch attempts (counter)
    Labels: outcome (success, rate_limited, not_found, forbidden, rejected, malformed, canceled)
  - malrec_fetch_duration_seconds: Fetch latency (histogram)

Backoff Metrics:
  - malrec_backoff_waits_total: Rate-limit waits (counter)
  - malrec_backoff_wait_seconds: Wait lengths (histogram)

Pipeline Metrics:
  - malrec_pipeline_users_total: Processed users (counter)
    Labels: result (stored, excluded)
  - malrec_pipeline_inflight: Users currently being fetched (gauge)
  - malrec_checkpoint_duration_seconds: Checkpoint latency (histogram)
  - malrec_checkpoint_failures_total: Failed checkpoint attempts (counter)

Circuit Breaker Metrics:
  - malrec_circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge)
  - malrec_circuit_breaker_transitions_total: State changes (counter)
    Labels: name, from, to

Recommendation Metrics:
  - malrec_recommend_duration_seconds: Query latency (histogram)

# Usage

	start := time.Now()
	vec, err := client.FetchRatings(ctx, user)
	metrics.RecordFetch(metrics.OutcomeSuccess, time.Since(start))

The Record* helpers are safe for concurrent use.
*/
package metrics
