// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

/*
Package api serves the optional status server that runs next to a crawl.

Endpoints:

	GET /healthz   {"status":"success","data":{"alive":true,"uptime":12.3}}
	GET /status    progress counters, store totals, last checkpoint, breaker state
	GET /metrics   Prometheus exposition of every malrec_* metric

Every JSON response uses the models.APIResponse envelope and carries the
request ID in both the X-Request-ID header and metadata.request_id. /status
is rate limited per client IP with go-chi/httprate.

The server is read-only: it never touches the dataset the pipeline is
mutating, only the atomic progress counters and the store's own transactions.
*/
package api
