// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

/*
Package middleware provides the chi middleware of the status server.

  - RequestID: assigns or propagates X-Request-ID and uses it as the logging
    correlation ID
  - PrometheusMetrics: request count and latency labelled by route pattern

Both follow the func(http.Handler) http.Handler shape expected by chi:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
