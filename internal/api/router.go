// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/malrec/internal/middleware"
)

// RouterConfig configures the status server routes.
type RouterConfig struct {
	// StatusRateLimit is requests per minute per client IP on /status.
	// Zero disables the limit.
	StatusRateLimit int
}

// NewRouter builds the chi router:
//
//	GET /healthz  liveness, never rate limited
//	GET /status   crawl progress and store counts
//	GET /metrics  Prometheus exposition
func NewRouter(cfg RouterConfig, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	r.Get("/healthz", h.Health)

	r.Group(func(r chi.Router) {
		if cfg.StatusRateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.StatusRateLimit, time.Minute))
		}
		r.Get("/status", h.Status)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}
