// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/malrec/internal/acquire"
	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/models"
	"github.com/tomtom215/malrec/internal/store"
)

// ProgressSource reports live crawl progress. *acquire.Progress implements it.
type ProgressSource interface {
	Snapshot() acquire.ProgressSnapshot
}

// StoreStats reports durable totals. *store.Store implements it.
type StoreStats interface {
	Counts(ctx context.Context) (store.Counts, error)
	LastCheckpoint(ctx context.Context) (*store.CheckpointRecord, error)
}

// BreakerState reports the fetch circuit breaker state.
type BreakerState interface {
	State() string
}

// StatusResponse is the data of GET /status.
type StatusResponse struct {
	Progress       acquire.ProgressSnapshot `json:"progress"`
	Store          *store.Counts            `json:"store,omitempty"`
	LastCheckpoint *store.CheckpointRecord  `json:"last_checkpoint,omitempty"`
	CircuitBreaker string                   `json:"circuit_breaker,omitempty"`
	Uptime         float64                  `json:"uptime_seconds"`
}

// Handler serves the status endpoints.
type Handler struct {
	progress  ProgressSource
	stats     StoreStats
	breaker   BreakerState
	startTime time.Time
}

// NewHandler creates a Handler. stats and breaker may be nil.
func NewHandler(progress ProgressSource, stats StoreStats, breaker BreakerState) *Handler {
	return &Handler{
		progress:  progress,
		stats:     stats,
		breaker:   breaker,
		startTime: time.Now(),
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// Status handles GET /status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Progress: h.progress.Snapshot(),
		Uptime:   time.Since(h.startTime).Seconds(),
	}

	if h.stats != nil {
		counts, err := h.stats.Counts(r.Context())
		if err != nil {
			respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Store is unavailable", err)
			return
		}
		resp.Store = &counts

		last, err := h.stats.LastCheckpoint(r.Context())
		if err != nil {
			respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Store is unavailable", err)
			return
		}
		resp.LastCheckpoint = last
	}
	if h.breaker != nil {
		resp.CircuitBreaker = h.breaker.State()
	}

	respondJSON(w, r, http.StatusOK, resp)
}

func newResponse(r *http.Request, data interface{}) *models.APIResponse {
	return &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: logging.CorrelationIDFromContext(r.Context()),
		},
	}
}
