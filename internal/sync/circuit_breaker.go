// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/metrics"
	"github.com/tomtom215/malrec/internal/models"
)

// BreakerSettings tunes the circuit breaker. Zero values take the defaults below.
type BreakerSettings struct {
	// MaxRequests allowed through while half-open (default 3)
	MaxRequests uint32
	// Interval after which closed-state counts reset (default 1m)
	Interval time.Duration
	// Timeout before an open breaker moves to half-open (default 2m)
	Timeout time.Duration
	// MinRequests before the failure ratio is considered (default 10)
	MinRequests uint32
	// FailureRatio that trips the breaker (default 0.6)
	FailureRatio float64
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval == 0 {
		s.Interval = time.Minute
	}
	if s.Timeout == 0 {
		s.Timeout = 2 * time.Minute
	}
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio == 0 {
		s.FailureRatio = 0.6
	}
	return s
}

// CircuitBreakerFetcher wraps a Fetcher with the circuit breaker pattern.
//
// Only rate-limit responses count as failures. Permanent user failures are a
// normal answer from a healthy API and cancellations say nothing about it.
// While the breaker is open, calls fail fast with models.ErrRateLimited so the
// backoff Controller above it keeps waiting instead of hammering the API.
type CircuitBreakerFetcher struct {
	next Fetcher
	cb   *gobreaker.CircuitBreaker[[]models.RatedItem]
	name string
}

// NewCircuitBreakerFetcher wraps next in a breaker named name.
func NewCircuitBreakerFetcher(name string, next Fetcher, settings BreakerSettings) *CircuitBreakerFetcher {
	s := settings.withDefaults()

	// Initialize circuit breaker state metrics
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[[]models.RatedItem](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,

		// Opens when failure rate >= FailureRatio with at least MinRequests
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= s.FailureRatio
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, models.ErrRateLimited)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerFetcher{next: next, cb: cb, name: name}
}

// FetchRatings calls the wrapped Fetcher unless the breaker is open.
func (f *CircuitBreakerFetcher) FetchRatings(ctx context.Context, user models.UserID) ([]models.RatedItem, error) {
	items, err := f.cb.Execute(func() ([]models.RatedItem, error) {
		return f.next.FetchRatings(ctx, user)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit breaker %s: %v", models.ErrRateLimited, f.name, err)
	}
	return items, err
}

// State returns the current breaker state as a string.
func (f *CircuitBreakerFetcher) State() string {
	return stateToString(f.cb.State())
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
