// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/malrec/internal/models"
)

func TestCircuitBreakerFetcher_PermanentFailuresDoNotTrip(t *testing.T) {
	t.Parallel()

	permanent := &models.UserFailureError{User: "ghost", Reason: models.ReasonNotFound, Status: 404}
	script := make([]error, 20)
	for i := range script {
		script[i] = permanent
	}
	inner := &scriptedFetcher{script: script}
	cb := NewCircuitBreakerFetcher("test-permanent", inner, BreakerSettings{MinRequests: 5})

	for i := 0; i < 20; i++ {
		_, err := cb.FetchRatings(context.Background(), "ghost")
		if _, ok := models.IsPermanent(err); !ok {
			t.Fatalf("call %d: error = %v, want permanent failure", i, err)
		}
	}
	if cb.State() != "closed" {
		t.Errorf("State() = %q, want closed", cb.State())
	}
}

// TestCircuitBreakerFetcher_OpensOnRateLimits tests that an open breaker fails
// fast with a rate-limit error and does not reach the wrapped fetcher
func TestCircuitBreakerFetcher_OpensOnRateLimits(t *testing.T) {
	t.Parallel()

	inner := &scriptedFetcher{script: rateLimits(10)}
	cb := NewCircuitBreakerFetcher("test-open", inner, BreakerSettings{
		MinRequests:  5,
		FailureRatio: 0.5,
		Timeout:      time.Hour,
	})

	for i := 0; i < 5; i++ {
		if _, err := cb.FetchRatings(context.Background(), "alice"); !errors.Is(err, models.ErrRateLimited) {
			t.Fatalf("call %d: error = %v, want ErrRateLimited", i, err)
		}
	}
	if cb.State() != "open" {
		t.Fatalf("State() = %q, want open", cb.State())
	}

	callsBefore := inner.Calls()
	_, err := cb.FetchRatings(context.Background(), "alice")
	if !errors.Is(err, models.ErrRateLimited) {
		t.Errorf("open breaker error = %v, want ErrRateLimited", err)
	}
	if inner.Calls() != callsBefore {
		t.Error("open breaker must not call the wrapped fetcher")
	}
}

func TestCircuitBreakerFetcher_Success(t *testing.T) {
	t.Parallel()

	inner := &scriptedFetcher{items: []models.RatedItem{{ItemID: 7, Title: "Mushishi", Score: 10}}}
	cb := NewCircuitBreakerFetcher("test-success", inner, BreakerSettings{})

	items, err := cb.FetchRatings(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FetchRatings() error = %v", err)
	}
	if len(items) != 1 || items[0].ItemID != 7 {
		t.Errorf("items = %+v", items)
	}
}

// TestCircuitBreakerFetcher_UnderController tests the breaker composed under
// the backoff controller recovers once the API stops throttling
func TestCircuitBreakerFetcher_UnderController(t *testing.T) {
	t.Parallel()

	inner := &scriptedFetcher{
		script: rateLimits(3),
		items:  []models.RatedItem{{ItemID: 1, Score: 5}},
	}
	cb := NewCircuitBreakerFetcher("test-composed", inner, BreakerSettings{MinRequests: 100})
	c, sleeper := newTestController(t, cb, DefaultPolicy())

	items, err := c.FetchRatings(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FetchRatings() error = %v", err)
	}
	if len(items) != 1 {
		t.Errorf("items = %+v", items)
	}
	if len(sleeper.Waits()) != 3 {
		t.Errorf("waits = %v, want 3", sleeper.Waits())
	}
}
