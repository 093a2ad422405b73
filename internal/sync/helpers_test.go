// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/tomtom215/malrec/internal/models"
)

// scriptedFetcher returns the scripted errors in order, then items forever.
type scriptedFetcher struct {
	mu     gosync.Mutex
	script []error
	items  []models.RatedItem
	calls  int
}

func (f *scriptedFetcher) FetchRatings(ctx context.Context, user models.UserID) ([]models.RatedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.script) > 0 {
		err := f.script[0]
		f.script = f.script[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.items, nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingSleeper records requested waits without sleeping.
type recordingSleeper struct {
	mu    gosync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return nil
}

func (s *recordingSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func rateLimits(n int) []error {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = models.ErrRateLimited
	}
	return errs
}
