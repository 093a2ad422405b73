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

	"github.com/tomtom215/malrec/internal/config"
	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/metrics"
	"github.com/tomtom215/malrec/internal/models"
)

// Policy is the exponential backoff schedule for rate-limited requests.
// The n-th consecutive wait is min(Initial * Multiplier^n, Max).
type Policy struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
}

// DefaultPolicy returns 1s initial wait, doubling, capped at 60s.
func DefaultPolicy() Policy {
	return Policy{
		Initial:    time.Second,
		Multiplier: 2,
		Max:        60 * time.Second,
	}
}

// PolicyFromConfig converts the backoff section of the configuration.
func PolicyFromConfig(cfg *config.BackoffConfig) Policy {
	return Policy{
		Initial:    cfg.Initial,
		Multiplier: cfg.Multiplier,
		Max:        cfg.Max,
	}
}

// Validate checks the schedule is usable.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial wait must be positive, got %v", p.Initial)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %v", p.Multiplier)
	}
	if p.Max < p.Initial {
		return fmt.Errorf("max wait %v is below initial wait %v", p.Max, p.Initial)
	}
	return nil
}

// first returns the wait after the first rate-limit response.
func (p Policy) first() time.Duration {
	return min(p.Initial, p.Max)
}

// next grows the current wait by Multiplier without exceeding Max.
func (p Policy) next(w time.Duration) time.Duration {
	grown := float64(w) * p.Multiplier
	if grown >= float64(p.Max) {
		return p.Max
	}
	return time.Duration(grown)
}

// State is the phase of a single Do call.
type State int

const (
	// StateIdle means no rate limit is being waited out.
	StateIdle State = iota
	// StateWaiting means the caller is sleeping before the next attempt.
	StateWaiting
	// StateRetrying means the request is being re-issued after a wait.
	StateRetrying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// Sleeper suspends the caller for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f(ctx, d).
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// timerSleeper waits on a real timer.
type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitObserver is notified before each wait. attempt starts at 1.
type WaitObserver func(attempt int, wait time.Duration)

// Controller retries operations that fail with models.ErrRateLimited, waiting
// according to its Policy. It gives up only when the context is cancelled, so a
// permanently throttled API stalls the caller rather than failing it.
//
// Each Do call keeps its own wait state, so one Controller can be shared by
// many workers and a sleep only blocks the worker that hit the limit.
type Controller struct {
	policy   Policy
	fetcher  Fetcher
	sleeper  Sleeper
	observer WaitObserver
}

// NewController creates a Controller. fetcher may be nil when the Controller is
// only used through Do.
func NewController(fetcher Fetcher, policy Policy) (*Controller, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backoff policy: %w", err)
	}
	return &Controller{
		policy:  policy,
		fetcher: fetcher,
		sleeper: timerSleeper{},
	}, nil
}

// SetSleeper replaces the wait implementation. Call before first use.
func (c *Controller) SetSleeper(s Sleeper) {
	c.sleeper = s
}

// SetWaitObserver registers a callback invoked before every wait. Call before first use.
func (c *Controller) SetWaitObserver(fn WaitObserver) {
	c.observer = fn
}

// Policy returns the backoff schedule.
func (c *Controller) Policy() Policy {
	return c.policy
}

// Do runs op until it returns something other than a rate-limit error.
//
//	Idle --rate limited--> Waiting(w0) --slept--> Retrying
//	Retrying --rate limited--> Waiting(min(w*M, max)) --slept--> Retrying
//	Idle/Retrying --success or other error--> return (state discarded)
//
// A cancelled context during a wait returns ctx.Err().
func (c *Controller) Do(ctx context.Context, op func(ctx context.Context) error) error {
	state := StateIdle
	var wait, total time.Duration
	attempt := 0

	for {
		err := op(ctx)
		if !errors.Is(err, models.ErrRateLimited) {
			if state == StateRetrying && err == nil {
				logging.Ctx(ctx).Info().
					Int("waits", attempt).
					Dur("total_wait", total).
					Msg("Request succeeded after rate limit")
			}
			return err
		}

		if state == StateIdle {
			wait = c.policy.first()
		} else {
			wait = c.policy.next(wait)
		}
		state = StateWaiting
		attempt++
		total += wait

		logging.Ctx(ctx).Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("Rate limited, backing off")
		metrics.RecordBackoffWait(wait)
		if c.observer != nil {
			c.observer(attempt, wait)
		}

		if err := c.sleeper.Sleep(ctx, wait); err != nil {
			return err
		}
		state = StateRetrying
	}
}

// FetchRatings fetches through the wrapped Fetcher, waiting out rate limits.
// The returned error is nil, a *models.UserFailureError, or a context error.
func (c *Controller) FetchRatings(ctx context.Context, user models.UserID) ([]models.RatedItem, error) {
	if c.fetcher == nil {
		return nil, errors.New("backoff controller has no fetcher")
	}
	var items []models.RatedItem
	err := c.Do(ctx, func(ctx context.Context) error {
		var err error
		items, err = c.fetcher.FetchRatings(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
