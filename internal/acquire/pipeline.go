// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/metrics"
	"github.com/tomtom215/malrec/internal/models"
	"github.com/tomtom215/malrec/internal/store"
	malsync "github.com/tomtom215/malrec/internal/sync"
)

// Checkpointer atomically persists a batch of additions. *store.Store
// implements it.
type Checkpointer interface {
	Checkpoint(ctx context.Context, batch models.Batch) (*store.CheckpointRecord, error)
}

// Summary reports what a run did.
type Summary struct {
	RunID       string                       `json:"run_id"`
	Candidates  int                          `json:"candidates"`
	Skipped     int                          `json:"skipped"`
	Processed   int                          `json:"processed"`
	Accepted    int                          `json:"accepted"`
	Excluded    map[models.FailureReason]int `json:"excluded"`
	NewTitles   int                          `json:"new_titles"`
	Checkpoints int                          `json:"checkpoints"`
	Duration    time.Duration                `json:"duration"`
}

// ExcludedTotal returns the number of users excluded by this run.
func (s *Summary) ExcludedTotal() int {
	n := 0
	for _, c := range s.Excluded {
		n += c
	}
	return n
}

// result is what a worker hands to the aggregator for one user.
type result struct {
	user  models.UserID
	items []models.RatedItem
	err   error
}

// Pipeline fetches candidate users concurrently and merges the results into
// a dataset, checkpointing every CheckpointInterval processed users.
type Pipeline struct {
	cfg      Config
	fetcher  malsync.Fetcher
	store    Checkpointer
	progress *Progress
}

// New creates a Pipeline. The fetcher is expected to absorb rate limiting
// (normally a *sync.Controller), so it returns either items, a permanent
// *models.UserFailureError, or a context error.
func New(cfg Config, fetcher malsync.Fetcher, cp Checkpointer) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if fetcher == nil {
		return nil, errors.New("pipeline requires a fetcher")
	}
	if cp == nil {
		return nil, errors.New("pipeline requires a checkpointer")
	}
	return &Pipeline{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    cp,
		progress: &Progress{},
	}, nil
}

// Progress returns the live progress counters of the pipeline.
func (p *Pipeline) Progress() *Progress {
	return p.progress
}

// Run processes every candidate that is neither stored nor excluded in ds.
// ds is updated in place as results arrive.
//
// A run ends in one of three ways:
//   - all candidates processed: a final checkpoint is taken and nil returned
//   - ctx cancelled: a best-effort checkpoint of whatever was processed is
//     attempted and ctx.Err() returned
//   - checkpoint retries exhausted: workers are stopped and the
//     *models.PersistenceError returned
//
// The returned Summary is valid in all cases.
func (p *Pipeline) Run(ctx context.Context, candidates []models.UserID, ds *models.Dataset) (*Summary, error) {
	start := time.Now()
	ctx = logging.ContextWithNewCorrelationID(ctx)
	runID := logging.CorrelationIDFromContext(ctx)
	logger := logging.Ctx(ctx)

	todo, unique := Plan(candidates, ds)
	summary := &Summary{
		RunID:      runID,
		Candidates: unique,
		Skipped:    unique - len(todo),
		Excluded:   make(map[models.FailureReason]int),
	}
	defer func() { summary.Duration = time.Since(start) }()

	p.progress.begin(runID, len(todo))
	defer p.progress.end()

	logger.Info().
		Int("candidates", unique).
		Int("pending", len(todo)).
		Int("skipped", summary.Skipped).
		Int("workers", p.cfg.Concurrency).
		Msg("Acquisition started")

	if len(todo) == 0 {
		return summary, nil
	}

	agg := newAggregator(p.cfg, p.store, ds, summary, p.progress)

	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()

	results := make(chan result, p.cfg.Concurrency)
	workErr := p.startWorkers(workCtx, todo, results)

	var fatal error
	for r := range results {
		if fatal != nil || workCtx.Err() != nil {
			// Drain so workers can exit; late results are abandoned.
			continue
		}
		if !agg.apply(ctx, r) {
			continue
		}
		if err := agg.checkpoint(workCtx); err != nil {
			var perr *models.PersistenceError
			if errors.As(err, &perr) {
				fatal = err
				cancelWork()
			}
		}
	}
	werr := <-workErr

	if fatal != nil {
		logger.Error().Err(fatal).Int("processed", summary.Processed).Msg("Acquisition aborted")
		return summary, fatal
	}

	if ctx.Err() != nil || werr != nil {
		p.finalCheckpoint(ctx, agg)
		if ctx.Err() != nil {
			logger.Warn().Int("processed", summary.Processed).Msg("Acquisition cancelled")
			return summary, ctx.Err()
		}
		logger.Error().Err(werr).Int("processed", summary.Processed).Msg("Acquisition failed")
		return summary, werr
	}

	if err := agg.checkpoint(ctx); err != nil {
		return summary, err
	}

	logger.Info().
		Int("processed", summary.Processed).
		Int("accepted", summary.Accepted).
		Int("excluded", summary.ExcludedTotal()).
		Int("new_titles", summary.NewTitles).
		Int("checkpoints", summary.Checkpoints).
		Dur("duration", time.Since(start)).
		Msg("Acquisition completed")
	return summary, nil
}

// startWorkers feeds todo to Concurrency workers and closes results once all
// of them have returned. The returned channel yields the first worker error.
func (p *Pipeline) startWorkers(ctx context.Context, todo []models.UserID, results chan<- result) <-chan error {
	jobs := make(chan models.UserID)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for _, u := range todo {
			select {
			case jobs <- u:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < p.cfg.Concurrency; i++ {
		g.Go(func() error {
			for u := range jobs {
				metrics.TrackInflight(true)
				items, err := p.fetcher.FetchRatings(gctx, u)
				metrics.TrackInflight(false)

				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					if _, ok := models.IsPermanent(err); !ok {
						return fmt.Errorf("fetch %s: %w", u, err)
					}
				}
				select {
				case results <- result{user: u, items: items, err: err}:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
		close(results)
	}()
	return done
}

// finalCheckpoint persists what was processed before the run stopped. It
// outlives the cancelled context but is bounded by FinalCheckpointTimeout.
func (p *Pipeline) finalCheckpoint(ctx context.Context, agg *aggregator) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.FinalCheckpointTimeout)
	defer cancel()
	if err := agg.checkpoint(fctx); err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Int("pending", agg.pending.Size()).
			Msg("Final checkpoint failed, pending results lost")
	}
}
