// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package acquire

import (
	"context"
	"time"

	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/metrics"
	"github.com/tomtom215/malrec/internal/models"
)

// aggregator is the single writer of the dataset and the pending batch.
// It runs on the goroutine that called Run and is never shared.
type aggregator struct {
	cfg      Config
	store    Checkpointer
	dataset  *models.Dataset
	pending  models.Batch
	summary  *Summary
	progress *Progress
}

func newAggregator(cfg Config, store Checkpointer, ds *models.Dataset, summary *Summary, progress *Progress) *aggregator {
	return &aggregator{
		cfg:      cfg,
		store:    store,
		dataset:  ds,
		pending:  models.NewBatch(),
		summary:  summary,
		progress: progress,
	}
}

// apply folds one worker result into the dataset and the pending batch.
// It reports whether a checkpoint is due.
func (a *aggregator) apply(ctx context.Context, r result) bool {
	if failure, ok := models.IsPermanent(r.err); ok {
		a.recordExclusion(ctx, r.user, failure.Reason)
	} else if models.CountRated(r.items) < a.cfg.MinListLength {
		a.recordExclusion(ctx, r.user, models.ReasonShortList)
	} else {
		a.recordSuccess(r.user, r.items)
	}
	a.summary.Processed++
	return a.summary.Processed%a.cfg.CheckpointInterval == 0
}

func (a *aggregator) recordSuccess(user models.UserID, items []models.RatedItem) {
	vec := models.NewRatingVector(items)
	a.dataset.Ratings[user] = vec
	a.pending.Ratings[user] = vec

	for _, it := range items {
		if it.Score == 0 {
			continue
		}
		if _, known := a.dataset.Catalog[it.ItemID]; known {
			continue
		}
		a.dataset.Catalog[it.ItemID] = it.Title
		a.pending.Titles[it.ItemID] = it.Title
		a.summary.NewTitles++
	}

	a.summary.Accepted++
	a.progress.addAccepted()
	metrics.RecordUserResult(metrics.ResultStored)
}

func (a *aggregator) recordExclusion(ctx context.Context, user models.UserID, reason models.FailureReason) {
	a.dataset.Exclusions[user] = reason
	a.pending.Exclusions[user] = reason

	a.summary.Excluded[reason]++
	a.progress.addExcluded()
	metrics.RecordUserResult(metrics.ResultExcluded)

	logging.Ctx(ctx).Debug().
		Str("user", string(user)).
		Str("reason", string(reason)).
		Msg("User excluded")
}

// checkpoint persists the pending batch, retrying failed attempts. It returns
// ctx.Err() when the context ends first and a *models.PersistenceError once
// the retries are exhausted. The pending batch is kept on any failure.
func (a *aggregator) checkpoint(ctx context.Context) error {
	if a.pending.Empty() {
		return nil
	}

	attempts := a.cfg.CheckpointRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		rec, err := a.store.Checkpoint(ctx, a.pending)
		metrics.RecordCheckpoint(time.Since(start), err)
		if err == nil {
			logging.Ctx(ctx).Info().
				Int64("sequence", rec.Sequence).
				Int("users", rec.Users).
				Int("titles", rec.Titles).
				Int("exclusions", rec.Exclusions).
				Int("processed", a.summary.Processed).
				Msg("Checkpoint committed")
			a.summary.Checkpoints++
			a.progress.addCheckpoint(rec.At)
			a.pending = models.NewBatch()
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Ctx(ctx).Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Int("pending", a.pending.Size()).
			Msg("Checkpoint failed")

		if attempt < attempts && a.cfg.CheckpointRetryDelay > 0 {
			timer := time.NewTimer(a.cfg.CheckpointRetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return &models.PersistenceError{Attempts: attempts, Err: lastErr}
}
