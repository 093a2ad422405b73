// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

/*
Package acquire runs the crawl: it fetches the rating list of every candidate
user that is not yet known, classifies each one as stored or excluded, and
checkpoints the additions to durable storage.

Architecture:

	candidates --> jobs --> N workers --> results --> aggregator --> Checkpointer
	                         (Fetcher)                 (single writer)

Workers only fetch. The aggregator owns the dataset and the pending batch, so
no locking is needed around either, and a checkpoint can never observe a half
merged result. Every CheckpointInterval processed users the pending batch is
committed in one transaction.

Guarantees:

  - a user ends a run in at most one of ratings and exclusions
  - stored and excluded users are never fetched again, so a rerun after a
    crash resumes where the last checkpoint left off
  - a title, once recorded, is never overwritten
  - rate limiting is absorbed by the Fetcher and never excludes a user

Cancellation stops the workers, then a best-effort checkpoint saves whatever
was already merged. A checkpoint that keeps failing after its retries aborts
the run with a *models.PersistenceError.
*/
package acquire
