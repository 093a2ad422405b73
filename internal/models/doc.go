// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

/*
Package models defines the shared data structures for malrec.

The acquisition pipeline, the durable store and the recommendation engine all
exchange the types declared here, so this package has no dependencies on the
rest of the module.

Core Types:

  - UserID: case-sensitive identifier of a list owner
  - ItemID: stable integer identifier of an anime entry
  - Score: user score, 1-10; zero means "unrated" and is never stored
  - RatingVector: sparse ItemID -> Score mapping for one user
  - RatingStore: UserID -> RatingVector
  - ItemCatalog: ItemID -> display title (append-only)
  - ExclusionSet: UserID -> FailureReason (append-only)

Checkpointing:

A Batch carries the pending additions accumulated between two checkpoints.
The store persists a Batch in one transaction, so a Batch is the unit of
durability.

Errors:

errors.go holds the error taxonomy shared across packages: ErrRateLimited,
UserFailureError, PersistenceError and ErrUnknownUser. Callers should test
them with errors.Is and errors.As.
*/
package models
