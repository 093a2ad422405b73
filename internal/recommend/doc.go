// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

/*
Package recommend implements user-based collaborative filtering over the
crawled rating store.

Algorithm:

For target T and every other user U sharing at least one rated item:

	sim(T, U) = sum_{i in T∩U} T[i]*U[i] / (|T| * |U|)

where |T| and |U| are the magnitudes of the complete vectors, not of the
shared subset. A user whose ratings concentrate on the shared items scores
higher than one who merely overlaps. Users with no shared item contribute
nothing.

Each unseen item i then accumulates

	score(i) = sum_U U[i] * sim(T, U)

and the items are returned by score descending, ties by ascending ItemID.

Determinism:

Similarities are computed in parallel chunks, but aggregation always walks
users in ascending UserID order and items in ascending ItemID order, so the
same store produces bit-identical scores regardless of NumWorkers.

Usage:

	engine, err := recommend.NewEngine(recommend.DefaultConfig(), logging.Logger())
	ids, err := engine.Recommend(ctx, dataset.Ratings, "some_user", 10)
	if errors.Is(err, models.ErrUnknownUser) {
	    // the user has not been crawled
	}
*/
package recommend
