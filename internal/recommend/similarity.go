// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package recommend

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/malrec/internal/models"
)

// Similarity returns the cosine similarity of two rating vectors, where the
// dot product runs over the shared items only but each magnitude covers the
// whole vector:
//
//	sim(T, U) = sum_{i in T∩U} T[i]*U[i] / (|T| * |U|)
//
// ok is false when the vectors share no item or either magnitude is zero;
// such a pair has no similarity at all, which is different from zero.
func Similarity(target, other models.RatingVector) (sim float64, ok bool) {
	// Iterate the smaller vector
	small, large := target, other
	if len(large) < len(small) {
		small, large = large, small
	}

	var dot float64
	shared := 0
	for item, s := range small {
		if o, found := large[item]; found {
			dot += float64(s) * float64(o)
			shared++
		}
	}
	if shared == 0 {
		return 0, false
	}

	normT, normU := target.Norm(), other.Norm()
	if normT == 0 || normU == 0 {
		return 0, false
	}
	return dot / (normT * normU), true
}

// Similarities computes the similarity of target to every other user in
// ratings. Users without a similarity entry are absent from the result.
func (e *Engine) Similarities(ctx context.Context, ratings models.RatingStore, target models.UserID) (map[models.UserID]float64, error) {
	targetVec, ok := ratings[target]
	if !ok {
		return nil, models.ErrUnknownUser
	}

	others := make([]models.UserID, 0, len(ratings))
	for u := range ratings {
		if u != target {
			others = append(others, u)
		}
	}

	sims := make(map[models.UserID]float64, len(others))
	var mu sync.Mutex

	chunkSize := (len(others) + e.config.NumWorkers - 1) / e.config.NumWorkers
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < e.config.NumWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > len(others) {
			end = len(others)
		}
		if start >= end {
			break
		}

		users := others[start:end]
		g.Go(func() error {
			local := make(map[models.UserID]float64, len(users))
			for i, u := range users {
				// Check for cancellation every so often
				if i%256 == 0 && gctx.Err() != nil {
					return gctx.Err()
				}
				if sim, ok := Similarity(targetVec, ratings[u]); ok {
					local[u] = sim
				}
			}

			mu.Lock()
			for u, sim := range local {
				sims[u] = sim
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sims, nil
}
