// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/metrics"
	"github.com/tomtom215/malrec/internal/models"
)

// Recommendation is one ranked item with its accumulated weighted score.
type Recommendation struct {
	ItemID models.ItemID `json:"item_id"`
	Score  float64       `json:"score"`
}

// Engine ranks unseen items for a user from the ratings of similar users.
// It never mutates the RatingStore it is given and is safe for concurrent use.
type Engine struct {
	config Config
	logger zerolog.Logger
}

// NewEngine creates a new recommendation engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{
		config: cfg,
		logger: logger.With().Str("component", "recommend").Logger(),
	}, nil
}

// DefaultTopN returns the configured default result size.
func (e *Engine) DefaultTopN() int {
	return e.config.DefaultTopN
}

// Recommend returns up to topN item IDs the target has not rated, best first.
func (e *Engine) Recommend(ctx context.Context, ratings models.RatingStore, target models.UserID, topN int) ([]models.ItemID, error) {
	ranked, err := e.Rank(ctx, ratings, target, topN)
	if err != nil {
		return nil, err
	}
	ids := make([]models.ItemID, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ItemID
	}
	return ids, nil
}

// Rank is Recommend with the weighted scores kept.
//
// Every user with a similarity entry contributes score*similarity to each
// item it rated that the target has not. Users are visited in ascending ID
// order so the floating point sums are reproducible. Items are ordered by
// score descending, ties by ascending ItemID.
func (e *Engine) Rank(ctx context.Context, ratings models.RatingStore, target models.UserID, topN int) ([]Recommendation, error) {
	if topN < 1 {
		return nil, fmt.Errorf("top n must be at least 1, got %d", topN)
	}
	start := time.Now()

	sims, err := e.Similarities(ctx, ratings, target)
	if err != nil {
		return nil, err
	}
	targetVec := ratings[target]

	weighted := make(map[models.ItemID]float64)
	for _, u := range ratings.Users() {
		sim, ok := sims[u]
		if !ok {
			continue
		}
		vec := ratings[u]
		for _, item := range vec.Items() {
			if _, seen := targetVec[item]; seen {
				continue
			}
			weighted[item] += float64(vec[item]) * sim
		}
	}

	ranked := make([]Recommendation, 0, len(weighted))
	for item, score := range weighted {
		ranked = append(ranked, Recommendation{ItemID: item, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ItemID < ranked[j].ItemID
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	elapsed := time.Since(start)
	metrics.RecordRecommend(elapsed)

	e.logger.Debug().
		Str("correlation_id", logging.CorrelationIDFromContext(ctx)).
		Str("user", string(target)).
		Int("similar_users", len(sims)).
		Int("candidates", len(weighted)).
		Int("returned", len(ranked)).
		Dur("latency", elapsed).
		Msg("recommendation complete")

	return ranked, nil
}
