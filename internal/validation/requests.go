// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package validation

// RecommendRequest is the input of the recommend command.
type RecommendRequest struct {
	User string `validate:"required,malusername"`
	TopN int    `validate:"min=1,max=1000"`
}

// DiscoverRequest is the input of the discover command.
type DiscoverRequest struct {
	Target       int `validate:"min=1,max=1000000"`
	MaxRefreshes int `validate:"min=0"`
}
