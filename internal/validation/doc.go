// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

// Package validation checks command input using go-playground/validator v10.
//
// A single validator instance is created lazily and shared, since the library
// caches struct metadata per instance. It registers one custom tag,
// malusername, for MyAnimeList usernames.
//
//	req := validation.RecommendRequest{User: *user, TopN: *n}
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    return verr
//	}
package validation
