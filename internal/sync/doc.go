// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

/*
Package sync talks to MyAnimeList: it fetches rated lists from the v2 API and
scrapes candidate usernames from the public users page.

Key Components:

  - Client: one-shot HTTP fetch of a user's list with response classification
  - CircuitBreakerFetcher: fails fast while the API is persistently throttling
  - Controller: exponential backoff that retries rate limits until they clear
  - Discoverer: username scraping, retried through the same Controller

Response Classification:

Every fetch ends in exactly one of three outcomes:

  - success: the decoded list entries, including unrated ones (score 0)
  - models.ErrRateLimited: HTTP 429, any non-JSON response, or a transport
    error. Retried by the Controller, never surfaced to the pipeline.
  - *models.UserFailureError: a JSON error response (404 not_found, 401/403
    forbidden, anything else rejected) or an undecodable success body
    (malformed). The user is excluded and never retried.

A done context always wins and is returned as ctx.Err().

Composition:

	client := sync.NewClient(&cfg.MAL, clientID)
	breaker := sync.NewCircuitBreakerFetcher("mal-api", client, sync.BreakerSettings{})
	ctrl, err := sync.NewController(breaker, sync.PolicyFromConfig(&cfg.Backoff))
	items, err := ctrl.FetchRatings(ctx, "some_user")

Thread Safety:

Client, CircuitBreakerFetcher and Controller are safe for concurrent use once
constructed. Each Controller.Do call keeps its own wait state.
*/
package sync
