// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

/*
Package services adapts malrec components to suture.Service.

  - CrawlService: runs one acquisition pass and reports its result through a
    callback. It returns suture.ErrDoNotRestart once the pass is over, so a
    finished or failed crawl is never repeated by the supervisor.
  - HTTPServerService: runs the status server and shuts it down gracefully
    when the tree stops.

Both return ctx.Err() on shutdown, which suture treats as a clean stop.
*/
package services
