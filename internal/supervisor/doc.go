// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

/*
Package supervisor provides the suture v4 supervision tree for the crawl
command.

Tree:

	malrec (root)
	├── crawl-layer
	│   └── crawl            services.CrawlService
	└── api-layer
	    └── status-server    services.HTTPServerService (optional)

Supervisor events (restarts, backoff, timeouts) are logged through
sutureslog, bridged to zerolog by logging.NewSlogLogger.

Shutdown:

Cancelling the context passed to Serve stops every layer. ShutdownTimeout
must be long enough for the crawl's final checkpoint; services that exceed it
are listed by UnstoppedServiceReport.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	tree.AddCrawlService(services.NewCrawlService(run, done))
	tree.AddAPIService(services.NewHTTPServerService(srv, addr, timeout))
	err = tree.Serve(ctx)
*/
package supervisor
