// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

/*
Command malrec crawls MyAnimeList rating lists into a local store and
recommends titles from them.

# Commands

	malrec [crawl]                       fetch every pending candidate (default)
	malrec discover [-target N] [-max-refreshes N]
	                                     scrape usernames into the candidate file
	malrec recommend -user NAME [-n N]   print the top N titles for NAME
	malrec import                        load legacy flat files into the store
	malrec export                        write the store out as legacy flat files
	malrec stats                         print store counts and the last checkpoint

# Crawl Architecture

The crawl command runs under a suture supervision tree:

	malrec (root)
	├── crawl-layer
	│   └── crawl            acquisition pipeline, one pass
	└── api-layer
	    └── status-server    /healthz, /status, /metrics (SERVER_ENABLED)

Requests go through the chain

	Client (x/time/rate pacing) -> CircuitBreakerFetcher -> Controller (backoff)

and results are checkpointed to BadgerDB every CRAWL_CHECKPOINT_INTERVAL
processed users. A rerun skips users that are already stored or excluded, so
an interrupted crawl resumes where it stopped.

# Configuration

Configuration is loaded with Koanf from defaults, an optional YAML file
(CONFIG_PATH, ./config.yaml, /etc/malrec/config.yaml) and environment
variables. The only required setting is the client credential:

	MAL_CLIENT_ID       static client ID
	MAL_CLIENT_ID_FILE  file holding it (default: data/client_id.txt)

See internal/config for the full list.

# Signal Handling

SIGINT and SIGTERM cancel the running command. A crawl stops its workers,
writes a final best-effort checkpoint of everything already processed and
exits with status 130. A checkpoint that keeps failing exits with status 1
without retrying the crawl.

# Example Usage

	export MAL_CLIENT_ID=xxxxxxxx
	malrec discover -target 500
	malrec crawl
	malrec recommend -user Xinil -n 20
*/
package main
