// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

/*
Package config provides centralized configuration management for malrec.

# Configuration Sources

Koanf v2 merges three layers, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: CONFIG_PATH, ./config.yaml, ./config.yml,
    /etc/malrec/config.yaml or /etc/malrec/config.yml
 3. Environment variables listed in envMappings

Unlisted environment variables are ignored.

# Configuration Structure

  - MALConfig: API root, credential, per-user limit, timeout and pacing
  - CrawlConfig: candidate file, worker count, minimum list length and
    checkpoint cadence
  - BackoffConfig: initial wait, multiplier and ceiling for rate limits
  - StoreConfig: BadgerDB directory and the legacy flat-file paths
  - DiscoverConfig: users page URL, target count and refresh limit
  - RecommendConfig: default result size and similarity workers
  - ServerConfig: optional status server used during crawls
  - LoggingConfig: zerolog level, format and caller

# Environment Variables

MyAnimeList (MALConfig):
  - MAL_BASE_URL: API root (default: https://api.myanimelist.net)
  - MAL_CLIENT_ID / MAL_CLIENT_ID_FILE: static client ID (one is required)
  - MAL_LIMIT_PER_USER: entries requested per list (default: 128)
  - MAL_TIMEOUT: per request timeout (default: 30s)
  - MAL_REQUESTS_PER_SECOND, MAL_BURST: client-side pacing (default: off)
  - MAL_CIRCUIT_BREAKER: fail fast during persistent throttling (default: true)

Crawl (CrawlConfig):
  - CRAWL_USERNAMES_FILE (default: data/usernames.txt)
  - CRAWL_CONCURRENCY (default: 4)
  - CRAWL_MIN_LIST_LENGTH (default: 10)
  - CRAWL_CHECKPOINT_INTERVAL (default: 100)
  - CRAWL_CHECKPOINT_RETRIES (default: 3)
  - CRAWL_CHECKPOINT_RETRY_DELAY (default: 1s)

Backoff (BackoffConfig):
  - BACKOFF_INITIAL (default: 1s)
  - BACKOFF_MULTIPLIER (default: 2)
  - BACKOFF_MAX (default: 60s)

Store (StoreConfig):
  - STORE_PATH (default: data/store)
  - STORE_SYNC_WRITES (default: true)
  - STORE_LISTS_FILE, STORE_TITLES_FILE, STORE_EXCLUSIONS_FILE

Discovery, recommendation and server:
  - DISCOVER_URL, DISCOVER_TARGET, DISCOVER_MAX_REFRESHES
  - RECOMMEND_TOP_N, RECOMMEND_NUM_WORKERS (0 = one per CPU)
  - SERVER_ENABLED, HTTP_HOST, HTTP_PORT, HTTP_SHUTDOWN_TIMEOUT,
    SERVER_STATUS_RATE_LIMIT

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Validation

Load returns an error when any section is invalid. Validation does not
require the credential, so commands that never call the API (recommend,
import, export, stats) work without one. ResolveClientID reads it on demand.

# Thread Safety

Config is built once in main and only read afterwards.
*/
package config
