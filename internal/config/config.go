// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all malrec configuration.
//
// Loading order (Koanf v2):
//  1. Defaults from defaultConfig()
//  2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/malrec/config.yaml)
//  3. Environment variables listed in envTransformFunc
//
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	MAL       MALConfig       `koanf:"mal"`
	Crawl     CrawlConfig     `koanf:"crawl"`
	Backoff   BackoffConfig   `koanf:"backoff"`
	Store     StoreConfig     `koanf:"store"`
	Discover  DiscoverConfig  `koanf:"discover"`
	Recommend RecommendConfig `koanf:"recommend"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// MALConfig holds the remote API settings.
//
// Environment Variables:
//   - MAL_BASE_URL: API root (default: https://api.myanimelist.net)
//   - MAL_CLIENT_ID: static client ID sent as X-MAL-CLIENT-ID
//   - MAL_CLIENT_ID_FILE: file holding the client ID (used when MAL_CLIENT_ID is empty)
//   - MAL_LIMIT_PER_USER: entries requested per list (default: 128)
//   - MAL_TIMEOUT: HTTP timeout per request (default: 30s)
//   - MAL_REQUESTS_PER_SECOND: client-side pacing, 0 disables (default: 0)
//   - MAL_BURST: pacing burst size (default: 1)
//   - MAL_CIRCUIT_BREAKER: wrap the client in a circuit breaker (default: true)
type MALConfig struct {
	BaseURL           string        `koanf:"base_url"`
	ClientID          string        `koanf:"client_id"`
	ClientIDFile      string        `koanf:"client_id_file"`
	LimitPerUser      int           `koanf:"limit_per_user"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	CircuitBreaker    bool          `koanf:"circuit_breaker"`
}

// CrawlConfig holds acquisition pipeline settings.
//
// Environment Variables:
//   - CRAWL_USERNAMES_FILE: candidate file, one username per line (default: data/usernames.txt)
//   - CRAWL_CONCURRENCY: concurrent fetch workers (default: 4)
//   - CRAWL_MIN_LIST_LENGTH: minimum rated entries to keep a user (default: 10)
//   - CRAWL_CHECKPOINT_INTERVAL: processed users between checkpoints (default: 100)
//   - CRAWL_CHECKPOINT_RETRIES: extra attempts for a failed checkpoint (default: 3)
//   - CRAWL_CHECKPOINT_RETRY_DELAY: delay between checkpoint attempts (default: 1s)
type CrawlConfig struct {
	UsernamesFile        string        `koanf:"usernames_file"`
	Concurrency          int           `koanf:"concurrency"`
	MinListLength        int           `koanf:"min_list_length"`
	CheckpointInterval   int           `koanf:"checkpoint_interval"`
	CheckpointRetries    int           `koanf:"checkpoint_retries"`
	CheckpointRetryDelay time.Duration `koanf:"checkpoint_retry_delay"`
}

// BackoffConfig holds the rate-limit retry policy.
// Waits follow w0, min(w*M, max), ... and never give up.
type BackoffConfig struct {
	Initial    time.Duration `koanf:"initial"`
	Multiplier float64       `koanf:"multiplier"`
	Max        time.Duration `koanf:"max"`
}

// StoreConfig holds the BadgerDB store settings and the legacy flat-file paths
// used by the import and export commands.
type StoreConfig struct {
	Path       string `koanf:"path"`
	SyncWrites bool   `koanf:"sync_writes"`

	// ListsFile is the legacy user -> {item: score} JSON document.
	ListsFile string `koanf:"lists_file"`
	// TitlesFile is the legacy id,title CSV.
	TitlesFile string `koanf:"titles_file"`
	// ExclusionsFile is a newline separated list of excluded users.
	ExclusionsFile string `koanf:"exclusions_file"`
}

// DiscoverConfig holds username discovery settings.
type DiscoverConfig struct {
	URL          string `koanf:"url"`
	Target       int    `koanf:"target"`
	MaxRefreshes int    `koanf:"max_refreshes"`
}

// RecommendConfig holds recommendation engine settings.
type RecommendConfig struct {
	TopN       int `koanf:"top_n"`
	NumWorkers int `koanf:"num_workers"`
}

// ServerConfig holds the optional status/metrics HTTP server used during crawls.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// StatusRateLimit is requests per minute per client on /status.
	StatusRateLimit int `koanf:"status_rate_limit"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds zerolog settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, optional config file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// ResolveClientID returns the static credential, reading ClientIDFile when
// ClientID is not set directly. Surrounding whitespace is trimmed.
func (c *MALConfig) ResolveClientID() (string, error) {
	if id := strings.TrimSpace(c.ClientID); id != "" {
		return id, nil
	}
	if c.ClientIDFile == "" {
		return "", fmt.Errorf("MAL_CLIENT_ID or MAL_CLIENT_ID_FILE is required")
	}
	data, err := os.ReadFile(c.ClientIDFile)
	if err != nil {
		return "", fmt.Errorf("read client id file: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("client id file %s is empty", c.ClientIDFile)
	}
	return id, nil
}
