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

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/malrec/config.yaml",
	"/etc/malrec/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. The backoff and per-user limit
// values match what the MAL API tolerates for unauthenticated client IDs.
func defaultConfig() *Config {
	return &Config{
		MAL: MALConfig{
			BaseURL:           "https://api.myanimelist.net",
			ClientID:          "",
			ClientIDFile:      "data/client_id.txt",
			LimitPerUser:      128,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 0, // unpaced; backoff handles throttling
			Burst:             1,
			CircuitBreaker:    true,
		},
		Crawl: CrawlConfig{
			UsernamesFile:        "data/usernames.txt",
			Concurrency:          4,
			MinListLength:        10,
			CheckpointInterval:   100,
			CheckpointRetries:    3,
			CheckpointRetryDelay: time.Second,
		},
		Backoff: BackoffConfig{
			Initial:    time.Second,
			Multiplier: 2,
			Max:        60 * time.Second,
		},
		Store: StoreConfig{
			Path:           "data/store",
			SyncWrites:     true,
			ListsFile:      "data/user_lists.json",
			TitlesFile:     "data/anime_titles.csv",
			ExclusionsFile: "data/excluded_users.txt",
		},
		Discover: DiscoverConfig{
			URL:          "https://myanimelist.net/users.php",
			Target:       10000,
			MaxRefreshes: 0,
		},
		Recommend: RecommendConfig{
			TopN:       3,
			NumWorkers: 0, // 0 = runtime.NumCPU()
		},
		Server: ServerConfig{
			Enabled:         false,
			Host:            "127.0.0.1",
			Port:            9464,
			ShutdownTimeout: 10 * time.Second,
			StatusRateLimit: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration in three layers: defaults, optional YAML
// file, environment variables. The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// MAL_CLIENT_ID -> mal.client_id, CRAWL_CONCURRENCY -> crawl.concurrency
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unlisted variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	"mal_base_url":            "mal.base_url",
	"mal_client_id":           "mal.client_id",
	"mal_client_id_file":      "mal.client_id_file",
	"mal_limit_per_user":      "mal.limit_per_user",
	"mal_timeout":             "mal.timeout",
	"mal_requests_per_second": "mal.requests_per_second",
	"mal_burst":               "mal.burst",
	"mal_circuit_breaker":     "mal.circuit_breaker",

	"crawl_usernames_file":         "crawl.usernames_file",
	"crawl_concurrency":            "crawl.concurrency",
	"crawl_min_list_length":        "crawl.min_list_length",
	"crawl_checkpoint_interval":    "crawl.checkpoint_interval",
	"crawl_checkpoint_retries":     "crawl.checkpoint_retries",
	"crawl_checkpoint_retry_delay": "crawl.checkpoint_retry_delay",

	"backoff_initial":    "backoff.initial",
	"backoff_multiplier": "backoff.multiplier",
	"backoff_max":        "backoff.max",

	"store_path":            "store.path",
	"store_sync_writes":     "store.sync_writes",
	"store_lists_file":      "store.lists_file",
	"store_titles_file":     "store.titles_file",
	"store_exclusions_file": "store.exclusions_file",

	"discover_url":           "discover.url",
	"discover_target":        "discover.target",
	"discover_max_refreshes": "discover.max_refreshes",

	"recommend_top_n":       "recommend.top_n",
	"recommend_num_workers": "recommend.num_workers",

	"server_enabled":           "server.enabled",
	"http_host":                "server.host",
	"http_port":                "server.port",
	"http_shutdown_timeout":    "server.shutdown_timeout",
	"server_status_rate_limit": "server.status_rate_limit",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Returning "" skips the variable.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
