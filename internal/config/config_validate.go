// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that the configuration is usable. The client ID is not
// required here because only the crawl command needs it.
func (c *Config) Validate() error {
	if err := c.validateMAL(); err != nil {
		return err
	}
	if err := c.validateCrawl(); err != nil {
		return err
	}
	if err := c.validateBackoff(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateDiscover(); err != nil {
		return err
	}
	if err := c.validateRecommend(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateMAL() error {
	if err := validateHTTPURL(c.MAL.BaseURL); err != nil {
		return fmt.Errorf("MAL_BASE_URL is invalid: %w", err)
	}
	if c.MAL.LimitPerUser < 1 || c.MAL.LimitPerUser > 1000 {
		return fmt.Errorf("MAL_LIMIT_PER_USER must be between 1 and 1000, got %d", c.MAL.LimitPerUser)
	}
	if c.MAL.Timeout <= 0 {
		return fmt.Errorf("MAL_TIMEOUT must be positive, got %v", c.MAL.Timeout)
	}
	if c.MAL.RequestsPerSecond < 0 {
		return fmt.Errorf("MAL_REQUESTS_PER_SECOND must not be negative, got %v", c.MAL.RequestsPerSecond)
	}
	if c.MAL.RequestsPerSecond > 0 && c.MAL.Burst < 1 {
		return fmt.Errorf("MAL_BURST must be at least 1 when pacing is enabled, got %d", c.MAL.Burst)
	}
	return nil
}

func (c *Config) validateCrawl() error {
	if c.Crawl.UsernamesFile == "" {
		return fmt.Errorf("CRAWL_USERNAMES_FILE is required")
	}
	if c.Crawl.Concurrency < 1 || c.Crawl.Concurrency > 64 {
		return fmt.Errorf("CRAWL_CONCURRENCY must be between 1 and 64, got %d", c.Crawl.Concurrency)
	}
	if c.Crawl.MinListLength < 1 {
		return fmt.Errorf("CRAWL_MIN_LIST_LENGTH must be at least 1, got %d", c.Crawl.MinListLength)
	}
	if c.Crawl.CheckpointInterval < 1 {
		return fmt.Errorf("CRAWL_CHECKPOINT_INTERVAL must be at least 1, got %d", c.Crawl.CheckpointInterval)
	}
	if c.Crawl.CheckpointRetries < 0 {
		return fmt.Errorf("CRAWL_CHECKPOINT_RETRIES must not be negative, got %d", c.Crawl.CheckpointRetries)
	}
	if c.Crawl.CheckpointRetryDelay < 0 {
		return fmt.Errorf("CRAWL_CHECKPOINT_RETRY_DELAY must not be negative, got %v", c.Crawl.CheckpointRetryDelay)
	}
	return nil
}

func (c *Config) validateBackoff() error {
	if c.Backoff.Initial <= 0 {
		return fmt.Errorf("BACKOFF_INITIAL must be positive, got %v", c.Backoff.Initial)
	}
	if c.Backoff.Multiplier < 1 {
		return fmt.Errorf("BACKOFF_MULTIPLIER must be at least 1, got %v", c.Backoff.Multiplier)
	}
	if c.Backoff.Max < c.Backoff.Initial {
		return fmt.Errorf("BACKOFF_MAX (%v) must not be below BACKOFF_INITIAL (%v)", c.Backoff.Max, c.Backoff.Initial)
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required")
	}
	return nil
}

func (c *Config) validateDiscover() error {
	if err := validateHTTPURL(c.Discover.URL); err != nil {
		return fmt.Errorf("DISCOVER_URL is invalid: %w", err)
	}
	if c.Discover.Target < 1 {
		return fmt.Errorf("DISCOVER_TARGET must be at least 1, got %d", c.Discover.Target)
	}
	if c.Discover.MaxRefreshes < 0 {
		return fmt.Errorf("DISCOVER_MAX_REFRESHES must not be negative, got %d", c.Discover.MaxRefreshes)
	}
	return nil
}

func (c *Config) validateRecommend() error {
	if c.Recommend.TopN < 1 {
		return fmt.Errorf("RECOMMEND_TOP_N must be at least 1, got %d", c.Recommend.TopN)
	}
	if c.Recommend.NumWorkers < 0 {
		return fmt.Errorf("RECOMMEND_NUM_WORKERS must not be negative, got %d", c.Recommend.NumWorkers)
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.StatusRateLimit < 1 {
		return fmt.Errorf("SERVER_STATUS_RATE_LIMIT must be at least 1, got %d", c.Server.StatusRateLimit)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks for an absolute http(s) URL with a host.
func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is missing")
	}
	return nil
}
