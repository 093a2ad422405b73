// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package acquire

import (
	"fmt"
	"time"

	"github.com/tomtom215/malrec/internal/config"
)

// Config holds pipeline tuning.
type Config struct {
	// Concurrency is the number of fetch workers.
	Concurrency int
	// MinListLength is the number of rated entries a list needs to be kept.
	MinListLength int
	// CheckpointInterval is the number of processed users between checkpoints.
	CheckpointInterval int
	// CheckpointRetries is the number of extra attempts after a failed checkpoint.
	CheckpointRetries int
	// CheckpointRetryDelay is the pause between checkpoint attempts.
	CheckpointRetryDelay time.Duration
	// FinalCheckpointTimeout bounds the best-effort checkpoint after cancellation.
	FinalCheckpointTimeout time.Duration
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Concurrency:            4,
		MinListLength:          10,
		CheckpointInterval:     100,
		CheckpointRetries:      3,
		CheckpointRetryDelay:   time.Second,
		FinalCheckpointTimeout: 30 * time.Second,
	}
}

// ConfigFromCrawl converts the crawl section of the configuration.
func ConfigFromCrawl(cfg *config.CrawlConfig) Config {
	c := DefaultConfig()
	c.Concurrency = cfg.Concurrency
	c.MinListLength = cfg.MinListLength
	c.CheckpointInterval = cfg.CheckpointInterval
	c.CheckpointRetries = cfg.CheckpointRetries
	c.CheckpointRetryDelay = cfg.CheckpointRetryDelay
	return c
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.Concurrency < 1 || c.Concurrency > 64 {
		return fmt.Errorf("concurrency must be between 1 and 64, got %d", c.Concurrency)
	}
	if c.MinListLength < 1 {
		return fmt.Errorf("min list length must be at least 1, got %d", c.MinListLength)
	}
	if c.CheckpointInterval < 1 {
		return fmt.Errorf("checkpoint interval must be at least 1, got %d", c.CheckpointInterval)
	}
	if c.CheckpointRetries < 0 {
		return fmt.Errorf("checkpoint retries must not be negative, got %d", c.CheckpointRetries)
	}
	if c.CheckpointRetryDelay < 0 {
		return fmt.Errorf("checkpoint retry delay must not be negative, got %v", c.CheckpointRetryDelay)
	}
	if c.FinalCheckpointTimeout <= 0 {
		return fmt.Errorf("final checkpoint timeout must be positive, got %v", c.FinalCheckpointTimeout)
	}
	return nil
}
