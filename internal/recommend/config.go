// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package recommend

import (
	"fmt"
	"runtime"

	"github.com/tomtom215/malrec/internal/config"
)

// Config contains configuration for the recommendation engine.
type Config struct {
	// NumWorkers is the number of goroutines computing similarities.
	// Typical range: 1-16.
	NumWorkers int

	// DefaultTopN is the result size used when the caller does not ask for one.
	DefaultTopN int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		NumWorkers:  4,
		DefaultTopN: 10,
	}
}

// ConfigFromRecommend converts the recommend section of the configuration.
// Zero workers means one per CPU.
func ConfigFromRecommend(cfg *config.RecommendConfig) Config {
	workers := cfg.NumWorkers
	if workers == 0 {
		workers = min(runtime.NumCPU(), 256)
	}
	return Config{
		NumWorkers:  workers,
		DefaultTopN: cfg.TopN,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.NumWorkers < 1 || c.NumWorkers > 256 {
		return fmt.Errorf("num workers must be between 1 and 256, got %d", c.NumWorkers)
	}
	if c.DefaultTopN < 1 {
		return fmt.Errorf("default top n must be at least 1, got %d", c.DefaultTopN)
	}
	return nil
}
