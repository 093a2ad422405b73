// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

// Package logging provides centralized zerolog-based structured logging for malrec.
//
// # Quick Start
//
//	import "github.com/tomtom215/malrec/internal/logging"
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("user", "Xinil").Int("items", 128).Msg("List fetched")
//	logging.Error().Err(err).Msg("Checkpoint failed")
//
// # Configuration
//
// Environment Variables:
//
//	LOG_LEVEL   - Minimum log level: trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - Output format: json, console (default: json)
//	LOG_CALLER  - Include caller file:line: true, false (default: false)
//
// # Correlation IDs
//
// Each crawl run and each status request carries a correlation ID in its
// context. logging.Ctx(ctx) returns a logger that adds it to every event:
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Info().Msg("Crawl started")
//
// # Component Loggers
//
//	logger := logging.WithComponent("recommend")
//
// # slog Adapter
//
// NewSlogLogger bridges zerolog to log/slog for sutureslog:
//
//	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), cfg)
//
// # Redaction
//
// MaskToken hides credentials and Truncate bounds response bodies before
// they reach a log line.
//
// # Testing
//
//	var buf bytes.Buffer
//	logger := logging.NewTestLogger(&buf)
package logging
