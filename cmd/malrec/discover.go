// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tomtom215/malrec/internal/acquire"
	"github.com/tomtom215/malrec/internal/config"
	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/models"
	malsync "github.com/tomtom215/malrec/internal/sync"
	"github.com/tomtom215/malrec/internal/validation"
)

func runDiscover(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	target := fs.Int("target", cfg.Discover.Target, "number of new usernames to collect")
	maxRefreshes := fs.Int("max-refreshes", cfg.Discover.MaxRefreshes, "page refresh limit, 0 for none")
	usernames := fs.String("usernames", cfg.Crawl.UsernamesFile, "candidate username file to append to")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	req := validation.DiscoverRequest{Target: *target, MaxRefreshes: *maxRefreshes}
	if verr := validation.ValidateStruct(req); verr != nil {
		fmt.Fprintln(os.Stderr, verr.Error())
		return errUsage
	}

	known, err := knownUsers(ctx, cfg, *usernames)
	if err != nil {
		return err
	}

	// Discovery only borrows the backoff schedule; it never fetches lists.
	ctrl, err := malsync.NewController(nil, malsync.PolicyFromConfig(&cfg.Backoff))
	if err != nil {
		return fmt.Errorf("backoff policy: %w", err)
	}

	dcfg := cfg.Discover
	dcfg.MaxRefreshes = req.MaxRefreshes
	discoverer := malsync.NewDiscoverer(&dcfg, cfg.MAL.Timeout, ctrl)

	res, err := discoverer.Discover(ctx, req.Target, known)
	if err != nil && (res == nil || len(res.Users) == 0) {
		return fmt.Errorf("discover: %w", err)
	}
	if err != nil {
		// Keep what was found before the interruption.
		logging.Warn().Err(err).Int("found", len(res.Users)).Msg("Discovery stopped early")
	}

	added, werr := acquire.AppendCandidates(*usernames, res.Users)
	if werr != nil {
		return werr
	}
	fmt.Fprintf(out, "added %d usernames to %s (%d page refreshes, %s)\n",
		added, *usernames, res.Refreshes, res.Duration.Round(time.Millisecond))
	return err
}

// knownUsers returns every username already in the candidate file or the
// store, so discovery only reports new names.
func knownUsers(ctx context.Context, cfg *config.Config, usernames string) (map[models.UserID]struct{}, error) {
	known := make(map[models.UserID]struct{})

	candidates, err := acquire.ReadCandidates(usernames)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	for _, u := range candidates {
		known[u] = struct{}{}
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer closeStore(st)

	ds, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	for u := range ds.Ratings {
		known[u] = struct{}{}
	}
	for u := range ds.Exclusions {
		known[u] = struct{}{}
	}
	return known, nil
}
