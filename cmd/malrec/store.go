// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/tomtom215/malrec/internal/config"
	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/store"
)

func runImport(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	return runLegacy(ctx, cfg, "import", args, out, (*store.Store).ImportLegacy)
}

func runExport(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	return runLegacy(ctx, cfg, "export", args, out, (*store.Store).ExportLegacy)
}

type legacyOp func(*store.Store, context.Context, store.LegacyFiles) (store.Counts, error)

func runLegacy(ctx context.Context, cfg *config.Config, name string, args []string, out io.Writer, op legacyOp) error {
	files := legacyFiles(cfg)

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&files.Lists, "lists", files.Lists, "user lists JSON file")
	fs.StringVar(&files.Titles, "titles", files.Titles, "anime titles CSV file")
	fs.StringVar(&files.Exclusions, "exclusions", files.Exclusions, "excluded users file")
	if name == "import" {
		fs.IntVar(&files.MinListLength, "min-list-length", files.MinListLength, "exclude imported lists with fewer rated entries")
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	start := time.Now()
	counts, err := op(st, ctx, files)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	logging.Info().
		Str("command", name).
		Int("users", counts.Users).
		Int("titles", counts.Titles).
		Int("exclusions", counts.Exclusions).
		Int("skipped", counts.Skipped).
		Dur("elapsed", time.Since(start)).
		Msg("Legacy files processed")
	fmt.Fprintf(out, "%s: %d users, %d titles, %d exclusions, %d skipped\n",
		name, counts.Users, counts.Titles, counts.Exclusions, counts.Skipped)
	return nil
}

func runStats(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	counts, err := st.Counts(ctx)
	if err != nil {
		return err
	}
	last, err := st.LastCheckpoint(ctx)
	if err != nil {
		return err
	}
	writeStats(out, cfg.Store.Path, counts, last)
	return nil
}

func writeStats(w io.Writer, path string, counts store.Counts, last *store.CheckpointRecord) {
	fmt.Fprintf(w, "store:       %s\n", path)
	fmt.Fprintf(w, "users:       %d\n", counts.Users)
	fmt.Fprintf(w, "titles:      %d\n", counts.Titles)
	fmt.Fprintf(w, "exclusions:  %d\n", counts.Exclusions)
	if last == nil {
		fmt.Fprintln(w, "checkpoint:  none")
		return
	}
	fmt.Fprintf(w, "checkpoint:  #%d %s at %s (+%d users, +%d titles, +%d exclusions)\n",
		last.Sequence, last.ID, last.At.Format(time.RFC3339),
		last.Users, last.Titles, last.Exclusions)
}
