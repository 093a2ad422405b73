// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/malrec/internal/config"
	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/store"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

// command is one malrec subcommand. args excludes the command name.
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error
}

var commands = []command{
	{"crawl", "fetch rating lists for every pending candidate", runCrawl},
	{"discover", "scrape candidate usernames from the users page", runDiscover},
	{"recommend", "print recommended titles for a user", runRecommend},
	{"import", "load legacy flat files into the store", runImport},
	{"export", "write the store out as legacy flat files", runExport},
	{"stats", "print store counts and the last checkpoint", runStats},
}

// errUsage marks a bad command line. The flag package has already printed
// the details.
var errUsage = errors.New("usage error")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(argv []string, stdout, stderr io.Writer) int {
	cmd, args, err := selectCommand(argv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		printUsage(stderr)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "malrec: failed to load configuration: %v\n", err)
		return exitFailure
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = cmd.run(ctx, cfg, args, stdout)
	return exitCode(cmd.name, err)
}

// selectCommand picks the subcommand named by argv[0]. With no arguments, or
// when the first argument is a flag, the crawl command is used.
func selectCommand(argv []string) (command, []string, error) {
	if len(argv) == 0 || (len(argv[0]) > 0 && argv[0][0] == '-') {
		return commands[0], argv, nil
	}
	for _, c := range commands {
		if c.name == argv[0] {
			return c, argv[1:], nil
		}
	}
	return command{}, nil, fmt.Errorf("malrec: unknown command %q", argv[0])
}

func exitCode(name string, err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, context.Canceled):
		logging.Warn().Str("command", name).Msg("Interrupted")
		return exitInterrupted
	default:
		logging.Error().Err(err).Str("command", name).Msg("Command failed")
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: malrec <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
}

// openStore opens the BadgerDB store configured in cfg.Store.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(store.Options{
		Path:       cfg.Store.Path,
		SyncWrites: cfg.Store.SyncWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing store")
	}
}

func legacyFiles(cfg *config.Config) store.LegacyFiles {
	return store.LegacyFiles{
		Lists:         cfg.Store.ListsFile,
		Titles:        cfg.Store.TitlesFile,
		Exclusions:    cfg.Store.ExclusionsFile,
		MinListLength: cfg.Crawl.MinListLength,
	}
}
