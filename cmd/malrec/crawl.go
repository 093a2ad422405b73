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
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/malrec/internal/acquire"
	"github.com/tomtom215/malrec/internal/api"
	"github.com/tomtom215/malrec/internal/config"
	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/supervisor"
	"github.com/tomtom215/malrec/internal/supervisor/services"
	malsync "github.com/tomtom215/malrec/internal/sync"
)

// fetchChain is the request path used by crawl: client, optional circuit
// breaker, then the backoff controller that retries rate-limited calls.
type fetchChain struct {
	controller *malsync.Controller
	breaker    api.BreakerState
}

func newFetchChain(cfg *config.Config) (*fetchChain, error) {
	clientID, err := cfg.MAL.ResolveClientID()
	if err != nil {
		return nil, err
	}

	var (
		fetcher malsync.Fetcher = malsync.NewClient(&cfg.MAL, clientID)
		breaker api.BreakerState
	)
	if cfg.MAL.CircuitBreaker {
		cb := malsync.NewCircuitBreakerFetcher("mal-api", fetcher, malsync.BreakerSettings{})
		fetcher, breaker = cb, cb
	}

	ctrl, err := malsync.NewController(fetcher, malsync.PolicyFromConfig(&cfg.Backoff))
	if err != nil {
		return nil, fmt.Errorf("backoff policy: %w", err)
	}

	logging.Info().
		Str("base_url", cfg.MAL.BaseURL).
		Str("client_id", logging.MaskToken(clientID)).
		Bool("circuit_breaker", cfg.MAL.CircuitBreaker).
		Float64("requests_per_second", cfg.MAL.RequestsPerSecond).
		Msg("MAL client configured")
	return &fetchChain{controller: ctrl, breaker: breaker}, nil
}

func runCrawl(ctx context.Context, cfg *config.Config, args []string, _ io.Writer) error {
	fs := flag.NewFlagSet("crawl", flag.ContinueOnError)
	usernames := fs.String("usernames", cfg.Crawl.UsernamesFile, "candidate username file")
	concurrency := fs.Int("concurrency", cfg.Crawl.Concurrency, "concurrent fetch workers")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	pcfg := acquire.ConfigFromCrawl(&cfg.Crawl)
	pcfg.Concurrency = *concurrency

	candidates, err := acquire.ReadCandidates(*usernames)
	if err != nil {
		return err
	}

	chain, err := newFetchChain(cfg)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ds, err := st.Load(ctx)
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	logging.Info().
		Int("candidates", len(candidates)).
		Int("stored_users", len(ds.Ratings)).
		Int("titles", len(ds.Catalog)).
		Int("exclusions", len(ds.Exclusions)).
		Str("store", cfg.Store.Path).
		Msg("Store loaded")

	pipeline, err := acquire.New(pcfg, chain.controller, st)
	if err != nil {
		return err
	}

	tcfg := supervisor.DefaultTreeConfig()
	// The tree must outlive the final checkpoint.
	if floor := pcfg.FinalCheckpointTimeout + 5*time.Second; tcfg.ShutdownTimeout < floor {
		tcfg.ShutdownTimeout = floor
	}
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), tcfg)
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcome := &crawlOutcome{}
	tree.AddCrawlService(services.NewCrawlService(
		func(ctx context.Context) error {
			summary, err := pipeline.Run(ctx, candidates, ds)
			outcome.setSummary(summary)
			return err
		},
		func(err error) {
			outcome.finish(err)
			cancel()
		},
	))

	if cfg.Server.Enabled {
		handler := api.NewHandler(pipeline.Progress(), st, chain.breaker)
		server := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           api.NewRouter(api.RouterConfig{StatusRateLimit: cfg.Server.StatusRateLimit}, handler),
			ReadHeaderTimeout: 10 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, cfg.Server.ShutdownTimeout))
		logging.Info().Str("addr", server.Addr).Msg("Status server enabled")
	}

	logging.Info().Msg("Starting supervisor tree")
	if err := tree.Serve(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	summary, crawlErr := outcome.result()
	if summary == nil {
		// Interrupted before the pipeline started, or still running in a
		// service the tree gave up on.
		if crawlErr == nil {
			crawlErr = ctx.Err()
		}
		return crawlErr
	}
	logSummary(summary)
	return crawlErr
}

// crawlOutcome carries the pipeline result from the crawl service goroutine
// back to runCrawl. The service may still be running when Serve returns if
// it missed the shutdown timeout.
type crawlOutcome struct {
	mu      sync.Mutex
	summary *acquire.Summary
	err     error
}

func (o *crawlOutcome) setSummary(s *acquire.Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.summary = s
}

func (o *crawlOutcome) finish(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *crawlOutcome) result() (*acquire.Summary, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.summary, o.err
}

func logSummary(s *acquire.Summary) {
	ev := logging.Info().
		Str("run_id", s.RunID).
		Int("candidates", s.Candidates).
		Int("skipped", s.Skipped).
		Int("processed", s.Processed).
		Int("accepted", s.Accepted).
		Int("excluded", s.ExcludedTotal()).
		Int("new_titles", s.NewTitles).
		Int("checkpoints", s.Checkpoints).
		Dur("duration", s.Duration)
	for reason, n := range s.Excluded {
		ev = ev.Int("excluded_"+string(reason), n)
	}
	ev.Msg("Crawl summary")
}
