// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/malrec/internal/logging"
)

// CrawlFunc runs one acquisition pass to completion.
type CrawlFunc func(ctx context.Context) error

// CrawlService runs a crawl as a supervised, one-shot service.
//
// A crawl that returns, successfully or not, is never restarted: the result
// is handed to the completion callback and suture.ErrDoNotRestart returned.
// Only a panic makes suture restart it, which is safe because a crawl skips
// every user already stored or excluded.
//
// Example usage:
//
//	svc := services.NewCrawlService(func(ctx context.Context) error {
//	    _, err := pipeline.Run(ctx, candidates, dataset)
//	    return err
//	}, func(err error) { result = err; cancel() })
//	tree.AddCrawlService(svc)
type CrawlService struct {
	run  CrawlFunc
	done func(error)
	once sync.Once
	name string
}

// NewCrawlService creates a crawl service. done is called exactly once, with
// the crawl result, unless the tree is shut down first.
func NewCrawlService(run CrawlFunc, done func(error)) *CrawlService {
	return &CrawlService{
		run:  run,
		done: done,
		name: "crawl",
	}
}

// Serve implements suture.Service.
func (s *CrawlService) Serve(ctx context.Context) error {
	logging.Info().Msg("Crawl service started")

	err := s.run(ctx)
	if ctx.Err() != nil {
		// Shutdown requested; the crawl already ran its final checkpoint
		s.finish(ctx.Err())
		return ctx.Err()
	}
	if err != nil {
		err = fmt.Errorf("crawl failed: %w", err)
	}
	s.finish(err)
	return suture.ErrDoNotRestart
}

func (s *CrawlService) finish(err error) {
	s.once.Do(func() {
		if s.done != nil {
			s.done(err)
		}
	})
}

// String implements fmt.Stringer for suture's logs.
func (s *CrawlService) String() string {
	return s.name
}
