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
	"os"

	"github.com/tomtom215/malrec/internal/config"
	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/models"
	"github.com/tomtom215/malrec/internal/recommend"
	"github.com/tomtom215/malrec/internal/validation"
)

func runRecommend(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	user := fs.String("user", "", "MyAnimeList username to recommend for (required)")
	topN := fs.Int("n", cfg.Recommend.TopN, "number of titles to print")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	req := validation.RecommendRequest{User: *user, TopN: *topN}
	if verr := validation.ValidateStruct(req); verr != nil {
		fmt.Fprintln(os.Stderr, verr.Error())
		return errUsage
	}

	engine, err := recommend.NewEngine(recommend.ConfigFromRecommend(&cfg.Recommend), logging.WithComponent("recommend"))
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ratings, err := st.Ratings(ctx)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}

	recs, err := engine.Rank(ctx, ratings, models.UserID(req.User), req.TopN)
	if err != nil {
		return err
	}

	ids := make([]models.ItemID, len(recs))
	for i, r := range recs {
		ids[i] = r.ItemID
	}
	titles, err := st.Titles(ctx, ids)
	if err != nil {
		return fmt.Errorf("load titles: %w", err)
	}

	writeRecommendations(out, req.User, recs, titles)
	return nil
}

// writeRecommendations prints one ranked line per title. Items missing from
// the catalog are shown by ID.
func writeRecommendations(w io.Writer, user string, recs []recommend.Recommendation, titles models.ItemCatalog) {
	if len(recs) == 0 {
		fmt.Fprintf(w, "no recommendations for %s\n", user)
		return
	}
	fmt.Fprintf(w, "recommendations for %s:\n", user)
	for i, r := range recs {
		title, ok := titles[r.ItemID]
		if !ok {
			title = fmt.Sprintf("anime #%d", r.ItemID)
		}
		fmt.Fprintf(w, "%3d. %s (id %d, score %.3f)\n", i+1, title, r.ItemID, r.Score)
	}
}
