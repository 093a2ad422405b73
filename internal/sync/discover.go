// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/tomtom215/malrec/internal/config"
	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/models"
)

const profilePrefix = "/profile/"

// DiscoverResult reports one discovery run.
type DiscoverResult struct {
	Users     []models.UserID
	Refreshes int
	Duration  time.Duration
}

// Discoverer collects candidate usernames by repeatedly loading the public
// users page, which shows a different sample of recently active members on
// each request. Refused requests are waited out by the backoff Controller.
type Discoverer struct {
	url          string
	maxRefreshes int
	httpClient   *http.Client
	backoff      *Controller
}

// NewDiscoverer creates a Discoverer. ctrl supplies the retry schedule; its
// Fetcher is not used.
func NewDiscoverer(cfg *config.DiscoverConfig, timeout time.Duration, ctrl *Controller) *Discoverer {
	return &Discoverer{
		url:          cfg.URL,
		maxRefreshes: cfg.MaxRefreshes,
		httpClient:   &http.Client{Timeout: timeout},
		backoff:      ctrl,
	}
}

// Discover refreshes the users page until target names not present in known
// have been found, or until the refresh limit is reached (0 means no limit).
// Names are returned in discovery order.
func (d *Discoverer) Discover(ctx context.Context, target int, known map[models.UserID]struct{}) (*DiscoverResult, error) {
	start := time.Now()
	seen := make(map[models.UserID]struct{})
	res := &DiscoverResult{}

	for len(res.Users) < target {
		if d.maxRefreshes > 0 && res.Refreshes >= d.maxRefreshes {
			break
		}

		var page []models.UserID
		err := d.backoff.Do(ctx, func(ctx context.Context) error {
			var err error
			page, err = d.fetchPage(ctx)
			return err
		})
		if err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		res.Refreshes++

		for _, u := range page {
			if _, ok := known[u]; ok {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			res.Users = append(res.Users, u)
			if len(res.Users) >= target {
				break
			}
		}

		logging.Ctx(ctx).Debug().
			Int("found", len(res.Users)).
			Int("target", target).
			Int("refreshes", res.Refreshes).
			Msg("Users page scraped")
	}

	res.Duration = time.Since(start)
	logging.Ctx(ctx).Info().
		Int("refreshes", res.Refreshes).
		Int("usernames", len(res.Users)).
		Dur("elapsed", res.Duration).
		Msg("Discovery finished")
	return res, nil
}

// fetchPage loads the users page once. Any non-2xx status or transport error
// is reported as a rate limit.
func (d *Discoverer) fetchPage(ctx context.Context) ([]models.UserID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", models.ErrRateLimited, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = readBodyForError(resp.Body)
		return nil, fmt.Errorf("%w: users page status %d", models.ErrRateLimited, resp.StatusCode)
	}

	users, err := ParseProfileLinks(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: parse users page: %v", models.ErrRateLimited, err)
	}
	return users, nil
}

// ParseProfileLinks extracts the text of every <a href="/profile/..."> anchor.
// Anchors with empty text are skipped. Duplicates are kept in document order.
func ParseProfileLinks(r io.Reader) ([]models.UserID, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var users []models.UserID
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && hasProfileHref(n) {
			if name := strings.TrimSpace(textContent(n)); name != "" {
				users = append(users, models.UserID(name))
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return users, nil
}

func hasProfileHref(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key == "href" && strings.HasPrefix(attr.Val, profilePrefix) {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}
