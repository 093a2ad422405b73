// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package sync

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/malrec/internal/config"
	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/metrics"
	"github.com/tomtom215/malrec/internal/models"
)

// maxErrorBodySize limits the amount of response body read for error reporting
const maxErrorBodySize = 64 * 1024 // 64KB

// clientIDHeader carries the static API credential.
const clientIDHeader = "X-MAL-CLIENT-ID"

// readBodyForError reads the response body for diagnostics (max 64KB).
// Returns a placeholder message if reading fails.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// Fetcher retrieves the rated list of a single user.
//
// Implementations return the items on success, models.ErrRateLimited (possibly
// wrapped) for transient throttling, a *models.UserFailureError for permanent
// per-user failures, or the context error when ctx is done.
type Fetcher interface {
	FetchRatings(ctx context.Context, user models.UserID) ([]models.RatedItem, error)
}

// animeListResponse is the subset of the animelist payload that is decoded.
type animeListResponse struct {
	Data []struct {
		Node struct {
			ID    int    `json:"id"`
			Title string `json:"title"`
		} `json:"node"`
		ListStatus struct {
			Score int `json:"score"`
		} `json:"list_status"`
	} `json:"data"`
}

// Client fetches anime lists from the MAL v2 API.
//
// Thread Safety: Client is safe for concurrent use.
type Client struct {
	baseURL    string
	clientID   string
	limit      int
	httpClient *http.Client
	limiter    *rate.Limiter // nil when pacing is disabled
}

// NewClient creates a MAL API client. clientID is the resolved credential,
// see config.MALConfig.ResolveClientID.
func NewClient(cfg *config.MALConfig, clientID string) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		clientID: clientID,
		limit:    cfg.LimitPerUser,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// listURL builds the animelist endpoint for a user. The name is path-escaped.
func (c *Client) listURL(user models.UserID) string {
	q := url.Values{}
	q.Set("fields", "list_status")
	q.Set("limit", strconv.Itoa(c.limit))
	return fmt.Sprintf("%s/v2/users/%s/animelist?%s", c.baseURL, url.PathEscape(string(user)), q.Encode())
}

// FetchRatings performs a single request for the user's list. It never retries;
// retrying rate-limit responses is the Controller's job.
func (c *Client) FetchRatings(ctx context.Context, user models.UserID) ([]models.RatedItem, error) {
	start := time.Now()
	items, outcome, err := c.fetch(ctx, user)
	metrics.RecordFetch(outcome, time.Since(start))
	return items, err
}

func (c *Client) fetch(ctx context.Context, user models.UserID) ([]models.RatedItem, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, metrics.OutcomeCanceled, ctx.Err()
			}
			return nil, metrics.OutcomeRateLimited, fmt.Errorf("%w: pacing: %v", models.ErrRateLimited, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listURL(user), http.NoBody)
	if err != nil {
		return nil, metrics.OutcomeRejected, &models.UserFailureError{User: user, Reason: models.ReasonRejected}
	}
	req.Header.Set(clientIDHeader, c.clientID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, metrics.OutcomeCanceled, ctx.Err()
		}
		// Connection resets and timeouts are how the API throttles under load
		return nil, metrics.OutcomeRateLimited, fmt.Errorf("%w: %v", models.ErrRateLimited, err)
	}
	defer resp.Body.Close()

	if !isJSON(resp.Header.Get("Content-Type")) {
		body := readBodyForError(resp.Body)
		logging.Ctx(ctx).Debug().
			Str("user", string(user)).
			Int("status", resp.StatusCode).
			Str("content_type", resp.Header.Get("Content-Type")).
			Str("body", logging.Truncate(string(body), 200)).
			Msg("Non-JSON response treated as rate limit")
		return nil, metrics.OutcomeRateLimited, fmt.Errorf("%w: non-JSON response (status %d)", models.ErrRateLimited, resp.StatusCode)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var payload animeListResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			if ctx.Err() != nil {
				return nil, metrics.OutcomeCanceled, ctx.Err()
			}
			return nil, metrics.OutcomeMalformed, &models.UserFailureError{
				User: user, Reason: models.ReasonMalformed, Status: resp.StatusCode,
			}
		}
		items := make([]models.RatedItem, 0, len(payload.Data))
		for _, entry := range payload.Data {
			items = append(items, models.RatedItem{
				ItemID: models.ItemID(entry.Node.ID),
				Title:  entry.Node.Title,
				Score:  models.Score(entry.ListStatus.Score),
			})
		}
		return items, metrics.OutcomeSuccess, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, metrics.OutcomeRateLimited, fmt.Errorf("%w: status %d", models.ErrRateLimited, resp.StatusCode)

	case resp.StatusCode == http.StatusNotFound:
		return nil, metrics.OutcomeNotFound, c.permanent(ctx, user, models.ReasonNotFound, resp)

	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, metrics.OutcomeForbidden, c.permanent(ctx, user, models.ReasonForbidden, resp)

	default:
		return nil, metrics.OutcomeRejected, c.permanent(ctx, user, models.ReasonRejected, resp)
	}
}

func (c *Client) permanent(ctx context.Context, user models.UserID, reason models.FailureReason, resp *http.Response) error {
	body := readBodyForError(resp.Body)
	logging.Ctx(ctx).Debug().
		Str("user", string(user)).
		Int("status", resp.StatusCode).
		Str("reason", string(reason)).
		Str("body", logging.Truncate(string(body), 200)).
		Msg("Permanent fetch failure")
	return &models.UserFailureError{User: user, Reason: reason, Status: resp.StatusCode}
}

// isJSON reports whether a Content-Type header names a JSON media type.
func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
