// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package acquire

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/malrec/internal/models"
	"github.com/tomtom215/malrec/internal/store"
)

// fakeFetcher serves canned lists. Users with neither a list nor an error
// are reported as not found.
type fakeFetcher struct {
	mu    sync.Mutex
	lists map[models.UserID][]models.RatedItem
	errs  map[models.UserID]error
	hook  func(ctx context.Context, user models.UserID) error
	calls map[models.UserID]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		lists: make(map[models.UserID][]models.RatedItem),
		errs:  make(map[models.UserID]error),
		calls: make(map[models.UserID]int),
	}
}

func (f *fakeFetcher) FetchRatings(ctx context.Context, user models.UserID) ([]models.RatedItem, error) {
	f.mu.Lock()
	f.calls[user]++
	items, hasList := f.lists[user]
	err, hasErr := f.errs[user]
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		if herr := hook(ctx, user); herr != nil {
			return nil, herr
		}
	}
	if hasErr {
		return nil, err
	}
	if hasList {
		return items, nil
	}
	return nil, &models.UserFailureError{User: user, Reason: models.ReasonNotFound, Status: 404}
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeFetcher) callsFor(user models.UserID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[user]
}

func (f *fakeFetcher) setHook(hook func(ctx context.Context, user models.UserID) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

// list builds fetched entries with ids starting at first, each scored score.
func list(first, n int, score models.Score) []models.RatedItem {
	items := make([]models.RatedItem, n)
	for i := range items {
		id := models.ItemID(first + i)
		items[i] = models.RatedItem{ItemID: id, Title: titleFor(id), Score: score}
	}
	return items
}

func titleFor(id models.ItemID) string {
	return "Title " + string(rune('A'+int(id)%26))
}

// recordingCheckpointer wraps a store and records every batch, failing the
// first failures calls.
type recordingCheckpointer struct {
	mu       sync.Mutex
	next     Checkpointer
	failures int
	attempts int
	batches  []models.Batch
}

var errDiskFull = errors.New("disk full")

func (c *recordingCheckpointer) Checkpoint(ctx context.Context, b models.Batch) (*store.CheckpointRecord, error) {
	c.mu.Lock()
	c.attempts++
	if c.attempts <= c.failures {
		c.mu.Unlock()
		return nil, errDiskFull
	}
	c.batches = append(c.batches, b)
	c.mu.Unlock()
	return c.next.Checkpoint(ctx, b)
}

func (c *recordingCheckpointer) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *recordingCheckpointer) BatchUsers() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	sizes := make([]int, len(c.batches))
	for i, b := range c.batches {
		sizes[i] = len(b.Ratings) + len(b.Exclusions)
	}
	return sizes
}

func newMemStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testConfig() Config {
	return Config{
		Concurrency:            2,
		MinListLength:          2,
		CheckpointInterval:     100,
		CheckpointRetries:      0,
		CheckpointRetryDelay:   0,
		FinalCheckpointTimeout: 5 * time.Second,
	}
}

func newTestPipeline(t *testing.T, cfg Config, f *fakeFetcher, cp Checkpointer) *Pipeline {
	t.Helper()
	p, err := New(cfg, f, cp)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func loadDataset(t *testing.T, s *store.Store) *models.Dataset {
	t.Helper()
	ds, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return ds
}
