// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package acquire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/malrec/internal/models"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	s := newMemStore(t)
	f := newFakeFetcher()

	tests := []struct {
		name    string
		mutate  func(*Config)
		fetcher *fakeFetcher
		cp      Checkpointer
	}{
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, f, s},
		{"zero min list length", func(c *Config) { c.MinListLength = 0 }, f, s},
		{"zero checkpoint interval", func(c *Config) { c.CheckpointInterval = 0 }, f, s},
		{"negative retries", func(c *Config) { c.CheckpointRetries = -1 }, f, s},
		{"zero final timeout", func(c *Config) { c.FinalCheckpointTimeout = 0 }, f, s},
		{"nil checkpointer", func(*Config) {}, f, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg, tt.fetcher, tt.cp); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestRun_PartitionsCandidates(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.lists["alice"] = list(1, 3, 8)
	f.lists["bob"] = append(list(2, 2, 6), models.RatedItem{ItemID: 50, Title: "Unrated", Score: 0})
	f.lists["carol"] = append(list(7, 1, 9), models.RatedItem{ItemID: 8, Title: "Dropped", Score: 0})
	f.errs["dave"] = &models.UserFailureError{User: "dave", Reason: models.ReasonForbidden, Status: 403}
	f.errs["erin"] = &models.UserFailureError{User: "erin", Reason: models.ReasonMalformed}
	// frank has no entry and is reported as not found

	s := newMemStore(t)
	p := newTestPipeline(t, testConfig(), f, s)
	ds := models.NewDataset()

	candidates := []models.UserID{"alice", "bob", "carol", "dave", "erin", "frank", "alice"}
	sum, err := p.Run(context.Background(), candidates, ds)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if sum.Candidates != 6 || sum.Processed != 6 || sum.Accepted != 2 || sum.ExcludedTotal() != 4 {
		t.Errorf("summary = %+v", sum)
	}
	wantReasons := map[models.UserID]models.FailureReason{
		"carol": models.ReasonShortList,
		"dave":  models.ReasonForbidden,
		"erin":  models.ReasonMalformed,
		"frank": models.ReasonNotFound,
	}
	for u, reason := range wantReasons {
		if got := ds.Exclusions[u]; got != reason {
			t.Errorf("exclusion[%s] = %q, want %q", u, got, reason)
		}
		if _, stored := ds.Ratings[u]; stored {
			t.Errorf("%s is both stored and excluded", u)
		}
	}
	for _, u := range []models.UserID{"alice", "bob"} {
		if _, ok := ds.Ratings[u]; !ok {
			t.Errorf("%s missing from ratings", u)
		}
	}
	if _, ok := ds.Ratings["bob"][50]; ok {
		t.Error("unrated entries must not be stored")
	}
	if _, ok := ds.Catalog[50]; ok {
		t.Error("titles of unrated entries must not be recorded")
	}
	// alice rates 1..3, bob 2..3
	if sum.NewTitles != 3 || len(ds.Catalog) != 3 {
		t.Errorf("NewTitles = %d catalog = %d, want 3/3", sum.NewTitles, len(ds.Catalog))
	}

	durable := loadDataset(t, s)
	if len(durable.Ratings) != 2 || len(durable.Exclusions) != 4 || len(durable.Catalog) != 3 {
		t.Errorf("durable = %d ratings %d exclusions %d titles",
			len(durable.Ratings), len(durable.Exclusions), len(durable.Catalog))
	}

	snap := p.Progress().Snapshot()
	if snap.Running || snap.Processed != 6 || snap.Accepted != 2 || snap.Excluded != 4 {
		t.Errorf("progress = %+v", snap)
	}
	if snap.RunID != sum.RunID || sum.RunID == "" {
		t.Errorf("run id mismatch: progress %q summary %q", snap.RunID, sum.RunID)
	}
}

func TestRun_ResumeSkipsKnownUsers(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.lists["alice"] = list(1, 3, 7)
	f.lists["bob"] = list(4, 3, 5)
	s := newMemStore(t)
	candidates := []models.UserID{"alice", "bob", "ghost"}

	ctx := context.Background()
	p := newTestPipeline(t, testConfig(), f, s)
	if _, err := p.Run(ctx, candidates, loadDataset(t, s)); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if f.totalCalls() != 3 {
		t.Fatalf("first run made %d calls, want 3", f.totalCalls())
	}

	countsBefore, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	lastBefore, err := s.LastCheckpoint(ctx)
	if err != nil || lastBefore == nil {
		t.Fatalf("LastCheckpoint() = %v, %v", lastBefore, err)
	}

	sum, err := p.Run(ctx, candidates, loadDataset(t, s))
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if f.totalCalls() != 3 {
		t.Errorf("second run fetched again: %d calls", f.totalCalls())
	}
	if sum.Skipped != 3 || sum.Processed != 0 || sum.Checkpoints != 0 {
		t.Errorf("second summary = %+v", sum)
	}

	countsAfter, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if countsAfter != countsBefore {
		t.Errorf("counts changed on resume: %+v -> %+v", countsBefore, countsAfter)
	}
	lastAfter, err := s.LastCheckpoint(ctx)
	if err != nil || lastAfter == nil {
		t.Fatalf("LastCheckpoint() = %v, %v", lastAfter, err)
	}
	if lastAfter.Sequence != lastBefore.Sequence || lastAfter.ID != lastBefore.ID {
		t.Errorf("checkpoint moved on resume: #%d %s -> #%d %s",
			lastBefore.Sequence, lastBefore.ID, lastAfter.Sequence, lastAfter.ID)
	}
}

func TestRun_KeepsExistingTitles(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.lists["alice"] = []models.RatedItem{
		{ItemID: 1, Title: "Renamed", Score: 9},
		{ItemID: 2, Title: "Second", Score: 7},
	}
	f.lists["bob"] = []models.RatedItem{
		{ItemID: 2, Title: "Second again", Score: 4},
		{ItemID: 3, Title: "Third", Score: 3},
	}
	s := newMemStore(t)
	ds := models.NewDataset()
	ds.Catalog[1] = "Original"

	cfg := testConfig()
	cfg.Concurrency = 1
	p := newTestPipeline(t, cfg, f, s)
	sum, err := p.Run(context.Background(), []models.UserID{"alice", "bob"}, ds)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if ds.Catalog[1] != "Original" {
		t.Errorf("catalog[1] = %q, want Original", ds.Catalog[1])
	}
	if ds.Catalog[2] != "Second" {
		t.Errorf("catalog[2] = %q, want first seen title", ds.Catalog[2])
	}
	if sum.NewTitles != 2 {
		t.Errorf("NewTitles = %d, want 2", sum.NewTitles)
	}
}

func TestRun_CheckpointCadence(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	users := []models.UserID{"u1", "u2", "u3", "u4", "u5"}
	for i, u := range users {
		f.lists[u] = list(i*10, 3, 5)
	}
	cp := &recordingCheckpointer{next: newMemStore(t)}

	cfg := testConfig()
	cfg.CheckpointInterval = 2
	p := newTestPipeline(t, cfg, f, cp)
	sum, err := p.Run(context.Background(), users, models.NewDataset())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := cp.BatchUsers()
	want := []int{2, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("batches = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("batch[%d] = %d users, want %d", i, got[i], want[i])
		}
	}
	if sum.Checkpoints != 3 {
		t.Errorf("Checkpoints = %d, want 3", sum.Checkpoints)
	}
}

func TestRun_CheckpointRetryRecovers(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.lists["alice"] = list(1, 3, 7)
	s := newMemStore(t)
	cp := &recordingCheckpointer{next: s, failures: 2}

	cfg := testConfig()
	cfg.CheckpointRetries = 2
	p := newTestPipeline(t, cfg, f, cp)
	if _, err := p.Run(context.Background(), []models.UserID{"alice"}, models.NewDataset()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if cp.Attempts() != 3 {
		t.Errorf("attempts = %d, want 3", cp.Attempts())
	}
	if _, ok := loadDataset(t, s).Ratings["alice"]; !ok {
		t.Error("alice should be durable after the retried checkpoint")
	}
}

func TestRun_PersistenceFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	users := []models.UserID{"u1", "u2", "u3", "u4", "u5", "u6"}
	for i, u := range users {
		f.lists[u] = list(i*10, 3, 5)
	}
	cp := &recordingCheckpointer{next: newMemStore(t), failures: 1000}

	cfg := testConfig()
	cfg.Concurrency = 1
	cfg.CheckpointInterval = 2
	cfg.CheckpointRetries = 2
	p := newTestPipeline(t, cfg, f, cp)

	sum, err := p.Run(context.Background(), users, models.NewDataset())
	var perr *models.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Run() error = %v, want PersistenceError", err)
	}
	if perr.Attempts != 3 || !errors.Is(err, errDiskFull) {
		t.Errorf("PersistenceError = %+v", perr)
	}
	if cp.Attempts() != 3 {
		t.Errorf("checkpoint attempts = %d, want 3 (no final checkpoint after a fatal error)", cp.Attempts())
	}
	if sum.Checkpoints != 0 {
		t.Errorf("Checkpoints = %d, want 0", sum.Checkpoints)
	}
}

func TestRun_CancelCheckpointsProcessed(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.lists["a"] = list(1, 3, 7)
	f.lists["b"] = list(2, 3, 6)
	f.lists["c"] = list(3, 3, 5)
	f.lists["d"] = list(4, 3, 4)
	s := newMemStore(t)

	cfg := testConfig()
	cfg.Concurrency = 1
	p := newTestPipeline(t, cfg, f, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.setHook(func(hctx context.Context, user models.UserID) error {
		if user != "c" {
			return nil
		}
		// Wait until a and b are merged, then stop the run mid-fetch
		deadline := time.Now().Add(5 * time.Second)
		for p.Progress().Snapshot().Processed < 2 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		cancel()
		<-hctx.Done()
		return hctx.Err()
	})

	candidates := []models.UserID{"a", "b", "c", "d"}
	sum, err := p.Run(ctx, candidates, models.NewDataset())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if sum.Processed != 2 || sum.Checkpoints != 1 {
		t.Errorf("summary = %+v, want 2 processed and 1 checkpoint", sum)
	}

	durable := loadDataset(t, s)
	for _, u := range []models.UserID{"a", "b"} {
		if _, ok := durable.Ratings[u]; !ok {
			t.Errorf("%s should have been saved by the final checkpoint", u)
		}
	}
	if len(durable.Ratings)+len(durable.Exclusions) != 2 {
		t.Errorf("unprocessed users leaked into the store: %v %v", durable.Ratings, durable.Exclusions)
	}

	// Resume from the interrupted state: only c and d are fetched.
	f.setHook(nil)
	before := map[models.UserID]int{}
	for _, u := range candidates {
		before[u] = f.callsFor(u)
	}

	sum, err = p.Run(context.Background(), candidates, loadDataset(t, s))
	if err != nil {
		t.Fatalf("resumed Run() error = %v", err)
	}
	if sum.Skipped != 2 || sum.Processed != 2 || sum.Accepted != 2 {
		t.Errorf("resumed summary = %+v, want 2 skipped, 2 processed, 2 accepted", sum)
	}
	for _, u := range []models.UserID{"a", "b"} {
		if got := f.callsFor(u); got != before[u] {
			t.Errorf("%s fetched again after its checkpoint: %d -> %d calls", u, before[u], got)
		}
	}
	for _, u := range []models.UserID{"c", "d"} {
		if got := f.callsFor(u); got != before[u]+1 {
			t.Errorf("%s calls = %d, want %d", u, got, before[u]+1)
		}
	}

	durable = loadDataset(t, s)
	for _, u := range candidates {
		if _, ok := durable.Ratings[u]; !ok {
			t.Errorf("%s missing after resume", u)
		}
	}
}

func TestRun_UnexpectedFetchErrorStopsRun(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.lists["a"] = list(1, 3, 7)
	f.errs["b"] = models.ErrRateLimited
	s := newMemStore(t)

	cfg := testConfig()
	cfg.Concurrency = 1
	p := newTestPipeline(t, cfg, f, s)

	_, err := p.Run(context.Background(), []models.UserID{"a", "b"}, models.NewDataset())
	if !errors.Is(err, models.ErrRateLimited) {
		t.Fatalf("Run() error = %v, want ErrRateLimited", err)
	}
	durable := loadDataset(t, s)
	if durable.Exclusions.Contains("b") {
		t.Error("transient failures must never exclude a user")
	}
}

func TestRun_NothingToDo(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	cp := &recordingCheckpointer{next: newMemStore(t)}
	p := newTestPipeline(t, testConfig(), f, cp)

	ds := models.NewDataset()
	ds.Ratings["alice"] = models.RatingVector{1: 5}
	ds.Exclusions["bob"] = models.ReasonForbidden

	sum, err := p.Run(context.Background(), []models.UserID{"alice", "bob"}, ds)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Skipped != 2 || f.totalCalls() != 0 || cp.Attempts() != 0 {
		t.Errorf("summary = %+v calls = %d checkpoints = %d", sum, f.totalCalls(), cp.Attempts())
	}
}
