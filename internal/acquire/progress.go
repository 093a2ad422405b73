// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package acquire

import (
	"sync/atomic"
	"time"
)

// Progress tracks a running pipeline. All methods are safe for concurrent use,
// so the status endpoint can read it while the aggregator writes.
type Progress struct {
	running        atomic.Bool
	runID          atomic.Value // string
	startedAt      atomic.Int64 // unix nanos
	total          atomic.Int64
	processed      atomic.Int64
	accepted       atomic.Int64
	excluded       atomic.Int64
	checkpoints    atomic.Int64
	lastCheckpoint atomic.Int64 // unix nanos, 0 when none
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	Running          bool       `json:"running"`
	RunID            string     `json:"run_id,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	Total            int64      `json:"total"`
	Processed        int64      `json:"processed"`
	Accepted         int64      `json:"accepted"`
	Excluded         int64      `json:"excluded"`
	Checkpoints      int64      `json:"checkpoints"`
	LastCheckpointAt *time.Time `json:"last_checkpoint_at,omitempty"`
}

func (p *Progress) begin(runID string, total int) {
	p.runID.Store(runID)
	p.startedAt.Store(time.Now().UnixNano())
	p.total.Store(int64(total))
	p.processed.Store(0)
	p.accepted.Store(0)
	p.excluded.Store(0)
	p.checkpoints.Store(0)
	p.lastCheckpoint.Store(0)
	p.running.Store(true)
}

func (p *Progress) end() {
	p.running.Store(false)
}

func (p *Progress) addAccepted() {
	p.accepted.Add(1)
	p.processed.Add(1)
}

func (p *Progress) addExcluded() {
	p.excluded.Add(1)
	p.processed.Add(1)
}

func (p *Progress) addCheckpoint(at time.Time) {
	p.checkpoints.Add(1)
	p.lastCheckpoint.Store(at.UnixNano())
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	s := ProgressSnapshot{
		Running:     p.running.Load(),
		Total:       p.total.Load(),
		Processed:   p.processed.Load(),
		Accepted:    p.accepted.Load(),
		Excluded:    p.excluded.Load(),
		Checkpoints: p.checkpoints.Load(),
	}
	if id, ok := p.runID.Load().(string); ok {
		s.RunID = id
	}
	if ns := p.startedAt.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		s.StartedAt = &t
	}
	if ns := p.lastCheckpoint.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		s.LastCheckpointAt = &t
	}
	return s
}
