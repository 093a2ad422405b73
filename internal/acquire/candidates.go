// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package acquire

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tomtom215/malrec/internal/models"
)

// ReadCandidates reads one username per line. Lines are trimmed and blank
// lines skipped. Duplicates are kept; Plan removes them.
func ReadCandidates(path string) ([]models.UserID, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candidates file: %w", err)
	}
	defer f.Close()

	var users []models.UserID
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			users = append(users, models.UserID(name))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read candidates file: %w", err)
	}
	return users, nil
}

// AppendCandidates appends the names not already present in the file and
// returns how many were written. A missing file is created.
func AppendCandidates(path string, names []models.UserID) (int, error) {
	existing, err := ReadCandidates(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	known := make(map[models.UserID]struct{}, len(existing))
	for _, u := range existing {
		known[u] = struct{}{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create candidates dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open candidates file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	added := 0
	for _, u := range names {
		name := strings.TrimSpace(string(u))
		if name == "" {
			continue
		}
		if _, ok := known[models.UserID(name)]; ok {
			continue
		}
		known[models.UserID(name)] = struct{}{}
		if _, err := w.WriteString(name + "\n"); err != nil {
			return added, fmt.Errorf("write candidates file: %w", err)
		}
		added++
	}
	if err := w.Flush(); err != nil {
		return added, fmt.Errorf("flush candidates file: %w", err)
	}
	return added, nil
}

// Plan returns the users that still need fetching: the distinct candidates
// that are neither stored nor excluded, in ascending order. unique is the
// number of distinct candidates.
func Plan(candidates []models.UserID, ds *models.Dataset) (todo []models.UserID, unique int) {
	seen := make(map[models.UserID]struct{}, len(candidates))
	for _, u := range candidates {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if _, stored := ds.Ratings[u]; stored {
			continue
		}
		if ds.Exclusions.Contains(u) {
			continue
		}
		todo = append(todo, u)
	}
	sort.Slice(todo, func(i, j int) bool { return todo[i] < todo[j] })
	return todo, len(seen)
}
