// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package store

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/models"
)

// LegacyFiles names the flat files used by earlier versions of the crawler:
// a JSON document of user -> {item id: score}, an id,title CSV with a header
// row, and a newline separated list of excluded usernames.
type LegacyFiles struct {
	Lists      string
	Titles     string
	Exclusions string

	// MinListLength routes imported lists with fewer rated entries to the
	// exclusion set as short_list. Zero keeps every non-empty list.
	MinListLength int
}

// ImportLegacy merges the flat files into the store. Missing files are skipped.
//
// A user ends up in at most one of the two collections:
//   - a user already excluded in the store stays excluded and their legacy
//     list is skipped, since exclusions are append-only
//   - a list shorter than MinListLength becomes a short_list exclusion
//   - an exclusion from the file is dropped when the user has ratings
//
// Existing titles are kept.
func (s *Store) ImportLegacy(ctx context.Context, files LegacyFiles) (Counts, error) {
	if err := s.checkOpen(); err != nil {
		return Counts{}, err
	}

	existing, err := s.Load(ctx)
	if err != nil {
		return Counts{}, err
	}

	lists, err := readLegacyLists(files.Lists)
	if err != nil {
		return Counts{}, err
	}
	titles, err := readLegacyTitles(files.Titles)
	if err != nil {
		return Counts{}, err
	}
	excluded, err := readLegacyExclusions(files.Exclusions)
	if err != nil {
		return Counts{}, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	var imported Counts
	// Users staged in this import, rated or excluded.
	staged := make(map[models.UserID]struct{}, len(lists))
	for user, vec := range lists {
		if len(vec) == 0 {
			continue
		}
		if existing.Exclusions.Contains(user) {
			imported.Skipped++
			continue
		}
		if vec.Len() < files.MinListLength {
			if _, rated := existing.Ratings[user]; rated {
				imported.Skipped++
				continue
			}
			if err := wb.Set(excludedKey(user), []byte(models.ReasonShortList)); err != nil {
				return Counts{}, fmt.Errorf("stage exclusion: %w", err)
			}
			staged[user] = struct{}{}
			imported.Exclusions++
			continue
		}
		data, err := json.Marshal(vec)
		if err != nil {
			return Counts{}, fmt.Errorf("encode ratings for %q: %w", user, err)
		}
		if err := wb.Set(ratingKey(user), data); err != nil {
			return Counts{}, fmt.Errorf("stage ratings: %w", err)
		}
		staged[user] = struct{}{}
		imported.Users++
	}
	for id, title := range titles {
		if _, ok := existing.Catalog[id]; ok {
			continue
		}
		if err := wb.Set(itemKey(id), []byte(title)); err != nil {
			return Counts{}, fmt.Errorf("stage title: %w", err)
		}
		imported.Titles++
	}
	for _, user := range excluded {
		if existing.Exclusions.Contains(user) {
			continue
		}
		if _, rated := existing.Ratings[user]; rated {
			continue
		}
		if _, ok := staged[user]; ok {
			continue
		}
		if err := wb.Set(excludedKey(user), []byte(models.ReasonLegacy)); err != nil {
			return Counts{}, fmt.Errorf("stage exclusion: %w", err)
		}
		imported.Exclusions++
	}

	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}
	if err := wb.Flush(); err != nil {
		return Counts{}, fmt.Errorf("flush import: %w", err)
	}

	logging.Info().
		Int("users", imported.Users).
		Int("titles", imported.Titles).
		Int("exclusions", imported.Exclusions).
		Int("skipped", imported.Skipped).
		Msg("Legacy files imported")
	return imported, nil
}

// ExportLegacy writes the store contents to the flat file layout. Output is
// sorted so repeated exports of the same data are byte-identical.
func (s *Store) ExportLegacy(ctx context.Context, files LegacyFiles) (Counts, error) {
	ds, err := s.Load(ctx)
	if err != nil {
		return Counts{}, err
	}

	if files.Lists != "" {
		data, err := json.Marshal(ds.Ratings)
		if err != nil {
			return Counts{}, fmt.Errorf("encode lists: %w", err)
		}
		if err := writeFileAtomic(files.Lists, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}); err != nil {
			return Counts{}, err
		}
	}

	if files.Titles != "" {
		ids := make([]models.ItemID, 0, len(ds.Catalog))
		for id := range ds.Catalog {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		if err := writeFileAtomic(files.Titles, func(w io.Writer) error {
			cw := csv.NewWriter(w)
			if err := cw.Write([]string{"id", "title"}); err != nil {
				return err
			}
			for _, id := range ids {
				if err := cw.Write([]string{strconv.Itoa(int(id)), ds.Catalog[id]}); err != nil {
					return err
				}
			}
			cw.Flush()
			return cw.Error()
		}); err != nil {
			return Counts{}, err
		}
	}

	if files.Exclusions != "" {
		users := make([]string, 0, len(ds.Exclusions))
		for u := range ds.Exclusions {
			users = append(users, string(u))
		}
		sort.Strings(users)

		if err := writeFileAtomic(files.Exclusions, func(w io.Writer) error {
			bw := bufio.NewWriter(w)
			for _, u := range users {
				if _, err := bw.WriteString(u + "\n"); err != nil {
					return err
				}
			}
			return bw.Flush()
		}); err != nil {
			return Counts{}, err
		}
	}

	return Counts{
		Users:      len(ds.Ratings),
		Titles:     len(ds.Catalog),
		Exclusions: len(ds.Exclusions),
	}, nil
}

func readLegacyLists(path string) (map[models.UserID]models.RatingVector, error) {
	data, err := readOptional(path)
	if err != nil || data == nil {
		return nil, err
	}
	var raw map[models.UserID]map[models.ItemID]models.Score
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	lists := make(map[models.UserID]models.RatingVector, len(raw))
	for user, entries := range raw {
		vec := make(models.RatingVector, len(entries))
		for id, score := range entries {
			if score != 0 {
				vec[id] = score
			}
		}
		lists[user] = vec
	}
	return lists, nil
}

func readLegacyTitles(path string) (models.ItemCatalog, error) {
	data, err := readOptional(path)
	if err != nil || data == nil {
		return nil, err
	}
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = 2

	titles := make(models.ItemCatalog)
	for line := 1; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		id, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("%s line %d: bad id %q", path, line, rec[0])
		}
		if _, ok := titles[models.ItemID(id)]; !ok {
			titles[models.ItemID(id)] = rec[1]
		}
	}
	return titles, nil
}

func readLegacyExclusions(path string) ([]models.UserID, error) {
	data, err := readOptional(path)
	if err != nil || data == nil {
		return nil, err
	}
	var users []models.UserID
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		if u := strings.TrimSpace(sc.Text()); u != "" {
			users = append(users, models.UserID(u))
		}
	}
	return users, sc.Err()
}

// readOptional returns nil data without error when the file does not exist.
func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logging.Warn().Str("path", path).Msg("Legacy file not found, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// writeFileAtomic writes to a temp file in the target directory and renames it
// into place so readers never observe a partial file.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
