// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/malrec/internal/logging"
	"github.com/tomtom215/malrec/internal/models"
)

// Key prefixes for the three durable collections and the checkpoint marker.
const (
	prefixRating    = "rating:"
	prefixItem      = "item:"
	prefixExcluded  = "excluded:"
	keyCheckpoint   = "meta:checkpoint"
	defaultCloseTTL = 30 * time.Second
)

// ErrStoreClosed is returned by every operation after Close.
var ErrStoreClosed = errors.New("store is closed")

// Options configures the on-disk store.
type Options struct {
	// Path is the BadgerDB directory. It is created if missing.
	Path string
	// SyncWrites fsyncs every commit. Disable only for throwaway data.
	SyncWrites bool
	// InMemory keeps everything in RAM. Path is ignored.
	InMemory bool

	// Optional tuning, zero keeps the BadgerDB default.
	MemTableSize     int64
	ValueLogFileSize int64
}

// CheckpointRecord describes the last committed checkpoint.
type CheckpointRecord struct {
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
	Sequence   int64     `json:"sequence"`
	Users      int       `json:"users"`
	Titles     int       `json:"titles"`
	Exclusions int       `json:"exclusions"`
}

// Counts summarizes the durable collections. Skipped is only set by
// ImportLegacy: lists left out because the user was already excluded or
// already rated.
type Counts struct {
	Users      int `json:"users"`
	Titles     int `json:"titles"`
	Exclusions int `json:"exclusions"`
	Skipped    int `json:"skipped,omitempty"`
}

// Store persists ratings, titles and exclusions in BadgerDB. A checkpoint is a
// single transaction, so a crash leaves either the previous or the new state
// on disk and never a mix of the two.
type Store struct {
	db   *badger.DB
	path string

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store described by opts.
func Open(opts Options) (*Store, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("store path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
		bopts.SyncWrites = opts.SyncWrites
	}
	if opts.MemTableSize > 0 {
		bopts.MemTableSize = opts.MemTableSize
	}
	if opts.ValueLogFileSize > 0 {
		bopts.ValueLogFileSize = opts.ValueLogFileSize
	}

	// Reduce logging verbosity
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Debug().
		Str("path", opts.Path).
		Bool("in_memory", opts.InMemory).
		Bool("sync_writes", opts.SyncWrites).
		Msg("Store opened")

	return &Store{db: db, path: opts.Path}, nil
}

// OpenInMemory opens a store that lives only in memory. Used by tests.
func OpenInMemory() (*Store, error) {
	return Open(Options{InMemory: true})
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Load reads the full durable state. A fresh store yields an empty dataset.
func (s *Store) Load(ctx context.Context) (*models.Dataset, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	ds := models.NewDataset()
	err := s.db.View(func(txn *badger.Txn) error {
		if err := scanPrefix(ctx, txn, prefixRating, func(key string, val []byte) error {
			var vec models.RatingVector
			if err := json.Unmarshal(val, &vec); err != nil {
				return fmt.Errorf("decode ratings for %q: %w", key, err)
			}
			ds.Ratings[models.UserID(key)] = vec
			return nil
		}); err != nil {
			return err
		}

		if err := scanPrefix(ctx, txn, prefixItem, func(key string, val []byte) error {
			id, err := strconv.Atoi(key)
			if err != nil {
				return fmt.Errorf("decode item key %q: %w", key, err)
			}
			ds.Catalog[models.ItemID(id)] = string(val)
			return nil
		}); err != nil {
			return err
		}

		return scanPrefix(ctx, txn, prefixExcluded, func(key string, val []byte) error {
			ds.Exclusions[models.UserID(key)] = models.FailureReason(val)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	logging.Info().
		Int("users", len(ds.Ratings)).
		Int("titles", len(ds.Catalog)).
		Int("exclusions", len(ds.Exclusions)).
		Msg("Dataset loaded")
	return ds, nil
}

// Checkpoint commits a batch in one transaction. Ratings overwrite any earlier
// vector for the same user; titles and exclusions are only added when absent,
// so the first recorded value wins. An empty batch still advances the
// checkpoint record.
func (s *Store) Checkpoint(ctx context.Context, batch models.Batch) (*CheckpointRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := &CheckpointRecord{
		ID:         uuid.New().String(),
		At:         time.Now().UTC(),
		Users:      len(batch.Ratings),
		Titles:     len(batch.Titles),
		Exclusions: len(batch.Exclusions),
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		prev, err := readCheckpoint(txn)
		if err != nil {
			return err
		}
		if prev != nil {
			rec.Sequence = prev.Sequence + 1
		} else {
			rec.Sequence = 1
		}

		for user, vec := range batch.Ratings {
			data, err := json.Marshal(vec)
			if err != nil {
				return fmt.Errorf("encode ratings for %q: %w", user, err)
			}
			if err := txn.Set(ratingKey(user), data); err != nil {
				return err
			}
		}
		for id, title := range batch.Titles {
			if err := setIfAbsent(txn, itemKey(id), []byte(title)); err != nil {
				return err
			}
		}
		for user, reason := range batch.Exclusions {
			if err := setIfAbsent(txn, excludedKey(user), []byte(reason)); err != nil {
				return err
			}
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode checkpoint record: %w", err)
		}
		return txn.Set([]byte(keyCheckpoint), data)
	})
	if err != nil {
		return nil, fmt.Errorf("commit checkpoint: %w", err)
	}

	logging.Debug().
		Str("checkpoint_id", rec.ID).
		Int64("sequence", rec.Sequence).
		Int("users", rec.Users).
		Int("titles", rec.Titles).
		Int("exclusions", rec.Exclusions).
		Msg("Checkpoint committed")
	return rec, nil
}

// Ratings returns every stored rating vector.
func (s *Store) Ratings(ctx context.Context) (models.RatingStore, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	ratings := make(models.RatingStore)
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(ctx, txn, prefixRating, func(key string, val []byte) error {
			var vec models.RatingVector
			if err := json.Unmarshal(val, &vec); err != nil {
				return fmt.Errorf("decode ratings for %q: %w", key, err)
			}
			ratings[models.UserID(key)] = vec
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read ratings: %w", err)
	}
	return ratings, nil
}

// Titles resolves item IDs to titles. IDs without a stored title are omitted.
func (s *Store) Titles(ctx context.Context, ids []models.ItemID) (models.ItemCatalog, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	titles := make(models.ItemCatalog, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := txn.Get(itemKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			titles[id] = string(val)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read titles: %w", err)
	}
	return titles, nil
}

// LastCheckpoint returns the most recent checkpoint record, or nil when the
// store has never been checkpointed.
func (s *Store) LastCheckpoint(ctx context.Context) (*CheckpointRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var rec *CheckpointRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = readCheckpoint(txn)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read checkpoint record: %w", err)
	}
	return rec, nil
}

// Counts returns the size of each durable collection without decoding values.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	if err := s.checkOpen(); err != nil {
		return Counts{}, err
	}
	var c Counts
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if c.Users, err = countPrefix(ctx, txn, prefixRating); err != nil {
			return err
		}
		if c.Titles, err = countPrefix(ctx, txn, prefixItem); err != nil {
			return err
		}
		c.Exclusions, err = countPrefix(ctx, txn, prefixExcluded)
		return err
	})
	if err != nil {
		return Counts{}, fmt.Errorf("count entries: %w", err)
	}
	return c, nil
}

// Close flushes and closes the underlying database. It is safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Debug().Str("path", s.path).Msg("Store closed")
		return nil
	case <-time.After(defaultCloseTTL):
		logging.Warn().Dur("timeout", defaultCloseTTL).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", defaultCloseTTL)
	}
}

func ratingKey(u models.UserID) []byte   { return []byte(prefixRating + string(u)) }
func itemKey(id models.ItemID) []byte    { return []byte(prefixItem + strconv.Itoa(int(id))) }
func excludedKey(u models.UserID) []byte { return []byte(prefixExcluded + string(u)) }

func setIfAbsent(txn *badger.Txn, key, val []byte) error {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return txn.Set(key, val)
	default:
		return err
	}
}

func readCheckpoint(txn *badger.Txn) (*CheckpointRecord, error) {
	item, err := txn.Get([]byte(keyCheckpoint))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec CheckpointRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("decode checkpoint record: %w", err)
	}
	return &rec, nil
}

// scanPrefix calls fn for every key under prefix with the prefix stripped.
// The value slice is only valid for the duration of the call.
func scanPrefix(ctx context.Context, txn *badger.Txn, prefix string, fn func(key string, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		item := it.Item()
		key := strings.TrimPrefix(string(item.Key()), prefix)
		if err := item.Value(func(val []byte) error {
			return fn(key, val)
		}); err != nil {
			return err
		}
	}
	return nil
}

func countPrefix(ctx context.Context, txn *badger.Txn, prefix string) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		n++
	}
	return n, nil
}
