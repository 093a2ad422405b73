// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package models

import (
	"math"
	"sort"
)

// UserID identifies the owner of a rated list. Matching is exact and case-sensitive.
type UserID string

// ItemID identifies a rateable item. It is stable across runs.
type ItemID int

// Score is a user rating. Zero means unrated.
type Score int

// RatedItem is one entry of a fetched list as returned by the remote API.
type RatedItem struct {
	ItemID ItemID `json:"id"`
	Title  string `json:"title"`
	Score  Score  `json:"score"`
}

// RatingVector is the sparse item -> score mapping for a single user.
// Only rated items (score != 0) are present.
type RatingVector map[ItemID]Score

// NewRatingVector builds a vector from fetched entries, dropping unrated ones.
func NewRatingVector(items []RatedItem) RatingVector {
	v := make(RatingVector, len(items))
	for _, it := range items {
		if it.Score == 0 {
			continue
		}
		v[it.ItemID] = it.Score
	}
	return v
}

// Norm returns the Euclidean magnitude over every rated item of the vector.
func (v RatingVector) Norm() float64 {
	var sum float64
	for _, s := range v {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum)
}

// Len returns the number of rated items.
func (v RatingVector) Len() int {
	return len(v)
}

// Items returns the rated item IDs in ascending order.
func (v RatingVector) Items() []ItemID {
	ids := make([]ItemID, 0, len(v))
	for id := range v {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CountRated returns the number of entries with a nonzero score.
func CountRated(items []RatedItem) int {
	n := 0
	for _, it := range items {
		if it.Score != 0 {
			n++
		}
	}
	return n
}

// RatingStore maps users to their rating vectors.
type RatingStore map[UserID]RatingVector

// Users returns the user IDs in ascending order.
func (s RatingStore) Users() []UserID {
	users := make([]UserID, 0, len(s))
	for u := range s {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

// ItemCatalog maps item IDs to display titles.
type ItemCatalog map[ItemID]string

// FailureReason explains why a user was routed to the exclusion set.
type FailureReason string

const (
	// ReasonNotFound means the remote API reported the user does not exist.
	ReasonNotFound FailureReason = "not_found"
	// ReasonForbidden means the list is private or access was denied.
	ReasonForbidden FailureReason = "forbidden"
	// ReasonRejected covers any other structured error response.
	ReasonRejected FailureReason = "rejected"
	// ReasonMalformed means a success response could not be decoded.
	ReasonMalformed FailureReason = "malformed"
	// ReasonShortList means the list had fewer rated entries than required.
	ReasonShortList FailureReason = "short_list"
	// ReasonLegacy marks exclusions imported from a flat file that kept no reason.
	ReasonLegacy FailureReason = "legacy"
)

// ExclusionSet holds users known to be unfetchable, with the reason they were excluded.
type ExclusionSet map[UserID]FailureReason

// Contains reports whether the user is excluded.
func (s ExclusionSet) Contains(u UserID) bool {
	_, ok := s[u]
	return ok
}

// Dataset is the durable state loaded at pipeline start.
type Dataset struct {
	Ratings    RatingStore
	Catalog    ItemCatalog
	Exclusions ExclusionSet
}

// NewDataset returns an empty, ready to use Dataset.
func NewDataset() *Dataset {
	return &Dataset{
		Ratings:    make(RatingStore),
		Catalog:    make(ItemCatalog),
		Exclusions: make(ExclusionSet),
	}
}

// Batch holds the additions accumulated since the last checkpoint.
type Batch struct {
	Ratings    RatingStore
	Titles     ItemCatalog
	Exclusions ExclusionSet
}

// NewBatch returns an empty Batch.
func NewBatch() Batch {
	return Batch{
		Ratings:    make(RatingStore),
		Titles:     make(ItemCatalog),
		Exclusions: make(ExclusionSet),
	}
}

// Empty reports whether the batch carries nothing to persist.
func (b Batch) Empty() bool {
	return len(b.Ratings) == 0 && len(b.Titles) == 0 && len(b.Exclusions) == 0
}

// Size returns the number of entries across all three buffers.
func (b Batch) Size() int {
	return len(b.Ratings) + len(b.Titles) + len(b.Exclusions)
}
