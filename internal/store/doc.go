// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

/*
Package store persists the crawl dataset in BadgerDB.

# Key Layout

	rating:<user>      JSON object of item id -> score
	item:<id>          display title
	excluded:<user>    failure reason
	meta:checkpoint    JSON CheckpointRecord of the last commit

# Durability

Checkpoint applies a whole batch inside one BadgerDB transaction. After a
crash the store holds exactly the state of the last committed checkpoint.
Titles and exclusions are write-once: a later batch never replaces an
existing value.

# Legacy Files

ImportLegacy and ExportLegacy convert between the store and the flat files
written by earlier releases (user_lists.json, anime_titles.csv and
excluded_users.txt). Imports go through a BadgerDB WriteBatch.
*/
package store
