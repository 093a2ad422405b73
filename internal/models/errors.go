// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package models

import (
	"errors"
	"fmt"
)

// ErrRateLimited signals a transient throttling response. The backoff controller
// retries it indefinitely; it never reaches the pipeline.
var ErrRateLimited = errors.New("rate limited by remote API")

// ErrUnknownUser is returned by the recommendation engine when the target user
// has no rating vector.
var ErrUnknownUser = errors.New("unknown user")

// UserFailureError is a permanent, per-user failure. The user is excluded and
// never retried.
type UserFailureError struct {
	User   UserID
	Reason FailureReason
	// Status is the HTTP status code, zero when the failure was not an HTTP error.
	Status int
}

func (e *UserFailureError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("user %q: %s (status %d)", e.User, e.Reason, e.Status)
	}
	return fmt.Sprintf("user %q: %s", e.User, e.Reason)
}

// PersistenceError reports a checkpoint that could not be written after
// bounded retries. It is fatal for the run.
type PersistenceError struct {
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkpoint failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is a permanent per-user failure and returns it.
func IsPermanent(err error) (*UserFailureError, bool) {
	var ufe *UserFailureError
	if errors.As(err, &ufe) {
		return ufe, true
	}
	return nil, false
}
