// Package keepererr defines the error types returned by the merge pipeline
// and the GitHub client.
package keepererr

import (
	"fmt"
	"time"
)

// RetryableError is returned for transport level failures, e.g. 5xx
// responses or an exceeded API ratelimit.
type RetryableError struct {
	// Err is the wrapped original error
	Err error
	// After is the earliest point in time that the operation can be retried
	After time.Time
}

func NewRetryableError(originalErr error, retryAfter time.Time) *RetryableError {
	return &RetryableError{
		Err:   originalErr,
		After: retryAfter,
	}
}

func NewRetryableAnytimeError(originalErr error) *RetryableError {
	return &RetryableError{
		Err: originalErr,
	}
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func (e *RetryableError) Error() string {
	if e.After.IsZero() {
		return fmt.Sprintf("retryable error: %s", e.Err)
	}

	return fmt.Sprintf("retryable error (after %s): %s", e.After, e.Err)
}

// PendingTimeoutError is returned when a pull request did not become
// mergeable before the wait budget was used up.
type PendingTimeoutError struct {
	// Waited is the sum of all waits between polls.
	Waited time.Duration
	// Polls is the number of times the pull request was fetched.
	Polls int
	// LastState is the last observed mergeable state.
	LastState string
}

func (e *PendingTimeoutError) Error() string {
	return "pending timeout exceeded"
}

// MergeError is returned when merging a pull request failed after all
// attempts.
type MergeError struct {
	Attempts int
	Err      error
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merging failed: %s", e.Err)
}
