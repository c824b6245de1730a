package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrMediaRead means the video could not be opened or decoded at all.
	// The run fails with zero frames.
	ErrMediaRead = errors.New("media cannot be opened or decoded")

	// ErrPersistence means a counter or result store read/write failed.
	// Fatal to the current run; the caller may retry the whole run.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound means the referenced record does not exist.
	ErrNotFound = errors.New("not found")
)

// RetryableError marks a run failure that should be redelivered. Attempt is
// the run's own attempt count; a plain nack does not increment any broker
// header, so backoff has to be derived from here.
type RetryableError struct {
	Attempt int
	Err     error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.Attempt, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }
