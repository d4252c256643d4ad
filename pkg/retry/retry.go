// Package retry wraps an operation with bounded exponential backoff.
// Only errors the caller-supplied predicate classifies as retryable are
// retried; everything else fails immediately. Retry is an explicit call at
// the repository boundary, not a decorator.
package retry

import (
	"context"
	"strings"
	"time"
)

// Options controls retry behavior
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

// DefaultOptions returns options suited to transient sqlite contention
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
		Retryable:   IsTransientStorageError,
	}
}

// Do runs op, retrying retryable failures with exponential backoff until
// MaxAttempts is reached or ctx is cancelled. The last error is returned.
func Do(ctx context.Context, opts Options, op func() error) error {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	delay := opts.BaseDelay
	var err error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}

		if opts.Retryable == nil || !opts.Retryable(err) {
			return err
		}
		if attempt == opts.MaxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if opts.MaxDelay > 0 && delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
	return err
}

// IsTransientStorageError reports whether err looks like transient
// transport or lock contention rather than a constraint or syntax error.
// Constraint violations must never be retried: a UNIQUE conflict on the
// confirmation code is handled by regenerating the code, not by replaying
// the same insert.
func IsTransientStorageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "constraint"),
		strings.Contains(msg, "syntax"):
		return false
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "busy"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "i/o timeout"):
		return true
	}
	return false
}
