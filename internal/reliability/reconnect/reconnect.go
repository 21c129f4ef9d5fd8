// Package reconnect retries idempotent data operations that fail with
// transient connection errors.
package reconnect

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRetriesExhausted is wrapped into the error returned when every attempt
// failed with a transient error.
var ErrRetriesExhausted = errors.New("retries exhausted")

// transientMarkers are matched case-insensitively against error messages.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"connection reset",
	"econnreset",
	"connection refused",
	"econnrefused",
	"no such host",
	"enotfound",
	"socket hang up",
	"fetch failed",
	"network error",
	"broken pipe",
	"bad connection",
	"connection closed",
}

// Options configures Do. Zero values fall back to the defaults.
type Options struct {
	// MaxRetries is the number of attempts made after the first one.
	MaxRetries int
	// BaseDelay is multiplied by the retry number to get the wait before it.
	BaseDelay time.Duration
	// OnRetry is called before each retry wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultOptions returns three retries with a one second base delay.
func DefaultOptions() Options {
	return Options{MaxRetries: 3, BaseDelay: time.Second}
}

// ExhaustedError reports the last transient error after all attempts failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrRetriesExhausted, e.Attempts, e.Err)
}

// Unwrap matches both ErrRetriesExhausted and the last error.
func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Err}
}

// IsTransient reports whether err looks like a dropped or unreachable
// connection rather than a failure of the operation itself.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Do runs op, retrying it with linearly increasing delays while it fails with
// a transient error. Non-transient errors are returned unchanged after the
// first attempt. Only idempotent operations (reads, upserts) may be passed.
func Do[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultOptions().BaseDelay
	}

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := opts.BaseDelay * time.Duration(attempt)
			if opts.OnRetry != nil {
				opts.OnRetry(attempt, lastErr, delay)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("reconnect wait: %w (last error: %w)", ctx.Err(), lastErr)
			case <-timer.C:
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, &ExhaustedError{Attempts: opts.MaxRetries + 1, Err: lastErr}
}

// Exec is Do for operations that return only an error.
func Exec(ctx context.Context, opts Options, op func(ctx context.Context) error) error {
	_, err := Do(ctx, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
