package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetry marks an error as transient. Do retries f only when the returned
// error wraps ErrRetry.
var ErrRetry = errors.New("retry")

// Transient wraps err so that errors.Is(err, ErrRetry) reports true.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() []error {
	return []error{ErrRetry, e.err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRetry)
}

// Backoff is a blocking function which returns when the next attempt may start.
//
// If ctx is canceled, Backoff returns ctx.Err().
type Backoff func(context.Context) error

// StaticBackoff waits a fixed interval before every retry.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff waits initial * factor^N before the N-th retry.
func ExponentialBackoff(initial time.Duration, factor float64) Backoff {
	interval := initial
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(float64(interval) * factor)
			return nil
		}
	}
}

// Do calls f once, then up to retries more times while f returns a
// transient error, waiting on backoff between attempts.
//
// The last value and error returned by f are returned. When retries are
// exhausted the error is wrapped with the attempt count but still matches
// ErrRetry and the original cause.
func Do[T any](ctx context.Context, retries int, backoff Backoff, f func(attempt int) (T, error)) (T, error) {
	var last T
	var err error
	for attempt := 0; ; attempt++ {
		last, err = f(attempt)
		if err == nil || !IsTransient(err) {
			return last, err
		}
		if attempt >= retries {
			if retries > 0 {
				return last, fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
			}
			return last, err
		}
		if berr := backoff(ctx); berr != nil {
			return last, berr
		}
	}
}
