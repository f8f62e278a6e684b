package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNetwork marks a redis dial or I/O failure. The file and null backends
// never return it.
var ErrNetwork = errors.New("network error")

// Backoff spaces connection attempts to a remote cache.
type Backoff struct {
	Attempts int
	// Delay is the wait before the second attempt. It doubles after each
	// failed attempt.
	Delay time.Duration
}

// ConnectBackoff is used when a redis cache is opened. A server that is still
// starting gets about 1.5s before the run continues without a cache.
var ConnectBackoff = Backoff{Attempts: 3, Delay: 500 * time.Millisecond}

type transientError struct{ err error }

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// Transient marks err as worth another attempt. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// IsTransient reports whether err, or anything it wraps, was marked by
// Transient.
func IsTransient(err error) bool {
	var te transientError
	return errors.As(err, &te)
}

// Retry calls fn until it succeeds, fails with an error Transient did not
// mark, or the attempts run out. Cancelling ctx ends the wait between
// attempts.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	delay := b.Delay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !IsTransient(err) || attempt >= b.Attempts {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
