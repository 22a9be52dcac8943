// Package retry provides the shared backoff policy used for every
// collaborator call in the pipeline: bounded attempts, exponential
// delay with jitter, and early exit on permanent errors.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy describes how a failing call is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy matches the attempt budget the pipeline uses when the
// config does not override it.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: time.Minute}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do stops retrying immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked non-retryable.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do runs fn up to MaxAttempts times, sleeping between attempts with
// exponential backoff plus up to 50% jitter. It returns nil on the
// first success, the unwrapped error when fn reports a permanent
// failure, and the last error when the attempt budget is exhausted.
// The context cancels waiting between attempts.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
		if attempt == attempts {
			break
		}

		select {
		case <-time.After(p.delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// delay computes the backoff before the next attempt. attempt is
// 1-based, so the first retry waits roughly BaseDelay.
func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	d := base << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	// up to 50% jitter so concurrent sessions do not retry in lockstep
	jitter := time.Duration(rand.Int63n(int64(d)/2 + 1))
	return d + jitter
}
