package dom

import (
	"context"
	"fmt"
	"time"
)

// Retry bounds how often a stale-sensitive operation is re-run from scratch.
type Retry struct {
	Attempts int           // total runs, including the first
	Backoff  time.Duration // delay before the second run, doubled after each
}

// DefaultRetry is used for zero-value Retry fields.
var DefaultRetry = Retry{Attempts: 3, Backoff: 250 * time.Millisecond}

func (r Retry) withDefaults() Retry {
	if r.Attempts <= 0 {
		r.Attempts = DefaultRetry.Attempts
	}
	if r.Backoff < 0 {
		r.Backoff = 0
	}
	return r
}

// Do runs fn until it succeeds, fails with a non-stale error, or the
// attempt bound is reached. The final stale error is wrapped together
// with ErrRetriesExhausted.
func (r Retry) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	r = r.withDefaults()
	delay := r.Backoff

	var err error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil || !IsStale(err) {
			return err
		}
		if attempt == r.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.Attempts, err)
}
