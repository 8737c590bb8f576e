package dom

import (
	"context"
	"fmt"
	"time"
)

// DefaultPollInterval is used by WaitFor when interval is zero.
const DefaultPollInterval = 100 * time.Millisecond

// WaitFor polls q for selector until at least one element matches or
// timeout elapses. It returns the first match, ErrNotFound on timeout, and
// passes through stale and context errors.
func WaitFor(ctx context.Context, q Querier, selector string, timeout, interval time.Duration) (Node, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		nodes, err := q.QueryAll(ctx, selector)
		if err != nil {
			return nil, err
		}
		if len(nodes) > 0 {
			return nodes[0], nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("waiting for %q: %w", selector, ErrNotFound)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Until polls cond until it returns true or timeout elapses. It reports
// whether the condition was met. Errors from cond end the wait early.
func Until(ctx context.Context, timeout, interval time.Duration, cond func(context.Context) (bool, error)) (bool, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
