package embed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// RateLimiter implements a token bucket for rate limiting API calls
type RateLimiter struct {
	tokens      int
	maxTokens   int
	refillRate  time.Duration
	lastRefill  time.Time
	tokensMutex sync.Mutex
}

// NewRateLimiter creates a new rate limiter with the specified parameters
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// GetToken tries to get a token from the bucket, refilling if necessary
func (r *RateLimiter) GetToken() bool {
	r.tokensMutex.Lock()
	defer r.tokensMutex.Unlock()

	// Refill tokens based on elapsed time
	now := time.Now()
	elapsed := now.Sub(r.lastRefill)
	tokensToAdd := int(elapsed / r.refillRate)

	if tokensToAdd > 0 {
		r.tokens = min(r.maxTokens, r.tokens+tokensToAdd)
		r.lastRefill = r.lastRefill.Add(time.Duration(tokensToAdd) * r.refillRate)
	}

	// Check if we have tokens available
	if r.tokens > 0 {
		r.tokens--
		return true
	}

	return false
}

// Wait blocks until a token is available or ctx is done
func (r *RateLimiter) Wait(ctx context.Context) error {
	for !r.GetToken() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.refillRate / 4):
		}
	}
	return nil
}

// RetryOptions bounds the retrying provider.
type RetryOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	Limiter    *RateLimiter
	Logger     *log.Logger
}

// Retrying wraps a Provider with rate limiting and exponential backoff
// with jitter. Only transport failures, 429 and 5xx answers are retried.
type Retrying struct {
	p    Provider
	opts RetryOptions
	log  *log.Logger
}

// WithRetry wraps p. Zero options take the defaults of five retries from a
// one second base delay.
func WithRetry(p Provider, opts RetryOptions) *Retrying {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Retrying{p: p, opts: opts, log: logger}
}

func (r *Retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= r.opts.MaxRetries; attempt++ {
		if r.opts.Limiter != nil {
			if err := r.opts.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		if attempt > 0 {
			r.log.Debug("Retrying embedding request", "attempt", attempt, "max_retries", r.opts.MaxRetries, "texts", len(texts))
		}

		vectors, err := r.p.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt == r.opts.MaxRetries {
			break
		}

		// Calculate backoff delay: baseDelay * 2^attempt with jitter
		delay := r.opts.BaseDelay * time.Duration(1<<uint(attempt))
		if half := int64(delay) / 2; half > 0 {
			delay += time.Duration(rand.Int63n(half))
		}
		r.log.Warn("Embedding request failed, backing off", "err", err, "attempt", attempt, "delay", delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", r.opts.MaxRetries+1, lastErr)
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
