package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/melisa-sener/tuition-payment-api/internal/observability"
	"github.com/melisa-sener/tuition-payment-api/internal/ratelimit/store"
)

// FixedWindowLimiter implements fixed-window rate limiting. The window
// for a key is anchored at its first counted request: the counter's
// expiration starts ticking then, and when it lapses the next request
// opens a fresh window. A full burst at a window boundary can briefly
// admit up to twice the limit, which is inherent to the algorithm.
type FixedWindowLimiter struct {
	store  store.Store
	limit  int64
	window time.Duration
	logger observability.Logger
}

// FixedWindowOption is a functional option for FixedWindowLimiter.
type FixedWindowOption func(*FixedWindowLimiter)

// WithLogger sets the logger for the limiter.
func WithLogger(logger observability.Logger) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		l.logger = logger
	}
}

// NewFixedWindowLimiter creates a fixed-window limiter allowing limit
// requests per window, counting in the given store.
func NewFixedWindowLimiter(s store.Store, limit int64, window time.Duration, opts ...FixedWindowOption) (*FixedWindowLimiter, error) {
	if s == nil {
		return nil, fmt.Errorf("store is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %v", window)
	}

	l := &FixedWindowLimiter{
		store:  s,
		limit:  limit,
		window: window,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Allow implements Limiter.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN implements Limiter. Rejected requests are still counted, so a
// client hammering past the limit does not creep forward in the window.
func (l *FixedWindowLimiter) AllowN(ctx context.Context, key string, n int64) (*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("n must be positive, got %d", n)
	}

	count, err := l.store.IncrementWithExpiry(ctx, key, n, l.window)
	if err != nil {
		return nil, fmt.Errorf("rate limit increment for %q: %w", key, err)
	}

	resetAfter := l.resetAfter(ctx, key)

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:    count <= l.limit,
		Limit:      l.limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}

	if !result.Allowed {
		result.RetryAfter = resetAfter
		l.logger.Debug("rate limit exceeded",
			observability.String("key", key),
			observability.Int64("count", count),
			observability.Int64("limit", l.limit),
			observability.Duration("retry_after", result.RetryAfter),
		)
	}

	return result, nil
}

// resetAfter returns the remaining lifetime of the key's window,
// falling back to the full window length when the store cannot say.
func (l *FixedWindowLimiter) resetAfter(ctx context.Context, key string) time.Duration {
	ttl, err := l.store.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return l.window
	}
	return ttl
}

// Limit implements Limiter.
func (l *FixedWindowLimiter) Limit() int64 {
	return l.limit
}

// Window returns the configured window length.
func (l *FixedWindowLimiter) Window() time.Duration {
	return l.window
}

// Reset implements Limiter.
func (l *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	return l.store.Delete(ctx, key)
}

// Close implements Limiter.
func (l *FixedWindowLimiter) Close() error {
	return l.store.Close()
}
