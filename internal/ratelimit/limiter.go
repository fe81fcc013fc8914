// Package ratelimit implements per-client fixed-window rate limiting
// on top of a pluggable counter store.
package ratelimit

import (
	"context"
	"time"
)

// Result contains the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Limit is the configured request limit for the window.
	Limit int64

	// Remaining is the number of requests remaining in the window.
	Remaining int64

	// ResetAfter is the time until the current window resets.
	ResetAfter time.Duration

	// RetryAfter is the time to wait before retrying. Zero when the
	// request was allowed.
	RetryAfter time.Duration
}

// Limiter is the interface for rate limiting.
type Limiter interface {
	// Allow checks whether a single request for the key is allowed.
	Allow(ctx context.Context, key string) (*Result, error)

	// AllowN checks whether n requests for the key are allowed.
	AllowN(ctx context.Context, key string, n int64) (*Result, error)

	// Limit returns the configured request limit.
	Limit() int64

	// Reset clears the counter for the key.
	Reset(ctx context.Context, key string) error

	// Close releases limiter resources.
	Close() error
}

// NoopLimiter is a limiter that allows all requests.
type NoopLimiter struct{}

// NewNoopLimiter creates a limiter that never rejects.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (l *NoopLimiter) Allow(_ context.Context, _ string) (*Result, error) {
	return &Result{Allowed: true, Limit: -1, Remaining: -1}, nil
}

// AllowN implements Limiter.
func (l *NoopLimiter) AllowN(_ context.Context, _ string, _ int64) (*Result, error) {
	return &Result{Allowed: true, Limit: -1, Remaining: -1}, nil
}

// Limit implements Limiter.
func (l *NoopLimiter) Limit() int64 {
	return -1
}

// Reset implements Limiter.
func (l *NoopLimiter) Reset(_ context.Context, _ string) error {
	return nil
}

// Close implements Limiter.
func (l *NoopLimiter) Close() error {
	return nil
}
