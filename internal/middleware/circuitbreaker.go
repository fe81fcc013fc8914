package middleware

import (
	"errors"
	"io"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/melisa-sener/tuition-payment-api/internal/config"
	"github.com/melisa-sener/tuition-payment-api/internal/observability"
)

// CircuitBreakerStateFunc is called when the circuit breaker changes
// state. State values: 0=closed, 1=half-open, 2=open.
type CircuitBreakerStateFunc func(name string, state int)

// CircuitBreaker wraps gobreaker.CircuitBreaker around the upstream
// path so a failing tuition service sheds load fast instead of tying
// up gateway connections.
type CircuitBreaker struct {
	cb            *gobreaker.CircuitBreaker
	logger        observability.Logger
	stateCallback CircuitBreakerStateFunc
}

// CircuitBreakerOption is a functional option for the circuit breaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithCircuitBreakerLogger sets the logger for the circuit breaker.
func WithCircuitBreakerLogger(logger observability.Logger) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.logger = logger
	}
}

// WithCircuitBreakerStateCallback sets a callback for state changes.
func WithCircuitBreakerStateCallback(fn CircuitBreakerStateFunc) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.stateCallback = fn
	}
}

// NewCircuitBreaker creates a new circuit breaker from configuration.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(cb)
	}

	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 10
	}
	failureRatio := cfg.FailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.5
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval.Duration(),
		Timeout:     cfg.Timeout.Duration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && ratio >= failureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cb.logger.Info("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)

			if cb.stateCallback != nil {
				cb.stateCallback(name, int(to))
			}
		},
	}

	cb.cb = gobreaker.NewCircuitBreaker(settings)
	return cb
}

// Execute executes a function with circuit breaker protection.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.cb.Execute(fn)
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.cb.State()
}

// upstreamError marks a 5xx response as a failure for the breaker.
type upstreamError struct {
	status int
}

func (e *upstreamError) Error() string {
	return "upstream returned " + http.StatusText(e.status)
}

// CircuitBreakerMiddleware returns a middleware that routes requests
// through the breaker, counting 5xx responses as failures. While the
// breaker is open, requests are answered 503 without touching the
// upstream.
func CircuitBreakerMiddleware(cb *CircuitBreaker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w}

			_, err := cb.Execute(func() (interface{}, error) {
				next.ServeHTTP(rw, r)

				if rw.status >= http.StatusInternalServerError {
					return nil, &upstreamError{status: rw.status}
				}
				return nil, nil
			})

			if err == nil {
				return
			}

			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				cb.logger.Warn("circuit breaker rejected request",
					observability.String("path", r.URL.Path),
					observability.String("state", cb.State().String()),
				)

				if !rw.wroteHeader {
					w.Header().Set(HeaderContentType, ContentTypeJSON)
					w.WriteHeader(http.StatusServiceUnavailable)
					_, _ = io.WriteString(w, ErrBodyServiceUnavail)
				}
			}
			// For upstream 5xx the response was already written.
		})
	}
}

// CircuitBreakerFromConfig creates the circuit breaker stage from
// configuration. A disabled config yields a pass-through.
func CircuitBreakerFromConfig(
	cfg config.CircuitBreakerConfig,
	logger observability.Logger,
	opts ...CircuitBreakerOption,
) Middleware {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	allOpts := append(
		[]CircuitBreakerOption{WithCircuitBreakerLogger(logger)},
		opts...,
	)

	cb := NewCircuitBreaker("upstream", cfg, allOpts...)

	return CircuitBreakerMiddleware(cb)
}
