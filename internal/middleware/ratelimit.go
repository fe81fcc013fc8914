package middleware

import (
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/melisa-sener/tuition-payment-api/internal/observability"
	"github.com/melisa-sener/tuition-payment-api/internal/ratelimit"
)

// RateLimit returns a middleware enforcing the limiter per client key.
// Rejected requests get 429 with Retry-After and X-RateLimit-* headers.
// When the limiter itself fails (e.g. the Redis store is down) the
// request is allowed through and the failure logged; the gateway
// degrades to unlimited rather than refusing all traffic.
func RateLimit(
	limiter ratelimit.Limiter,
	extractor *ClientIPExtractor,
	logger observability.Logger,
	metrics *observability.Metrics,
) Middleware {
	if extractor == nil {
		extractor = NewClientIPExtractor(nil)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := extractor.Extract(r)

			result, err := limiter.Allow(r.Context(), clientKey)
			if err != nil {
				logger.Error("rate limit check failed",
					observability.String("client", clientKey),
					observability.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, result)

			if !result.Allowed {
				if metrics != nil {
					metrics.RecordRateLimitHit(r.URL.Path)
				}

				logger.Warn("rate limit exceeded",
					observability.String("client", clientKey),
					observability.String("path", r.URL.Path),
					observability.Duration("retry_after", result.RetryAfter),
				)

				w.Header().Set(HeaderRetryAfter, strconv.FormatInt(retryAfterSeconds(result), 10))
				w.Header().Set(HeaderContentType, ContentTypeJSON)
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, ErrBodyRateLimitExceeded)
				return
			}

			ctx := observability.ContextWithClientID(r.Context(), clientKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// setRateLimitHeaders writes the X-RateLimit-* response headers.
func setRateLimitHeaders(w http.ResponseWriter, result *ratelimit.Result) {
	if result.Limit < 0 {
		return
	}
	w.Header().Set(HeaderXRateLimitLimit, strconv.FormatInt(result.Limit, 10))
	w.Header().Set(HeaderXRateLimitRemain, strconv.FormatInt(result.Remaining, 10))
	w.Header().Set(HeaderXRateLimitReset, strconv.FormatInt(int64(math.Ceil(result.ResetAfter.Seconds())), 10))
}

// retryAfterSeconds converts RetryAfter to whole seconds, rounding up
// so clients never retry early.
func retryAfterSeconds(result *ratelimit.Result) int64 {
	secs := int64(math.Ceil(result.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
