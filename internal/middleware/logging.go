package middleware

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/melisa-sener/tuition-payment-api/internal/observability"
)

// responseWriter wraps http.ResponseWriter to capture status and size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(status int) {
	if rw.wroteHeader {
		return
	}
	rw.status = status
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(status)
}

// Write captures the response size.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

// Flush implements http.Flusher, needed for streamed proxy responses.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker for connection upgrades.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// RequestLog returns the access logging middleware. Every request
// emits exactly one record when the response completes, carrying
// method, path, client address, sizes, status, latency and the auth
// outcome (AUTH_FAILED exactly when the status is 401 or 403). The
// record is emitted from a defer, so requests that panic downstream
// are still logged once. Logging never fails the request.
func RequestLog(logger observability.Logger, extractor *ClientIPExtractor) Middleware {
	if extractor == nil {
		extractor = NewClientIPExtractor(nil)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w}

			defer func() {
				status := rw.status
				if status == 0 {
					// Nothing written before a panic
					// surfaced past this stage.
					status = http.StatusInternalServerError
				}

				authOutcome := AuthOutcomeOK
				if status == http.StatusUnauthorized || status == http.StatusForbidden {
					authOutcome = AuthOutcomeFailed
				}

				logger.WithContext(r.Context()).Info("gateway request",
					observability.String("method", r.Method),
					observability.String("path", r.URL.RequestURI()),
					observability.String("client_addr", extractor.Extract(r)),
					observability.Any("headers", redactHeaders(r.Header)),
					observability.Int64("req_size", r.ContentLength),
					observability.Int("status", status),
					observability.Int64("latency_ms", time.Since(start).Milliseconds()),
					observability.Int64("resp_size", rw.size),
					observability.String("auth_outcome", authOutcome),
				)
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

// redactHeaders copies request headers with credential-bearing values
// masked.
func redactHeaders(h http.Header) map[string][]string {
	redacted := make(map[string][]string, len(h))
	for name, values := range h {
		if name == HeaderAuthorization {
			redacted[name] = []string{"[REDACTED]"}
			continue
		}
		redacted[name] = values
	}
	return redacted
}
