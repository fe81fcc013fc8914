package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/melisa-sener/tuition-payment-api/internal/observability"
)

// RequestID returns a middleware that assigns each request a unique ID,
// reusing an incoming X-Request-ID when present. The ID is stored in
// the request context and echoed on the response.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := observability.ContextWithRequestID(r.Context(), requestID)
			w.Header().Set(HeaderRequestID, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
