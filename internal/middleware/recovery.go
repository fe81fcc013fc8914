package middleware

import (
	"io"
	"net/http"
	"runtime/debug"

	"github.com/melisa-sener/tuition-payment-api/internal/observability"
)

// Recovery returns a middleware that recovers from panics downstream
// and answers 500. It sits outermost so the request logger below it
// still sees the response.
func Recovery(logger observability.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					stack := debug.Stack()

					logger.Error("panic recovered",
						observability.String("path", r.URL.Path),
						observability.String("method", r.Method),
						observability.Any("error", err),
						observability.String("stack", string(stack)),
					)

					w.Header().Set(HeaderContentType, ContentTypeJSON)
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = io.WriteString(w, ErrBodyInternalError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
