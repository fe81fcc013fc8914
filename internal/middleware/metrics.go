package middleware

import (
	"net/http"
	"time"

	"github.com/melisa-sener/tuition-payment-api/internal/observability"
	"github.com/melisa-sener/tuition-payment-api/internal/router"
)

// Metrics returns a middleware recording request counts, durations and
// in-flight gauges. The route label uses the matched table pattern so
// per-student paths do not explode the cardinality.
func Metrics(metrics *observability.Metrics, table *router.Table) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			metrics.IncrementActiveRequests(r.Method)
			defer metrics.DecrementActiveRequests(r.Method)

			rw := &responseWriter{ResponseWriter: w}
			next.ServeHTTP(rw, r)

			route := ""
			if match, ok := table.Lookup(r.Method, r.URL.Path); ok {
				route = match.Route.Pattern
			}

			status := rw.status
			if status == 0 {
				status = http.StatusOK
			}

			metrics.RecordRequest(r.Method, route, status, time.Since(start))
		})
	}
}
