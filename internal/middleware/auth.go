package middleware

import (
	"context"
	"io"
	"net/http"

	"github.com/melisa-sener/tuition-payment-api/internal/auth/token"
	"github.com/melisa-sener/tuition-payment-api/internal/observability"
	"github.com/melisa-sener/tuition-payment-api/internal/router"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// claimsContextKey is the context key for verified claims.
type claimsContextKey struct{}

// ContextWithClaims stores verified claims in the context.
func ContextWithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the verified claims, if any.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*token.Claims)
	return claims, ok
}

// AuthGuard returns the middleware enforcing the route table's role
// requirements. Public and unmatched routes pass through untouched.
// Protected routes answer 401 for missing or invalid tokens and 403
// for a wrong role; on success the verified claims are stored in the
// request context.
func AuthGuard(
	table *router.Table,
	verifier TokenVerifier,
	logger observability.Logger,
	metrics *observability.Metrics,
) Middleware {
	extractor := token.NewHeaderExtractor("", "")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			match, ok := table.Lookup(r.Method, r.URL.Path)
			if !ok || match.Route.Public() {
				next.ServeHTTP(w, r)
				return
			}

			bearer, err := extractor.Extract(r)
			if err != nil {
				recordAuthFailure(metrics, "unauthorized")
				logger.Warn("missing bearer token",
					observability.String("path", r.URL.Path),
				)
				writeJSONError(w, http.StatusUnauthorized, ErrBodyMissingToken)
				return
			}

			claims, err := verifier.Verify(bearer)
			if err != nil {
				recordAuthFailure(metrics, "unauthorized")
				logger.Warn("token rejected",
					observability.String("path", r.URL.Path),
					observability.Error(err),
				)
				writeJSONError(w, http.StatusUnauthorized, ErrBodyInvalidToken)
				return
			}

			if !claims.HasRole(match.Route.RequiredRole) {
				recordAuthFailure(metrics, "forbidden")
				logger.Warn("role rejected",
					observability.String("path", r.URL.Path),
					observability.String("subject", claims.Subject),
					observability.String("role", claims.Role),
					observability.String("required_role", match.Route.RequiredRole),
				)
				writeJSONError(w, http.StatusForbidden, ErrBodyForbidden)
				return
			}

			ctx := ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeJSONError writes a JSON error body with the given status.
func writeJSONError(w http.ResponseWriter, status int, body string) {
	w.Header().Set(HeaderContentType, ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// recordAuthFailure increments the auth failure metric when metrics
// are wired.
func recordAuthFailure(metrics *observability.Metrics, reason string) {
	if metrics != nil {
		metrics.RecordAuthFailure(reason)
	}
}
