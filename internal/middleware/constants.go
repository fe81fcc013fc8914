// Package middleware provides the gateway's HTTP pipeline stages.
package middleware

// HTTP header name constants.
const (
	HeaderContentType      = "Content-Type"
	HeaderAuthorization    = "Authorization"
	HeaderRetryAfter       = "Retry-After"
	HeaderRequestID        = "X-Request-ID"
	HeaderXForwardedFor    = "X-Forwarded-For"
	HeaderXRateLimitLimit  = "X-RateLimit-Limit"
	HeaderXRateLimitRemain = "X-RateLimit-Remaining"
	HeaderXRateLimitReset  = "X-RateLimit-Reset"
)

// Content type constants.
const (
	ContentTypeJSON = "application/json"
)

// JSON error bodies. The auth bodies match the upstream service's
// wording so clients see one error vocabulary end to end.
const (
	ErrBodyMissingToken      = `{"message":"Missing Bearer token"}`
	ErrBodyInvalidToken      = `{"message":"Invalid or expired token"}`
	ErrBodyForbidden         = `{"message":"Forbidden: wrong role"}`
	ErrBodyRateLimitExceeded = `{"message":"Too many requests"}`
	ErrBodyInternalError     = `{"message":"Internal server error"}`
	ErrBodyBadGateway        = `{"message":"Bad gateway"}`
	ErrBodyGatewayTimeout    = `{"message":"Gateway timeout"}`
	ErrBodyServiceUnavail    = `{"message":"Service unavailable"}`
)

// Auth outcome values recorded by the request logger.
const (
	AuthOutcomeOK     = "AUTH_OK"
	AuthOutcomeFailed = "AUTH_FAILED"
)
