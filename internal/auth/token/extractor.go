package token

import (
	"errors"
	"net/http"
	"strings"
)

// Common errors for token extraction.
var (
	ErrMissingHeader = errors.New("missing authorization header")
	ErrInvalidPrefix = errors.New("invalid authorization prefix")
)

// Extractor defines the interface for extracting tokens from HTTP requests.
type Extractor interface {
	// Extract extracts a token from the request.
	Extract(r *http.Request) (string, error)
}

// HeaderExtractor extracts tokens from HTTP headers.
type HeaderExtractor struct {
	header string
	prefix string
}

// NewHeaderExtractor creates a new header extractor.
// If header is empty, it defaults to "Authorization".
// If prefix is empty, it defaults to "Bearer ".
func NewHeaderExtractor(header, prefix string) *HeaderExtractor {
	if header == "" {
		header = "Authorization"
	}
	if prefix == "" {
		prefix = "Bearer "
	}
	return &HeaderExtractor{
		header: header,
		prefix: prefix,
	}
}

// Extract extracts the token from the header.
func (e *HeaderExtractor) Extract(r *http.Request) (string, error) {
	authHeader := r.Header.Get(e.header)
	if authHeader == "" {
		return "", ErrMissingHeader
	}

	// Check prefix (case-insensitive)
	if len(authHeader) < len(e.prefix) {
		return "", ErrInvalidPrefix
	}
	if !strings.EqualFold(authHeader[:len(e.prefix)], e.prefix) {
		return "", ErrInvalidPrefix
	}

	return strings.TrimSpace(authHeader[len(e.prefix):]), nil
}
