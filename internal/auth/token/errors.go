package token

import (
	"errors"
	"fmt"
)

// Sentinel errors for token operations.
var (
	// ErrTokenMalformed indicates that the token is malformed.
	ErrTokenMalformed = errors.New("token is malformed")

	// ErrTokenExpired indicates that the token has expired.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenNotYetValid indicates that the token is not yet valid.
	ErrTokenNotYetValid = errors.New("token is not yet valid")

	// ErrTokenInvalidSignature indicates that the token signature is invalid.
	ErrTokenInvalidSignature = errors.New("token signature is invalid")

	// ErrUnsupportedAlgorithm indicates that the signing algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.New("signing algorithm is not supported")

	// ErrEmptyToken indicates that the token is empty.
	ErrEmptyToken = errors.New("token is empty")

	// ErrEmptySecret indicates that no signing secret was configured.
	ErrEmptySecret = errors.New("signing secret is empty")
)

// ValidationError represents a token validation error with details.
type ValidationError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("token validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("token validation error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok || errors.Is(e.Cause, target)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{
		Message: message,
		Cause:   cause,
	}
}

// IsExpiredError checks if the error indicates an expired token.
func IsExpiredError(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}

// IsSignatureError checks if the error indicates an invalid signature.
func IsSignatureError(err error) bool {
	return errors.Is(err, ErrTokenInvalidSignature)
}

// IsMalformedError checks if the error indicates a malformed token.
func IsMalformedError(err error) bool {
	return errors.Is(err, ErrTokenMalformed)
}
