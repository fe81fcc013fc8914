package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/melisa-sener/tuition-payment-api/internal/observability"
)

// algHS256 is the only signing algorithm the gateway issues and accepts.
const algHS256 = "HS256"

// tokenHeader is the JOSE header of a signed token.
type tokenHeader struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}

// Service issues and verifies HMAC-SHA256 signed tokens.
type Service struct {
	secret    []byte
	ttl       time.Duration
	issuer    string
	clockSkew time.Duration
	now       func() time.Time
	logger    observability.Logger
}

// Option is a functional option for the Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger observability.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithIssuer sets the issuer claim for issued tokens.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// WithClockSkew sets the allowed clock skew for time-based claims.
func WithClockSkew(skew time.Duration) Option {
	return func(s *Service) {
		s.clockSkew = skew
	}
}

// WithClock sets the time source, used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new token service signing with the given secret.
// Issued tokens expire after ttl.
func NewService(secret string, ttl time.Duration, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	s := &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Issue creates a signed token for the given subject and role.
func (s *Service) Issue(subject, role string) (string, error) {
	now := s.now()

	claims := &Claims{
		Issuer:    s.issuer,
		Subject:   subject,
		Role:      role,
		IssuedAt:  NewTime(now),
		ExpiresAt: NewTime(now.Add(s.ttl)),
		JWTID:     uuid.New().String(),
	}

	headerJSON, err := json.Marshal(tokenHeader{
		Algorithm: algHS256,
		Type:      "JWT",
	})
	if err != nil {
		return "", err
	}

	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." +
		base64.RawURLEncoding.EncodeToString(payloadJSON)

	signature := s.sign(signingInput)

	s.logger.Debug("issued token",
		observability.String("subject", subject),
		observability.String("role", role),
	)

	return signingInput + "." + signature, nil
}

// Verify validates a token string and returns its claims.
//
// Structural and signature checks run before time-validity checks, so
// a tampered token is always reported as invalid rather than expired.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, ErrTokenMalformed
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrTokenMalformed
	}

	var header tokenHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, ErrTokenMalformed
	}

	if header.Algorithm != algHS256 {
		return nil, NewValidationError(
			"unexpected algorithm "+header.Algorithm,
			ErrUnsupportedAlgorithm,
		)
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrTokenMalformed
	}

	var claims Claims
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return nil, ErrTokenMalformed
	}

	expected := s.sign(parts[0] + "." + parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return nil, ErrTokenInvalidSignature
	}

	if err := claims.ValidAt(s.now(), s.clockSkew); err != nil {
		return nil, err
	}

	return &claims, nil
}

// sign computes the HMAC-SHA256 signature of the signing input.
func (s *Service) sign(signingInput string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(signingInput))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
