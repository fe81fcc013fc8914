// Package token implements HMAC-SHA256 signed JWT issuance and
// verification for the gateway's authentication layer.
package token

import (
	"encoding/json"
	"time"
)

// Claims represents JWT claims carried by gateway-issued tokens.
type Claims struct {
	Issuer    string `json:"iss,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Role      string `json:"role,omitempty"`
	ExpiresAt *Time  `json:"exp,omitempty"`
	NotBefore *Time  `json:"nbf,omitempty"`
	IssuedAt  *Time  `json:"iat,omitempty"`
	JWTID     string `json:"jti,omitempty"`
}

// Time is a wrapper around time.Time that marshals as unix seconds.
type Time struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	var timestamp float64
	if err := json.Unmarshal(data, &timestamp); err != nil {
		return err
	}
	t.Time = time.Unix(int64(timestamp), 0)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Unix())
}

// NewTime creates a Time from a time.Time.
func NewTime(t time.Time) *Time {
	return &Time{Time: t}
}

// HasRole reports whether the claims carry the given role.
func (c *Claims) HasRole(role string) bool {
	return c.Role != "" && c.Role == role
}

// ValidAt validates the time-based claims against the given instant
// with the allowed clock skew.
func (c *Claims) ValidAt(now time.Time, skew time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time.Add(skew)) {
		return ErrTokenExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Time.Add(-skew)) {
		return ErrTokenNotYetValid
	}

	return nil
}
