// Package auth provides the gateway's credential store and login flow.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/melisa-sener/tuition-payment-api/internal/config"
)

// Role constants understood by the gateway route table.
const (
	RoleAdmin = "admin"
	RoleBank  = "bank"
)

// ErrInvalidCredentials indicates that the username or password did
// not match any known user.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User is an authenticated principal.
type User struct {
	Username string
	Role     string
}

// CredentialStore authenticates username/password pairs.
type CredentialStore interface {
	// Authenticate returns the user matching the credentials or
	// ErrInvalidCredentials.
	Authenticate(username, password string) (*User, error)
}

// staticUser holds a configured credential entry.
type staticUser struct {
	password string
	role     string
}

// StaticStore is a CredentialStore backed by configured users.
type StaticStore struct {
	users map[string]staticUser
}

// NewStaticStore creates a credential store from configured users.
func NewStaticStore(users []config.UserConfig) *StaticStore {
	s := &StaticStore{
		users: make(map[string]staticUser, len(users)),
	}
	for _, u := range users {
		s.users[u.Username] = staticUser{
			password: u.Password,
			role:     strings.ToLower(u.Role),
		}
	}
	return s
}

// Authenticate checks the credentials against the configured users.
// Password comparison is constant-time.
func (s *StaticStore) Authenticate(username, password string) (*User, error) {
	entry, ok := s.users[username]
	if !ok {
		// Burn a comparison so unknown users cost the same as
		// known users with a wrong password.
		subtle.ConstantTimeCompare([]byte(password), []byte(password))
		return nil, ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare([]byte(entry.password), []byte(password)) != 1 {
		return nil, ErrInvalidCredentials
	}

	return &User{
		Username: username,
		Role:     entry.role,
	}, nil
}
