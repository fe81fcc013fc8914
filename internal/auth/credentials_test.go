package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melisa-sener/tuition-payment-api/internal/config"
)

func newTestStore() *StaticStore {
	return NewStaticStore([]config.UserConfig{
		{Username: "admin1", Password: "adminpass", Role: "admin"},
		{Username: "bank1", Password: "bankpass", Role: "Bank"},
	})
}

func TestStaticStore_Authenticate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		password string
		wantRole string
		wantErr  bool
	}{
		{
			name:     "valid admin credentials",
			username: "admin1",
			password: "adminpass",
			wantRole: RoleAdmin,
		},
		{
			name:     "valid bank credentials with role normalized",
			username: "bank1",
			password: "bankpass",
			wantRole: RoleBank,
		},
		{
			name:     "wrong password",
			username: "admin1",
			password: "wrong",
			wantErr:  true,
		},
		{
			name:     "unknown user",
			username: "ghost",
			password: "whatever",
			wantErr:  true,
		},
		{
			name:     "empty credentials",
			username: "",
			password: "",
			wantErr:  true,
		},
	}

	store := newTestStore()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			user, err := store.Authenticate(tt.username, tt.password)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCredentials)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.username, user.Username)
			assert.Equal(t, tt.wantRole, user.Role)
		})
	}
}

func TestStaticStore_PasswordNotCrossUser(t *testing.T) {
	t.Parallel()

	store := newTestStore()

	_, err := store.Authenticate("admin1", "bankpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
