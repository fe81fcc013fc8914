package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()

	svc, err := NewService(testSecret, time.Hour, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewService(t *testing.T) {
	t.Parallel()

	t.Run("valid secret", func(t *testing.T) {
		t.Parallel()

		svc, err := NewService(testSecret, time.Hour)
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("empty secret", func(t *testing.T) {
		t.Parallel()

		svc, err := NewService("", time.Hour)
		assert.ErrorIs(t, err, ErrEmptySecret)
		assert.Nil(t, svc)
	})
}

func TestService_IssueAndVerify(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, WithIssuer("tuition-gateway"))

	tokenString, err := svc.Issue("admin1", "admin")
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(tokenString, ".")))

	claims, err := svc.Verify(tokenString)
	require.NoError(t, err)

	assert.Equal(t, "admin1", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "tuition-gateway", claims.Issuer)
	assert.NotEmpty(t, claims.JWTID)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestService_Verify_Malformed(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{
			name:  "empty token",
			token: "",
			want:  ErrEmptyToken,
		},
		{
			name:  "missing segments",
			token: "not-a-token",
			want:  ErrTokenMalformed,
		},
		{
			name:  "two segments only",
			token: "aGVhZGVy.cGF5bG9hZA",
			want:  ErrTokenMalformed,
		},
		{
			name:  "invalid base64 header",
			token: "!!!.cGF5bG9hZA.c2ln",
			want:  ErrTokenMalformed,
		},
		{
			name:  "header is not json",
			token: "bm90anNvbg.cGF5bG9hZA.c2ln",
			want:  ErrTokenMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_Verify_TamperedPayload(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	tokenString, err := svc.Issue("bank1", "bank")
	require.NoError(t, err)

	// Swap the payload for one minted with a different role but keep
	// the original signature.
	other, err := svc.Issue("bank1", "admin")
	require.NoError(t, err)

	origParts := strings.Split(tokenString, ".")
	otherParts := strings.Split(other, ".")
	tampered := origParts[0] + "." + otherParts[1] + "." + origParts[2]

	_, err = svc.Verify(tampered)
	assert.ErrorIs(t, err, ErrTokenInvalidSignature)
	assert.True(t, IsSignatureError(err))
}

func TestService_Verify_WrongSecret(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	otherSvc, err := NewService("a-different-secret", time.Hour)
	require.NoError(t, err)

	tokenString, err := otherSvc.Issue("admin1", "admin")
	require.NoError(t, err)

	_, err = svc.Verify(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalidSignature)
}

func TestService_Verify_Expired(t *testing.T) {
	t.Parallel()

	issued := time.Now().Add(-2 * time.Hour)
	svc := newTestService(t, WithClock(func() time.Time { return issued }))

	tokenString, err := svc.Issue("admin1", "admin")
	require.NoError(t, err)

	// Advance the clock past the one hour TTL.
	live := newTestService(t)
	_, err = live.Verify(tokenString)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.True(t, IsExpiredError(err))
}

func TestService_Verify_ExpiredWithinSkew(t *testing.T) {
	t.Parallel()

	issued := time.Now().Add(-61 * time.Minute)
	svc := newTestService(t, WithClock(func() time.Time { return issued }))

	tokenString, err := svc.Issue("admin1", "admin")
	require.NoError(t, err)

	// One minute past expiry is tolerated with a two minute skew.
	skewed := newTestService(t, WithClockSkew(2*time.Minute))
	_, err = skewed.Verify(tokenString)
	assert.NoError(t, err)
}

func TestService_Verify_UnsupportedAlgorithm(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	// Mint a token whose header declares "none".
	header := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0" // {"alg":"none","typ":"JWT"}
	payload := "eyJzdWIiOiJhZG1pbjEifQ"             // {"sub":"admin1"}

	_, err := svc.Verify(header + "." + payload + ".")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestClaims_HasRole(t *testing.T) {
	t.Parallel()

	claims := &Claims{Role: "admin"}

	assert.True(t, claims.HasRole("admin"))
	assert.False(t, claims.HasRole("bank"))
	assert.False(t, (&Claims{}).HasRole(""))
}
