package token

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderExtractor_Extract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  string
		value   string
		want    string
		wantErr error
	}{
		{
			name:   "bearer token",
			header: "Authorization",
			value:  "Bearer abc.def.ghi",
			want:   "abc.def.ghi",
		},
		{
			name:   "lowercase bearer prefix",
			header: "Authorization",
			value:  "bearer abc.def.ghi",
			want:   "abc.def.ghi",
		},
		{
			name:    "missing header",
			header:  "",
			value:   "",
			wantErr: ErrMissingHeader,
		},
		{
			name:    "wrong prefix",
			header:  "Authorization",
			value:   "Basic dXNlcjpwYXNz",
			wantErr: ErrInvalidPrefix,
		},
		{
			name:    "prefix only too short",
			header:  "Authorization",
			value:   "Bear",
			wantErr: ErrInvalidPrefix,
		},
	}

	extractor := NewHeaderExtractor("", "")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			got, err := extractor.Extract(req)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewHeaderExtractor_Defaults(t *testing.T) {
	t.Parallel()

	extractor := NewHeaderExtractor("", "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token123")

	got, err := extractor.Extract(req)
	require.NoError(t, err)
	assert.Equal(t, "token123", got)
}

func TestNewHeaderExtractor_CustomHeader(t *testing.T) {
	t.Parallel()

	extractor := NewHeaderExtractor("X-Api-Token", "Token ")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Api-Token", "Token secret")

	got, err := extractor.Extract(req)
	require.NoError(t, err)
	assert.Equal(t, "secret", got)
}
