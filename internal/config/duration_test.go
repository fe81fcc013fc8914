package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_UnmarshalYAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{
			name:  "seconds",
			input: `value: "30s"`,
			want:  30 * time.Second,
		},
		{
			name:  "compound duration",
			input: `value: "1h30m"`,
			want:  90 * time.Minute,
		},
		{
			name:  "milliseconds",
			input: `value: "300ms"`,
			want:  300 * time.Millisecond,
		},
		{
			name:  "empty string",
			input: `value: ""`,
			want:  0,
		},
		{
			name:    "invalid duration",
			input:   `value: "soon"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out struct {
				Value Duration `yaml:"value"`
			}
			err := yaml.Unmarshal([]byte(tt.input), &out)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Value.Duration())
		})
	}
}

func TestDuration_MarshalYAML(t *testing.T) {
	t.Parallel()

	out, err := yaml.Marshal(struct {
		Value Duration `yaml:"value"`
	}{Value: Duration(5 * time.Minute)})

	require.NoError(t, err)
	assert.Contains(t, string(out), "5m0s")
}

func TestDuration_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))

	var d Duration
	require.NoError(t, json.Unmarshal(b, &d))
	assert.Equal(t, 90*time.Second, d.Duration())
}

func TestDuration_UnmarshalJSONNull(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, json.Unmarshal([]byte("null"), &d))
	assert.Equal(t, time.Duration(0), d.Duration())
}
