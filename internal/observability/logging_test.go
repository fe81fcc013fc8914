package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.NotEmpty(t, cfg.TimeFormat)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  LogConfig
		wantErr bool
	}{
		{
			name:    "default config",
			config:  DefaultLogConfig(),
			wantErr: false,
		},
		{
			name: "console format",
			config: LogConfig{
				Level:  "debug",
				Format: "console",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "stderr output",
			config: LogConfig{
				Level:  "info",
				Format: "json",
				Output: "stderr",
			},
			wantErr: false,
		},
		{
			name: "invalid level",
			config: LogConfig{
				Level:  "invalid",
				Format: "json",
				Output: "stdout",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.config)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, logger)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	t.Parallel()

	logger := NopLogger()
	child := logger.With(String("component", "test"))

	require.NotNil(t, child)
	assert.NotSame(t, logger, child)
}

func TestLogger_WithContext(t *testing.T) {
	t.Parallel()

	logger := NopLogger()

	t.Run("empty context returns same logger", func(t *testing.T) {
		t.Parallel()

		child := logger.WithContext(context.Background())
		assert.Same(t, logger, child)
	})

	t.Run("request id produces child logger", func(t *testing.T) {
		t.Parallel()

		ctx := ContextWithRequestID(context.Background(), "req-123")
		child := logger.WithContext(ctx)
		assert.NotSame(t, logger, child)
	})
}

func TestContextRequestID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "abc-123")
	assert.Equal(t, "abc-123", RequestIDFromContext(ctx))
}

func TestContextClientID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, ClientIDFromContext(ctx))

	ctx = ContextWithClientID(ctx, "10.0.0.1")
	assert.Equal(t, "10.0.0.1", ClientIDFromContext(ctx))
}

func TestGlobalLogger(t *testing.T) {
	logger := NopLogger()
	SetGlobalLogger(logger)

	assert.Same(t, logger, GetGlobalLogger())
	assert.Same(t, logger, L())
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	logger := NopLogger()
	require.NotNil(t, logger)

	// Should not panic
	logger.Debug("debug")
	logger.Info("info", String("key", "value"))
	logger.Warn("warn")
	logger.Error("error", Error(assert.AnError))
	assert.NoError(t, logger.Sync())
}
