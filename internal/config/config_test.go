package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()

	assert.Equal(t, ":4000", cfg.Server.ListenAddress)
	assert.Equal(t, "http://localhost:3000", cfg.Upstream.URL)
	assert.Equal(t, int64(20), cfg.RateLimit.Requests)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window.Duration())
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL.Duration())
	assert.Len(t, cfg.Auth.Users, 2)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default",
			modify: func(c *Config) {},
		},
		{
			name: "missing listen address",
			modify: func(c *Config) {
				c.Server.ListenAddress = ""
			},
			wantErr: "server.listenAddress",
		},
		{
			name: "missing upstream url",
			modify: func(c *Config) {
				c.Upstream.URL = ""
			},
			wantErr: "upstream.url is required",
		},
		{
			name: "upstream url bad scheme",
			modify: func(c *Config) {
				c.Upstream.URL = "ftp://example.com"
			},
			wantErr: "http or https",
		},
		{
			name: "missing jwt secret",
			modify: func(c *Config) {
				c.Auth.JWTSecret = ""
			},
			wantErr: "auth.jwtSecret",
		},
		{
			name: "non-positive token ttl",
			modify: func(c *Config) {
				c.Auth.TokenTTL = 0
			},
			wantErr: "auth.tokenTTL",
		},
		{
			name: "user without role",
			modify: func(c *Config) {
				c.Auth.Users = []UserConfig{{Username: "x", Password: "y"}}
			},
			wantErr: "role is required",
		},
		{
			name: "zero rate limit requests",
			modify: func(c *Config) {
				c.RateLimit.Requests = 0
			},
			wantErr: "rateLimit.requests",
		},
		{
			name: "unknown rate limit store",
			modify: func(c *Config) {
				c.RateLimit.Store = "etcd"
			},
			wantErr: "memory or redis",
		},
		{
			name: "redis store without address",
			modify: func(c *Config) {
				c.RateLimit.Store = "redis"
				c.RateLimit.Redis.Address = ""
			},
			wantErr: "rateLimit.redis.address",
		},
		{
			name: "rate limit disabled skips limit checks",
			modify: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.Requests = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, ":4000", cfg.Server.ListenAddress)
	assert.Equal(t, "http://localhost:3000", cfg.Upstream.URL)
	assert.Equal(t, int64(20), cfg.RateLimit.Requests)
	assert.Equal(t, "memory", cfg.RateLimit.Store)
	assert.Equal(t, time.Minute, cfg.RateLimit.CleanupInterval.Duration())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "gateway", cfg.Metrics.Namespace)
}

func TestConfig_ApplyDefaultsPreservesValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Server:    ServerConfig{ListenAddress: ":8080"},
		RateLimit: RateLimitConfig{Requests: 5},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.Equal(t, int64(5), cfg.RateLimit.Requests)
}
