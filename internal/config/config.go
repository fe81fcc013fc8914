// Package config provides configuration loading and validation for the
// tuition payment gateway.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration for the gateway.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream" json:"upstream"`
	Auth      AuthConfig      `yaml:"auth" json:"auth"`
	RateLimit RateLimitConfig `yaml:"rateLimit" json:"rateLimit"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// ServerConfig holds the gateway HTTP server settings.
type ServerConfig struct {
	ListenAddress   string   `yaml:"listenAddress" json:"listenAddress"`
	ReadTimeout     Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout" json:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout" json:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

// UpstreamConfig holds the settings for the proxied tuition service.
type UpstreamConfig struct {
	URL                 string               `yaml:"url" json:"url"`
	Timeout             Duration             `yaml:"timeout" json:"timeout"`
	FlushInterval       Duration             `yaml:"flushInterval" json:"flushInterval"`
	MaxIdleConns        int                  `yaml:"maxIdleConns" json:"maxIdleConns"`
	MaxIdleConnsPerHost int                  `yaml:"maxIdleConnsPerHost" json:"maxIdleConnsPerHost"`
	CircuitBreaker      CircuitBreakerConfig `yaml:"circuitBreaker" json:"circuitBreaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for the upstream.
type CircuitBreakerConfig struct {
	Enabled      bool     `yaml:"enabled" json:"enabled"`
	MaxRequests  uint32   `yaml:"maxRequests" json:"maxRequests"`
	Interval     Duration `yaml:"interval" json:"interval"`
	Timeout      Duration `yaml:"timeout" json:"timeout"`
	MinRequests  uint32   `yaml:"minRequests" json:"minRequests"`
	FailureRatio float64  `yaml:"failureRatio" json:"failureRatio"`
}

// AuthConfig holds token signing settings and the credential store.
type AuthConfig struct {
	JWTSecret string       `yaml:"jwtSecret" json:"jwtSecret"`
	TokenTTL  Duration     `yaml:"tokenTTL" json:"tokenTTL"`
	Issuer    string       `yaml:"issuer" json:"issuer"`
	Users     []UserConfig `yaml:"users" json:"users"`
}

// UserConfig is a single credential store entry.
type UserConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Role     string `yaml:"role" json:"role"`
}

// RateLimitConfig holds fixed-window rate limiting settings.
type RateLimitConfig struct {
	Enabled         bool        `yaml:"enabled" json:"enabled"`
	Requests        int64       `yaml:"requests" json:"requests"`
	Window          Duration    `yaml:"window" json:"window"`
	Store           string      `yaml:"store" json:"store"`
	CleanupInterval Duration    `yaml:"cleanupInterval" json:"cleanupInterval"`
	TrustedProxies  []string    `yaml:"trustedProxies" json:"trustedProxies"`
	Redis           RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig holds Redis connection settings for the distributed
// rate limit store.
type RedisConfig struct {
	Address      string   `yaml:"address" json:"address"`
	Password     string   `yaml:"password" json:"password"`
	DB           int      `yaml:"db" json:"db"`
	KeyPrefix    string   `yaml:"keyPrefix" json:"keyPrefix"`
	DialTimeout  Duration `yaml:"dialTimeout" json:"dialTimeout"`
	ReadTimeout  Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout Duration `yaml:"writeTimeout" json:"writeTimeout"`
	PoolSize     int      `yaml:"poolSize" json:"poolSize"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig holds the admin metrics endpoint settings.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	ListenAddress string `yaml:"listenAddress" json:"listenAddress"`
	Namespace     string `yaml:"namespace" json:"namespace"`
}

// Default returns a Config populated with production defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:   ":4000",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
		},
		Upstream: UpstreamConfig{
			URL:                 "http://localhost:3000",
			Timeout:             Duration(30 * time.Second),
			FlushInterval:       Duration(100 * time.Millisecond),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 32,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:      false,
				MaxRequests:  5,
				Interval:     Duration(60 * time.Second),
				Timeout:      Duration(30 * time.Second),
				MinRequests:  10,
				FailureRatio: 0.5,
			},
		},
		Auth: AuthConfig{
			JWTSecret: "supersecretkey-change-me",
			TokenTTL:  Duration(time.Hour),
			Issuer:    "tuition-gateway",
			Users: []UserConfig{
				{Username: "admin1", Password: "adminpass", Role: "admin"},
				{Username: "bank1", Password: "bankpass", Role: "bank"},
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			Requests:        20,
			Window:          Duration(60 * time.Second),
			Store:           "memory",
			CleanupInterval: Duration(time.Minute),
			Redis: RedisConfig{
				Address:      "localhost:6379",
				KeyPrefix:    "ratelimit:",
				DialTimeout:  Duration(5 * time.Second),
				ReadTimeout:  Duration(3 * time.Second),
				WriteTimeout: Duration(3 * time.Second),
				PoolSize:     10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9090",
			Namespace:     "gateway",
		},
	}
}

// Validate checks the configuration for invalid or missing values.
func (c *Config) Validate() error {
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("server.listenAddress is required")
	}

	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream.url is required")
	}
	u, err := url.Parse(c.Upstream.URL)
	if err != nil {
		return fmt.Errorf("upstream.url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.url must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream.url is missing a host")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.tokenTTL must be positive")
	}
	for i, user := range c.Auth.Users {
		if user.Username == "" {
			return fmt.Errorf("auth.users[%d]: username is required", i)
		}
		if user.Password == "" {
			return fmt.Errorf("auth.users[%d]: password is required", i)
		}
		if user.Role == "" {
			return fmt.Errorf("auth.users[%d]: role is required", i)
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return fmt.Errorf("rateLimit.requests must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rateLimit.window must be positive")
		}
		switch strings.ToLower(c.RateLimit.Store) {
		case "", "memory", "redis":
		default:
			return fmt.Errorf("rateLimit.store must be memory or redis, got %q", c.RateLimit.Store)
		}
		if strings.EqualFold(c.RateLimit.Store, "redis") && c.RateLimit.Redis.Address == "" {
			return fmt.Errorf("rateLimit.redis.address is required for the redis store")
		}
	}

	return nil
}

// ApplyDefaults fills in zero values with production defaults.
func (c *Config) ApplyDefaults() {
	def := Default()

	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = def.Server.ListenAddress
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = def.Server.IdleTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}

	if c.Upstream.URL == "" {
		c.Upstream.URL = def.Upstream.URL
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = def.Upstream.Timeout
	}
	if c.Upstream.FlushInterval == 0 {
		c.Upstream.FlushInterval = def.Upstream.FlushInterval
	}
	if c.Upstream.MaxIdleConns == 0 {
		c.Upstream.MaxIdleConns = def.Upstream.MaxIdleConns
	}
	if c.Upstream.MaxIdleConnsPerHost == 0 {
		c.Upstream.MaxIdleConnsPerHost = def.Upstream.MaxIdleConnsPerHost
	}

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = def.Auth.TokenTTL
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = def.Auth.Issuer
	}

	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = def.RateLimit.Requests
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = def.RateLimit.Window
	}
	if c.RateLimit.Store == "" {
		c.RateLimit.Store = def.RateLimit.Store
	}
	if c.RateLimit.CleanupInterval == 0 {
		c.RateLimit.CleanupInterval = def.RateLimit.CleanupInterval
	}
	if c.RateLimit.Redis.KeyPrefix == "" {
		c.RateLimit.Redis.KeyPrefix = def.RateLimit.Redis.KeyPrefix
	}

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.Logging.Output == "" {
		c.Logging.Output = def.Logging.Output
	}

	if c.Metrics.ListenAddress == "" {
		c.Metrics.ListenAddress = def.Metrics.ListenAddress
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = def.Metrics.Namespace
	}
}
