package ratelimit

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/melisa-sener/tuition-payment-api/internal/config"
	"github.com/melisa-sener/tuition-payment-api/internal/observability"
	"github.com/melisa-sener/tuition-payment-api/internal/ratelimit/store"
)

// FactoryOption configures limiter construction from config.
type FactoryOption func(*factoryOptions)

type factoryOptions struct {
	registerer prometheus.Registerer
}

// WithStoreRegisterer sets the Prometheus registry that receives the
// counter store's operation metrics.
func WithStoreRegisterer(reg prometheus.Registerer) FactoryOption {
	return func(o *factoryOptions) {
		o.registerer = reg
	}
}

// NewFromConfig builds a limiter from configuration. A disabled config
// yields a NoopLimiter; otherwise the counter store is selected by
// cfg.Store ("memory" or "redis").
func NewFromConfig(cfg config.RateLimitConfig, logger observability.Logger, opts ...FactoryOption) (Limiter, error) {
	if !cfg.Enabled {
		return NewNoopLimiter(), nil
	}

	if logger == nil {
		logger = observability.NopLogger()
	}

	var fo factoryOptions
	for _, opt := range opts {
		opt(&fo)
	}

	backend, err := newStore(cfg, fo.registerer)
	if err != nil {
		return nil, err
	}

	limiter, err := NewFixedWindowLimiter(
		backend,
		cfg.Requests,
		cfg.Window.Duration(),
		WithLogger(logger),
	)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return limiter, nil
}

// newStore builds the counter store named by the configuration.
func newStore(cfg config.RateLimitConfig, reg prometheus.Registerer) (store.Store, error) {
	switch strings.ToLower(cfg.Store) {
	case "", "memory":
		if interval := cfg.CleanupInterval.Duration(); interval > 0 {
			return store.NewMemoryStoreWithSweepInterval(interval), nil
		}
		return store.NewMemoryStore(), nil

	case "redis":
		redisCfg := store.DefaultRedisConfig()
		redisCfg.Address = cfg.Redis.Address
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		if cfg.Redis.KeyPrefix != "" {
			redisCfg.Prefix = cfg.Redis.KeyPrefix
		}
		if d := cfg.Redis.DialTimeout.Duration(); d > 0 {
			redisCfg.DialTimeout = d
		}
		if d := cfg.Redis.ReadTimeout.Duration(); d > 0 {
			redisCfg.ReadTimeout = d
		}
		if d := cfg.Redis.WriteTimeout.Duration(); d > 0 {
			redisCfg.WriteTimeout = d
		}
		if cfg.Redis.PoolSize > 0 {
			redisCfg.PoolSize = cfg.Redis.PoolSize
		}
		redisCfg.Registerer = reg

		return store.NewRedisStoreWithConfig(redisCfg)

	default:
		return nil, fmt.Errorf("unknown rate limit store %q", cfg.Store)
	}
}
