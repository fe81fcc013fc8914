package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// incrementWithExpiryScript atomically increments a counter and starts
// its expiration clock on first increment.
// KEYS[1] = key
// ARGV[1] = delta
// ARGV[2] = expiration in milliseconds
var incrementWithExpiryScript = redis.NewScript(`
	local current = redis.call('INCRBY', KEYS[1], ARGV[1])
	if current == tonumber(ARGV[1]) then
		redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return current
`)

// RedisStore implements Store using Redis, letting multiple gateway
// instances share one set of rate limit counters.
type RedisStore struct {
	client      *redis.Client
	prefix      string
	logger      *zap.Logger
	ops         *prometheus.CounterVec
	opDurations *prometheus.HistogramVec
	closed      bool
	mu          sync.Mutex
}

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ConnectRetries is the number of initial connection attempts
	// before giving up.
	ConnectRetries int

	// ConnectBackoff is the wait between initial connection attempts.
	ConnectBackoff time.Duration

	// Registerer receives the store's operation metrics. Nil leaves
	// them unregistered.
	Registerer prometheus.Registerer

	Logger *zap.Logger
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Address:        "localhost:6379",
		Password:       "",
		DB:             0,
		Prefix:         "ratelimit:",
		PoolSize:       10,
		MinIdleConns:   2,
		MaxRetries:     3,
		DialTimeout:    5 * time.Second,
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   3 * time.Second,
		ConnectRetries: 5,
		ConnectBackoff: 200 * time.Millisecond,
	}
}

// newRedisStoreMetrics builds the operation metrics and registers them
// with reg. Multiple stores sharing one registry reuse the collectors
// registered by the first.
func newRedisStoreMetrics(reg prometheus.Registerer) (*prometheus.CounterVec, *prometheus.HistogramVec) {
	ops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_store_operations_total",
			Help: "Total number of Redis store operations",
		},
		[]string{"operation", "status"},
	)

	durations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_store_operation_duration_seconds",
			Help:    "Duration of Redis store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	if reg == nil {
		return ops, durations
	}

	if err := reg.Register(ops); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			ops = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	if err := reg.Register(durations); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			durations = are.ExistingCollector.(*prometheus.HistogramVec)
		}
	}

	return ops, durations
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(addr, password string, db int, prefix string) (*RedisStore, error) {
	config := DefaultRedisConfig()
	config.Address = addr
	config.Password = password
	config.DB = db
	if prefix != "" {
		config.Prefix = prefix
	}

	return NewRedisStoreWithConfig(config)
}

// NewRedisStoreWithConfig creates a new Redis store with custom
// configuration, retrying the initial connection a bounded number of
// times with a growing backoff.
func NewRedisStoreWithConfig(config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ops, durations := newRedisStoreMetrics(config.Registerer)

	retries := config.ConnectRetries
	if retries <= 0 {
		retries = 1
	}
	backoff := config.ConnectBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
		lastErr = client.Ping(ctx).Err()
		cancel()

		if lastErr == nil {
			if attempt > 0 {
				logger.Info("redis connection established after retry",
					zap.String("address", config.Address),
					zap.Int("attempt", attempt+1),
				)
			}
			return &RedisStore{
				client:      client,
				prefix:      config.Prefix,
				logger:      logger,
				ops:         ops,
				opDurations: durations,
			}, nil
		}

		logger.Debug("redis connection failed, retrying",
			zap.String("address", config.Address),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr),
		)

		time.Sleep(backoff)
		backoff *= 2
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", retries, lastErr)
}

// prefixKey adds the prefix to the key.
func (s *RedisStore) prefixKey(key string) string {
	return s.prefix + key
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error before redis get: %w", err)
	}

	val, err := s.client.Get(ctx, s.prefixKey(key)).Result()

	s.opDurations.WithLabelValues("get").Observe(time.Since(start).Seconds())

	if errors.Is(err, redis.Nil) {
		s.ops.WithLabelValues("get", "not_found").Inc()
		return 0, &ErrKeyNotFound{Key: key}
	}
	if err != nil {
		s.ops.WithLabelValues("get", "error").Inc()
		return 0, fmt.Errorf("redis get error: %w", err)
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		s.ops.WithLabelValues("get", "error").Inc()
		return 0, fmt.Errorf("failed to parse value: %w", err)
	}

	s.ops.WithLabelValues("get", "success").Inc()
	return n, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value int64, expiration time.Duration) error {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error before redis set: %w", err)
	}

	err := s.client.Set(ctx, s.prefixKey(key), value, expiration).Err()

	s.opDurations.WithLabelValues("set").Observe(time.Since(start).Seconds())

	if err != nil {
		s.ops.WithLabelValues("set", "error").Inc()
		return fmt.Errorf("redis set error: %w", err)
	}

	s.ops.WithLabelValues("set", "success").Inc()
	return nil
}

// IncrementWithExpiry implements Store. The Lua script keeps the
// increment and the expiry start atomic so concurrent gateways agree
// on the window anchor.
func (s *RedisStore) IncrementWithExpiry(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error before redis increment: %w", err)
	}

	result, err := incrementWithExpiryScript.Run(
		ctx,
		s.client,
		[]string{s.prefixKey(key)},
		delta,
		expiration.Milliseconds(),
	).Int64()

	s.opDurations.WithLabelValues("increment_with_expiry").Observe(time.Since(start).Seconds())

	if err != nil {
		s.ops.WithLabelValues("increment_with_expiry", "error").Inc()
		return 0, fmt.Errorf("redis increment error: %w", err)
	}

	s.ops.WithLabelValues("increment_with_expiry", "success").Inc()
	return result, nil
}

// TTL implements Store.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error before redis ttl: %w", err)
	}

	ttl, err := s.client.PTTL(ctx, s.prefixKey(key)).Result()

	s.opDurations.WithLabelValues("ttl").Observe(time.Since(start).Seconds())

	if err != nil {
		s.ops.WithLabelValues("ttl", "error").Inc()
		return 0, fmt.Errorf("redis ttl error: %w", err)
	}

	// go-redis passes through PTTL's sentinel replies: -2 when the
	// key does not exist, -1 when it has no expiration.
	switch {
	case ttl == -2:
		s.ops.WithLabelValues("ttl", "not_found").Inc()
		return 0, &ErrKeyNotFound{Key: key}
	case ttl < 0:
		s.ops.WithLabelValues("ttl", "success").Inc()
		return 0, nil
	}

	s.ops.WithLabelValues("ttl", "success").Inc()
	return ttl, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error before redis delete: %w", err)
	}

	err := s.client.Del(ctx, s.prefixKey(key)).Err()

	s.opDurations.WithLabelValues("delete").Observe(time.Since(start).Seconds())

	if err != nil {
		s.ops.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("redis delete error: %w", err)
	}

	s.ops.WithLabelValues("delete", "success").Inc()
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
