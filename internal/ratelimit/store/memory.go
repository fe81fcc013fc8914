package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// maxCASRetries bounds CAS retry attempts so heavy contention cannot
// spin forever.
const maxCASRetries = 100

// defaultSweepInterval is how often expired counters are removed.
const defaultSweepInterval = time.Minute

// counter is a stored value with its expiration instant.
type counter struct {
	value     int64
	expiresAt time.Time
}

// expired reports whether the counter has passed its expiration.
func (c *counter) expired(now time.Time) bool {
	return !c.expiresAt.IsZero() && now.After(c.expiresAt)
}

// MemoryStore implements Store with process-local storage. Counters
// are kept in a sync.Map and mutated through compare-and-swap so the
// store never holds a lock across an increment.
type MemoryStore struct {
	data   sync.Map
	sweep  *time.Ticker
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewMemoryStore creates a new in-memory store with the default
// sweep interval.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithSweepInterval(defaultSweepInterval)
}

// NewMemoryStoreWithSweepInterval creates a new in-memory store that
// removes expired counters every interval.
func NewMemoryStoreWithSweepInterval(interval time.Duration) *MemoryStore {
	s := &MemoryStore{
		sweep: time.NewTicker(interval),
		done:  make(chan struct{}),
	}

	go s.runSweep()

	return s
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	value, ok := s.data.Load(key)
	if !ok {
		return 0, &ErrKeyNotFound{Key: key}
	}

	c := value.(*counter)
	if c.expired(time.Now()) {
		s.data.Delete(key)
		return 0, &ErrKeyNotFound{Key: key}
	}

	return c.value, nil
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, key string, value int64, expiration time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	s.data.Store(key, &counter{
		value:     value,
		expiresAt: expiresAt,
	})

	return nil
}

// IncrementWithExpiry implements Store. A fresh or expired key starts
// a new expiration clock; a live key keeps its original one, which is
// what anchors a fixed window at its first request.
func (s *MemoryStore) IncrementWithExpiry(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	for retries := 0; retries < maxCASRetries; retries++ {
		now := time.Now()

		var expiresAt time.Time
		if expiration > 0 {
			expiresAt = now.Add(expiration)
		}

		value, ok := s.data.Load(key)
		if !ok {
			fresh := &counter{value: delta, expiresAt: expiresAt}
			actual, loaded := s.data.LoadOrStore(key, fresh)
			if !loaded {
				return delta, nil
			}
			value = actual
		}

		c := value.(*counter)

		if c.expired(now) {
			fresh := &counter{value: delta, expiresAt: expiresAt}
			if s.data.CompareAndSwap(key, c, fresh) {
				return delta, nil
			}
			continue
		}

		next := &counter{
			value:     c.value + delta,
			expiresAt: c.expiresAt,
		}
		if s.data.CompareAndSwap(key, c, next) {
			return next.value, nil
		}
	}

	return 0, fmt.Errorf("increment with expiry failed: max retries (%d) exceeded", maxCASRetries)
}

// TTL implements Store.
func (s *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	value, ok := s.data.Load(key)
	if !ok {
		return 0, &ErrKeyNotFound{Key: key}
	}

	c := value.(*counter)
	now := time.Now()
	if c.expired(now) {
		s.data.Delete(key)
		return 0, &ErrKeyNotFound{Key: key}
	}
	if c.expiresAt.IsZero() {
		return 0, nil
	}

	return c.expiresAt.Sub(now), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.data.Delete(key)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.sweep.Stop()
	close(s.done)

	return nil
}

// runSweep periodically removes expired counters.
func (s *MemoryStore) runSweep() {
	for {
		select {
		case <-s.sweep.C:
			s.removeExpired()
		case <-s.done:
			return
		}
	}
}

// removeExpired drops every expired counter.
func (s *MemoryStore) removeExpired() {
	now := time.Now()

	s.data.Range(func(key, value interface{}) bool {
		if value.(*counter).expired(now) {
			s.data.Delete(key)
		}
		return true
	})
}

// Size returns the number of counters in the store.
func (s *MemoryStore) Size() int {
	count := 0
	s.data.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}
