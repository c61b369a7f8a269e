package services

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// CounterStore is the TTL-capable key/value store shared by the throttle and
// blocklist engines. Counting is fixed-window: the caller bakes the window
// bucket into the key, the store sets the expiry on the first increment of a
// window and leaves it alone afterwards.
//
// Increment must be atomic end to end. A read-then-write implementation is a
// correctness bug: concurrent requests from the same discriminator would
// slip past the limit.
type CounterStore interface {
	Increment(ctx context.Context, key string, period time.Duration) (int64, error)
	ReadFlag(ctx context.Context, key string) (bool, error)
	WriteFlag(ctx context.Context, key string, ttl time.Duration) error
	DeleteFlag(ctx context.Context, key string) error
}

// RedisCounterStore is the production store. INCR and EXPIRE NX travel in a
// single pipeline round trip, so the count-and-arm-TTL step is atomic from
// the limiter's point of view.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
}

func NewRedisCounterStore(client *redis.Client, prefix string) *RedisCounterStore {
	if prefix == "" {
		prefix = "answerhive"
	}
	return &RedisCounterStore{client: client, prefix: prefix}
}

func (s *RedisCounterStore) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, period time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, s.key(key))
	// Grace second covers clock skew between instances at the window edge.
	pipe.ExpireNX(ctx, s.key(key), period+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *RedisCounterStore) ReadFlag(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisCounterStore) WriteFlag(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), "1", ttl).Err()
}

func (s *RedisCounterStore) DeleteFlag(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// MemoryCounterStore backs single-instance and dev deployments, and tests.
// go-cache keeps per-entry expiry; the mutex makes the check-then-set on a
// fresh window atomic.
type MemoryCounterStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		cache: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (s *MemoryCounterStore) Increment(_ context.Context, key string, period time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// IncrementInt64 preserves the remaining TTL, which is exactly the
	// fixed-window behavior; Set would rearm it.
	if n, err := s.cache.IncrementInt64(key, 1); err == nil {
		return n, nil
	}
	s.cache.Set(key, int64(1), period+time.Second)
	return 1, nil
}

func (s *MemoryCounterStore) ReadFlag(_ context.Context, key string) (bool, error) {
	_, found := s.cache.Get(key)
	return found, nil
}

func (s *MemoryCounterStore) WriteFlag(_ context.Context, key string, ttl time.Duration) error {
	s.cache.Set(key, true, ttl)
	return nil
}

func (s *MemoryCounterStore) DeleteFlag(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}
