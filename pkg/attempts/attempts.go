// Package attempts tracks failed admin-code attempts per client IP so that
// repeated failures within a window can lock further registration tries out.
package attempts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store records failed attempts keyed by client identifier (usually an IP)
type Store interface {
	// Record registers a failed attempt and returns the updated count
	// within the window.
	Record(ctx context.Context, key string, window time.Duration) (int, error)
	// Count returns the number of attempts currently within the window.
	Count(ctx context.Context, key string) (int, error)
	// Clear removes all recorded attempts for the key.
	Clear(ctx context.Context, key string) error
}

// MemoryStore keeps attempt timestamps in process memory. It is the
// fallback when Redis is not configured; counts reset on restart.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	window   time.Duration
}

// NewMemoryStore creates an in-memory attempt store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attempts: make(map[string][]time.Time),
	}
}

func (s *MemoryStore) Record(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.window = window
	now := time.Now()
	kept := pruneOlder(s.attempts[key], now.Add(-window))
	kept = append(kept, now)
	s.attempts[key] = kept
	return len(kept), nil
}

func (s *MemoryStore) Count(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.window <= 0 {
		return len(s.attempts[key]), nil
	}
	kept := pruneOlder(s.attempts[key], time.Now().Add(-s.window))
	if len(kept) == 0 {
		delete(s.attempts, key)
	} else {
		s.attempts[key] = kept
	}
	return len(kept), nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attempts, key)
	return nil
}

func pruneOlder(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// RedisStore keeps attempt counters in Redis so the lockout window
// survives restarts and is shared across instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed attempt store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(key string) string {
	return fmt.Sprintf("admin_attempts:%s", key)
}

func (s *RedisStore) Record(ctx context.Context, key string, window time.Duration) (int, error) {
	k := s.key(key)
	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	// The window starts at the first failure within it.
	if count == 1 {
		if err := s.client.Expire(ctx, k, window).Err(); err != nil {
			return 0, err
		}
	}
	return int(count), nil
}

func (s *RedisStore) Count(ctx context.Context, key string) (int, error) {
	val, err := s.client.Get(ctx, s.key(key)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
