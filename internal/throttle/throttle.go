package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter allows one event per key per window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

// RedisLimiter shares throttle state between processes through Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter creates a limiter storing keys under "throttle:".
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "throttle:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("throttle %s: %w", key, err)
	}
	return ok, nil
}

// MemoryLimiter keeps throttle state in process memory.
type MemoryLimiter struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		until: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.until[key]; ok && now.Before(until) {
		return false, nil
	}
	l.until[key] = now.Add(window)

	// drop expired entries so the map does not grow without bound
	for k, until := range l.until {
		if !now.Before(until) {
			delete(l.until, k)
		}
	}
	return true, nil
}
