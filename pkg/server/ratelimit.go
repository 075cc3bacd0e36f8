package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/randalmurphal/codecanvas/pkg/config"
)

// Limiter decides whether a client address may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// NewLimiter builds the limiter selected by cfg, or nil when limiting is
// disabled.
func NewLimiter(cfg config.RateLimitConfig) (Limiter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return NewRedisLimiter(redis.NewClient(opts), cfg.Requests, cfg.Window), nil
	default:
		return NewMemoryLimiter(cfg.Requests, cfg.Window), nil
	}
}

// MemoryLimiter is a per-key fixed-window counter held in process memory. A
// key's window opens at its first request and admits limit requests until it
// has been open for window; the next request then opens a fresh window.
// Expired windows are swept once per window.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	counters  map[string]*counter
	lastSweep time.Time
}

type counter struct {
	start time.Time
	count int
}

// NewMemoryLimiter allows limit requests per window per key.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

// Allow counts one request for key against its current window.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= m.window {
		m.sweep(now)
	}

	c, ok := m.counters[key]
	if !ok || now.Sub(c.start) >= m.window {
		c = &counter{start: now}
		m.counters[key] = c
	}
	c.count++
	return c.count <= m.limit, nil
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}

// sweep drops expired windows. Caller holds mu.
func (m *MemoryLimiter) sweep(now time.Time) {
	for key, c := range m.counters {
		if now.Sub(c.start) >= m.window {
			delete(m.counters, key)
		}
	}
	m.lastSweep = now
}

// RedisLimiter is the fixed-window counter of MemoryLimiter shared by every
// replica through Redis: INCR on the key's counter, with EXPIRE set when the
// first request opens the window.
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
}

// NewRedisLimiter allows limit requests per window per key.
func NewRedisLimiter(client redis.UniversalClient, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "codecanvas:ratelimit:",
	}
}

// Allow increments the counter of key's current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.prefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("redis expire: %w", err)
		}
	}
	return count <= int64(l.limit), nil
}

// Close releases the Redis connection pool.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
