// Package ratelimit implements the optional per-IP burst limiter. It is a
// traffic guard only; daily quota accounting lives in package quota.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apigate-dev/restgateway/internal/config"
	"github.com/redis/go-redis/v9"
)

// Window is the fixed limiter window.
const Window = time.Minute

const keyPrefix = "gateway:burst:"

// Counter increments a windowed counter.
type Counter interface {
	IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error)
}

// RedisCounter is a Counter backed by Redis INCR + EXPIRE.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter connects to the Redis server described by cfg. It returns
// nil when no address is configured.
func NewRedisCounter(cfg config.RedisConfig) *RedisCounter {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil
	}
	return &RedisCounter{client: redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})}
}

// Ping checks connectivity.
func (r *RedisCounter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// IncrWithExpire increments key and refreshes its expiration in one pipeline.
func (r *RedisCounter) IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiration)
	if _, errExec := pipe.Exec(ctx); errExec != nil {
		return 0, fmt.Errorf("ratelimit: incr %s: %w", key, errExec)
	}
	return incr.Val(), nil
}

// Close releases the connection pool.
func (r *RedisCounter) Close() error {
	return r.client.Close()
}

// Result is the outcome of one limiter check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // Time left in the current window.
}

// Limiter allows up to limit requests per client per fixed minute window.
type Limiter struct {
	counter Counter
	limit   int
	now     func() time.Time
}

// NewLimiter builds a limiter. now defaults to time.Now.
func NewLimiter(counter Counter, limit int, now func() time.Time) (*Limiter, error) {
	if counter == nil {
		return nil, errors.New("ratelimit: counter is required")
	}
	if limit <= 0 {
		return nil, errors.New("ratelimit: limit must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{counter: counter, limit: limit, now: now}, nil
}

// Allow counts one request for client. Counter errors are returned together
// with an allowing Result so callers can fail open.
func (l *Limiter) Allow(ctx context.Context, client string) (Result, error) {
	now := l.now().UTC()
	windowStart := now.Truncate(Window)
	res := Result{
		Allowed:    true,
		Limit:      l.limit,
		Remaining:  l.limit,
		ResetAt:    windowStart.Add(Window),
		RetryAfter: windowStart.Add(Window).Sub(now),
	}

	key := fmt.Sprintf("%s%s:%d", keyPrefix, client, windowStart.Unix())
	count, errIncr := l.counter.IncrWithExpire(ctx, key, Window)
	if errIncr != nil {
		return res, errIncr
	}
	res.Remaining = l.limit - int(count)
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	res.Allowed = int(count) <= l.limit
	return res, nil
}
