// Package ratelimit implements fixed-window counters backed by Redis, used to
// bound registration and guest-token issuance by client IP.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts events per key using Redis INCR + EXPIRE.
type Limiter struct {
	redis  *redis.Client
	prefix string
	max    int
	window time.Duration
}

// New creates a Limiter. max is the number of events allowed per key within
// the given window.
func New(rdb *redis.Client, prefix string, max int, window time.Duration) *Limiter {
	return &Limiter{redis: rdb, prefix: prefix, max: max, window: window}
}

// Result holds the outcome of a rate limit check.
type Result struct {
	Allowed        bool
	Remaining      int
	RetryAfterSecs int
}

// Allow increments the counter for key and reports whether the caller stayed
// under the limit. The counter for a fresh key expires after window.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	fullKey := fmt.Sprintf("%s:%s", l.prefix, key)

	count, err := l.redis.Incr(ctx, fullKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("incrementing rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, fullKey, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("setting rate limit expiry: %w", err)
		}
	}

	if count > int64(l.max) {
		ttl, err := l.redis.TTL(ctx, fullKey).Result()
		if err != nil || ttl < 0 {
			ttl = l.window
		}
		return Result{Allowed: false, Remaining: 0, RetryAfterSecs: int(ttl.Seconds()) + 1}, nil
	}

	return Result{Allowed: true, Remaining: l.max - int(count)}, nil
}

// Reset clears the counter for a key, e.g. after a successful attempt that
// should not continue to count against a caller.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	fullKey := fmt.Sprintf("%s:%s", l.prefix, key)
	if err := l.redis.Del(ctx, fullKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("resetting rate limit counter: %w", err)
	}
	return nil
}
