// Package ratelimit throttles credential endpoints with a Redis fixed-window
// counter keyed by scope and client address.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the verdict for one request.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
	prefix string
}

// New returns a limiter allowing limit requests per window for each key.
func New(rdb redis.Cmdable, limit int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, window: window, prefix: "skyhaul:ratelimit"}
}

// Allow counts one request for (scope, key) and reports whether it fits in
// the current window.
func (l *Limiter) Allow(ctx context.Context, scope, key string) (Decision, error) {
	if key == "" {
		key = "unknown"
	}
	redisKey := fmt.Sprintf("%s:%s:%s", l.prefix, scope, key)

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr failed: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: expire failed: %w", err)
		}
	}

	d := Decision{Limit: l.limit, Allowed: count <= int64(l.limit)}
	if d.Allowed {
		d.Remaining = l.limit - int(count)
		return d, nil
	}

	ttl, err := l.rdb.TTL(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: ttl failed: %w", err)
	}
	if ttl < 0 {
		// counter lost its expiry; restart the window
		_ = l.rdb.Expire(ctx, redisKey, l.window).Err()
		ttl = l.window
	}
	d.RetryAfter = ttl
	return d, nil
}
