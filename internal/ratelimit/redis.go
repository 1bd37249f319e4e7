// Package ratelimit is a fixed-window request limiter backed by Redis counters.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter admits at most limit calls per key per window.
type Limiter struct {
	rdb    counter
	prefix string
	limit  int64
	window time.Duration
	logger *slog.Logger
}

func NewLimiter(rdb counter, prefix string, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{rdb: rdb, prefix: prefix, limit: int64(limit), window: window, logger: logger}
}

// Allow counts one call against key. Redis errors are returned with an allowing decision so
// callers can fail open.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := fmt.Sprintf("%s:ratelimit:%s", l.prefix, key)
	allow := Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}

	count, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return allow, fmt.Errorf("incrementing %s: %w", k, err)
	}
	// first hit opens the window
	if count == 1 {
		if err := l.rdb.Expire(ctx, k, l.window).Err(); err != nil {
			l.logger.Warn("failed to set rate limit window", "key", k, "error", err)
		}
	}

	if count > l.limit {
		ttl, err := l.rdb.TTL(ctx, k).Result()
		switch {
		case err != nil:
			ttl = l.window
		case ttl < 0:
			// the window was never set, so without this the key would block forever
			if err := l.rdb.Expire(ctx, k, l.window).Err(); err != nil {
				l.logger.Warn("failed to repair rate limit window", "key", k, "error", err)
			}
			ttl = l.window
		case ttl == 0:
			ttl = l.window
		}
		return Decision{Allowed: false, Limit: l.limit, Remaining: 0, RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit - count}, nil
}
