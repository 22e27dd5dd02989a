package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/rastalife/storefront/pkg/httpmiddleware"
)

// RateLimiter is a fixed-window httpmiddleware.Limiter shared by every API
// replica. Each window gets its own counter key that expires with it.
type RateLimiter struct {
	rdb    redis.Cmdable
	max    int
	window time.Duration
}

var _ httpmiddleware.Limiter = (*RateLimiter)(nil)

// NewRateLimiter allows max requests per key in each window.
func NewRateLimiter(rdb redis.Cmdable, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, max: max, window: window}
}

// Allow implements httpmiddleware.Limiter.
func (l *RateLimiter) Allow(ctx context.Context, key string, now time.Time) (httpmiddleware.Decision, error) {
	start := now.Truncate(l.window)
	d := httpmiddleware.Decision{Limit: l.max, ResetAt: start.Add(l.window)}

	k := buildKey("ratelimit", key, strconv.FormatInt(start.Unix(), 10))
	count, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return d, errors.Wrap(err, "incr")
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, k, l.window).Err(); err != nil {
			return d, errors.Wrap(err, "expire")
		}
	}

	d.Allowed = count <= int64(l.max)
	d.Remaining = max(l.max-int(count), 0)
	return d, nil
}
