// Package redisstore keeps short-lived storefront state in Redis: shopper
// carts, idempotent checkout responses and rate limit counters.
package redisstore

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const keyNamespace = "storefront"

// NewClient parses a redis:// URL, connects and verifies connectivity.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return rdb, nil
}

func buildKey(parts ...string) string {
	return keyNamespace + ":" + strings.Join(parts, ":")
}
