package redisstore

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/rastalife/storefront/pkg/httpmiddleware"
)

var _ httpmiddleware.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore keeps idempotency records under a namespaced key.
type IdempotencyStore struct {
	rdb redis.Cmdable
}

func NewIdempotencyStore(rdb redis.Cmdable) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.rdb.Get(ctx, buildKey(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, errors.Wrap(err, "get idempotency record")
	}
	return v, true, nil
}

func (s *IdempotencyStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, buildKey(key), value, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "reserve idempotency record")
	}
	return ok, nil
}

func (s *IdempotencyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, buildKey(key), value, ttl).Err(); err != nil {
		return errors.Wrap(err, "store idempotency record")
	}
	return nil
}

func (s *IdempotencyStore) Del(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, buildKey(key)).Err(); err != nil {
		return errors.Wrap(err, "delete idempotency record")
	}
	return nil
}
