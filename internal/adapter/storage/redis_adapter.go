package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	localKeyPrefix       = "local:"
	idempotencyKeyPrefix = "idem:"
	idempotencyKeyTTL    = 24 * time.Hour
)

// RedisAdapter backs the local store and the idempotency keys with Redis.
type RedisAdapter struct {
	client     *redis.Client
	prefix     string
	idemPrefix string
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client, prefix: localKeyPrefix, idemPrefix: idempotencyKeyPrefix}
}

// WithNamespace scopes local store and idempotency keys, e.g. per shopper.
func (r *RedisAdapter) WithNamespace(ns string) *RedisAdapter {
	return &RedisAdapter{
		client:     r.client,
		prefix:     localKeyPrefix + ns + ":",
		idemPrefix: idempotencyKeyPrefix + ns + ":",
	}
}

func (r *RedisAdapter) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisAdapter) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *RedisAdapter) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.idemPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.idemPrefix+key).Err()
}
