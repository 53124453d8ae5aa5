package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisCache хранит прибытия по остановке общими для всех воркеров.
type RedisCache struct {
	c      *redis.Client
	prefix string
}

func New(addr string) *RedisCache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr}), "busnoti:")
}

func NewWithClient(c *redis.Client, prefix string) *RedisCache {
	return &RedisCache{c: c, prefix: prefix}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.c.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.c.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Ping: проверка готовности для /readyz.
func (r *RedisCache) Ping(ctx context.Context) error {
	return errors.Wrap(r.c.Ping(ctx).Err(), "redis ping")
}

func (r *RedisCache) Close() error {
	return r.c.Close()
}
