package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter ограничивает частоту обращений к апстриму региона (квоты data.go.kr общие на ключ).
type RateLimiter struct {
	c      *redis.Client
	prefix string
}

func NewRateLimiter(addr string) *RateLimiter {
	return NewRateLimiterWithClient(redis.NewClient(&redis.Options{Addr: addr}), "busnoti:rl:")
}

func NewRateLimiterWithClient(c *redis.Client, prefix string) *RateLimiter {
	return &RateLimiter{c: c, prefix: prefix}
}

// Allow делает INCR по ключу и продлевает TTL окна.
// Возвращает (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	k := rl.prefix + key
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}
