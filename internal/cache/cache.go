package cache

import (
	"context"
	"time"
)

// BytesCache: кэш нормализованных ответов апстрима (JSON-байты по ключу).
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimiter: счётчик запросов в фиксированном окне.
// Возвращает (allowed, currentCount).
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}
