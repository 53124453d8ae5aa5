// Package lrucache: процессный кэш для запуска без Redis.
package lrucache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache: ограниченный по размеру LRU. У expirable.LRU один TTL на весь кэш,
// поэтому TTL записи проверяется отдельно и не превышает maxTTL.
type Cache struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

func New(size int, maxTTL time.Duration) *Cache {
	if size <= 0 {
		size = 1024
	}
	return &Cache{
		lru: expirable.NewLRU[string, entry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

func (c *Cache) Len() int { return c.lru.Len() }

// RateLimiter: фиксированное окно в памяти процесса. Окна лежат в expirable.LRU:
// размер ограничен, а TTL убирает ключи, к которым больше не обращаются.
type RateLimiter struct {
	mu      sync.Mutex
	windows *expirable.LRU[string, *window]
	now     func() time.Time
}

type window struct {
	count int64
	reset time.Time
}

const (
	limiterSize   = 4096
	limiterMaxTTL = 10 * time.Minute
)

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: expirable.NewLRU[string, *window](limiterSize, nil, limiterMaxTTL),
		now:     time.Now,
	}
}

func (rl *RateLimiter) Allow(_ context.Context, key string, limit int64, win time.Duration) (bool, int64, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)
	w, ok := rl.windows.Get(key)
	if !ok {
		w = &window{reset: now.Add(win)}
		rl.windows.Add(key, w)
	}
	w.count++
	return w.count <= limit, w.count, nil
}

// prune удаляет окна, истёкшие по часам лимитера (они могут идти не по wall clock).
func (rl *RateLimiter) prune(now time.Time) {
	for _, k := range rl.windows.Keys() {
		if w, ok := rl.windows.Peek(k); ok && !now.Before(w.reset) {
			rl.windows.Remove(k)
		}
	}
}

// Len: число живых окон.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.windows.Len()
}
