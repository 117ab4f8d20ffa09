// Copyright (c) 2025 BVK Chaitanya

package quote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	price     float64
	expiresAt time.Time
}

// Cache wraps a Fetcher and remembers successful prices per symbol for a TTL,
// so sessions watching the same ticker share upstream requests. Failures are
// never cached. Concurrent misses for the same symbol are collapsed into one
// upstream call.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	items map[string]cacheEntry
}

// NewCache returns a caching Fetcher. A non-positive ttl disables caching but
// still collapses concurrent requests for the same symbol.
func NewCache(f Fetcher, ttl time.Duration) *Cache {
	return &Cache{
		fetcher: f,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]cacheEntry),
	}
}

func (c *Cache) lookup(symbol string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[symbol]
	if !ok {
		return 0, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.items, symbol)
		return 0, false
	}
	return e.price, true
}

func (c *Cache) Fetch(ctx context.Context, symbol string) (float64, error) {
	if price, ok := c.lookup(symbol); ok {
		return price, nil
	}

	// The upstream call is shared by all waiters, so it must not be canceled
	// by the caller that happened to start it.
	fctx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(symbol, func() (any, error) {
		price, err := c.fetcher.Fetch(fctx, symbol)
		if err != nil {
			return 0.0, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.items[symbol] = cacheEntry{price: price, expiresAt: c.now().Add(c.ttl)}
			c.mu.Unlock()
			slog.Debug("cached a fresh price", "symbol", symbol, "price", price, "ttl", c.ttl)
		}
		return price, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(float64), nil
	case <-ctx.Done():
		return 0, context.Cause(ctx)
	}
}
