package cache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type ttlCache[T any] struct {
	cache *ttlcache.Cache[string, T]
}

func (c *ttlCache[T]) get(key string) (T, bool) {
	item := c.cache.Get(key)
	if item == nil {
		var empty T
		return empty, false
	}
	return item.Value(), true
}

func (c *ttlCache[T]) set(key string, data T) {
	c.cache.Set(key, data, ttlcache.DefaultTTL)
}

func (c *ttlCache[T]) delete(key string) {
	c.cache.Delete(key)
}

// Entries expire ttl after they were set. Reads do not extend the lifetime.
func NewTTLCache[T any](ttl time.Duration) *ttlCache[T] {
	entries := ttlcache.New[string, T](
		ttlcache.WithTTL[string, T](ttl),
		ttlcache.WithDisableTouchOnHit[string, T](),
	)
	go entries.Start()
	return &ttlCache[T]{cache: entries}
}
