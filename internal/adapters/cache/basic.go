package cache

import "sync"

type basicCache[T any] struct {
	cache     map[string]T
	cacheLock sync.Mutex
}

func (c *basicCache[T]) get(key string) (T, bool) {
	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()

	data, ok := c.cache[key]
	return data, ok
}

func (c *basicCache[T]) set(key string, data T) {
	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()

	c.cache[key] = data
}

func (c *basicCache[T]) delete(key string) {
	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()

	delete(c.cache, key)
}

// Entries live until they are deleted
func NewBasicCache[T any]() *basicCache[T] {
	return &basicCache[T]{
		cache: make(map[string]T),
	}
}
