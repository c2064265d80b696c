package cache

// Storage for values that have been materialized
type Cache[T any] interface {
	get(key string) (T, bool)
	set(key string, data T)
	delete(key string)
}
