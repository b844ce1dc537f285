package cache

// Cache holds values by store path. Implementations are safe for concurrent
// use; a miss is never an error.
type Cache interface {
	Get(key string) (any, bool)
	Put(key string, val any)
	Delete(key string)
}

// TypedCache narrows a Cache to one value type. An entry of another type
// reads as a miss.
type TypedCache[T any] interface {
	Get(key string) (T, bool)
	Put(key string, val T)
	Delete(key string)
}

type typed[T any] struct{ c Cache }

func NewTyped[T any](c Cache) TypedCache[T] { return typed[T]{c: c} }

func (t typed[T]) Get(key string) (T, bool) {
	var zero T
	v, ok := t.c.Get(key)
	if !ok {
		return zero, false
	}
	out, ok := v.(T)
	if !ok {
		return zero, false
	}
	return out, true
}

func (t typed[T]) Put(key string, val T) { t.c.Put(key, val) }

func (t typed[T]) Delete(key string) { t.c.Delete(key) }
