package cache

import (
	"context"
	"fmt"
	"slices"
)

// Typed is a view of one cache entry holding a []T.
type Typed[T any] struct {
	cache *Cache
	name  string
}

// Bind registers load under name and returns a typed view of the entry.
func Bind[T any](c *Cache, name string, load func(ctx context.Context) ([]T, error)) *Typed[T] {
	c.Register(name, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	return &Typed[T]{cache: c, name: name}
}

// Name returns the resource name of the entry.
func (t *Typed[T]) Name() string {
	return t.name
}

// List returns a copy of the cached list, fetching it when absent.
func (t *Typed[T]) List(ctx context.Context) ([]T, error) {
	v, err := t.cache.Get(ctx, t.name)
	if err != nil {
		return nil, err
	}
	return t.cast(v)
}

// Peek returns a copy of the cached list without fetching.
func (t *Typed[T]) Peek() ([]T, bool) {
	v, ok := t.cache.Peek(t.name)
	if !ok {
		return nil, false
	}
	items, err := t.cast(v)
	return items, err == nil
}

// Replace stores items as the current list.
func (t *Typed[T]) Replace(items []T) {
	t.cache.Replace(t.name, slices.Clone(items))
}

// Invalidate drops and refetches the list.
func (t *Typed[T]) Invalidate(ctx context.Context) error {
	return t.cache.Invalidate(ctx, t.name)
}

func (t *Typed[T]) cast(v any) ([]T, error) {
	items, ok := v.([]T)
	if !ok {
		return nil, fmt.Errorf("cache: %s holds %T", t.name, v)
	}
	return slices.Clone(items), nil
}
