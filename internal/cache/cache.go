// Package cache holds the most recently fetched entity list per resource.
//
// Every successful mutation invalidates the affected list and refetches it
// in full. Fetches for the same list share one request, and a fetch result
// is only stored when nothing was written to that list after the fetch
// began, so a slow response never overwrites newer state.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/DukeRupert/fazenda/internal/metrics"
)

// fetchTimeout bounds a shared fetch once no caller is waiting on it.
const fetchTimeout = 30 * time.Second

// ErrUnknownResource is returned for names that were never registered.
var ErrUnknownResource = errors.New("cache: unknown resource")

// Loader fetches the full list for one resource.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	value     any
	fetchedAt time.Time
}

// Cache is an in-memory entity cache keyed by resource name.
type Cache struct {
	mu       sync.Mutex
	loaders  map[string]Loader
	entries  map[string]entry
	versions map[string]uint64
	group    singleflight.Group
	logger   *slog.Logger
}

// New creates an empty cache.
func New(logger *slog.Logger) *Cache {
	return &Cache{
		loaders:  make(map[string]Loader),
		entries:  make(map[string]entry),
		versions: make(map[string]uint64),
		logger:   logger,
	}
}

// Register sets the loader used to fetch name.
func (c *Cache) Register(name string, load Loader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaders[name] = load
}

// Get returns the cached list for name, fetching it when absent.
func (c *Cache) Get(ctx context.Context, name string) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[name]; ok {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()
	return c.fetch(ctx, name)
}

// Peek returns the cached list without fetching.
func (c *Cache) Peek(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	return e.value, ok
}

// Replace stores v as the current list, typically an optimistic edit or a
// rollback snapshot. Fetches already in flight will not overwrite it.
func (c *Cache) Replace(name string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[name]++
	c.entries[name] = entry{value: v, fetchedAt: time.Now()}
}

// Invalidate drops the cached list and refetches it. When the refetch fails
// the list stays dropped and the next Get tries again.
func (c *Cache) Invalidate(ctx context.Context, name string) error {
	c.mu.Lock()
	c.versions[name]++
	delete(c.entries, name)
	c.mu.Unlock()

	c.logger.Debug("cache invalidated", "resource", name)

	_, err := c.fetch(ctx, name)
	return err
}

// FetchedAt reports when the list for name was last stored.
func (c *Cache) FetchedAt(name string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	return e.fetchedAt, ok
}

func (c *Cache) fetch(ctx context.Context, name string) (any, error) {
	c.mu.Lock()
	load, ok := c.loaders[name]
	version := c.versions[name]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}

	// Callers that start at the same version share one request. A caller
	// whose ctx ends stops waiting; the request carries on for the others.
	key := name + "#" + strconv.FormatUint(version, 10)
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		start := time.Now()
		v, err := load(fetchCtx)
		metrics.CacheRefreshed(name, err)
		if err != nil {
			c.logger.Warn("cache refresh failed", "resource", name, "error", err)
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.versions[name] != version {
			metrics.CacheStaleDiscarded(name)
			c.logger.Debug("cache refresh discarded", "resource", name)
			if e, ok := c.entries[name]; ok {
				return e.value, nil
			}
			return v, nil
		}
		c.entries[name] = entry{value: v, fetchedAt: time.Now()}
		c.logger.Debug("cache refreshed",
			"resource", name,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
