package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"neembleeat/internal/monitoring"
)

// DefaultStaleTime is how long a loaded entry is served without a refetch
const DefaultStaleTime = 30 * time.Second

type entry struct {
	key     Key
	value   any
	updated time.Time
	stale   bool
}

// Cache is a keyed query cache. Loads for the same key are shared while
// in flight, fresh entries are served from memory, and mutations
// invalidate by key prefix. Safe for concurrent use.
type Cache struct {
	staleTime time.Duration
	now       func() time.Time
	log       logrus.FieldLogger
	metrics   *monitoring.Metrics

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	// gen is bumped by every invalidation so loads that started before
	// it land as stale.
	gen uint64
}

// Option configures a Cache
type Option func(*Cache)

// WithStaleTime sets how long entries stay fresh. Zero means every
// Query refetches, though concurrent ones still share a load.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) { c.staleTime = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Cache) { c.log = l }
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates an empty cache
func New(opts ...Option) *Cache {
	c := &Cache{
		staleTime: DefaultStaleTime,
		now:       time.Now,
		log:       logrus.StandardLogger(),
		entries:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) fresh(k string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok || e.stale || c.now().Sub(e.updated) >= c.staleTime {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key Key, value any, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key.String()] = &entry{
		key:     key,
		value:   value,
		updated: c.now(),
		stale:   gen != c.gen,
	}
}

func (c *Cache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Query returns the cached value for key, loading it with fetch when
// the entry is missing or stale. Concurrent queries for one key share a
// single fetch. Errors are returned to every waiter and not cached.
func Query[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	k := key.String()
	if v, ok := c.fresh(k); ok {
		if typed, ok := v.(T); ok {
			c.metrics.CacheLookup(key.Resource(), true)
			return typed, nil
		}
	}
	c.metrics.CacheLookup(key.Resource(), false)

	v, err, shared := c.group.Do(k, func() (any, error) {
		// A load that finished between the check above and here
		if v, ok := c.fresh(k); ok {
			return v, nil
		}
		gen := c.generation()
		val, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, val, gen)
		return val, nil
	})
	if err != nil {
		var zero T
		c.log.WithFields(logrus.Fields{"key": key, "shared": shared}).WithError(err).Debug("cache load failed")
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: %v holds %T", key, v)
	}
	return typed, nil
}

// GetQueryData returns the cached value for key regardless of freshness
func GetQueryData[T any](c *Cache, key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key.String()]
	if !ok {
		return zero, false
	}
	typed, ok := e.value.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// SetQueryData replaces the cached value for key with update(old). It
// is the optimistic patch: the returned rollback restores what was
// there before.
func SetQueryData[T any](c *Cache, key Key, update func(old T, ok bool) T) (rollback func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key.String()
	prev, had := c.entries[k]

	var old T
	ok := false
	if had {
		old, ok = prev.value.(T)
	}
	c.entries[k] = &entry{key: key, value: update(old, ok), updated: c.now()}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if had {
			c.entries[k] = prev
		} else {
			delete(c.entries, k)
		}
	}
}

// Invalidate marks every entry under prefix stale so the next Query
// refetches. Loads already in flight resolve as stale. It returns the
// number of entries touched.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	n := 0
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.stale = true
			n++
		}
	}
	return n
}

// Remove drops every entry under prefix
func (c *Cache) Remove(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	for k, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of entries, fresh or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Mutate runs fn and, when it succeeds, invalidates every prefix in
// invalidates.
func Mutate[T any](ctx context.Context, c *Cache, fn func(context.Context) (T, error), invalidates ...Key) (T, error) {
	out, err := fn(ctx)
	if err != nil {
		return out, err
	}
	for _, p := range invalidates {
		c.Invalidate(p)
	}
	return out, nil
}
