// Package cache provides a bounded in-process cache with per-entry expiry.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Clock abstracts time so expiry can be tested without sleeping
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is an LRU bounded to a fixed capacity whose entries also expire
// after ttl. It is safe for concurrent use.
type TTLCache[V any] struct {
	lru   *lru.Cache
	ttl   time.Duration
	clock Clock
}

// New creates a cache holding at most capacity entries, each living ttl.
// A zero ttl disables expiry.
func New[V any](capacity int, ttl time.Duration, clock Clock) (*TTLCache[V], error) {
	if clock == nil {
		clock = SystemClock
	}
	l, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	return &TTLCache[V]{lru: l, ttl: ttl, clock: clock}, nil
}

// MustNew is New for static configuration, it panics on a bad capacity
func MustNew[V any](capacity int, ttl time.Duration, clock Clock) *TTLCache[V] {
	c, err := New[V](capacity, ttl, clock)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the live value for key. Expired entries are evicted on read.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	raw, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	e := raw.(entry[V])
	if c.ttl > 0 && !c.clock.Now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when full
func (c *TTLCache[V]) Set(key string, value V) {
	c.lru.Add(key, entry[V]{value: value, expiresAt: c.clock.Now().Add(c.ttl)})
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Errors are not cached.
func (c *TTLCache[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

func (c *TTLCache[V]) Delete(key string) {
	c.lru.Remove(key)
}

// Len counts stored entries, expired ones included until they are read
func (c *TTLCache[V]) Len() int {
	return c.lru.Len()
}

func (c *TTLCache[V]) Purge() {
	c.lru.Purge()
}
