// internal/cache/cache.go
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxEntries bounds a cache created with a non-positive size.
	DefaultMaxEntries = 1024
	// DefaultTTL is used when Set is called with a non-positive ttl.
	DefaultTTL = 5 * time.Minute
	// DefaultSweepInterval is how often expired entries are purged.
	DefaultSweepInterval = time.Minute
)

// Cache defines the interface for keyed TTL caches.
//
// Implementations should provide efficient retrieval and eviction strategies.
// Common implementations include:
//   - MemoryCache: In-memory cache with LRU eviction
type Cache[V any] interface {
	// Get retrieves a cached value by key.
	// Returns the value and a boolean indicating if a live entry was found.
	Get(key string) (V, bool)

	// Set stores a value with the specified TTL.
	// If the key already exists, it is updated.
	Set(key string, value V, ttl time.Duration) error

	// Delete removes a cached value by key.
	// Should not error if the key doesn't exist.
	Delete(key string) error

	// Clear removes all cached values.
	Clear() error

	// Close stops background goroutines.
	Close()
}

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	Evictions  uint64  `json:"evictions"`
	HitRate    float64 `json:"hit_rate"`
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// MemoryCache is an in-memory TTL cache with LRU eviction.
type MemoryCache[V any] struct {
	store      map[string]*list.Element
	lru        *list.List
	mu         sync.Mutex
	maxEntries int
	now        func() time.Time
	cancel     context.CancelFunc
	closeOnce  sync.Once
	hits       uint64
	misses     uint64
	evictions  uint64
}

// NewMemoryCache creates a cache holding at most maxEntries live values.
// A background goroutine purges expired entries every sweep interval;
// a non-positive sweep disables it.
func NewMemoryCache[V any](maxEntries int, sweep time.Duration) *MemoryCache[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &MemoryCache[V]{
		store:      make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
		cancel:     cancel,
	}

	if sweep > 0 {
		go c.sweepExpired(ctx, sweep)
	}
	return c
}

// Get returns the value for key and moves it to the front of the LRU list.
// Expired entries are removed on access.
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.store[key]
	if !ok {
		c.misses++
		return zero, false
	}

	e := el.Value.(*entry[V])
	if c.now().After(e.expiresAt) {
		c.removeElement(el)
		c.misses++
		return zero, false
	}

	c.lru.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when full.
func (c *MemoryCache[V]) Set(key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if el, ok := c.store[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.lru.MoveToFront(el)
		return nil
	}

	for c.lru.Len() >= c.maxEntries {
		c.evictLRU()
	}

	el := c.lru.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
	c.store[key] = el
	return nil
}

// Delete removes key if present.
func (c *MemoryCache[V]) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.store[key]; ok {
		c.removeElement(el)
	}
	return nil
}

// Clear drops every entry and resets the counters.
func (c *MemoryCache[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = make(map[string]*list.Element)
	c.lru = list.New()
	c.hits, c.misses, c.evictions = 0, 0, 0
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (c *MemoryCache[V]) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		log.Debug().Msg("Cache closed")
	})
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns cache statistics including hit rate.
func (c *MemoryCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Entries:    c.lru.Len(),
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// evictLRU must be called with the lock held.
func (c *MemoryCache[V]) evictLRU() {
	el := c.lru.Back()
	if el == nil {
		return
	}
	c.removeElement(el)
	c.evictions++
}

// removeElement must be called with the lock held.
func (c *MemoryCache[V]) removeElement(el *list.Element) {
	e := el.Value.(*entry[V])
	c.lru.Remove(el)
	delete(c.store, e.key)
}

func (c *MemoryCache[V]) purgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	var next *list.Element
	for el := c.lru.Front(); el != nil; el = next {
		next = el.Next()
		if now.After(el.Value.(*entry[V]).expiresAt) {
			c.removeElement(el)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache[V]) sweepExpired(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.purgeExpired(); n > 0 {
				log.Debug().Int("removed", n).Msg("Purged expired cache entries")
			}
		case <-ctx.Done():
			return
		}
	}
}
