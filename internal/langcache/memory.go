package langcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"origlang/internal/lookup"
)

type memoryEntry struct {
	result    *lookup.Detection
	createdAt time.Time
	expiresAt time.Time
}

// MemoryCache is a process-local LRU cache.
type MemoryCache struct {
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu       sync.Mutex
	entries  map[string]memoryEntry
	accessed map[string]uint64
	clock    uint64
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty LRU cache.
func NewMemoryCache(opts Options) *MemoryCache {
	return &MemoryCache{
		ttl:      opts.TTL,
		maxSize:  opts.MaxSize,
		now:      opts.clock(),
		entries:  make(map[string]memoryEntry),
		accessed: make(map[string]uint64),
	}
}

// touch stamps key with a logical access time so recency stays strict
// even when the wall clock does not advance between calls.
func (c *MemoryCache) touch(key string) {
	c.clock++
	c.accessed[key] = c.clock
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, q lookup.Query) (*lookup.Detection, bool) {
	key := Key(q)
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		delete(c.accessed, key)
		return nil, false
	}
	c.touch(key)
	return entry.result.Clone(), true
}

// Set implements Cache. When the cache is full and key is new, the least
// recently used entry is evicted.
func (c *MemoryCache) Set(_ context.Context, q lookup.Query, d *lookup.Detection) error {
	if d == nil {
		return errors.New("cache set: nil detection")
	}
	key := Key(q)
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLRULocked()
	}
	now := c.now()
	c.entries[key] = memoryEntry{result: d.Clone(), createdAt: now, expiresAt: now.Add(c.ttl)}
	c.touch(key)
	return nil
}

func (c *MemoryCache) evictLRULocked() {
	var (
		oldestKey string
		oldestAt  uint64
	)
	for key, at := range c.accessed {
		if oldestKey == "" || at < oldestAt {
			oldestKey, oldestAt = key, at
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		delete(c.accessed, oldestKey)
	}
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, q lookup.Query) (bool, error) {
	key := Key(q)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return false, nil
	}
	delete(c.entries, key)
	delete(c.accessed, key)
	return true, nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]memoryEntry)
	c.accessed = make(map[string]uint64)
	return n, nil
}

// Cleanup implements Cache.
func (c *MemoryCache) Cleanup(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			delete(c.accessed, key)
			removed++
		}
	}
	for c.maxSize > 0 && len(c.entries) > c.maxSize {
		c.evictLRULocked()
		removed++
	}
	return removed, nil
}

// Stats implements Cache.
func (c *MemoryCache) Stats(context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiries := make([]time.Time, 0, len(c.entries))
	for _, entry := range c.entries {
		expiries = append(expiries, entry.expiresAt)
	}
	active, expired := countActive(expiries, c.now())
	return Stats{
		Type:           TypeMemory,
		Enabled:        true,
		TotalEntries:   len(c.entries),
		ActiveEntries:  active,
		ExpiredEntries: expired,
		TTLSeconds:     c.ttl.Seconds(),
		MaxSize:        c.maxSize,
	}, nil
}

// Close implements Cache.
func (c *MemoryCache) Close() error { return nil }
