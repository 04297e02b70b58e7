package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// memo is one remembered translation.
type memo struct {
	translation string
	storedAt    time.Time
}

// MemoryStats counts lookups against an InMemoryCache.
type MemoryStats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// InMemoryCache keeps translations in process memory for the length of one
// run, or longer when the process serves HTTP. A positive TTL bounds how long
// a translation is reused; stale memos are dropped when they are read.
type InMemoryCache struct {
	mu     sync.RWMutex
	memos  map[string]memo
	ttl    time.Duration
	now    func() time.Time
	hits   atomic.Int64
	misses atomic.Int64
}

// NewInMemoryCache creates a process-local cache. ttlSeconds <= 0 keeps
// translations until Clear.
func NewInMemoryCache(ttlSeconds int) *InMemoryCache {
	c := &InMemoryCache{memos: make(map[string]memo), now: time.Now}
	if ttlSeconds > 0 {
		c.ttl = time.Duration(ttlSeconds) * time.Second
	}
	return c
}

func (c *InMemoryCache) stale(m memo) bool {
	return c.ttl > 0 && c.now().Sub(m.storedAt) > c.ttl
}

// Get returns the translation stored under key.
func (c *InMemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.RLock()
	m, ok := c.memos[key]
	c.mu.RUnlock()

	if ok && c.stale(m) {
		c.mu.Lock()
		// Another writer may have refreshed the memo since the read.
		if cur, still := c.memos[key]; still && c.stale(cur) {
			delete(c.memos, key)
		}
		c.mu.Unlock()
		ok = false
	}
	if !ok {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return m.translation, true
}

// Set remembers a validated translation. The orchestrator only stores
// translations whose protected spans survived.
func (c *InMemoryCache) Set(_ context.Context, key, translation string) error {
	c.mu.Lock()
	c.memos[key] = memo{translation: translation, storedAt: c.now()}
	c.mu.Unlock()
	return nil
}

// Len counts stored memos, stale ones included.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memos)
}

// Clear forgets every translation. Counters are kept.
func (c *InMemoryCache) Clear() {
	c.mu.Lock()
	c.memos = make(map[string]memo)
	c.mu.Unlock()
}

// Stats reports hits and misses since creation.
func (c *InMemoryCache) Stats() MemoryStats {
	return MemoryStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: c.Len()}
}

// Entries lists the live translations for export.
func (c *InMemoryCache) Entries(_ context.Context) (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	live := make(map[string]string, len(c.memos))
	for key, m := range c.memos {
		if !c.stale(m) {
			live[key] = m.translation
		}
	}
	return live, nil
}

var _ Lister = (*InMemoryCache)(nil)
