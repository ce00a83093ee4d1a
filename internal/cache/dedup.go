// Package cache holds the inbound-event deduplication cache.
package cache

import (
	"container/heap"
	"sync"
	"time"
)

// DefaultTTL is how long a processed event id is remembered
const DefaultTTL = 60 * time.Second

// Stats describes the cache contents
type Stats struct {
	Entries int `json:"entries"`
}

type expiry struct {
	key string
	at  time.Time
}

// expiryHeap is a min-heap ordered by deadline
type expiryHeap []expiry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h expiryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x any)        { *h = append(*h, x.(expiry)) }
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// DedupCache remembers (sender, event id) pairs for a short window.
// Expired entries are dropped lazily on access, on insert, and by Sweep.
type DedupCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	order   expiryHeap
	ttl     time.Duration
	now     func() time.Time
}

// NewDedupCache creates a cache with the given default TTL (DefaultTTL if zero)
func NewDedupCache(ttl time.Duration) *DedupCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DedupCache{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (c *DedupCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// TTL returns the default entry lifetime
func (c *DedupCache) TTL() time.Duration {
	return c.ttl
}

func key(sender, eventID string) string {
	return sender + eventID
}

// IsProcessed reports whether the event was marked within its TTL
func (c *DedupCache) IsProcessed(sender, eventID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(key(sender, eventID), c.now())
}

// MarkProcessed records the event; ttl <= 0 uses the cache default
func (c *DedupCache) MarkProcessed(sender, eventID string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.evictLocked(now)
	c.insertLocked(key(sender, eventID), now, ttl)
}

// MarkIfNew atomically checks and marks the event. It returns false when the
// event was already seen inside its window.
func (c *DedupCache) MarkIfNew(sender, eventID string, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	k := key(sender, eventID)
	if c.liveLocked(k, now) {
		return false
	}
	c.evictLocked(now)
	c.insertLocked(k, now, ttl)
	return true
}

// Sweep removes every expired entry and returns how many were dropped
func (c *DedupCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked(c.now())
}

// Clear drops all entries
func (c *DedupCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]time.Time)
	c.order = nil
}

// Stats returns the current entry count, including not-yet-swept expired ones
func (c *DedupCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: len(c.entries)}
}

func (c *DedupCache) liveLocked(k string, now time.Time) bool {
	at, ok := c.entries[k]
	if !ok {
		return false
	}
	if now.After(at) {
		delete(c.entries, k)
		return false
	}
	return true
}

func (c *DedupCache) insertLocked(k string, now time.Time, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	at := now.Add(ttl)
	c.entries[k] = at
	heap.Push(&c.order, expiry{key: k, at: at})
}

// evictLocked pops deadlines that have passed. A heap item whose deadline no
// longer matches the map was superseded by a re-insert and is discarded.
func (c *DedupCache) evictLocked(now time.Time) int {
	removed := 0
	for c.order.Len() > 0 && now.After(c.order[0].at) {
		item := heap.Pop(&c.order).(expiry)
		if at, ok := c.entries[item.key]; ok && at.Equal(item.at) {
			delete(c.entries, item.key)
			removed++
		}
	}
	return removed
}
