// Package cache is the bounded in-memory response store shared by every fetch.
package cache

import (
	"sync"
	"time"

	"github.com/rapfii/NEXUS-Terminal-sub001/internal/metrics"
	"github.com/rapfii/NEXUS-Terminal-sub001/logger"
)

// Entry is one stored payload. Entries are never modified after Set.
type Entry struct {
	Key      string
	Payload  any
	StoredAt time.Time
	TTL      time.Duration
}

func (e *Entry) expired(now time.Time) bool {
	return now.Sub(e.StoredAt) > e.TTL
}

type Stats struct {
	Size      int    `json:"size"`
	MaxSize   int    `json:"maxSize"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Expired   uint64 `json:"expired"`
	Evictions uint64 `json:"evictions"`
}

// Cache is a TTL keyed store holding at most maxSize entries. Expiry is
// checked lazily on Get. When full, Set evicts the entry with the oldest
// StoredAt regardless of its remaining TTL.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	maxSize int
	now     func() time.Time
	stats   Stats
	log     *logger.Entry
}

func New(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache{
		entries: make(map[string]*Entry, maxSize),
		maxSize: maxSize,
		now:     time.Now,
		log:     logger.GetLogger().WithComponent("cache"),
	}
}

// Get returns the payload stored under key unless it is absent or expired.
// An expired entry is removed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		metrics.RecordCacheEvent("miss")
		return nil, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		c.stats.Misses++
		c.stats.Expired++
		metrics.RecordCacheEvent("expired")
		return nil, false
	}
	c.stats.Hits++
	metrics.RecordCacheEvent("hit")
	return e.Payload, true
}

// Set stores payload under key for ttl. Replacing an existing key never
// evicts another entry.
func (c *Cache) Set(key string, payload any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = &Entry{Key: key, Payload: payload, StoredAt: c.now(), TTL: ttl}
}

// evictOldest removes the entry with the earliest StoredAt. Callers hold mu.
func (c *Cache) evictOldest() {
	var oldest *Entry
	for _, e := range c.entries {
		if oldest == nil || e.StoredAt.Before(oldest.StoredAt) {
			oldest = e
		}
	}
	if oldest == nil {
		return
	}
	delete(c.entries, oldest.Key)
	c.stats.Evictions++
	metrics.RecordCacheEvent("eviction")
	c.log.WithFields(logger.Fields{"key": oldest.Key, "age_ms": c.now().Sub(oldest.StoredAt).Milliseconds()}).Debug("evicted oldest cache entry")
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of physically stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	s.MaxSize = c.maxSize
	return s
}
