// SPDX-License-Identifier: MIT

package ledger

import (
	"sync"
	"time"

	"github.com/ManuGH/vidsync/internal/model"
)

// SnapshotCache holds the last-known-good copy of each account document.
// It is the ledger client's own cache tier, distinct from the local data
// store. Implementations degrade gracefully: a failing cache behaves like
// an empty one.
type SnapshotCache interface {
	// Get returns the cached snapshot for the account, if any.
	Get(account string) (*model.SyncRecord, bool)
	// Put stores a snapshot with the configured TTL.
	Put(account string, record model.SyncRecord)
	// Delete drops the snapshot for the account.
	Delete(account string)
	// Stats returns cache statistics.
	Stats() CacheStats
}

// CacheStats holds snapshot cache metrics.
type CacheStats struct {
	Hits        int64 // Number of successful Get operations
	Misses      int64 // Number of failed Get operations (not found or expired)
	Puts        int64 // Number of Put operations
	Evictions   int64 // Number of expired entries cleaned up
	CurrentSize int   // Current number of cached snapshots
}

// snapshot is a cached record with expiration time.
type snapshot struct {
	record     model.SyncRecord
	expiration time.Time
}

func (s *snapshot) isExpired() bool {
	if s.expiration.IsZero() {
		return false
	}
	return time.Now().After(s.expiration)
}

// memoryCache is an in-memory SnapshotCache.
type memoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*snapshot
	stats   CacheStats
	janitor *janitor
}

// NewMemoryCache creates an in-memory snapshot cache. Entries live for
// ttl; a ttl of zero means snapshots never expire. cleanupInterval > 0
// starts a background janitor removing expired entries.
func NewMemoryCache(ttl, cleanupInterval time.Duration) *memoryCache {
	c := &memoryCache{
		ttl:     ttl,
		entries: make(map[string]*snapshot),
	}
	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}
	return c
}

func (c *memoryCache) Get(account string) (*model.SyncRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, found := c.entries[account]
	if !found || s.isExpired() {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	rec := s.record.Clone()
	return &rec, true
}

func (c *memoryCache) Put(account string, record model.SyncRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	exp := time.Time{}
	if c.ttl > 0 {
		exp = time.Now().Add(c.ttl)
	}
	c.entries[account] = &snapshot{record: record.Clone(), expiration: exp}
	c.stats.Puts++
}

func (c *memoryCache) Delete(account string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, account)
}

func (c *memoryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for account, s := range c.entries {
		if s.isExpired() {
			delete(c.entries, account)
			count++
		}
	}
	c.stats.Evictions += int64(count)
	return count
}

// Stop stops the background cleanup goroutine.
func (c *memoryCache) Stop() {
	if c.janitor != nil {
		c.janitor.stop <- struct{}{}
	}
}

// janitor performs periodic cleanup of expired snapshots.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(c *memoryCache) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}
