package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/splitlabs/max-visibility/internal/model"
)

// Memory is a concurrent-safe LRU snapshot cache with TTL expiration.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]*memoryEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	hits       atomic.Int64
	misses     atomic.Int64
}

type memoryEntry struct {
	snap      *model.CompetitiveSnapshot
	createdAt time.Time
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewMemory creates a Memory cache with the given capacity and TTL.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Memory{
		entries:    make(map[string]*memoryEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the cached snapshot for a workspace. Expired entries are
// dropped and reported as misses.
func (c *Memory) Get(_ context.Context, workspaceID string) (*model.CompetitiveSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[workspaceID]
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}

	if c.ttl > 0 && c.now().Sub(entry.createdAt) > c.ttl {
		delete(c.entries, workspaceID)
		c.removeFromOrder(workspaceID)
		c.misses.Add(1)
		return nil, false, nil
	}

	c.removeFromOrder(workspaceID)
	c.order = append(c.order, workspaceID)
	c.hits.Add(1)
	return entry.snap, true, nil
}

// Set stores a snapshot, evicting the least recently used entry at capacity.
func (c *Memory) Set(_ context.Context, workspaceID string, snap *model.CompetitiveSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &memoryEntry{snap: snap, createdAt: c.now()}
	if _, ok := c.entries[workspaceID]; ok {
		c.entries[workspaceID] = entry
		c.removeFromOrder(workspaceID)
		c.order = append(c.order, workspaceID)
		return nil
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[workspaceID] = entry
	c.order = append(c.order, workspaceID)
	return nil
}

// Invalidate drops the workspace's entry if present.
func (c *Memory) Invalidate(_ context.Context, workspaceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[workspaceID]; ok {
		delete(c.entries, workspaceID)
		c.removeFromOrder(workspaceID)
	}
	return nil
}

// Stats returns cache performance statistics.
func (c *Memory) Stats() Stats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *Memory) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
