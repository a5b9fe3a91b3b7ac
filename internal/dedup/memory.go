package dedup

import (
	"context"
	"sync"
)

// DefaultCapacity bounds the in-memory recency set.
const DefaultCapacity = 10_000

// MemoryCache is a mutex-guarded bounded set. When the set exceeds capacity
// it evicts the oldest half in one batch to amortize eviction cost.
type MemoryCache struct {
	mu          sync.Mutex
	seen        map[string]struct{}
	order       []string // insertion order, oldest first
	capacity    int
	minNotional float64
}

// NewMemoryCache creates a MemoryCache. capacity <= 0 selects
// DefaultCapacity; minNotional <= 0 disables the materiality filter.
func NewMemoryCache(capacity int, minNotional float64) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryCache{
		seen:        make(map[string]struct{}, capacity),
		capacity:    capacity,
		minNotional: minNotional,
	}
}

// Admit offers an event reference; see dedup.Cache.
func (c *MemoryCache) Admit(_ context.Context, externalRef string, notional float64) (Verdict, error) {
	if c.minNotional > 0 && notional < c.minNotional {
		return Immaterial, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[externalRef]; ok {
		return Duplicate, nil
	}

	if len(c.order) >= c.capacity {
		c.evictOldestHalf()
	}

	c.seen[externalRef] = struct{}{}
	c.order = append(c.order, externalRef)
	return Admitted, nil
}

// Len reports the current number of tracked references.
func (c *MemoryCache) Len(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order), nil
}

// evictOldestHalf drops the oldest half of the set in one batch.
// Caller must hold c.mu.
func (c *MemoryCache) evictOldestHalf() {
	half := len(c.order) / 2
	for _, ref := range c.order[:half] {
		delete(c.seen, ref)
	}
	remaining := make([]string, len(c.order)-half)
	copy(remaining, c.order[half:])
	c.order = remaining
}

// Verify interface compliance at compile time.
var _ Cache = (*MemoryCache)(nil)
