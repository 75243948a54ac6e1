package location

import (
	"sync"

	"homeserve/internal/types"
)

// DistanceCache memoizes distances in meters for the lifetime of the process.
// Keys are order-sensitive: A->B and B->A are separate entries.
type DistanceCache struct {
	mu      sync.RWMutex
	entries map[string]int
}

func NewDistanceCache() *DistanceCache {
	return &DistanceCache{entries: make(map[string]int)}
}

func cacheKey(origin, destination types.Point) string {
	return origin.String() + "_" + destination.String()
}

func (c *DistanceCache) Get(origin, destination types.Point) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.entries[cacheKey(origin, destination)]
	return m, ok
}

// Put stores the distance; a concurrent writer for the same key simply overwrites.
func (c *DistanceCache) Put(origin, destination types.Point, meters int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(origin, destination)] = meters
}

func (c *DistanceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
