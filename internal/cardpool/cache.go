package cardpool

import (
	"sync"

	"github.com/google/uuid"
)

// DuplicateCache caches per-pool counts of undrafted copies by card name.
// It is owned by the ledger; callers never hold it directly. The contract
// is invalidate-on-write: any committed change to availability must be
// followed by Invalidate for the affected pool.
type DuplicateCache struct {
	mu    sync.RWMutex
	pools map[uuid.UUID]map[string]int
}

func NewDuplicateCache() *DuplicateCache {
	return &DuplicateCache{
		pools: make(map[uuid.UUID]map[string]int),
	}
}

// Get returns the cached count for a card name. ok is false when the pool
// has no cached snapshot and the caller must rebuild it.
func (c *DuplicateCache) Get(poolID uuid.UUID, name string) (count int, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts, ok := c.pools[poolID]
	if !ok {
		return 0, false
	}
	return counts[name], true
}

// Set installs a full snapshot of counts for a pool.
func (c *DuplicateCache) Set(poolID uuid.UUID, counts map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools[poolID] = counts
}

// Invalidate drops the snapshot for a pool.
func (c *DuplicateCache) Invalidate(poolID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pools, poolID)
}
