package hls

import (
	"sync"

	"github.com/scenevault/scenevault/internal/models"
)

// PlanCache holds computed segment plans keyed by media item ID for
// the lifetime of the process. Plans are deterministic, so two
// concurrent playlist requests for the same uncached item may both
// compute the plan; the duplicate work is accepted rather than
// serializing playlist requests behind a per-item lock. Last write
// wins with an identical value.
type PlanCache struct {
	mu    sync.RWMutex
	plans map[models.ULID]Plan
}

// NewPlanCache creates an empty plan cache.
func NewPlanCache() *PlanCache {
	return &PlanCache{plans: make(map[models.ULID]Plan)}
}

// Get returns the cached plan for a media item, or nil if absent.
func (c *PlanCache) Get(id models.ULID) Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.plans[id]
}

// Put stores a plan for a media item.
func (c *PlanCache) Put(id models.ULID, plan Plan) {
	c.mu.Lock()
	c.plans[id] = plan
	c.mu.Unlock()
}

// Delete removes the plan for a media item.
func (c *PlanCache) Delete(id models.ULID) {
	c.mu.Lock()
	delete(c.plans, id)
	c.mu.Unlock()
}

// Keys returns the IDs of all cached plans.
func (c *PlanCache) Keys() []models.ULID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]models.ULID, 0, len(c.plans))
	for id := range c.plans {
		keys = append(keys, id)
	}
	return keys
}

// Len returns the number of cached plans.
func (c *PlanCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.plans)
}
