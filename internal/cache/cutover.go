package cache

import (
	"time"

	"github.com/dylan7474/planetaryLogger/internal/elements"
	"github.com/dylan7474/planetaryLogger/internal/metrics"
	"github.com/dylan7474/planetaryLogger/internal/propagation"
)

// setChanged reports whether the store holds a different set than the one
// the cache was built from.
func (c *RowCache) setChanged() bool {
	set := c.store.Get()
	if set == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return set != c.current
}

// cutoverIfChanged drops every row when set differs from the cached set and
// is still the store's current set. A caller holding a set that has already
// been replaced never cuts back to it. Returns true when a cutover happened.
func (c *RowCache) cutoverIfChanged(set *elements.Set) bool {
	c.mu.Lock()
	if set == c.current || set != c.store.Get() {
		c.mu.Unlock()
		return false
	}
	old := c.current
	dropped := len(c.entries)
	c.entries = make(map[time.Time]propagation.Row)
	c.current = set
	c.mu.Unlock()

	if old != nil {
		c.cutovers.Add(1)
		c.logger.Info("element set cutover",
			"old_set_fetched_at", old.FetchedAt.UTC().Format(time.RFC3339),
			"new_set_fetched_at", set.FetchedAt.UTC().Format(time.RFC3339),
			"entries_dropped", dropped,
		)
	}
	if dropped > 0 {
		c.evictions.Add(int64(dropped))
		metrics.AddCacheEvictions(dropped)
	}
	metrics.SetCacheEntries(0)
	return true
}
