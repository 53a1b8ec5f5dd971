package prices

import (
	"sync"
	"time"

	"github.com/one-capital/pricefeed/internal/model"
)

// Cache is the symbol-keyed price cache owned by a single Consumer.
//
// It is an explicit object rather than package-level state so that two
// consumers in one process never share entries, and so freshness is testable
// in isolation. Entries are only ever overwritten, never deleted, except by a
// full replacement.
type Cache struct {
	mu        sync.RWMutex
	entries   model.PriceMap
	ttl       time.Duration
	updatedAt time.Time
}

// NewCache creates an empty cache. A zero ttl means entries never go stale.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(model.PriceMap),
		ttl:     ttl,
	}
}

// ReplaceAll swaps the entire cache for the given map, removing symbols not
// present in it.
func (c *Cache) ReplaceAll(prices model.PriceMap, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = prices.Clone()
	c.updatedAt = now
}

// Merge applies a single-symbol patch. Fields the patch omits are carried
// over from the existing entry, and missing derived fields are recomputed
// from current and the entry's previous24h.
func (c *Cache) Merge(symbol string, patch EntryPatch, now time.Time) model.PriceEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[symbol]

	if patch.Current != nil {
		entry.Current = *patch.Current
	}
	if patch.Previous24h != nil {
		entry.Previous24h = *patch.Previous24h
	}

	if patch.Change24h != nil {
		entry.Change24h = *patch.Change24h
	}
	if patch.ChangePercentage24h != nil {
		entry.ChangePercentage24h = *patch.ChangePercentage24h
	}
	if patch.Change24h == nil || patch.ChangePercentage24h == nil {
		change, pct := model.Derived(entry.Current, entry.Previous24h)
		if patch.Change24h == nil {
			entry.Change24h = change
		}
		if patch.ChangePercentage24h == nil {
			entry.ChangePercentage24h = pct
		}
	}

	c.entries[symbol] = entry
	c.updatedAt = now
	return entry
}

// Snapshot returns an independent copy of the current entries.
func (c *Cache) Snapshot() model.PriceMap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Clone()
}

// Len returns the number of cached symbols.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Fresh reports whether the cache has been updated within its TTL. An empty
// cache is never fresh.
func (c *Cache) Fresh(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.updatedAt.IsZero() {
		return false
	}
	if c.ttl <= 0 {
		return true
	}
	return now.Sub(c.updatedAt) <= c.ttl
}

// UpdatedAt returns the time of the last mutation.
func (c *Cache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
