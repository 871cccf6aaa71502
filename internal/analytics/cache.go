package analytics

import (
	"sync"
	"time"

	"github.com/studiowebux/keyclash/internal/types"
)

// cacheEntry holds a cached summary and when it was computed
type cacheEntry struct {
	summary     types.UsageSummary
	lastRefresh time.Time
}

// statsCache memoizes summaries per window for a short time
type statsCache struct {
	mu      sync.RWMutex
	windows map[types.UsageWindow]*cacheEntry
	ttl     time.Duration
}

// newStatsCache creates a new summary cache with the specified TTL
func newStatsCache(ttl time.Duration) *statsCache {
	return &statsCache{
		windows: make(map[types.UsageWindow]*cacheEntry),
		ttl:     ttl,
	}
}

// get retrieves a cached summary if available and fresh at now
func (c *statsCache) get(window types.UsageWindow, now time.Time) (types.UsageSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.windows[window]
	if !exists {
		return types.UsageSummary{}, false
	}

	// Entries from the future (clock moved back) are stale too
	age := now.Sub(entry.lastRefresh)
	if age < 0 || age > c.ttl {
		return types.UsageSummary{}, false
	}

	return entry.summary, true
}

// set stores a summary computed at now
func (c *statsCache) set(window types.UsageWindow, summary types.UsageSummary, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.windows[window] = &cacheEntry{
		summary:     summary,
		lastRefresh: now,
	}
}

// invalidate clears all cached data
func (c *statsCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.windows = make(map[types.UsageWindow]*cacheEntry)
}
