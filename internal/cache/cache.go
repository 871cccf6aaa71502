// Package cache keeps per-application shortcut lists in a bounded LRU in
// front of the durable blob store so extraction does not run repeatedly.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/studiowebux/keyclash/internal/config"
	"github.com/studiowebux/keyclash/internal/logging"
	"github.com/studiowebux/keyclash/internal/store"
	"github.com/studiowebux/keyclash/internal/types"
)

// KeyPrefix prefixes durable cache keys
const KeyPrefix = "cache."

// Stats counts cache outcomes since creation
type Stats struct {
	FastHits    uint64 `json:"fastHits" yaml:"fastHits"`
	DurableHits uint64 `json:"durableHits" yaml:"durableHits"`
	Misses      uint64 `json:"misses" yaml:"misses"`
	Evictions   uint64 `json:"evictions" yaml:"evictions"`
	Entries     int    `json:"entries" yaml:"entries"`
}

// ChangeFunc is called after an owner's entry was written or invalidated.
// shortcuts is nil on invalidation; owner is empty after InvalidateAll.
type ChangeFunc func(owner string, shortcuts []types.ShortcutInfo)

// Cache is a two-tier shortcut cache. TTL and capacity are read from the
// settings source on every call; a smaller capacity applies on the next Put.
type Cache struct {
	mu       sync.Mutex
	fast     *lru.Cache
	durable  store.BlobStore
	settings config.Source
	now      func() time.Time
	stats    Stats

	hooksMu sync.RWMutex
	hooks   []ChangeFunc
}

// New creates a cache over durable
func New(durable store.BlobStore, settings config.Source) *Cache {
	return &Cache{
		fast:     lru.New(0),
		durable:  durable,
		settings: settings,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// OnChange registers a hook run after Put and Invalidate
func (c *Cache) OnChange(fn ChangeFunc) {
	c.hooksMu.Lock()
	c.hooks = append(c.hooks, fn)
	c.hooksMu.Unlock()
}

func (c *Cache) fresh(entry types.CacheEntry, now time.Time, ttl time.Duration) bool {
	return now.Sub(entry.CachedAt) < ttl
}

// Get returns the cached shortcuts of owner. The fast tier is checked
// first, then the durable tier; a durable hit repopulates the fast tier.
func (c *Cache) Get(owner string) ([]types.ShortcutInfo, bool) {
	ttl := c.settings.Current().CacheTTL()
	capacity := c.settings.Current().CacheCapacity

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	if v, ok := c.fast.Get(owner); ok {
		entry := v.(types.CacheEntry)
		if c.fresh(entry, now, ttl) {
			c.stats.FastHits++
			return entry.Shortcuts, true
		}
		c.fast.Remove(owner)
	}

	entry, ok := c.loadDurable(owner)
	if ok && c.fresh(entry, now, ttl) {
		c.stats.DurableHits++
		c.addFastLocked(owner, entry, capacity)
		return entry.Shortcuts, true
	}

	c.stats.Misses++
	return nil, false
}

// Put stores shortcuts for owner in both tiers. A durable write failure is
// logged and returned; the fast tier is updated regardless.
func (c *Cache) Put(owner string, shortcuts []types.ShortcutInfo) error {
	capacity := c.settings.Current().CacheCapacity

	c.mu.Lock()
	entry := types.CacheEntry{Owner: owner, Shortcuts: shortcuts, CachedAt: c.now()}
	c.addFastLocked(owner, entry, capacity)
	err := c.saveDurable(entry)
	c.mu.Unlock()

	c.notify(owner, shortcuts)
	return err
}

// Invalidate drops owner from both tiers
func (c *Cache) Invalidate(owner string) error {
	c.mu.Lock()
	c.fast.Remove(owner)
	err := c.durable.Delete(KeyPrefix + owner)
	c.mu.Unlock()

	if err != nil {
		logging.WarningLog.Printf("failed to invalidate cached shortcuts for %s: %v", owner, err)
	}
	c.notify(owner, nil)
	return err
}

// InvalidateAll empties both tiers
func (c *Cache) InvalidateAll() error {
	c.mu.Lock()
	c.fast.Clear()
	keys, err := c.durable.Keys(KeyPrefix)
	if err == nil {
		for _, k := range keys {
			if derr := c.durable.Delete(k); derr != nil {
				err = derr
			}
		}
	}
	c.mu.Unlock()

	if err != nil {
		logging.WarningLog.Printf("failed to clear shortcut cache: %v", err)
	}
	c.notify("", nil)
	return err
}

// Owners lists every owner with a durable entry, sorted. Expired entries
// are included.
func (c *Cache) Owners() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool)
	keys, err := c.durable.Keys(KeyPrefix)
	if err != nil {
		logging.WarningLog.Printf("failed to list cached owners: %v", err)
	}
	for _, k := range keys {
		seen[strings.TrimPrefix(k, KeyPrefix)] = true
	}

	out := make([]string, 0, len(seen))
	for owner := range seen {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}

// Stats returns hit and miss counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = c.fast.Len()
	return s
}

func (c *Cache) addFastLocked(owner string, entry types.CacheEntry, capacity int) {
	c.fast.Add(owner, entry)
	for capacity > 0 && c.fast.Len() > capacity {
		c.fast.RemoveOldest()
		c.stats.Evictions++
	}
}

func (c *Cache) loadDurable(owner string) (types.CacheEntry, bool) {
	data, err := c.durable.Get(KeyPrefix + owner)
	if errors.Is(err, store.ErrNotFound) {
		return types.CacheEntry{}, false
	}
	if err != nil {
		logging.WarningLog.Printf("failed to read cached shortcuts for %s: %v", owner, err)
		return types.CacheEntry{}, false
	}

	var entry types.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		logging.WarningLog.Printf("discarding unreadable cache entry for %s: %v", owner, err)
		return types.CacheEntry{}, false
	}
	return entry, true
}

func (c *Cache) saveDurable(entry types.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.durable.Set(KeyPrefix+entry.Owner, data); err != nil {
		logging.WarningLog.Printf("failed to persist cached shortcuts for %s: %v", entry.Owner, err)
		return fmt.Errorf("failed to persist cache entry: %w", err)
	}
	return nil
}

func (c *Cache) notify(owner string, shortcuts []types.ShortcutInfo) {
	c.hooksMu.RLock()
	hooks := append([]ChangeFunc(nil), c.hooks...)
	c.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(owner, shortcuts)
	}
}
