package conflict

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/studiowebux/keyclash/internal/logging"
	"github.com/studiowebux/keyclash/internal/store"
	"github.com/studiowebux/keyclash/internal/types"
)

// ResolverKey is the blob key resolutions are stored under
const ResolverKey = "resolver.records"

// Strategy is how the user chose to handle a conflict
type Strategy string

const (
	StrategyDisable Strategy = "disable"
	StrategyIgnore  Strategy = "ignore"
	StrategyManual  Strategy = "manual" // Deferred to the user
	StrategyRemap   Strategy = "remap"
)

// ParseStrategy validates a strategy name
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyDisable, StrategyIgnore, StrategyManual, StrategyRemap:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown strategy %q (expected disable, ignore, manual or remap)", s)
}

// ChangesState reports whether the strategy represents an actual change.
// Ignoring or deferring a conflict leaves it unresolved.
func (s Strategy) ChangesState() bool {
	return s == StrategyDisable || s == StrategyRemap
}

// Resolution is the latest decision recorded for one conflict
type Resolution struct {
	ConflictID string             `json:"conflictId" yaml:"conflictId"`
	Type       types.ConflictType `json:"type,omitempty" yaml:"type,omitempty"`
	Strategy   Strategy           `json:"strategy" yaml:"strategy"`
	Details    string             `json:"details,omitempty" yaml:"details,omitempty"`
	Timestamp  time.Time          `json:"timestamp" yaml:"timestamp"`
}

// ResolverStats summarizes recorded resolutions
type ResolverStats struct {
	Total      int              `json:"total" yaml:"total"`
	Resolved   int              `json:"resolved" yaml:"resolved"`
	ByStrategy map[Strategy]int `json:"byStrategy" yaml:"byStrategy"`
}

// Resolver records one resolution per conflict id. Resolving the same id
// again overwrites the previous record.
type Resolver struct {
	mu      sync.RWMutex
	store   store.BlobStore
	records map[string]Resolution
	now     func() time.Time
}

// NewResolver creates an empty resolver persisted in s
func NewResolver(s store.BlobStore) *Resolver {
	return &Resolver{
		store:   s,
		records: make(map[string]Resolution),
		now:     time.Now,
	}
}

// SetClock replaces the time source
func (r *Resolver) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Load reads stored resolutions. Any failure leaves the resolver empty and
// is returned for logging; it is never fatal.
func (r *Resolver) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[string]Resolution)

	data, err := r.store.Get(ResolverKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		logging.WarningLog.Printf("failed to load conflict resolutions: %v", err)
		return fmt.Errorf("failed to load resolutions: %w", err)
	}

	var records map[string]Resolution
	if err := json.Unmarshal(data, &records); err != nil {
		logging.WarningLog.Printf("discarding unreadable conflict resolutions: %v", err)
		return fmt.Errorf("failed to decode resolutions: %w", err)
	}
	if records != nil {
		r.records = records
	}
	return nil
}

// Resolve records a strategy for a conflict. The record is kept in memory
// even when saving fails; the returned error then reports a stale store.
func (r *Resolver) Resolve(c types.ConflictInfo, strategy Strategy, details string) (Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := Resolution{
		ConflictID: c.ID,
		Type:       c.Type,
		Strategy:   strategy,
		Details:    details,
		Timestamp:  r.now(),
	}
	r.records[c.ID] = res
	return res, r.saveLocked()
}

// Record returns the resolution for a conflict id
func (r *Resolver) Record(id string) (Resolution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.records[id]
	return res, ok
}

// Records returns every resolution ordered by conflict id
func (r *Resolver) Records() []Resolution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Resolution, 0, len(r.records))
	for _, res := range r.records {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConflictID < out[j].ConflictID })
	return out
}

// IsResolved reports whether the conflict was resolved with a strategy
// that changes state
func (r *Resolver) IsResolved(id string) bool {
	res, ok := r.Record(id)
	return ok && res.Strategy.ChangesState()
}

// Clear removes the record for one conflict
func (r *Resolver) Clear(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return nil
	}
	delete(r.records, id)
	return r.saveLocked()
}

// ClearAll removes every record
func (r *Resolver) ClearAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[string]Resolution)
	return r.saveLocked()
}

// Stats counts records per strategy
func (r *Resolver) Stats() ResolverStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := ResolverStats{
		Total:      len(r.records),
		ByStrategy: make(map[Strategy]int),
	}
	for _, res := range r.records {
		stats.ByStrategy[res.Strategy]++
		if res.Strategy.ChangesState() {
			stats.Resolved++
		}
	}
	return stats
}

// saveLocked writes the records; callers hold r.mu so saves are serialized
func (r *Resolver) saveLocked() error {
	data, err := json.Marshal(r.records)
	if err != nil {
		return fmt.Errorf("failed to encode resolutions: %w", err)
	}
	if err := r.store.Set(ResolverKey, data); err != nil {
		logging.ErrorLog.Printf("failed to save conflict resolutions: %v", err)
		return fmt.Errorf("resolution kept in memory, store may be stale: %w", err)
	}
	return nil
}
