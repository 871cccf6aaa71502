package remap

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/studiowebux/keyclash/internal/eventbus"
	"github.com/studiowebux/keyclash/internal/logging"
	"github.com/studiowebux/keyclash/internal/safego"
	"github.com/studiowebux/keyclash/internal/store"
	"github.com/studiowebux/keyclash/internal/types"
)

// RulesKey is the blob key the rule list is stored under
const RulesKey = "remap.rules"

// ImportMode controls what happens to existing rules on import
type ImportMode string

const (
	ImportMerge   ImportMode = "merge"
	ImportReplace ImportMode = "replace"
)

// ParseImportMode validates an import mode name
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(s) {
	case ImportMerge, ImportReplace:
		return ImportMode(s), nil
	}
	return "", fmt.Errorf("unknown import mode %q (expected merge or replace)", s)
}

// RejectedRule is a rule an import skipped
type RejectedRule struct {
	Rule   types.RemappingRule `json:"rule" yaml:"rule"`
	Reason Reason              `json:"reason" yaml:"reason"`
	Error  string              `json:"error" yaml:"error"`
}

// ImportResult reports a best-effort import
type ImportResult struct {
	Imported int            `json:"imported" yaml:"imported"`
	Rejected []RejectedRule `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

// Manager persists an Engine. Every mutation schedules a save; a single
// goroutine writes the latest snapshot so saves never overlap and the last
// mutation always wins.
type Manager struct {
	engine *Engine
	store  store.BlobStore
	bus    *eventbus.Bus
	now    func() time.Time

	mu        sync.Mutex
	cond      *sync.Cond
	requested uint64
	saved     uint64
	lastErr   error
	closed    bool
	wake      chan struct{}
	stopped   chan struct{}
}

// NewManager creates a manager and starts its save goroutine. bus may be nil.
func NewManager(engine *Engine, s store.BlobStore, bus *eventbus.Bus) *Manager {
	m := &Manager{
		engine:  engine,
		store:   s,
		bus:     bus,
		now:     time.Now,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	safego.Go("remap-save", m.saveLoop)
	return m
}

// Engine returns the underlying engine for lookups
func (m *Manager) Engine() *Engine {
	return m.engine
}

// Load replaces the table with the stored rules. Failures leave the table
// empty and are returned for logging only. Stored rules that no longer
// validate are skipped.
func (m *Manager) Load() error {
	m.engine.ClearAll()

	data, err := m.store.Get(RulesKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		logging.WarningLog.Printf("failed to load remapping rules, starting empty: %v", err)
		return fmt.Errorf("failed to load rules: %w", err)
	}

	var rules []types.RemappingRule
	if err := json.Unmarshal(data, &rules); err != nil {
		logging.WarningLog.Printf("discarding unreadable remapping rules: %v", err)
		return fmt.Errorf("failed to decode rules: %w", err)
	}

	for _, r := range rules {
		if _, err := m.engine.AddRule(r); err != nil {
			logging.WarningLog.Printf("skipping stored rule: %v", err)
		}
	}
	return nil
}

// Add validates and stores a rule, then schedules a save
func (m *Manager) Add(from, to, owner string) (types.RemappingRule, error) {
	rule, err := m.engine.Add(from, to, owner)
	if err != nil {
		return rule, err
	}
	m.changed(owner)
	return rule, nil
}

// Remove deletes a rule, then schedules a save
func (m *Manager) Remove(from, owner string) bool {
	if !m.engine.Remove(from, owner) {
		return false
	}
	m.changed(owner)
	return true
}

// ClearOwner removes the rules of one owner
func (m *Manager) ClearOwner(owner string) int {
	n := m.engine.ClearOwner(owner)
	if n > 0 {
		m.changed(owner)
	}
	return n
}

// ClearAll removes every rule
func (m *Manager) ClearAll() int {
	n := m.engine.ClearAll()
	if n > 0 {
		m.changed("")
	}
	return n
}

// Export snapshots every rule
func (m *Manager) Export() Document {
	return Document{
		Version:    DocumentVersion,
		ExportedAt: m.now(),
		Rules:      m.engine.Rules(),
	}
}

// Import adds rules one at a time. A rejected rule is reported and the
// rest of the batch continues. In replace mode existing rules are cleared
// first.
func (m *Manager) Import(doc Document, mode ImportMode) ImportResult {
	var result ImportResult

	if mode == ImportReplace {
		m.engine.ClearAll()
	}

	for _, r := range doc.Rules {
		if _, err := m.engine.AddRule(r); err != nil {
			reason, _ := ReasonOf(err)
			result.Rejected = append(result.Rejected, RejectedRule{Rule: r, Reason: reason, Error: err.Error()})
			continue
		}
		result.Imported++
	}

	if result.Imported > 0 || mode == ImportReplace {
		m.changed("")
	}
	return result
}

// Flush waits until every mutation made so far is written. It returns
// ErrPersistence when the latest save failed.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.requested
	for m.saved < target && !m.closed {
		m.cond.Wait()
	}
	if m.lastErr != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, m.lastErr)
	}
	return nil
}

// Close flushes pending saves and stops the save goroutine
func (m *Manager) Close() error {
	err := m.Flush()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err
	}
	m.closed = true
	close(m.wake)
	m.cond.Broadcast()
	m.mu.Unlock()

	<-m.stopped
	return err
}

func (m *Manager) changed(owner string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		logging.WarningLog.Printf("remapping manager closed, change not persisted")
		return
	}
	m.requested++
	select {
	case m.wake <- struct{}{}:
	default:
		// A save is already pending and will pick up this change
	}
	m.mu.Unlock()

	if m.bus != nil {
		count := len(m.engine.Rules())
		if owner != "" {
			count = len(m.engine.RulesFor(owner))
		}
		m.bus.Publish(eventbus.TopicRulesChanged, eventbus.RulesChanged{Owner: owner, Count: count})
	}
}

func (m *Manager) saveLoop() {
	defer close(m.stopped)

	for range m.wake {
		m.mu.Lock()
		target := m.requested
		m.mu.Unlock()

		err := m.save()

		m.mu.Lock()
		if target > m.saved {
			m.saved = target
		}
		m.lastErr = err
		m.cond.Broadcast()
		m.mu.Unlock()
	}
}

func (m *Manager) save() error {
	data, err := json.Marshal(m.engine.Rules())
	if err != nil {
		return err
	}
	if err := m.store.Set(RulesKey, data); err != nil {
		logging.ErrorLog.Printf("failed to save remapping rules: %v", err)
		return err
	}
	return nil
}
