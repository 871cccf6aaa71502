// Package remap holds owner-scoped remapping rules and guarantees they never
// form a cycle or a chain.
package remap

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/studiowebux/keyclash/internal/keybinds"
	"github.com/studiowebux/keyclash/internal/types"
)

// Engine is the in-memory rule table: owner -> from -> rule.
// Invariants per owner: one rule per from key, no rule targets the from
// key of another rule, no self-map, no reserved target.
type Engine struct {
	mu    sync.RWMutex
	rules map[string]map[string]types.RemappingRule
	now   func() time.Time
}

// NewEngine creates an empty engine
func NewEngine() *Engine {
	return &Engine{
		rules: make(map[string]map[string]types.RemappingRule),
		now:   time.Now,
	}
}

// SetClock replaces the time source used for CreatedAt
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// Add validates and stores a rule. An existing rule for (owner, from) is
// replaced.
func (e *Engine) Add(from, to, owner string) (types.RemappingRule, error) {
	return e.AddRule(types.RemappingRule{FromKey: from, ToKey: to, Owner: owner})
}

// AddRule is Add for a complete rule. A zero CreatedAt is stamped with the
// current time; otherwise it is kept (used by load and import).
func (e *Engine) AddRule(rule types.RemappingRule) (types.RemappingRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	from, to, err := e.validateLocked(rule.FromKey, rule.ToKey, rule.Owner)
	if err != nil {
		return types.RemappingRule{}, err
	}

	rule.FromKey = from
	rule.ToKey = to
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = e.now()
	}

	owned, ok := e.rules[rule.Owner]
	if !ok {
		owned = make(map[string]types.RemappingRule)
		e.rules[rule.Owner] = owned
	}
	owned[from] = rule
	return rule, nil
}

// Validate checks a rule without storing it and returns the canonical keys
func (e *Engine) Validate(from, to, owner string) (string, string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.validateLocked(from, to, owner)
}

func (e *Engine) validateLocked(rawFrom, rawTo, rawOwner string) (string, string, error) {
	owner := rawOwner
	reject := func(reason Reason, from, to, msg string) (string, string, error) {
		return "", "", &ValidationError{Reason: reason, From: from, To: to, Owner: owner, Message: msg}
	}

	if strings.TrimSpace(owner) == "" {
		return reject(ReasonMalformed, rawFrom, rawTo, "owner cannot be empty")
	}
	fromCombo, err := keybinds.Parse(rawFrom)
	if err != nil {
		return reject(ReasonMalformed, rawFrom, rawTo, err.Error())
	}
	toCombo, err := keybinds.Parse(rawTo)
	if err != nil {
		return reject(ReasonMalformed, rawFrom, rawTo, err.Error())
	}
	if !fromCombo.IsShortcut() || !toCombo.IsShortcut() {
		return reject(ReasonMalformed, rawFrom, rawTo, "both keys need at least one modifier")
	}

	from, to := fromCombo.String(), toCombo.String()

	if from == to {
		return reject(ReasonSelfMap, from, to, "a key cannot be remapped to itself")
	}
	if keybinds.IsReserved(to) {
		return reject(ReasonReservedTarget, from, to, "target is reserved by the system")
	}

	owned := e.rules[owner]
	if existing, ok := owned[to]; ok {
		if existing.ToKey == from {
			return reject(ReasonCycle, from, to, to+" is already remapped to "+from)
		}
		return reject(ReasonChain, from, to, to+" is already remapped to "+existing.ToKey)
	}
	for _, r := range owned {
		if r.ToKey == from && r.FromKey != from {
			return reject(ReasonChain, from, to, r.FromKey+" is already remapped to "+from)
		}
	}

	return from, to, nil
}

// Lookup returns the replacement for key in owner
func (e *Engine) Lookup(key, owner string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.rules[owner][keybinds.Normalize(key)]
	if !ok {
		return "", false
	}
	return r.ToKey, true
}

// Apply returns the combination the injector should synthesize in place of
// combo, if owner has a rule for it
func (e *Engine) Apply(combo keybinds.KeyCombination, owner string) (keybinds.KeyCombination, bool) {
	e.mu.RLock()
	r, ok := e.rules[owner][combo.String()]
	e.mu.RUnlock()
	if !ok {
		return keybinds.KeyCombination{}, false
	}

	target, err := keybinds.Parse(r.ToKey)
	if err != nil {
		return keybinds.KeyCombination{}, false
	}
	return target, true
}

// Remove deletes the rule for (owner, from)
func (e *Engine) Remove(from, owner string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	owned, ok := e.rules[owner]
	if !ok {
		return false
	}
	key := keybinds.Normalize(from)
	if _, ok := owned[key]; !ok {
		return false
	}
	delete(owned, key)
	if len(owned) == 0 {
		delete(e.rules, owner)
	}
	return true
}

// ClearOwner removes every rule of owner and returns how many were removed
func (e *Engine) ClearOwner(owner string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.rules[owner])
	delete(e.rules, owner)
	return n
}

// ClearAll removes every rule and returns how many were removed
func (e *Engine) ClearAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, owned := range e.rules {
		n += len(owned)
	}
	e.rules = make(map[string]map[string]types.RemappingRule)
	return n
}

// Rules returns every rule sorted by owner, then from key
func (e *Engine) Rules() []types.RemappingRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []types.RemappingRule
	for _, owned := range e.rules {
		for _, r := range owned {
			out = append(out, r)
		}
	}
	sortRules(out)
	return out
}

// RulesFor returns the rules of one owner sorted by from key
func (e *Engine) RulesFor(owner string) []types.RemappingRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]types.RemappingRule, 0, len(e.rules[owner]))
	for _, r := range e.rules[owner] {
		out = append(out, r)
	}
	sortRules(out)
	return out
}

// Stats summarizes the table
type Stats struct {
	TotalRules int            `json:"totalRules" yaml:"totalRules"`
	Owners     int            `json:"owners" yaml:"owners"`
	PerOwner   map[string]int `json:"perOwner" yaml:"perOwner"`
}

// Stats counts rules per owner
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Stats{Owners: len(e.rules), PerOwner: make(map[string]int, len(e.rules))}
	for owner, owned := range e.rules {
		s.PerOwner[owner] = len(owned)
		s.TotalRules += len(owned)
	}
	return s
}

func sortRules(rules []types.RemappingRule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Owner != rules[j].Owner {
			return rules[i].Owner < rules[j].Owner
		}
		return rules[i].FromKey < rules[j].FromKey
	})
}
