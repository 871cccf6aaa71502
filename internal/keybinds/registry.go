package keybinds

import (
	"github.com/studiowebux/keyclash/internal/types"
)

// Index groups shortcuts by canonical key combination.
// Group order follows first appearance; order inside a group follows input.
type Index struct {
	// groups maps canonical combination -> shortcuts using it
	groups map[string][]types.ShortcutInfo

	// order keeps combinations in first-seen order for deterministic output
	order []string

	// skipped counts malformed shortcuts dropped while indexing
	skipped int
}

// NewIndex builds an index, dropping malformed shortcuts
func NewIndex(shortcuts []types.ShortcutInfo) *Index {
	idx := &Index{groups: make(map[string][]types.ShortcutInfo)}
	for _, s := range shortcuts {
		idx.Add(s)
	}
	return idx
}

// Add indexes one shortcut. It returns false when the shortcut is malformed.
func (idx *Index) Add(s types.ShortcutInfo) bool {
	if err := ValidateShortcut(s); err != nil {
		idx.skipped++
		return false
	}

	combo := Normalize(s.KeyCombination)
	s.KeyCombination = combo
	if _, ok := idx.groups[combo]; !ok {
		idx.order = append(idx.order, combo)
	}
	idx.groups[combo] = append(idx.groups[combo], s)
	return true
}

// Group is one combination and every shortcut using it
type Group struct {
	Combination string
	Shortcuts   []types.ShortcutInfo
}

// Groups returns every group in first-seen order
func (idx *Index) Groups() []Group {
	out := make([]Group, 0, len(idx.order))
	for _, combo := range idx.order {
		out = append(out, Group{Combination: combo, Shortcuts: idx.groups[combo]})
	}
	return out
}

// Lookup returns the shortcuts bound to a combination (any spelling)
func (idx *Index) Lookup(combo string) []types.ShortcutInfo {
	return idx.groups[Normalize(combo)]
}

// Owners returns the distinct owners of a combination in first-seen order
func (idx *Index) Owners(combo string) []string {
	return DistinctOwners(idx.Lookup(combo))
}

// HasCombination reports whether any shortcut uses combo
func (idx *Index) HasCombination(combo string) bool {
	_, ok := idx.groups[Normalize(combo)]
	return ok
}

// Combinations returns the set of used canonical combinations
func (idx *Index) Combinations() map[string]bool {
	out := make(map[string]bool, len(idx.groups))
	for combo := range idx.groups {
		out[combo] = true
	}
	return out
}

// Len returns the number of indexed shortcuts
func (idx *Index) Len() int {
	n := 0
	for _, g := range idx.groups {
		n += len(g)
	}
	return n
}

// Skipped returns how many malformed shortcuts were dropped
func (idx *Index) Skipped() int {
	return idx.skipped
}

// DistinctOwners returns the owners of shortcuts without duplicates, in
// input order
func DistinctOwners(shortcuts []types.ShortcutInfo) []string {
	seen := make(map[string]bool)
	var owners []string
	for _, s := range shortcuts {
		if !seen[s.Owner] {
			seen[s.Owner] = true
			owners = append(owners, s.Owner)
		}
	}
	return owners
}
