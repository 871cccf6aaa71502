package types

import (
	"fmt"
	"time"
)

// SystemOwner is the owner name used for operating-system shortcuts
const SystemOwner = "System"

// Category groups shortcuts by the menu they usually live in
type Category string

const (
	CategoryFile       Category = "file"
	CategoryEdit       Category = "edit"
	CategoryView       Category = "view"
	CategoryWindow     Category = "window"
	CategorySystem     Category = "system"
	CategoryNavigation Category = "navigation"
	CategoryOther      Category = "other"
)

// ConflictType classifies how a shortcut collides with another
type ConflictType string

const (
	ConflictSystem      ConflictType = "system"      // Collides with a reserved system shortcut
	ConflictApplication ConflictType = "application" // Duplicate definition inside one owner
	ConflictGlobal      ConflictType = "global"      // Same combination used by several owners
	ConflictFunctional  ConflictType = "functional"  // Same intent bound to different combinations
)

// Severity ranks conflicts. Higher values are worse.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a severity name back to its value
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", s)
}

// MarshalText encodes the severity by name for JSON and YAML
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name
func (s *Severity) UnmarshalText(data []byte) error {
	v, err := ParseSeverity(string(data))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ShortcutInfo describes one shortcut owned by an application or the system
type ShortcutInfo struct {
	ID             string         `json:"id" yaml:"id"`
	KeyCombination string         `json:"keyCombination" yaml:"keyCombination"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Owner          string         `json:"owner" yaml:"owner"`
	Category       Category       `json:"category,omitempty" yaml:"category,omitempty"`
	IsCustom       bool           `json:"isCustom,omitempty" yaml:"isCustom,omitempty"`
	Conflicts      []ConflictInfo `json:"conflicts,omitempty" yaml:"conflicts,omitempty"` // Detection result, not state
}

// IsSystem reports whether the shortcut belongs to the operating system
func (s ShortcutInfo) IsSystem() bool {
	return s.Owner == SystemOwner
}

// Valid reports whether the shortcut carries the fields needed for indexing
func (s ShortcutInfo) Valid() bool {
	return s.ID != "" && s.KeyCombination != "" && s.Owner != ""
}

// ConflictInfo is the result of one detection pass for one shortcut
type ConflictInfo struct {
	ID               string       `json:"id" yaml:"id"`
	ShortcutID       string       `json:"shortcutId" yaml:"shortcutId"`
	Type             ConflictType `json:"type" yaml:"type"`
	ConflictingOwner string       `json:"conflictingOwner,omitempty" yaml:"conflictingOwner,omitempty"`
	// ConflictingOwners lists the other owners one by one; ConflictingOwner
	// is its display form.
	ConflictingOwners []string `json:"conflictingOwners,omitempty" yaml:"conflictingOwners,omitempty"`
	Severity          Severity `json:"severity" yaml:"severity"`
	Suggestions       []string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

// RemappingRule substitutes one combination for another inside one owner.
// Identity is (Owner, FromKey).
type RemappingRule struct {
	FromKey   string    `json:"fromKey" yaml:"fromKey"`
	ToKey     string    `json:"toKey" yaml:"toKey"`
	Owner     string    `json:"owner" yaml:"owner"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// CacheEntry is one application's cached shortcut list
type CacheEntry struct {
	Owner     string         `json:"owner"`
	Shortcuts []ShortcutInfo `json:"shortcuts"`
	CachedAt  time.Time      `json:"cachedAt"`
}
