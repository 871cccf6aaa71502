// Package conflict classifies collisions between shortcuts, proposes
// alternatives and records how the user chose to resolve them.
package conflict

import (
	"strings"

	"github.com/studiowebux/keyclash/internal/keybinds"
	"github.com/studiowebux/keyclash/internal/types"
)

// Detector finds conflicts in a set of shortcuts
type Detector struct {
	analyzer *Analyzer
}

// NewDetector creates a detector
func NewDetector() *Detector {
	return &Detector{analyzer: NewAnalyzer()}
}

// ConflictID builds the identifier of a conflict. It is stable across
// detection passes so resolutions keep applying.
func ConflictID(t types.ConflictType, shortcutID string, owner ...string) string {
	parts := append([]string{string(t), shortcutID}, owner...)
	return strings.Join(parts, ":")
}

// DetectAll runs a batch pass. System shortcuts are the reference set:
// they never receive conflicts and do not take part in owner grouping.
// Output is deterministic for a given input order.
func (d *Detector) DetectAll(shortcuts []types.ShortcutInfo) []types.ConflictInfo {
	var candidates []types.ShortcutInfo
	for _, s := range shortcuts {
		if !s.IsSystem() {
			candidates = append(candidates, s)
		}
	}

	idx := keybinds.NewIndex(candidates)
	used := keybinds.NewIndex(shortcuts).Combinations()

	var conflicts []types.ConflictInfo
	for _, group := range idx.Groups() {
		owners := keybinds.DistinctOwners(group.Shortcuts)
		reserved := keybinds.IsReserved(group.Combination)

		for _, s := range group.Shortcuts {
			var suggestions []string
			if len(owners) > 1 || len(group.Shortcuts) > 1 || reserved {
				suggestions = d.analyzer.SuggestAlternatives(s, used)
			}

			switch {
			case len(owners) > 1:
				others := otherOwners(owners, s.Owner)
				conflicts = append(conflicts, types.ConflictInfo{
					ID:                ConflictID(types.ConflictGlobal, s.ID),
					ShortcutID:        s.ID,
					Type:              types.ConflictGlobal,
					ConflictingOwner:  strings.Join(others, ", "),
					ConflictingOwners: others,
					Severity:          Severity(types.ConflictGlobal, len(owners)),
					Suggestions:       suggestions,
				})
			case len(group.Shortcuts) > 1:
				conflicts = append(conflicts, types.ConflictInfo{
					ID:          ConflictID(types.ConflictApplication, s.ID),
					ShortcutID:  s.ID,
					Type:        types.ConflictApplication,
					Severity:    Severity(types.ConflictApplication, 1),
					Suggestions: suggestions,
				})
			}

			if reserved {
				conflicts = append(conflicts, types.ConflictInfo{
					ID:                ConflictID(types.ConflictSystem, s.ID),
					ShortcutID:        s.ID,
					Type:              types.ConflictSystem,
					ConflictingOwner:  types.SystemOwner,
					ConflictingOwners: []string{types.SystemOwner},
					Severity:          Severity(types.ConflictSystem, 2),
					Suggestions:       suggestions,
				})
			}
		}
	}

	return conflicts
}

// DetectRealTime checks one observed combination against every known
// shortcut. A combination used by a single shortcut is not a conflict.
// Matches owned by currentOwner are skipped.
func (d *Detector) DetectRealTime(combo, currentOwner string, allKnown []types.ShortcutInfo) []types.ConflictInfo {
	matches := keybinds.NewIndex(allKnown).Lookup(combo)
	if len(matches) < 2 {
		return nil
	}

	var conflicts []types.ConflictInfo
	for _, m := range matches {
		if m.Owner == currentOwner {
			continue
		}

		t := types.ConflictGlobal
		severity := types.SeverityMedium
		if m.IsSystem() {
			t = types.ConflictSystem
			severity = types.SeverityHigh
		}

		conflicts = append(conflicts, types.ConflictInfo{
			ID:                ConflictID(t, m.ID, currentOwner),
			ShortcutID:        m.ID,
			Type:              t,
			ConflictingOwner:  m.Owner,
			ConflictingOwners: []string{m.Owner},
			Severity:          severity,
		})
	}
	return conflicts
}

// Annotate returns copies of shortcuts with their conflicts attached.
// The input is not modified.
func (d *Detector) Annotate(shortcuts []types.ShortcutInfo) []types.ShortcutInfo {
	byShortcut := make(map[string][]types.ConflictInfo)
	for _, c := range d.DetectAll(shortcuts) {
		byShortcut[c.ShortcutID] = append(byShortcut[c.ShortcutID], c)
	}

	out := make([]types.ShortcutInfo, len(shortcuts))
	for i, s := range shortcuts {
		s.Conflicts = byShortcut[s.ID]
		out[i] = s
	}
	return out
}

// Summary counts conflicts by type and severity
type Summary struct {
	Total      int                        `json:"total" yaml:"total"`
	ByType     map[types.ConflictType]int `json:"byType" yaml:"byType"`
	BySeverity map[types.Severity]int     `json:"bySeverity" yaml:"bySeverity"`
}

// Summarize counts conflicts by type and severity
func Summarize(conflicts []types.ConflictInfo) Summary {
	s := Summary{
		Total:      len(conflicts),
		ByType:     make(map[types.ConflictType]int),
		BySeverity: make(map[types.Severity]int),
	}
	for _, c := range conflicts {
		s.ByType[c.Type]++
		s.BySeverity[c.Severity]++
	}
	return s
}

func otherOwners(owners []string, self string) []string {
	out := make([]string, 0, len(owners)-1)
	for _, o := range owners {
		if o != self {
			out = append(out, o)
		}
	}
	return out
}
