package keybinds

import (
	"github.com/studiowebux/keyclash/internal/types"
)

type systemShortcut struct {
	combo       string
	description string
	category    types.Category
}

// systemShortcuts are combinations the host OS reserves for itself.
// Applications cannot take them over and remaps may never target them.
var systemShortcuts = []systemShortcut{
	{"⌘Q", "Quit application", types.CategorySystem},
	{"⌘W", "Close window", types.CategoryWindow},
	{"⌘H", "Hide application", types.CategoryWindow},
	{"⌘M", "Minimize window", types.CategoryWindow},
	{"⌘Tab", "Switch application", types.CategorySystem},
	{"⌘`", "Cycle windows of the application", types.CategoryWindow},
	{"⌘Space", "Spotlight search", types.CategorySystem},
	{"⌘,", "Open settings", types.CategorySystem},
	{"⌃⌘Q", "Lock screen", types.CategorySystem},
	{"⌃⌘F", "Toggle full screen", types.CategoryView},
	{"⌥⌘D", "Show or hide the Dock", types.CategorySystem},
	{"⌥⌘Esc", "Force quit", types.CategorySystem},
	{"⇧⌘3", "Screenshot of the screen", types.CategorySystem},
	{"⇧⌘4", "Screenshot of a selection", types.CategorySystem},
	{"⇧⌘5", "Screenshot and recording options", types.CategorySystem},
	{"⌃Space", "Select previous input source", types.CategorySystem},
	{"⌃↑", "Mission Control", types.CategoryNavigation},
	{"⌃↓", "Application windows", types.CategoryNavigation},
	{"⌃←", "Move one space left", types.CategoryNavigation},
	{"⌃→", "Move one space right", types.CategoryNavigation},
}

var reservedSet = buildReservedSet()

func buildReservedSet() map[string]bool {
	set := make(map[string]bool, len(systemShortcuts))
	for _, s := range systemShortcuts {
		set[MustParse(s.combo).String()] = true
	}
	return set
}

// ReservedSystemShortcuts returns the canonical reserved combinations in
// table order
func ReservedSystemShortcuts() []string {
	out := make([]string, 0, len(systemShortcuts))
	for _, s := range systemShortcuts {
		out = append(out, MustParse(s.combo).String())
	}
	return out
}

// IsReserved reports whether a combination (any accepted spelling) is
// reserved by the system
func IsReserved(combo string) bool {
	return reservedSet[Normalize(combo)]
}

// SystemShortcuts returns the reserved set as shortcuts owned by "System".
// They are the reference set for system conflicts.
func SystemShortcuts() []types.ShortcutInfo {
	out := make([]types.ShortcutInfo, 0, len(systemShortcuts))
	for _, s := range systemShortcuts {
		combo := MustParse(s.combo).String()
		out = append(out, types.ShortcutInfo{
			ID:             "system:" + combo,
			KeyCombination: combo,
			Description:    s.description,
			Owner:          types.SystemOwner,
			Category:       s.category,
		})
	}
	return out
}
