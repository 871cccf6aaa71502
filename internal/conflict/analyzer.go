package conflict

import (
	"fmt"
	"strings"

	"github.com/studiowebux/keyclash/internal/keybinds"
	"github.com/studiowebux/keyclash/internal/types"
)

// MaxSuggestions caps SuggestAlternatives
const MaxSuggestions = 5

// adjacentThreshold is the number of modifier variants below which
// neighbouring keys are tried as well
const adjacentThreshold = 3

// alternativeModifiers is the fixed order modifier variants are tried in
var alternativeModifiers = []keybinds.Modifier{
	keybinds.ModCommand,
	keybinds.ModShift | keybinds.ModCommand,
	keybinds.ModOption | keybinds.ModCommand,
	keybinds.ModControl | keybinds.ModCommand,
	keybinds.ModControl | keybinds.ModOption | keybinds.ModCommand,
	keybinds.ModOption | keybinds.ModShift | keybinds.ModCommand,
}

// qwertyRows drive the adjacency table
var qwertyRows = [][]uint16{
	{keybinds.Key1, keybinds.Key2, keybinds.Key3, keybinds.Key4, keybinds.Key5, keybinds.Key6, keybinds.Key7, keybinds.Key8, keybinds.Key9, keybinds.Key0, keybinds.KeyMinus, keybinds.KeyEqual},
	{keybinds.KeyQ, keybinds.KeyW, keybinds.KeyE, keybinds.KeyR, keybinds.KeyT, keybinds.KeyY, keybinds.KeyU, keybinds.KeyI, keybinds.KeyO, keybinds.KeyP, keybinds.KeyLeftBracket, keybinds.KeyRightBracket},
	{keybinds.KeyA, keybinds.KeyS, keybinds.KeyD, keybinds.KeyF, keybinds.KeyG, keybinds.KeyH, keybinds.KeyJ, keybinds.KeyK, keybinds.KeyL, keybinds.KeySemicolon, keybinds.KeyQuote},
	{keybinds.KeyZ, keybinds.KeyX, keybinds.KeyC, keybinds.KeyV, keybinds.KeyB, keybinds.KeyN, keybinds.KeyM, keybinds.KeyComma, keybinds.KeyPeriod, keybinds.KeySlash},
}

// adjacentKeys lists, per key, its neighbours in the order left, right,
// above, below
var adjacentKeys = buildAdjacency(qwertyRows)

func buildAdjacency(rows [][]uint16) map[uint16][]uint16 {
	adj := make(map[uint16][]uint16)
	for r, row := range rows {
		for i, code := range row {
			var n []uint16
			if i > 0 {
				n = append(n, row[i-1])
			}
			if i < len(row)-1 {
				n = append(n, row[i+1])
			}
			if r > 0 && i < len(rows[r-1]) {
				n = append(n, rows[r-1][i])
			}
			if r < len(rows)-1 && i < len(rows[r+1]) {
				n = append(n, rows[r+1][i])
			}
			adj[code] = n
		}
	}
	return adj
}

// AdjacentKeys returns the neighbours of a key on a QWERTY layout
func AdjacentKeys(code uint16) []uint16 {
	return adjacentKeys[code]
}

// Analysis is a conflict enriched for display
type Analysis struct {
	Conflict     types.ConflictInfo `json:"conflict" yaml:"conflict"`
	Severity     types.Severity     `json:"severity" yaml:"severity"`
	Explanation  string             `json:"explanation" yaml:"explanation"`
	Remediation  []string           `json:"remediation" yaml:"remediation"`
	Alternatives []string           `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
}

// Analyzer re-assesses conflicts and proposes replacement combinations.
// It holds no state.
type Analyzer struct{}

// NewAnalyzer creates an analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Severity ranks a conflict from its type and the number of distinct
// owners involved
func Severity(t types.ConflictType, ownerCount int) types.Severity {
	switch t {
	case types.ConflictSystem:
		return types.SeverityHigh
	case types.ConflictGlobal:
		switch {
		case ownerCount >= 3:
			return types.SeverityHigh
		case ownerCount == 2:
			return types.SeverityMedium
		default:
			return types.SeverityLow
		}
	case types.ConflictApplication:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

// OwnerCount is the number of owners involved in a conflict: the
// shortcut's own owner plus every conflicting owner. A conflict carrying
// only the display form counts as two owners.
func OwnerCount(c types.ConflictInfo) int {
	switch {
	case len(c.ConflictingOwners) > 0:
		return len(c.ConflictingOwners) + 1
	case strings.TrimSpace(c.ConflictingOwner) != "":
		return 2
	default:
		return 1
	}
}

// Severity re-assesses a conflict produced by a detection pass
func (a *Analyzer) Severity(c types.ConflictInfo) types.Severity {
	return Severity(c.Type, OwnerCount(c))
}

// Analyze explains a conflict and suggests how to fix it. existing is the
// set of canonical combinations currently in use.
func (a *Analyzer) Analyze(c types.ConflictInfo, s types.ShortcutInfo, existing map[string]bool) Analysis {
	combo := keybinds.Normalize(s.KeyCombination)
	analysis := Analysis{
		Conflict:     c,
		Severity:     a.Severity(c),
		Alternatives: a.SuggestAlternatives(s, existing),
	}

	switch c.Type {
	case types.ConflictSystem:
		analysis.Explanation = fmt.Sprintf("%s is reserved by the system; %s will never receive it", combo, s.Owner)
		analysis.Remediation = []string{
			fmt.Sprintf("Remap %s in %s to an unused combination", combo, s.Owner),
			"Disable the shortcut in the application settings",
		}
	case types.ConflictGlobal:
		analysis.Explanation = fmt.Sprintf("%s is bound by %s and %s", combo, s.Owner, c.ConflictingOwner)
		analysis.Remediation = []string{
			fmt.Sprintf("Remap %s for the application you use least", combo),
			"Ignore the conflict if the applications are never used together",
		}
	case types.ConflictApplication:
		analysis.Explanation = fmt.Sprintf("%s is defined more than once in %s", combo, s.Owner)
		analysis.Remediation = []string{
			"Keep one definition and remap the others",
		}
	default:
		analysis.Explanation = fmt.Sprintf("%s performs the same action as another shortcut", combo)
		analysis.Remediation = []string{
			"Pick one combination for the action and disable the other",
		}
	}

	if len(analysis.Alternatives) > 0 {
		analysis.Remediation = append(analysis.Remediation,
			fmt.Sprintf("Try %s", strings.Join(analysis.Alternatives, ", ")))
	}
	return analysis
}

// SuggestAlternatives proposes up to MaxSuggestions unused combinations for
// a shortcut. Modifier variants on the same key come first in a fixed
// order; neighbouring keys with the original modifiers follow only when
// fewer than three variants were found. Combinations in existing, reserved
// combinations and the original are skipped.
func (a *Analyzer) SuggestAlternatives(s types.ShortcutInfo, existing map[string]bool) []string {
	combo, err := keybinds.Parse(s.KeyCombination)
	if err != nil {
		return nil
	}

	original := combo.String()
	seen := map[string]bool{original: true}
	var out []string

	add := func(candidate keybinds.KeyCombination) {
		if len(out) >= MaxSuggestions {
			return
		}
		c := candidate.String()
		if seen[c] || existing[c] || keybinds.IsReserved(c) {
			return
		}
		seen[c] = true
		out = append(out, c)
	}

	for _, mods := range alternativeModifiers {
		if mods == combo.Modifiers {
			continue
		}
		add(combo.WithModifiers(mods))
	}

	if len(out) < adjacentThreshold && combo.IsShortcut() {
		for _, code := range AdjacentKeys(combo.KeyCode) {
			add(combo.WithKey(code))
		}
	}

	return out
}
