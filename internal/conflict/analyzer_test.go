package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/keyclash/internal/keybinds"
	"github.com/studiowebux/keyclash/internal/types"
)

func TestSeverity(t *testing.T) {
	tests := []struct {
		name       string
		t          types.ConflictType
		ownerCount int
		want       types.Severity
	}{
		{"system", types.ConflictSystem, 1, types.SeverityHigh},
		{"global three owners", types.ConflictGlobal, 3, types.SeverityHigh},
		{"global four owners", types.ConflictGlobal, 4, types.SeverityHigh},
		{"global two owners", types.ConflictGlobal, 2, types.SeverityMedium},
		{"global one owner", types.ConflictGlobal, 1, types.SeverityLow},
		{"application", types.ConflictApplication, 1, types.SeverityMedium},
		{"functional", types.ConflictFunctional, 5, types.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Severity(tt.t, tt.ownerCount))
		})
	}
}

func TestAnalyzerSeverityFromConflictingOwners(t *testing.T) {
	a := NewAnalyzer()
	assert.Equal(t, types.SeverityHigh, a.Severity(types.ConflictInfo{Type: types.ConflictGlobal, ConflictingOwner: "Chrome, VSCode", ConflictingOwners: []string{"Chrome", "VSCode"}}))
	assert.Equal(t, types.SeverityMedium, a.Severity(types.ConflictInfo{Type: types.ConflictGlobal, ConflictingOwner: "Chrome"}))
	assert.Equal(t, types.SeverityLow, a.Severity(types.ConflictInfo{Type: types.ConflictGlobal}))
}

func TestAnalyzerSeverityOwnerNameWithComma(t *testing.T) {
	conflicts := NewDetector().DetectAll([]types.ShortcutInfo{
		{ID: "acme.search", KeyCombination: "⌘K", Owner: "Acme, Inc."},
		{ID: "slack.search", KeyCombination: "⌘K", Owner: "Slack"},
	})

	require.Len(t, conflicts, 2)
	a := NewAnalyzer()
	for _, c := range conflicts {
		assert.Equal(t, types.SeverityMedium, c.Severity, c.ID)
		assert.Equal(t, c.Severity, a.Severity(c), c.ID)
		assert.Equal(t, 2, OwnerCount(c), c.ID)
	}
	assert.Equal(t, []string{"Slack"}, conflicts[0].ConflictingOwners)
	assert.Equal(t, []string{"Acme, Inc."}, conflicts[1].ConflictingOwners)
}

func TestSuggestAlternatives(t *testing.T) {
	tests := []struct {
		name     string
		combo    string
		existing []string
		want     []string
	}{
		{
			name:     "modifier variants in fixed order",
			combo:    "⌘K",
			existing: []string{"⌘K", "⇧⌘K"},
			want:     []string{"⌥⌘K", "⌃⌘K", "⌃⌥⌘K", "⌥⇧⌘K"},
		},
		{
			name:     "capped at five",
			combo:    "⇧⌘T",
			existing: nil,
			want:     []string{"⌘T", "⌥⌘T", "⌃⌘T", "⌃⌥⌘T", "⌥⇧⌘T"},
		},
		{
			name:     "adjacent keys when few variants remain",
			combo:    "⌘K",
			existing: []string{"⌘K", "⇧⌘K", "⌥⌘K", "⌃⌘K", "⌃⌥⌘K"},
			// ⌘, is reserved
			want: []string{"⌥⇧⌘K", "⌘J", "⌘L", "⌘I"},
		},
		{
			name:     "reserved variants skipped",
			combo:    "⇧⌘Q",
			existing: nil,
			want:     []string{"⌥⌘Q", "⌃⌥⌘Q", "⌥⇧⌘Q"},
		},
		{
			name:  "unparsable",
			combo: "⌘Fn",
			want:  nil,
		},
	}

	a := NewAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := make(map[string]bool)
			for _, e := range tt.existing {
				existing[e] = true
			}
			got := a.SuggestAlternatives(shortcut("x", tt.combo, "Slack"), existing)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuggestAlternativesNeverReturnsUsedOrReserved(t *testing.T) {
	a := NewAnalyzer()
	existing := map[string]bool{"⇧⌘S": true, "⌥⌘S": true}

	for _, combo := range []string{"⌘S", "⌘A", "⌃⌘1", "⌥⌘P"} {
		got := a.SuggestAlternatives(shortcut("x", combo, "App"), existing)
		assert.LessOrEqual(t, len(got), MaxSuggestions)

		seen := map[string]bool{}
		for _, s := range got {
			assert.False(t, existing[s], s)
			assert.False(t, keybinds.IsReserved(s), s)
			assert.NotEqual(t, combo, s)
			assert.False(t, seen[s], "duplicate %s", s)
			seen[s] = true
		}
	}
}

func TestAdjacentKeys(t *testing.T) {
	assert.Equal(t, []uint16{keybinds.KeyJ, keybinds.KeyL, keybinds.KeyI, keybinds.KeyComma}, AdjacentKeys(keybinds.KeyK))
	assert.Equal(t, []uint16{keybinds.KeyW, keybinds.Key1, keybinds.KeyA}, AdjacentKeys(keybinds.KeyQ))
	assert.Empty(t, AdjacentKeys(keybinds.KeySpace))
}

func TestAnalyze(t *testing.T) {
	a := NewAnalyzer()
	s := shortcut("finder.quit", "⌘Q", "Finder")
	c := types.ConflictInfo{ID: "system:finder.quit", ShortcutID: s.ID, Type: types.ConflictSystem, ConflictingOwner: types.SystemOwner}

	analysis := a.Analyze(c, s, map[string]bool{"⌘Q": true})
	assert.Equal(t, types.SeverityHigh, analysis.Severity)
	assert.Contains(t, analysis.Explanation, "reserved")
	assert.NotEmpty(t, analysis.Alternatives)
	assert.Contains(t, analysis.Remediation[len(analysis.Remediation)-1], analysis.Alternatives[0])
}
