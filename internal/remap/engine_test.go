package remap

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/keyclash/internal/keybinds"
)

func TestCycleAndChainRejection(t *testing.T) {
	e := NewEngine()
	_, err := e.Add("⌘T", "⇧⌘T", "app")
	require.NoError(t, err)

	_, err = e.Add("⇧⌘T", "⌘T", "app")
	require.Error(t, err)
	reason, ok := ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, ReasonCycle, reason)

	_, err = e.Add("⇧⌘T", "⌘Y", "app")
	require.Error(t, err)
	reason, _ = ReasonOf(err)
	assert.Equal(t, ReasonChain, reason)

	// Rules of another owner are independent
	_, err = e.Add("⇧⌘T", "⌘T", "other")
	assert.NoError(t, err)
}

func TestAddValidation(t *testing.T) {
	tests := []struct {
		name   string
		from   string
		to     string
		owner  string
		reason Reason
	}{
		{"self map", "⌘K", "⌘K", "Slack", ReasonSelfMap},
		{"self map across spellings", "cmd+k", "⌘K", "Slack", ReasonSelfMap},
		{"reserved target", "⌘K", "⌘Q", "Slack", ReasonReservedTarget},
		{"reserved target word form", "⌘K", "cmd+space", "Slack", ReasonReservedTarget},
		{"unparsable from", "⌘Banana", "⌘J", "Slack", ReasonMalformed},
		{"empty to", "⌘K", "", "Slack", ReasonMalformed},
		{"empty owner", "⌘K", "⌘J", " ", ReasonMalformed},
		{"plain key", "k", "⌘J", "Slack", ReasonMalformed},
		{"target already remapped", "⌘K", "⌘L", "Slack", ReasonChain},
		{"source already a target", "⌘N", "⌘P", "Slack", ReasonChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine()
			_, err := e.Add("⌘L", "⌘N", "Slack")
			require.NoError(t, err)

			_, err = e.Add(tt.from, tt.to, tt.owner)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			reason, _ := ReasonOf(err)
			assert.Equal(t, tt.reason, reason)

			// Nothing changed
			assert.Len(t, e.Rules(), 1)
		})
	}
}

func TestAddOverwritesSameSource(t *testing.T) {
	e := NewEngine()
	_, err := e.Add("⌘K", "⌥⌘K", "Slack")
	require.NoError(t, err)
	_, err = e.Add("cmd+k", "⌃⌘K", "Slack")
	require.NoError(t, err)

	rules := e.RulesFor("Slack")
	require.Len(t, rules, 1)
	assert.Equal(t, "⌃⌘K", rules[0].ToKey)
}

func TestInvariantsHoldAfterRandomishSequence(t *testing.T) {
	e := NewEngine()
	keys := []string{"⌘A", "⌘B", "⌘C", "⌘D", "⌘E"}
	for _, from := range keys {
		for _, to := range keys {
			_, _ = e.Add(from, to, "app")
		}
	}

	rules := e.RulesFor("app")
	froms := map[string]bool{}
	for _, r := range rules {
		assert.NotEqual(t, r.FromKey, r.ToKey)
		assert.False(t, froms[r.FromKey])
		froms[r.FromKey] = true
	}
	for _, r := range rules {
		assert.False(t, froms[r.ToKey], "%s -> %s chains", r.FromKey, r.ToKey)
	}
}

func TestLookupAndApply(t *testing.T) {
	e := NewEngine()
	_, err := e.Add("shift+cmd+t", "⌥⌘T", "Chrome")
	require.NoError(t, err)

	to, ok := e.Lookup("⇧⌘T", "Chrome")
	require.True(t, ok)
	assert.Equal(t, "⌥⌘T", to)

	_, ok = e.Lookup("⇧⌘T", "Safari")
	assert.False(t, ok)

	target, ok := e.Apply(keybinds.MustParse("⇧⌘T"), "Chrome")
	require.True(t, ok)
	assert.Equal(t, keybinds.NewKeyCombination(keybinds.KeyT, keybinds.ModOption|keybinds.ModCommand), target)

	_, ok = e.Apply(keybinds.MustParse("⌘T"), "Chrome")
	assert.False(t, ok)
}

func TestRemoveAndClear(t *testing.T) {
	e := NewEngine()
	for _, r := range [][3]string{
		{"⌘K", "⌥⌘K", "Slack"},
		{"⌘J", "⌥⌘J", "Slack"},
		{"⌘K", "⌥⌘K", "Chrome"},
	} {
		_, err := e.Add(r[0], r[1], r[2])
		require.NoError(t, err)
	}

	assert.True(t, e.Remove("cmd+k", "Slack"))
	assert.False(t, e.Remove("⌘K", "Slack"))
	assert.False(t, e.Remove("⌘K", "Nobody"))

	assert.Equal(t, 1, e.ClearOwner("Slack"))
	assert.Equal(t, 0, e.ClearOwner("Slack"))

	stats := e.Stats()
	assert.Equal(t, 1, stats.TotalRules)
	assert.Equal(t, map[string]int{"Chrome": 1}, stats.PerOwner)

	assert.Equal(t, 1, e.ClearAll())
	assert.Empty(t, e.Rules())
}

func TestRulesSorted(t *testing.T) {
	e := NewEngine()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return now })

	_, _ = e.Add("⌘K", "⌥⌘K", "Slack")
	_, _ = e.Add("⌘B", "⌥⌘B", "Slack")
	_, _ = e.Add("⌘Z", "⌥⌘Z", "Chrome")

	rules := e.Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, "Chrome", rules[0].Owner)
	assert.Equal(t, "⌘B", rules[1].FromKey)
	assert.Equal(t, "⌘K", rules[2].FromKey)
	assert.Equal(t, now, rules[0].CreatedAt)
}
