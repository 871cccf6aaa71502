package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/keyclash/internal/conflict"
	"github.com/studiowebux/keyclash/internal/types"
)

func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--home", home}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeShortcuts(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "shortcuts.jsonc")
	data := `{
  // two apps sharing ⌘K
  "shortcuts": [
    {"id": "s1", "keyCombination": "⌘K", "owner": "Slack"},
    {"id": "c1", "keyCombination": "⌘K", "owner": "Chrome"},
    {"id": "c2", "keyCombination": "⌘T", "owner": "Chrome"},
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestConflictsResolveWithRemap(t *testing.T) {
	home := t.TempDir()
	file := writeShortcuts(t, t.TempDir())

	out, err := run(t, home, "conflicts", file, "-o", "json")
	require.NoError(t, err)
	var conflicts []types.ConflictInfo
	require.NoError(t, json.Unmarshal([]byte(out), &conflicts))
	require.Len(t, conflicts, 2)

	_, err = run(t, home, "resolve", "global:s1", "-s", file, "--strategy", "remap", "--to", "⌥⌘K")
	require.NoError(t, err)

	out, err = run(t, home, "conflicts", file, "-o", "json")
	require.NoError(t, err)
	conflicts = nil
	require.NoError(t, json.Unmarshal([]byte(out), &conflicts))
	require.Len(t, conflicts, 1)
	assert.Equal(t, "global:c1", conflicts[0].ID)

	out, err = run(t, home, "conflicts", file, "--all", "-o", "json")
	require.NoError(t, err)
	conflicts = nil
	require.NoError(t, json.Unmarshal([]byte(out), &conflicts))
	assert.Len(t, conflicts, 2)

	out, err = run(t, home, "remap", "list", "-o", "json")
	require.NoError(t, err)
	var rules []types.RemappingRule
	require.NoError(t, json.Unmarshal([]byte(out), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "⌘K", rules[0].FromKey)
	assert.Equal(t, "⌥⌘K", rules[0].ToKey)
	assert.Equal(t, "Slack", rules[0].Owner)

	out, err = run(t, home, "resolutions", "list", "-o", "json")
	require.NoError(t, err)
	var records []conflict.Resolution
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, conflict.StrategyRemap, records[0].Strategy)
}

func TestResolveUnknownConflict(t *testing.T) {
	home := t.TempDir()
	file := writeShortcuts(t, t.TempDir())

	_, err := run(t, home, "resolve", "global:nope", "-s", file)
	assert.ErrorContains(t, err, "not found")
}

func TestConflictsQuery(t *testing.T) {
	home := t.TempDir()
	file := writeShortcuts(t, t.TempDir())

	out, err := run(t, home, "conflicts", file, "--query", "[].shortcutId")
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	assert.ElementsMatch(t, []string{"s1", "c1"}, ids)
}

func TestConflictsNeedsInput(t *testing.T) {
	_, err := run(t, t.TempDir(), "conflicts")
	assert.Error(t, err)
}

func TestRemapExportImport(t *testing.T) {
	home := t.TempDir()
	exported := filepath.Join(t.TempDir(), "rules.yaml")

	_, err := run(t, home, "remap", "add", "⌘K", "⌥⌘K", "--owner", "Slack")
	require.NoError(t, err)
	_, err = run(t, home, "remap", "export", "--format", "yaml", "--file", exported)
	require.NoError(t, err)

	other := t.TempDir()
	out, err := run(t, other, "remap", "import", exported, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"imported": 1`)

	out, err = run(t, other, "remap", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Slack")
}

func TestRemapRejectsReservedTarget(t *testing.T) {
	_, err := run(t, t.TempDir(), "remap", "add", "⌘K", "⌘Q", "--owner", "Slack")
	assert.Error(t, err)
}

func TestSuggest(t *testing.T) {
	home := t.TempDir()
	file := writeShortcuts(t, t.TempDir())

	out, err := run(t, home, "suggest", "⌘K", "--owner", "Slack", "-s", file, "-o", "json")
	require.NoError(t, err)
	var suggestions []string
	require.NoError(t, json.Unmarshal([]byte(out), &suggestions))
	assert.NotEmpty(t, suggestions)
	assert.NotContains(t, suggestions, "⌘K")
	assert.NotContains(t, suggestions, "⌘T")
}

func TestUsageSummaryEmpty(t *testing.T) {
	out, err := run(t, t.TempDir(), "usage", "summary", "--window", "all", "-o", "json")
	require.NoError(t, err)

	var summary types.UsageSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 0, summary.TotalUsage)
	assert.Equal(t, 100.0, summary.EfficiencyScore)
}

func TestReplay(t *testing.T) {
	home := t.TempDir()
	file := writeShortcuts(t, t.TempDir())

	_, err := run(t, home, "remap", "add", "⌘K", "⌥⌘K", "--owner", "Slack")
	require.NoError(t, err)

	events := filepath.Join(t.TempDir(), "events.jsonl")
	lines := []string{
		`{"combo": "⌘K", "down": true, "ms": 0}`,
		`{"combo": "⌘K", "down": false, "ms": 50}`,
	}
	require.NoError(t, os.WriteFile(events, []byte(strings.Join(lines, "\n")), 0644))

	out, err := run(t, home, "replay", events, "--app", "Slack", "-s", file, "-o", "json")
	require.NoError(t, err)

	var report ReplayReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Replacements, 1)
	assert.Equal(t, "⌥⌘K", report.Replacements[0].To)
	assert.Equal(t, uint64(1), report.Stats.Remapped)

	out, err = run(t, home, "usage", "summary", "--window", "all", "-o", "json")
	require.NoError(t, err)
	var summary types.UsageSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.TotalUsage)
}

func TestCacheExtractAndApps(t *testing.T) {
	home := t.TempDir()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "com.example.tool.json"),
		[]byte(`[{"id": "t1", "keyCombination": "⌥⌘J"}]`), 0644))

	_, err := run(t, home, "cache", "extract", "--dir", dir)
	require.NoError(t, err)

	out, err := run(t, home, "cache", "list", "-o", "json")
	require.NoError(t, err)
	var counts map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	assert.Equal(t, map[string]int{"com.example.tool": 1}, counts)

	candidates := filepath.Join(dir, "running.yaml")
	require.NoError(t, os.WriteFile(candidates, []byte(`
- id: com.example.tool
  name: Tool
  activationClass: accessory
- id: com.example.editor
  name: Editor
  activationClass: regular
`), 0644))

	out, err = run(t, home, "apps", "list", "--candidates", candidates)
	require.NoError(t, err)
	assert.Contains(t, out, "Tool")
	assert.NotContains(t, out, "Editor")
}

func TestOutputPrintText(t *testing.T) {
	var buf bytes.Buffer
	o := Output{Format: "text", W: &buf}
	require.NoError(t, o.Print([]string{"a"}, func(w io.Writer) { w.Write([]byte("plain\n")) }))
	assert.Equal(t, "plain\n", buf.String())
	assert.False(t, o.Structured())
	assert.True(t, Output{Query: "[0]"}.Structured())
}

func TestSavedQueryReference(t *testing.T) {
	home := t.TempDir()
	file := writeShortcuts(t, t.TempDir())

	out, err := run(t, home, "queries", "save", "[].shortcutId")
	require.NoError(t, err)
	assert.Contains(t, out, "@1")

	out, err = run(t, home, "conflicts", file, "--query", "@1")
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	assert.ElementsMatch(t, []string{"s1", "c1"}, ids)

	_, err = run(t, home, "conflicts", file, "--query", "@7")
	assert.ErrorContains(t, err, "not found")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeShortcuts(t, dir)
	_, err := run(t, t.TempDir(), "validate", good)
	require.NoError(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"id": "x", "keyCombination": "⌘K"}]`), 0644))
	out, err := run(t, t.TempDir(), "validate", bad)
	assert.Error(t, err)
	assert.Contains(t, out, "owner cannot be empty")
}

func TestSettingsSet(t *testing.T) {
	home := t.TempDir()

	_, err := run(t, home, "settings", "set", "cache_capacity", "12")
	require.NoError(t, err)
	out, err := run(t, home, "settings")
	require.NoError(t, err)
	assert.Contains(t, out, "cache_capacity: 12")

	_, err = run(t, home, "settings", "set", "cache_capacity", "many")
	assert.Error(t, err)
	_, err = run(t, home, "settings", "set", "double_press_threshold_seconds", "9")
	assert.Error(t, err)
	_, err = run(t, home, "settings", "set", "colour", "red")
	assert.ErrorContains(t, err, "unknown setting")
}
