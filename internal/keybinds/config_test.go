package keybinds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/keyclash/internal/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadShortcuts(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantLen int
		wantErr bool
	}{
		{
			name: "jsonc document with comments",
			file: "shortcuts.jsonc",
			content: `{
				// exported from the menu bar
				"shortcuts": [
					{"id": "slack.search", "keyCombination": "⌘K", "owner": "Slack"},
					{"id": "chrome.tab", "keyCombination": "⌘T", "owner": "Chrome",},
				]
			}`,
			wantLen: 2,
		},
		{
			name:    "json bare list",
			file:    "shortcuts.json",
			content: `[{"id": "a", "keyCombination": "⌘K", "owner": "Slack"}]`,
			wantLen: 1,
		},
		{
			name: "yaml document",
			file: "shortcuts.yaml",
			content: `version: "1.0"
shortcuts:
  - id: a
    keyCombination: ⌘K
    owner: Slack
  - id: b
    keyCombination: ⌘J
    owner: Slack
`,
			wantLen: 2,
		},
		{
			name: "yaml bare list",
			file: "shortcuts.yml",
			content: `- id: a
  keyCombination: ⌘K
  owner: Slack
`,
			wantLen: 1,
		},
		{
			name:    "broken json",
			file:    "shortcuts.json",
			content: `{"shortcuts": [`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			got, err := LoadShortcuts(path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestSaveLoadShortcuts(t *testing.T) {
	want := []types.ShortcutInfo{
		{ID: "a", KeyCombination: "⌘K", Owner: "Slack", Description: "Search", Category: types.CategoryNavigation},
		{ID: "b", KeyCombination: "⇧⌘T", Owner: "Chrome", IsCustom: true},
	}

	for _, ext := range []string{".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "shortcuts"+ext)
			require.NoError(t, SaveShortcuts(path, want))

			got, err := LoadShortcuts(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadShortcutsMissingFile(t *testing.T) {
	_, err := LoadShortcuts(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
