package keybinds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/keyclash/internal/types"
)

// ShortcutFile is the on-disk format of a shortcut list
type ShortcutFile struct {
	Version   string               `json:"version,omitempty" yaml:"version,omitempty"`
	Shortcuts []types.ShortcutInfo `json:"shortcuts" yaml:"shortcuts"`
}

// LoadShortcuts reads a shortcut list from a .json, .jsonc, .yaml or .yml
// file. Both a bare list and a {"shortcuts": [...]} document are accepted.
func LoadShortcuts(path string) ([]types.ShortcutInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeShortcutsYAML(data)
	default:
		return decodeShortcutsJSON(jsonc.ToJSON(data))
	}
}

func decodeShortcutsJSON(data []byte) ([]types.ShortcutInfo, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []types.ShortcutInfo
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("invalid shortcut list format: %w", err)
		}
		return list, nil
	}

	var file ShortcutFile
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return nil, fmt.Errorf("invalid shortcut file format: %w", err)
	}
	return file.Shortcuts, nil
}

func decodeShortcutsYAML(data []byte) ([]types.ShortcutInfo, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("invalid shortcut file format: %w", err)
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		var list []types.ShortcutInfo
		if err := node.Decode(&list); err != nil {
			return nil, fmt.Errorf("invalid shortcut list format: %w", err)
		}
		return list, nil
	}

	var file ShortcutFile
	if err := node.Decode(&file); err != nil {
		return nil, fmt.Errorf("invalid shortcut file format: %w", err)
	}
	return file.Shortcuts, nil
}

// SaveShortcuts writes a shortcut list; the format follows the extension
func SaveShortcuts(path string, shortcuts []types.ShortcutInfo) error {
	file := ShortcutFile{Version: "1.0", Shortcuts: shortcuts}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(file)
	default:
		data, err = json.MarshalIndent(file, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
