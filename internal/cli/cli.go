// Package cli implements the keyclash command line.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/studiowebux/keyclash/internal/keybinds"
	"github.com/studiowebux/keyclash/internal/types"
)

// isInteractive checks if stdin is a terminal (not piped)
func isInteractive() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// confirm asks a yes/no question on stderr. Non-interactive sessions
// answer no.
func confirm(in io.Reader, question string) bool {
	if !isInteractive() {
		return false
	}
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// readInput reads a whole file, or stdin when path is empty or "-"
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		if isInteractive() {
			return nil, fmt.Errorf("no input file given and stdin is a terminal")
		}
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// loadShortcutFiles loads and concatenates shortcut lists
func loadShortcutFiles(paths []string) ([]types.ShortcutInfo, error) {
	var all []types.ShortcutInfo
	for _, p := range paths {
		shortcuts, err := keybinds.LoadShortcuts(p)
		if err != nil {
			return nil, fmt.Errorf("failed to load shortcuts from %s: %w", p, err)
		}
		all = append(all, shortcuts...)
	}
	return all, nil
}

// withSystemShortcuts appends the built-in reserved set unless the list
// already carries system entries
func withSystemShortcuts(shortcuts []types.ShortcutInfo) []types.ShortcutInfo {
	for _, s := range shortcuts {
		if s.IsSystem() {
			return shortcuts
		}
	}
	return append(shortcuts, keybinds.SystemShortcuts()...)
}

func findShortcut(shortcuts []types.ShortcutInfo, id string) (types.ShortcutInfo, bool) {
	for _, s := range shortcuts {
		if s.ID == id {
			return s, true
		}
	}
	return types.ShortcutInfo{}, false
}
