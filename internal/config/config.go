package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755
)

// Paths holds every on-disk location keyclash uses
type Paths struct {
	// ConfigDir is the configuration directory (~/.keyclash)
	ConfigDir string

	// DatabasePath is the SQLite database for rules, cache, resolutions and usage
	DatabasePath string

	// SettingsFile is the YAML settings file
	SettingsFile string

	// LogDir holds rotated log files
	LogDir string
}

// NewPaths derives all paths from a configuration directory
func NewPaths(configDir string) Paths {
	return Paths{
		ConfigDir:    configDir,
		DatabasePath: filepath.Join(configDir, "keyclash.db"),
		SettingsFile: filepath.Join(configDir, "settings.yaml"),
		LogDir:       filepath.Join(configDir, "logs"),
	}
}

// DefaultConfigDir returns ~/.keyclash, or $KEYCLASH_HOME when set
func DefaultConfigDir() (string, error) {
	if dir := os.Getenv("KEYCLASH_HOME"); dir != "" {
		return expandHome(dir)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".keyclash"), nil
}

// Initialize sets up the configuration directory and a default settings file.
// An empty dir selects DefaultConfigDir.
func Initialize(dir string) (Paths, error) {
	if dir == "" {
		d, err := DefaultConfigDir()
		if err != nil {
			return Paths{}, err
		}
		dir = d
	}

	dir, err := expandHome(dir)
	if err != nil {
		return Paths{}, err
	}
	paths := NewPaths(dir)

	// Create directories if they don't exist
	for _, d := range []string{paths.ConfigDir, paths.LogDir} {
		if err := os.MkdirAll(d, DirPermissions); err != nil {
			return Paths{}, fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}

	// Create default settings file if it doesn't exist
	if _, err := os.Stat(paths.SettingsFile); os.IsNotExist(err) {
		data, err := DefaultSettings().Marshal()
		if err != nil {
			return Paths{}, err
		}
		if err := os.WriteFile(paths.SettingsFile, data, FilePermissions); err != nil {
			return Paths{}, fmt.Errorf("failed to create settings file: %w", err)
		}
	}

	return paths, nil
}

func expandHome(p string) (string, error) {
	if !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, p[2:]), nil
}
