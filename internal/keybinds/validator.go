package keybinds

import (
	"fmt"
	"strings"

	"github.com/studiowebux/keyclash/internal/types"
)

// ValidationError describes why a shortcut was not indexed
type ValidationError struct {
	Type       string // "invalid", "warning"
	ShortcutID string
	Key        string
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s (%s): %s", e.Type, e.Key, e.ShortcutID, e.Message)
}

// ValidationResult contains all validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any errors
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any warnings
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// String returns a human-readable summary of validation results
func (r *ValidationResult) String() string {
	var sb strings.Builder

	if len(r.Errors) > 0 {
		sb.WriteString(fmt.Sprintf("Errors (%d):\n", len(r.Errors)))
		for _, err := range r.Errors {
			sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
		}
	}

	if len(r.Warnings) > 0 {
		sb.WriteString(fmt.Sprintf("Warnings (%d):\n", len(r.Warnings)))
		for _, warn := range r.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn.Error()))
		}
	}

	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}

	return sb.String()
}

// ValidateShortcut checks the fields the index depends on
func ValidateShortcut(s types.ShortcutInfo) error {
	if strings.TrimSpace(s.KeyCombination) == "" {
		return &ValidationError{Type: "invalid", ShortcutID: s.ID, Message: "key combination cannot be empty"}
	}
	if s.ID == "" {
		return &ValidationError{Type: "invalid", Key: s.KeyCombination, Message: "shortcut id cannot be empty"}
	}
	if s.Owner == "" {
		return &ValidationError{Type: "invalid", ShortcutID: s.ID, Key: s.KeyCombination, Message: "owner cannot be empty"}
	}
	return nil
}

// ValidateShortcuts checks a shortcut list. Malformed entries are errors;
// unknown keys, plain keys without modifiers and duplicate ids are warnings.
func ValidateShortcuts(shortcuts []types.ShortcutInfo) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	seenIDs := make(map[string]bool)
	for _, s := range shortcuts {
		if err := ValidateShortcut(s); err != nil {
			result.Errors = append(result.Errors, *err.(*ValidationError))
			continue
		}

		if seenIDs[s.ID] {
			result.Warnings = append(result.Warnings, ValidationError{
				Type:       "warning",
				ShortcutID: s.ID,
				Key:        s.KeyCombination,
				Message:    "duplicate shortcut id",
			})
		}
		seenIDs[s.ID] = true

		combo, err := Parse(s.KeyCombination)
		if err != nil {
			result.Warnings = append(result.Warnings, ValidationError{
				Type:       "warning",
				ShortcutID: s.ID,
				Key:        s.KeyCombination,
				Message:    "unrecognized combination, compared verbatim",
			})
			continue
		}
		if !combo.IsShortcut() {
			result.Warnings = append(result.Warnings, ValidationError{
				Type:       "warning",
				ShortcutID: s.ID,
				Key:        s.KeyCombination,
				Message:    "no modifier, plain keys are not shortcuts",
			})
		}
	}

	return result
}

// FilterValid returns the shortcuts that pass ValidateShortcut
func FilterValid(shortcuts []types.ShortcutInfo) []types.ShortcutInfo {
	out := make([]types.ShortcutInfo, 0, len(shortcuts))
	for _, s := range shortcuts {
		if ValidateShortcut(s) == nil {
			out = append(out, s)
		}
	}
	return out
}
