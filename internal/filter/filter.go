package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmespath/go-jmespath"

	"github.com/studiowebux/keyclash/internal/types"
)

// Apply narrows a JSON document with filter, then reshapes it with query.
// Either expression may be empty. A document left untouched by both is
// returned as given.
func Apply(body, filter, query string) (string, error) {
	if filter == "" && query == "" {
		return body, nil
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	for _, step := range []struct{ kind, expr string }{{"filter", filter}, {"query", query}} {
		if step.expr == "" {
			continue
		}
		out, err := search(step.expr, doc)
		if err != nil {
			return "", fmt.Errorf("failed to apply %s: %w", step.kind, err)
		}
		doc = out
	}

	if doc == nil {
		return "null", nil
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(out), nil
}

func search(expression string, doc any) (any, error) {
	jp, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid JMESPath expression %q: %w", expression, err)
	}
	return jp.Search(doc)
}

// IsValidJMESPath reports whether expression compiles
func IsValidJMESPath(expression string) bool {
	_, err := jmespath.Compile(expression)
	return err == nil
}

// Criteria narrows a conflict list. Zero values match everything.
type Criteria struct {
	MinSeverity types.Severity
	Types       []types.ConflictType
	Owners      []string // matched against the conflicting owner list, case-insensitive
}

// FilterConflicts returns the conflicts matching every criterion
func FilterConflicts(conflicts []types.ConflictInfo, c Criteria) []types.ConflictInfo {
	filtered := []types.ConflictInfo{}
	for _, conflict := range conflicts {
		if conflict.Severity < c.MinSeverity {
			continue
		}
		if len(c.Types) > 0 && !hasType(c.Types, conflict.Type) {
			continue
		}
		if len(c.Owners) > 0 && !hasAnyOwner(conflictOwners(conflict), c.Owners) {
			continue
		}
		filtered = append(filtered, conflict)
	}
	return filtered
}

// FilterShortcutsByOwner filters shortcuts owned by ANY of the specified owners
func FilterShortcutsByOwner(shortcuts []types.ShortcutInfo, owners []string) []types.ShortcutInfo {
	if len(owners) == 0 {
		return shortcuts
	}

	var filtered []types.ShortcutInfo
	for _, s := range shortcuts {
		if hasAnyOwner([]string{s.Owner}, owners) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func hasType(list []types.ConflictType, t types.ConflictType) bool {
	for _, candidate := range list {
		if candidate == t {
			return true
		}
	}
	return false
}

func conflictOwners(c types.ConflictInfo) []string {
	if len(c.ConflictingOwners) > 0 {
		return c.ConflictingOwners
	}
	return []string{c.ConflictingOwner}
}

// hasAnyOwner checks if any of owners appears in the filter list
func hasAnyOwner(owners, filterOwners []string) bool {
	for _, filterOwner := range filterOwners {
		for _, owner := range owners {
			if strings.EqualFold(strings.TrimSpace(owner), filterOwner) {
				return true
			}
		}
	}
	return false
}
