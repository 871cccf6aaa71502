/*
Package types defines the data model shared by every keyclash package.

# Shortcuts and conflicts

ShortcutInfo is produced by an extractor or by a built-in provider list.
Its KeyCombination field holds the canonical display form (for example
"⇧⌘T"). The Conflicts slice is a detection result attached for display
and is never treated as state.

ConflictInfo is regenerated by every detection pass. Conflict IDs are
deterministic so that resolutions recorded by the user survive re-detection.

# Remapping

RemappingRule is identified by (Owner, FromKey). For one owner the rules
form a functional mapping with no chains or cycles; see package remap.

# Usage

UsageRecord is append-only. UsageSummary and TrendPoint are read models
computed by package analytics.
*/
package types
