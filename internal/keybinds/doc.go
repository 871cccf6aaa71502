/*
Package keybinds models key combinations and the shortcut index.

# Key Combinations

A KeyCombination is a virtual key code plus a Modifier bit-set
(control, option, shift, command). It is a comparable value. String
returns the canonical display form with modifier glyphs in fixed order
followed by the key name:

	⌃⌥⇧⌘T

Parse accepts both glyph form ("⇧⌘T") and word form ("cmd+shift+t").
Normalize canonicalizes user text and leaves unknown spellings verbatim.

# Detectors

KeyCombinationDetector turns key-down events carrying a modifier into
combinations. DoublePressDetector recognizes a modifier tapped twice
within a threshold; GestureDetector runs one per modifier.

Both must be fed from a single goroutine in arrival order. The
double-press state machine depends on monotonic timestamps.

# Reserved Shortcuts

The system reserves a fixed set of combinations (defaults.go). They are
the reference set for system conflicts and may never be a remap target.

# Index

Index groups shortcuts by canonical combination. Malformed shortcuts
(empty id, owner or combination) are dropped instead of raising.
*/
package keybinds
