package keybinds

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Modifier is a bit-set of the four shortcut modifiers
type Modifier uint8

const (
	ModControl Modifier = 1 << iota
	ModOption
	ModShift
	ModCommand
)

// ModNone indicates no modifiers
const ModNone Modifier = 0

// AllModifiers lists the modifiers in display order
var AllModifiers = []Modifier{ModControl, ModOption, ModShift, ModCommand}

var modifierGlyphs = map[Modifier]string{
	ModControl: "⌃",
	ModOption:  "⌥",
	ModShift:   "⇧",
	ModCommand: "⌘",
}

var glyphModifiers = map[rune]Modifier{
	'⌃': ModControl,
	'⌥': ModOption,
	'⇧': ModShift,
	'⌘': ModCommand,
}

// modifierNames maps modifier words (lowercase) to Modifier values
var modifierNames = map[string]Modifier{
	"ctrl":    ModControl,
	"control": ModControl,
	"⌃":       ModControl,
	"alt":     ModOption,
	"opt":     ModOption,
	"option":  ModOption,
	"⌥":       ModOption,
	"shift":   ModShift,
	"⇧":       ModShift,
	"cmd":     ModCommand,
	"command": ModCommand,
	"meta":    ModCommand,
	"super":   ModCommand,
	"⌘":       ModCommand,
}

// Has returns true if m contains every bit of mod
func (m Modifier) Has(mod Modifier) bool {
	return mod != ModNone && m&mod == mod
}

// With returns a new Modifier with mod added
func (m Modifier) With(mod Modifier) Modifier {
	return m | mod
}

// Without returns a new Modifier with mod removed
func (m Modifier) Without(mod Modifier) Modifier {
	return m &^ mod
}

// IsEmpty returns true if no modifiers are set
func (m Modifier) IsEmpty() bool {
	return m == ModNone
}

// Count returns the number of modifiers set
func (m Modifier) Count() int {
	n := 0
	for _, mod := range AllModifiers {
		if m.Has(mod) {
			n++
		}
	}
	return n
}

// String returns the glyph form in display order, e.g. "⌃⇧⌘"
func (m Modifier) String() string {
	var sb strings.Builder
	for _, mod := range AllModifiers {
		if m.Has(mod) {
			sb.WriteString(modifierGlyphs[mod])
		}
	}
	return sb.String()
}

// KeyCombination is a key code plus modifier set. It is comparable and
// safe to use as a map key.
type KeyCombination struct {
	KeyCode   uint16
	Modifiers Modifier
}

// NewKeyCombination builds a combination from a key code and modifiers
func NewKeyCombination(keyCode uint16, mods Modifier) KeyCombination {
	return KeyCombination{KeyCode: keyCode, Modifiers: mods}
}

// IsShortcut reports whether the combination carries at least one modifier.
// A plain key press is not a shortcut.
func (k KeyCombination) IsShortcut() bool {
	return !k.Modifiers.IsEmpty()
}

// KeyName returns the display name of the base key
func (k KeyCombination) KeyName() string {
	return KeyName(k.KeyCode)
}

// String returns the canonical display form, e.g. "⇧⌘T"
func (k KeyCombination) String() string {
	return k.Modifiers.String() + k.KeyName()
}

// WithModifiers returns the same key with a different modifier set
func (k KeyCombination) WithModifiers(mods Modifier) KeyCombination {
	return KeyCombination{KeyCode: k.KeyCode, Modifiers: mods}
}

// WithKey returns the same modifiers on a different key
func (k KeyCombination) WithKey(code uint16) KeyCombination {
	return KeyCombination{KeyCode: code, Modifiers: k.Modifiers}
}

// Parse reads a combination in glyph form ("⇧⌘T", "⌃Space") or word
// form ("cmd+shift+t", "ctrl+option+space").
func Parse(s string) (KeyCombination, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return KeyCombination{}, fmt.Errorf("key combination cannot be empty")
	}

	var mods Modifier
	keyPart := s

	// Word form; a lone "+" or a trailing "+" is not treated as a separator
	if strings.Contains(s, "+") && len(s) > 1 && !strings.HasSuffix(s, "+") {
		parts := strings.Split(s, "+")
		keyPart = strings.TrimSpace(parts[len(parts)-1])
		for _, part := range parts[:len(parts)-1] {
			name := strings.ToLower(strings.TrimSpace(part))
			mod, ok := modifierNames[name]
			if !ok {
				return KeyCombination{}, fmt.Errorf("unknown modifier %q in %q", part, s)
			}
			mods = mods.With(mod)
		}
	}

	// Glyph prefixes, always followed by a key
	for {
		r, size := utf8.DecodeRuneInString(keyPart)
		mod, ok := glyphModifiers[r]
		if !ok || size >= len(keyPart) {
			break
		}
		mods = mods.With(mod)
		keyPart = keyPart[size:]
	}

	code, ok := KeyCodeForName(keyPart)
	if !ok {
		return KeyCombination{}, fmt.Errorf("unknown key %q in %q", keyPart, s)
	}
	return KeyCombination{KeyCode: code, Modifiers: mods}, nil
}

// MustParse is Parse for static tables; it panics on error
func MustParse(s string) KeyCombination {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// Normalize returns the canonical form of s when it parses, otherwise the
// trimmed input. Unknown keys still compare exactly against each other.
func Normalize(s string) string {
	k, err := Parse(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return k.String()
}
