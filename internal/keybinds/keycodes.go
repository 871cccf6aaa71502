package keybinds

import (
	"fmt"
	"strconv"
	"strings"
)

// Virtual key codes of an ANSI keyboard as reported by the host OS
const (
	KeyA            uint16 = 0
	KeyS            uint16 = 1
	KeyD            uint16 = 2
	KeyF            uint16 = 3
	KeyH            uint16 = 4
	KeyG            uint16 = 5
	KeyZ            uint16 = 6
	KeyX            uint16 = 7
	KeyC            uint16 = 8
	KeyV            uint16 = 9
	KeyB            uint16 = 11
	KeyQ            uint16 = 12
	KeyW            uint16 = 13
	KeyE            uint16 = 14
	KeyR            uint16 = 15
	KeyY            uint16 = 16
	KeyT            uint16 = 17
	Key1            uint16 = 18
	Key2            uint16 = 19
	Key3            uint16 = 20
	Key4            uint16 = 21
	Key6            uint16 = 22
	Key5            uint16 = 23
	KeyEqual        uint16 = 24
	Key9            uint16 = 25
	Key7            uint16 = 26
	KeyMinus        uint16 = 27
	Key8            uint16 = 28
	Key0            uint16 = 29
	KeyRightBracket uint16 = 30
	KeyO            uint16 = 31
	KeyU            uint16 = 32
	KeyLeftBracket  uint16 = 33
	KeyI            uint16 = 34
	KeyP            uint16 = 35
	KeyReturn       uint16 = 36
	KeyL            uint16 = 37
	KeyJ            uint16 = 38
	KeyQuote        uint16 = 39
	KeyK            uint16 = 40
	KeySemicolon    uint16 = 41
	KeyBackslash    uint16 = 42
	KeyComma        uint16 = 43
	KeySlash        uint16 = 44
	KeyN            uint16 = 45
	KeyM            uint16 = 46
	KeyPeriod       uint16 = 47
	KeyTab          uint16 = 48
	KeySpace        uint16 = 49
	KeyGrave        uint16 = 50
	KeyDelete       uint16 = 51
	KeyEscape       uint16 = 53
	KeyRightCommand uint16 = 54
	KeyCommand      uint16 = 55
	KeyShift        uint16 = 56
	KeyCapsLock     uint16 = 57
	KeyOption       uint16 = 58
	KeyControl      uint16 = 59
	KeyRightShift   uint16 = 60
	KeyRightOption  uint16 = 61
	KeyRightControl uint16 = 62
	KeyF5           uint16 = 96
	KeyF6           uint16 = 97
	KeyF7           uint16 = 98
	KeyF3           uint16 = 99
	KeyF8           uint16 = 100
	KeyF9           uint16 = 101
	KeyF11          uint16 = 103
	KeyF10          uint16 = 109
	KeyF12          uint16 = 111
	KeyHome         uint16 = 115
	KeyPageUp       uint16 = 116
	KeyForwardDel   uint16 = 117
	KeyF4           uint16 = 118
	KeyEnd          uint16 = 119
	KeyF2           uint16 = 120
	KeyPageDown     uint16 = 121
	KeyF1           uint16 = 122
	KeyLeft         uint16 = 123
	KeyRight        uint16 = 124
	KeyDown         uint16 = 125
	KeyUp           uint16 = 126
)

// keyNames holds the display name of every known key code
var keyNames = map[uint16]string{
	KeyA: "A", KeyB: "B", KeyC: "C", KeyD: "D", KeyE: "E", KeyF: "F", KeyG: "G",
	KeyH: "H", KeyI: "I", KeyJ: "J", KeyK: "K", KeyL: "L", KeyM: "M", KeyN: "N",
	KeyO: "O", KeyP: "P", KeyQ: "Q", KeyR: "R", KeyS: "S", KeyT: "T", KeyU: "U",
	KeyV: "V", KeyW: "W", KeyX: "X", KeyY: "Y", KeyZ: "Z",
	Key0: "0", Key1: "1", Key2: "2", Key3: "3", Key4: "4",
	Key5: "5", Key6: "6", Key7: "7", Key8: "8", Key9: "9",
	KeyEqual: "=", KeyMinus: "-", KeyLeftBracket: "[", KeyRightBracket: "]",
	KeyQuote: "'", KeySemicolon: ";", KeyBackslash: "\\", KeyComma: ",",
	KeySlash: "/", KeyPeriod: ".", KeyGrave: "`",
	KeyReturn: "Return", KeyTab: "Tab", KeySpace: "Space", KeyDelete: "Delete",
	KeyEscape: "Esc", KeyForwardDel: "ForwardDelete",
	KeyHome: "Home", KeyEnd: "End", KeyPageUp: "PageUp", KeyPageDown: "PageDown",
	KeyLeft: "←", KeyRight: "→", KeyDown: "↓", KeyUp: "↑",
	KeyF1: "F1", KeyF2: "F2", KeyF3: "F3", KeyF4: "F4", KeyF5: "F5", KeyF6: "F6",
	KeyF7: "F7", KeyF8: "F8", KeyF9: "F9", KeyF10: "F10", KeyF11: "F11", KeyF12: "F12",
}

// keyAliases are extra spellings accepted by the parser (lowercase)
var keyAliases = map[string]uint16{
	"enter":     KeyReturn,
	"↩":         KeyReturn,
	"⇥":         KeyTab,
	"escape":    KeyEscape,
	"⎋":         KeyEscape,
	"backspace": KeyDelete,
	"⌫":         KeyDelete,
	"⌦":         KeyForwardDel,
	"del":       KeyForwardDel,
	"left":      KeyLeft,
	"right":     KeyRight,
	"down":      KeyDown,
	"up":        KeyUp,
	"pgup":      KeyPageUp,
	"pgdown":    KeyPageDown,
	"space bar": KeySpace,
	"␣":         KeySpace,
}

// modifierKeyCodes maps physical modifier keys to their modifier bit
var modifierKeyCodes = map[uint16]Modifier{
	KeyCommand:      ModCommand,
	KeyRightCommand: ModCommand,
	KeyShift:        ModShift,
	KeyRightShift:   ModShift,
	KeyOption:       ModOption,
	KeyRightOption:  ModOption,
	KeyControl:      ModControl,
	KeyRightControl: ModControl,
}

var nameToCode = buildNameToCode()

func buildNameToCode() map[string]uint16 {
	m := make(map[string]uint16, len(keyNames)+len(keyAliases))
	for code, name := range keyNames {
		m[strings.ToLower(name)] = code
	}
	for alias, code := range keyAliases {
		m[alias] = code
	}
	return m
}

// KeyName returns the display name for a key code
func KeyName(code uint16) string {
	if name, ok := keyNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Key%d", code)
}

// KeyCodeForName resolves a key name or alias (case-insensitive)
func KeyCodeForName(name string) (uint16, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false
	}
	lower := strings.ToLower(name)
	if code, ok := nameToCode[lower]; ok {
		return code, true
	}

	// Unnamed codes round-trip through the Key<N> form KeyName produces
	if rest, ok := strings.CutPrefix(lower, "key"); ok && rest != "" {
		n, err := strconv.ParseUint(rest, 10, 16)
		if err == nil {
			return uint16(n), true
		}
	}
	return 0, false
}

// ModifierForKeyCode returns the modifier a physical modifier key controls
func ModifierForKeyCode(code uint16) (Modifier, bool) {
	mod, ok := modifierKeyCodes[code]
	return mod, ok
}
