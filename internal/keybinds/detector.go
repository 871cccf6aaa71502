package keybinds

import (
	"time"
)

// RawKeyEvent is one key transition delivered by the event source.
// Events arrive in chronological order, one at a time.
type RawKeyEvent struct {
	KeyCode   uint16
	Modifiers Modifier
	IsDown    bool
	Timestamp time.Time
}

// IsModifierKey reports whether the event comes from a physical modifier key
func (e RawKeyEvent) IsModifierKey() bool {
	_, ok := ModifierForKeyCode(e.KeyCode)
	return ok
}

// KeyCombinationDetector turns key-down events into shortcut combinations
type KeyCombinationDetector struct{}

// Detect returns the canonical combination for a key-down event that
// carries at least one modifier. Key-up events, bare modifier presses and
// plain letter or number presses are discarded.
func (KeyCombinationDetector) Detect(ev RawKeyEvent) (KeyCombination, bool) {
	if !ev.IsDown || ev.IsModifierKey() || ev.Modifiers.IsEmpty() {
		return KeyCombination{}, false
	}
	return KeyCombination{KeyCode: ev.KeyCode, Modifiers: ev.Modifiers}, true
}

// ModifierEvent is a press or release of a single modifier
type ModifierEvent struct {
	Modifier  Modifier
	IsDown    bool
	Timestamp time.Time
}

type doublePressState int

const (
	stateIdle doublePressState = iota
	statePressed
	stateArmed // first press released, waiting for the second press
)

// DoublePressDetector recognizes two presses of the same modifier where the
// gap between the first release and the second press is strictly below the
// threshold. It is not safe for concurrent use; feed it from the single
// ingestion goroutine.
type DoublePressDetector struct {
	modifier  Modifier
	threshold func() time.Duration

	state      doublePressState
	pressedAt  time.Time
	releasedAt time.Time
}

// NewDoublePressDetector creates a detector for one modifier. threshold is
// read on every event so configuration changes apply immediately.
func NewDoublePressDetector(mod Modifier, threshold func() time.Duration) *DoublePressDetector {
	return &DoublePressDetector{modifier: mod, threshold: threshold}
}

// Modifier returns the modifier this detector watches
func (d *DoublePressDetector) Modifier() Modifier {
	return d.modifier
}

// Detect consumes one event and returns true when it completes a double press
func (d *DoublePressDetector) Detect(ev ModifierEvent) bool {
	if ev.Modifier != d.modifier {
		// Another modifier pressed in between breaks the gesture
		if ev.IsDown {
			d.Reset()
		}
		return false
	}

	threshold := d.threshold()

	switch d.state {
	case stateIdle:
		if ev.IsDown {
			d.state = statePressed
			d.pressedAt = ev.Timestamp
		}
		return false

	case statePressed:
		if ev.IsDown {
			// Auto-repeat; the hold is measured from the first press
			return false
		}
		if ev.Timestamp.Sub(d.pressedAt) >= threshold {
			// Held too long to be a tap
			d.Reset()
			return false
		}
		d.state = stateArmed
		d.releasedAt = ev.Timestamp
		return false

	case stateArmed:
		if !ev.IsDown {
			return false
		}
		if ev.Timestamp.Sub(d.releasedAt) < threshold {
			d.Reset()
			return true
		}
		// Too late: this press starts a new gesture
		d.state = statePressed
		d.pressedAt = ev.Timestamp
		return false
	}

	return false
}

// Reset returns the detector to idle
func (d *DoublePressDetector) Reset() {
	d.state = stateIdle
	d.pressedAt = time.Time{}
	d.releasedAt = time.Time{}
}

// GestureDetector runs one DoublePressDetector per modifier over the raw
// event stream.
type GestureDetector struct {
	detectors []*DoublePressDetector
}

// NewGestureDetector creates detectors for every modifier sharing one threshold
func NewGestureDetector(threshold func() time.Duration) *GestureDetector {
	g := &GestureDetector{}
	for _, mod := range AllModifiers {
		g.detectors = append(g.detectors, NewDoublePressDetector(mod, threshold))
	}
	return g
}

// Feed consumes a raw event and returns the modifier whose double press it
// completed, if any. A non-modifier key press resets every detector.
func (g *GestureDetector) Feed(ev RawKeyEvent) (Modifier, bool) {
	mod, isModifier := ModifierForKeyCode(ev.KeyCode)
	if !isModifier {
		if ev.IsDown {
			g.Reset()
		}
		return ModNone, false
	}

	mev := ModifierEvent{Modifier: mod, IsDown: ev.IsDown, Timestamp: ev.Timestamp}
	detected := ModNone
	for _, d := range g.detectors {
		if d.Detect(mev) {
			detected = d.Modifier()
		}
	}
	return detected, detected != ModNone
}

// Reset returns every detector to idle
func (g *GestureDetector) Reset() {
	for _, d := range g.detectors {
		d.Reset()
	}
}
