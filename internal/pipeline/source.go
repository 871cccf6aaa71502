package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/studiowebux/keyclash/internal/keybinds"
)

// RecordedEvent is one line of a recorded event stream. Either KeyCode and
// Modifiers or Combo describe the key; Combo wins when both are present.
type RecordedEvent struct {
	KeyCode   uint16  `json:"keyCode"`
	Modifiers uint8   `json:"modifiers"`
	Combo     string  `json:"combo,omitempty"`
	Down      bool    `json:"down"`
	OffsetMs  float64 `json:"ms"`
}

// ReadEvents decodes a JSON-lines event recording. Offsets are relative to
// start. Blank lines and lines starting with # are skipped.
func ReadEvents(r io.Reader, start time.Time) ([]keybinds.RawKeyEvent, error) {
	var events []keybinds.RawKeyEvent
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var rec RecordedEvent
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: invalid event: %w", line, err)
		}

		ev := keybinds.RawKeyEvent{
			KeyCode:   rec.KeyCode,
			Modifiers: keybinds.Modifier(rec.Modifiers),
			IsDown:    rec.Down,
			Timestamp: start.Add(time.Duration(rec.OffsetMs * float64(time.Millisecond))),
		}
		if rec.Combo != "" {
			combo, err := keybinds.Parse(rec.Combo)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			ev.KeyCode = combo.KeyCode
			ev.Modifiers = combo.Modifiers
		}
		if len(events) > 0 && ev.Timestamp.Before(events[len(events)-1].Timestamp) {
			return nil, fmt.Errorf("line %d: events must be in chronological order", line)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}
