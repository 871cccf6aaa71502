package types

import (
	"fmt"
	"time"
)

// UsageContext records the state a shortcut was used in
type UsageContext string

const (
	UsageNormal   UsageContext = "normal"
	UsageConflict UsageContext = "conflict"
	UsageRemapped UsageContext = "remapped"
)

// UsageRecord is an append-only record of one shortcut use
type UsageRecord struct {
	ID          string       `json:"id" yaml:"id"`
	ShortcutKey string       `json:"shortcutKey" yaml:"shortcutKey"`
	Owner       string       `json:"owner" yaml:"owner"`
	Timestamp   time.Time    `json:"timestamp" yaml:"timestamp"`
	Context     UsageContext `json:"context" yaml:"context"`
}

// UsageWindow selects the time range of a usage summary
type UsageWindow string

const (
	WindowToday UsageWindow = "today"
	WindowWeek  UsageWindow = "week"
	WindowMonth UsageWindow = "month"
	WindowAll   UsageWindow = "all"
)

// ParseUsageWindow validates a window name
func ParseUsageWindow(s string) (UsageWindow, error) {
	switch w := UsageWindow(s); w {
	case WindowToday, WindowWeek, WindowMonth, WindowAll:
		return w, nil
	}
	return "", fmt.Errorf("unknown usage window %q (today, week, month, all)", s)
}

// TimeRange is a half-open interval [Start, End)
type TimeRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// TopShortcut is one ranked entry of a usage summary
type TopShortcut struct {
	ShortcutKey string `json:"shortcutKey" yaml:"shortcutKey"`
	Owner       string `json:"owner" yaml:"owner"`
	Count       int    `json:"count" yaml:"count"`
}

// UsageSummary aggregates usage over a window
type UsageSummary struct {
	Window          UsageWindow   `json:"window" yaml:"window"`
	TotalUsage      int           `json:"totalUsage" yaml:"totalUsage"`
	ConflictCount   int           `json:"conflictCount" yaml:"conflictCount"`
	EfficiencyScore float64       `json:"efficiencyScore" yaml:"efficiencyScore"`
	TopShortcuts    []TopShortcut `json:"topShortcuts" yaml:"topShortcuts"`
	TimeRange       TimeRange     `json:"timeRange" yaml:"timeRange"`
}

// TrendPoint is the usage count of one day
type TrendPoint struct {
	Day   string `json:"day" yaml:"day"` // YYYY-MM-DD, local time
	Count int    `json:"count" yaml:"count"`
}
