package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/keyclash/internal/filter"
	"github.com/studiowebux/keyclash/internal/types"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	comboStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
)

// severityStyle colors a severity like HTTP statuses: high red, medium
// yellow, low green
func severityStyle(s types.Severity) lipgloss.Style {
	switch s {
	case types.SeverityHigh:
		return errorStyle
	case types.SeverityMedium:
		return warningStyle
	default:
		return successStyle
	}
}

// Output formats command results
type Output struct {
	Format string // text, json, yaml
	Filter string // JMESPath filter
	Query  string // JMESPath query
	W      io.Writer
}

func (o Output) writer() io.Writer {
	if o.W == nil {
		return os.Stdout
	}
	return o.W
}

// Structured reports whether results are printed as data instead of text
func (o Output) Structured() bool {
	return o.Format == "json" || o.Format == "yaml" || o.Filter != "" || o.Query != ""
}

// Print writes v as JSON or YAML, applying the filter and query first.
// Text output is produced by the text callback.
func (o Output) Print(v any, text func(w io.Writer)) error {
	w := o.writer()
	if !o.Structured() {
		text(w)
		return nil
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	body := string(data)

	if o.Filter != "" || o.Query != "" {
		body, err = filter.Apply(body, o.Filter, o.Query)
		if err != nil {
			return err
		}
	}

	if o.Format == "yaml" {
		var generic any
		if err := json.Unmarshal([]byte(body), &generic); err == nil {
			out, err := yaml.Marshal(generic)
			if err != nil {
				return fmt.Errorf("failed to encode output: %w", err)
			}
			body = strings.TrimRight(string(out), "\n")
		}
	}

	_, err = fmt.Fprintln(w, body)
	return err
}

func printConflicts(w io.Writer, conflicts []types.ConflictInfo, resolved func(id string) bool) {
	if len(conflicts) == 0 {
		fmt.Fprintln(w, successStyle.Render("No conflicts found"))
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d conflict(s)", len(conflicts))))
	for _, c := range conflicts {
		line := fmt.Sprintf("%-8s %-12s %s",
			severityStyle(c.Severity).Render(c.Severity.String()),
			string(c.Type),
			c.ID)
		if c.ConflictingOwner != "" {
			line += mutedStyle.Render("  with " + c.ConflictingOwner)
		}
		if resolved != nil && resolved(c.ID) {
			line += successStyle.Render("  [resolved]")
		}
		fmt.Fprintln(w, line)
		if len(c.Suggestions) > 0 {
			fmt.Fprintf(w, "         try: %s\n", comboStyle.Render(strings.Join(c.Suggestions, "  ")))
		}
	}
}

func printRules(w io.Writer, rules []types.RemappingRule) {
	if len(rules) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No remapping rules"))
		return
	}
	owner := ""
	for _, r := range rules {
		if r.Owner != owner {
			owner = r.Owner
			fmt.Fprintln(w, headerStyle.Render(owner))
		}
		fmt.Fprintf(w, "  %s -> %s\n", comboStyle.Render(r.FromKey), comboStyle.Render(r.ToKey))
	}
}

func printSummary(w io.Writer, s types.UsageSummary) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Usage (%s)", s.Window)))
	fmt.Fprintf(w, "Total: %d | Conflicts: %d | Efficiency: %.1f%%\n", s.TotalUsage, s.ConflictCount, s.EfficiencyScore)
	if len(s.TopShortcuts) == 0 {
		return
	}
	fmt.Fprintln(w)
	for i, t := range s.TopShortcuts {
		fmt.Fprintf(w, "%2d. %s %s %d\n", i+1, comboStyle.Render(t.ShortcutKey), mutedStyle.Render(t.Owner), t.Count)
	}
}

func printTrend(w io.Writer, points []types.TrendPoint) {
	if len(points) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No usage recorded"))
		return
	}
	peak := 0
	for _, p := range points {
		if p.Count > peak {
			peak = p.Count
		}
	}
	for _, p := range points {
		width := 1
		if peak > 0 {
			width = p.Count * 40 / peak
			if width < 1 {
				width = 1
			}
		}
		fmt.Fprintf(w, "%s %s %d\n", p.Day, successStyle.Render(strings.Repeat("█", width)), p.Count)
	}
}
