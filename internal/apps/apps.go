// Package apps keeps the list of background applications worth offering as
// conflict candidates. The list is advisory: it never limits what the
// conflict detector sees.
package apps

import (
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
)

// ActivationClass mirrors how an application presents itself to the user
type ActivationClass string

const (
	ActivationRegular    ActivationClass = "regular"
	ActivationAccessory  ActivationClass = "accessory"
	ActivationProhibited ActivationClass = "prohibited"
)

// systemPrefix marks identifiers shipped with the operating system
const systemPrefix = "com.apple."

var excludedPrefixes = []string{
	"com.apple.coreservices.",
	"com.apple.security.",
	"com.apple.accessibility.",
	"com.apple.inputmethod.",
}

var excludedKeywords = []string{
	"helper",
	"agent",
	"daemon",
	"service",
	"xpc",
	"extension",
	"loginwindow",
	"dock",
	"systemuiserver",
	"finder",
	"controlcenter",
	"notificationcenter",
	"spotlight",
}

// Candidate is a running application reported by the platform
type Candidate struct {
	ID              string          `json:"id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	ActivationClass ActivationClass `json:"activationClass" yaml:"activationClass"`
}

// App is one entry of the background index. It is derived from the
// candidate list and shortcut counts and never mutated on its own.
type App struct {
	Candidate
	IsUserMarked  bool `json:"isUserMarked" yaml:"isUserMarked"`
	ShortcutCount int  `json:"shortcutCount" yaml:"shortcutCount"`
}

// IsSystem reports whether the identifier belongs to the operating system
func (a App) IsSystem() bool {
	return IsSystemID(a.ID)
}

// IsSystemID reports whether id carries the system identifier prefix
func IsSystemID(id string) bool {
	return strings.HasPrefix(strings.ToLower(id), systemPrefix)
}

// Excluded reports whether a candidate is a system process that is never
// listed, whatever its class or marking
func Excluded(c Candidate) bool {
	id := strings.ToLower(c.ID)
	for _, p := range excludedPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	name := strings.ToLower(c.Name)
	for _, kw := range excludedKeywords {
		if strings.Contains(id, kw) || strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// Index is the background application list
type Index struct {
	mu         sync.RWMutex
	candidates []Candidate
	counts     map[string]int
	marked     map[string]bool
	apps       []App
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{
		counts: make(map[string]int),
		marked: make(map[string]bool),
	}
}

// Recompute rebuilds the list. counts holds the number of known shortcuts per
// application id and userMarked the ids the user flagged as background.
func (x *Index) Recompute(candidates []Candidate, counts map[string]int, userMarked map[string]bool) []App {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.candidates = append([]Candidate(nil), candidates...)
	x.counts = make(map[string]int, len(counts))
	for id, n := range counts {
		x.counts[id] = n
	}
	x.marked = make(map[string]bool, len(userMarked))
	for id, v := range userMarked {
		if v {
			x.marked[id] = true
		}
	}

	x.rebuildLocked()
	return x.appsLocked()
}

// UpdateCounts replaces the shortcut counts and rebuilds with the last
// candidates. Used when the shortcut cache changes.
func (x *Index) UpdateCounts(counts map[string]int) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.counts = make(map[string]int, len(counts))
	for id, n := range counts {
		x.counts[id] = n
	}
	x.rebuildLocked()
}

// SetCount updates the shortcut count of one application
func (x *Index) SetCount(id string, n int) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if n <= 0 {
		delete(x.counts, id)
	} else {
		x.counts[id] = n
	}
	x.rebuildLocked()
}

// Mark flags an application as background
func (x *Index) Mark(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.marked[id] = true
	x.rebuildLocked()
}

// Unmark removes the user flag
func (x *Index) Unmark(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.marked, id)
	x.rebuildLocked()
}

// Marked returns the user-marked ids, sorted
func (x *Index) Marked() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	ids := make([]string, 0, len(x.marked))
	for id := range x.marked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Apps returns the current list
func (x *Index) Apps() []App {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.appsLocked()
}

// Get returns one listed application
func (x *Index) Get(id string) (App, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	for _, a := range x.apps {
		if a.ID == id {
			return a, true
		}
	}
	return App{}, false
}

type appNames []App

func (a appNames) String(i int) string { return a[i].Name }
func (a appNames) Len() int            { return len(a) }

// Search fuzzy-matches query against application names, best match first.
// An empty query returns the whole list.
func (x *Index) Search(query string) []App {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if strings.TrimSpace(query) == "" {
		return x.appsLocked()
	}

	matches := fuzzy.FindFrom(query, appNames(x.apps))
	out := make([]App, 0, len(matches))
	for _, m := range matches {
		out = append(out, x.apps[m.Index])
	}
	return out
}

func (x *Index) rebuildLocked() {
	seen := make(map[string]bool, len(x.candidates))
	apps := make([]App, 0, len(x.candidates))

	for _, c := range x.candidates {
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true

		marked := x.marked[c.ID]
		background := c.ActivationClass == ActivationAccessory || c.ActivationClass == ActivationProhibited
		if !background && !marked {
			continue
		}
		if Excluded(c) {
			continue
		}
		count := x.counts[c.ID]
		if count == 0 && !marked {
			continue
		}
		apps = append(apps, App{Candidate: c, ShortcutCount: count, IsUserMarked: marked})
	}

	sort.SliceStable(apps, func(i, j int) bool {
		si, sj := apps[i].IsSystem(), apps[j].IsSystem()
		if si != sj {
			return !si
		}
		return strings.ToLower(apps[i].Name) < strings.ToLower(apps[j].Name)
	})
	x.apps = apps
}

func (x *Index) appsLocked() []App {
	return append([]App(nil), x.apps...)
}
