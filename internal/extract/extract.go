// Package extract runs shortcut extraction for many applications with a
// bounded fan-out and a per-application timeout.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/studiowebux/keyclash/internal/cache"
	"github.com/studiowebux/keyclash/internal/config"
	"github.com/studiowebux/keyclash/internal/keybinds"
	"github.com/studiowebux/keyclash/internal/logging"
	"github.com/studiowebux/keyclash/internal/safego"
	"github.com/studiowebux/keyclash/internal/types"
)

// ErrTimeout marks an extraction that did not finish in time
var ErrTimeout = errors.New("extraction timed out")

// Extractor reads the shortcuts of one application. An empty list is a
// legitimate answer.
type Extractor interface {
	ExtractShortcuts(ctx context.Context, appID string) ([]types.ShortcutInfo, error)
}

// ExtractorFunc adapts a function to Extractor
type ExtractorFunc func(ctx context.Context, appID string) ([]types.ShortcutInfo, error)

// ExtractShortcuts calls f
func (f ExtractorFunc) ExtractShortcuts(ctx context.Context, appID string) ([]types.ShortcutInfo, error) {
	return f(ctx, appID)
}

// Result is the outcome for one application. Err is informational: a
// failed extraction still yields an empty list.
type Result struct {
	AppID     string               `json:"appId"`
	Shortcuts []types.ShortcutInfo `json:"shortcuts"`
	Cached    bool                 `json:"cached"`
	Err       error                `json:"-"`
}

// Runner fans extraction out over applications and feeds the cache
type Runner struct {
	extractor Extractor
	cache     *cache.Cache
	settings  config.Source
}

// NewRunner creates a runner. Concurrency and timeout are read from
// settings at the start of every batch.
func NewRunner(extractor Extractor, c *cache.Cache, settings config.Source) *Runner {
	return &Runner{extractor: extractor, cache: c, settings: settings}
}

// ExtractAll extracts every application, serving cache hits directly.
// Results follow the order of appIDs with duplicates removed. The batch
// never fails: errors, timeouts and panics produce empty results.
func (r *Runner) ExtractAll(ctx context.Context, appIDs []string) []Result {
	settings := r.settings.Current()
	limit := settings.ExtractionConcurrency
	if limit < 1 {
		limit = 1
	}
	timeout := settings.ExtractionTimeout()

	ids := dedupe(appIDs)
	results := make([]Result, len(ids))
	sem := semaphore.NewWeighted(int64(limit))

	var g errgroup.Group
	for i, id := range ids {
		results[i] = Result{AppID: id, Shortcuts: []types.ShortcutInfo{}}
		if shortcuts, ok := r.cache.Get(id); ok {
			results[i] = Result{AppID: id, Shortcuts: shortcuts, Cached: true}
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Err = err
			continue
		}
		i, id := i, id
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = r.extract(ctx, id, timeout)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Refresh drops the cached list of one application and extracts it again
func (r *Runner) Refresh(ctx context.Context, appID string) Result {
	if err := r.cache.Invalidate(appID); err != nil {
		logging.WarningLog.Printf("refresh %s: %v", appID, err)
	}
	return r.extract(ctx, appID, r.settings.Current().ExtractionTimeout())
}

// extract races one extraction against the timeout. The losing extractor
// sees its context cancelled and its late answer is discarded.
func (r *Runner) extract(ctx context.Context, appID string, timeout time.Duration) Result {
	result := Result{AppID: appID, Shortcuts: []types.ShortcutInfo{}}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		shortcuts []types.ShortcutInfo
		err       error
	}
	done := make(chan answer, 1)

	go func() {
		var a answer
		if err := safego.Run("extract "+appID, func() {
			a.shortcuts, a.err = r.extractor.ExtractShortcuts(ctx, appID)
		}); err != nil {
			a.err = err
		}
		done <- a
	}()

	select {
	case a := <-done:
		if a.err != nil {
			logging.WarningLog.Printf("extraction for %s failed: %v", appID, a.err)
			result.Err = a.err
			return result
		}
		if len(a.shortcuts) == 0 {
			logging.InfoLog.Printf("extraction for %s returned no shortcuts", appID)
			return result
		}
		result.Shortcuts = a.shortcuts
		if err := r.cache.Put(appID, a.shortcuts); err != nil {
			logging.WarningLog.Printf("failed to cache shortcuts for %s: %v", appID, err)
		}
		return result
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Err = fmt.Errorf("%s: %w", appID, ErrTimeout)
		} else {
			result.Err = ctx.Err()
		}
		logging.WarningLog.Printf("extraction for %s abandoned: %v", appID, result.Err)
		return result
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// DirExtractor serves shortcut lists exported to a directory, one file per
// application named <appID>.json, .jsonc, .yaml or .yml. A missing file
// means no shortcuts.
type DirExtractor struct {
	Dir string
}

var dirExtensions = []string{".json", ".jsonc", ".yaml", ".yml"}

// ExtractShortcuts loads the first matching file for appID. Entries without
// an owner are attributed to appID.
func (d DirExtractor) ExtractShortcuts(ctx context.Context, appID string) ([]types.ShortcutInfo, error) {
	for _, ext := range dirExtensions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(d.Dir, appID+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		shortcuts, err := keybinds.LoadShortcuts(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		for i := range shortcuts {
			if shortcuts[i].Owner == "" {
				shortcuts[i].Owner = appID
			}
			if shortcuts[i].Category == "" {
				shortcuts[i].Category = keybinds.InferCategory(shortcuts[i].Description)
			}
		}
		return keybinds.FilterValid(shortcuts), nil
	}
	return nil, nil
}

// AppIDs lists the application ids with a shortcut file in the directory
func (d DirExtractor) AppIDs() ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, known := range dirExtensions {
			if ext == known {
				ids = append(ids, e.Name()[:len(e.Name())-len(ext)])
				break
			}
		}
	}
	return dedupe(ids), nil
}
