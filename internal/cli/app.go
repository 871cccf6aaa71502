package cli

import (
	"fmt"

	"github.com/studiowebux/keyclash/internal/analytics"
	"github.com/studiowebux/keyclash/internal/apps"
	"github.com/studiowebux/keyclash/internal/cache"
	"github.com/studiowebux/keyclash/internal/config"
	"github.com/studiowebux/keyclash/internal/conflict"
	"github.com/studiowebux/keyclash/internal/eventbus"
	"github.com/studiowebux/keyclash/internal/filter"
	"github.com/studiowebux/keyclash/internal/logging"
	"github.com/studiowebux/keyclash/internal/remap"
	"github.com/studiowebux/keyclash/internal/store"
	"github.com/studiowebux/keyclash/internal/types"
)

// App holds every service a command may need. Services are built once and
// shared by reference.
type App struct {
	Paths    config.Paths
	Settings *config.Store
	Store    *store.SQLite
	Bus      *eventbus.Bus
	Cache    *cache.Cache
	Remaps   *remap.Manager
	Resolver *conflict.Resolver
	Usage    *analytics.Manager
	Apps     *apps.Index
	Detector *conflict.Detector
	Analyzer *conflict.Analyzer
	Queries  *filter.SavedQueries
}

// Open initializes the configuration directory and wires the services.
// Unreadable persisted state is logged and replaced by empty state.
func Open(home string) (*App, error) {
	paths, err := config.Initialize(home)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}

	settings := config.NewStore(paths.SettingsFile)
	if err := settings.Load(); err != nil {
		logging.WarningLog.Printf("using default settings: %v", err)
	}

	logCfg := settings.Current().Log
	if logCfg.Dir == "" {
		logCfg.Dir = paths.LogDir
	}
	if err := logging.Initialize(logCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	db, err := store.OpenSQLite(paths.DatabasePath)
	if err != nil {
		return nil, err
	}

	a := &App{
		Paths:    paths,
		Settings: settings,
		Store:    db,
		Bus:      eventbus.New(),
		Resolver: conflict.NewResolver(db),
		Usage:    analytics.New(db.DB(), settings),
		Apps:     apps.NewIndex(),
		Detector: conflict.NewDetector(),
		Analyzer: conflict.NewAnalyzer(),
		Queries:  filter.NewSavedQueries(db.DB()),
	}
	a.Cache = cache.New(db, settings)
	a.Remaps = remap.NewManager(remap.NewEngine(), db, a.Bus)

	if err := a.Remaps.Load(); err != nil {
		logging.WarningLog.Printf("starting with no remapping rules: %v", err)
	}
	if err := a.Resolver.Load(); err != nil {
		logging.WarningLog.Printf("starting with no resolutions: %v", err)
	}

	marked, err := apps.LoadMarks(db)
	if err != nil {
		logging.WarningLog.Printf("starting with no marked apps: %v", err)
	}
	a.Apps.Recompute(nil, nil, marked)

	a.Cache.OnChange(a.shortcutsChanged)
	return a, nil
}

// shortcutsChanged keeps the background index and subscribers in step
// with the cache
func (a *App) shortcutsChanged(owner string, shortcuts []types.ShortcutInfo) {
	if owner == "" {
		a.Apps.UpdateCounts(nil)
	} else {
		a.Apps.SetCount(owner, len(shortcuts))
	}
	a.Bus.Publish(eventbus.TopicShortcutsUpdated, eventbus.ShortcutsUpdated{Owner: owner, Count: len(shortcuts)})
}

// ShortcutCounts returns the number of cached shortcuts per owner
func (a *App) ShortcutCounts() map[string]int {
	counts := make(map[string]int)
	for _, owner := range a.Cache.Owners() {
		if shortcuts, ok := a.Cache.Get(owner); ok {
			counts[owner] = len(shortcuts)
		}
	}
	return counts
}

// CachedShortcuts returns every fresh cached shortcut
func (a *App) CachedShortcuts() []types.ShortcutInfo {
	var all []types.ShortcutInfo
	for _, owner := range a.Cache.Owners() {
		if shortcuts, ok := a.Cache.Get(owner); ok {
			all = append(all, shortcuts...)
		}
	}
	return all
}

// Close flushes pending saves and releases resources
func (a *App) Close() error {
	var firstErr error
	if err := a.Remaps.Close(); err != nil {
		firstErr = err
	}
	a.Bus.Close()
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := logging.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
