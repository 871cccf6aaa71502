package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/keyclash/internal/logging"
)

const (
	// DefaultLockTimeout bounds how long Save waits for the settings lock
	DefaultLockTimeout = 5 * time.Second

	// MaxExtractionConcurrency caps the extraction fan-out
	MaxExtractionConcurrency = 30

	reloadDebounce = 100 * time.Millisecond
)

// Settings are the user-tunable knobs of the engine
type Settings struct {
	DoublePressThresholdSeconds float64           `yaml:"double_press_threshold_seconds"`
	CacheTTLHours               float64           `yaml:"cache_ttl_hours"`
	CacheCapacity               int               `yaml:"cache_capacity"`
	UsageTrackingEnabled        bool              `yaml:"usage_tracking_enabled"`
	ExtractionConcurrency       int               `yaml:"extraction_concurrency"`
	ExtractionTimeoutSeconds    float64           `yaml:"extraction_timeout_seconds"`
	Log                         logging.LogConfig `yaml:"log"`
}

// DefaultSettings returns the settings used when no file exists
func DefaultSettings() Settings {
	return Settings{
		DoublePressThresholdSeconds: 0.4,
		CacheTTLHours:               24,
		CacheCapacity:               50,
		UsageTrackingEnabled:        true,
		ExtractionConcurrency:       MaxExtractionConcurrency,
		ExtractionTimeoutSeconds:    5,
		Log:                         logging.DefaultLogConfig(),
	}
}

// Validate checks that every value is usable
func (s Settings) Validate() error {
	if s.DoublePressThresholdSeconds <= 0 || s.DoublePressThresholdSeconds > 2 {
		return fmt.Errorf("double_press_threshold_seconds must be in (0, 2], got %v", s.DoublePressThresholdSeconds)
	}
	if s.CacheTTLHours <= 0 {
		return fmt.Errorf("cache_ttl_hours must be positive, got %v", s.CacheTTLHours)
	}
	if s.CacheCapacity < 1 {
		return fmt.Errorf("cache_capacity must be at least 1, got %d", s.CacheCapacity)
	}
	if s.ExtractionConcurrency < 1 || s.ExtractionConcurrency > MaxExtractionConcurrency {
		return fmt.Errorf("extraction_concurrency must be in [1, %d], got %d", MaxExtractionConcurrency, s.ExtractionConcurrency)
	}
	if s.ExtractionTimeoutSeconds <= 0 {
		return fmt.Errorf("extraction_timeout_seconds must be positive, got %v", s.ExtractionTimeoutSeconds)
	}
	return nil
}

// DoublePressThreshold returns the threshold as a duration
func (s Settings) DoublePressThreshold() time.Duration {
	return seconds(s.DoublePressThresholdSeconds)
}

// CacheTTL returns the cache time-to-live as a duration
func (s Settings) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLHours * float64(time.Hour))
}

// ExtractionTimeout returns the per-application extraction timeout
func (s Settings) ExtractionTimeout() time.Duration {
	return seconds(s.ExtractionTimeoutSeconds)
}

// Marshal encodes the settings as YAML
func (s Settings) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return data, nil
}

// ParseSettings decodes YAML over the defaults, so missing keys keep default values
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("invalid settings format: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// Source supplies the current settings. Components call Current on every
// operation instead of keeping a copy.
type Source interface {
	Current() Settings
}

// Static is a Source that never changes
type Static Settings

// Current returns the fixed settings
func (s Static) Current() Settings {
	return Settings(s)
}

// Store is a file-backed Source that can reload itself
type Store struct {
	mu       sync.RWMutex
	path     string
	settings Settings
	lock     *flock.Flock
	onChange []func(Settings)
}

// NewStore creates a store for path holding the default settings
func NewStore(path string) *Store {
	return &Store{
		path:     path,
		settings: DefaultSettings(),
		lock:     flock.New(path + ".lock"),
	}
}

// Current returns the most recently loaded settings
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// OnChange registers a callback invoked after a successful reload
func (s *Store) OnChange(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Load reads the settings file. A missing file keeps the defaults.
// An invalid file is an error and leaves the current settings in place.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	settings, err := ParseSettings(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = settings
	callbacks := append([]func(Settings){}, s.onChange...)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(settings)
	}
	return nil
}

// Save validates and writes settings while holding the settings file lock
func (s *Store) Save(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	data, err := settings.Marshal()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultLockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to lock settings: %w", err)
	}
	if !locked {
		return fmt.Errorf("timed out waiting for settings lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := os.MkdirAll(filepath.Dir(s.path), DirPermissions); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, FilePermissions); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// Watch reloads the settings whenever the file changes until ctx is done.
// The directory is watched so editors that replace the file are handled.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch settings directory: %w", err)
	}

	target := filepath.Clean(s.path)
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			if err := s.Load(); err != nil {
				logging.WarningLog.Printf("settings reload failed, keeping previous values: %v", err)
			} else {
				logging.InfoLog.Printf("settings reloaded from %s", s.path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.ErrorLog.Printf("settings watcher error: %v", err)
		}
	}
}
