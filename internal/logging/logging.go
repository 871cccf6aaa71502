package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	InfoLog    *log.Logger
	WarningLog *log.Logger
	ErrorLog   *log.Logger

	mu          sync.Mutex
	logFile     io.Closer
	logFilePath string
)

// LogConfig holds logging configuration
type LogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir,omitempty"`
	MaxSize  int    `yaml:"max_size_mb"`
	MaxFiles int    `yaml:"max_files"`
	MaxAge   int    `yaml:"max_age_days"`
	Compress bool   `yaml:"compress"`
}

// DefaultLogConfig returns the default logging configuration
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Enabled:  true,
		MaxSize:  10, // 10MB
		MaxFiles: 5,
		MaxAge:   30, // days
		Compress: true,
	}
}

func init() {
	// Loggers must be usable before Initialize (tests, early startup)
	setWriter(os.Stderr)
}

func setWriter(w io.Writer) {
	InfoLog = log.New(w, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarningLog = log.New(w, "WARNING: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLog = log.New(w, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
}

// Initialize points the loggers at a rotating file in cfg.Dir.
// A disabled config silences logging entirely.
func Initialize(cfg LogConfig) error {
	mu.Lock()
	defer mu.Unlock()

	if !cfg.Enabled {
		setWriter(io.Discard)
		return nil
	}

	if cfg.Dir == "" {
		return fmt.Errorf("log directory not set")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(cfg.Dir, "keyclash.log")
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,  // megabytes
		MaxBackups: cfg.MaxFiles, // number of backups
		MaxAge:     cfg.MaxAge,   // days
		Compress:   cfg.Compress, // compress rotated files
		LocalTime:  true,
	}

	setWriter(writer)
	logFile = writer
	logFilePath = path
	return nil
}

// SetOutput redirects all loggers, mainly for tests
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	setWriter(w)
}

// Path returns the active log file path, empty when logging to stderr
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return logFilePath
}

// Close releases the log file
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	setWriter(os.Stderr)
	return err
}

// Every is used to log at most once every timeout duration.
type Every struct {
	mu      sync.Mutex
	timeout time.Duration
	last    time.Time
}

func NewEvery(timeout time.Duration) *Every {
	return &Every{timeout: timeout}
}

// ShouldLog returns true if the timeout has passed since the last log.
func (e *Every) ShouldLog() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if e.last.IsZero() || now.Sub(e.last) >= e.timeout {
		e.last = now
		return true
	}
	return false
}
