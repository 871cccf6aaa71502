package migrations

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add owner indices for usage queries",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_usage_records_owner ON usage_records(owner);
			CREATE INDEX IF NOT EXISTS idx_usage_daily_owner ON usage_daily(owner);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_usage_records_owner;
			DROP INDEX IF EXISTS idx_usage_daily_owner;
		`,
	},
	{
		Version: 2,
		Name:    "Add composite index for top shortcut aggregation",
		Up: `
			-- Covers WHERE timestamp + GROUP BY shortcut_key, owner
			CREATE INDEX IF NOT EXISTS idx_usage_records_grouping ON usage_records(timestamp, shortcut_key, owner);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_usage_records_grouping;
		`,
	},
	{
		Version: 3,
		Name:    "Add saved output queries",
		Up: `
			CREATE TABLE IF NOT EXISTS saved_queries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				expression TEXT NOT NULL UNIQUE,
				created_at DATETIME NOT NULL
			);
		`,
		Down: `
			DROP TABLE IF EXISTS saved_queries;
		`,
	},
}

// InitSchema creates all tables required across all modules
// This must be called before running migrations to ensure all tables exist
func InitSchema(db *sql.DB) error {
	schema := `
	-- Durable key/value blobs (remap rules, resolver records, shortcut cache)
	CREATE TABLE IF NOT EXISTS kv_blobs (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Raw shortcut usage events
	CREATE TABLE IF NOT EXISTS usage_records (
		id TEXT PRIMARY KEY,
		shortcut_key TEXT NOT NULL,
		owner TEXT NOT NULL,
		context TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usage_records_timestamp ON usage_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_usage_records_context ON usage_records(context);

	-- Per-day usage counters
	CREATE TABLE IF NOT EXISTS usage_daily (
		day TEXT NOT NULL,
		shortcut_key TEXT NOT NULL,
		owner TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		conflict_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, shortcut_key, owner)
	);

	CREATE INDEX IF NOT EXISTS idx_usage_daily_day ON usage_daily(day);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Run executes all pending migrations on the database
func Run(db *sql.DB) error {
	// Initialize schema first to ensure all tables exist
	if err := InitSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, migration := range AllMigrations {
		if migration.Version <= currentVersion {
			continue
		}

		if _, err := db.Exec(migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		_, err = db.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// GetCurrentVersion returns the current database schema version
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_migrations
	`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return version, nil
}

// Open opens a SQLite database and brings its schema up to date.
// An in-memory database is limited to one connection so every query sees
// the same data.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}
