// Package analytics records shortcut usage and aggregates it into windowed
// summaries and daily trends.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studiowebux/keyclash/internal/config"
	"github.com/studiowebux/keyclash/internal/migrations"
	"github.com/studiowebux/keyclash/internal/types"
)

const (
	// timestampLayout is how timestamps are stored: local time, no zone
	timestampLayout = "2006-01-02 15:04:05"
	dayLayout       = "2006-01-02"

	// TopShortcutLimit caps UsageSummary.TopShortcuts
	TopShortcutLimit = 10

	summaryCacheTTL = 30 * time.Second
)

// Manager stores usage records and answers aggregate queries
type Manager struct {
	db       *sql.DB
	ownsDB   bool
	settings config.Source
	cache    *statsCache
	now      func() time.Time
}

// NewManager opens (and migrates) the database at dbPath
func NewManager(dbPath string, settings config.Source) (*Manager, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), config.DirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create analytics directory: %w", err)
		}
	}

	db, err := migrations.Open(dbPath)
	if err != nil {
		return nil, err
	}

	m := New(db, settings)
	m.ownsDB = true
	return m, nil
}

// New wraps a database that already carries the schema
func New(db *sql.DB, settings config.Source) *Manager {
	return &Manager{
		db:       db,
		settings: settings,
		cache:    newStatsCache(summaryCacheTTL),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for windows and defaults
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
	m.cache.invalidate()
}

// Record appends a usage record and bumps its daily bucket in one
// transaction. It is a no-op when usage tracking is disabled. Missing ID,
// timestamp and context are filled in.
func (m *Manager) Record(ctx context.Context, rec types.UsageRecord) error {
	if !m.settings.Current().UsageTrackingEnabled {
		return nil
	}
	if strings.TrimSpace(rec.ShortcutKey) == "" || strings.TrimSpace(rec.Owner) == "" {
		return fmt.Errorf("usage record needs a shortcut key and an owner")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = m.now()
	}
	if rec.Context == "" {
		rec.Context = types.UsageNormal
	}

	local := rec.Timestamp.Local()
	conflict := 0
	if rec.Context == types.UsageConflict {
		conflict = 1
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin usage transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage_records (id, shortcut_key, owner, context, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.ShortcutKey, rec.Owner, string(rec.Context), local.Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("failed to save usage record: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage_daily (day, shortcut_key, owner, count, conflict_count)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(day, shortcut_key, owner) DO UPDATE SET
			count = count + 1,
			conflict_count = conflict_count + excluded.conflict_count
	`, local.Format(dayLayout), rec.ShortcutKey, rec.Owner, conflict)
	if err != nil {
		return fmt.Errorf("failed to update daily usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage record: %w", err)
	}

	m.cache.invalidate()
	return nil
}

// WindowStart returns the inclusive start of a window relative to now.
// The zero time means unbounded.
func WindowStart(window types.UsageWindow, now time.Time) time.Time {
	local := now.Local()
	switch window {
	case types.WindowToday:
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	case types.WindowWeek:
		return local.AddDate(0, 0, -7)
	case types.WindowMonth:
		return local.AddDate(0, 0, -30)
	default:
		return time.Time{}
	}
}

// Summarize aggregates the records of a window
func (m *Manager) Summarize(window types.UsageWindow) (types.UsageSummary, error) {
	now := m.now()
	if cached, ok := m.cache.get(window, now); ok {
		return cached, nil
	}

	start := WindowStart(window, now)
	where, args := windowClause(start)

	summary := types.UsageSummary{
		Window:       window,
		TopShortcuts: []types.TopShortcut{},
		TimeRange:    types.TimeRange{Start: start, End: now},
	}

	var first sql.NullString
	err := m.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN context = 'conflict' THEN 1 ELSE 0 END), 0),
			MIN(timestamp)
		FROM usage_records`+where, args...).Scan(&summary.TotalUsage, &summary.ConflictCount, &first)
	if err != nil {
		return types.UsageSummary{}, fmt.Errorf("failed to summarize usage: %w", err)
	}

	if start.IsZero() && first.Valid {
		summary.TimeRange.Start = parseTimestamp(first.String)
	}
	summary.EfficiencyScore = EfficiencyScore(summary.TotalUsage, summary.ConflictCount)

	top, err := m.topShortcuts(where, args, TopShortcutLimit)
	if err != nil {
		return types.UsageSummary{}, err
	}
	summary.TopShortcuts = top

	m.cache.set(window, summary, now)
	return summary, nil
}

// EfficiencyScore is the share of uses that did not hit a conflict, as a
// percentage. No usage scores 100.
func EfficiencyScore(total, conflicts int) float64 {
	if total <= 0 {
		return 100.0
	}
	return 100.0 * float64(total-conflicts) / float64(total)
}

// TopShortcuts ranks (key, owner) pairs in a window by count. Ties keep
// the order in which the pairs were first recorded.
func (m *Manager) TopShortcuts(window types.UsageWindow, n int) ([]types.TopShortcut, error) {
	where, args := windowClause(WindowStart(window, m.now()))
	return m.topShortcuts(where, args, n)
}

func (m *Manager) topShortcuts(where string, args []any, n int) ([]types.TopShortcut, error) {
	if n <= 0 {
		return []types.TopShortcut{}, nil
	}

	rows, err := m.db.Query(`
		SELECT shortcut_key, owner, COUNT(*) AS uses, MIN(rowid) AS first_seen
		FROM usage_records`+where+`
		GROUP BY shortcut_key, owner
		ORDER BY uses DESC, first_seen ASC
		LIMIT ?`, append(args, n)...)
	if err != nil {
		return nil, fmt.Errorf("failed to rank shortcuts: %w", err)
	}
	defer rows.Close()

	top := []types.TopShortcut{}
	for rows.Next() {
		var t types.TopShortcut
		var firstSeen int64
		if err := rows.Scan(&t.ShortcutKey, &t.Owner, &t.Count, &firstSeen); err != nil {
			return nil, fmt.Errorf("failed to scan ranked shortcut: %w", err)
		}
		top = append(top, t)
	}
	return top, rows.Err()
}

// Trend returns one point per day in [from, to] with non-zero usage,
// ascending. Days without usage are omitted.
func (m *Manager) Trend(from, to time.Time) ([]types.TrendPoint, error) {
	rows, err := m.db.Query(`
		SELECT day, SUM(count) AS total
		FROM usage_daily
		WHERE day >= ? AND day <= ?
		GROUP BY day
		HAVING total > 0
		ORDER BY day ASC
	`, from.Local().Format(dayLayout), to.Local().Format(dayLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to load usage trend: %w", err)
	}
	defer rows.Close()

	points := []types.TrendPoint{}
	for rows.Next() {
		var p types.TrendPoint
		if err := rows.Scan(&p.Day, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Records returns the most recent records, newest first
func (m *Manager) Records(limit int) ([]types.UsageRecord, error) {
	rows, err := m.db.Query(`
		SELECT id, shortcut_key, owner, context, timestamp
		FROM usage_records
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage records: %w", err)
	}
	defer rows.Close()

	var records []types.UsageRecord
	for rows.Next() {
		var r types.UsageRecord
		var uc, timestamp string
		if err := rows.Scan(&r.ID, &r.ShortcutKey, &r.Owner, &uc, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		r.Context = types.UsageContext(uc)
		r.Timestamp = parseTimestamp(timestamp)
		records = append(records, r)
	}
	return records, rows.Err()
}

// ClearOlderThan deletes records and daily buckets before cutoff
func (m *Manager) ClearOlderThan(cutoff time.Time) (int64, error) {
	local := cutoff.Local()

	res, err := m.db.Exec("DELETE FROM usage_records WHERE timestamp < ?", local.Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to clear old usage records: %w", err)
	}
	if _, err := m.db.Exec("DELETE FROM usage_daily WHERE day < ?", local.Format(dayLayout)); err != nil {
		return 0, fmt.Errorf("failed to clear old daily usage: %w", err)
	}

	m.cache.invalidate()
	return res.RowsAffected()
}

// Clear deletes every usage record and bucket
func (m *Manager) Clear() error {
	if _, err := m.db.Exec("DELETE FROM usage_records"); err != nil {
		return fmt.Errorf("failed to clear usage records: %w", err)
	}
	if _, err := m.db.Exec("DELETE FROM usage_daily"); err != nil {
		return fmt.Errorf("failed to clear daily usage: %w", err)
	}
	m.cache.invalidate()
	return nil
}

// Close closes the database when the manager opened it
func (m *Manager) Close() error {
	if m.db != nil && m.ownsDB {
		return m.db.Close()
	}
	return nil
}

func windowClause(start time.Time) (string, []any) {
	if start.IsZero() {
		return "", nil
	}
	return " WHERE timestamp >= ?", []any{start.Local().Format(timestampLayout)}
}

func parseTimestamp(s string) time.Time {
	// Parse as local time (SQLite stores without timezone info)
	t, err := time.ParseInLocation(timestampLayout, s, time.Local)
	if err != nil {
		// Try RFC3339 format as fallback
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}
