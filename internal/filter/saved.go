package filter

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// SavedQuery is a stored filter or query expression
type SavedQuery struct {
	ID         int       `json:"id" yaml:"id"`
	Expression string    `json:"expression" yaml:"expression"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
}

// SavedQueries persists expressions so they can be reused as @<id>
type SavedQueries struct {
	db  *sql.DB
	now func() time.Time
}

// NewSavedQueries works on a database migrated by the migrations package
func NewSavedQueries(db *sql.DB) *SavedQueries {
	return &SavedQueries{db: db, now: time.Now}
}

// Save stores an expression and returns its id. Saving an existing
// expression returns the existing id and false.
func (q *SavedQueries) Save(expression string) (int, bool, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return 0, false, fmt.Errorf("expression cannot be empty")
	}
	if !IsValidJMESPath(expression) {
		return 0, false, fmt.Errorf("invalid JMESPath expression '%s'", expression)
	}

	var id int
	err := q.db.QueryRow("SELECT id FROM saved_queries WHERE expression = ?", expression).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("failed to check saved query: %w", err)
	}

	result, err := q.db.Exec(`
		INSERT INTO saved_queries (expression, created_at)
		VALUES (?, ?)
	`, expression, q.now().Format(timestampLayout))
	if err != nil {
		return 0, false, fmt.Errorf("failed to save query: %w", err)
	}
	last, err := result.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read saved query id: %w", err)
	}
	return int(last), true, nil
}

// Delete removes a saved expression by id
func (q *SavedQueries) Delete(id int) error {
	result, err := q.db.Exec("DELETE FROM saved_queries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete saved query: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("saved query %d not found", id)
	}
	return nil
}

// List returns saved expressions, newest first
func (q *SavedQueries) List() ([]SavedQuery, error) {
	rows, err := q.db.Query(`
		SELECT id, expression, created_at
		FROM saved_queries
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved queries: %w", err)
	}
	defer rows.Close()

	saved := []SavedQuery{}
	for rows.Next() {
		var (
			s       SavedQuery
			created string
		)
		if err := rows.Scan(&s.ID, &s.Expression, &created); err != nil {
			return nil, fmt.Errorf("failed to scan saved query: %w", err)
		}
		s.CreatedAt = parseTimestamp(created)
		saved = append(saved, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating saved queries: %w", err)
	}
	return saved, nil
}

// Expand replaces an @<id> reference with the saved expression. Other
// values are returned unchanged.
func (q *SavedQueries) Expand(ref string) (string, error) {
	if !strings.HasPrefix(ref, "@") {
		return ref, nil
	}
	id, err := strconv.Atoi(strings.TrimPrefix(ref, "@"))
	if err != nil {
		return "", fmt.Errorf("invalid saved query reference %q", ref)
	}

	var expression string
	err = q.db.QueryRow("SELECT expression FROM saved_queries WHERE id = ?", id).Scan(&expression)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("saved query %d not found", id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load saved query: %w", err)
	}
	return expression, nil
}

func parseTimestamp(s string) time.Time {
	if t, err := time.ParseInLocation(timestampLayout, s, time.Local); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
