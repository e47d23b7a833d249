package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS conversion_history (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	file_name     TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL,
	status        TEXT NOT NULL,
	rows_affected INTEGER NOT NULL DEFAULT 0,
	detail        TEXT NOT NULL DEFAULT '',
	ip_address    TEXT NOT NULL DEFAULT '',
	user_agent    TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversion_history_session ON conversion_history (session_id, id DESC);`

// SQLite stores events in a local SQLite database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path and creates the table.
// path may be a plain file name or a file: URI.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite history path is empty")
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Record(ctx context.Context, e Event) error {
	e = prepare(e)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversion_history
			(session_id, file_name, action, status, rows_affected, detail, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.FileName, string(e.Action), string(e.Status), e.RowsAffected,
		e.Detail, e.IPAddress, e.UserAgent, e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert history event: %w", err)
	}
	return nil
}

func (s *SQLite) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+`
		FROM conversion_history
		ORDER BY id DESC
		LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return scanEvents(rows)
}

func (s *SQLite) ForSession(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+`
		FROM conversion_history
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		sessionID, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query session history: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                         Event
			action, status, createdAt string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.FileName, &action, &status,
			&e.RowsAffected, &e.Detail, &e.IPAddress, &e.UserAgent, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Action, e.Status = Action(action), Status(status)
		var err error
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse history timestamp %q: %w", createdAt, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
