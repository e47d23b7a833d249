// Package history keeps a metadata-only trail of what happened to uploaded
// files: which pipeline step ran, on which file, how many rows it touched and
// whether it failed. Cell contents are never recorded.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/sweeper/internal/config"
)

// Action identifies a pipeline step.
type Action string

const (
	ActionSessionStart Action = "session_start"
	ActionSessionEnd   Action = "session_end"
	ActionIngest       Action = "ingest"
	ActionRemove       Action = "remove"
	ActionDedupe       Action = "dedupe"
	ActionFillMissing  Action = "fill_missing"
	ActionFilter       Action = "filter"
	ActionRename       Action = "rename"
	ActionConvert      Action = "convert"
	ActionPackage      Action = "package"
)

// Status is the outcome of a step.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Event is one history entry. The session ID authorizes access to a
// session, so it and the client identity are never encoded to JSON.
type Event struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"-"`
	FileName     string    `json:"fileName,omitempty"`
	Action       Action    `json:"action"`
	Status       Status    `json:"status"`
	RowsAffected int       `json:"rowsAffected,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	IPAddress    string    `json:"-"`
	UserAgent    string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Recorder stores and lists events.
type Recorder interface {
	// Record stores e. A zero CreatedAt is set to the current time.
	Record(ctx context.Context, e Event) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)
	// ForSession returns up to limit events of one session, newest first.
	ForSession(ctx context.Context, sessionID string, limit int) ([]Event, error)
	Close() error
}

// eventColumns is the column list shared by the SQL stores, in Scan order.
const eventColumns = `id, session_id, file_name, action, status, rows_affected, detail, ip_address, user_agent, created_at`

// DefaultLimit is used by Recent callers that pass a non-positive limit.
const DefaultLimit = 50

// MaxDetail caps the stored length of Event.Detail.
const MaxDetail = 500

// Open selects a store from cfg.DSN: empty for memory, postgres:// or
// postgresql:// for PostgreSQL, sqlite://path or file:path for SQLite.
func Open(ctx context.Context, cfg config.HistoryConfig) (Recorder, error) {
	dsn := cfg.DSN
	switch {
	case dsn == "":
		return NewMemory(cfg.Capacity), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgres(ctx, dsn, cfg.MaxConns)
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "file:"):
		return NewSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported history DSN scheme: %q", schemeOf(dsn))
	}
}

func schemeOf(dsn string) string {
	if i := strings.Index(dsn, ":"); i > 0 {
		return dsn[:i]
	}
	return dsn
}

// prepare normalizes an event before it is stored.
func prepare(e Event) Event {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	if e.Status == "" {
		e.Status = StatusOK
	}
	if len(e.Detail) > MaxDetail {
		e.Detail = truncate(e.Detail, MaxDetail)
	}
	return e
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	for n > 0 && n < len(s) && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
