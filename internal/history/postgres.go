package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS conversion_history (
	id            BIGSERIAL PRIMARY KEY,
	session_id    TEXT NOT NULL,
	file_name     TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL,
	status        TEXT NOT NULL,
	rows_affected INTEGER NOT NULL DEFAULT 0,
	detail        TEXT NOT NULL DEFAULT '',
	ip_address    TEXT NOT NULL DEFAULT '',
	user_agent    TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversion_history_created_at ON conversion_history (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_conversion_history_session ON conversion_history (session_id, id DESC);`

// Postgres stores events in a PostgreSQL table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, verifies the connection and creates the table.
func NewPostgres(ctx context.Context, dsn string, maxConns int) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse history database URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect history database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Record(ctx context.Context, e Event) error {
	e = prepare(e)
	_, err := p.pool.Exec(ctx,
		`INSERT INTO conversion_history
			(session_id, file_name, action, status, rows_affected, detail, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.SessionID, e.FileName, string(e.Action), string(e.Status), e.RowsAffected,
		e.Detail, e.IPAddress, e.UserAgent, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history event: %w", err)
	}
	return nil
}

func (p *Postgres) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+eventColumns+`
		FROM conversion_history
		ORDER BY created_at DESC, id DESC
		LIMIT $1`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return collectEvents(rows)
}

func (p *Postgres) ForSession(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+eventColumns+`
		FROM conversion_history
		WHERE session_id = $1
		ORDER BY id DESC
		LIMIT $2`,
		sessionID, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query session history: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var (
			e              Event
			action, status string
		)
		err := row.Scan(&e.ID, &e.SessionID, &e.FileName, &action, &status,
			&e.RowsAffected, &e.Detail, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
		e.Action, e.Status = Action(action), Status(status)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return events, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
