package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sweeper/internal/config"
)

func TestMemoryRecent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(3)

	for i := 1; i <= 5; i++ {
		require.NoError(t, m.Record(ctx, Event{
			SessionID: "s1",
			FileName:  fmt.Sprintf("f%d.csv", i),
			Action:    ActionIngest,
		}))
	}
	assert.Equal(t, 3, m.Len())

	events, err := m.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "f5.csv", events[0].FileName)
	assert.Equal(t, "f3.csv", events[2].FileName)
	assert.Equal(t, int64(5), events[0].ID)
	assert.Equal(t, StatusOK, events[0].Status)
	assert.False(t, events[0].CreatedAt.IsZero())

	two, err := m.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestMemoryForSession(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)

	for i, sid := range []string{"a", "b", "a", "b", "a"} {
		require.NoError(t, m.Record(ctx, Event{SessionID: sid, FileName: fmt.Sprintf("f%d.csv", i)}))
	}

	events, err := m.ForSession(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "f4.csv", events[0].FileName)
	for _, e := range events {
		assert.Equal(t, "a", e.SessionID)
	}

	one, err := m.ForSession(ctx, "b", 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "f3.csv", one[0].FileName)

	none, err := m.ForSession(ctx, "c", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEventJSONOmitsClientAndSession(t *testing.T) {
	data, err := json.Marshal(Event{
		SessionID: "secret-session",
		FileName:  "a.csv",
		Action:    ActionIngest,
		IPAddress: "203.0.113.7",
		UserAgent: "agent/1.0",
	})
	require.NoError(t, err)

	for _, leaked := range []string{"secret-session", "203.0.113.7", "agent/1.0", "sessionId", "ipAddress", "userAgent"} {
		assert.NotContains(t, string(data), leaked)
	}
	assert.Contains(t, string(data), `"fileName":"a.csv"`)
}

func TestMemoryEmpty(t *testing.T) {
	events, err := NewMemory(4).Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewMemory(1).Record(ctx, Event{}), context.Canceled)
}

func TestPrepare(t *testing.T) {
	e := prepare(Event{Detail: strings.Repeat("é", MaxDetail)})
	assert.LessOrEqual(t, len(e.Detail), MaxDetail)
	assert.True(t, strings.HasSuffix(e.Detail, "é"))
	assert.Equal(t, StatusOK, e.Status)
	assert.Equal(t, time.UTC, e.CreatedAt.Location())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	rec, err := Open(ctx, config.HistoryConfig{Capacity: 10})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, rec)

	_, err = Open(ctx, config.HistoryConfig{DSN: "mysql://localhost/db"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	rec, err := Open(ctx, config.HistoryConfig{DSN: "sqlite://" + path})
	if err != nil && strings.Contains(err.Error(), "cgo") {
		t.Skip("sqlite3 driver built without cgo")
	}
	require.NoError(t, err)
	defer rec.Close()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, rec.Record(ctx, Event{
		SessionID: "s1", FileName: "a.csv", Action: ActionConvert,
		RowsAffected: 12, Detail: "xlsx", CreatedAt: created,
	}))
	require.NoError(t, rec.Record(ctx, Event{
		SessionID: "s1", Action: ActionPackage, Status: StatusFailed,
	}))

	events, err := rec.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionPackage, events[0].Action)
	assert.Equal(t, StatusFailed, events[0].Status)
	assert.Equal(t, "a.csv", events[1].FileName)
	assert.Equal(t, 12, events[1].RowsAffected)
	assert.True(t, created.Equal(events[1].CreatedAt))

	require.NoError(t, rec.Record(ctx, Event{SessionID: "s2", Action: ActionIngest, FileName: "other.csv"}))
	own, err := rec.ForSession(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, ActionPackage, own[0].Action)
	other, err := rec.ForSession(ctx, "s2", 10)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "other.csv", other[0].FileName)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("HISTORY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HISTORY_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	rec, err := Open(ctx, config.HistoryConfig{DSN: dsn, MaxConns: 2})
	require.NoError(t, err)
	defer rec.Close()

	session := fmt.Sprintf("test-%d", time.Now().UnixNano())
	require.NoError(t, rec.Record(ctx, Event{SessionID: session, Action: ActionIngest, FileName: "p.csv"}))

	events, err := rec.Recent(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, session, events[0].SessionID)

	own, err := rec.ForSession(ctx, session, 5)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "p.csv", own[0].FileName)
}
