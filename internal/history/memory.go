package history

import (
	"context"
	"sync"
)

// Memory is a bounded ring of events. The oldest event is dropped once the
// ring is full.
type Memory struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
	lastID int64
}

// NewMemory creates a store holding at most capacity events.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Memory{events: make([]Event, capacity)}
}

func (m *Memory) Record(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e = prepare(e)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastID++
	e.ID = m.lastID
	m.events[m.next] = e
	m.next = (m.next + 1) % len(m.events)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *Memory) Recent(ctx context.Context, limit int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	size := m.next
	if m.full {
		size = len(m.events)
	}
	limit = min(limit, size)

	out := make([]Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.events)) % len(m.events)
		out = append(out, m.events[idx])
	}
	return out, nil
}

func (m *Memory) ForSession(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	size := m.next
	if m.full {
		size = len(m.events)
	}

	var out []Event
	for i := 1; i <= size && len(out) < limit; i++ {
		e := m.events[(m.next-i+len(m.events))%len(m.events)]
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.full {
		return len(m.events)
	}
	return m.next
}

func (m *Memory) Close() error { return nil }
