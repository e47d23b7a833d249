package core

// sweeper.go removes idle sessions in the background.
//
// A session is idle once no operation has touched it for Session.TTL. The
// sweeper runs every Session.SweepInterval until its context is cancelled.
// It logs what it removed and never stops the application on its own.

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/sweeper/internal/history"
)

// StartSessionSweeper blocks, collecting idle sessions on every tick, until
// ctx is cancelled.
func (s *Service) StartSessionSweeper(ctx context.Context) {
	slog.Info("session sweeper started",
		"ttl", s.cfg.Session.TTL,
		"interval", s.cfg.Session.SweepInterval,
	)

	ticker := time.NewTicker(s.cfg.Session.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.SweepSessions(ctx)
		}
	}
}

// SweepSessions removes every idle session and returns how many it removed.
func (s *Service) SweepSessions(ctx context.Context) int {
	start := time.Now()

	s.mu.Lock()
	expired := s.collectIdleLocked(s.now())
	s.mu.Unlock()

	s.closeSessions(ctx, expired)

	if len(expired) > 0 {
		slog.Info("swept idle sessions",
			"sessions_removed", len(expired),
			"sessions_live", s.SessionCount(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return len(expired)
}

// collectIdleLocked unlinks idle sessions from the map. Caller holds s.mu.
func (s *Service) collectIdleLocked(now time.Time) []*Session {
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.idle(now, s.cfg.Session.TTL) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	return expired
}

func (s *Service) closeSessions(ctx context.Context, sessions []*Session) {
	for _, sess := range sessions {
		sess.mu.Lock()
		sess.close()
		sess.mu.Unlock()

		s.record(ctx, history.Event{
			SessionID: sess.ID,
			Action:    history.ActionSessionEnd,
			Detail:    "expired",
		})
	}
}
