package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"github.com/JonMunkholm/sweeper/internal/config"
	"github.com/JonMunkholm/sweeper/internal/history"
	"github.com/JonMunkholm/sweeper/internal/logging"
)

// Service runs pipeline operations against live sessions.
type Service struct {
	cfg     *config.Config
	history history.Recorder
	limiter *WorkLimiter
	ids     *snowflake.Node
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a Service. A nil recorder disables history.
func NewService(cfg *config.Config, rec history.Recorder) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("core: nil config")
	}

	ids, err := newIDNode()
	if err != nil {
		return nil, fmt.Errorf("create id node: %w", err)
	}

	return &Service{
		cfg:      cfg,
		history:  rec,
		limiter:  NewWorkLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		ids:      ids,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}, nil
}

// NewSession starts an empty session. When the service is at capacity, idle
// sessions are collected first and ErrTooManySessions is returned if that
// frees nothing.
func (s *Service) NewSession(ctx context.Context) (*Session, error) {
	now := s.now()
	sess := newSession(uuid.New().String(), now)

	s.mu.Lock()
	var expired []*Session
	if len(s.sessions) >= s.cfg.Session.MaxSessions {
		expired = s.collectIdleLocked(now)
	}
	full := len(s.sessions) >= s.cfg.Session.MaxSessions
	if !full {
		s.sessions[sess.ID] = sess
	}
	s.mu.Unlock()

	s.closeSessions(ctx, expired)
	if full {
		return nil, ErrTooManySessions
	}

	logging.FromContext(ctx).Debug("session started", "session_id", sess.ID)
	s.record(ctx, history.Event{SessionID: sess.ID, Action: history.ActionSessionStart})
	return sess, nil
}

// Session looks up a live session and marks it as used.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

// EndSession discards a session and everything in it.
func (s *Service) EndSession(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	sess.mu.Lock()
	sess.close()
	sess.mu.Unlock()

	s.record(ctx, history.Event{SessionID: id, Action: history.ActionSessionEnd})
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Status reports session and work-slot usage.
func (s *Service) Status() Status {
	return Status{
		Sessions:    s.SessionCount(),
		MaxSessions: s.cfg.Session.MaxSessions,
		Limiter:     s.limiter.Status(),
	}
}

// SessionHistory returns the most recent events of one live session.
func (s *Service) SessionHistory(ctx context.Context, sessionID string, limit int) ([]history.Event, error) {
	if _, err := s.Session(sessionID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, nil
	}
	return s.history.ForSession(ctx, sessionID, limit)
}

// History returns the most recent events of every session. It is meant for
// operators; the web layer only serves it behind API-key auth.
func (s *Service) History(ctx context.Context, limit int) ([]history.Event, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(ctx, limit)
}

// Drain waits for running jobs to finish. Used during shutdown.
func (s *Service) Drain(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}

// withSession runs fn while holding the session's lock.
func (s *Service) withSession(id string, fn func(*Session) error) error {
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return ErrSessionNotFound
	}
	return fn(sess)
}

// record writes a history event. Failures are logged and otherwise ignored.
func (s *Service) record(ctx context.Context, e history.Event) {
	if s.history == nil {
		return
	}
	e.IPAddress, e.UserAgent = ClientFromContext(ctx)

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.History.Timeout)
	defer cancel()
	if err := s.history.Record(rctx, e); err != nil {
		logging.FromContext(ctx).Warn("history record failed",
			"action", e.Action,
			"session_id", e.SessionID,
			"error", err,
		)
	}
}

// outcome fills the status fields of e from err.
func outcome(e history.Event, err error) history.Event {
	if err != nil {
		e.Status = history.StatusFailed
		e.Detail = err.Error()
	} else {
		e.Status = history.StatusOK
	}
	return e
}
