package core

// limiter.go bounds how many heavy jobs (parsing uploads, building exports,
// zipping packages) run at once across all sessions.
//
// Each job holds one slot of a buffered-channel semaphore. When every slot is
// taken a caller waits up to maxWait and then fails with ErrBusy, so a burst
// of large uploads degrades into "try again" responses instead of unbounded
// memory growth. Drain lets shutdown wait for running jobs.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrBusy is returned when no work slot frees up within the wait limit.
var ErrBusy = errors.New("too many concurrent jobs, please try again later")

const (
	defaultMaxJobs = 5
	defaultMaxWait = 30 * time.Second
)

// WorkLimiter is a counting semaphore with a bounded wait.
type WorkLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
	total   atomic.Int64
	refused atomic.Int64
}

// NewWorkLimiter allows at most maxJobs concurrent jobs. Non-positive values
// fall back to 5 jobs and a 30s wait.
func NewWorkLimiter(maxJobs int, maxWait time.Duration) *WorkLimiter {
	if maxJobs <= 0 {
		maxJobs = defaultMaxJobs
	}
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &WorkLimiter{
		slots:   make(chan struct{}, maxJobs),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. It returns ctx.Err() when
// ctx ends first. Every successful Acquire must be paired with Release.
func (l *WorkLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		l.total.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		l.refused.Add(1)
		return ErrBusy
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *WorkLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		l.total.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *WorkLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Do runs fn while holding a slot.
func (l *WorkLimiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// Drain blocks until no job is running or ctx ends.
func (l *WorkLimiter) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.active.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// LimiterStatus is a point-in-time view of the limiter.
type LimiterStatus struct {
	Active    int   `json:"active"`
	Available int   `json:"available"`
	MaxJobs   int   `json:"maxJobs"`
	Started   int64 `json:"started"`
	Refused   int64 `json:"refused"`
}

// Status reports current usage.
func (l *WorkLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:    int(l.active.Load()),
		Available: cap(l.slots) - len(l.slots),
		MaxJobs:   cap(l.slots),
		Started:   l.total.Load(),
		Refused:   l.refused.Load(),
	}
}
