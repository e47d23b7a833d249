package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkLimiter_AcquireRelease(t *testing.T) {
	limiter := NewWorkLimiter(2, time.Second)
	ctx := context.Background()

	if got := limiter.Status().Available; got != 2 {
		t.Errorf("initial Available = %d, want 2", got)
	}

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}

	status := limiter.Status()
	if status.Active != 2 || status.Available != 0 {
		t.Errorf("after two Acquires, status = %+v, want Active=2 Available=0", status)
	}

	limiter.Release()
	limiter.Release()

	status = limiter.Status()
	if status.Active != 0 || status.Available != 2 {
		t.Errorf("after Release, status = %+v, want Active=0 Available=2", status)
	}
	if status.Started != 2 {
		t.Errorf("Started = %d, want 2", status.Started)
	}
}

func TestWorkLimiter_BusyWhenFull(t *testing.T) {
	limiter := NewWorkLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	start := time.Now()
	err := limiter.Acquire(ctx)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Acquire returned after %v, expected to wait", elapsed)
	}
	if got := limiter.Status().Refused; got != 1 {
		t.Errorf("Refused = %d, want 1", got)
	}
}

func TestWorkLimiter_ContextCancelled(t *testing.T) {
	limiter := NewWorkLimiter(1, time.Minute)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if err := limiter.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWorkLimiter_AlreadyCancelled(t *testing.T) {
	limiter := NewWorkLimiter(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if got := limiter.Status().Active; got != 0 {
		t.Errorf("Active = %d, want 0", got)
	}
}

func TestWorkLimiter_TryAcquire(t *testing.T) {
	limiter := NewWorkLimiter(1, time.Second)

	if !limiter.TryAcquire() {
		t.Fatal("first TryAcquire should succeed")
	}
	if limiter.TryAcquire() {
		t.Error("second TryAcquire should fail")
	}
	limiter.Release()
	if !limiter.TryAcquire() {
		t.Error("TryAcquire after Release should succeed")
	}
	limiter.Release()
}

func TestWorkLimiter_Defaults(t *testing.T) {
	limiter := NewWorkLimiter(0, 0)
	if got := limiter.Status().MaxJobs; got != defaultMaxJobs {
		t.Errorf("MaxJobs = %d, want %d", got, defaultMaxJobs)
	}
	if limiter.maxWait != defaultMaxWait {
		t.Errorf("maxWait = %v, want %v", limiter.maxWait, defaultMaxWait)
	}
}

func TestWorkLimiter_Do(t *testing.T) {
	limiter := NewWorkLimiter(1, time.Second)
	want := errors.New("boom")

	err := limiter.Do(context.Background(), func() error {
		if got := limiter.Status().Active; got != 1 {
			t.Errorf("Active inside Do = %d, want 1", got)
		}
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("Do() = %v, want %v", err, want)
	}
	if got := limiter.Status().Active; got != 0 {
		t.Errorf("Active after Do = %d, want 0", got)
	}
}

func TestWorkLimiter_ConcurrentCap(t *testing.T) {
	const maxJobs = 3
	limiter := NewWorkLimiter(maxJobs, 5*time.Second)

	var running, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.Do(context.Background(), func() error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > maxJobs {
		t.Errorf("peak concurrency = %d, want <= %d", got, maxJobs)
	}
}

func TestWorkLimiter_Drain(t *testing.T) {
	limiter := NewWorkLimiter(2, time.Second)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := limiter.Drain(ctx); err != nil {
		t.Errorf("Drain() = %v", err)
	}
}

func TestWorkLimiter_DrainTimeout(t *testing.T) {
	limiter := NewWorkLimiter(1, time.Second)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := limiter.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain() = %v, want deadline exceeded", err)
	}
}
