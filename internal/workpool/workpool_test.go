package workpool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newPool(t *testing.T, size int, opts Options) *Pool {
	t.Helper()
	p, err := New(size, opts)
	if err != nil {
		t.Fatalf("New(%d): %v", size, err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestNew_InvalidSize(t *testing.T) {
	if _, err := New(0, Options{}); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("New(0) err = %v, want ErrInvalidSize", err)
	}
}

func TestRunAll_RunsEveryTaskOnce(t *testing.T) {
	p := newPool(t, 4, Options{})

	const n = 100
	var hits [n]atomic.Int32
	err := p.RunAll(context.Background(), n, func(ctx context.Context, i int) error {
		hits[i].Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	for i := range hits {
		if got := hits[i].Load(); got != 1 {
			t.Fatalf("task %d ran %d times, want 1", i, got)
		}
	}
	if completed, failed := p.Stats(); completed != n || failed != 0 {
		t.Fatalf("Stats() = (%d, %d), want (%d, 0)", completed, failed, n)
	}
}

func TestRunAll_BoundsConcurrency(t *testing.T) {
	const size = 3
	p := newPool(t, size, Options{})

	var cur, peak atomic.Int32
	err := p.RunAll(context.Background(), 30, func(ctx context.Context, i int) error {
		n := cur.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		cur.Add(-1)
		return nil
	})
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if got := peak.Load(); got > size {
		t.Fatalf("peak concurrency %d exceeds pool size %d", got, size)
	}
}

func TestRunAll_FirstFailureCancelsOthers(t *testing.T) {
	p := newPool(t, 2, Options{})
	boom := errors.New("boom")

	var started atomic.Int32
	err := p.RunAll(context.Background(), 50, func(ctx context.Context, i int) error {
		started.Add(1)
		if i == 0 {
			return boom
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunAll err = %v, want %v", err, boom)
	}
	if got := started.Load(); got >= 50 {
		t.Fatalf("all %d tasks started; queued tasks should be skipped after a failure", got)
	}
}

func TestRunAll_TaskTimeout(t *testing.T) {
	p := newPool(t, 1, Options{TaskTimeout: 20 * time.Millisecond})

	err := p.RunAll(context.Background(), 1, func(ctx context.Context, i int) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("RunAll err = %v, want DeadlineExceeded", err)
	}
	if !strings.Contains(err.Error(), "task 0 exceeded") {
		t.Fatalf("error %q should name the task", err)
	}
}

func TestRunAll_RecoversPanics(t *testing.T) {
	p := newPool(t, 1, Options{})

	err := p.RunAll(context.Background(), 1, func(ctx context.Context, i int) error {
		panic("kaboom")
	})
	if err == nil || !strings.Contains(err.Error(), "panicked: kaboom") {
		t.Fatalf("RunAll err = %v, want panic error", err)
	}

	// The worker survives and keeps serving tasks.
	if err := p.RunAll(context.Background(), 3, func(context.Context, int) error { return nil }); err != nil {
		t.Fatalf("RunAll after panic: %v", err)
	}
}

func TestRunAll_ParentCanceled(t *testing.T) {
	p := newPool(t, 2, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	err := p.RunAll(ctx, 10, func(context.Context, int) error {
		ran.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunAll err = %v, want context.Canceled", err)
	}
	if ran.Load() != 0 {
		t.Fatalf("%d tasks ran on a canceled context", ran.Load())
	}
}

func TestRunAll_ZeroTasks(t *testing.T) {
	p := newPool(t, 1, Options{})
	if err := p.RunAll(context.Background(), 0, nil); err != nil {
		t.Fatalf("RunAll(0): %v", err)
	}
}

func TestClose_IdempotentAndRejectsWork(t *testing.T) {
	p, err := New(2, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Close()
	p.Close()

	err = p.RunAll(context.Background(), 1, func(context.Context, int) error { return nil })
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("RunAll after Close err = %v, want ErrClosed", err)
	}
}

func TestClose_WaitsForInFlightRun(t *testing.T) {
	p, err := New(2, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var finished atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	go func() {
		defer wg.Done()
		_ = p.RunAll(context.Background(), 4, func(context.Context, int) error {
			once.Do(func() { close(started) })
			<-release
			finished.Add(1)
			return nil
		})
	}()

	// Both workers are now blocked, so RunAll is still submitting when Close
	// is called.
	<-started
	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()
	close(release)
	<-closed
	wg.Wait()

	if got := finished.Load(); got != 4 {
		t.Fatalf("finished %d tasks, want 4", got)
	}
}
