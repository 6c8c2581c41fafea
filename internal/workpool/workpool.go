// Package workpool provides the fixed-size worker pool shared by the read,
// render and write phases of a run.
//
// The pool is an explicit resource: the caller creates it with New, passes it
// to the phases that need it, and shuts it down with Close on every exit path.
// Each phase submits its tasks through RunAll, which is the phase's join
// barrier.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by RunAll after Close.
var ErrClosed = errors.New("worker pool closed")

// ErrInvalidSize is returned by New for a size below one.
var ErrInvalidSize = errors.New("worker pool size must be at least 1")

// Task is one unit of work. i is the task's index within its RunAll call.
// Tasks must return promptly once ctx is done.
type Task func(ctx context.Context, i int) error

// Options tunes a Pool.
type Options struct {
	// TaskTimeout bounds each task; zero means no limit.
	TaskTimeout time.Duration
}

// Pool runs tasks on a fixed set of goroutines.
type Pool struct {
	size int
	opts Options
	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex // excludes Close while RunAll is submitting
	closed bool
	once   sync.Once

	completed atomic.Int64
	failed    atomic.Int64
}

type job struct {
	ctx   context.Context
	index int
	task  Task
	fail  context.CancelCauseFunc
	done  chan<- error
}

// New starts size workers.
func New(size int, opts Options) (*Pool, error) {
	if size < 1 {
		return nil, ErrInvalidSize
	}
	p := &Pool{size: size, opts: opts, jobs: make(chan job)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Stats returns how many tasks have completed and how many of those failed.
func (p *Pool) Stats() (completed, failed int64) {
	return p.completed.Load(), p.failed.Load()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		err := p.run(j)
		p.completed.Add(1)
		if err != nil {
			p.failed.Add(1)
			j.fail(err)
		}
		j.done <- err
	}
}

func (p *Pool) run(j job) (err error) {
	// Tasks still queued when a sibling fails are skipped.
	if err := j.ctx.Err(); err != nil {
		return context.Cause(j.ctx)
	}
	ctx := j.ctx
	if p.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.TaskTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %d panicked: %v", j.index, r)
		}
	}()

	err = j.task(ctx, j.index)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && j.ctx.Err() == nil {
		err = fmt.Errorf("task %d exceeded %s: %w", j.index, p.opts.TaskTimeout, err)
	}
	return err
}

// RunAll runs task for i in [0, n) and waits for every submitted task to
// finish. The first failure cancels the context seen by the other tasks;
// tasks that have not started yet are skipped. RunAll returns that first
// failure, or the parent context's cause if it was canceled.
func (p *Pool) RunAll(ctx context.Context, n int, task Task) error {
	if n <= 0 {
		return ctx.Err()
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	done := make(chan error, n)
	submitted := 0
submit:
	for i := 0; i < n; i++ {
		j := job{ctx: runCtx, index: i, task: task, fail: cancel, done: done}
		select {
		case p.jobs <- j:
			submitted++
		case <-runCtx.Done():
			break submit
		}
	}
	p.mu.RUnlock()

	for k := 0; k < submitted; k++ {
		<-done
	}
	return context.Cause(runCtx)
}

// Close stops the workers after in-flight tasks finish. It is idempotent.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
	})
}
