// File: internal/concurrency/executor.go
// Package concurrency implements a fixed-size task executor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks to a fixed set of worker goroutines. Tasks that find
// every worker busy wait in a FIFO queue bounded by maxPending.

package concurrency

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// Executor manages a pool of worker goroutines.
type Executor struct {
	mu         sync.Mutex
	cond       *sync.Cond
	tasks      *queue.Queue // FIFO of TaskFunc, guarded by mu
	maxPending int
	closed     bool

	numWorkers int
	wg         sync.WaitGroup
	done       chan struct{}
	onPanic    func(any)

	// statistics
	totalTasks     atomic.Int64
	completedTasks atomic.Int64
	rejectedTasks  atomic.Int64
	busyWorkers    atomic.Int64
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithPanicHandler is called with the recovered value when a task panics.
func WithPanicHandler(fn func(any)) ExecutorOption {
	return func(e *Executor) { e.onPanic = fn }
}

// NewExecutor starts numWorkers workers. numWorkers <= 0 defaults to runtime.NumCPU();
// maxPending <= 0 leaves the pending queue unbounded.
func NewExecutor(numWorkers, maxPending int, opts ...ExecutorOption) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{
		tasks:      queue.New(),
		maxPending: maxPending,
		numWorkers: numWorkers,
		done:       make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	for _, o := range opts {
		o(e)
	}

	e.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go e.worker()
	}
	go func() {
		e.wg.Wait()
		close(e.done)
	}()
	return e
}

// Submit enqueues a task. It fails with ErrExecutorClosed after Close and with
// ErrExecutorFull when maxPending tasks are already waiting.
func (e *Executor) Submit(task TaskFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrExecutorClosed
	}
	if e.maxPending > 0 && e.tasks.Length() >= e.maxPending {
		e.rejectedTasks.Add(1)
		return ErrExecutorFull
	}
	e.tasks.Add(task)
	e.totalTasks.Add(1)
	e.cond.Signal()
	return nil
}

// NumWorkers returns the number of workers.
func (e *Executor) NumWorkers() int {
	return e.numWorkers
}

// Pending returns the number of queued tasks not yet picked up by a worker.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.Length()
}

// Close stops accepting tasks. Workers drain the queue and exit.
func (e *Executor) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		e.cond.Broadcast()
	}
	e.mu.Unlock()
}

// Wait blocks until every worker has exited or ctx is done.
func (e *Executor) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	total := e.totalTasks.Load()
	completed := e.completedTasks.Load()
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": completed,
		"rejected_tasks":  e.rejectedTasks.Load(),
		"busy_workers":    e.busyWorkers.Load(),
		"pending_tasks":   int64(e.Pending()),
		"num_workers":     int64(e.numWorkers),
	}
}

func (e *Executor) next() (TaskFunc, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.tasks.Length() == 0 && !e.closed {
		e.cond.Wait()
	}
	if e.tasks.Length() == 0 {
		return nil, false
	}
	return e.tasks.Remove().(TaskFunc), true
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		task, ok := e.next()
		if !ok {
			return
		}
		e.execute(task)
	}
}

// execute runs the task and updates statistics, recovering from panics.
func (e *Executor) execute(task TaskFunc) {
	e.busyWorkers.Add(1)
	defer func() {
		if r := recover(); r != nil && e.onPanic != nil {
			e.onPanic(r)
		}
		e.busyWorkers.Add(-1)
		e.completedTasks.Add(1)
	}()
	task()
}
