// Package executor implements the single-hart cooperative scheduler of
// spec.md 4.5/9: a FIFO queue of runnable futures, each polled to
// completion or re-queued when it signals it would block. This is the
// Go-idiomatic replacement for the original's stackless-coroutine
// Future/Waker machinery (original_source/os/src/task/schedule.rs): Go
// has no async/await, so a Future here is Poll(wake) called directly by
// the Executor's run loop, and a "waker" is just the closure the
// Executor hands the Runnable at spawn time.
package executor

import "sync"

// Future is one resumable unit of cooperative work. Poll is called with
// a wake function the future may call later (from an interrupt handler,
// a timer callback, a futex wake) to re-enqueue itself; it returns true
// once the future has nothing left to do.
type Future interface {
	Poll(wake func()) (done bool)
}

// FutureFunc adapts a plain poll function to Future, for one-shot
// futures that need no additional state.
type FutureFunc func(wake func()) bool

func (f FutureFunc) Poll(wake func()) bool { return f(wake) }

// Runnable binds a Future to the Executor it was spawned on so its own
// wake closure can requeue it; grounded on the original's
// `executor::spawn` returning a (runnable, task) pair where
// runnable.schedule() is exactly this requeue.
type Runnable struct {
	fut Future
	ex  *Executor
}

func (r *Runnable) wake() { r.ex.enqueue(r) }

// Executor is the FIFO ready-queue driving spec.md's single hart: Run
// pops one Runnable, polls it, and either drops it (done) or leaves it
// parked until its own wake() re-adds it.
type Executor struct {
	mu    sync.Mutex
	ready []*Runnable
}

func New() *Executor { return &Executor{} }

// Spawn enqueues fut for its first poll and returns immediately
// (original's task.detach(): fire-and-forget, no join handle needed
// since exit status is read back through the Process, not the Future).
func (e *Executor) Spawn(fut Future) {
	r := &Runnable{fut: fut, ex: e}
	e.enqueue(r)
}

func (e *Executor) enqueue(r *Runnable) {
	e.mu.Lock()
	e.ready = append(e.ready, r)
	e.mu.Unlock()
}

func (e *Executor) pop() *Runnable {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.ready) == 0 {
		return nil
	}
	r := e.ready[0]
	e.ready = e.ready[1:]
	return r
}

// RunOnce pops and polls a single runnable, returning false if the
// queue was empty (the caller then idles until a timer/interrupt wakes
// something, per spec.md 9's boot-loop outline).
func (e *Executor) RunOnce() bool {
	r := e.pop()
	if r == nil {
		return false
	}
	if !r.fut.Poll(r.wake) {
		// Not done: stays off the queue until r.wake() is called by
		// whatever the future is waiting on.
		return true
	}
	return true
}

// Run drains the ready queue, calling idle whenever it empties, until
// idle reports no more work will ever arrive (idle returns false).
func (e *Executor) Run(idle func() bool) {
	for {
		if e.RunOnce() {
			continue
		}
		if !idle() {
			return
		}
	}
}

func (e *Executor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ready)
}
