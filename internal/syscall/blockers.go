package syscall

import (
	"arona/internal/executor"
	"arona/internal/futex"
	"arona/internal/task"
	"arona/internal/timer"
)

// sleepBlocker parks a nanosleep caller on an executor.TimeoutFuture,
// satisfying task.Blocker by reporting 0 once the deadline passes —
// nanosleep never fails once accepted, matching spec.md 4.12.
type sleepBlocker struct {
	fut *executor.TimeoutFuture
}

func newSleepBlocker(deadline uint64) *sleepBlocker {
	return &sleepBlocker{fut: executor.NewTimeoutFuture(deadline, timer.NowNanos)}
}

func (b *sleepBlocker) Poll(wake func()) bool { return b.fut.Poll(wake) }
func (b *sleepBlocker) Result() (uint64, error) { return 0, nil }

// futexBlocker adapts futex.WaitFuture to task.Blocker, translating its
// Err field into the (0, err) shape Dispatch's callers expect.
type futexBlocker struct {
	fut *futex.WaitFuture
}

func newFutexBlocker(tbl *futex.Table, key futex.Key, bitset uint32, deadline *uint64, hasPendingSig func() bool) *futexBlocker {
	return &futexBlocker{fut: futex.NewWaitFuture(tbl, key, bitset, deadline, timer.NowNanos, hasPendingSig)}
}

func (b *futexBlocker) Poll(wake func()) bool { return b.fut.Poll(wake) }

func (b *futexBlocker) Result() (uint64, error) {
	if b.fut.Err != nil {
		return 0, b.fut.Err
	}
	return 0, nil
}

// wait4Blocker repolls task.Wait4 every cycle until a matching zombie
// child is reaped (spec.md 4.7's cooperative wait4), wrapping
// executor.WaitChildFuture the same way the futex/timeout blockers wrap
// their executor counterparts.
type wait4Blocker struct {
	parent   *task.Process
	pid      int64
	statusVA uint64
	fut      *executor.WaitChildFuture

	reapedPID uint64
	status    int
	err       error
}

func newWait4Blocker(parent *task.Process, pid int64, statusVA uint64) *wait4Blocker {
	b := &wait4Blocker{parent: parent, pid: pid, statusVA: statusVA}
	b.fut = executor.NewWaitChildFuture(b.attempt)
	return b
}

func (b *wait4Blocker) attempt() bool {
	child, status, err := task.Wait4(b.parent, b.pid)
	if err != nil {
		b.err = err
		return true
	}
	if child == nil {
		return false // matched but not yet a zombie
	}
	b.reapedPID = child.PID()
	b.status = status
	return true
}

func (b *wait4Blocker) Poll(wake func()) bool { return b.fut.Poll(wake) }

func (b *wait4Blocker) Result() (uint64, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.statusVA != 0 {
		if werr := writeWaitStatus(b.parent, b.statusVA, b.status); werr != nil {
			return 0, werr
		}
	}
	return b.reapedPID, nil
}

func writeWaitStatus(process *task.Process, va uint64, exitCode int) error {
	status := uint32(exitCode&0xff) << 8
	return process.MM.WriteU32(va, status)
}

// StopBlocker parks a job-control-stopped thread (spec.md 4.9's SIGSTOP
// default action) until a delivered SIGCONT clears Thread.Stopped,
// reusing the same Blocking slot syscalls park themselves on rather than
// inventing a separate stop/resume code path. Exported for internal/trap,
// which applies the Stop default action outside any syscall handler.
type StopBlocker struct {
	thread *task.Thread
}

func NewStopBlocker(t *task.Thread) *StopBlocker { return &StopBlocker{thread: t} }

func (b *StopBlocker) Poll(wake func()) bool {
	if !b.thread.IsStopped() {
		return true
	}
	wake()
	return false
}

func (b *StopBlocker) Result() (uint64, error) { return 0, nil }
