package task

import "sync"

// ThreadStatus is the scheduling state of a Thread (spec.md 4.7).
type ThreadStatus int

const (
	ThreadReady ThreadStatus = iota
	ThreadRunning
	ThreadBlocked
	ThreadZombie
)

// Thread is the schedulable unit: its own tid, trap context, user
// stack, and signal-handling state, plus a back-reference to the
// Process it shares memory and fds with. Grounded on
// original_source/os/src/task/task.rs's TaskControlBlock split between
// immutable identity and a mutex-guarded inner block.
type Thread struct {
	tidHandle Handle
	Process   *Process

	mu     sync.Mutex
	inner  threadInner
}

type threadInner struct {
	Status     ThreadStatus
	TrapCtx    TrapContext
	UstackTop  uint64
	ExitCode   int

	// Signal-handling state (spec.md 4.9): pending set, mask, and the
	// signal-context saved while a handler is running so sigreturn can
	// restore it.
	SigPending    uint64
	SigMask       uint64
	HandlingSigno int // 0 when not inside a handler, spec.md 4.9
	SavedSigCtx   *TrapContext

	// clear_child_tid / set_child_tid, spec.md's supplemented
	// set_tid_address support.
	ClearChildTID uint64
	SetChildTID   uint64

	// RobustListHead/Len back sys_set_robust_list/sys_get_robust_list
	// (spec.md's supplemented robust-futex-list readback): the kernel
	// never walks the list itself, it only remembers what userland told
	// it, exactly as original_source/os/src/syscall/mod.rs's
	// sys_set_robust_list does.
	RobustListHead uint64
	RobustListLen  uint64

	// Stopped is spec.md 4.9's SIGSTOP default action: set true while the
	// thread is job-control-stopped, cleared by a delivered SIGCONT.
	Stopped bool

	// Blocking is the in-flight blocking operation a syscall handler
	// parked this thread on (a futex wait, a nanosleep, a wait4 poll): a
	// trap.Gate.Step call that returns StepBlocked stashes it here so the
	// *same* instance is re-polled next Step rather than rebuilt from
	// scratch, and clears it once Poll reports done.
	Blocking Blocker
}

// Blocker is the minimal shape trap.Gate needs from a parked operation:
// Poll drives it one step (handed this thread's own wake closure, so it
// can requeue the thread once satisfied), Result reports the syscall
// return value once Poll has returned true.
type Blocker interface {
	Poll(wake func()) bool
	Result() (uint64, error)
}

func newThread(p *Process, ustackTop uint64) *Thread {
	t := &Thread{tidHandle: newTIDHandle(), Process: p}
	t.inner.Status = ThreadReady
	t.inner.UstackTop = ustackTop
	t.inner.HandlingSigno = 0
	return t
}

func (t *Thread) TID() uint64 { return t.tidHandle.ID() }

func (t *Thread) Status() ThreadStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.Status
}

func (t *Thread) SetStatus(s ThreadStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inner.Status = s
}

func (t *Thread) TrapContext() *TrapContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &t.inner.TrapCtx
}

func (t *Thread) SetTrapContext(ctx TrapContext) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inner.TrapCtx = ctx
}

func (t *Thread) ExitCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.ExitCode
}

func (t *Thread) SetExitCode(code int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inner.ExitCode = code
	t.inner.Status = ThreadZombie
}

// PendingSignal returns whether signo is both set in the pending set and
// unmasked (spec.md 4.9's delivery condition).
func (t *Thread) PendingSignal(signo int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	bit := uint64(1) << uint(signo-1)
	return t.inner.SigPending&bit != 0 && t.inner.SigMask&bit == 0
}

// HasPendingUnblocked reports whether any signal is both pending and
// unmasked, the condition futex_wait checks to return EINTR on a
// spurious wake (spec.md 4.10).
func (t *Thread) HasPendingUnblocked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.SigPending&^t.inner.SigMask != 0
}

// PendingMask returns the raw pending bitmap (sys_rt_sigpending).
func (t *Thread) PendingMask() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.SigPending
}

func (t *Thread) RaiseSignal(signo int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inner.SigPending |= uint64(1) << uint(signo-1)
}

func (t *Thread) ClearSignal(signo int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inner.SigPending &^= uint64(1) << uint(signo-1)
}

func (t *Thread) SigMask() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.SigMask
}

func (t *Thread) SetSigMask(mask uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inner.SigMask = mask
}

// HandlingSigno returns the signal number whose handler is currently
// running, or 0 if none (spec.md 4.9).
func (t *Thread) HandlingSigno() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.HandlingSigno
}

func (t *Thread) EnterHandler(signo int, saved TrapContext) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inner.HandlingSigno = signo
	cp := saved
	t.inner.SavedSigCtx = &cp
}

// LeaveHandler restores the pre-handler trap context (sigreturn), or
// reports ok=false if no handler was in progress.
func (t *Thread) LeaveHandler() (ctx TrapContext, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inner.SavedSigCtx == nil {
		return TrapContext{}, false
	}
	ctx = *t.inner.SavedSigCtx
	t.inner.SavedSigCtx = nil
	t.inner.HandlingSigno = 0
	return ctx, true
}

func (t *Thread) SetTIDAddress(clearTID uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inner.ClearChildTID = clearTID
	return t.TID()
}

func (t *Thread) ClearChildTID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.ClearChildTID
}

func (t *Thread) IsStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.Stopped
}

func (t *Thread) SetStopped(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inner.Stopped = v
}

// SetBlocking parks b on this thread; SetBlocking(nil) clears it once
// resolved.
func (t *Thread) SetBlocking(b Blocker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inner.Blocking = b
}

func (t *Thread) GetBlocking() Blocker {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.Blocking
}

func (t *Thread) SetRobustList(head, length uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inner.RobustListHead = head
	t.inner.RobustListLen = length
}

func (t *Thread) RobustList() (head, length uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.RobustListHead, t.inner.RobustListLen
}
