// Package signal implements spec.md 4.9: POSIX-flavored signal numbers,
// the process-wide handler table, default-action resolution, and the
// pending-set selection logic the trap gate runs once per trap-return.
//
// Grounded on _examples/original_source/os/src/signal/{mod,action}.rs
// (SigHandlers/SigAction/SignalDefault), translated into Go: Rust's
// bitflags! SigBitmap becomes a plain uint64 bitmap, and the
// process-global sig_handlers array becomes signal.Table, a type
// internal/task.Process embeds a pointer to rather than redefining
// (spec.md 3: "a process-global handler table indexed 1..=SIG_NUM").
// Signal numbers are cross-checked against golang.org/x/sys/unix's
// SIG* constants the same way internal/errno treats unix.E* as ground
// truth for errno numbering.
package signal

import (
	"sync"

	"golang.org/x/sys/unix"
)

// SigNum is spec.md section 6's SIG_NUM.
const SigNum = 64

// Signal numbers, standard POSIX/Linux numbering (spec.md section 6).
const (
	SIGHUP    = int(unix.SIGHUP)
	SIGINT    = int(unix.SIGINT)
	SIGQUIT   = int(unix.SIGQUIT)
	SIGILL    = int(unix.SIGILL)
	SIGTRAP   = int(unix.SIGTRAP)
	SIGABRT   = int(unix.SIGABRT)
	SIGBUS    = int(unix.SIGBUS)
	SIGFPE    = int(unix.SIGFPE)
	SIGKILL   = int(unix.SIGKILL)
	SIGUSR1   = int(unix.SIGUSR1)
	SIGSEGV   = int(unix.SIGSEGV)
	SIGUSR2   = int(unix.SIGUSR2)
	SIGPIPE   = int(unix.SIGPIPE)
	SIGALRM   = int(unix.SIGALRM)
	SIGTERM   = int(unix.SIGTERM)
	SIGSTKFLT = 16
	SIGCHLD   = int(unix.SIGCHLD)
	SIGCONT   = int(unix.SIGCONT)
	SIGSTOP   = int(unix.SIGSTOP)
	SIGTSTP   = int(unix.SIGTSTP)
	SIGTTIN   = int(unix.SIGTTIN)
	SIGTTOU   = int(unix.SIGTTOU)
	SIGURG    = int(unix.SIGURG)
	SIGXCPU   = int(unix.SIGXCPU)
	SIGXFSZ   = int(unix.SIGXFSZ)
	SIGVTALRM = int(unix.SIGVTALRM)
	SIGPROF   = int(unix.SIGPROF)
	SIGWINCH  = int(unix.SIGWINCH)
	SIGIO     = int(unix.SIGIO)
	SIGPWR    = int(unix.SIGPWR)
	SIGSYS    = int(unix.SIGSYS)
	// SIGRTMIN/SIGRTMAX are supported by number only, per spec.md section
	// 6; glibc's SIGRTMIN is 34 on Linux (the kernel's own RT base is 32,
	// glibc reserves the first two for its own use).
	SIGRTMIN = 34
	SIGRTMAX = SigNum
)

// Bit returns signo's position in a pending/mask bitmap.
func Bit(signo int) uint64 { return uint64(1) << uint(signo-1) }

// Action is one process's disposition for one signal (spec.md 4.9,
// "sigaction"). Handler 0 is SIG_DFL, 1 is SIG_IGN, anything else is a
// user handler VA.
type Action struct {
	Handler uint64
	Mask    uint64
	Flags   uint64
}

const (
	SigDFL = 0
	SigIgn = 1
)

// Table is the process-global handler table, indexed 1..=SIG_NUM
// (spec.md section 3/4.9).
type Table struct {
	mu      sync.Mutex
	actions [SigNum + 1]Action
}

func NewTable() *Table { return &Table{} }

// Clone copies every entry, used by fork (children inherit handlers,
// spec.md section 3) and by CLONE_SIGHAND threads (which instead share
// the same *Table, set up by the caller).
func (t *Table) Clone() *Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := &Table{actions: t.actions}
	return n
}

// ResetCaught returns a table with every caught (non-default, non-ignore)
// handler reset to SIG_DFL, SIG_IGN entries preserved: the POSIX
// exec()-time rule, since a caught handler's address belongs to the
// address space exec is about to discard.
func (t *Table) ResetCaught() *Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := NewTable()
	for i, a := range t.actions {
		if a.Handler == SigIgn {
			n.actions[i] = a
		}
	}
	return n
}

func (t *Table) Get(signo int) Action {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.actions[signo]
}

func (t *Table) Set(signo int, act Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions[signo] = act
}

// Catchable rejects signo 0, SIGKILL, and SIGSTOP as sigaction targets
// (spec.md 4.9).
func Catchable(signo int) bool {
	return signo > 0 && signo <= SigNum && signo != SIGKILL && signo != SIGSTOP
}

// DefaultKind is the outcome of the default (SIG_DFL) action for a
// signal, per spec.md 4.9.
type DefaultKind int

const (
	DefaultTerminate DefaultKind = iota
	DefaultIgnore
	DefaultCore
	DefaultStop
	DefaultCont
)

// DefaultAction mirrors _examples/original_source/os/src/signal/action.rs's
// SignalDefault::get_action table exactly.
func DefaultAction(signo int) DefaultKind {
	switch signo {
	case SIGABRT, SIGBUS, SIGFPE, SIGILL, SIGQUIT, SIGSEGV, SIGXCPU, SIGXFSZ, SIGSYS:
		return DefaultCore
	case SIGCHLD, SIGWINCH, SIGURG:
		return DefaultIgnore
	case SIGCONT:
		return DefaultCont
	case SIGSTOP, SIGTSTP, SIGTTIN, SIGTTOU:
		return DefaultStop
	default:
		return DefaultTerminate
	}
}

// SelectPending returns the lowest-numbered signal present in pending
// and not in mask, or 0 if none (spec.md 4.9 step 2: "signals: ascending
// signo within a single pass").
func SelectPending(pending, mask uint64) int {
	unblocked := pending &^ mask
	if unblocked == 0 {
		return 0
	}
	for signo := 1; signo <= SigNum; signo++ {
		if unblocked&Bit(signo) != 0 {
			return signo
		}
	}
	return 0
}

// DecisionKind is what the trap gate should do about one pending
// signal, returned by Resolve.
type DecisionKind int

const (
	// DecisionNone: no pending unblocked signal.
	DecisionNone DecisionKind = iota
	// DecisionApplyDefault: run the SIG_DFL action for Signo.
	DecisionApplyDefault
	// DecisionIgnore: SIG_IGN, drop the signal, nothing else to do.
	DecisionIgnore
	// DecisionHandle: invoke the registered handler; caller must save
	// the trap context and rewrite sepc/a0/ra per spec.md 4.9 step 4.
	DecisionHandle
	// DecisionDeferred: a handler is running and this signal is listed
	// in its own sa_mask; leave it pending for a later pass.
	DecisionDeferred
)

type Decision struct {
	Kind    DecisionKind
	Signo   int
	Default DefaultKind
	Handler uint64
	Mask    uint64
}

// Resolve implements spec.md 4.9 steps 1-4 given the thread's current
// pending/mask bitmaps, the process's handler table, and the signo
// currently being handled (0 if none). It does not mutate anything;
// callers apply the returned Decision.
func Resolve(table *Table, pending, mask uint64, handlingSigno int) Decision {
	signo := SelectPending(pending, mask)
	if signo == 0 {
		return Decision{Kind: DecisionNone}
	}
	act := table.Get(signo)
	if act.Handler == SigDFL {
		return Decision{Kind: DecisionApplyDefault, Signo: signo, Default: DefaultAction(signo)}
	}
	if act.Handler == SigIgn {
		return Decision{Kind: DecisionIgnore, Signo: signo}
	}
	// spec.md 4.9 step 4: deliver unless a handler is already running
	// and this signal is listed in that handler's own sa_mask (the
	// literal original_source/os/src/signal/mod.rs::handle_signals
	// condition: handling_signo == 0 || !handler.sa_mask.contains(signo)).
	if handlingSigno != 0 && act.Mask&Bit(signo) != 0 {
		return Decision{Kind: DecisionDeferred, Signo: signo}
	}
	return Decision{Kind: DecisionHandle, Signo: signo, Handler: act.Handler, Mask: act.Mask}
}

// sigprocmask how values (spec.md 4.9).
const (
	SigBlock   = 0
	SigUnblock = 1
	SigSetMask = 2
)

// ApplyProcMask computes the new mask for sigprocmask's how/set pair.
func ApplyProcMask(how int32, old, set uint64) (uint64, bool) {
	switch how {
	case SigBlock:
		return old | set, true
	case SigUnblock:
		return old &^ set, true
	case SigSetMask:
		return set, true
	default:
		return old, false
	}
}
