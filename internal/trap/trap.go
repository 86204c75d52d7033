// Package trap implements spec.md 4.6: the trap gate that vectors a
// user trap into the async handler described there and returns control
// via the restore path, plus spec.md 4.9's "run once per trap-return"
// signal-delivery pass.
//
// Grounded on _examples/original_source/os/src/trap/mod.rs's
// trap_handler(): UserEnvCall bumps sepc by 4 and dispatches the
// syscall; Store/Load/Instruction{Fault,PageFault} call the page-fault
// path and kill the task with -2 on failure; IllegalInstruction kills
// with -3; SupervisorTimer resets the next tick and yields; anything
// else panics. The one piece the original doesn't need an interface for
// is what delivers control to user mode and back: on real hardware that
// is `__trap_from_user`/`sret`, raw assembly the original kernel never
// implements in Rust either (it just points stvec at it). Source models
// that same boundary as a Go interface rather than reimplementing a
// RISC-V core, exactly the way spec.md section 1 treats console SBI
// glue and board-pin constants as external collaborators reached only
// through their interface.
package trap

import (
	"errors"
	"fmt"

	"arona/internal/errno"
	"arona/internal/executor"
	"arona/internal/klog"
	"arona/internal/mm"
	"arona/internal/signal"
	sys "arona/internal/syscall"
	"arona/internal/task"
	"arona/internal/timer"
)

// Cause is the trap reason a Source reports, the Go stand-in for
// riscv::register::scause::Trap.
type Cause int

const (
	CauseUserEnvCall Cause = iota
	CauseLoadPageFault
	CauseStorePageFault
	CauseInstructionPageFault
	CauseIllegalInstruction
	CauseSupervisorTimer
	CauseOther
)

func (c Cause) String() string {
	switch c {
	case CauseUserEnvCall:
		return "UserEnvCall"
	case CauseLoadPageFault:
		return "LoadPageFault"
	case CauseStorePageFault:
		return "StorePageFault"
	case CauseInstructionPageFault:
		return "InstructionPageFault"
	case CauseIllegalInstruction:
		return "IllegalInstruction"
	case CauseSupervisorTimer:
		return "SupervisorTimer"
	default:
		return "Other"
	}
}

// Source is the hardware boundary the gate drives: trap_return (enter
// user mode with ctx/satp active) followed by whatever trap arrives
// next, collapsed into one call since nothing else runs on this hart
// meanwhile. Implementations mutate ctx in place with whatever the
// user program did to its own registers before the trap (a real
// implementation backs this with an actual RISC-V core or hardware
// virtualization; ScriptedSource in this package is a test double).
type Source interface {
	RunUntilTrap(ctx *task.TrapContext, satp uint64) (Cause, uint64, error)
}

// Gate drives one thread's slice of execution through spec.md 4.6's
// handler, implementing the executor.Step shape usertask.go expects.
// Grounded on trap_handler's match over scause.cause(), translated from
// a single global current-thread binding to an explicit (process,
// thread) pair the UserTaskFuture closes over.
type Gate struct {
	Kernel  *sys.Kernel
	Process *task.Process
	Thread  *task.Thread
	Source  Source
}

func New(k *sys.Kernel, process *task.Process, thread *task.Thread, src Source) *Gate {
	return &Gate{Kernel: k, Process: process, Thread: thread, Source: src}
}

// Step implements executor.Step: resolve any parked blocker first, then
// (if still runnable) apply pending signals, then trap_return/trap_handler
// once. Matches the original's thread_loop body of trap_return() then
// await trap_handler(), except a parked blocker here is Go's
// cooperative-poll stand-in for the original's real `.await`.
func (g *Gate) Step(wake func()) executor.StepResult {
	if g.Thread.Status() == task.ThreadZombie {
		return executor.StepExited
	}

	if b := g.Thread.GetBlocking(); b != nil {
		if !b.Poll(wake) {
			return executor.StepBlocked
		}
		val, err := b.Result()
		g.Thread.SetBlocking(nil)
		g.encode(val, err)
		return executor.StepContinue
	}

	g.deliverSignals()
	if g.Thread.Status() == task.ThreadZombie {
		return executor.StepExited
	}
	if g.Thread.IsStopped() {
		g.Thread.SetBlocking(sys.NewStopBlocker(g.Thread))
		return executor.StepBlocked
	}

	ctx := g.Thread.TrapContext()
	satp := g.Process.MM.Token()
	cause, stval, err := g.Source.RunUntilTrap(ctx, satp)
	if err != nil {
		panic(fmt.Sprintf("trap: source failed: %v", err))
	}

	switch cause {
	case CauseUserEnvCall:
		return g.handleSyscall(ctx, wake)

	case CauseLoadPageFault, CauseStorePageFault, CauseInstructionPageFault:
		vpn := mm.VirtAddr(stval).Floor()
		if ferr := g.Process.MM.HandlePageFault(vpn); ferr != nil {
			klog.L().Warn("page fault killed task", "cause", cause, "stval", stval, "err", ferr, "pid", g.Process.PID(), "tid", g.Thread.TID())
			return g.kill(-2)
		}
		return executor.StepContinue

	case CauseIllegalInstruction:
		klog.L().Warn("illegal instruction killed task", "pid", g.Process.PID(), "tid", g.Thread.TID())
		return g.kill(-3)

	case CauseSupervisorTimer:
		timer.SetNextTrigger()
		return executor.StepContinue

	default:
		panic(fmt.Sprintf("trap: unsupported trap %v, stval=%#x", cause, stval))
	}
}

func (g *Gate) kill(code int) executor.StepResult {
	task.Exit(g.Process, g.Thread, g.Kernel.InitProc, code)
	return executor.StepExited
}

func (g *Gate) handleSyscall(ctx *task.TrapContext, wake func()) executor.StepResult {
	ctx.Sepc += 4 // spec.md 4.6: "bump sepc by 4" before dispatch
	sysno := ctx.X[task.RegA7]
	args := [6]uint64{
		ctx.X[task.RegA0], ctx.X[task.RegA1], ctx.X[task.RegA2],
		ctx.X[task.RegA3], ctx.X[task.RegA4], ctx.X[task.RegA5],
	}

	val, err := sys.Dispatch(g.Kernel, g.Process, g.Thread, sysno, args)

	switch {
	case errors.Is(err, sys.ErrExited):
		return executor.StepExited

	case errors.Is(err, sys.ErrWouldBlock):
		b := g.Thread.GetBlocking()
		if b.Poll(wake) {
			rv, rerr := b.Result()
			g.Thread.SetBlocking(nil)
			g.encode(rv, rerr)
			return executor.StepContinue
		}
		return executor.StepBlocked

	default:
		// sys_rt_sigreturn already overwrote the whole trap context
		// (including a0) via Thread.LeaveHandler; the syscall-return
		// path must not clobber it, per spec.md 4.9's sigreturn note.
		if !errors.Is(err, sys.ErrSigreturn) {
			g.encode(val, err)
		}
		return executor.StepContinue
	}
}

// encode writes a Dispatch result into the calling thread's a0,
// following spec.md 4.8's "non-negative return, or negated errno".
func (g *Gate) encode(val uint64, err error) {
	ctx := g.Thread.TrapContext()
	ctx.X[task.RegA0] = errno.Encode(val, err)
}

// deliverSignals implements spec.md 4.9 steps 1-4, run once per
// trap-return: resolve the lowest-numbered pending-and-unblocked
// signal against the process's handler table and either drop it
// (ignore), apply its default action, or splice in a handler
// invocation the way the original's handle_signals() does.
func (g *Gate) deliverSignals() {
	for {
		pending := g.Thread.PendingMask()
		mask := g.Thread.SigMask()
		decision := signal.Resolve(g.Process.Signals, pending, mask, g.Thread.HandlingSigno())

		switch decision.Kind {
		case signal.DecisionNone, signal.DecisionDeferred:
			return

		case signal.DecisionIgnore:
			g.Thread.ClearSignal(decision.Signo)
			continue

		case signal.DecisionApplyDefault:
			g.Thread.ClearSignal(decision.Signo)
			switch decision.Default {
			case signal.DefaultIgnore:
				continue
			case signal.DefaultCont:
				g.Thread.SetStopped(false)
				continue
			case signal.DefaultStop:
				g.Thread.SetStopped(true)
				return
			default: // Terminate, Core
				task.Exit(g.Process, g.Thread, g.Kernel.InitProc, -int(decision.Signo))
				return
			}

		case signal.DecisionHandle:
			g.Thread.ClearSignal(decision.Signo)
			saved := g.Thread.TrapContext().Clone()
			g.Thread.EnterHandler(decision.Signo, saved)
			ctx := g.Thread.TrapContext()
			ctx.Sepc = decision.Handler
			ctx.X[task.RegA0] = uint64(decision.Signo)
			ctx.X[task.RegRA] = mm.Trampoline
			return
		}
	}
}
