package syscall

import (
	"errors"

	"arona/internal/errno"
	"arona/internal/mm"
	"arona/internal/signal"
	"arona/internal/task"
)

func readSigAction(ms *mm.MemorySet, va uint64) (signal.Action, error) {
	handler, err := ms.ReadU64(va)
	if err != nil {
		return signal.Action{}, err
	}
	mask, err := ms.ReadU64(va + 8)
	if err != nil {
		return signal.Action{}, err
	}
	flags, err := ms.ReadU64(va + 16)
	if err != nil {
		return signal.Action{}, err
	}
	return signal.Action{Handler: handler, Mask: mask, Flags: flags}, nil
}

func writeSigAction(ms *mm.MemorySet, va uint64, act signal.Action) error {
	if err := ms.WriteU64(va, act.Handler); err != nil {
		return err
	}
	if err := ms.WriteU64(va+8, act.Mask); err != nil {
		return err
	}
	return ms.WriteU64(va+16, act.Flags)
}

// sysRtSigaction implements spec.md 4.9's sigaction(signo, act?, oldact?):
// SIGKILL/SIGSTOP and signo==0 are rejected with EPERM, matching the
// original's "handler assignment fails EPERM" rather than EINVAL.
func sysRtSigaction(process *task.Process, signo int, actVA, oldActVA uint64) (uint64, error) {
	if !signal.Catchable(signo) {
		return 0, errno.EPERM
	}
	if oldActVA != 0 {
		if err := writeSigAction(process.MM, oldActVA, process.Signals.Get(signo)); err != nil {
			return 0, err
		}
	}
	if actVA != 0 {
		act, err := readSigAction(process.MM, actVA)
		if err != nil {
			return 0, err
		}
		process.Signals.Set(signo, act)
	}
	return 0, nil
}

func sysRtSigprocmask(thread *task.Thread, how int32, setVA, oldSetVA uint64) (uint64, error) {
	old := thread.SigMask()
	if oldSetVA != 0 {
		if err := thread.Process.MM.WriteU64(oldSetVA, old); err != nil {
			return 0, err
		}
	}
	if setVA == 0 {
		return 0, nil
	}
	set, err := thread.Process.MM.ReadU64(setVA)
	if err != nil {
		return 0, err
	}
	newMask, ok := signal.ApplyProcMask(how, old, set)
	if !ok {
		return 0, errno.EINVAL
	}
	thread.SetSigMask(newMask)
	return 0, nil
}

func sysRtSigpending(thread *task.Thread, setVA uint64) (uint64, error) {
	return 0, thread.Process.MM.WriteU64(setVA, thread.PendingMask())
}

// ErrSigreturn signals the trap gate that the thread's trap context has
// already been fully replaced by the pre-signal one (including its a0):
// the dispatcher must not encode a fresh return value over it, per
// spec.md 4.9's "return the restored a0 so the syscall return path does
// not clobber the user-visible value".
var ErrSigreturn = errors.New("syscall: sigreturn restored context")

func sysRtSigreturn(thread *task.Thread) (uint64, error) {
	ctx, ok := thread.LeaveHandler()
	if !ok {
		return 0, errno.EINVAL
	}
	thread.SetTrapContext(ctx)
	return 0, ErrSigreturn
}

// sysKill implements spec.md 4.9's kill(pid, signo) pid conventions:
// 0 broadcasts to every process, 1 to every process except init, pid>0
// targets one process, pid<0 is (deliberately, per spec.md's redesign
// note) treated as its absolute value rather than a process-group send.
func sysKill(k *Kernel, pid int64, signo int) (uint64, error) {
	if signo <= 0 || signo > signal.SigNum {
		return 0, errno.EINVAL
	}
	switch {
	case pid == 0:
		for _, p := range task.GlobalTable().All() {
			raiseOn(p, signo)
		}
	case pid == 1:
		for _, p := range task.GlobalTable().All() {
			if k.InitProc != nil && p == k.InitProc {
				continue
			}
			raiseOn(p, signo)
		}
	case pid > 0:
		p, ok := task.GlobalTable().Get(uint64(pid))
		if !ok {
			return 0, errno.ESRCH
		}
		raiseOn(p, signo)
	default:
		p, ok := task.GlobalTable().Get(uint64(-pid))
		if !ok {
			return 0, errno.ESRCH
		}
		raiseOn(p, signo)
	}
	return 0, nil
}

func raiseOn(p *task.Process, signo int) {
	for _, t := range p.Threads() {
		t.RaiseSignal(signo)
		if signo == signal.SIGCONT {
			t.SetStopped(false)
		}
	}
}
