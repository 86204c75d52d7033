package task

import (
	"arona/internal/errno"
	"arona/internal/mm"
	"arona/internal/vfs"
)

// NewInitProcess loads elfImage as pid 1: a fresh address space sharing
// the kernel's upper half, stdio wired to tty, no parent. Grounded on
// original_source/os/src/task/manager.rs's INITPROC construction
// (spec.md 4.7).
func NewInitProcess(alloc *mm.FrameAllocator, ram mm.RAM, kernel *mm.MemorySet, elfImage []byte, tty vfs.File, argv, envp []string) (*Process, *Thread, error) {
	ms, userSP, entry, aux, err := mm.FromELF(alloc, ram, kernel, elfImage)
	if err != nil {
		return nil, nil, err
	}
	layout, err := mm.BuildInitStack(ms, userSP, aux, argv, envp)
	if err != nil {
		return nil, nil, err
	}
	p := newProcessShell()
	p.MM = ms
	p.FDs.InstallStdio(tty)

	th := newThread(p, userSP)
	ctx := AppInitContext(entry, layout.SP, kernel.Token())
	ctx.X[RegA0] = layout.Argc
	ctx.X[RegA1] = layout.ArgvBase
	ctx.X[RegA2] = layout.EnvpBase
	ctx.X[RegA3] = layout.AuxvBase
	th.SetTrapContext(ctx)
	p.addThread(th)
	GlobalTable().Register(p)
	return p, th, nil
}

// Fork duplicates parent via copy-on-write (spec.md 4.7's fork): new
// pid, cloned address space, cloned fd table, single thread whose trap
// context is a copy of the calling thread's with a0 zeroed for the
// child's return value (Fork sets that itself).
// stack, when non-zero, overrides the child thread's sp (spec.md 4.7's
// "fork(stack?)").
func Fork(alloc *mm.FrameAllocator, ram mm.RAM, kernel *mm.MemorySet, parent *Process, callerThread *Thread, stack uint64) (*Process, *Thread, error) {
	childMS, err := mm.FromExistingUser(alloc, ram, kernel, parent.MM)
	if err != nil {
		return nil, nil, err
	}
	child := newProcessShell()
	child.MM = childMS
	child.FDs = parent.FDs.Clone()
	child.Signals = parent.Signals.Clone()
	child.SetCWD(parent.CWD())
	child.SetPGID(parent.PGID())
	child.setParent(parent)
	parent.addChild(child)

	childCtx := callerThread.TrapContext().Clone()
	childCtx.X[RegA0] = 0 // fork's child return value, spec.md 4.7
	if stack != 0 {
		childCtx.X[RegSP] = stack
	}
	childThread := newThread(child, callerThread.inner.UstackTop)
	childThread.SetTrapContext(childCtx)
	// spec.md section 3: child inherits the parent's signal mask and
	// handlers (handlers via child.Signals.Clone() above) but starts
	// with empty pending signals (newThread's default).
	childThread.SetSigMask(callerThread.SigMask())
	child.addThread(childThread)
	GlobalTable().Register(child)
	return child, childThread, nil
}

// CloneThread adds a new thread to process sharing its address space and
// fd table (spec.md 4.7's clone, CLONE_THREAD path): it reads
// (entry_point, arg) from the two words at *stack, builds a trap context
// that starts the new thread at entry_point with that arg, and honors
// CLONE_CHILD_CLEARTID/CLONE_CHILD_SETTID/CLONE_PARENT_SETTID.
func CloneThread(process *Process, callerThread *Thread, stack, tls, ptid, ctid uint64, flags uint64) (*Thread, error) {
	entry, err := process.MM.ReadU64(stack)
	if err != nil {
		return nil, err
	}
	arg, err := process.MM.ReadU64(stack + 8)
	if err != nil {
		return nil, err
	}

	ctx := callerThread.TrapContext().Clone()
	ctx.Sepc = entry
	ctx.X[RegA0] = arg
	ctx.X[RegSP] = stack
	ctx.X[RegTP] = tls

	t := newThread(process, stack)
	t.SetTrapContext(ctx)
	if flags&CloneChildCleartid != 0 {
		t.SetTIDAddress(ctid)
	}
	process.addThread(t)

	if flags&CloneChildSettid != 0 {
		if err := process.MM.WriteU64(ctid, t.TID()); err != nil {
			return nil, err
		}
	}
	if flags&CloneParentSettid != 0 {
		if err := process.MM.WriteU64(ptid, t.TID()); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Exec replaces process's address space in place with a freshly loaded
// ELF image: fds marked close-on-exec are closed first, the init vector
// (argv/envp/auxv) is pushed onto the new user stack per spec.md 4.7
// step 3, and the thread's trap context is rebuilt with a0..a3 set per
// step 4. Only valid when process has exactly one thread, matching
// Linux's exec-kills-other-threads rule being the caller's
// responsibility to enforce beforehand. Caught signal handlers do not
// survive exec (their VAs belong to the address space being replaced);
// the signal mask does, per spec.md section 3's SigSet note.
func Exec(alloc *mm.FrameAllocator, ram mm.RAM, kernel *mm.MemorySet, process *Process, thread *Thread, elfImage []byte, argv, envp []string) error {
	process.FDs.CloseOnExecAll()
	ms, userSP, entry, aux, err := mm.FromELF(alloc, ram, kernel, elfImage)
	if err != nil {
		return err
	}
	layout, err := mm.BuildInitStack(ms, userSP, aux, argv, envp)
	if err != nil {
		return err
	}

	process.MM.Recycle()
	process.MM = ms
	process.Signals = process.Signals.ResetCaught()

	ctx := AppInitContext(entry, layout.SP, kernel.Token())
	ctx.X[RegA0] = layout.Argc
	ctx.X[RegA1] = layout.ArgvBase
	ctx.X[RegA2] = layout.EnvpBase
	ctx.X[RegA3] = layout.AuxvBase
	thread.SetTrapContext(ctx)
	thread.inner.UstackTop = userSP
	return nil
}

// Exit tears down thread; once the last thread of process has exited,
// the process itself becomes a zombie, its memory set is recycled, and
// its children are reparented onto initProc (spec.md 4.7's exit).
func Exit(process *Process, thread *Thread, initProc *Process, code int) {
	thread.SetExitCode(code)
	process.removeThread(thread.TID())

	if clear := thread.ClearChildTID(); clear != 0 {
		// A futex wake on clear_child_tid is the caller's job once it
		// has access to the futex table; recorded here only as the
		// address the kernel must zero and notify (spec.md's
		// supplemented set_tid_address feature).
		_ = clear
	}

	if process.ThreadCount() > 0 {
		return
	}
	process.markExited(code)
	process.MM.Recycle()
	if initProc != nil && process != initProc {
		process.reparentOrphans(initProc)
	}
}

// Wait4 does not block: if a child matching pid (-1 for any) has exited,
// it reaps it (removed from the parent's children and its pid handle
// released) and returns it with its exit code; if matching children
// exist but none has exited, it returns (nil, 0, nil) and the caller
// polls again (see executor.WaitChildFuture). Returns ECHILD if no
// matching, non-reaped child exists at all.
func Wait4(parent *Process, pid int64) (child *Process, status int, err error) {
	if pid != -1 && pid <= 0 {
		// spec.md 4.7: only pid==-1 (any child) and pid>0 (specific
		// child) are accepted; process-group wait (pid==0 or pid<-1)
		// is rejected rather than guessed at (spec.md 9's open question).
		return nil, 0, errno.EINVAL
	}
	children := parent.Children()
	matched := false
	for _, c := range children {
		if pid != -1 && int64(c.PID()) != pid {
			continue
		}
		matched = true
		if c.IsExited() {
			parent.removeChild(c)
			c.pidHandle.Release()
			GlobalTable().Unregister(c.PID())
			return c, c.ExitCode(), nil
		}
	}
	if !matched {
		return nil, 0, errno.ECHILD
	}
	return nil, 0, nil // no zombie yet; caller retries/yields
}
