package syscall

import (
	"arona/internal/errno"
	"arona/internal/futex"
	"arona/internal/mm"
	"arona/internal/task"
	"arona/internal/timer"
)

func sysExit(k *Kernel, process *task.Process, thread *task.Thread, code int32) (uint64, error) {
	clearAddr := thread.ClearChildTID()
	if clearAddr != 0 {
		process.MM.WriteU32(clearAddr, 0)
	}
	task.Exit(process, thread, k.InitProc, int(code))
	if clearAddr != 0 && k.Futex != nil {
		key := futex.Key{Which: process.PID(), Page: clearAddr &^ (mm.PageSize - 1), Offset: clearAddr % mm.PageSize}
		k.Futex.Wake(key, 1)
	}
	return 0, ErrExited
}

func sysNanosleep(thread *task.Thread, reqVA uint64) (uint64, error) {
	sec, err := thread.Process.MM.ReadU64(reqVA)
	if err != nil {
		return 0, err
	}
	nsec, err := thread.Process.MM.ReadU64(reqVA + 8)
	if err != nil {
		return 0, err
	}
	deadline := timer.NowNanos() + sec*timer.NsecPerSec + nsec
	thread.SetBlocking(newSleepBlocker(deadline))
	return 0, ErrWouldBlock
}

// sysClone implements spec.md 4.7's clone: CLONE_THREAD adds a thread to
// the calling process sharing its address space, anything else forks a
// new process (the only two clone shapes spec.md requires). flags/stack/
// ptid/tls/ctid match the argument order Dispatch already passes.
func sysClone(k *Kernel, process *task.Process, thread *task.Thread, flags, stack, ptid, tls, ctid uint64) (uint64, error) {
	if flags&task.CloneThread != 0 {
		newThread, err := task.CloneThread(process, thread, stack, tls, ptid, ctid, flags)
		if err != nil {
			return 0, err
		}
		if k.Spawn != nil {
			k.Spawn(process, newThread)
		}
		return newThread.TID(), nil
	}

	child, childThread, err := task.Fork(k.Alloc, k.RAM, k.Kernel, process, thread, stack)
	if err != nil {
		return 0, err
	}
	if k.Spawn != nil {
		k.Spawn(child, childThread)
	}
	return child.PID(), nil
}

func sysExecve(k *Kernel, process *task.Process, thread *task.Thread, pathVA, argvVA, envpVA uint64) (uint64, error) {
	path, err := readCString(process.MM, pathVA)
	if err != nil {
		return 0, err
	}
	argv, err := readStringVector(process.MM, argvVA)
	if err != nil {
		return 0, err
	}
	envp, err := readStringVector(process.MM, envpVA)
	if err != nil {
		return 0, err
	}

	parent, name, err := resolveParent(process, ATFDCWD, path)
	if err != nil {
		return 0, err
	}
	node, ok := parent.Find(name)
	if !ok {
		return 0, errno.ENOENT
	}
	meta := node.Meta()
	if meta.IsDir {
		return 0, errno.EISDIR
	}
	image := make([]byte, meta.Size)
	if _, err := node.Read(nil, 0, image); err != nil {
		return 0, errno.From(err)
	}

	if err := task.Exec(k.Alloc, k.RAM, k.Kernel, process, thread, image, argv, envp); err != nil {
		return 0, err
	}
	return 0, nil
}

func readStringVector(ms *mm.MemorySet, va uint64) ([]string, error) {
	if va == 0 {
		return nil, nil
	}
	var out []string
	for i := 0; ; i++ {
		ptr, err := ms.ReadU64(va + uint64(i)*8)
		if err != nil {
			return nil, err
		}
		if ptr == 0 {
			break
		}
		s, err := readCString(ms, ptr)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// WNOHANG, the only wait4 option bit spec.md's cooperative model needs
// to recognize (the rest are accepted and ignored).
const WNOHANG = 1

func sysWait4(process *task.Process, thread *task.Thread, pid int64, statusVA uint64, options int32) (uint64, error) {
	child, status, err := task.Wait4(process, pid)
	if err != nil {
		return 0, err
	}
	if child != nil {
		if statusVA != 0 {
			if err := writeWaitStatus(process, statusVA, status); err != nil {
				return 0, err
			}
		}
		return child.PID(), nil
	}
	if options&WNOHANG != 0 {
		return 0, nil
	}
	thread.SetBlocking(newWait4Blocker(process, pid, statusVA))
	return 0, ErrWouldBlock
}

func sysSetpgid(process *task.Process, pid, pgid uint64) (uint64, error) {
	target := process
	if pid != 0 {
		p, ok := task.GlobalTable().Get(pid)
		if !ok {
			return 0, errno.ESRCH
		}
		target = p
	}
	if pgid == 0 {
		pgid = target.PID()
	}
	target.SetPGID(pgid)
	return 0, nil
}

// sysRobustList implements both halves of the pair: set_robust_list(head,
// len) just remembers what userland told it (a[0], a[1]); get_robust_list
// (pid, head_ptr_ptr, len_ptr) writes the remembered values back through
// the two distinct pointers a[1] and a[2] spec.md's supplemented feature
// calls for.
func sysRobustList(thread *task.Thread, sysno uint64, a [6]uint64) (uint64, error) {
	if sysno == SysSetRobustList {
		thread.SetRobustList(a[0], a[1])
		return 0, nil
	}
	head, length := thread.RobustList()
	if err := thread.Process.MM.WriteU64(a[1], head); err != nil {
		return 0, err
	}
	if err := thread.Process.MM.WriteU64(a[2], length); err != nil {
		return 0, err
	}
	return 0, nil
}
