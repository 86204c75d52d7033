// Package syscall implements spec.md 4.8: one dispatcher indexed by the
// Linux RISC-V64 syscall_id, each handler operating on the calling
// thread's process state and returning a value the trap gate encodes
// into a0 via internal/errno.Encode.
//
// Grounded on _examples/original_source/os/src/syscall/{mod,fs,mm,
// process,util}.rs, whose per-syscall `sys_*` function split this package
// mirrors one file per concern (fs.go, mm.go, process.go, signal.go,
// futex.go, info.go) the way the original's submodules do.
package syscall

import (
	"errors"

	"arona/internal/errno"
	"arona/internal/futex"
	"arona/internal/klog"
	"arona/internal/mm"
	"arona/internal/task"
)

// Syscall numbers, the Linux RISC-V64 ABI (spec.md 4.8).
const (
	SysGetcwd      = 17
	SysDup         = 23
	SysDup3        = 24
	SysMkdirat     = 34
	SysUnlinkat    = 35
	SysChdir       = 49
	SysOpenat      = 56
	SysClose       = 57
	SysPipe2       = 59
	SysGetdents64  = 61
	SysRead        = 63
	SysWrite       = 64
	SysFstat       = 80
	SysExit        = 93
	SysNanosleep   = 101
	SysSchedYield  = 124
	SysKill        = 129
	SysRtSigaction = 134
	SysRtSigprocmask = 135
	SysRtSigpending  = 136
	SysRtSigreturn   = 139
	SysSetTidAddress = 96
	SysGetRobustList = 99
	SysSetRobustList = 100
	SysTimes       = 153
	SysUname       = 160
	SysGetpgid     = 155
	SysSetpgid     = 154
	SysGettimeofday = 169
	SysGettid      = 178
	SysGetpid      = 172
	SysGetppid     = 173
	SysBrk         = 214
	SysMunmap      = 215
	SysClone       = 220
	SysExecve      = 221
	SysMmap        = 222
	SysShmget      = 194
	SysShmat       = 196
	SysFutex       = 98
	SysWait4       = 260
)

// ErrWouldBlock is a handler's signal that it has parked the calling
// thread on a Blocker (thread.SetBlocking): the trap gate must not
// encode a return value into a0 yet, and must poll the blocker on
// subsequent Step calls instead of re-entering user mode.
var ErrWouldBlock = errors.New("syscall: would block")

// ErrExited is sys_exit's signal that the calling thread has already
// been torn down via task.Exit; the trap gate returns StepExited without
// touching a0.
var ErrExited = errors.New("syscall: thread exited")

// SpawnFunc starts a freshly created thread running: sys_clone/fork call
// it once the new Process/Thread exist. It is a plain closure (not an
// internal/trap.Source) so this package stays a leaf relative to
// internal/trap, which imports syscall for Dispatch, not the reverse.
type SpawnFunc func(process *task.Process, thread *task.Thread)

// Kernel bundles the cross-cutting state every handler needs: the frame
// allocator and RAM backing every address space, the kernel's own memory
// set (for FromExistingUser/FromELF's "share the upper half" step), the
// init process (exit's reparent target), and the shared futex/shm
// tables, which are process-table-wide like the original's single
// FUTEX_QUEUE/SHM_MANAGER.
type Kernel struct {
	Alloc    *mm.FrameAllocator
	RAM      mm.RAM
	Kernel   *mm.MemorySet
	InitProc *task.Process
	SHM      *mm.SharedMemoryTable
	Futex    *futex.Table
	Spawn    SpawnFunc
}

// Dispatch runs syscall sysno with args a0..a5, per spec.md 4.8. A
// blocking syscall returns (0, ErrWouldBlock) after calling
// thread.SetBlocking; sys_exit returns (0, ErrExited) after already
// tearing the thread down.
func Dispatch(k *Kernel, process *task.Process, thread *task.Thread, sysno uint64, a [6]uint64) (uint64, error) {
	switch sysno {
	case SysGetcwd:
		return sysGetcwd(process, a[0], a[1])
	case SysDup:
		return sysDup(process, int(a[0]))
	case SysDup3:
		return sysDup3(process, int(a[0]), int(a[1]))
	case SysMkdirat:
		return sysMkdirat(process, int64(a[0]), a[1], uint32(a[2]))
	case SysUnlinkat:
		return sysUnlinkat(process, int64(a[0]), a[1], uint32(a[2]))
	case SysChdir:
		return sysChdir(process, a[0])
	case SysOpenat:
		return sysOpenat(process, int64(a[0]), a[1], uint32(a[2]), uint32(a[3]))
	case SysClose:
		return sysClose(process, int(a[0]))
	case SysPipe2:
		return sysPipe2(process, a[0])
	case SysGetdents64:
		return sysGetdents64(process, int(a[0]), a[1], a[2])
	case SysRead:
		return sysRead(process, int(a[0]), a[1], a[2])
	case SysWrite:
		return sysWrite(process, int(a[0]), a[1], a[2])
	case SysFstat:
		return sysFstat(process, int(a[0]), a[1])

	case SysExit:
		return sysExit(k, process, thread, int32(a[0]))
	case SysNanosleep:
		return sysNanosleep(thread, a[0])
	case SysSchedYield:
		return 0, nil // the gate's StepContinue already requeues the thread at the tail of the ready queue
	case SysClone:
		return sysClone(k, process, thread, a[0], a[1], a[2], a[3], a[4])
	case SysExecve:
		return sysExecve(k, process, thread, a[0], a[1], a[2])
	case SysWait4:
		return sysWait4(process, thread, int64(a[0]), a[1], int32(a[2]))
	case SysGetpid:
		return process.PID(), nil
	case SysGetppid:
		if parent := process.Parent(); parent != nil {
			return parent.PID(), nil
		}
		return 1, nil
	case SysGettid:
		return thread.TID(), nil
	case SysGetpgid:
		return process.PGID(), nil
	case SysSetpgid:
		return sysSetpgid(process, a[0], a[1])
	case SysSetTidAddress:
		return thread.SetTIDAddress(a[0]), nil
	case SysSetRobustList, SysGetRobustList:
		return sysRobustList(thread, sysno, a)

	case SysBrk:
		return process.MM.Brk(a[0])
	case SysMunmap:
		return 0, process.MM.Munmap(a[0], a[1])
	case SysMmap:
		return sysMmap(process, a[0], a[1], a[2], a[3], int64(a[4]), a[5])
	case SysShmget:
		return k.SHM.Shmget(a[0], a[1])
	case SysShmat:
		return k.SHM.Shmat(process.MM, k.Alloc, a[0], a[1])

	case SysRtSigaction:
		return sysRtSigaction(process, int(a[0]), a[1], a[2])
	case SysRtSigprocmask:
		return sysRtSigprocmask(thread, int32(a[0]), a[1], a[2])
	case SysRtSigpending:
		return sysRtSigpending(thread, a[0])
	case SysRtSigreturn:
		return sysRtSigreturn(thread)
	case SysKill:
		return sysKill(k, int64(a[0]), int(a[1]))

	case SysFutex:
		return sysFutex(k, process, thread, a)

	case SysTimes:
		return sysTimes(process, a[0])
	case SysUname:
		return sysUname(process, a[0])
	case SysGettimeofday:
		return sysGettimeofday(process, a[0])

	default:
		klog.L().Warn("unsupported syscall", "id", sysno)
		return 0, errno.ENOSYS
	}
}
