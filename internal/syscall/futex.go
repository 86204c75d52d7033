package syscall

import (
	"arona/internal/errno"
	"arona/internal/futex"
	"arona/internal/mm"
	"arona/internal/task"
	"arona/internal/timer"
)

func futexKey(process *task.Process, uaddr uint64) futex.Key {
	return futex.Key{
		Which:  process.PID(),
		Page:   uaddr &^ (mm.PageSize - 1),
		Offset: uaddr % mm.PageSize,
	}
}

// sysFutex implements spec.md 4.10's op dispatch. Only the private
// variants are required (spec.md section 3); the FlagPrivate bit in op
// is masked off rather than rejected, but FlagClockRT is rejected
// outright, per spec.md 4.10: "`FLAGS_CLOCKRT` is rejected."
func sysFutex(k *Kernel, process *task.Process, thread *task.Thread, a [6]uint64) (uint64, error) {
	uaddr, op, val, a3, uaddr2, val3 := a[0], a[1], uint32(a[2]), a[3], a[4], uint32(a[5])
	if op&futex.FlagClockRT != 0 {
		return 0, errno.EINVAL
	}
	base := op &^ uint64(futex.FlagPrivate)
	key := futexKey(process, uaddr)

	switch base {
	case futex.OpWait, futex.OpWaitBitset:
		cur, err := process.MM.ReadU32(uaddr)
		if err != nil {
			return 0, err
		}
		if cur != val {
			return 0, errno.EAGAIN
		}
		bitset := uint32(0xffffffff)
		if base == futex.OpWaitBitset {
			bitset = val3
		}
		var deadline *uint64
		if base == futex.OpWait && a3 != 0 {
			sec, err := process.MM.ReadU64(a3)
			if err != nil {
				return 0, err
			}
			nsec, err := process.MM.ReadU64(a3 + 8)
			if err != nil {
				return 0, err
			}
			d := timer.NowNanos() + sec*timer.NsecPerSec + nsec
			deadline = &d
		}
		thread.SetBlocking(newFutexBlocker(k.Futex, key, bitset, deadline, thread.HasPendingUnblocked))
		return 0, ErrWouldBlock

	case futex.OpWake:
		return uint64(k.Futex.Wake(key, int(val))), nil

	case futex.OpWakeBitset:
		if val3 == 0 {
			// spec.md 4.10: "bitset == 0 fails EINVAL."
			return 0, errno.EINVAL
		}
		return uint64(k.Futex.WakeBitset(key, int(val), val3)), nil

	case futex.OpRequeue, futex.OpCmpRequeue:
		keyB := futexKey(process, uaddr2)
		woken, _ := k.Futex.Requeue(key, int(val), keyB, int(a3))
		return uint64(woken), nil

	case futex.OpFD:
		return 0, errno.ENOSYS

	default:
		return 0, errno.ENOSYS
	}
}
