package syscall

import (
	"arona/internal/task"
	"arona/internal/timer"
)

// utsnameField writes s, NUL-padded to 65 bytes, the fixed width every
// struct utsname field uses.
func utsnameField(buf []byte, s string) {
	copy(buf, s)
}

// sysUname implements spec.md's supplemented uname support with the
// fixed identity string _examples/original_source/os/src/ctypes.rs's
// Utsname::default() reports — this kernel has no real host identity to
// introspect, so it reports the same fake one the original did.
func sysUname(process *task.Process, utsVA uint64) (uint64, error) {
	const fieldLen = 65
	buf := make([]byte, fieldLen*5)
	utsnameField(buf[0*fieldLen:], "Aronaos")
	utsnameField(buf[1*fieldLen:], "LAPTOP")
	utsnameField(buf[2*fieldLen:], "5.15.146.1-standard")
	utsnameField(buf[3*fieldLen:], "#1 SMP Thu Jan")
	utsnameField(buf[4*fieldLen:], "RISC-V SiFive Freedom U740 SoC")
	return 0, process.MM.CopyOut(utsVA, buf)
}

// sysTimes implements spec.md's supplemented times support. Per-process
// CPU-time accounting is out of scope (spec.md section 1 treats the hart
// itself as external), so every field reports the original's fake
// constant 1 rather than a real measurement.
func sysTimes(process *task.Process, bufVA uint64) (uint64, error) {
	buf := make([]byte, 32)
	putU64(buf[0:], 1)
	putU64(buf[8:], 1)
	putU64(buf[16:], 1)
	putU64(buf[24:], 1)
	if err := process.MM.CopyOut(bufVA, buf); err != nil {
		return 0, err
	}
	return uint64(timer.NowNanos() / timer.NsecPerSec), nil
}

func sysGettimeofday(process *task.Process, tvVA uint64) (uint64, error) {
	tv := timer.NowTimeVal()
	buf := make([]byte, 16)
	putU64(buf[0:], uint64(tv.Sec))
	putU64(buf[8:], uint64(tv.Usec))
	return 0, process.MM.CopyOut(tvVA, buf)
}
