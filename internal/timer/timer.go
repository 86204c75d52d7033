// Package timer implements spec.md 4.12: a monotonic clock and the
// nanosleep/timeout support the executor and futex packages build on.
// Grounded on original_source/os/src/timer.rs, with the RISC-V `time`
// CSR replaced by Go's monotonic host clock (there is no real timer
// hardware in this host-process model) and its TimeoutFuture moved to
// internal/executor so every package that needs a deadline-future
// shares one implementation.
package timer

import (
	"sync/atomic"
	"time"
)

// NsecPerSec mirrors the original's ctypes::NSEC_PER_SEC.
const NsecPerSec = 1_000_000_000

// TickInterval is spec.md 4.12's 10ms tick: set_next_trigger() programs
// the next timer interrupt at now + CLOCK_FREQ/100. This host-process
// model has no CLINT to program, so SetNextTrigger only records the
// deadline; on every SupervisorTimer trap the gate calls SetNextTrigger
// again and lets the thread continue (spec.md 4.6's "reset next-tick
// deadline; yield"). Nothing compares NowNanos() against that deadline.
const TickInterval = NsecPerSec / 100

var bootInstant = time.Now()

var nextTrigger atomic.Uint64

// SetNextTrigger programs the next tick deadline, spec.md 4.12.
// Grounded on original_source/os/src/timer.rs's set_next_trigger,
// called both at boot and from the trap gate's SupervisorTimer arm.
func SetNextTrigger() {
	nextTrigger.Store(NowNanos() + TickInterval)
}

// NextTrigger returns the deadline SetNextTrigger last programmed.
func NextTrigger() uint64 { return nextTrigger.Load() }

// NowNanos returns nanoseconds elapsed since this kernel "booted"
// (process start), the host-process stand-in for reading the RISC-V
// `time` CSR.
func NowNanos() uint64 {
	return uint64(time.Since(bootInstant).Nanoseconds())
}

// TimeSpec mirrors struct timespec (spec.md's clock_gettime /
// nanosleep argument shape), matching the original's TimeSpec.
type TimeSpec struct {
	Sec  int64
	Nsec int64
}

func NowTimeSpec() TimeSpec {
	n := NowNanos()
	return TimeSpec{Sec: int64(n / NsecPerSec), Nsec: int64(n % NsecPerSec)}
}

func (t TimeSpec) Nanos() uint64 {
	return uint64(t.Sec)*NsecPerSec + uint64(t.Nsec)
}

// TimeVal mirrors struct timeval, spec.md's supplemented
// gettimeofday support (microsecond resolution).
type TimeVal struct {
	Sec  int64
	Usec int64
}

func NowTimeVal() TimeVal {
	n := NowNanos()
	return TimeVal{Sec: int64(n / NsecPerSec), Usec: int64((n % NsecPerSec) / 1000)}
}

// Deadline converts a relative TimeSpec duration into an absolute
// nanosecond deadline suitable for executor.NewTimeoutFuture.
func Deadline(d TimeSpec) uint64 {
	return NowNanos() + d.Nanos()
}
