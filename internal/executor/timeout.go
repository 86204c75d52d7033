package executor

// TimeoutFuture is not-done until now() reaches deadline, the
// cooperative-polling replacement for a blocking sleep: the nanosleep
// syscall parks one of these on the sleeping thread (the futex wait path
// checks its own deadline in futex.WaitFuture instead). Because
// there is no interrupt to wake it early, it re-wakes itself every poll
// rather than waiting for an external waker, trading a busy-ish poll
// loop for not needing a timer-interrupt callback list.
type TimeoutFuture struct {
	deadline uint64
	now      func() uint64
}

func NewTimeoutFuture(deadlineNanos uint64, now func() uint64) *TimeoutFuture {
	return &TimeoutFuture{deadline: deadlineNanos, now: now}
}

func (t *TimeoutFuture) Poll(wake func()) bool {
	if t.now() >= t.deadline {
		return true
	}
	wake()
	return false
}
