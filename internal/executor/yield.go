package executor

// YieldFuture returns not-done exactly once, waking itself immediately
// so it re-enters the tail of the ready queue — a direct port of
// original_source/os/src/task/schedule.rs's YieldFuture, whose Poll
// calls cx.waker().wake_by_ref() the first time and returns Pending.
type YieldFuture struct {
	polled bool
}

func (y *YieldFuture) Poll(wake func()) bool {
	if y.polled {
		return true
	}
	y.polled = true
	wake()
	return false
}

// Yield polls a fresh YieldFuture once: it calls wake, so the caller's
// runnable is put back at the tail of the ready queue, and returns false
// (not done). It does not block; the caller returns from its own Poll
// and every other ready runnable gets a turn before it is polled again,
// keeping the scheduling point explicit the way the original's
// yield_task() is.
func Yield(wake func()) bool {
	f := &YieldFuture{}
	return f.Poll(wake)
}
