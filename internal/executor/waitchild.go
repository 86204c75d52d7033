package executor

// WaitChild is the polling predicate wait4 hands to a WaitChildFuture:
// it attempts one reap and reports whether a result is ready yet.
// Defined in terms of a closure (rather than importing internal/task
// directly) so this package stays a leaf the task package can sit
// above without a cycle.
type WaitChild func() (done bool)

// WaitChildFuture repolls WaitChild every cycle until a zombie child
// is reaped or ECHILD is determined, the cooperative-blocking
// counterpart to spec.md 4.7's wait4. Grounded on the same polling
// shape as TimeoutFuture: no waker list for "a child exited" exists in
// this model, so progress is rechecked every slice instead.
type WaitChildFuture struct {
	check WaitChild
}

func NewWaitChildFuture(check WaitChild) *WaitChildFuture {
	return &WaitChildFuture{check: check}
}

func (w *WaitChildFuture) Poll(wake func()) bool {
	if w.check() {
		return true
	}
	wake()
	return false
}
