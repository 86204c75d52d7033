package executor

import "testing"

func TestExecutorRunsToCompletionFIFO(t *testing.T) {
	ex := New()
	var order []int

	for i := 0; i < 3; i++ {
		i := i
		ex.Spawn(FutureFunc(func(wake func()) bool {
			order = append(order, i)
			return true
		}))
	}

	ex.Run(func() bool { return false })
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("expected FIFO completion order [0 1 2], got %v", order)
	}
	if ex.Len() != 0 {
		t.Fatalf("expected an empty queue after Run, got %d", ex.Len())
	}
}

func TestExecutorRequeuesUndoneFutures(t *testing.T) {
	ex := New()
	polls := 0

	ex.Spawn(FutureFunc(func(wake func()) bool {
		polls++
		if polls < 3 {
			wake()
			return false
		}
		return true
	}))

	ex.Run(func() bool { return false })
	if polls != 3 {
		t.Fatalf("expected 3 polls before completion, got %d", polls)
	}
}

func TestExecutorIdleCalledWhenQueueEmpty(t *testing.T) {
	ex := New()
	idleCalls := 0
	woken := false

	ex.Spawn(FutureFunc(func(wake func()) bool {
		if !woken {
			woken = true
			// Park without scheduling a wake; the queue empties, so
			// idle() must be asked whether to keep waiting. Its first
			// call enqueues a separate, already-done runnable and its
			// second ends the run; the parked future is not polled again.
			return false
		}
		return true
	}))

	ex.Run(func() bool {
		idleCalls++
		if idleCalls == 1 {
			ex.enqueue(&Runnable{fut: FutureFunc(func(wake func()) bool { return true }), ex: ex})
			return true
		}
		return false
	})

	if idleCalls == 0 {
		t.Fatalf("expected idle to be consulted at least once")
	}
}

func TestYieldFuturePollsFalseThenTrue(t *testing.T) {
	y := &YieldFuture{}
	woke := false
	if y.Poll(func() { woke = true }) {
		t.Fatalf("expected the first Poll to return false")
	}
	if !woke {
		t.Fatalf("expected the first Poll to self-wake")
	}
	if !y.Poll(func() {}) {
		t.Fatalf("expected the second Poll to return true")
	}
}

func TestWaitChildFutureRepollsUntilDone(t *testing.T) {
	attempts := 0
	f := NewWaitChildFuture(func() bool {
		attempts++
		return attempts >= 3
	})
	woke := 0
	for !f.Poll(func() { woke++ }) {
	}
	if attempts != 3 {
		t.Fatalf("expected 3 check attempts, got %d", attempts)
	}
	if woke != 2 {
		t.Fatalf("expected 2 self-wakes before completion, got %d", woke)
	}
}

func TestTimeoutFutureFiresAtDeadline(t *testing.T) {
	now := uint64(0)
	f := NewTimeoutFuture(10, func() uint64 { return now })

	if f.Poll(func() {}) {
		t.Fatalf("expected not-done before the deadline")
	}
	now = 10
	if !f.Poll(func() {}) {
		t.Fatalf("expected done once now() reaches the deadline")
	}
}

func TestUserTaskFutureMapsStepResults(t *testing.T) {
	results := []StepResult{StepContinue, StepBlocked, StepExited}
	i := 0
	u := NewUserTaskFuture(func(wake func()) StepResult {
		r := results[i]
		i++
		return r
	})

	woke := false
	if u.Poll(func() { woke = true }) {
		t.Fatalf("expected StepContinue to report not-done")
	}
	if !woke {
		t.Fatalf("expected StepContinue to self-wake")
	}

	woke = false
	if u.Poll(func() { woke = true }) {
		t.Fatalf("expected StepBlocked to report not-done")
	}
	if woke {
		t.Fatalf("expected StepBlocked not to self-wake")
	}

	if !u.Poll(func() {}) {
		t.Fatalf("expected StepExited to report done")
	}
}
