package signal

import "testing"

func TestSelectPendingPicksLowestUnblocked(t *testing.T) {
	pending := Bit(SIGTERM) | Bit(SIGUSR1) | Bit(SIGINT)
	mask := Bit(SIGINT)

	got := SelectPending(pending, mask)
	if got != SIGUSR1 {
		t.Fatalf("expected the lowest unblocked signal (SIGUSR1=%d), got %d", SIGUSR1, got)
	}
}

func TestSelectPendingAllMaskedReturnsZero(t *testing.T) {
	pending := Bit(SIGTERM)
	mask := Bit(SIGTERM)
	if got := SelectPending(pending, mask); got != 0 {
		t.Fatalf("expected 0 when every pending signal is masked, got %d", got)
	}
}

func TestCatchableRejectsKillAndStop(t *testing.T) {
	cases := []struct {
		signo int
		want  bool
	}{
		{SIGKILL, false},
		{SIGSTOP, false},
		{0, false},
		{SigNum + 1, false},
		{SIGTERM, true},
		{SIGUSR1, true},
	}
	for _, c := range cases {
		if got := Catchable(c.signo); got != c.want {
			t.Fatalf("Catchable(%d) = %v, want %v", c.signo, got, c.want)
		}
	}
}

func TestDefaultActionMatchesOriginalTable(t *testing.T) {
	cases := []struct {
		signo int
		want  DefaultKind
	}{
		{SIGSEGV, DefaultCore},
		{SIGILL, DefaultCore},
		{SIGCHLD, DefaultIgnore},
		{SIGURG, DefaultIgnore},
		{SIGCONT, DefaultCont},
		{SIGSTOP, DefaultStop},
		{SIGTSTP, DefaultStop},
		{SIGTERM, DefaultTerminate},
		{SIGUSR1, DefaultTerminate},
	}
	for _, c := range cases {
		if got := DefaultAction(c.signo); got != c.want {
			t.Fatalf("DefaultAction(%d) = %v, want %v", c.signo, got, c.want)
		}
	}
}

func TestResolveNoneWhenNothingPending(t *testing.T) {
	tbl := NewTable()
	d := Resolve(tbl, 0, 0, 0)
	if d.Kind != DecisionNone {
		t.Fatalf("expected DecisionNone, got %v", d.Kind)
	}
}

func TestResolveDefaultWhenUnset(t *testing.T) {
	tbl := NewTable()
	d := Resolve(tbl, Bit(SIGSEGV), 0, 0)
	if d.Kind != DecisionApplyDefault || d.Signo != SIGSEGV || d.Default != DefaultCore {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestResolveIgnoreWhenSigIgn(t *testing.T) {
	tbl := NewTable()
	tbl.Set(SIGTERM, Action{Handler: SigIgn})
	d := Resolve(tbl, Bit(SIGTERM), 0, 0)
	if d.Kind != DecisionIgnore || d.Signo != SIGTERM {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestResolveHandleWhenHandlerRegistered(t *testing.T) {
	tbl := NewTable()
	tbl.Set(SIGUSR1, Action{Handler: 0x1000, Mask: Bit(SIGUSR2)})
	d := Resolve(tbl, Bit(SIGUSR1), 0, 0)
	if d.Kind != DecisionHandle || d.Handler != 0x1000 {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestResolveDeferredWhenHandlerMasksItself(t *testing.T) {
	tbl := NewTable()
	tbl.Set(SIGUSR1, Action{Handler: 0x1000, Mask: Bit(SIGUSR1)})
	// A SIGUSR1 handler is currently running, and its own sa_mask lists
	// SIGUSR1 (non-SA_NODEFER style), so a second SIGUSR1 must wait.
	d := Resolve(tbl, Bit(SIGUSR1), 0, SIGUSR1)
	if d.Kind != DecisionDeferred || d.Signo != SIGUSR1 {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestResolveHandleWhenHandlerRunningButNotSelfMasked(t *testing.T) {
	tbl := NewTable()
	tbl.Set(SIGUSR1, Action{Handler: 0x1000})
	tbl.Set(SIGUSR2, Action{Handler: 0x2000})
	d := Resolve(tbl, Bit(SIGUSR2), 0, SIGUSR1)
	if d.Kind != DecisionHandle || d.Signo != SIGUSR2 {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestTableCloneIsIndependent(t *testing.T) {
	tbl := NewTable()
	tbl.Set(SIGTERM, Action{Handler: 0x1000})

	clone := tbl.Clone()
	clone.Set(SIGTERM, Action{Handler: 0x2000})

	if got := tbl.Get(SIGTERM).Handler; got != 0x1000 {
		t.Fatalf("expected original table unaffected by clone's mutation, got handler %#x", got)
	}
}

func TestTableResetCaughtKeepsOnlyIgnoreEntries(t *testing.T) {
	tbl := NewTable()
	tbl.Set(SIGTERM, Action{Handler: 0x1000})
	tbl.Set(SIGUSR1, Action{Handler: SigIgn})

	reset := tbl.ResetCaught()
	if got := reset.Get(SIGTERM).Handler; got != SigDFL {
		t.Fatalf("expected a caught handler to reset to SIG_DFL, got %#x", got)
	}
	if got := reset.Get(SIGUSR1).Handler; got != SigIgn {
		t.Fatalf("expected SIG_IGN to survive exec(), got %#x", got)
	}
}

func TestApplyProcMask(t *testing.T) {
	old := Bit(SIGTERM)
	set := Bit(SIGINT)

	if got, ok := ApplyProcMask(SigBlock, old, set); !ok || got != old|set {
		t.Fatalf("SIG_BLOCK: got %#x ok=%v, want %#x", got, ok, old|set)
	}
	if got, ok := ApplyProcMask(SigUnblock, old, old); !ok || got != 0 {
		t.Fatalf("SIG_UNBLOCK: got %#x ok=%v, want 0", got, ok)
	}
	if got, ok := ApplyProcMask(SigSetMask, old, set); !ok || got != set {
		t.Fatalf("SIG_SETMASK: got %#x ok=%v, want %#x", got, ok, set)
	}
	if _, ok := ApplyProcMask(99, old, set); ok {
		t.Fatalf("expected an unknown how value to report ok=false")
	}
}
