package trap

import (
	"testing"

	"arona/internal/config"
	"arona/internal/executor"
	"arona/internal/futex"
	"arona/internal/mm"
	"arona/internal/signal"
	sys "arona/internal/syscall"
	"arona/internal/task"
	"arona/internal/vfs"
)

// buildMinimalELF assembles a tiny valid ELF64 little-endian executable
// with one PT_LOAD segment, the same fixture internal/task's tests use,
// reproduced here since it is an unexported test helper local to that
// package.
func buildMinimalELF(vaddr, entry uint64, code []byte) []byte {
	const ehsize = 64
	const phsize = 56

	buf := make([]byte, ehsize+phsize+len(code))
	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = 2
	buf[5] = 1
	buf[6] = 1

	putU16 := func(off int, v uint16) {
		buf[off], buf[off+1] = byte(v), byte(v>>8)
	}
	putU32 := func(off int, v uint32) {
		for i := 0; i < 4; i++ {
			buf[off+i] = byte(v >> (8 * i))
		}
	}
	putU64 := func(off int, v uint64) {
		for i := 0; i < 8; i++ {
			buf[off+i] = byte(v >> (8 * i))
		}
	}

	putU16(16, 2)
	putU16(18, 243)
	putU32(20, 1)
	putU64(24, entry)
	putU64(32, ehsize)
	putU64(40, 0)
	putU32(48, 0)
	putU16(52, ehsize)
	putU16(54, phsize)
	putU16(56, 1)
	putU16(58, 0)
	putU16(60, 0)
	putU16(62, 0)

	putU32(ehsize+0, 1)
	putU32(ehsize+4, 7)
	putU64(ehsize+8, ehsize+phsize)
	putU64(ehsize+16, vaddr)
	putU64(ehsize+24, vaddr)
	putU64(ehsize+32, uint64(len(code)))
	putU64(ehsize+40, uint64(len(code)))
	putU64(ehsize+48, 0x1000)

	copy(buf[ehsize+phsize:], code)
	return buf
}

func newTestGate(t *testing.T, events ...ScriptedEvent) (*Gate, *task.Process, *task.Thread) {
	t.Helper()
	board := config.BoardConfig{Name: "test", MemoryEnd: 512 * mm.PageSize, HartCount: 1}
	ram := mm.NewRAM(board.MemoryEnd)
	alloc := mm.NewFrameAllocator(1, board.MemoryEnd/mm.PageSize, ram)
	kernelMS, err := mm.NewKernel(alloc, ram, mm.PageSize, board)
	if err != nil {
		t.Fatalf("NewKernel: %v", err)
	}
	image := buildMinimalELF(0x1000, 0x1000, []byte{0x13, 0x00, 0x00, 0x00})
	tty := vfs.NewMemFile(nil, true, true)
	p, th, err := task.NewInitProcess(alloc, ram, kernelMS, image, tty, []string{"init"}, []string{"PATH=/"})
	if err != nil {
		t.Fatalf("NewInitProcess: %v", err)
	}

	k := &sys.Kernel{
		Alloc:    alloc,
		RAM:      ram,
		Kernel:   kernelMS,
		InitProc: p,
		SHM:      mm.NewSharedMemoryTable(),
		Futex:    futex.New(),
	}

	src := NewScriptedSource(events...)
	gate := New(k, p, th, src)
	return gate, p, th
}

func TestGateStepExitsOnSysExitEcall(t *testing.T) {
	gate, _, th := newTestGate(t, ScriptedEvent{
		Cause: CauseUserEnvCall,
		Patch: func(ctx *task.TrapContext) {
			ctx.X[task.RegA7] = sys.SysExit
			ctx.X[task.RegA0] = 7
		},
	})

	result := gate.Step(func() {})
	if result != executor.StepExited {
		t.Fatalf("expected StepExited for sys_exit, got %v", result)
	}
	if !th.Process.IsExited() {
		t.Fatalf("expected the process marked exited")
	}
	if th.Process.ExitCode() != 7 {
		t.Fatalf("expected exit code 7, got %d", th.Process.ExitCode())
	}
}

func TestGateStepHandlesOrdinarySyscallAndBumpsSepc(t *testing.T) {
	gate, _, th := newTestGate(t, ScriptedEvent{
		Cause: CauseUserEnvCall,
		Patch: func(ctx *task.TrapContext) {
			ctx.Sepc = 0x1000
			ctx.X[task.RegA7] = sys.SysGetpid
		},
	})

	result := gate.Step(func() {})
	if result != executor.StepContinue {
		t.Fatalf("expected StepContinue for sys_getpid, got %v", result)
	}
	ctx := th.TrapContext()
	if ctx.Sepc != 0x1004 {
		t.Fatalf("expected sepc bumped by 4, got %#x", ctx.Sepc)
	}
	if ctx.X[task.RegA0] != uint64(th.Process.PID()) {
		t.Fatalf("expected a0 to hold the pid, got %d", ctx.X[task.RegA0])
	}
}

func TestGateStepResolvesLazyPageFault(t *testing.T) {
	gate, p, _ := newTestGate(t)

	// Install a lazy-allocation sentinel PTE (valid, PPN==0) the way a
	// just-reserved-but-untouched mmap region would leave one, the same
	// setup internal/mm's own lazy-fault test uses.
	area := mm.NewMapArea(mm.VirtAddr(0x9000), mm.VirtAddr(0xa000), mm.Framed, mm.PermR|mm.PermW|mm.PermU)
	p.MM.Areas = append(p.MM.Areas, area)
	vpn := mm.VirtPageNum(9)
	if err := p.MM.PageTable.Map(vpn, 0, mm.PteV|mm.PteR|mm.PteW|mm.PteU); err != nil {
		t.Fatalf("Map: %v", err)
	}
	gate.Source = NewScriptedSource(ScriptedEvent{
		Cause: CauseStorePageFault,
		Stval: uint64(vpn) * mm.PageSize,
	})

	result := gate.Step(func() {})
	if result != executor.StepContinue {
		t.Fatalf("expected a resolvable lazy fault to continue, got %v", result)
	}
	if p.IsExited() {
		t.Fatalf("expected the process to survive a resolvable fault")
	}
	pte, ok := p.MM.PageTable.Translate(vpn)
	if !ok || pte.PPN() == 0 {
		t.Fatalf("expected a real frame installed after lazy-fault resolution")
	}
}

func TestGateStepKillsOnUnresolvablePageFault(t *testing.T) {
	gate, p, _ := newTestGate(t, ScriptedEvent{
		Cause: CauseLoadPageFault,
		Stval: 0x7fff_0000_0000,
	})

	result := gate.Step(func() {})
	if result != executor.StepExited {
		t.Fatalf("expected StepExited for an unresolvable fault, got %v", result)
	}
	if p.ExitCode() != -2 {
		t.Fatalf("expected exit code -2 for a fatal page fault, got %d", p.ExitCode())
	}
}

func TestGateStepKillsOnIllegalInstruction(t *testing.T) {
	gate, p, _ := newTestGate(t, ScriptedEvent{Cause: CauseIllegalInstruction})

	result := gate.Step(func() {})
	if result != executor.StepExited {
		t.Fatalf("expected StepExited for an illegal instruction, got %v", result)
	}
	if p.ExitCode() != -3 {
		t.Fatalf("expected exit code -3, got %d", p.ExitCode())
	}
}

func TestGateStepSupervisorTimerContinuesWithoutKilling(t *testing.T) {
	gate, p, _ := newTestGate(t, ScriptedEvent{Cause: CauseSupervisorTimer})

	result := gate.Step(func() {})
	if result != executor.StepContinue {
		t.Fatalf("expected StepContinue after a timer trap, got %v", result)
	}
	if p.IsExited() {
		t.Fatalf("expected the process to survive a timer trap")
	}
}

func TestGateStepReturnsExitedForAlreadyZombieThread(t *testing.T) {
	gate, p, th := newTestGate(t)
	task.Exit(p, th, p, 0)

	result := gate.Step(func() {})
	if result != executor.StepExited {
		t.Fatalf("expected StepExited for an already-zombie thread, got %v", result)
	}
}

func TestDeliverSignalsSplicesHandlerOntoTrapContext(t *testing.T) {
	gate, p, th := newTestGate(t)
	const handlerAddr = 0x3000
	p.Signals.Set(10, signal.Action{Handler: handlerAddr})
	th.RaiseSignal(10)

	gate.deliverSignals()

	ctx := th.TrapContext()
	if ctx.Sepc != handlerAddr {
		t.Fatalf("expected sepc spliced to the handler address, got %#x", ctx.Sepc)
	}
	if ctx.X[task.RegA0] != 10 {
		t.Fatalf("expected a0 to carry the signal number, got %d", ctx.X[task.RegA0])
	}
	if ctx.X[task.RegRA] != mm.Trampoline {
		t.Fatalf("expected ra pointed at the trampoline, got %#x", ctx.X[task.RegRA])
	}
	if th.HandlingSigno() != 10 {
		t.Fatalf("expected HandlingSigno=10 while inside the handler, got %d", th.HandlingSigno())
	}
}

func TestDeliverSignalsAppliesDefaultTerminateAction(t *testing.T) {
	gate, p, th := newTestGate(t)
	th.RaiseSignal(9) // SIGKILL: no catchable handler, default terminates

	gate.deliverSignals()

	if !p.IsExited() {
		t.Fatalf("expected SIGKILL's default action to terminate the process")
	}
	if p.ExitCode() != -9 {
		t.Fatalf("expected exit code -9, got %d", p.ExitCode())
	}
}

func TestDeliverSignalsIgnoresMaskedSignal(t *testing.T) {
	gate, p, th := newTestGate(t)
	th.RaiseSignal(10)
	th.SetSigMask(uint64(1) << (10 - 1))

	gate.deliverSignals()

	if p.IsExited() {
		t.Fatalf("expected a masked signal to be deferred, not acted on")
	}
	if th.PendingMask()&(uint64(1)<<(10-1)) == 0 {
		t.Fatalf("expected the masked signal to remain pending")
	}
}
