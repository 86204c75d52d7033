// Command arona boots the kernel core: it wires every singleton spec.md
// section 9 lists (frame allocator, kernel memory set, executor queue,
// timer, filesystem, process table) and runs the init process to
// completion.
//
// Grounded on the teacher's cmd/<tool>/main.go layout (flags via stdlib
// flag, a single structured-log setup before any real work starts); the
// boot order itself follows spec.md section 9 literally: clear BSS is
// Go's zero-initialized globals, the kernel heap is Go's own GC heap, so
// the sequence implemented here starts at "frame allocator" and runs
// through "add init task; executor run".
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"arona/internal/config"
	"arona/internal/executor"
	"arona/internal/futex"
	"arona/internal/klog"
	"arona/internal/mm"
	sys "arona/internal/syscall"
	"arona/internal/task"
	"arona/internal/timer"
	"arona/internal/trap"
	"arona/internal/vfs"
)

func main() {
	var (
		boardPath = flag.String("board", "", "path to a board-config YAML file (defaults to the QEMU virt map)")
		initPath  = flag.String("init", "", "path to the ELF image to run as pid 1")
		verbose   = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		klog.SetLevel(slog.LevelDebug)
	}

	if *initPath == "" {
		fmt.Fprintln(os.Stderr, "arona: -init <elf-path> is required")
		os.Exit(1)
	}

	if err := boot(*boardPath, *initPath); err != nil {
		klog.L().Error("boot failed", "err", err)
		os.Exit(1)
	}
}

// boot implements spec.md section 9's sequence: frame allocator, kernel
// memory set (+ activate), executor queue, timer, filesystem, init task,
// executor run. The trap gate it builds runs user code through a
// trap.ScriptedSource with no events instead of real hardware.
func boot(boardPath, initPath string) error {
	board, err := config.Load(boardPath)
	if err != nil {
		return fmt.Errorf("arona: board config: %w", err)
	}
	klog.L().Info("board config loaded", "name", board.Name, "memory_end", board.MemoryEnd)

	elfImage, err := os.ReadFile(initPath)
	if err != nil {
		return fmt.Errorf("arona: read init image: %w", err)
	}

	// ekernel: the first physical page the frame allocator may hand
	// out. In this host-process model there is no linker-provided
	// ekernel symbol, so the allocator simply starts at page 1 of a
	// flat byte slice sized to the board's MemoryEnd (page 0 reserved
	// so PPN 0 can keep meaning "no frame", spec.md 4.4's lazy-alloc
	// sentinel).
	ram := mm.NewRAM(board.MemoryEnd)
	alloc := mm.NewFrameAllocator(1, board.MemoryEnd/mm.PageSize, ram)

	kernelMS, err := mm.NewKernel(alloc, ram, mm.PageSize, board)
	if err != nil {
		return fmt.Errorf("arona: kernel memory set: %w", err)
	}
	active := &mm.ActiveState{}
	kernelMS.Activate(active) // spec.md 4.3's Activate: write satp, sfence.vma

	ex := executor.New()
	timer.SetNextTrigger()

	shm := mm.NewSharedMemoryTable()
	futexTable := futex.New()

	tty := &vfs.TTYFile{In: os.Stdin, Out: os.Stdout}
	argv := []string{initPath}
	process, thread, err := task.NewInitProcess(alloc, ram, kernelMS, elfImage, tty, argv, nil)
	if err != nil {
		return fmt.Errorf("arona: init process: %w", err)
	}

	k := &sys.Kernel{
		Alloc:    alloc,
		RAM:      ram,
		Kernel:   kernelMS,
		InitProc: process,
		SHM:      shm,
		Futex:    futexTable,
	}
	k.Spawn = func(p *task.Process, t *task.Thread) { spawnThread(ex, k, p, t) }

	klog.L().Info("init process loaded", "pid", process.PID(), "entry_argv", argv)
	spawnThread(ex, k, process, thread)

	ex.Run(func() bool {
		// Idle: nothing runnable right now. In a real kernel this is
		// wfi waiting for the next interrupt; here it's "is the init
		// process still alive", since every other source of future
		// work (timers, futex wakes) is driven by threads this
		// process itself already spawned.
		return !process.IsExited()
	})

	klog.L().Info("init process exited", "code", process.ExitCode())
	return nil
}

// spawnThread wraps a freshly created thread in a trap.Gate and hands it
// to the executor as a UserTaskFuture, the spec.md 4.5 "every user
// thread is driven by a UserTaskFuture" wiring. The actual hart backing
// each gate is left to whatever Source the board integration supplies;
// this reference boot wires trap.NewScriptedSource with no events so a
// freshly exec'd thread that never receives a real hart immediately
// reports a clean sys_exit(0) instead of hanging the executor — real
// deployments replace this with a Source bound to actual RISC-V
// execution (spec.md section 1 treats that hart boundary the same way
// it treats console SBI glue: an external collaborator reached only
// through its interface).
func spawnThread(ex *executor.Executor, k *sys.Kernel, process *task.Process, thread *task.Thread) {
	gate := trap.New(k, process, thread, trap.NewScriptedSource())
	ex.Spawn(executor.NewUserTaskFuture(gate.Step))
}
