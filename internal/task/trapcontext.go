// Package task implements the process/thread subsystem of spec.md
// section 4.7: Process as shared-resource owner, Thread as the
// schedulable unit, pid/tid allocation with recycling, and the
// fork/exec/clone/wait4/exit lifecycle operations.
//
// Grounded on original_source/os/src/task/task.rs (Process/Thread split),
// os/src/task/pid.rs (recycling id allocator), and os/src/trap/context.rs
// (TrapContext layout), in the teacher's struct-with-explicit-field style
// (internal/hv/riscv/rv64/machine.go's CPU/Machine split of register file
// vs. surrounding bookkeeping).
package task

// TrapContext is the saved processor state at a user/kernel trap
// boundary, sufficient to return to user (spec.md sections 3 and 6).
type TrapContext struct {
	X [32]uint64 // general-purpose registers x0..x31

	Sstatus uint64
	Sepc    uint64

	KernelSP   uint64
	KernelRA   uint64
	KernelS    [12]uint64 // callee-saved s0..s11
	KernelFP   uint64
	KernelSATP uint64
}

// Register indices into X, named for readability at syscall-arg sites.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegGP   = 3
	RegTP   = 4
	RegA0   = 10
	RegA1   = 11
	RegA2   = 12
	RegA3   = 13
	RegA4   = 14
	RegA5   = 15
	RegA6   = 16
	RegA7   = 17
)

// AppInitContext builds the Trap Context for a freshly exec'd program:
// sepc=entry, sp=userSP, kernel_satp recorded so a trap back into the
// kernel can restore the kernel's own address space (spec.md 4.7's exec
// step 4).
func AppInitContext(entry, userSP, kernelSATP uint64) TrapContext {
	var ctx TrapContext
	ctx.Sepc = entry
	ctx.X[RegSP] = userSP
	ctx.KernelSATP = kernelSATP
	// sstatus.SPP=0 (return to U-mode), SPIE=1 (re-enable interrupts on
	// sret) — the two bits spec.md's trap path actually depends on.
	ctx.Sstatus = 1 << 5
	return ctx
}

// Clone returns a copy of the context, used by fork/clone to build the
// child's initial saved state from the parent's current one.
func (c TrapContext) Clone() TrapContext { return c }
