package mm

// PTE flag bits, matching internal/hv/riscv/rv64/mmu.go's PteV/PteR/...
// layout exactly (bits 0-7 are the hardware Sv39 flags); bit 8 is the one
// software COW bit this kernel needs (spec.md section 3: "a software COW
// bit in one of the reserved positions"). Sv39 reserves bits 8-9 for
// supervisor use, so this never collides with a hardware-defined bit.
type PTEFlags uint16

const (
	PteV PTEFlags = 1 << 0
	PteR PTEFlags = 1 << 1
	PteW PTEFlags = 1 << 2
	PteX PTEFlags = 1 << 3
	PteU PTEFlags = 1 << 4
	PteG PTEFlags = 1 << 5
	PteA PTEFlags = 1 << 6
	PteD PTEFlags = 1 << 7
	PteCOW PTEFlags = 1 << 8
)

// PTE is a 64-bit Sv39 page table entry: bits 10-53 carry the PPN, bits
// 0-9 carry flags (spec.md section 3).
type PTE struct {
	Bits uint64
}

func NewPTE(ppn PhysPageNum, flags PTEFlags) PTE {
	return PTE{Bits: uint64(ppn)<<10 | uint64(flags)}
}

func (p PTE) PPN() PhysPageNum { return PhysPageNum((p.Bits >> 10) & ((1 << PPNWidth) - 1)) }
func (p PTE) Flags() PTEFlags  { return PTEFlags(p.Bits & 0x3ff) }
func (p PTE) IsValid() bool    { return p.Flags()&PteV != 0 }
func (p PTE) Readable() bool   { return p.Flags()&PteR != 0 }
func (p PTE) Writable() bool   { return p.Flags()&PteW != 0 }
func (p PTE) Executable() bool { return p.Flags()&PteX != 0 }
func (p PTE) IsUser() bool     { return p.Flags()&PteU != 0 }
func (p PTE) IsCOW() bool      { return p.Flags()&PteCOW != 0 }

func (p *PTE) SetFlags(flags PTEFlags) { p.Bits = uint64(p.PPN())<<10 | uint64(flags) }
func (p *PTE) ClearFlag(f PTEFlags)    { p.SetFlags(p.Flags() &^ f) }
func (p *PTE) SetFlag(f PTEFlags)      { p.SetFlags(p.Flags() | f) }
func (p *PTE) SetPPN(ppn PhysPageNum)  { p.Bits = uint64(ppn)<<10 | uint64(p.Flags()) }
