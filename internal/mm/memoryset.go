package mm

import (
	"bytes"
	"debug/elf"
	"fmt"

	"arona/internal/config"
)

// MemorySet is a process address space: a page table plus its map areas,
// an optional heap area, and a monotonic mmap cursor (spec.md section 3).
type MemorySet struct {
	PageTable *PageTable
	Areas     []*MapArea
	Heap      *MapArea

	HeapStart  uint64
	MmapCursor uint64

	alloc *FrameAllocator
	ram   RAM
}

// NewEmpty builds an address space with no user mappings.
func NewEmpty(alloc *FrameAllocator, ram RAM) (*MemorySet, error) {
	pt, err := New(alloc, ram)
	if err != nil {
		return nil, err
	}
	return &MemorySet{PageTable: pt, alloc: alloc, ram: ram, MmapCursor: MmapMinAddr}, nil
}

// NewKernel builds the kernel's own address space: an identity-style
// linear map of RAM (ekernel..board.MemoryEnd) plus the board's MMIO
// ranges, all offset by +KernelBase (spec.md section 3, "kernel"
// constructor).
func NewKernel(alloc *FrameAllocator, ram RAM, ekernelPA uint64, board config.BoardConfig) (*MemorySet, error) {
	ms, err := NewEmpty(alloc, ram)
	if err != nil {
		return nil, err
	}
	if err := ms.pushLinear(ekernelPA, board.MemoryEnd, PermR|PermW); err != nil {
		return nil, fmt.Errorf("mm: kernel RAM map: %w", err)
	}
	for _, mmio := range board.MMIO {
		if err := ms.pushLinear(mmio.Start, mmio.Start+mmio.Len, PermR|PermW); err != nil {
			return nil, fmt.Errorf("mm: kernel mmio %s: %w", mmio.Name, err)
		}
	}
	return ms, nil
}

func (ms *MemorySet) pushLinear(startPA, endPA uint64, perm MapPermission) error {
	area := NewMapAreaVPN(
		VirtPageNum(startPA/PageSize+LinearShift),
		VirtPageNum((endPA+PageSize-1)/PageSize+LinearShift),
		Linear, perm)
	return ms.Push(area, nil, 0)
}

// FromGlobal builds a per-process address space whose upper half shares
// the kernel's mappings, per spec.md section 3.
func FromGlobal(alloc *FrameAllocator, ram RAM, kernel *MemorySet) (*MemorySet, error) {
	pt, err := newPageTableFromGlobal(alloc, ram, kernel.PageTable.Root())
	if err != nil {
		return nil, err
	}
	return &MemorySet{PageTable: pt, alloc: alloc, ram: ram, MmapCursor: MmapMinAddr}, nil
}

// Push maps every page of area, then (if data is non-nil) copies data
// into it starting at mapOffset, per spec.md 4.3.
func (ms *MemorySet) Push(area *MapArea, data []byte, mapOffset int) error {
	if err := area.Map(ms.PageTable); err != nil {
		return err
	}
	if data != nil {
		area.CopyData(ms.ram, data, mapOffset)
	}
	ms.Areas = append(ms.Areas, area)
	return nil
}

// AT_* auxv tags, per spec.md 4.3.
const (
	atPhdr     = 3
	atPhent    = 4
	atPhnum    = 5
	atPagesz   = 6
	atBase     = 7
	atFlags    = 8
	atEntry    = 9
	atUID      = 11
	atEUID     = 12
	atGID      = 13
	atEGID     = 14
	atPlatform = 15
	atHwcap    = 16
	atClktck   = 17
	atSecure   = 23
	atRandom   = 25
	atExecfn   = 31
	atNull     = 0
)

type AuxEntry struct {
	Tag uint64
	Val uint64
}

// FromELF parses program headers, maps each PT_LOAD as a Framed area,
// appends a guard page, a user stack, and a zero-sized heap, and builds
// the aux vector. spec.md 4.3; ELF parsing itself is explicitly out of
// scope (spec.md section 1 treats "ELF parser" as an external library),
// so this uses the standard library's debug/elf the way the teacher's own
// (unused) ELF-introspection code path did (internal/hv/riscv/ccvm/vm.go).
func FromELF(alloc *FrameAllocator, ram RAM, kernel *MemorySet, data []byte) (ms *MemorySet, userSP uint64, entry uint64, aux []AuxEntry, err error) {
	if len(data) < 4 || !bytes.Equal(data[:4], []byte("\x7fELF")) {
		return nil, 0, 0, nil, fmt.Errorf("mm: not an ELF image")
	}
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, nil, fmt.Errorf("mm: parse elf: %w", err)
	}

	ms, err = FromGlobal(alloc, ram, kernel)
	if err != nil {
		return nil, 0, 0, nil, err
	}

	var maxEnd VirtPageNum
	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}
		startVA := VirtAddr(phdr.Vaddr)
		endVA := VirtAddr(phdr.Vaddr + phdr.Memsz)

		perm := PermU
		if phdr.Flags&elf.PF_R != 0 {
			perm |= PermR
		}
		if phdr.Flags&elf.PF_W != 0 {
			perm |= PermW
		}
		if phdr.Flags&elf.PF_X != 0 {
			perm |= PermX
		}

		area := NewMapArea(startVA, endVA, Framed, perm)
		segData := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			if _, err := phdr.ReadAt(segData, 0); err != nil {
				return nil, 0, 0, nil, fmt.Errorf("mm: read segment: %w", err)
			}
		}
		if err := ms.Push(area, segData, int(startVA.PageOffset())); err != nil {
			return nil, 0, 0, nil, err
		}
		if area.End > maxEnd {
			maxEnd = area.End
		}
	}

	guardBottom := maxEnd + GuardPageCount
	stackTop := guardBottom + UserStackSize/PageSize
	stackArea := NewMapAreaVPN(guardBottom, stackTop, Framed, PermR|PermW|PermU)
	if err := ms.Push(stackArea, nil, 0); err != nil {
		return nil, 0, 0, nil, err
	}
	userSP = uint64(stackTop.Addr())

	heapArea := NewMapAreaVPN(stackTop, stackTop, Framed, PermR|PermW|PermU)
	ms.Heap = heapArea
	ms.HeapStart = uint64(stackTop.Addr())
	ms.Areas = append(ms.Areas, heapArea)

	entry = f.Entry
	aux = []AuxEntry{
		{atPhent, 56},
		{atPhnum, uint64(len(f.Progs))},
		{atPagesz, PageSize},
		{atBase, 0},
		{atFlags, 0},
		{atEntry, entry},
		{atUID, 0},
		{atEUID, 0},
		{atGID, 0},
		{atEGID, 0},
		{atPlatform, 0},
		{atHwcap, 0},
		{atClktck, 100},
		{atSecure, 0},
		{atPhdr, findPhdrVA(f)},
		{atRandom, 0},
		{atExecfn, 0},
		{atNull, 0},
	}
	return ms, userSP, entry, aux, nil
}

func findPhdrVA(f *elf.File) uint64 {
	for _, phdr := range f.Progs {
		if phdr.Type == elf.PT_PHDR {
			return phdr.Vaddr
		}
	}
	return 0
}

// FromExistingUser clones every Framed area via copy-on-write: both
// source and destination PTEs lose W and gain COW, and the frame's
// refcount goes up (spec.md 4.3, "Fork (copy-on-write)").
func FromExistingUser(alloc *FrameAllocator, ram RAM, kernel, parent *MemorySet) (*MemorySet, error) {
	child, err := FromGlobal(alloc, ram, kernel)
	if err != nil {
		return nil, err
	}
	for _, srcArea := range parent.Areas {
		if srcArea.Type != Framed {
			continue
		}
		dstArea := NewMapAreaVPN(srcArea.Start, srcArea.End, Framed, srcArea.Perm)
		for vpn, srcFrame := range srcArea.DataFrames {
			srcPage, srcIdx, ok := parent.PageTable.FindPTE(vpn)
			if !ok {
				continue
			}
			srcPTE := parent.PageTable.GetPTE(srcPage, srcIdx)
			newFlags := (srcPTE.Flags() &^ PteW) | PteCOW
			parent.PageTable.SetPTE(srcPage, srcIdx, NewPTE(srcFrame.PPN, newFlags))

			shared := srcFrame.Clone()
			dstArea.DataFrames[vpn] = shared
			if err := child.PageTable.Map(vpn, shared.PPN, newFlags); err != nil {
				return nil, err
			}
		}
		child.Areas = append(child.Areas, dstArea)
		if srcArea == parent.Heap {
			child.Heap = dstArea
		}
	}
	child.HeapStart = parent.HeapStart
	child.MmapCursor = parent.MmapCursor
	return child, nil
}

// Token forms this address space's SATP value.
func (ms *MemorySet) Token() uint64 { return ms.PageTable.Token() }

// Activate writes satp and flushes the TLB (spec.md 4.3). In this
// host-process model there is no real CSR or TLB; Activate records which
// address space is "current" for RAM-backed helpers that need it.
func (ms *MemorySet) Activate(cpu *ActiveState) {
	cpu.Satp = ms.Token()
	cpu.SfenceVMA()
}

// ActiveState stands in for the hart's satp CSR and TLB in this
// host-process kernel model.
type ActiveState struct {
	Satp uint64
}

func (s *ActiveState) SfenceVMA() {}

func (ms *MemorySet) findArea(vpn VirtPageNum) *MapArea {
	if ms.Heap != nil && ms.Heap.Contains(vpn) {
		return ms.Heap
	}
	for _, a := range ms.Areas {
		if a.Contains(vpn) {
			return a
		}
	}
	return nil
}

// Recycle unmaps and releases every Framed area's frames, preserving the
// page table itself so the kernel half remains addressable (spec.md
// 4.7's exit()).
func (ms *MemorySet) Recycle() {
	for _, a := range ms.Areas {
		if a.Type == Framed {
			a.Unmap(ms.PageTable)
		}
	}
	ms.Areas = nil
	ms.Heap = nil
}
