package mm

import (
	"encoding/binary"
	"fmt"
)

const ptesPerPage = PageSize / 8 // 512 64-bit entries

// PageTable owns the root frame and the frames backing intermediate
// levels of an Sv39 three-level radix tree (spec.md section 3/4.2).
type PageTable struct {
	root   PhysPageNum
	frames []*FrameHandle // owns root + every intermediate-level frame
	alloc  *FrameAllocator
	ram    RAM
}

func ptAt(ram RAM, ppn PhysPageNum, index uint64) PTE {
	page := ram.Page(ppn)
	return PTE{Bits: binary.LittleEndian.Uint64(page[index*8:])}
}

func ptSet(ram RAM, ppn PhysPageNum, index uint64, pte PTE) {
	page := ram.Page(ppn)
	binary.LittleEndian.PutUint64(page[index*8:], pte.Bits)
}

// New allocates a root frame for a fresh, empty page table.
func New(alloc *FrameAllocator, ram RAM) (*PageTable, error) {
	frame, ok := alloc.Alloc()
	if !ok {
		return nil, fmt.Errorf("mm: page table root: %w", ErrNoFrames)
	}
	return &PageTable{root: frame.PPN, frames: []*FrameHandle{frame}, alloc: alloc, ram: ram}, nil
}

// newPageTableFromGlobal allocates a root frame and deep-copies the
// kernel's top-level PTEs into it (recursing into every valid level-2 and
// level-3 table), so the new address space shares every kernel mapping
// but owns its own user half. Grounded on os/src/mm/page_table.rs's
// PageTable::from_global and internal/hv/riscv/rv64/mmu.go's walk,
// adapted to own (not merely read) every copied intermediate frame.
func newPageTableFromGlobal(alloc *FrameAllocator, ram RAM, kernelRoot PhysPageNum) (*PageTable, error) {
	pt, err := New(alloc, ram)
	if err != nil {
		return nil, err
	}
	for i1 := uint64(0); i1 < ptesPerPage; i1++ {
		srcL1 := ptAt(ram, kernelRoot, i1)
		if !srcL1.IsValid() {
			continue
		}
		dstL2Frame, ok := alloc.Alloc()
		if !ok {
			return nil, fmt.Errorf("mm: from_global level-2: %w", ErrNoFrames)
		}
		pt.frames = append(pt.frames, dstL2Frame)
		ptSet(ram, pt.root, i1, NewPTE(dstL2Frame.PPN, srcL1.Flags()))

		for i2 := uint64(0); i2 < ptesPerPage; i2++ {
			srcL2 := ptAt(ram, srcL1.PPN(), i2)
			if !srcL2.IsValid() {
				continue
			}
			dstL3Frame, ok := alloc.Alloc()
			if !ok {
				return nil, fmt.Errorf("mm: from_global level-3: %w", ErrNoFrames)
			}
			pt.frames = append(pt.frames, dstL3Frame)
			ptSet(ram, dstL2Frame.PPN, i2, NewPTE(dstL3Frame.PPN, srcL2.Flags()))

			for i3 := uint64(0); i3 < ptesPerPage; i3++ {
				entry := ptAt(ram, srcL2.PPN(), i3)
				ptSet(ram, dstL3Frame.PPN, i3, entry)
			}
		}
	}
	return pt, nil
}

// FromToken borrows a read-only view of an already-owned root without
// taking ownership of any frame, used by translation helpers that only
// need to walk an existing SATP value (spec.md 4.2).
func FromToken(ram RAM, satp uint64) *PageTable {
	root := PhysPageNum(satp & ((1 << PPNWidth) - 1))
	return &PageTable{root: root, ram: ram}
}

func (pt *PageTable) Root() PhysPageNum { return pt.root }

// Token forms the SATP value: mode=8 (Sv39) in the high 4 bits, root PPN
// in the low 44 bits.
func (pt *PageTable) Token() uint64 {
	return uint64(SatpModeSv39)<<60 | uint64(pt.root)
}

// findPTECreate descends the walk, allocating intermediate tables as
// needed, and returns the leaf entry's location.
func (pt *PageTable) findPTECreate(vpn VirtPageNum) (PhysPageNum, uint64, error) {
	idx := vpn.Indexes()
	ppn := pt.root
	for i := 0; i < 2; i++ {
		pte := ptAt(pt.ram, ppn, idx[i])
		if !pte.IsValid() {
			frame, ok := pt.alloc.Alloc()
			if !ok {
				return 0, 0, fmt.Errorf("mm: map: %w", ErrNoFrames)
			}
			pt.frames = append(pt.frames, frame)
			pte = NewPTE(frame.PPN, PteV)
			ptSet(pt.ram, ppn, idx[i], pte)
		}
		ppn = pte.PPN()
	}
	return ppn, idx[2], nil
}

// findPTE descends the walk without creating tables, returning ok=false
// if any intermediate entry is invalid.
func (pt *PageTable) findPTE(vpn VirtPageNum) (PhysPageNum, uint64, bool) {
	idx := vpn.Indexes()
	ppn := pt.root
	for i := 0; i < 2; i++ {
		pte := ptAt(pt.ram, ppn, idx[i])
		if !pte.IsValid() {
			return 0, 0, false
		}
		ppn = pte.PPN()
	}
	return ppn, idx[2], true
}

// Map installs a leaf PTE. Asserts the leaf was previously invalid
// (spec.md 4.2).
func (pt *PageTable) Map(vpn VirtPageNum, ppn PhysPageNum, flags PTEFlags) error {
	leafPPN, idx, err := pt.findPTECreate(vpn)
	if err != nil {
		return err
	}
	existing := ptAt(pt.ram, leafPPN, idx)
	if existing.IsValid() {
		panic(fmt.Sprintf("mm: vpn %#x mapped before mapping", vpn))
	}
	ptSet(pt.ram, leafPPN, idx, NewPTE(ppn, flags|PteV))
	return nil
}

// Unmap clears a leaf PTE. Asserts it was previously valid (spec.md 4.2).
func (pt *PageTable) Unmap(vpn VirtPageNum) {
	leafPPN, idx, ok := pt.findPTE(vpn)
	if !ok {
		panic(fmt.Sprintf("mm: vpn %#x invalid before unmapping", vpn))
	}
	existing := ptAt(pt.ram, leafPPN, idx)
	if !existing.IsValid() {
		panic(fmt.Sprintf("mm: vpn %#x invalid before unmapping", vpn))
	}
	ptSet(pt.ram, leafPPN, idx, PTE{})
}

// FindPTE returns the leaf entry's (page, index) location for direct
// mutation, or ok=false when any level of the walk is invalid.
func (pt *PageTable) FindPTE(vpn VirtPageNum) (page PhysPageNum, index uint64, ok bool) {
	return pt.findPTE(vpn)
}

func (pt *PageTable) GetPTE(page PhysPageNum, index uint64) PTE { return ptAt(pt.ram, page, index) }
func (pt *PageTable) SetPTE(page PhysPageNum, index uint64, pte PTE) {
	ptSet(pt.ram, page, index, pte)
}

// Translate resolves a VPN to its leaf PTE; ok is false when the VPN has
// no valid leaf (never mapped, or unmapped since).
func (pt *PageTable) Translate(vpn VirtPageNum) (PTE, bool) {
	page, idx, ok := pt.findPTE(vpn)
	if !ok {
		return PTE{}, false
	}
	pte := ptAt(pt.ram, page, idx)
	if !pte.IsValid() {
		return PTE{}, false
	}
	return pte, true
}

// TranslateVA resolves a virtual address to its physical address.
func (pt *PageTable) TranslateVA(va VirtAddr) (PhysAddr, bool) {
	pte, ok := pt.Translate(va.Floor())
	if !ok {
		return 0, false
	}
	return PhysAddr(uint64(pte.PPN())*PageSize + va.PageOffset()), true
}

// Release returns every frame this table owns (root and intermediates) to
// the allocator. FromToken-borrowed tables own nothing and are a no-op.
func (pt *PageTable) Release() {
	for _, f := range pt.frames {
		f.Release()
	}
	pt.frames = nil
}
