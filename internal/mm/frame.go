package mm

import (
	"sync"
)

// FrameAllocator hands out and reclaims 4 KiB physical frames from
// [ekernel, memoryEnd), per spec.md 4.1. It prefers recycled PPNs over
// bumping the high-water mark, matching the original source's Stack-of-
// recycled-plus-monotonic-counter policy (os/src/mm/mod.rs's frame
// allocator).
type FrameAllocator struct {
	mu        sync.Mutex
	current   uint64 // next never-yet-allocated PPN
	end       uint64 // one past the last allocatable PPN
	recycled  []uint64
	zeroPages RAM
}

// RAM is the kernel's byte-addressable view of physical memory backing
// frames. A host-process stand-in for the real direct-mapped RAM a bare-
// metal kernel would index via KernelVA(); spec.md treats the console/
// block-device/board wiring as external, so this kernel core models
// physical memory as a flat byte slice instead of real MMIO.
type RAM []byte

func NewRAM(size uint64) RAM { return make(RAM, size) }

func (r RAM) Zero(ppn PhysPageNum) {
	base := uint64(ppn) * PageSize
	for i := uint64(0); i < PageSize; i++ {
		r[base+i] = 0
	}
}

func (r RAM) Page(ppn PhysPageNum) []byte {
	base := uint64(ppn) * PageSize
	return r[base : base+PageSize]
}

// NewFrameAllocator builds an allocator over [ekernelPPN, memoryEndPPN).
func NewFrameAllocator(ekernelPPN, memoryEndPPN uint64, ram RAM) *FrameAllocator {
	return &FrameAllocator{
		current:   ekernelPPN,
		end:       memoryEndPPN,
		zeroPages: ram,
	}
}

// FrameHandle is an owning (possibly shared, for COW) handle to a frame.
// Ownership is explicit in Go: the last holder must call Release, which
// corresponds to the Rust source's Drop impl on FrameTracker pushing the
// PPN back onto the recycled stack.
type FrameHandle struct {
	PPN   PhysPageNum
	alloc *FrameAllocator
	ref   *int32
}

// Alloc returns a zeroed frame, or ok=false when the allocator is
// exhausted (spec.md 4.1: "Errors: None when exhausted").
func (a *FrameAllocator) Alloc() (*FrameHandle, bool) {
	a.mu.Lock()
	var ppn uint64
	if n := len(a.recycled); n > 0 {
		ppn = a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
	} else {
		if a.current >= a.end {
			a.mu.Unlock()
			return nil, false
		}
		ppn = a.current
		a.current++
	}
	a.mu.Unlock()

	if a.zeroPages != nil {
		a.zeroPages.Zero(PhysPageNum(ppn))
	}
	ref := int32(1)
	return &FrameHandle{PPN: PhysPageNum(ppn), alloc: a, ref: &ref}, true
}

func (a *FrameAllocator) dealloc(ppn uint64) {
	a.mu.Lock()
	a.recycled = append(a.recycled, ppn)
	a.mu.Unlock()
}

// Clone returns a new handle sharing the same frame, incrementing the
// refcount (used to model COW sharing, spec.md's "shared ownership via
// refcount on the frame handle").
func (h *FrameHandle) Clone() *FrameHandle {
	n := atomicAdd(h.ref, 1)
	_ = n
	return &FrameHandle{PPN: h.PPN, alloc: h.alloc, ref: h.ref}
}

// RefCount reports how many handles currently share this frame.
func (h *FrameHandle) RefCount() int32 { return atomicLoad(h.ref) }

// Release drops this handle; when the last handle sharing the frame is
// released, the PPN is returned to the allocator's recycled stack.
func (h *FrameHandle) Release() {
	if h == nil || h.ref == nil {
		return
	}
	if atomicAdd(h.ref, -1) == 0 {
		h.alloc.dealloc(uint64(h.PPN))
	}
}
