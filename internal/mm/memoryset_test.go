package mm

import (
	"bytes"
	"testing"

	"arona/internal/errno"
)

func newTestMemorySet(t *testing.T, pages uint64) (*FrameAllocator, RAM, *MemorySet) {
	t.Helper()
	alloc, ram := newTestAllocator(t, pages)
	ms, err := NewEmpty(alloc, ram)
	if err != nil {
		t.Fatalf("NewEmpty: %v", err)
	}
	return alloc, ram, ms
}

func TestMemorySetPushCopyInOut(t *testing.T) {
	_, _, ms := newTestMemorySet(t, 64)

	area := NewMapArea(VirtAddr(0x1000), VirtAddr(0x3000), Framed, PermR|PermW|PermU)
	payload := bytes.Repeat([]byte{0xab}, PageSize+16)
	if err := ms.Push(area, payload, 0); err != nil {
		t.Fatalf("Push: %v", err)
	}

	got, err := ms.CopyIn(0x1000, len(payload))
	if err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("CopyIn returned unexpected data")
	}

	if err := ms.CopyOut(0x1000, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("CopyOut: %v", err)
	}
	got, _ = ms.CopyIn(0x1000, 4)
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("expected the overwritten bytes to read back")
	}
}

func TestMemorySetCOWForkSharesUntilWrite(t *testing.T) {
	alloc, ram, kernel := newTestMemorySet(t, 128)
	parent, err := NewEmpty(alloc, ram)
	if err != nil {
		t.Fatalf("NewEmpty: %v", err)
	}

	area := NewMapArea(VirtAddr(0x2000), VirtAddr(0x3000), Framed, PermR|PermW|PermU)
	if err := parent.Push(area, []byte("parent data"), 0); err != nil {
		t.Fatalf("Push: %v", err)
	}

	child, err := FromExistingUser(alloc, ram, kernel, parent)
	if err != nil {
		t.Fatalf("FromExistingUser: %v", err)
	}

	parentPTE, ok := parent.PageTable.Translate(VirtPageNum(2))
	if !ok || !parentPTE.IsCOW() || parentPTE.Writable() {
		t.Fatalf("expected parent's PTE to have lost W and gained COW, got flags %#x ok=%v", parentPTE.Flags(), ok)
	}
	childPTE, ok := child.PageTable.Translate(VirtPageNum(2))
	if !ok || !childPTE.IsCOW() || childPTE.PPN() != parentPTE.PPN() {
		t.Fatalf("expected child to share the parent's frame read-only+COW")
	}

	got, err := child.CopyIn(0x2000, len("parent data"))
	if err != nil || string(got) != "parent data" {
		t.Fatalf("expected child to read the shared frame, got %q err=%v", got, err)
	}

	// Writing through the child must copy, not mutate the shared frame.
	if err := child.CopyOut(0x2000, []byte("CHILD")); err != nil {
		t.Fatalf("CopyOut: %v", err)
	}
	parentAfter, _ := parent.CopyIn(0x2000, 5)
	if string(parentAfter) != "paren" {
		t.Fatalf("expected parent's page untouched by child's write, got %q", parentAfter)
	}
	childAfter, _ := child.CopyIn(0x2000, 5)
	if string(childAfter) != "CHILD" {
		t.Fatalf("expected child's page to show its own write, got %q", childAfter)
	}

	childPTEAfter, _ := child.PageTable.Translate(VirtPageNum(2))
	if childPTEAfter.IsCOW() || !childPTEAfter.Writable() {
		t.Fatalf("expected child's PTE to be plain writable after COW resolution")
	}
}

func TestMemorySetCOWLastSharerReusesFrame(t *testing.T) {
	alloc, ram, kernel := newTestMemorySet(t, 128)
	parent, err := NewEmpty(alloc, ram)
	if err != nil {
		t.Fatalf("NewEmpty: %v", err)
	}
	area := NewMapArea(VirtAddr(0x4000), VirtAddr(0x5000), Framed, PermR|PermW|PermU)
	if err := parent.Push(area, []byte("x"), 0); err != nil {
		t.Fatalf("Push: %v", err)
	}

	child, err := FromExistingUser(alloc, ram, kernel, parent)
	if err != nil {
		t.Fatalf("FromExistingUser: %v", err)
	}

	before, _ := parent.PageTable.Translate(VirtPageNum(4))
	parent.Recycle() // drops the parent's share; only the child's remains

	if err := child.CopyOut(0x4000, []byte("y")); err != nil {
		t.Fatalf("CopyOut: %v", err)
	}
	after, _ := child.PageTable.Translate(VirtPageNum(4))
	if after.PPN() != before.PPN() {
		t.Fatalf("expected the sole remaining sharer to reuse its frame instead of copying")
	}
	if after.IsCOW() || !after.Writable() {
		t.Fatalf("expected the resolved PTE to be plain writable")
	}
}

func TestMemorySetMmapMunmapMprotect(t *testing.T) {
	_, _, ms := newTestMemorySet(t, 64)

	addr, err := ms.MmapAnonymous(PageSize, ProtRead|ProtWrite, -1, 0)
	if err != nil {
		t.Fatalf("MmapAnonymous: %v", err)
	}
	if addr != MmapMinAddr {
		t.Fatalf("expected first mmap at MmapMinAddr, got %#x", addr)
	}
	if err := ms.CopyOut(addr, []byte("hi")); err != nil {
		t.Fatalf("CopyOut: %v", err)
	}

	if err := ms.Mprotect(addr, PageSize, ProtRead); err != nil {
		t.Fatalf("Mprotect: %v", err)
	}
	pte, ok := ms.PageTable.Translate(VirtAddr(addr).Floor())
	if !ok || pte.Writable() {
		t.Fatalf("expected write permission cleared after Mprotect(ProtRead)")
	}

	if err := ms.Munmap(addr, PageSize); err != nil {
		t.Fatalf("Munmap: %v", err)
	}
	if _, err := ms.CopyIn(addr, 2); err != errno.EFAULT {
		t.Fatalf("expected EFAULT reading an unmapped mmap region, got %v", err)
	}
}

func TestMemorySetMmapInvalidArgs(t *testing.T) {
	_, _, ms := newTestMemorySet(t, 64)

	if _, err := ms.MmapAnonymous(0, ProtRead, -1, 0); err != errno.EINVAL {
		t.Fatalf("expected EINVAL for zero length, got %v", err)
	}
	if _, err := ms.MmapAnonymous(PageSize, ProtRead, 3, 0); err != errno.EINVAL {
		t.Fatalf("expected EINVAL for a non-anonymous fd, got %v", err)
	}
	if err := ms.Munmap(1, PageSize); err != errno.EINVAL {
		t.Fatalf("expected EINVAL for a misaligned munmap start, got %v", err)
	}
}

func TestMemorySetBrkExpandAndShrink(t *testing.T) {
	_, _, ms := newTestMemorySet(t, 64)
	heapStart := uint64(0x5_0000)
	heap := NewMapAreaVPN(VirtAddr(heapStart).Floor(), VirtAddr(heapStart).Floor(), Framed, PermR|PermW|PermU)
	ms.Heap = heap
	ms.HeapStart = heapStart
	ms.Areas = append(ms.Areas, heap)

	if cur, err := ms.Brk(0); err != nil || cur != heapStart {
		t.Fatalf("Brk(0): expected %#x, got %#x err=%v", heapStart, cur, err)
	}

	newEnd := heapStart + 2*PageSize
	if got, err := ms.Brk(newEnd); err != nil || got != newEnd {
		t.Fatalf("Brk(expand): expected %#x, got %#x err=%v", newEnd, got, err)
	}
	if err := ms.CopyOut(heapStart, []byte("heap")); err != nil {
		t.Fatalf("CopyOut into expanded heap: %v", err)
	}

	if got, err := ms.Brk(heapStart); err != nil || got != heapStart {
		t.Fatalf("Brk(shrink): expected %#x, got %#x err=%v", heapStart, got, err)
	}
	if _, err := ms.CopyIn(heapStart, 4); err != errno.EFAULT {
		t.Fatalf("expected EFAULT reading a shrunk-away heap page, got %v", err)
	}
}

func TestMemorySetBrkRejectsBelowStartOrAboveCap(t *testing.T) {
	_, _, ms := newTestMemorySet(t, 64)
	heapStart := uint64(0x6_0000)
	heap := NewMapAreaVPN(VirtAddr(heapStart).Floor(), VirtAddr(heapStart).Floor(), Framed, PermR|PermW|PermU)
	ms.Heap = heap
	ms.HeapStart = heapStart
	ms.Areas = append(ms.Areas, heap)

	if _, err := ms.Brk(heapStart - PageSize); err != errno.EINVAL {
		t.Fatalf("expected EINVAL below heap start, got %v", err)
	}
	if _, err := ms.Brk(heapStart + HeapCap + PageSize); err != errno.ENOMEM {
		t.Fatalf("expected ENOMEM above the heap cap, got %v", err)
	}
}

func TestHandlePageFaultLazyAllocation(t *testing.T) {
	alloc, ram, ms := newTestMemorySet(t, 64)

	area := NewMapArea(VirtAddr(0x7000), VirtAddr(0x8000), Framed, PermR|PermW|PermU)
	ms.Areas = append(ms.Areas, area)
	vpn := VirtPageNum(7)
	if err := ms.PageTable.Map(vpn, 0, PteV|PteR|PteW|PteU); err != nil {
		t.Fatalf("Map: %v", err)
	}

	if err := ms.HandlePageFault(vpn); err != nil {
		t.Fatalf("HandlePageFault: %v", err)
	}
	pte, ok := ms.PageTable.Translate(vpn)
	if !ok || pte.PPN() == 0 {
		t.Fatalf("expected a real frame installed after lazy-fault resolution")
	}
	if _, ok := area.DataFrames[vpn]; !ok {
		t.Fatalf("expected the area to now own the allocated frame")
	}
	_ = alloc
}

func TestHandlePageFaultUnmappedIsEFAULT(t *testing.T) {
	_, _, ms := newTestMemorySet(t, 16)
	if err := ms.HandlePageFault(VirtPageNum(99)); err != errno.EFAULT {
		t.Fatalf("expected EFAULT for a never-mapped vpn, got %v", err)
	}
}
