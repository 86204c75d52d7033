package mm

import "testing"

func TestFrameAllocatorAllocExhaustion(t *testing.T) {
	ram := NewRAM(4 * PageSize)
	alloc := NewFrameAllocator(1, 3, ram)

	var got []PhysPageNum
	for i := 0; i < 2; i++ {
		f, ok := alloc.Alloc()
		if !ok {
			t.Fatalf("alloc %d: expected ok", i)
		}
		got = append(got, f.PPN)
	}
	if got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected ppns [1 2], got %v", got)
	}

	if _, ok := alloc.Alloc(); ok {
		t.Fatalf("expected exhaustion at ppn 3")
	}
}

func TestFrameAllocatorZeroesOnAlloc(t *testing.T) {
	ram := NewRAM(4 * PageSize)
	alloc := NewFrameAllocator(1, 3, ram)

	f1, ok := alloc.Alloc()
	if !ok {
		t.Fatalf("alloc: expected ok")
	}
	page := ram.Page(f1.PPN)
	for i := range page {
		page[i] = 0xff
	}
	f1.Release()

	f2, ok := alloc.Alloc()
	if !ok {
		t.Fatalf("alloc: expected ok")
	}
	if f2.PPN != f1.PPN {
		t.Fatalf("expected recycled ppn %d, got %d", f1.PPN, f2.PPN)
	}
	for i, b := range ram.Page(f2.PPN) {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %#x", i, b)
		}
	}
}

func TestFrameAllocatorRecyclesBeforeBumping(t *testing.T) {
	ram := NewRAM(4 * PageSize)
	alloc := NewFrameAllocator(1, 3, ram)

	f1, _ := alloc.Alloc()
	f2, _ := alloc.Alloc()
	f1.Release()

	f3, ok := alloc.Alloc()
	if !ok {
		t.Fatalf("alloc: expected ok")
	}
	if f3.PPN != f1.PPN {
		t.Fatalf("expected recycled ppn %d reused before bumping past f2 %d, got %d", f1.PPN, f2.PPN, f3.PPN)
	}
}

func TestFrameHandleCloneSharesRefcount(t *testing.T) {
	ram := NewRAM(2 * PageSize)
	alloc := NewFrameAllocator(1, 2, ram)

	f1, ok := alloc.Alloc()
	if !ok {
		t.Fatalf("alloc: expected ok")
	}
	if f1.RefCount() != 1 {
		t.Fatalf("expected refcount 1, got %d", f1.RefCount())
	}

	f2 := f1.Clone()
	if f1.RefCount() != 2 || f2.RefCount() != 2 {
		t.Fatalf("expected refcount 2 on both handles, got %d/%d", f1.RefCount(), f2.RefCount())
	}

	f1.Release()
	if f2.RefCount() != 1 {
		t.Fatalf("expected refcount 1 after one release, got %d", f2.RefCount())
	}

	// The PPN must not be recyclable while the clone still holds it.
	if _, ok := alloc.Alloc(); ok {
		t.Fatalf("expected exhaustion: f2 still holds the only frame")
	}

	f2.Release()
	if _, ok := alloc.Alloc(); !ok {
		t.Fatalf("expected the frame to be recyclable after the last release")
	}
}
