package mm

import (
	"sync"
	"weak"

	"arona/internal/errno"
)

// SharedMemoryTable is the keyed shared-memory segment registry of
// spec.md 4.11. Segments hold only weak references to their backing
// frames (Go 1.24's weak.Pointer, the stdlib's answer to the original
// source's Weak<FrameTracker>): a segment with no process currently
// attached to it has no strong holder, so its pages are free to be
// collected, and shmat must be prepared to reconstruct a page it finds
// gone.
type SharedMemoryTable struct {
	mu       sync.Mutex
	nextID   uint64
	segments map[uint64]*SharedSegment
	keys     map[uint64]uint64 // IPC key -> segment id; only IPC_PRIVATE is required
}

const IPCPrivate = 0

type SharedSegment struct {
	ID        uint64
	PageCount int
	pages     []weak.Pointer[FrameHandle]
}

func NewSharedMemoryTable() *SharedMemoryTable {
	return &SharedMemoryTable{segments: make(map[uint64]*SharedSegment), keys: make(map[uint64]uint64)}
}

// Shmget allocates a segment id, len/PAGE_SIZE page slots (initially
// empty weak refs), and maps key to it. Only IPC_PRIVATE is required
// (spec.md 4.11).
func (t *SharedMemoryTable) Shmget(key uint64, length uint64) (uint64, error) {
	if length == 0 {
		return 0, errno.EINVAL
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if key != IPCPrivate {
		if id, ok := t.keys[key]; ok {
			return id, nil
		}
	}

	t.nextID++
	id := t.nextID
	count := int(AlignUp(length) / PageSize)
	seg := &SharedSegment{ID: id, PageCount: count, pages: make([]weak.Pointer[FrameHandle], count)}
	t.segments[id] = seg
	if key != IPCPrivate {
		t.keys[key] = id
	}
	return id, nil
}

// Shmat reserves a Framed area of the segment's size in ms and maps each
// page, upgrading an existing weak reference when a strong holder is
// still alive, or allocating (and recording) a fresh page otherwise
// (spec.md 4.11).
func (t *SharedMemoryTable) Shmat(ms *MemorySet, alloc *FrameAllocator, id uint64, addr uint64) (uint64, error) {
	t.mu.Lock()
	seg, ok := t.segments[id]
	t.mu.Unlock()
	if !ok {
		return 0, errno.EINVAL
	}

	if addr == 0 {
		addr = ms.MmapCursor
	}
	size := uint64(seg.PageCount) * PageSize
	area := NewMapArea(VirtAddr(addr), VirtAddr(addr+size), Framed, PermR|PermW|PermU)

	for i := 0; i < seg.PageCount; i++ {
		vpn := area.Start + VirtPageNum(i)
		var frame *FrameHandle
		if existing := seg.pages[i].Value(); existing != nil {
			frame = existing.Clone()
		} else {
			var ok bool
			frame, ok = alloc.Alloc()
			if !ok {
				return 0, errno.ENOMEM
			}
			seg.pages[i] = weak.Make(frame)
		}
		area.DataFrames[vpn] = frame
		if err := ms.PageTable.Map(vpn, frame.PPN, area.pteFlags()); err != nil {
			return 0, err
		}
	}
	ms.Areas = append(ms.Areas, area)
	if addr == ms.MmapCursor {
		ms.MmapCursor += size
	}
	return addr, nil
}
