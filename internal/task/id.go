package task

import "sync"

// IDAllocator hands out the lowest recycled id, or bumps a monotonic
// counter when the recycle pool is empty. Id 0 is never recycled back
// (it is reserved for the idle/init context in the places that check
// for it), matching original_source/os/src/task/pid.rs's PidAllocator.
type IDAllocator struct {
	mu       sync.Mutex
	current  uint64
	recycled []uint64
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{current: 1}
}

func (a *IDAllocator) Alloc() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.recycled) > 0 {
		lo := 0
		for i, id := range a.recycled {
			if id < a.recycled[lo] {
				lo = i
			}
		}
		id := a.recycled[lo]
		a.recycled = append(a.recycled[:lo], a.recycled[lo+1:]...)
		return id
	}
	id := a.current
	a.current++
	return id
}

func (a *IDAllocator) Dealloc(id uint64) {
	if id == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recycled = append(a.recycled, id)
}

// pidAllocator and tidAllocator are process-wide: every Process draws
// its pid from the former, every Thread its tid from the latter,
// mirroring the original's two separate global allocators (pid space
// and overall tid space are not the same numbering).
var (
	pidAllocator = NewIDAllocator()
	tidAllocator = NewIDAllocator()
)

// Handle releases its id back to the owning allocator exactly once,
// standing in for the original's Drop impl (spec.md's "dropping a
// handle recycles its id").
type Handle struct {
	id    uint64
	alloc *IDAllocator
	freed bool
}

func newHandle(alloc *IDAllocator) Handle {
	return Handle{id: alloc.Alloc(), alloc: alloc}
}

func (h Handle) ID() uint64 { return h.id }

func (h *Handle) Release() {
	if h.freed {
		return
	}
	h.freed = true
	h.alloc.Dealloc(h.id)
}

func newPIDHandle() Handle { return newHandle(pidAllocator) }
func newTIDHandle() Handle { return newHandle(tidAllocator) }
