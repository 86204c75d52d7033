package mm

import "arona/internal/errno"

// probe resolves vpn for access, retrying through HandlePageFault once
// when the PTE is a COW or lazy-allocation sentinel (spec.md section 7:
// "a dedicated probe that installs a recoverable trap vector, attempts a
// write, and on fault either triggers the COW/lazy handler and retries,
// or returns EFAULT").
func (ms *MemorySet) probe(vpn VirtPageNum, forWrite bool) (PTE, error) {
	pte, ok := ms.PageTable.Translate(vpn)
	if !ok {
		return PTE{}, errno.EFAULT
	}
	needsFault := (forWrite && pte.IsCOW()) || pte.PPN() == 0
	if !needsFault {
		return pte, nil
	}
	if err := ms.HandlePageFault(vpn); err != nil {
		return PTE{}, err
	}
	pte, ok = ms.PageTable.Translate(vpn)
	if !ok {
		return PTE{}, errno.EFAULT
	}
	return pte, nil
}

// CopyIn reads length bytes starting at user virtual address va,
// spanning page boundaries and resolving lazy/COW faults it encounters
// on the way, matching how every read-path syscall argument (buffers,
// struct pointers) is expected to be validated per spec.md section 7.
func (ms *MemorySet) CopyIn(va uint64, length int) ([]byte, error) {
	out := make([]byte, length)
	off := 0
	for off < length {
		addr := va + uint64(off)
		vpn := VirtAddr(addr).Floor()
		pte, err := ms.probe(vpn, false)
		if err != nil {
			return nil, err
		}
		pageOff := VirtAddr(addr).PageOffset()
		n := copy(out[off:], ms.ram.Page(pte.PPN())[pageOff:])
		off += n
	}
	return out, nil
}

// CopyOut writes data to user virtual address va, resolving COW/lazy
// faults page by page (spec.md section 7).
func (ms *MemorySet) CopyOut(va uint64, data []byte) error {
	off := 0
	for off < len(data) {
		addr := va + uint64(off)
		vpn := VirtAddr(addr).Floor()
		pte, err := ms.probe(vpn, true)
		if err != nil {
			return err
		}
		pageOff := VirtAddr(addr).PageOffset()
		n := copy(ms.ram.Page(pte.PPN())[pageOff:], data[off:])
		off += n
	}
	return nil
}

// ReadU32 and WriteU32 are the futex core's atomic-word accessors
// (spec.md 4.10's "atomically read the 32-bit value at va"); this host-
// process model has no concurrent hart contending for the page so a
// plain load/store suffices.
func (ms *MemorySet) ReadU32(va uint64) (uint32, error) {
	b, err := ms.CopyIn(va, 4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (ms *MemorySet) WriteU32(va uint64, v uint32) error {
	b := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	return ms.CopyOut(va, b)
}

// ReadU64 reads a 64-bit little-endian word, the pointer-array element
// size argv/envp vectors and clone's (entry, arg) stack words use.
func (ms *MemorySet) ReadU64(va uint64) (uint64, error) {
	b, err := ms.CopyIn(va, 8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v, nil
}

func (ms *MemorySet) WriteU64(va uint64, v uint64) error {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return ms.CopyOut(va, b)
}

// CopyOutString null-terminates s and copies it to va, for getcwd/uname
// style syscalls.
func (ms *MemorySet) CopyOutString(va uint64, s string) error {
	return ms.CopyOut(va, append([]byte(s), 0))
}
