package mm

import (
	"context"

	"arona/internal/errno"
	"arona/internal/vfs"
)

// MmapProt mirrors the PROT_* bits a caller passes to mmap/mprotect.
type MmapProt uint8

const (
	ProtRead  MmapProt = 1 << 0
	ProtWrite MmapProt = 1 << 1
	ProtExec  MmapProt = 1 << 2
)

func (p MmapProt) perm() MapPermission {
	var perm MapPermission
	if p&ProtRead != 0 {
		perm |= PermR
	}
	if p&ProtWrite != 0 {
		perm |= PermW
	}
	if p&ProtExec != 0 {
		perm |= PermX
	}
	return perm
}

// MmapAnonymous reserves [cursor, cursor+len) rounded to pages and maps
// it Framed with prot|U, per spec.md 4.3. fd must be -1 and offset 0.
func (ms *MemorySet) MmapAnonymous(length uint64, prot MmapProt, fd int64, offset uint64) (uint64, error) {
	if length == 0 {
		return 0, errno.EINVAL
	}
	if fd != -1 || offset != 0 {
		return 0, errno.EINVAL
	}
	start := ms.MmapCursor
	pageLen := AlignUp(length)
	area := NewMapArea(VirtAddr(start), VirtAddr(start+pageLen), Framed, prot.perm()|PermU)
	if err := ms.Push(area, nil, 0); err != nil {
		return 0, err
	}
	ms.MmapCursor += pageLen
	return start, nil
}

// MmapFile maps length bytes of file starting at offset (page-aligned)
// into a fresh Framed area, restoring the file's prior seek position if
// it was seekable, per spec.md 4.3.
func (ms *MemorySet) MmapFile(ctx context.Context, length uint64, prot MmapProt, file vfs.File, offset uint64) (uint64, error) {
	if length == 0 {
		return 0, errno.EINVAL
	}
	if offset%PageSize != 0 {
		return 0, errno.EINVAL
	}
	start := ms.MmapCursor
	pageLen := AlignUp(length)
	area := NewMapArea(VirtAddr(start), VirtAddr(start+pageLen), Framed, prot.perm()|PermU)
	if err := ms.Push(area, nil, 0); err != nil {
		return 0, err
	}
	ms.MmapCursor += pageLen

	prevPos, seekErr := file.Seek(0, vfs.SeekCur)
	if _, err := file.Seek(int64(offset), vfs.SeekSet); err != nil {
		return 0, errno.EIO
	}
	buf := make([]byte, length)
	n, _ := file.Read(ctx, buf)
	area.CopyData(ms.ram, buf[:n], 0)
	if seekErr == nil {
		file.Seek(prevPos, vfs.SeekSet)
	}
	return start, nil
}

// Munmap fails if start is not page-aligned or below MMAP_MIN_ADDR.
// Overlapping areas are unmapped (frames and PTEs released); the kept
// remainder is reinstated verbatim, per spec.md 4.3.
func (ms *MemorySet) Munmap(start, length uint64) error {
	if start%PageSize != 0 {
		return errno.EINVAL
	}
	if start < MmapMinAddr {
		return errno.EINVAL
	}
	startVPN := VirtAddr(start).Floor()
	endVPN := VirtAddr(start + length).Ceil()

	var kept []*MapArea
	for _, a := range ms.Areas {
		if a == ms.Heap {
			kept = append(kept, a)
			continue
		}
		if a.End <= startVPN || a.Start >= endVPN {
			kept = append(kept, a)
			continue
		}
		// Overlap: unmap the intersecting portion. Since spec.md's
		// munmap never partially splits an area it doesn't fully
		// cover, only the fully-covered case is common in practice;
		// partially-covered areas are trimmed at the edges.
		for vpn := maxVPN(a.Start, startVPN); vpn < minVPN(a.End, endVPN); vpn++ {
			a.unmapOne(ms.PageTable, vpn)
		}
		if a.Start < startVPN {
			left := &MapArea{Start: a.Start, End: startVPN, Type: a.Type, Perm: a.Perm, DataFrames: a.DataFrames}
			kept = append(kept, left)
		}
		if a.End > endVPN {
			right := &MapArea{Start: endVPN, End: a.End, Type: a.Type, Perm: a.Perm, DataFrames: a.DataFrames}
			kept = append(kept, right)
		}
	}
	ms.Areas = kept
	return nil
}

func maxVPN(a, b VirtPageNum) VirtPageNum {
	if a > b {
		return a
	}
	return b
}
func minVPN(a, b VirtPageNum) VirtPageNum {
	if a < b {
		return a
	}
	return b
}

// Mprotect walks the PTEs covered by [start, start+len) and replaces
// their RWX bits. The areas' stored perms are left unmodified — the page
// table alone is authoritative for enforcement (spec.md 4.3, a
// deliberate policy decision carried over unchanged).
func (ms *MemorySet) Mprotect(start, length uint64, prot MmapProt) error {
	startVPN := VirtAddr(start).Floor()
	endVPN := VirtAddr(start + length).Ceil()
	newBits := PTEFlags(prot.perm()) | PteU
	for vpn := startVPN; vpn < endVPN; vpn++ {
		page, idx, ok := ms.PageTable.FindPTE(vpn)
		if !ok {
			continue
		}
		pte := ms.PageTable.GetPTE(page, idx)
		flags := (pte.Flags() &^ (PteR | PteW | PteX | PteU)) | newBits
		ms.PageTable.SetPTE(page, idx, NewPTE(pte.PPN(), flags))
	}
	return nil
}
