package mm

// MapType distinguishes a constant-offset linear mapping (kernel direct
// map / MMIO) from a per-page-framed mapping (everything user-facing,
// COW-capable).
type MapType int

const (
	Framed MapType = iota
	Linear
)

// MapPermission is the subset of PTE flags a map area's creator controls;
// R/W/X/U only (spec.md section 3).
type MapPermission PTEFlags

const (
	PermR MapPermission = MapPermission(PteR)
	PermW MapPermission = MapPermission(PteW)
	PermX MapPermission = MapPermission(PteX)
	PermU MapPermission = MapPermission(PteU)
)

// LinearShift is the constant vpn-to-ppn offset for Linear areas: the
// kernel's direct map places physical frame ppn at virtual page
// ppn+LinearShift (va = pa + KernelBase), per spec.md section 3.
const LinearShift = KernelBase / PageSize

// MapArea is a contiguous virtual-page range with uniform permissions and
// type (spec.md section 3). Framed areas own a frame handle per currently
// mapped page; Linear areas own none (translation is a constant offset).
type MapArea struct {
	Start, End VirtPageNum
	Type       MapType
	Perm       MapPermission

	DataFrames map[VirtPageNum]*FrameHandle
}

func NewMapArea(startVA, endVA VirtAddr, mt MapType, perm MapPermission) *MapArea {
	return &MapArea{
		Start:      startVA.Floor(),
		End:        endVA.Ceil(),
		Type:       mt,
		Perm:       perm,
		DataFrames: make(map[VirtPageNum]*FrameHandle),
	}
}

func NewMapAreaVPN(start, end VirtPageNum, mt MapType, perm MapPermission) *MapArea {
	return &MapArea{Start: start, End: end, Type: mt, Perm: perm, DataFrames: make(map[VirtPageNum]*FrameHandle)}
}

func (a *MapArea) Contains(vpn VirtPageNum) bool { return vpn >= a.Start && vpn < a.End }

func (a *MapArea) pteFlags() PTEFlags {
	return PTEFlags(a.Perm)
}

// mapOne installs the PTE for a single page, allocating a frame for
// Framed areas.
func (a *MapArea) mapOne(pt *PageTable, vpn VirtPageNum) error {
	var ppn PhysPageNum
	switch a.Type {
	case Linear:
		ppn = PhysPageNum(uint64(vpn) - LinearShift)
	case Framed:
		frame, ok := pt.alloc.Alloc()
		if !ok {
			return ErrNoFrames
		}
		ppn = frame.PPN
		a.DataFrames[vpn] = frame
	}
	return pt.Map(vpn, ppn, a.pteFlags())
}

func (a *MapArea) unmapOne(pt *PageTable, vpn VirtPageNum) {
	if a.Type == Framed {
		if frame, ok := a.DataFrames[vpn]; ok {
			frame.Release()
			delete(a.DataFrames, vpn)
		}
	}
	pt.Unmap(vpn)
}

// Map installs every page of the area.
func (a *MapArea) Map(pt *PageTable) error {
	for vpn := a.Start; vpn < a.End; vpn++ {
		if err := a.mapOne(pt, vpn); err != nil {
			return err
		}
	}
	return nil
}

// Unmap releases every page of the area.
func (a *MapArea) Unmap(pt *PageTable) {
	for vpn := a.Start; vpn < a.End; vpn++ {
		a.unmapOne(pt, vpn)
	}
}

// CopyData copies data into the area's pages, starting at mapOffset into
// the first page then sequentially into subsequent pages, per spec.md
// 4.3's push() description. Only valid for Framed areas already mapped.
func (a *MapArea) CopyData(ram RAM, data []byte, mapOffset int) {
	src := data
	vpn := a.Start
	off := mapOffset
	for len(src) > 0 {
		frame := a.DataFrames[vpn]
		page := ram.Page(frame.PPN)
		n := copy(page[off:], src)
		src = src[n:]
		off = 0
		vpn++
	}
}
