package mm

import "arona/internal/errno"

// HandlePageFault implements spec.md 4.4: given the faulting vpn,
// resolve a COW write fault or a lazy-allocation sentinel, or fail
// EFAULT.
func (ms *MemorySet) HandlePageFault(vpn VirtPageNum) error {
	page, idx, ok := ms.PageTable.FindPTE(vpn)
	if !ok {
		return errno.EFAULT
	}
	pte := ms.PageTable.GetPTE(page, idx)

	if pte.IsValid() && pte.IsCOW() {
		area := ms.findArea(vpn)
		if area == nil {
			return errno.EFAULT
		}
		frame, ok := area.DataFrames[vpn]
		if !ok {
			return errno.EFAULT
		}
		if frame.RefCount() == 1 {
			flags := (pte.Flags() &^ PteCOW) | PteW
			ms.PageTable.SetPTE(page, idx, NewPTE(pte.PPN(), flags))
			return nil
		}

		newFrame, ok := ms.alloc.Alloc()
		if !ok {
			return errno.ENOMEM
		}
		copy(ms.ram.Page(newFrame.PPN), ms.ram.Page(pte.PPN()))
		flags := (pte.Flags() &^ PteCOW) | PteW
		ms.PageTable.SetPTE(page, idx, NewPTE(newFrame.PPN, flags))

		frame.Release()
		area.DataFrames[vpn] = newFrame
		return nil
	}

	if pte.IsValid() && pte.PPN() == 0 {
		area := ms.findArea(vpn)
		if area == nil {
			return errno.EFAULT
		}
		frame, ok := ms.alloc.Alloc()
		if !ok {
			return errno.ENOMEM
		}
		ms.PageTable.SetPTE(page, idx, NewPTE(frame.PPN, pte.Flags()))
		area.DataFrames[vpn] = frame
		return nil
	}

	return errno.EFAULT
}
