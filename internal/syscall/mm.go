package syscall

import (
	"context"

	"arona/internal/errno"
	"arona/internal/mm"
	"arona/internal/task"
)

// mmap flag bits this kernel recognizes (spec.md 4.3); MAP_FIXED is
// rejected outright ("Fixed is rejected (deliberate simplification)");
// the rest (MAP_STACK, MAP_NORESERVE, ...) are accepted and ignored.
const (
	MapShared    = 0x01
	MapPrivate   = 0x02
	MapFixed     = 0x10
	MapAnonymous = 0x20
)

func sysMmap(process *task.Process, addr, length, prot, flags uint64, fd int64, offset uint64) (uint64, error) {
	if flags&MapFixed != 0 {
		return 0, errno.EINVAL
	}
	p := mm.MmapProt(prot)
	if flags&MapAnonymous != 0 {
		va, err := process.MM.MmapAnonymous(length, p, fd, offset)
		if err != nil {
			return 0, err
		}
		return va, nil
	}
	f, err := process.FDs.Get(int(fd))
	if err != nil {
		return 0, err
	}
	va, err := process.MM.MmapFile(context.Background(), length, p, f, offset)
	if err != nil {
		return 0, err
	}
	return va, nil
}
