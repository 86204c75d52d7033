package task

import (
	"arona/internal/errno"
	"arona/internal/vfs"
)

// FDEntry pairs an open file with its close-on-exec flag, the one bit
// Linux tracks per descriptor rather than per open-file-description.
type FDEntry struct {
	File        vfs.File
	CloseOnExec bool
}

// FDTable is a lowest-free-slot descriptor table shared (by reference)
// between threads of one process, and deep-copied on fork, matching
// original_source/os/src/fs/fd_table.rs.
type FDTable struct {
	slots []*FDEntry
}

func NewFDTable() *FDTable {
	return &FDTable{slots: make([]*FDEntry, 3)}
}

// InstallStdio installs stdin/stdout/stderr as tty files, the fd table's
// state immediately after process creation (spec.md 4.7).
func (t *FDTable) InstallStdio(tty vfs.File) {
	t.slots[0] = &FDEntry{File: tty}
	t.slots[1] = &FDEntry{File: tty}
	t.slots[2] = &FDEntry{File: tty}
}

// Alloc reserves the lowest free slot, growing the table if needed.
func (t *FDTable) Alloc(f vfs.File, cloexec bool) int {
	for i, s := range t.slots {
		if s == nil {
			t.slots[i] = &FDEntry{File: f, CloseOnExec: cloexec}
			return i
		}
	}
	t.slots = append(t.slots, &FDEntry{File: f, CloseOnExec: cloexec})
	return len(t.slots) - 1
}

// AllocAt forcibly installs f at fd, closing whatever was there
// (dup2/dup3 semantics).
func (t *FDTable) AllocAt(fd int, f vfs.File, cloexec bool) {
	for len(t.slots) <= fd {
		t.slots = append(t.slots, nil)
	}
	if old := t.slots[fd]; old != nil {
		old.File.Close()
	}
	t.slots[fd] = &FDEntry{File: f, CloseOnExec: cloexec}
}

func (t *FDTable) Get(fd int) (vfs.File, error) {
	if fd < 0 || fd >= len(t.slots) || t.slots[fd] == nil {
		return nil, errno.EBADF
	}
	return t.slots[fd].File, nil
}

func (t *FDTable) Close(fd int) error {
	if fd < 0 || fd >= len(t.slots) || t.slots[fd] == nil {
		return errno.EBADF
	}
	entry := t.slots[fd]
	t.slots[fd] = nil
	return entry.File.Close()
}

func (t *FDTable) SetCloseOnExec(fd int, v bool) error {
	if fd < 0 || fd >= len(t.slots) || t.slots[fd] == nil {
		return errno.EBADF
	}
	t.slots[fd].CloseOnExec = v
	return nil
}

// Clone deep-copies the slot structure for fork: every fd shares the
// same underlying vfs.File (open-file-description semantics), only the
// per-descriptor cloexec bit is copied rather than referenced.
func (t *FDTable) Clone() *FDTable {
	n := &FDTable{slots: make([]*FDEntry, len(t.slots))}
	for i, s := range t.slots {
		if s == nil {
			continue
		}
		e := *s
		n.slots[i] = &e
	}
	return n
}

// CloseOnExecAll closes every fd marked close-on-exec, run by execve
// before installing the new memory set (spec.md 4.7 exec step 2).
func (t *FDTable) CloseOnExecAll() {
	for i, s := range t.slots {
		if s != nil && s.CloseOnExec {
			s.File.Close()
			t.slots[i] = nil
		}
	}
}
