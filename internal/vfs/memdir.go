package vfs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
)

// Sentinel errors a MemDir/memRegular can return; the syscall layer maps
// these onto the matching Errno (vfs stays a leaf package, so it cannot
// import internal/errno's "Encode the current process's view of a
// failure" helper — it only reports what went wrong).
var (
	ErrIsDir    = errors.New("vfs: is a directory")
	ErrNotDir   = errors.New("vfs: not a directory")
	ErrExist    = errors.New("vfs: exists")
	ErrNotExist = errors.New("vfs: no such entry")
	ErrNotEmpty = errors.New("vfs: not empty")
)

var nextInodeID uint64

func allocInodeID() uint64 { return atomic.AddUint64(&nextInodeID, 1) }

// DirMode flags Mknod's mode argument as directory-creating, the same bit
// Linux's S_IFDIR occupies.
const DirMode = 0o40000

// MemDir is the in-memory directory Inode backing the root filesystem
// this kernel core exercises its syscall surface against — concrete
// filesystems (ext4, FAT32, devfs) are out of scope (spec.md section 1);
// this is the "couple of trivial in-memory backends" section 3 asks the
// vfs package to carry so openat/mkdirat/getdents64/unlinkat have
// something real to operate on end to end.
type MemDir struct {
	mu       sync.Mutex
	id       uint64
	children map[string]Inode
}

func NewMemDir() *MemDir {
	return &MemDir{id: allocInodeID(), children: make(map[string]Inode)}
}

func (d *MemDir) Read(context.Context, int64, []byte) (int, error)  { return 0, ErrIsDir }
func (d *MemDir) Write(context.Context, int64, []byte) (int, error) { return 0, ErrIsDir }

// Mknod creates name as a regular file, or (mode&DirMode != 0) a
// directory, failing ErrExist if name is already present.
func (d *MemDir) Mknod(name string, mode uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.children[name]; ok {
		return ErrExist
	}
	if mode&DirMode != 0 {
		d.children[name] = NewMemDir()
	} else {
		d.children[name] = newMemRegular()
	}
	return nil
}

func (d *MemDir) Find(name string) (Inode, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.children[name]
	return n, ok
}

func (d *MemDir) List() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.children))
	for name := range d.children {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (d *MemDir) LoadChildrenFromDisk() error { return nil }

func (d *MemDir) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.children) > 0 {
		return ErrNotEmpty
	}
	return nil
}

func (d *MemDir) Meta() Metadata {
	return Metadata{InodeID: d.id, IsDir: true, Mode: DirMode}
}

// Unlink removes name, failing ErrNotExist if absent or ErrNotEmpty if
// name is a non-empty directory (spec.md 4.8's unlinkat).
func (d *MemDir) Unlink(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	child, ok := d.children[name]
	if !ok {
		return ErrNotExist
	}
	if sub, ok := child.(*MemDir); ok {
		if err := sub.Clear(); err != nil {
			return err
		}
	}
	delete(d.children, name)
	return nil
}

// memRegular is a plain byte-slice-backed regular-file Inode.
type memRegular struct {
	mu   sync.Mutex
	id   uint64
	data []byte
}

func newMemRegular() *memRegular { return &memRegular{id: allocInodeID()} }

func (r *memRegular) Read(_ context.Context, offset int64, buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset >= int64(len(r.data)) {
		return 0, nil
	}
	return copy(buf, r.data[offset:]), nil
}

func (r *memRegular) Write(_ context.Context, offset int64, buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := offset + int64(len(buf))
	if end > int64(len(r.data)) {
		grown := make([]byte, end)
		copy(grown, r.data)
		r.data = grown
	}
	return copy(r.data[offset:end], buf), nil
}

func (r *memRegular) Mknod(string, uint32) error    { return ErrNotDir }
func (r *memRegular) Find(string) (Inode, bool)     { return nil, false }
func (r *memRegular) List() ([]string, error)       { return nil, ErrNotDir }
func (r *memRegular) LoadChildrenFromDisk() error   { return nil }
func (r *memRegular) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = nil
	return nil
}
func (r *memRegular) Meta() Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Metadata{InodeID: r.id, Size: int64(len(r.data))}
}

// root is the single in-memory filesystem root every process's absolute
// paths resolve against, standing in for the real mounted root
// filesystem spec.md section 1 excludes.
var root = NewMemDir()

// Root returns the kernel-wide filesystem root.
func Root() *MemDir { return root }

// InodeFile adapts an Inode into a File with its own seek offset and a
// separate directory-iteration cursor (getdents64's resume point),
// mirroring how original_source/os/src/fs/file.rs wraps an inode
// reference with per-open-file-description state.
type InodeFile struct {
	inode  Inode
	pos    int64
	dirPos int
	r, w   bool
}

func NewInodeFile(inode Inode, readable, writable bool) *InodeFile {
	return &InodeFile{inode: inode, r: readable, w: writable}
}

func (f *InodeFile) Inode() Inode  { return f.inode }
func (f *InodeFile) Readable() bool { return f.r }
func (f *InodeFile) Writable() bool { return f.w }

func (f *InodeFile) Read(ctx context.Context, buf []byte) (int, error) {
	n, err := f.inode.Read(ctx, f.pos, buf)
	f.pos += int64(n)
	return n, err
}

func (f *InodeFile) Write(ctx context.Context, buf []byte) (int, error) {
	n, err := f.inode.Write(ctx, f.pos, buf)
	f.pos += int64(n)
	return n, err
}

func (f *InodeFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case SeekSet:
		f.pos = offset
	case SeekCur:
		f.pos += offset
	case SeekEnd:
		f.pos = f.inode.Meta().Size + offset
	}
	return f.pos, nil
}

func (f *InodeFile) Ioctl(uintptr, uintptr) (uintptr, error) { return 0, nil }
func (f *InodeFile) Meta() Metadata                          { return f.inode.Meta() }

func (f *InodeFile) DirPos() int      { return f.dirPos }
func (f *InodeFile) SetDirPos(p int) { f.dirPos = p }

// Close is a no-op: memRegular/MemDir hold no host resources to release.
func (f *InodeFile) Close() error { return nil }
