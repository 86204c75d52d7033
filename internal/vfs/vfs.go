// Package vfs defines the minimal Inode/File surface the kernel core
// consumes (spec.md section 3/6): "the core interacts with these only
// through these operations; concrete implementations are external."
//
// Concrete filesystems (ext4, FAT32, devfs, procfs) are explicitly out of
// scope (spec.md section 1); this package only carries the trait
// boundary plus a couple of trivial in-memory backends (auxv readback,
// a tty stand-in) the syscall layer and its tests need to exercise the
// boundary end-to-end.
package vfs

import "context"

// Metadata is the subset of file/inode metadata the syscall layer's
// fstat/newfstatat handlers need.
type Metadata struct {
	InodeID uint64
	Size    int64
	Mode    uint32
	IsDir   bool
}

// Inode is the filesystem-node surface (spec.md section 3).
type Inode interface {
	Read(ctx context.Context, offset int64, buf []byte) (int, error)
	Write(ctx context.Context, offset int64, buf []byte) (int, error)
	Mknod(name string, mode uint32) error
	Find(name string) (Inode, bool)
	List() ([]string, error)
	LoadChildrenFromDisk() error
	Clear() error
	Meta() Metadata
}

// File wraps an inode (or a device/pipe) with open-file state: an
// independent seek offset and read/write capability (spec.md section 3).
type File interface {
	Readable() bool
	Writable() bool
	Read(ctx context.Context, buf []byte) (int, error)
	Write(ctx context.Context, buf []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Ioctl(cmd uintptr, arg uintptr) (uintptr, error)
	Meta() Metadata
	Close() error
}

// whence values, matching io.Seeker's convention the teacher's own
// seekable types (internal/vfs/osdir.go, pre-trim) used.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)
