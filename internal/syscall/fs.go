package syscall

import (
	"bytes"
	"context"
	"strings"

	"arona/internal/errno"
	"arona/internal/mm"
	"arona/internal/task"
	"arona/internal/vfs"
)

// open(2) flag bits, standard Linux numbering (spec.md 4.8's openat).
const (
	OAccMode  = 0o3
	ORdonly   = 0o0
	OWronly   = 0o1
	ORdwr     = 0o2
	OCreat    = 0o100
	OExcl     = 0o200
	OTrunc    = 0o1000
	OAppend   = 0o2000
	ODirectory = 0o200000
	OCloexec  = 0o2000000
)

// ATFDCWD is the dirfd sentinel meaning "resolve relative to the
// caller's cwd" (spec.md 4.8's *at() family).
const ATFDCWD = -100

const maxCStringLen = 4096

func readCString(ms *mm.MemorySet, va uint64) (string, error) {
	const chunk = 256
	for total := chunk; total <= maxCStringLen; total += chunk {
		b, err := ms.CopyIn(va, total)
		if err != nil {
			return "", err
		}
		if i := bytes.IndexByte(b, 0); i >= 0 {
			return string(b[:i]), nil
		}
	}
	return "", errno.ENAMETOOLONG
}

func vfsErrno(err error) error {
	switch err {
	case vfs.ErrExist:
		return errno.EEXIST
	case vfs.ErrNotExist:
		return errno.ENOENT
	case vfs.ErrNotDir:
		return errno.ENOTDIR
	case vfs.ErrIsDir:
		return errno.EISDIR
	case vfs.ErrNotEmpty:
		return errno.ENOTEMPTY
	default:
		return errno.From(err)
	}
}

func splitPath(path string) []string {
	var out []string
	for _, p := range strings.Split(path, "/") {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}

// startDir resolves dirfd to the directory a relative path walks from
// (spec.md 4.8's *at() dirfd convention).
func startDir(process *task.Process, dirfd int64) (*vfs.MemDir, error) {
	if dirfd == ATFDCWD {
		return walkDir(vfs.Root(), process.CWD())
	}
	f, err := process.FDs.Get(int(dirfd))
	if err != nil {
		return nil, err
	}
	inf, ok := f.(*vfs.InodeFile)
	if !ok {
		return nil, errno.ENOTDIR
	}
	dir, ok := inf.Inode().(*vfs.MemDir)
	if !ok {
		return nil, errno.ENOTDIR
	}
	return dir, nil
}

func walkDir(from *vfs.MemDir, path string) (*vfs.MemDir, error) {
	dir := from
	if strings.HasPrefix(path, "/") {
		dir = vfs.Root()
	}
	for _, part := range splitPath(path) {
		if part == ".." {
			continue // no parent-directory edges are tracked (spec.md's Non-goal of full path resolution semantics)
		}
		child, ok := dir.Find(part)
		if !ok {
			return nil, errno.ENOENT
		}
		sub, ok := child.(*vfs.MemDir)
		if !ok {
			return nil, errno.ENOTDIR
		}
		dir = sub
	}
	return dir, nil
}

// resolveParent walks every path component but the last, returning the
// containing directory and the final component's name.
func resolveParent(process *task.Process, dirfd int64, path string) (*vfs.MemDir, string, error) {
	start, err := startDir(process, dirfd)
	if err != nil {
		return nil, "", err
	}
	if strings.HasPrefix(path, "/") {
		start = vfs.Root()
	}
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, "", errno.EINVAL
	}
	dir := start
	for _, part := range parts[:len(parts)-1] {
		child, ok := dir.Find(part)
		if !ok {
			return nil, "", errno.ENOENT
		}
		sub, ok := child.(*vfs.MemDir)
		if !ok {
			return nil, "", errno.ENOTDIR
		}
		dir = sub
	}
	return dir, parts[len(parts)-1], nil
}

func sysGetcwd(process *task.Process, bufVA, size uint64) (uint64, error) {
	cwd := process.CWD()
	if uint64(len(cwd)+1) > size {
		return 0, errno.ERANGE
	}
	if err := process.MM.CopyOutString(bufVA, cwd); err != nil {
		return 0, err
	}
	return bufVA, nil
}

func sysChdir(process *task.Process, pathVA uint64) (uint64, error) {
	path, err := readCString(process.MM, pathVA)
	if err != nil {
		return 0, err
	}
	if _, err := walkDir(mustCWDDir(process), path); err != nil {
		return 0, err
	}
	newCWD := path
	if !strings.HasPrefix(path, "/") {
		newCWD = joinPath(process.CWD(), path)
	}
	process.SetCWD(newCWD)
	return 0, nil
}

func mustCWDDir(process *task.Process) *vfs.MemDir {
	dir, err := walkDir(vfs.Root(), process.CWD())
	if err != nil {
		return vfs.Root()
	}
	return dir
}

func joinPath(base, rel string) string {
	if base == "/" {
		return "/" + rel
	}
	return base + "/" + rel
}

func sysOpenat(process *task.Process, dirfd int64, pathVA uint64, flags, mode uint32) (uint64, error) {
	path, err := readCString(process.MM, pathVA)
	if err != nil {
		return 0, err
	}
	parent, name, err := resolveParent(process, dirfd, path)
	if err != nil {
		return 0, err
	}
	child, ok := parent.Find(name)
	if !ok {
		if flags&OCreat == 0 {
			return 0, errno.ENOENT
		}
		if err := parent.Mknod(name, mode&^DirModeBits); err != nil {
			return 0, vfsErrno(err)
		}
		child, _ = parent.Find(name)
	} else if flags&OCreat != 0 && flags&OExcl != 0 {
		return 0, errno.EEXIST
	} else if flags&OTrunc != 0 {
		child.Clear()
	}

	readable := flags&OAccMode != OWronly
	writable := flags&OAccMode == OWronly || flags&OAccMode == ORdwr
	f := vfs.NewInodeFile(child, readable, writable)
	fd := process.FDs.Alloc(f, flags&OCloexec != 0)
	return uint64(fd), nil
}

// DirModeBits masks out the S_IFDIR bit callers sometimes OR into a
// regular-file mode argument by mistake; directories are only created by
// mkdirat, never openat(O_CREAT).
const DirModeBits = vfs.DirMode

func sysMkdirat(process *task.Process, dirfd int64, pathVA uint64, mode uint32) (uint64, error) {
	path, err := readCString(process.MM, pathVA)
	if err != nil {
		return 0, err
	}
	parent, name, err := resolveParent(process, dirfd, path)
	if err != nil {
		return 0, err
	}
	if err := parent.Mknod(name, mode|vfs.DirMode); err != nil {
		return 0, vfsErrno(err)
	}
	return 0, nil
}

func sysUnlinkat(process *task.Process, dirfd int64, pathVA uint64, flags uint32) (uint64, error) {
	path, err := readCString(process.MM, pathVA)
	if err != nil {
		return 0, err
	}
	parent, name, err := resolveParent(process, dirfd, path)
	if err != nil {
		return 0, err
	}
	if err := parent.Unlink(name); err != nil {
		return 0, vfsErrno(err)
	}
	return 0, nil
}

func sysClose(process *task.Process, fd int) (uint64, error) {
	return 0, process.FDs.Close(fd)
}

func sysDup(process *task.Process, fd int) (uint64, error) {
	f, err := process.FDs.Get(fd)
	if err != nil {
		return 0, err
	}
	return uint64(process.FDs.Alloc(f, false)), nil
}

func sysDup3(process *task.Process, oldfd, newfd int) (uint64, error) {
	f, err := process.FDs.Get(oldfd)
	if err != nil {
		return 0, err
	}
	process.FDs.AllocAt(newfd, f, false)
	return uint64(newfd), nil
}

// sysPipe2 is not implemented: this kernel's vfs surface (spec.md
// section 1's "concrete filesystems external") has no pipe/FIFO backend,
// and none of the retrieval pack's examples show one either. Returns
// ENOSYS rather than silently fabricating a half-working pipe.
func sysPipe2(process *task.Process, fdsVA uint64) (uint64, error) {
	return 0, errno.ENOSYS
}

func sysRead(process *task.Process, fd int, bufVA, count uint64) (uint64, error) {
	f, err := process.FDs.Get(fd)
	if err != nil {
		return 0, err
	}
	if !f.Readable() {
		return 0, errno.EBADF
	}
	buf := make([]byte, count)
	n, rerr := f.Read(context.Background(), buf)
	if rerr != nil && n == 0 {
		return 0, vfsErrno(rerr)
	}
	if err := process.MM.CopyOut(bufVA, buf[:n]); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func sysWrite(process *task.Process, fd int, bufVA, count uint64) (uint64, error) {
	f, err := process.FDs.Get(fd)
	if err != nil {
		return 0, err
	}
	if !f.Writable() {
		return 0, errno.EBADF
	}
	data, err := process.MM.CopyIn(bufVA, int(count))
	if err != nil {
		return 0, err
	}
	n, werr := f.Write(context.Background(), data)
	if werr != nil && n == 0 {
		return 0, vfsErrno(werr)
	}
	return uint64(n), nil
}

// Stat mirrors struct stat's fields this kernel actually populates; the
// rest (uid/gid/timestamps/block counts) are zero, matching the
// original source's fstat which only ever fills ino/mode/size.
type Stat struct {
	Dev     uint64
	Ino     uint64
	Mode    uint32
	Nlink   uint32
	UID     uint32
	GID     uint32
	Rdev    uint64
	_       uint64
	Size    int64
	Blksize uint32
	_       uint32
	Blocks  uint64
}

func sysFstat(process *task.Process, fd int, statVA uint64) (uint64, error) {
	f, err := process.FDs.Get(fd)
	if err != nil {
		return 0, err
	}
	meta := f.Meta()
	mode := meta.Mode
	if mode == 0 {
		mode = 0o100644
	}
	st := Stat{Ino: meta.InodeID, Mode: mode, Nlink: 1, Size: meta.Size, Blksize: mm.PageSize}
	return 0, writeStat(process, statVA, st)
}

func writeStat(process *task.Process, va uint64, st Stat) error {
	buf := make([]byte, 128)
	putU64(buf[0:], st.Dev)
	putU64(buf[8:], st.Ino)
	putU32(buf[16:], st.Mode)
	putU32(buf[20:], st.Nlink)
	putU32(buf[24:], st.UID)
	putU32(buf[28:], st.GID)
	putU64(buf[32:], st.Rdev)
	putU64(buf[48:], uint64(st.Size))
	putU32(buf[56:], st.Blksize)
	putU64(buf[64:], st.Blocks)
	return process.MM.CopyOut(va, buf)
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// dirent64 layout: ino(8) off(8) reclen(2) type(1) name[](NUL-terminated,
// padded to 8-byte reclen), matching Linux's struct linux_dirent64.
func writeDirent64(buf *bytes.Buffer, ino uint64, off int64, dtype uint8, name string) {
	nameBytes := append([]byte(name), 0)
	reclen := 19 + len(nameBytes)
	if pad := reclen % 8; pad != 0 {
		reclen += 8 - pad
	}
	rec := make([]byte, reclen)
	putU64(rec[0:], ino)
	putU64(rec[8:], uint64(off))
	rec[16] = byte(reclen)
	rec[17] = byte(reclen >> 8)
	rec[18] = dtype
	copy(rec[19:], nameBytes)
	buf.Write(rec)
}

const (
	dtUnknown = 0
	dtDir     = 4
	dtReg     = 8
)

func sysGetdents64(process *task.Process, fd int, bufVA, count uint64) (uint64, error) {
	f, err := process.FDs.Get(fd)
	if err != nil {
		return 0, err
	}
	inf, ok := f.(*vfs.InodeFile)
	if !ok {
		return 0, errno.ENOTDIR
	}
	dir, ok := inf.Inode().(*vfs.MemDir)
	if !ok {
		return 0, errno.ENOTDIR
	}
	names, _ := dir.List()
	pos := inf.DirPos()

	var out bytes.Buffer
	for pos < len(names) {
		name := names[pos]
		child, ok := dir.Find(name)
		if !ok {
			pos++
			continue
		}
		dtype := uint8(dtReg)
		if child.Meta().IsDir {
			dtype = dtDir
		}
		before := out.Len()
		writeDirent64(&out, child.Meta().InodeID, int64(pos+1), dtype, name)
		if uint64(out.Len()) > count {
			out.Truncate(before)
			break
		}
		pos++
	}
	inf.SetDirPos(pos)
	if err := process.MM.CopyOut(bufVA, out.Bytes()); err != nil {
		return 0, err
	}
	return uint64(out.Len()), nil
}
