package vfs

import (
	"context"
	"io"
)

// MemFile is a seekable in-memory File backing mmap's file-backed path
// and tests; a stand-in for the out-of-scope concrete filesystems.
type MemFile struct {
	data []byte
	pos  int64
	r, w bool
}

func NewMemFile(data []byte, readable, writable bool) *MemFile {
	return &MemFile{data: append([]byte(nil), data...), r: readable, w: writable}
}

func (f *MemFile) Readable() bool { return f.r }
func (f *MemFile) Writable() bool { return f.w }

func (f *MemFile) Read(_ context.Context, buf []byte) (int, error) {
	if !f.r {
		return 0, io.ErrClosedPipe
	}
	if f.pos >= int64(len(f.data)) {
		return 0, nil
	}
	n := copy(buf, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *MemFile) Write(_ context.Context, buf []byte) (int, error) {
	if !f.w {
		return 0, io.ErrClosedPipe
	}
	end := f.pos + int64(len(buf))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	n := copy(f.data[f.pos:end], buf)
	f.pos = end
	return n, nil
}

func (f *MemFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = f.pos
	case SeekEnd:
		base = int64(len(f.data))
	}
	f.pos = base + offset
	return f.pos, nil
}

func (f *MemFile) Ioctl(uintptr, uintptr) (uintptr, error) { return 0, nil }

func (f *MemFile) Meta() Metadata {
	return Metadata{Size: int64(len(f.data))}
}

func (f *MemFile) Close() error { return nil }

// TTYFile is the console stand-in spec.md section 1 treats as an
// external "console SBI glue" collaborator; fds 0/1/2 of a fresh process
// are TTYFile instances writing to/reading from the supplied streams.
type TTYFile struct {
	In  io.Reader
	Out io.Writer
}

func (t *TTYFile) Readable() bool { return t.In != nil }
func (t *TTYFile) Writable() bool { return t.Out != nil }

func (t *TTYFile) Read(_ context.Context, buf []byte) (int, error) {
	if t.In == nil {
		return 0, io.ErrClosedPipe
	}
	return t.In.Read(buf)
}

func (t *TTYFile) Write(_ context.Context, buf []byte) (int, error) {
	if t.Out == nil {
		return 0, io.ErrClosedPipe
	}
	return t.Out.Write(buf)
}

func (t *TTYFile) Seek(int64, int) (int64, error) { return 0, nil }
func (t *TTYFile) Ioctl(uintptr, uintptr) (uintptr, error) { return 0, nil }
func (t *TTYFile) Meta() Metadata                          { return Metadata{Mode: 0o20000} }
func (t *TTYFile) Close() error                            { return nil }
