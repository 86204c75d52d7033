package vfs

import (
	"bytes"
	"context"
	"encoding/binary"
)

// AuxvFile backs /proc/self/auxv readback (spec.md section 8's round-trip
// law: "exec followed by read of /proc/self/auxv reproduces the aux
// vector layout"). Grounded on original_source/os/src/fs/procfs/*.rs,
// which exposes process introspection as small read-only generated
// buffers rather than a full procfs tree; this is the same shape scaled
// down to just the one table the round-trip law names.
type AuxvFile struct {
	MemFile
}

// NewAuxvFile encodes aux as a flat little-endian (tag, val) uint64 pair
// stream, the on-disk shape of Linux's /proc/*/auxv.
func NewAuxvFile(aux []AuxEntry) *AuxvFile {
	var buf bytes.Buffer
	for _, e := range aux {
		binary.Write(&buf, binary.LittleEndian, e.Tag)
		binary.Write(&buf, binary.LittleEndian, e.Val)
	}
	return &AuxvFile{MemFile: *NewMemFile(buf.Bytes(), true, false)}
}

// AuxEntry mirrors mm.AuxEntry without importing mm (vfs must stay a leaf
// package other subsystems depend on, never the reverse).
type AuxEntry struct {
	Tag uint64
	Val uint64
}

func (f *AuxvFile) Read(ctx context.Context, buf []byte) (int, error) {
	return f.MemFile.Read(ctx, buf)
}
