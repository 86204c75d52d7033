package mm

import "errors"

// ErrNoFrames is the frame allocator's exhaustion sentinel, matching the
// teacher's ErrHalt-style "define the error once, wrap with context at
// each call site" pattern (internal/hv/riscv/rv64/machine.go).
var ErrNoFrames = errors.New("mm: frame allocator exhausted")
