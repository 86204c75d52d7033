package task

import (
	"sync"
	"weak"
)

// ProcessTable is the process-wide registry of every live process,
// indexed by pid, holding only weak references (spec.md section 9:
// "the process table holds weak references indexed by pid"). Grounded
// on original_source/os/src/task/task.rs's PROCESS_MANAGER, a
// Mutex<BTreeMap<pid, Weak<ProcessControlBlock>>>.
type ProcessTable struct {
	mu    sync.Mutex
	procs map[uint64]weak.Pointer[Process]
}

var globalTable = &ProcessTable{procs: make(map[uint64]weak.Pointer[Process])}

// GlobalTable returns the kernel-wide process table singleton.
func GlobalTable() *ProcessTable { return globalTable }

// Register records p under its own pid, called once per process at
// creation (NewInitProcess, Fork).
func (t *ProcessTable) Register(p *Process) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.procs[p.PID()] = weak.Make(p)
}

// Unregister drops pid's entry once the process has been reaped
// (wait4's pid-handle release point).
func (t *ProcessTable) Unregister(pid uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.procs, pid)
}

// Get resolves pid to its Process, or ok=false if it never existed or
// has already been garbage-collected.
func (t *ProcessTable) Get(pid uint64) (*Process, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.procs[pid]
	if !ok {
		return nil, false
	}
	p := w.Value()
	return p, p != nil
}

// All returns every still-live process, the iteration spec.md 4.9's
// kill(pid==0) and kill(pid==1) broadcast forms walk.
func (t *ProcessTable) All() []*Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Process, 0, len(t.procs))
	for _, w := range t.procs {
		if p := w.Value(); p != nil {
			out = append(out, p)
		}
	}
	return out
}
