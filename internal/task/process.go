package task

import (
	"sync"
	"weak"

	"arona/internal/mm"
	"arona/internal/signal"
)

// Process owns the resources threads share: address space, fd table,
// cwd, and the parent/child tree. Grounded on
// original_source/os/src/task/task.rs's ProcessControlBlock, with the
// parent edge modeled as weak.Pointer[Process] (spec.md's "parent weak
// ref, children strong vector" — a child outliving its already-exited
// parent must not keep it pinned).
type Process struct {
	pidHandle Handle
	MM        *mm.MemorySet
	FDs       *FDTable
	Signals   *signal.Table

	mu       sync.Mutex
	cwd      string
	parent   weak.Pointer[Process]
	children []*Process
	threads  map[uint64]*Thread
	mainTID  uint64
	pgid     uint64
	exited   bool
	exitCode int
}

// newProcessShell allocates a pid and the resources common to every
// process (fd table, cwd); lifecycle.go fills in the memory set and
// first thread, since those need constructors this file would otherwise
// have to duplicate.
func newProcessShell() *Process {
	p := &Process{
		pidHandle: newPIDHandle(),
		FDs:       NewFDTable(),
		Signals:   signal.NewTable(),
		cwd:       "/",
		threads:   make(map[uint64]*Thread),
	}
	p.pgid = p.pidHandle.ID()
	return p
}

func (p *Process) PID() uint64 { return p.pidHandle.ID() }

func (p *Process) CWD() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cwd
}

func (p *Process) SetCWD(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cwd = path
}

func (p *Process) PGID() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pgid
}

func (p *Process) SetPGID(pgid uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pgid = pgid
}

func (p *Process) Parent() *Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parent.Value()
}

func (p *Process) setParent(parent *Process) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parent = weak.Make(parent)
}

func (p *Process) addChild(child *Process) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.children = append(p.children, child)
}

func (p *Process) Children() []*Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Process, len(p.children))
	copy(out, p.children)
	return out
}

// RemoveChild drops child from the children vector once wait4 has
// reaped it (spec.md 4.7 wait4 step 4).
func (p *Process) removeChild(child *Process) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.children {
		if c == child {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

// ReparentOrphans moves every child onto the init process when p exits
// (spec.md 4.7 exit step 3), matching original_source/os/src/task/task.rs.
func (p *Process) reparentOrphans(initProc *Process) {
	p.mu.Lock()
	kids := p.children
	p.children = nil
	p.mu.Unlock()
	for _, c := range kids {
		c.setParent(initProc)
		initProc.addChild(c)
	}
}

func (p *Process) Threads() []*Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Thread, 0, len(p.threads))
	for _, t := range p.threads {
		out = append(out, t)
	}
	return out
}

func (p *Process) MainThread() *Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.threads[p.mainTID]
}

func (p *Process) addThread(t *Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.threads) == 0 {
		p.mainTID = t.TID()
	}
	p.threads[t.TID()] = t
}

func (p *Process) removeThread(tid uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.threads, tid)
}

func (p *Process) ThreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}

func (p *Process) IsExited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *Process) markExited(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exited = true
	p.exitCode = code
}
