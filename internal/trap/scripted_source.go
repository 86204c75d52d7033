package trap

import "arona/internal/task"

// ScriptedEvent is one pre-recorded trap a ScriptedSource will report.
// TID labels the thread the event is written for; ScriptedSource does
// not read it.
type ScriptedEvent struct {
	TID   uint64
	Cause Cause
	Stval uint64
	// Patch, if non-nil, is applied to ctx before the event is reported
	// (the stand-in for "the user program's ecall set a7/a0..a5 to
	// this" or "the faulting store wrote through this address").
	Patch func(ctx *task.TrapContext)
}

// ScriptedSource is a Source test double: RunUntilTrap returns its
// events in order, whichever thread's ctx it is handed. A test that
// scripts threads separately gives each one its own ScriptedSource,
// mirroring how a real hart has exactly one register file live at a time.
type ScriptedSource struct {
	events []ScriptedEvent
	pos    int
}

func NewScriptedSource(events ...ScriptedEvent) *ScriptedSource {
	return &ScriptedSource{events: events}
}

func (s *ScriptedSource) RunUntilTrap(ctx *task.TrapContext, satp uint64) (Cause, uint64, error) {
	if s.pos >= len(s.events) {
		// Out of script: report an ecall to sys_exit(0) so a test that
		// under-scripts a thread terminates cleanly instead of hanging.
		ctx.X[task.RegA7] = 93
		ctx.X[task.RegA0] = 0
		return CauseUserEnvCall, 0, nil
	}
	ev := s.events[s.pos]
	s.pos++
	if ev.Patch != nil {
		ev.Patch(ctx)
	}
	return ev.Cause, ev.Stval, nil
}
