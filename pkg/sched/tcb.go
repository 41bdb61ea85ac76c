package sched

import "github.com/mrbc-go/mrbcvm/pkg/vm"

// State is a task's lifecycle stage (spec.md §3 "TCB"): dormant tasks
// haven't been started, ready ones are runnable, running is the single
// task currently holding the CPU, waiting ones are asleep on a tick
// deadline, and suspended ones were stopped by an explicit Suspend call.
type State int

const (
	Dormant State = iota
	Ready
	Running
	Waiting
	Suspended
)

func (s State) String() string {
	switch s {
	case Dormant:
		return "dormant"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Waiting:
		return "waiting"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// TCB is one task control block: the VM it drives, its scheduling
// priority, current lifecycle state, and the bookkeeping Sleep/tick()
// need to wake it again.
type TCB struct {
	VM       *vm.VM
	Priority uint8 // 1-255, lower value = higher priority
	State    State

	// WakeTick is the absolute tick at which a Waiting task becomes
	// Ready again; meaningless in any other state.
	WakeTick uint32
}
