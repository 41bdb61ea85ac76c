// Package sched implements rrt0, the cooperative round-robin scheduler
// from spec.md §4.7: four task queues (dormant/ready/waiting/suspended),
// tick-driven sleep wakeups, and priority-ordered, timeslice-bounded
// dispatch. There is exactly one scheduler type; the "thin convenience"
// spec.md §9 allows for a concurrent-sample front-end is realized
// directly as cmd/mrbcvm's multi-file run mode on top of this package,
// not as a second scheduling implementation.
package sched

import (
	"context"
	"errors"
	"sync"

	"github.com/mrbc-go/mrbcvm/pkg/alloc"
	"github.com/mrbc-go/mrbcvm/pkg/builtin"
	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/hal"
	"github.com/mrbc-go/mrbcvm/pkg/rite"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
	"github.com/mrbc-go/mrbcvm/pkg/vm"
)

// ErrNoTasks names the condition of a scheduler with nothing in any
// queue. Run does not return it: Run returns nil once no task is ready
// or waiting.
var ErrNoTasks = errors.New("sched: no tasks")

// Config holds rrt0's compile-time knobs as runtime fields, per
// SPEC_FULL.md §6's "every compile-time knob becomes a Config field"
// convention.
type Config struct {
	// TimesliceTickCount bounds how many preemption-point credits Run
	// grants a task before re-queuing it at the tail of its priority
	// class (spec.md's TIMESLICE_TICK_COUNT).
	TimesliceTickCount int
	// VM is the per-task interpreter configuration, forwarded to every
	// vm.New call CreateTask makes.
	VM vm.Config
}

// DefaultConfig returns spec.md's stated defaults.
func DefaultConfig() Config {
	return Config{TimesliceTickCount: 10, VM: vm.DefaultConfig()}
}

// Scheduler is rrt0: the four queues plus the process-wide state every
// task's VM shares (heap, symbols, classes) and the HAL it drives
// puts/print/p and idle-wait through.
type Scheduler struct {
	mu sync.Mutex

	cfg  Config
	hal  hal.HAL
	tick uint32

	pool     *alloc.Pool
	heap     *value.Heap
	symbols  *symbol.Table
	registry *class.Registry
	classes  *builtin.Classes

	nextID uint16

	dormant, ready, waiting, suspended []*TCB
}

// New creates a scheduler sharing the given process-wide VM state and
// driving h for stdout and idle-wait.
func New(h hal.HAL, pool *alloc.Pool, heap *value.Heap, symbols *symbol.Table, registry *class.Registry, classes *builtin.Classes, cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg, hal: h, pool: pool, heap: heap, symbols: symbols, registry: registry, classes: classes}
}

// CreateTask loads irep into a fresh VM and places its TCB directly on
// the ready queue, per spec.md's create_task contract ("load bytecode
// into a fresh VM, move its TCB to ready").
func (s *Scheduler) CreateTask(irep *rite.IREP, priority uint8) *TCB {
	var t *TCB
	hal.CriticalSection(&s.mu, func() {
		// Ids start at 1: owner 0 is what every untagged block carries,
		// so a task with id 0 would reclaim blocks it never owned.
		s.nextID++
		id := s.nextID
		machine := vm.New(id, s.heap, s.symbols, s.registry, s.classes, hal.Writer(s.hal, hal.FDStdout), s.cfg.VM)
		machine.Start(irep, value.Nil)
		t = &TCB{VM: machine, Priority: priority, State: Ready}
		s.ready = append(s.ready, t)
	})
	return t
}

// Tick advances the monotonic counter and promotes any waiting task
// whose deadline has arrived to ready (spec.md's tick() contract). It is
// the one method called from the hal.TickSource goroutine, so every
// queue touch here goes through the same mutex Run uses.
func (s *Scheduler) Tick() {
	hal.CriticalSection(&s.mu, func() {
		s.tick++
		kept := s.waiting[:0]
		for _, t := range s.waiting {
			if t.WakeTick <= s.tick {
				t.State = Ready
				s.ready = append(s.ready, t)
			} else {
				kept = append(kept, t)
			}
		}
		s.waiting = kept
	})
}

// pickReady removes and returns the highest-priority ready task (lowest
// Priority value), ties broken by queue order: among equal priorities the
// earliest-inserted entry is returned, matching spec.md invariant 7.
// Caller must hold s.mu.
func (s *Scheduler) pickReady() *TCB {
	if len(s.ready) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(s.ready); i++ {
		if s.ready[i].Priority < s.ready[best].Priority {
			best = i
		}
	}
	t := s.ready[best]
	s.ready = append(s.ready[:best], s.ready[best+1:]...)
	return t
}

// Run is rrt0's main loop: repeatedly pick the highest-priority ready
// task, advance it up to a timeslice of preemption credits, and either
// terminate it or requeue it at the tail of its priority class. Returns
// when no task remains ready or waiting, or when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		t := s.pickReady()
		noneWaiting := len(s.waiting) == 0
		s.mu.Unlock()

		if t == nil {
			if noneWaiting {
				return nil
			}
			s.hal.IdleCPU()
			continue
		}

		t.State = Running
		status, err := t.VM.Resume(s.cfg.TimesliceTickCount)

		if err != nil || status == vm.StatusDone {
			hal.CriticalSection(&s.mu, func() {
				t.State = Dormant
				s.dormant = append(s.dormant, t)
				s.pool.FreeAll(t.VM.ID)
			})
			continue
		}

		if status == vm.StatusSleep {
			s.Sleep(t, t.VM.SleepTicks())
			continue
		}
		// StatusRelinquish (voluntary yield) and StatusSuspended
		// (timeslice exhausted at a preemption point) both return the
		// task to the tail of its priority class.
		s.Relinquish(t)
	}
}

// Sleep moves t from Running/Ready to Waiting until ms have elapsed,
// computed against the scheduler's own tick counter (spec.md's
// wake = tick + ceil(ms / TICK_UNIT); ms is already expressed in ticks
// here since Config carries no separate TICK_UNIT — callers convert).
func (s *Scheduler) Sleep(t *TCB, ticks uint32) {
	hal.CriticalSection(&s.mu, func() {
		s.ready = removeTCB(s.ready, t)
		t.State = Waiting
		t.WakeTick = s.tick + ticks
		s.waiting = append(s.waiting, t)
	})
}

// Relinquish gives up the remainder of t's current slice, returning it to
// the tail of its priority class.
func (s *Scheduler) Relinquish(t *TCB) {
	hal.CriticalSection(&s.mu, func() {
		t.State = Ready
		s.ready = append(s.ready, t)
	})
}

// Suspend moves t out of scheduling entirely until Resume is called. t
// may currently be Ready or Waiting; it's removed from whichever queue
// holds it.
func (s *Scheduler) Suspend(t *TCB) {
	hal.CriticalSection(&s.mu, func() {
		s.ready = removeTCB(s.ready, t)
		s.waiting = removeTCB(s.waiting, t)
		t.State = Suspended
		s.suspended = append(s.suspended, t)
	})
}

// Resume moves a previously Suspended task back to ready.
func (s *Scheduler) Resume(t *TCB) {
	hal.CriticalSection(&s.mu, func() {
		s.suspended = removeTCB(s.suspended, t)
		t.State = Ready
		s.ready = append(s.ready, t)
	})
}

// Terminate moves t to dormant and reclaims every allocation it owns via
// the allocator's per-VM-id bulk free, per spec.md's "Cancellation": no
// finalizers run.
func (s *Scheduler) Terminate(t *TCB) {
	hal.CriticalSection(&s.mu, func() {
		s.ready = removeTCB(s.ready, t)
		s.waiting = removeTCB(s.waiting, t)
		s.suspended = removeTCB(s.suspended, t)
		t.State = Dormant
		s.dormant = append(s.dormant, t)
		s.pool.FreeAll(t.VM.ID)
	})
}

func removeTCB(list []*TCB, t *TCB) []*TCB {
	if t == nil {
		return list
	}
	out := list[:0]
	for _, cur := range list {
		if cur != t {
			out = append(out, cur)
		}
	}
	return out
}
