// Package vm implements the register-machine interpreter: opcode
// dispatch, call frames, and exception unwinding, per spec.md §4.5.
package vm

import (
	"errors"
	"io"

	"github.com/mrbc-go/mrbcvm/pkg/builtin"
	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

// Config holds the per-VM compile-time limits from spec.md §6's
// configuration option list.
type Config struct {
	MaxRegsSize       int
	MaxExceptionCount int // bounds frame depth; the per-frame rescue stack is not bounded by it
}

// DefaultConfig returns spec.md's stated defaults (16 exception levels;
// an unbounded-in-spec register file capped here at a generous size).
func DefaultConfig() Config {
	return Config{MaxRegsSize: 256, MaxExceptionCount: 16}
}

// ErrStackOverflow is raised when a call would exceed Config.MaxExceptionCount
// frames, standing in for spec.md's bounded frame stack.
var ErrStackOverflow = errors.New("vm: call stack exceeded configured depth")

// ErrUnhandledException is returned by Resume when a raised exception finds
// no matching rescue anywhere on the frame stack.
type ErrUnhandledException struct {
	Value value.Value
	VM    *VM
}

func (e *ErrUnhandledException) Error() string {
	return "unhandled exception: " + builtin.ToS(e.VM, e.Value)
}

// rubyError wraps a raised exception value so it can travel through Go's
// error return path from a native method up to the unwinder, and be
// told apart from a genuine host failure (e.g. allocator exhaustion).
type rubyError struct{ value value.Value }

func (e *rubyError) Error() string { return "ruby exception" }

// sleepRequest and relinquishRequest travel the same error-return path
// as rubyError, from Kernel#sleep/#relinquish up to step()'s SEND case,
// which recognizes them and reports StatusSleep/StatusRelinquish instead
// of treating them as a raised exception (spec.md §4.7's sleep_ms and
// relinquish primitives).
type sleepRequest struct{ ticks uint32 }

func (e *sleepRequest) Error() string { return "vm: sleep requested" }

type relinquishRequest struct{}

func (e *relinquishRequest) Error() string { return "vm: relinquish requested" }

// VM is one task's interpreter state (spec.md §3 "VM state"): register
// windows live per-frame (see Frame), plus the process-wide singletons
// (heap, symbols, class registry) it shares with every other VM.
type VM struct {
	ID uint16

	heap     *value.Heap
	symbols  *symbol.Table
	registry *class.Registry
	classes  *builtin.Classes
	stdout   io.Writer
	cfg      Config

	frames  []*Frame
	globals map[symbol.ID]value.Value

	// syncResult is how invoke/callBlockFrame's drain loop retrieves a
	// synchronously-invoked frame's return value; see popFrame's
	// syncTarget case.
	syncResult value.Value

	// sleepTicks is set by the SEND case when execSend surfaces a
	// sleepRequest; the scheduler reads it via SleepTicks after Resume
	// returns StatusSleep.
	sleepTicks uint32

	Exc value.Value // last raised exception, visible to the host after an unhandled raise
}

// New constructs a VM sharing the given process-wide state. id is the
// owner tag SetOwner puts on the heap values this VM's opcodes create,
// for alloc.Pool.FreeAll on termination.
func New(id uint16, heap *value.Heap, symbols *symbol.Table, registry *class.Registry, classes *builtin.Classes, stdout io.Writer, cfg Config) *VM {
	return &VM{
		ID:       id,
		heap:     heap,
		symbols:  symbols,
		registry: registry,
		classes:  classes,
		stdout:   stdout,
		cfg:        cfg,
		globals:    make(map[symbol.ID]value.Value),
		syncResult: value.Nil,
		Exc:        value.Nil,
	}
}

func (v *VM) Heap() *value.Heap         { return v.heap }
func (v *VM) Symbols() *symbol.Table    { return v.symbols }
func (v *VM) Registry() *class.Registry { return v.registry }
func (v *VM) Stdout() io.Writer         { return v.stdout }
func (v *VM) Classes() *builtin.Classes { return v.classes }

// SleepTicks reports the duration requested by the most recent
// Kernel#sleep call that produced a StatusSleep return from Resume.
func (v *VM) SleepTicks() uint32 { return v.sleepTicks }

// Sleep implements class.Context's scheduler primitive: Kernel#sleep
// calls this, and the sentinel error it returns is intercepted by the
// SEND opcode handler in exec.go rather than unwound as an exception.
func (v *VM) Sleep(ticks uint32) error { return &sleepRequest{ticks: ticks} }

// Relinquish implements class.Context's scheduler primitive: Kernel#
// relinquish calls this to give up the remainder of the task's slice
// immediately, the same way Sleep does for a timed wait.
func (v *VM) Relinquish() error { return &relinquishRequest{} }

// Raise constructs an exception of the given class carrying message and
// returns it wrapped as a Go error understood by the unwinder in
// exec.go. Native methods call this and return its result directly.
func (v *VM) Raise(cls *class.Class, message string) error {
	exc, err := builtin.NewException(v.heap, v.symbols, v.classes.String, cls, message)
	if err != nil {
		return err
	}
	return &rubyError{value: exc}
}

// CallBlock invokes block (a Proc value produced by a SEND's trailing
// block argument) as a fresh frame running to completion, for native
// iterators like Integer#times and Array#each.
func (v *VM) CallBlock(block value.Value, args []value.Value) (value.Value, error) {
	if block.Tag != value.TagProc {
		return value.Value{}, v.Raise(v.classes.TypeError, "no block given")
	}
	irep, ok := v.heap.ProcBody(block)
	if !ok {
		return value.Value{}, v.Raise(v.classes.TypeError, "block has no body")
	}
	self := v.heap.ProcSelf(block)
	captured := v.heap.ProcCaptured(block)
	return v.callBlockFrame(irep, self, captured, args)
}

// SetOwner tags val's backing block with v.ID, enabling free_all on
// termination (spec.md §5 "Cancellation"). The container, string,
// range and proc opcodes call it on each value they create; values
// allocated inside native methods are left untagged.
func (v *VM) SetOwner(val value.Value) { v.heap.SetOwner(val, v.ID) }
