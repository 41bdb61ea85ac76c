package vm

import (
	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/rite"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

// syncTarget marks a pushed frame as a synchronous Go-side call (from
// invoke or CallBlock) rather than one reached via a SEND/SUPER
// instruction: its result is delivered through v.syncResult instead of
// a caller's register, since there is no bytecode-level caller frame to
// write into.
const syncTarget = -2

// invoke runs a resolved method to completion and returns its result.
// Native methods are plain Go calls; IREP-bodied methods run their own
// frame synchronously via the step loop, so a user-defined method that
// itself raises and is rescued by an enclosing frame still unwinds
// correctly before invoke returns.
func (v *VM) invoke(m class.Method, recv value.Value, recvClass *class.Class, block value.Value, args []value.Value) (value.Value, error) {
	if !m.IsIREP() {
		return m.Native(v, recv, block, args)
	}

	if len(v.frames) >= v.cfg.MaxExceptionCount {
		return value.Value{}, ErrStackOverflow
	}

	depth := len(v.frames)
	f := newFrame(m.Body, recv, block, recvClass, syncTarget)
	for i, a := range args {
		if i+1 < len(f.Regs) {
			f.Regs[i+1] = a
		}
	}
	v.frames = append(v.frames, f)

	for len(v.frames) > depth {
		_, err := v.step()
		if err != nil {
			return value.Value{}, err
		}
	}
	result := v.syncResult
	v.syncResult = value.Nil
	return result, nil
}

// callBlockFrame runs a Proc's body to completion, the CallBlock
// counterpart of invoke. captured (the register snapshot taken at
// block-creation time) is replayed into the new frame's registers
// ahead of the block's own parameters: register 0 is reserved (self is
// reached through f.Self, mruby-style), captured values occupy
// registers 1..len(captured), and the block's call-time args follow
// immediately after.
func (v *VM) callBlockFrame(irep *rite.IREP, self value.Value, captured, args []value.Value) (value.Value, error) {
	if len(v.frames) >= v.cfg.MaxExceptionCount {
		return value.Value{}, ErrStackOverflow
	}

	depth := len(v.frames)
	f := newFrame(irep, self, value.Empty, v.registry.ClassOf(self), syncTarget)
	reg := 1
	for _, c := range captured {
		if reg < len(f.Regs) {
			f.Regs[reg] = c
		}
		reg++
	}
	for _, a := range args {
		if reg < len(f.Regs) {
			f.Regs[reg] = a
		}
		reg++
	}
	v.frames = append(v.frames, f)

	for len(v.frames) > depth {
		if _, err := v.step(); err != nil {
			return value.Value{}, err
		}
	}
	result := v.syncResult
	v.syncResult = value.Nil
	return result, nil
}
