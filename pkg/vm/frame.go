package vm

import (
	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/rite"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

// Frame is one call-frame pushed on method entry (spec.md §3 "Call
// frame"): the callee's own register window, its IREP/PC, where to
// deliver its return value, and its rescue-handler stack.
type Frame struct {
	IREP *rite.IREP
	PC   int
	Regs []value.Value

	Self  value.Value
	Block value.Value
	// RecvClass is the class method resolution started from, consulted
	// by SUPER to resume the walk one level up.
	RecvClass *class.Class

	// CallerTarget is the register index in the parent frame that
	// RETURN's value is copied into. -1 for the outermost frame.
	CallerTarget int

	// RescuePCs is the per-frame ONERR/POPERR handler stack; a RAISE
	// unwinds frames until one has a non-empty stack.
	RescuePCs []int
}

// newFrame allocates a frame's register window, sized to the IREP's
// declared count (at least LocalCount+1). Config.MaxRegsSize is not
// checked here or by any caller.
func newFrame(irep *rite.IREP, self, block value.Value, recvClass *class.Class, callerTarget int) *Frame {
	n := irep.RegisterCount
	if n < irep.LocalCount+1 {
		n = irep.LocalCount + 1
	}
	return &Frame{
		IREP:         irep,
		Regs:         make([]value.Value, n),
		Self:         self,
		Block:        block,
		RecvClass:    recvClass,
		CallerTarget: callerTarget,
	}
}
