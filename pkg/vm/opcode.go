package vm

// Op is a single instruction's opcode. Operand shapes follow spec.md
// §4.5's naming (Z/B/BB/BBB/BS/S/W) but this package fixes concrete
// widths: register and small-count operands are one byte, symbol/pool
// indices and jump offsets are two bytes big-endian. There is no real
// mrbc-compiled fixture to byte-match against (spec.md §1's loader scope
// covers the container format, not the opcode encoding), so this is an
// original encoding carrying the same semantics.
type Op byte

const (
	OpNop Op = iota
	OpMove
	OpLoadI
	OpLoadNil
	OpLoadSelf
	OpLoadSym
	OpLoadL

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpLt
	OpLe
	OpGt
	OpGe

	OpGetConst
	OpSetConst
	OpGetIV
	OpSetIV
	OpGetGV
	OpSetGV

	OpSend
	OpSendB
	OpSuper

	OpEnter

	OpReturn
	OpReturnBlk

	OpJmp
	OpJmpIf
	OpJmpNot
	OpJmpNil

	OpArray
	OpHash
	OpStringLit
	OpRangeInc
	OpRangeExc
	OpMkProc

	OpRaise
	OpOnErr
	OpPopErr
	OpExcept
	OpRescue

	OpStop
)

// operandLen is the fixed byte length of each opcode's operand block,
// not counting the opcode byte itself. Shapes:
//
//	Z      no operands
//	B      1 register
//	BB     2 registers
//	BBB    3 registers (or 2 registers + 1 count)
//	BW     1 register + 1 wide (symbol/pool index)
//	BWB    1 register + 1 wide + 1 count
//	W      1 wide (jump offset or symbol index)
//	BW2    1 register + 2 wide (jump target dest register is R[B])
var operandLen = map[Op]int{
	OpNop:       0,
	OpMove:      2,
	OpLoadI:     3, // B, W(2)
	OpLoadNil:   1,
	OpLoadSelf:  1,
	OpLoadSym:   3,
	OpLoadL:     3,

	OpAdd: 2, OpSub: 2, OpMul: 2, OpDiv: 2, OpMod: 2,
	OpEq: 2, OpLt: 2, OpLe: 2, OpGt: 2, OpGe: 2,

	OpGetConst: 3, OpSetConst: 3,
	OpGetIV: 3, OpSetIV: 3,
	OpGetGV: 3, OpSetGV: 3,

	OpSend:  5, // B(recv/dest), W(2, name), argc(1), hasBlock(1)
	OpSendB: 4, // B, W(2, name), argc(1) -- block reg is always B+argc+1
	OpSuper: 4, // B, W(2, name), argc(1)

	OpEnter: 3, // req, opt, rest (counts)

	OpReturn:    1,
	OpReturnBlk: 1,

	OpJmp:    2,
	OpJmpIf:  3,
	OpJmpNot: 3,
	OpJmpNil: 3,

	OpArray:     3, // dest, src, count
	OpHash:      3, // dest, src, pairCount
	OpStringLit: 3, // dest, pool index (2)
	OpRangeInc:  3, // dest, begin, end
	OpRangeExc:  3,
	OpMkProc:    4, // dest, child-irep index, captured-src, captured-count

	OpRaise:  1,
	OpOnErr:  2, // jump offset (2)
	OpPopErr: 0,
	OpExcept: 1,
	OpRescue: 3, // dest, class-name symbol index (2)

	OpStop: 0,
}
