package vm

import (
	"bytes"
	"testing"

	"github.com/mrbc-go/mrbcvm/pkg/alloc"
	"github.com/mrbc-go/mrbcvm/pkg/builtin"
	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/rite"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

// testEnv wires up the process-wide singletons (pool, symbols, registry,
// built-in classes) a VM needs, the way cmd/mrbcvm/main.go would at
// startup, scoped to one test.
type testEnv struct {
	symbols  *symbol.Table
	registry *class.Registry
	classes  *builtin.Classes
	heap     *value.Heap
	out      *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pool := alloc.NewPool(64*1024, alloc.DefaultConfig())
	symbols := symbol.New(pool, symbol.DefaultCapacity)
	registry := class.NewRegistry(symbols)
	classes := builtin.Init(registry, symbols)
	heap := value.NewHeap(pool)
	return &testEnv{symbols: symbols, registry: registry, classes: classes, heap: heap, out: &bytes.Buffer{}}
}

func (e *testEnv) newVM(t *testing.T) *VM {
	t.Helper()
	return New(1, e.heap, e.symbols, e.registry, e.classes, e.out, DefaultConfig())
}

func (e *testEnv) sym(t *testing.T, name string) symbol.ID {
	t.Helper()
	id, err := e.symbols.Intern(name)
	if err != nil {
		t.Fatalf("intern %q: %v", name, err)
	}
	return id
}

// asm is a tiny fluent instruction-stream builder so scenario tests read
// close to the bytecode they express instead of hand-counted byte offsets.
type asm struct{ code []byte }

func wide(n uint16) [2]byte { return [2]byte{byte(n >> 8), byte(n)} }

func (a *asm) emit(op Op, operands ...byte) *asm {
	a.code = append(a.code, byte(op))
	a.code = append(a.code, operands...)
	return a
}

func (a *asm) loadI(dst byte, n int16) *asm {
	w := wide(uint16(n))
	return a.emit(OpLoadI, dst, w[0], w[1])
}

func (a *asm) send(dst byte, nameIdx uint16, argc byte, hasBlock bool) *asm {
	w := wide(nameIdx)
	var hb byte
	if hasBlock {
		hb = 1
	}
	return a.emit(OpSend, dst, w[0], w[1], argc, hb)
}

func (a *asm) sendB(dst byte, nameIdx uint16, argc byte) *asm {
	w := wide(nameIdx)
	return a.emit(OpSendB, dst, w[0], w[1], argc)
}

func (a *asm) ret(src byte) *asm { return a.emit(OpReturn, src) }

// runToCompletion drains Resume one preemption credit at a time, as the
// scheduler would, and fails the test on any error.
func runToCompletion(t *testing.T, v *VM) {
	t.Helper()
	for {
		status, err := v.Resume(1)
		if err != nil {
			t.Fatalf("resume: %v", err)
		}
		if status == StatusDone {
			return
		}
	}
}

// TestSendArithmeticAndPuts covers scenario S1 (puts 1 + 2): LOADI, the
// ADD binop's native dispatch through Integer#+, a SEND into Object#puts,
// and stdout capture via Context.Stdout.
func TestSendArithmeticAndPuts(t *testing.T) {
	env := newTestEnv(t)
	v := env.newVM(t)

	putsID := env.sym(t, "puts")
	irep := &rite.IREP{
		RegisterCount: 3,
		Symbols:       []symbol.ID{putsID},
	}
	a := &asm{}
	a.emit(OpLoadSelf, 0) // R0 = self, puts' (ignored) receiver
	a.loadI(1, 1)
	a.loadI(2, 2)
	a.emit(OpAdd, 1, 2)         // R1 = R1 + R2 (Integer#+ native dispatch)
	a.send(0, 0, 1, false)      // R0.puts(R1)
	a.ret(0)
	irep.Code = a.code

	v.Start(irep, value.Nil)
	runToCompletion(t, v)

	if got := env.out.String(); got != "3\n" {
		t.Fatalf("stdout = %q, want %q", got, "3\n")
	}
}

// TestIntegerTimesBlock covers scenario S2: a = []; 5.times { |i| a << i };
// puts a.size. Exercises MKPROC/SENDB, the block path through
// Integer#times -> Context.CallBlock, Array#<<, and Array#size.
func TestIntegerTimesBlock(t *testing.T) {
	env := newTestEnv(t)
	v := env.newVM(t)

	pushID := env.sym(t, "<<")
	timesID := env.sym(t, "times")
	sizeID := env.sym(t, "size")
	putsID := env.sym(t, "puts")

	// Block body: captured array lands in R1 (callBlockFrame's convention:
	// captured values start at register 1), yielded index in R2.
	// R3 = array, R4 = index; R3 << R4; return nil.
	block := &rite.IREP{
		RegisterCount: 5,
		Symbols:       []symbol.ID{pushID},
	}
	ba := &asm{}
	ba.emit(OpMove, 3, 1) // R3 = captured array (receiver for <<)
	ba.emit(OpMove, 4, 2) // R4 = yielded index
	ba.send(3, 0, 1, false)
	ba.emit(OpLoadNil, 0)
	ba.ret(0)
	block.Code = ba.code

	// Root: R0 = self ; R1 = [] ; R4 = MKPROC(block, captures R1) ;
	// R3 = 5 ; R3.times(block=R4) via SENDB dst=3,argc=0 (block reg =
	// dst+argc+1 = R4) ; R5 = array.size ; R0.puts(R1=size).
	root := &rite.IREP{
		RegisterCount: 6,
		Symbols:       []symbol.ID{timesID, sizeID, putsID},
		Children:      []*rite.IREP{block},
	}
	ra := &asm{}
	ra.emit(OpLoadSelf, 0)
	ra.emit(OpArray, 1, 1, 0) // R1 = [] (count 0, src unused)
	ra.emit(OpMkProc, 4, 0, 1, 1)
	ra.loadI(3, 5)
	ra.sendB(3, 0, 0)        // R3.times { block in R4 } -> result in R3
	ra.emit(OpMove, 5, 1)    // R5 = array
	ra.send(5, 1, 0, false)  // R5 = R5.size()
	ra.emit(OpMove, 1, 5)    // R1 = size, puts' arg register
	ra.send(0, 2, 1, false)  // R0.puts(R1)
	ra.ret(0)
	root.Code = ra.code

	v.Start(root, value.Nil)
	runToCompletion(t, v)

	if got := env.out.String(); got != "5\n" {
		t.Fatalf("stdout = %q, want %q", got, "5\n")
	}
}

// TestRescueZeroDivision covers scenario S3: begin; 1/0; rescue
// ZeroDivisionError => e; puts e.message; end -> "divided by 0\n".
// Exercises ONERR/POPERR/EXCEPT/RESCUE/JMPNOT/RAISE together: Integer#/
// raises ZeroDivisionError, the unwinder finds the ONERR handler PC,
// RESCUE confirms the raised class matches by name (which requires
// built-in exception classes to be resolvable via GETCONST-style
// lookup off Object, not just by direct *class.Class reference), and
// the handler reads the exception's message and puts it.
func TestRescueZeroDivision(t *testing.T) {
	env := newTestEnv(t)
	v := env.newVM(t)

	messageID := env.sym(t, "message")
	zeroDivID := env.sym(t, "ZeroDivisionError")
	putsID := env.sym(t, "puts")

	irep := &rite.IREP{
		RegisterCount: 6,
		Symbols:       []symbol.ID{messageID, zeroDivID, putsID},
	}
	a := &asm{}
	a.emit(OpLoadSelf, 0)                  // pc 0:  R0 = self
	a.emit(OpOnErr, wide(15)[0], wide(15)[1]) // pc 2:  handler at nextPC(5)+15=20
	a.loadI(1, 1)                          // pc 5:  R1 = 1
	a.loadI(2, 0)                          // pc 9:  R2 = 0
	a.emit(OpDiv, 1, 2)                    // pc 13: R1 = R1 / R2 -> raises ZeroDivisionError
	a.emit(OpPopErr)                       // pc 16: (unreached on this path)
	a.emit(OpJmp, wide(28)[0], wide(28)[1]) // pc 17: -> pc 20+28=48 (shared RETURN)
	// handler (pc 20):
	a.emit(OpExcept, 3)                 // pc 20: R3 = current exception
	a.emit(OpRescue, 4, wide(1)[0], wide(1)[1]) // pc 22: R4 = (R3.class == ZeroDivisionError)
	a.emit(OpJmpNot, 4, wide(20)[0], wide(20)[1]) // pc 26: !R4 -> nextPC(30)+20=50
	a.emit(OpMove, 5, 3)                // pc 30: R5 = e
	a.send(5, 0, 0, false)              // pc 33: R5 = e.message
	a.emit(OpMove, 1, 5)                // pc 39: R1 = message, puts' arg register
	a.send(0, 2, 1, false)              // pc 42: R0.puts(R1)
	a.ret(0)                            // pc 48: shared RETURN
	a.emit(OpRaise, 3)                  // pc 50: nomatch path: re-raise so a wrong
	// RESCUE verdict fails the test loudly instead of silently passing.
	irep.Code = a.code

	v.Start(irep, value.Nil)
	runToCompletion(t, v)

	if got := env.out.String(); got != "divided by 0\n" {
		t.Fatalf("stdout = %q, want %q", got, "divided by 0\n")
	}
}

// TestStringLengthAndConcat covers scenario S5: s = "hello"; puts
// s.length; puts s + " world" -> "5\nhello world\n". Exercises STRING
// pool-literal construction (OpStringLit) and pkg/builtin/string.go's
// length/+ methods. R5 holds s for the whole program; SEND's mruby
// convention (receiver and result share the same register) means every
// call site that needs s again afterward must dispatch against a copy.
func TestStringLengthAndConcat(t *testing.T) {
	env := newTestEnv(t)
	v := env.newVM(t)

	lengthID := env.sym(t, "length")
	plusID := env.sym(t, "+")
	putsID := env.sym(t, "puts")

	irep := &rite.IREP{
		RegisterCount: 6,
		Symbols:       []symbol.ID{lengthID, plusID, putsID},
		Pool: []rite.PoolLiteral{
			{Kind: rite.PoolString, Bytes: []byte("hello")},
			{Kind: rite.PoolString, Bytes: []byte(" world")},
		},
	}
	a := &asm{}
	a.emit(OpLoadSelf, 0)
	a.emit(OpStringLit, 5, wide(0)[0], wide(0)[1]) // R5 = s = "hello"

	a.emit(OpMove, 2, 5)    // R2 = copy of s (length's receiver)
	a.send(2, 0, 0, false)  // R2 = s.length
	a.emit(OpMove, 1, 2)    // R1 = length, puts' arg register
	a.send(0, 2, 1, false)  // R0.puts(R1)

	a.emit(OpMove, 3, 5)                            // R3 = copy of s (+'s receiver)
	a.emit(OpStringLit, 4, wide(1)[0], wide(1)[1])   // R4 = " world", +'s argument
	a.send(3, 1, 1, false)                           // R3 = s + " world"
	a.emit(OpMove, 1, 3)                             // R1 = concatenation, puts' arg register
	a.send(0, 2, 1, false)                           // R0.puts(R1)
	a.ret(0)
	irep.Code = a.code

	v.Start(irep, value.Nil)
	runToCompletion(t, v)

	want := "5\nhello world\n"
	if got := env.out.String(); got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}
}
