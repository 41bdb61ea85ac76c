package rite

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/mrbc-go/mrbcvm/pkg/alloc"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
)

// irepBuilder hand-assembles a RITE0300 buffer for round-trip testing,
// since no compiled mrbc fixture is available in this tree.
type irepBuilder struct {
	localCount, regCount int
	code                 []byte
	pool                 []PoolLiteral
	symbols              []string
	children             []*irepBuilder
}

func (b *irepBuilder) encode() []byte {
	var body bytes.Buffer

	var code bytes.Buffer
	code.Write(b.code)

	var hdr [2 + 2 + 2 + 4]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(b.localCount))
	binary.BigEndian.PutUint16(hdr[2:4], uint16(b.regCount))
	binary.BigEndian.PutUint16(hdr[4:6], uint16(len(b.children)))
	binary.BigEndian.PutUint32(hdr[6:10], uint32(code.Len()))
	body.Write(hdr[:])
	body.Write(code.Bytes())

	var poolCount [2]byte
	binary.BigEndian.PutUint16(poolCount[:], uint16(len(b.pool)))
	body.Write(poolCount[:])
	for _, lit := range b.pool {
		body.WriteByte(byte(lit.Kind))
		switch lit.Kind {
		case PoolString, PoolSharedString:
			var l [2]byte
			binary.BigEndian.PutUint16(l[:], uint16(len(lit.Bytes)))
			body.Write(l[:])
			body.Write(lit.Bytes)
		case PoolInt32:
			var v [4]byte
			binary.BigEndian.PutUint32(v[:], uint32(int32(lit.Int)))
			body.Write(v[:])
		case PoolInt64:
			var v [8]byte
			binary.BigEndian.PutUint64(v[:], uint64(lit.Int))
			body.Write(v[:])
		case PoolFloat:
			var v [8]byte
			binary.BigEndian.PutUint64(v[:], math.Float64bits(lit.Float))
			body.Write(v[:])
		}
	}

	var symCount [2]byte
	binary.BigEndian.PutUint16(symCount[:], uint16(len(b.symbols)))
	body.Write(symCount[:])
	for _, s := range b.symbols {
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(s)))
		body.Write(l[:])
		body.WriteString(s)
	}

	for _, child := range b.children {
		body.Write(child.encode())
	}

	// Prepend the record length field covering everything just written.
	out := make([]byte, 4+body.Len())
	binary.BigEndian.PutUint32(out[0:4], uint32(len(out)))
	copy(out[4:], body.Bytes())
	return out
}

func wrapFile(irep []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	var total [4]byte
	buf.Write(total[:]) // placeholder, patched below
	buf.Write(make([]byte, 8))

	sectionStart := buf.Len()
	var sHdr [12]byte
	copy(sHdr[0:4], tagIREP[:])
	binary.BigEndian.PutUint32(sHdr[4:8], uint32(12+len(irep)))
	buf.Write(sHdr[:])
	buf.Write(irep)
	_ = sectionStart

	var eHdr [12]byte
	copy(eHdr[0:4], tagEnd[:])
	binary.BigEndian.PutUint32(eHdr[4:8], 12)
	buf.Write(eHdr[:])

	out := buf.Bytes()
	binary.BigEndian.PutUint32(out[8:12], uint32(len(out)))
	return out
}

// TestLoaderRoundTrip verifies invariant 6: decoding then reading back
// structural fields yields the exact instruction bytes and pool literals.
func TestLoaderRoundTrip(t *testing.T) {
	pool := alloc.NewPool(64*1024, alloc.DefaultConfig())
	symbols := symbol.New(pool, symbol.DefaultCapacity)

	child := &irepBuilder{
		localCount: 1,
		regCount:   3,
		code:       []byte{0x01, 0x02, 0x03},
		symbols:    []string{"inner_method"},
	}
	root := &irepBuilder{
		localCount: 2,
		regCount:   5,
		code:       []byte{0xAA, 0xBB, 0xCC, 0xDD},
		pool: []PoolLiteral{
			{Kind: PoolString, Bytes: []byte("hello")},
			{Kind: PoolInt32, Int: -42},
			{Kind: PoolInt64, Int: 1 << 40},
			{Kind: PoolFloat, Float: 3.5},
		},
		symbols:  []string{"foo", "bar"},
		children: []*irepBuilder{child},
	}

	data := wrapFile(root.encode())

	got, err := Load(data, symbols)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got.LocalCount != 2 || got.RegisterCount != 5 {
		t.Fatalf("root counts = (%d,%d), want (2,5)", got.LocalCount, got.RegisterCount)
	}
	if !bytes.Equal(got.Code, []byte{0xAA, 0xBB, 0xCC, 0xDD}) {
		t.Fatalf("root code = %v, want AABBCCDD", got.Code)
	}
	if len(got.Pool) != 4 {
		t.Fatalf("pool len = %d, want 4", len(got.Pool))
	}
	if string(got.Pool[0].Bytes) != "hello" {
		t.Errorf("pool[0] = %q, want hello", got.Pool[0].Bytes)
	}
	if got.Pool[1].Int != -42 {
		t.Errorf("pool[1] = %d, want -42", got.Pool[1].Int)
	}
	if got.Pool[2].Int != 1<<40 {
		t.Errorf("pool[2] = %d, want %d", got.Pool[2].Int, int64(1)<<40)
	}
	if got.Pool[3].Float != 3.5 {
		t.Errorf("pool[3] = %v, want 3.5", got.Pool[3].Float)
	}

	if len(got.Symbols) != 2 {
		t.Fatalf("symbol count = %d, want 2", len(got.Symbols))
	}
	if symbols.String(got.Symbols[0]) != "foo" || symbols.String(got.Symbols[1]) != "bar" {
		t.Errorf("symbols decoded as %q, %q", symbols.String(got.Symbols[0]), symbols.String(got.Symbols[1]))
	}

	if len(got.Children) != 1 {
		t.Fatalf("children = %d, want 1", len(got.Children))
	}
	if !bytes.Equal(got.Children[0].Code, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("child code = %v, want 010203", got.Children[0].Code)
	}
	if symbols.String(got.Children[0].Symbols[0]) != "inner_method" {
		t.Errorf("child symbol = %q, want inner_method", symbols.String(got.Children[0].Symbols[0]))
	}
}

func TestLoaderRejectsBadMagic(t *testing.T) {
	pool := alloc.NewPool(4096, alloc.DefaultConfig())
	symbols := symbol.New(pool, symbol.DefaultCapacity)

	_, err := Load([]byte("NOTRITE0bogus header bytes........"), symbols)
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
	le, ok := err.(*LoadError)
	if !ok {
		t.Fatalf("error type = %T, want *LoadError", err)
	}
	if le.Phase != PhaseFileHeader {
		t.Errorf("phase = %v, want PhaseFileHeader", le.Phase)
	}
}
