// Package value implements mrbc-vm's tagged-union Value and the
// reference-counted heap that backs its container/object variants.
//
// Every heap value reserves a block in a *alloc.Pool, so the pool's
// fixed budget bounds how many heap values can exist. String bytes live
// in that block. Headers (refcount, class) and the element slices of
// arrays, hashes, ranges, procs and instance variables are kept in
// Go-side tables keyed by the block's handle (see heap.go).
package value

import (
	"errors"

	"github.com/mrbc-go/mrbcvm/pkg/alloc"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
)

// ErrTypeMismatch is returned when a container accessor is used against
// the wrong Tag.
var ErrTypeMismatch = errors.New("value: type mismatch")

// Tag identifies a Value's variant.
type Tag uint8

const (
	TagEmpty Tag = iota
	TagNil
	TagFalse
	TagTrue
	TagInteger
	TagFloat
	TagSymbol
	TagClass
	TagObject
	TagProc
	TagArray
	TagString
	TagRange
	TagHash
	TagException
	TagHandle
)

func (t Tag) String() string {
	switch t {
	case TagEmpty:
		return "empty"
	case TagNil:
		return "nil"
	case TagFalse:
		return "false"
	case TagTrue:
		return "true"
	case TagInteger:
		return "integer"
	case TagFloat:
		return "float"
	case TagSymbol:
		return "symbol"
	case TagClass:
		return "class"
	case TagObject:
		return "object"
	case TagProc:
		return "proc"
	case TagArray:
		return "array"
	case TagString:
		return "string"
	case TagRange:
		return "range"
	case TagHash:
		return "hash"
	case TagException:
		return "exception"
	case TagHandle:
		return "handle"
	default:
		return "unknown"
	}
}

// IsImmediate reports whether v's variant stores its payload inline,
// needing no retain/release bookkeeping.
func (t Tag) IsImmediate() bool {
	switch t {
	case TagEmpty, TagNil, TagFalse, TagTrue, TagInteger, TagFloat, TagSymbol:
		return true
	default:
		return false
	}
}

// Class is the minimal surface a heap header needs from a class object.
// It is satisfied by *class.Class; value does not import class to avoid
// a dependency cycle (class's constant/method tables hold Values).
type Class interface {
	Name() string
}

// Value is mrbc-vm's tagged union. Immediate variants are stored inline
// (i/f/sym); heap variants carry h, an index into a Heap's arena.
type Value struct {
	Tag   Tag
	i     int64
	f     float64
	sym   symbol.ID
	class Class
	h     alloc.Handle
}

// Empty is the zero/placeholder value (an unfilled register slot).
var Empty = Value{Tag: TagEmpty}

// Nil, False and True are the three Ruby-level singleton immediates.
var (
	Nil   = Value{Tag: TagNil}
	False = Value{Tag: TagFalse}
	True  = Value{Tag: TagTrue}
)

// Bool returns True or False for b.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Int wraps an integer immediate.
func Int(i int64) Value { return Value{Tag: TagInteger, i: i} }

// Float wraps a float immediate.
func Float(f float64) Value { return Value{Tag: TagFloat, f: f} }

// Sym wraps a symbol id immediate.
func Sym(id symbol.ID) Value { return Value{Tag: TagSymbol, sym: id} }

// ClassValue wraps a class reference as an immediate (classes are
// process-wide singletons, never refcounted).
func ClassValue(c Class) Value { return Value{Tag: TagClass, class: c} }

// Int64 returns the integer payload; ok is false for non-integer tags.
func (v Value) Int64() (int64, bool) {
	if v.Tag != TagInteger {
		return 0, false
	}
	return v.i, true
}

// Float64 returns the float payload; ok is false for non-float tags.
func (v Value) Float64() (float64, bool) {
	if v.Tag != TagFloat {
		return 0, false
	}
	return v.f, true
}

// SymbolID returns the symbol payload; ok is false for non-symbol tags.
func (v Value) SymbolID() (symbol.ID, bool) {
	if v.Tag != TagSymbol {
		return 0, false
	}
	return v.sym, true
}

// ClassRef returns the class payload for TagClass and for any heap
// variant's owning class.
func (v Value) ClassRef() Class { return v.class }

// Handle returns the heap handle for heap variants.
func (v Value) Handle() alloc.Handle { return v.h }

// Truthy implements Ruby truthiness: everything except nil and false.
func (v Value) Truthy() bool {
	return v.Tag != TagNil && v.Tag != TagFalse
}

// Equal implements variant-wise equality per spec.md §3: strings compare
// bytes, arrays/ranges compare element-wise, everything else compares by
// tag and immediate payload or heap identity.
func Equal(h *Heap, a, b Value) bool {
	if a.Tag != b.Tag {
		// Integers and floats compare cross-tag numerically, matching
		// Ruby's 1 == 1.0.
		if a.Tag == TagInteger && b.Tag == TagFloat {
			return float64(a.i) == b.f
		}
		if a.Tag == TagFloat && b.Tag == TagInteger {
			return a.f == float64(b.i)
		}
		return false
	}
	switch a.Tag {
	case TagInteger:
		return a.i == b.i
	case TagFloat:
		return a.f == b.f
	case TagSymbol:
		return a.sym == b.sym
	case TagString:
		return h.String(a) == h.String(b)
	case TagArray:
		sa, sb := h.Array(a), h.Array(b)
		if len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !Equal(h, sa[i], sb[i]) {
				return false
			}
		}
		return true
	case TagRange:
		ra, rb := h.Range(a), h.Range(b)
		return Equal(h, ra.Begin, rb.Begin) && Equal(h, ra.End, rb.End) && ra.Exclusive == rb.Exclusive
	default:
		return a.h == b.h
	}
}
