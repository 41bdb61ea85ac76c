// Package rite decodes the RITE 0300 bytecode container format emitted by
// the upstream mrbc compiler (spec.md §4.4, §6) into an immutable IREP
// tree. Validation is limited to structural well-formedness; the loader
// is not hardened against adversarial input (spec.md §1 Non-goals).
package rite

import "github.com/mrbc-go/mrbcvm/pkg/symbol"

// PoolKind identifies the type of one literal pool entry.
type PoolKind uint8

const (
	PoolString       PoolKind = iota // STR: owned copy of the bytes
	PoolSharedString                 // SSTR: reference into the caller's buffer
	PoolInt32
	PoolInt64
	PoolFloat
)

// PoolLiteral is one entry of an IREP's literal pool. Only the field
// matching Kind is meaningful.
type PoolLiteral struct {
	Kind  PoolKind
	Bytes []byte // PoolString (owned) / PoolSharedString (aliases the source buffer)
	Int   int64  // PoolInt32, PoolInt64
	Float float64
}

// IREP is one compiled method body or toplevel block: register/local
// counts, a symbol table slice, a literal pool, raw instruction bytes,
// and child IREPs. IREPs are immutable once Load returns and form a tree;
// a parent IREP owns its children.
type IREP struct {
	LocalCount    int
	RegisterCount int
	Symbols       []symbol.ID
	Pool          []PoolLiteral
	Code          []byte
	Children      []*IREP
}
