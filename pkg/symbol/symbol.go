// Package symbol interns short strings into stable integer ids. The first
// 256 ids are reserved for a static built-in table so common names (+,
// size, to_s, ...) keep the same id across builds; dynamic names are
// interned on top of the allocator's permanent arena.
package symbol

import (
	"errors"

	"github.com/mrbc-go/mrbcvm/pkg/alloc"
)

// ErrTableFull is returned once the dynamic id space is exhausted.
var ErrTableFull = errors.New("symbol: table full")

// ID is a stable integer handle for an interned string.
type ID uint16

// DefaultCapacity is the number of dynamic (non-built-in) symbols the
// table can hold, per spec.md §4.3.
const DefaultCapacity = 255

// reservedCount is the size of the built-in id space; dynamic ids start
// right after it.
const reservedCount = 256

type entry struct {
	hash uint16
	str  string // bytes live in the permanent arena; str aliases them
	left, right int32 // BST overlay child indices, -1 = none
}

// Table interns strings to IDs. It must be constructed with New; the zero
// value is not usable.
type Table struct {
	pool    *alloc.Pool
	entries []entry
	root    int32
	cap     int
}

// New creates a table backed by pool, preloaded with the built-in symbol
// set and sized for up to capacity additional dynamic symbols.
func New(pool *alloc.Pool, capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	t := &Table{
		pool:    pool,
		entries: make([]entry, reservedCount, reservedCount+capacity),
		root:    -1,
		cap:     capacity,
	}
	for i, name := range builtinNames {
		t.entries[i] = entry{hash: fnv16([]byte(name)), str: name, left: -1, right: -1}
	}
	for i := len(builtinNames); i < reservedCount; i++ {
		t.entries[i] = entry{left: -1, right: -1}
	}
	// Seed the BST overlay with the built-ins so dynamic lookups benefit
	// from it too.
	for i, name := range builtinNames {
		t.insertBST(int32(i), name)
	}
	return t
}

// fnv16 mixes an FNV-1a hash down to 16 bits, matching the spec's
// "16-bit FNV-style mix".
func fnv16(s []byte) uint16 {
	var h uint32 = 2166136261
	for _, c := range s {
		h ^= uint32(c)
		h *= 16777619
	}
	return uint16(h ^ (h >> 16))
}

func (t *Table) insertBST(id int32, s string) {
	if t.root < 0 {
		t.root = id
		return
	}
	cur := t.root
	for {
		e := &t.entries[cur]
		switch {
		case s == e.str:
			return
		case s < e.str:
			if e.left < 0 {
				e.left = id
				return
			}
			cur = e.left
		default:
			if e.right < 0 {
				e.right = id
				return
			}
			cur = e.right
		}
	}
}

func (t *Table) lookupBST(s string) (ID, bool) {
	cur := t.root
	for cur >= 0 {
		e := &t.entries[cur]
		switch {
		case s == e.str:
			return ID(cur), true
		case s < e.str:
			cur = e.left
		default:
			cur = e.right
		}
	}
	return 0, false
}

// Intern returns the id for s, allocating and installing a new entry if
// it has not been seen before. Returns ErrTableFull once the dynamic
// capacity is exhausted.
func (t *Table) Intern(s string) (ID, error) {
	if id, ok := t.lookupBST(s); ok {
		return id, nil
	}

	if len(t.entries) >= reservedCount+t.cap {
		return 0, ErrTableFull
	}

	h, err := t.pool.AllocPermanent(uint32(len(s)))
	if err != nil {
		return 0, err
	}
	copy(t.pool.Bytes(h), s)
	stored := string(t.pool.Bytes(h))

	id := int32(len(t.entries))
	t.entries = append(t.entries, entry{hash: fnv16([]byte(s)), str: stored, left: -1, right: -1})
	t.insertBST(id, stored)
	return ID(id), nil
}

// String returns the string interned as id, or "" if id is unknown.
func (t *Table) String(id ID) string {
	if int(id) < 0 || int(id) >= len(t.entries) {
		return ""
	}
	return t.entries[id].str
}

// Len returns the total number of interned symbols, built-in and dynamic.
func (t *Table) Len() int {
	return len(t.entries)
}
