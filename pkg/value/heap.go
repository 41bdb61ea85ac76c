package value

import (
	"github.com/mrbc-go/mrbcvm/pkg/alloc"
	"github.com/mrbc-go/mrbcvm/pkg/rite"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
)

// header is the bookkeeping record for one heap value: its refcount and
// owning class. The spec's "header plus payload" is split here into this
// struct (kept on the Go heap, never touched by program bytecode) and the
// actual payload, which for containers lives in a Go-heap side table
// (below) and for strings lives in the alloc.Pool arena.
type header struct {
	refcount int
	class    Class
}

// Range is the payload of a TagRange value.
type Range struct {
	Begin, End Value
	Exclusive  bool
}

// Heap owns every heap-variant Value's payload and refcount. One Heap is
// shared process-wide, matching spec.md §9's "process-wide state... not
// true globals, so tests can instantiate isolated instances."
type Heap struct {
	pool *alloc.Pool

	headers map[alloc.Handle]*header
	arrays  map[alloc.Handle][]Value
	hashes  map[alloc.Handle][]HashEntry
	ranges  map[alloc.Handle]Range
	ivars   map[alloc.Handle]map[symbol.ID]Value
	procs   map[alloc.Handle]procData
}

// procData is a Proc's payload: the block's compiled body, the self it
// closes over, and a snapshot of the capturing frame's registers.
// Captured is copied by value rather than aliased, so a block can see
// and mutate the heap objects its enclosing scope held at block-creation
// time (spec.md's "no mutable back-references" keeps this sound) but
// reassigning an outer local from inside the block does not propagate
// back out — an accepted simplification of real upvalue semantics.
type procData struct {
	irep     *rite.IREP
	self     Value
	captured []Value
}

// HashEntry is one key/value association. mrbc-vm's Hash is a small
// linear association list (grounded on the original source's
// keyvalue.h), not a hashmap — fine at embedded scale and it sidesteps
// needing Value to be a comparable Go map key.
type HashEntry struct {
	Key, Val Value
}

// NewHeap creates a heap backed by pool.
func NewHeap(pool *alloc.Pool) *Heap {
	return &Heap{
		pool:    pool,
		headers: make(map[alloc.Handle]*header),
		arrays:  make(map[alloc.Handle][]Value),
		hashes:  make(map[alloc.Handle][]HashEntry),
		ranges:  make(map[alloc.Handle]Range),
	}
}

// NewString allocates a string value in the pool, copying s's bytes.
func (h *Heap) NewString(class Class, s string) (Value, error) {
	handle, err := h.pool.Alloc(uint32(len(s)))
	if err != nil {
		return Value{}, err
	}
	copy(h.pool.Bytes(handle), s)
	h.headers[handle] = &header{refcount: 1, class: class}
	return Value{Tag: TagString, class: class, h: handle}, nil
}

// String returns the bytes of a TagString value.
func (h *Heap) String(v Value) string {
	return string(h.pool.Bytes(v.h))
}

// NewArray allocates an array value owning a copy of elems, retaining
// each element.
func (h *Heap) NewArray(class Class, elems []Value) (Value, error) {
	handle, err := h.pool.Alloc(16) // nominal header-sized reservation
	if err != nil {
		return Value{}, err
	}
	cp := append([]Value(nil), elems...)
	for _, e := range cp {
		h.Retain(e)
	}
	h.arrays[handle] = cp
	h.headers[handle] = &header{refcount: 1, class: class}
	return Value{Tag: TagArray, class: class, h: handle}, nil
}

// Array returns the backing slice for a TagArray value. Callers must not
// retain the returned slice past a mutation; use ArraySet/ArrayPush to
// mutate in a refcount-safe way.
func (h *Heap) Array(v Value) []Value { return h.arrays[v.h] }

// ArrayPush appends elem, retaining it.
func (h *Heap) ArrayPush(v, elem Value) {
	h.Retain(elem)
	h.arrays[v.h] = append(h.arrays[v.h], elem)
}

// ArraySet overwrites index i, releasing the old occupant and retaining
// the new one.
func (h *Heap) ArraySet(v Value, i int, elem Value) error {
	s := h.arrays[v.h]
	if i < 0 || i >= len(s) {
		return ErrTypeMismatch
	}
	h.Release(s[i])
	h.Retain(elem)
	s[i] = elem
	return nil
}

// NewHash allocates an empty hash value.
func (h *Heap) NewHash(class Class) (Value, error) {
	handle, err := h.pool.Alloc(16)
	if err != nil {
		return Value{}, err
	}
	h.hashes[handle] = nil
	h.headers[handle] = &header{refcount: 1, class: class}
	return Value{Tag: TagHash, class: class, h: handle}, nil
}

// Hash returns the association list for a TagHash value.
func (h *Heap) Hash(v Value) []HashEntry { return h.hashes[v.h] }

// HashSet inserts or overwrites key => val, comparing keys with Equal.
func (h *Heap) HashSet(v, key, val Value) {
	entries := h.hashes[v.h]
	for i, e := range entries {
		if Equal(h, e.Key, key) {
			h.Release(e.Val)
			h.Retain(val)
			entries[i].Val = val
			return
		}
	}
	h.Retain(key)
	h.Retain(val)
	h.hashes[v.h] = append(entries, HashEntry{Key: key, Val: val})
}

// HashGet looks up key, returning Nil and false if absent.
func (h *Heap) HashGet(v, key Value) (Value, bool) {
	for _, e := range h.hashes[v.h] {
		if Equal(h, e.Key, key) {
			return e.Val, true
		}
	}
	return Nil, false
}

// HashSize implements the spec's "obvious contract" for c_hash_size,
// which is left empty in the original source: return the current entry
// count.
func (h *Heap) HashSize(v Value) int { return len(h.hashes[v.h]) }

// NewRange allocates a range value.
func (h *Heap) NewRange(class Class, begin, end Value, exclusive bool) (Value, error) {
	handle, err := h.pool.Alloc(16)
	if err != nil {
		return Value{}, err
	}
	h.Retain(begin)
	h.Retain(end)
	h.ranges[handle] = Range{Begin: begin, End: end, Exclusive: exclusive}
	h.headers[handle] = &header{refcount: 1, class: class}
	return Value{Tag: TagRange, class: class, h: handle}, nil
}

// Range returns the payload of a TagRange value.
func (h *Heap) Range(v Value) Range { return h.ranges[v.h] }

// NewProc allocates a Proc value wrapping irep, closing over self and a
// snapshot of the capturing frame's registers.
func (h *Heap) NewProc(class Class, irep *rite.IREP, self Value, captured []Value) (Value, error) {
	handle, err := h.pool.Alloc(16)
	if err != nil {
		return Value{}, err
	}
	cp := append([]Value(nil), captured...)
	h.Retain(self)
	for _, v := range cp {
		h.Retain(v)
	}
	if h.procs == nil {
		h.procs = make(map[alloc.Handle]procData)
	}
	h.procs[handle] = procData{irep: irep, self: self, captured: cp}
	h.headers[handle] = &header{refcount: 1, class: class}
	return Value{Tag: TagProc, class: class, h: handle}, nil
}

// ProcBody returns a Proc's compiled body.
func (h *Heap) ProcBody(v Value) (*rite.IREP, bool) {
	p, ok := h.procs[v.h]
	return p.irep, ok
}

// ProcSelf returns the self a Proc closes over.
func (h *Heap) ProcSelf(v Value) Value { return h.procs[v.h].self }

// ProcCaptured returns the register snapshot a Proc closes over.
func (h *Heap) ProcCaptured(v Value) []Value { return h.procs[v.h].captured }

// Retain increments the refcount of a heap value. It is a no-op for
// immediates, matching spec.md §4.2.
func (h *Heap) Retain(v Value) {
	if v.Tag.IsImmediate() {
		return
	}
	if hd, ok := h.headers[v.h]; ok {
		hd.refcount++
	}
}

// Release decrements the refcount of a heap value and, at zero,
// recursively releases contained slots before returning the block to the
// allocator. No-op for immediates.
func (h *Heap) Release(v Value) {
	if v.Tag.IsImmediate() {
		return
	}
	hd, ok := h.headers[v.h]
	if !ok {
		return
	}
	hd.refcount--
	if hd.refcount > 0 {
		return
	}

	switch v.Tag {
	case TagArray:
		for _, e := range h.arrays[v.h] {
			h.Release(e)
		}
		delete(h.arrays, v.h)
	case TagHash:
		for _, e := range h.hashes[v.h] {
			h.Release(e.Key)
			h.Release(e.Val)
		}
		delete(h.hashes, v.h)
	case TagRange:
		r := h.ranges[v.h]
		h.Release(r.Begin)
		h.Release(r.End)
		delete(h.ranges, v.h)
	case TagObject, TagException:
		for _, iv := range h.ivars[v.h] {
			h.Release(iv)
		}
		delete(h.ivars, v.h)
	case TagProc:
		p := h.procs[v.h]
		h.Release(p.self)
		for _, c := range p.captured {
			h.Release(c)
		}
		delete(h.procs, v.h)
	}
	delete(h.headers, v.h)
	_ = h.pool.Free(v.h)
}

// RefCount returns the current refcount of a heap value, or 0 for
// immediates and unknown handles. Exposed for tests asserting invariant
// 4 from spec.md §8.
func (h *Heap) RefCount(v Value) int {
	if hd, ok := h.headers[v.h]; ok {
		return hd.refcount
	}
	return 0
}

// CopyInto implements register-slot assignment semantics: release the
// slot's previous occupant, store the new value, and retain it — unless
// the new value is immediate.
func (h *Heap) CopyInto(slot *Value, v Value) {
	old := *slot
	*slot = v
	h.Retain(v)
	h.Release(old)
}

// SetOwner tags a heap value's backing block with a VM id, for the
// allocator's per-task bulk reclamation.
func (h *Heap) SetOwner(v Value, vmID uint16) {
	if !v.Tag.IsImmediate() {
		h.pool.SetOwner(v.h, vmID)
	}
}

// NewObject allocates a plain object instance with its own instance
// variable table.
func (h *Heap) NewObject(class Class) (Value, error) {
	handle, err := h.pool.Alloc(16)
	if err != nil {
		return Value{}, err
	}
	h.headers[handle] = &header{refcount: 1, class: class}
	if h.ivars == nil {
		h.ivars = make(map[alloc.Handle]map[symbol.ID]Value)
	}
	return Value{Tag: TagObject, class: class, h: handle}, nil
}

// NewException allocates an exception instance, the TagException
// counterpart of NewObject.
func (h *Heap) NewException(class Class) (Value, error) {
	handle, err := h.pool.Alloc(16)
	if err != nil {
		return Value{}, err
	}
	h.headers[handle] = &header{refcount: 1, class: class}
	if h.ivars == nil {
		h.ivars = make(map[alloc.Handle]map[symbol.ID]Value)
	}
	return Value{Tag: TagException, class: class, h: handle}, nil
}

// GetIVar reads an instance variable, returning Nil if unset.
func (h *Heap) GetIVar(v Value, name symbol.ID) Value {
	m := h.ivars[v.h]
	if m == nil {
		return Nil
	}
	val, ok := m[symbol.ID(name)]
	if !ok {
		return Nil
	}
	return val
}

// SetIVar writes an instance variable, retaining val and releasing any
// previous occupant.
func (h *Heap) SetIVar(v Value, name symbol.ID, val Value) {
	if h.ivars == nil {
		h.ivars = make(map[alloc.Handle]map[symbol.ID]Value)
	}
	m := h.ivars[v.h]
	if m == nil {
		m = make(map[symbol.ID]Value)
		h.ivars[v.h] = m
	}
	if old, ok := m[symbol.ID(name)]; ok {
		h.Release(old)
	}
	h.Retain(val)
	m[symbol.ID(name)] = val
}
