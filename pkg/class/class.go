// Package class implements the class/method registry: class objects, a
// prepend-ordered method chain per class, and constant slots, dispatched
// either by value tag (built-ins) or through a global constant map (user
// classes), per spec.md §4.6.
package class

import (
	"io"

	"github.com/mrbc-go/mrbcvm/pkg/rite"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

// Context is the slice of VM/interpreter behavior a native method needs.
// It is an interface rather than a concrete *vm.VM to avoid a dependency
// cycle: vm imports class for method dispatch, so class cannot import vm.
type Context interface {
	Heap() *value.Heap
	Symbols() *symbol.Table
	Registry() *Registry
	Raise(class *Class, message string) error
	// Stdout is the HAL-backed output sink for puts/print/p, per
	// spec.md §6's hal_write contract.
	Stdout() io.Writer
	// CallBlock invokes the block passed to the enclosing SEND (SENDB in
	// spec.md §4.5) with args, running it to completion on the current
	// task. block must be value.Empty-checked by the caller; the built-in
	// iterators raise ArgumentError themselves when no block was passed.
	CallBlock(block value.Value, args []value.Value) (value.Value, error)
	// Sleep requests that the scheduler move the current task to Waiting
	// for the given number of ticks (spec.md §4.7's sleep_ms primitive).
	// It returns rather than blocks: the caller must return its result
	// directly so the interpreter can unwind to the scheduler.
	Sleep(ticks uint32) error
	// Relinquish gives up the remainder of the current task's timeslice
	// immediately, the voluntary-yield half of spec.md §4.7.
	Relinquish() error
}

// NativeFunc is a built-in method body, the Go-level equivalent of the
// spec's native-function-pointer method descriptor variant. block is
// value.Empty when the call site passed none.
type NativeFunc func(ctx Context, recv value.Value, block value.Value, args []value.Value) (value.Value, error)

// Method is one entry in a class's method chain: either native or a
// compiled IREP body, never both.
type Method struct {
	Name   symbol.ID
	Native NativeFunc
	Body   *rite.IREP
}

// IsIREP reports whether the method is a compiled Ruby method rather than
// a native one.
func (m Method) IsIREP() bool { return m.Body != nil }

// Class is a class object: name, superclass link, method chain (most
// recently defined first, as define_method prepends), and a constant
// slot map.
type Class struct {
	name    symbol.ID
	symbols *symbol.Table
	Super   *Class
	methods []Method
	consts  map[symbol.ID]value.Value
}

// Name satisfies value.Class, resolving the class's interned name.
func (c *Class) Name() string { return c.symbols.String(c.name) }

// NameID returns the class's name as a symbol id.
func (c *Class) NameID() symbol.ID { return c.name }

// DefineMethod prepends a method descriptor to c's method chain,
// shadowing any earlier definition of the same name found by Lookup.
func (c *Class) DefineMethod(m Method) {
	c.methods = append([]Method{m}, c.methods...)
}

// SetConst installs a constant on c.
func (c *Class) SetConst(name symbol.ID, v value.Value) {
	if c.consts == nil {
		c.consts = make(map[symbol.ID]value.Value)
	}
	c.consts[name] = v
}

// ownConst looks up a constant defined directly on c, without walking to
// Object.
func (c *Class) ownConst(name symbol.ID) (value.Value, bool) {
	v, ok := c.consts[name]
	return v, ok
}

// NewClass creates a class not anchored to any value tag, for types like
// the exception subclasses that all share value.TagException and are
// instead distinguished by their own *Class reference.
func NewClass(symbols *symbol.Table, name symbol.ID, super *Class) *Class {
	return &Class{name: name, symbols: symbols, Super: super}
}

// Registry is the process-wide (or per-test-instance) class/method table.
// Built-ins are indexed by value tag for O(1) dispatch; user classes live
// in a name-keyed constant map anchored at Object, matching spec.md's
// "user classes live in a global constant map".
type Registry struct {
	symbols *symbol.Table
	byTag   map[value.Tag]*Class
	object  *Class
}

// NewRegistry creates an empty registry. Callers populate built-ins via
// DefineBuiltin (see pkg/builtin for the standard set).
func NewRegistry(symbols *symbol.Table) *Registry {
	return &Registry{symbols: symbols, byTag: make(map[value.Tag]*Class)}
}

// DefineBuiltin creates (or returns, if already defined) the class
// anchored to tag, interning name if needed.
func (r *Registry) DefineBuiltin(tag value.Tag, name string, super *Class) *Class {
	if c, ok := r.byTag[tag]; ok {
		return c
	}
	id, err := r.symbols.Intern(name)
	if err != nil {
		// The built-in name space is reserved (see pkg/symbol/builtin.go)
		// precisely so this never happens in practice.
		panic("class: cannot intern built-in class name " + name + ": " + err.Error())
	}
	c := &Class{name: id, symbols: r.symbols, Super: super}
	r.byTag[tag] = c
	if name == "Object" {
		r.object = c
	}
	return c
}

// Object returns the root class, the final stop for constant lookup.
func (r *Registry) Object() *Class { return r.object }

// ClassOf returns the class for a value, dispatching by tag for built-ins
// and through the value's own class reference for TagObject/TagException
// instances.
func (r *Registry) ClassOf(v value.Value) *Class {
	switch v.Tag {
	case value.TagObject, value.TagException, value.TagClass:
		if c, ok := v.ClassRef().(*Class); ok {
			return c
		}
	}
	return r.byTag[v.Tag]
}

// ClassByTag returns the built-in class anchored to tag, if any.
func (r *Registry) ClassByTag(tag value.Tag) *Class { return r.byTag[tag] }

// Define installs a native method on c.
func (r *Registry) Define(c *Class, name symbol.ID, fn NativeFunc) {
	c.DefineMethod(Method{Name: name, Native: fn})
}

// DefineIREP installs a compiled-body method on c.
func (r *Registry) DefineIREP(c *Class, name symbol.ID, body *rite.IREP) {
	c.DefineMethod(Method{Name: name, Body: body})
}

// Lookup resolves name starting at c and walking the superclass chain, as
// spec.md's SEND opcode contract requires. ok is false if no class in the
// chain defines it (callers raise NoMethodError).
func (r *Registry) Lookup(c *Class, name symbol.ID) (Method, bool) {
	for cur := c; cur != nil; cur = cur.Super {
		for _, m := range cur.methods {
			if m.Name == name {
				return m, true
			}
		}
	}
	return Method{}, false
}

// GetConst resolves a constant, first on c, then (if c isn't already
// Object) falling back to Object — matching spec.md's "Constants are
// looked up in the owning class, then Object."
func (r *Registry) GetConst(c *Class, name symbol.ID) (value.Value, bool) {
	if v, ok := c.ownConst(name); ok {
		return v, ok
	}
	if c != r.object && r.object != nil {
		return r.object.ownConst(name)
	}
	return value.Value{}, false
}
