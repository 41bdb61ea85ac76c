// Package builtin registers mrbc-vm's built-in classes (spec.md §4.6,
// "Built-in classes" in the component table) against a class.Registry:
// Object and its immediate value classes, the container classes, and the
// Exception hierarchy from spec.md §7.
package builtin

import (
	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

// Exceptions collects every exception class named in spec.md §7, all
// deriving from Exception, for callers (the interpreter's RAISE/rescue
// matching) that need to raise or match a specific one by name.
type Exceptions struct {
	Exception           *class.Class
	StandardError       *class.Class
	RuntimeError        *class.Class
	ZeroDivisionError   *class.Class
	ArgumentError       *class.Class
	IndexError          *class.Class
	TypeError           *class.Class
	NoMethodError       *class.Class
	NotImplementedError *class.Class
}

// Classes is the full set of classes Init installs.
type Classes struct {
	Object  *class.Class
	Nil     *class.Class
	True    *class.Class
	False   *class.Class
	Integer *class.Class
	Float   *class.Class
	Symbol  *class.Class
	String  *class.Class
	Array   *class.Class
	Hash    *class.Class
	Range   *class.Class
	Proc    *class.Class
	Exceptions
}

// Init registers every built-in class on reg and returns the set, for
// callers that need direct references (e.g. the interpreter raising a
// ZeroDivisionError).
func Init(reg *class.Registry, symbols *symbol.Table) *Classes {
	object := reg.DefineBuiltin(value.TagObject, "Object", nil)

	c := &Classes{
		Object:  object,
		Nil:     reg.DefineBuiltin(value.TagNil, "NilClass", object),
		True:    reg.DefineBuiltin(value.TagTrue, "TrueClass", object),
		False:   reg.DefineBuiltin(value.TagFalse, "FalseClass", object),
		Integer: reg.DefineBuiltin(value.TagInteger, "Integer", object),
		Float:   reg.DefineBuiltin(value.TagFloat, "Float", object),
		Symbol:  reg.DefineBuiltin(value.TagSymbol, "Symbol", object),
		String:  reg.DefineBuiltin(value.TagString, "String", object),
		Array:   reg.DefineBuiltin(value.TagArray, "Array", object),
		Hash:    reg.DefineBuiltin(value.TagHash, "Hash", object),
		Range:   reg.DefineBuiltin(value.TagRange, "Range", object),
		Proc:    reg.DefineBuiltin(value.TagProc, "Proc", object),
	}

	exc := reg.DefineBuiltin(value.TagException, "Exception", object)
	std := subclass(symbols, exc, "StandardError")
	c.Exceptions = Exceptions{
		Exception:           exc,
		StandardError:       std,
		RuntimeError:        subclass(symbols, std, "RuntimeError"),
		ZeroDivisionError:   subclass(symbols, std, "ZeroDivisionError"),
		ArgumentError:       subclass(symbols, std, "ArgumentError"),
		IndexError:          subclass(symbols, std, "IndexError"),
		TypeError:           subclass(symbols, std, "TypeError"),
		NoMethodError:       subclass(symbols, std, "NoMethodError"),
		NotImplementedError: subclass(symbols, std, "NotImplementedError"),
	}

	installObject(reg, symbols, c)
	installInteger(reg, symbols, c)
	installFloat(reg, symbols, c)
	installString(reg, symbols, c)
	installArray(reg, symbols, c)
	installHash(reg, symbols, c)
	installRange(reg, symbols, c)
	installException(reg, symbols, c)

	// Every built-in class is reachable as a top-level constant (GETCONST
	// on Object, per spec.md §4.6's "constants are looked up in the
	// owning class, then Object"), so bytecode can both reference a class
	// by name (e.g. to construct one) and, critically, so the RESCUE
	// opcode's by-name class comparison (pkg/vm/exec.go's excMatches) can
	// resolve "ZeroDivisionError" et al. at all.
	for _, cls := range []*class.Class{
		object, c.Nil, c.True, c.False, c.Integer, c.Float, c.Symbol,
		c.String, c.Array, c.Hash, c.Range, c.Proc,
		c.Exception, c.StandardError, c.RuntimeError, c.ZeroDivisionError,
		c.ArgumentError, c.IndexError, c.TypeError, c.NoMethodError,
		c.NotImplementedError,
	} {
		object.SetConst(cls.NameID(), value.ClassValue(cls))
	}

	return c
}

// subclass builds an exception subclass. These have no dedicated value
// tag (every variant shares value.TagException), so they're created
// directly with class.NewClass rather than reg.DefineBuiltin; dispatch
// reaches them through a value's own ClassRef, not Registry.ClassByTag.
func subclass(symbols *symbol.Table, super *class.Class, name string) *class.Class {
	id, err := symbols.Intern(name)
	if err != nil {
		panic("builtin: cannot intern exception class name " + name + ": " + err.Error())
	}
	return class.NewClass(symbols, id, super)
}

// sym interns name, panicking on failure. Most names here come from the
// reserved built-in symbol table (see pkg/symbol/builtin.go); the few
// that do not (sleep, relinquish, @message) are interned by Init before
// any program bytecode is loaded.
func sym(symbols *symbol.Table, name string) symbol.ID {
	id, err := symbols.Intern(name)
	if err != nil {
		panic("builtin: cannot intern method name " + name + ": " + err.Error())
	}
	return id
}
