package builtin

import (
	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

// messageIVar is the instance variable every exception stores its
// message under; raise (pkg/vm) and Exception#message/#initialize both
// agree on this name.
const messageIVar = "@message"

// installException wires the Exception hierarchy's shared surface.
// Subclasses inherit all of it through class.Registry.Lookup's
// superclass walk; none of RuntimeError/ZeroDivisionError/etc. need
// their own methods.
func installException(reg *class.Registry, symbols *symbol.Table, c *Classes) {
	e := c.Exception
	msgSym := sym(symbols, messageIVar)

	reg.Define(e, sym(symbols, "initialize"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		msg := recv.ClassRef().Name()
		if len(args) == 1 && args[0].Tag == value.TagString {
			msg = ctx.Heap().String(args[0])
		}
		sv, err := ctx.Heap().NewString(c.String, msg)
		if err != nil {
			return value.Value{}, err
		}
		ctx.Heap().SetIVar(recv, msgSym, sv)
		return recv, nil
	})
	reg.Define(e, sym(symbols, "message"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		m := ctx.Heap().GetIVar(recv, msgSym)
		if m.Tag == value.TagNil {
			return ctx.Heap().NewString(c.String, recv.ClassRef().Name())
		}
		return m, nil
	})
	reg.Define(e, sym(symbols, "to_s"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		m := ctx.Heap().GetIVar(recv, msgSym)
		if m.Tag == value.TagNil {
			return ctx.Heap().NewString(c.String, recv.ClassRef().Name())
		}
		return m, nil
	})
	reg.Define(e, sym(symbols, "class"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return value.ClassValue(recv.ClassRef()), nil
	})
}

// NewException constructs an exception instance of cls carrying message
// under @message, the shape pkg/vm's RAISE opcode and host-raised errors
// both use.
func NewException(h *value.Heap, symbols *symbol.Table, stringClass, cls *class.Class, message string) (value.Value, error) {
	v, err := h.NewException(cls)
	if err != nil {
		return value.Value{}, err
	}
	sv, err := h.NewString(stringClass, message)
	if err != nil {
		return value.Value{}, err
	}
	msgSym := sym(symbols, messageIVar)
	h.SetIVar(v, msgSym, sv)
	return v, nil
}
