package builtin

import (
	"fmt"

	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

// installObject wires Object's small Kernel-ish surface: the methods
// every value responds to, plus puts/print/p, which spec.md's S1/S2/S5
// scenarios exercise via Object rather than a dedicated Kernel module.
func installObject(reg *class.Registry, symbols *symbol.Table, c *Classes) {
	o := c.Object

	reg.Define(o, sym(symbols, "class"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return value.ClassValue(ctx.Registry().ClassOf(recv)), nil
	})
	reg.Define(o, sym(symbols, "nil?"), func(_ class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return value.Bool(recv.Tag == value.TagNil), nil
	})
	reg.Define(o, sym(symbols, "=="), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Value{}, ctx.Raise(c.ArgumentError, "wrong number of arguments")
		}
		return value.Bool(value.Equal(ctx.Heap(), recv, args[0])), nil
	})
	reg.Define(o, sym(symbols, "to_s"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return ctx.Heap().NewString(c.String, ToS(ctx, recv))
	})
	reg.Define(o, sym(symbols, "inspect"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return ctx.Heap().NewString(c.String, Inspect(ctx, recv))
	})
	reg.Define(o, sym(symbols, "respond_to?"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Value{}, ctx.Raise(c.ArgumentError, "wrong number of arguments")
		}
		id, ok := args[0].SymbolID()
		if !ok {
			return value.Value{}, ctx.Raise(c.TypeError, "expected Symbol")
		}
		_, found := ctx.Registry().Lookup(ctx.Registry().ClassOf(recv), id)
		return value.Bool(found), nil
	})

	puts := func(ctx class.Context, _, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			fmt.Fprintln(ctx.Stdout())
			return value.Nil, nil
		}
		for _, a := range args {
			writePuts(ctx, a)
		}
		return value.Nil, nil
	}
	reg.Define(o, sym(symbols, "puts"), puts)

	reg.Define(o, sym(symbols, "print"), func(ctx class.Context, _, _ value.Value, args []value.Value) (value.Value, error) {
		for _, a := range args {
			fmt.Fprint(ctx.Stdout(), ToS(ctx, a))
		}
		return value.Nil, nil
	})
	reg.Define(o, sym(symbols, "p"), func(ctx class.Context, _, _ value.Value, args []value.Value) (value.Value, error) {
		for _, a := range args {
			fmt.Fprintln(ctx.Stdout(), Inspect(ctx, a))
		}
		if len(args) == 1 {
			return args[0], nil
		}
		return value.Nil, nil
	})

	reg.Define(o, sym(symbols, "sleep"), func(ctx class.Context, _, _ value.Value, args []value.Value) (value.Value, error) {
		var ticks int64
		if len(args) == 1 {
			switch {
			case args[0].Tag == value.TagInteger:
				ticks, _ = args[0].Int64()
			case args[0].Tag == value.TagFloat:
				f, _ := args[0].Float64()
				ticks = int64(f)
			default:
				return value.Value{}, ctx.Raise(c.TypeError, "sleep expects a numeric duration")
			}
		}
		if ticks < 0 {
			ticks = 0
		}
		return value.Nil, ctx.Sleep(uint32(ticks))
	})
	reg.Define(o, sym(symbols, "relinquish"), func(ctx class.Context, _, _ value.Value, _ []value.Value) (value.Value, error) {
		return value.Nil, ctx.Relinquish()
	})
}

// writePuts implements puts' array-flattening newline rule: an array
// argument writes one line per element instead of the array itself.
func writePuts(ctx class.Context, v value.Value) {
	if v.Tag == value.TagArray {
		for _, e := range ctx.Heap().Array(v) {
			writePuts(ctx, e)
		}
		return
	}
	fmt.Fprintln(ctx.Stdout(), ToS(ctx, v))
}

// ToS is the default to_s rendering used by puts/print and Object#to_s,
// shared across the built-in classes that don't define their own.
func ToS(ctx class.Context, v value.Value) string {
	switch v.Tag {
	case value.TagNil:
		return ""
	case value.TagTrue:
		return "true"
	case value.TagFalse:
		return "false"
	case value.TagInteger:
		i, _ := v.Int64()
		return fmt.Sprintf("%d", i)
	case value.TagFloat:
		f, _ := v.Float64()
		return fmt.Sprintf("%g", f)
	case value.TagSymbol:
		id, _ := v.SymbolID()
		return ctx.Symbols().String(id)
	case value.TagString:
		return ctx.Heap().String(v)
	case value.TagArray:
		return Inspect(ctx, v)
	case value.TagClass:
		return v.ClassRef().Name()
	default:
		return Inspect(ctx, v)
	}
}

// Inspect is Object#inspect's default rendering.
func Inspect(ctx class.Context, v value.Value) string {
	switch v.Tag {
	case value.TagNil:
		return "nil"
	case value.TagString:
		return fmt.Sprintf("%q", ctx.Heap().String(v))
	case value.TagSymbol:
		id, _ := v.SymbolID()
		return ":" + ctx.Symbols().String(id)
	case value.TagArray:
		elems := ctx.Heap().Array(v)
		s := "["
		for i, e := range elems {
			if i > 0 {
				s += ", "
			}
			s += Inspect(ctx, e)
		}
		return s + "]"
	case value.TagHash:
		entries := ctx.Heap().Hash(v)
		s := "{"
		for i, e := range entries {
			if i > 0 {
				s += ", "
			}
			s += Inspect(ctx, e.Key) + "=>" + Inspect(ctx, e.Val)
		}
		return s + "}"
	default:
		return ToS(ctx, v)
	}
}
