package builtin

import (
	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

func installFloat(reg *class.Registry, symbols *symbol.Table, c *Classes) {
	f := c.Float

	binop := func(name string, op func(a, b float64) float64) {
		reg.Define(f, sym(symbols, name), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
			a, _, _ := numeric(recv)
			b, _, ok := numeric(args[0])
			if !ok {
				return value.Value{}, ctx.Raise(c.TypeError, "expected numeric")
			}
			return value.Float(op(a, b)), nil
		})
	}
	binop("+", func(a, b float64) float64 { return a + b })
	binop("-", func(a, b float64) float64 { return a - b })
	binop("*", func(a, b float64) float64 { return a * b })

	reg.Define(f, sym(symbols, "/"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		a, _, _ := numeric(recv)
		b, _, ok := numeric(args[0])
		if !ok {
			return value.Value{}, ctx.Raise(c.TypeError, "expected numeric")
		}
		if b == 0 {
			return value.Value{}, ctx.Raise(c.ZeroDivisionError, "divided by 0")
		}
		return value.Float(a / b), nil
	})

	cmp := func(name string, pred func(a, b float64) bool) {
		reg.Define(f, sym(symbols, name), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
			a, _, _ := numeric(recv)
			b, _, ok := numeric(args[0])
			if !ok {
				return value.Value{}, ctx.Raise(c.TypeError, "expected numeric")
			}
			return value.Bool(pred(a, b)), nil
		})
	}
	cmp("==", func(a, b float64) bool { return a == b })
	cmp("<", func(a, b float64) bool { return a < b })
	cmp("<=", func(a, b float64) bool { return a <= b })
	cmp(">", func(a, b float64) bool { return a > b })
	cmp(">=", func(a, b float64) bool { return a >= b })

	reg.Define(f, sym(symbols, "to_i"), func(_ class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		v, _ := recv.Float64()
		return value.Int(int64(v)), nil
	})
	reg.Define(f, sym(symbols, "to_f"), func(_ class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return recv, nil
	})
	reg.Define(f, sym(symbols, "to_s"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return ctx.Heap().NewString(c.String, ToS(ctx, recv))
	})
}
