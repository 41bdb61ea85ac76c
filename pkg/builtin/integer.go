package builtin

import (
	"math"

	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

// numeric coerces v to a float64 if it is Integer or Float, for the
// mixed-type arithmetic fast path spec.md §4.5 describes.
func numeric(v value.Value) (f float64, isFloat, ok bool) {
	if i, ok := v.Int64(); ok {
		return float64(i), false, true
	}
	if f, ok := v.Float64(); ok {
		return f, true, true
	}
	return 0, false, false
}

func installInteger(reg *class.Registry, symbols *symbol.Table, c *Classes) {
	i := c.Integer

	binop := func(name string, intOp func(a, b int64) int64, floatOp func(a, b float64) float64) {
		reg.Define(i, sym(symbols, name), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
			if len(args) != 1 {
				return value.Value{}, ctx.Raise(c.ArgumentError, "wrong number of arguments")
			}
			a, _ := recv.Int64()
			if bi, ok := args[0].Int64(); ok {
				return value.Int(intOp(a, bi)), nil
			}
			if bf, ok := args[0].Float64(); ok {
				return value.Float(floatOp(float64(a), bf)), nil
			}
			return value.Value{}, ctx.Raise(c.TypeError, "expected numeric")
		})
	}
	binop("+", func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
	binop("-", func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	binop("*", func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })

	reg.Define(i, sym(symbols, "/"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Value{}, ctx.Raise(c.ArgumentError, "wrong number of arguments")
		}
		a, _ := recv.Int64()
		if bi, ok := args[0].Int64(); ok {
			if bi == 0 {
				return value.Value{}, ctx.Raise(c.ZeroDivisionError, "divided by 0")
			}
			return value.Int(a / bi), nil
		}
		if bf, ok := args[0].Float64(); ok {
			return value.Float(float64(a) / bf), nil
		}
		return value.Value{}, ctx.Raise(c.TypeError, "expected numeric")
	})
	reg.Define(i, sym(symbols, "%"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		a, _ := recv.Int64()
		bi, ok := args[0].Int64()
		if !ok {
			return value.Value{}, ctx.Raise(c.TypeError, "expected Integer")
		}
		if bi == 0 {
			return value.Value{}, ctx.Raise(c.ZeroDivisionError, "divided by 0")
		}
		return value.Int(a % bi), nil
	})
	reg.Define(i, sym(symbols, "**"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		a, _ := recv.Int64()
		bi, ok := args[0].Int64()
		if !ok {
			return value.Value{}, ctx.Raise(c.TypeError, "expected Integer")
		}
		return value.Int(int64(math.Pow(float64(a), float64(bi)))), nil
	})

	cmp := func(name string, pred func(a, b float64) bool) {
		reg.Define(i, sym(symbols, name), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
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
	reg.Define(i, sym(symbols, "<=>"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		a, _, _ := numeric(recv)
		b, _, ok := numeric(args[0])
		if !ok {
			return value.Nil, nil
		}
		switch {
		case a < b:
			return value.Int(-1), nil
		case a > b:
			return value.Int(1), nil
		default:
			return value.Int(0), nil
		}
	})

	bitop := func(name string, op func(a, b int64) int64) {
		reg.Define(i, sym(symbols, name), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
			a, _ := recv.Int64()
			b, ok := args[0].Int64()
			if !ok {
				return value.Value{}, ctx.Raise(c.TypeError, "expected Integer")
			}
			return value.Int(op(a, b)), nil
		})
	}
	bitop("&", func(a, b int64) int64 { return a & b })
	bitop("|", func(a, b int64) int64 { return a | b })
	bitop("^", func(a, b int64) int64 { return a ^ b })
	bitop("<<", func(a, b int64) int64 { return a << uint(b) })
	bitop(">>", func(a, b int64) int64 { return a >> uint(b) })

	reg.Define(i, sym(symbols, "to_i"), func(_ class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return recv, nil
	})
	reg.Define(i, sym(symbols, "to_f"), func(_ class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		n, _ := recv.Int64()
		return value.Float(float64(n)), nil
	})
	reg.Define(i, sym(symbols, "to_s"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return ctx.Heap().NewString(c.String, ToS(ctx, recv))
	})

	// times implements the S2 scenario's "5.times { |i| ... }": invoke
	// block once per value in [0, n), passing the counter.
	reg.Define(i, sym(symbols, "times"), func(ctx class.Context, recv, block value.Value, _ []value.Value) (value.Value, error) {
		n, _ := recv.Int64()
		if block.Tag == value.TagEmpty {
			return value.Value{}, ctx.Raise(c.ArgumentError, "times requires a block")
		}
		for k := int64(0); k < n; k++ {
			if _, err := ctx.CallBlock(block, []value.Value{value.Int(k)}); err != nil {
				return value.Value{}, err
			}
		}
		return recv, nil
	})
}
