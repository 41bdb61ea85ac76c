package builtin

import (
	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

func installRange(reg *class.Registry, symbols *symbol.Table, c *Classes) {
	r := c.Range

	reg.Define(r, sym(symbols, "first"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return ctx.Heap().Range(recv).Begin, nil
	})
	reg.Define(r, sym(symbols, "last"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return ctx.Heap().Range(recv).End, nil
	})
	reg.Define(r, sym(symbols, "include?"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Value{}, ctx.Raise(c.ArgumentError, "wrong number of arguments")
		}
		rg := ctx.Heap().Range(recv)
		bi, bok := rg.Begin.Int64()
		ei, eok := rg.End.Int64()
		vi, vok := args[0].Int64()
		if !bok || !eok || !vok {
			return value.Bool(false), nil
		}
		if rg.Exclusive {
			return value.Bool(vi >= bi && vi < ei), nil
		}
		return value.Bool(vi >= bi && vi <= ei), nil
	})
	reg.Define(r, sym(symbols, "each"), func(ctx class.Context, recv, block value.Value, _ []value.Value) (value.Value, error) {
		if block.Tag == value.TagEmpty {
			return value.Value{}, ctx.Raise(c.ArgumentError, "each requires a block")
		}
		rg := ctx.Heap().Range(recv)
		bi, bok := rg.Begin.Int64()
		ei, eok := rg.End.Int64()
		if !bok || !eok {
			return value.Value{}, ctx.Raise(c.TypeError, "each only supports Integer ranges")
		}
		if rg.Exclusive {
			ei--
		}
		for k := bi; k <= ei; k++ {
			if _, err := ctx.CallBlock(block, []value.Value{value.Int(k)}); err != nil {
				return value.Value{}, err
			}
		}
		return recv, nil
	})
	reg.Define(r, sym(symbols, "to_a"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		rg := ctx.Heap().Range(recv)
		bi, bok := rg.Begin.Int64()
		ei, eok := rg.End.Int64()
		if !bok || !eok {
			return value.Value{}, ctx.Raise(c.TypeError, "to_a only supports Integer ranges")
		}
		if rg.Exclusive {
			ei--
		}
		elems := make([]value.Value, 0, ei-bi+1)
		for k := bi; k <= ei; k++ {
			elems = append(elems, value.Int(k))
		}
		return ctx.Heap().NewArray(c.Array, elems)
	})
}
