package builtin

import (
	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

func installHash(reg *class.Registry, symbols *symbol.Table, c *Classes) {
	h := c.Hash

	reg.Define(h, sym(symbols, "[]"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Value{}, ctx.Raise(c.ArgumentError, "wrong number of arguments")
		}
		v, _ := ctx.Heap().HashGet(recv, args[0])
		return v, nil
	})
	reg.Define(h, sym(symbols, "[]="), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Value{}, ctx.Raise(c.ArgumentError, "wrong number of arguments")
		}
		ctx.Heap().HashSet(recv, args[0], args[1])
		return args[1], nil
	})
	reg.Define(h, sym(symbols, "size"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return value.Int(int64(ctx.Heap().HashSize(recv))), nil
	})
	reg.Define(h, sym(symbols, "keys"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		entries := ctx.Heap().Hash(recv)
		keys := make([]value.Value, len(entries))
		for i, e := range entries {
			keys[i] = e.Key
		}
		return ctx.Heap().NewArray(c.Array, keys)
	})
	reg.Define(h, sym(symbols, "values"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		entries := ctx.Heap().Hash(recv)
		vals := make([]value.Value, len(entries))
		for i, e := range entries {
			vals[i] = e.Val
		}
		return ctx.Heap().NewArray(c.Array, vals)
	})
	reg.Define(h, sym(symbols, "merge"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 || args[0].Tag != value.TagHash {
			return value.Value{}, ctx.Raise(c.TypeError, "expected Hash")
		}
		out, err := ctx.Heap().NewHash(c.Hash)
		if err != nil {
			return value.Value{}, err
		}
		for _, e := range ctx.Heap().Hash(recv) {
			ctx.Heap().HashSet(out, e.Key, e.Val)
		}
		for _, e := range ctx.Heap().Hash(args[0]) {
			ctx.Heap().HashSet(out, e.Key, e.Val)
		}
		return out, nil
	})
	reg.Define(h, sym(symbols, "each"), func(ctx class.Context, recv, block value.Value, _ []value.Value) (value.Value, error) {
		if block.Tag == value.TagEmpty {
			return value.Value{}, ctx.Raise(c.ArgumentError, "each requires a block")
		}
		for _, e := range ctx.Heap().Hash(recv) {
			if _, err := ctx.CallBlock(block, []value.Value{e.Key, e.Val}); err != nil {
				return value.Value{}, err
			}
		}
		return recv, nil
	})
}
