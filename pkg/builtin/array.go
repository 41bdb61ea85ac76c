package builtin

import (
	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

func installArray(reg *class.Registry, symbols *symbol.Table, c *Classes) {
	a := c.Array

	reg.Define(a, sym(symbols, "push"), pushImpl)
	reg.Define(a, sym(symbols, "<<"), pushImpl)

	reg.Define(a, sym(symbols, "pop"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		elems := ctx.Heap().Array(recv)
		if len(elems) == 0 {
			return value.Nil, nil
		}
		last := elems[len(elems)-1]
		if err := ctx.Heap().ArraySet(recv, len(elems)-1, value.Nil); err != nil {
			return value.Value{}, err
		}
		return last, nil
	})

	reg.Define(a, sym(symbols, "[]"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Value{}, ctx.Raise(c.ArgumentError, "wrong number of arguments")
		}
		idx, ok := args[0].Int64()
		if !ok {
			return value.Value{}, ctx.Raise(c.TypeError, "expected Integer index")
		}
		elems := ctx.Heap().Array(recv)
		i := normalizeIndex(idx, len(elems))
		if i < 0 || i >= len(elems) {
			return value.Nil, nil
		}
		return elems[i], nil
	})

	reg.Define(a, sym(symbols, "[]="), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Value{}, ctx.Raise(c.ArgumentError, "wrong number of arguments")
		}
		idx, ok := args[0].Int64()
		if !ok {
			return value.Value{}, ctx.Raise(c.TypeError, "expected Integer index")
		}
		elems := ctx.Heap().Array(recv)
		i := normalizeIndex(idx, len(elems))
		if i < 0 {
			return value.Value{}, ctx.Raise(c.IndexError, "index out of range")
		}
		for i >= len(ctx.Heap().Array(recv)) {
			ctx.Heap().ArrayPush(recv, value.Nil)
		}
		if err := ctx.Heap().ArraySet(recv, i, args[1]); err != nil {
			return value.Value{}, err
		}
		return args[1], nil
	})

	reg.Define(a, sym(symbols, "size"), arrayLen)
	reg.Define(a, sym(symbols, "length"), arrayLen)

	reg.Define(a, sym(symbols, "first"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		elems := ctx.Heap().Array(recv)
		if len(elems) == 0 {
			return value.Nil, nil
		}
		return elems[0], nil
	})
	reg.Define(a, sym(symbols, "last"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		elems := ctx.Heap().Array(recv)
		if len(elems) == 0 {
			return value.Nil, nil
		}
		return elems[len(elems)-1], nil
	})

	reg.Define(a, sym(symbols, "include?"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Value{}, ctx.Raise(c.ArgumentError, "wrong number of arguments")
		}
		for _, e := range ctx.Heap().Array(recv) {
			if value.Equal(ctx.Heap(), e, args[0]) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	})

	reg.Define(a, sym(symbols, "=="), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 || args[0].Tag != value.TagArray {
			return value.Bool(false), nil
		}
		return value.Bool(value.Equal(ctx.Heap(), recv, args[0])), nil
	})

	reg.Define(a, sym(symbols, "each"), func(ctx class.Context, recv, block value.Value, _ []value.Value) (value.Value, error) {
		if block.Tag == value.TagEmpty {
			return value.Value{}, ctx.Raise(c.ArgumentError, "each requires a block")
		}
		for _, e := range ctx.Heap().Array(recv) {
			if _, err := ctx.CallBlock(block, []value.Value{e}); err != nil {
				return value.Value{}, err
			}
		}
		return recv, nil
	})

	reg.Define(a, sym(symbols, "join"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		sep := ""
		if len(args) == 1 && args[0].Tag == value.TagString {
			sep = ctx.Heap().String(args[0])
		}
		out := ""
		for i, e := range ctx.Heap().Array(recv) {
			if i > 0 {
				out += sep
			}
			out += ToS(ctx, e)
		}
		return ctx.Heap().NewString(c.String, out)
	})

	reg.Define(a, sym(symbols, "to_a"), func(_ class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return recv, nil
	})
}

func pushImpl(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
	for _, v := range args {
		ctx.Heap().ArrayPush(recv, v)
	}
	return recv, nil
}

func arrayLen(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
	return value.Int(int64(len(ctx.Heap().Array(recv)))), nil
}

// normalizeIndex implements Ruby's negative-index-from-end convention.
// A negative index that is still out of range afterward stays negative;
// callers check the result against 0 and the length.
func normalizeIndex(idx int64, length int) int {
	i := int(idx)
	if i < 0 {
		i += length
	}
	return i
}
