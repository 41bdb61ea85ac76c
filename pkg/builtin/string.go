package builtin

import (
	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
)

func installString(reg *class.Registry, symbols *symbol.Table, c *Classes) {
	s := c.String

	reg.Define(s, sym(symbols, "+"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 || args[0].Tag != value.TagString {
			return value.Value{}, ctx.Raise(c.TypeError, "expected String")
		}
		return ctx.Heap().NewString(c.String, ctx.Heap().String(recv)+ctx.Heap().String(args[0]))
	})
	reg.Define(s, sym(symbols, "<<"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 || args[0].Tag != value.TagString {
			return value.Value{}, ctx.Raise(c.TypeError, "expected String")
		}
		// mrbc-vm strings are fixed-size pool blocks; << is modeled here
		// as producing a new String rather than true in-place growth.
		return ctx.Heap().NewString(c.String, ctx.Heap().String(recv)+ctx.Heap().String(args[0]))
	})
	reg.Define(s, sym(symbols, "=="), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 || args[0].Tag != value.TagString {
			return value.Bool(false), nil
		}
		return value.Bool(value.Equal(ctx.Heap(), recv, args[0])), nil
	})
	reg.Define(s, sym(symbols, "length"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return value.Int(int64(len(ctx.Heap().String(recv)))), nil
	})
	reg.Define(s, sym(symbols, "size"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return value.Int(int64(len(ctx.Heap().String(recv)))), nil
	})
	reg.Define(s, sym(symbols, "to_s"), func(_ class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return recv, nil
	})
	reg.Define(s, sym(symbols, "to_i"), func(ctx class.Context, recv, _ value.Value, _ []value.Value) (value.Value, error) {
		return value.Int(parseLeadingInt(ctx.Heap().String(recv))), nil
	})
	reg.Define(s, sym(symbols, "include?"), func(ctx class.Context, recv, _ value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 || args[0].Tag != value.TagString {
			return value.Value{}, ctx.Raise(c.TypeError, "expected String")
		}
		return value.Bool(contains(ctx.Heap().String(recv), ctx.Heap().String(args[0]))), nil
	})
}

func contains(haystack, needle string) bool {
	if len(needle) == 0 {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// parseLeadingInt implements String#to_i's "parse as much as is a valid
// integer, default 0" contract without pulling in strconv's strict
// all-or-nothing parsing.
func parseLeadingInt(s string) int64 {
	i := 0
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	var n int64
	start := i
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int64(s[i]-'0')
	}
	if i == start {
		return 0
	}
	if neg {
		return -n
	}
	return n
}
