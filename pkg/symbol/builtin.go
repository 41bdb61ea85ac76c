package symbol

// builtinNames is the static table of reserved symbol ids (spec.md §4.3):
// the first 256 ids are assigned in this order so that common method and
// class names are stable across builds, independent of what a program's
// own bytecode happens to intern first.
var builtinNames = []string{
	// operators
	"+", "-", "*", "/", "%", "**",
	"==", "!=", "<", "<=", ">", ">=", "<=>",
	"[]", "[]=", "!", "&", "|", "^", "<<", ">>", "~",

	// common method names
	"call", "new", "initialize", "to_s", "to_i", "to_f", "to_a", "to_h",
	"inspect", "size", "length", "each", "push", "pop", "shift", "unshift",
	"include?", "message", "class", "respond_to?", "nil?", "dup", "freeze",
	"join", "keys", "values", "merge", "first", "last", "times", "puts",
	"print", "p",

	// class names
	"Object", "NilClass", "TrueClass", "FalseClass", "Integer", "Float",
	"String", "Symbol", "Array", "Hash", "Range", "Proc", "Exception",
	"StandardError", "RuntimeError", "ZeroDivisionError", "ArgumentError",
	"IndexError", "TypeError", "NoMethodError", "NotImplementedError",

	// misc
	"self", "block", "attr_accessor", "attr_reader", "attr_writer",
}
