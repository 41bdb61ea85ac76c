package symbol

import (
	"testing"

	"github.com/mrbc-go/mrbcvm/pkg/alloc"
)

func newTable(t *testing.T) *Table {
	t.Helper()
	pool := alloc.NewPool(64*1024, alloc.DefaultConfig())
	return New(pool, DefaultCapacity)
}

// TestInternIdempotent verifies invariant 5: interning the same string
// always returns the same id, and the string round-trips byte-for-byte.
func TestInternIdempotent(t *testing.T) {
	tbl := newTable(t)

	names := []string{"foo", "bar_baz", "Quux?", "a", "a_much_longer_identifier"}
	ids := make(map[string]ID, len(names))

	for _, n := range names {
		id, err := tbl.Intern(n)
		if err != nil {
			t.Fatalf("intern %q: %v", n, err)
		}
		ids[n] = id
	}

	for _, n := range names {
		again, err := tbl.Intern(n)
		if err != nil {
			t.Fatalf("re-intern %q: %v", n, err)
		}
		if again != ids[n] {
			t.Errorf("intern(%q) not idempotent: got %d, want %d", n, again, ids[n])
		}
		if got := tbl.String(ids[n]); got != n {
			t.Errorf("String(intern(%q)) = %q, want %q", n, got, n)
		}
	}
}

// TestBuiltinIDsStable verifies that a handful of well-known built-in
// names sit at fixed, predictable ids regardless of what a program
// interns afterward.
func TestBuiltinIDsStable(t *testing.T) {
	tbl := newTable(t)

	plus, err := tbl.Intern("+")
	if err != nil {
		t.Fatal(err)
	}
	if plus != 0 {
		t.Errorf(`Intern("+") = %d, want 0`, plus)
	}

	// Interning a fresh dynamic name must not disturb built-in ids.
	if _, err := tbl.Intern("my_custom_method"); err != nil {
		t.Fatal(err)
	}
	again, err := tbl.Intern("+")
	if err != nil {
		t.Fatal(err)
	}
	if again != plus {
		t.Errorf(`Intern("+") drifted after interning a dynamic name: got %d, want %d`, again, plus)
	}
}

func TestTableFull(t *testing.T) {
	pool := alloc.NewPool(1<<20, alloc.DefaultConfig())
	tbl := New(pool, 4)

	for i := 0; i < 4; i++ {
		if _, err := tbl.Intern(string(rune('a' + i))); err != nil {
			t.Fatalf("intern %d: %v", i, err)
		}
	}
	if _, err := tbl.Intern("overflow"); err != ErrTableFull {
		t.Errorf("expected ErrTableFull, got %v", err)
	}
}
