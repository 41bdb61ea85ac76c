package value

import (
	"testing"

	"github.com/mrbc-go/mrbcvm/pkg/alloc"
)

type fakeClass string

func (c fakeClass) Name() string { return string(c) }

func newHeap(t *testing.T) *Heap {
	t.Helper()
	pool := alloc.NewPool(64*1024, alloc.DefaultConfig())
	return NewHeap(pool)
}

// TestRefcountLifecycle verifies invariant 4 from spec.md §8: after a
// sequence of register moves, refcounts match reachable references, and
// releasing everything drives counts to zero.
func TestRefcountLifecycle(t *testing.T) {
	h := newHeap(t)

	str, err := h.NewString(fakeClass("String"), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if got := h.RefCount(str); got != 1 {
		t.Fatalf("fresh string refcount = %d, want 1", got)
	}

	var slotA, slotB Value
	h.CopyInto(&slotA, str)
	if got := h.RefCount(str); got != 2 {
		t.Fatalf("after first CopyInto refcount = %d, want 2", got)
	}

	h.CopyInto(&slotB, slotA)
	if got := h.RefCount(str); got != 3 {
		t.Fatalf("after second CopyInto refcount = %d, want 3", got)
	}

	// Overwriting slotA with Nil must release the old occupant.
	h.CopyInto(&slotA, Nil)
	if got := h.RefCount(str); got != 2 {
		t.Fatalf("after overwrite refcount = %d, want 2", got)
	}

	h.Release(str) // the original NewString reference
	h.Release(slotB)
	if got := h.RefCount(str); got != 0 {
		t.Fatalf("final refcount = %d, want 0", got)
	}
}

// TestArrayRetainsElements verifies that containers retain their
// elements and release them recursively when collected.
func TestArrayRetainsElements(t *testing.T) {
	h := newHeap(t)

	s1, _ := h.NewString(fakeClass("String"), "a")
	s2, _ := h.NewString(fakeClass("String"), "b")

	arr, err := h.NewArray(fakeClass("Array"), []Value{s1, s2})
	if err != nil {
		t.Fatal(err)
	}
	if h.RefCount(s1) != 2 || h.RefCount(s2) != 2 {
		t.Fatalf("array construction should retain elements: s1=%d s2=%d", h.RefCount(s1), h.RefCount(s2))
	}

	h.Release(s1)
	h.Release(s2)
	// The array itself still holds one reference to each.
	if h.RefCount(s1) != 1 || h.RefCount(s2) != 1 {
		t.Fatalf("array should still hold a reference: s1=%d s2=%d", h.RefCount(s1), h.RefCount(s2))
	}

	h.Release(arr)
	if h.RefCount(s1) != 0 || h.RefCount(s2) != 0 {
		t.Fatalf("releasing array should release elements: s1=%d s2=%d", h.RefCount(s1), h.RefCount(s2))
	}
}

func TestEqualVariants(t *testing.T) {
	h := newHeap(t)

	a, _ := h.NewString(fakeClass("String"), "same")
	b, _ := h.NewString(fakeClass("String"), "same")
	c, _ := h.NewString(fakeClass("String"), "different")

	if !Equal(h, a, b) {
		t.Error("equal-content strings should compare equal")
	}
	if Equal(h, a, c) {
		t.Error("different-content strings should not compare equal")
	}

	if !Equal(h, Int(1), Float(1.0)) {
		t.Error("1 == 1.0 should hold across integer/float tags")
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Nil, false},
		{False, false},
		{True, true},
		{Int(0), true},
		{Int(0), true}, // unlike C, 0 is truthy in Ruby semantics
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v.Tag, got, c.want)
		}
	}
}
