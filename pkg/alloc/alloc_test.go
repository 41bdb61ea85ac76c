package alloc

import "testing"

// TestAllocFreeRoundTrip verifies invariant 1 from spec.md §8: after every
// operation, used+free bytes equals capacity, and freeing everything
// collapses the pool back to a single free block.
func TestAllocFreeRoundTrip(t *testing.T) {
	p := NewPool(4096, DefaultConfig())

	var handles []Handle
	for i := 0; i < 8; i++ {
		h, err := p.Alloc(64)
		if err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
		handles = append(handles, h)

		used, free := p.Stats()
		if used+free != 4096 {
			t.Fatalf("after alloc %d: used+free = %d, want 4096", i, used+free)
		}
	}

	for _, h := range handles {
		if err := p.Free(h); err != nil {
			t.Fatalf("free %v: %v", h, err)
		}
		used, free := p.Stats()
		if used+free != 4096 {
			t.Fatalf("after free: used+free = %d, want 4096", used+free)
		}
	}

	if n := p.BlockCount(); n != 1 {
		t.Errorf("after freeing everything: %d physical blocks, want 1", n)
	}
	used, free := p.Stats()
	if used != 0 || free != 4096 {
		t.Errorf("after freeing everything: used=%d free=%d, want 0/4096", used, free)
	}
}

// TestCoalesceNeighbors verifies invariant 2: freeing a block whose
// physical neighbors are free yields exactly one free block.
func TestCoalesceNeighbors(t *testing.T) {
	p := NewPool(1024, DefaultConfig())

	a, err := p.Alloc(64)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Alloc(64)
	if err != nil {
		t.Fatal(err)
	}
	c, err := p.Alloc(64)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Free(a); err != nil {
		t.Fatal(err)
	}
	if err := p.Free(c); err != nil {
		t.Fatal(err)
	}
	before := p.BlockCount()

	if err := p.Free(b); err != nil {
		t.Fatal(err)
	}
	after := p.BlockCount()

	// Freeing b should merge with both a's and c's now-free blocks,
	// collapsing three physical blocks into one.
	if after != before-2 {
		t.Errorf("block count went from %d to %d, want drop of 2", before, after)
	}
}

// TestFreeAllIsolation verifies invariant 3: free_all(A) only touches
// blocks owned by A, leaving B's blocks and bytes untouched.
func TestFreeAllIsolation(t *testing.T) {
	p := NewPool(8192, DefaultConfig())

	const vmA, vmB = 1, 2
	var aHandles, bHandles []Handle

	for i := 0; i < 5; i++ {
		h, err := p.Alloc(32)
		if err != nil {
			t.Fatal(err)
		}
		p.SetOwner(h, vmA)
		copy(p.Bytes(h), []byte("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"))
		aHandles = append(aHandles, h)
	}
	for i := 0; i < 3; i++ {
		h, err := p.Alloc(32)
		if err != nil {
			t.Fatal(err)
		}
		p.SetOwner(h, vmB)
		payload := make([]byte, 32)
		for j := range payload {
			payload[j] = byte('B' + i)
		}
		copy(p.Bytes(h), payload)
		bHandles = append(bHandles, h)
	}

	snapshots := make(map[Handle][]byte, len(bHandles))
	for _, h := range bHandles {
		buf := append([]byte(nil), p.Bytes(h)...)
		snapshots[h] = buf
	}

	freed := p.FreeAll(vmA)
	if freed != len(aHandles) {
		t.Errorf("FreeAll(vmA) freed %d blocks, want %d", freed, len(aHandles))
	}

	for _, h := range bHandles {
		if p.Owner(h) != vmB {
			t.Errorf("block %v owner changed after FreeAll(vmA)", h)
		}
		got := p.Bytes(h)
		want := snapshots[h]
		if string(got) != string(want) {
			t.Errorf("block %v payload mutated by FreeAll(vmA): got %q want %q", h, got, want)
		}
	}
}

// TestAllocStressCoalesce is scenario S6: repeatedly alloc 64 bytes until
// failure, free half, then a 128-byte alloc must succeed via coalescing.
func TestAllocStressCoalesce(t *testing.T) {
	p := NewPool(4096, DefaultConfig())

	var handles []Handle
	for {
		h, err := p.Alloc(64)
		if err != nil {
			break
		}
		handles = append(handles, h)
	}
	if len(handles) == 0 {
		t.Fatal("expected at least one successful 64-byte allocation")
	}

	// Free a contiguous front half so the freed blocks are physical
	// neighbors of each other and cascade-coalesce into one region.
	for _, h := range handles[:len(handles)/2] {
		if err := p.Free(h); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := p.Alloc(128); err != nil {
		t.Fatalf("128-byte alloc after freeing a contiguous half should succeed via coalescing: %v", err)
	}
}

// TestAllocPermanentNeverFreed exercises alloc_no_free semantics: the
// block survives a FreeAll for its nominal owner id.
func TestAllocPermanentNeverFreed(t *testing.T) {
	p := NewPool(2048, DefaultConfig())

	h, err := p.AllocPermanent(48)
	if err != nil {
		t.Fatal(err)
	}
	copy(p.Bytes(h), []byte("interned"))

	p.FreeAll(0) // permanent blocks default to owner 0

	if got := string(p.Bytes(h)[:8]); got != "interned" {
		t.Errorf("permanent allocation was reclaimed: got %q", got)
	}
}

func TestAllocExhaustion(t *testing.T) {
	p := NewPool(128, DefaultConfig())
	if _, err := p.Alloc(64); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Alloc(1024); err != ErrNoMemory {
		t.Errorf("expected ErrNoMemory for oversized alloc, got %v", err)
	}
}

func TestReallocGrowInPlace(t *testing.T) {
	p := NewPool(1024, DefaultConfig())

	h, err := p.Alloc(32)
	if err != nil {
		t.Fatal(err)
	}
	copy(p.Bytes(h), []byte("hello"))

	grown, err := p.Realloc(h, 64)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(p.Bytes(grown)[:5]); got != "hello" {
		t.Errorf("realloc lost payload: got %q", got)
	}
	if p.Size(grown) != 64 {
		t.Errorf("realloc size = %d, want 64", p.Size(grown))
	}
}
