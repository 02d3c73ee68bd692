package core

import "testing"

func TestTextureInitTracker_MarkAndQuery(t *testing.T) {
	tr := NewTextureInitTracker(3, 2) // 3 mips, 2 array layers

	if tr.IsInitialized(0, 0) {
		t.Fatal("fresh tracker should report every subresource uninitialized")
	}

	tr.MarkInitialized(1, 1, 0, 2) // mip 1, both layers
	if tr.IsInitialized(0, 0) || tr.IsInitialized(2, 0) {
		t.Error("marking mip 1 should not affect mip 0 or mip 2")
	}
	if !tr.IsInitialized(1, 0) || !tr.IsInitialized(1, 1) {
		t.Error("mip 1 should be initialized for both array layers")
	}
}

func TestTextureInitTracker_Idempotence(t *testing.T) {
	tr := NewTextureInitTracker(2, 2)
	tr.MarkInitialized(0, 2, 0, 2)
	snapshot := append([]bool(nil), tr.initialized...)

	tr.MarkInitialized(0, 2, 0, 2)
	for i := range snapshot {
		if tr.initialized[i] != snapshot[i] {
			t.Fatalf("re-marking an already-initialized range changed state at index %d", i)
		}
	}
}

func TestTextureInitTracker_OutOfRangeIsInitialized(t *testing.T) {
	tr := NewTextureInitTracker(1, 1)
	if !tr.IsInitialized(5, 0) || !tr.IsInitialized(0, 5) {
		t.Error("subresources outside the tracked range should report initialized")
	}
	var nilTracker *TextureInitTracker
	if !nilTracker.IsInitialized(0, 0) {
		t.Error("nil tracker should report initialized")
	}
	nilTracker.MarkInitialized(0, 1, 0, 1) // must not panic
}
