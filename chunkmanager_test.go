package silo

import "testing"

func TestChunkManagerAllocateBytesFree(t *testing.T) {
	cm := NewChunkManager(256, 4, nil, ChunkEvents{})
	h := cm.Allocate()
	if !h.Valid() {
		t.Fatalf("freshly allocated handle should be valid")
	}
	bytes, ok := cm.Bytes(h)
	if !ok {
		t.Fatalf("Bytes should succeed for a live handle")
	}
	if len(bytes) != 256 {
		t.Errorf("chunk size = %d, want 256", len(bytes))
	}
	for _, b := range bytes {
		if b != 0 {
			t.Fatalf("freshly allocated chunk should be zero-initialized")
		}
	}
	bytes[0] = 0xFF

	cm.Free(h)
	if _, ok := cm.Bytes(h); ok {
		t.Errorf("Bytes should fail for a freed (stale) handle")
	}
}

func TestChunkManagerFreedSlotIsZeroedOnReuse(t *testing.T) {
	cm := NewChunkManager(64, 4, nil, ChunkEvents{})
	h1 := cm.Allocate()
	b1, _ := cm.Bytes(h1)
	b1[3] = 0xAB
	cm.Free(h1)

	h2 := cm.Allocate()
	b2, _ := cm.Bytes(h2)
	if b2[3] != 0 {
		t.Errorf("reused slot should be zeroed, found %x at offset 3", b2[3])
	}
	if h1.id != h2.id {
		t.Fatalf("expected slot id reuse via free list, got %d then %d", h1.id, h2.id)
	}
	if h1.version == h2.version {
		t.Errorf("reused slot must carry a new version, got %d both times", h1.version)
	}
}

func TestChunkManagerAcquireReleaseGatesFree(t *testing.T) {
	cm := NewChunkManager(64, 4, nil, ChunkEvents{})
	h := cm.Allocate()
	if !cm.Acquire(h) {
		t.Fatalf("Acquire should succeed on a live handle")
	}
	if cm.ShareCount(h) != 1 {
		t.Errorf("ShareCount = %d, want 1", cm.ShareCount(h))
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("Free with a nonzero share count should panic (ChunkInUse)")
		}
	}()
	cm.Free(h)
}

func TestChunkManagerReleaseAllowsFree(t *testing.T) {
	cm := NewChunkManager(64, 4, nil, ChunkEvents{})
	h := cm.Allocate()
	cm.Acquire(h)
	cm.Release(h)
	if cm.ShareCount(h) != 0 {
		t.Fatalf("ShareCount after Release = %d, want 0", cm.ShareCount(h))
	}
	cm.Free(h) // must not panic
}

func TestChunkManagerStaleHandleOperationsAreSilent(t *testing.T) {
	cm := NewChunkManager(64, 4, nil, ChunkEvents{})
	h := cm.Allocate()
	cm.Free(h)

	cm.Free(h) // double free of a stale handle: silent no-op, not a panic
	if cm.Acquire(h) {
		t.Errorf("Acquire on a stale handle should return false")
	}
	cm.Release(h) // release on a stale handle: silent no-op
}

func TestChunkManagerCapacityExceeded(t *testing.T) {
	cm := NewChunkManager(16, 1, nil, ChunkEvents{}) // 1 block * slotsPerBlock slots
	for i := 0; i < slotsPerBlock; i++ {
		cm.Allocate()
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Allocate past capacity to panic")
		}
	}()
	cm.Allocate()
}

func TestChunkManagerEvents(t *testing.T) {
	var allocated, freed []ChunkHandle
	events := ChunkEvents{
		OnAllocate: func(h ChunkHandle) { allocated = append(allocated, h) },
		OnFree:     func(h ChunkHandle) { freed = append(freed, h) },
	}
	cm := NewChunkManager(16, 4, nil, events)
	h := cm.Allocate()
	cm.Free(h)
	if len(allocated) != 1 || allocated[0] != h {
		t.Errorf("OnAllocate not fired correctly: %v", allocated)
	}
	if len(freed) != 1 || freed[0] != h {
		t.Errorf("OnFree not fired correctly: %v", freed)
	}
}
