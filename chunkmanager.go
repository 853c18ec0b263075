package silo

import (
	"sync"
	"sync/atomic"
)

// ChunkHandle is a (id, version) pair addressing one chunk slot. Version 0
// is invalid; a handle is stale once the manager's slot has moved on to a
// newer version.
type ChunkHandle struct {
	id      uint32
	version uint32
}

// Valid reports whether h carries a non-zero version.
func (h ChunkHandle) Valid() bool { return h.version != 0 }

const slotsPerBlock = 1 << 10 // 1024 slots per lazily-allocated metadata block

// chunkSlot packs (version, shareCount) into one atomic word, updated by
// compare-and-swap. silo always uses the packed-atomic slot, even when a
// caller only ever drives the manager from one goroutine: it costs one CAS
// instead of a plain store/load and is simpler than maintaining two code
// paths, while `bytes` reads stay wait-free either way.
type chunkSlot struct {
	state atomic.Uint64 // high 32 bits: version, low 32 bits: shareCount
	data  []byte
}

func packSlotState(version, shareCount uint32) uint64 {
	return uint64(version)<<32 | uint64(shareCount)
}

func unpackSlotState(v uint64) (version, shareCount uint32) {
	return uint32(v >> 32), uint32(v)
}

// ChunkManager allocates fixed-size chunks and hands out versioned handles
// to them. Slot metadata lives in a two-level "block of blocks" table:
// blocks are slices of slotsPerBlock chunkSlots, allocated lazily as ids
// climb past the current capacity; freed slot ids are kept on a LIFO free
// list to maximize reuse locality.
//
// There is no teacher analog for this file: the teacher's whole storage
// layer sits on top of its `table` dependency, internalized here instead
// (see DESIGN.md).
type ChunkManager struct {
	mu        sync.Mutex // guards blocks growth and the free list only
	blocks    []*[slotsPerBlock]chunkSlot
	freeList  []uint32
	nextID    uint32
	maxBlocks int
	chunkSize int
	allocator Allocator
	events    ChunkEvents
}

// NewChunkManager constructs a manager that hands out chunkSize-byte
// buffers, bounded to maxBlocks*slotsPerBlock live slots.
func NewChunkManager(chunkSize, maxBlocks int, allocator Allocator, events ChunkEvents) *ChunkManager {
	if allocator == nil {
		allocator = defaultAllocator
	}
	return &ChunkManager{
		chunkSize: chunkSize,
		maxBlocks: maxBlocks,
		allocator: allocator,
		events:    events,
	}
}

func (cm *ChunkManager) slot(id uint32) *chunkSlot {
	block := id / slotsPerBlock
	return &cm.blocks[block][id%slotsPerBlock]
}

// Allocate reserves a new chunk and returns its handle. Exceeding the
// configured capacity (maxBlocks*slotsPerBlock) is fatal.
func (cm *ChunkManager) Allocate() ChunkHandle {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var id uint32
	if n := len(cm.freeList); n > 0 {
		id = cm.freeList[n-1]
		cm.freeList = cm.freeList[:n-1]
	} else {
		id = cm.nextID
		if int(id)/slotsPerBlock >= cm.maxBlocks {
			fatalf("silo: chunk manager capacity exceeded (%d blocks of %d slots)", cm.maxBlocks, slotsPerBlock)
		}
		if int(id)/slotsPerBlock >= len(cm.blocks) {
			cm.blocks = append(cm.blocks, new([slotsPerBlock]chunkSlot))
		}
		cm.nextID++
	}

	s := cm.slot(id)
	newVersion := uint32(1)
	if cur, _ := unpackSlotState(s.state.Load()); cur != 0 {
		newVersion = cur + 1
	}
	if s.data == nil || len(s.data) != cm.chunkSize {
		s.data = cm.allocator.Alloc(cm.chunkSize)
	} else {
		clear(s.data)
	}
	s.state.Store(packSlotState(newVersion, 0))

	h := ChunkHandle{id: id, version: newVersion}
	if cm.events.OnAllocate != nil {
		cm.events.OnAllocate(h)
	}
	return h
}

// Free releases a chunk back to the manager. Freeing a chunk with a nonzero
// share count is structural misuse and is fatal. The slot's memory is
// zeroed so the next Allocate of this id appears zero-initialized.
func (cm *ChunkManager) Free(h ChunkHandle) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	s := cm.slot(h.id)
	version, shareCount := unpackSlotState(s.state.Load())
	if version != h.version {
		return // stale handle: silently a no-op
	}
	if shareCount != 0 {
		fatalf("silo: chunk %d freed while %d borrow(s) outstanding", h.id, shareCount)
	}
	clear(s.data)
	// Version advances but stays nonzero, so stale handles fail and the next
	// Allocate of this id can tell "previously allocated" from "never
	// allocated" and bump the version once more.
	s.state.Store(packSlotState(version+1, 0))
	cm.freeList = append(cm.freeList, h.id)
	if cm.events.OnFree != nil {
		cm.events.OnFree(h)
	}
}

// Bytes returns the raw backing buffer for h, or (nil, false) if h is stale.
// There is no borrow tracking on this path: callers must not interleave
// Bytes access with a concurrent Free of the same handle; use Acquire/
// Release for a scoped borrow that prevents freeing.
func (cm *ChunkManager) Bytes(h ChunkHandle) ([]byte, bool) {
	s := cm.slot(h.id)
	version, _ := unpackSlotState(s.state.Load())
	if version != h.version {
		return nil, false
	}
	return s.data, true
}

// Acquire takes a scoped borrow on h, preventing Free from succeeding until
// a matching Release. Returns false if h is stale.
func (cm *ChunkManager) Acquire(h ChunkHandle) bool {
	s := cm.slot(h.id)
	for {
		old := s.state.Load()
		version, shareCount := unpackSlotState(old)
		if version != h.version {
			return false
		}
		if s.state.CompareAndSwap(old, packSlotState(version, shareCount+1)) {
			return true
		}
	}
}

// Release ends a scoped borrow previously taken with Acquire. A release
// against an id with no outstanding borrows is a share-count underflow,
// which is structural misuse and is fatal.
func (cm *ChunkManager) Release(h ChunkHandle) {
	s := cm.slot(h.id)
	for {
		old := s.state.Load()
		version, shareCount := unpackSlotState(old)
		if version != h.version {
			return // stale: nothing to release
		}
		if shareCount == 0 {
			fatalf("silo: chunk %d share count underflow on release", h.id)
		}
		if s.state.CompareAndSwap(old, packSlotState(version, shareCount-1)) {
			return
		}
	}
}

// ShareCount returns the current outstanding-borrow count for h (0 if h is
// stale), mainly useful in tests.
func (cm *ChunkManager) ShareCount(h ChunkHandle) uint32 {
	s := cm.slot(h.id)
	version, shareCount := unpackSlotState(s.state.Load())
	if version != h.version {
		return 0
	}
	return shareCount
}
