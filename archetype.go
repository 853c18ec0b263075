package silo

// Archetype owns the entity list of one component mask: it allocates rows
// into ChunkManager-backed chunks, performs swap-remove, and reports the id
// of whichever entity moved so the caller (World) can patch its location.
//
// Grounded on the teacher's archetype.go (TheBitDrifter/warehouse), which is
// a thin (id, table.Table) pair delegating everything to its `table`
// dependency; silo's Archetype is the full owner, generalized to manage its
// own chunks directly since `table` is internalized here (see DESIGN.md).
type Archetype struct {
	id       archetypeID
	mask     Mask
	layout   *chunkLayout
	registry *ComponentRegistry
	chunkMgr *ChunkManager

	chunks      []ChunkHandle
	entityCount int
}

func newArchetypeInstance(id archetypeID, mask Mask, layout *chunkLayout, registry *ComponentRegistry, chunkMgr *ChunkManager) *Archetype {
	return &Archetype{
		id:       id,
		mask:     mask,
		layout:   layout,
		registry: registry,
		chunkMgr: chunkMgr,
	}
}

// ID returns the archetype's dense identity.
func (a *Archetype) ID() archetypeID { return a.id }

// Mask returns the archetype's component mask.
func (a *Archetype) Mask() Mask { return a.mask }

// EntityCount returns the number of occupied slots.
func (a *Archetype) EntityCount() int { return a.entityCount }

// ChunkCount returns the number of chunks currently held.
func (a *Archetype) ChunkCount() int { return len(a.chunks) }

func (a *Archetype) perChunk() int { return a.layout.EntitiesPerChunk() }

// GetChunkLocation returns the chunk index and in-chunk slot for a global
// entity index, by trivial arithmetic over entitiesPerChunk.
func (a *Archetype) GetChunkLocation(globalIndex int) (chunkIndex, indexInChunk int) {
	per := a.perChunk()
	return globalIndex / per, globalIndex % per
}

// Chunk returns the handle and raw bytes for chunk index chunkIndex.
func (a *Archetype) Chunk(chunkIndex int) (ChunkHandle, []byte) {
	h := a.chunks[chunkIndex]
	bytes, ok := a.chunkMgr.Bytes(h)
	if !ok {
		fatalf("silo: archetype %d holds a stale chunk handle at index %d", a.id, chunkIndex)
	}
	return h, bytes
}

// LiveCountInChunk returns how many of a chunk's rows are occupied: every
// row in a non-last chunk, or entityCount%per (or per, if that's exactly 0
// and the chunk exists) in the last chunk.
func (a *Archetype) LiveCountInChunk(chunkIndex int) int {
	per := a.perChunk()
	if chunkIndex < len(a.chunks)-1 {
		return per
	}
	if a.entityCount == 0 {
		return 0
	}
	rem := a.entityCount % per
	if rem == 0 {
		return per
	}
	return rem
}

// Allocate reserves the next row for entity e, growing the chunk list if the
// last chunk is full, writes e's id into the entity-id column, and returns
// its new globalIndex.
func (a *Archetype) Allocate(e Entity) int {
	per := a.perChunk()
	if len(a.chunks) == 0 || a.entityCount == len(a.chunks)*per {
		a.chunks = append(a.chunks, a.chunkMgr.Allocate())
	}
	globalIndex := a.entityCount
	chunkIdx, idxInChunk := a.GetChunkLocation(globalIndex)
	_, bytes := a.Chunk(chunkIdx)
	putEntityID(bytes, a.layout.EntityIDOffset(idxInChunk), a.layout.entityIDSize, e.ID())
	a.entityCount++
	return globalIndex
}

// rawEntityIDAt returns the entity id stored at globalIndex's slot. Archetype
// only stores ids in the entity-id column; versions live in the EntityManager.
func (a *Archetype) rawEntityIDAt(globalIndex int) uint32 {
	chunkIdx, idxInChunk := a.GetChunkLocation(globalIndex)
	_, bytes := a.Chunk(chunkIdx)
	return getEntityID(bytes, a.layout.EntityIDOffset(idxInChunk), a.layout.entityIDSize)
}

// Remove swap-removes the row at globalIndex with the archetype's last row,
// decrements entityCount, and frees any chunk left fully empty at the tail.
// It returns the id of whichever entity occupied the last slot before the
// swap (the caller must patch that entity's location), and whether a move
// actually happened (false when the removed slot was already last).
func (a *Archetype) Remove(globalIndex int) (movedID uint32, hasMoved bool) {
	lastIndex := a.entityCount - 1
	if globalIndex < 0 || globalIndex > lastIndex {
		fatalf("silo: archetype %d remove index %d out of range [0,%d)", a.id, globalIndex, a.entityCount)
	}

	if globalIndex != lastIndex {
		movedID = a.rawEntityIDAt(lastIndex)
		a.copyRow(lastIndex, globalIndex)
		hasMoved = true
	}

	a.entityCount--
	a.freeTrailingEmptyChunks()
	return movedID, hasMoved
}

// copyRow copies the entity-id byte window and every present, non-zero-size
// component column from srcIndex to dstIndex.
func (a *Archetype) copyRow(srcIndex, dstIndex int) {
	srcChunkIdx, srcOff := a.GetChunkLocation(srcIndex)
	dstChunkIdx, dstOff := a.GetChunkLocation(dstIndex)
	_, srcBytes := a.Chunk(srcChunkIdx)
	_, dstBytes := a.Chunk(dstChunkIdx)

	srcIDOff := a.layout.EntityIDOffset(srcOff)
	dstIDOff := a.layout.EntityIDOffset(dstOff)
	copy(dstBytes[dstIDOff:dstIDOff+a.layout.entityIDSize], srcBytes[srcIDOff:srcIDOff+a.layout.entityIDSize])

	a.mask.Iterate(func(id ComponentId) bool {
		info, _ := a.registry.Info(id)
		if info.Size == 0 {
			return true
		}
		base, ok := a.layout.BaseOffset(id)
		if !ok {
			return true
		}
		size := int(info.Size)
		s := base + srcOff*size
		d := base + dstOff*size
		copy(dstBytes[d:d+size], srcBytes[s:s+size])
		return true
	})
}

// freeTrailingEmptyChunks releases chunks past the last one that still
// holds at least one entity, keeping the invariant that no interior chunk
// is empty.
func (a *Archetype) freeTrailingEmptyChunks() {
	per := a.perChunk()
	neededChunks := 0
	if a.entityCount > 0 {
		neededChunks = (a.entityCount-1)/per + 1
	}
	for len(a.chunks) > neededChunks {
		last := len(a.chunks) - 1
		a.chunkMgr.Free(a.chunks[last])
		a.chunks = a.chunks[:last]
	}
}

// CopyChunksFrom deep-copies every chunk of other into a's own chunk
// manager, preserving indices, for world-to-world replication. Both
// archetypes must already share the same mask/layout.
func (a *Archetype) CopyChunksFrom(other *Archetype) {
	a.freeAllChunks()
	for i := 0; i < other.ChunkCount(); i++ {
		_, srcBytes := other.Chunk(i)
		h := a.chunkMgr.Allocate()
		_, dstBytes := a.chunkMgr.Bytes(h)
		copy(dstBytes, srcBytes)
		a.chunks = append(a.chunks, h)
	}
	a.entityCount = other.entityCount
}

func (a *Archetype) freeAllChunks() {
	for _, h := range a.chunks {
		a.chunkMgr.Free(h)
	}
	a.chunks = a.chunks[:0]
	a.entityCount = 0
}

func putEntityID(buf []byte, offset, size int, id uint32) {
	switch size {
	case 1:
		buf[offset] = byte(id)
	case 2:
		buf[offset] = byte(id)
		buf[offset+1] = byte(id >> 8)
	default:
		buf[offset] = byte(id)
		buf[offset+1] = byte(id >> 8)
		buf[offset+2] = byte(id >> 16)
		buf[offset+3] = byte(id >> 24)
	}
}

func getEntityID(buf []byte, offset, size int) uint32 {
	switch size {
	case 1:
		return uint32(buf[offset])
	case 2:
		return uint32(buf[offset]) | uint32(buf[offset+1])<<8
	default:
		return uint32(buf[offset]) | uint32(buf[offset+1])<<8 | uint32(buf[offset+2])<<16 | uint32(buf[offset+3])<<24
	}
}
