package silo

import "unsafe"

// World owns entity lifecycle, component mutation, and the world-local
// archetype registry. Multiple Worlds may share a SharedArchetypeMetadata
// (and thus agree on archetype/query ids) to make a world-to-world chunk
// copy meaningful.
//
// Grounded on the teacher's storage.Storage (storage.go in
// TheBitDrifter/warehouse), generalized from a single (entities, archetypes)
// pair directly wrapping its `table` dependency into the full
// entity-lifecycle owner here, driving the internal ChunkManager/Archetype/
// ArchetypeRegistry/SharedArchetypeMetadata types instead.
type World struct {
	registry *ComponentRegistry
	config   Config

	shared     *SharedArchetypeMetadata
	archetypes *ArchetypeRegistry
	entities   *entityManager
	chunkMgr   *ChunkManager

	empty *Archetype

	tags           *ChunkTagRegistry
	tagComponentID ComponentId

	// inParallelWave is set by the Scheduler around a parallel wave's
	// execution; every structural entry point below checks it first, so a
	// structural mutation attempted mid-wave is rejected rather than racing.
	inParallelWave bool
}

// NewWorld constructs a World with its own, private SharedArchetypeMetadata.
// config is validated and defaulted in place.
func NewWorld(registry *ComponentRegistry, config Config) *World {
	if err := config.Validate(); err != nil {
		fatalf("silo: %v", err)
	}
	shared := NewSharedArchetypeMetadata(registry, config)
	return newWorldWithShared(registry, config, shared)
}

// NewWorldWithSharedMetadata constructs a World sharing an existing
// SharedArchetypeMetadata with other worlds, the precondition for a
// structural world-to-world copy.
func NewWorldWithSharedMetadata(registry *ComponentRegistry, config Config, shared *SharedArchetypeMetadata) *World {
	if err := config.Validate(); err != nil {
		fatalf("silo: %v", err)
	}
	return newWorldWithShared(registry, config, shared)
}

func newWorldWithShared(registry *ComponentRegistry, config Config, shared *SharedArchetypeMetadata) *World {
	chunkMgr := NewChunkManager(config.ChunkSizeBytes, config.MaxMetaBlocks, config.ChunkAllocator, config.ChunkEvents)
	w := &World{
		registry:   registry,
		config:     config,
		shared:     shared,
		archetypes: NewArchetypeRegistry(shared, registry, chunkMgr),
		entities:   newEntityManager(config.DefaultEntityCapacity, config.maxEntityID()),
		chunkMgr:   chunkMgr,
	}
	w.empty = w.archetypes.GetOrCreate(Mask{})
	return w
}

func (w *World) structuralGuard() error {
	if w.inParallelWave {
		return StructuralMutationDuringWaveError{}
	}
	return nil
}

// Spawn creates a new entity in the empty archetype.
func (w *World) Spawn() Entity {
	if err := w.structuralGuard(); err != nil {
		fatalf("silo: %v", err)
	}
	e := w.entities.Create()
	idx := w.empty.Allocate(e)
	w.entities.SetLocation(e, EntityLocation{Version: e.Version(), ArchetypeID: w.empty.ID(), GlobalIndex: idx})
	return e
}

// SpawnWithBuilder creates a new entity directly in the archetype matching
// b's component set, writing b's payload into the freshly allocated slot.
func (w *World) SpawnWithBuilder(b *EntityBuilder) Entity {
	if err := w.structuralGuard(); err != nil {
		fatalf("silo: %v", err)
	}
	mask := b.mask()
	arch := w.archetypes.GetOrCreate(mask)
	e := w.entities.Create()
	idx := arch.Allocate(e)
	chunkIdx, indexInChunk := arch.GetChunkLocation(idx)
	_, bytes := arch.Chunk(chunkIdx)
	b.writeInto(bytes, arch.layout, indexInChunk)
	w.entities.SetLocation(e, EntityLocation{Version: e.Version(), ArchetypeID: arch.ID(), GlobalIndex: idx})
	return e
}

// Despawn removes e from its archetype and frees its id for reuse. Returns
// false if e was already invalid.
func (w *World) Despawn(e Entity) bool {
	if err := w.structuralGuard(); err != nil {
		fatalf("silo: %v", err)
	}
	loc, ok := w.entities.GetLocation(e)
	if !ok {
		return false
	}
	arch, _ := w.archetypes.Lookup(loc.ArchetypeID)
	w.removeFromArchetype(arch, loc.GlobalIndex)
	return w.entities.Destroy(e)
}

// removeFromArchetype swap-removes the row at globalIndex and, if another
// entity's row moved as a result, patches that entity's stored location.
func (w *World) removeFromArchetype(arch *Archetype, globalIndex int) {
	movedID, hasMoved := arch.Remove(globalIndex)
	if hasMoved {
		moved := w.entities.entityFromID(movedID)
		w.entities.SetLocation(moved, EntityLocation{Version: moved.Version(), ArchetypeID: arch.ID(), GlobalIndex: globalIndex})
	}
}

// IsAlive reports whether e is currently live in this world.
func (w *World) IsAlive(e Entity) bool { return w.entities.IsAlive(e) }

// EntityCount returns the number of currently live entities.
func (w *World) EntityCount() int { return w.entities.Count() }

// HasComponent reports whether e carries component id. False for a dead
// entity.
func (w *World) HasComponent(e Entity, id ComponentId) bool {
	loc, ok := w.entities.GetLocation(e)
	if !ok {
		return false
	}
	arch, ok := w.archetypes.Lookup(loc.ArchetypeID)
	return ok && arch.Mask().Test(id)
}

// locate resolves e to its archetype and location, or InvalidEntityError.
func (w *World) locate(e Entity) (*Archetype, EntityLocation, error) {
	loc, ok := w.entities.GetLocation(e)
	if !ok {
		return nil, EntityLocation{}, InvalidEntityError{Entity: e}
	}
	arch, ok := w.archetypes.Lookup(loc.ArchetypeID)
	if !ok {
		fatalf("silo: entity %v located in unmaterialized archetype %d", e, loc.ArchetypeID)
	}
	return arch, loc, nil
}

// moveEntity allocates e a row in dst, copies every component the two
// archetypes share (intersection of masks, size>0 only), swap-removes e's
// old row from src, and patches every location record affected. Returns the
// byte slice and in-chunk index of e's newly allocated row so the caller can
// write any component that's new in dst.
func (w *World) moveEntity(e Entity, src *Archetype, srcLoc EntityLocation, dst *Archetype) ([]byte, int) {
	newIndex := dst.Allocate(e)
	shared := src.Mask().Intersect(dst.Mask())
	copySharedComponents(w.registry, shared, src, srcLoc.GlobalIndex, dst, newIndex)

	w.removeFromArchetype(src, srcLoc.GlobalIndex)
	w.entities.SetLocation(e, EntityLocation{Version: e.Version(), ArchetypeID: dst.ID(), GlobalIndex: newIndex})

	chunkIdx, indexInChunk := dst.GetChunkLocation(newIndex)
	_, bytes := dst.Chunk(chunkIdx)
	return bytes, indexInChunk
}

// copySharedComponents copies every non-zero-size component in shared from
// (src, srcIndex) to (dst, dstIndex), across two archetypes with generally
// different layouts.
func copySharedComponents(registry *ComponentRegistry, shared Mask, src *Archetype, srcIndex int, dst *Archetype, dstIndex int) {
	if shared.IsEmpty() {
		return
	}
	srcChunkIdx, srcOff := src.GetChunkLocation(srcIndex)
	dstChunkIdx, dstOff := dst.GetChunkLocation(dstIndex)
	_, srcBytes := src.Chunk(srcChunkIdx)
	_, dstBytes := dst.Chunk(dstChunkIdx)

	shared.Iterate(func(id ComponentId) bool {
		info, ok := registry.Info(id)
		if !ok || info.Size == 0 {
			return true
		}
		size := int(info.Size)
		srcOffset, ok1 := src.layout.OffsetOf(id, srcOff, size)
		dstOffset, ok2 := dst.layout.OffsetOf(id, dstOff, size)
		if ok1 && ok2 {
			copy(dstBytes[dstOffset:dstOffset+size], srcBytes[srcOffset:srcOffset+size])
		}
		return true
	})
}

// Overwrite discards e's current components (swap-remove from its current
// archetype) and re-places it in b's target archetype, preserving e's id
// and version.
func (w *World) Overwrite(e Entity, b *EntityBuilder) error {
	if err := w.structuralGuard(); err != nil {
		return err
	}
	src, loc, err := w.locate(e)
	if err != nil {
		return err
	}
	w.removeFromArchetype(src, loc.GlobalIndex)

	mask := b.mask()
	dst := w.archetypes.GetOrCreate(mask)
	idx := dst.Allocate(e)
	chunkIdx, indexInChunk := dst.GetChunkLocation(idx)
	_, bytes := dst.Chunk(chunkIdx)
	b.writeInto(bytes, dst.layout, indexInChunk)
	w.entities.SetLocation(e, EntityLocation{Version: e.Version(), ArchetypeID: dst.ID(), GlobalIndex: idx})
	return nil
}

// Clear frees every chunk and resets the entity manager. Every archetype,
// the empty one included, stays materialized with no chunks and is reused
// by later spawns.
func (w *World) Clear() {
	if err := w.structuralGuard(); err != nil {
		fatalf("silo: %v", err)
	}
	for _, a := range w.archetypes.Archetypes() {
		a.freeAllChunks()
	}
	w.entities.reset()
}

// CopyFrom structurally replicates other into w, archetype by archetype,
// entity manager state included. Both worlds must share the same
// SharedArchetypeMetadata; panics otherwise, since that precondition is a
// configuration error rather than ordinary misuse.
func (w *World) CopyFrom(other *World) {
	if err := w.structuralGuard(); err != nil {
		fatalf("silo: %v", err)
	}
	if w.shared != other.shared {
		fatalf("silo: CopyFrom requires both worlds to share the same SharedArchetypeMetadata")
	}
	for _, a := range w.archetypes.Archetypes() {
		a.freeAllChunks()
	}
	for _, src := range other.archetypes.Archetypes() {
		dst := w.archetypes.GetOrCreate(src.Mask())
		dst.CopyChunksFrom(src)
	}
	w.entities = other.entities.clone()
}

// AddComponent adds component id with value to e, moving it from its
// current archetype to the one reached by the add edge. Fails with
// ComponentExistsError if e already carries id.
func AddComponent[T any](w *World, e Entity, id ComponentId, value T) error {
	if err := w.structuralGuard(); err != nil {
		return err
	}
	src, loc, err := w.locate(e)
	if err != nil {
		return err
	}
	if src.Mask().Test(id) {
		return ComponentExistsError{Entity: e, Component: id}
	}
	dst := w.archetypes.GetOrCreateWithAdd(src, id)
	bytes, indexInChunk := w.moveEntity(e, src, loc, dst)

	var zero T
	size := int(unsafe.Sizeof(zero))
	if size > 0 {
		if offset, ok := dst.layout.OffsetOf(id, indexInChunk, size); ok {
			*(*T)(unsafe.Pointer(&bytes[offset])) = value
		}
	}
	return nil
}

// RemoveComponent removes component id from e, moving it to the archetype
// reached by the remove edge. Fails with ComponentNotFoundError if e does
// not carry id.
func RemoveComponent(w *World, e Entity, id ComponentId) error {
	if err := w.structuralGuard(); err != nil {
		return err
	}
	src, loc, err := w.locate(e)
	if err != nil {
		return err
	}
	if !src.Mask().Test(id) {
		return ComponentNotFoundError{Entity: e, Component: id}
	}
	dst := w.archetypes.GetOrCreateWithRemove(src, id)
	w.moveEntity(e, src, loc, dst)
	return nil
}

// GetComponent returns a pointer into e's live component column for id,
// usable for both read and write. Fails with ComponentNotFoundError if e
// does not carry id.
func GetComponent[T any](w *World, e Entity, id ComponentId) (*T, error) {
	arch, loc, err := w.locate(e)
	if err != nil {
		return nil, err
	}
	if !arch.Mask().Test(id) {
		return nil, ComponentNotFoundError{Entity: e, Component: id}
	}
	return componentPtr[T](arch, loc.GlobalIndex, id), nil
}

// componentPtr returns a pointer into archetype's chunk storage for the
// component id at globalIndex, without validating that id is present
// (callers must check first); shared by GetComponent and the Query column
// accessors (query.go).
func componentPtr[T any](arch *Archetype, globalIndex int, id ComponentId) *T {
	chunkIdx, indexInChunk := arch.GetChunkLocation(globalIndex)
	_, bytes := arch.Chunk(chunkIdx)
	var zero T
	size := int(unsafe.Sizeof(zero))
	offset, ok := arch.layout.OffsetOf(id, indexInChunk, size)
	if !ok {
		fatalf("silo: component %d has no column in archetype %d", id, arch.ID())
	}
	return (*T)(unsafe.Pointer(&bytes[offset]))
}
