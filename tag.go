package silo

import "sync"

// EntityTags is the reserved, tag-feature-only component: a single
// per-entity TagMask field. It participates in the archetype mask like any
// other component (so a caller must still add it to an entity before
// tagging), but silo never assigns its ComponentId itself — that id comes
// from the same registry/codegen step as every other component, and is
// handed to World.EnableTags.
type EntityTags struct {
	Mask TagMask
}

// ChunkTagRegistry maintains, per chunk handle, the OR-union of every live
// entity's tag mask in that chunk, letting a tagged query discard an entire
// chunk in O(1) before checking any entity. The union is deliberately never
// auto-shrunk on tag removal: entity-level checks stay exact regardless, and
// an unconditional shrink-on-clear would need to rescan every live entity in
// the chunk on every removal, trading an O(1) operation for an O(chunk size)
// one on the hot clear-tag path. Rebuild lets a caller reclaim precision
// explicitly, e.g. during a periodic maintenance pass.
//
// There is no teacher analog for this file: TheBitDrifter/warehouse has no
// tag concept.
type ChunkTagRegistry struct {
	mu     sync.RWMutex
	unions map[ChunkHandle]TagMask
}

// NewChunkTagRegistry returns an empty registry.
func NewChunkTagRegistry() *ChunkTagRegistry {
	return &ChunkTagRegistry{unions: make(map[ChunkHandle]TagMask)}
}

// OnTagAdded ORs tag into h's union mask.
func (r *ChunkTagRegistry) OnTagAdded(h ChunkHandle, tag TagId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unions[h] = r.unions[h].Set(tag)
}

// Union returns the current union mask for h (the zero TagMask if h has
// never been touched).
func (r *ChunkTagRegistry) Union(h ChunkHandle) TagMask {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.unions[h]
}

// Rebuild replaces h's union with exact, the caller-computed union of every
// live entity's tag mask still in the chunk. No policy in this package ever
// calls Rebuild on its own; a host that wants periodic reclamation drives it
// itself.
func (r *ChunkTagRegistry) Rebuild(h ChunkHandle, exact TagMask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unions[h] = exact
}

// Forget drops h's union entirely. Chunk frees inside this package do not
// call it, so the union recorded for a freed chunk's handle stays in the map
// until Forget is called for that handle.
func (r *ChunkTagRegistry) Forget(h ChunkHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.unions, h)
}

// EnableTags installs the tag extension on w, recording entityTagsID as the
// ComponentId a caller's registry assigned to EntityTags. Must be called
// before SetTag/ClearTag/HasTag or a tag-filtered query.
func (w *World) EnableTags(entityTagsID ComponentId) {
	w.tags = NewChunkTagRegistry()
	w.tagComponentID = entityTagsID
}

// SetTag sets tag on e's EntityTags component and ORs it into e's chunk's
// union mask. e must already carry the EntityTags component.
func (w *World) SetTag(e Entity, tag TagId) error {
	if w.tags == nil {
		fatalf("silo: tag extension not enabled")
	}
	arch, loc, err := w.locate(e)
	if err != nil {
		return err
	}
	if !arch.Mask().Test(w.tagComponentID) {
		return ComponentNotFoundError{Entity: e, Component: w.tagComponentID}
	}
	ptr := componentPtr[EntityTags](arch, loc.GlobalIndex, w.tagComponentID)
	ptr.Mask = ptr.Mask.Set(tag)

	chunkIdx, _ := arch.GetChunkLocation(loc.GlobalIndex)
	h, _ := arch.Chunk(chunkIdx)
	w.tags.OnTagAdded(h, tag)
	return nil
}

// ClearTag clears tag on e's EntityTags component. The chunk's union mask is
// left untouched: it may now over-approximate, which tagged-query pruning
// already tolerates by re-checking each surviving entity exactly.
func (w *World) ClearTag(e Entity, tag TagId) error {
	if w.tags == nil {
		fatalf("silo: tag extension not enabled")
	}
	arch, loc, err := w.locate(e)
	if err != nil {
		return err
	}
	if !arch.Mask().Test(w.tagComponentID) {
		return ComponentNotFoundError{Entity: e, Component: w.tagComponentID}
	}
	ptr := componentPtr[EntityTags](arch, loc.GlobalIndex, w.tagComponentID)
	ptr.Mask = ptr.Mask.Clear(tag)
	return nil
}

// HasTag reports whether e currently carries tag. False for a dead entity,
// an entity without the EntityTags component, or a missing tag bit.
func (w *World) HasTag(e Entity, tag TagId) bool {
	arch, loc, err := w.locate(e)
	if err != nil || !arch.Mask().Test(w.tagComponentID) {
		return false
	}
	ptr := componentPtr[EntityTags](arch, loc.GlobalIndex, w.tagComponentID)
	return ptr.Mask.Test(tag)
}
