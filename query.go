package silo

import "unsafe"

// QueryBuilder builds a QueryDescription (plus optional required tags)
// fluently: With/Without/WithAny/WithTag each return the builder for
// chaining.
type QueryBuilder struct {
	all, none, any Mask
	requiredTags   TagMask
}

// NewQueryBuilder returns an empty builder (matches everything once Built).
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// With requires component id to be present.
func (b *QueryBuilder) With(id ComponentId) *QueryBuilder {
	b.all = b.all.Set(id)
	return b
}

// Without excludes component id.
func (b *QueryBuilder) Without(id ComponentId) *QueryBuilder {
	b.none = b.none.Set(id)
	return b
}

// WithAny requires at least one of the ids passed across all WithAny calls
// on this builder to be present (empty any-set means "no constraint").
func (b *QueryBuilder) WithAny(id ComponentId) *QueryBuilder {
	b.any = b.any.Set(id)
	return b
}

// WithTag requires tag (tag feature only; world must have EnableTags
// called).
func (b *QueryBuilder) WithTag(tag TagId) *QueryBuilder {
	b.requiredTags = b.requiredTags.Set(tag)
	return b
}

// Build resolves the description against world's shared metadata and
// world-local registry, returning a live, cached Query.
func (b *QueryBuilder) Build(world *World) *Query {
	desc := QueryDescription{All: b.all, None: b.none, Any: b.any}
	cache := world.archetypes.GetOrCreateQuery(desc)
	return &Query{world: world, cache: cache, requiredTags: b.requiredTags}
}

// Query is a read-only, cached view over every archetype matching a
// description. Its reference to the matched-archetype list is the same
// append-only slice the world-local ArchetypeRegistry owns: archetypes
// materialized after Build still show up in later iteration.
//
// Grounded on the teacher's query.go/cursor.go (TheBitDrifter/warehouse),
// which re-evaluates a boolean expression tree against every archetype on
// each Cursor.Initialize(); silo replaces that per-call tree walk with an
// incrementally-updated cache instead.
type Query struct {
	world        *World
	cache        *queryCache
	requiredTags TagMask
}

// Description returns the (all, none, any) triple this query was built
// from.
func (q *Query) Description() QueryDescription { return q.cache.description }

// ArchetypeCount returns the number of archetypes currently matched.
func (q *Query) ArchetypeCount() int { return len(q.cache.archetypes) }

// EntityCount sums EntityCount across every matched archetype. Ignores tag
// filtering (an exact tag-filtered count would require a full scan; callers
// needing that should count while iterating Entities()).
func (q *Query) EntityCount() int {
	n := 0
	for _, a := range q.cache.archetypes {
		n += a.EntityCount()
	}
	return n
}

// IsEmpty reports whether no archetype currently holds a matching entity.
func (q *Query) IsEmpty() bool {
	for _, a := range q.cache.archetypes {
		if a.EntityCount() > 0 {
			return false
		}
	}
	return true
}

// EntityRef locates one matched entity's row: the archetype it lives in and
// its 0-based slot within that archetype's logical entity sequence. Stays
// valid only until the next structural mutation.
type EntityRef struct {
	Archetype   *Archetype
	GlobalIndex int
}

// Entities returns a range-over-func iterator yielding every matching
// entity and its EntityRef, chunk by chunk, pruning whole chunks against
// required tags (if any) before checking entities exactly.
func (q *Query) Entities() func(yield func(Entity, EntityRef) bool) {
	return func(yield func(Entity, EntityRef) bool) {
		for _, arch := range q.cache.archetypes {
			perChunk := arch.perChunk()
			for ci := 0; ci < arch.ChunkCount(); ci++ {
				live := arch.LiveCountInChunk(ci)
				if live == 0 {
					continue
				}
				if !q.requiredTags.IsEmpty() {
					h, _ := arch.Chunk(ci)
					if !q.world.tags.Union(h).ContainsAll(q.requiredTags) {
						continue
					}
				}
				for local := 0; local < live; local++ {
					globalIndex := ci*perChunk + local
					if !q.requiredTags.IsEmpty() {
						tags := componentPtr[EntityTags](arch, globalIndex, q.world.tagComponentID)
						if !tags.Mask.ContainsAll(q.requiredTags) {
							continue
						}
					}
					e := q.world.entities.entityFromID(arch.rawEntityIDAt(globalIndex))
					if !yield(e, EntityRef{Archetype: arch, GlobalIndex: globalIndex}) {
						return
					}
				}
			}
		}
	}
}

// GetComponentAt returns a pointer into ref's live component column for id,
// without re-validating the entity (ref already pins an archetype and
// index obtained from a live query iteration). Fails fatally if id has no
// column in ref.Archetype's mask.
func GetComponentAt[T any](ref EntityRef, id ComponentId) *T {
	return componentPtr[T](ref.Archetype, ref.GlobalIndex, id)
}

// ChunkView is a window onto one chunk's live rows, sized to that chunk's
// current live entity count rather than its full capacity.
type ChunkView struct {
	archetype  *Archetype
	chunkIndex int
	liveCount  int
}

// Len returns the number of live rows in this chunk.
func (c ChunkView) Len() int { return c.liveCount }

// Archetype returns the archetype this chunk belongs to.
func (c ChunkView) Archetype() *Archetype { return c.archetype }

// Column returns a slice view over component id's live rows in this chunk,
// or nil if id is tag-style (size 0) or absent from the archetype's mask.
// Package-level generic function, not a ChunkView method, since Go disallows
// generic methods.
func Column[T any](c ChunkView, id ComponentId) []T {
	_, bytes := c.archetype.Chunk(c.chunkIndex)
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return nil
	}
	base, ok := c.archetype.layout.BaseOffset(id)
	if !ok {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&bytes[base])), c.liveCount)
}

// Chunks returns a range-over-func iterator yielding every matching chunk
// view, pruning against required tags at chunk granularity only (entity-
// exact tag filtering within a chunk is the caller's job when iterating at
// this granularity, via Column[EntityTags]).
func (q *Query) Chunks() func(yield func(ChunkView) bool) {
	return func(yield func(ChunkView) bool) {
		for _, arch := range q.cache.archetypes {
			for ci := 0; ci < arch.ChunkCount(); ci++ {
				live := arch.LiveCountInChunk(ci)
				if live == 0 {
					continue
				}
				if !q.requiredTags.IsEmpty() {
					h, _ := arch.Chunk(ci)
					if !q.world.tags.Union(h).ContainsAll(q.requiredTags) {
						continue
					}
				}
				view := ChunkView{archetype: arch, chunkIndex: ci, liveCount: live}
				if !yield(view) {
					return
				}
			}
		}
	}
}
