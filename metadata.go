package silo

import "sync"

// QueryDescription is the (all, none, any) triple a query matches against:
// match requires mask ⊇ all, mask ∩ none = ∅, and any.empty ∨ mask ∩ any ≠ ∅.
type QueryDescription struct {
	All, None, Any Mask
}

// Matches reports whether mask satisfies this description.
func (d QueryDescription) Matches(mask Mask) bool {
	if !mask.ContainsAll(d.All) {
		return false
	}
	if !mask.ContainsNone(d.None) {
		return false
	}
	if !d.Any.IsEmpty() && !mask.ContainsAny(d.Any) {
		return false
	}
	return true
}

type edgeOp uint8

const (
	edgeAdd edgeOp = iota
	edgeRemove
)

type edgeKey struct {
	src       archetypeID
	component ComponentId
	op        edgeOp
}

type queryRecord struct {
	description QueryDescription
	matched     []archetypeID // append-only
}

// SharedArchetypeMetadata is the process-wide, world-independent table of
// archetype ids and layouts keyed by mask, the add/remove edge cache, and
// query descriptions with their matched-archetype lists. Multiple Worlds may
// point at the same SharedArchetypeMetadata to make a world-to-world copy
// meaningful (both worlds then agree on archetype/query ids).
//
// Grounded on the teacher's storage.archetypes struct (storage.go in
// TheBitDrifter/warehouse: idsGroupedByMask/asSlice/nextID), generalized from
// a single world's bookkeeping into a shared, query-aware table.
type SharedArchetypeMetadata struct {
	mu       sync.RWMutex
	registry *ComponentRegistry
	config   Config

	maskToID map[Mask]archetypeID
	masks    []Mask        // index 0 unused; archetype ids start at 1
	layouts  []*chunkLayout // parallel to masks

	edges map[edgeKey]archetypeID

	descToID map[QueryDescription]queryID
	queries  []queryRecord // index 0 unused; query ids start at 1
}

// NewSharedArchetypeMetadata builds an empty metadata table for registry
// under config.
func NewSharedArchetypeMetadata(registry *ComponentRegistry, config Config) *SharedArchetypeMetadata {
	return &SharedArchetypeMetadata{
		registry: registry,
		config:   config,
		maskToID: make(map[Mask]archetypeID),
		masks:    make([]Mask, 1, 8),
		layouts:  make([]*chunkLayout, 1, 8),
		edges:    make(map[edgeKey]archetypeID),
		descToID: make(map[QueryDescription]queryID),
		queries:  make([]queryRecord, 1, 4),
	}
}

// GetOrCreate returns the dense id for mask, creating and laying out a new
// entry if this is the first time mask has been seen. When an entry is
// newly created, every existing query whose description matches mask gets
// the new id appended to its matched list, and the set of query ids so
// updated is returned for a world-local registry to mirror into its own
// per-world caches.
func (m *SharedArchetypeMetadata) GetOrCreate(mask Mask) (id archetypeID, newlyMatched []queryID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.maskToID[mask]; ok {
		return existing, nil
	}

	if len(m.masks) > m.config.MaxArchetypes {
		fatalf("silo: archetype id space exhausted (max %d)", m.config.MaxArchetypes)
	}

	layout := computeLayout(mask, m.registry, m.config.ChunkSizeBytes, m.config.EntityIDByteSize)
	id = archetypeID(len(m.masks))
	m.masks = append(m.masks, mask)
	m.layouts = append(m.layouts, layout)
	m.maskToID[mask] = id

	for qid := 1; qid < len(m.queries); qid++ {
		rec := &m.queries[qid]
		if rec.description.Matches(mask) {
			rec.matched = append(rec.matched, id)
			newlyMatched = append(newlyMatched, queryID(qid))
		}
	}
	return id, newlyMatched
}

// GetOrCreateWithAdd resolves the archetype reached from source by adding
// component c, using (and populating) the edge cache in both directions.
func (m *SharedArchetypeMetadata) GetOrCreateWithAdd(source archetypeID, c ComponentId) (archetypeID, []queryID) {
	return m.getOrCreateWithEdge(source, c, edgeAdd)
}

// GetOrCreateWithRemove resolves the archetype reached from source by
// removing component c.
func (m *SharedArchetypeMetadata) GetOrCreateWithRemove(source archetypeID, c ComponentId) (archetypeID, []queryID) {
	return m.getOrCreateWithEdge(source, c, edgeRemove)
}

func (m *SharedArchetypeMetadata) getOrCreateWithEdge(source archetypeID, c ComponentId, op edgeOp) (archetypeID, []queryID) {
	m.mu.RLock()
	key := edgeKey{src: source, component: c, op: op}
	if target, ok := m.edges[key]; ok {
		m.mu.RUnlock()
		return target, nil
	}
	sourceMask := m.masks[source]
	m.mu.RUnlock()

	var targetMask Mask
	if op == edgeAdd {
		targetMask = sourceMask.Set(c)
	} else {
		targetMask = sourceMask.Clear(c)
	}
	target, newlyMatched := m.GetOrCreate(targetMask)

	m.mu.Lock()
	m.edges[edgeKey{src: source, component: c, op: op}] = target
	inverse := edgeRemove
	if op == edgeRemove {
		inverse = edgeAdd
	}
	m.edges[edgeKey{src: target, component: c, op: inverse}] = source
	m.mu.Unlock()

	return target, newlyMatched
}

// GetOrCreateQueryID resolves description to its dense query id, seeding the
// matched-archetype list by scanning every archetype created so far on a
// cache miss.
func (m *SharedArchetypeMetadata) GetOrCreateQueryID(description QueryDescription) (queryID, []archetypeID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.descToID[description]; ok {
		return existing, append([]archetypeID(nil), m.queries[existing].matched...)
	}

	if len(m.queries) > m.config.MaxQueries {
		fatalf("silo: query id space exhausted (max %d)", m.config.MaxQueries)
	}

	id := queryID(len(m.queries))
	rec := queryRecord{description: description}
	for aid := archetypeID(1); int(aid) < len(m.masks); aid++ {
		if description.Matches(m.masks[aid]) {
			rec.matched = append(rec.matched, aid)
		}
	}
	m.queries = append(m.queries, rec)
	m.descToID[description] = id
	return id, append([]archetypeID(nil), rec.matched...)
}

// Mask returns the component mask for archetype id.
func (m *SharedArchetypeMetadata) Mask(id archetypeID) Mask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.masks[id]
}

// Layout returns the immutable chunk layout for archetype id.
func (m *SharedArchetypeMetadata) Layout(id archetypeID) *chunkLayout {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.layouts[id]
}

// ArchetypeCount returns how many archetypes have ever been created
// (including id 0, the unused sentinel slot).
func (m *SharedArchetypeMetadata) ArchetypeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.masks)
}
