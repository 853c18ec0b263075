package silo

import "testing"

func testMetadataRegistry() *ComponentRegistry {
	return NewComponentRegistry([]ComponentTypeInfo{
		{ID: 0, Size: 12, Align: 4, GUID: "Position"},
		{ID: 1, Size: 12, Align: 4, GUID: "Velocity"},
		{ID: 2, Size: 4, Align: 4, GUID: "Health"},
	})
}

func testMetadataConfig() Config {
	cfg := DefaultConfig()
	cfg.ChunkSizeBytes = 1024
	return cfg
}

func TestQueryDescriptionMatches(t *testing.T) {
	pos := Mask{}.Set(0)
	vel := Mask{}.Set(1)
	health := Mask{}.Set(2)

	tests := []struct {
		name string
		desc QueryDescription
		mask Mask
		want bool
	}{
		{"all satisfied", QueryDescription{All: pos}, pos.Union(vel), true},
		{"all missing", QueryDescription{All: pos.Union(vel)}, pos, false},
		{"none violated", QueryDescription{All: pos, None: vel}, pos.Union(vel), false},
		{"none satisfied", QueryDescription{All: pos, None: vel}, pos, true},
		{"any satisfied", QueryDescription{Any: vel.Union(health)}, vel, true},
		{"any violated", QueryDescription{Any: vel.Union(health)}, pos, false},
		{"empty any is no constraint", QueryDescription{All: pos}, pos, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.desc.Matches(tt.mask); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.mask, got, tt.want)
			}
		})
	}
}

func TestSharedMetadataGetOrCreateIsIdempotent(t *testing.T) {
	reg := testMetadataRegistry()
	m := NewSharedArchetypeMetadata(reg, testMetadataConfig())
	mask := Mask{}.Set(0)
	id1, _ := m.GetOrCreate(mask)
	id2, _ := m.GetOrCreate(mask)
	if id1 != id2 {
		t.Errorf("GetOrCreate(mask) returned different ids on repeat calls: %d, %d", id1, id2)
	}
	if m.Mask(id1) != mask {
		t.Errorf("Mask(%d) = %v, want %v", id1, m.Mask(id1), mask)
	}
}

func TestSharedMetadataEdgeCacheRoundTrips(t *testing.T) {
	reg := testMetadataRegistry()
	m := NewSharedArchetypeMetadata(reg, testMetadataConfig())
	empty, _ := m.GetOrCreate(Mask{})

	withPos, _ := m.GetOrCreateWithAdd(empty, 0)
	if !m.Mask(withPos).Equals(Mask{}.Set(0)) {
		t.Errorf("add edge target mask = %v, want {0}", m.Mask(withPos))
	}
	back, _ := m.GetOrCreateWithRemove(withPos, 0)
	if back != empty {
		t.Errorf("remove edge should lead back to the empty archetype, got id %d vs %d", back, empty)
	}

	// Edge cache hit should return the same id without growing the table.
	before := m.ArchetypeCount()
	again, _ := m.GetOrCreateWithAdd(empty, 0)
	if again != withPos {
		t.Errorf("cached add edge returned a different id: %d vs %d", again, withPos)
	}
	if m.ArchetypeCount() != before {
		t.Errorf("edge cache hit should not create a new archetype entry")
	}
}

func TestSharedMetadataQueryMatchedListGrowsOnNewArchetype(t *testing.T) {
	reg := testMetadataRegistry()
	m := NewSharedArchetypeMetadata(reg, testMetadataConfig())
	posOnly, _ := m.GetOrCreate(Mask{}.Set(0))

	desc := QueryDescription{All: Mask{}.Set(0)}
	qid, matched := m.GetOrCreateQueryID(desc)
	if len(matched) != 1 || matched[0] != posOnly {
		t.Fatalf("seeded matched list = %v, want [%d]", matched, posOnly)
	}

	posVel, newlyMatched := m.GetOrCreate(Mask{}.Set(0).Set(1))
	found := false
	for _, id := range newlyMatched {
		if id == qid {
			found = true
		}
	}
	if !found {
		t.Errorf("creating a new archetype matching an existing query should report that query's id: got %v", newlyMatched)
	}

	_, matchedAfter := m.GetOrCreateQueryID(desc)
	if len(matchedAfter) != 2 {
		t.Errorf("matched list after new matching archetype = %v, want 2 entries", matchedAfter)
	}
	_ = posVel
}

func TestArchetypeRegistryMaterializesLazilyAndFillsQueryCache(t *testing.T) {
	reg := testMetadataRegistry()
	shared := NewSharedArchetypeMetadata(reg, testMetadataConfig())
	cm := NewChunkManager(testMetadataConfig().ChunkSizeBytes, 4, nil, ChunkEvents{})
	ar := NewArchetypeRegistry(shared, reg, cm)

	posArch := ar.GetOrCreate(Mask{}.Set(0))
	cache := ar.GetOrCreateQuery(QueryDescription{All: Mask{}.Set(0)})
	if len(cache.archetypes) != 1 || cache.archetypes[0] != posArch {
		t.Fatalf("query cache after first GetOrCreate = %v, want [posArch]", cache.archetypes)
	}

	posVelArch := ar.GetOrCreateWithAdd(posArch, 1)
	if len(cache.archetypes) != 2 {
		t.Fatalf("materializing a new matching archetype should append to the existing cache, got %v", cache.archetypes)
	}
	found := false
	for _, a := range cache.archetypes {
		if a == posVelArch {
			found = true
		}
	}
	if !found {
		t.Errorf("new archetype missing from query cache: %v", cache.archetypes)
	}
}

func TestArchetypeRegistryCrossWorldMaterializationUpdatesLocalCache(t *testing.T) {
	reg := testMetadataRegistry()
	shared := NewSharedArchetypeMetadata(reg, testMetadataConfig())
	cfg := testMetadataConfig()
	cm1 := NewChunkManager(cfg.ChunkSizeBytes, 4, nil, ChunkEvents{})
	cm2 := NewChunkManager(cfg.ChunkSizeBytes, 4, nil, ChunkEvents{})
	worldA := NewArchetypeRegistry(shared, reg, cm1)
	worldB := NewArchetypeRegistry(shared, reg, cm2)

	// worldB builds its query cache before worldA ever creates the matching
	// archetype in shared metadata.
	cacheB := worldB.GetOrCreateQuery(QueryDescription{All: Mask{}.Set(0)})
	if len(cacheB.archetypes) != 0 {
		t.Fatalf("cacheB should start empty, got %v", cacheB.archetypes)
	}

	// worldA is first to ever create this mask anywhere.
	worldA.GetOrCreate(Mask{}.Set(0))
	// worldB now materializes the same (already shared) archetype id locally
	// for the first time.
	archB := worldB.GetOrCreate(Mask{}.Set(0))

	if len(cacheB.archetypes) != 1 || cacheB.archetypes[0] != archB {
		t.Errorf("worldB's pre-existing query cache should pick up its own later materialization: got %v", cacheB.archetypes)
	}
}
