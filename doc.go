/*
Package silo is an archetype-based Entity-Component-System (ECS) core:
chunked Struct-of-Arrays storage, an archetype graph with cached add/remove
edges, incrementally-updated query caches, an optional per-entity tag
bitmask, and a read/write-conflict system scheduler.

Core concepts:

  - Entity: an opaque (id, version) handle.
  - ComponentId / ComponentRegistry: dense ids and byte layout for each
    component type, supplied once at startup by a source generator or by
    hand.
  - Archetype: the set of live entities sharing one component mask, storing
    its rows in chunked SoA memory.
  - Query: a live, cached view over every archetype matching an
    (all, none, any) mask triple.
  - Schedule: a read/write-conflict DAG over system metadata, computed once
    into waves of non-conflicting systems.

Basic usage:

	registry := silo.NewComponentRegistry([]silo.ComponentTypeInfo{
		{ID: positionID, Size: unsafe.Sizeof(Position{}), Align: unsafe.Alignof(Position{})},
		{ID: velocityID, Size: unsafe.Sizeof(Velocity{}), Align: unsafe.Alignof(Velocity{})},
	})
	world := silo.NewWorld(registry, silo.DefaultConfig())

	e := world.Spawn()
	silo.AddComponent(world, e, positionID, Position{X: 1, Y: 2, Z: 3})
	silo.AddComponent(world, e, velocityID, Velocity{X: 10, Y: 20, Z: 30})

	q := silo.NewQueryBuilder().With(positionID).Without(velocityID).Build(world)
	for entity, ref := range q.Entities() {
		pos := silo.GetComponentAt[Position](ref, positionID)
		_ = pos
		_ = entity
	}

silo never synthesizes ComponentId values from Go types at runtime: that
translation is left to a source generator or to hand-written constants,
matching the scope this package covers (storage, archetype graph, query
caching, and scheduling only).
*/
package silo
