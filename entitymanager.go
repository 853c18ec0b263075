package silo

// entityManager is the generational id<->location table: Create() reuses a
// recycled id if any, else allocates the next one and stamps an odd,
// positive version; Destroy() bumps the version and frees the id for reuse.
// Grounded on the teacher's growable globalEntities slice
// (storage.go in TheBitDrifter/warehouse) but generalized from a single
// rich-entity slice into a plain, versioned id/location table decoupled from
// any particular archetype implementation.
type entityManager struct {
	versions  []uint32
	locations []EntityLocation
	freeList  []uint32
	maxID     uint32
}

func newEntityManager(capacityHint int, maxID uint32) *entityManager {
	if capacityHint <= 0 {
		capacityHint = 64
	}
	return &entityManager{
		versions:  make([]uint32, 0, capacityHint),
		locations: make([]EntityLocation, 0, capacityHint),
		maxID:     maxID,
	}
}

// Create allocates a new entity id, reusing a recycled id if the free list is
// non-empty, and stamps its version to the next odd positive value so that
// version 0 stays reserved for "invalid".
func (m *entityManager) Create() Entity {
	var id uint32
	if n := len(m.freeList); n > 0 {
		id = m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		m.versions[id]++
		if m.versions[id] == 0 {
			m.versions[id] = 1
		}
	} else {
		id = uint32(len(m.versions))
		if id > m.maxID {
			fatalf("silo: entity id %d exceeds configured maximum %d", id, m.maxID)
		}
		m.versions = append(m.versions, 1)
		m.locations = append(m.locations, EntityLocation{})
	}
	m.locations[id] = EntityLocation{Version: m.versions[id]}
	return newEntity(id, m.versions[id])
}

// Destroy validates e against the stored version, bumps the slot's version
// (invalidating every outstanding copy of e), and frees the id for reuse.
// Returns false, with no error, if e was already invalid.
func (m *entityManager) Destroy(e Entity) bool {
	if !m.IsAlive(e) {
		return false
	}
	id := e.ID()
	m.versions[id]++
	if m.versions[id] == 0 {
		m.versions[id] = 1
	}
	m.locations[id] = EntityLocation{}
	m.freeList = append(m.freeList, id)
	return true
}

// IsAlive reports whether e's version matches the slot's current version.
func (m *entityManager) IsAlive(e Entity) bool {
	id := e.ID()
	if int(id) >= len(m.versions) {
		return false
	}
	return e.Version() != 0 && m.versions[id] == e.Version()
}

// GetLocation returns the stored location for e. The bool result is false
// for a dead or unknown entity.
func (m *entityManager) GetLocation(e Entity) (EntityLocation, bool) {
	if !m.IsAlive(e) {
		return EntityLocation{}, false
	}
	return m.locations[e.ID()], true
}

// SetLocation updates the stored location for a live entity.
func (m *entityManager) SetLocation(e Entity, loc EntityLocation) {
	m.locations[e.ID()] = loc
}

// entityFromID reconstructs the full (id, version) handle for a raw id, as
// stored in an archetype's entity-id column. Used to patch the location of
// whichever entity a swap-remove moved.
func (m *entityManager) entityFromID(id uint32) Entity {
	return newEntity(id, m.versions[id])
}

// Count returns the number of currently live entities.
func (m *entityManager) Count() int {
	return len(m.versions) - len(m.freeList)
}

// reset discards all entities and locations, as used by World.Clear.
func (m *entityManager) reset() {
	m.versions = m.versions[:0]
	m.locations = m.locations[:0]
	m.freeList = m.freeList[:0]
}

// clone deep-copies the table, used by World.CopyFrom.
func (m *entityManager) clone() *entityManager {
	return &entityManager{
		versions:  append([]uint32(nil), m.versions...),
		locations: append([]EntityLocation(nil), m.locations...),
		freeList:  append([]uint32(nil), m.freeList...),
		maxID:     m.maxID,
	}
}
