package silo

// chunkLayout is the immutable-after-creation SoA column layout for one
// archetype mask. It answers, in O(1), where the entity-id column starts and
// where each present component's column starts, given the configured chunk
// size and entity-id byte width.
//
// There is no teacher analog for this file: TheBitDrifter/warehouse
// delegates column layout entirely to its `table` dependency, internalized
// here instead (see DESIGN.md).
type chunkLayout struct {
	mask             Mask
	chunkSize        int
	entityIDSize     int
	entitiesPerChunk int

	hasComponents bool
	lo, hi        ComponentId
	baseOffsets   []int // indexed by id-lo; -1 marks an absent id in [lo,hi]
}

// computeLayout places the entity-id column followed by each present
// component's column, shrinking entitiesPerChunk until everything fits in
// chunkSize bytes.
func computeLayout(mask Mask, registry *ComponentRegistry, chunkSize, entityIDSize int) *chunkLayout {
	l := &chunkLayout{mask: mask, chunkSize: chunkSize, entityIDSize: entityIDSize}

	lo, hasLo := mask.FirstSet()
	hi, hasHi := mask.LastSet()
	if !hasLo || !hasHi {
		// Step 1: empty mask produces entity-id-only chunks.
		l.entitiesPerChunk = max(1, chunkSize/entityIDSize)
		return l
	}
	l.hasComponents = true
	l.lo, l.hi = lo, hi
	l.baseOffsets = make([]int, int(hi-lo)+1)
	for i := range l.baseOffsets {
		l.baseOffsets[i] = -1
	}

	// Step 2: S = entityIDSize + sum(size[i]).
	sum := entityIDSize
	mask.Iterate(func(id ComponentId) bool {
		info, ok := registry.Info(id)
		if !ok {
			fatalf("silo: archetype mask references unknown component id %d", id)
		}
		sum += int(info.Size)
		return true
	})

	// Step 3: initial entitiesPerChunk, floor 1.
	entitiesPerChunk := max(1, chunkSize/sum)

	// Step 4: iteratively place columns, shrinking entitiesPerChunk until
	// everything fits (or we bottom out at 1, which is itself fatal if it
	// still doesn't fit — the mask is simply too large for one chunk).
	for {
		offset := entitiesPerChunk * entityIDSize
		fits := true
		offsets := make([]int, len(l.baseOffsets))
		copy(offsets, l.baseOffsets)

		mask.Iterate(func(id ComponentId) bool {
			info, _ := registry.Info(id)
			if info.Size == 0 {
				// Tag-style component: present in the mask, no bytes.
				offsets[int(id-lo)] = 0
				return true
			}
			align := int(info.Align)
			if align <= 0 {
				align = 1
			}
			offset = alignUp(offset, align)
			offsets[int(id-lo)] = offset
			offset += int(info.Size) * entitiesPerChunk
			return true
		})

		if offset <= chunkSize {
			l.baseOffsets = offsets
			l.entitiesPerChunk = entitiesPerChunk
			return l
		}
		fits = false
		_ = fits
		if entitiesPerChunk == 1 {
			fatalf("silo: archetype mask %v does not fit in a %d-byte chunk even with one entity", mask, chunkSize)
		}
		entitiesPerChunk--
	}
}

func alignUp(offset, align int) int {
	if align&(align-1) == 0 {
		return (offset + align - 1) &^ (align - 1)
	}
	// Non-power-of-two alignment: fall back to ceiling division.
	return ((offset + align - 1) / align) * align
}

// BaseOffset returns the byte offset of component id's column within a
// chunk, and whether id is present in this layout's mask.
func (l *chunkLayout) BaseOffset(id ComponentId) (int, bool) {
	if !l.hasComponents || id < l.lo || id > l.hi {
		return 0, false
	}
	off := l.baseOffsets[int(id-l.lo)]
	if off < 0 {
		return 0, false
	}
	return off, true
}

// OffsetOf returns the byte offset of component id's value for the entity at
// indexInChunk, given that component's size.
func (l *chunkLayout) OffsetOf(id ComponentId, indexInChunk int, size int) (int, bool) {
	base, ok := l.BaseOffset(id)
	if !ok {
		return 0, false
	}
	return base + indexInChunk*size, true
}

// EntityIDOffset returns the byte offset of the entity-id column entry for
// indexInChunk.
func (l *chunkLayout) EntityIDOffset(indexInChunk int) int {
	return indexInChunk * l.entityIDSize
}

// EntitiesPerChunk returns how many entity rows fit in one chunk under this
// layout.
func (l *chunkLayout) EntitiesPerChunk() int { return l.entitiesPerChunk }
