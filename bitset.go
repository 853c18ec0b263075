package silo

import (
	"math/bits"
)

// Mask is the fixed-width bitset used for component masks: 256 bits, four
// uint64 words. Word/bit split mirrors the word-array bitmask approach (id/64,
// id%64) rather than a growable bit slice, so set/test/union stay allocation
// free on the hot path.
//
// TagMask, below, is the 64-bit sibling variant used for the smaller TagId
// space; silo materializes the two widths its own id spaces actually need
// rather than growing one bitset type to cover both.
type Mask [maskWords]uint64

const (
	bitsPerWord = 64
	maskWords   = 4
	maxMaskBits = maskWords * bitsPerWord
)

// Set returns a new Mask with bit id set. Masks are updated by value:
// callers chain Set/Clear calls instead of mutating a shared mask in place.
func (m Mask) Set(id ComponentId) Mask {
	word, bit := int(id)/bitsPerWord, uint(id)%bitsPerWord
	if word >= maskWords {
		panic("silo: component id exceeds mask width")
	}
	m[word] |= 1 << bit
	return m
}

// Clear returns a new Mask with bit id cleared.
func (m Mask) Clear(id ComponentId) Mask {
	word, bit := int(id)/bitsPerWord, uint(id)%bitsPerWord
	if word >= maskWords {
		return m
	}
	m[word] &^= 1 << bit
	return m
}

// Test reports whether bit id is set.
func (m Mask) Test(id ComponentId) bool {
	word, bit := int(id)/bitsPerWord, uint(id)%bitsPerWord
	if word >= maskWords {
		return false
	}
	return m[word]&(1<<bit) != 0
}

// Union returns the bitwise OR of m and o.
func (m Mask) Union(o Mask) Mask {
	var r Mask
	for i := range m {
		r[i] = m[i] | o[i]
	}
	return r
}

// Intersect returns the bitwise AND of m and o.
func (m Mask) Intersect(o Mask) Mask {
	var r Mask
	for i := range m {
		r[i] = m[i] & o[i]
	}
	return r
}

// Difference returns the bits of m that are not in o (m &^ o).
func (m Mask) Difference(o Mask) Mask {
	var r Mask
	for i := range m {
		r[i] = m[i] &^ o[i]
	}
	return r
}

// ContainsAll reports whether m is a superset of o.
func (m Mask) ContainsAll(o Mask) bool {
	for i := range m {
		if m[i]&o[i] != o[i] {
			return false
		}
	}
	return true
}

// ContainsAny reports whether m and o share any set bit. An empty o is
// vacuously considered not to intersect; callers that want an empty "any"
// mask to mean "no constraint" check IsEmpty before calling ContainsAny.
func (m Mask) ContainsAny(o Mask) bool {
	for i := range m {
		if m[i]&o[i] != 0 {
			return true
		}
	}
	return false
}

// ContainsNone reports whether m and o share no set bits.
func (m Mask) ContainsNone(o Mask) bool {
	return !m.ContainsAny(o)
}

// IsEmpty reports whether no bit is set.
func (m Mask) IsEmpty() bool {
	for _, w := range m {
		if w != 0 {
			return false
		}
	}
	return true
}

// PopCount returns the number of set bits.
func (m Mask) PopCount() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}
	return n
}

// FirstSet returns the lowest set bit id and true, or (0, false) if empty.
func (m Mask) FirstSet() (ComponentId, bool) {
	for i, w := range m {
		if w != 0 {
			return ComponentId(i*bitsPerWord + bits.TrailingZeros64(w)), true
		}
	}
	return 0, false
}

// LastSet returns the highest set bit id and true, or (0, false) if empty.
func (m Mask) LastSet() (ComponentId, bool) {
	for i := len(m) - 1; i >= 0; i-- {
		if m[i] != 0 {
			return ComponentId(i*bitsPerWord + (bitsPerWord - 1 - bits.LeadingZeros64(m[i]))), true
		}
	}
	return 0, false
}

// Equals reports whether m and o have exactly the same set bits.
func (m Mask) Equals(o Mask) bool {
	return m == o
}

// Hash returns a cheap, order-independent hash suitable for map keys. Mask
// itself is directly comparable (a fixed-size array) so most callers can use
// it as a map key without calling Hash at all; Hash exists for code that
// wants to fold masks into a single uint64 (e.g. logging, metrics).
func (m Mask) Hash() uint64 {
	h := uint64(1469598103934665603) // FNV offset basis
	for _, w := range m {
		h ^= w
		h *= 1099511628211 // FNV prime
	}
	return h
}

// Iterate yields every set component id in ascending order.
func (m Mask) Iterate(yield func(ComponentId) bool) {
	for wi, w := range m {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			if !yield(ComponentId(wi*bitsPerWord + bit)) {
				return
			}
			w &^= 1 << uint(bit)
		}
	}
}

// TagMask is the 64-bit bitset used for TagId, the per-entity tag extension.
// A single word comfortably covers a tag-id space that is meant to stay
// small relative to the component-id space.
type TagMask uint64

// Set returns a new TagMask with bit id set.
func (m TagMask) Set(id TagId) TagMask {
	if id >= 64 {
		panic("silo: tag id exceeds tag mask width")
	}
	return m | (1 << uint(id))
}

// Clear returns a new TagMask with bit id cleared.
func (m TagMask) Clear(id TagId) TagMask {
	if id >= 64 {
		return m
	}
	return m &^ (1 << uint(id))
}

// Test reports whether bit id is set.
func (m TagMask) Test(id TagId) bool {
	if id >= 64 {
		return false
	}
	return m&(1<<uint(id)) != 0
}

// Union returns the bitwise OR of m and o.
func (m TagMask) Union(o TagMask) TagMask { return m | o }

// ContainsAll reports whether m is a superset of o.
func (m TagMask) ContainsAll(o TagMask) bool { return m&o == o }

// IsEmpty reports whether no bit is set.
func (m TagMask) IsEmpty() bool { return m == 0 }

// PopCount returns the number of set bits.
func (m TagMask) PopCount() int { return bits.OnesCount64(uint64(m)) }
