package silo

// idCache is a small GUID-keyed lookup table, generalized from the teacher's
// SimpleCache[T] (cache.go/factory.go in TheBitDrifter/warehouse) from a
// general string->value cache into the narrower string->id cache used by
// ComponentRegistry and the tag table to resolve a type's stable GUID back
// to its dense id.
type idCache[T any] struct {
	indices map[string]T
}

func newIDCache[T any](sizeHint int) idCache[T] {
	return idCache[T]{indices: make(map[string]T, sizeHint)}
}

func (c idCache[T]) get(key string) (T, bool) {
	v, ok := c.indices[key]
	return v, ok
}

func (c idCache[T]) put(key string, id T) {
	c.indices[key] = id
}
