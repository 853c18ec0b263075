package silo

import "fmt"

// Allocator supplies raw backing memory for chunks.
// The default is a plain make([]byte, size); callers running under a custom
// arena/pool allocator can supply their own.
type Allocator interface {
	Alloc(size int) []byte
}

// AllocatorFunc adapts a plain function to the Allocator interface.
type AllocatorFunc func(size int) []byte

// Alloc implements Allocator.
func (f AllocatorFunc) Alloc(size int) []byte { return f(size) }

var defaultAllocator Allocator = AllocatorFunc(func(size int) []byte {
	return make([]byte, size)
})

// ChunkEvents are optional lifecycle hooks fired by the ChunkManager,
// generalized from the teacher's table.TableEvents (config.go in
// TheBitDrifter/warehouse) into the chunk-granular events this spec's
// storage layer actually has.
type ChunkEvents struct {
	OnAllocate func(ChunkHandle)
	OnFree     func(ChunkHandle)
}

// Config holds the per-world settings. A Config is set once at world
// construction and never mutated afterward.
type Config struct {
	// ChunkSizeBytes is the size of one raw chunk buffer. Default 16 KiB.
	ChunkSizeBytes int

	// EntityIDByteSize determines the maximum representable entity id
	// (maxEntityId) and must be 1, 2, or 4.
	EntityIDByteSize int

	// DefaultEntityCapacity seeds the entity manager's initial slot count.
	DefaultEntityCapacity int

	// MaxMetaBlocks bounds the ChunkManager's two-level metadata table;
	// exceeding it is fatal.
	MaxMetaBlocks int

	// MaxArchetypes and MaxQueries bound the dense id ranges
	// SharedArchetypeMetadata hands out; exceeding either is fatal.
	MaxArchetypes int
	MaxQueries    int

	// LayoutAllocator is stored and defaulted by Validate; archetype layout
	// construction does not draw memory from it (layouts are ordinary Go
	// allocations).
	LayoutAllocator Allocator

	// ChunkAllocator backs raw chunk byte buffers.
	ChunkAllocator Allocator

	// ChunkEvents are optional lifecycle hooks; all fields may be nil.
	ChunkEvents ChunkEvents
}

// DefaultConfig returns the configuration silo itself is tuned against:
// 16 KiB chunks, 4-byte entity ids, a modest default capacity, and the
// built-in make([]byte, n) allocator for both layout and chunk memory.
func DefaultConfig() Config {
	return Config{
		ChunkSizeBytes:        16 * 1024,
		EntityIDByteSize:      4,
		DefaultEntityCapacity: 256,
		MaxMetaBlocks:         1 << 16,
		MaxArchetypes:         1 << 16,
		MaxQueries:            1 << 12,
		LayoutAllocator:       defaultAllocator,
		ChunkAllocator:        defaultAllocator,
	}
}

// Validate checks the configuration for internal consistency, filling in any
// zero-valued allocator/capacity fields with defaults. It returns an error
// (rather than panicking) since a caller may be probing configuration values
// built from untrusted input before committing to a world.
func (c *Config) Validate() error {
	if c.ChunkSizeBytes <= 0 {
		return fmt.Errorf("silo: chunk size must be positive, got %d", c.ChunkSizeBytes)
	}
	switch c.EntityIDByteSize {
	case 1, 2, 4:
	default:
		return fmt.Errorf("silo: entity id byte size must be 1, 2, or 4, got %d", c.EntityIDByteSize)
	}
	if c.MaxMetaBlocks <= 0 {
		return fmt.Errorf("silo: max meta blocks must be positive, got %d", c.MaxMetaBlocks)
	}
	if c.MaxArchetypes <= 0 {
		c.MaxArchetypes = 1 << 16
	}
	if c.MaxQueries <= 0 {
		c.MaxQueries = 1 << 12
	}
	if c.LayoutAllocator == nil {
		c.LayoutAllocator = defaultAllocator
	}
	if c.ChunkAllocator == nil {
		c.ChunkAllocator = defaultAllocator
	}
	if c.DefaultEntityCapacity <= 0 {
		c.DefaultEntityCapacity = 256
	}
	return nil
}

// maxEntityID returns the largest representable entity id for this
// configuration's EntityIDByteSize.
func (c Config) maxEntityID() uint32 {
	switch c.EntityIDByteSize {
	case 1:
		return 1<<8 - 1
	case 2:
		return 1<<16 - 1
	default:
		return 1<<32 - 1
	}
}
