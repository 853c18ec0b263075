package silo

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// SystemID is a dense integer identity assigned to a system by the source
// generator or by hand.
type SystemID uint32

// SystemMetadata is the compile-time-derived description of one system:
// its read/write masks and any explicit ordering constraints.
type SystemMetadata struct {
	ID    SystemID
	Name  string
	Read  Mask
	Write Mask
	After []SystemID
}

// conflicts reports whether a and b touch the same component in a way that
// forbids running them concurrently.
func conflicts(a, b SystemMetadata) bool {
	return a.Write.ContainsAny(b.Read) || a.Read.ContainsAny(b.Write) || a.Write.ContainsAny(b.Write)
}

// System is a schedulable unit of work: metadata plus the callable the
// generator supplies. The generator owns metadata and body; the scheduler
// only ever sees the runtime contract of read/write masks plus Execute.
type System struct {
	Metadata SystemMetadata
	Execute  func(ctx context.Context, world *World) error
}

// ScheduleBuilder accumulates a subset of the globally known systems and
// computes their conflict/after DAG into waves via a Kahn's-algorithm
// topological sort.
//
// There is no teacher analog for this file: TheBitDrifter/warehouse has no
// scheduling concept. Parallel wave dispatch uses golang.org/x/sync/errgroup,
// the same errgroup dependency other repos in the reference pack use for
// fan-out/fan-in work.
type ScheduleBuilder struct {
	systems []System
}

// NewScheduleBuilder returns an empty builder.
func NewScheduleBuilder() *ScheduleBuilder {
	return &ScheduleBuilder{}
}

// Add appends a system to the set being scheduled.
func (b *ScheduleBuilder) Add(s System) *ScheduleBuilder {
	b.systems = append(b.systems, s)
	return b
}

// Build computes the wave partition over the accumulated systems, returning
// a CycleError if the after/conflict graph is not a DAG. After-edges
// referencing a system outside this builder's set are silently dropped.
func (b *ScheduleBuilder) Build() (*Schedule, error) {
	n := len(b.systems)
	indexByID := make(map[SystemID]int, n)
	for i, s := range b.systems {
		indexByID[s.Metadata.ID] = i
	}

	// edges[i] lists the indices that depend on i (i must run before them).
	edges := make([][]int, n)
	indegree := make([]int, n)
	seen := make(map[[2]int]bool)

	addEdge := func(from, to int) {
		if from == to || seen[[2]int{from, to}] {
			return
		}
		seen[[2]int{from, to}] = true
		edges[from] = append(edges[from], to)
		indegree[to]++
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if conflicts(b.systems[i].Metadata, b.systems[j].Metadata) {
				addEdge(i, j)
			}
		}
	}
	for i, s := range b.systems {
		for _, afterID := range s.Metadata.After {
			if j, ok := indexByID[afterID]; ok {
				addEdge(j, i)
			}
		}
	}

	waves := make([][]System, 0)
	remaining := n
	inCurrentFrontier := make([]bool, n)
	frontier := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			frontier = append(frontier, i)
			inCurrentFrontier[i] = true
		}
	}

	for len(frontier) > 0 {
		wave := make([]System, len(frontier))
		for k, idx := range frontier {
			wave[k] = b.systems[idx]
		}
		waves = append(waves, wave)
		remaining -= len(frontier)

		next := make([]int, 0)
		for _, idx := range frontier {
			for _, dep := range edges[idx] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		sort.Ints(next)
		frontier = next
	}

	if remaining > 0 {
		var stuck []SystemID
		for i := 0; i < n; i++ {
			if indegree[i] > 0 {
				stuck = append(stuck, b.systems[i].Metadata.ID)
			}
		}
		return nil, CycleError{Remaining: stuck}
	}

	return &Schedule{waves: waves}, nil
}

// Schedule is the immutable wave partition produced by ScheduleBuilder.Build.
// A Schedule can be run repeatedly and concurrently against different
// Worlds.
type Schedule struct {
	waves [][]System
}

// WaveCount returns the number of waves.
func (s *Schedule) WaveCount() int { return len(s.waves) }

// Wave returns the systems in wave i, in declaration order.
func (s *Schedule) Wave(i int) []System { return s.waves[i] }

// RunSequential executes every wave's systems in declaration order, one at a
// time.
func (s *Schedule) RunSequential(ctx context.Context, world *World) error {
	for _, wave := range s.waves {
		for _, sys := range wave {
			if err := sys.Execute(ctx, world); err != nil {
				return err
			}
		}
	}
	return nil
}

// RunParallel executes each wave's systems concurrently via errgroup,
// awaiting the whole wave before advancing, so all writes of wave k are
// visible before any read of wave k+1 begins. Structural mutation is
// forbidden for the duration of each wave; World.structuralGuard rejects it.
func (s *Schedule) RunParallel(ctx context.Context, world *World) error {
	for _, wave := range s.waves {
		world.inParallelWave = true
		g, gctx := errgroup.WithContext(ctx)
		for _, sys := range wave {
			sys := sys
			g.Go(func() error {
				return sys.Execute(gctx, world)
			})
		}
		err := g.Wait()
		world.inParallelWave = false
		if err != nil {
			return err
		}
	}
	return nil
}
