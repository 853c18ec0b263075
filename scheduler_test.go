package silo

import (
	"context"
	"testing"
)

type sPosition struct{ X float32 }
type sHealth struct{ HP float32 }
type sSprite struct{ Frame int32 }

const (
	sPositionID ComponentId = 0
	sHealthID   ComponentId = 1
	sSpriteID   ComponentId = 2

	sysA SystemID = 1
	sysB SystemID = 2
	sysC SystemID = 3
)

func newSchedulerTestWorld(t *testing.T) *World {
	t.Helper()
	registry := NewComponentRegistry([]ComponentTypeInfo{
		{ID: sPositionID, Size: 4, Align: 4, GUID: "Position"},
		{ID: sHealthID, Size: 4, Align: 4, GUID: "Health"},
		{ID: sSpriteID, Size: 4, Align: 4, GUID: "Sprite"},
	})
	cfg := DefaultConfig()
	cfg.ChunkSizeBytes = 1024
	return NewWorld(registry, cfg)
}

// buildABCSystems wires up scenario S4: A writes Position; B runs after A,
// reads Position and writes Health; C reads Position and writes Sprite.
func buildABCSystems(order *[]SystemID) []System {
	record := func(id SystemID) {
		*order = append(*order, id)
	}
	return []System{
		{
			Metadata: SystemMetadata{ID: sysA, Name: "A", Write: Mask{}.Set(sPositionID)},
			Execute: func(ctx context.Context, w *World) error {
				record(sysA)
				q := NewQueryBuilder().With(sPositionID).Build(w)
				for _, ref := range q.Entities() {
					pos := GetComponentAt[sPosition](ref, sPositionID)
					pos.X += 1
				}
				return nil
			},
		},
		{
			Metadata: SystemMetadata{ID: sysB, Name: "B", Read: Mask{}.Set(sPositionID), Write: Mask{}.Set(sHealthID), After: []SystemID{sysA}},
			Execute: func(ctx context.Context, w *World) error {
				record(sysB)
				q := NewQueryBuilder().With(sPositionID).With(sHealthID).Build(w)
				for _, ref := range q.Entities() {
					pos := GetComponentAt[sPosition](ref, sPositionID)
					hp := GetComponentAt[sHealth](ref, sHealthID)
					hp.HP = pos.X * 10
				}
				return nil
			},
		},
		{
			Metadata: SystemMetadata{ID: sysC, Name: "C", Read: Mask{}.Set(sPositionID), Write: Mask{}.Set(sSpriteID)},
			Execute: func(ctx context.Context, w *World) error {
				record(sysC)
				q := NewQueryBuilder().With(sPositionID).With(sSpriteID).Build(w)
				for _, ref := range q.Entities() {
					pos := GetComponentAt[sPosition](ref, sPositionID)
					spr := GetComponentAt[sSprite](ref, sSpriteID)
					spr.Frame = int32(pos.X)
				}
				return nil
			},
		},
	}
}

// TestScheduleWaves is scenario S4's wave-shape assertion.
func TestScheduleWaves(t *testing.T) {
	var order []SystemID
	systems := buildABCSystems(&order)
	sb := NewScheduleBuilder()
	for _, s := range systems {
		sb.Add(s)
	}
	schedule, err := sb.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if schedule.WaveCount() != 2 {
		t.Fatalf("WaveCount = %d, want 2", schedule.WaveCount())
	}
	wave0 := schedule.Wave(0)
	if len(wave0) != 1 || wave0[0].Metadata.ID != sysA {
		t.Errorf("wave 0 = %v, want [A]", idsOf(wave0))
	}
	wave1 := schedule.Wave(1)
	if len(wave1) != 2 {
		t.Fatalf("wave 1 = %v, want [B, C] in some order", idsOf(wave1))
	}
	seen := map[SystemID]bool{wave1[0].Metadata.ID: true, wave1[1].Metadata.ID: true}
	if !seen[sysB] || !seen[sysC] {
		t.Errorf("wave 1 = %v, want {B, C}", idsOf(wave1))
	}
}

func idsOf(systems []System) []SystemID {
	ids := make([]SystemID, len(systems))
	for i, s := range systems {
		ids[i] = s.Metadata.ID
	}
	return ids
}

// TestScheduleSequentialAndParallelAgree runs the same ABC schedule over one
// entity both ways and checks the final values match.
func TestScheduleSequentialAndParallelAgree(t *testing.T) {
	run := func(t *testing.T, runner func(*Schedule, context.Context, *World) error) (float32, float32, int32) {
		w := newSchedulerTestWorld(t)
		e := w.Spawn()
		AddComponent(w, e, sPositionID, sPosition{X: 0})
		AddComponent(w, e, sHealthID, sHealth{})
		AddComponent(w, e, sSpriteID, sSprite{})

		var order []SystemID
		systems := buildABCSystems(&order)
		sb := NewScheduleBuilder()
		for _, s := range systems {
			sb.Add(s)
		}
		schedule, err := sb.Build()
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if err := runner(schedule, context.Background(), w); err != nil {
			t.Fatalf("run: %v", err)
		}
		pos, _ := GetComponent[sPosition](w, e, sPositionID)
		hp, _ := GetComponent[sHealth](w, e, sHealthID)
		spr, _ := GetComponent[sSprite](w, e, sSpriteID)
		return pos.X, hp.HP, spr.Frame
	}

	seqX, seqHP, seqFrame := run(t, func(s *Schedule, ctx context.Context, w *World) error {
		return s.RunSequential(ctx, w)
	})
	parX, parHP, parFrame := run(t, func(s *Schedule, ctx context.Context, w *World) error {
		return s.RunParallel(ctx, w)
	})

	if seqX != parX || seqHP != parHP || seqFrame != parFrame {
		t.Errorf("sequential (%v,%v,%v) != parallel (%v,%v,%v)", seqX, seqHP, seqFrame, parX, parHP, parFrame)
	}
	if seqX != 1 || seqHP != 10 || seqFrame != 1 {
		t.Errorf("final values = (%v,%v,%v), want (1,10,1)", seqX, seqHP, seqFrame)
	}
}

// TestScheduleCycleDetection is scenario S6.
func TestScheduleCycleDetection(t *testing.T) {
	sb := NewScheduleBuilder()
	sb.Add(System{Metadata: SystemMetadata{ID: sysA, After: []SystemID{sysB}}, Execute: noopSystem})
	sb.Add(System{Metadata: SystemMetadata{ID: sysB, After: []SystemID{sysA}}, Execute: noopSystem})

	_, err := sb.Build()
	cycleErr, ok := err.(CycleError)
	if !ok {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycleErr.Remaining) != 2 {
		t.Errorf("CycleError.Remaining = %v, want both systems", cycleErr.Remaining)
	}
}

func noopSystem(ctx context.Context, w *World) error { return nil }
