package silo

import (
	"fmt"

	"github.com/TheBitDrifter/bark"
)

// Recoverable validation errors: reported to the caller, world state
// unchanged. Shaped after the teacher's LockedStorageError /
// ComponentExistsError / ComponentNotFoundError (errors.go in
// TheBitDrifter/warehouse), generalized from Component (a table.ElementType)
// to ComponentId.

// InvalidEntityError reports an operation against a stale or unknown Entity
// handle (wrong version, or an id that was never allocated).
type InvalidEntityError struct {
	Entity Entity
}

func (e InvalidEntityError) Error() string {
	return fmt.Sprintf("silo: invalid or stale entity handle %v", e.Entity)
}

// ComponentExistsError reports AddComponent on an entity that already has
// the component.
type ComponentExistsError struct {
	Entity    Entity
	Component ComponentId
}

func (e ComponentExistsError) Error() string {
	return fmt.Sprintf("silo: component %d already exists on entity %v", e.Component, e.Entity)
}

// ComponentNotFoundError reports RemoveComponent/GetComponent against a
// component the entity does not carry.
type ComponentNotFoundError struct {
	Entity    Entity
	Component ComponentId
}

func (e ComponentNotFoundError) Error() string {
	return fmt.Sprintf("silo: component %d does not exist on entity %v", e.Component, e.Entity)
}

// StructuralMutationDuringWaveError reports a structural mutation attempted
// from inside parallel wave execution: forbidden rather than silently racy.
type StructuralMutationDuringWaveError struct{}

func (e StructuralMutationDuringWaveError) Error() string {
	return "silo: structural mutation is forbidden during parallel wave execution"
}

// CycleError reports a dependency cycle discovered while building a
// schedule. Returned from ScheduleBuilder rather than panicking: schedule
// construction is expected to be validated up front by callers the way a
// compile step would be.
type CycleError struct {
	Remaining []SystemID
}

func (e CycleError) Error() string {
	return fmt.Sprintf("silo: system dependency cycle detected among %v", e.Remaining)
}

// fatalf panics with a bark-traced error, the teacher's idiom (entity.go,
// query.go in TheBitDrifter/warehouse both do panic(bark.AddTrace(err)))
// for conditions that indicate a configuration or invariant violation
// rather than ordinary caller misuse, and which abort before any mutation
// takes effect.
func fatalf(format string, args ...any) {
	panic(bark.AddTrace(fmt.Errorf(format, args...)))
}
