package silo

// factory implements the teacher's factory pattern (factory.go in
// TheBitDrifter/warehouse: a zero-size receiver type with a package-level
// instance), generalized from constructing table/query primitives to
// constructing silo's own World/registry/query/schedule/builder types.
type factory struct{}

// Factory is the global factory instance, mirroring the teacher's
// package-level Factory. Most callers can use the package-level
// constructors directly (NewWorld, NewQueryBuilder, ...); Factory exists for
// call sites that prefer the fluent Factory.NewX() spelling.
var Factory factory

// NewWorld creates a new World with its own SharedArchetypeMetadata.
func (f factory) NewWorld(registry *ComponentRegistry, config Config) *World {
	return NewWorld(registry, config)
}

// NewComponentRegistry builds a ComponentRegistry from the generator's
// component table.
func (f factory) NewComponentRegistry(types []ComponentTypeInfo) *ComponentRegistry {
	return NewComponentRegistry(types)
}

// NewQueryBuilder returns an empty QueryBuilder.
func (f factory) NewQueryBuilder() *QueryBuilder {
	return NewQueryBuilder()
}

// NewEntityBuilder returns an empty EntityBuilder.
func (f factory) NewEntityBuilder() *EntityBuilder {
	return NewEntityBuilder()
}

// NewScheduleBuilder returns an empty ScheduleBuilder.
func (f factory) NewScheduleBuilder() *ScheduleBuilder {
	return NewScheduleBuilder()
}
