package model

// ResourceNode is a harvestable world feature. Finite nodes convert to their
// depleted tile when CyclesLeft reaches zero; replenishable nodes go dormant
// until RegrowAtTick instead.
type ResourceNode struct {
	NodeID string
	Type   string // catalogs.NodeDef id
	Pos    Vec3i

	CyclesLeft   int
	Dormant      bool
	RegrowAtTick uint64
}

// Animal is a huntable entity. Movement is a deterministic wander handled by
// the world; combat happens inside the hunt engine.
type Animal struct {
	AnimalID string
	Type     string // catalogs.AnimalDef id
	Pos      Vec3i

	HP      int
	Fleeing bool
	Dead    bool
}

// ItemEntity is a loose stack on the ground (harvest output, corpse, salvage
// spill) awaiting pick-up. The auto-haul scan turns flagged entities into
// haul jobs.
type ItemEntity struct {
	EntityID string
	Pos      Vec3i
	Resource string
	Count    int

	// InstanceID is set when the entity is one discrete item (corpse,
	// equipment) that keeps its identity through storage.
	InstanceID string

	CreatedTick   uint64
	HaulRequested bool
}
