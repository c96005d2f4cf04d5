package jobs

type Kind string

const (
	KindBuild   Kind = "BUILD"
	KindHaul    Kind = "HAUL"
	KindCraft   Kind = "CRAFT"
	KindHarvest Kind = "HARVEST"
	KindSalvage Kind = "SALVAGE"
	KindHunt    Kind = "HUNT"
	KindEquip   Kind = "EQUIP"
)

// Categories group kinds for agent opt-in filtering and trait scoring.
const (
	CategoryConstruction = "construction"
	CategoryHauling      = "hauling"
	CategoryCrafting     = "crafting"
	CategoryHarvest      = "harvest"
	CategorySalvage      = "salvage"
	CategoryHunting      = "hunting"
	CategoryPersonal     = "personal"
)

// DefaultCategory maps a kind to its category when a producer does not set
// one explicitly.
func DefaultCategory(k Kind) string {
	switch k {
	case KindBuild:
		return CategoryConstruction
	case KindHaul:
		return CategoryHauling
	case KindCraft:
		return CategoryCrafting
	case KindHarvest:
		return CategoryHarvest
	case KindSalvage:
		return CategorySalvage
	case KindHunt:
		return CategoryHunting
	case KindEquip:
		return CategoryPersonal
	default:
		return "misc"
	}
}

// Job is a schedulable unit of work anchored at a tile or entity.
type Job struct {
	ID       string
	Kind     Kind
	Category string

	Pos      Vec3i
	TargetID string // entity reference (animal for HUNT, item entity for EQUIP/HAUL pickup)

	Priority int
	Required int // work ticks to finish
	Progress int

	// Claim state. Claimant is empty or exactly one agent id; mutated only
	// by the registry.
	Claimant     string
	ClaimTick    uint64
	ProgressTick uint64 // last tick Progress advanced (staleness detection)

	InsertedTick uint64
	Seq          uint64 // insertion order, tie-break for equal scores

	// CooldownUntilTick hides the job from candidate queries after an
	// unreachable or starved abandonment, to avoid re-claim thrashing.
	CooldownUntilTick uint64

	// Blocked is the E_* reason reported by the execution engine while the
	// claimant is stalled (missing materials, no storage). Cleared on
	// progress, release and completion.
	Blocked          string
	BlockedSinceTick uint64

	// MaterialsReserved is set once an engine's all-or-nothing input
	// reservation succeeded, so re-entry does not reserve twice.
	MaterialsReserved bool
	// Stage is engine-private phase state (hauling pick-up vs drop-off).
	Stage int

	// HAUL
	Resource string // resource id being moved (fungible)
	Amount   int
	HasDest  bool
	Dest     Vec3i

	// CRAFT
	RecipeID string

	// BUILD
	BlueprintID string

	// EQUIP
	ItemID string // discrete item instance id
}

// RequeueOnAbandon reports whether an abandoned job returns to the pool or is
// deleted. Hunt targets move; a fled or dead target makes the job worthless.
func (j *Job) RequeueOnAbandon() bool {
	return j.Kind != KindHunt
}

// Vec3i is duplicated here to avoid import cycles (jobs is used by world and
// storage).
type Vec3i struct{ X, Y, Z int }

func Manhattan(a, b Vec3i) int {
	d := 0
	for _, v := range [3]int{a.X - b.X, a.Y - b.Y, a.Z - b.Z} {
		if v < 0 {
			v = -v
		}
		d += v
	}
	return d
}
