package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	Claims  Claims  `yaml:"claims"`
	Storage Storage `yaml:"storage"`
	Agents  Agents  `yaml:"agents"`
	Scoring Scoring `yaml:"scoring"`
}

type Claims struct {
	// MaxAttemptsPerTick bounds claim fall-through when races lose.
	MaxAttemptsPerTick int `yaml:"max_attempts_per_tick"`
	// StaleMaxAgeTicks force-releases a claim with no progress for this long.
	StaleMaxAgeTicks uint64 `yaml:"stale_max_age_ticks"`
	// UnreachableCooldownTicks hides a job after a failed route search.
	UnreachableCooldownTicks uint64 `yaml:"unreachable_cooldown_ticks"`
	// MissingMaterialsWaitTicks bounds how long an engine may report
	// E_NO_RESOURCE before the job is abandoned.
	MissingMaterialsWaitTicks uint64 `yaml:"missing_materials_wait_ticks"`
}

type Storage struct {
	CellCapacity int `yaml:"cell_capacity"`
}

type Agents struct {
	// HungerPerTickMilli accumulates on every agent each tick (1000 = 1.0).
	HungerPerTickMilli int `yaml:"hunger_per_tick_milli"`
	// HungerPreemptAt preempts the current job when hunger reaches it.
	HungerPreemptAt int `yaml:"hunger_preempt_at"`
	// HungerMax starts starvation damage.
	HungerMax         int `yaml:"hunger_max"`
	StarveDamage      int `yaml:"starve_damage"`
	MoveEveryTicks    int `yaml:"move_every_ticks"`
	StuckRerouteAfter int `yaml:"stuck_reroute_after"`
}

type Scoring struct {
	PriorityWeight float64 `yaml:"priority_weight"`
	// DistanceHalf is the manhattan distance at which the distance weight
	// halves; the weight decreases monotonically with distance.
	DistanceHalf  float64 `yaml:"distance_half"`
	DistanceScale float64 `yaml:"distance_scale"`
	// UrgencyRampTicks: an unclaimed job gains one priority-weight worth of
	// urgency per this many ticks waited, so old work cannot starve forever.
	UrgencyRampTicks uint64 `yaml:"urgency_ramp_ticks"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         10,
		SnapshotEveryTicks: 3000,
		Claims: Claims{
			MaxAttemptsPerTick:        4,
			StaleMaxAgeTicks:          600,
			UnreachableCooldownTicks:  300,
			MissingMaterialsWaitTicks: 200,
		},
		Storage: Storage{CellCapacity: 100},
		Agents: Agents{
			HungerPerTickMilli: 3,
			HungerPreemptAt:    70,
			HungerMax:          100,
			StarveDamage:       1,
			MoveEveryTicks:     1,
			StuckRerouteAfter:  30,
		},
		Scoring: Scoring{
			PriorityWeight:   10,
			DistanceHalf:     12,
			DistanceScale:    8,
			UrgencyRampTicks: 500,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
