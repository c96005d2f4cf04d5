package model

import (
	"sort"

	"github.com/NeruoDissident/FracturedCity/internal/protocol"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
)

type AgentState string

const (
	StateIdle       AgentState = "IDLE"
	StateEvaluating AgentState = "EVALUATING"
	StateMoving     AgentState = "MOVING"
	StateExecuting  AgentState = "EXECUTING"
	StateCompleting AgentState = "COMPLETING"
	StateAbandoning AgentState = "ABANDONING"
	StatePreempted  AgentState = "PREEMPTED"
)

// Agent is one colonist. Its job claim is owned exclusively until released;
// claim fields themselves live on the job and are mutated only by the
// registry.
type Agent struct {
	ID   string
	Name string

	Pos   Vec3i
	State AgentState

	CurrentJobID string

	// EnabledKinds is the opt-in set of job kinds this agent will take.
	EnabledKinds map[jobs.Kind]bool

	// Traits are opaque scoring weights produced by the external
	// personality generator: per-category claim biases plus a work speed
	// multiplier in milli (1000 = 1.0).
	CategoryBias   map[string]float64
	WorkSpeedMilli int

	HP          int
	HungerMilli int // 0..HungerMax*1000
	Dead        bool

	// Carry is the hauling payload between pick-up and drop-off.
	Carry *CarriedStack

	// Equipped discrete item instance, if any.
	EquippedItemID string
	EquippedItem   string

	// Dest is the current movement target while Moving: the job anchor, or
	// an engine-issued redirect (haul drop-off, hunt chase).
	Dest    Vec3i
	HasDest bool

	// Route state while Moving.
	Route      []Vec3i
	RouteStep  int
	MoveGate   int // ticks until next step
	StuckTicks int
	Rerouted   bool

	// WaitTicks counts consecutive blocked ticks while Executing, for the
	// bounded missing-materials wait.
	WaitTicks uint64

	// Errand is the hunger-preemption food run; it bypasses the job pool.
	Errand *FoodErrand

	Events []protocol.Event
}

type CarriedStack struct {
	Resource string
	Amount   int
	ItemID   string // set when carrying a discrete instance
}

type FoodErrand struct {
	ReservationID string
	Target        Vec3i
	Resource      string
	// EatTicksLeft is -1 until the food is picked up.
	EatTicksLeft int
}

func (a *Agent) InitDefaults() {
	if a.State == "" {
		a.State = StateIdle
	}
	if a.HP == 0 {
		a.HP = 100
	}
	if a.WorkSpeedMilli == 0 {
		a.WorkSpeedMilli = 1000
	}
	if a.EnabledKinds == nil {
		a.EnabledKinds = map[jobs.Kind]bool{
			jobs.KindBuild:   true,
			jobs.KindHaul:    true,
			jobs.KindCraft:   true,
			jobs.KindHarvest: true,
			jobs.KindSalvage: true,
			jobs.KindHunt:    true,
			jobs.KindEquip:   true,
		}
	}
	if a.CategoryBias == nil {
		a.CategoryBias = map[string]float64{}
	}
}

func (a *Agent) AddEvent(e protocol.Event) {
	a.Events = append(a.Events, e)
	if len(a.Events) > 1024 {
		a.Events = append([]protocol.Event(nil), a.Events[len(a.Events)-1024:]...)
	}
}

func (a *Agent) TakeEvents() []protocol.Event {
	ev := a.Events
	a.Events = nil
	return ev
}

// WorkIncrement is the progress added per executing tick.
func (a *Agent) WorkIncrement() int {
	inc := a.WorkSpeedMilli / 1000
	if inc < 1 {
		inc = 1
	}
	return inc
}

func (a *Agent) EnabledKindsSorted() []string {
	out := make([]string, 0, len(a.EnabledKinds))
	for k, on := range a.EnabledKinds {
		if on {
			out = append(out, string(k))
		}
	}
	sort.Strings(out)
	return out
}

func (a *Agent) SetEnabledKinds(list []string) {
	a.EnabledKinds = map[jobs.Kind]bool{}
	for _, k := range list {
		a.EnabledKinds[jobs.Kind(k)] = true
	}
}
