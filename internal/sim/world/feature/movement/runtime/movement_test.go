package runtime

import (
	"testing"

	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

// lineEnv is a flat corridor along X with an optional set of blocked tiles.
type lineEnv struct {
	blocked map[model.Vec3i]bool
}

func (e *lineEnv) Walkable(p model.Vec3i) bool { return !e.blocked[p] }

func (e *lineEnv) Path(from, to model.Vec3i) ([]model.Vec3i, bool) {
	if e.blocked[to] {
		return nil, false
	}
	var route []model.Vec3i
	p := from
	for p != to {
		if p.X < to.X {
			p.X++
		} else if p.X > to.X {
			p.X--
		} else if p.Y < to.Y {
			p.Y++
		} else if p.Y > to.Y {
			p.Y--
		} else {
			return nil, false
		}
		route = append(route, p)
	}
	return route, true
}

func TestMoveWalksAndArrives(t *testing.T) {
	env := &lineEnv{}
	ag := &model.Agent{ID: "A1"}
	ag.InitDefaults()
	dest := model.Vec3i{X: 3}

	opt := Options{MoveEveryTicks: 1, RerouteAfter: 3}
	steps := 0
	for {
		out := TickMove(env, ag, dest, opt)
		if out == Arrived {
			break
		}
		if out != Moving {
			t.Fatalf("outcome %v", out)
		}
		steps++
		if steps > 10 {
			t.Fatal("never arrived")
		}
	}
	if ag.Pos != dest {
		t.Fatalf("pos %v", ag.Pos)
	}
	if ag.Route != nil || ag.StuckTicks != 0 {
		t.Fatal("route state not reset on arrival")
	}
}

func TestMoveGateSlowsSteps(t *testing.T) {
	env := &lineEnv{}
	ag := &model.Agent{ID: "A1"}
	ag.InitDefaults()
	dest := model.Vec3i{X: 2}

	opt := Options{MoveEveryTicks: 3, RerouteAfter: 3}
	ticks := 0
	for TickMove(env, ag, dest, opt) != Arrived {
		ticks++
		if ticks > 30 {
			t.Fatal("never arrived")
		}
	}
	// Two steps at one step per three ticks.
	if ticks < 3 {
		t.Fatalf("arrived after %d ticks, gate not applied", ticks)
	}
}

func TestMoveReroutesOnceThenGivesUp(t *testing.T) {
	env := &lineEnv{blocked: map[model.Vec3i]bool{}}
	ag := &model.Agent{ID: "A1"}
	ag.InitDefaults()
	dest := model.Vec3i{X: 4}
	opt := Options{MoveEveryTicks: 1, RerouteAfter: 2}

	// Plan a route, then wall off the whole corridor mid-walk.
	if out := TickMove(env, ag, dest, opt); out != Moving {
		t.Fatalf("outcome %v", out)
	}
	for x := ag.Pos.X + 1; x <= 4; x++ {
		env.blocked[model.Vec3i{X: x}] = true
	}

	var out Outcome
	for i := 0; i < 20; i++ {
		out = TickMove(env, ag, dest, opt)
		if out == Unreachable {
			break
		}
	}
	if out != Unreachable {
		t.Fatalf("blocked route never reported unreachable, got %v", out)
	}
}

func TestMoveAdjacentArrivalForUnwalkableTarget(t *testing.T) {
	target := model.Vec3i{X: 2}
	env := &lineEnv{blocked: map[model.Vec3i]bool{target: true}}
	ag := &model.Agent{ID: "A1"}
	ag.InitDefaults()

	opt := Options{MoveEveryTicks: 1, RerouteAfter: 3, ArriveAdjacent: true}
	var out Outcome
	for i := 0; i < 10; i++ {
		out = TickMove(env, ag, target, opt)
		if out == Arrived {
			break
		}
	}
	if out != Arrived {
		t.Fatalf("outcome %v", out)
	}
	if !model.Adjacent(ag.Pos, target) {
		t.Fatalf("stopped at %v, not adjacent to %v", ag.Pos, target)
	}
}

func TestMoveRetargetsWhenDestinationMoves(t *testing.T) {
	env := &lineEnv{}
	ag := &model.Agent{ID: "A1"}
	ag.InitDefaults()
	opt := Options{MoveEveryTicks: 1, RerouteAfter: 3}

	if out := TickMove(env, ag, model.Vec3i{X: 5}, opt); out != Moving {
		t.Fatalf("outcome %v", out)
	}
	// Target moved behind the agent; the route must be replanned.
	newDest := model.Vec3i{X: -2}
	for i := 0; i < 10; i++ {
		if TickMove(env, ag, newDest, opt) == Arrived {
			if ag.Pos != newDest {
				t.Fatalf("pos %v", ag.Pos)
			}
			return
		}
	}
	t.Fatal("never arrived at moved destination")
}
