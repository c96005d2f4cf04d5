package runtime

import (
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

// Env is the world surface movement needs: a path query and a per-tile
// walkability probe for detecting routes invalidated by new construction.
type Env interface {
	Path(from, to model.Vec3i) ([]model.Vec3i, bool)
	Walkable(p model.Vec3i) bool
}

type Outcome int

const (
	Moving Outcome = iota
	Arrived
	Unreachable
)

// Options tunes one movement invocation. ArriveAdjacent relaxes the arrival
// condition to "next to" for targets that cannot be stood on (animals,
// un-walkable build sites).
type Options struct {
	MoveEveryTicks int
	RerouteAfter   int
	ArriveAdjacent bool
}

// TickMove advances an agent one movement tick toward dest. Routes are
// computed lazily and re-computed when the destination changes or the next
// step is blocked by something built since the route was planned. One
// reroute is attempted per leg; a second blockage reports Unreachable and
// the state machine abandons with a cooldown.
func TickMove(env Env, ag *model.Agent, dest model.Vec3i, opt Options) Outcome {
	if atDestination(ag.Pos, dest, opt.ArriveAdjacent) {
		ResetMovement(ag)
		return Arrived
	}

	if len(ag.Route) == 0 || ag.RouteStep >= len(ag.Route) || !routeEndsAt(ag.Route, dest, opt.ArriveAdjacent) {
		if !plan(env, ag, dest, opt.ArriveAdjacent) {
			return Unreachable
		}
	}

	if len(ag.Route) == 0 {
		ResetMovement(ag)
		return Arrived
	}

	if ag.MoveGate > 0 {
		ag.MoveGate--
		return Moving
	}

	next := ag.Route[ag.RouteStep]
	if !env.Walkable(next) && !(opt.ArriveAdjacent && next == dest) {
		ag.StuckTicks++
		if ag.StuckTicks < opt.RerouteAfter {
			return Moving
		}
		if ag.Rerouted {
			return Unreachable
		}
		ag.Rerouted = true
		ag.StuckTicks = 0
		if !plan(env, ag, dest, opt.ArriveAdjacent) {
			return Unreachable
		}
		return Moving
	}

	ag.Pos = next
	ag.RouteStep++
	ag.StuckTicks = 0
	if opt.MoveEveryTicks > 1 {
		ag.MoveGate = opt.MoveEveryTicks - 1
	}
	if atDestination(ag.Pos, dest, opt.ArriveAdjacent) {
		ResetMovement(ag)
		return Arrived
	}
	return Moving
}

func plan(env Env, ag *model.Agent, dest model.Vec3i, adjacentOK bool) bool {
	route, ok := env.Path(ag.Pos, dest)
	if !ok || len(route) == 0 {
		if adjacentOK {
			// Target tile itself may be un-walkable; any neighbouring tile
			// reachable by path is good enough.
			for _, n := range neighbours(dest) {
				if r, ok2 := env.Path(ag.Pos, n); ok2 && len(r) > 0 {
					ag.Route, ag.RouteStep = r, 0
					return true
				}
				if ag.Pos == n {
					ag.Route, ag.RouteStep = nil, 0
					return true
				}
			}
		}
		return false
	}
	ag.Route, ag.RouteStep = route, 0
	return true
}

func neighbours(p model.Vec3i) []model.Vec3i {
	return []model.Vec3i{
		{X: p.X + 1, Y: p.Y, Z: p.Z},
		{X: p.X - 1, Y: p.Y, Z: p.Z},
		{X: p.X, Y: p.Y + 1, Z: p.Z},
		{X: p.X, Y: p.Y - 1, Z: p.Z},
	}
}

func routeEndsAt(route []model.Vec3i, dest model.Vec3i, adjacentOK bool) bool {
	end := route[len(route)-1]
	return atDestination(end, dest, adjacentOK)
}

func atDestination(pos, dest model.Vec3i, adjacentOK bool) bool {
	if pos == dest {
		return true
	}
	return adjacentOK && model.Adjacent(pos, dest)
}

// ResetMovement clears all per-leg route state.
func ResetMovement(ag *model.Agent) {
	ag.Route = nil
	ag.RouteStep = 0
	ag.MoveGate = 0
	ag.StuckTicks = 0
	ag.Rerouted = false
}
