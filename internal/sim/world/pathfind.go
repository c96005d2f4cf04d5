package world

import (
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

// GridPathfinder is a plain breadth-first search over the walkability
// function, bounded by MaxExpand visited tiles so a walled-off destination
// terminates instead of flooding the plane.
type GridPathfinder struct {
	MaxExpand int
}

func (g GridPathfinder) FindPath(from, to model.Vec3i, walkable func(model.Vec3i) bool) ([]model.Vec3i, bool) {
	if from == to {
		return nil, true
	}
	if !walkable(to) {
		return nil, false
	}
	limit := g.MaxExpand
	if limit <= 0 {
		limit = 20000
	}

	prev := map[model.Vec3i]model.Vec3i{from: from}
	queue := []model.Vec3i{from}
	for len(queue) > 0 && len(prev) < limit {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range [4]model.Vec3i{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}} {
			next := model.Vec3i{X: cur.X + d.X, Y: cur.Y + d.Y, Z: cur.Z}
			if _, seen := prev[next]; seen {
				continue
			}
			if next != to && !walkable(next) {
				continue
			}
			prev[next] = cur
			if next == to {
				return reconstruct(prev, from, to), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func reconstruct(prev map[model.Vec3i]model.Vec3i, from, to model.Vec3i) []model.Vec3i {
	var rev []model.Vec3i
	for p := to; p != from; p = prev[p] {
		rev = append(rev, p)
	}
	out := make([]model.Vec3i, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return out
}
