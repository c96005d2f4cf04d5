package model

import "github.com/NeruoDissident/FracturedCity/internal/sim/jobs"

type Vec3i struct{ X, Y, Z int }

func (v Vec3i) Job() jobs.Vec3i  { return jobs.Vec3i{X: v.X, Y: v.Y, Z: v.Z} }
func FromJob(v jobs.Vec3i) Vec3i { return Vec3i{X: v.X, Y: v.Y, Z: v.Z} }
func (v Vec3i) Arr() [3]int      { return [3]int{v.X, v.Y, v.Z} }
func FromArr(a [3]int) Vec3i     { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func Manhattan(a, b Vec3i) int {
	return jobs.Manhattan(a.Job(), b.Job())
}

// Adjacent reports whether two tiles are the same or orthogonally adjacent
// on the same z-level; the interaction range for drop-offs and entity work.
func Adjacent(a, b Vec3i) bool {
	if a.Z != b.Z {
		return false
	}
	return Manhattan(a, b) <= 1
}
