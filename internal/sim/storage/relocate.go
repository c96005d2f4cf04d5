package storage

import (
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
)

// RelocationRequest asks the scheduling core to move filter-violating
// contents out of a cell via an ordinary haul job.
type RelocationRequest struct {
	From     jobs.Vec3i
	Dest     jobs.Vec3i
	Resource string
	Amount   int
	ItemID   string // discrete path
}

// RelocationScan finds contents that violate their zone's current filters
// and pairs each with a legal destination found by the same search the haul
// producer uses. Quantities already reserved by in-flight jobs are skipped.
// Contents with no legal destination anywhere are flagged misplaced and left
// in place; the flag clears once the filter re-allows them or they move.
func (s *Store) RelocationScan() []RelocationRequest {
	var out []RelocationRequest
	for _, c := range s.Cells() {
		z := s.zones[c.ZoneID]
		if z == nil {
			continue
		}
		for _, res := range sortedKeys(c.Contents) {
			if z.Allows(res) {
				continue
			}
			avail := c.available(res)
			if avail <= 0 {
				continue
			}
			dest, ok := s.findRelocationDest(res, avail, c)
			if !ok {
				if c.Misplaced == nil {
					c.Misplaced = map[string]bool{}
				}
				c.Misplaced[res] = true
				continue
			}
			delete(c.Misplaced, res)
			out = append(out, RelocationRequest{
				From:     c.Pos,
				Dest:     dest,
				Resource: res,
				Amount:   avail,
			})
		}
		for _, id := range sortedKeys(c.Items) {
			res := c.Items[id]
			if z.Allows(res) || c.ReservedItems[id] {
				continue
			}
			dest, ok := s.findRelocationDest(res, 1, c)
			if !ok {
				if c.Misplaced == nil {
					c.Misplaced = map[string]bool{}
				}
				c.Misplaced[res] = true
				continue
			}
			delete(c.Misplaced, res)
			out = append(out, RelocationRequest{
				From:     c.Pos,
				Dest:     dest,
				Resource: res,
				Amount:   1,
				ItemID:   id,
			})
		}
	}
	return out
}

func (s *Store) findRelocationDest(resource string, amount int, from *Cell) (jobs.Vec3i, bool) {
	best := jobs.Vec3i{}
	bestDist := -1
	for _, c := range s.Cells() {
		if c.Pos == from.Pos {
			continue
		}
		z := s.zones[c.ZoneID]
		if z == nil || !z.Allows(resource) {
			continue
		}
		if c.used()+amount > s.capacity {
			continue
		}
		d := jobs.Manhattan(from.Pos, c.Pos)
		if bestDist < 0 || d < bestDist {
			best = c.Pos
			bestDist = d
		}
	}
	return best, bestDist >= 0
}

// MisplacedContents lists currently flagged contents for diagnostics.
func (s *Store) MisplacedContents() []RelocationRequest {
	var out []RelocationRequest
	for _, c := range s.Cells() {
		for _, res := range sortedKeys(c.Misplaced) {
			if !c.Misplaced[res] {
				continue
			}
			out = append(out, RelocationRequest{
				From:     c.Pos,
				Resource: res,
				Amount:   c.Contents[res],
			})
		}
	}
	return out
}
