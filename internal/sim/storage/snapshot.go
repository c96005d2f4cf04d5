package storage

import (
	"fmt"

	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
)

// Snapshot types mirror the store's state one-to-one so a restore reproduces
// identical find-and-reserve decisions.

type ZoneV1 struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Filters map[string]bool `json:"filters,omitempty"`
	Cells   [][3]int        `json:"cells"`
}

type CellV1 struct {
	Pos           [3]int            `json:"pos"`
	ZoneID        string            `json:"zone_id"`
	Contents      map[string]int    `json:"contents,omitempty"`
	Items         map[string]string `json:"items,omitempty"`
	Reserved      map[string]int    `json:"reserved,omitempty"`
	ReservedItems []string          `json:"reserved_items,omitempty"`
	Misplaced     []string          `json:"misplaced,omitempty"`
}

type ReservationV1 struct {
	ID       string `json:"id"`
	JobID    string `json:"job_id"`
	Cell     [3]int `json:"cell"`
	Resource string `json:"resource"`
	Amount   int    `json:"amount"`
	ItemID   string `json:"item_id,omitempty"`
}

type CountersV1 struct {
	NextZone uint64 `json:"next_zone"`
	NextRes  uint64 `json:"next_res"`
	NextItem uint64 `json:"next_item"`
}

type SnapshotV1 struct {
	Zones        []ZoneV1        `json:"zones"`
	Cells        []CellV1        `json:"cells"`
	Reservations []ReservationV1 `json:"reservations,omitempty"`
	Counters     CountersV1      `json:"counters"`
}

func (s *Store) ExportSnapshot() SnapshotV1 {
	var snap SnapshotV1
	for _, z := range s.Zones() {
		zv := ZoneV1{ID: z.ID, Name: z.Name}
		if len(z.Filters) > 0 {
			zv.Filters = map[string]bool{}
			for k, v := range z.Filters {
				zv.Filters[k] = v
			}
		}
		for _, p := range z.Cells {
			zv.Cells = append(zv.Cells, [3]int{p.X, p.Y, p.Z})
		}
		snap.Zones = append(snap.Zones, zv)
	}
	for _, c := range s.Cells() {
		cv := CellV1{Pos: [3]int{c.Pos.X, c.Pos.Y, c.Pos.Z}, ZoneID: c.ZoneID}
		if len(c.Contents) > 0 {
			cv.Contents = map[string]int{}
			for k, v := range c.Contents {
				if v > 0 {
					cv.Contents[k] = v
				}
			}
		}
		if len(c.Items) > 0 {
			cv.Items = map[string]string{}
			for k, v := range c.Items {
				cv.Items[k] = v
			}
		}
		if len(c.Reserved) > 0 {
			cv.Reserved = map[string]int{}
			for k, v := range c.Reserved {
				if v > 0 {
					cv.Reserved[k] = v
				}
			}
		}
		cv.ReservedItems = sortedTrueKeys(c.ReservedItems)
		cv.Misplaced = sortedTrueKeys(c.Misplaced)
		snap.Cells = append(snap.Cells, cv)
	}
	for _, r := range s.ActiveReservations() {
		snap.Reservations = append(snap.Reservations, ReservationV1{
			ID:       r.ID,
			JobID:    r.JobID,
			Cell:     [3]int{r.Cell.X, r.Cell.Y, r.Cell.Z},
			Resource: r.Resource,
			Amount:   r.Amount,
			ItemID:   r.ItemID,
		})
	}
	snap.Counters = CountersV1{NextZone: s.nextZoneNum, NextRes: s.nextResNum, NextItem: s.nextItemNum}
	return snap
}

func (s *Store) ImportSnapshot(snap SnapshotV1) error {
	s.zones = map[string]*Zone{}
	s.cells = map[jobs.Vec3i]*Cell{}
	s.reservations = map[string]*Reservation{}

	for _, zv := range snap.Zones {
		z := &Zone{ID: zv.ID, Name: zv.Name, Filters: map[string]bool{}}
		for k, v := range zv.Filters {
			z.Filters[k] = v
		}
		for _, p := range zv.Cells {
			z.Cells = append(z.Cells, jobs.Vec3i{X: p[0], Y: p[1], Z: p[2]})
		}
		sortVecs(z.Cells)
		s.zones[z.ID] = z
	}
	for _, cv := range snap.Cells {
		pos := jobs.Vec3i{X: cv.Pos[0], Y: cv.Pos[1], Z: cv.Pos[2]}
		if _, ok := s.zones[cv.ZoneID]; !ok {
			return fmt.Errorf("cell %v references unknown zone %s", pos, cv.ZoneID)
		}
		c := &Cell{Pos: pos, ZoneID: cv.ZoneID, Contents: map[string]int{}, Items: map[string]string{}}
		for k, v := range cv.Contents {
			c.Contents[k] = v
		}
		for k, v := range cv.Items {
			c.Items[k] = v
		}
		if len(cv.Reserved) > 0 {
			c.Reserved = map[string]int{}
			for k, v := range cv.Reserved {
				c.Reserved[k] = v
			}
		}
		if len(cv.ReservedItems) > 0 {
			c.ReservedItems = map[string]bool{}
			for _, id := range cv.ReservedItems {
				c.ReservedItems[id] = true
			}
		}
		if len(cv.Misplaced) > 0 {
			c.Misplaced = map[string]bool{}
			for _, res := range cv.Misplaced {
				c.Misplaced[res] = true
			}
		}
		s.cells[pos] = c
	}
	for _, rv := range snap.Reservations {
		s.reservations[rv.ID] = &Reservation{
			ID:       rv.ID,
			JobID:    rv.JobID,
			Cell:     jobs.Vec3i{X: rv.Cell[0], Y: rv.Cell[1], Z: rv.Cell[2]},
			Resource: rv.Resource,
			Amount:   rv.Amount,
			ItemID:   rv.ItemID,
		}
	}
	s.nextZoneNum = snap.Counters.NextZone
	s.nextResNum = snap.Counters.NextRes
	s.nextItemNum = snap.Counters.NextItem
	return s.checkInvariants()
}

// checkInvariants verifies the reservation-never-exceeds-contents and
// capacity bounds after a restore.
func (s *Store) checkInvariants() error {
	for _, c := range s.cells {
		if c.used() > s.capacity {
			return fmt.Errorf("cell %v over capacity: %d > %d", c.Pos, c.used(), s.capacity)
		}
		for res, held := range c.Reserved {
			if held > c.Contents[res] {
				return fmt.Errorf("cell %v: reserved %d of %s exceeds stored %d", c.Pos, held, res, c.Contents[res])
			}
		}
		for id := range c.ReservedItems {
			if _, ok := c.Items[id]; !ok {
				return fmt.Errorf("cell %v: reserved item %s not present", c.Pos, id)
			}
		}
	}
	return nil
}

func sortedTrueKeys(m map[string]bool) []string {
	var out []string
	for _, k := range sortedKeys(m) {
		if m[k] {
			out = append(out, k)
		}
	}
	return out
}
