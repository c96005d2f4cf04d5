package storage

import (
	"fmt"
	"sort"

	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
)

// Reservation is an ephemeral hold on a specific quantity of a resource (or
// one discrete item instance) at one cell. Exactly one of Commit or Cancel
// consumes it; a second call on the same id is rejected.
type Reservation struct {
	ID    string
	JobID string
	Cell  jobs.Vec3i

	Resource string
	Amount   int

	ItemID string // set for discrete instance holds; Amount is 1
}

// Request names what to reserve: an exact resource id or a tag expression.
type Request struct {
	Resource string
	Tags     []string
	Amount   int
}

func (rq Request) valid() bool {
	if rq.Amount <= 0 {
		return false
	}
	return (rq.Resource != "") != (len(rq.Tags) > 0)
}

// FindAndReserve scans eligible cells nearest-to-hint first and places holds
// totalling the requested amount, possibly split across cells. All or
// nothing: when the total unreserved quantity anywhere is insufficient, no
// reservation is created and an error is returned. Matching is first-fit;
// tag requests match any resource or item instance whose tags cover the
// required set.
func (s *Store) FindAndReserve(jobID string, rq Request, hint jobs.Vec3i) ([]*Reservation, error) {
	if !rq.valid() {
		return nil, fmt.Errorf("reservation request needs exactly one of resource/tags and a positive amount")
	}

	cells := s.Cells()
	sort.SliceStable(cells, func(i, k int) bool {
		di := jobs.Manhattan(hint, cells[i].Pos)
		dk := jobs.Manhattan(hint, cells[k].Pos)
		if di != dk {
			return di < dk
		}
		return vecLess(cells[i].Pos, cells[k].Pos)
	})

	type hold struct {
		cell     *Cell
		resource string
		amount   int
		itemID   string
	}
	var plan []hold
	need := rq.Amount

	for _, c := range cells {
		if need <= 0 {
			break
		}
		if rq.Resource != "" {
			if avail := c.available(rq.Resource); avail > 0 {
				take := avail
				if take > need {
					take = need
				}
				plan = append(plan, hold{cell: c, resource: rq.Resource, amount: take})
				need -= take
			}
			continue
		}
		// Tag expression: fungible stacks first, then discrete instances.
		for _, res := range sortedKeys(c.Contents) {
			if need <= 0 {
				break
			}
			def, ok := s.resources.Defs[res]
			if !ok || !def.HasAllTags(rq.Tags) {
				continue
			}
			if avail := c.available(res); avail > 0 {
				take := avail
				if take > need {
					take = need
				}
				plan = append(plan, hold{cell: c, resource: res, amount: take})
				need -= take
			}
		}
		for _, id := range sortedKeys(c.Items) {
			if need <= 0 {
				break
			}
			if c.ReservedItems[id] {
				continue
			}
			res := c.Items[id]
			def, ok := s.resources.Defs[res]
			if !ok || !def.HasAllTags(rq.Tags) {
				continue
			}
			plan = append(plan, hold{cell: c, resource: res, amount: 1, itemID: id})
			need--
		}
	}

	if need > 0 {
		return nil, fmt.Errorf("insufficient stock: short %d", need)
	}

	out := make([]*Reservation, 0, len(plan))
	for _, h := range plan {
		s.nextResNum++
		r := &Reservation{
			ID:       fmt.Sprintf("R%d", s.nextResNum),
			JobID:    jobID,
			Cell:     h.cell.Pos,
			Resource: h.resource,
			Amount:   h.amount,
			ItemID:   h.itemID,
		}
		if h.itemID != "" {
			if h.cell.ReservedItems == nil {
				h.cell.ReservedItems = map[string]bool{}
			}
			h.cell.ReservedItems[h.itemID] = true
		} else {
			h.cell.reserve(h.resource, h.amount)
		}
		s.reservations[r.ID] = r
		out = append(out, r)
	}
	return out, nil
}

// ReserveAt places a hold constrained to one specific cell. Relocation and
// storage-to-storage hauls pin their source this way so the stock cannot be
// consumed out from under the carrier.
func (s *Store) ReserveAt(jobID string, cell jobs.Vec3i, resource string, amount int) (*Reservation, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("reservation amount must be positive")
	}
	c := s.cells[cell]
	if c == nil {
		return nil, fmt.Errorf("no storage cell at %v", cell)
	}
	if avail := c.available(resource); avail < amount {
		return nil, fmt.Errorf("cell %v holds %d unreserved %s, need %d", cell, avail, resource, amount)
	}
	c.reserve(resource, amount)
	s.nextResNum++
	r := &Reservation{
		ID:       fmt.Sprintf("R%d", s.nextResNum),
		JobID:    jobID,
		Cell:     cell,
		Resource: resource,
		Amount:   amount,
	}
	s.reservations[r.ID] = r
	return r, nil
}

// ReserveItemInstance places a hold on one specific discrete item (equip
// jobs target an exact instance, not a tag).
func (s *Store) ReserveItemInstance(jobID, instanceID string) (*Reservation, error) {
	for _, c := range s.Cells() {
		res, ok := c.Items[instanceID]
		if !ok {
			continue
		}
		if c.ReservedItems[instanceID] {
			return nil, fmt.Errorf("item %s already reserved", instanceID)
		}
		if c.ReservedItems == nil {
			c.ReservedItems = map[string]bool{}
		}
		c.ReservedItems[instanceID] = true
		s.nextResNum++
		r := &Reservation{
			ID:       fmt.Sprintf("R%d", s.nextResNum),
			JobID:    jobID,
			Cell:     c.Pos,
			Resource: res,
			Amount:   1,
			ItemID:   instanceID,
		}
		s.reservations[r.ID] = r
		return r, nil
	}
	return nil, fmt.Errorf("item %s not found in storage", instanceID)
}

// Commit converts a reservation into a withdrawal, decrementing stored
// quantity. Called exactly once at the moment of consumption; committing an
// unknown (already settled) id is an error, never a double-apply.
func (s *Store) Commit(reservationID string) error {
	r := s.reservations[reservationID]
	if r == nil {
		return fmt.Errorf("reservation %s unknown or already settled", reservationID)
	}
	c := s.cells[r.Cell]
	if c == nil {
		delete(s.reservations, reservationID)
		return fmt.Errorf("reservation %s references missing cell %v", reservationID, r.Cell)
	}
	if r.ItemID != "" {
		delete(c.Items, r.ItemID)
		delete(c.ReservedItems, r.ItemID)
	} else {
		c.unreserve(r.Resource, r.Amount)
		c.Contents[r.Resource] -= r.Amount
		if c.Contents[r.Resource] <= 0 {
			delete(c.Contents, r.Resource)
			if c.Misplaced != nil {
				delete(c.Misplaced, r.Resource)
			}
		}
	}
	delete(s.reservations, reservationID)
	return nil
}

// Cancel releases a hold without withdrawing. Same exactly-once contract as
// Commit.
func (s *Store) Cancel(reservationID string) error {
	r := s.reservations[reservationID]
	if r == nil {
		return fmt.Errorf("reservation %s unknown or already settled", reservationID)
	}
	if c := s.cells[r.Cell]; c != nil {
		if r.ItemID != "" {
			delete(c.ReservedItems, r.ItemID)
		} else {
			c.unreserve(r.Resource, r.Amount)
		}
	}
	delete(s.reservations, reservationID)
	return nil
}

// CancelForJob releases every hold belonging to a job. Abandonment paths
// call this so reservations can never leak past a claim release.
func (s *Store) CancelForJob(jobID string) int {
	var ids []string
	for id, r := range s.reservations {
		if r.JobID == jobID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		_ = s.Cancel(id)
	}
	return len(ids)
}

// ReservationsForJob lists active holds for a job, sorted by id.
func (s *Store) ReservationsForJob(jobID string) []*Reservation {
	var out []*Reservation
	for _, r := range s.reservations {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (s *Store) Reservation(id string) *Reservation { return s.reservations[id] }

func (s *Store) ActiveReservations() []*Reservation {
	out := make([]*Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
