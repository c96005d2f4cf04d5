package storage

import (
	"fmt"
	"sort"

	"github.com/NeruoDissident/FracturedCity/internal/sim/catalogs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
)

// Store is the resource reservation layer: bounded per-tile cells grouped
// into filtered zones, plus the reservation ledger that keeps two jobs from
// committing to the same unit of material. It is one of the two mutable
// shared structures in the simulation; all mutation goes through its API.
type Store struct {
	resources catalogs.ResourceCatalog
	capacity  int

	zones map[string]*Zone
	cells map[jobs.Vec3i]*Cell

	reservations map[string]*Reservation

	nextZoneNum uint64
	nextResNum  uint64
	nextItemNum uint64
}

// Zone is a named storage area covering one or more cells, with per-resource
// allow/deny filters. A resource with no filter entry is allowed.
type Zone struct {
	ID      string
	Name    string
	Filters map[string]bool
	Cells   []jobs.Vec3i
}

func (z *Zone) Allows(resource string) bool {
	if z.Filters == nil {
		return true
	}
	allowed, ok := z.Filters[resource]
	if !ok {
		return true
	}
	return allowed
}

// Cell is one storage tile. Fungible resources stack in Contents; discrete
// item instances occupy one capacity slot each. Reserved tracks active holds
// against Contents; the sum of reservations never exceeds what is physically
// present.
type Cell struct {
	Pos    jobs.Vec3i
	ZoneID string

	Contents map[string]int
	Items    map[string]string // instance id -> resource id

	Reserved      map[string]int
	ReservedItems map[string]bool

	// Misplaced marks contents that violate the zone's current filters but
	// have nowhere legal to go. Availability beats strict enforcement.
	Misplaced map[string]bool
}

func (c *Cell) used() int {
	n := len(c.Items)
	for _, q := range c.Contents {
		n += q
	}
	return n
}

func (c *Cell) available(resource string) int {
	return c.Contents[resource] - c.Reserved[resource]
}

func (c *Cell) reserve(resource string, n int) {
	if n <= 0 {
		return
	}
	if c.Reserved == nil {
		c.Reserved = map[string]int{}
	}
	c.Reserved[resource] += n
}

func (c *Cell) unreserve(resource string, n int) {
	if n <= 0 || c.Reserved == nil {
		return
	}
	c.Reserved[resource] -= n
	if c.Reserved[resource] <= 0 {
		delete(c.Reserved, resource)
	}
}

func New(resources catalogs.ResourceCatalog, cellCapacity int) *Store {
	if cellCapacity <= 0 {
		cellCapacity = 100
	}
	return &Store{
		resources:    resources,
		capacity:     cellCapacity,
		zones:        map[string]*Zone{},
		cells:        map[jobs.Vec3i]*Cell{},
		reservations: map[string]*Reservation{},
	}
}

func (s *Store) CellCapacity() int { return s.capacity }

// CreateZone registers a new zone over the given tiles. Tiles already owned
// by another zone are rejected.
func (s *Store) CreateZone(name string, tiles []jobs.Vec3i) (*Zone, error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("zone needs at least one tile")
	}
	for _, p := range tiles {
		if _, taken := s.cells[p]; taken {
			return nil, fmt.Errorf("tile %v already belongs to a zone", p)
		}
	}
	s.nextZoneNum++
	z := &Zone{
		ID:      fmt.Sprintf("Z%d", s.nextZoneNum),
		Name:    name,
		Filters: map[string]bool{},
	}
	for _, p := range tiles {
		z.Cells = append(z.Cells, p)
		s.cells[p] = &Cell{
			Pos:      p,
			ZoneID:   z.ID,
			Contents: map[string]int{},
			Items:    map[string]string{},
		}
	}
	sortVecs(z.Cells)
	s.zones[z.ID] = z
	return z, nil
}

func (s *Store) Zone(id string) *Zone            { return s.zones[id] }
func (s *Store) CellAt(p jobs.Vec3i) *Cell       { return s.cells[p] }
func (s *Store) IsStorageTile(p jobs.Vec3i) bool { _, ok := s.cells[p]; return ok }

// Zones returns zones sorted by id for deterministic iteration.
func (s *Store) Zones() []*Zone {
	out := make([]*Zone, 0, len(s.zones))
	for _, z := range s.zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// Cells returns all cells in deterministic position order.
func (s *Store) Cells() []*Cell {
	out := make([]*Cell, 0, len(s.cells))
	for _, c := range s.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, k int) bool { return vecLess(out[i].Pos, out[k].Pos) })
	return out
}

// SetFilter flips a zone's allow/deny entry for a resource. Contents newly
// violating the filter are not touched here; the relocation scan picks them
// up. Re-allowing a resource clears its misplaced flags.
func (s *Store) SetFilter(zoneID, resource string, allowed bool) error {
	z := s.zones[zoneID]
	if z == nil {
		return fmt.Errorf("zone %s not found", zoneID)
	}
	if z.Filters == nil {
		z.Filters = map[string]bool{}
	}
	z.Filters[resource] = allowed
	if allowed {
		for _, p := range z.Cells {
			if c := s.cells[p]; c != nil && c.Misplaced != nil {
				delete(c.Misplaced, resource)
			}
		}
	}
	return nil
}

// Put admits fungible resources into a cell only if the zone filter allows
// them and capacity remains. Callers fall back to a fresh destination search
// on failure.
func (s *Store) Put(p jobs.Vec3i, resource string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	c := s.cells[p]
	if c == nil {
		return fmt.Errorf("no storage cell at %v", p)
	}
	z := s.zones[c.ZoneID]
	if z == nil || !z.Allows(resource) {
		return fmt.Errorf("zone filter rejects %s at %v", resource, p)
	}
	if c.used()+amount > s.capacity {
		return fmt.Errorf("cell %v full (%d/%d)", p, c.used(), s.capacity)
	}
	c.Contents[resource] += amount
	return nil
}

// PutItem admits one discrete item instance, generating an instance id.
func (s *Store) PutItem(p jobs.Vec3i, resource string) (string, error) {
	c := s.cells[p]
	if c == nil {
		return "", fmt.Errorf("no storage cell at %v", p)
	}
	z := s.zones[c.ZoneID]
	if z == nil || !z.Allows(resource) {
		return "", fmt.Errorf("zone filter rejects %s at %v", resource, p)
	}
	if c.used()+1 > s.capacity {
		return "", fmt.Errorf("cell %v full", p)
	}
	s.nextItemNum++
	id := fmt.Sprintf("I%d", s.nextItemNum)
	c.Items[id] = resource
	return id, nil
}

// PlaceItemInstance restores a known instance id into a cell (snapshot load
// and hauled discrete items keep their identity).
func (s *Store) PlaceItemInstance(p jobs.Vec3i, instanceID, resource string) error {
	c := s.cells[p]
	if c == nil {
		return fmt.Errorf("no storage cell at %v", p)
	}
	z := s.zones[c.ZoneID]
	if z == nil || !z.Allows(resource) {
		return fmt.Errorf("zone filter rejects %s at %v", resource, p)
	}
	if c.used()+1 > s.capacity {
		return fmt.Errorf("cell %v full", p)
	}
	c.Items[instanceID] = resource
	return nil
}

// FindItem locates a discrete item instance.
func (s *Store) FindItem(instanceID string) (jobs.Vec3i, string, bool) {
	for _, c := range s.Cells() {
		if res, ok := c.Items[instanceID]; ok {
			return c.Pos, res, true
		}
	}
	return jobs.Vec3i{}, "", false
}

// TotalOf sums a resource across all cells, reservations ignored. Used by
// the claim protocol's cheap plausibility check.
func (s *Store) TotalOf(resource string) int {
	n := 0
	for _, c := range s.cells {
		n += c.Contents[resource]
	}
	return n
}

// AvailableOf sums unreserved quantity across all cells.
func (s *Store) AvailableOf(resource string) int {
	n := 0
	for _, c := range s.cells {
		n += c.available(resource)
	}
	return n
}

// AvailableMatchingTags sums unreserved quantity of every resource whose tag
// set covers the required tags, plus unreserved matching item instances.
func (s *Store) AvailableMatchingTags(required []string) int {
	n := 0
	for _, c := range s.cells {
		for res, q := range c.Contents {
			if q <= 0 {
				continue
			}
			def, ok := s.resources.Defs[res]
			if ok && def.HasAllTags(required) {
				n += c.available(res)
			}
		}
		for id, res := range c.Items {
			if c.ReservedItems[id] {
				continue
			}
			def, ok := s.resources.Defs[res]
			if ok && def.HasAllTags(required) {
				n++
			}
		}
	}
	return n
}

// FindStorageFor searches for a cell that can admit the given amount,
// nearest to hint first. Pure search; admission is re-checked by Put at
// store time, and callers re-search on failure.
func (s *Store) FindStorageFor(resource string, amount int, hint jobs.Vec3i) (jobs.Vec3i, bool) {
	if amount <= 0 {
		amount = 1
	}
	best := jobs.Vec3i{}
	bestDist := -1
	for _, c := range s.Cells() {
		z := s.zones[c.ZoneID]
		if z == nil || !z.Allows(resource) {
			continue
		}
		if c.used()+amount > s.capacity {
			continue
		}
		d := jobs.Manhattan(hint, c.Pos)
		if bestDist < 0 || d < bestDist {
			best = c.Pos
			bestDist = d
		}
	}
	return best, bestDist >= 0
}

func sortVecs(v []jobs.Vec3i) {
	sort.Slice(v, func(i, k int) bool { return vecLess(v[i], v[k]) })
}

func vecLess(a, b jobs.Vec3i) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
