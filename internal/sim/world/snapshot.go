package world

import (
	"fmt"
	"sort"

	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/registry"
	"github.com/NeruoDissident/FracturedCity/internal/sim/storage"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

// SnapshotV1 is the complete gob-encodable simulation state. Restore must be
// bit-exact: the digest of an exported-then-imported world matches the
// original.
type SnapshotV1 struct {
	Tick uint64

	Agents  []model.Agent
	Tiles   []TileV1
	Nodes   []model.ResourceNode
	Animals []model.Animal
	Ground  []model.ItemEntity
	Wrecks  []Wreck
	Orders  []CraftOrder

	OrderJobs map[string]string

	Jobs             []jobs.Job
	RegistryCounters registry.CountersSnapshot
	Designations     []DesignationV1

	Store storage.SnapshotV1

	NextAgent  uint64
	NextEntity uint64
	NextNode   uint64
	NextAnimal uint64
	NextWreck  uint64
	NextOrder  uint64
}

type TileV1 struct {
	Pos  model.Vec3i
	Tile Tile
}

type DesignationV1 struct {
	Pos      jobs.Vec3i
	Type     string
	Category string
}

func (w *World) ExportSnapshot() SnapshotV1 {
	snap := SnapshotV1{
		Tick:             w.tick,
		OrderJobs:        map[string]string{},
		RegistryCounters: w.Registry.CountersSnapshot(),
		Store:            w.Store.ExportSnapshot(),
		NextAgent:        w.nextAgentNum,
		NextEntity:       w.nextEntityNum,
		NextNode:         w.nextNodeNum,
		NextAnimal:       w.nextAnimalNum,
		NextWreck:        w.nextWreckNum,
		NextOrder:        w.nextOrderNum,
	}

	for _, ag := range w.Agents() {
		cp := *ag
		cp.Events = nil
		if ag.Carry != nil {
			c := *ag.Carry
			cp.Carry = &c
		}
		if ag.Errand != nil {
			e := *ag.Errand
			cp.Errand = &e
		}
		cp.Route = append([]model.Vec3i(nil), ag.Route...)
		snap.Agents = append(snap.Agents, cp)
	}

	keys := make([]model.Vec3i, 0, len(w.tiles))
	for p := range w.tiles {
		keys = append(keys, p)
	}
	sortModelVecs(keys)
	for _, p := range keys {
		snap.Tiles = append(snap.Tiles, TileV1{Pos: p, Tile: w.tiles[p]})
	}

	for _, n := range w.Nodes() {
		snap.Nodes = append(snap.Nodes, *n)
	}
	for _, a := range w.Animals() {
		snap.Animals = append(snap.Animals, *a)
	}
	for _, e := range w.GroundItems() {
		snap.Ground = append(snap.Ground, *e)
	}
	for _, id := range sortedKeys(w.wrecks) {
		snap.Wrecks = append(snap.Wrecks, *w.wrecks[id])
	}
	for _, id := range sortedKeys(w.orders) {
		snap.Orders = append(snap.Orders, *w.orders[id])
	}
	for k, v := range w.orderJobs {
		snap.OrderJobs[k] = v
	}

	for _, j := range w.Registry.Jobs() {
		snap.Jobs = append(snap.Jobs, *j)
	}
	for p, d := range w.Registry.Designations() {
		snap.Designations = append(snap.Designations, DesignationV1{Pos: p, Type: d.Type, Category: d.Category})
	}

	return snap
}

// ImportSnapshot replaces the world's entire state. The catalogs and tuning
// of the receiving world must match the ones the snapshot was taken under.
func (w *World) ImportSnapshot(snap SnapshotV1) error {
	if err := w.Store.ImportSnapshot(snap.Store); err != nil {
		return fmt.Errorf("storage restore: %w", err)
	}

	w.tick = snap.Tick
	w.nextAgentNum = snap.NextAgent
	w.nextEntityNum = snap.NextEntity
	w.nextNodeNum = snap.NextNode
	w.nextAnimalNum = snap.NextAnimal
	w.nextWreckNum = snap.NextWreck
	w.nextOrderNum = snap.NextOrder

	w.agents = map[string]*model.Agent{}
	for i := range snap.Agents {
		ag := snap.Agents[i]
		ag.InitDefaults()
		w.agents[ag.ID] = &ag
	}

	w.tiles = map[model.Vec3i]Tile{}
	for _, t := range snap.Tiles {
		w.tiles[t.Pos] = t.Tile
	}
	w.nodes = map[string]*model.ResourceNode{}
	for i := range snap.Nodes {
		n := snap.Nodes[i]
		w.nodes[n.NodeID] = &n
	}
	w.animals = map[string]*model.Animal{}
	for i := range snap.Animals {
		a := snap.Animals[i]
		w.animals[a.AnimalID] = &a
	}
	w.ground = map[string]*model.ItemEntity{}
	for i := range snap.Ground {
		e := snap.Ground[i]
		w.ground[e.EntityID] = &e
	}
	w.wrecks = map[string]*Wreck{}
	for i := range snap.Wrecks {
		wr := snap.Wrecks[i]
		w.wrecks[wr.WreckID] = &wr
	}
	w.orders = map[string]*CraftOrder{}
	for i := range snap.Orders {
		o := snap.Orders[i]
		w.orders[o.OrderID] = &o
	}
	w.orderJobs = map[string]string{}
	for k, v := range snap.OrderJobs {
		w.orderJobs[k] = v
	}

	w.Registry = registry.New()
	for i := range snap.Jobs {
		j := snap.Jobs[i]
		if err := w.Registry.LoadJob(&j); err != nil {
			return fmt.Errorf("registry restore: %w", err)
		}
	}
	w.Registry.SortOrderBySeq()
	w.Registry.LoadCountersSnapshot(snap.RegistryCounters)
	desigs := map[jobs.Vec3i]registry.Designation{}
	for _, d := range snap.Designations {
		desigs[d.Pos] = registry.Designation{Type: d.Type, Category: d.Category}
	}
	w.Registry.LoadDesignations(desigs)

	w.events = nil
	return nil
}

func sortModelVecs(v []model.Vec3i) {
	sort.Slice(v, func(i, k int) bool { return modelVecLess(v[i], v[k]) })
}

func modelVecLess(a, b model.Vec3i) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
