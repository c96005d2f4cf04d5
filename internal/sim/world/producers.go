package world

import (
	"sort"
	"strings"

	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

// runProducers turns durable intent (designations, craft orders) and world
// debris (loose items, filter violations) into concrete jobs. Producers are
// idempotent per tick: each checks for existing work before inserting.
func (w *World) runProducers() {
	w.produceDesignationJobs()
	w.produceAutoHaul()
	w.produceRelocations()
	w.produceCraftOrders()
}

func (w *World) produceDesignationJobs() {
	desigs := w.Registry.Designations()
	positions := make([]jobs.Vec3i, 0, len(desigs))
	for p := range desigs {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, k int) bool {
		a, b := positions[i], positions[k]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	for _, pos := range positions {
		d := desigs[pos]
		switch {
		case d.Type == "HARVEST":
			w.produceHarvestAt(pos)
		case d.Type == "SALVAGE":
			w.produceSalvageAt(pos)
		case strings.HasPrefix(d.Type, "BUILD:"):
			// Build jobs are created at placement; the designation only
			// guards the tile.
		}
	}
}

func (w *World) produceHarvestAt(pos jobs.Vec3i) {
	n := w.nodeAt(model.FromJob(pos))
	if n == nil {
		w.Registry.RemoveDesignation(pos)
		return
	}
	if n.Dormant || n.CyclesLeft <= 0 {
		return
	}
	if w.activeJobFor(jobs.KindHarvest, n.NodeID) != nil {
		return
	}
	def := w.cat.Nodes.Defs[n.Type]
	j := &jobs.Job{
		Kind:     jobs.KindHarvest,
		Pos:      pos,
		TargetID: n.NodeID,
		Priority: 2,
		Required: def.WorkTicks,
	}
	_ = w.Registry.Insert(j, w.tick)
}

func (w *World) produceSalvageAt(pos jobs.Vec3i) {
	wr := w.wreckAt(model.FromJob(pos))
	if wr == nil {
		w.Registry.RemoveDesignation(pos)
		return
	}
	if w.activeJobFor(jobs.KindSalvage, wr.WreckID) != nil {
		return
	}
	def := w.cat.Salvage.Defs[wr.Type]
	j := &jobs.Job{
		Kind:     jobs.KindSalvage,
		Pos:      pos,
		TargetID: wr.WreckID,
		Priority: 2,
		Required: def.WorkTicks,
	}
	_ = w.Registry.Insert(j, w.tick)
}

// produceAutoHaul requests a haul for every loose ground stack that has a
// legal destination. Stacks with nowhere to go are retried next tick.
func (w *World) produceAutoHaul() {
	for _, ent := range w.GroundItems() {
		if ent.HaulRequested {
			continue
		}
		if _, ok := w.Store.FindStorageFor(ent.Resource, ent.Count, ent.Pos.Job()); !ok {
			continue
		}
		j := &jobs.Job{
			Kind:     jobs.KindHaul,
			Pos:      ent.Pos.Job(),
			TargetID: ent.EntityID,
			Resource: ent.Resource,
			Amount:   ent.Count,
			Priority: 1,
			Required: 1,
		}
		if w.Registry.Insert(j, w.tick) == nil {
			ent.HaulRequested = true
		}
	}
}

// produceRelocations converts zone filter violations into storage-to-storage
// hauls. The scan already skips reserved stock; the duplicate check here
// covers hauls created on earlier ticks that have not yet pinned their
// source.
func (w *World) produceRelocations() {
	for _, rq := range w.Store.RelocationScan() {
		if w.relocationInFlight(rq.From, rq.Resource, rq.ItemID) {
			continue
		}
		j := &jobs.Job{
			Kind:     jobs.KindHaul,
			Pos:      rq.From,
			Resource: rq.Resource,
			Amount:   rq.Amount,
			ItemID:   rq.ItemID,
			HasDest:  true,
			Dest:     rq.Dest,
			Priority: 1,
			Required: 1,
		}
		_ = w.Registry.Insert(j, w.tick)
	}
}

func (w *World) relocationInFlight(from jobs.Vec3i, resource, itemID string) bool {
	for _, j := range w.Registry.Jobs() {
		if j.Kind != jobs.KindHaul || j.TargetID != "" {
			continue
		}
		if j.Pos == from && j.Resource == resource && j.ItemID == itemID {
			return true
		}
	}
	return false
}

// produceCraftOrders keeps one craft job in flight per open order.
func (w *World) produceCraftOrders() {
	ids := make([]string, 0, len(w.orders))
	for id := range w.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	inFlight := map[string]bool{}
	for jobID, oid := range w.orderJobs {
		if w.Registry.Get(jobID) == nil {
			delete(w.orderJobs, jobID)
			continue
		}
		inFlight[oid] = true
	}

	for _, oid := range ids {
		o := w.orders[oid]
		if o.Remaining <= 0 || inFlight[oid] {
			continue
		}
		rec := w.cat.Recipes.ByID[o.RecipeID]
		j := &jobs.Job{
			Kind:     jobs.KindCraft,
			Pos:      o.Station.Job(),
			RecipeID: o.RecipeID,
			Priority: 2,
			Required: rec.WorkTicks,
		}
		if w.Registry.Insert(j, w.tick) == nil {
			w.orderJobs[j.ID] = oid
		}
	}
}

func (w *World) activeJobFor(kind jobs.Kind, targetID string) *jobs.Job {
	for _, j := range w.Registry.Jobs() {
		if j.Kind == kind && j.TargetID == targetID {
			return j
		}
	}
	return nil
}
