package world

import (
	"github.com/NeruoDissident/FracturedCity/internal/sim/catalogs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/storage"
	moveruntime "github.com/NeruoDissident/FracturedCity/internal/sim/world/feature/movement/runtime"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

const weaponDamageBonus = 3

// engineEnv adapts the world to the per-kind execution environments. The
// storage surface comes straight from the embedded store; everything else is
// a thin view over world state.
type engineEnv struct {
	*storage.Store
	w *World
}

func (w *World) engineEnv() *engineEnv { return &engineEnv{Store: w.Store, w: w} }

// build

func (e *engineEnv) Blueprint(id string) (catalogs.BlueprintDef, bool) {
	def, ok := e.w.cat.Blueprints.ByID[id]
	return def, ok
}

func (e *engineEnv) PlaceStructure(p jobs.Vec3i, def catalogs.BlueprintDef) {
	pos := model.FromJob(p)
	e.w.tiles[pos] = Tile{ID: def.FinishedTile, Walkable: def.Walkable}
	e.w.Registry.RemoveDesignation(p)
}

// craft

func (e *engineEnv) Recipe(id string) (catalogs.RecipeDef, bool) {
	def, ok := e.w.cat.Recipes.ByID[id]
	return def, ok
}

func (e *engineEnv) Resource(id string) (catalogs.ResourceDef, bool) {
	def, ok := e.w.cat.Resources.Defs[id]
	return def, ok
}

func (e *engineEnv) StationAt(p jobs.Vec3i) string {
	t, ok := e.w.tiles[model.FromJob(p)]
	if !ok {
		return ""
	}
	return t.ID
}

func (e *engineEnv) SpawnGroundItem(p jobs.Vec3i, resource string, count int) {
	e.w.spawnGroundItem(p, resource, count)
}

// haul

func (e *engineEnv) TakeGroundItem(entityID string) (string, int, string, bool) {
	ent, ok := e.w.ground[entityID]
	if !ok {
		return "", 0, "", false
	}
	delete(e.w.ground, entityID)
	return ent.Resource, ent.Count, ent.InstanceID, true
}

// harvest

func (e *engineEnv) NodeByID(id string) (*model.ResourceNode, bool) {
	n, ok := e.w.nodes[id]
	return n, ok
}

func (e *engineEnv) NodeDef(typ string) (catalogs.NodeDef, bool) {
	def, ok := e.w.cat.Nodes.Defs[typ]
	return def, ok
}

func (e *engineEnv) DepleteNode(n *model.ResourceNode) {
	def := e.w.cat.Nodes.Defs[n.Type]
	if def.Replenishable {
		n.Dormant = true
		n.RegrowAtTick = e.w.tick + def.RegrowTicks
		return
	}
	delete(e.w.nodes, n.NodeID)
	e.w.tiles[n.Pos] = Tile{ID: def.DepletedTile, Walkable: true}
	e.w.Registry.RemoveDesignation(n.Pos.Job())
}

// salvage

func (e *engineEnv) SalvageTarget(id string) (string, jobs.Vec3i, bool) {
	wr, ok := e.w.wrecks[id]
	if !ok {
		return "", jobs.Vec3i{}, false
	}
	return wr.Type, wr.Pos.Job(), true
}

func (e *engineEnv) SalvageDef(typ string) (catalogs.SalvageDef, bool) {
	def, ok := e.w.cat.Salvage.Defs[typ]
	return def, ok
}

func (e *engineEnv) RemoveSalvage(id string) {
	wr, ok := e.w.wrecks[id]
	if !ok {
		return
	}
	delete(e.w.wrecks, id)
	delete(e.w.tiles, wr.Pos)
	e.w.Registry.RemoveDesignation(wr.Pos.Job())
}

// hunt

func (e *engineEnv) Animal(id string) (*model.Animal, bool) {
	a, ok := e.w.animals[id]
	return a, ok
}

func (e *engineEnv) AnimalDef(typ string) (catalogs.AnimalDef, bool) {
	def, ok := e.w.cat.Animals.Defs[typ]
	return def, ok
}

func (e *engineEnv) WeaponBonus(resource string) int {
	def, ok := e.w.cat.Resources.Defs[resource]
	if ok && def.HasTag("weapon") {
		return weaponDamageBonus
	}
	return 0
}

func (e *engineEnv) SpawnCorpse(p jobs.Vec3i, resource string, count int) {
	e.w.spawnGroundItem(p, resource, count)
}

// equip

func (e *engineEnv) DropItemInstance(p jobs.Vec3i, instanceID, resource string) {
	ent := e.w.spawnGroundItem(p, resource, 1)
	if ent != nil {
		ent.InstanceID = instanceID
	}
}

// moveEnv adapts the world for the movement runtime.
type moveEnv struct{ w *World }

func (m moveEnv) Walkable(p model.Vec3i) bool { return m.w.Walkable(p) }

func (m moveEnv) Path(from, to model.Vec3i) ([]model.Vec3i, bool) {
	if m.w.pf == nil {
		return nil, false
	}
	return m.w.pf.FindPath(from, to, m.w.Walkable)
}

var _ moveruntime.Env = moveEnv{}
