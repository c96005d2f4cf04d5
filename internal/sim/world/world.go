package world

import (
	"fmt"
	"sort"

	"github.com/NeruoDissident/FracturedCity/internal/protocol"
	"github.com/NeruoDissident/FracturedCity/internal/sim/catalogs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/registry"
	"github.com/NeruoDissident/FracturedCity/internal/sim/storage"
	"github.com/NeruoDissident/FracturedCity/internal/sim/tuning"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

// Pathfinder is injected by the host binary; the simulation core never
// hard-codes a search algorithm.
type Pathfinder interface {
	FindPath(from, to model.Vec3i, walkable func(model.Vec3i) bool) ([]model.Vec3i, bool)
}

// Tile is a non-default map tile (structure, depleted node scar, wreck
// footprint). Tiles absent from the map are open walkable ground.
type Tile struct {
	ID       string
	Walkable bool
}

// Wreck is a salvage site occupying one tile until stripped.
type Wreck struct {
	WreckID string
	Type    string
	Pos     model.Vec3i
}

// CraftOrder asks for a recipe to be run Remaining more times at a station.
// One job is kept in flight per order.
type CraftOrder struct {
	OrderID   string
	RecipeID  string
	Station   model.Vec3i
	Remaining int
}

// World is the authoritative simulation: single-threaded, advanced strictly
// one Tick at a time. Everything observable is derived from its state plus
// the event stream it emits.
type World struct {
	cfg tuning.Tuning
	cat *catalogs.Catalogs

	Registry *registry.Registry
	Store    *storage.Store

	pf Pathfinder

	tick uint64

	agents  map[string]*model.Agent
	tiles   map[model.Vec3i]Tile
	nodes   map[string]*model.ResourceNode
	animals map[string]*model.Animal
	ground  map[string]*model.ItemEntity
	wrecks  map[string]*Wreck
	orders  map[string]*CraftOrder

	// orderJobs maps an in-flight craft job to its order for completion
	// bookkeeping.
	orderJobs map[string]string

	nextAgentNum  uint64
	nextEntityNum uint64
	nextNodeNum   uint64
	nextAnimalNum uint64
	nextWreckNum  uint64
	nextOrderNum  uint64

	events []protocol.Event
}

func New(cfg tuning.Tuning, cat *catalogs.Catalogs, pf Pathfinder) *World {
	return &World{
		cfg:       cfg,
		cat:       cat,
		Registry:  registry.New(),
		Store:     storage.New(cat.Resources, cfg.Storage.CellCapacity),
		pf:        pf,
		agents:    map[string]*model.Agent{},
		tiles:     map[model.Vec3i]Tile{},
		nodes:     map[string]*model.ResourceNode{},
		animals:   map[string]*model.Animal{},
		ground:    map[string]*model.ItemEntity{},
		wrecks:    map[string]*Wreck{},
		orders:    map[string]*CraftOrder{},
		orderJobs: map[string]string{},
	}
}

func (w *World) Tick() uint64          { return w.tick }
func (w *World) Tuning() tuning.Tuning { return w.cfg }

// Step advances the simulation one tick. Ordering is fixed: stale claim
// expiry, producers, agents in sorted id order, then ambient entity updates.
// Identical inputs produce identical worlds.
func (w *World) Step() {
	w.tick++

	for _, jobID := range w.Registry.ExpireStale(w.tick, w.cfg.Claims.StaleMaxAgeTicks) {
		w.Store.CancelForJob(jobID)
		if j := w.Registry.Get(jobID); j != nil {
			j.MaterialsReserved = false
			j.Stage = 0
		}
		// The stale claimant, if still alive, has lost the job. A load picked
		// up mid-haul goes back on the ground, same as an abandon; the
		// original pick-up target is gone, so the haul job goes with it.
		for _, ag := range w.agents {
			if ag.CurrentJobID != jobID {
				continue
			}
			if ag.Carry != nil {
				w.dropCarry(ag)
				if j := w.Registry.Get(jobID); j != nil && j.Kind == jobs.KindHaul {
					w.removeJob(j)
				}
			}
			w.resetAgent(ag)
		}
		w.addEvent(protocol.Event{"type": "claim_expired", "tick": w.tick, "job_id": jobID})
	}

	w.runProducers()

	for _, id := range w.agentIDs() {
		w.updateAgent(w.agents[id])
	}

	w.updateNodes()
	w.updateAnimals()
}

func (w *World) agentIDs() []string {
	ids := make([]string, 0, len(w.agents))
	for id := range w.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// --- tiles ---

func (w *World) TileAt(p model.Vec3i) (Tile, bool) {
	t, ok := w.tiles[p]
	return t, ok
}

func (w *World) SetTile(p model.Vec3i, t Tile) { w.tiles[p] = t }

func (w *World) Walkable(p model.Vec3i) bool {
	if t, ok := w.tiles[p]; ok {
		return t.Walkable
	}
	return true
}

// --- population / entities ---

func (w *World) AddAgent(name string, pos model.Vec3i) *model.Agent {
	w.nextAgentNum++
	ag := &model.Agent{ID: fmt.Sprintf("A%d", w.nextAgentNum), Name: name, Pos: pos}
	ag.InitDefaults()
	w.agents[ag.ID] = ag
	return ag
}

func (w *World) Agent(id string) *model.Agent { return w.agents[id] }

func (w *World) Agents() []*model.Agent {
	out := make([]*model.Agent, 0, len(w.agents))
	for _, id := range w.agentIDs() {
		out = append(out, w.agents[id])
	}
	return out
}

func (w *World) SpawnNode(typ string, pos model.Vec3i) (*model.ResourceNode, error) {
	def, ok := w.cat.Nodes.Defs[typ]
	if !ok {
		return nil, fmt.Errorf("unknown node type %s", typ)
	}
	w.nextNodeNum++
	n := &model.ResourceNode{
		NodeID:     fmt.Sprintf("N%d", w.nextNodeNum),
		Type:       typ,
		Pos:        pos,
		CyclesLeft: def.Cycles,
	}
	w.nodes[n.NodeID] = n
	w.tiles[pos] = Tile{ID: typ, Walkable: false}
	return n, nil
}

func (w *World) SpawnAnimal(typ string, pos model.Vec3i) (*model.Animal, error) {
	def, ok := w.cat.Animals.Defs[typ]
	if !ok {
		return nil, fmt.Errorf("unknown animal type %s", typ)
	}
	w.nextAnimalNum++
	a := &model.Animal{
		AnimalID: fmt.Sprintf("AN%d", w.nextAnimalNum),
		Type:     typ,
		Pos:      pos,
		HP:       def.HP,
	}
	w.animals[a.AnimalID] = a
	return a, nil
}

func (w *World) PlaceWreck(typ string, pos model.Vec3i) (*Wreck, error) {
	if _, ok := w.cat.Salvage.Defs[typ]; !ok {
		return nil, fmt.Errorf("unknown salvage type %s", typ)
	}
	w.nextWreckNum++
	wr := &Wreck{WreckID: fmt.Sprintf("W%d", w.nextWreckNum), Type: typ, Pos: pos}
	w.wrecks[wr.WreckID] = wr
	w.tiles[pos] = Tile{ID: typ, Walkable: false}
	return wr, nil
}

func (w *World) spawnGroundItem(p jobs.Vec3i, resource string, count int) *model.ItemEntity {
	if count <= 0 {
		return nil
	}
	w.nextEntityNum++
	e := &model.ItemEntity{
		EntityID:    fmt.Sprintf("E%d", w.nextEntityNum),
		Pos:         model.FromJob(p),
		Resource:    resource,
		Count:       count,
		CreatedTick: w.tick,
	}
	w.ground[e.EntityID] = e
	return e
}

func (w *World) GroundItems() []*model.ItemEntity {
	ids := make([]string, 0, len(w.ground))
	for id := range w.ground {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*model.ItemEntity, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.ground[id])
	}
	return out
}

func (w *World) Animals() []*model.Animal {
	ids := make([]string, 0, len(w.animals))
	for id := range w.animals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*model.Animal, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.animals[id])
	}
	return out
}

func (w *World) Nodes() []*model.ResourceNode {
	ids := make([]string, 0, len(w.nodes))
	for id := range w.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*model.ResourceNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.nodes[id])
	}
	return out
}

// --- player-facing orders ---

// PlaceBlueprint queues a construction at pos. The site is designated so a
// second placement on the same tile is rejected while the first stands.
func (w *World) PlaceBlueprint(blueprintID string, pos model.Vec3i) (*jobs.Job, error) {
	bp, ok := w.cat.Blueprints.ByID[blueprintID]
	if !ok {
		return nil, fmt.Errorf("%s: unknown blueprint %s", protocol.ErrBadRequest, blueprintID)
	}
	if t, occupied := w.tiles[pos]; occupied {
		return nil, fmt.Errorf("%s: tile %v occupied by %s", protocol.ErrInvalidTarget, pos, t.ID)
	}
	if !w.Registry.AddDesignation(pos.Job(), "BUILD:"+blueprintID, jobs.CategoryConstruction) {
		return nil, fmt.Errorf("%s: tile %v already designated", protocol.ErrConflict, pos)
	}
	j := &jobs.Job{
		Kind:        jobs.KindBuild,
		Pos:         pos.Job(),
		Priority:    3,
		Required:    bp.WorkTicks,
		BlueprintID: blueprintID,
	}
	if err := w.Registry.Insert(j, w.tick); err != nil {
		w.Registry.RemoveDesignation(pos.Job())
		return nil, err
	}
	return j, nil
}

// DesignateHarvest marks a node tile for repeated harvesting. The producer
// keeps one job alive per designation until the node is gone or the player
// removes the designation.
func (w *World) DesignateHarvest(pos model.Vec3i) error {
	n := w.nodeAt(pos)
	if n == nil {
		return fmt.Errorf("%s: no node at %v", protocol.ErrInvalidTarget, pos)
	}
	if !w.Registry.AddDesignation(pos.Job(), "HARVEST", jobs.CategoryHarvest) {
		return fmt.Errorf("%s: %v already designated", protocol.ErrConflict, pos)
	}
	return nil
}

// DesignateSalvage marks a wreck for stripping.
func (w *World) DesignateSalvage(pos model.Vec3i) error {
	if w.wreckAt(pos) == nil {
		return fmt.Errorf("%s: no wreck at %v", protocol.ErrInvalidTarget, pos)
	}
	if !w.Registry.AddDesignation(pos.Job(), "SALVAGE", jobs.CategorySalvage) {
		return fmt.Errorf("%s: %v already designated", protocol.ErrConflict, pos)
	}
	return nil
}

// CancelDesignation removes the designation at pos and cancels any
// designation-produced job still anchored there, so demolishing a blueprint
// or un-marking a node mid-work releases the in-flight claim and its holds.
func (w *World) CancelDesignation(pos model.Vec3i) bool {
	ok := w.Registry.RemoveDesignation(pos.Job())
	for _, j := range w.Registry.Jobs() {
		if j.Pos != pos.Job() {
			continue
		}
		switch j.Kind {
		case jobs.KindBuild, jobs.KindHarvest, jobs.KindSalvage:
			_ = w.CancelJob(j.ID)
		}
	}
	return ok
}

// CancelJob withdraws a job by operator action. A claimed job is torn down
// through the engine-failure path so the worker drops any carried load and
// every reservation held under the job id is released.
func (w *World) CancelJob(jobID string) error {
	j := w.Registry.Get(jobID)
	if j == nil {
		return fmt.Errorf("%s: no job %s", protocol.ErrInvalidTarget, jobID)
	}
	if ag := w.agents[j.Claimant]; j.Claimant != "" && ag != nil && ag.CurrentJobID == j.ID {
		w.failJob(ag, j, protocol.ErrCancelled)
	} else {
		w.Store.CancelForJob(j.ID)
		w.removeJob(j)
		w.addEvent(protocol.Event{"type": "job_cancelled", "tick": w.tick, "job_id": j.ID})
	}
	if j.Kind == jobs.KindBuild {
		w.Registry.RemoveDesignation(j.Pos)
	}
	return nil
}

// OrderHunt queues a hunt against one animal.
func (w *World) OrderHunt(animalID string) (*jobs.Job, error) {
	a, ok := w.animals[animalID]
	if !ok || a.Dead {
		return nil, fmt.Errorf("%s: no huntable animal %s", protocol.ErrInvalidTarget, animalID)
	}
	for _, j := range w.Registry.Jobs() {
		if j.Kind == jobs.KindHunt && j.TargetID == animalID {
			return nil, fmt.Errorf("%s: %s already hunted", protocol.ErrConflict, animalID)
		}
	}
	j := &jobs.Job{
		Kind:     jobs.KindHunt,
		Pos:      a.Pos.Job(),
		TargetID: animalID,
		Priority: 2,
		Required: 1,
	}
	if err := w.Registry.Insert(j, w.tick); err != nil {
		return nil, err
	}
	return j, nil
}

// OrderCraft queues count runs of a recipe at a station tile.
func (w *World) OrderCraft(recipeID string, station model.Vec3i, count int) (*CraftOrder, error) {
	rec, ok := w.cat.Recipes.ByID[recipeID]
	if !ok {
		return nil, fmt.Errorf("%s: unknown recipe %s", protocol.ErrBadRequest, recipeID)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%s: count must be positive", protocol.ErrBadRequest)
	}
	if t, ok := w.tiles[station]; !ok || t.ID != rec.Station {
		return nil, fmt.Errorf("%s: no %s at %v", protocol.ErrInvalidTarget, rec.Station, station)
	}
	w.nextOrderNum++
	o := &CraftOrder{
		OrderID:   fmt.Sprintf("O%d", w.nextOrderNum),
		RecipeID:  recipeID,
		Station:   station,
		Remaining: count,
	}
	w.orders[o.OrderID] = o
	return o, nil
}

// OrderEquip queues a pick-up of a specific stored item instance.
func (w *World) OrderEquip(instanceID string) (*jobs.Job, error) {
	pos, _, ok := w.Store.FindItem(instanceID)
	if !ok {
		return nil, fmt.Errorf("%s: item %s not in storage", protocol.ErrInvalidTarget, instanceID)
	}
	j := &jobs.Job{
		Kind:     jobs.KindEquip,
		Pos:      pos,
		ItemID:   instanceID,
		Priority: 2,
		Required: 1,
	}
	if err := w.Registry.Insert(j, w.tick); err != nil {
		return nil, err
	}
	return j, nil
}

func (w *World) nodeAt(pos model.Vec3i) *model.ResourceNode {
	for _, n := range w.nodes {
		if n.Pos == pos {
			return n
		}
	}
	return nil
}

func (w *World) wreckAt(pos model.Vec3i) *Wreck {
	for _, wr := range w.wrecks {
		if wr.Pos == pos {
			return wr
		}
	}
	return nil
}

// --- ambient entity updates ---

func (w *World) updateNodes() {
	for _, n := range w.Nodes() {
		if n.Dormant && w.tick >= n.RegrowAtTick {
			def := w.cat.Nodes.Defs[n.Type]
			n.Dormant = false
			n.CyclesLeft = def.Cycles
			w.addEvent(protocol.Event{"type": "node_regrown", "tick": w.tick, "node": n.NodeID})
		}
	}
}

const (
	animalWanderEvery = 8
	animalFleeEvery   = 2
)

func (w *World) updateAnimals() {
	for _, a := range w.Animals() {
		if a.Dead {
			continue
		}
		if a.Fleeing {
			if w.tick%animalFleeEvery == 0 {
				w.fleeStep(a)
			}
			continue
		}
		if w.tick%animalWanderEvery == 0 {
			w.wanderStep(a)
		}
	}
}

var wanderDirs = [4]model.Vec3i{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}

// wanderStep moves an animal one deterministic pseudo-random step.
func (w *World) wanderStep(a *model.Animal) {
	h := uint64(14695981039346656037)
	for _, b := range []byte(a.AnimalID) {
		h = (h ^ uint64(b)) * 1099511628211
	}
	h ^= w.tick
	d := wanderDirs[h%4]
	next := model.Vec3i{X: a.Pos.X + d.X, Y: a.Pos.Y + d.Y, Z: a.Pos.Z}
	if w.Walkable(next) {
		a.Pos = next
	}
}

// fleeStep runs directly away from the nearest living agent.
func (w *World) fleeStep(a *model.Animal) {
	var nearest *model.Agent
	best := -1
	for _, id := range w.agentIDs() {
		ag := w.agents[id]
		if ag.Dead {
			continue
		}
		d := model.Manhattan(ag.Pos, a.Pos)
		if best < 0 || d < best {
			nearest, best = ag, d
		}
	}
	if nearest == nil {
		return
	}
	step := model.Vec3i{Z: a.Pos.Z}
	dx, dy := a.Pos.X-nearest.Pos.X, a.Pos.Y-nearest.Pos.Y
	if abs(dx) >= abs(dy) {
		step.X = a.Pos.X + sign(dx)
		step.Y = a.Pos.Y
	} else {
		step.X = a.Pos.X
		step.Y = a.Pos.Y + sign(dy)
	}
	if w.Walkable(step) {
		a.Pos = step
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 1
	}
}

// --- events / stats ---

func (w *World) addEvent(e protocol.Event) {
	w.events = append(w.events, e)
}

// TakeEvents drains the tick's event buffer: world events first, then each
// agent's, in sorted agent order.
func (w *World) TakeEvents() []protocol.Event {
	out := w.events
	w.events = nil
	for _, id := range w.agentIDs() {
		out = append(out, w.agents[id].TakeEvents()...)
	}
	return out
}

func (w *World) JobStats() protocol.JobStats { return w.Registry.Stats(w.tick) }

func (w *World) BlockedJobs() []protocol.JobBrief { return w.Registry.BlockedJobs(w.tick) }
