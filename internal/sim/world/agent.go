package world

import (
	"github.com/NeruoDissident/FracturedCity/internal/protocol"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/registry"
	"github.com/NeruoDissident/FracturedCity/internal/sim/storage"
	moveruntime "github.com/NeruoDissident/FracturedCity/internal/sim/world/feature/movement/runtime"
	workruntime "github.com/NeruoDissident/FracturedCity/internal/sim/world/feature/work/runtime"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

const eatDurationTicks = 6

// errandID is the reservation owner key for an agent's personal food run;
// it never collides with job ids.
func errandID(agentID string) string { return "EAT:" + agentID }

func (w *World) updateAgent(ag *model.Agent) {
	if ag.Dead {
		return
	}
	w.applyHunger(ag)
	if ag.Dead {
		return
	}
	if ag.Errand != nil {
		w.tickErrand(ag)
		return
	}

	switch ag.State {
	case model.StateMoving:
		w.tickMoving(ag)
	case model.StateExecuting:
		w.tickExecuting(ag)
	default:
		// Idle, Evaluating and the transitional states all funnel back
		// into claim evaluation.
		w.tickClaim(ag)
	}
}

// --- hunger ---

func (w *World) applyHunger(ag *model.Agent) {
	ag.HungerMilli += w.cfg.Agents.HungerPerTickMilli
	maxMilli := w.cfg.Agents.HungerMax * 1000

	if ag.HungerMilli >= maxMilli {
		ag.HungerMilli = maxMilli
		ag.HP -= w.cfg.Agents.StarveDamage
		if ag.HP <= 0 {
			w.killAgent(ag, "starvation")
			return
		}
	}

	if ag.Errand == nil && ag.HungerMilli >= w.cfg.Agents.HungerPreemptAt*1000 {
		w.startFoodErrand(ag)
	}
}

// startFoodErrand reserves any edible stock and walks the agent to it,
// preempting the current job. No food anywhere means the agent keeps working
// while starvation closes in.
func (w *World) startFoodErrand(ag *model.Agent) {
	rs, err := w.Store.FindAndReserve(errandID(ag.ID), storage.Request{Tags: []string{"food"}, Amount: 1}, ag.Pos.Job())
	if err != nil {
		return
	}
	r := rs[0]

	if j := w.Registry.Get(ag.CurrentJobID); j != nil {
		w.releaseJob(ag, j, "", 0)
		ag.State = model.StatePreempted
	}
	ag.Errand = &model.FoodErrand{
		ReservationID: r.ID,
		Target:        model.FromJob(r.Cell),
		Resource:      r.Resource,
		EatTicksLeft:  -1,
	}
	ag.AddEvent(protocol.Event{
		"type": "food_errand", "tick": w.tick, "agent_id": ag.ID, "resource": r.Resource,
	})
}

func (w *World) tickErrand(ag *model.Agent) {
	er := ag.Errand

	if er.EatTicksLeft < 0 {
		out := moveruntime.TickMove(moveEnv{w}, ag, er.Target, w.moveOptions(false))
		switch out {
		case moveruntime.Moving:
			return
		case moveruntime.Unreachable:
			w.Store.CancelForJob(errandID(ag.ID))
			ag.Errand = nil
			ag.State = model.StateIdle
			return
		}
		// Arrived: withdraw the food and start eating.
		if err := w.Store.Commit(er.ReservationID); err != nil {
			// The cell was emptied under the hold; should not happen, but
			// recover by retrying next tick.
			w.Store.CancelForJob(errandID(ag.ID))
			ag.Errand = nil
			ag.State = model.StateIdle
			return
		}
		er.EatTicksLeft = eatDurationTicks
		return
	}

	er.EatTicksLeft--
	if er.EatTicksLeft > 0 {
		return
	}
	def := w.cat.Resources.Defs[er.Resource]
	ag.HungerMilli -= def.NutritionHunger * 1000
	if ag.HungerMilli < 0 {
		ag.HungerMilli = 0
	}
	ag.AddEvent(protocol.Event{
		"type": "ate", "tick": w.tick, "agent_id": ag.ID, "resource": er.Resource,
	})
	ag.Errand = nil
	ag.State = model.StateIdle
}

func (w *World) killAgent(ag *model.Agent, cause string) {
	ag.Dead = true
	ag.HP = 0
	if ag.Carry != nil {
		w.dropCarry(ag)
	}
	w.Store.CancelForJob(errandID(ag.ID))
	ag.Errand = nil
	// The job claim is deliberately NOT released here: stale-claim expiry is
	// the single recovery path for dead claimants, so a crashed or killed
	// worker exercises the same machinery either way.
	w.addEvent(protocol.Event{
		"type": "agent_died", "tick": w.tick, "agent_id": ag.ID, "cause": cause,
	})
}

// --- claim / move / execute ---

func (w *World) tickClaim(ag *model.Agent) {
	ag.State = model.StateEvaluating
	q := registry.ClaimQuery{AgentID: ag.ID, Pos: ag.Pos.Job(), Enabled: ag.EnabledKinds}
	j := w.Registry.SelectAndClaim(q, w.tick, w.cfg.Claims, w.cfg.Scoring, w.traits(), w.materials())
	if j == nil {
		ag.State = model.StateIdle
		return
	}
	ag.CurrentJobID = j.ID
	ag.Dest, ag.HasDest = w.jobDest(j), true
	ag.WaitTicks = 0
	ag.State = model.StateMoving
	ag.AddEvent(protocol.Event{
		"type": "job_claimed", "tick": w.tick, "agent_id": ag.ID, "job_id": j.ID, "kind": string(j.Kind),
	})
}

func (w *World) jobDest(j *jobs.Job) model.Vec3i {
	if j.Kind == jobs.KindHunt {
		if a, ok := w.animals[j.TargetID]; ok {
			return a.Pos
		}
	}
	return model.FromJob(j.Pos)
}

// arriveAdjacent is true for kinds whose anchor tile cannot be stood on.
func arriveAdjacent(j *jobs.Job) bool {
	switch j.Kind {
	case jobs.KindEquip:
		return false
	default:
		return true
	}
}

func (w *World) moveOptions(adjacent bool) moveruntime.Options {
	return moveruntime.Options{
		MoveEveryTicks: w.cfg.Agents.MoveEveryTicks,
		RerouteAfter:   w.cfg.Agents.StuckRerouteAfter,
		ArriveAdjacent: adjacent,
	}
}

func (w *World) tickMoving(ag *model.Agent) {
	j := w.Registry.Get(ag.CurrentJobID)
	if j == nil || j.Claimant != ag.ID {
		w.resetAgent(ag)
		return
	}
	// A hunt target keeps moving; chase the live position.
	if j.Kind == jobs.KindHunt {
		if a, ok := w.animals[j.TargetID]; ok && !a.Dead {
			ag.Dest = a.Pos
		}
	}

	switch moveruntime.TickMove(moveEnv{w}, ag, ag.Dest, w.moveOptions(arriveAdjacent(j))) {
	case moveruntime.Moving:
		// Travel counts as progress; staleness only fires on claimants that
		// stop ticking entirely (dead or wedged). A blocked route resolves
		// through the reroute path and Unreachable, not through expiry.
		w.Registry.NoteProgress(j.ID, w.tick)
	case moveruntime.Arrived:
		w.Registry.NoteProgress(j.ID, w.tick)
		ag.State = model.StateExecuting
		ag.WaitTicks = 0
	case moveruntime.Unreachable:
		w.abandonJob(ag, j, protocol.ErrUnreachable, w.cfg.Claims.UnreachableCooldownTicks)
	}
}

func (w *World) tickExecuting(ag *model.Agent) {
	j := w.Registry.Get(ag.CurrentJobID)
	if j == nil || j.Claimant != ag.ID {
		w.resetAgent(ag)
		return
	}

	env := w.engineEnv()
	var r workruntime.Result
	switch j.Kind {
	case jobs.KindBuild:
		r = workruntime.TickBuild(env, w.tick, ag, j)
	case jobs.KindCraft:
		r = workruntime.TickCraft(env, w.tick, ag, j)
	case jobs.KindHaul:
		r = workruntime.TickHaul(env, w.tick, ag, j)
	case jobs.KindHarvest:
		r = workruntime.TickHarvest(env, w.tick, ag, j)
	case jobs.KindSalvage:
		r = workruntime.TickSalvage(env, w.tick, ag, j)
	case jobs.KindHunt:
		r = workruntime.TickHunt(env, w.tick, ag, j)
	case jobs.KindEquip:
		r = workruntime.TickEquip(env, w.tick, ag, j)
	default:
		w.failJob(ag, j, protocol.ErrInternal)
		return
	}

	switch r.Kind {
	case workruntime.Continuing:
		w.Registry.NoteProgress(j.ID, w.tick)
		ag.WaitTicks = 0
		if r.MoveTo != nil {
			ag.Dest, ag.HasDest = model.FromJob(*r.MoveTo), true
			ag.State = model.StateMoving
		}
	case workruntime.Completed:
		w.completeJob(ag, j)
	case workruntime.Blocked:
		w.Registry.NoteBlocked(j.ID, r.Code, w.tick)
		// Full storage is backpressure, not failure: the job holds at the
		// completion boundary until space appears, visible via BlockedJobs.
		// Only missing materials gets the bounded retry.
		if r.Code == protocol.ErrNoStorage {
			return
		}
		ag.WaitTicks++
		if ag.WaitTicks > w.cfg.Claims.MissingMaterialsWaitTicks {
			w.abandonJob(ag, j, r.Code, w.cfg.Claims.UnreachableCooldownTicks)
		}
	case workruntime.Failed:
		w.failJob(ag, j, r.Code)
	}
}

// --- job lifecycle ---

func (w *World) completeJob(ag *model.Agent, j *jobs.Job) {
	if oid, ok := w.orderJobs[j.ID]; ok {
		delete(w.orderJobs, j.ID)
		if o := w.orders[oid]; o != nil {
			o.Remaining--
			if o.Remaining <= 0 {
				delete(w.orders, oid)
			}
		}
	}
	w.Store.CancelForJob(j.ID)
	w.Registry.NoteCompleted()
	w.Registry.Remove(j.ID)
	w.resetAgent(ag)
	ag.State = model.StateCompleting
}

// abandonJob returns a job to the pool (or deletes it when requeue makes no
// sense) and idles the agent. A cooldown keeps the same hopeless job from
// being re-claimed instantly.
func (w *World) abandonJob(ag *model.Agent, j *jobs.Job, code string, cooldown uint64) {
	w.releaseJob(ag, j, code, cooldown)
	ag.State = model.StateAbandoning
	ag.AddEvent(protocol.Event{
		"type": "job_abandoned", "tick": w.tick, "agent_id": ag.ID, "job_id": j.ID, "code": code,
	})
}

func (w *World) releaseJob(ag *model.Agent, j *jobs.Job, code string, cooldown uint64) {
	w.Store.CancelForJob(j.ID)
	j.MaterialsReserved = false
	j.Stage = 0

	carried := ag.Carry != nil
	if carried {
		w.dropCarry(ag)
	}

	switch {
	case carried && j.Kind == jobs.KindHaul:
		// The load is already on the ground as a fresh entity; the original
		// pick-up target no longer exists, so the job is worthless.
		w.removeJob(j)
	case !j.RequeueOnAbandon():
		w.removeJob(j)
	default:
		w.Registry.Release(j.ID, w.tick+cooldown)
	}
	w.resetAgent(ag)
}

func (w *World) failJob(ag *model.Agent, j *jobs.Job, code string) {
	w.Store.CancelForJob(j.ID)
	if ag.Carry != nil {
		w.dropCarry(ag)
	}
	w.removeJob(j)
	w.resetAgent(ag)
	ag.State = model.StateAbandoning
	ag.AddEvent(protocol.Event{
		"type": "job_failed", "tick": w.tick, "agent_id": ag.ID, "job_id": j.ID, "code": code,
	})
}

func (w *World) removeJob(j *jobs.Job) {
	delete(w.orderJobs, j.ID)
	w.Registry.NoteAbandoned()
	w.Registry.Remove(j.ID)
}

// dropCarry spills a carried load onto the ground at the agent's feet, where
// the auto-haul scan will find it again.
func (w *World) dropCarry(ag *model.Agent) {
	c := ag.Carry
	ag.Carry = nil
	ent := w.spawnGroundItem(ag.Pos.Job(), c.Resource, c.Amount)
	if ent != nil && c.ItemID != "" {
		ent.InstanceID = c.ItemID
	}
}

func (w *World) resetAgent(ag *model.Agent) {
	ag.CurrentJobID = ""
	ag.HasDest = false
	ag.WaitTicks = 0
	moveruntime.ResetMovement(ag)
	ag.State = model.StateIdle
}
