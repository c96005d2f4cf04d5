package runtime

import (
	"github.com/NeruoDissident/FracturedCity/internal/protocol"
	"github.com/NeruoDissident/FracturedCity/internal/sim/catalogs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

type HarvestEnv interface {
	NodeByID(id string) (*model.ResourceNode, bool)
	NodeDef(typ string) (catalogs.NodeDef, bool)
	// DepleteNode runs when the last cycle is taken: replenishable nodes go
	// dormant with a regrow deadline, finite ones convert to their depleted
	// tile and disappear.
	DepleteNode(n *model.ResourceNode)
	SpawnGroundItem(p jobs.Vec3i, resource string, count int)
}

// TickHarvest works one extraction cycle of a resource node. The yield is
// spawned as a ground stack for the auto-haul scan; the producer re-issues a
// job per remaining cycle while the tile's designation stands.
func TickHarvest(env HarvestEnv, now uint64, ag *model.Agent, j *jobs.Job) Result {
	n, ok := env.NodeByID(j.TargetID)
	if !ok || n.Dormant || n.CyclesLeft <= 0 {
		return failed(protocol.ErrInvalidTarget)
	}
	def, ok := env.NodeDef(n.Type)
	if !ok {
		return failed(protocol.ErrInternal)
	}

	j.Progress += ag.WorkIncrement()
	if j.Progress < j.Required {
		return continuing()
	}

	n.CyclesLeft--
	env.SpawnGroundItem(n.Pos.Job(), def.Resource, def.YieldPerCycle)
	if n.CyclesLeft <= 0 {
		env.DepleteNode(n)
	}
	ag.AddEvent(protocol.Event{
		"type":     "harvest_cycle",
		"tick":     now,
		"agent_id": ag.ID,
		"job_id":   j.ID,
		"node":     n.NodeID,
		"resource": def.Resource,
		"amount":   def.YieldPerCycle,
	})
	return completed()
}
