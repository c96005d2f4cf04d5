package runtime

import (
	"github.com/NeruoDissident/FracturedCity/internal/protocol"
	"github.com/NeruoDissident/FracturedCity/internal/sim/catalogs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/storage"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

type BuildEnv interface {
	StorageEnv
	Blueprint(id string) (catalogs.BlueprintDef, bool)
	PlaceStructure(p jobs.Vec3i, def catalogs.BlueprintDef)
}

// TickBuild advances a construction job by one executing tick. Materials are
// reserved all-or-nothing on first entry and only withdrawn from storage at
// the moment the structure is placed; an abandonment in between releases the
// holds without any loss.
func TickBuild(env BuildEnv, now uint64, ag *model.Agent, j *jobs.Job) Result {
	bp, ok := env.Blueprint(j.BlueprintID)
	if !ok {
		return failed(protocol.ErrInvalidTarget)
	}

	if !j.MaterialsReserved {
		reqs := make([]storage.Request, 0, len(bp.Cost))
		for _, c := range bp.Cost {
			reqs = append(reqs, storage.Request{Resource: c.Resource, Amount: c.Count})
		}
		if !reserveAll(env, j.ID, reqs, j.Pos) {
			return blocked(protocol.ErrNoResource)
		}
		j.MaterialsReserved = true
	}

	j.Progress += ag.WorkIncrement()
	if j.Progress < j.Required {
		return continuing()
	}

	commitAll(env, j.ID)
	j.MaterialsReserved = false
	env.PlaceStructure(j.Pos, bp)
	ag.AddEvent(protocol.Event{
		"type":      "structure_built",
		"tick":      now,
		"agent_id":  ag.ID,
		"job_id":    j.ID,
		"blueprint": bp.ID,
		"pos":       [3]int{j.Pos.X, j.Pos.Y, j.Pos.Z},
	})
	return completed()
}
