package runtime

import (
	"github.com/NeruoDissident/FracturedCity/internal/protocol"
	"github.com/NeruoDissident/FracturedCity/internal/sim/catalogs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/storage"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

type CraftEnv interface {
	StorageEnv
	Recipe(id string) (catalogs.RecipeDef, bool)
	Resource(id string) (catalogs.ResourceDef, bool)
	StationAt(p jobs.Vec3i) string
	SpawnGroundItem(p jobs.Vec3i, resource string, count int)
}

// TickCraft advances a crafting job. Inputs are reserved all-or-nothing on
// first entry; at completion every output destination is checked BEFORE the
// input holds are committed, so a full stockpile stalls the job (holds kept)
// instead of destroying the ingredients.
func TickCraft(env CraftEnv, now uint64, ag *model.Agent, j *jobs.Job) Result {
	rec, ok := env.Recipe(j.RecipeID)
	if !ok {
		return failed(protocol.ErrBadRequest)
	}
	if env.StationAt(j.Pos) != rec.Station {
		// Station demolished or overbuilt since the order was placed.
		return failed(protocol.ErrInvalidTarget)
	}

	if !j.MaterialsReserved {
		reqs := make([]storage.Request, 0, len(rec.Inputs))
		for _, in := range rec.Inputs {
			reqs = append(reqs, storage.Request{Resource: in.Resource, Tags: in.Tags, Amount: in.Count})
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
	j.Progress = j.Required

	// Feasibility pass for all outputs before anything is consumed.
	for _, out := range rec.Outputs {
		if _, ok := env.FindStorageFor(out.Resource, out.Count, j.Pos); !ok {
			return blocked(protocol.ErrNoStorage)
		}
	}

	commitAll(env, j.ID)
	j.MaterialsReserved = false

	for _, out := range rec.Outputs {
		placeOutput(env, j.Pos, out)
	}
	ag.AddEvent(protocol.Event{
		"type":     "craft_finished",
		"tick":     now,
		"agent_id": ag.ID,
		"job_id":   j.ID,
		"recipe":   rec.RecipeID,
	})
	return completed()
}

// placeOutput stores one output stack, falling back to a ground spill at the
// station when storage filled up between the feasibility pass and now.
// Discrete resources become individual item instances.
func placeOutput(env CraftEnv, at jobs.Vec3i, out catalogs.ItemCount) {
	def, _ := env.Resource(out.Resource)
	if def.Discrete {
		for i := 0; i < out.Count; i++ {
			dest, ok := env.FindStorageFor(out.Resource, 1, at)
			if !ok {
				env.SpawnGroundItem(at, out.Resource, 1)
				continue
			}
			if _, err := env.PutItem(dest, out.Resource); err != nil {
				env.SpawnGroundItem(at, out.Resource, 1)
			}
		}
		return
	}
	dest, ok := env.FindStorageFor(out.Resource, out.Count, at)
	if ok && env.Put(dest, out.Resource, out.Count) == nil {
		return
	}
	env.SpawnGroundItem(at, out.Resource, out.Count)
}
