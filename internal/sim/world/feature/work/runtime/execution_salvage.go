package runtime

import (
	"github.com/NeruoDissident/FracturedCity/internal/protocol"
	"github.com/NeruoDissident/FracturedCity/internal/sim/catalogs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

type SalvageEnv interface {
	// SalvageTarget resolves a wreck entity to its catalog type.
	SalvageTarget(id string) (typ string, pos jobs.Vec3i, ok bool)
	SalvageDef(typ string) (catalogs.SalvageDef, bool)
	RemoveSalvage(id string)
	SpawnGroundItem(p jobs.Vec3i, resource string, count int)
}

// TickSalvage strips a ruin or wreck in one pass, scattering every output on
// the ground at the wreck's tile. Unlike nodes, a wreck has no cycles; the
// whole yield lands at once and the feature is gone.
func TickSalvage(env SalvageEnv, now uint64, ag *model.Agent, j *jobs.Job) Result {
	typ, pos, ok := env.SalvageTarget(j.TargetID)
	if !ok {
		return failed(protocol.ErrInvalidTarget)
	}
	def, ok := env.SalvageDef(typ)
	if !ok {
		return failed(protocol.ErrInternal)
	}

	j.Progress += ag.WorkIncrement()
	if j.Progress < j.Required {
		return continuing()
	}

	for _, out := range def.Outputs {
		env.SpawnGroundItem(pos, out.Resource, out.Count)
	}
	env.RemoveSalvage(j.TargetID)
	ag.AddEvent(protocol.Event{
		"type":     "salvage_stripped",
		"tick":     now,
		"agent_id": ag.ID,
		"job_id":   j.ID,
		"target":   j.TargetID,
		"kind":     typ,
	})
	return completed()
}
