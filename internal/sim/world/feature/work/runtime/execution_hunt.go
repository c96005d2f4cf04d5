package runtime

import (
	"github.com/NeruoDissident/FracturedCity/internal/protocol"
	"github.com/NeruoDissident/FracturedCity/internal/sim/catalogs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

const huntBaseDamage = 2

type HuntEnv interface {
	Animal(id string) (*model.Animal, bool)
	AnimalDef(typ string) (catalogs.AnimalDef, bool)
	// WeaponBonus is the extra damage granted by an equipped item; zero for
	// bare hands or non-weapon items.
	WeaponBonus(resource string) int
	// SpawnCorpse drops the kill as a discrete ground item that flows
	// through the ordinary auto-haul pipeline.
	SpawnCorpse(p jobs.Vec3i, resource string, count int)
}

// TickHunt chases and fights one animal. The target moves, so the engine
// keeps redirecting the agent via MoveTo until adjacent; trading blows
// happens one exchange per tick. A wounded animal past its flee threshold
// runs, and the chase continues. Hunt jobs are not requeued on abandonment
// because a fled target's position is worthless to the next claimant.
func TickHunt(env HuntEnv, now uint64, ag *model.Agent, j *jobs.Job) Result {
	a, ok := env.Animal(j.TargetID)
	if !ok {
		return failed(protocol.ErrInvalidTarget)
	}
	if a.Dead {
		return completed()
	}
	def, ok := env.AnimalDef(a.Type)
	if !ok {
		return failed(protocol.ErrInternal)
	}

	if !model.Adjacent(ag.Pos, a.Pos) {
		return moveTo(a.Pos.Job())
	}

	dmg := huntBaseDamage
	if ag.EquippedItem != "" {
		dmg += env.WeaponBonus(ag.EquippedItem)
	}
	a.HP -= dmg
	if a.HP <= 0 {
		a.Dead = true
		env.SpawnCorpse(a.Pos.Job(), def.CorpseResource, def.CorpseAmount)
		ag.AddEvent(protocol.Event{
			"type":     "hunt_kill",
			"tick":     now,
			"agent_id": ag.ID,
			"job_id":   j.ID,
			"animal":   a.AnimalID,
			"kind":     a.Type,
		})
		return completed()
	}

	if def.FleeBelowHP > 0 && a.HP <= def.FleeBelowHP {
		a.Fleeing = true
	}
	// The animal fights back while cornered.
	if !a.Fleeing && def.AttackDamage > 0 {
		ag.HP -= def.AttackDamage
	}
	j.Progress++
	return continuing()
}
