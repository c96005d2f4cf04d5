package runtime

import (
	"github.com/NeruoDissident/FracturedCity/internal/protocol"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

type EquipEnv interface {
	StorageEnv
	FindItem(instanceID string) (jobs.Vec3i, string, bool)
	// DropItemInstance puts a displaced item on the ground at p (used when
	// swapping over a full storage cell).
	DropItemInstance(p jobs.Vec3i, instanceID, resource string)
}

// TickEquip picks up one specific item instance and wields it. The instance
// is reserved on first entry so a relocation haul cannot carry it away
// mid-walk; if it already moved before the hold landed, the agent is
// redirected to wherever it is now. A previously equipped item is returned
// to storage at the pick-up cell, or dropped when the cell is full.
func TickEquip(env EquipEnv, now uint64, ag *model.Agent, j *jobs.Job) Result {
	pos, res, ok := env.FindItem(j.ItemID)
	if !ok {
		return failed(protocol.ErrInvalidTarget)
	}

	if !j.MaterialsReserved {
		if _, err := env.ReserveItemInstance(j.ID, j.ItemID); err != nil {
			return failed(protocol.ErrConflict)
		}
		j.MaterialsReserved = true
	}

	if ag.Pos.Job() != pos {
		return moveTo(pos)
	}

	j.Progress += ag.WorkIncrement()
	if j.Progress < j.Required {
		return continuing()
	}

	commitAll(env, j.ID)
	j.MaterialsReserved = false

	if ag.EquippedItemID != "" {
		old, oldRes := ag.EquippedItemID, ag.EquippedItem
		if err := env.PlaceItemInstance(pos, old, oldRes); err != nil {
			env.DropItemInstance(pos, old, oldRes)
		}
	}
	ag.EquippedItemID, ag.EquippedItem = j.ItemID, res
	ag.AddEvent(protocol.Event{
		"type":     "item_equipped",
		"tick":     now,
		"agent_id": ag.ID,
		"job_id":   j.ID,
		"item_id":  j.ItemID,
		"resource": res,
	})
	return completed()
}
