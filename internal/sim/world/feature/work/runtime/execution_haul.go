package runtime

import (
	"github.com/NeruoDissident/FracturedCity/internal/protocol"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/storage"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

// Haul phases tracked in Job.Stage.
const (
	haulStagePickup  = 0
	haulStageDropoff = 1
)

type HaulEnv interface {
	StorageEnv
	ReserveAt(jobID string, cell jobs.Vec3i, resource string, amount int) (*storage.Reservation, error)
	// TakeGroundItem removes a loose entity from the world and returns its
	// payload. ok=false when it no longer exists.
	TakeGroundItem(entityID string) (resource string, count int, instanceID string, ok bool)
}

// TickHaul runs the two-leg haul: pick up at the job's anchor, then carry to
// the destination. The second leg is requested through Result.MoveTo; the
// state machine re-enters here on arrival. A destination that became illegal
// mid-carry triggers a fresh storage search rather than dropping the load.
func TickHaul(env HaulEnv, now uint64, ag *model.Agent, j *jobs.Job) Result {
	if j.Stage == haulStagePickup {
		return haulPickup(env, ag, j)
	}
	return haulDropoff(env, now, ag, j)
}

func haulPickup(env HaulEnv, ag *model.Agent, j *jobs.Job) Result {
	if ag.Carry == nil {
		if j.TargetID != "" {
			res, count, instID, ok := env.TakeGroundItem(j.TargetID)
			if !ok {
				return failed(protocol.ErrInvalidTarget)
			}
			ag.Carry = &model.CarriedStack{Resource: res, Amount: count, ItemID: instID}
		} else {
			// Storage-to-storage leg (zone relocation). Pin the source
			// first so nothing else can withdraw the stock mid-pickup.
			if !j.MaterialsReserved {
				if j.ItemID != "" {
					if _, err := env.ReserveItemInstance(j.ID, j.ItemID); err != nil {
						return failed(protocol.ErrNoResource)
					}
				} else if _, err := env.ReserveAt(j.ID, j.Pos, j.Resource, j.Amount); err != nil {
					return failed(protocol.ErrNoResource)
				}
				j.MaterialsReserved = true
			}
			commitAll(env, j.ID)
			j.MaterialsReserved = false
			ag.Carry = &model.CarriedStack{Resource: j.Resource, Amount: j.Amount, ItemID: j.ItemID}
		}
	}

	j.Stage = haulStageDropoff
	if j.HasDest {
		return moveTo(j.Dest)
	}
	dest, ok := env.FindStorageFor(ag.Carry.Resource, ag.Carry.Amount, ag.Pos.Job())
	if !ok {
		return blocked(protocol.ErrNoStorage)
	}
	j.HasDest, j.Dest = true, dest
	return moveTo(dest)
}

func haulDropoff(env HaulEnv, now uint64, ag *model.Agent, j *jobs.Job) Result {
	if ag.Carry == nil {
		// Load lost (shouldn't happen outside snapshot edge cases).
		return failed(protocol.ErrInternal)
	}

	// A pickup that stalled on full storage reaches here with no destination
	// chosen yet; depositing at the zero value would drop the load into
	// whatever cell happens to sit at the origin.
	if !j.HasDest {
		dest, ok := env.FindStorageFor(ag.Carry.Resource, ag.Carry.Amount, ag.Pos.Job())
		if !ok {
			return blocked(protocol.ErrNoStorage)
		}
		j.HasDest, j.Dest = true, dest
		return moveTo(dest)
	}

	err := deposit(env, j.Dest, ag.Carry)
	if err != nil {
		// Filter flipped or the cell filled while we walked. Re-search.
		dest, ok := env.FindStorageFor(ag.Carry.Resource, ag.Carry.Amount, ag.Pos.Job())
		if !ok {
			return blocked(protocol.ErrNoStorage)
		}
		j.Dest = dest
		return moveTo(dest)
	}

	ag.AddEvent(protocol.Event{
		"type":     "haul_delivered",
		"tick":     now,
		"agent_id": ag.ID,
		"job_id":   j.ID,
		"resource": ag.Carry.Resource,
		"amount":   ag.Carry.Amount,
		"dest":     [3]int{j.Dest.X, j.Dest.Y, j.Dest.Z},
	})
	ag.Carry = nil
	return completed()
}

func deposit(env HaulEnv, dest jobs.Vec3i, c *model.CarriedStack) error {
	if c.ItemID != "" {
		return env.PlaceItemInstance(dest, c.ItemID, c.Resource)
	}
	return env.Put(dest, c.Resource, c.Amount)
}
