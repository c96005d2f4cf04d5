package registry

import (
	"fmt"
	"sort"

	"github.com/NeruoDissident/FracturedCity/internal/protocol"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
)

// Registry owns the shared pool of pending and claimed jobs. All claimant
// mutation goes through Claim/Release/ExpireStale; nothing outside this
// package writes a job's claim fields. The simulation is single-threaded, so
// exclusivity within a tick is a matter of call ordering, not locking.
type Registry struct {
	byID  map[string]*jobs.Job
	order []string // insertion order, stable iteration and tie-break

	nextJobNum uint64
	nextSeq    uint64

	// Designated tiles that may not yet carry an active job. Producers use
	// this to avoid creating duplicate work for the same tile.
	designations map[jobs.Vec3i]Designation

	completed uint64
	abandoned uint64
	expired   uint64
}

type Designation struct {
	Type     string
	Category string
}

func New() *Registry {
	return &Registry{
		byID:         map[string]*jobs.Job{},
		designations: map[jobs.Vec3i]Designation{},
	}
}

// Insert admits a job into the pool. The job id is generated unless the
// caller restored one from a snapshot. Fails only on malformed metadata.
func (r *Registry) Insert(j *jobs.Job, now uint64) error {
	if err := validate(j); err != nil {
		return err
	}
	if j.ID == "" {
		r.nextJobNum++
		j.ID = fmt.Sprintf("J%d", r.nextJobNum)
	}
	if _, dup := r.byID[j.ID]; dup {
		return fmt.Errorf("job %s already inserted", j.ID)
	}
	if j.Category == "" {
		j.Category = jobs.DefaultCategory(j.Kind)
	}
	if j.InsertedTick == 0 {
		j.InsertedTick = now
	}
	r.nextSeq++
	j.Seq = r.nextSeq
	r.byID[j.ID] = j
	r.order = append(r.order, j.ID)
	return nil
}

func validate(j *jobs.Job) error {
	if j == nil {
		return fmt.Errorf("nil job")
	}
	switch j.Kind {
	case jobs.KindBuild:
		if j.BlueprintID == "" {
			return fmt.Errorf("build job needs blueprint_id")
		}
	case jobs.KindCraft:
		if j.RecipeID == "" {
			return fmt.Errorf("craft job needs recipe_id")
		}
	case jobs.KindHaul:
		if j.Resource == "" && j.TargetID == "" {
			return fmt.Errorf("haul job needs resource or target item")
		}
		if j.Amount < 0 {
			return fmt.Errorf("haul job amount must not be negative")
		}
	case jobs.KindHunt:
		if j.TargetID == "" {
			return fmt.Errorf("hunt job needs target_id")
		}
	case jobs.KindEquip:
		if j.ItemID == "" {
			return fmt.Errorf("equip job needs item_id")
		}
	case jobs.KindHarvest, jobs.KindSalvage:
	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	if j.Required < 0 {
		return fmt.Errorf("required progress must not be negative")
	}
	return nil
}

func (r *Registry) Get(id string) *jobs.Job { return r.byID[id] }

// Jobs returns the pool in insertion order. Callers must not mutate claim
// fields on the returned jobs.
func (r *Registry) Jobs() []*jobs.Job {
	out := make([]*jobs.Job, 0, len(r.order))
	for _, id := range r.order {
		if j, ok := r.byID[id]; ok {
			out = append(out, j)
		}
	}
	return out
}

func (r *Registry) Len() int { return len(r.byID) }

// Remove deletes a job outright (completion, cancellation, or a kind that
// does not tolerate requeue).
func (r *Registry) Remove(id string) {
	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Claim is an atomic compare-and-set on the claimant field: it succeeds only
// when the job is unclaimed. Within a tick, agent update order decides races.
func (r *Registry) Claim(jobID, agentID string, now uint64) error {
	j := r.byID[jobID]
	if j == nil {
		return fmt.Errorf("%s: job %s not found", protocol.ErrInvalidTarget, jobID)
	}
	if j.Claimant != "" {
		return fmt.Errorf("%s: job %s already claimed by %s", protocol.ErrConflict, jobID, j.Claimant)
	}
	j.Claimant = agentID
	j.ClaimTick = now
	j.ProgressTick = now
	j.Blocked = ""
	return nil
}

// Release clears the claimant without removing the job. A non-zero cooldown
// hides the job from candidate queries until the given tick, which is how
// unreachable or starved jobs avoid immediate re-claim thrashing.
func (r *Registry) Release(jobID string, cooldownUntil uint64) {
	j := r.byID[jobID]
	if j == nil {
		return
	}
	j.Claimant = ""
	j.ClaimTick = 0
	j.Blocked = ""
	j.BlockedSinceTick = 0
	if cooldownUntil > j.CooldownUntilTick {
		j.CooldownUntilTick = cooldownUntil
	}
}

// NoteProgress records that a claimed job advanced this tick, resetting the
// staleness clock and any blocked marker.
func (r *Registry) NoteProgress(jobID string, now uint64) {
	j := r.byID[jobID]
	if j == nil {
		return
	}
	j.ProgressTick = now
	j.Blocked = ""
	j.BlockedSinceTick = 0
}

// NoteBlocked records an engine stall reason for diagnostics and for the
// bounded-wait abandonment policy. The first stalled tick is remembered. The
// claimant demonstrably ticked to report the stall, so the staleness clock is
// refreshed; expiry stays reserved for claimants that stopped ticking.
func (r *Registry) NoteBlocked(jobID, code string, now uint64) {
	j := r.byID[jobID]
	if j == nil {
		return
	}
	j.ProgressTick = now
	if j.Blocked != code {
		j.Blocked = code
		j.BlockedSinceTick = now
	}
}

// ExpireStale force-releases claims whose holder has made no progress for
// maxAge ticks. This is the only liveness guarantee against an agent that
// claimed a job and then died or got stuck. Returns released job ids.
func (r *Registry) ExpireStale(now, maxAge uint64) []string {
	if maxAge == 0 {
		return nil
	}
	var released []string
	for _, id := range r.order {
		j := r.byID[id]
		if j == nil || j.Claimant == "" {
			continue
		}
		if now-j.ProgressTick >= maxAge {
			r.Release(id, 0)
			r.expired++
			released = append(released, id)
		}
	}
	return released
}

func (r *Registry) NoteCompleted() { r.completed++ }
func (r *Registry) NoteAbandoned() { r.abandoned++ }

// Stats counts the pool by state for the observer stream and the sqlite
// index.
func (r *Registry) Stats(now uint64) protocol.JobStats {
	st := protocol.JobStats{
		Completed: r.completed,
		Abandoned: r.abandoned,
		Expired:   r.expired,
	}
	for _, id := range r.order {
		j := r.byID[id]
		if j == nil {
			continue
		}
		switch {
		case j.Claimant != "":
			st.Claimed++
		case j.CooldownUntilTick > now:
			st.Cooldown++
		default:
			st.Pending++
		}
		switch j.Blocked {
		case protocol.ErrNoResource:
			st.BlockedMaterials++
		case protocol.ErrNoStorage:
			st.BlockedStorage++
		}
	}
	return st
}

// BlockedJobs lists jobs currently stalled or cooling down, for diagnostics.
func (r *Registry) BlockedJobs(now uint64) []protocol.JobBrief {
	var out []protocol.JobBrief
	for _, id := range r.order {
		j := r.byID[id]
		if j == nil {
			continue
		}
		if j.Blocked == "" && j.CooldownUntilTick <= now {
			continue
		}
		out = append(out, protocol.JobBrief{
			ID:       j.ID,
			Kind:     string(j.Kind),
			Category: j.Category,
			Pos:      [3]int{j.Pos.X, j.Pos.Y, j.Pos.Z},
			Priority: j.Priority,
			Claimant: j.Claimant,
			Blocked:  j.Blocked,
			Progress: j.Progress,
			Required: j.Required,
		})
	}
	return out
}

// --- Designations ---

// AddDesignation marks a tile as designated for work. Returns false when the
// tile is already designated, which producers use to avoid duplicate jobs.
func (r *Registry) AddDesignation(pos jobs.Vec3i, typ, category string) bool {
	if _, ok := r.designations[pos]; ok {
		return false
	}
	r.designations[pos] = Designation{Type: typ, Category: category}
	return true
}

func (r *Registry) RemoveDesignation(pos jobs.Vec3i) bool {
	if _, ok := r.designations[pos]; !ok {
		return false
	}
	delete(r.designations, pos)
	return true
}

func (r *Registry) HasDesignation(pos jobs.Vec3i) bool {
	_, ok := r.designations[pos]
	return ok
}

func (r *Registry) Designations() map[jobs.Vec3i]Designation {
	out := make(map[jobs.Vec3i]Designation, len(r.designations))
	for k, v := range r.designations {
		out[k] = v
	}
	return out
}

// --- Snapshot support ---

type CountersSnapshot struct {
	NextJob   uint64
	NextSeq   uint64
	Completed uint64
	Abandoned uint64
	Expired   uint64
}

func (r *Registry) CountersSnapshot() CountersSnapshot {
	return CountersSnapshot{
		NextJob:   r.nextJobNum,
		NextSeq:   r.nextSeq,
		Completed: r.completed,
		Abandoned: r.abandoned,
		Expired:   r.expired,
	}
}

func (r *Registry) LoadCountersSnapshot(c CountersSnapshot) {
	r.nextJobNum = c.NextJob
	r.nextSeq = c.NextSeq
	r.completed = c.Completed
	r.abandoned = c.Abandoned
	r.expired = c.Expired
}

// LoadJob restores a job preserving its id, seq and claim state. Snapshot
// restore must reproduce identical scheduling decisions, so the insertion
// order is rebuilt sorted by seq afterwards via SortOrderBySeq.
func (r *Registry) LoadJob(j *jobs.Job) error {
	if j.ID == "" {
		return fmt.Errorf("restored job missing id")
	}
	if _, dup := r.byID[j.ID]; dup {
		return fmt.Errorf("restored job %s duplicated", j.ID)
	}
	r.byID[j.ID] = j
	r.order = append(r.order, j.ID)
	return nil
}

func (r *Registry) SortOrderBySeq() {
	sort.Slice(r.order, func(i, k int) bool {
		return r.byID[r.order[i]].Seq < r.byID[r.order[k]].Seq
	})
}

func (r *Registry) LoadDesignations(src map[jobs.Vec3i]Designation) {
	r.designations = map[jobs.Vec3i]Designation{}
	for k, v := range src {
		r.designations[k] = v
	}
}
