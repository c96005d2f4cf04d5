package registry

import (
	"sort"

	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/tuning"
)

// TraitScorer supplies per-agent category biases. The personality generator
// behind it is an external collaborator; its output is consumed as opaque
// weights.
type TraitScorer interface {
	ScoringBias(agentID, category string) float64
}

// MaterialsChecker answers the cheap "could this job's inputs plausibly be
// satisfied" existence question. It must not reserve anything.
type MaterialsChecker interface {
	Plausible(j *jobs.Job) bool
}

// ClaimQuery describes the asking agent.
type ClaimQuery struct {
	AgentID string
	Pos     jobs.Vec3i
	Enabled map[jobs.Kind]bool
}

type candidate struct {
	job   *jobs.Job
	score float64
}

// Score implements the claim formula: priority weight plus a monotonically
// decreasing distance weight plus the agent's category bias plus an urgency
// term that grows with time spent unclaimed.
func Score(j *jobs.Job, q ClaimQuery, now uint64, sc tuning.Scoring, traits TraitScorer) float64 {
	s := float64(j.Priority) * sc.PriorityWeight

	dist := float64(jobs.Manhattan(q.Pos, j.Pos))
	half := sc.DistanceHalf
	if half <= 0 {
		half = 1
	}
	s += sc.DistanceScale * half / (half + dist)

	if traits != nil {
		s += traits.ScoringBias(q.AgentID, j.Category)
	}

	if sc.UrgencyRampTicks > 0 && now > j.InsertedTick {
		s += sc.PriorityWeight * float64(now-j.InsertedTick) / float64(sc.UrgencyRampTicks)
	}
	return s
}

// QueryCandidates returns claimable jobs for the agent in descending score
// order, ties broken by insertion sequence (oldest first) so equal work never
// starves. Claimed jobs, cooled-down jobs and jobs whose materials cannot
// plausibly be found are filtered out.
func (r *Registry) QueryCandidates(q ClaimQuery, now uint64, sc tuning.Scoring, traits TraitScorer, mats MaterialsChecker) []*jobs.Job {
	cands := make([]candidate, 0, len(r.order))
	for _, id := range r.order {
		j := r.byID[id]
		if j == nil || j.Claimant != "" {
			continue
		}
		if j.CooldownUntilTick > now {
			continue
		}
		if q.Enabled != nil && !q.Enabled[j.Kind] {
			continue
		}
		if mats != nil && !mats.Plausible(j) {
			continue
		}
		cands = append(cands, candidate{job: j, score: Score(j, q, now, sc, traits)})
	}
	sort.SliceStable(cands, func(i, k int) bool {
		if cands[i].score != cands[k].score {
			return cands[i].score > cands[k].score
		}
		return cands[i].job.Seq < cands[k].job.Seq
	})
	out := make([]*jobs.Job, len(cands))
	for i, c := range cands {
		out[i] = c.job
	}
	return out
}

// SelectAndClaim walks the candidate list claiming the best job, falling
// through to the next candidate when a claim loses a race, bounded by
// maxAttempts. Returns nil when no claim succeeded.
func (r *Registry) SelectAndClaim(q ClaimQuery, now uint64, cl tuning.Claims, sc tuning.Scoring, traits TraitScorer, mats MaterialsChecker) *jobs.Job {
	attempts := cl.MaxAttemptsPerTick
	if attempts <= 0 {
		attempts = 1
	}
	for _, j := range r.QueryCandidates(q, now, sc, traits, mats) {
		if err := r.Claim(j.ID, q.AgentID, now); err == nil {
			return j
		}
		attempts--
		if attempts <= 0 {
			break
		}
	}
	return nil
}
