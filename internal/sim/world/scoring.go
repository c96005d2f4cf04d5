package world

import (
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/registry"
)

// traitScorer surfaces each agent's externally generated category biases to
// the claim formula.
type traitScorer struct{ w *World }

func (w *World) traits() registry.TraitScorer { return traitScorer{w} }

func (t traitScorer) ScoringBias(agentID, category string) float64 {
	ag := t.w.agents[agentID]
	if ag == nil {
		return 0
	}
	return ag.CategoryBias[category]
}

// materialsChecker is the claim-time plausibility filter: a cheap existence
// probe, never a reservation. Jobs whose inputs were already reserved pass
// unconditionally.
type materialsChecker struct{ w *World }

func (w *World) materials() registry.MaterialsChecker { return materialsChecker{w} }

func (m materialsChecker) Plausible(j *jobs.Job) bool {
	if j.MaterialsReserved {
		return true
	}
	switch j.Kind {
	case jobs.KindBuild:
		bp, ok := m.w.cat.Blueprints.ByID[j.BlueprintID]
		if !ok {
			return false
		}
		for _, c := range bp.Cost {
			if m.w.Store.AvailableOf(c.Resource) < c.Count {
				return false
			}
		}
		return true
	case jobs.KindCraft:
		rec, ok := m.w.cat.Recipes.ByID[j.RecipeID]
		if !ok {
			return false
		}
		for _, in := range rec.Inputs {
			if in.Resource != "" {
				if m.w.Store.AvailableOf(in.Resource) < in.Count {
					return false
				}
				continue
			}
			if m.w.Store.AvailableMatchingTags(in.Tags) < in.Count {
				return false
			}
		}
		return true
	case jobs.KindEquip:
		_, _, ok := m.w.Store.FindItem(j.ItemID)
		return ok
	case jobs.KindHunt:
		a, ok := m.w.animals[j.TargetID]
		return ok && !a.Dead
	default:
		return true
	}
}
