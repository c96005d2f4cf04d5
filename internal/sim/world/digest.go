package world

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

// StateDigest hashes every piece of simulation state that can influence a
// scheduling decision. Two worlds advanced through identical inputs must
// produce identical digests tick for tick; replay verification depends on it.
func (w *World) StateDigest() string {
	h := sha256.New()
	fmt.Fprintf(h, "tick %d\n", w.tick)

	for _, ag := range w.Agents() {
		fmt.Fprintf(h, "agent %s %v %s job=%s hp=%d hunger=%d dead=%v",
			ag.ID, ag.Pos, ag.State, ag.CurrentJobID, ag.HP, ag.HungerMilli, ag.Dead)
		if ag.Carry != nil {
			fmt.Fprintf(h, " carry=%s:%d:%s", ag.Carry.Resource, ag.Carry.Amount, ag.Carry.ItemID)
		}
		if ag.Errand != nil {
			fmt.Fprintf(h, " errand=%s:%d", ag.Errand.Resource, ag.Errand.EatTicksLeft)
		}
		fmt.Fprintf(h, " equip=%s\n", ag.EquippedItemID)
	}

	for _, j := range w.Registry.Jobs() {
		fmt.Fprintf(h, "job %s %s %v seq=%d claim=%s prog=%d blocked=%s stage=%d cd=%d\n",
			j.ID, j.Kind, j.Pos, j.Seq, j.Claimant, j.Progress, j.Blocked, j.Stage, j.CooldownUntilTick)
	}

	snap := w.Store.ExportSnapshot()
	for _, c := range snap.Cells {
		fmt.Fprintf(h, "cell %v zone=%s", c.Pos, c.ZoneID)
		for _, res := range sortedKeys(c.Contents) {
			fmt.Fprintf(h, " %s=%d", res, c.Contents[res])
		}
		for _, id := range sortedKeys(c.Items) {
			fmt.Fprintf(h, " item:%s=%s", id, c.Items[id])
		}
		fmt.Fprintln(h)
	}
	for _, r := range snap.Reservations {
		fmt.Fprintf(h, "res %s job=%s %s:%d at %v\n", r.ID, r.JobID, r.Resource, r.Amount, r.Cell)
	}

	for _, n := range w.Nodes() {
		fmt.Fprintf(h, "node %s %s %v cycles=%d dormant=%v regrow=%d\n",
			n.NodeID, n.Type, n.Pos, n.CyclesLeft, n.Dormant, n.RegrowAtTick)
	}
	for _, a := range w.Animals() {
		fmt.Fprintf(h, "animal %s %s %v hp=%d flee=%v dead=%v\n",
			a.AnimalID, a.Type, a.Pos, a.HP, a.Fleeing, a.Dead)
	}
	for _, e := range w.GroundItems() {
		fmt.Fprintf(h, "ground %s %v %s:%d inst=%s req=%v\n",
			e.EntityID, e.Pos, e.Resource, e.Count, e.InstanceID, e.HaulRequested)
	}

	w.digestTiles(h)

	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (w *World) digestTiles(dst io.Writer) {
	keys := make([]model.Vec3i, 0, len(w.tiles))
	for p := range w.tiles {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, k int) bool {
		a, b := keys[i], keys[k]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	for _, p := range keys {
		t := w.tiles[p]
		fmt.Fprintf(dst, "tile %v %s walk=%v\n", p, t.ID, t.Walkable)
	}
}
