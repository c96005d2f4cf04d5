package registry

import (
	"strings"
	"testing"

	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
)

func insertJob(t *testing.T, r *Registry, j *jobs.Job, now uint64) *jobs.Job {
	t.Helper()
	if err := r.Insert(j, now); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return j
}

func buildJob(pos jobs.Vec3i, prio int) *jobs.Job {
	return &jobs.Job{Kind: jobs.KindBuild, Pos: pos, Priority: prio, Required: 5, BlueprintID: "WALL"}
}

func TestInsertAssignsIDAndSeq(t *testing.T) {
	r := New()
	a := insertJob(t, r, buildJob(jobs.Vec3i{}, 1), 1)
	b := insertJob(t, r, buildJob(jobs.Vec3i{X: 1}, 1), 1)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("ids %q %q", a.ID, b.ID)
	}
	if b.Seq <= a.Seq {
		t.Fatalf("seq not monotonic: %d then %d", a.Seq, b.Seq)
	}
	if a.Category != jobs.CategoryConstruction {
		t.Fatalf("default category %q", a.Category)
	}
}

func TestInsertValidatesPerKind(t *testing.T) {
	r := New()
	cases := []*jobs.Job{
		{Kind: jobs.KindBuild},                  // missing blueprint
		{Kind: jobs.KindCraft},                  // missing recipe
		{Kind: jobs.KindHaul},                   // no resource, no target
		{Kind: jobs.KindHunt},                   // missing target
		{Kind: jobs.KindEquip},                  // missing item
		{Kind: jobs.Kind("DANCE"), Required: 1}, // unknown kind
		{Kind: jobs.KindBuild, BlueprintID: "W", Required: -1},
	}
	for i, j := range cases {
		if err := r.Insert(j, 1); err == nil {
			t.Errorf("case %d: bad job accepted", i)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("pool size %d after rejections", r.Len())
	}
}

func TestClaimIsExclusive(t *testing.T) {
	r := New()
	j := insertJob(t, r, buildJob(jobs.Vec3i{}, 1), 1)

	if err := r.Claim(j.ID, "A1", 5); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	err := r.Claim(j.ID, "A2", 5)
	if err == nil {
		t.Fatal("second claim succeeded")
	}
	if !strings.Contains(err.Error(), "E_CONFLICT") {
		t.Fatalf("want E_CONFLICT, got %v", err)
	}
	if j.Claimant != "A1" || j.ClaimTick != 5 {
		t.Fatalf("claim state %q@%d", j.Claimant, j.ClaimTick)
	}
}

func TestReleaseClearsClaimAndSetsCooldown(t *testing.T) {
	r := New()
	j := insertJob(t, r, buildJob(jobs.Vec3i{}, 1), 1)
	if err := r.Claim(j.ID, "A1", 5); err != nil {
		t.Fatal(err)
	}
	r.NoteBlocked(j.ID, "E_NO_RESOURCE", 6)
	r.Release(j.ID, 100)

	if j.Claimant != "" {
		t.Fatal("claimant not cleared")
	}
	if j.CooldownUntilTick != 100 {
		t.Fatalf("cooldown %d", j.CooldownUntilTick)
	}
	if j.Blocked != "" {
		t.Fatal("blocked reason survived release")
	}
	if err := r.Claim(j.ID, "A2", 7); err != nil {
		t.Fatalf("reclaim after release: %v", err)
	}
}

func TestExpireStaleReleasesOnlyStaleClaims(t *testing.T) {
	r := New()
	stale := insertJob(t, r, buildJob(jobs.Vec3i{}, 1), 1)
	fresh := insertJob(t, r, buildJob(jobs.Vec3i{X: 1}, 1), 1)

	if err := r.Claim(stale.ID, "A1", 10); err != nil {
		t.Fatal(err)
	}
	if err := r.Claim(fresh.ID, "A2", 10); err != nil {
		t.Fatal(err)
	}
	// A2 keeps making progress; A1 went silent (dead or wedged).
	r.NoteProgress(fresh.ID, 500)

	released := r.ExpireStale(700, 600)
	if len(released) != 1 || released[0] != stale.ID {
		t.Fatalf("released %v", released)
	}
	if stale.Claimant != "" {
		t.Fatal("stale claim not cleared")
	}
	if fresh.Claimant != "A2" {
		t.Fatal("fresh claim released")
	}
	if r.Stats(700).Expired != 1 {
		t.Fatalf("expired counter %d", r.Stats(700).Expired)
	}
}

func TestExpireStaleCountsFromLastProgress(t *testing.T) {
	r := New()
	j := insertJob(t, r, buildJob(jobs.Vec3i{}, 1), 1)
	if err := r.Claim(j.ID, "A1", 0); err != nil {
		t.Fatal(err)
	}
	r.NoteProgress(j.ID, 550)

	if rel := r.ExpireStale(600, 600); len(rel) != 0 {
		t.Fatalf("claim with recent progress expired: %v", rel)
	}
	if rel := r.ExpireStale(1151, 600); len(rel) != 1 {
		t.Fatalf("want expiry 600 ticks after last progress, got %v", rel)
	}
}

func TestNoteBlockedKeepsAttendedClaimFresh(t *testing.T) {
	r := New()
	j := insertJob(t, r, buildJob(jobs.Vec3i{}, 1), 1)
	if err := r.Claim(j.ID, "A1", 0); err != nil {
		t.Fatal(err)
	}

	// The claimant keeps reporting the stall every tick; only a claimant
	// that stops ticking altogether goes stale.
	for now := uint64(1); now <= 2000; now++ {
		r.NoteBlocked(j.ID, "E_NO_STORAGE", now)
		if rel := r.ExpireStale(now, 600); len(rel) != 0 {
			t.Fatalf("attended stall expired at tick %d: %v", now, rel)
		}
	}
	if j.Blocked != "E_NO_STORAGE" || j.BlockedSinceTick != 1 {
		t.Fatalf("blocked marker %q since %d", j.Blocked, j.BlockedSinceTick)
	}

	// The reporter goes silent; expiry takes over.
	if rel := r.ExpireStale(2601, 600); len(rel) != 1 {
		t.Fatalf("silent claimant kept the claim: %v", rel)
	}
}

func TestRemoveDropsFromIterationOrder(t *testing.T) {
	r := New()
	a := insertJob(t, r, buildJob(jobs.Vec3i{}, 1), 1)
	b := insertJob(t, r, buildJob(jobs.Vec3i{X: 1}, 1), 1)
	r.Remove(a.ID)

	list := r.Jobs()
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("jobs after remove: %+v", list)
	}
	if r.Get(a.ID) != nil {
		t.Fatal("removed job still resolvable")
	}
}

func TestStatsBuckets(t *testing.T) {
	r := New()
	now := uint64(100)

	insertJob(t, r, buildJob(jobs.Vec3i{}, 1), 1) // pending
	claimed := insertJob(t, r, buildJob(jobs.Vec3i{X: 1}, 1), 1)
	cooled := insertJob(t, r, buildJob(jobs.Vec3i{X: 2}, 1), 1)
	blockedM := insertJob(t, r, buildJob(jobs.Vec3i{X: 3}, 1), 1)
	blockedS := insertJob(t, r, buildJob(jobs.Vec3i{X: 4}, 1), 1)

	if err := r.Claim(claimed.ID, "A1", now); err != nil {
		t.Fatal(err)
	}
	cooled.CooldownUntilTick = now + 50
	if err := r.Claim(blockedM.ID, "A2", now); err != nil {
		t.Fatal(err)
	}
	r.NoteBlocked(blockedM.ID, "E_NO_RESOURCE", now)
	if err := r.Claim(blockedS.ID, "A3", now); err != nil {
		t.Fatal(err)
	}
	r.NoteBlocked(blockedS.ID, "E_NO_STORAGE", now)
	r.NoteCompleted()
	r.NoteAbandoned()

	s := r.Stats(now)
	if s.Pending != 1 || s.Claimed != 3 || s.Cooldown != 1 {
		t.Fatalf("buckets %+v", s)
	}
	if s.BlockedMaterials != 1 || s.BlockedStorage != 1 {
		t.Fatalf("blocked %+v", s)
	}
	if s.Completed != 1 || s.Abandoned != 1 {
		t.Fatalf("counters %+v", s)
	}
}

func TestDesignationsRejectDuplicates(t *testing.T) {
	r := New()
	p := jobs.Vec3i{X: 3, Y: 4}
	if !r.AddDesignation(p, "HARVEST", jobs.CategoryHarvest) {
		t.Fatal("first designation rejected")
	}
	if r.AddDesignation(p, "HARVEST", jobs.CategoryHarvest) {
		t.Fatal("duplicate designation accepted")
	}
	if !r.HasDesignation(p) {
		t.Fatal("designation lost")
	}
	if !r.RemoveDesignation(p) || r.HasDesignation(p) {
		t.Fatal("removal failed")
	}
	if r.RemoveDesignation(p) {
		t.Fatal("double removal reported success")
	}
}

func TestSnapshotRoundTripPreservesSchedulingState(t *testing.T) {
	r := New()
	a := insertJob(t, r, buildJob(jobs.Vec3i{}, 2), 1)
	b := insertJob(t, r, buildJob(jobs.Vec3i{X: 1}, 1), 2)
	if err := r.Claim(a.ID, "A1", 3); err != nil {
		t.Fatal(err)
	}
	r.NoteProgress(a.ID, 4)
	r.AddDesignation(jobs.Vec3i{X: 9}, "HARVEST", jobs.CategoryHarvest)
	r.NoteCompleted()

	r2 := New()
	for _, j := range r.Jobs() {
		cp := *j
		if err := r2.LoadJob(&cp); err != nil {
			t.Fatal(err)
		}
	}
	r2.SortOrderBySeq()
	r2.LoadCountersSnapshot(r.CountersSnapshot())
	r2.LoadDesignations(r.Designations())

	ja, jb := r2.Get(a.ID), r2.Get(b.ID)
	if ja == nil || jb == nil {
		t.Fatal("jobs lost in round trip")
	}
	if ja.Claimant != "A1" || ja.ProgressTick != 4 || ja.Seq != a.Seq {
		t.Fatalf("claim state lost: %+v", ja)
	}
	if !r2.HasDesignation(jobs.Vec3i{X: 9}) {
		t.Fatal("designation lost")
	}
	if r2.Stats(5).Completed != 1 {
		t.Fatal("counters lost")
	}
	// New inserts must not collide with restored ids.
	c := insertJob(t, r2, buildJob(jobs.Vec3i{X: 2}, 1), 5)
	if c.ID == a.ID || c.ID == b.ID {
		t.Fatalf("id collision after restore: %s", c.ID)
	}
	if c.Seq <= jb.Seq {
		t.Fatalf("seq collision after restore: %d", c.Seq)
	}
}
