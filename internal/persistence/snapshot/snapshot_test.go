package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
)

func sampleState() world.SnapshotV1 {
	return world.SnapshotV1{
		Tick: 4200,
		Agents: []model.Agent{{
			ID:   "A1",
			Name: "Mara",
			Pos:  model.Vec3i{X: 3, Y: 1},
			HP:   100,
		}},
		Jobs: []jobs.Job{{
			ID:       "J1",
			Seq:      1,
			Kind:     jobs.KindHaul,
			Pos:      jobs.Vec3i{X: 7},
			Resource: "WOOD",
			Amount:   5,
			Priority: 2,
		}},
		OrderJobs:  map[string]string{"O1": "J1"},
		NextAgent:  1,
		NextEntity: 9,
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := Filename(t.TempDir(), 4200)

	if err := Write(path, 4200, "deadbeef", sampleState()); err != nil {
		t.Fatal(err)
	}
	hdr, state, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Tick != 4200 || hdr.Digest != "deadbeef" || hdr.Version != 1 {
		t.Fatalf("header %+v", hdr)
	}
	if state.Tick != 4200 || len(state.Agents) != 1 || state.Agents[0].Name != "Mara" {
		t.Fatalf("state %+v", state)
	}
	if len(state.Jobs) != 1 || state.Jobs[0].Resource != "WOOD" {
		t.Fatalf("jobs %+v", state.Jobs)
	}
	if state.OrderJobs["O1"] != "J1" {
		t.Fatal("order bookkeeping lost")
	}
}

func TestHeaderIsPlainTextFirstLine(t *testing.T) {
	path := Filename(t.TempDir(), 1)
	if err := Write(path, 1, "abc", sampleState()); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line, _, ok := strings.Cut(string(raw), "\n")
	if !ok {
		t.Fatal("no header line")
	}
	if !strings.Contains(line, `"digest":"abc"`) {
		t.Fatalf("header line %q", line)
	}
}

func TestWriteLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	if err := Write(Filename(dir, 7), 7, "x", sampleState()); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "snapshot-000000000007.bin" {
		t.Fatalf("dir contents %v", entries)
	}
}

func TestReadRejectsCorruptedBody(t *testing.T) {
	path := Filename(t.TempDir(), 3)
	if err := Write(path, 3, "x", sampleState()); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw[:len(raw)-8], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Read(path); err == nil {
		t.Fatal("truncated snapshot accepted")
	}
}

func TestReadRejectsFutureVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.bin")
	if err := os.WriteFile(path, []byte(`{"version":99,"tick":1,"digest":"x"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Read(path); err == nil {
		t.Fatal("unknown version accepted")
	}
}
