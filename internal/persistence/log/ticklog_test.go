package log

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/NeruoDissident/FracturedCity/internal/protocol"
)

func TestAppendReadAllRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.jsonl.zst")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	for tick := uint64(1); tick <= 5; tick++ {
		e := Entry{
			Tick:   tick,
			Digest: "digest",
			Stats:  protocol.JobStats{Pending: int(tick)},
		}
		if tick == 3 {
			e.Events = []protocol.Event{{"tick": tick, "type": "job_completed", "job_id": "J9"}}
		}
		if err := w.Append(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("entries %d", len(entries))
	}
	for i, e := range entries {
		if e.Tick != uint64(i+1) || e.Stats.Pending != i+1 {
			t.Fatalf("entry %d: %+v", i, e)
		}
	}
	if len(entries[2].Events) != 1 || entries[2].Events[0]["job_id"] != "J9" {
		t.Fatalf("events %+v", entries[2].Events)
	}
}

func TestReaderStreamsToEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.jsonl.zst")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(Entry{Tick: 1, Digest: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if e, err := r.Next(); err != nil || e.Tick != 1 {
		t.Fatalf("entry %+v err %v", e, err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("want io.EOF, got %v", err)
	}
}

func TestEmptyLogReadsBackEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.jsonl.zst")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	entries, err := ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries %d", len(entries))
	}
}
