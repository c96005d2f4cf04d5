package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	body := `
tick_rate_hz: 20
claims:
  stale_max_age_ticks: 50
agents:
  hunger_preempt_at: 80
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TickRateHz != 20 {
		t.Fatalf("tick_rate_hz %d", cfg.TickRateHz)
	}
	if cfg.Claims.StaleMaxAgeTicks != 50 {
		t.Fatalf("stale_max_age_ticks %d", cfg.Claims.StaleMaxAgeTicks)
	}
	if cfg.Agents.HungerPreemptAt != 80 {
		t.Fatalf("hunger_preempt_at %d", cfg.Agents.HungerPreemptAt)
	}
	// Unmentioned keys keep their defaults.
	if cfg.Claims.MaxAttemptsPerTick != Defaults().Claims.MaxAttemptsPerTick {
		t.Fatalf("max_attempts_per_tick %d", cfg.Claims.MaxAttemptsPerTick)
	}
	if cfg.Scoring.PriorityWeight != Defaults().Scoring.PriorityWeight {
		t.Fatalf("priority_weight %v", cfg.Scoring.PriorityWeight)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err %v", err)
	}
	// Callers fall back to the returned defaults.
	if cfg.TickRateHz != Defaults().TickRateHz {
		t.Fatalf("defaults not returned alongside the error")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("claims: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}
