package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	body := "docking_range_mkm: 2.5\nfleet_formations: false\nmax_events: 10\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DockingRangeMkm != 2.5 || cfg.FleetFormations || cfg.MaxEvents != 10 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.SecondsPerDay != 86400 || !cfg.FleetSpeedMatching || cfg.ScrapRefundFraction != 0.5 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoad_RejectsNonPositiveDay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	if err := os.WriteFile(path, []byte("seconds_per_day: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error")
	}
}
