package duel

import (
	"bytes"
	"encoding/json"
	"testing"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/simtest"
	"nebula4x.dev/internal/sim/tuning"
)

func runDuel(t *testing.T, a, b Side, opt Options) Result {
	t.Helper()
	opt.Logger = simtest.QuietLogger()
	res, err := Run(content.Default(), tuning.Defaults(), a, b, opt)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return res
}

func TestRun_EscortBeatsFreighter(t *testing.T) {
	opt := DefaultOptions()
	opt.Runs = 3
	opt.MaxDays = 30
	opt.PositionJitterMkm = 0.5
	res := runDuel(t, Side{DesignID: "escort_gamma", Count: 1}, Side{DesignID: "freighter_alpha", Count: 1}, opt)

	if len(res.Runs) != 3 {
		t.Fatalf("runs=%d want 3", len(res.Runs))
	}
	if res.Aggregate.AWins != 3 || res.Aggregate.AWinRate != 1 {
		t.Fatalf("aggregate=%+v", res.Aggregate)
	}
	for _, r := range res.Runs {
		if r.Winner != "A" || r.BSurvivors != 0 || r.ASurvivors != 1 {
			t.Fatalf("run=%+v", r)
		}
		if r.DaysSimulated == 0 || r.DaysSimulated >= opt.MaxDays {
			t.Fatalf("days=%d", r.DaysSimulated)
		}
		if len(r.FinalDigest) != 18 {
			t.Fatalf("digest=%q", r.FinalDigest)
		}
	}
	if res.Runs[0].Seed == res.Runs[1].Seed {
		t.Fatalf("runs share seed %d", res.Runs[0].Seed)
	}
}

func TestRun_Deterministic(t *testing.T) {
	opt := DefaultOptions()
	opt.Runs = 2
	opt.MaxDays = 20
	opt.PositionJitterMkm = 1
	opt.Seed = 77
	a := Side{DesignID: "pirate_raider", Count: 2, Label: "Red"}
	b := Side{DesignID: "escort_gamma", Count: 2, Label: "Blue"}

	x, err := runDuel(t, a, b, opt).JSON()
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	y, err := runDuel(t, a, b, opt).JSON()
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if !bytes.Equal(x, y) {
		t.Fatalf("same seed produced different results:\n%s\n%s", x, y)
	}

	var doc map[string]any
	if err := json.Unmarshal(x, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["type"] != ResultType {
		t.Fatalf("type=%v", doc["type"])
	}
	for _, k := range []string{"a", "b", "options", "aggregate", "runs"} {
		if _, ok := doc[k]; !ok {
			t.Fatalf("missing key %q", k)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	cases := []struct {
		name string
		a, b Side
	}{
		{"empty design", Side{Count: 1}, Side{DesignID: "escort_gamma", Count: 1}},
		{"unknown design", Side{DesignID: "escort_gamma", Count: 1}, Side{DesignID: "battlestar", Count: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Run(content.Default(), tuning.Defaults(), tc.a, tc.b, DefaultOptions()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestDefaultSeparation(t *testing.T) {
	db := content.Default()
	escort, freighter, raider := db.Designs["escort_gamma"], db.Designs["freighter_alpha"], db.Designs["pirate_raider"]
	cases := []struct {
		name string
		a, b *content.ShipDesign
		want float64
	}{
		{"one side unarmed", escort, freighter, 8},
		{"shorter range wins", escort, raider, 8},
		{"nobody armed", freighter, freighter, 0.8},
	}
	for _, tc := range cases {
		if got := defaultSeparation(tc.a, tc.b); got != tc.want {
			t.Fatalf("%s: separation=%v want %v", tc.name, got, tc.want)
		}
	}
}
