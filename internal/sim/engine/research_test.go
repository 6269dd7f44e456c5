package engine_test

import (
	"errors"
	"slices"
	"testing"

	"nebula4x.dev/internal/sim/engine"
	"nebula4x.dev/internal/sim/simtest"
)

func TestResearch_PicksFirstAvailableAndUnlocks(t *testing.T) {
	ch := simtest.NewChain()
	st := ch.State
	st.Factions[ch.Terrans].KnownTechs = []string{"chemistry_1"}
	st.Colonies[ch.HomeColony].Installations["research_lab"] = 1 // 5 RP/day

	sim := simtest.NewSim(t, st)
	// weapons_1 needs nuclear_1, so nuclear_1 is researched first.
	for _, id := range []string{"weapons_1", "nuclear_1"} {
		if err := sim.EnqueueResearch(ch.Terrans, id); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	sim.AdvanceDays(19)
	f := sim.State().Factions[ch.Terrans]
	if f.ActiveResearchID != "nuclear_1" || slices.Contains(f.KnownTechs, "nuclear_1") {
		t.Fatalf("day 19: active=%q known=%v", f.ActiveResearchID, f.KnownTechs)
	}

	sim.AdvanceDays(1)
	f = sim.State().Factions[ch.Terrans]
	if !slices.Contains(f.KnownTechs, "nuclear_1") {
		t.Fatalf("nuclear_1 not known: %v", f.KnownTechs)
	}
	if !slices.Contains(f.UnlockedInstallations, "fuel_refinery") {
		t.Fatalf("fuel_refinery not unlocked: %v", f.UnlockedInstallations)
	}
	if f.ActiveResearchID != "weapons_1" || len(f.ResearchQueue) != 0 {
		t.Fatalf("active=%q queue=%v want weapons_1 and empty queue", f.ActiveResearchID, f.ResearchQueue)
	}
	if _, ok := simtest.LastEvent(sim.State(), "Research complete for Terran Union: Nuclear Theory"); !ok {
		t.Fatalf("missing research event")
	}
}

func TestEnqueueResearch_IgnoresDuplicatesAndRejectsUnknown(t *testing.T) {
	ch := simtest.NewChain()
	sim := simtest.NewSim(t, ch.State)

	if err := sim.EnqueueResearch(ch.Terrans, "no_such_tech"); !errors.Is(err, engine.ErrUnknownTech) {
		t.Fatalf("err=%v want ErrUnknownTech", err)
	}
	if err := sim.EnqueueResearch(9999, "chemistry_1"); !errors.Is(err, engine.ErrUnknownFaction) {
		t.Fatalf("err=%v want ErrUnknownFaction", err)
	}
	for i := 0; i < 2; i++ {
		if err := sim.EnqueueResearch(ch.Terrans, "sensors_1"); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if q := sim.State().Factions[ch.Terrans].ResearchQueue; len(q) != 1 {
		t.Fatalf("queue=%v want one entry", q)
	}
}
