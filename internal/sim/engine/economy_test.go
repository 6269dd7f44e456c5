package engine_test

import (
	"errors"
	"math"
	"testing"

	"nebula4x.dev/internal/sim/engine"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/simtest"
)

func TestMining_SplitsCapacityByRemainingDeposit(t *testing.T) {
	ch := simtest.NewChain()
	st := ch.State
	st.Bodies[ch.PlanetA].MineralDeposits = map[string]float64{"Duranium": 300, "Sorium": 100}
	st.Colonies[ch.HomeColony].Installations["automated_mine"] = 2

	sim := simtest.NewSim(t, st)
	sim.AdvanceDays(1)

	c := sim.State().Colonies[ch.HomeColony]
	if got := c.Minerals["Duranium"]; math.Abs(got-3) > 1e-9 {
		t.Fatalf("Duranium=%v want 3", got)
	}
	if got := c.Minerals["Sorium"]; math.Abs(got-1) > 1e-9 {
		t.Fatalf("Sorium=%v want 1", got)
	}
	if got := sim.State().Bodies[ch.PlanetA].MineralDeposits["Duranium"]; math.Abs(got-297) > 1e-9 {
		t.Fatalf("deposit left=%v want 297", got)
	}
}

func TestMining_DepletionIsAnnouncedOnce(t *testing.T) {
	ch := simtest.NewChain()
	st := ch.State
	st.Bodies[ch.PlanetA].MineralDeposits = map[string]float64{"Duranium": 1}
	st.Colonies[ch.HomeColony].Installations["automated_mine"] = 2

	sim := simtest.NewSim(t, st)
	sim.AdvanceDays(3)

	c := sim.State().Colonies[ch.HomeColony]
	if got := c.Minerals["Duranium"]; math.Abs(got-1) > 1e-9 {
		t.Fatalf("mined=%v want 1", got)
	}
	n := 0
	for _, ev := range sim.State().Events {
		if ev.Message == "Mineral deposit depleted on Alpha I: Duranium" {
			n++
			if ev.ColonyID != ch.HomeColony {
				t.Fatalf("event colony=%d want %d", ev.ColonyID, ch.HomeColony)
			}
		}
	}
	if n != 1 {
		t.Fatalf("depletion events=%d want 1", n)
	}
}

func TestConstruction_PaysOnStartAndSpendsPoints(t *testing.T) {
	ch := simtest.NewChain()
	st := ch.State
	st.Factions[ch.Terrans].UnlockedInstallations = []string{"automated_mine"}
	c := st.Colonies[ch.HomeColony]
	c.Installations["construction_factory"] = 1 // 10 CP + 500M pop x 0.01 = 15 CP/day
	c.Minerals["Duranium"] = 100

	sim := simtest.NewSim(t, st)
	if err := sim.EnqueueInstallationBuild(ch.HomeColony, "automated_mine", 2); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	sim.AdvanceDays(3)
	c = sim.State().Colonies[ch.HomeColony]
	if c.Installations["automated_mine"] != 0 {
		t.Fatalf("mine finished early")
	}
	if got := c.Minerals["Duranium"]; got != 80 {
		t.Fatalf("Duranium after start=%v want 80", got)
	}

	sim.AdvanceDays(1)
	c = sim.State().Colonies[ch.HomeColony]
	if c.Installations["automated_mine"] != 1 {
		t.Fatalf("mines=%d want 1", c.Installations["automated_mine"])
	}
	if len(c.ConstructionQueue) != 1 || c.ConstructionQueue[0].QuantityRemaining != 1 {
		t.Fatalf("queue=%+v want one unit left", c.ConstructionQueue)
	}
	if _, ok := simtest.LastEvent(sim.State(), "Constructed Automated Mine at Alpha Prime"); !ok {
		t.Fatalf("missing construction event")
	}
}

func TestConstruction_UnpaidOrderDoesNotBlockQueue(t *testing.T) {
	ch := simtest.NewChain()
	st := ch.State
	st.Factions[ch.Terrans].UnlockedInstallations = []string{"shipyard", "automated_mine"}
	c := st.Colonies[ch.HomeColony]
	c.Installations["construction_factory"] = 10
	c.Minerals["Duranium"] = 20

	sim := simtest.NewSim(t, st)
	if err := sim.EnqueueInstallationBuild(ch.HomeColony, "shipyard", 1); err != nil {
		t.Fatalf("enqueue shipyard: %v", err)
	}
	if err := sim.EnqueueInstallationBuild(ch.HomeColony, "automated_mine", 1); err != nil {
		t.Fatalf("enqueue mine: %v", err)
	}
	sim.AdvanceDays(1)

	c = sim.State().Colonies[ch.HomeColony]
	if c.Installations["automated_mine"] != 1 {
		t.Fatalf("mine not built past the unpaid shipyard")
	}
	if len(c.ConstructionQueue) != 1 || c.ConstructionQueue[0].InstallationID != "shipyard" || c.ConstructionQueue[0].MineralsPaid {
		t.Fatalf("queue=%+v want unpaid shipyard", c.ConstructionQueue)
	}
}

func TestEnqueueInstallationBuild_Errors(t *testing.T) {
	ch := simtest.NewChain()
	sim := simtest.NewSim(t, ch.State)

	tests := []struct {
		name   string
		colony model.ID
		inst   string
		qty    int
		want   error
	}{
		{"unknown colony", 9999, "automated_mine", 1, engine.ErrUnknownColony},
		{"unknown installation", ch.HomeColony, "warp_gate", 1, engine.ErrUnknownInstallation},
		{"locked", ch.HomeColony, "shipyard", 1, engine.ErrNotBuildable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sim.EnqueueInstallationBuild(tt.colony, tt.inst, tt.qty)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err=%v want %v", err, tt.want)
			}
		})
	}
}

func TestInstallationTargets_AutoQueueFollowsTarget(t *testing.T) {
	ch := simtest.NewChain()
	st := ch.State
	st.Factions[ch.Terrans].UnlockedInstallations = []string{"automated_mine"}
	st.Colonies[ch.HomeColony].Installations["automated_mine"] = 1

	sim := simtest.NewSim(t, st)
	if err := sim.SetInstallationTarget(ch.HomeColony, "automated_mine", 3); err != nil {
		t.Fatalf("set target: %v", err)
	}
	sim.AdvanceDays(1)

	q := sim.State().Colonies[ch.HomeColony].ConstructionQueue
	if len(q) != 1 || !q[0].AutoQueued || q[0].QuantityRemaining != 2 {
		t.Fatalf("queue=%+v want one auto order for 2", q)
	}

	if err := sim.SetInstallationTarget(ch.HomeColony, "automated_mine", 0); err != nil {
		t.Fatalf("clear target: %v", err)
	}
	sim.AdvanceDays(1)
	if q := sim.State().Colonies[ch.HomeColony].ConstructionQueue; len(q) != 0 {
		t.Fatalf("queue=%+v want empty after clearing target", q)
	}
}

func TestShipyard_CompletesShipWithFullFuel(t *testing.T) {
	ch := simtest.NewChain()
	st := ch.State
	c := st.Colonies[ch.HomeColony]
	c.Installations["shipyard"] = 1
	c.Minerals["Duranium"] = 1000
	c.Minerals["Neutronium"] = 100

	sim := simtest.NewSim(t, st)
	if err := sim.EnqueueShipBuild(ch.HomeColony, "freighter_alpha"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	before := len(sim.State().Ships)

	sim.AdvanceDays(7)
	if len(sim.State().Ships) != before {
		t.Fatalf("ship finished early")
	}
	sim.AdvanceDays(1)
	if len(sim.State().Ships) != before+1 {
		t.Fatalf("ships=%d want %d", len(sim.State().Ships), before+1)
	}

	ev, ok := simtest.LastEvent(sim.State(), "Built ship")
	if !ok {
		t.Fatalf("missing build event")
	}
	sh := sim.State().Ships[ev.ShipID]
	if sh == nil || sh.SystemID != ch.A || sh.FactionID != ch.Terrans {
		t.Fatalf("built ship=%+v", sh)
	}
	if sh.FuelTons != 2000 || sh.HP != 40 {
		t.Fatalf("fuel=%v hp=%v want full", sh.FuelTons, sh.HP)
	}
	c = sim.State().Colonies[ch.HomeColony]
	if got := c.Minerals["Duranium"]; math.Abs(got-600) > 1e-6 {
		t.Fatalf("Duranium=%v want 600", got)
	}
	if len(c.ShipyardQueue) != 0 {
		t.Fatalf("queue=%+v want empty", c.ShipyardQueue)
	}
}
