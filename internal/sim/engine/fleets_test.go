package engine_test

import (
	"testing"

	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/simtest"
)

func TestFleetHunt_TargetsNearestDetectedHostile(t *testing.T) {
	ch := simtest.NewChain()
	st := ch.State
	e1 := simtest.AddShip(st, ch.Terrans, ch.A, "escort_gamma", model.Vec2{})
	e2 := simtest.AddShip(st, ch.Terrans, ch.A, "escort_gamma", model.Vec2{X: 1})
	near := simtest.AddShip(st, ch.Pirates, ch.A, "pirate_raider", model.Vec2{X: 50})
	simtest.AddShip(st, ch.Pirates, ch.A, "pirate_raider", model.Vec2{X: 90})

	sim := simtest.NewSim(t, st)
	fid, err := sim.CreateFleet(ch.Terrans, "Home Guard", []model.ID{e1, e2})
	if err != nil {
		t.Fatalf("create fleet: %v", err)
	}
	if err := sim.SetFleetMission(fid, model.FleetMission{Type: model.MissionHuntHostiles}); err != nil {
		t.Fatalf("mission: %v", err)
	}
	sim.AdvanceDays(1)

	fl := sim.State().Fleets[fid]
	if fl.Mission.LastTargetShip != near {
		t.Fatalf("target=%d want %d", fl.Mission.LastTargetShip, near)
	}
}

func TestFleetHunt_TreatyBlocksTargets(t *testing.T) {
	ch := simtest.NewChain()
	st := ch.State
	e1 := simtest.AddShip(st, ch.Terrans, ch.A, "escort_gamma", model.Vec2{})
	simtest.AddShip(st, ch.Pirates, ch.A, "pirate_raider", model.Vec2{X: 50})

	sim := simtest.NewSim(t, st)
	if _, err := sim.CreateTreaty(ch.Terrans, ch.Pirates, model.TreatyNonAggressionPact, 0); err != nil {
		t.Fatalf("treaty: %v", err)
	}
	fid, _ := sim.CreateFleet(ch.Terrans, "Home Guard", []model.ID{e1})
	_ = sim.SetFleetMission(fid, model.FleetMission{Type: model.MissionHuntHostiles})
	sim.AdvanceDays(1)

	if got := sim.State().Fleets[fid].Mission.LastTargetShip; got != model.InvalidID {
		t.Fatalf("fleet engaged %d under a treaty", got)
	}
}

func TestFleetDefend_ReturnsToColony(t *testing.T) {
	ch := simtest.NewChain()
	st := ch.State
	e1 := simtest.AddShip(st, ch.Terrans, ch.B, "escort_gamma", model.Vec2{})

	sim := simtest.NewSim(t, st)
	fid, _ := sim.CreateFleet(ch.Terrans, "Pickets", []model.ID{e1})
	_ = sim.SetFleetMission(fid, model.FleetMission{Type: model.MissionDefendColony, DefendColonyID: ch.HomeColony})
	sim.AdvanceDays(1)

	so := sim.State().ShipOrders[e1]
	if so == nil || len(so.Queue) == 0 {
		t.Fatalf("no orders issued")
	}
	last := so.Queue[len(so.Queue)-1]
	if mb, ok := last.(*model.MoveToBody); !ok || mb.BodyID != ch.PlanetA {
		t.Fatalf("last order=%#v want MoveToBody %d", last, ch.PlanetA)
	}
}
