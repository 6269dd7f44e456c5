package validate

import (
	"slices"
	"strings"
	"testing"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/simtest"
)

func hasLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestValidate_CleanChain(t *testing.T) {
	ch := simtest.NewChain()
	simtest.AddShip(ch.State, ch.Terrans, ch.A, "freighter_alpha", model.Vec2{X: 100})
	if errs := Validate(ch.State, content.Default()); len(errs) != 0 {
		t.Fatalf("unexpected problems: %v", errs)
	}
}

func TestValidateAndFix(t *testing.T) {
	cases := []struct {
		name    string
		corrupt func(ch *simtest.Chain, ship model.ID)
		want    string
		check   func(t *testing.T, ch *simtest.Chain, ship model.ID)
	}{
		{
			name: "dangling body in system list",
			corrupt: func(ch *simtest.Chain, _ model.ID) {
				sys := ch.State.Systems[ch.B]
				sys.Bodies = append(sys.Bodies, 9000)
			},
			want: "references missing body 9000",
			check: func(t *testing.T, ch *simtest.Chain, _ model.ID) {
				got := ch.State.Systems[ch.B].Bodies
				if len(got) != 2 || slices.Contains(got, 9000) || !slices.Contains(got, ch.PlanetB) {
					t.Fatalf("bodies=%v", got)
				}
				for _, id := range got {
					if b := ch.State.Bodies[id]; b == nil || b.SystemID != ch.B {
						t.Fatalf("bodies=%v: %d is not a body of system %d", got, id, ch.B)
					}
				}
			},
		},
		{
			name: "ship missing from its system",
			corrupt: func(ch *simtest.Chain, ship model.ID) {
				ch.State.Systems[ch.A].Ships = nil
			},
			want: "is not listed by its system",
			check: func(t *testing.T, ch *simtest.Chain, ship model.ID) {
				if got := ch.State.Systems[ch.A].Ships; len(got) != 1 || got[0] != ship {
					t.Fatalf("ships=%v", got)
				}
			},
		},
		{
			name: "orders for missing ship",
			corrupt: func(ch *simtest.Chain, _ model.ID) {
				ch.State.Orders(8000).Queue = model.OrderList{&model.WaitDays{DaysRemaining: 1}}
			},
			want: "ship_orders contains entry for missing ship id 8000",
			check: func(t *testing.T, ch *simtest.Chain, _ model.ID) {
				if _, ok := ch.State.ShipOrders[8000]; ok {
					t.Fatalf("orphan orders survived")
				}
			},
		},
		{
			name: "order referencing missing colony",
			corrupt: func(ch *simtest.Chain, ship model.ID) {
				ch.State.Orders(ship).Queue = model.OrderList{
					&model.MoveToBody{BodyID: ch.PlanetA},
					&model.UnloadMineral{ColonyID: 7777},
				}
			},
			want: "references missing colony_id 7777",
			check: func(t *testing.T, ch *simtest.Chain, ship model.ID) {
				q := ch.State.Orders(ship).Queue
				if len(q) != 1 || q[0].Kind() != model.OrderMoveToBody {
					t.Fatalf("queue=%v", q)
				}
			},
		},
		{
			name: "escort targets itself",
			corrupt: func(ch *simtest.Chain, ship model.ID) {
				ch.State.Orders(ship).Queue = model.OrderList{&model.EscortShip{TargetShipID: ship, FollowDistanceMkm: 1}}
			},
			want: "EscortShip targets itself",
			check: func(t *testing.T, ch *simtest.Chain, ship model.ID) {
				if q := ch.State.Orders(ship).Queue; len(q) != 0 {
					t.Fatalf("queue=%v", q)
				}
			},
		},
		{
			name: "cargo over capacity",
			corrupt: func(ch *simtest.Chain, ship model.ID) {
				ch.State.Ships[ship].Cargo = map[string]float64{"Duranium": 750, "Corbomite": 250}
			},
			want: "exceeds capacity",
			check: func(t *testing.T, ch *simtest.Chain, ship model.ID) {
				c := ch.State.Ships[ship].Cargo
				if c["Duranium"] != 375 || c["Corbomite"] != 125 {
					t.Fatalf("cargo=%v want scaled to 500 t", c)
				}
			},
		},
		{
			name: "negative deposit",
			corrupt: func(ch *simtest.Chain, _ model.ID) {
				ch.State.Bodies[ch.PlanetB].MineralDeposits["Corbomite"] = -5
			},
			want: "invalid deposit Corbomite",
			check: func(t *testing.T, ch *simtest.Chain, _ model.ID) {
				if got := ch.State.Bodies[ch.PlanetB].MineralDeposits["Corbomite"]; got != 0 {
					t.Fatalf("deposit=%v", got)
				}
			},
		},
		{
			name: "one-way jump link",
			corrupt: func(ch *simtest.Chain, _ model.ID) {
				ch.State.JumpPoints[ch.JumpBA].LinkedJumpID = ch.JumpCB
			},
			want: "is not reciprocated",
			check: func(t *testing.T, ch *simtest.Chain, _ model.ID) {
				if ch.State.JumpPoints[ch.JumpBA].LinkedJumpID != model.InvalidID {
					t.Fatalf("broken link survived")
				}
			},
		},
		{
			name: "unsorted discovery list with dangling id",
			corrupt: func(ch *simtest.Chain, _ model.ID) {
				f := ch.State.Factions[ch.Terrans]
				f.DiscoveredSystems = []model.ID{ch.C, ch.A, 6000, ch.A, ch.B}
			},
			want: "discovered_systems references missing system 6000",
			check: func(t *testing.T, ch *simtest.Chain, _ model.ID) {
				got := ch.State.Factions[ch.Terrans].DiscoveredSystems
				if len(got) != 3 || got[0] != ch.A || got[1] != ch.B || got[2] != ch.C {
					t.Fatalf("discovered=%v", got)
				}
			},
		},
		{
			name: "fleet with missing member and leader",
			corrupt: func(ch *simtest.Chain, ship model.ID) {
				id := model.AllocateID(ch.State)
				ch.State.Fleets[id] = &model.Fleet{
					ID:           id,
					Name:         "Home Guard",
					FactionID:    ch.Terrans,
					LeaderShipID: 5555,
					ShipIDs:      []model.ID{5555, ship},
				}
			},
			want: "references missing ship 5555",
			check: func(t *testing.T, ch *simtest.Chain, ship model.ID) {
				for _, fl := range ch.State.Fleets {
					if len(fl.ShipIDs) != 1 || fl.LeaderShipID != ship {
						t.Fatalf("fleet=%+v", fl)
					}
				}
			},
		},
		{
			name: "colony queue entries",
			corrupt: func(ch *simtest.Chain, _ model.ID) {
				c := ch.State.Colonies[ch.HomeColony]
				c.ShipyardQueue = []model.BuildOrder{{DesignID: "no_such_hull", TonsRemaining: 10}, {DesignID: "freighter_alpha", TonsRemaining: 400}}
				c.ConstructionQueue = []model.InstallationBuildOrder{{InstallationID: "automated_mine", QuantityRemaining: 0}}
			},
			want: "references unknown design 'no_such_hull'",
			check: func(t *testing.T, ch *simtest.Chain, _ model.ID) {
				c := ch.State.Colonies[ch.HomeColony]
				if len(c.ShipyardQueue) != 1 || c.ShipyardQueue[0].DesignID != "freighter_alpha" || len(c.ConstructionQueue) != 0 {
					t.Fatalf("shipyard=%v construction=%v", c.ShipyardQueue, c.ConstructionQueue)
				}
			},
		},
		{
			name: "next id behind entities",
			corrupt: func(ch *simtest.Chain, _ model.ID) {
				ch.State.NextID = 3
			},
			want: "next_id 3 is not above",
			check: func(t *testing.T, ch *simtest.Chain, ship model.ID) {
				if ch.State.NextID <= ship {
					t.Fatalf("next_id=%d", ch.State.NextID)
				}
			},
		},
	}
	db := content.Default()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := simtest.NewChain()
			ship := simtest.AddShip(ch.State, ch.Terrans, ch.A, "freighter_alpha", model.Vec2{X: 100})
			tc.corrupt(ch, ship)

			errs := Validate(ch.State, db)
			if !hasLine(errs, tc.want) {
				t.Fatalf("problems=%v want a line containing %q", errs, tc.want)
			}
			rep := Fix(ch.State, db)
			if rep.Changes == 0 || len(rep.Actions) != rep.Changes {
				t.Fatalf("report=%+v", rep)
			}
			if errs := Validate(ch.State, db); len(errs) != 0 {
				t.Fatalf("problems after fix: %v", errs)
			}
			tc.check(t, ch, ship)

			if again := Fix(ch.State, db); again.Changes != 0 {
				t.Fatalf("second fix changed %d things: %v", again.Changes, again.Actions)
			}
		})
	}
}

func TestFix_KeepsSimulationRunning(t *testing.T) {
	ch := simtest.NewChain()
	ship := simtest.AddShip(ch.State, ch.Terrans, ch.A, "freighter_alpha", model.Vec2{X: 100})
	ch.State.Orders(ship).Queue = model.OrderList{&model.TravelViaJump{JumpPointID: 4242}}
	ch.State.Systems[ch.C].Bodies = append(ch.State.Systems[ch.C].Bodies, 4343)

	Fix(ch.State, content.Default())
	sim := simtest.NewSim(t, ch.State)
	sim.AdvanceDays(3)
	if errs := Validate(sim.State(), sim.Content()); len(errs) != 0 {
		t.Fatalf("problems after running: %v", errs)
	}
}
