package engine_test

import (
	"math"
	"strings"
	"testing"

	"nebula4x.dev/internal/sim/engine"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/simtest"
	"nebula4x.dev/internal/sim/tuning"
)

// shipSim runs with the colony economy off so stockpiles only change
// through ship orders.
func shipSim(t *testing.T, st *model.GameState, edit func(*tuning.SimConfig)) *engine.Simulation {
	t.Helper()
	cfg := tuning.Defaults()
	cfg.EconomyEnabled = false
	if edit != nil {
		edit(&cfg)
	}
	return simtest.NewSimWith(t, st, cfg)
}

func near(a, b float64) bool { return math.Abs(a-b) <= 1e-6 }

func countEvents(st *model.GameState, substr string) int {
	n := 0
	for _, ev := range st.Events {
		if strings.Contains(ev.Message, substr) {
			n++
		}
	}
	return n
}

func TestShipOrders_CargoTransfers(t *testing.T) {
	cases := []struct {
		name     string
		stock    map[string]float64
		reserves map[string]float64
		cargo    map[string]float64
		queue    model.OrderList
		days     int
		wantShip map[string]float64
		wantCol  map[string]float64
		queueLen int
	}{
		{
			name:     "load any takes minerals in name order up to capacity",
			stock:    map[string]float64{"Sorium": 300, "Duranium": 100, "Corbomite": 150},
			reserves: map[string]float64{"Duranium": 40},
			queue:    model.OrderList{&model.LoadMineral{}},
			days:     1,
			wantShip: map[string]float64{"Corbomite": 150, "Duranium": 60, "Sorium": 290},
			wantCol:  map[string]float64{"Duranium": 40, "Sorium": 10},
		},
		{
			name:     "load one mineral keeps waiting while stock arrives",
			stock:    map[string]float64{"Duranium": 30, "Sorium": 5},
			queue:    model.OrderList{&model.LoadMineral{Mineral: "Duranium", Tons: 100}},
			days:     1,
			wantShip: map[string]float64{"Duranium": 30},
			wantCol:  map[string]float64{"Sorium": 5},
			queueLen: 1,
		},
		{
			name:     "load one mineral gives up once nothing moves",
			stock:    map[string]float64{"Duranium": 30},
			queue:    model.OrderList{&model.LoadMineral{Mineral: "Duranium", Tons: 100}},
			days:     2,
			wantShip: map[string]float64{"Duranium": 30},
			wantCol:  map[string]float64{},
		},
		{
			name:     "unload part of one mineral",
			stock:    map[string]float64{},
			cargo:    map[string]float64{"Duranium": 60, "Sorium": 5},
			queue:    model.OrderList{&model.UnloadMineral{Mineral: "Duranium", Tons: 25}},
			days:     1,
			wantShip: map[string]float64{"Duranium": 35, "Sorium": 5},
			wantCol:  map[string]float64{"Duranium": 25},
		},
		{
			name:     "unload any empties the hold",
			stock:    map[string]float64{"Duranium": 1},
			cargo:    map[string]float64{"Duranium": 60, "Sorium": 5},
			queue:    model.OrderList{&model.UnloadMineral{}},
			days:     1,
			wantShip: map[string]float64{},
			wantCol:  map[string]float64{"Duranium": 61, "Sorium": 5},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := simtest.NewChain()
			st := ch.State
			c := st.Colonies[ch.HomeColony]
			c.Minerals = tc.stock
			c.MineralReserves = tc.reserves
			ship := simtest.AddShip(st, ch.Terrans, ch.A, "freighter_alpha", model.Vec2{X: 100})
			st.Ships[ship].Cargo = tc.cargo
			for _, o := range tc.queue {
				switch v := o.(type) {
				case *model.LoadMineral:
					v.ColonyID = ch.HomeColony
				case *model.UnloadMineral:
					v.ColonyID = ch.HomeColony
				}
			}
			st.Orders(ship).Queue = tc.queue

			sim := shipSim(t, st, nil)
			sim.AdvanceDays(tc.days)

			sh := sim.State().Ships[ship]
			c = sim.State().Colonies[ch.HomeColony]
			if len(sh.Cargo) != len(tc.wantShip) {
				t.Fatalf("cargo=%v want %v", sh.Cargo, tc.wantShip)
			}
			for k, v := range tc.wantShip {
				if !near(sh.Cargo[k], v) {
					t.Fatalf("cargo=%v want %v", sh.Cargo, tc.wantShip)
				}
			}
			if len(c.Minerals) != len(tc.wantCol) {
				t.Fatalf("colony=%v want %v", c.Minerals, tc.wantCol)
			}
			for k, v := range tc.wantCol {
				if !near(c.Minerals[k], v) {
					t.Fatalf("colony=%v want %v", c.Minerals, tc.wantCol)
				}
			}
			if got := len(sim.State().ShipOrders[ship].Queue); got != tc.queueLen {
				t.Fatalf("queue len=%d want %d", got, tc.queueLen)
			}
		})
	}
}

func TestShipOrders_ScrapRefundsAndErases(t *testing.T) {
	ch := simtest.NewChain()
	st := ch.State
	ship := simtest.AddShip(st, ch.Terrans, ch.A, "freighter_alpha", model.Vec2{X: 100})
	st.Ships[ship].Cargo = map[string]float64{"Sorium": 20}
	st.Ships[ship].FuelTons = 150
	st.Orders(ship).Queue = model.OrderList{&model.ScrapShip{ColonyID: ch.HomeColony}}

	sim := shipSim(t, st, nil)
	sim.AdvanceDays(1)

	st = sim.State()
	if st.Ships[ship] != nil {
		t.Fatalf("scrapped ship still present")
	}
	if _, ok := st.ShipOrders[ship]; ok {
		t.Fatalf("scrapped ship kept its orders")
	}
	for _, id := range st.Systems[ch.A].Ships {
		if id == ship {
			t.Fatalf("system still lists scrapped ship")
		}
	}
	// 400 t hull x shipyard cost per ton x 0.5 refund.
	want := map[string]float64{"Sorium": 20, "Fuel": 150, "Duranium": 200, "Neutronium": 20}
	got := st.Colonies[ch.HomeColony].Minerals
	for k, v := range want {
		if !near(got[k], v) {
			t.Fatalf("colony minerals=%v want %v", got, want)
		}
	}
	ev, ok := simtest.LastEvent(st, "Ship scrapped at Alpha Prime: freighter_alpha")
	if !ok || !strings.Contains(ev.Message, "Duranium 200.00") || ev.ColonyID != ch.HomeColony {
		t.Fatalf("scrap event=%+v found=%v", ev, ok)
	}
}

func TestShipOrders_Colonize(t *testing.T) {
	cases := []struct {
		name   string
		design string
		system func(ch *simtest.Chain) model.ID
		target func(ch *simtest.Chain) model.ID
		pos    model.Vec2
		event  string
		ok     bool
	}{
		{
			name:   "founds a colony and consumes the ship",
			design: "colony_ship_mk1",
			system: func(ch *simtest.Chain) model.ID { return ch.B },
			target: func(ch *simtest.Chain) model.ID { return ch.PlanetB },
			pos:    model.Vec2{X: 120},
			event:  "Colony established: Beta I Colony on Beta I (population 50M)",
			ok:     true,
		},
		{
			name:   "star is not colonizable",
			design: "colony_ship_mk1",
			system: func(ch *simtest.Chain) model.ID { return ch.B },
			target: func(ch *simtest.Chain) model.ID { return ch.State.Systems[ch.B].Bodies[0] },
			event:  "Colonization failed: target body is not colonizable: Beta",
		},
		{
			name:   "body already has a colony",
			design: "colony_ship_mk1",
			system: func(ch *simtest.Chain) model.ID { return ch.A },
			target: func(ch *simtest.Chain) model.ID { return ch.PlanetA },
			pos:    model.Vec2{X: 100},
			event:  "Colonization aborted: Alpha I already has a colony (Alpha Prime)",
		},
		{
			name:   "ship without colony capacity",
			design: "freighter_alpha",
			system: func(ch *simtest.Chain) model.ID { return ch.B },
			target: func(ch *simtest.Chain) model.ID { return ch.PlanetB },
			pos:    model.Vec2{X: 120},
			event:  "Colonization failed: ship has no colony module capacity: freighter_alpha",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := simtest.NewChain()
			st := ch.State
			body := tc.target(ch)
			ship := simtest.AddShip(st, ch.Terrans, tc.system(ch), tc.design, tc.pos)
			st.Ships[ship].Cargo = map[string]float64{"Duranium": 10}
			st.Orders(ship).Queue = model.OrderList{&model.ColonizeBody{BodyID: body}}
			colonies := len(st.Colonies)

			sim := shipSim(t, st, nil)
			sim.AdvanceDays(1)
			st = sim.State()

			if _, found := simtest.LastEvent(st, tc.event); !found {
				t.Fatalf("missing event %q; events=%v", tc.event, st.Events)
			}
			if !tc.ok {
				if st.Ships[ship] == nil || len(st.ShipOrders[ship].Queue) != 0 {
					t.Fatalf("failed colonization should keep the ship and drop the order")
				}
				if len(st.Colonies) != colonies {
					t.Fatalf("colonies=%d want %d", len(st.Colonies), colonies)
				}
				return
			}
			if st.Ships[ship] != nil {
				t.Fatalf("colony ship survived")
			}
			c := st.ColonyOnBody(body)
			if c == nil || c.FactionID != ch.Terrans || !near(c.PopulationMillions, 50) || !near(c.Minerals["Duranium"], 10) {
				t.Fatalf("colony=%+v", c)
			}
		})
	}
}

func TestShipOrders_CoordinatedJumpWaitsForFleet(t *testing.T) {
	cases := []struct {
		name        string
		coordinated bool
		leadJumpDay int
	}{
		{"coordinated", true, 3},
		{"independent", false, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := simtest.NewChain()
			st := ch.State
			lead := simtest.AddShip(st, ch.Terrans, ch.A, "freighter_alpha", model.Vec2{X: 300})
			trail := simtest.AddShip(st, ch.Terrans, ch.A, "freighter_alpha", model.Vec2{X: 200})

			sim := shipSim(t, st, func(c *tuning.SimConfig) { c.FleetCoordinatedJumps = tc.coordinated })
			if _, err := sim.CreateFleet(ch.Terrans, "Convoy", []model.ID{lead, trail}); err != nil {
				t.Fatalf("create fleet: %v", err)
			}
			for _, id := range []model.ID{lead, trail} {
				if err := sim.IssueOrder(id, &model.TravelViaJump{JumpPointID: ch.JumpAB}); err != nil {
					t.Fatalf("issue: %v", err)
				}
			}

			// 800 km/s is 69.12 Mkm/day: the trailing ship needs two days.
			for day := 1; day <= 3; day++ {
				sim.AdvanceDays(1)
				sys := sim.State().Ships[lead].SystemID
				if wantB := day >= tc.leadJumpDay; (sys == ch.B) != wantB {
					t.Fatalf("day %d: lead in system %d", day, sys)
				}
			}
			if sys := sim.State().Ships[trail].SystemID; sys != ch.B {
				t.Fatalf("trail in system %d want %d", sys, ch.B)
			}
		})
	}
}

func TestShipOrders_Timers(t *testing.T) {
	cases := []struct {
		name  string
		queue func(ch *simtest.Chain) model.OrderList
		days  int
		check func(t *testing.T, sh *model.Ship, q model.OrderList)
	}{
		{
			name:  "wait holds the next order",
			queue: func(*simtest.Chain) model.OrderList { return model.OrderList{&model.WaitDays{DaysRemaining: 2}, &model.MoveToPoint{Target: model.Vec2{X: 110}}} },
			days:  2,
			check: func(t *testing.T, sh *model.Ship, q model.OrderList) {
				if sh.PositionMkm.X != 100 || len(q) != 1 || q[0].Kind() != model.OrderMoveToPoint {
					t.Fatalf("pos=%v queue=%v", sh.PositionMkm, q)
				}
			},
		},
		{
			name:  "wait then move",
			queue: func(*simtest.Chain) model.OrderList { return model.OrderList{&model.WaitDays{DaysRemaining: 2}, &model.MoveToPoint{Target: model.Vec2{X: 110}}} },
			days:  3,
			check: func(t *testing.T, sh *model.Ship, q model.OrderList) {
				if !near(sh.PositionMkm.X, 110) || len(q) != 0 {
					t.Fatalf("pos=%v queue=%v", sh.PositionMkm, q)
				}
			},
		},
		{
			name:  "orbit counts down",
			queue: func(ch *simtest.Chain) model.OrderList { return model.OrderList{&model.OrbitBody{BodyID: ch.PlanetA, DurationDays: 2}} },
			days:  1,
			check: func(t *testing.T, _ *model.Ship, q model.OrderList) {
				if len(q) != 1 || q[0].(*model.OrbitBody).DurationDays != 1 {
					t.Fatalf("queue=%v", q)
				}
			},
		},
		{
			name:  "orbit finishes",
			queue: func(ch *simtest.Chain) model.OrderList { return model.OrderList{&model.OrbitBody{BodyID: ch.PlanetA, DurationDays: 2}} },
			days:  2,
			check: func(t *testing.T, _ *model.Ship, q model.OrderList) {
				if len(q) != 0 {
					t.Fatalf("queue=%v", q)
				}
			},
		},
		{
			name:  "indefinite orbit never finishes",
			queue: func(ch *simtest.Chain) model.OrderList { return model.OrderList{&model.OrbitBody{BodyID: ch.PlanetA, DurationDays: -1}} },
			days:  5,
			check: func(t *testing.T, _ *model.Ship, q model.OrderList) {
				if len(q) != 1 {
					t.Fatalf("queue=%v", q)
				}
			},
		},
		{
			name: "order with a stale reference is dropped",
			queue: func(ch *simtest.Chain) model.OrderList {
				return model.OrderList{&model.MoveToBody{BodyID: ch.PlanetB}, &model.WaitDays{DaysRemaining: 5}}
			},
			days: 1,
			check: func(t *testing.T, sh *model.Ship, q model.OrderList) {
				if len(q) != 1 || q[0].(*model.WaitDays).DaysRemaining != 5 || sh.PositionMkm.X != 100 {
					t.Fatalf("pos=%v queue=%v", sh.PositionMkm, q)
				}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := simtest.NewChain()
			st := ch.State
			ship := simtest.AddShip(st, ch.Terrans, ch.A, "freighter_alpha", model.Vec2{X: 100})
			st.Orders(ship).Queue = tc.queue(ch)

			sim := shipSim(t, st, nil)
			sim.AdvanceDays(tc.days)
			tc.check(t, sim.State().Ships[ship], sim.State().ShipOrders[ship].Queue)
		})
	}
}

func TestShipOrders_AttackWithoutContactIsDropped(t *testing.T) {
	ch := simtest.NewChain()
	st := ch.State
	escort := simtest.AddShip(st, ch.Terrans, ch.A, "escort_gamma", model.Vec2{})
	raider := simtest.AddShip(st, ch.Pirates, ch.C, "pirate_raider", model.Vec2{X: 40})
	st.Orders(escort).Queue = model.OrderList{&model.AttackShip{TargetShipID: raider}}

	sim := shipSim(t, st, nil)
	sim.AdvanceDays(1)

	sh := sim.State().Ships[escort]
	if q := sim.State().ShipOrders[escort].Queue; len(q) != 0 {
		t.Fatalf("queue=%v want attack dropped", q)
	}
	if sh.PositionMkm != (model.Vec2{}) || sh.SystemID != ch.A {
		t.Fatalf("escort moved to %v in %d", sh.PositionMkm, sh.SystemID)
	}
}

func TestShipOrders_FuelExhaustionStallsOnce(t *testing.T) {
	ch := simtest.NewChain()
	st := ch.State
	ship := simtest.AddShip(st, ch.Terrans, ch.A, "freighter_alpha", model.Vec2{X: 100})
	st.Ships[ship].FuelTons = 10 // 1 t per Mkm
	st.Orders(ship).Queue = model.OrderList{&model.MoveToPoint{Target: model.Vec2{X: 300}}}

	sim := shipSim(t, st, nil)
	sim.AdvanceDays(3)

	sh := sim.State().Ships[ship]
	if !near(sh.PositionMkm.X, 110) || sh.FuelTons != 0 {
		t.Fatalf("pos=%v fuel=%v want stalled at 110 with empty tanks", sh.PositionMkm, sh.FuelTons)
	}
	if q := sim.State().ShipOrders[ship].Queue; len(q) != 1 {
		t.Fatalf("queue=%v want move still pending", q)
	}
	if n := countEvents(sim.State(), "has run out of Fuel in Alpha"); n != 1 {
		t.Fatalf("fuel warnings=%d want 1", n)
	}
	ev, _ := simtest.LastEvent(sim.State(), "has run out of Fuel")
	if ev.Level != model.EventWarn || ev.ShipID != ship {
		t.Fatalf("event=%+v", ev)
	}
}
