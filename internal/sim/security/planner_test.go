package security

import (
	"errors"
	"math"
	"testing"

	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/simtest"
)

func chainPlanOptions(faction model.ID) Options {
	opt := DefaultOptions()
	opt.FactionID = faction
	opt.MaxLanes = 64
	opt.MinLaneVolume = 0
	opt.MaxResults = 16
	return opt
}

func TestCompute_HighPiracyEndpointLeads(t *testing.T) {
	ch := simtest.NewChain()
	ch.State.Colonies[ch.Outpost].PopulationMillions = 500
	sim := simtest.NewSim(t, ch.State)

	plan, err := Compute(sim, chainPlanOptions(ch.Terrans))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(plan.Systems) == 0 {
		t.Fatalf("no systems in plan: %q", plan.Message)
	}
	if got := plan.Systems[0].SystemID; got != ch.C {
		t.Fatalf("top system=%d want %d (C)", got, ch.C)
	}
	if !plan.Systems[0].HasOwnColony {
		t.Fatalf("C should be flagged as hosting our colony")
	}
	if len(plan.Corridors) == 0 || len(plan.Chokepoints) == 0 {
		t.Fatalf("corridors=%d chokepoints=%d", len(plan.Corridors), len(plan.Chokepoints))
	}
	route := plan.Corridors[0].RouteSystems
	if len(route) != 3 || route[1] != ch.B {
		t.Fatalf("corridor route=%v want through B", route)
	}
	for _, c := range plan.Chokepoints {
		if c.JumpAToB == model.InvalidID || c.JumpBToA == model.InvalidID {
			t.Fatalf("chokepoint %d-%d has no jump pair", c.SystemA, c.SystemB)
		}
	}

	if plan.Regions[0].RegionID != ch.RegionC {
		t.Fatalf("top region=%d want %d", plan.Regions[0].RegionID, ch.RegionC)
	}
	want := -10 * math.Log(0.25)
	if got := plan.Regions[0].AdditionalPatrolPower; math.Abs(got-want) > 1e-9 {
		t.Fatalf("additional patrol power=%v want %v", got, want)
	}
}

func TestCompute_Filters(t *testing.T) {
	cases := []struct {
		name  string
		setup func(ch *simtest.Chain) Options
		msg   string
	}{
		{
			name: "faction without colonies",
			setup: func(ch *simtest.Chain) Options {
				return chainPlanOptions(ch.Pirates)
			},
			msg: "No eligible trade lanes",
		},
		{
			name: "endpoint not discovered",
			setup: func(ch *simtest.Chain) Options {
				ch.State.Factions[ch.Terrans].DiscoveredSystems = []model.ID{ch.A, ch.B}
				return chainPlanOptions(ch.Terrans)
			},
			msg: "No eligible trade lanes",
		},
		{
			name: "volume floor",
			setup: func(ch *simtest.Chain) Options {
				opt := chainPlanOptions(ch.Terrans)
				opt.MinLaneVolume = 1
				return opt
			},
			msg: "No eligible trade lanes",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := simtest.NewChain()
			ch.State.Colonies[ch.Outpost].PopulationMillions = 500
			opt := tc.setup(ch)
			plan, err := Compute(simtest.NewSim(t, ch.State), opt)
			if err != nil {
				t.Fatalf("compute: %v", err)
			}
			if plan.Message != tc.msg || len(plan.Systems) != 0 {
				t.Fatalf("message=%q systems=%d", plan.Message, len(plan.Systems))
			}
		})
	}
}

func TestCompute_UnknownFaction(t *testing.T) {
	ch := simtest.NewChain()
	_, err := Compute(simtest.NewSim(t, ch.State), chainPlanOptions(9999))
	if !errors.Is(err, ErrUnknownFaction) {
		t.Fatalf("err=%v want ErrUnknownFaction", err)
	}
}

func TestSuppressionToPower(t *testing.T) {
	if got := suppressionToPower(0, 10); got != 0 {
		t.Fatalf("power(0)=%v", got)
	}
	if got := suppressionToPower(1, 10); math.IsInf(got, 0) || got <= 0 {
		t.Fatalf("power(1)=%v should be large and finite", got)
	}
}
