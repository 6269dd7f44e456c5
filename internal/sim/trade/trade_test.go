package trade

import (
	"math"
	"reflect"
	"testing"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/simtest"
)

func TestKindForResource(t *testing.T) {
	db := content.Default()
	cases := []struct {
		id   string
		want GoodKind
	}{
		{"Duranium", RawMetals},
		{"Corbomite", RawMinerals},
		{"Sorium", Volatiles},
		{"Uridium", Exotics},
		{"Fuel", Fuel},
		{"Munitions", Munitions},
		{"Metals", ProcessedMetals},
		{"Unobtainium", RawMinerals},
	}
	for _, tc := range cases {
		if got := kindForResource(db, tc.id); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.id, got, tc.want)
		}
	}
}

func TestCompute_ChainHubAndLanes(t *testing.T) {
	ch := simtest.NewChain()
	net := Compute(ch.State, content.Default(), DefaultOptions())

	if len(net.Nodes) != 3 {
		t.Fatalf("nodes=%d want 3", len(net.Nodes))
	}
	b, ok := net.NodeFor(ch.B)
	if !ok {
		t.Fatalf("missing node for B")
	}
	if math.Abs(b.HubScore-1) > 1e-9 {
		t.Fatalf("B hub=%v want 1", b.HubScore)
	}
	a, _ := net.NodeFor(ch.A)
	if math.Abs(a.HubScore-0.3) > 1e-9 {
		t.Fatalf("A hub=%v want 0.3", a.HubScore)
	}
	for _, n := range net.Nodes {
		if n.MarketSize <= 0 {
			t.Fatalf("system %d has no market", n.SystemID)
		}
		for k := range n.Balance {
			if math.Abs(n.Balance[k]-(n.Supply[k]-n.Demand[k])) > 1e-12 {
				t.Fatalf("balance mismatch for %v", GoodKind(k))
			}
		}
	}

	if len(net.Lanes) == 0 {
		t.Fatalf("expected at least one lane")
	}
	for i, l := range net.Lanes {
		if l.FromSystemID == l.ToSystemID {
			t.Fatalf("lane %d is a self loop", i)
		}
		if len(l.TopFlows) == 0 || len(l.TopFlows) > 3 {
			t.Fatalf("lane %d has %d flows", i, len(l.TopFlows))
		}
		if i > 0 && l.TotalVolume > net.Lanes[i-1].TotalVolume+1e-12 {
			t.Fatalf("lanes not sorted by volume at %d", i)
		}
	}

	// The pirate-heavy end of the chain wants munitions from the core.
	found := false
	for _, l := range net.Lanes {
		if l.FromSystemID != ch.A || l.ToSystemID != ch.C {
			continue
		}
		for _, f := range l.TopFlows {
			found = found || f.Good == Munitions
		}
	}
	if !found {
		t.Fatalf("no munitions flow from A to C: %+v", net.Lanes)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	ch := simtest.NewChain()
	first := Compute(ch.State, content.Default(), DefaultOptions())
	second := Compute(ch.State, content.Default(), DefaultOptions())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("two runs differ")
	}
}

func TestCompute_Options(t *testing.T) {
	ch := simtest.NewChain()
	isolated := simtest.AddSystem(ch.State, "Delta", model.Vec2{X: 50, Y: 50}, model.InvalidID)

	opt := DefaultOptions()
	net := Compute(ch.State, content.Default(), opt)
	if len(net.Nodes) != 4 {
		t.Fatalf("nodes=%d want 4", len(net.Nodes))
	}
	for _, l := range net.Lanes {
		if l.FromSystemID == isolated || l.ToSystemID == isolated {
			t.Fatalf("unreachable system got a lane: %+v", l)
		}
	}

	opt.MaxLanes = 0
	if net := Compute(ch.State, content.Default(), opt); len(net.Lanes) != 0 || len(net.Nodes) != 4 {
		t.Fatalf("max lanes 0: nodes=%d lanes=%d", len(net.Nodes), len(net.Lanes))
	}

	fresh := simtest.NewChain()
	opt = DefaultOptions()
	opt.MaxLanes = 1
	opt.MaxGoodsPerLane = 1
	net = Compute(fresh.State, content.Default(), opt)
	if len(net.Lanes) != 1 || len(net.Lanes[0].TopFlows) != 1 {
		t.Fatalf("caps not applied: %+v", net.Lanes)
	}

	opt = DefaultOptions()
	opt.IncludeUncolonizedMarkets = false
	net = Compute(ch.State, content.Default(), opt)
	if n, _ := net.NodeFor(ch.B); n.MarketSize != 0 {
		t.Fatalf("uncolonized B market=%v want 0", n.MarketSize)
	}
	if n, _ := net.NodeFor(ch.A); n.MarketSize <= 0 {
		t.Fatalf("colonized A lost its market")
	}
}

type fakeSource struct {
	st  *model.GameState
	gen uint64
}

func (f *fakeSource) State() *model.GameState   { return f.st }
func (f *fakeSource) Content() *content.DB      { return content.Default() }
func (f *fakeSource) StateGeneration() uint64   { return f.gen }
func (f *fakeSource) ContentGeneration() uint64 { return 0 }

func TestCache_KeyedOnGeneration(t *testing.T) {
	src := &fakeSource{st: simtest.NewChain().State}
	var c Cache
	if n := c.Get(src, DefaultOptions()); len(n.Nodes) != 3 {
		t.Fatalf("nodes=%d want 3", len(n.Nodes))
	}
	src.st = model.NewGameState()
	if n := c.Get(src, DefaultOptions()); len(n.Nodes) != 3 {
		t.Fatalf("same generation should hit the cache, got %d nodes", len(n.Nodes))
	}
	src.gen++
	if n := c.Get(src, DefaultOptions()); len(n.Nodes) != 0 {
		t.Fatalf("new generation should recompute, got %d nodes", len(n.Nodes))
	}
}
