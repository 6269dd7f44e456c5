package scenario

import (
	"testing"

	"nebula4x.dev/internal/sim/digest"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/simtest"
)

func connected(st *model.GameState) bool {
	if len(st.Systems) == 0 {
		return true
	}
	start := st.SelectedSystem
	seen := map[model.ID]bool{start: true}
	queue := []model.ID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, jid := range st.Systems[cur].JumpPoints {
			next := st.JumpPoints[st.JumpPoints[jid].LinkedJumpID].SystemID
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return len(seen) == len(st.Systems)
}

func TestSol(t *testing.T) {
	st := Sol()
	if len(st.Systems) != 2 || len(st.Ships) != 5 || len(st.Colonies) != 1 {
		t.Fatalf("systems=%d ships=%d colonies=%d", len(st.Systems), len(st.Ships), len(st.Colonies))
	}
	if !connected(st) {
		t.Fatalf("Sol and Alpha Centauri are not linked")
	}
	for _, id := range model.SortedKeys(st.JumpPoints) {
		jp := st.JumpPoints[id]
		if back := st.JumpPoints[jp.LinkedJumpID]; back == nil || back.LinkedJumpID != id {
			t.Fatalf("jump %d is not linked both ways", id)
		}
	}

	sim := simtest.NewSim(t, st)
	sim.AdvanceDays(30)
	if got := sim.State().Date.DaysSinceEpoch(); got != 30 {
		t.Fatalf("day=%d want 30", got)
	}
	terrans := sim.State().Colonies[model.SortedKeys(sim.State().Colonies)[0]].FactionID
	own := 0
	for _, sh := range sim.State().Ships {
		if sh.FactionID == terrans {
			own++
		}
	}
	if own != 3 {
		t.Fatalf("terran ships=%d want 3", own)
	}
}

func TestRandom_Deterministic(t *testing.T) {
	a := digest.GameState(Random(42, 12), digest.DefaultOptions())
	b := digest.GameState(Random(42, 12), digest.DefaultOptions())
	if a != b {
		t.Fatalf("same seed produced %s and %s", digest.Hex(a), digest.Hex(b))
	}
	if c := digest.GameState(Random(43, 12), digest.DefaultOptions()); c == a {
		t.Fatalf("different seeds produced the same galaxy")
	}
}

func TestRandom_Shape(t *testing.T) {
	cases := []struct {
		seed    int64
		systems int
	}{
		{1, 2},
		{7, 12},
		{99, 30},
	}
	for _, tc := range cases {
		st := Random(tc.seed, tc.systems)
		if len(st.Systems) != tc.systems {
			t.Fatalf("seed %d: systems=%d want %d", tc.seed, len(st.Systems), tc.systems)
		}
		if !connected(st) {
			t.Fatalf("seed %d: jump network is not connected", tc.seed)
		}
		if len(st.Colonies) != 1 {
			t.Fatalf("seed %d: colonies=%d want 1", tc.seed, len(st.Colonies))
		}
		for _, id := range model.SortedKeys(st.Systems) {
			sys := st.Systems[id]
			if st.Regions[sys.RegionID] == nil {
				t.Fatalf("seed %d: system %s has no region", tc.seed, sys.Name)
			}
			if sys.NebulaDensity < 0 || sys.NebulaDensity > 1 {
				t.Fatalf("seed %d: nebula density %v out of range", tc.seed, sys.NebulaDensity)
			}
		}
	}
}

func TestJumpEdges_NoCrossings(t *testing.T) {
	st := Random(5, 24)
	type seg struct{ a, b model.Vec2 }
	var segs []seg
	seen := map[[2]model.ID]bool{}
	for _, id := range model.SortedKeys(st.JumpPoints) {
		jp := st.JumpPoints[id]
		other := st.JumpPoints[jp.LinkedJumpID]
		k := [2]model.ID{min(jp.SystemID, other.SystemID), max(jp.SystemID, other.SystemID)}
		if seen[k] {
			continue
		}
		seen[k] = true
		segs = append(segs, seg{st.Systems[k[0]].GalaxyPos, st.Systems[k[1]].GalaxyPos})
	}
	for i := range segs {
		for j := i + 1; j < len(segs); j++ {
			if crosses(segs[i].a, segs[i].b, segs[j].a, segs[j].b) {
				t.Fatalf("links %d and %d cross", i, j)
			}
		}
	}
}

func TestRandom_Runs(t *testing.T) {
	sim := simtest.NewSim(t, Random(11, 8))
	sim.AdvanceDays(10)
	if got := sim.State().Date.DaysSinceEpoch(); got != 10 {
		t.Fatalf("day=%d want 10", got)
	}
}
