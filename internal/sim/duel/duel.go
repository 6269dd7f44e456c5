// Package duel pits two ship designs against each other in a one-system
// sandbox and aggregates the outcome over several seeded runs.
package duel

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/digest"
	"nebula4x.dev/internal/sim/engine"
	"nebula4x.dev/internal/sim/mathx"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/tuning"
)

const ResultType = "nebula4x_duel_result_v1"

// Side is one force: Count ships of DesignID.
type Side struct {
	DesignID string `json:"design_id"`
	Count    int    `json:"count"`
	Label    string `json:"label"`
}

func (s Side) name(fallback string) string {
	if s.Label == "" {
		return fallback
	}
	return s.Label
}

type Options struct {
	MaxDays int `json:"max_days"`
	// InitialSeparationMkm <= 0 picks 80% of the shorter side's engagement range.
	InitialSeparationMkm float64 `json:"initial_separation_mkm"`
	PositionJitterMkm    float64 `json:"position_jitter_mkm"`
	Runs                 int     `json:"runs"`
	Seed                 uint32  `json:"seed"`
	IssueAttackOrders    bool    `json:"issue_attack_orders"`
	IncludeFinalDigest   bool    `json:"include_final_state_digest"`

	Logger *slog.Logger `json:"-"`
}

func DefaultOptions() Options {
	return Options{
		MaxDays:              200,
		InitialSeparationMkm: -1,
		Runs:                 1,
		Seed:                 1,
		IssueAttackOrders:    true,
		IncludeFinalDigest:   true,
	}
}

type RunResult struct {
	RunIndex      int     `json:"run_index"`
	Seed          uint32  `json:"seed"`
	DaysSimulated int     `json:"days_simulated"`
	Winner        string  `json:"winner"` // "A", "B" or "Draw"
	ASurvivors    int     `json:"a_survivors"`
	BSurvivors    int     `json:"b_survivors"`
	ATotalHP      float64 `json:"a_total_hp"`
	BTotalHP      float64 `json:"b_total_hp"`
	FinalDigest   string  `json:"final_state_digest_hex"`
}

type Aggregate struct {
	AWins         int     `json:"a_wins"`
	BWins         int     `json:"b_wins"`
	Draws         int     `json:"draws"`
	AWinRate      float64 `json:"a_win_rate"`
	BWinRate      float64 `json:"b_win_rate"`
	DrawRate      float64 `json:"draw_rate"`
	AvgDays       float64 `json:"avg_days"`
	AvgASurvivors float64 `json:"avg_a_survivors"`
	AvgBSurvivors float64 `json:"avg_b_survivors"`
}

type Result struct {
	Type      string      `json:"type"`
	A         Side        `json:"a"`
	B         Side        `json:"b"`
	Options   Options     `json:"options"`
	Aggregate Aggregate   `json:"aggregate"`
	Runs      []RunResult `json:"runs"`
}

// JSON renders the result with two-space indentation.
func (r Result) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func engagementRange(d *content.ShipDesign) float64 {
	if d == nil {
		return 0
	}
	return math.Max(math.Max(0, d.WeaponRangeMkm), math.Max(0, d.MissileRangeMkm))
}

func defaultSeparation(da, db *content.ShipDesign) float64 {
	ra, rb := engagementRange(da), engagementRange(db)
	r := ra
	switch {
	case ra <= 1e-12:
		r = rb
	case rb > 1e-12:
		r = math.Min(ra, rb)
	}
	if r <= 1e-6 {
		r = 1
	}
	return math.Max(0.01, r*0.8)
}

type spawn struct {
	factionA, factionB model.ID
	shipsA, shipsB     []model.ID
}

const lineSpacingMkm = 0.05

func buildState(a, b Side, sep, jitter float64, attack bool, rng *mathx.Rand) (*model.GameState, spawn) {
	st := model.NewGameState()
	sys := &model.StarSystem{ID: model.AllocateID(st), Name: "Duel System"}
	st.Systems[sys.ID] = sys

	var sp spawn
	sp.factionA = model.AllocateID(st)
	sp.factionB = model.AllocateID(st)
	st.Factions[sp.factionA] = &model.Faction{
		ID: sp.factionA, Name: a.name("A"), Control: model.ControlPlayer,
		Relations: map[model.ID]model.DiplomacyStatus{sp.factionB: model.Hostile},
	}
	st.Factions[sp.factionB] = &model.Faction{
		ID: sp.factionB, Name: b.name("B"), Control: model.ControlPlayer,
		Relations: map[model.ID]model.DiplomacyStatus{sp.factionA: model.Hostile},
	}

	place := func(fid model.ID, side Side, label string, x float64) []model.ID {
		n := max(0, side.Count)
		ids := make([]model.ID, 0, n)
		for i := 0; i < n; i++ {
			pos := model.Vec2{X: x, Y: (float64(i) - float64(n)*0.5) * lineSpacingMkm}
			if jitter > 1e-12 {
				pos.X += rng.Range(-jitter, jitter)
				pos.Y += rng.Range(-jitter, jitter)
			}
			sh := model.NewShip()
			sh.ID = model.AllocateID(st)
			sh.Name = label + " " + strconv.Itoa(i+1)
			sh.FactionID = fid
			sh.SystemID = sys.ID
			sh.DesignID = side.DesignID
			sh.PositionMkm = pos
			st.Ships[sh.ID] = &sh
			st.Orders(sh.ID)
			sys.Ships = append(sys.Ships, sh.ID)
			ids = append(ids, sh.ID)
		}
		return ids
	}
	sp.shipsA = place(sp.factionA, a, a.name("A"), -sep*0.5)
	sp.shipsB = place(sp.factionB, b, b.name("B"), sep*0.5)

	if attack {
		order := func(ships, targets []model.ID) {
			if len(targets) == 0 {
				return
			}
			for _, id := range ships {
				so := st.Orders(id)
				so.Queue = append(so.Queue, &model.AttackShip{TargetShipID: targets[0]})
			}
		}
		order(sp.shipsA, sp.shipsB)
		order(sp.shipsB, sp.shipsA)
	}
	return st, sp
}

func sideTotals(st *model.GameState, fid model.ID) (ships int, hp float64) {
	for _, id := range model.SortedKeys(st.Ships) {
		sh := st.Ships[id]
		if sh.FactionID != fid || sh.HP <= 0 {
			continue
		}
		ships++
		hp += sh.HP
	}
	return ships, hp
}

// Run plays opt.Runs duels on a private sandbox simulation. Each run draws
// its own seed from a splitmix64 stream seeded with opt.Seed.
func Run(db *content.DB, cfg tuning.SimConfig, a, b Side, opt Options) (Result, error) {
	out := Result{Type: ResultType, A: a, B: b}
	if a.DesignID == "" || b.DesignID == "" {
		return out, fmt.Errorf("duel requires non-empty design ids for both sides")
	}
	sim := engine.New(db, cfg, engine.Options{Logger: opt.Logger})
	da, dbDesign := sim.FindDesign(a.DesignID), sim.FindDesign(b.DesignID)
	if da == nil {
		return out, fmt.Errorf("design not found for side A: %q", a.DesignID)
	}
	if dbDesign == nil {
		return out, fmt.Errorf("design not found for side B: %q", b.DesignID)
	}

	opt.MaxDays = max(0, opt.MaxDays)
	opt.Runs = max(1, opt.Runs)
	opt.PositionJitterMkm = math.Max(0, opt.PositionJitterMkm)
	out.Options = opt

	sep := opt.InitialSeparationMkm
	if !(sep > 0) {
		sep = defaultSeparation(da, dbDesign)
	}

	seeds := mathx.NewRand(uint64(opt.Seed))
	var sumDays, sumA, sumB float64
	for run := 0; run < opt.Runs; run++ {
		runSeed := uint32(seeds.Uint64())
		st, sp := buildState(a, b, sep, opt.PositionJitterMkm, opt.IssueAttackOrders, mathx.NewRand(uint64(runSeed)))
		sim.LoadGame(st)

		days := 0
		for days < opt.MaxDays {
			na, _ := sideTotals(sim.State(), sp.factionA)
			nb, _ := sideTotals(sim.State(), sp.factionB)
			if na == 0 || nb == 0 {
				break
			}
			sim.AdvanceDays(1)
			days++
		}

		rr := RunResult{RunIndex: run, Seed: runSeed, DaysSimulated: days}
		rr.ASurvivors, rr.ATotalHP = sideTotals(sim.State(), sp.factionA)
		rr.BSurvivors, rr.BTotalHP = sideTotals(sim.State(), sp.factionB)
		switch {
		case rr.ASurvivors > 0 && rr.BSurvivors == 0:
			rr.Winner = "A"
			out.Aggregate.AWins++
		case rr.BSurvivors > 0 && rr.ASurvivors == 0:
			rr.Winner = "B"
			out.Aggregate.BWins++
		default:
			rr.Winner = "Draw"
			out.Aggregate.Draws++
		}
		if opt.IncludeFinalDigest {
			dopt := digest.DefaultOptions()
			dopt.IncludeUIState = false
			rr.FinalDigest = "0x" + digest.Hex(digest.GameState(sim.State(), dopt))
		}
		sumDays += float64(days)
		sumA += float64(rr.ASurvivors)
		sumB += float64(rr.BSurvivors)
		out.Runs = append(out.Runs, rr)
	}

	n := float64(opt.Runs)
	agg := &out.Aggregate
	agg.AWinRate = float64(agg.AWins) / n
	agg.BWinRate = float64(agg.BWins) / n
	agg.DrawRate = float64(agg.Draws) / n
	agg.AvgDays = sumDays / n
	agg.AvgASurvivors = sumA / n
	agg.AvgBSurvivors = sumB / n
	return out, nil
}
