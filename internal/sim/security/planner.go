// Package security scores where a faction's trade is exposed to piracy and
// disruption: the systems and regions that need patrols, the busiest
// corridors and the jump links they funnel through.
package security

import (
	"errors"
	"math"
	"sort"

	"nebula4x.dev/internal/sim/engine"
	"nebula4x.dev/internal/sim/mathx"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/trade"
)

var ErrUnknownFaction = errors.New("unknown faction")

type Options struct {
	// InvalidID analyses every lane regardless of ownership.
	FactionID model.ID `json:"faction_id"`

	RestrictToDiscovered      bool `json:"restrict_to_discovered"`
	RequireOwnColonyEndpoints bool `json:"require_own_colony_endpoints"`

	MaxLanes      int     `json:"max_lanes"`
	MinLaneVolume float64 `json:"min_lane_volume"`

	// need ~= volume_share * (0.20 + RiskWeight*risk)
	RiskWeight      float64 `json:"risk_weight"`
	OwnColonyWeight float64 `json:"own_colony_weight"`

	DesiredRegionSuppression float64 `json:"desired_region_suppression"`
	PlanningSpeedKmS         float64 `json:"planning_speed_km_s"`
	MaxResults               int     `json:"max_results"`
}

func DefaultOptions() Options {
	return Options{
		RestrictToDiscovered:      true,
		RequireOwnColonyEndpoints: true,
		MaxLanes:                  48,
		MinLaneVolume:             1,
		RiskWeight:                1.2,
		OwnColonyWeight:           1.5,
		DesiredRegionSuppression:  0.75,
		PlanningSpeedKmS:          1000,
		MaxResults:                32,
	}
}

type SystemNeed struct {
	SystemID        model.ID `json:"system_id"`
	RegionID        model.ID `json:"region_id"`
	Need            float64  `json:"need"`
	TradeThroughput float64  `json:"trade_throughput"`

	PiracyRisk           float64 `json:"piracy_risk"`
	BlockadePressure     float64 `json:"blockade_pressure"`
	ShippingLossPressure float64 `json:"shipping_loss_pressure"`
	EndpointRisk         float64 `json:"endpoint_risk"`

	HasOwnColony bool `json:"has_own_colony"`
}

type RegionNeed struct {
	RegionID model.ID `json:"region_id"`
	Need     float64  `json:"need"`

	PirateRisk          float64 `json:"pirate_risk"`
	PirateSuppression   float64 `json:"pirate_suppression"`
	EffectivePiracyRisk float64 `json:"effective_piracy_risk"`

	// suppression = 1 - exp(-power/scale)
	ImpliedPatrolPower    float64 `json:"implied_patrol_power"`
	DesiredPatrolPower    float64 `json:"desired_patrol_power"`
	AdditionalPatrolPower float64 `json:"additional_patrol_power"`

	RepresentativeSystemID   model.ID `json:"representative_system_id"`
	RepresentativeSystemNeed float64  `json:"representative_system_need"`
}

type Corridor struct {
	FromSystemID model.ID     `json:"from_system_id"`
	ToSystemID   model.ID     `json:"to_system_id"`
	Volume       float64      `json:"volume"`
	AvgRisk      float64      `json:"avg_risk"`
	MaxRisk      float64      `json:"max_risk"`
	RouteSystems []model.ID   `json:"route_systems"`
	TopFlows     []trade.Flow `json:"top_flows"`
}

type Chokepoint struct {
	SystemA model.ID `json:"system_a_id"`
	SystemB model.ID `json:"system_b_id"`
	Traffic float64  `json:"traffic"`
	AvgRisk float64  `json:"avg_risk"`
	MaxRisk float64  `json:"max_risk"`

	JumpAToB model.ID `json:"jump_a_to_b"`
	JumpBToA model.ID `json:"jump_b_to_a"`
}

type Plan struct {
	Truncated bool   `json:"truncated"`
	Message   string `json:"message"`

	Regions     []RegionNeed `json:"top_regions"`
	Systems     []SystemNeed `json:"top_systems"`
	Corridors   []Corridor   `json:"top_corridors"`
	Chokepoints []Chokepoint `json:"top_chokepoints"`
}

type edgeKey struct{ a, b model.ID }

func makeEdge(x, y model.ID) edgeKey {
	if x < y {
		return edgeKey{x, y}
	}
	return edgeKey{y, x}
}

type edgeAcc struct {
	traffic, riskSum, maxRisk float64
}

func suppressionToPower(suppression, scale float64) float64 {
	suppression = math.Min(math.Max(suppression, 0), 0.999999)
	scale = math.Max(1e-6, scale)
	return -scale * math.Log(math.Max(1e-12, 1-suppression))
}

type planner struct {
	sim      *engine.Simulation
	st       *model.GameState
	blockade map[model.ID]float64
	loss     map[model.ID]float64
	bw, sw   float64
}

// risk is the combined 0..1 exposure of convoys passing through a system.
func (p *planner) risk(systemID model.ID) float64 {
	piracy := mathx.Clamp01(p.sim.PiracyRiskForSystem(systemID))
	return mathx.Clamp01(piracy + p.bw*p.blockade[systemID] + p.sw*p.loss[systemID])
}

// Compute builds the security plan for opt.FactionID. It reads sim but never
// changes it.
func Compute(sim *engine.Simulation, opt Options) (Plan, error) {
	st := sim.State()
	fid := opt.FactionID
	fac := st.Factions[fid]
	if fid != model.InvalidID && fac == nil {
		return Plan{}, ErrUnknownFaction
	}

	discovered := map[model.ID]bool{}
	if opt.RestrictToDiscovered && fac != nil {
		for _, id := range fac.DiscoveredSystems {
			discovered[id] = true
		}
	}

	ownSystems := map[model.ID]bool{}
	hubPos := map[model.ID]model.Vec2{}
	hubPop := map[model.ID]float64{}
	blockade := map[model.ID]float64{}
	for _, cid := range model.SortedKeys(st.Colonies) {
		c := st.Colonies[cid]
		b := st.Bodies[c.BodyID]
		if b == nil || b.SystemID == model.InvalidID {
			continue
		}
		if fid != model.InvalidID && c.FactionID == fid {
			ownSystems[b.SystemID] = true
		}
		pop := math.Max(0, c.PopulationMillions)
		if best, ok := hubPop[b.SystemID]; !ok || pop > best+1e-9 {
			hubPop[b.SystemID] = pop
			hubPos[b.SystemID] = b.PositionMkm
		}
		if bp := mathx.Clamp01(sim.BlockadePressure(b.SystemID, c.FactionID)); bp > blockade[b.SystemID]+1e-12 {
			blockade[b.SystemID] = bp
		}
	}
	loss := map[model.ID]float64{}
	for _, sid := range model.SortedKeys(st.Systems) {
		if v := mathx.Clamp01(sim.ShippingLossPressure(sid)); v > 1e-12 {
			loss[sid] = v
		}
	}

	cfg := sim.Config()
	p := &planner{
		sim:      sim,
		st:       st,
		blockade: blockade,
		loss:     loss,
		bw:       math.Max(0, cfg.BlockadeRiskWeight),
		sw:       math.Max(0, cfg.ShippingLossRiskWeight),
	}

	topt := trade.DefaultOptions()
	topt.MaxLanes = max(1, opt.MaxLanes)
	topt.IncludeUncolonizedMarkets = false
	topt.IncludeColonyContributions = true
	net := trade.Compute(st, sim.Content(), topt)

	minVol := math.Max(0, opt.MinLaneVolume)
	riskW := math.Max(0, opt.RiskWeight)
	ownW := math.Max(1, opt.OwnColonyWeight)

	systems := map[model.ID]*SystemNeed{}
	edges := map[edgeKey]*edgeAcc{}
	var corridors []Corridor
	considered, unreachable := 0, 0

	for _, lane := range net.Lanes {
		if !(lane.TotalVolume > minVol) || lane.FromSystemID == lane.ToSystemID {
			continue
		}
		if opt.RequireOwnColonyEndpoints && fid != model.InvalidID &&
			!ownSystems[lane.FromSystemID] && !ownSystems[lane.ToSystemID] {
			continue
		}
		if opt.RestrictToDiscovered && fac != nil &&
			(!discovered[lane.FromSystemID] || !discovered[lane.ToSystemID]) {
			continue
		}

		var goal *model.Vec2
		if pos, ok := hubPos[lane.ToSystemID]; ok {
			goal = &pos
		}
		route, ok := sim.PlanJumpRouteFromPos(lane.FromSystemID, hubPos[lane.FromSystemID], fid,
			opt.PlanningSpeedKmS, lane.ToSystemID, opt.RestrictToDiscovered, goal)
		if !ok || len(route.Systems) == 0 {
			unreachable++
			continue
		}
		considered++

		share := lane.TotalVolume / float64(len(route.Systems))
		corr := Corridor{
			FromSystemID: lane.FromSystemID,
			ToSystemID:   lane.ToSystemID,
			Volume:       lane.TotalVolume,
			RouteSystems: route.Systems,
			TopFlows:     lane.TopFlows,
		}
		riskSum := 0.0
		for _, sid := range route.Systems {
			e := systems[sid]
			if e == nil {
				e = &SystemNeed{SystemID: sid}
				if sys := st.Systems[sid]; sys != nil {
					e.RegionID = sys.RegionID
				}
				systems[sid] = e
			}
			e.TradeThroughput += share
			e.PiracyRisk = math.Max(e.PiracyRisk, mathx.Clamp01(sim.PiracyRiskForSystem(sid)))
			e.BlockadePressure = math.Max(e.BlockadePressure, blockade[sid])
			e.ShippingLossPressure = math.Max(e.ShippingLossPressure, loss[sid])
			e.EndpointRisk = math.Max(e.EndpointRisk, p.risk(sid))
			e.HasOwnColony = ownSystems[sid]

			need := share * (0.20 + riskW*e.EndpointRisk)
			if e.HasOwnColony {
				need *= ownW
			}
			e.Need += need
			riskSum += e.EndpointRisk
			corr.MaxRisk = math.Max(corr.MaxRisk, e.EndpointRisk)
		}
		corr.AvgRisk = riskSum / float64(len(route.Systems))

		for i := 1; i < len(route.Systems); i++ {
			a, b := route.Systems[i-1], route.Systems[i]
			if a == b {
				continue
			}
			r := 0.5 * (p.risk(a) + p.risk(b))
			k := makeEdge(a, b)
			acc := edges[k]
			if acc == nil {
				acc = &edgeAcc{}
				edges[k] = acc
			}
			acc.traffic += lane.TotalVolume
			acc.riskSum += r * lane.TotalVolume
			acc.maxRisk = math.Max(acc.maxRisk, r)
		}
		corridors = append(corridors, corr)
	}

	if considered == 0 {
		return Plan{Message: "No eligible trade lanes"}, nil
	}

	out := Plan{Message: "ok"}
	for _, sid := range model.SortedKeys(systems) {
		out.Systems = append(out.Systems, *systems[sid])
	}
	sort.SliceStable(out.Systems, func(i, j int) bool {
		a, b := out.Systems[i], out.Systems[j]
		if math.Abs(a.Need-b.Need) > 1e-9 {
			return a.Need > b.Need
		}
		return a.SystemID < b.SystemID
	})

	out.Regions = p.regions(out.Systems, opt)
	out.Corridors = corridors
	sort.SliceStable(out.Corridors, func(i, j int) bool {
		a, b := out.Corridors[i], out.Corridors[j]
		if math.Abs(a.Volume-b.Volume) > 1e-9 {
			return a.Volume > b.Volume
		}
		if math.Abs(a.MaxRisk-b.MaxRisk) > 1e-9 {
			return a.MaxRisk > b.MaxRisk
		}
		if a.FromSystemID != b.FromSystemID {
			return a.FromSystemID < b.FromSystemID
		}
		return a.ToSystemID < b.ToSystemID
	})
	out.Chokepoints = p.chokepoints(edges, minVol)

	limit := max(1, opt.MaxResults)
	if len(out.Regions) > limit {
		out.Regions, out.Truncated = out.Regions[:limit], true
	}
	if len(out.Systems) > limit {
		out.Systems, out.Truncated = out.Systems[:limit], true
	}
	if len(out.Corridors) > limit {
		out.Corridors, out.Truncated = out.Corridors[:limit], true
	}
	if len(out.Chokepoints) > limit {
		out.Chokepoints, out.Truncated = out.Chokepoints[:limit], true
	}

	switch {
	case len(out.Corridors) == 0 && unreachable > 0:
		out.Message = "No reachable lanes under current fog-of-war constraints"
	case len(out.Corridors) == 0:
		out.Message = "No corridors"
	}
	return out, nil
}

func (p *planner) regions(systems []SystemNeed, opt Options) []RegionNeed {
	byID := map[model.ID]*RegionNeed{}
	for _, e := range systems {
		if e.RegionID == model.InvalidID {
			continue
		}
		r := byID[e.RegionID]
		if r == nil {
			r = &RegionNeed{RegionID: e.RegionID}
			byID[e.RegionID] = r
		}
		r.Need += e.Need
		// systems arrive sorted by need, so the first one seen wins
		if r.RepresentativeSystemID == model.InvalidID {
			r.RepresentativeSystemID = e.SystemID
			r.RepresentativeSystemNeed = e.Need
		}
	}

	scale := math.Max(1e-6, p.sim.Config().PirateSuppressionPowerScale)
	desired := suppressionToPower(math.Min(math.Max(opt.DesiredRegionSuppression, 0), 0.999999), scale)
	var out []RegionNeed
	for _, rid := range model.SortedKeys(byID) {
		r := byID[rid]
		if reg := p.st.Regions[rid]; reg != nil {
			r.PirateRisk = mathx.Clamp01(reg.PirateRisk)
			r.PirateSuppression = mathx.Clamp01(reg.PirateSuppression)
		}
		r.EffectivePiracyRisk = mathx.Clamp01(r.PirateRisk * (1 - r.PirateSuppression))
		r.ImpliedPatrolPower = suppressionToPower(r.PirateSuppression, scale)
		r.DesiredPatrolPower = desired
		r.AdditionalPatrolPower = math.Max(0, desired-r.ImpliedPatrolPower)
		out = append(out, *r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if math.Abs(out[i].Need-out[j].Need) > 1e-9 {
			return out[i].Need > out[j].Need
		}
		return out[i].RegionID < out[j].RegionID
	})
	return out
}

func (p *planner) chokepoints(edges map[edgeKey]*edgeAcc, minVol float64) []Chokepoint {
	keys := make([]edgeKey, 0, len(edges))
	for k := range edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	var out []Chokepoint
	for _, k := range keys {
		acc := edges[k]
		if !(acc.traffic > minVol) {
			continue
		}
		c := Chokepoint{SystemA: k.a, SystemB: k.b, Traffic: acc.traffic, MaxRisk: mathx.Clamp01(acc.maxRisk)}
		if acc.traffic > 1e-9 {
			c.AvgRisk = mathx.Clamp01(acc.riskSum / acc.traffic)
		}
		c.JumpAToB, c.JumpBToA = p.jumpPair(k.a, k.b)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if math.Abs(a.Traffic-b.Traffic) > 1e-9 {
			return a.Traffic > b.Traffic
		}
		if math.Abs(a.MaxRisk-b.MaxRisk) > 1e-9 {
			return a.MaxRisk > b.MaxRisk
		}
		if a.SystemA != b.SystemA {
			return a.SystemA < b.SystemA
		}
		return a.SystemB < b.SystemB
	})
	return out
}

// jumpPair finds the jump points linking a and b, looking from either side.
func (p *planner) jumpPair(a, b model.ID) (model.ID, model.ID) {
	find := func(from, to model.ID) (model.ID, model.ID, bool) {
		sys := p.st.Systems[from]
		if sys == nil {
			return model.InvalidID, model.InvalidID, false
		}
		for _, jid := range sys.JumpPoints {
			jp := p.st.JumpPoints[jid]
			if jp == nil {
				continue
			}
			if linked := p.st.JumpPoints[jp.LinkedJumpID]; linked != nil && linked.SystemID == to {
				return jp.ID, linked.ID, true
			}
		}
		return model.InvalidID, model.InvalidID, false
	}
	if x, y, ok := find(a, b); ok {
		return x, y
	}
	if y, x, ok := find(b, a); ok {
		return x, y
	}
	return model.InvalidID, model.InvalidID
}
