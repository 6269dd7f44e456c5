// Package trade derives a procedural interstellar trade network from a game
// state: per-system markets and the strongest directed lanes between them.
//
// The model is a pure function of the state and content. It never mutates
// either.
package trade

import (
	"math"
	"sort"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/mathx"
	"nebula4x.dev/internal/sim/model"
)

// GoodKind is a coarse trade category. Content may add resources freely; each
// one lands in one of these buckets.
type GoodKind uint8

const (
	RawMetals GoodKind = iota
	RawMinerals
	Volatiles
	Exotics
	ProcessedMetals
	ProcessedMinerals
	Fuel
	Munitions
)

const GoodKindCount = 8

var goodNames = [GoodKindCount]string{
	"raw_metals", "raw_minerals", "volatiles", "exotics",
	"processed_metals", "processed_minerals", "fuel", "munitions",
}

var goodLabels = [GoodKindCount]string{
	"Raw metals", "Raw minerals", "Volatiles", "Exotics",
	"Processed metals", "Processed minerals", "Fuel", "Munitions",
}

func (k GoodKind) String() string {
	if int(k) < GoodKindCount {
		return goodNames[k]
	}
	return "unknown"
}

// Label is the human-readable name.
func (k GoodKind) Label() string {
	if int(k) < GoodKindCount {
		return goodLabels[k]
	}
	return "(unknown)"
}

func (k GoodKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

type Goods [GoodKindCount]float64

type Flow struct {
	Good   GoodKind `json:"good"`
	Volume float64  `json:"volume"`
}

// Node is one system's market. Supply and demand are abstract units; with
// colony contributions on, roughly 100 tons/day is one unit.
type Node struct {
	SystemID   model.ID `json:"system_id"`
	MarketSize float64  `json:"market_size"`
	HubScore   float64  `json:"hub_score"`

	Supply  Goods `json:"supply"`
	Demand  Goods `json:"demand"`
	Balance Goods `json:"balance"`

	PrimaryExport GoodKind `json:"primary_export"`
	PrimaryImport GoodKind `json:"primary_import"`
}

// Lane is a directed flow from an exporting to an importing system.
type Lane struct {
	FromSystemID model.ID `json:"from_system_id"`
	ToSystemID   model.ID `json:"to_system_id"`
	TotalVolume  float64  `json:"total_volume"`
	TopFlows     []Flow   `json:"top_flows"`
}

type Network struct {
	Nodes []Node `json:"nodes"` // one per system, in id order
	Lanes []Lane `json:"lanes"`
}

// NodeFor returns the node of a system.
func (n *Network) NodeFor(systemID model.ID) (Node, bool) {
	i := sort.Search(len(n.Nodes), func(i int) bool { return n.Nodes[i].SystemID >= systemID })
	if i < len(n.Nodes) && n.Nodes[i].SystemID == systemID {
		return n.Nodes[i], true
	}
	return Node{}, false
}

type Options struct {
	MaxLanes        int     `json:"max_lanes"`
	MaxGoodsPerLane int     `json:"max_goods_per_lane"`
	DistanceExp     float64 `json:"distance_exponent"` // larger favours local trade

	// When false only colonized systems carry a market.
	IncludeUncolonizedMarkets  bool    `json:"include_uncolonized_markets"`
	IncludeColonyContributions bool    `json:"include_colony_contributions"`
	ColonyTonsPerUnit          float64 `json:"colony_tons_per_unit"`
}

func DefaultOptions() Options {
	return Options{
		MaxLanes:                   180,
		MaxGoodsPerLane:            3,
		DistanceExp:                1.35,
		IncludeUncolonizedMarkets:  true,
		IncludeColonyContributions: true,
		ColonyTonsPerUnit:          100,
	}
}

func kindForResource(db *content.DB, id string) GoodKind {
	switch id {
	case "Fuel":
		return Fuel
	case "Munitions":
		return Munitions
	case "Metals":
		return ProcessedMetals
	case "Minerals":
		return ProcessedMinerals
	}
	r := db.Resources[id]
	if r == nil {
		return RawMinerals
	}
	switch r.Category {
	case "volatile":
		return Volatiles
	case "exotic":
		return Exotics
	case "metal":
		if r.Mineable {
			return RawMetals
		}
		return ProcessedMetals
	case "fuel":
		return Fuel
	case "munitions":
		return Munitions
	}
	if r.Mineable {
		return RawMinerals
	}
	return ProcessedMinerals
}

type deposits struct {
	metal, mineral, volatile, exotic float64
}

func systemDeposits(st *model.GameState, db *content.DB, sys *model.StarSystem) deposits {
	var out deposits
	for _, bid := range sys.Bodies {
		b := st.Bodies[bid]
		if b == nil {
			continue
		}
		for _, k := range model.SortedKeys(b.MineralDeposits) {
			tons := b.MineralDeposits[k]
			if tons <= 0 {
				continue
			}
			switch db.ResourceCategory(k) {
			case "volatile":
				out.volatile += tons
			case "exotic":
				out.exotic += tons
			case "metal":
				out.metal += tons
			default:
				out.mineral += tons
			}
		}
	}
	return out
}

// habitability scores the most Earthlike planet or moon in the system.
func habitability(st *model.GameState, sys *model.StarSystem) float64 {
	best := 0.0
	for _, bid := range sys.Bodies {
		b := st.Bodies[bid]
		if b == nil || (b.Type != model.BodyPlanet && b.Type != model.BodyMoon) {
			continue
		}
		g := 1.0
		if b.MassEarths > 0 && b.RadiusKm > 0 {
			g = b.SurfaceGravityG()
		}
		temp := mathx.Clamp01(1 - math.Abs(b.SurfaceTempK-288)/120)
		atm := mathx.Clamp01(1 - math.Abs(b.AtmosphereAtm-1)/1.5)
		grav := mathx.Clamp01(1 - math.Abs(g-1))
		best = math.Max(best, temp*atm*grav)
	}
	return best
}

func log1pSafe(x float64) float64 {
	if !(x > -1) {
		return 0
	}
	return math.Log1p(x)
}

// Compute builds the trade network. The result depends only on st and db.
func Compute(st *model.GameState, db *content.DB, opt Options) Network {
	if db == nil {
		db = content.Default()
	}
	ids := model.SortedKeys(st.Systems)
	n := len(ids)
	out := Network{Nodes: make([]Node, 0, n)}
	if n == 0 {
		return out
	}
	index := make(map[model.ID]int, n)
	for i, id := range ids {
		index[id] = i
	}

	var center model.Vec2
	for _, id := range ids {
		center = center.Add(st.Systems[id].GalaxyPos)
	}
	center = center.Scale(1 / float64(n))
	maxRadius, maxDegree := 1.0, 1
	for _, id := range ids {
		sys := st.Systems[id]
		maxRadius = math.Max(maxRadius, sys.GalaxyPos.DistTo(center))
		maxDegree = max(maxDegree, len(sys.JumpPoints))
	}

	colSupply := make([]Goods, n)
	colDemand := make([]Goods, n)
	colPop := make([]float64, n)
	if opt.IncludeColonyContributions {
		perUnit := math.Max(1, opt.ColonyTonsPerUnit)
		for _, cid := range model.SortedKeys(st.Colonies) {
			c := st.Colonies[cid]
			b := st.Bodies[c.BodyID]
			if b == nil {
				continue
			}
			i, ok := index[b.SystemID]
			if !ok {
				continue
			}
			pop := math.Max(0, c.PopulationMillions)
			colPop[i] += pop
			colDemand[i][ProcessedMetals] += pop / 50000
			colDemand[i][ProcessedMinerals] += pop / 60000
			colDemand[i][Fuel] += pop / 40000

			for _, instID := range model.SortedKeys(c.Installations) {
				count := c.Installations[instID]
				def := db.Installations[instID]
				if count <= 0 || def == nil {
					continue
				}
				for _, r := range model.SortedKeys(def.ProducesPerDay) {
					if v := def.ProducesPerDay[r]; v > 0 {
						colSupply[i][kindForResource(db, r)] += v * float64(count) / perUnit
					}
				}
				for _, r := range model.SortedKeys(def.ConsumesPerDay) {
					if v := def.ConsumesPerDay[r]; v > 0 {
						colDemand[i][kindForResource(db, r)] += v * float64(count) / perUnit
					}
				}
			}
		}
	}

	hub := make([]float64, n)
	for i, id := range ids {
		sys := st.Systems[id]
		regMineral, regVolatile, regPirate, regRuins := 1.0, 1.0, 0.0, 0.0
		if r := st.Regions[sys.RegionID]; r != nil {
			regMineral = math.Max(0, r.MineralRichnessMult)
			regVolatile = math.Max(0, r.VolatileRichnessMult)
			regPirate = mathx.Clamp01(r.PirateRisk)
			regRuins = mathx.Clamp01(r.RuinsDensity)
		}

		radius := mathx.Clamp01(sys.GalaxyPos.DistTo(center) / maxRadius)
		degree := mathx.Clamp01(float64(len(sys.JumpPoints)) / float64(maxDegree))
		h := mathx.Clamp01(0.6*degree + 0.4*(1-radius))
		hub[i] = h

		dep := systemDeposits(st, db, sys)
		metalF := mathx.Clamp01(log1pSafe(dep.metal/1e6) / 6)
		mineralF := mathx.Clamp01(log1pSafe(dep.mineral/1e6) / 6)
		volatileF := mathx.Clamp01(log1pSafe(dep.volatile/1e6) / 6)
		exoticF := mathx.Clamp01(log1pSafe(dep.exotic/2e5) / 6)

		hab := habitability(st, sys)
		mining := mathx.Clamp01(0.25*metalF + 0.25*mineralF + 0.25*volatileF + 0.25*exoticF)
		industry := mathx.Clamp01(0.6*hab + 0.4*h)
		military := mathx.Clamp01(0.65*regPirate + 0.35*h)
		research := mathx.Clamp01(0.8*regRuins + 0.2*(1-mathx.Clamp01(sys.NebulaDensity)))

		noise := (mathx.HashUnit(uint64(id)^0x5a7d) - 0.5) * 0.08

		m := 0.15 + 0.45*h + 0.35*hab
		if !opt.IncludeUncolonizedMarkets {
			m = 0
		}
		if opt.IncludeColonyContributions {
			m += colPop[i] / 20000
		}
		m = math.Max(0, m*(1+noise))

		var supply, demand Goods
		supply[RawMetals] = m * (0.25 + 0.85*metalF) * regMineral
		supply[RawMinerals] = m * (0.25 + 0.85*mineralF) * regMineral
		supply[Volatiles] = m * (0.15 + 0.90*volatileF) * regVolatile
		supply[Exotics] = m * (0.04 + 0.96*exoticF) * regMineral
		supply[ProcessedMetals] = m * (0.15 + 0.85*industry)
		supply[ProcessedMinerals] = m * (0.12 + 0.80*industry)
		supply[Fuel] = m * (0.10 + 0.55*industry + 0.25*volatileF)
		supply[Munitions] = m * (0.05 + 0.35*industry + 0.45*military)

		demand[RawMetals] = m * (0.10 + 0.90*industry)
		demand[RawMinerals] = m * (0.10 + 0.80*industry)
		demand[Volatiles] = m * (0.05 + 0.30*industry + 0.65*military)
		demand[Exotics] = m * (0.03 + 0.55*research + 0.20*industry)
		demand[ProcessedMetals] = m * (0.06 + 0.65*mining + 0.25*military)
		demand[ProcessedMinerals] = m * (0.05 + 0.55*mining)
		demand[Fuel] = m * (0.08 + 0.55*mining + 0.45*military + 0.10*h)
		demand[Munitions] = m * (0.05 + 0.95*military)

		if opt.IncludeColonyContributions {
			for k := range supply {
				supply[k] += colSupply[i][k]
				demand[k] += colDemand[i][k]
			}
		}

		node := Node{SystemID: id, MarketSize: m, HubScore: h, Supply: supply, Demand: demand}
		bestExp, bestImp := 0.0, 0.0
		for k := range supply {
			bal := supply[k] - demand[k]
			node.Balance[k] = bal
			if bal > bestExp+1e-12 {
				bestExp, node.PrimaryExport = bal, GoodKind(k)
			}
			if -bal > bestImp+1e-12 {
				bestImp, node.PrimaryImport = -bal, GoodKind(k)
			}
		}
		out.Nodes = append(out.Nodes, node)
	}

	if opt.MaxLanes <= 0 {
		return out
	}
	out.Lanes = lanes(st, ids, out.Nodes, hub, opt)
	return out
}

type laneAgg struct {
	from, to int
	total    float64
	goods    Goods
}

func lanes(st *model.GameState, ids []model.ID, nodes []Node, hub []float64, opt Options) []Lane {
	dist := jumpDistances(st, ids)
	expn := math.Max(0.25, opt.DistanceExp)

	var items []laneAgg
	for i := range ids {
		for j := range ids {
			d := dist[i][j]
			if i == j || math.IsInf(d, 1) {
				continue
			}
			decay := 1 / math.Pow(d+1, expn)
			boost := 1 + 0.25*(hub[i]+hub[j])
			agg := laneAgg{from: i, to: j}
			for k := 0; k < GoodKindCount; k++ {
				exp := math.Max(0, nodes[i].Balance[k])
				imp := math.Max(0, -nodes[j].Balance[k])
				if exp <= 1e-12 || imp <= 1e-12 {
					continue
				}
				if v := exp * imp * decay * boost; v > 1e-12 {
					agg.total += v
					agg.goods[k] += v
				}
			}
			if agg.total > 1e-12 {
				items = append(items, agg)
			}
		}
	}

	sort.SliceStable(items, func(a, b int) bool {
		x, y := items[a], items[b]
		if x.total > y.total+1e-12 {
			return true
		}
		if y.total > x.total+1e-12 {
			return false
		}
		if ids[x.from] != ids[y.from] {
			return ids[x.from] < ids[y.from]
		}
		return ids[x.to] < ids[y.to]
	})
	if len(items) > opt.MaxLanes {
		items = items[:opt.MaxLanes]
	}

	out := make([]Lane, 0, len(items))
	for _, it := range items {
		var flows []Flow
		for k := 0; k < GoodKindCount; k++ {
			if v := it.goods[k]; v > 1e-12 {
				flows = append(flows, Flow{Good: GoodKind(k), Volume: v})
			}
		}
		sort.SliceStable(flows, func(a, b int) bool {
			if flows[a].Volume > flows[b].Volume+1e-12 {
				return true
			}
			if flows[b].Volume > flows[a].Volume+1e-12 {
				return false
			}
			return flows[a].Good < flows[b].Good
		})
		if len(flows) > max(0, opt.MaxGoodsPerLane) {
			flows = flows[:max(0, opt.MaxGoodsPerLane)]
		}
		out = append(out, Lane{
			FromSystemID: ids[it.from],
			ToSystemID:   ids[it.to],
			TotalVolume:  it.total,
			TopFlows:     flows,
		})
	}
	return out
}
