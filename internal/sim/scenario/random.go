package scenario

import (
	"fmt"
	"math"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"nebula4x.dev/internal/sim/mathx"
	"nebula4x.dev/internal/sim/model"
)

// RandomConfig tunes Random. Zero fields take the defaults.
type RandomConfig struct {
	Seed    int64
	Systems int

	PlacementCandidates int     // best-candidate samples per system
	ExtraLinkChance     float64 // chance of a loop-closing jump per system
	AnomalyChance       float64
}

func (c RandomConfig) withDefaults() RandomConfig {
	if c.Systems < 2 {
		c.Systems = 12
	}
	if c.PlacementCandidates <= 0 {
		c.PlacementCandidates = 24
	}
	if c.ExtraLinkChance <= 0 {
		c.ExtraLinkChance = 0.35
	}
	if c.AnomalyChance <= 0 {
		c.AnomalyChance = 0.25
	}
	return c
}

var systemNames = []string{
	"Achernar", "Betria", "Castor", "Deneb", "Electra", "Fomalhaut", "Gienah", "Hadar",
	"Izar", "Jabbah", "Kochab", "Lesath", "Merak", "Nashira", "Okul", "Phact",
	"Rigel", "Sabik", "Tarazed", "Unuk", "Vega", "Wezen", "Xamidimura", "Zosma",
}

var regionThemes = []string{"Core", "Rim", "Nebula Belt", "Badlands", "Shoals", "Drift"}

var mineable = []string{
	"Duranium", "Neutronium", "Tritanium", "Corbomite", "Boronide",
	"Mercassium", "Vendarite", "Corundium", "Sorium", "Uridium", "Gallicite",
}

// Random builds a galaxy of the given size from a seed. The same seed and
// size always produce the same state.
func Random(seed int64, systems int) *model.GameState {
	return RandomWith(RandomConfig{Seed: seed, Systems: systems})
}

func RandomWith(cfg RandomConfig) *model.GameState {
	cfg = cfg.withDefaults()
	rng := mathx.NewRand(uint64(cfg.Seed))
	nebula := opensimplex.NewNormalized(cfg.Seed)
	richness := opensimplex.NewNormalized(cfg.Seed + 1)

	b := newBuilder()
	st := b.st
	terrans := b.faction("Terran Union", model.ControlPlayer)
	terrans.KnownTechs = []string{"chemistry_1"}
	terrans.ResearchQueue = []string{"nuclear_1", "propulsion_1"}
	pirates := b.faction("Pirate Raiders", model.ControlAIPirate)

	n := cfg.Systems
	radius := 6 * math.Sqrt(float64(n))
	pos := placeSystems(rng, n, radius, cfg.PlacementCandidates)

	regions := b.regions(rng, richness, pos, radius)

	syss := make([]*model.StarSystem, n)
	for i, p := range pos {
		name := systemNames[i%len(systemNames)]
		if i >= len(systemNames) {
			name = fmt.Sprintf("%s %d", name, i/len(systemNames)+1)
		}
		sys := b.system(name, p)
		sys.NebulaDensity = mathx.Clamp01((octave(nebula, p.X, p.Y, 3, 0.08, 0.5) - 0.55) * 2.5)
		sys.RegionID = nearestRegion(regions, p)
		syss[i] = sys
	}

	edges := jumpEdges(rng, pos, cfg.ExtraLinkChance)
	for _, e := range edges {
		a, c := syss[e[0]], syss[e[1]]
		dir := c.GalaxyPos.Sub(a.GalaxyPos).Normalized()
		da := rng.Range(180, 420)
		dc := rng.Range(180, 420)
		b.link(a, dir.Scale(da), c, dir.Scale(-dc))
	}

	var homeWorld *model.Body
	for i, sys := range syss {
		reg := st.Regions[sys.RegionID]
		rich := 0.5 + octave(richness, sys.GalaxyPos.X, sys.GalaxyPos.Y, 2, 0.1, 0.5)
		planets := b.planets(rng, sys, reg, rich)
		if i == 0 {
			homeWorld = planets[0]
			homeWorld.OrbitRadiusMkm, homeWorld.OrbitPeriodDays = 149.6, 365.25
			homeWorld.Type = model.BodyPlanet
			homeWorld.PositionMkm = model.Vec2{
				X: 149.6 * math.Cos(homeWorld.OrbitPhaseRadians),
				Y: 149.6 * math.Sin(homeWorld.OrbitPhaseRadians),
			}
			earthlike(homeWorld)
		}
		if i > 0 && rng.Float64() < cfg.AnomalyChance {
			b.anomaly(rng, sys)
		}
	}

	home := syss[0]
	st.SelectedSystem = home.ID
	c := b.colony(terrans, homeWorld, home.Name+" Prime", 1000)
	c.Minerals = map[string]float64{"Duranium": 6000, "Neutronium": 1000}
	c.Installations = map[string]int{
		"automated_mine":       20,
		"construction_factory": 3,
		"shipyard":             1,
		"research_lab":         8,
		"sensor_station":       1,
	}
	c.GroundForces = 50
	at := homeWorld.PositionMkm
	b.ship(terrans, home, at, "Freighter Alpha", "freighter_alpha")
	b.ship(terrans, home, at.Add(model.Vec2{Y: 0.8}), "Surveyor Beta", "surveyor_beta")
	b.ship(terrans, home, at.Add(model.Vec2{Y: -0.8}), "Escort Gamma", "escort_gamma")

	terrans.DiscoveredSystems = []model.ID{home.ID}
	terrans.SurveyedJumpPoints = append([]model.ID(nil), home.JumpPoints...)
	for _, jid := range home.JumpPoints {
		other := st.JumpPoints[st.JumpPoints[jid].LinkedJumpID]
		terrans.DiscoveredSystems = append(terrans.DiscoveredSystems, other.SystemID)
	}
	terrans.DiscoveredSystems = model.SortUniqueIDs(terrans.DiscoveredSystems)

	nest := syss[farthestByHops(st, home.ID, syss)]
	for i := 0; i < 2; i++ {
		p := model.Vec2{X: rng.Range(-200, 200), Y: rng.Range(-200, 200)}
		b.ship(pirates, nest, p, fmt.Sprintf("Raider %d", i+1), "pirate_raider")
	}
	pirates.DiscoveredSystems = []model.ID{nest.ID}
	return st
}

// placeSystems spreads points over a disc, keeping for each new point the
// candidate farthest from all previous ones. The first point is the origin.
func placeSystems(rng *mathx.Rand, n int, radius float64, candidates int) []model.Vec2 {
	out := []model.Vec2{{}}
	for len(out) < n {
		var best model.Vec2
		bestD := -1.0
		for k := 0; k < candidates; k++ {
			r := radius * math.Sqrt(rng.Float64())
			a := rng.Range(0, 2*math.Pi)
			p := model.Vec2{X: r * math.Cos(a), Y: r * math.Sin(a)}
			d := math.Inf(1)
			for _, q := range out {
				d = math.Min(d, p.DistTo(q))
			}
			if d > bestD {
				best, bestD = p, d
			}
		}
		out = append(out, best)
	}
	return out
}

func (b *builder) regions(rng *mathx.Rand, richness opensimplex.Noise, pos []model.Vec2, radius float64) []*model.Region {
	k := max(1, len(pos)/4)
	var out []*model.Region
	for i := 0; i < k; i++ {
		center := pos[i*len(pos)/k]
		dist := mathx.Clamp01(center.Length() / radius)
		rich := 0.5 + octave(richness, center.X, center.Y, 2, 0.1, 0.5)
		r := &model.Region{
			ID:                   model.AllocateID(b.st),
			Name:                 fmt.Sprintf("%s %d", regionThemes[i%len(regionThemes)], i+1),
			Center:               center,
			Theme:                regionThemes[i%len(regionThemes)],
			MineralRichnessMult:  0.6 + 0.8*rich,
			VolatileRichnessMult: 0.6 + 0.8*(1-rich),
			SalvageRichnessMult:  rng.Range(0.5, 1.5),
			PirateRisk:           mathx.Clamp01(0.05 + 0.8*dist),
			RuinsDensity:         rng.Range(0, 0.5),
		}
		b.st.Regions[r.ID] = r
		out = append(out, r)
	}
	return out
}

func nearestRegion(regions []*model.Region, p model.Vec2) model.ID {
	best, bestD := model.InvalidID, math.Inf(1)
	for _, r := range regions {
		if d := p.DistTo(r.Center); d < bestD {
			best, bestD = r.ID, d
		}
	}
	return best
}

// jumpEdges links the systems with a minimum spanning tree by galaxy distance
// and then closes a few short loops that do not cross existing links.
func jumpEdges(rng *mathx.Rand, pos []model.Vec2, extraChance float64) [][2]int {
	n := len(pos)
	in := make([]bool, n)
	in[0] = true
	var edges [][2]int
	for len(edges) < n-1 {
		bi, bj, bd := -1, -1, math.Inf(1)
		for i := 0; i < n; i++ {
			if !in[i] {
				continue
			}
			for j := 0; j < n; j++ {
				if in[j] {
					continue
				}
				if d := pos[i].DistTo(pos[j]); d < bd {
					bi, bj, bd = i, j, d
				}
			}
		}
		in[bj] = true
		edges = append(edges, [2]int{bi, bj})
	}

	linked := func(i, j int) bool {
		for _, e := range edges {
			if (e[0] == i && e[1] == j) || (e[0] == j && e[1] == i) {
				return true
			}
		}
		return false
	}
	for i := 0; i < n; i++ {
		if rng.Float64() >= extraChance {
			continue
		}
		order := make([]int, 0, n)
		for j := 0; j < n; j++ {
			if j != i && !linked(i, j) {
				order = append(order, j)
			}
		}
		sort.SliceStable(order, func(a, b int) bool {
			return pos[i].DistTo(pos[order[a]]) < pos[i].DistTo(pos[order[b]])
		})
		for _, j := range order {
			ok := true
			for _, e := range edges {
				if crosses(pos[i], pos[j], pos[e[0]], pos[e[1]]) {
					ok = false
					break
				}
			}
			if ok {
				edges = append(edges, [2]int{i, j})
				break
			}
		}
	}
	return edges
}

// crosses reports a proper intersection of segments ab and cd. Touching at an
// endpoint does not count.
func crosses(a, b, c, d model.Vec2) bool {
	orient := func(p, q, r model.Vec2) float64 {
		return (q.X-p.X)*(r.Y-p.Y) - (q.Y-p.Y)*(r.X-p.X)
	}
	o1, o2 := orient(a, b, c), orient(a, b, d)
	o3, o4 := orient(c, d, a), orient(c, d, b)
	const eps = 1e-12
	if math.Abs(o1) < eps || math.Abs(o2) < eps || math.Abs(o3) < eps || math.Abs(o4) < eps {
		return false
	}
	return o1*o2 < 0 && o3*o4 < 0
}

func (b *builder) planets(rng *mathx.Rand, sys *model.StarSystem, reg *model.Region, rich float64) []*model.Body {
	b.body(sys, sys.Name, model.BodyStar, 0, 1, 0)
	mineralMult, volatileMult := 1.0, 1.0
	if reg != nil {
		mineralMult, volatileMult = reg.MineralRichnessMult, reg.VolatileRichnessMult
	}

	count := rng.RangeInt(2, 6)
	orbit := rng.Range(40, 90)
	var out []*model.Body
	for i := 0; i < count; i++ {
		typ := model.BodyPlanet
		switch {
		case orbit > 500:
			typ = model.BodyGasGiant
		case rng.Float64() < 0.2:
			typ = model.BodyAsteroid
		}
		period := 365.25 * math.Pow(orbit/149.6, 1.5)
		bd := b.body(sys, fmt.Sprintf("%s %s", sys.Name, roman(i+1)), typ, orbit, period, rng.Range(0, 2*math.Pi))
		bd.SurfaceTempK = 278 * math.Sqrt(149.6/orbit) * rng.Range(0.85, 1.15)
		if typ == model.BodyPlanet {
			bd.AtmosphereAtm = rng.Range(0, 2.5)
			bd.MassEarths = rng.Range(0.1, 3)
			bd.RadiusKm = 6371 * math.Cbrt(bd.MassEarths) * rng.Range(0.9, 1.1)
		}

		bd.MineralDeposits = map[string]float64{}
		for k := rng.RangeInt(1, 3); k > 0; k-- {
			res := mineable[rng.Intn(len(mineable))]
			mult := mineralMult
			if res == "Sorium" {
				mult = volatileMult
			}
			bd.MineralDeposits[res] += math.Round(rng.Range(2e4, 2e5) * mult * rich)
		}
		out = append(out, bd)
		orbit *= rng.Range(1.4, 1.9)
	}
	return out
}

func (b *builder) anomaly(rng *mathx.Rand, sys *model.StarSystem) {
	kinds := []string{"ruins", "derelict", "signal"}
	a := &model.Anomaly{
		ID:                model.AllocateID(b.st),
		Name:              sys.Name + " Anomaly",
		Kind:              kinds[rng.Intn(len(kinds))],
		SystemID:          sys.ID,
		PositionMkm:       model.Vec2{X: rng.Range(-300, 300), Y: rng.Range(-300, 300)},
		InvestigationDays: rng.RangeInt(5, 20),
		ResearchReward:    math.Round(rng.Range(20, 80)),
	}
	b.st.Anomalies[a.ID] = a
}

// farthestByHops returns the index of the system the most jumps away from
// start, ties by lower index.
func farthestByHops(st *model.GameState, start model.ID, syss []*model.StarSystem) int {
	hops := map[model.ID]int{start: 0}
	queue := []model.ID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, jid := range st.Systems[cur].JumpPoints {
			next := st.JumpPoints[st.JumpPoints[jid].LinkedJumpID].SystemID
			if _, seen := hops[next]; !seen {
				hops[next] = hops[cur] + 1
				queue = append(queue, next)
			}
		}
	}
	best := 0
	for i, sys := range syss {
		if hops[sys.ID] > hops[syss[best].ID] {
			best = i
		}
	}
	return best
}

// octave layers noise at doubling frequencies, normalized to [0,1].
func octave(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total, amplitude, maxVal := 0.0, 1.0, 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}

func roman(n int) string {
	numerals := []string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X"}
	if n >= 1 && n <= len(numerals) {
		return numerals[n-1]
	}
	return fmt.Sprint(n)
}
