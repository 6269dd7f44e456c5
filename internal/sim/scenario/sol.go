// Package scenario builds starting game states: the fixed Sol start and
// seeded random galaxies.
package scenario

import (
	"math"

	"nebula4x.dev/internal/sim/model"
)

// builder wraps a state under construction with the id-allocating helpers
// both scenarios share.
type builder struct {
	st *model.GameState
}

func newBuilder() *builder {
	return &builder{st: model.NewGameState()}
}

func (b *builder) faction(name string, ctl model.FactionControl) *model.Faction {
	f := &model.Faction{ID: model.AllocateID(b.st), Name: name, Control: ctl}
	b.st.Factions[f.ID] = f
	return f
}

func (b *builder) system(name string, pos model.Vec2) *model.StarSystem {
	sys := &model.StarSystem{ID: model.AllocateID(b.st), Name: name, GalaxyPos: pos}
	b.st.Systems[sys.ID] = sys
	return sys
}

// body places a body on a circular orbit at its day-0 position.
func (b *builder) body(sys *model.StarSystem, name string, typ model.BodyType, orbitMkm, periodDays, phase float64) *model.Body {
	bd := &model.Body{
		ID:                model.AllocateID(b.st),
		Name:              name,
		Type:              typ,
		SystemID:          sys.ID,
		OrbitRadiusMkm:    orbitMkm,
		OrbitPeriodDays:   periodDays,
		OrbitPhaseRadians: phase,
	}
	if orbitMkm > 0 {
		bd.PositionMkm = model.Vec2{X: orbitMkm * math.Cos(phase), Y: orbitMkm * math.Sin(phase)}
	}
	b.st.Bodies[bd.ID] = bd
	sys.Bodies = append(sys.Bodies, bd.ID)
	return bd
}

func (b *builder) link(a *model.StarSystem, posA model.Vec2, c *model.StarSystem, posC model.Vec2) (*model.JumpPoint, *model.JumpPoint) {
	ja := &model.JumpPoint{ID: model.AllocateID(b.st), Name: c.Name + " Jump Point", SystemID: a.ID, PositionMkm: posA}
	jc := &model.JumpPoint{ID: model.AllocateID(b.st), Name: a.Name + " Jump Point", SystemID: c.ID, PositionMkm: posC}
	ja.LinkedJumpID, jc.LinkedJumpID = jc.ID, ja.ID
	b.st.JumpPoints[ja.ID] = ja
	b.st.JumpPoints[jc.ID] = jc
	a.JumpPoints = append(a.JumpPoints, ja.ID)
	c.JumpPoints = append(c.JumpPoints, jc.ID)
	return ja, jc
}

func (b *builder) colony(f *model.Faction, bd *model.Body, name string, pop float64) *model.Colony {
	c := &model.Colony{
		ID:                 model.AllocateID(b.st),
		Name:               name,
		FactionID:          f.ID,
		BodyID:             bd.ID,
		PopulationMillions: pop,
		Minerals:           map[string]float64{},
		Installations:      map[string]int{},
	}
	b.st.Colonies[c.ID] = c
	return c
}

// ship adds a ship whose fuel, shields and hp are filled from its design when
// the state is loaded.
func (b *builder) ship(f *model.Faction, sys *model.StarSystem, pos model.Vec2, name, design string) *model.Ship {
	sh := model.NewShip()
	sh.ID = model.AllocateID(b.st)
	sh.Name = name
	sh.FactionID = f.ID
	sh.SystemID = sys.ID
	sh.DesignID = design
	sh.PositionMkm = pos
	b.st.Ships[sh.ID] = &sh
	b.st.Orders(sh.ID)
	sys.Ships = append(sys.Ships, sh.ID)
	return &sh
}

func earthlike(bd *model.Body) {
	bd.SurfaceTempK = 288
	bd.AtmosphereAtm = 1
	bd.MassEarths = 1
	bd.RadiusKm = 6371
}

// Sol is the default two-system start: Terrans at Earth with a starter
// flotilla, and a pirate nest at Alpha Centauri.
func Sol() *model.GameState {
	b := newBuilder()
	st := b.st

	terrans := b.faction("Terran Union", model.ControlPlayer)
	terrans.KnownTechs = []string{"chemistry_1"}
	terrans.ResearchQueue = []string{"nuclear_1", "propulsion_1"}
	pirates := b.faction("Pirate Raiders", model.ControlAIPirate)

	sol := b.system("Sol", model.Vec2{})
	centauri := b.system("Alpha Centauri", model.Vec2{X: 4.3})
	st.SelectedSystem = sol.ID

	b.body(sol, "Sun", model.BodyStar, 0, 1, 0)
	earth := b.body(sol, "Earth", model.BodyPlanet, 149.6, 365.25, 0)
	earthlike(earth)
	earth.MineralDeposits = map[string]float64{"Duranium": 250000, "Neutronium": 60000, "Corbomite": 40000}
	mars := b.body(sol, "Mars", model.BodyPlanet, 227.9, 686.98, 1.0)
	mars.SurfaceTempK, mars.AtmosphereAtm, mars.MassEarths, mars.RadiusKm = 210, 0.006, 0.107, 3390
	mars.MineralDeposits = map[string]float64{"Duranium": 120000, "Tritanium": 30000}
	jupiter := b.body(sol, "Jupiter", model.BodyGasGiant, 778.5, 4332.6, 2.0)
	jupiter.MineralDeposits = map[string]float64{"Sorium": 500000}

	b.body(centauri, "Alpha Centauri A", model.BodyStar, 0, 1, 0)
	prime := b.body(centauri, "Centauri Prime", model.BodyPlanet, 110, 320, 0.4)
	prime.SurfaceTempK, prime.AtmosphereAtm, prime.MassEarths, prime.RadiusKm = 301, 1.3, 1.2, 6800
	prime.MineralDeposits = map[string]float64{"Gallicite": 45000, "Uridium": 20000}

	jpSol, jpCen := b.link(sol, model.Vec2{X: 170}, centauri, model.Vec2{X: 80})

	home := b.colony(terrans, earth, "Earth", 8500)
	home.Minerals = map[string]float64{"Duranium": 10000, "Neutronium": 1500}
	home.Installations = map[string]int{
		"automated_mine":       50,
		"construction_factory": 5,
		"shipyard":             1,
		"research_lab":         20,
		"sensor_station":       1,
	}
	home.GroundForces = 100

	earthPos := model.Vec2{X: 149.6}
	b.ship(terrans, sol, earthPos, "Freighter Alpha", "freighter_alpha")
	b.ship(terrans, sol, earthPos.Add(model.Vec2{Y: 0.8}), "Surveyor Beta", "surveyor_beta")
	b.ship(terrans, sol, earthPos.Add(model.Vec2{Y: -0.8}), "Escort Gamma", "escort_gamma")

	pirateNest := model.Vec2{X: 80, Y: 0.5}
	b.ship(pirates, centauri, pirateNest, "Raider I", "pirate_raider")
	b.ship(pirates, centauri, pirateNest.Add(model.Vec2{X: 0.7, Y: -0.3}), "Raider II", "pirate_raider")

	terrans.DiscoveredSystems = []model.ID{sol.ID, centauri.ID}
	terrans.SurveyedJumpPoints = []model.ID{jpSol.ID, jpCen.ID}
	pirates.DiscoveredSystems = []model.ID{sol.ID, centauri.ID}
	pirates.SurveyedJumpPoints = []model.ID{jpSol.ID, jpCen.ID}
	return st
}
