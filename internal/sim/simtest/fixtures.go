// Package simtest holds hand-built game states shared by tests across the
// sim packages, plus integration tests that drive whole simulations.
//
// Fixtures only use exported model and engine APIs so tests can live outside
// the engine package.
package simtest

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/engine"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/tuning"
)

// Chain is a three-system line A - B - C with one colonizable planet per
// system. The Terrans hold a colony in A and an outpost in C; the pirates
// own nothing. Region piracy rises from A to C.
type Chain struct {
	State *model.GameState

	Terrans model.ID
	Pirates model.ID

	A, B, C          model.ID
	RegionA, RegionC model.ID

	PlanetA, PlanetB, PlanetC model.ID
	HomeColony, Outpost       model.ID

	JumpAB, JumpBA model.ID
	JumpBC, JumpCB model.ID
}

// NewChain builds the chain on day 0. Deposits: Duranium in A, Corbomite in
// B, Sorium in C.
func NewChain() *Chain {
	st := model.NewGameState()
	ch := &Chain{State: st}

	ch.Terrans = AddFaction(st, "Terran Union", model.ControlPlayer)
	ch.Pirates = AddFaction(st, "Pirates", model.ControlAIPirate)

	ch.RegionA = addRegion(st, "Core", 0.05)
	regionB := addRegion(st, "Frontier", 0.2)
	ch.RegionC = addRegion(st, "Badlands", 0.8)

	ch.A = AddSystem(st, "Alpha", model.Vec2{X: 0, Y: 0}, ch.RegionA)
	ch.B = AddSystem(st, "Beta", model.Vec2{X: 10, Y: 0}, regionB)
	ch.C = AddSystem(st, "Gamma", model.Vec2{X: 20, Y: 0}, ch.RegionC)

	ch.PlanetA = AddPlanet(st, ch.A, "Alpha I", 100, map[string]float64{"Duranium": 100000})
	ch.PlanetB = AddPlanet(st, ch.B, "Beta I", 120, map[string]float64{"Corbomite": 50000})
	ch.PlanetC = AddPlanet(st, ch.C, "Gamma I", 80, map[string]float64{"Sorium": 80000})

	ch.JumpAB, ch.JumpBA = Link(st, ch.A, model.Vec2{X: 300, Y: 0}, ch.B, model.Vec2{X: -300, Y: 0})
	ch.JumpBC, ch.JumpCB = Link(st, ch.B, model.Vec2{X: 300, Y: 0}, ch.C, model.Vec2{X: -300, Y: 0})

	ch.HomeColony = AddColony(st, ch.Terrans, ch.PlanetA, "Alpha Prime", 500)
	ch.Outpost = AddColony(st, ch.Terrans, ch.PlanetC, "Gamma Outpost", 10)

	t := st.Factions[ch.Terrans]
	t.DiscoveredSystems = []model.ID{ch.A, ch.B, ch.C}
	t.SurveyedJumpPoints = []model.ID{ch.JumpAB, ch.JumpBA, ch.JumpBC, ch.JumpCB}
	return ch
}

// AddFaction adds a faction with no relations; unknown pairs read as Hostile.
func AddFaction(st *model.GameState, name string, ctl model.FactionControl) model.ID {
	f := &model.Faction{ID: model.AllocateID(st), Name: name, Control: ctl}
	st.Factions[f.ID] = f
	return f.ID
}

func addRegion(st *model.GameState, name string, pirateRisk float64) model.ID {
	r := &model.Region{
		ID:                   model.AllocateID(st),
		Name:                 name,
		MineralRichnessMult:  1,
		VolatileRichnessMult: 1,
		SalvageRichnessMult:  1,
		PirateRisk:           pirateRisk,
	}
	st.Regions[r.ID] = r
	return r.ID
}

// AddSystem adds a star system with a star at the origin.
func AddSystem(st *model.GameState, name string, galaxyPos model.Vec2, regionID model.ID) model.ID {
	sys := &model.StarSystem{ID: model.AllocateID(st), Name: name, GalaxyPos: galaxyPos, RegionID: regionID}
	st.Systems[sys.ID] = sys
	star := &model.Body{ID: model.AllocateID(st), Name: name, Type: model.BodyStar, SystemID: sys.ID}
	st.Bodies[star.ID] = star
	sys.Bodies = append(sys.Bodies, star.ID)
	return sys.ID
}

// AddPlanet adds a planet on a circular orbit. With no period set it is back
// on the +X axis at every day boundary.
func AddPlanet(st *model.GameState, systemID model.ID, name string, orbitMkm float64, deposits map[string]float64) model.ID {
	b := &model.Body{
		ID:              model.AllocateID(st),
		Name:            name,
		Type:            model.BodyPlanet,
		SystemID:        systemID,
		OrbitRadiusMkm:  orbitMkm,
		PositionMkm:     model.Vec2{X: orbitMkm},
		MineralDeposits: deposits,
		SurfaceTempK:    288,
		AtmosphereAtm:   1,
		MassEarths:      1,
		RadiusKm:        6371,
	}
	st.Bodies[b.ID] = b
	sys := st.Systems[systemID]
	sys.Bodies = append(sys.Bodies, b.ID)
	return b.ID
}

// Link adds a pair of jump points joining two systems and returns both ids.
func Link(st *model.GameState, a model.ID, posA model.Vec2, b model.ID, posB model.Vec2) (model.ID, model.ID) {
	ja := &model.JumpPoint{ID: model.AllocateID(st), SystemID: a, PositionMkm: posA}
	jb := &model.JumpPoint{ID: model.AllocateID(st), SystemID: b, PositionMkm: posB}
	ja.LinkedJumpID, jb.LinkedJumpID = jb.ID, ja.ID
	ja.Name = "JP to " + st.Systems[b].Name
	jb.Name = "JP to " + st.Systems[a].Name
	st.JumpPoints[ja.ID] = ja
	st.JumpPoints[jb.ID] = jb
	st.Systems[a].JumpPoints = append(st.Systems[a].JumpPoints, ja.ID)
	st.Systems[b].JumpPoints = append(st.Systems[b].JumpPoints, jb.ID)
	return ja.ID, jb.ID
}

// AddColony settles a body with an empty stockpile.
func AddColony(st *model.GameState, factionID, bodyID model.ID, name string, popMillions float64) model.ID {
	c := &model.Colony{
		ID:                 model.AllocateID(st),
		Name:               name,
		FactionID:          factionID,
		BodyID:             bodyID,
		PopulationMillions: popMillions,
		Minerals:           map[string]float64{},
		Installations:      map[string]int{},
	}
	st.Colonies[c.ID] = c
	return c.ID
}

// AddShip places a ship of the given design with sentinel hp, fuel and
// shields; LoadGame fills them from the design.
func AddShip(st *model.GameState, factionID, systemID model.ID, designID string, pos model.Vec2) model.ID {
	sh := model.NewShip()
	sh.ID = model.AllocateID(st)
	sh.Name = designID
	sh.FactionID = factionID
	sh.SystemID = systemID
	sh.DesignID = designID
	sh.PositionMkm = pos
	st.Ships[sh.ID] = &sh
	st.Systems[systemID].Ships = append(st.Systems[systemID].Ships, sh.ID)
	st.Orders(sh.ID)
	return sh.ID
}

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSim loads st into a fresh simulation over the embedded content and
// default tuning.
func NewSim(t testing.TB, st *model.GameState) *engine.Simulation {
	t.Helper()
	return NewSimWith(t, st, tuning.Defaults())
}

func NewSimWith(t testing.TB, st *model.GameState, cfg tuning.SimConfig) *engine.Simulation {
	t.Helper()
	sim := engine.New(content.Default(), cfg, engine.Options{Logger: QuietLogger()})
	sim.LoadGame(st)
	return sim
}

// LastEvent returns the newest event whose message contains substr.
func LastEvent(st *model.GameState, substr string) (model.SimEvent, bool) {
	for i := len(st.Events) - 1; i >= 0; i-- {
		if strings.Contains(st.Events[i].Message, substr) {
			return st.Events[i], true
		}
	}
	return model.SimEvent{}, false
}
