// Package engine owns a live GameState and advances it one day at a time.
//
// A Simulation is not safe for concurrent use. Analyzers that read the state
// must not run while AdvanceDays is in progress.
package engine

import (
	"context"
	"log/slog"
	"math"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/tuning"
)

type Options struct {
	Logger *slog.Logger
}

type Simulation struct {
	content *content.DB
	cfg     tuning.SimConfig
	state   *model.GameState
	log     *slog.Logger

	// Not part of the save or the digest.
	stateGeneration   uint64
	contentGeneration uint64

	routes routeCache
}

// New returns a simulation over an empty state. A nil db selects the
// embedded default content.
func New(db *content.DB, cfg tuning.SimConfig, opt Options) *Simulation {
	if db == nil {
		db = content.Default()
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !(cfg.SecondsPerDay > 0) {
		cfg.SecondsPerDay = 86400
	}
	s := &Simulation{
		content:           db,
		cfg:               cfg,
		state:             model.NewGameState(),
		log:               logger,
		contentGeneration: 1,
	}
	s.routes.reset()
	return s
}

func (s *Simulation) State() *model.GameState { return s.state }
func (s *Simulation) Content() *content.DB      { return s.content }
func (s *Simulation) Config() tuning.SimConfig  { return s.cfg }

// StateGeneration advances whenever the live state changes. UI-side caches
// key on it together with ContentGeneration.
func (s *Simulation) StateGeneration() uint64   { return s.stateGeneration }
func (s *Simulation) ContentGeneration() uint64 { return s.contentGeneration }

// SetContent swaps the content database. Existing ships keep their design
// ids; designs that vanish simply stop resolving.
func (s *Simulation) SetContent(db *content.DB) {
	if db == nil {
		return
	}
	s.content = db
	s.contentGeneration++
	s.touch()
}

// touch records an out-of-tick mutation of the live state.
func (s *Simulation) touch() {
	s.stateGeneration++
	s.routes.reset()
}

// LoadGame replaces the live state. Sentinel ship values (hp <= 0, negative
// fuel, shields or ammo) are resolved against each ship's design.
func (s *Simulation) LoadGame(st *model.GameState) {
	if st == nil {
		st = model.NewGameState()
	}
	st.EnsureMaps()
	s.state = st
	s.normalizeLoaded()
	s.recomputeBodyPositions()
	s.touch()
	s.log.Debug("game loaded",
		"date", st.Date.String(),
		"systems", len(st.Systems),
		"ships", len(st.Ships),
		"colonies", len(st.Colonies),
	)
}

func (s *Simulation) normalizeLoaded() {
	st := s.state
	if st.NextID == model.InvalidID {
		st.NextID = 1
	}
	if st.NextEventSeq == 0 {
		st.NextEventSeq = 1
	}
	if st.HourOfDay < 0 || st.HourOfDay > 23 {
		st.HourOfDay = 0
	}
	maxID := model.InvalidID
	bump := func(id model.ID) {
		if id > maxID {
			maxID = id
		}
	}
	for _, id := range model.SortedKeys(st.Systems) {
		bump(id)
	}
	for _, id := range model.SortedKeys(st.Bodies) {
		bump(id)
	}
	for _, id := range model.SortedKeys(st.JumpPoints) {
		bump(id)
	}
	for _, id := range model.SortedKeys(st.Colonies) {
		bump(id)
	}
	for _, id := range model.SortedKeys(st.Factions) {
		bump(id)
	}
	for _, id := range model.SortedKeys(st.Fleets) {
		bump(id)
	}
	for _, id := range model.SortedKeys(st.Wrecks) {
		bump(id)
	}
	for _, id := range model.SortedKeys(st.MissileSalvos) {
		bump(id)
	}
	for _, id := range model.SortedKeys(st.Ships) {
		bump(id)
		sh := st.Ships[id]
		d := s.FindDesign(sh.DesignID)
		if d == nil {
			continue
		}
		if !finite(sh.HP) || sh.HP <= 0 {
			sh.HP = d.MaxHP
		}
		if !finite(sh.FuelTons) || sh.FuelTons < 0 {
			sh.FuelTons = d.FuelCapacityTons
		}
		if !finite(sh.Shields) || sh.Shields < 0 {
			sh.Shields = d.MaxShields
		}
		if sh.MissileAmmo < 0 && d.MissileAmmoCapacity > 0 {
			sh.MissileAmmo = d.MissileAmmoCapacity
		}
		if !finite(sh.SpeedKmS) || sh.SpeedKmS <= 0 {
			sh.SpeedKmS = d.SpeedKmS
		}
	}
	if st.NextID <= maxID {
		st.NextID = maxID + 1
	}
	for _, ev := range st.Events {
		if ev.Seq >= st.NextEventSeq {
			st.NextEventSeq = ev.Seq + 1
		}
	}
}

// FindDesign resolves custom designs first, then content.
func (s *Simulation) FindDesign(id string) *content.ShipDesign {
	if id == "" {
		return nil
	}
	if d := s.state.CustomDesigns[id]; d != nil {
		return d
	}
	return s.content.Designs[id]
}

// AdvanceDays runs n whole days.
func (s *Simulation) AdvanceDays(n int) {
	_ = s.AdvanceDaysContext(context.Background(), n)
}

// AdvanceDaysContext runs up to n days and stops at the next day boundary
// once ctx is done. Days already simulated are kept.
func (s *Simulation) AdvanceDaysContext(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			s.log.Info("advance cancelled", "day", s.state.Date.DaysSinceEpoch(), "remaining", n-i)
			return err
		}
		s.advanceOneDay()
	}
	return nil
}

func (s *Simulation) advanceOneDay() {
	st := s.state
	st.Date = st.Date.AddDays(1)
	st.HourOfDay = 0
	s.routes.reset()

	s.recomputeBodyPositions()

	if s.cfg.EconomyEnabled {
		s.tickColonies(1)
	}
	if s.cfg.ResearchEnabled {
		s.tickResearch(1)
	}
	if s.cfg.EconomyEnabled {
		s.tickShipyards(1)
		s.tickConstruction(1)
	}

	s.tickTreaties()
	s.tickDiplomaticOffers()
	s.tickFleetMissions()

	s.tickShips(1)
	s.tickContacts()

	var damaged map[model.ID]bool
	if s.cfg.CombatEnabled {
		damaged = s.tickCombat(1)
	}
	s.tickShields(1, damaged)

	if s.cfg.GroundCombatEnabled {
		s.tickGroundCombat(1)
	}
	s.tickWreckDecay()
	s.trimEvents()

	s.stateGeneration++
	s.routes.reset()
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
