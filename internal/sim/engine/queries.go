package engine

import (
	"math"
	"slices"

	"nebula4x.dev/internal/sim/combat"
	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/power"
)

// FleetForShip returns the lowest fleet id listing the ship, or InvalidID.
func (s *Simulation) FleetForShip(shipID model.ID) model.ID {
	for _, fid := range model.SortedKeys(s.state.Fleets) {
		if slices.Contains(s.state.Fleets[fid].ShipIDs, shipID) {
			return fid
		}
	}
	return model.InvalidID
}

// IsSystemDiscoveredByFaction is true for unknown factions, which see
// everything.
func (s *Simulation) IsSystemDiscoveredByFaction(factionID, systemID model.ID) bool {
	f := s.state.Factions[factionID]
	if f == nil {
		return true
	}
	return slices.Contains(f.DiscoveredSystems, systemID)
}

func (s *Simulation) IsJumpPointSurveyedByFaction(factionID, jumpID model.ID) bool {
	if jumpID == model.InvalidID {
		return false
	}
	f := s.state.Factions[factionID]
	if f == nil {
		return true
	}
	return slices.Contains(f.SurveyedJumpPoints, jumpID)
}

// PiracyRiskForSystem is the region's pirate risk left after suppression, in
// [0,1]. Systems outside any region carry no risk.
func (s *Simulation) PiracyRiskForSystem(systemID model.ID) float64 {
	sys := s.state.Systems[systemID]
	if sys == nil || sys.RegionID == model.InvalidID {
		return 0
	}
	r := s.state.Regions[sys.RegionID]
	if r == nil {
		return 0
	}
	v := clamp(r.PirateRisk, 0, 1) * (1 - clamp(r.PirateSuppression, 0, 1))
	if !finite(v) {
		return 0
	}
	return clamp(v, 0, 1)
}

// ShippingLossPressure estimates the share of traffic lost to raiders in a
// system.
func (s *Simulation) ShippingLossPressure(systemID model.ID) float64 {
	return clamp(0.5*s.PiracyRiskForSystem(systemID), 0, 1)
}

// BlockadePressure is the share of armed presence in a system that is
// hostile to factionID.
func (s *Simulation) BlockadePressure(systemID, factionID model.ID) float64 {
	sys := s.state.Systems[systemID]
	if sys == nil {
		return 0
	}
	hostile, own := 0.0, 0.0
	for _, sid := range model.SortUniqueIDs(slices.Clone(sys.Ships)) {
		sh := s.state.Ships[sid]
		if sh == nil || sh.SystemID != systemID {
			continue
		}
		d := s.FindDesign(sh.DesignID)
		if d == nil || !d.Armed() {
			continue
		}
		switch {
		case sh.FactionID == factionID:
			own++
		case s.AreHostile(factionID, sh.FactionID):
			hostile++
		}
	}
	return clamp(hostile/(hostile+own+1), 0, 1)
}

// IsShipDockedAtColony reports whether the ship is within docking range of
// the colony's body.
func (s *Simulation) IsShipDockedAtColony(shipID, colonyID model.ID) bool {
	sh := s.state.Ships[shipID]
	c := s.state.Colonies[colonyID]
	if sh == nil || c == nil {
		return false
	}
	b := s.state.Bodies[c.BodyID]
	if b == nil || b.SystemID != sh.SystemID {
		return false
	}
	return sh.PositionMkm.DistTo(b.PositionMkm) <= math.Max(0, s.cfg.DockingRangeMkm)+1e-9
}

// DiplomaticStatus is a's stance towards b with treaties applied: an
// alliance reads as friendly and any other treaty lifts hostility to
// neutral.
func (s *Simulation) DiplomaticStatus(a, b model.ID) model.DiplomacyStatus {
	st := s.DiplomaticStatusBase(a, b)
	if st == model.Friendly || len(s.state.Treaties) == 0 {
		return st
	}
	day := s.state.Date.DaysSinceEpoch()
	for _, tid := range model.SortedKeys(s.state.Treaties) {
		t := s.state.Treaties[tid]
		if !t.Involves(a, b) || !t.ActiveOn(day) {
			continue
		}
		if t.Type == model.TreatyAlliance {
			return model.Friendly
		}
		st = model.Neutral
	}
	return st
}

// DiplomaticStatusBase is the stored stance. A faction is friendly to itself
// and a missing relation reads as hostile.
func (s *Simulation) DiplomaticStatusBase(a, b model.ID) model.DiplomacyStatus {
	if a == b {
		return model.Friendly
	}
	f := s.state.Factions[a]
	if f == nil {
		return model.Hostile
	}
	if st, ok := f.Relations[b]; ok {
		return st
	}
	return model.Hostile
}

// AreHostile is true when either side regards the other as hostile.
func (s *Simulation) AreHostile(a, b model.ID) bool {
	if a == b {
		return false
	}
	return s.DiplomaticStatus(a, b) == model.Hostile || s.DiplomaticStatus(b, a) == model.Hostile
}

// SetDiplomaticStatus sets both directions of a relation.
func (s *Simulation) SetDiplomaticStatus(a, b model.ID, st model.DiplomacyStatus) {
	if s.setRelation(a, b, st) {
		s.touch()
	}
}

func (s *Simulation) setRelation(a, b model.ID, st model.DiplomacyStatus) bool {
	if a == b {
		return false
	}
	changed := false
	for _, pair := range [][2]model.ID{{a, b}, {b, a}} {
		f := s.state.Factions[pair[0]]
		if f == nil {
			continue
		}
		if f.Relations == nil {
			f.Relations = map[model.ID]model.DiplomacyStatus{}
		}
		if cur, ok := f.Relations[pair[1]]; !ok || cur != st {
			f.Relations[pair[1]] = st
			changed = true
		}
	}
	return changed
}

// blockingTreaty returns the active treaty that forbids a and b from
// fighting, if any.
func (s *Simulation) blockingTreaty(a, b model.ID) *model.Treaty {
	day := s.state.Date.DaysSinceEpoch()
	for _, tid := range model.SortedKeys(s.state.Treaties) {
		t := s.state.Treaties[tid]
		if t.Involves(a, b) && t.Type.BlocksHostilities() && t.ActiveOn(day) {
			return t
		}
	}
	return nil
}

func (s *Simulation) discoverSystem(factionID, systemID model.ID) {
	f := s.state.Factions[factionID]
	if f == nil || systemID == model.InvalidID {
		return
	}
	f.DiscoveredSystems = model.AddUniqueID(f.DiscoveredSystems, systemID)
}

func (s *Simulation) surveyJumpPoint(factionID, jumpID model.ID) {
	f := s.state.Factions[factionID]
	if f == nil || jumpID == model.InvalidID {
		return
	}
	f.SurveyedJumpPoints = model.AddUniqueID(f.SurveyedJumpPoints, jumpID)
}

func (s *Simulation) systemName(id model.ID) string {
	if sys := s.state.Systems[id]; sys != nil {
		return sys.Name
	}
	return "(unknown)"
}

func (s *Simulation) factionControl(id model.ID) (model.FactionControl, bool) {
	if f := s.state.Factions[id]; f != nil {
		return f.Control, true
	}
	return model.ControlPlayer, false
}

func shipPower(sh *model.Ship, d *content.ShipDesign) power.Allocation {
	return power.Allocate(d.PowerGeneration, power.Demand{
		Engines: d.PowerUseEngines,
		Shields: d.PowerUseShields,
		Weapons: d.PowerUseWeapons,
		Sensors: d.PowerUseSensors,
	}, sh.PowerPolicy)
}

// shipSpeedMkmPerDay is the ship's cruise speed after engine damage. Ships
// whose engines draw power they cannot get do not move.
func (s *Simulation) shipSpeedMkmPerDay(sh *model.Ship, d *content.ShipDesign) float64 {
	speed := sh.SpeedKmS
	if !finite(speed) || speed <= 0 {
		if d == nil {
			return 0
		}
		speed = d.SpeedKmS
	}
	if d != nil {
		if d.PowerUseEngines > 1e-9 && !shipPower(sh, d).EnginesOnline {
			return 0
		}
	}
	speed = math.Max(0, speed) * combat.SubsystemMultiplier(sh.EnginesIntegrity)
	return speed * s.cfg.SecondsPerDay / 1e6
}

// shipSensorRange is zero when the sensors are unpowered.
func shipSensorRange(sh *model.Ship, d *content.ShipDesign) float64 {
	if d == nil || d.SensorRangeMkm <= 0 {
		return 0
	}
	if d.PowerUseSensors > 1e-9 && !shipPower(sh, d).SensorsOnline {
		return 0
	}
	return d.SensorRangeMkm * combat.SubsystemMultiplier(sh.SensorsIntegrity)
}

// colonyInstallationSum adds up a per-installation quantity over a colony.
func (s *Simulation) colonyInstallationSum(c *model.Colony, f func(*content.InstallationDef) float64) float64 {
	total := 0.0
	for _, id := range model.SortedKeys(c.Installations) {
		n := c.Installations[id]
		def := s.content.Installations[id]
		if n <= 0 || def == nil {
			continue
		}
		total += float64(n) * f(def)
	}
	return total
}
