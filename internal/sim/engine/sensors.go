package engine

import (
	"fmt"
	"math"
	"slices"

	"nebula4x.dev/internal/sim/model"
)

// maxContactAgeDays bounds how long a contact survives without a sighting.
const maxContactAgeDays = 180

type sensorSource struct {
	pos      model.Vec2
	rangeMkm float64
}

type sensorKey struct {
	faction model.ID
	system  model.ID
}

// mutualFriendly reports whether a and b both regard the other as friendly.
// Such factions share sensor coverage.
func (s *Simulation) mutualFriendly(a, b model.ID) bool {
	if a == b {
		return true
	}
	return s.DiplomaticStatus(a, b) == model.Friendly && s.DiplomaticStatus(b, a) == model.Friendly
}

// sensorSources lists the ship and colony sensors covering a system for a
// faction, including those of mutually friendly factions.
func (s *Simulation) sensorSources(factionID, systemID model.ID) []sensorSource {
	st := s.state
	sys := st.Systems[systemID]
	if sys == nil {
		return nil
	}
	var out []sensorSource
	for _, sid := range model.SortUniqueIDs(slices.Clone(sys.Ships)) {
		sh := st.Ships[sid]
		if sh == nil || sh.SystemID != systemID || !s.mutualFriendly(factionID, sh.FactionID) {
			continue
		}
		if r := shipSensorRange(sh, s.FindDesign(sh.DesignID)); r > 0 {
			out = append(out, sensorSource{pos: sh.PositionMkm, rangeMkm: r})
		}
	}
	for _, cid := range model.SortedKeys(st.Colonies) {
		c := st.Colonies[cid]
		if !s.mutualFriendly(factionID, c.FactionID) {
			continue
		}
		b := st.Bodies[c.BodyID]
		if b == nil || b.SystemID != systemID {
			continue
		}
		r := 0.0
		for _, id := range model.SortedKeys(c.Installations) {
			if def := s.content.Installations[id]; def != nil && c.Installations[id] > 0 {
				r = math.Max(r, def.SensorRangeMkm)
			}
		}
		if r > 0 {
			out = append(out, sensorSource{pos: b.PositionMkm, rangeMkm: r})
		}
	}
	return out
}

func covered(srcs []sensorSource, pos model.Vec2) bool {
	for _, src := range srcs {
		if pos.DistTo(src.pos) <= src.rangeMkm+1e-9 {
			return true
		}
	}
	return false
}

// IsShipDetectedByFaction is true for ships the faction (or a mutually
// friendly faction) owns and for ships inside its current sensor coverage.
func (s *Simulation) IsShipDetectedByFaction(factionID, shipID model.ID) bool {
	sh := s.state.Ships[shipID]
	if sh == nil {
		return false
	}
	if sh.FactionID == factionID {
		return true
	}
	if s.state.Factions[factionID] == nil {
		return false
	}
	return covered(s.sensorSources(factionID, sh.SystemID), sh.PositionMkm)
}

// detectedHostiles lists, in id order, the ships in a system that factionID
// both detects and is hostile to.
func (s *Simulation) detectedHostiles(factionID, systemID model.ID, cache map[sensorKey][]sensorSource) []model.ID {
	sys := s.state.Systems[systemID]
	if sys == nil {
		return nil
	}
	key := sensorKey{factionID, systemID}
	srcs, ok := cache[key]
	if !ok {
		srcs = s.sensorSources(factionID, systemID)
		cache[key] = srcs
	}
	var out []model.ID
	for _, sid := range model.SortUniqueIDs(slices.Clone(sys.Ships)) {
		sh := s.state.Ships[sid]
		if sh == nil || sh.SystemID != systemID || !s.AreHostile(factionID, sh.FactionID) {
			continue
		}
		if covered(srcs, sh.PositionMkm) {
			out = append(out, sid)
		}
	}
	return out
}

// tickContacts refreshes every faction's contact list from its sensor
// coverage and discovers anomalies inside it.
func (s *Simulation) tickContacts() {
	st := s.state
	today := st.Date.DaysSinceEpoch()
	cache := map[sensorKey][]sensorSource{}
	sources := func(fid, sysID model.ID) []sensorSource {
		k := sensorKey{fid, sysID}
		v, ok := cache[k]
		if !ok {
			v = s.sensorSources(fid, sysID)
			cache[k] = v
		}
		return v
	}

	for _, fid := range model.SortedKeys(st.Factions) {
		f := st.Factions[fid]
		for _, sid := range model.SortedKeys(f.ShipContacts) {
			if st.Ships[sid] == nil || today-f.ShipContacts[sid].LastSeenDay > maxContactAgeDays {
				delete(f.ShipContacts, sid)
			}
		}

		for _, sid := range model.SortedKeys(st.Ships) {
			sh := st.Ships[sid]
			if sh.FactionID == fid || !covered(sources(fid, sh.SystemID), sh.PositionMkm) {
				continue
			}
			prev, seen := f.ShipContacts[sid]
			if f.ShipContacts == nil {
				f.ShipContacts = map[model.ID]model.Contact{}
			}
			f.ShipContacts[sid] = model.Contact{
				ShipID:              sid,
				SystemID:            sh.SystemID,
				LastSeenDay:         today,
				LastSeenPositionMkm: sh.PositionMkm,
				LastSeenName:        sh.Name,
				LastSeenDesignID:    sh.DesignID,
				LastSeenFactionID:   sh.FactionID,
			}
			if seen && prev.LastSeenDay >= today-1 {
				continue
			}
			if s.mutualFriendly(fid, sh.FactionID) {
				continue
			}
			other := "(unknown)"
			if of := st.Factions[sh.FactionID]; of != nil {
				other = of.Name
			}
			verb := "New contact"
			if seen {
				verb = "Contact reacquired"
			}
			s.pushEvent(model.EventInfo, model.CategoryIntel,
				fmt.Sprintf("%s for %s: %s (%s) in %s", verb, f.Name, sh.Name, other, s.systemName(sh.SystemID)),
				EventContext{FactionID: fid, FactionID2: sh.FactionID, SystemID: sh.SystemID, ShipID: sid})
		}

		for _, aid := range model.SortedKeys(st.Anomalies) {
			a := st.Anomalies[aid]
			if a.Resolved || model.ContainsID(f.DiscoveredAnomalies, aid) {
				continue
			}
			if covered(sources(fid, a.SystemID), a.PositionMkm) {
				f.DiscoveredAnomalies = model.AddUniqueID(f.DiscoveredAnomalies, aid)
				s.pushEvent(model.EventInfo, model.CategoryExploration,
					fmt.Sprintf("Anomaly detected by %s: %s in %s", f.Name, a.Name, s.systemName(a.SystemID)),
					EventContext{FactionID: fid, SystemID: a.SystemID})
			}
		}
	}
}
