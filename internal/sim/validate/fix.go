package validate

import (
	"fmt"
	"math"
	"slices"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
)

// FixReport summarises what Fix changed. Actions are in the order applied.
type FixReport struct {
	Changes int      `json:"changes"`
	Actions []string `json:"actions,omitempty"`
}

func (r *FixReport) note(format string, args ...any) {
	r.Changes++
	r.Actions = append(r.Actions, fmt.Sprintf(format, args...))
}

type fixer struct {
	st  *model.GameState
	db  *content.DB
	rep FixReport
}

// Fix repairs st in place. It only removes references that point nowhere,
// canonicalises set-like lists, clamps impossible quantities and restores
// counters. It never invents entities. Running Fix on its own output makes no
// further changes.
func Fix(st *model.GameState, db *content.DB) FixReport {
	f := &fixer{st: st, db: db}
	f.systemLists()
	f.bodies()
	f.jumpPoints()
	f.ships()
	f.wrecks()
	f.colonies()
	f.orders()
	f.factions()
	f.fleets()
	f.diplomacy()
	f.counters()
	return f.rep
}

// pruneIDs drops ids keep rejects, then sorts and dedupes. It reports whether
// the slice changed.
func pruneIDs(ids []model.ID, keep func(model.ID) bool) ([]model.ID, bool) {
	out := make([]model.ID, 0, len(ids))
	for _, id := range ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	out = model.SortUniqueIDs(out)
	return out, !slices.Equal(out, ids)
}

func (f *fixer) systemLists() {
	st := f.st
	for _, sid := range model.SortedKeys(st.Systems) {
		sys := st.Systems[sid]
		if sys.RegionID != model.InvalidID && st.Regions[sys.RegionID] == nil {
			f.rep.note("System %d: cleared missing region %d", sid, sys.RegionID)
			sys.RegionID = model.InvalidID
		}
		var changed bool
		if sys.Bodies, changed = pruneIDs(sys.Bodies, func(id model.ID) bool {
			b := st.Bodies[id]
			return b != nil && b.SystemID == sid
		}); changed {
			f.rep.note("System %d: rebuilt body list", sid)
		}
		if sys.Ships, changed = pruneIDs(sys.Ships, func(id model.ID) bool {
			sh := st.Ships[id]
			return sh != nil && sh.SystemID == sid
		}); changed {
			f.rep.note("System %d: rebuilt ship list", sid)
		}
		if sys.JumpPoints, changed = pruneIDs(sys.JumpPoints, func(id model.ID) bool {
			jp := st.JumpPoints[id]
			return jp != nil && jp.SystemID == sid
		}); changed {
			f.rep.note("System %d: rebuilt jump point list", sid)
		}
	}

	// Re-list entities their system forgot.
	for _, id := range model.SortedKeys(st.Bodies) {
		if sys := st.Systems[st.Bodies[id].SystemID]; sys != nil && !slices.Contains(sys.Bodies, id) {
			sys.Bodies = model.SortUniqueIDs(append(sys.Bodies, id))
			f.rep.note("System %d: listed body %d", sys.ID, id)
		}
	}
	for _, id := range model.SortedKeys(st.Ships) {
		if sys := st.Systems[st.Ships[id].SystemID]; sys != nil && !slices.Contains(sys.Ships, id) {
			sys.Ships = model.SortUniqueIDs(append(sys.Ships, id))
			f.rep.note("System %d: listed ship %d", sys.ID, id)
		}
	}
	for _, id := range model.SortedKeys(st.JumpPoints) {
		if sys := st.Systems[st.JumpPoints[id].SystemID]; sys != nil && !slices.Contains(sys.JumpPoints, id) {
			sys.JumpPoints = model.SortUniqueIDs(append(sys.JumpPoints, id))
			f.rep.note("System %d: listed jump point %d", sys.ID, id)
		}
	}
	if st.SelectedSystem != model.InvalidID && st.Systems[st.SelectedSystem] == nil {
		f.rep.note("Cleared selected_system %d", st.SelectedSystem)
		st.SelectedSystem = model.InvalidID
	}
}

func cleanAmounts(m map[string]float64) (removed []string, clamped []string) {
	for _, k := range model.SortedKeys(m) {
		v := m[k]
		switch {
		case k == "" || math.IsNaN(v):
			delete(m, k)
			removed = append(removed, k)
		case v < 0:
			m[k] = 0
			clamped = append(clamped, k)
		}
	}
	return removed, clamped
}

func (f *fixer) bodies() {
	st := f.st
	for _, id := range model.SortedKeys(st.Bodies) {
		b := st.Bodies[id]
		if b.ParentBodyID != model.InvalidID {
			p := st.Bodies[b.ParentBodyID]
			if b.ParentBodyID == id || p == nil || p.SystemID != b.SystemID {
				f.rep.note("Body %d: cleared invalid parent_body_id %d", id, b.ParentBodyID)
				b.ParentBodyID = model.InvalidID
			}
		}
		removed, clamped := cleanAmounts(b.MineralDeposits)
		for _, k := range removed {
			f.rep.note("Body %d: removed deposit entry '%s'", id, k)
		}
		for _, k := range clamped {
			f.rep.note("Body %d: clamped deposit %s to 0", id, k)
		}
	}
}

func (f *fixer) jumpPoints() {
	st := f.st
	for _, id := range model.SortedKeys(st.JumpPoints) {
		jp := st.JumpPoints[id]
		if jp.LinkedJumpID == model.InvalidID {
			continue
		}
		other := st.JumpPoints[jp.LinkedJumpID]
		if jp.LinkedJumpID == id || other == nil || other.LinkedJumpID != id {
			f.rep.note("JumpPoint %d: cleared broken link to %d", id, jp.LinkedJumpID)
			jp.LinkedJumpID = model.InvalidID
		}
	}
}

func (f *fixer) design(id string) *content.ShipDesign {
	if d := f.st.CustomDesigns[id]; d != nil {
		return d
	}
	if f.db != nil {
		return f.db.Designs[id]
	}
	return nil
}

func (f *fixer) ships() {
	st := f.st
	for _, id := range model.SortedKeys(st.Ships) {
		sh := st.Ships[id]
		removed, clamped := cleanAmounts(sh.Cargo)
		for _, k := range removed {
			f.rep.note("Ship %d: removed cargo entry '%s'", id, k)
		}
		for _, k := range clamped {
			delete(sh.Cargo, k)
			f.rep.note("Ship %d: dropped negative cargo %s", id, k)
		}
		d := f.design(sh.DesignID)
		if d == nil {
			continue
		}
		if total := sh.CargoUsedTons(); total > d.CargoTons+1e-6 {
			scale := 0.0
			if total > 0 {
				scale = d.CargoTons / total
			}
			for _, k := range model.SortedKeys(sh.Cargo) {
				sh.Cargo[k] *= scale
			}
			f.rep.note("Ship %d: scaled cargo %.3f t down to capacity %.3f t", id, total, d.CargoTons)
		}
		if d.FuelCapacityTons > 0 && sh.FuelTons > d.FuelCapacityTons+1e-6 {
			f.rep.note("Ship %d: clamped fuel %.3f t to %.3f t", id, sh.FuelTons, d.FuelCapacityTons)
			sh.FuelTons = d.FuelCapacityTons
		}
	}
}

func (f *fixer) wrecks() {
	st := f.st
	for _, id := range model.SortedKeys(st.Wrecks) {
		w := st.Wrecks[id]
		removed, clamped := cleanAmounts(w.Minerals)
		for _, k := range append(removed, clamped...) {
			delete(w.Minerals, k)
			f.rep.note("Wreck %d: removed mineral entry '%s'", id, k)
		}
		if st.Systems[w.SystemID] == nil || len(w.Minerals) == 0 {
			delete(st.Wrecks, id)
			f.rep.note("Removed wreck %d", id)
			continue
		}
		if w.CreatedDay < 0 {
			w.CreatedDay = 0
			f.rep.note("Wreck %d: clamped created_day to 0", id)
		}
	}
}

func (f *fixer) orders() {
	st := f.st
	for _, id := range model.SortedKeys(st.ShipOrders) {
		if st.Ships[id] == nil {
			delete(st.ShipOrders, id)
			f.rep.note("Removed ship_orders for missing ship %d", id)
		}
	}
	for _, id := range model.SortedKeys(st.Ships) {
		if st.ShipOrders[id] == nil {
			st.Orders(id)
			f.rep.note("Ship %d: created empty ship_orders", id)
			continue
		}
		so := st.ShipOrders[id]
		if n := f.dropBadOrders(id, &so.Queue); n > 0 {
			f.rep.note("Ship %d: dropped %d invalid queued orders", id, n)
		}
		if n := f.dropBadOrders(id, &so.RepeatTemplate); n > 0 {
			f.rep.note("Ship %d: dropped %d invalid repeat template orders", id, n)
		}
		if so.RepeatEnabled && len(so.RepeatTemplate) == 0 {
			so.RepeatEnabled = false
			so.RepeatCountRemaining = 0
			f.rep.note("Ship %d: disabled repeat with empty template", id)
		}
		if so.RepeatCountRemaining < -1 {
			so.RepeatCountRemaining = -1
			f.rep.note("Ship %d: reset repeat_count_remaining to -1", id)
		}
	}
}

func (f *fixer) dropBadOrders(shipID model.ID, list *model.OrderList) int {
	kept := (*list)[:0]
	dropped := 0
	for _, o := range *list {
		if orderProblem(f.st, shipID, o) != "" {
			dropped++
			continue
		}
		kept = append(kept, o)
	}
	*list = kept
	return dropped
}

func (f *fixer) colonies() {
	st := f.st
	byBody := map[model.ID]bool{}
	for _, id := range model.SortedKeys(st.Colonies) {
		c := st.Colonies[id]
		if st.Bodies[c.BodyID] == nil || st.Factions[c.FactionID] == nil || byBody[c.BodyID] {
			delete(st.Colonies, id)
			f.rep.note("Removed colony %d ('%s')", id, c.Name)
			continue
		}
		byBody[c.BodyID] = true
		if c.PopulationMillions < 0 || math.IsNaN(c.PopulationMillions) {
			c.PopulationMillions = 0
			f.rep.note("Colony %d: clamped population to 0", id)
		}
		removed, clamped := cleanAmounts(c.Minerals)
		for _, k := range removed {
			f.rep.note("Colony %d: removed mineral entry '%s'", id, k)
		}
		for _, k := range clamped {
			f.rep.note("Colony %d: clamped mineral %s to 0", id, k)
		}
		for _, k := range model.SortedKeys(c.Installations) {
			n := c.Installations[k]
			if k == "" || n < 0 || (f.db != nil && f.db.Installations[k] == nil) {
				delete(c.Installations, k)
				f.rep.note("Colony %d: removed installation entry '%s'", id, k)
			}
		}

		yard := c.ShipyardQueue[:0]
		for _, bo := range c.ShipyardQueue {
			if bo.DesignID == "" || (f.db != nil && f.design(bo.DesignID) == nil) {
				f.rep.note("Colony %d: dropped shipyard order '%s'", id, bo.DesignID)
				continue
			}
			if bo.TonsRemaining < 0 {
				bo.TonsRemaining = 0
				f.rep.note("Colony %d: clamped shipyard tons_remaining for '%s'", id, bo.DesignID)
			}
			yard = append(yard, bo)
		}
		c.ShipyardQueue = yard

		build := c.ConstructionQueue[:0]
		for _, io := range c.ConstructionQueue {
			if io.InstallationID == "" || io.QuantityRemaining <= 0 ||
				(f.db != nil && f.db.Installations[io.InstallationID] == nil) {
				f.rep.note("Colony %d: dropped construction order '%s'", id, io.InstallationID)
				continue
			}
			build = append(build, io)
		}
		c.ConstructionQueue = build
	}
	for _, id := range model.SortedKeys(st.GroundBattles) {
		if st.Colonies[id] == nil {
			delete(st.GroundBattles, id)
			f.rep.note("Removed ground battle at missing colony %d", id)
		}
	}
}

func (f *fixer) factions() {
	st := f.st
	for _, id := range model.SortedKeys(st.Factions) {
		fa := st.Factions[id]
		for _, other := range model.SortedKeys(fa.Relations) {
			if st.Factions[other] == nil || other == id {
				delete(fa.Relations, other)
				f.rep.note("Faction %d: removed relation to %d", id, other)
			}
		}
		var changed bool
		if fa.DiscoveredSystems, changed = pruneIDs(fa.DiscoveredSystems, func(s model.ID) bool {
			return st.Systems[s] != nil
		}); changed {
			f.rep.note("Faction %d: canonicalised discovered_systems", id)
		}
		if fa.SurveyedJumpPoints, changed = pruneIDs(fa.SurveyedJumpPoints, func(j model.ID) bool {
			return st.JumpPoints[j] != nil
		}); changed {
			f.rep.note("Faction %d: canonicalised surveyed_jump_points", id)
		}
		if techs := sortedUnique(fa.KnownTechs); !slices.Equal(techs, fa.KnownTechs) {
			fa.KnownTechs = techs
			f.rep.note("Faction %d: canonicalised known_techs", id)
		}
		if f.db != nil {
			queue := fa.ResearchQueue[:0]
			for _, t := range fa.ResearchQueue {
				if f.db.Techs[t] != nil {
					queue = append(queue, t)
				} else {
					f.rep.note("Faction %d: dropped unknown tech '%s' from research_queue", id, t)
				}
			}
			fa.ResearchQueue = queue
		}
	}
}

func (f *fixer) fleets() {
	st := f.st
	owner := map[model.ID]bool{}
	for _, id := range model.SortedKeys(st.Fleets) {
		fl := st.Fleets[id]
		if st.Factions[fl.FactionID] == nil {
			delete(st.Fleets, id)
			f.rep.note("Removed fleet %d with unknown faction", id)
			continue
		}
		// Lower fleet ids keep ships claimed by several fleets.
		members, changed := pruneIDs(fl.ShipIDs, func(s model.ID) bool {
			sh := st.Ships[s]
			return sh != nil && sh.FactionID == fl.FactionID && !owner[s]
		})
		if changed {
			fl.ShipIDs = members
			f.rep.note("Fleet %d: rebuilt member list", id)
		}
		for _, s := range members {
			owner[s] = true
		}
		if fl.LeaderShipID != model.InvalidID && !slices.Contains(members, fl.LeaderShipID) {
			lead := model.InvalidID
			if len(members) > 0 {
				lead = members[0]
			}
			f.rep.note("Fleet %d: leader %d replaced by %d", id, fl.LeaderShipID, lead)
			fl.LeaderShipID = lead
		}
	}
}

func (f *fixer) diplomacy() {
	st := f.st
	for _, id := range model.SortedKeys(st.Treaties) {
		t := st.Treaties[id]
		if st.Factions[t.FactionA] == nil || st.Factions[t.FactionB] == nil || t.FactionA == t.FactionB {
			delete(st.Treaties, id)
			f.rep.note("Removed treaty %d", id)
		}
	}
	for _, id := range model.SortedKeys(st.DiplomaticOffers) {
		o := st.DiplomaticOffers[id]
		if st.Factions[o.FromFactionID] == nil || st.Factions[o.ToFactionID] == nil {
			delete(st.DiplomaticOffers, id)
			f.rep.note("Removed diplomatic offer %d", id)
		}
	}
}

func (f *fixer) counters() {
	st := f.st
	var maxID model.ID
	bump := func(id model.ID) { maxID = max(maxID, id) }
	for id := range st.Systems {
		bump(id)
	}
	for id := range st.Regions {
		bump(id)
	}
	for id := range st.Bodies {
		bump(id)
	}
	for id := range st.JumpPoints {
		bump(id)
	}
	for id := range st.Ships {
		bump(id)
	}
	for id := range st.Wrecks {
		bump(id)
	}
	for id := range st.Anomalies {
		bump(id)
	}
	for id := range st.MissileSalvos {
		bump(id)
	}
	for id := range st.Colonies {
		bump(id)
	}
	for id := range st.Factions {
		bump(id)
	}
	for id := range st.Treaties {
		bump(id)
	}
	for id := range st.DiplomaticOffers {
		bump(id)
	}
	for id := range st.Fleets {
		bump(id)
	}
	if maxID != model.InvalidID && st.NextID <= maxID {
		f.rep.note("Raised next_id from %d to %d", st.NextID, maxID+1)
		st.NextID = maxID + 1
	}

	var last uint64
	sorted := true
	for i, ev := range st.Events {
		if i > 0 && ev.Seq <= last {
			sorted = false
		}
		last = max(last, ev.Seq)
	}
	if !sorted {
		slices.SortStableFunc(st.Events, func(a, b model.SimEvent) int {
			switch {
			case a.Seq < b.Seq:
				return -1
			case a.Seq > b.Seq:
				return 1
			}
			return 0
		})
		st.Events = slices.CompactFunc(st.Events, func(a, b model.SimEvent) bool { return a.Seq == b.Seq })
		f.rep.note("Sorted event log by seq")
	}
	if len(st.Events) > 0 && st.NextEventSeq <= last {
		f.rep.note("Raised next_event_seq from %d to %d", st.NextEventSeq, last+1)
		st.NextEventSeq = last + 1
	}
}
