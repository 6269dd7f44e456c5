// Package validate checks a game state for broken references and malformed
// collections, and conservatively repairs what it can.
package validate

import (
	"fmt"
	"math"
	"slices"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
)

type checker struct {
	st   *model.GameState
	db   *content.DB
	errs []string
}

func (c *checker) add(format string, args ...any) {
	c.errs = append(c.errs, fmt.Sprintf(format, args...))
}

func (c *checker) design(id string) *content.ShipDesign {
	if d := c.st.CustomDesigns[id]; d != nil {
		return d
	}
	if c.db != nil {
		return c.db.Designs[id]
	}
	return nil
}

func hasDuplicates(ids []model.ID) bool {
	seen := make(map[model.ID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return true
		}
		seen[id] = true
	}
	return false
}

func sortedUnique(xs []string) []string {
	out := slices.Clone(xs)
	slices.Sort(out)
	return slices.Compact(out)
}

// Validate returns one human-readable line per problem, in a stable order.
// db may be nil, in which case content references are not checked.
func Validate(st *model.GameState, db *content.DB) []string {
	c := &checker{st: st, db: db}
	c.ids()
	c.systems()
	c.bodies()
	c.jumpPoints()
	c.ships()
	c.wrecks()
	c.orders()
	c.colonies()
	c.factions()
	c.fleets()
	c.diplomacy()
	c.events()
	return c.errs
}

func (c *checker) ids() {
	st := c.st
	var maxID model.ID
	check := func(kind string, key, val model.ID) {
		if key != val {
			c.add("%s id mismatch: key=%d value.id=%d", kind, key, val)
		}
		maxID = max(maxID, key)
	}
	for _, id := range model.SortedKeys(st.Systems) {
		check("StarSystem", id, st.Systems[id].ID)
	}
	for _, id := range model.SortedKeys(st.Regions) {
		check("Region", id, st.Regions[id].ID)
	}
	for _, id := range model.SortedKeys(st.Bodies) {
		check("Body", id, st.Bodies[id].ID)
	}
	for _, id := range model.SortedKeys(st.JumpPoints) {
		check("JumpPoint", id, st.JumpPoints[id].ID)
	}
	for _, id := range model.SortedKeys(st.Ships) {
		check("Ship", id, st.Ships[id].ID)
	}
	for _, id := range model.SortedKeys(st.Wrecks) {
		check("Wreck", id, st.Wrecks[id].ID)
	}
	for _, id := range model.SortedKeys(st.Anomalies) {
		check("Anomaly", id, st.Anomalies[id].ID)
	}
	for _, id := range model.SortedKeys(st.MissileSalvos) {
		check("MissileSalvo", id, st.MissileSalvos[id].ID)
	}
	for _, id := range model.SortedKeys(st.Colonies) {
		check("Colony", id, st.Colonies[id].ID)
	}
	for _, id := range model.SortedKeys(st.Factions) {
		check("Faction", id, st.Factions[id].ID)
	}
	for _, id := range model.SortedKeys(st.Treaties) {
		check("Treaty", id, st.Treaties[id].ID)
	}
	for _, id := range model.SortedKeys(st.DiplomaticOffers) {
		check("DiplomaticOffer", id, st.DiplomaticOffers[id].ID)
	}
	for _, id := range model.SortedKeys(st.Fleets) {
		check("Fleet", id, st.Fleets[id].ID)
	}
	if maxID != model.InvalidID && st.NextID <= maxID {
		c.add("next_id %d is not above the largest entity id %d", st.NextID, maxID)
	}
	if st.SelectedSystem != model.InvalidID && st.Systems[st.SelectedSystem] == nil {
		c.add("selected_system references unknown system id %d", st.SelectedSystem)
	}
}

func (c *checker) systems() {
	st := c.st
	for _, sid := range model.SortedKeys(st.Systems) {
		sys := st.Systems[sid]
		if sys.RegionID != model.InvalidID && st.Regions[sys.RegionID] == nil {
			c.add("System %d ('%s') references missing region %d", sid, sys.Name, sys.RegionID)
		}
		for _, bid := range sys.Bodies {
			switch b := st.Bodies[bid]; {
			case b == nil:
				c.add("System %d ('%s') references missing body %d", sid, sys.Name, bid)
			case b.SystemID != sid:
				c.add("System %d ('%s') lists body %d which belongs to system %d", sid, sys.Name, bid, b.SystemID)
			}
		}
		for _, shid := range sys.Ships {
			switch sh := st.Ships[shid]; {
			case sh == nil:
				c.add("System %d ('%s') references missing ship %d", sid, sys.Name, shid)
			case sh.SystemID != sid:
				c.add("System %d ('%s') lists ship %d which is in system %d", sid, sys.Name, shid, sh.SystemID)
			}
		}
		for _, jid := range sys.JumpPoints {
			switch jp := st.JumpPoints[jid]; {
			case jp == nil:
				c.add("System %d ('%s') references missing jump point %d", sid, sys.Name, jid)
			case jp.SystemID != sid:
				c.add("System %d ('%s') lists jump point %d which belongs to system %d", sid, sys.Name, jid, jp.SystemID)
			}
		}
		if hasDuplicates(sys.Bodies) || hasDuplicates(sys.Ships) || hasDuplicates(sys.JumpPoints) {
			c.add("System %d ('%s') has duplicate entries in its entity lists", sid, sys.Name)
		}
	}
}

func (c *checker) bodies() {
	st := c.st
	for _, bid := range model.SortedKeys(st.Bodies) {
		b := st.Bodies[bid]
		sys := st.Systems[b.SystemID]
		if sys == nil {
			c.add("Body %d ('%s') references unknown system_id %d", bid, b.Name, b.SystemID)
		} else if !slices.Contains(sys.Bodies, bid) {
			c.add("Body %d ('%s') is not listed by its system %d", bid, b.Name, b.SystemID)
		}
		if b.ParentBodyID != model.InvalidID {
			switch p := st.Bodies[b.ParentBodyID]; {
			case b.ParentBodyID == bid:
				c.add("Body %d ('%s') parent_body_id references itself", bid, b.Name)
			case p == nil:
				c.add("Body %d ('%s') references missing parent_body_id %d", bid, b.Name, b.ParentBodyID)
			case p.SystemID != b.SystemID:
				c.add("Body %d ('%s') parent_body_id %d is in a different system", bid, b.Name, b.ParentBodyID)
			}
		}
		for _, k := range model.SortedKeys(b.MineralDeposits) {
			if k == "" {
				c.add("Body %d ('%s') has an empty mineral key in mineral_deposits", bid, b.Name)
			} else if v := b.MineralDeposits[k]; v < 0 || math.IsNaN(v) {
				c.add("Body %d ('%s') has invalid deposit %s=%v", bid, b.Name, k, v)
			}
		}
	}
}

func (c *checker) jumpPoints() {
	st := c.st
	for _, jid := range model.SortedKeys(st.JumpPoints) {
		jp := st.JumpPoints[jid]
		sys := st.Systems[jp.SystemID]
		if sys == nil {
			c.add("JumpPoint %d ('%s') references unknown system_id %d", jid, jp.Name, jp.SystemID)
		} else if !slices.Contains(sys.JumpPoints, jid) {
			c.add("JumpPoint %d ('%s') is not listed by its system %d", jid, jp.Name, jp.SystemID)
		}
		if jp.LinkedJumpID == model.InvalidID {
			continue
		}
		if jp.LinkedJumpID == jid {
			c.add("JumpPoint %d ('%s') links to itself", jid, jp.Name)
			continue
		}
		other := st.JumpPoints[jp.LinkedJumpID]
		if other == nil {
			c.add("JumpPoint %d ('%s') links to missing jump point %d", jid, jp.Name, jp.LinkedJumpID)
		} else if other.LinkedJumpID != jid {
			c.add("JumpPoint %d ('%s') link to %d is not reciprocated", jid, jp.Name, jp.LinkedJumpID)
		}
	}
}

func (c *checker) ships() {
	st := c.st
	for _, sid := range model.SortedKeys(st.Ships) {
		sh := st.Ships[sid]
		sys := st.Systems[sh.SystemID]
		if sys == nil {
			c.add("Ship %d ('%s') references unknown system_id %d", sid, sh.Name, sh.SystemID)
		} else if !slices.Contains(sys.Ships, sid) {
			c.add("Ship %d ('%s') is not listed by its system %d", sid, sh.Name, sh.SystemID)
		}
		if st.Factions[sh.FactionID] == nil {
			c.add("Ship %d ('%s') references unknown faction_id %d", sid, sh.Name, sh.FactionID)
		}
		if sh.DesignID == "" {
			c.add("Ship %d ('%s') has empty design_id", sid, sh.Name)
			continue
		}
		d := c.design(sh.DesignID)
		if d == nil {
			if c.db != nil {
				c.add("Ship %d ('%s') references unknown design_id '%s'", sid, sh.Name, sh.DesignID)
			}
			continue
		}
		total := 0.0
		for _, k := range model.SortedKeys(sh.Cargo) {
			v := sh.Cargo[k]
			if v < 0 || math.IsNaN(v) {
				c.add("Ship %d ('%s') has invalid cargo %s=%v", sid, sh.Name, k, v)
				continue
			}
			total += v
		}
		if total > d.CargoTons+1e-6 {
			c.add("Ship %d ('%s') cargo %.3f t exceeds capacity %.3f t", sid, sh.Name, total, d.CargoTons)
		}
		if d.FuelCapacityTons > 0 && sh.FuelTons > d.FuelCapacityTons+1e-6 {
			c.add("Ship %d ('%s') fuel %.3f t exceeds capacity %.3f t", sid, sh.Name, sh.FuelTons, d.FuelCapacityTons)
		}
	}
}

func (c *checker) wrecks() {
	st := c.st
	for _, wid := range model.SortedKeys(st.Wrecks) {
		w := st.Wrecks[wid]
		if st.Systems[w.SystemID] == nil {
			c.add("Wreck %d ('%s') references unknown system_id %d", wid, w.Name, w.SystemID)
		}
		if len(w.Minerals) == 0 {
			c.add("Wreck %d ('%s') has no minerals", wid, w.Name)
		}
		for _, k := range model.SortedKeys(w.Minerals) {
			if v := w.Minerals[k]; k == "" || v < 0 || math.IsNaN(v) {
				c.add("Wreck %d ('%s') has invalid mineral entry '%s'=%v", wid, w.Name, k, v)
			}
		}
		if w.CreatedDay < 0 {
			c.add("Wreck %d ('%s') has negative created_day %d", wid, w.Name, w.CreatedDay)
		}
	}
}

func (c *checker) orders() {
	st := c.st
	for _, sid := range model.SortedKeys(st.ShipOrders) {
		so := st.ShipOrders[sid]
		if st.Ships[sid] == nil {
			c.add("ship_orders contains entry for missing ship id %d", sid)
			continue
		}
		if so == nil {
			continue
		}
		for i, o := range so.Queue {
			if msg := orderProblem(st, sid, o); msg != "" {
				c.add("Ship %d order[%d]: %s", sid, i, msg)
			}
		}
		for i, o := range so.RepeatTemplate {
			if msg := orderProblem(st, sid, o); msg != "" {
				c.add("Ship %d repeat_template[%d]: %s", sid, i, msg)
			}
		}
		if so.RepeatCountRemaining < -1 {
			c.add("Ship %d has invalid repeat_count_remaining %d", sid, so.RepeatCountRemaining)
		}
	}
	for _, sid := range model.SortedKeys(st.Ships) {
		if st.ShipOrders[sid] == nil {
			c.add("Ship %d has no ship_orders entry", sid)
		}
	}
}

// orderProblem describes what is wrong with one order, or "" when it is fine.
func orderProblem(st *model.GameState, shipID model.ID, o model.Order) string {
	body := func(kind string, id model.ID) string {
		if id == model.InvalidID {
			return kind + " has invalid body_id"
		}
		if st.Bodies[id] == nil {
			return fmt.Sprintf("%s references missing body_id %d", kind, id)
		}
		return ""
	}
	colony := func(kind string, id model.ID) string {
		if id == model.InvalidID {
			return kind + " has invalid colony_id"
		}
		if st.Colonies[id] == nil {
			return fmt.Sprintf("%s references missing colony_id %d", kind, id)
		}
		return ""
	}
	ship := func(kind string, id model.ID) string {
		switch {
		case id == model.InvalidID:
			return kind + " has invalid target_ship_id"
		case id == shipID:
			return kind + " targets itself"
		case st.Ships[id] == nil:
			return fmt.Sprintf("%s references missing target_ship_id %d", kind, id)
		}
		return ""
	}

	switch o := o.(type) {
	case *model.MoveToPoint:
		if math.IsNaN(o.Target.X) || math.IsNaN(o.Target.Y) {
			return "MoveToPoint has a non-finite target"
		}
	case *model.MoveToBody:
		return body("MoveToBody", o.BodyID)
	case *model.ColonizeBody:
		return body("ColonizeBody", o.BodyID)
	case *model.OrbitBody:
		if msg := body("OrbitBody", o.BodyID); msg != "" {
			return msg
		}
		if o.DurationDays < -1 {
			return fmt.Sprintf("OrbitBody has invalid duration_days %d", o.DurationDays)
		}
	case *model.MineBody:
		return body("MineBody", o.BodyID)
	case *model.TravelViaJump:
		if o.JumpPointID == model.InvalidID {
			return "TravelViaJump has invalid jump_point_id"
		}
		if st.JumpPoints[o.JumpPointID] == nil {
			return fmt.Sprintf("TravelViaJump references missing jump_point_id %d", o.JumpPointID)
		}
	case *model.AttackShip:
		if o.TargetShipID == shipID {
			return "AttackShip targets itself"
		}
		if o.TargetShipID == model.InvalidID {
			return "AttackShip has invalid target_ship_id"
		}
		// A destroyed target with a last-known position is a valid hunt.
		if st.Ships[o.TargetShipID] == nil && !o.HasLastKnown {
			return fmt.Sprintf("AttackShip references missing target_ship_id %d", o.TargetShipID)
		}
	case *model.EscortShip:
		if msg := ship("EscortShip", o.TargetShipID); msg != "" {
			return msg
		}
		if o.FollowDistanceMkm < 0 || math.IsNaN(o.FollowDistanceMkm) {
			return fmt.Sprintf("EscortShip has invalid follow_distance_mkm %v", o.FollowDistanceMkm)
		}
	case *model.WaitDays:
		if o.DaysRemaining < 0 {
			return fmt.Sprintf("WaitDays has negative days_remaining %d", o.DaysRemaining)
		}
	case *model.LoadMineral:
		return colony("LoadMineral", o.ColonyID)
	case *model.UnloadMineral:
		return colony("UnloadMineral", o.ColonyID)
	case *model.LoadTroops:
		return colony("LoadTroops", o.ColonyID)
	case *model.UnloadTroops:
		return colony("UnloadTroops", o.ColonyID)
	case *model.LoadColonists:
		if msg := colony("LoadColonists", o.ColonyID); msg != "" {
			return msg
		}
		if o.Millions < 0 {
			return fmt.Sprintf("LoadColonists has invalid millions %v", o.Millions)
		}
	case *model.UnloadColonists:
		if msg := colony("UnloadColonists", o.ColonyID); msg != "" {
			return msg
		}
		if o.Millions < 0 {
			return fmt.Sprintf("UnloadColonists has invalid millions %v", o.Millions)
		}
	case *model.InvadeColony:
		return colony("InvadeColony", o.ColonyID)
	case *model.BombardColony:
		if msg := colony("BombardColony", o.ColonyID); msg != "" {
			return msg
		}
		if o.DurationDays < -1 {
			return fmt.Sprintf("BombardColony has invalid duration_days %d", o.DurationDays)
		}
	case *model.ScrapShip:
		return colony("ScrapShip", o.ColonyID)
	case *model.SalvageWreck:
		if o.WreckID == model.InvalidID {
			return "SalvageWreck has invalid wreck_id"
		}
		if st.Wrecks[o.WreckID] == nil {
			return fmt.Sprintf("SalvageWreck references missing wreck_id %d", o.WreckID)
		}
		if o.Tons < 0 {
			return fmt.Sprintf("SalvageWreck has invalid tons %v", o.Tons)
		}
	case *model.InvestigateAnomaly:
		if st.Anomalies[o.AnomalyID] == nil {
			return fmt.Sprintf("InvestigateAnomaly references missing anomaly_id %d", o.AnomalyID)
		}
	case *model.TransferCargoToShip:
		return ship("TransferCargoToShip", o.TargetShipID)
	case *model.TransferFuelToShip:
		return ship("TransferFuelToShip", o.TargetShipID)
	case *model.TransferTroopsToShip:
		return ship("TransferTroopsToShip", o.TargetShipID)
	case nil:
		return "Unknown order type"
	}
	return ""
}

func (c *checker) colonies() {
	st := c.st
	byBody := map[model.ID]model.ID{}
	for _, cid := range model.SortedKeys(st.Colonies) {
		col := st.Colonies[cid]
		if st.Factions[col.FactionID] == nil {
			c.add("Colony %d ('%s') references unknown faction_id %d", cid, col.Name, col.FactionID)
		}
		if st.Bodies[col.BodyID] == nil {
			c.add("Colony %d ('%s') references unknown body_id %d", cid, col.Name, col.BodyID)
		} else if prev, dup := byBody[col.BodyID]; dup {
			c.add("Colony %d ('%s') shares body %d with colony %d", cid, col.Name, col.BodyID, prev)
		} else {
			byBody[col.BodyID] = cid
		}
		if col.PopulationMillions < 0 || math.IsNaN(col.PopulationMillions) {
			c.add("Colony %d ('%s') has invalid population %v", cid, col.Name, col.PopulationMillions)
		}
		for _, k := range model.SortedKeys(col.Minerals) {
			if v := col.Minerals[k]; k == "" || v < 0 || math.IsNaN(v) {
				c.add("Colony %d ('%s') has invalid mineral entry '%s'=%v", cid, col.Name, k, v)
			}
		}
		for _, k := range model.SortedKeys(col.Installations) {
			switch n := col.Installations[k]; {
			case k == "":
				c.add("Colony %d ('%s') has an installation entry with empty id", cid, col.Name)
			case n < 0:
				c.add("Colony %d ('%s') has negative installation count %s=%d", cid, col.Name, k, n)
			case c.db != nil && c.db.Installations[k] == nil:
				c.add("Colony %d ('%s') has unknown installation '%s'", cid, col.Name, k)
			}
		}
		for i, bo := range col.ShipyardQueue {
			switch {
			case bo.DesignID == "":
				c.add("Colony %d shipyard_queue[%d] has empty design_id", cid, i)
			case c.db != nil && c.design(bo.DesignID) == nil:
				c.add("Colony %d shipyard_queue[%d] references unknown design '%s'", cid, i, bo.DesignID)
			case bo.TonsRemaining < 0:
				c.add("Colony %d shipyard_queue[%d] has negative tons_remaining %v", cid, i, bo.TonsRemaining)
			}
		}
		for i, io := range col.ConstructionQueue {
			switch {
			case io.InstallationID == "":
				c.add("Colony %d construction_queue[%d] has empty installation_id", cid, i)
			case c.db != nil && c.db.Installations[io.InstallationID] == nil:
				c.add("Colony %d construction_queue[%d] references unknown installation '%s'", cid, i, io.InstallationID)
			case io.QuantityRemaining <= 0:
				c.add("Colony %d construction_queue[%d] has non-positive quantity_remaining %d", cid, i, io.QuantityRemaining)
			}
		}
	}
}

func (c *checker) factions() {
	st := c.st
	for _, fid := range model.SortedKeys(st.Factions) {
		f := st.Factions[fid]
		for _, other := range model.SortedKeys(f.Relations) {
			if st.Factions[other] == nil {
				c.add("Faction %d ('%s') has a relation to unknown faction %d", fid, f.Name, other)
			}
		}
		for _, sid := range f.DiscoveredSystems {
			if st.Systems[sid] == nil {
				c.add("Faction %d ('%s') discovered_systems references missing system %d", fid, f.Name, sid)
			}
		}
		for _, jid := range f.SurveyedJumpPoints {
			if st.JumpPoints[jid] == nil {
				c.add("Faction %d ('%s') surveyed_jump_points references missing jump point %d", fid, f.Name, jid)
			}
		}
		if hasDuplicates(f.DiscoveredSystems) || hasDuplicates(f.SurveyedJumpPoints) {
			c.add("Faction %d ('%s') has duplicate discovery entries", fid, f.Name)
		}
		if c.db != nil {
			for _, t := range f.ResearchQueue {
				if c.db.Techs[t] == nil {
					c.add("Faction %d ('%s') research_queue references unknown tech '%s'", fid, f.Name, t)
				}
			}
		}
		if len(sortedUnique(f.KnownTechs)) != len(f.KnownTechs) {
			c.add("Faction %d ('%s') has duplicate known_techs", fid, f.Name)
		}
	}
}

func (c *checker) fleets() {
	st := c.st
	owner := map[model.ID]model.ID{}
	for _, flid := range model.SortedKeys(st.Fleets) {
		fl := st.Fleets[flid]
		if st.Factions[fl.FactionID] == nil {
			c.add("Fleet %d ('%s') references unknown faction_id %d", flid, fl.Name, fl.FactionID)
		}
		for _, sid := range fl.ShipIDs {
			sh := st.Ships[sid]
			switch {
			case sh == nil:
				c.add("Fleet %d ('%s') references missing ship %d", flid, fl.Name, sid)
				continue
			case sh.FactionID != fl.FactionID:
				c.add("Fleet %d ('%s') member %d belongs to faction %d", flid, fl.Name, sid, sh.FactionID)
			}
			if prev, ok := owner[sid]; ok && prev != flid {
				c.add("Ship %d is a member of fleets %d and %d", sid, prev, flid)
			}
			owner[sid] = flid
		}
		if hasDuplicates(fl.ShipIDs) {
			c.add("Fleet %d ('%s') has duplicate members", flid, fl.Name)
		}
		if fl.LeaderShipID != model.InvalidID && !slices.Contains(fl.ShipIDs, fl.LeaderShipID) {
			c.add("Fleet %d ('%s') leader %d is not a member", flid, fl.Name, fl.LeaderShipID)
		}
	}
}

func (c *checker) diplomacy() {
	st := c.st
	for _, tid := range model.SortedKeys(st.Treaties) {
		t := st.Treaties[tid]
		if st.Factions[t.FactionA] == nil || st.Factions[t.FactionB] == nil || t.FactionA == t.FactionB {
			c.add("Treaty %d has invalid factions %d and %d", tid, t.FactionA, t.FactionB)
		}
	}
	for _, oid := range model.SortedKeys(st.DiplomaticOffers) {
		o := st.DiplomaticOffers[oid]
		if st.Factions[o.FromFactionID] == nil || st.Factions[o.ToFactionID] == nil {
			c.add("DiplomaticOffer %d has invalid factions %d and %d", oid, o.FromFactionID, o.ToFactionID)
		}
	}
	for _, cid := range model.SortedKeys(st.GroundBattles) {
		if st.Colonies[cid] == nil {
			c.add("GroundBattle references missing colony %d", cid)
		}
	}
}

func (c *checker) events() {
	st := c.st
	var last uint64
	for i, ev := range st.Events {
		if i > 0 && ev.Seq <= last {
			c.add("events[%d] seq %d is not above the previous seq %d", i, ev.Seq, last)
		}
		last = max(last, ev.Seq)
	}
	if len(st.Events) > 0 && st.NextEventSeq <= last {
		c.add("next_event_seq %d is not above the last event seq %d", st.NextEventSeq, last)
	}
}
