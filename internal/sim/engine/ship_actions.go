package engine

import (
	"fmt"
	"maps"
	"math"
	"strings"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
)

// arrive performs the terminal action of an order once the ship is at its
// goal.
func (s *Simulation) arrive(sh *model.Ship, d *content.ShipDesign, so *model.ShipOrders, ord model.Order, g goal, dt float64, coh *cohesion, key cohortKey, hasKey bool) {
	st := s.state
	switch o := ord.(type) {
	case *model.MoveToPoint, *model.MoveToBody:
		so.Pop()

	case *model.OrbitBody:
		if advanceDays(&o.DurationDays, &o.ProgressDays, dt) {
			so.Pop()
		}

	case *model.TravelViaJump:
		if hasKey && s.cfg.FleetCoordinatedJumps {
			if ready, grouped := coh.jumpReady[key]; grouped && !ready {
				return
			}
		}
		so.Pop()
		if jp := st.JumpPoints[o.JumpPointID]; jp != nil {
			s.transitJump(sh, jp)
		}

	case *model.EscortShip:
		if g.viaJump != nil {
			s.transitJump(sh, g.viaJump)
		}

	case *model.ColonizeBody:
		so.Pop()
		s.colonize(sh, d, o)

	case *model.ScrapShip:
		so.Pop()
		if c := st.Colonies[o.ColonyID]; c != nil {
			s.scrap(sh, d, c)
		}

	case *model.LoadMineral:
		c := st.Colonies[o.ColonyID]
		moved := moveTons(c.Minerals, &sh.Cargo, o.Mineral, o.Tons, cargoRoom(sh, d), func(k string) float64 {
			return math.Max(0, c.MineralReserves[k])
		}, nil)
		finishTransfer(so, &o.Tons, moved)

	case *model.UnloadMineral:
		c := st.Colonies[o.ColonyID]
		moved := moveTons(sh.Cargo, &c.Minerals, o.Mineral, o.Tons, math.Inf(1), nil, nil)
		finishTransfer(so, &o.Tons, moved)

	case *model.TransferCargoToShip:
		tgt := st.Ships[o.TargetShipID]
		moved := moveTons(sh.Cargo, &tgt.Cargo, o.Mineral, o.Tons, cargoRoom(tgt, s.FindDesign(tgt.DesignID)), nil, nil)
		finishTransfer(so, &o.Tons, moved)

	case *model.LoadTroops:
		c := st.Colonies[o.ColonyID]
		room := 0.0
		if d != nil {
			room = d.TroopCapacity - sh.Troops
		}
		moved := moveScalar(&c.GroundForces, &sh.Troops, o.Strength, room)
		finishTransfer(so, &o.Strength, moved)

	case *model.UnloadTroops:
		c := st.Colonies[o.ColonyID]
		moved := moveScalar(&sh.Troops, &c.GroundForces, o.Strength, math.Inf(1))
		finishTransfer(so, &o.Strength, moved)

	case *model.TransferTroopsToShip:
		tgt := st.Ships[o.TargetShipID]
		room := 0.0
		if td := s.FindDesign(tgt.DesignID); td != nil {
			room = td.TroopCapacity - tgt.Troops
		}
		moved := moveScalar(&sh.Troops, &tgt.Troops, o.Strength, room)
		finishTransfer(so, &o.Strength, moved)

	case *model.LoadColonists:
		c := st.Colonies[o.ColonyID]
		room := 0.0
		if d != nil {
			room = d.ColonyCapacityMillions - sh.ColonistsMillions
		}
		moved := moveScalar(&c.PopulationMillions, &sh.ColonistsMillions, o.Millions, room)
		s.colonistEvent(sh, c, moved, "loaded")
		finishTransfer(so, &o.Millions, moved)

	case *model.UnloadColonists:
		c := st.Colonies[o.ColonyID]
		moved := moveScalar(&sh.ColonistsMillions, &c.PopulationMillions, o.Millions, math.Inf(1))
		s.colonistEvent(sh, c, moved, "unloaded")
		finishTransfer(so, &o.Millions, moved)

	case *model.TransferFuelToShip:
		tgt := st.Ships[o.TargetShipID]
		room := 0.0
		if td := s.FindDesign(tgt.DesignID); td != nil {
			room = td.FuelCapacityTons - tgt.FuelTons
		}
		moved := moveScalar(&sh.FuelTons, &tgt.FuelTons, o.Tons, room)
		finishTransfer(so, &o.Tons, moved)

	case *model.InvadeColony:
		so.Pop()
		s.invade(sh, st.Colonies[o.ColonyID])

	case *model.SalvageWreck:
		s.salvage(sh, d, so, o)

	case *model.InvestigateAnomaly:
		s.investigate(sh, d, so, o, dt)

	case *model.MineBody:
		s.mineBody(sh, d, so, o, dt)
	}
}

// moveTons moves up to want tons (want <= 0 means no limit) of one mineral,
// or of every mineral in name order when mineral is empty, from src into dst
// without exceeding room. floor keeps a reserve in the source. Emptied
// source entries are erased.
func moveTons(src map[string]float64, dst *map[string]float64, mineral string, want, room float64, floor func(string) float64, onMove func(string, float64)) float64 {
	limit := want
	if !(limit > 0) {
		limit = math.Inf(1)
	}
	keys := []string{mineral}
	if mineral == "" {
		keys = model.SortedKeys(src)
	}
	moved := 0.0
	for _, k := range keys {
		left := math.Min(limit, room) - moved
		if left <= 1e-9 {
			break
		}
		avail := src[k]
		if floor != nil {
			avail -= floor(k)
		}
		if avail <= 1e-9 {
			continue
		}
		take := math.Min(avail, left)
		src[k] -= take
		if src[k] <= 1e-9 {
			delete(src, k)
		}
		if *dst == nil {
			*dst = map[string]float64{}
		}
		(*dst)[k] += take
		moved += take
		if onMove != nil {
			onMove(k, take)
		}
	}
	return moved
}

// moveScalar moves up to want (want <= 0 means all) from *src to *dst,
// capped by room.
func moveScalar(src, dst *float64, want, room float64) float64 {
	take := math.Min(math.Max(0, *src), math.Max(0, room))
	if want > 0 {
		take = math.Min(take, want)
	}
	if take <= 1e-9 {
		return 0
	}
	*src -= take
	*dst += take
	return take
}

// finishTransfer pops a transfer order once its requested amount is done or
// nothing more moved. Orders without an amount are one-shot.
func finishTransfer(so *model.ShipOrders, amount *float64, moved float64) {
	if !(*amount > 0) {
		so.Pop()
		return
	}
	*amount = math.Max(0, *amount-moved)
	if *amount <= 1e-9 || moved <= 1e-9 {
		so.Pop()
	}
}

func cargoRoom(sh *model.Ship, d *content.ShipDesign) float64 {
	if d == nil {
		return 0
	}
	return math.Max(0, d.CargoTons-sh.CargoUsedTons())
}

func (s *Simulation) colonistEvent(sh *model.Ship, c *model.Colony, moved float64, verb string) {
	if moved <= 1e-9 {
		return
	}
	s.pushEvent(model.EventInfo, model.CategoryMovement,
		fmt.Sprintf("Ship %s %s %.2fM colonists at colony %s", sh.Name, verb, moved, c.Name),
		EventContext{FactionID: sh.FactionID, SystemID: sh.SystemID, ShipID: sh.ID, ColonyID: c.ID})
}

// transitJump moves the ship through jp to its linked jump point.
func (s *Simulation) transitJump(sh *model.Ship, jp *model.JumpPoint) bool {
	st := s.state
	dst := st.JumpPoints[jp.LinkedJumpID]
	if dst == nil || st.Systems[dst.SystemID] == nil {
		return false
	}
	if src := st.Systems[sh.SystemID]; src != nil {
		src.Ships = model.RemoveID(src.Ships, sh.ID)
	}
	sh.SystemID = dst.SystemID
	sh.PositionMkm = dst.PositionMkm
	to := st.Systems[dst.SystemID]
	to.Ships = model.AddUniqueID(to.Ships, sh.ID)

	s.discoverSystem(sh.FactionID, dst.SystemID)
	s.surveyJumpPoint(sh.FactionID, jp.ID)
	s.surveyJumpPoint(sh.FactionID, dst.ID)

	if ctl, _ := s.factionControl(sh.FactionID); ctl == model.ControlAIPassive {
		return true
	}
	msg := fmt.Sprintf("Ship %s transited jump point %s -> %s", sh.Name, jp.Name, to.Name)
	s.log.Debug("jump transit", "ship_id", sh.ID, "from", jp.SystemID, "to", dst.SystemID)
	s.pushEvent(model.EventInfo, model.CategoryMovement, msg,
		EventContext{FactionID: sh.FactionID, SystemID: dst.SystemID, ShipID: sh.ID})
	return true
}

// removeShip erases a ship and every reference to it.
func (s *Simulation) removeShip(id model.ID) {
	st := s.state
	sh := st.Ships[id]
	if sh == nil {
		return
	}
	if sys := st.Systems[sh.SystemID]; sys != nil {
		sys.Ships = model.RemoveID(sys.Ships, id)
	}
	delete(st.ShipOrders, id)
	delete(st.Ships, id)
	s.detachFromFleets(id)
	for _, fid := range model.SortedKeys(st.Factions) {
		delete(st.Factions[fid].ShipContacts, id)
	}
	for _, mid := range model.SortedKeys(st.MissileSalvos) {
		if st.MissileSalvos[mid].TargetShipID == id {
			delete(st.MissileSalvos, mid)
		}
	}
}

func (s *Simulation) shipyardDef() *content.InstallationDef {
	if def := s.content.Installations["shipyard"]; def != nil && len(def.BuildCostsPerTon) > 0 {
		return def
	}
	for _, id := range model.SortedKeys(s.content.Installations) {
		if def := s.content.Installations[id]; len(def.BuildCostsPerTon) > 0 {
			return def
		}
	}
	return nil
}

func (s *Simulation) scrap(sh *model.Ship, d *content.ShipDesign, c *model.Colony) {
	if c.Minerals == nil {
		c.Minerals = map[string]float64{}
	}
	for _, k := range model.SortedKeys(sh.Cargo) {
		if v := sh.Cargo[k]; v > 1e-9 {
			c.Minerals[k] += v
		}
	}
	if sh.FuelTons > 1e-9 {
		c.Minerals["Fuel"] += sh.FuelTons
	}
	c.GroundForces += math.Max(0, sh.Troops)
	c.PopulationMillions += math.Max(0, sh.ColonistsMillions)

	refund := map[string]float64{}
	if yard := s.shipyardDef(); d != nil && yard != nil && d.MassTons > 0 {
		frac := clamp(s.cfg.ScrapRefundFraction, 0, 1)
		for _, k := range model.SortedKeys(yard.BuildCostsPerTon) {
			if v := d.MassTons * yard.BuildCostsPerTon[k] * frac; v > 1e-9 {
				refund[k] = v
				c.Minerals[k] += v
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ship scrapped at %s: %s", c.Name, sh.Name)
	if len(refund) > 0 {
		b.WriteString(" (refund:")
		for _, k := range model.SortedKeys(refund) {
			fmt.Fprintf(&b, " %s %.2f", k, refund[k])
		}
		b.WriteString(")")
	}
	ctx := EventContext{FactionID: c.FactionID, SystemID: sh.SystemID, ShipID: sh.ID, ColonyID: c.ID}
	s.removeShip(sh.ID)
	s.pushEvent(model.EventInfo, model.CategoryShipyard, b.String(), ctx)
}

func (s *Simulation) colonize(sh *model.Ship, d *content.ShipDesign, o *model.ColonizeBody) {
	st := s.state
	body := st.Bodies[o.BodyID]
	if body == nil || body.SystemID != sh.SystemID {
		return
	}
	ctx := EventContext{FactionID: sh.FactionID, SystemID: sh.SystemID, ShipID: sh.ID}
	if !body.Type.Colonizable() {
		s.pushEvent(model.EventWarn, model.CategoryExploration,
			"Colonization failed: target body is not colonizable: "+body.Name, ctx)
		return
	}
	if existing := st.ColonyOnBody(body.ID); existing != nil {
		ctx.ColonyID = existing.ID
		s.pushEvent(model.EventInfo, model.CategoryExploration,
			fmt.Sprintf("Colonization aborted: %s already has a colony (%s)", body.Name, existing.Name), ctx)
		return
	}
	capacity := 0.0
	if d != nil {
		capacity = d.ColonyCapacityMillions
	}
	if capacity <= 1e-9 {
		s.pushEvent(model.EventWarn, model.CategoryExploration,
			"Colonization failed: ship has no colony module capacity: "+sh.Name, ctx)
		return
	}

	base := o.ColonyName
	if base == "" {
		base = body.Name + " Colony"
	}
	name := base
	for n := 2; s.colonyNameTaken(name); n++ {
		name = fmt.Sprintf("%s (%d)", base, n)
	}
	c := &model.Colony{
		ID:                 model.AllocateID(st),
		Name:               name,
		FactionID:          sh.FactionID,
		BodyID:             body.ID,
		PopulationMillions: capacity,
	}
	for _, k := range model.SortedKeys(sh.Cargo) {
		if v := sh.Cargo[k]; v > 1e-9 {
			if c.Minerals == nil {
				c.Minerals = map[string]float64{}
			}
			c.Minerals[k] += v
		}
	}
	st.Colonies[c.ID] = c
	s.discoverSystem(sh.FactionID, body.SystemID)
	s.removeShip(sh.ID)

	ctx.ColonyID = c.ID
	s.pushEvent(model.EventInfo, model.CategoryExploration,
		fmt.Sprintf("Colony established: %s on %s (population %.0fM)", name, body.Name, capacity), ctx)
	s.log.Info("colony established", "colony_id", c.ID, "faction_id", c.FactionID, "body_id", body.ID)
}

func (s *Simulation) colonyNameTaken(name string) bool {
	for _, id := range model.SortedKeys(s.state.Colonies) {
		if s.state.Colonies[id].Name == name {
			return true
		}
	}
	return false
}

func (s *Simulation) invade(sh *model.Ship, c *model.Colony) {
	if c == nil || sh.Troops <= 1e-9 {
		return
	}
	st := s.state
	s.setRelation(sh.FactionID, c.FactionID, model.Hostile)
	ctx := EventContext{FactionID: sh.FactionID, FactionID2: c.FactionID, SystemID: sh.SystemID, ShipID: sh.ID, ColonyID: c.ID}

	gb := st.GroundBattles[c.ID]
	switch {
	case gb == nil:
		gb = &model.GroundBattle{
			ColonyID:          c.ID,
			SystemID:          sh.SystemID,
			AttackerFactionID: sh.FactionID,
			DefenderFactionID: c.FactionID,
			AttackerStrength:  sh.Troops,
			DefenderStrength:  math.Max(0, c.GroundForces),
		}
		st.GroundBattles[c.ID] = gb
		s.pushEvent(model.EventWarn, model.CategoryCombat,
			fmt.Sprintf("Invasion of %s begun by %s (troops %.1f)", c.Name, sh.Name, sh.Troops), ctx)
	case gb.AttackerFactionID == sh.FactionID:
		gb.AttackerStrength += sh.Troops
		s.pushEvent(model.EventInfo, model.CategoryCombat,
			fmt.Sprintf("Invasion of %s reinforced by %s (troops %.1f)", c.Name, sh.Name, sh.Troops), ctx)
	default:
		s.pushEvent(model.EventWarn, model.CategoryCombat,
			fmt.Sprintf("Invasion of %s blocked: another invasion is in progress", c.Name), ctx)
		return
	}
	sh.Troops = 0
}

func (s *Simulation) salvage(sh *model.Ship, d *content.ShipDesign, so *model.ShipOrders, o *model.SalvageWreck) {
	st := s.state
	w := st.Wrecks[o.WreckID]
	f := st.Factions[sh.FactionID]
	moved := moveTons(w.Minerals, &sh.Cargo, o.Mineral, o.Tons, cargoRoom(sh, d), nil, func(k string, t float64) {
		if r := s.content.Resources[k]; r != nil && f != nil && r.SalvageResearchRPPerTon > 0 {
			f.ResearchPoints += t * r.SalvageResearchRPPerTon
		}
	})
	if len(w.Minerals) == 0 {
		delete(st.Wrecks, w.ID)
		name := w.Name
		if name == "" {
			name = "(unknown wreck)"
		}
		s.pushEvent(model.EventInfo, model.CategoryExploration, "Salvage complete: "+name,
			EventContext{FactionID: sh.FactionID, SystemID: sh.SystemID, ShipID: sh.ID})
		so.Pop()
		return
	}
	finishTransfer(so, &o.Tons, moved)
}

// investigate accumulates progress on the order itself. Completion is
// permanent; abandoning the order only loses the progress.
func (s *Simulation) investigate(sh *model.Ship, d *content.ShipDesign, so *model.ShipOrders, o *model.InvestigateAnomaly, dt float64) {
	st := s.state
	a := st.Anomalies[o.AnomalyID]
	need := o.DurationDays
	if need <= 0 {
		need = a.InvestigationDays
	}
	need = max(need, 1)
	o.ProgressDays += dt
	if o.ProgressDays+1e-12 < float64(need) {
		return
	}
	so.Pop()

	a.Resolved = true
	a.ResolvedByFactionID = sh.FactionID
	a.ResolvedDay = st.Date.DaysSinceEpoch()

	rp := a.ResearchReward
	if !(rp > 0) {
		rp = s.cfg.AnomalyResearchReward
	}
	if f := st.Factions[sh.FactionID]; f != nil {
		f.ResearchPoints += math.Max(0, rp)
		f.DiscoveredAnomalies = model.AddUniqueID(f.DiscoveredAnomalies, a.ID)
		f.UnlockedComponents = addUniqueString(f.UnlockedComponents, a.UnlockComponentID)
	}
	if len(a.MineralReward) > 0 {
		moveTons(maps.Clone(a.MineralReward), &sh.Cargo, "", 0, cargoRoom(sh, d), nil, nil)
	}
	s.pushEvent(model.EventInfo, model.CategoryExploration,
		fmt.Sprintf("Anomaly investigated: %s by %s (+%.0f RP)", a.Name, sh.Name, rp),
		EventContext{FactionID: sh.FactionID, SystemID: sh.SystemID, ShipID: sh.ID})
}

func (s *Simulation) mineBody(sh *model.Ship, d *content.ShipDesign, so *model.ShipOrders, o *model.MineBody, dt float64) {
	b := s.state.Bodies[o.BodyID]
	if d == nil || !(d.MiningTonsPerDay > 0) {
		so.Pop()
		return
	}
	room := cargoRoom(sh, d)
	if room <= 1e-9 {
		if o.StopWhenCargoFull {
			so.Pop()
		}
		return
	}
	before := maps.Clone(b.MineralDeposits)
	moveTons(b.MineralDeposits, &sh.Cargo, o.Mineral, d.MiningTonsPerDay*dt, room, nil, func(k string, _ float64) {
		if before[k] > 1e-9 && b.MineralDeposits[k] <= 1e-9 {
			s.pushEvent(model.EventWarn, model.CategoryConstruction,
				fmt.Sprintf("Mineral deposit depleted on %s: %s (mobile mining)", b.Name, k),
				EventContext{FactionID: sh.FactionID, SystemID: b.SystemID, ShipID: sh.ID})
		}
	})
	left := 0.0
	if o.Mineral != "" {
		left = b.MineralDeposits[o.Mineral]
	} else {
		for _, k := range model.SortedKeys(b.MineralDeposits) {
			left += b.MineralDeposits[k]
		}
	}
	if left <= 1e-9 || (o.StopWhenCargoFull && cargoRoom(sh, d) <= 1e-9) {
		so.Pop()
	}
}

// boardable reports whether sh may try to board tgt: boarding is on, sh
// carries enough troops and tgt is crippled.
func (s *Simulation) boardable(sh, tgt *model.Ship) bool {
	if !s.cfg.EnableBoarding || sh.Troops < math.Max(s.cfg.BoardingMinAttackerTroops, 1e-9) {
		return false
	}
	td := s.FindDesign(tgt.DesignID)
	if td == nil || td.MaxHP <= 0 {
		return false
	}
	return tgt.HP <= td.MaxHP*s.cfg.BoardingTargetHPFraction
}

func (s *Simulation) board(sh, tgt *model.Ship) {
	ctx := EventContext{FactionID: sh.FactionID, FactionID2: tgt.FactionID, SystemID: sh.SystemID, ShipID: tgt.ID}
	if sh.Troops <= tgt.Troops+1e-9 {
		tgt.Troops = math.Max(0, tgt.Troops-sh.Troops)
		sh.Troops = 0
		s.pushEvent(model.EventInfo, model.CategoryCombat,
			fmt.Sprintf("Boarding failed: %s -> %s in %s", sh.Name, tgt.Name, s.systemName(sh.SystemID)), ctx)
		return
	}
	sh.Troops -= tgt.Troops
	tgt.Troops = 0
	oldFaction := tgt.FactionID
	s.setRelation(sh.FactionID, oldFaction, model.Hostile)
	s.detachFromFleets(tgt.ID)
	delete(s.state.ShipOrders, tgt.ID)
	tgt.FactionID = sh.FactionID
	for _, fid := range model.SortedKeys(s.state.Factions) {
		delete(s.state.Factions[fid].ShipContacts, tgt.ID)
	}
	for _, mid := range model.SortedKeys(s.state.MissileSalvos) {
		if m := s.state.MissileSalvos[mid]; m.TargetShipID == tgt.ID && m.AttackerFactionID == sh.FactionID {
			delete(s.state.MissileSalvos, mid)
		}
	}
	ctx.FactionID, ctx.FactionID2 = oldFaction, sh.FactionID
	s.pushEvent(model.EventWarn, model.CategoryCombat,
		fmt.Sprintf("Ship captured: %s in %s (boarded by %s / %s)", tgt.Name, s.systemName(tgt.SystemID), sh.Name, s.factionName(sh.FactionID)), ctx)
}
