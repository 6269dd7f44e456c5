package engine

import (
	"fmt"
	"math"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
)

// goal is the resolved destination of a ship's current order.
type goal struct {
	pos model.Vec2

	// standoff orders stop standoffMkm short of pos and stay alive once
	// there (attack, bombard, escort).
	standoff    bool
	standoffMkm float64
	contact     bool

	// viaJump is set when an escort must leave the system to follow.
	viaJump *model.JumpPoint
}

// tickShips moves every ship along its current order, in ascending id order.
func (s *Simulation) tickShips(dt float64) {
	dt = clamp(dt, 0, 10)
	if !(dt > 0) {
		return
	}
	coh := s.buildCohesion()
	for _, id := range model.SortedKeys(s.state.Ships) {
		if sh := s.state.Ships[id]; sh != nil {
			s.tickShip(sh, dt, coh)
		}
	}
}

func (s *Simulation) tickShip(sh *model.Ship, dt float64, coh *cohesion) {
	st := s.state
	sh.VelocityMkmPerDay = model.Vec2{}
	so := st.ShipOrders[sh.ID]
	if so == nil || !so.Refill() {
		return
	}
	ord := so.Front()

	if w, ok := ord.(*model.WaitDays); ok {
		if advanceDays(&w.DaysRemaining, &w.ProgressDays, dt) {
			so.Pop()
		}
		return
	}

	d := s.FindDesign(sh.DesignID)
	g, ok := s.resolveGoal(sh, d, ord)
	if !ok {
		so.Pop()
		return
	}

	fleetID := coh.fleet(sh.ID)
	key, hasKey := cohortKey{}, false
	if fleetID != model.InvalidID {
		key, hasKey = makeCohortKey(fleetID, sh.SystemID, ord)
	}
	if hasKey && (key.kind == model.OrderMoveToPoint || key.kind == model.OrderAttackShip) {
		if off, ok := coh.offsets[sh.ID]; ok {
			g.pos = g.pos.Add(off)
		}
	}

	dist := sh.PositionMkm.DistTo(g.pos)
	arriveEps := math.Max(0, s.cfg.ArrivalEpsilonMkm)
	dock := math.Max(arriveEps, s.cfg.DockingRangeMkm)

	if g.standoff {
		if g.contact && dist <= g.standoffMkm+1e-9 {
			s.holdStation(sh, ord)
			return
		}
		if !g.contact && dist <= arriveEps {
			so.Pop()
			return
		}
		limit := dist
		if g.contact {
			limit = dist - g.standoffMkm
		}
		s.moveShip(sh, d, g.pos, dist, limit, dt, coh, key, hasKey)
		return
	}

	threshold := dock
	if ord.Kind() == model.OrderMoveToPoint {
		threshold = arriveEps
	}
	if dist <= threshold {
		sh.PositionMkm = g.pos
		s.arrive(sh, d, so, ord, g, dt, coh, key, hasKey)
		return
	}

	if !s.moveShip(sh, d, g.pos, dist, dist, dt, coh, key, hasKey) {
		return
	}
	switch ord.(type) {
	case *model.MoveToPoint, *model.MoveToBody:
		so.Pop()
	case *model.TravelViaJump, *model.EscortShip:
		s.arrive(sh, d, so, ord, g, dt, coh, key, hasKey)
	}
}

// advanceDays counts whole days off remaining as progress accumulates. It
// reports true once nothing remains. Negative remaining never finishes.
func advanceDays(remaining *int, progress *float64, dt float64) bool {
	if *remaining < 0 {
		return false
	}
	*progress += dt
	for *remaining > 0 && *progress >= 1-1e-12 {
		*remaining--
		*progress = math.Max(0, *progress-1)
	}
	return *remaining <= 0
}

// attackStandoff is the range a ship tries to hold against its target.
func attackStandoff(sh *model.Ship, d *content.ShipDesign) float64 {
	r := 0.0
	if d != nil {
		r = d.WeaponRangeMkm
		if r <= 0 {
			r = d.MissileRangeMkm
		}
	}
	frac := sh.Doctrine.RangeFraction
	if !(frac > 0) {
		frac = 0.9
	}
	v := math.Max(r*frac, sh.Doctrine.MinRangeMkm)
	if !finite(v) || v <= 0 {
		return 0.1
	}
	return v
}

// resolveGoal validates the order against the current state. ok is false
// when the order refers to something that no longer qualifies.
func (s *Simulation) resolveGoal(sh *model.Ship, d *content.ShipDesign, ord model.Order) (goal, bool) {
	st := s.state
	bodyHere := func(id model.ID) (*model.Body, bool) {
		b := st.Bodies[id]
		return b, b != nil && b.SystemID == sh.SystemID
	}
	colonyHere := func(id model.ID) (*model.Colony, model.Vec2, bool) {
		c := st.Colonies[id]
		if c == nil {
			return nil, model.Vec2{}, false
		}
		b, ok := bodyHere(c.BodyID)
		if !ok {
			return nil, model.Vec2{}, false
		}
		return c, b.PositionMkm, true
	}
	ownColony := func(id model.ID) (goal, bool) {
		c, pos, ok := colonyHere(id)
		if !ok || c.FactionID != sh.FactionID {
			return goal{}, false
		}
		return goal{pos: pos}, true
	}
	ownShipHere := func(id model.ID) (goal, bool) {
		t := st.Ships[id]
		if t == nil || t.ID == sh.ID || t.FactionID != sh.FactionID || t.SystemID != sh.SystemID {
			return goal{}, false
		}
		return goal{pos: t.PositionMkm}, true
	}

	switch o := ord.(type) {
	case *model.MoveToPoint:
		return goal{pos: o.Target}, true
	case *model.MoveToBody:
		b, ok := bodyHere(o.BodyID)
		if !ok {
			return goal{}, false
		}
		return goal{pos: b.PositionMkm}, true
	case *model.ColonizeBody:
		b, ok := bodyHere(o.BodyID)
		if !ok {
			return goal{}, false
		}
		return goal{pos: b.PositionMkm}, true
	case *model.OrbitBody:
		b, ok := bodyHere(o.BodyID)
		if !ok {
			return goal{}, false
		}
		return goal{pos: b.PositionMkm}, true
	case *model.MineBody:
		b, ok := bodyHere(o.BodyID)
		if !ok {
			return goal{}, false
		}
		return goal{pos: b.PositionMkm}, true
	case *model.TravelViaJump:
		jp := st.JumpPoints[o.JumpPointID]
		if jp == nil || jp.SystemID != sh.SystemID {
			return goal{}, false
		}
		return goal{pos: jp.PositionMkm}, true

	case *model.AttackShip:
		return s.resolveAttack(sh, d, o)

	case *model.BombardColony:
		c, pos, ok := colonyHere(o.ColonyID)
		if !ok || c.FactionID == sh.FactionID {
			return goal{}, false
		}
		if !s.hostilitiesAllowed(sh, c.FactionID, "Bombardment") {
			return goal{}, false
		}
		s.setRelation(sh.FactionID, c.FactionID, model.Hostile)
		return goal{pos: pos, standoff: true, standoffMkm: attackStandoff(sh, d), contact: true}, true

	case *model.EscortShip:
		return s.resolveEscort(sh, o)

	case *model.LoadMineral:
		return ownColony(o.ColonyID)
	case *model.UnloadMineral:
		return ownColony(o.ColonyID)
	case *model.LoadTroops:
		return ownColony(o.ColonyID)
	case *model.UnloadTroops:
		return ownColony(o.ColonyID)
	case *model.LoadColonists:
		return ownColony(o.ColonyID)
	case *model.UnloadColonists:
		return ownColony(o.ColonyID)
	case *model.ScrapShip:
		return ownColony(o.ColonyID)

	case *model.InvadeColony:
		c, pos, ok := colonyHere(o.ColonyID)
		if !ok || c.FactionID == sh.FactionID || sh.Troops <= 1e-9 {
			return goal{}, false
		}
		if !s.hostilitiesAllowed(sh, c.FactionID, "Invasion") {
			return goal{}, false
		}
		return goal{pos: pos}, true

	case *model.TransferCargoToShip:
		return ownShipHere(o.TargetShipID)
	case *model.TransferFuelToShip:
		return ownShipHere(o.TargetShipID)
	case *model.TransferTroopsToShip:
		return ownShipHere(o.TargetShipID)

	case *model.SalvageWreck:
		w := st.Wrecks[o.WreckID]
		if w == nil || w.SystemID != sh.SystemID {
			return goal{}, false
		}
		return goal{pos: w.PositionMkm}, true
	case *model.InvestigateAnomaly:
		a := st.Anomalies[o.AnomalyID]
		if a == nil || a.Resolved || a.SystemID != sh.SystemID {
			return goal{}, false
		}
		return goal{pos: a.PositionMkm}, true
	}
	return goal{}, false
}

// hostilitiesAllowed reports whether sh may open fire on faction. A treaty
// in force cancels the order with a warning.
func (s *Simulation) hostilitiesAllowed(sh *model.Ship, faction model.ID, what string) bool {
	t := s.blockingTreaty(sh.FactionID, faction)
	if t == nil {
		return true
	}
	s.pushEvent(model.EventWarn, model.CategoryDiplomacy,
		fmt.Sprintf("%s order cancelled for %s: %s in force", what, sh.Name, t.Type),
		EventContext{FactionID: sh.FactionID, FactionID2: faction, SystemID: sh.SystemID, ShipID: sh.ID})
	return false
}

func (s *Simulation) resolveAttack(sh *model.Ship, d *content.ShipDesign, o *model.AttackShip) (goal, bool) {
	tgt := s.state.Ships[o.TargetShipID]
	if tgt == nil || tgt.FactionID == sh.FactionID {
		return goal{}, false
	}
	if !s.hostilitiesAllowed(sh, tgt.FactionID, "Attack") {
		return goal{}, false
	}
	s.setRelation(sh.FactionID, tgt.FactionID, model.Hostile)

	if tgt.SystemID == sh.SystemID && s.IsShipDetectedByFaction(sh.FactionID, tgt.ID) {
		o.LastKnownPosMkm = tgt.PositionMkm
		o.HasLastKnown = true
		o.LastKnownSystemID = tgt.SystemID
		o.LastKnownDay = s.state.Date.DaysSinceEpoch()
		g := goal{pos: tgt.PositionMkm, standoff: true, standoffMkm: attackStandoff(sh, d), contact: true}
		if s.boardable(sh, tgt) {
			g.standoffMkm = math.Max(0, s.cfg.BoardingRangeMkm)
		}
		return g, true
	}
	if o.HasLastKnown && (o.LastKnownSystemID == model.InvalidID || o.LastKnownSystemID == sh.SystemID) {
		return goal{pos: o.LastKnownPosMkm, standoff: true}, true
	}
	return goal{}, false
}

func (s *Simulation) resolveEscort(sh *model.Ship, o *model.EscortShip) (goal, bool) {
	tgt := s.state.Ships[o.TargetShipID]
	if tgt == nil || tgt.ID == sh.ID || tgt.FactionID != sh.FactionID {
		return goal{}, false
	}
	follow := o.FollowDistanceMkm
	if !(follow > 0) {
		follow = 1
	}
	if tgt.SystemID == sh.SystemID {
		return goal{pos: tgt.PositionMkm, standoff: true, standoffMkm: follow, contact: true}, true
	}
	plan, ok := s.PlanJumpRouteForShip(sh.ID, tgt.SystemID, true, nil)
	if !ok || len(plan.JumpIDs) == 0 {
		return goal{}, false
	}
	jp := s.state.JumpPoints[plan.JumpIDs[0]]
	if jp == nil {
		return goal{}, false
	}
	return goal{pos: jp.PositionMkm, viaJump: jp}, true
}

// moveShip steps towards target by at most limit Mkm, subject to speed,
// fleet speed matching and fuel. It reports whether the ship reached target.
func (s *Simulation) moveShip(sh *model.Ship, d *content.ShipDesign, target model.Vec2, dist, limit, dt float64, coh *cohesion, key cohortKey, hasKey bool) bool {
	speed := s.shipSpeedMkmPerDay(sh, d)
	if hasKey && s.cfg.FleetSpeedMatching {
		if m, ok := coh.minSpeed[key]; ok && m < speed {
			speed = m
		}
	}
	step := math.Min(speed*dt, math.Max(0, limit))
	if s.usesFuel(sh, d) {
		step = math.Min(step, math.Max(0, sh.FuelTons)/d.FuelUsePerMkm)
	}
	if !(step > 0) || !(dist > 0) {
		return false
	}
	dir := target.Sub(sh.PositionMkm).Scale(1 / dist)
	moved := step
	arrived := step >= dist
	if arrived {
		moved = dist
		sh.PositionMkm = target
	} else {
		sh.PositionMkm = sh.PositionMkm.Add(dir.Scale(step))
	}
	sh.VelocityMkmPerDay = dir.Scale(moved / dt)
	s.burnFuel(sh, d, moved)
	return arrived
}

func (s *Simulation) usesFuel(sh *model.Ship, d *content.ShipDesign) bool {
	if d == nil || !(d.FuelUsePerMkm > 0) {
		return false
	}
	ctl, _ := s.factionControl(sh.FactionID)
	return ctl != model.ControlAIPassive
}

func (s *Simulation) burnFuel(sh *model.Ship, d *content.ShipDesign, movedMkm float64) {
	if !s.usesFuel(sh, d) || movedMkm <= 0 {
		return
	}
	before := sh.FuelTons
	sh.FuelTons = math.Max(0, sh.FuelTons-movedMkm*d.FuelUsePerMkm)
	if before > 1e-9 && sh.FuelTons <= 1e-9 {
		s.pushEvent(model.EventWarn, model.CategoryMovement,
			fmt.Sprintf("Ship %s has run out of Fuel in %s", sh.Name, s.systemName(sh.SystemID)),
			EventContext{FactionID: sh.FactionID, SystemID: sh.SystemID, ShipID: sh.ID})
	}
}

// holdStation runs while a standoff order is in range. Boarding happens here;
// weapons fire in the combat pass.
func (s *Simulation) holdStation(sh *model.Ship, ord model.Order) {
	o, ok := ord.(*model.AttackShip)
	if !ok {
		return
	}
	tgt := s.state.Ships[o.TargetShipID]
	if tgt == nil || !s.boardable(sh, tgt) {
		return
	}
	if sh.PositionMkm.DistTo(tgt.PositionMkm) <= math.Max(0, s.cfg.BoardingRangeMkm)+1e-9 {
		s.board(sh, tgt)
	}
}
