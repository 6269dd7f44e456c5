package engine

import (
	"math"
	"slices"

	"nebula4x.dev/internal/sim/formation"
	"nebula4x.dev/internal/sim/model"
)

// cohortKey groups fleet members executing the same current order in the
// same system.
type cohortKey struct {
	fleet  model.ID
	system model.ID
	kind   model.OrderKind
	target model.ID
	qx, qy int64
}

// cohesion is the per-tick fleet prepass: speed caps, coordinated jump
// readiness and formation offsets.
type cohesion struct {
	fleetOf   map[model.ID]model.ID
	minSpeed  map[cohortKey]float64
	jumpReady map[cohortKey]bool // only multi-ship jump groups
	offsets   map[model.ID]model.Vec2
}

func (c *cohesion) fleet(shipID model.ID) model.ID {
	if c == nil {
		return model.InvalidID
	}
	return c.fleetOf[shipID]
}

func quantizeFine(v float64) int64 {
	if !finite(v) {
		return 0
	}
	return int64(math.Round(v * 1e4))
}

func makeCohortKey(fleetID, systemID model.ID, o model.Order) (cohortKey, bool) {
	k := cohortKey{fleet: fleetID, system: systemID, kind: o.Kind()}
	switch v := o.(type) {
	case *model.MoveToPoint:
		k.qx, k.qy = quantizeFine(v.Target.X), quantizeFine(v.Target.Y)
	case *model.MoveToBody:
		k.target = v.BodyID
	case *model.OrbitBody:
		k.target = v.BodyID
	case *model.TravelViaJump:
		k.target = v.JumpPointID
	case *model.AttackShip:
		k.target = v.TargetShipID
	case *model.LoadMineral:
		k.target = v.ColonyID
	case *model.UnloadMineral:
		k.target = v.ColonyID
	case *model.TransferCargoToShip:
		k.target = v.TargetShipID
	case *model.ScrapShip:
		k.target = v.ColonyID
	default:
		return cohortKey{}, false
	}
	return k, true
}

// buildCohesion returns nil when no fleets exist.
func (s *Simulation) buildCohesion() *cohesion {
	st := s.state
	if len(st.Fleets) == 0 {
		return nil
	}
	c := &cohesion{
		fleetOf:   map[model.ID]model.ID{},
		minSpeed:  map[cohortKey]float64{},
		jumpReady: map[cohortKey]bool{},
		offsets:   map[model.ID]model.Vec2{},
	}
	for _, fid := range model.SortedKeys(st.Fleets) {
		for _, sid := range st.Fleets[fid].ShipIDs {
			if _, taken := c.fleetOf[sid]; !taken && st.Ships[sid] != nil {
				c.fleetOf[sid] = fid
			}
		}
	}

	members := map[cohortKey][]model.ID{}
	jumpCount := map[cohortKey]int{}
	for _, sid := range model.SortedKeys(st.Ships) {
		fid, ok := c.fleetOf[sid]
		if !ok {
			continue
		}
		sh := st.Ships[sid]
		o := st.ShipOrders[sid].Front()
		if o == nil {
			continue
		}
		k, ok := makeCohortKey(fid, sh.SystemID, o)
		if !ok {
			continue
		}
		members[k] = append(members[k], sid)

		speed := s.shipSpeedMkmPerDay(sh, s.FindDesign(sh.DesignID))
		if cur, seen := c.minSpeed[k]; !seen || speed < cur {
			c.minSpeed[k] = speed
		}

		if jo, isJump := o.(*model.TravelViaJump); isJump {
			jp := st.JumpPoints[jo.JumpPointID]
			if jp == nil || jp.SystemID != sh.SystemID {
				continue
			}
			jumpCount[k]++
			dock := math.Max(s.cfg.ArrivalEpsilonMkm, s.cfg.DockingRangeMkm)
			near := sh.PositionMkm.DistTo(jp.PositionMkm) <= dock+1e-9
			if ready, seen := c.jumpReady[k]; !seen {
				c.jumpReady[k] = near
			} else {
				c.jumpReady[k] = ready && near
			}
		}
	}
	for k := range c.jumpReady {
		if jumpCount[k] <= 1 {
			delete(c.jumpReady, k)
		}
	}

	if s.cfg.FleetFormations {
		keys := make([]cohortKey, 0, len(members))
		for k := range members {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareCohortKeys)
		for _, k := range keys {
			s.solveCohortFormation(c, k, members[k])
		}
	}
	return c
}

func compareCohortKeys(a, b cohortKey) int {
	switch {
	case a.fleet != b.fleet:
		return cmpID(a.fleet, b.fleet)
	case a.system != b.system:
		return cmpID(a.system, b.system)
	case a.kind != b.kind:
		return int(a.kind) - int(b.kind)
	case a.target != b.target:
		return cmpID(a.target, b.target)
	case a.qx != b.qx:
		return cmpInt64(a.qx, b.qx)
	}
	return cmpInt64(a.qy, b.qy)
}

func cmpID(a, b model.ID) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cmpInt64(a, b int64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func (s *Simulation) solveCohortFormation(c *cohesion, k cohortKey, ids []model.ID) {
	if len(ids) < 2 || (k.kind != model.OrderMoveToPoint && k.kind != model.OrderAttackShip) {
		return
	}
	st := s.state
	fl := st.Fleets[k.fleet]
	if fl == nil || fl.Formation == model.FormationNone {
		return
	}
	leader := ids[0]
	if slices.Contains(ids, fl.LeaderShipID) {
		leader = fl.LeaderShipID
	}
	lead := st.Ships[leader]

	var raw model.Vec2
	switch o := st.ShipOrders[leader].Front().(type) {
	case *model.MoveToPoint:
		raw = o.Target
	case *model.AttackShip:
		tgt := st.Ships[o.TargetShipID]
		switch {
		case tgt != nil && tgt.SystemID == lead.SystemID:
			raw = tgt.PositionMkm
		case o.HasLastKnown:
			raw = o.LastKnownPosMkm
		default:
			return
		}
	default:
		return
	}

	spacing := fl.FormationSpacingMkm
	if !(spacing > 0) {
		spacing = 1
	}
	positions := make(map[model.ID]model.Vec2, len(ids))
	for _, id := range ids {
		positions[id] = st.Ships[id].PositionMkm
	}
	offs := formation.Offsets(formation.Input{
		Formation:  fl.Formation,
		SpacingMkm: spacing,
		LeaderID:   leader,
		LeaderPos:  lead.PositionMkm,
		RawTarget:  raw,
		Members:    ids,
		Positions:  positions,
	})
	for id, off := range offs {
		c.offsets[id] = off
	}
}
