package engine

import (
	"math"
	"slices"

	"nebula4x.dev/internal/sim/model"
)

// fleetMembers returns the fleet's living ships in id order.
func (s *Simulation) fleetMembers(fl *model.Fleet) []*model.Ship {
	var out []*model.Ship
	for _, id := range model.SortUniqueIDs(slices.Clone(fl.ShipIDs)) {
		if sh := s.state.Ships[id]; sh != nil {
			out = append(out, sh)
		}
	}
	return out
}

func (s *Simulation) idle(shipID model.ID) bool {
	so := s.state.ShipOrders[shipID]
	return so == nil || so.Front() == nil
}

// tickFleetMissions hands new orders to idle fleet members. Ships that still
// have queued orders are left alone.
func (s *Simulation) tickFleetMissions() {
	st := s.state
	if len(st.Fleets) == 0 {
		return
	}
	cache := map[sensorKey][]sensorSource{}
	for _, fid := range model.SortedKeys(st.Fleets) {
		fl := st.Fleets[fid]
		if fl.Mission.Type == model.MissionNone {
			continue
		}
		members := s.fleetMembers(fl)
		if len(members) == 0 {
			continue
		}
		lead := members[0]
		if sh := st.Ships[fl.LeaderShipID]; sh != nil && slices.Contains(fl.ShipIDs, sh.ID) {
			lead = sh
		}

		switch fl.Mission.Type {
		case model.MissionDefendColony:
			c := st.Colonies[fl.Mission.DefendColonyID]
			if c == nil || c.FactionID != fl.FactionID {
				fl.Mission = model.FleetMission{}
				continue
			}
			b := st.Bodies[c.BodyID]
			if b == nil {
				continue
			}
			if s.engageHostiles(fl, members, lead, b.SystemID, cache) {
				continue
			}
			s.sendFleet(members, b.SystemID, func(sh *model.Ship) model.Order {
				if sh.PositionMkm.DistTo(b.PositionMkm) <= math.Max(s.cfg.DockingRangeMkm, s.cfg.ArrivalEpsilonMkm) {
					return nil
				}
				return &model.MoveToBody{BodyID: b.ID}
			})

		case model.MissionPatrolSystem:
			sysID := fl.Mission.PatrolSystemID
			if st.Systems[sysID] == nil {
				fl.Mission = model.FleetMission{}
				continue
			}
			if s.engageHostiles(fl, members, lead, sysID, cache) {
				continue
			}
			legs := s.patrolWaypoints(sysID)
			if len(legs) == 0 {
				continue
			}
			ready := true
			for _, sh := range members {
				ready = ready && s.idle(sh.ID)
			}
			if !ready {
				continue
			}
			idx := fl.Mission.PatrolLegIndex % len(legs)
			if idx < 0 {
				idx = 0
			}
			wp := legs[idx]
			fl.Mission.PatrolLegIndex = (idx + 1) % len(legs)
			s.sendFleet(members, sysID, func(*model.Ship) model.Order { return &model.MoveToPoint{Target: wp} })

		case model.MissionHuntHostiles:
			sysID := fl.Mission.HuntSystemID
			if sysID == model.InvalidID {
				sysID = lead.SystemID
			}
			if !s.engageHostiles(fl, members, lead, sysID, cache) && lead.SystemID != sysID {
				s.sendFleet(members, sysID, func(*model.Ship) model.Order { return nil })
			}
		}
	}
}

// engageHostiles orders idle members in systemID to attack the detected
// hostile nearest the leader. It reports whether a target was found.
func (s *Simulation) engageHostiles(fl *model.Fleet, members []*model.Ship, lead *model.Ship, systemID model.ID, cache map[sensorKey][]sensorSource) bool {
	from := lead.PositionMkm
	if lead.SystemID != systemID {
		from = model.Vec2{}
	}
	best, bestDist := model.InvalidID, math.Inf(1)
	for _, tid := range s.detectedHostiles(fl.FactionID, systemID, cache) {
		tgt := s.state.Ships[tid]
		if s.blockingTreaty(fl.FactionID, tgt.FactionID) != nil {
			continue
		}
		if d := from.DistTo(tgt.PositionMkm); d < bestDist || (d == bestDist && tid < best) {
			best, bestDist = tid, d
		}
	}
	if best == model.InvalidID {
		return false
	}
	fl.Mission.LastTargetShip = best
	s.sendFleet(members, systemID, func(*model.Ship) model.Order { return &model.AttackShip{TargetShipID: best} })
	return true
}

// sendFleet routes idle members to systemID and appends the order made by
// final, if any.
func (s *Simulation) sendFleet(members []*model.Ship, systemID model.ID, final func(*model.Ship) model.Order) {
	st := s.state
	for _, sh := range members {
		if !s.idle(sh.ID) {
			continue
		}
		var queue model.OrderList
		if sh.SystemID != systemID {
			plan, ok := s.PlanJumpRouteForShip(sh.ID, systemID, true, nil)
			if !ok {
				continue
			}
			for _, jid := range plan.JumpIDs {
				queue = append(queue, &model.TravelViaJump{JumpPointID: jid})
			}
		}
		if o := final(sh); o != nil {
			queue = append(queue, o)
		}
		if len(queue) > 0 {
			st.Orders(sh.ID).Queue = queue
		}
	}
}

// patrolWaypoints cycles through the system's jump points, falling back to
// its bodies.
func (s *Simulation) patrolWaypoints(systemID model.ID) []model.Vec2 {
	st := s.state
	sys := st.Systems[systemID]
	var out []model.Vec2
	for _, id := range model.SortUniqueIDs(slices.Clone(sys.JumpPoints)) {
		if jp := st.JumpPoints[id]; jp != nil {
			out = append(out, jp.PositionMkm)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, id := range model.SortUniqueIDs(slices.Clone(sys.Bodies)) {
		if b := st.Bodies[id]; b != nil {
			out = append(out, b.PositionMkm)
		}
	}
	return out
}
