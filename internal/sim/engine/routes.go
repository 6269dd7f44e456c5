package engine

import (
	"math"
	"slices"

	"nebula4x.dev/internal/sim/model"
)

// JumpRoutePlan is a path through the jump network. Distances count only the
// in-system legs to each exit jump point; transits are instantaneous.
type JumpRoutePlan struct {
	Systems []model.ID // start -> ... -> destination
	JumpIDs []model.ID // one per hop

	DistanceMkm float64
	EtaDays     float64

	HasGoalPos    bool
	GoalPosMkm    model.Vec2
	ArrivalPosMkm model.Vec2 // where the last transit drops the ship
	FinalLegMkm   float64

	TotalDistanceMkm float64
	TotalEtaDays     float64
}

func (p JumpRoutePlan) Hops() int { return len(p.JumpIDs) }

type routeKey struct {
	startSystem model.ID
	sx, sy      int64
	faction     model.ID
	goalSystem  model.ID
	restrict    bool
	hasGoal     bool
	gx, gy      int64
}

type routeEntry struct {
	plan JumpRoutePlan
	ok   bool
}

// routeCache memoizes plans for one state generation. ETAs are filled in on
// every lookup since they depend on the caller's speed.
type routeCache struct {
	entries map[routeKey]routeEntry
}

func (c *routeCache) reset() { c.entries = map[routeKey]routeEntry{} }

func quantize(v float64) int64 {
	if !finite(v) {
		return 0
	}
	return int64(math.Round(v * 10))
}

type routeNode struct {
	system model.ID
	entry  model.ID // jump point we arrived through; InvalidID at the start
	pos    model.Vec2
	cost   float64
	hops   int
	prev   int
	via    model.ID // jump taken out of prev
	done   bool
}

func distBetter(cost float64, hops int, other *routeNode) bool {
	if cost+1e-9 < other.cost {
		return true
	}
	return math.Abs(cost-other.cost) <= 1e-9 && hops < other.hops
}

// PlanJumpRouteFromPos plans from a position in startSystem to goalSystem.
// With restrict set, only systems discovered by factionID (plus the start)
// and jump points it has surveyed are used. goalPos, when non-nil, adds the
// final in-system leg and steers the choice of entry point.
func (s *Simulation) PlanJumpRouteFromPos(startSystem model.ID, startPos model.Vec2, factionID model.ID, speedKmS float64, goalSystem model.ID, restrict bool, goalPos *model.Vec2) (JumpRoutePlan, bool) {
	if s.state.Systems[startSystem] == nil || s.state.Systems[goalSystem] == nil {
		return JumpRoutePlan{}, false
	}
	key := routeKey{
		startSystem: startSystem,
		sx:          quantize(startPos.X),
		sy:          quantize(startPos.Y),
		faction:     factionID,
		goalSystem:  goalSystem,
		restrict:    restrict,
	}
	if goalPos != nil {
		key.hasGoal = true
		key.gx, key.gy = quantize(goalPos.X), quantize(goalPos.Y)
	}
	if s.routes.entries == nil {
		s.routes.reset()
	}
	e, hit := s.routes.entries[key]
	if !hit {
		e.plan, e.ok = s.planRoute(startSystem, startPos, factionID, goalSystem, restrict, goalPos)
		s.routes.entries[key] = e
	}
	if !e.ok {
		return JumpRoutePlan{}, false
	}
	plan := e.plan
	plan.Systems = slices.Clone(plan.Systems)
	plan.JumpIDs = slices.Clone(plan.JumpIDs)

	mkmPerDay := speedKmS * s.cfg.SecondsPerDay / 1e6
	eta := func(d float64) float64 {
		if d <= 0 {
			return 0
		}
		if !(mkmPerDay > 0) {
			return math.Inf(1)
		}
		return d / mkmPerDay
	}
	plan.EtaDays = eta(plan.DistanceMkm)
	plan.TotalEtaDays = eta(plan.TotalDistanceMkm)
	return plan, true
}

func (s *Simulation) planRoute(startSystem model.ID, startPos model.Vec2, factionID, goalSystem model.ID, restrict bool, goalPos *model.Vec2) (JumpRoutePlan, bool) {
	st := s.state
	allowSystem := func(id model.ID) bool {
		return !restrict || id == startSystem || s.IsSystemDiscoveredByFaction(factionID, id)
	}

	nodes := []routeNode{{system: startSystem, pos: startPos, prev: -1}}
	index := map[[2]model.ID]int{{startSystem, model.InvalidID}: 0}

	for {
		cur := -1
		for i := range nodes {
			n := &nodes[i]
			if n.done {
				continue
			}
			if cur < 0 || distBetter(n.cost, n.hops, &nodes[cur]) ||
				(n.cost == nodes[cur].cost && n.hops == nodes[cur].hops && nodeLess(n, &nodes[cur])) {
				cur = i
			}
		}
		if cur < 0 {
			break
		}
		nodes[cur].done = true
		from := nodes[cur]

		sys := st.Systems[from.system]
		if sys == nil {
			continue
		}
		for _, jid := range model.SortUniqueIDs(slices.Clone(sys.JumpPoints)) {
			jp := st.JumpPoints[jid]
			if jp == nil || jp.SystemID != from.system {
				continue
			}
			if restrict && !s.IsJumpPointSurveyedByFaction(factionID, jid) {
				continue
			}
			dst := st.JumpPoints[jp.LinkedJumpID]
			if dst == nil || st.Systems[dst.SystemID] == nil || !allowSystem(dst.SystemID) {
				continue
			}
			cost := from.cost + from.pos.DistTo(jp.PositionMkm)
			hops := from.hops + 1
			k := [2]model.ID{dst.SystemID, dst.ID}
			if i, ok := index[k]; ok {
				n := &nodes[i]
				if n.done || !distBetter(cost, hops, n) {
					continue
				}
				n.cost, n.hops, n.prev, n.via = cost, hops, cur, jid
				continue
			}
			index[k] = len(nodes)
			nodes = append(nodes, routeNode{
				system: dst.SystemID,
				entry:  dst.ID,
				pos:    dst.PositionMkm,
				cost:   cost,
				hops:   hops,
				prev:   cur,
				via:    jid,
			})
		}
	}

	best := -1
	bestTotal := 0.0
	for i := range nodes {
		n := &nodes[i]
		if n.system != goalSystem {
			continue
		}
		total := n.cost
		if goalPos != nil {
			total += n.pos.DistTo(*goalPos)
		}
		if best < 0 {
			best, bestTotal = i, total
			continue
		}
		b := &nodes[best]
		switch {
		case total+1e-9 < bestTotal:
		case math.Abs(total-bestTotal) > 1e-9:
			continue
		case n.hops < b.hops:
		case n.hops > b.hops:
			continue
		case n.cost+1e-9 < b.cost:
		case math.Abs(n.cost-b.cost) > 1e-9:
			continue
		case n.entry < b.entry:
		default:
			continue
		}
		best, bestTotal = i, total
	}
	if best < 0 {
		return JumpRoutePlan{}, false
	}

	var plan JumpRoutePlan
	for i := best; i >= 0; i = nodes[i].prev {
		plan.Systems = append(plan.Systems, nodes[i].system)
		if nodes[i].prev >= 0 {
			plan.JumpIDs = append(plan.JumpIDs, nodes[i].via)
		}
	}
	slices.Reverse(plan.Systems)
	slices.Reverse(plan.JumpIDs)
	plan.DistanceMkm = nodes[best].cost
	plan.ArrivalPosMkm = nodes[best].pos
	plan.TotalDistanceMkm = plan.DistanceMkm
	if goalPos != nil {
		plan.HasGoalPos = true
		plan.GoalPosMkm = *goalPos
		plan.FinalLegMkm = nodes[best].pos.DistTo(*goalPos)
		plan.TotalDistanceMkm += plan.FinalLegMkm
	}
	return plan, true
}

func nodeLess(a, b *routeNode) bool {
	if a.system != b.system {
		return a.system < b.system
	}
	return a.entry < b.entry
}

// PlanJumpRouteForShip plans from the ship's current position at its cruise
// speed, under its own faction's knowledge.
func (s *Simulation) PlanJumpRouteForShip(shipID, goalSystem model.ID, restrict bool, goalPos *model.Vec2) (JumpRoutePlan, bool) {
	sh := s.state.Ships[shipID]
	if sh == nil {
		return JumpRoutePlan{}, false
	}
	speed := s.shipSpeedMkmPerDay(sh, s.FindDesign(sh.DesignID)) * 1e6 / s.cfg.SecondsPerDay
	return s.PlanJumpRouteFromPos(sh.SystemID, sh.PositionMkm, sh.FactionID, speed, goalSystem, restrict, goalPos)
}

// PlanJumpRouteForFleet plans from the fleet leader (or first member) at the
// speed of the slowest member.
func (s *Simulation) PlanJumpRouteForFleet(fleetID, goalSystem model.ID, restrict bool, goalPos *model.Vec2) (JumpRoutePlan, bool) {
	fl := s.state.Fleets[fleetID]
	if fl == nil {
		return JumpRoutePlan{}, false
	}
	leader := s.state.Ships[fl.LeaderShipID]
	if leader == nil || !slices.Contains(fl.ShipIDs, fl.LeaderShipID) {
		leader = nil
		for _, id := range model.SortUniqueIDs(slices.Clone(fl.ShipIDs)) {
			if sh := s.state.Ships[id]; sh != nil {
				leader = sh
				break
			}
		}
	}
	if leader == nil {
		return JumpRoutePlan{}, false
	}
	speed := math.Inf(1)
	for _, id := range model.SortUniqueIDs(slices.Clone(fl.ShipIDs)) {
		sh := s.state.Ships[id]
		if sh == nil {
			continue
		}
		v := s.shipSpeedMkmPerDay(sh, s.FindDesign(sh.DesignID)) * 1e6 / s.cfg.SecondsPerDay
		speed = math.Min(speed, v)
	}
	if math.IsInf(speed, 1) {
		speed = 0
	}
	return s.PlanJumpRouteFromPos(leader.SystemID, leader.PositionMkm, fl.FactionID, speed, goalSystem, restrict, goalPos)
}
