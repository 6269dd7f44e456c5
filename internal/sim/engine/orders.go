package engine

import (
	"errors"
	"fmt"
	"slices"

	"nebula4x.dev/internal/sim/model"
)

var (
	ErrUnknownShip    = errors.New("unknown ship")
	ErrUnknownFleet   = errors.New("unknown fleet")
	ErrUnknownFaction = errors.New("unknown faction")
	ErrNoRoute        = errors.New("no route")
)

// IssueOrder appends o to the ship's queue.
func (s *Simulation) IssueOrder(shipID model.ID, o model.Order) error {
	if s.state.Ships[shipID] == nil {
		return fmt.Errorf("%w: %d", ErrUnknownShip, shipID)
	}
	if o == nil {
		return errors.New("nil order")
	}
	so := s.state.Orders(shipID)
	so.Queue = append(so.Queue, o)
	s.touch()
	return nil
}

// ClearOrders empties the queue and disables repeat.
func (s *Simulation) ClearOrders(shipID model.ID) error {
	if s.state.Ships[shipID] == nil {
		return fmt.Errorf("%w: %d", ErrUnknownShip, shipID)
	}
	so := s.state.Orders(shipID)
	so.Queue = nil
	so.RepeatEnabled = false
	so.RepeatTemplate = nil
	so.RepeatCountRemaining = 0
	s.touch()
	return nil
}

// EnableRepeat snapshots the current queue as the repeat template. count is
// the number of refills; -1 repeats forever.
func (s *Simulation) EnableRepeat(shipID model.ID, count int) error {
	if s.state.Ships[shipID] == nil {
		return fmt.Errorf("%w: %d", ErrUnknownShip, shipID)
	}
	so := s.state.Orders(shipID)
	so.RepeatTemplate = so.Queue.Clone()
	so.RepeatEnabled = len(so.RepeatTemplate) > 0
	so.RepeatCountRemaining = count
	s.touch()
	return nil
}

// IssueTravelToSystem queues the jumps of a planned route to goalSystem.
func (s *Simulation) IssueTravelToSystem(shipID, goalSystem model.ID, restrict bool) error {
	sh := s.state.Ships[shipID]
	if sh == nil {
		return fmt.Errorf("%w: %d", ErrUnknownShip, shipID)
	}
	plan, ok := s.PlanJumpRouteForShip(shipID, goalSystem, restrict, nil)
	if !ok {
		return fmt.Errorf("%w: ship %d to system %d", ErrNoRoute, shipID, goalSystem)
	}
	so := s.state.Orders(shipID)
	for _, jid := range plan.JumpIDs {
		so.Queue = append(so.Queue, &model.TravelViaJump{JumpPointID: jid})
	}
	s.touch()
	return nil
}

// IssueFleetOrder appends a copy of o to every member of the fleet.
func (s *Simulation) IssueFleetOrder(fleetID model.ID, o model.Order) error {
	fl := s.state.Fleets[fleetID]
	if fl == nil {
		return fmt.Errorf("%w: %d", ErrUnknownFleet, fleetID)
	}
	for _, id := range model.SortUniqueIDs(slices.Clone(fl.ShipIDs)) {
		if s.state.Ships[id] == nil {
			continue
		}
		so := s.state.Orders(id)
		so.Queue = append(so.Queue, o.Clone())
	}
	s.touch()
	return nil
}

// CreateFleet groups ships of one faction. Ships already in another fleet
// are moved; ships of other factions are rejected.
func (s *Simulation) CreateFleet(factionID model.ID, name string, shipIDs []model.ID) (model.ID, error) {
	if s.state.Factions[factionID] == nil {
		return model.InvalidID, fmt.Errorf("%w: %d", ErrUnknownFaction, factionID)
	}
	ids := model.SortUniqueIDs(slices.Clone(shipIDs))
	for _, id := range ids {
		sh := s.state.Ships[id]
		if sh == nil {
			return model.InvalidID, fmt.Errorf("%w: %d", ErrUnknownShip, id)
		}
		if sh.FactionID != factionID {
			return model.InvalidID, fmt.Errorf("ship %d belongs to faction %d", id, sh.FactionID)
		}
	}
	for _, id := range ids {
		s.detachFromFleets(id)
	}
	fl := &model.Fleet{
		ID:                  model.AllocateID(s.state),
		Name:                name,
		FactionID:           factionID,
		ShipIDs:             ids,
		FormationSpacingMkm: 1,
	}
	if len(ids) > 0 {
		fl.LeaderShipID = ids[0]
	}
	s.state.Fleets[fl.ID] = fl
	s.touch()
	return fl.ID, nil
}

func (s *Simulation) SetFleetFormation(fleetID model.ID, f model.FleetFormation, spacingMkm float64) error {
	fl := s.state.Fleets[fleetID]
	if fl == nil {
		return fmt.Errorf("%w: %d", ErrUnknownFleet, fleetID)
	}
	fl.Formation = f
	if spacingMkm > 0 {
		fl.FormationSpacingMkm = spacingMkm
	}
	s.touch()
	return nil
}

func (s *Simulation) SetFleetMission(fleetID model.ID, m model.FleetMission) error {
	fl := s.state.Fleets[fleetID]
	if fl == nil {
		return fmt.Errorf("%w: %d", ErrUnknownFleet, fleetID)
	}
	fl.Mission = m
	s.touch()
	return nil
}

// detachFromFleets removes a ship from every fleet, re-electing leaders and
// dropping fleets left empty.
func (s *Simulation) detachFromFleets(shipID model.ID) {
	for _, fid := range model.SortedKeys(s.state.Fleets) {
		fl := s.state.Fleets[fid]
		if !slices.Contains(fl.ShipIDs, shipID) {
			continue
		}
		fl.ShipIDs = model.RemoveID(fl.ShipIDs, shipID)
		if len(fl.ShipIDs) == 0 {
			delete(s.state.Fleets, fid)
			continue
		}
		if fl.LeaderShipID == shipID {
			fl.LeaderShipID = model.SortUniqueIDs(slices.Clone(fl.ShipIDs))[0]
		}
	}
}
