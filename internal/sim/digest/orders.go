package digest

import "nebula4x.dev/internal/sim/model"

// writeOrderList feeds a queue in order. Each order is prefixed with its
// frozen discriminant.
func writeOrderList(h *hasher, l model.OrderList) {
	h.u64(uint64(len(l)))
	for _, o := range l {
		writeOrder(h, o)
	}
}

func writeOrder(h *hasher, o model.Order) {
	if o == nil {
		h.u64(0)
		return
	}
	h.u64(uint64(o.Kind()))
	switch v := o.(type) {
	case *model.MoveToPoint:
		h.vec2(v.Target)
	case *model.MoveToBody:
		h.id(v.BodyID)
	case *model.ColonizeBody:
		h.id(v.BodyID)
		h.str(v.ColonyName)
	case *model.OrbitBody:
		h.id(v.BodyID)
		h.int(v.DurationDays)
		h.f64(v.ProgressDays)
	case *model.TravelViaJump:
		h.id(v.JumpPointID)
	case *model.AttackShip:
		h.id(v.TargetShipID)
		h.vec2(v.LastKnownPosMkm)
		h.bool(v.HasLastKnown)
		h.id(v.LastKnownSystemID)
		h.i64(v.LastKnownDay)
	case *model.EscortShip:
		h.id(v.TargetShipID)
		h.f64(v.FollowDistanceMkm)
	case *model.WaitDays:
		h.int(v.DaysRemaining)
		h.f64(v.ProgressDays)
	case *model.LoadMineral:
		h.id(v.ColonyID)
		h.str(v.Mineral)
		h.f64(v.Tons)
	case *model.UnloadMineral:
		h.id(v.ColonyID)
		h.str(v.Mineral)
		h.f64(v.Tons)
	case *model.TransferCargoToShip:
		h.id(v.TargetShipID)
		h.str(v.Mineral)
		h.f64(v.Tons)
	case *model.ScrapShip:
		h.id(v.ColonyID)
	case *model.LoadTroops:
		h.id(v.ColonyID)
		h.f64(v.Strength)
	case *model.UnloadTroops:
		h.id(v.ColonyID)
		h.f64(v.Strength)
	case *model.InvadeColony:
		h.id(v.ColonyID)
	case *model.BombardColony:
		h.id(v.ColonyID)
		h.int(v.DurationDays)
		h.f64(v.ProgressDays)
	case *model.SalvageWreck:
		h.id(v.WreckID)
		h.str(v.Mineral)
		h.f64(v.Tons)
	case *model.InvestigateAnomaly:
		h.id(v.AnomalyID)
		h.int(v.DurationDays)
		h.f64(v.ProgressDays)
	case *model.TransferFuelToShip:
		h.id(v.TargetShipID)
		h.f64(v.Tons)
	case *model.TransferTroopsToShip:
		h.id(v.TargetShipID)
		h.f64(v.Strength)
	case *model.LoadColonists:
		h.id(v.ColonyID)
		h.f64(v.Millions)
	case *model.UnloadColonists:
		h.id(v.ColonyID)
		h.f64(v.Millions)
	case *model.MineBody:
		h.id(v.BodyID)
		h.str(v.Mineral)
		h.bool(v.StopWhenCargoFull)
	}
}
