package model

// OrderKind is the stable discriminant of an order. Values are part of the
// state digest and must never be renumbered; new kinds are appended.
type OrderKind uint8

const (
	OrderMoveToPoint          OrderKind = 1
	OrderMoveToBody           OrderKind = 2
	OrderColonizeBody         OrderKind = 3
	OrderOrbitBody            OrderKind = 4
	OrderTravelViaJump        OrderKind = 5
	OrderAttackShip           OrderKind = 6
	OrderWaitDays             OrderKind = 7
	OrderLoadMineral          OrderKind = 8
	OrderUnloadMineral        OrderKind = 9
	OrderTransferCargoToShip  OrderKind = 10
	OrderScrapShip            OrderKind = 11
	OrderLoadTroops           OrderKind = 12
	OrderUnloadTroops         OrderKind = 13
	OrderInvadeColony         OrderKind = 14
	OrderEscortShip           OrderKind = 15
	OrderBombardColony        OrderKind = 16
	OrderSalvageWreck         OrderKind = 17
	OrderInvestigateAnomaly   OrderKind = 18
	OrderTransferFuelToShip   OrderKind = 19
	OrderTransferTroopsToShip OrderKind = 20
	OrderLoadColonists        OrderKind = 21
	OrderUnloadColonists      OrderKind = 22
	OrderMineBody             OrderKind = 23
)

var orderKindNames = map[OrderKind]string{
	OrderMoveToPoint:          "move_to_point",
	OrderMoveToBody:           "move_to_body",
	OrderColonizeBody:         "colonize_body",
	OrderOrbitBody:            "orbit_body",
	OrderTravelViaJump:        "travel_via_jump",
	OrderAttackShip:           "attack_ship",
	OrderWaitDays:             "wait_days",
	OrderLoadMineral:          "load_mineral",
	OrderUnloadMineral:        "unload_mineral",
	OrderTransferCargoToShip:  "transfer_cargo_to_ship",
	OrderScrapShip:            "scrap_ship",
	OrderLoadTroops:           "load_troops",
	OrderUnloadTroops:         "unload_troops",
	OrderInvadeColony:         "invade_colony",
	OrderEscortShip:           "escort_ship",
	OrderBombardColony:        "bombard_colony",
	OrderSalvageWreck:         "salvage_wreck",
	OrderInvestigateAnomaly:   "investigate_anomaly",
	OrderTransferFuelToShip:   "transfer_fuel_to_ship",
	OrderTransferTroopsToShip: "transfer_troops_to_ship",
	OrderLoadColonists:        "load_colonists",
	OrderUnloadColonists:      "unload_colonists",
	OrderMineBody:             "mine_body",
}

func (k OrderKind) String() string {
	if n, ok := orderKindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Order is one entry of a ship's order queue. Implementations are pointer
// types so tick handlers can update progress fields in place.
type Order interface {
	Kind() OrderKind
	Clone() Order
}

type MoveToPoint struct {
	Target Vec2 `json:"target_mkm"`
}

type MoveToBody struct {
	BodyID ID `json:"body_id"`
}

type ColonizeBody struct {
	BodyID     ID     `json:"body_id"`
	ColonyName string `json:"colony_name,omitempty"`
}

// OrbitBody holds station for DurationDays; -1 keeps orbit indefinitely.
type OrbitBody struct {
	BodyID       ID      `json:"body_id"`
	DurationDays int     `json:"duration_days"`
	ProgressDays float64 `json:"progress_days"`
}

type TravelViaJump struct {
	JumpPointID ID `json:"jump_point_id"`
}

type AttackShip struct {
	TargetShipID      ID    `json:"target_ship_id"`
	LastKnownPosMkm   Vec2  `json:"last_known_position_mkm"`
	HasLastKnown      bool  `json:"has_last_known"`
	LastKnownSystemID ID    `json:"last_known_system_id,omitempty"`
	LastKnownDay      int64 `json:"last_known_day,omitempty"`
}

type EscortShip struct {
	TargetShipID      ID      `json:"target_ship_id"`
	FollowDistanceMkm float64 `json:"follow_distance_mkm"`
}

type WaitDays struct {
	DaysRemaining int     `json:"days_remaining"`
	ProgressDays  float64 `json:"progress_days"`
}

// LoadMineral moves minerals from a colony into the ship. An empty Mineral
// means any mineral; Tons <= 0 means as much as fits.
type LoadMineral struct {
	ColonyID ID      `json:"colony_id"`
	Mineral  string  `json:"mineral,omitempty"`
	Tons     float64 `json:"tons"`
}

type UnloadMineral struct {
	ColonyID ID      `json:"colony_id"`
	Mineral  string  `json:"mineral,omitempty"`
	Tons     float64 `json:"tons"`
}

type TransferCargoToShip struct {
	TargetShipID ID      `json:"target_ship_id"`
	Mineral      string  `json:"mineral,omitempty"`
	Tons         float64 `json:"tons"`
}

type ScrapShip struct {
	ColonyID ID `json:"colony_id"`
}

type LoadTroops struct {
	ColonyID ID      `json:"colony_id"`
	Strength float64 `json:"strength"`
}

type UnloadTroops struct {
	ColonyID ID      `json:"colony_id"`
	Strength float64 `json:"strength"`
}

type InvadeColony struct {
	ColonyID ID `json:"colony_id"`
}

// BombardColony fires on a colony for DurationDays; -1 never ends on its own.
type BombardColony struct {
	ColonyID     ID      `json:"colony_id"`
	DurationDays int     `json:"duration_days"`
	ProgressDays float64 `json:"progress_days"`
}

type SalvageWreck struct {
	WreckID ID      `json:"wreck_id"`
	Mineral string  `json:"mineral,omitempty"`
	Tons    float64 `json:"tons"`
}

type InvestigateAnomaly struct {
	AnomalyID    ID      `json:"anomaly_id"`
	DurationDays int     `json:"duration_days"`
	ProgressDays float64 `json:"progress_days"`
}

type TransferFuelToShip struct {
	TargetShipID ID      `json:"target_ship_id"`
	Tons         float64 `json:"tons"`
}

type TransferTroopsToShip struct {
	TargetShipID ID      `json:"target_ship_id"`
	Strength     float64 `json:"strength"`
}

type LoadColonists struct {
	ColonyID ID      `json:"colony_id"`
	Millions float64 `json:"millions"`
}

type UnloadColonists struct {
	ColonyID ID      `json:"colony_id"`
	Millions float64 `json:"millions"`
}

type MineBody struct {
	BodyID            ID     `json:"body_id"`
	Mineral           string `json:"mineral,omitempty"`
	StopWhenCargoFull bool   `json:"stop_when_cargo_full"`
}

func (*MoveToPoint) Kind() OrderKind { return OrderMoveToPoint }
func (*MoveToBody) Kind() OrderKind { return OrderMoveToBody }
func (*ColonizeBody) Kind() OrderKind { return OrderColonizeBody }
func (*OrbitBody) Kind() OrderKind { return OrderOrbitBody }
func (*TravelViaJump) Kind() OrderKind { return OrderTravelViaJump }
func (*AttackShip) Kind() OrderKind { return OrderAttackShip }
func (*EscortShip) Kind() OrderKind { return OrderEscortShip }
func (*WaitDays) Kind() OrderKind { return OrderWaitDays }
func (*LoadMineral) Kind() OrderKind { return OrderLoadMineral }
func (*UnloadMineral) Kind() OrderKind { return OrderUnloadMineral }
func (*TransferCargoToShip) Kind() OrderKind { return OrderTransferCargoToShip }
func (*ScrapShip) Kind() OrderKind { return OrderScrapShip }
func (*LoadTroops) Kind() OrderKind { return OrderLoadTroops }
func (*UnloadTroops) Kind() OrderKind { return OrderUnloadTroops }
func (*InvadeColony) Kind() OrderKind { return OrderInvadeColony }
func (*BombardColony) Kind() OrderKind { return OrderBombardColony }
func (*SalvageWreck) Kind() OrderKind { return OrderSalvageWreck }
func (*InvestigateAnomaly) Kind() OrderKind { return OrderInvestigateAnomaly }
func (*TransferFuelToShip) Kind() OrderKind { return OrderTransferFuelToShip }
func (*TransferTroopsToShip) Kind() OrderKind { return OrderTransferTroopsToShip }
func (*LoadColonists) Kind() OrderKind { return OrderLoadColonists }
func (*UnloadColonists) Kind() OrderKind { return OrderUnloadColonists }
func (*MineBody) Kind() OrderKind { return OrderMineBody }

func (o *MoveToPoint) Clone() Order { c := *o; return &c }
func (o *MoveToBody) Clone() Order { c := *o; return &c }
func (o *ColonizeBody) Clone() Order { c := *o; return &c }
func (o *OrbitBody) Clone() Order { c := *o; return &c }
func (o *TravelViaJump) Clone() Order { c := *o; return &c }
func (o *AttackShip) Clone() Order { c := *o; return &c }
func (o *EscortShip) Clone() Order { c := *o; return &c }
func (o *WaitDays) Clone() Order { c := *o; return &c }
func (o *LoadMineral) Clone() Order { c := *o; return &c }
func (o *UnloadMineral) Clone() Order { c := *o; return &c }
func (o *TransferCargoToShip) Clone() Order { c := *o; return &c }
func (o *ScrapShip) Clone() Order { c := *o; return &c }
func (o *LoadTroops) Clone() Order { c := *o; return &c }
func (o *UnloadTroops) Clone() Order { c := *o; return &c }
func (o *InvadeColony) Clone() Order { c := *o; return &c }
func (o *BombardColony) Clone() Order { c := *o; return &c }
func (o *SalvageWreck) Clone() Order { c := *o; return &c }
func (o *InvestigateAnomaly) Clone() Order { c := *o; return &c }
func (o *TransferFuelToShip) Clone() Order { c := *o; return &c }
func (o *TransferTroopsToShip) Clone() Order { c := *o; return &c }
func (o *LoadColonists) Clone() Order { c := *o; return &c }
func (o *UnloadColonists) Clone() Order { c := *o; return &c }
func (o *MineBody) Clone() Order { c := *o; return &c }

// NewOrder returns a zero order of the given kind, or nil for unknown kinds.
func NewOrder(k OrderKind) Order {
	switch k {
	case OrderMoveToPoint:
		return &MoveToPoint{}
	case OrderMoveToBody:
		return &MoveToBody{}
	case OrderColonizeBody:
		return &ColonizeBody{}
	case OrderOrbitBody:
		return &OrbitBody{}
	case OrderTravelViaJump:
		return &TravelViaJump{}
	case OrderAttackShip:
		return &AttackShip{}
	case OrderEscortShip:
		return &EscortShip{}
	case OrderWaitDays:
		return &WaitDays{}
	case OrderLoadMineral:
		return &LoadMineral{}
	case OrderUnloadMineral:
		return &UnloadMineral{}
	case OrderTransferCargoToShip:
		return &TransferCargoToShip{}
	case OrderScrapShip:
		return &ScrapShip{}
	case OrderLoadTroops:
		return &LoadTroops{}
	case OrderUnloadTroops:
		return &UnloadTroops{}
	case OrderInvadeColony:
		return &InvadeColony{}
	case OrderBombardColony:
		return &BombardColony{}
	case OrderSalvageWreck:
		return &SalvageWreck{}
	case OrderInvestigateAnomaly:
		return &InvestigateAnomaly{}
	case OrderTransferFuelToShip:
		return &TransferFuelToShip{}
	case OrderTransferTroopsToShip:
		return &TransferTroopsToShip{}
	case OrderLoadColonists:
		return &LoadColonists{}
	case OrderUnloadColonists:
		return &UnloadColonists{}
	case OrderMineBody:
		return &MineBody{}
	}
	return nil
}

// OrderList is a queue of orders; its order is significant.
type OrderList []Order

func (l OrderList) Clone() OrderList {
	if l == nil {
		return nil
	}
	out := make(OrderList, len(l))
	for i, o := range l {
		out[i] = o.Clone()
	}
	return out
}

// ShipOrders is the per-ship queue plus the optional repeat loop. A repeat
// count of -1 repeats forever; 0 stops at the next refill.
type ShipOrders struct {
	Queue                OrderList `json:"queue"`
	RepeatEnabled        bool      `json:"repeat"`
	RepeatCountRemaining int       `json:"repeat_count_remaining"`
	RepeatTemplate       OrderList `json:"repeat_template,omitempty"`
}

func (so *ShipOrders) Front() Order {
	if so == nil || len(so.Queue) == 0 {
		return nil
	}
	return so.Queue[0]
}

func (so *ShipOrders) Pop() {
	if len(so.Queue) > 0 {
		so.Queue[0] = nil
		so.Queue = so.Queue[1:]
	}
}

// Refill copies the repeat template into an empty queue. It reports whether
// the queue holds orders afterwards.
func (so *ShipOrders) Refill() bool {
	if len(so.Queue) > 0 {
		return true
	}
	if !so.RepeatEnabled || len(so.RepeatTemplate) == 0 {
		return false
	}
	if so.RepeatCountRemaining == 0 {
		so.RepeatEnabled = false
		return false
	}
	so.Queue = so.RepeatTemplate.Clone()
	if so.RepeatCountRemaining > 0 {
		so.RepeatCountRemaining--
	}
	return true
}
