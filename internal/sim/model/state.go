package model

import (
	"encoding/json"

	"nebula4x.dev/internal/sim/content"
)

const SaveVersion = 57

// GameState is the whole persistent simulation state. Every entity map is
// keyed by id; callers iterate through SortedKeys.
type GameState struct {
	SaveVersion  int    `json:"save_version"`
	Date         Date   `json:"date"`
	HourOfDay    int    `json:"hour_of_day"`
	NextID       ID     `json:"next_id"`
	NextEventSeq uint64 `json:"next_event_seq"`

	Systems          map[ID]*StarSystem      `json:"systems"`
	Regions          map[ID]*Region          `json:"regions"`
	Bodies           map[ID]*Body            `json:"bodies"`
	JumpPoints       map[ID]*JumpPoint       `json:"jump_points"`
	Ships            map[ID]*Ship            `json:"ships"`
	Wrecks           map[ID]*Wreck           `json:"wrecks"`
	Anomalies        map[ID]*Anomaly         `json:"anomalies"`
	MissileSalvos    map[ID]*MissileSalvo    `json:"missile_salvos"`
	Colonies         map[ID]*Colony          `json:"colonies"`
	Factions         map[ID]*Faction         `json:"factions"`
	Treaties         map[ID]*Treaty          `json:"treaties"`
	DiplomaticOffers map[ID]*DiplomaticOffer `json:"diplomatic_offers"`
	Fleets           map[ID]*Fleet           `json:"fleets"`
	ShipOrders       map[ID]*ShipOrders      `json:"ship_orders"`
	GroundBattles    map[ID]*GroundBattle    `json:"ground_battles"`

	// Queue-like, ascending Seq.
	Events []SimEvent `json:"events"`

	// UI only; excluded from the digest unless asked for.
	SelectedSystem ID `json:"selected_system"`

	CustomDesigns map[string]*content.ShipDesign `json:"custom_designs"`
}

func NewGameState() *GameState {
	s := &GameState{SaveVersion: SaveVersion, NextID: 1, NextEventSeq: 1}
	s.EnsureMaps()
	return s
}

// EnsureMaps replaces nil maps with empty ones, for states built by hand or
// decoded from sparse documents.
func (s *GameState) EnsureMaps() {
	if s.Systems == nil {
		s.Systems = map[ID]*StarSystem{}
	}
	if s.Regions == nil {
		s.Regions = map[ID]*Region{}
	}
	if s.Bodies == nil {
		s.Bodies = map[ID]*Body{}
	}
	if s.JumpPoints == nil {
		s.JumpPoints = map[ID]*JumpPoint{}
	}
	if s.Ships == nil {
		s.Ships = map[ID]*Ship{}
	}
	if s.Wrecks == nil {
		s.Wrecks = map[ID]*Wreck{}
	}
	if s.Anomalies == nil {
		s.Anomalies = map[ID]*Anomaly{}
	}
	if s.MissileSalvos == nil {
		s.MissileSalvos = map[ID]*MissileSalvo{}
	}
	if s.Colonies == nil {
		s.Colonies = map[ID]*Colony{}
	}
	if s.Factions == nil {
		s.Factions = map[ID]*Faction{}
	}
	if s.Treaties == nil {
		s.Treaties = map[ID]*Treaty{}
	}
	if s.DiplomaticOffers == nil {
		s.DiplomaticOffers = map[ID]*DiplomaticOffer{}
	}
	if s.Fleets == nil {
		s.Fleets = map[ID]*Fleet{}
	}
	if s.ShipOrders == nil {
		s.ShipOrders = map[ID]*ShipOrders{}
	}
	if s.GroundBattles == nil {
		s.GroundBattles = map[ID]*GroundBattle{}
	}
	if s.Events == nil {
		s.Events = []SimEvent{}
	}
	if s.CustomDesigns == nil {
		s.CustomDesigns = map[string]*content.ShipDesign{}
	}
}

// Clone deep-copies the state through its JSON form, which is also the save
// format, so a clone is exactly what a save/load cycle would produce.
func (s *GameState) Clone() (*GameState, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	out := &GameState{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	out.EnsureMaps()
	return out, nil
}

// Orders returns the order record for a ship, creating it on demand.
func (s *GameState) Orders(shipID ID) *ShipOrders {
	so := s.ShipOrders[shipID]
	if so == nil {
		so = &ShipOrders{}
		s.ShipOrders[shipID] = so
	}
	return so
}

// ColonyOnBody returns the colony settled on a body, if any.
func (s *GameState) ColonyOnBody(bodyID ID) *Colony {
	for _, cid := range SortedKeys(s.Colonies) {
		if c := s.Colonies[cid]; c.BodyID == bodyID {
			return c
		}
	}
	return nil
}

// ColonySystemID resolves a colony's system through its body.
func (s *GameState) ColonySystemID(c *Colony) ID {
	if c == nil {
		return InvalidID
	}
	if b := s.Bodies[c.BodyID]; b != nil {
		return b.SystemID
	}
	return InvalidID
}
