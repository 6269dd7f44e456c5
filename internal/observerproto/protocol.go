package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeDay       = "DAY"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Only events that name this faction (either side). 0 means all.
	FactionID uint64 `json:"faction_id,omitempty"`
	// Cap on events per DAY message; the newest are kept.
	MaxEvents int `json:"max_events,omitempty"`
}

// HTTP response for GET /v1/observe/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string        `json:"protocol_version"`
	Scenario        string        `json:"scenario"`
	Day             int64         `json:"day"`
	Date            string        `json:"date"`
	StateDigest     string        `json:"state_digest"`
	ContentDigest   string        `json:"content_digest"`
	SecondsPerDay   float64       `json:"seconds_per_day"`
	Factions        []FactionInfo `json:"factions"`
}

type FactionInfo struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	Control string `json:"control"`
}

// Server -> Client. Sent once per simulated day.
type DayMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Day          int64  `json:"day"`
	Date         string `json:"date"`
	StateDigest  string `json:"state_digest"`
	NextEventSeq uint64 `json:"next_event_seq"`

	Ships    int `json:"ships"`
	Colonies int `json:"colonies"`
	Fleets   int `json:"fleets"`

	Events []EventInfo `json:"events,omitempty"`
	// Events that happened but were cut by MaxEvents or the faction filter.
	Omitted int `json:"omitted,omitempty"`
}

type EventInfo struct {
	Seq        uint64 `json:"seq"`
	Day        int64  `json:"day"`
	Level      string `json:"level"`
	Category   string `json:"category"`
	FactionID  uint64 `json:"faction_id,omitempty"`
	FactionID2 uint64 `json:"faction_id2,omitempty"`
	SystemID   uint64 `json:"system_id,omitempty"`
	ShipID     uint64 `json:"ship_id,omitempty"`
	ColonyID   uint64 `json:"colony_id,omitempty"`
	Message    string `json:"message"`
}
