// Package tape records and verifies regression tapes: a run configuration
// plus the expected state digest and summary counts at fixed days.
package tape

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"nebula4x.dev/internal/sim/digest"
)

const (
	Format  = "nebula4x.regression_tape.v1"
	Version = "nebula4x-go 0.1"
)

var ErrFormat = errors.New("invalid regression tape")

//go:embed regression_tape.schema.json
var schemaText string

var schema = jsonschema.MustCompileString("regression_tape.schema.json", schemaText)

// Digest is a 64-bit digest carried as 16 hex digits in JSON.
type Digest uint64

func (d Digest) String() string { return digest.Hex(uint64(d)) }

func (d Digest) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Digest) UnmarshalText(b []byte) error {
	v, err := digest.ParseHex(string(b))
	if err != nil {
		return err
	}
	*d = Digest(v)
	return nil
}

// Counter is written as a decimal string so 64-bit values survive JSON
// readers that use doubles. Plain numbers are accepted on read.
type Counter uint64

func (c Counter) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(c), 10))), nil
}

func (c *Counter) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if u, err := strconv.Unquote(s); err == nil {
		s = u
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("counter %s: %w", b, err)
	}
	*c = Counter(v)
	return nil
}

type DigestOptions struct {
	IncludeEvents  bool `json:"include_events"`
	IncludeUIState bool `json:"include_ui_state"`
}

func (o DigestOptions) digest() digest.Options {
	return digest.Options{IncludeEvents: o.IncludeEvents, IncludeUIState: o.IncludeUIState}
}

type TimelineOptions struct {
	Digest           DigestOptions `json:"digest"`
	IncludeMinerals  bool          `json:"include_minerals"`
	IncludeShipCargo bool          `json:"include_ship_cargo"`
	// Empty means every mineral key.
	MineralFilter []string `json:"mineral_filter"`
}

func DefaultTimelineOptions() TimelineOptions {
	return TimelineOptions{
		Digest:          DigestOptions{IncludeEvents: true, IncludeUIState: true},
		IncludeMinerals: true,
		MineralFilter:   []string{},
	}
}

type Config struct {
	Scenario string `json:"scenario"` // "sol" or "random"
	Seed     uint32 `json:"seed"`
	Systems  int    `json:"systems"`
	Days     int    `json:"days"`
	StepDays int    `json:"step_days"`
	// Load starts from a save file instead of a scenario.
	Load     string          `json:"load"`
	Content  []string        `json:"content"`
	Tech     []string        `json:"tech"`
	Timeline TimelineOptions `json:"timeline"`
}

func DefaultConfig() Config {
	return Config{
		Scenario: "sol",
		Seed:     1,
		Systems:  12,
		Days:     30,
		StepDays: 1,
		Content:  []string{},
		Tech:     []string{},
		Timeline: DefaultTimelineOptions(),
	}
}

// normalize replaces nil lists with empty ones; the schema requires arrays.
func (c *Config) normalize() {
	if c.Content == nil {
		c.Content = []string{}
	}
	if c.Tech == nil {
		c.Tech = []string{}
	}
	if c.Timeline.MineralFilter == nil {
		c.Timeline.MineralFilter = []string{}
	}
}

type Counts struct {
	Systems    int `json:"systems"`
	Bodies     int `json:"bodies"`
	JumpPoints int `json:"jump_points"`
	Ships      int `json:"ships"`
	Colonies   int `json:"colonies"`
	Fleets     int `json:"fleets"`
}

type Snapshot struct {
	Day               int64   `json:"day"`
	Date              string  `json:"date"`
	StateDigest       Digest  `json:"state_digest"`
	ContentDigest     Digest  `json:"content_digest"`
	NextEventSeq      Counter `json:"next_event_seq"`
	EventsSize        int     `json:"events_size"`
	NewEvents         Counter `json:"new_events"`
	NewEventsRetained int     `json:"new_events_retained"`
	NewInfo           int     `json:"new_info"`
	NewWarn           int     `json:"new_warn"`
	NewError          int     `json:"new_error"`
	Counts            Counts  `json:"counts"`

	// Timeline exports only; tapes leave it empty.
	Factions []FactionRow `json:"factions,omitempty"`
}

type Tape struct {
	Format          string     `json:"format"`
	CreatedUTC      string     `json:"created_utc"`
	Nebula4XVersion string     `json:"nebula4x_version"`
	Config          Config     `json:"config"`
	Snapshots       []Snapshot `json:"snapshots"`
}

// Encode writes the tape as indented JSON with a trailing newline.
func (t *Tape) Encode() ([]byte, error) {
	out := *t
	out.Config.normalize()
	if out.Snapshots == nil {
		out.Snapshots = []Snapshot{}
	}
	b, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Parse validates data against the tape schema and decodes it.
func Parse(data []byte) (*Tape, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	root, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: root is not an object", ErrFormat)
	}
	if f, _ := root["format"].(string); f != Format {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrFormat, f)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	t := &Tape{Config: DefaultConfig()}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return t, nil
}
