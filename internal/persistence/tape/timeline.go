package tape

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zstd"

	"nebula4x.dev/internal/sim/digest"
	"nebula4x.dev/internal/sim/model"
)

// FactionRow is one faction's line in a timeline snapshot.
type FactionRow struct {
	FactionID              model.ID             `json:"faction_id"`
	Name                   string               `json:"name"`
	Control                model.FactionControl `json:"control"`
	Ships                  int                  `json:"ships"`
	Colonies               int                  `json:"colonies"`
	Fleets                 int                  `json:"fleets"`
	PopulationMillions     float64              `json:"population_millions"`
	ResearchPoints         float64              `json:"research_points"`
	ActiveResearchID       string               `json:"active_research_id"`
	ActiveResearchProgress float64              `json:"active_research_progress"`
	KnownTechs             int                  `json:"known_techs"`
	DiscoveredSystems      int                  `json:"discovered_systems"`
	Contacts               int                  `json:"contacts"`
	Minerals               map[string]float64   `json:"minerals,omitempty"`
	ShipCargo              map[string]float64   `json:"ship_cargo,omitempty"`
}

func addMinerals(dst map[string]float64, src map[string]float64, filter []string) {
	for _, k := range model.SortedKeys(src) {
		if len(filter) > 0 && !slices.Contains(filter, k) {
			continue
		}
		dst[k] += src[k]
	}
}

// TakeSnapshot summarises st. Events with seq >= prevNextEventSeq count as
// new; pass st.NextEventSeq for the first snapshot of a run.
func TakeSnapshot(st *model.GameState, contentDigest uint64, prevNextEventSeq uint64, opt TimelineOptions) Snapshot {
	snap := Snapshot{
		Day:           st.Date.DaysSinceEpoch(),
		Date:          st.Date.String(),
		StateDigest:   Digest(digest.GameState(st, opt.Digest.digest())),
		ContentDigest: Digest(contentDigest),
		NextEventSeq:  Counter(st.NextEventSeq),
		EventsSize:    len(st.Events),
		Counts: Counts{
			Systems:    len(st.Systems),
			Bodies:     len(st.Bodies),
			JumpPoints: len(st.JumpPoints),
			Ships:      len(st.Ships),
			Colonies:   len(st.Colonies),
			Fleets:     len(st.Fleets),
		},
	}
	if st.NextEventSeq >= prevNextEventSeq {
		snap.NewEvents = Counter(st.NextEventSeq - prevNextEventSeq)
	}
	for _, ev := range st.Events {
		if ev.Seq < prevNextEventSeq {
			continue
		}
		snap.NewEventsRetained++
		switch ev.Level {
		case model.EventInfo:
			snap.NewInfo++
		case model.EventWarn:
			snap.NewWarn++
		case model.EventError:
			snap.NewError++
		}
	}

	index := map[model.ID]int{}
	for _, fid := range model.SortedKeys(st.Factions) {
		f := st.Factions[fid]
		row := FactionRow{
			FactionID:              fid,
			Name:                   f.Name,
			Control:                f.Control,
			ResearchPoints:         f.ResearchPoints,
			ActiveResearchID:       f.ActiveResearchID,
			ActiveResearchProgress: f.ActiveResearchProgress,
			KnownTechs:             len(f.KnownTechs),
			DiscoveredSystems:      len(f.DiscoveredSystems),
			Contacts:               len(f.ShipContacts),
		}
		if opt.IncludeMinerals {
			row.Minerals = map[string]float64{}
		}
		if opt.IncludeShipCargo {
			row.ShipCargo = map[string]float64{}
		}
		index[fid] = len(snap.Factions)
		snap.Factions = append(snap.Factions, row)
	}
	for _, id := range model.SortedKeys(st.Fleets) {
		if i, ok := index[st.Fleets[id].FactionID]; ok {
			snap.Factions[i].Fleets++
		}
	}
	for _, id := range model.SortedKeys(st.Ships) {
		sh := st.Ships[id]
		i, ok := index[sh.FactionID]
		if !ok {
			continue
		}
		snap.Factions[i].Ships++
		if opt.IncludeShipCargo {
			addMinerals(snap.Factions[i].ShipCargo, sh.Cargo, opt.MineralFilter)
		}
	}
	for _, id := range model.SortedKeys(st.Colonies) {
		c := st.Colonies[id]
		i, ok := index[c.FactionID]
		if !ok {
			continue
		}
		row := &snap.Factions[i]
		row.Colonies++
		row.PopulationMillions += c.PopulationMillions
		if opt.IncludeMinerals {
			addMinerals(row.Minerals, c.Minerals, opt.MineralFilter)
		}
	}
	return snap
}

// EncodeTimelineJSONL writes one snapshot per line.
func EncodeTimelineJSONL(w io.Writer, snaps []Snapshot) error {
	enc := json.NewEncoder(w)
	for i := range snaps {
		if err := enc.Encode(&snaps[i]); err != nil {
			return err
		}
	}
	return nil
}

// WriteTimelineJSONL writes snaps to path, zstd-compressed when the path
// ends in ".zst". The file is written to a temp name and renamed into place.
func WriteTimelineJSONL(path string, snaps []Snapshot) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	bw := bufio.NewWriterSize(f, 64<<10)
	var w io.Writer = bw
	var zw *zstd.Encoder
	if strings.HasSuffix(path, ".zst") {
		zw, err = zstd.NewWriter(bw, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			_ = f.Close()
			return err
		}
		w = zw
	}
	if err := EncodeTimelineJSONL(w, snaps); err != nil {
		_ = f.Close()
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadTimelineJSONL reads a file written by WriteTimelineJSONL.
func ReadTimelineJSONL(path string) ([]Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}

	var out []Snapshot
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(strings.TrimSpace(sc.Text())) == 0 {
			continue
		}
		var s Snapshot
		if err := json.Unmarshal(sc.Bytes(), &s); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, s)
	}
	return out, sc.Err()
}
