package tape

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"nebula4x.dev/internal/persistence/savejson"
	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/digest"
	"nebula4x.dev/internal/sim/engine"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/scenario"
	"nebula4x.dev/internal/sim/tuning"
)

// Run is the recorder's output: the tape plus the per-faction timeline rows
// that the tape itself does not keep.
type Run struct {
	Tape     *Tape
	Timeline []Snapshot
}

// InitialState builds the starting state cfg names: a save file when Load
// is set, otherwise the sol or random scenario.
func InitialState(cfg Config) (*model.GameState, error) {
	if cfg.Load != "" {
		st, err := savejson.ReadFile(cfg.Load)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", cfg.Load, err)
		}
		return st, nil
	}
	switch cfg.Scenario {
	case "", "sol":
		return scenario.Sol(), nil
	case "random":
		return scenario.Random(int64(cfg.Seed), cfg.Systems), nil
	default:
		return nil, fmt.Errorf("unknown scenario %q", cfg.Scenario)
	}
}

// Record runs cfg and snapshots day 0 and every StepDays after it until
// Days have passed. The last step is shortened to land on Days exactly.
func Record(cfg Config, db *content.DB, simCfg tuning.SimConfig, logger *slog.Logger) (*Run, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Days = max(0, cfg.Days)
	cfg.StepDays = max(1, cfg.StepDays)
	cfg.normalize()
	if cfg.Scenario == "" {
		cfg.Scenario = "sol"
	}

	st, err := InitialState(cfg)
	if err != nil {
		return nil, err
	}
	sim := engine.New(db, simCfg, engine.Options{Logger: logger})
	sim.LoadGame(st)
	contentDigest := digest.Content(sim.Content())

	run := &Run{Tape: &Tape{
		Format:          Format,
		CreatedUTC:      time.Now().UTC().Format(time.RFC3339),
		Nebula4XVersion: Version,
		Config:          cfg,
	}}
	take := func(prev uint64) {
		snap := TakeSnapshot(sim.State(), contentDigest, prev, cfg.Timeline)
		run.Timeline = append(run.Timeline, snap)
		snap.Factions = nil
		run.Tape.Snapshots = append(run.Tape.Snapshots, snap)
	}

	prev := sim.State().NextEventSeq
	take(prev)
	for done := 0; done < cfg.Days; {
		step := min(cfg.StepDays, cfg.Days-done)
		sim.AdvanceDays(step)
		done += step
		take(prev)
		prev = sim.State().NextEventSeq
	}
	last := run.Tape.Snapshots[len(run.Tape.Snapshots)-1]
	logger.Info("tape recorded",
		"scenario", cfg.Scenario,
		"days", cfg.Days,
		"snapshots", len(run.Tape.Snapshots),
		"digest", last.StateDigest.String(),
	)
	return run, nil
}

type Mismatch struct {
	Index               int    `json:"index"`
	Day                 int64  `json:"day"`
	Date                string `json:"date"`
	ExpectedStateDigest string `json:"expected_state_digest"`
	ActualStateDigest   string `json:"actual_state_digest"`
	Detail              string `json:"detail"`
}

type Report struct {
	OK            bool      `json:"ok"`
	Message       string    `json:"message"`
	FirstMismatch *Mismatch `json:"first_mismatch,omitempty"`
}

func (r Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// SnapshotsEqual compares day and state digest, plus the content digest,
// entity counts and event counter when metrics is set.
func SnapshotsEqual(a, b Snapshot, metrics bool) bool {
	if a.Day != b.Day || a.StateDigest != b.StateDigest {
		return false
	}
	if !metrics {
		return true
	}
	return a.ContentDigest == b.ContentDigest && a.Counts == b.Counts && a.NextEventSeq == b.NextEventSeq
}

// Compare walks both tapes pairwise and reports the first divergence. A
// digest mismatch is authoritative; metrics only help locate it.
func Compare(expected, actual *Tape, metrics bool) Report {
	if len(expected.Snapshots) != len(actual.Snapshots) {
		return Report{
			Message: fmt.Sprintf("snapshot count mismatch: expected %d, got %d", len(expected.Snapshots), len(actual.Snapshots)),
			FirstMismatch: &Mismatch{
				Index:  -1,
				Detail: "count mismatch",
			},
		}
	}
	for i, e := range expected.Snapshots {
		g := actual.Snapshots[i]
		if SnapshotsEqual(e, g, metrics) {
			continue
		}
		detail := "digest mismatch"
		switch {
		case e.Day != g.Day:
			detail = "day mismatch"
		case e.StateDigest == g.StateDigest:
			detail = "metrics mismatch"
		}
		return Report{
			Message: "mismatch",
			FirstMismatch: &Mismatch{
				Index:               i,
				Day:                 e.Day,
				Date:                e.Date,
				ExpectedStateDigest: e.StateDigest.String(),
				ActualStateDigest:   g.StateDigest.String(),
				Detail:              detail,
			},
		}
	}
	return Report{OK: true, Message: "ok"}
}

// Verify re-records expected's configuration and compares the result.
func Verify(expected *Tape, db *content.DB, simCfg tuning.SimConfig, metrics bool, logger *slog.Logger) (Report, *Run, error) {
	run, err := Record(expected.Config, db, simCfg, logger)
	if err != nil {
		return Report{}, nil, err
	}
	return Compare(expected, run.Tape, metrics), run, nil
}
