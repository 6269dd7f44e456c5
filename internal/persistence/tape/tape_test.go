package tape

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/simtest"
	"nebula4x.dev/internal/sim/tuning"
)

func record(t *testing.T, cfg Config) *Run {
	t.Helper()
	run, err := Record(cfg, content.Default(), tuning.Defaults(), simtest.QuietLogger())
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	return run
}

func TestRecord_SnapshotCadence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Days = 10
	cfg.StepDays = 4
	run := record(t, cfg)

	var days []int64
	for _, s := range run.Tape.Snapshots {
		days = append(days, s.Day)
		if len(s.Factions) != 0 {
			t.Fatalf("tape snapshot carries faction rows")
		}
	}
	want := []int64{0, 4, 8, 10}
	if len(days) != len(want) {
		t.Fatalf("days=%v want %v", days, want)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("days=%v want %v", days, want)
		}
	}
	if len(run.Timeline) != len(want) || len(run.Timeline[0].Factions) != 2 {
		t.Fatalf("timeline=%d rows, factions=%d", len(run.Timeline), len(run.Timeline[0].Factions))
	}
	if got := run.Timeline[0].Factions[0].Colonies; got != 1 {
		t.Fatalf("terran colonies=%d want 1", got)
	}
	if s := run.Tape.Snapshots[0]; s.Counts.Systems != 2 || s.Counts.Ships != 5 || s.NewEvents != 0 {
		t.Fatalf("day 0 snapshot=%+v", s)
	}
}

func TestVerify_RoundTripAndTamper(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scenario = "random"
	cfg.Seed = 9
	cfg.Systems = 6
	cfg.Days = 6
	cfg.StepDays = 2
	run := record(t, cfg)

	b, err := run.Tape.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(b), `"next_event_seq": "`) {
		t.Fatalf("next_event_seq should be a decimal string:\n%s", b)
	}
	parsed, err := Parse(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	rep, _, err := Verify(parsed, content.Default(), tuning.Defaults(), true, simtest.QuietLogger())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !rep.OK || rep.Message != "ok" {
		t.Fatalf("report=%+v", rep)
	}

	parsed.Snapshots[2].StateDigest ^= 1
	rep = Compare(parsed, run.Tape, true)
	if rep.OK || rep.FirstMismatch == nil || rep.FirstMismatch.Index != 2 || rep.FirstMismatch.Detail != "digest mismatch" {
		t.Fatalf("report=%+v", rep)
	}
}

func TestCompare_Details(t *testing.T) {
	base := func() *Tape {
		return &Tape{Snapshots: []Snapshot{
			{Day: 0, StateDigest: 1, Counts: Counts{Ships: 3}},
			{Day: 1, StateDigest: 2, Counts: Counts{Ships: 3}},
		}}
	}
	cases := []struct {
		name    string
		mutate  func(t *Tape)
		metrics bool
		index   int
		detail  string
	}{
		{"day", func(t *Tape) { t.Snapshots[1].Day = 2 }, true, 1, "day mismatch"},
		{"metrics", func(t *Tape) { t.Snapshots[0].Counts.Ships = 2 }, true, 0, "metrics mismatch"},
		{"count", func(t *Tape) { t.Snapshots = t.Snapshots[:1] }, true, -1, "count mismatch"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := base()
			tc.mutate(got)
			rep := Compare(base(), got, tc.metrics)
			if rep.OK || rep.FirstMismatch.Index != tc.index || rep.FirstMismatch.Detail != tc.detail {
				t.Fatalf("report=%+v mismatch=%+v", rep, rep.FirstMismatch)
			}
		})
	}

	got := base()
	got.Snapshots[0].Counts.Ships = 9
	if rep := Compare(base(), got, false); !rep.OK {
		t.Fatalf("metrics ignored but report=%+v", rep)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"not an object", `[1,2]`},
		{"wrong format", `{"format":"nebula4x.regression_tape.v0","config":{},"snapshots":[]}`},
		{"missing snapshots", `{"format":"nebula4x.regression_tape.v1","config":{}}`},
		{"bad digest", `{"format":"nebula4x.regression_tape.v1","config":{},"snapshots":[{"day":0,"state_digest":"xyz"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.doc)); !errors.Is(err, ErrFormat) {
				t.Fatalf("err=%v want ErrFormat", err)
			}
		})
	}
}

func TestEncode_DefaultConfigParses(t *testing.T) {
	cases := []struct {
		name string
		tape *Tape
	}{
		{"default config", &Tape{Format: Format, Config: DefaultConfig(), Snapshots: []Snapshot{}}},
		{"nil lists", &Tape{Format: Format, Config: Config{Scenario: "sol", Days: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := tc.tape.Encode()
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if strings.Contains(string(b), "null") {
				t.Fatalf("encoded tape has null:\n%s", b)
			}
			got, err := Parse(b)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got.Config.Scenario != "sol" || got.Config.Timeline.MineralFilter == nil || len(got.Snapshots) != 0 {
				t.Fatalf("config=%+v snapshots=%d", got.Config, len(got.Snapshots))
			}
		})
	}

	tp := &Tape{Format: Format}
	if _, err := tp.Encode(); err != nil || tp.Config.Content != nil || tp.Snapshots != nil {
		t.Fatalf("Encode changed its receiver: err=%v tape=%+v", err, tp)
	}
}

func TestParse_AcceptsNumericCounterAndPrefixedDigest(t *testing.T) {
	doc := `{"format":"nebula4x.regression_tape.v1","config":{"scenario":"sol","days":1},
		"snapshots":[{"day":0,"state_digest":"0x00000000000000ff","next_event_seq":7}]}`
	tp, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := tp.Snapshots[0]
	if s.StateDigest != 0xff || s.NextEventSeq != 7 {
		t.Fatalf("snapshot=%+v", s)
	}
	if tp.Config.StepDays != 1 || !tp.Config.Timeline.IncludeMinerals {
		t.Fatalf("defaults not kept: %+v", tp.Config)
	}
}

func TestTimelineJSONL_Zstd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Days = 3
	cfg.Timeline.IncludeShipCargo = true
	cfg.Timeline.MineralFilter = []string{"Duranium"}
	run := record(t, cfg)

	for _, name := range []string{"timeline.jsonl", "timeline.jsonl.zst"} {
		path := filepath.Join(t.TempDir(), name)
		if err := WriteTimelineJSONL(path, run.Timeline); err != nil {
			t.Fatalf("%s: write: %v", name, err)
		}
		got, err := ReadTimelineJSONL(path)
		if err != nil {
			t.Fatalf("%s: read: %v", name, err)
		}
		if len(got) != len(run.Timeline) {
			t.Fatalf("%s: rows=%d want %d", name, len(got), len(run.Timeline))
		}
		last := got[len(got)-1]
		if last.StateDigest != run.Timeline[len(run.Timeline)-1].StateDigest {
			t.Fatalf("%s: digest changed through the file", name)
		}
		for k := range last.Factions[0].Minerals {
			if k != "Duranium" {
				t.Fatalf("%s: mineral filter leaked %q", name, k)
			}
		}
	}
}
