package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"nebula4x.dev/internal/persistence/indexdb"
	"nebula4x.dev/internal/persistence/savejson"
	"nebula4x.dev/internal/persistence/tape"
	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/tuning"
)

func main() {
	def := tape.DefaultConfig()
	var (
		tapePath   = flag.String("tape", "", "regression tape path (verified unless -record)")
		record     = flag.Bool("record", false, "record a new tape to -tape instead of verifying it")
		scenarioID = flag.String("scenario", def.Scenario, "scenario when recording: sol or random")
		seed       = flag.Uint("seed", uint(def.Seed), "random scenario seed")
		systems    = flag.Int("systems", def.Systems, "random scenario system count")
		days       = flag.Int("days", def.Days, "days to simulate when recording")
		stepDays   = flag.Int("step_days", def.StepDays, "days between snapshots when recording")
		loadPath   = flag.String("load", "", "start from this save file instead of a scenario")
		contentDir = flag.String("content", "", "comma-separated content directories (default: embedded content)")
		techFiles  = flag.String("tech", "", "comma-separated tech files overlaid on the content")
		tuningPath = flag.String("tuning", "", "path to sim.yaml (default: built-in defaults)")
		timeline   = flag.String("timeline", "", "also write per-faction timeline JSONL here (.zst compresses)")
		metrics    = flag.Bool("metrics", true, "compare entity counts as well as digests")
		indexPath  = flag.String("index", "", "sqlite index to record the run in (optional)")
		quiet      = flag.Bool("quiet", false, "only log warnings")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags|log.Lmicroseconds)
	level := slog.LevelInfo
	if *quiet {
		level = slog.LevelWarn
	}
	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *tapePath == "" {
		fmt.Fprintln(os.Stderr, "missing -tape")
		os.Exit(2)
	}

	simCfg := tuning.Defaults()
	if p := strings.TrimSpace(*tuningPath); p != "" {
		c, err := tuning.Load(p)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
		simCfg = c
	}

	var idx *indexdb.SQLiteIndex
	if p := strings.TrimSpace(*indexPath); p != "" {
		var err error
		idx, err = indexdb.OpenSQLite(p)
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
	}

	var (
		run *tape.Run
		rep tape.Report
		doc []byte
	)
	if *record {
		cfg := def
		cfg.Scenario = *scenarioID
		cfg.Seed = uint32(*seed)
		cfg.Systems = *systems
		cfg.Days = *days
		cfg.StepDays = *stepDays
		cfg.Load = strings.TrimSpace(*loadPath)
		cfg.Content = splitList(*contentDir)
		cfg.Tech = splitList(*techFiles)

		db, err := content.LoadLayers(cfg.Content, cfg.Tech)
		if err != nil {
			logger.Fatalf("load content: %v", err)
		}
		run, err = tape.Record(cfg, db, simCfg, slogger)
		if err != nil {
			logger.Fatalf("record: %v", err)
		}
		doc, err = run.Tape.Encode()
		if err != nil {
			logger.Fatalf("encode tape: %v", err)
		}
		if err := savejson.WriteBytes(*tapePath, doc); err != nil {
			logger.Fatalf("write tape: %v", err)
		}
		rep = tape.Report{OK: true, Message: fmt.Sprintf("recorded %d snapshots", len(run.Tape.Snapshots))}
		if idx != nil {
			idx.RecordRun(run.Tape, doc, nil)
		}
	} else {
		var err error
		doc, err = os.ReadFile(*tapePath)
		if err != nil {
			logger.Fatalf("read tape: %v", err)
		}
		expected, err := tape.Parse(doc)
		if err != nil {
			logger.Fatalf("parse tape: %v", err)
		}
		// Flags override the content recorded in the tape.
		dirs, techs := expected.Config.Content, expected.Config.Tech
		if *contentDir != "" {
			dirs = splitList(*contentDir)
		}
		if *techFiles != "" {
			techs = splitList(*techFiles)
		}
		db, err := content.LoadLayers(dirs, techs)
		if err != nil {
			logger.Fatalf("load content: %v", err)
		}
		rep, run, err = tape.Verify(expected, db, simCfg, *metrics, slogger)
		if err != nil {
			logger.Fatalf("verify: %v", err)
		}
		if idx != nil {
			idx.RecordRun(expected, doc, &rep)
		}
	}

	if p := strings.TrimSpace(*timeline); p != "" && run != nil {
		if err := tape.WriteTimelineJSONL(p, run.Timeline); err != nil {
			logger.Fatalf("write timeline: %v", err)
		}
		logger.Printf("timeline rows=%d path=%s", len(run.Timeline), p)
	}

	out, err := rep.JSON()
	if err != nil {
		logger.Fatalf("encode report: %v", err)
	}
	fmt.Println(string(out))
	if !rep.OK {
		if idx != nil {
			_ = idx.Close()
		}
		os.Exit(1)
	}
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
