package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"nebula4x.dev/internal/persistence/savejson"
	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/duel"
	"nebula4x.dev/internal/sim/tuning"
)

func main() {
	def := duel.DefaultOptions()
	var (
		designA    = flag.String("a", "", "side A design id (required)")
		designB    = flag.String("b", "", "side B design id (required)")
		countA     = flag.Int("a_count", 1, "side A ship count")
		countB     = flag.Int("b_count", 1, "side B ship count")
		labelA     = flag.String("a_label", "", "side A label")
		labelB     = flag.String("b_label", "", "side B label")
		maxDays    = flag.Int("max_days", def.MaxDays, "days before a run is declared a draw")
		separation = flag.Float64("separation", def.InitialSeparationMkm, "initial separation in mkm (<=0 derives it from weapon ranges)")
		jitter     = flag.Float64("jitter", def.PositionJitterMkm, "per-ship position jitter in mkm")
		runs       = flag.Int("runs", def.Runs, "number of runs")
		seed       = flag.Uint("seed", uint(def.Seed), "seed for per-run seeds")
		noAttack   = flag.Bool("no_attack", false, "do not issue attack orders")
		contentDir = flag.String("content", "", "comma-separated content directories (default: embedded content)")
		tuningPath = flag.String("tuning", "", "path to sim.yaml (default: built-in defaults)")
		outPath    = flag.String("out", "", "write the result JSON here instead of stdout")
		verbose    = flag.Bool("v", false, "log simulation progress")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[duel] ", log.LstdFlags|log.Lmicroseconds)
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *designA == "" || *designB == "" {
		fmt.Fprintln(os.Stderr, "missing -a or -b")
		os.Exit(2)
	}

	var dirs []string
	for _, d := range strings.Split(*contentDir, ",") {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	db, err := content.LoadLayers(dirs, nil)
	if err != nil {
		logger.Fatalf("load content: %v", err)
	}
	simCfg := tuning.Defaults()
	if p := strings.TrimSpace(*tuningPath); p != "" {
		if simCfg, err = tuning.Load(p); err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	opt := def
	opt.MaxDays = *maxDays
	opt.InitialSeparationMkm = *separation
	opt.PositionJitterMkm = *jitter
	opt.Runs = *runs
	opt.Seed = uint32(*seed)
	opt.IssueAttackOrders = !*noAttack
	opt.Logger = slogger

	res, err := duel.Run(db, simCfg,
		duel.Side{DesignID: *designA, Count: *countA, Label: *labelA},
		duel.Side{DesignID: *designB, Count: *countB, Label: *labelB},
		opt)
	if err != nil {
		logger.Fatalf("duel: %v", err)
	}
	b, err := res.JSON()
	if err != nil {
		logger.Fatalf("encode: %v", err)
	}
	b = append(b, '\n')
	if p := strings.TrimSpace(*outPath); p != "" {
		if err := savejson.WriteBytes(p, b); err != nil {
			logger.Fatalf("write: %v", err)
		}
		logger.Printf("a_wins=%d b_wins=%d draws=%d -> %s", res.Aggregate.AWins, res.Aggregate.BWins, res.Aggregate.Draws, p)
		return
	}
	_, _ = os.Stdout.Write(b)
}
