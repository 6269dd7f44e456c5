package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"nebula4x.dev/internal/persistence/savejson"
	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/engine"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/security"
	"nebula4x.dev/internal/sim/trade"
	"nebula4x.dev/internal/sim/tuning"
)

// tradeCmd prints the trade network of a save.
func tradeCmd(args []string) {
	fs := flag.NewFlagSet("trade", flag.ExitOnError)
	savePath := fs.String("save", "", "save file (required)")
	contentDirs := fs.String("content", "", "comma-separated content directories (default: embedded content)")
	maxLanes := fs.Int("max_lanes", trade.DefaultOptions().MaxLanes, "lane limit")
	uncolonized := fs.Bool("uncolonized", trade.DefaultOptions().IncludeUncolonizedMarkets, "give uncolonized systems a market")
	_ = fs.Parse(args)

	sim := loadSim(*savePath, *contentDirs, "")
	opt := trade.DefaultOptions()
	opt.MaxLanes = *maxLanes
	opt.IncludeUncolonizedMarkets = *uncolonized
	printJSON(trade.Compute(sim.State(), sim.Content(), opt))
}

// securityCmd prints the patrol plan for one faction of a save.
func securityCmd(args []string) {
	fs := flag.NewFlagSet("security", flag.ExitOnError)
	savePath := fs.String("save", "", "save file (required)")
	contentDirs := fs.String("content", "", "comma-separated content directories (default: embedded content)")
	tuningPath := fs.String("tuning", "", "path to sim.yaml (default: built-in defaults)")
	faction := fs.Uint64("faction", 0, "faction id (0 = every lane)")
	all := fs.Bool("all", false, "ignore fog of war and colony ownership")
	maxResults := fs.Int("max", security.DefaultOptions().MaxResults, "results per list")
	_ = fs.Parse(args)

	sim := loadSim(*savePath, *contentDirs, *tuningPath)
	opt := security.DefaultOptions()
	opt.FactionID = model.ID(*faction)
	opt.MaxResults = *maxResults
	if *all {
		opt.RestrictToDiscovered = false
		opt.RequireOwnColonyEndpoints = false
	}
	plan, err := security.Compute(sim, opt)
	exitOn("security", err)
	printJSON(plan)
}

func loadSim(savePath, contentDirs, tuningPath string) *engine.Simulation {
	if strings.TrimSpace(savePath) == "" {
		fmt.Fprintln(os.Stderr, "missing -save")
		os.Exit(2)
	}
	var dirs []string
	for _, d := range strings.Split(contentDirs, ",") {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	db, err := content.LoadLayers(dirs, nil)
	exitOn("load content", err)
	cfg := tuning.Defaults()
	if p := strings.TrimSpace(tuningPath); p != "" {
		cfg, err = tuning.Load(p)
		exitOn("load tuning", err)
	}
	st, err := savejson.ReadFile(savePath)
	exitOn("read save", err)

	sim := engine.New(db, cfg, engine.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	sim.LoadGame(st)
	return sim
}
