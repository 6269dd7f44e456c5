package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nebula4x.dev/internal/persistence/indexdb"
)

// dbCmd queries an index written by cmd/server or cmd/replay -index.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	scenarioID := fs.String("scenario", "", "scenario run directory (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	runID := fs.String("run", "", "run id (snapshots)")
	fromSeq := fs.Int64("from_seq", 1, "first event seq (events)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*scenarioID) == "" {
			fmt.Fprintln(os.Stderr, "missing -scenario or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "runs", *scenarioID, "index", "nebula4x.sqlite")
	}
	// Opening creates the file; never do that for a typo.
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch q {
	case "runs":
		rows, err := idx.ListRuns(ctx, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}

	case "snapshots":
		if strings.TrimSpace(*runID) == "" {
			fmt.Fprintln(os.Stderr, "missing -run")
			os.Exit(2)
		}
		rows, err := idx.RunSnapshots(ctx, *runID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "no snapshots for run", *runID)
			os.Exit(2)
		}
		for _, r := range rows {
			printJSON(r)
		}

	case "events":
		rows, err := idx.Events(ctx, *fromSeq, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want runs, snapshots or events)")
		os.Exit(2)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
