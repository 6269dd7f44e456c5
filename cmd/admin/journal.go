package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "nebula4x.dev/internal/persistence/log"
)

// journalCmd prints events from a scenario's event journal as JSON lines.
func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	scenarioID := fs.String("scenario", "", "scenario run directory (required unless -file)")
	file := fs.String("file", "", "single journal file")
	fromSeq := fs.Uint64("from_seq", 0, "skip events below this seq")
	category := fs.String("category", "", "only this event category (e.g. combat)")
	_ = fs.Parse(args)

	var files []string
	switch {
	case strings.TrimSpace(*file) != "":
		files = []string{*file}
	case strings.TrimSpace(*scenarioID) != "":
		m, err := filepath.Glob(filepath.Join(*dataDir, "runs", *scenarioID, "events", "events-*.jsonl.zst"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "glob:", err)
			os.Exit(1)
		}
		// Hour-stamped names sort chronologically.
		sort.Strings(m)
		files = m
	default:
		fmt.Fprintln(os.Stderr, "missing -scenario or -file")
		os.Exit(2)
	}

	want := strings.ToLower(strings.TrimSpace(*category))
	for _, p := range files {
		entries, err := persistlog.ReadJournal(p)
		for _, e := range entries {
			if e.Seq < *fromSeq {
				continue
			}
			if want != "" && strings.ToLower(e.Category.String()) != want {
				continue
			}
			printJSON(e)
		}
		if err != nil {
			// The newest hour is still open while the server runs.
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
		}
	}
}
