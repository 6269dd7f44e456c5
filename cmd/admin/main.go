package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"nebula4x.dev/internal/persistence/savejson"
	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/digest"
	"nebula4x.dev/internal/sim/validate"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "save":
			saveCmd(os.Args[2:])
			return
		case "validate":
			validateCmd(os.Args[2:])
			return
		case "digest":
			digestCmd(os.Args[2:])
			return
		case "journal":
			journalCmd(os.Args[2:])
			return
		case "delta":
			deltaCmd(os.Args[2:])
			return
		case "trade":
			tradeCmd(os.Args[2:])
			return
		case "security":
			securityCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints scenario run directories and their saves.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	scenarioID := fs.String("scenario", "", "scenario run directory (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "runs")
	if *scenarioID != "" {
		saves, err := listSaves(filepath.Join(base, *scenarioID, "saves"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		for _, s := range saves {
			fmt.Println(s)
		}
		return
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
}

func listSaves(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	// Save names are YYYY-MM-DD.json, so lexical order is date order.
	sort.Strings(out)
	return out, nil
}

// validateCmd checks a save file and optionally writes a repaired copy.
func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	savePath := fs.String("save", "", "save file to check (required)")
	contentDirs := fs.String("content", "", "comma-separated content directories (default: embedded content)")
	fix := fs.Bool("fix", false, "repair the save")
	outPath := fs.String("out", "", "where to write the repaired save (default: overwrite -save)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*savePath) == "" {
		fmt.Fprintln(os.Stderr, "missing -save")
		os.Exit(2)
	}
	var dirs []string
	for _, d := range strings.Split(*contentDirs, ",") {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	db, err := content.LoadLayers(dirs, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load content:", err)
		os.Exit(1)
	}
	st, err := savejson.ReadFile(*savePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read save:", err)
		os.Exit(1)
	}

	problems := validate.Validate(st, db)
	for _, p := range problems {
		fmt.Println(p)
	}
	if len(problems) == 0 {
		fmt.Println("ok")
		return
	}
	if !*fix {
		os.Exit(1)
	}

	rep := validate.Fix(st, db)
	for _, a := range rep.Actions {
		fmt.Println("fix:", a)
	}
	if left := validate.Validate(st, db); len(left) > 0 {
		fmt.Fprintf(os.Stderr, "%d problems remain after fix (first: %s)\n", len(left), left[0])
		os.Exit(1)
	}
	out := strings.TrimSpace(*outPath)
	if out == "" {
		out = *savePath
	}
	if err := savejson.WriteFile(out, st); err != nil {
		fmt.Fprintln(os.Stderr, "write save:", err)
		os.Exit(1)
	}
	fmt.Printf("fixed %d issues -> %s\n", rep.Changes, out)
}

// digestCmd prints the per-section digest report of a save.
func digestCmd(args []string) {
	fs := flag.NewFlagSet("digest", flag.ExitOnError)
	savePath := fs.String("save", "", "save file (required)")
	events := fs.Bool("events", true, "include events")
	ui := fs.Bool("ui", false, "include UI state")
	_ = fs.Parse(args)

	if strings.TrimSpace(*savePath) == "" {
		fmt.Fprintln(os.Stderr, "missing -save")
		os.Exit(2)
	}
	st, err := savejson.ReadFile(*savePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read save:", err)
		os.Exit(1)
	}
	printJSON(digest.GameStateReport(st, digest.Options{IncludeEvents: *events, IncludeUIState: *ui}))
}
