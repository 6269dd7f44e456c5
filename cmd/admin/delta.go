package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"nebula4x.dev/internal/persistence/deltasave"
	"nebula4x.dev/internal/persistence/savejson"
)

// deltaCmd maintains delta-save files:
//
//	admin delta make -base A.json -target B.json -out D.json
//	admin delta append -delta D.json -save C.json
//	admin delta reconstruct -delta D.json -index 2 -out C.json
//	admin delta squash|convert|digests -delta D.json ...
func deltaCmd(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: admin delta make|append|reconstruct|squash|convert|digests [flags]")
		os.Exit(2)
	}
	op := args[0]
	fs := flag.NewFlagSet("delta "+op, flag.ExitOnError)
	deltaPath := fs.String("delta", "", "delta-save file")
	basePath := fs.String("base", "", "base save (make)")
	targetPath := fs.String("target", "", "target save (make)")
	savePath := fs.String("save", "", "save to append (append)")
	kind := fs.String("kind", "merge_patch", "patch kind: merge_patch or json_patch")
	index := fs.Int("index", -1, "patches to apply (reconstruct; -1 = all)")
	baseIndex := fs.Int("base_index", 0, "new base after this many patches (squash)")
	outPath := fs.String("out", "", "output path (default: stdout, or -delta in place for append)")
	_ = fs.Parse(args[1:])

	switch op {
	case "make":
		base := mustRead(*basePath, "-base")
		target := mustRead(*targetPath, "-target")
		f, err := deltasave.Make(base, target, deltasave.PatchKind(*kind))
		exitOn("make", err)
		writeDelta(f, *outPath)

	case "append":
		f := mustParseDelta(*deltaPath)
		exitOn("append", f.Append(mustRead(*savePath, "-save")))
		out := *outPath
		if out == "" {
			out = *deltaPath
		}
		writeDelta(f, out)

	case "reconstruct":
		f := mustParseDelta(*deltaPath)
		n := *index
		if n < 0 {
			n = len(f.Patches)
		}
		b, err := f.ReconstructJSON(n, 2)
		exitOn("reconstruct", err)
		writeOut(append(b, '\n'), *outPath)

	case "squash":
		f := mustParseDelta(*deltaPath)
		sq, err := f.Squash(*baseIndex, deltasave.PatchKind(*kind))
		exitOn("squash", err)
		writeDelta(sq, *outPath)

	case "convert":
		f := mustParseDelta(*deltaPath)
		cv, err := f.ConvertKind(deltasave.PatchKind(*kind))
		exitOn("convert", err)
		writeDelta(cv, *outPath)

	case "digests":
		f := mustParseDelta(*deltaPath)
		recorded := make([]string, len(f.Patches))
		for i, p := range f.Patches {
			recorded[i] = p.StateDigest
		}
		base := f.BaseStateDigest
		exitOn("digests", f.ComputeDigests())
		bad := 0
		fmt.Printf("base %s%s\n", f.BaseStateDigest, mark(base, f.BaseStateDigest, &bad))
		for i, p := range f.Patches {
			fmt.Printf("%4d %s%s\n", i+1, p.StateDigest, mark(recorded[i], p.StateDigest, &bad))
		}
		if bad > 0 {
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown delta op:", op)
		os.Exit(2)
	}
}

func mark(recorded, actual string, bad *int) string {
	if recorded == "" || strings.EqualFold(strings.TrimPrefix(recorded, "0x"), actual) {
		return ""
	}
	*bad++
	return "  (recorded " + recorded + ")"
}

func mustRead(path, flagName string) []byte {
	if strings.TrimSpace(path) == "" {
		fmt.Fprintln(os.Stderr, "missing", flagName)
		os.Exit(2)
	}
	b, err := os.ReadFile(path)
	exitOn("read", err)
	return b
}

func mustParseDelta(path string) *deltasave.File {
	f, err := deltasave.Parse(mustRead(path, "-delta"))
	exitOn("parse "+path, err)
	return f
}

func writeDelta(f *deltasave.File, out string) {
	b, err := f.Encode(2)
	exitOn("encode", err)
	writeOut(append(b, '\n'), out)
}

func writeOut(b []byte, out string) {
	if strings.TrimSpace(out) == "" {
		_, _ = os.Stdout.Write(b)
		return
	}
	exitOn("write", savejson.WriteBytes(out, b))
	fmt.Fprintln(os.Stderr, "wrote", out)
}

func exitOn(what string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
		os.Exit(1)
	}
}
