package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// serverState is the subset of /admin/v1/state printed by the summary line.
type serverState struct {
	Scenario    string  `json:"scenario"`
	Day         int64   `json:"day"`
	Date        string  `json:"date"`
	StateDigest string  `json:"state_digest"`
	Ships       int     `json:"ships"`
	Colonies    int     `json:"colonies"`
	Events      int     `json:"events"`
	StepMS      float64 `json:"step_ms"`
	LastSave    string  `json:"last_save"`
}

type saveReply struct {
	OK    bool   `json:"ok"`
	Day   int64  `json:"day"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	raw := fs.Bool("json", false, "print the full state document")
	_ = fs.Parse(args)

	body, code, err := callServer(http.MethodGet, *baseURL, "/admin/v1/state", 5*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	if code/100 != 2 || *raw {
		fmt.Println(strings.TrimSpace(string(body)))
		if code/100 != 2 {
			os.Exit(1)
		}
		return
	}
	var s serverState
	if err := json.Unmarshal(body, &s); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	fmt.Printf("%s day=%d date=%s digest=%s ships=%d colonies=%d events=%d step_ms=%.2f\n",
		s.Scenario, s.Day, s.Date, s.StateDigest, s.Ships, s.Colonies, s.Events, s.StepMS)
	if s.LastSave != "" {
		fmt.Println("last save:", s.LastSave)
	}
}

// saveCmd asks a running server to write a save between days.
func saveCmd(args []string) {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	body, code, err := callServer(http.MethodPost, *baseURL, "/admin/v1/save", 10*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	var r saveReply
	if json.Unmarshal(body, &r) != nil {
		fmt.Fprintf(os.Stderr, "status %d: %s\n", code, strings.TrimSpace(string(body)))
		os.Exit(1)
	}
	if !r.OK {
		fmt.Fprintf(os.Stderr, "save failed on day %d: %s\n", r.Day, r.Error)
		os.Exit(1)
	}
	fmt.Printf("saved day %d -> %s\n", r.Day, r.Path)
}

func callServer(method, baseURL, path string, timeout time.Duration) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return b, resp.StatusCode, nil
}
