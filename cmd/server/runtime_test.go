package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	persistlog "nebula4x.dev/internal/persistence/log"
	"nebula4x.dev/internal/persistence/savejson"
	"nebula4x.dev/internal/persistence/savemirror"
	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/engine"
	"nebula4x.dev/internal/sim/scenario"
	"nebula4x.dev/internal/sim/simtest"
	"nebula4x.dev/internal/sim/tuning"
	"nebula4x.dev/internal/transport/observer"
)

func newTestRuntime(t *testing.T, saveEvery int) (*runtime, *observer.Server, string) {
	t.Helper()
	dir := t.TempDir()
	sim := engine.New(content.Default(), tuning.Defaults(), engine.Options{Logger: simtest.QuietLogger()})
	sim.LoadGame(scenario.Sol())
	rt := newRuntime(sim, runtimeConfig{
		Scenario:  "sol",
		SaveDir:   filepath.Join(dir, "saves"),
		SaveEvery: saveEvery,
	}, persistlog.NewEventJournal(filepath.Join(dir, "events")), nil, log.New(io.Discard, "", 0))
	obs := observer.NewServer(rt, simtest.QuietLogger())
	rt.attachObserver(obs)
	return rt, obs, dir
}

func TestRuntime_StepUpdatesStatusAndSaves(t *testing.T) {
	rt, _, dir := newTestRuntime(t, 2)
	before := rt.Status()
	if before.Day != 0 || before.Ships != 5 || len(before.Factions) != 2 {
		t.Fatalf("initial status=%+v", before)
	}

	for i := 0; i < 2; i++ {
		if err := rt.step(context.Background()); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	s := rt.Status()
	if s.Day != 2 || s.Date != "2200-01-03" || s.StateDigest == before.StateDigest {
		t.Fatalf("status after 2 days=%+v", s)
	}

	want := filepath.Join(dir, "saves", "2200-01-03.json")
	if s.LastSave != want {
		t.Fatalf("last save=%q want %q", s.LastSave, want)
	}
	st, err := savejson.ReadFile(want)
	if err != nil {
		t.Fatalf("read save: %v", err)
	}
	if st.Date.DaysSinceEpoch() != 2 {
		t.Fatalf("saved day=%d", st.Date.DaysSinceEpoch())
	}
}

func TestRuntime_RunStopsAtMaxDaysAndServesSaves(t *testing.T) {
	rt, _, _ := newTestRuntime(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rt.run(ctx, 20*time.Millisecond, 3) }()

	saveCtx, saveCancel := context.WithTimeout(ctx, 5*time.Second)
	defer saveCancel()
	res := rt.requestSave(saveCtx)
	if res.Err != nil || !strings.HasSuffix(res.Path, ".json") {
		t.Fatalf("save=%+v", res)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Fatalf("stat save: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not stop at max_days")
	}
	if got := rt.Status().Day; got != 3 {
		t.Fatalf("day=%d want 3", got)
	}
}

func TestMux_MetricsAndAdmin(t *testing.T) {
	rt, obs, _ := newTestRuntime(t, 0)
	if err := rt.step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	mux := newMux(rt, obs, muxOptions{EnableAdmin: true})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`nebula4x_day{scenario="sol"} 1`,
		`nebula4x_entities{scenario="sol",kind="systems"} 2`,
		`nebula4x_observer_sessions 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var s status
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode state: %v (%s)", err, rec.Body.String())
	}
	if s.Day != 1 || s.Scenario != "sol" {
		t.Fatalf("state=%+v", s)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote admin code=%d want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/observe/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"date":"2200-01-02"`) {
		t.Fatalf("bootstrap code=%d body=%s", rec.Code, rec.Body.String())
	}
}

type recordingUploader struct {
	mu   sync.Mutex
	keys []string
}

func (u *recordingUploader) Put(_ context.Context, key string, _ []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.keys = append(u.keys, key)
	return nil
}

func TestRuntime_SavesAreMirrored(t *testing.T) {
	rt, obs, dir := newTestRuntime(t, 1)
	up := &recordingUploader{}
	m := savemirror.New(up, dir, "sol", savemirror.Options{})
	rt.attachMirror(m)

	if err := rt.step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	m.Close()
	if len(up.keys) != 1 || up.keys[0] != "sol/saves/2200-01-02.json" {
		t.Fatalf("keys=%v", up.keys)
	}

	rec := httptest.NewRecorder()
	newMux(rt, obs, muxOptions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if want := `nebula4x_mirror_uploads_total{result="ok"} 1`; !strings.Contains(rec.Body.String(), want) {
		t.Fatalf("metrics missing %q:\n%s", want, rec.Body.String())
	}
}
