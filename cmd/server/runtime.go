package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"nebula4x.dev/internal/observerproto"
	"nebula4x.dev/internal/persistence/indexdb"
	persistlog "nebula4x.dev/internal/persistence/log"
	"nebula4x.dev/internal/persistence/savejson"
	"nebula4x.dev/internal/persistence/savemirror"
	"nebula4x.dev/internal/sim/digest"
	"nebula4x.dev/internal/sim/engine"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/transport/observer"
)

// status is what the HTTP side may read; the simulation itself is only
// touched by the day loop.
type status struct {
	Scenario      string  `json:"scenario"`
	Day           int64   `json:"day"`
	Date          string  `json:"date"`
	StateDigest   string  `json:"state_digest"`
	ContentDigest string  `json:"content_digest"`
	NextEventSeq  uint64  `json:"next_event_seq"`
	Systems       int     `json:"systems"`
	Ships         int     `json:"ships"`
	Colonies      int     `json:"colonies"`
	Fleets        int     `json:"fleets"`
	Events        int     `json:"events"`
	StepMS        float64 `json:"step_ms"`
	LastSave      string  `json:"last_save,omitempty"`

	Factions []observerproto.FactionInfo `json:"factions"`
}

type runtime struct {
	sim       *engine.Simulation
	journal   *persistlog.EventJournal
	idx       *indexdb.SQLiteIndex
	obs       *observer.Server
	mirror    *savemirror.Mirror
	log       *log.Logger
	saveDir   string
	saveEvery int

	saveReq chan chan saveResult

	mu  sync.Mutex
	cur status
}

type saveResult struct {
	Path string
	Day  int64
	Err  error
}

type runtimeConfig struct {
	Scenario  string
	SaveDir   string
	SaveEvery int
}

func newRuntime(sim *engine.Simulation, cfg runtimeConfig, journal *persistlog.EventJournal, idx *indexdb.SQLiteIndex, logger *log.Logger) *runtime {
	rt := &runtime{
		sim:       sim,
		journal:   journal,
		idx:       idx,
		log:       logger,
		saveDir:   cfg.SaveDir,
		saveEvery: cfg.SaveEvery,
		saveReq:   make(chan chan saveResult),
	}
	rt.cur.Scenario = cfg.Scenario
	rt.cur.ContentDigest = digest.Hex(digest.Content(sim.Content()))
	if journal != nil {
		journal.Skip(sim.State())
	}
	rt.refresh(0)
	return rt
}

func (rt *runtime) attachObserver(obs *observer.Server) { rt.obs = obs }

func (rt *runtime) attachMirror(m *savemirror.Mirror) { rt.mirror = m }

func (rt *runtime) refresh(stepMS float64) {
	st := rt.sim.State()
	factions := make([]observerproto.FactionInfo, 0, len(st.Factions))
	for _, id := range model.SortedKeys(st.Factions) {
		f := st.Factions[id]
		factions = append(factions, observerproto.FactionInfo{ID: uint64(id), Name: f.Name, Control: f.Control.String()})
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.cur.Day = st.Date.DaysSinceEpoch()
	rt.cur.Date = st.Date.String()
	rt.cur.StateDigest = digest.Hex(digest.GameState(st, digest.Options{IncludeEvents: true}))
	rt.cur.NextEventSeq = st.NextEventSeq
	rt.cur.Systems = len(st.Systems)
	rt.cur.Ships = len(st.Ships)
	rt.cur.Colonies = len(st.Colonies)
	rt.cur.Fleets = len(st.Fleets)
	rt.cur.Events = len(st.Events)
	rt.cur.StepMS = stepMS
	rt.cur.Factions = factions
}

func (rt *runtime) Status() status {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	s := rt.cur
	s.Factions = append([]observerproto.FactionInfo(nil), rt.cur.Factions...)
	return s
}

// Bootstrap implements observer.Source.
func (rt *runtime) Bootstrap() observerproto.BootstrapResponse {
	s := rt.Status()
	return observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		Scenario:        s.Scenario,
		Day:             s.Day,
		Date:            s.Date,
		StateDigest:     s.StateDigest,
		ContentDigest:   s.ContentDigest,
		SecondsPerDay:   rt.sim.Config().SecondsPerDay,
		Factions:        s.Factions,
	}
}

// step advances one day and fans the result out to the journal, the index
// and observers.
func (rt *runtime) step(ctx context.Context) error {
	st := rt.sim.State()
	prev := st.NextEventSeq
	start := time.Now()
	if err := rt.sim.AdvanceDaysContext(ctx, 1); err != nil {
		return err
	}
	stepMS := float64(time.Since(start).Microseconds()) / 1000

	if rt.journal != nil {
		if _, err := rt.journal.Sync(st); err != nil {
			rt.log.Printf("event journal: %v", err)
		}
	}
	if rt.idx != nil {
		for _, ev := range st.Events {
			if ev.Seq >= prev {
				_ = rt.idx.WriteEvent(ev)
			}
		}
	}
	if rt.obs != nil {
		rt.obs.Publish(observer.DaySummary(st, prev))
	}
	rt.refresh(stepMS)

	if rt.saveEvery > 0 && st.Date.DaysSinceEpoch()%int64(rt.saveEvery) == 0 {
		if res := rt.save(); res.Err != nil {
			rt.log.Printf("save: %v", res.Err)
		}
	}
	return nil
}

func (rt *runtime) save() saveResult {
	st := rt.sim.State()
	res := saveResult{Day: st.Date.DaysSinceEpoch()}
	if rt.saveDir == "" {
		res.Err = fmt.Errorf("saves disabled")
		return res
	}
	res.Path = filepath.Join(rt.saveDir, fmt.Sprintf("%s.json", st.Date.String()))
	if res.Err = savejson.WriteFile(res.Path, st); res.Err != nil {
		return res
	}
	rt.mu.Lock()
	rt.cur.LastSave = res.Path
	rt.mu.Unlock()
	rt.mirror.Enqueue(res.Path)
	return res
}

// requestSave asks the day loop to write a save between days.
func (rt *runtime) requestSave(ctx context.Context) saveResult {
	resp := make(chan saveResult, 1)
	select {
	case rt.saveReq <- resp:
	case <-ctx.Done():
		return saveResult{Err: ctx.Err()}
	}
	select {
	case res := <-resp:
		return res
	case <-ctx.Done():
		return saveResult{Err: ctx.Err()}
	}
}

// run steps one day per interval until ctx ends or maxDays have passed
// (0 runs forever).
func (rt *runtime) run(ctx context.Context, interval time.Duration, maxDays int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	done := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case resp := <-rt.saveReq:
			resp <- rt.save()
		case <-ticker.C:
			if err := rt.step(ctx); err != nil {
				return err
			}
			done++
			if maxDays > 0 && done >= maxDays {
				rt.log.Printf("reached max_days=%d at %s", maxDays, rt.Status().Date)
				return nil
			}
		}
	}
}

type muxOptions struct {
	EnableAdmin bool
	EnablePprof bool
}

func newMux(rt *runtime, obs *observer.Server, opt muxOptions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, rt.Status(), obs, rt.mirror)
	})
	mux.HandleFunc("/v1/observe/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/v1/observe", obs.WSHandler())

	if opt.EnableAdmin {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(rt.Status())
		})
		mux.HandleFunc("/admin/v1/save", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			res := rt.requestSave(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if res.Err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "day": res.Day, "error": res.Err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "day": res.Day, "path": res.Path})
		})
	}
	if opt.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func writeMetrics(rw http.ResponseWriter, s status, obs *observer.Server, mirror *savemirror.Mirror) {
	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP nebula4x_day Days since 2200-01-01.\n")
	fmt.Fprintf(rw, "# TYPE nebula4x_day gauge\n")
	fmt.Fprintf(rw, "nebula4x_day{scenario=%q} %d\n", s.Scenario, s.Day)

	fmt.Fprintf(rw, "# HELP nebula4x_entities Live entity counts.\n")
	fmt.Fprintf(rw, "# TYPE nebula4x_entities gauge\n")
	fmt.Fprintf(rw, "nebula4x_entities{scenario=%q,kind=%q} %d\n", s.Scenario, "systems", s.Systems)
	fmt.Fprintf(rw, "nebula4x_entities{scenario=%q,kind=%q} %d\n", s.Scenario, "ships", s.Ships)
	fmt.Fprintf(rw, "nebula4x_entities{scenario=%q,kind=%q} %d\n", s.Scenario, "colonies", s.Colonies)
	fmt.Fprintf(rw, "nebula4x_entities{scenario=%q,kind=%q} %d\n", s.Scenario, "fleets", s.Fleets)

	fmt.Fprintf(rw, "# HELP nebula4x_events_retained Events currently kept in the state.\n")
	fmt.Fprintf(rw, "# TYPE nebula4x_events_retained gauge\n")
	fmt.Fprintf(rw, "nebula4x_events_retained{scenario=%q} %d\n", s.Scenario, s.Events)

	fmt.Fprintf(rw, "# HELP nebula4x_next_event_seq Next event sequence number.\n")
	fmt.Fprintf(rw, "# TYPE nebula4x_next_event_seq counter\n")
	fmt.Fprintf(rw, "nebula4x_next_event_seq{scenario=%q} %d\n", s.Scenario, s.NextEventSeq)

	fmt.Fprintf(rw, "# HELP nebula4x_step_ms Last day step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE nebula4x_step_ms gauge\n")
	fmt.Fprintf(rw, "nebula4x_step_ms{scenario=%q} %.3f\n", s.Scenario, s.StepMS)

	if mirror != nil {
		ms := mirror.Stats()
		fmt.Fprintf(rw, "# HELP nebula4x_mirror_uploads_total Save uploads by outcome.\n")
		fmt.Fprintf(rw, "# TYPE nebula4x_mirror_uploads_total counter\n")
		fmt.Fprintf(rw, "nebula4x_mirror_uploads_total{result=%q} %d\n", "ok", ms.Uploaded)
		fmt.Fprintf(rw, "nebula4x_mirror_uploads_total{result=%q} %d\n", "failed", ms.Failed)
		fmt.Fprintf(rw, "nebula4x_mirror_uploads_total{result=%q} %d\n", "dropped", ms.Dropped)
		fmt.Fprintf(rw, "# HELP nebula4x_mirror_queue Saves waiting for upload.\n")
		fmt.Fprintf(rw, "# TYPE nebula4x_mirror_queue gauge\n")
		fmt.Fprintf(rw, "nebula4x_mirror_queue %d\n", ms.Queued)
	}

	if obs == nil {
		return
	}
	fmt.Fprintf(rw, "# HELP nebula4x_observer_sessions Connected observers.\n")
	fmt.Fprintf(rw, "# TYPE nebula4x_observer_sessions gauge\n")
	fmt.Fprintf(rw, "nebula4x_observer_sessions %d\n", obs.Sessions())

	fmt.Fprintf(rw, "# HELP nebula4x_observer_dropped_total Day messages dropped for slow observers.\n")
	fmt.Fprintf(rw, "# TYPE nebula4x_observer_dropped_total counter\n")
	fmt.Fprintf(rw, "nebula4x_observer_dropped_total %d\n", obs.Dropped())
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
