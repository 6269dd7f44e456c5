package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"nebula4x.dev/internal/persistence/indexdb"
	persistlog "nebula4x.dev/internal/persistence/log"
	"nebula4x.dev/internal/persistence/savemirror"
	"nebula4x.dev/internal/persistence/tape"
	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/engine"
	"nebula4x.dev/internal/sim/tuning"
	"nebula4x.dev/internal/sim/validate"
	"nebula4x.dev/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		scenarioID = flag.String("scenario", "sol", "scenario to start: sol or random")
		seed       = flag.Uint("seed", 1, "random scenario seed")
		systems    = flag.Int("systems", 12, "random scenario system count")
		loadPath   = flag.String("load", "", "resume from this save file instead of a scenario")
		contentDir = flag.String("content", "", "comma-separated content directories (default: embedded content)")
		tuningPath = flag.String("tuning", "", "path to sim.yaml (default: <configs>/sim.yaml when present)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		dayMS      = flag.Int("day_ms", 1000, "wall-clock milliseconds per simulated day")
		maxDays    = flag.Int("max_days", 0, "stop after this many days (0 runs until interrupted)")
		saveEvery  = flag.Int("save_every", 30, "write a save every N days (0 disables periodic saves)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite event index")
		fix        = flag.Bool("fix", true, "repair a loaded save before running")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "sim.yaml")
	}
	simCfg, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		simCfg = tuning.Defaults()
	}

	runCfg := tape.DefaultConfig()
	runCfg.Scenario = *scenarioID
	runCfg.Seed = uint32(*seed)
	runCfg.Systems = *systems
	runCfg.Load = strings.TrimSpace(*loadPath)
	runCfg.Content = splitList(*contentDir)

	db, err := content.LoadLayers(runCfg.Content, nil)
	if err != nil {
		logger.Fatalf("load content: %v", err)
	}
	st, err := tape.InitialState(runCfg)
	if err != nil {
		logger.Fatalf("initial state: %v", err)
	}
	if runCfg.Load != "" {
		if problems := validate.Validate(st, db); len(problems) > 0 {
			logger.Printf("save has %d problems (first: %s)", len(problems), problems[0])
			if !*fix {
				logger.Fatalf("refusing to run an invalid save; pass -fix")
			}
			rep := validate.Fix(st, db)
			logger.Printf("fixed save: %d changes", rep.Changes)
		}
	}

	sim := engine.New(db, simCfg, engine.Options{Logger: slogger})
	sim.LoadGame(st)

	runDir := filepath.Join(*dataDir, "runs", *scenarioID)
	_ = os.MkdirAll(runDir, 0o755)

	journal := persistlog.NewEventJournal(filepath.Join(runDir, "events"))
	defer journal.Close()

	// Optional: read-model index (does not affect sim determinism).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(runDir, "index", "nebula4x.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertContent(db, simCfg); err != nil {
			logger.Printf("index: upsert content: %v", err)
		}
	}

	rt := newRuntime(sim, runtimeConfig{
		Scenario:  *scenarioID,
		SaveDir:   filepath.Join(runDir, "saves"),
		SaveEvery: *saveEvery,
	}, journal, idx, logger)
	obs := observer.NewServer(rt, slogger)
	rt.attachObserver(obs)

	mirror, err := mirrorFromEnv(*dataDir, logger)
	if err != nil {
		logger.Fatalf("save mirror: %v", err)
	}
	rt.attachMirror(mirror)

	ctx, cancel := signalContext()
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		interval := time.Duration(max(1, *dayMS)) * time.Millisecond
		if err := rt.run(ctx, interval, *maxDays); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("day loop stopped: %v", err)
		}
		if *maxDays > 0 {
			cancel()
		}
	}()

	enableAdminHTTP := envBool("NEBULA4X_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("NEBULA4X_ENABLE_PPROF_HTTP", false)
	if !enableAdminHTTP {
		logger.Printf("admin endpoints disabled (NEBULA4X_ENABLE_ADMIN_HTTP=false)")
	}
	if !enablePprofHTTP {
		logger.Printf("pprof endpoints disabled (NEBULA4X_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(rt, obs, muxOptions{EnableAdmin: enableAdminHTTP, EnablePprof: enablePprofHTTP}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s scenario=%s date=%s", *addr, *scenarioID, rt.Status().Date)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-loopDone
	if res := rt.save(); res.Err != nil {
		logger.Printf("final save: %v", res.Err)
	} else {
		logger.Printf("final save %s", res.Path)
	}
	mirror.Close()
}

// mirrorFromEnv returns nil unless NEBULA4X_MIRROR_ENDPOINT is set.
func mirrorFromEnv(dataDir string, logger *log.Logger) (*savemirror.Mirror, error) {
	endpoint := strings.TrimSpace(os.Getenv("NEBULA4X_MIRROR_ENDPOINT"))
	if endpoint == "" {
		return nil, nil
	}
	store, err := savemirror.NewStore(savemirror.StoreConfig{
		Endpoint:        endpoint,
		Bucket:          os.Getenv("NEBULA4X_MIRROR_BUCKET"),
		Region:          os.Getenv("NEBULA4X_MIRROR_REGION"),
		AccessKeyID:     os.Getenv("NEBULA4X_MIRROR_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("NEBULA4X_MIRROR_SECRET_ACCESS_KEY"),
	})
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSpace(os.Getenv("NEBULA4X_MIRROR_PREFIX"))
	logger.Printf("mirroring saves to %s prefix=%q", endpoint, prefix)
	return savemirror.New(store, dataDir, prefix, savemirror.Options{Logger: logger}), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
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
