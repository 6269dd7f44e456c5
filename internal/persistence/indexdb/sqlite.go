// Package indexdb keeps a SQLite read model of recorded tape runs and
// journaled game events. Nothing in it feeds back into the simulation.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"

	"nebula4x.dev/internal/persistence/tape"
	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/digest"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sqlx.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqEvent
	reqBarrier
)

type req struct {
	kind reqKind

	run   runReq
	event model.SimEvent
	done  chan struct{}
}

type runReq struct {
	row       RunRow
	snapshots []tape.Snapshot
}

// RunRow is one recorded or verified tape.
type RunRow struct {
	ID          string `db:"id" json:"id"`
	Scenario    string `db:"scenario" json:"scenario"`
	Seed        int64  `db:"seed" json:"seed"`
	Systems     int    `db:"systems" json:"systems"`
	Days        int    `db:"days" json:"days"`
	StepDays    int    `db:"step_days" json:"step_days"`
	CreatedAt   string `db:"created_at" json:"created_at"`
	TapeBlake3  string `db:"tape_blake3" json:"tape_blake3"`
	FinalDigest string `db:"final_digest" json:"final_digest"`
	OK          bool   `db:"ok" json:"ok"`
	Message     string `db:"message" json:"message"`
}

type SnapshotRow struct {
	RunID         string `db:"run_id" json:"run_id"`
	Idx           int    `db:"idx" json:"idx"`
	Day           int64  `db:"day" json:"day"`
	Date          string `db:"date" json:"date"`
	StateDigest   string `db:"state_digest" json:"state_digest"`
	ContentDigest string `db:"content_digest" json:"content_digest"`
	NextEventSeq  int64  `db:"next_event_seq" json:"next_event_seq"`
	Systems       int    `db:"systems" json:"systems"`
	Bodies        int    `db:"bodies" json:"bodies"`
	JumpPoints    int    `db:"jump_points" json:"jump_points"`
	Ships         int    `db:"ships" json:"ships"`
	Colonies      int    `db:"colonies" json:"colonies"`
	Fleets        int    `db:"fleets" json:"fleets"`
}

type EventRow struct {
	Seq       int64  `db:"seq" json:"seq"`
	Day       int64  `db:"day" json:"day"`
	Level     string `db:"level" json:"level"`
	Category  string `db:"category" json:"category"`
	FactionID int64  `db:"faction_id" json:"faction_id"`
	SystemID  int64  `db:"system_id" json:"system_id"`
	ShipID    int64  `db:"ship_id" json:"ship_id"`
	ColonyID  int64  `db:"colony_id" json:"colony_id"`
	Message   string `db:"message" json:"message"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Event bursts (a big battle) must not stall the day loop.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS content (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			seed INTEGER NOT NULL,
			systems INTEGER NOT NULL,
			days INTEGER NOT NULL,
			step_days INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			tape_blake3 TEXT NOT NULL,
			final_digest TEXT NOT NULL,
			ok INTEGER NOT NULL,
			message TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);`,
		`CREATE TABLE IF NOT EXISTS run_snapshots (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			day INTEGER NOT NULL,
			date TEXT NOT NULL,
			state_digest TEXT NOT NULL,
			content_digest TEXT NOT NULL,
			next_event_seq INTEGER NOT NULL,
			systems INTEGER NOT NULL,
			bodies INTEGER NOT NULL,
			jump_points INTEGER NOT NULL,
			ships INTEGER NOT NULL,
			colonies INTEGER NOT NULL,
			fleets INTEGER NOT NULL,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY,
			day INTEGER NOT NULL,
			level TEXT NOT NULL,
			category TEXT NOT NULL,
			faction_id INTEGER NOT NULL,
			system_id INTEGER NOT NULL,
			ship_id INTEGER NOT NULL,
			colony_id INTEGER NOT NULL,
			message TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_faction_day ON events(faction_id, day);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Sync blocks until every write queued before it is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqBarrier, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TapeBlake3 is the content address stored for a tape document.
func TapeBlake3(doc []byte) string {
	sum := blake3.Sum256(doc)
	return hex.EncodeToString(sum[:])
}

// RecordRun queues a tape and its verification outcome and returns the new
// run id. A nil report records the run as a fresh, passing recording.
func (s *SQLiteIndex) RecordRun(t *tape.Tape, doc []byte, report *tape.Report) string {
	if s == nil || s.closed.Load() || t == nil {
		return ""
	}
	row := RunRow{
		ID:         uuid.NewString(),
		Scenario:   t.Config.Scenario,
		Seed:       int64(t.Config.Seed),
		Systems:    t.Config.Systems,
		Days:       t.Config.Days,
		StepDays:   t.Config.StepDays,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		TapeBlake3: TapeBlake3(doc),
		OK:         true,
		Message:    "recorded",
	}
	if n := len(t.Snapshots); n > 0 {
		row.FinalDigest = t.Snapshots[n-1].StateDigest.String()
	}
	if report != nil {
		row.OK = report.OK
		row.Message = report.Message
	}
	// Runs are rare and small; block rather than drop.
	s.ch <- req{kind: reqRun, run: runReq{row: row, snapshots: t.Snapshots}}
	return row.ID
}

// WriteEvent queues one persistent event. It drops the event if the writer
// has fallen behind; the JSONL journal remains the source of truth.
func (s *SQLiteIndex) WriteEvent(ev model.SimEvent) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqEvent, event: ev}:
	default:
	}
	return nil
}

// UpsertContent stores the content definitions and tuning in effect, keyed
// by name, with blake3 digests of their canonical JSON.
func (s *SQLiteIndex) UpsertContent(db *content.DB, cfg tuning.SimConfig) error {
	if s == nil || db == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name string
		v    any
	}
	parts := []kv{
		{"designs", db.Designs},
		{"installations", db.Installations},
		{"resources", db.Resources},
		{"techs", db.Techs},
		{"components", db.Components},
		{"tuning", cfg},
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('content_digest',?)`, digest.Hex(digest.Content(db))); err != nil {
		return err
	}
	for _, p := range parts {
		// encoding/json sorts map keys, so this is canonical.
		b, err := json.Marshal(p.v)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO content(name,digest,json,updated_at) VALUES(?,?,?,?)`,
			p.name, TapeBlake3(b), string(b), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []RunRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id,scenario,seed,systems,days,step_days,created_at,tape_blake3,final_digest,ok,message
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	return rows, err
}

func (s *SQLiteIndex) RunSnapshots(ctx context.Context, runID string) ([]SnapshotRow, error) {
	var rows []SnapshotRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT run_id,idx,day,date,state_digest,content_digest,next_event_seq,systems,bodies,jump_points,ships,colonies,fleets
		 FROM run_snapshots WHERE run_id=? ORDER BY idx`, runID)
	return rows, err
}

func (s *SQLiteIndex) Events(ctx context.Context, fromSeq int64, limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []EventRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT seq,day,level,category,faction_id,system_id,ship_id,colony_id,message
		 FROM events WHERE seq>=? ORDER BY seq LIMIT ?`, fromSeq, limit)
	return rows, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(id,scenario,seed,systems,days,step_days,created_at,tape_blake3,final_digest,ok,message) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnap, _ := s.db.Prepare(`INSERT OR REPLACE INTO run_snapshots(run_id,idx,day,date,state_digest,content_digest,next_event_seq,systems,bodies,jump_points,ships,colonies,fleets) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(seq,day,level,category,faction_id,system_id,ship_id,colony_id,message) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRun, insertSnap, insertEvent} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sqlx.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	handle := func(r req) {
		if r.kind == reqBarrier {
			commit()
			close(r.done)
			return
		}
		begin()
		if tx == nil {
			return
		}
		switch r.kind {
		case reqRun:
			row := r.run.row
			if insertRun == nil {
				return
			}
			if _, err := tx.Stmt(insertRun).Exec(
				row.ID, row.Scenario, row.Seed, row.Systems, row.Days, row.StepDays,
				row.CreatedAt, row.TapeBlake3, row.FinalDigest, row.OK, row.Message,
			); err != nil {
				rollback()
				return
			}
			opCount++
			for i, sn := range r.run.snapshots {
				if insertSnap == nil {
					break
				}
				if _, err := tx.Stmt(insertSnap).Exec(
					row.ID, i, sn.Day, sn.Date,
					sn.StateDigest.String(), sn.ContentDigest.String(), int64(sn.NextEventSeq),
					sn.Counts.Systems, sn.Counts.Bodies, sn.Counts.JumpPoints,
					sn.Counts.Ships, sn.Counts.Colonies, sn.Counts.Fleets,
				); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqEvent:
			ev := r.event
			if insertEvent == nil {
				return
			}
			if _, err := tx.Stmt(insertEvent).Exec(
				int64(ev.Seq), ev.Day, ev.Level.String(), ev.Category.String(),
				int64(ev.FactionID), int64(ev.SystemID), int64(ev.ShipID), int64(ev.ColonyID),
				ev.Message,
			); err != nil {
				rollback()
				return
			}
			opCount++
		}
		flushIfNeeded()
	}

	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			handle(r)
		case <-ticker.C:
			flushIfNeeded()
		}
	}
}
