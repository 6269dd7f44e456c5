package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"nebula4x.dev/internal/persistence/tape"
	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/tuning"
)

func testTape() *tape.Tape {
	cfg := tape.DefaultConfig()
	cfg.Days = 2
	return &tape.Tape{
		Format: tape.Format,
		Config: cfg,
		Snapshots: []tape.Snapshot{
			{Day: 0, Date: "2200-01-01", StateDigest: 0xaa, ContentDigest: 0xc0, NextEventSeq: 1, Counts: tape.Counts{Systems: 2, Ships: 5}},
			{Day: 1, Date: "2200-01-02", StateDigest: 0xbb, ContentDigest: 0xc0, NextEventSeq: 3, Counts: tape.Counts{Systems: 2, Ships: 5}},
			{Day: 2, Date: "2200-01-03", StateDigest: 0xcc, ContentDigest: 0xc0, NextEventSeq: 4, Counts: tape.Counts{Systems: 2, Ships: 4}},
		},
	}
}

func TestSQLiteIndex_RecordRunPersistsSnapshots(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	tp := testTape()
	doc := []byte(`{"format":"x"}`)
	id := idx.RecordRun(tp, doc, &tape.Report{OK: false, Message: "digest mismatch"})
	if id == "" {
		t.Fatalf("empty run id")
	}
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	runs, err := idx.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs=%d want 1", len(runs))
	}
	r := runs[0]
	if r.ID != id || r.OK || r.Message != "digest mismatch" || r.FinalDigest != "00000000000000cc" {
		t.Fatalf("run=%+v", r)
	}
	if r.TapeBlake3 != TapeBlake3(doc) || len(r.TapeBlake3) != 64 {
		t.Fatalf("tape_blake3=%q", r.TapeBlake3)
	}

	snaps, err := idx.RunSnapshots(context.Background(), id)
	if err != nil {
		t.Fatalf("RunSnapshots: %v", err)
	}
	if len(snaps) != 3 || snaps[2].Ships != 4 || snaps[1].NextEventSeq != 3 || snaps[0].StateDigest != "00000000000000aa" {
		t.Fatalf("snapshots=%+v", snaps)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM run_snapshots WHERE run_id=?`, id).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("rows=%d want 3", n)
	}
}

func TestSQLiteIndex_EventsInSeqOrder(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	for _, seq := range []uint64{3, 1, 2} {
		_ = idx.WriteEvent(model.SimEvent{
			Seq:       seq,
			Day:       int64(seq),
			Level:     model.EventWarn,
			FactionID: 7,
			Message:   "contact",
		})
	}
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	got, err := idx.Events(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(got) != 2 || got[0].Seq != 2 || got[1].Seq != 3 {
		t.Fatalf("events=%+v", got)
	}
	if got[0].FactionID != 7 || got[0].Level != model.EventWarn.String() {
		t.Fatalf("event=%+v", got[0])
	}
}

func TestSQLiteIndex_UpsertContent(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	db := content.Default()
	for i := 0; i < 2; i++ {
		if err := idx.UpsertContent(db, tuning.Defaults()); err != nil {
			t.Fatalf("UpsertContent #%d: %v", i, err)
		}
	}

	var names int
	if err := idx.db.Get(&names, `SELECT COUNT(*) FROM content`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if names != 6 {
		t.Fatalf("content rows=%d want 6", names)
	}
	var dig string
	if err := idx.db.Get(&dig, `SELECT value FROM meta WHERE key='content_digest'`); err != nil {
		t.Fatalf("meta: %v", err)
	}
	if len(dig) != 16 {
		t.Fatalf("content_digest=%q", dig)
	}
}

func TestSQLiteIndex_NilAndClosedAreNoops(t *testing.T) {
	var idx *SQLiteIndex
	if id := idx.RecordRun(testTape(), nil, nil); id != "" {
		t.Fatalf("nil index returned id %q", id)
	}
	if err := idx.WriteEvent(model.SimEvent{Seq: 1}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}

	live, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = live.Close()
	if id := live.RecordRun(testTape(), nil, nil); id != "" {
		t.Fatalf("closed index returned id %q", id)
	}
	if err := live.Sync(context.Background()); err != nil {
		t.Fatalf("sync after close: %v", err)
	}
}
