package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nebula4x.dev/internal/sim/model"
)

func readEntries(t *testing.T, path string) []JournalEntry {
	t.Helper()
	out, err := ReadJournal(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	return out
}

func addEvent(st *model.GameState, day int64, msg string) {
	st.Events = append(st.Events, model.SimEvent{Seq: st.NextEventSeq, Day: day, Message: msg})
	st.NextEventSeq++
}

func TestEventJournal_WritesEachEventOnce(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2031, 5, 6, 7, 30, 0, 0, time.UTC)
	j := NewEventJournal(dir)
	j.w.now = func() time.Time { return clock }

	st := model.NewGameState()
	st.NextEventSeq = 1
	addEvent(st, 0, "before journal")
	j.Skip(st)

	addEvent(st, 1, "colony founded")
	addEvent(st, 1, "ship built")
	if n, err := j.Sync(st); err != nil || n != 2 {
		t.Fatalf("sync: n=%d err=%v", n, err)
	}
	if n, err := j.Sync(st); err != nil || n != 0 {
		t.Fatalf("second sync: n=%d err=%v", n, err)
	}

	clock = clock.Add(time.Hour)
	addEvent(st, 2, "jump transit")
	if n, err := j.Sync(st); err != nil || n != 1 {
		t.Fatalf("sync after rotation: n=%d err=%v", n, err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	first := readEntries(t, filepath.Join(dir, "events-20310506-07.jsonl.zst"))
	if len(first) != 2 || first[0].Message != "colony founded" || first[0].Date != "2200-01-02" {
		t.Fatalf("first hour=%+v", first)
	}
	second := readEntries(t, filepath.Join(dir, "events-20310506-08.jsonl.zst"))
	if len(second) != 1 || second[0].Seq != 4 {
		t.Fatalf("second hour=%+v", second)
	}
}

func TestJSONLZstdWriter_AppendsFrames(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, "events")
		w.now = func() time.Time { return clock }
		if err := w.Write(JournalEntry{SimEvent: model.SimEvent{Seq: uint64(i + 1)}}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	got := readEntries(t, filepath.Join(dir, "events-20310101-00.jsonl.zst"))
	if len(got) != 2 || got[1].Seq != 2 {
		t.Fatalf("entries=%+v", got)
	}
}

func TestReadJournal_Errors(t *testing.T) {
	if _, err := ReadJournal(filepath.Join(t.TempDir(), "missing.jsonl.zst")); !os.IsNotExist(err) {
		t.Fatalf("missing file err=%v", err)
	}

	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")
	w.now = func() time.Time { return time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := w.Write(JournalEntry{SimEvent: model.SimEvent{Seq: 1}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write("not an entry"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, err := ReadJournal(filepath.Join(dir, "events-20310101-00.jsonl.zst"))
	if err == nil || !strings.Contains(err.Error(), ":2:") || len(got) != 1 {
		t.Fatalf("got=%+v err=%v", got, err)
	}
}
