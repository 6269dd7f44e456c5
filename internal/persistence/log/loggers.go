package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"nebula4x.dev/internal/sim/model"
)

// JSONLZstdWriter appends JSON lines to hourly files named
// <prefix>-YYYYMMDD-HH.jsonl.zst. Reopening an hour appends a new zstd
// frame; readers decode the concatenated frames as one stream.
type JSONLZstdWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu  sync.Mutex
	key string
	seg *segment
}

// segment is one open hourly file.
type segment struct {
	f   *os.File
	enc *zstd.Encoder
	buf *bufio.Writer
}

func openSegment(path string) (*segment, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{f: f, enc: enc, buf: bufio.NewWriterSize(enc, 64<<10)}, nil
}

func (s *segment) close() error {
	return errors.Join(s.buf.Flush(), s.enc.Close(), s.f.Close())
}

func NewJSONLZstdWriter(dir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{dir: dir, prefix: prefix, now: time.Now}
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if key := w.now().UTC().Format("20060102-15"); key != w.key || w.seg == nil {
		if err := w.switchLocked(key); err != nil {
			return err
		}
	}
	b = append(b, '\n')
	_, err = w.seg.buf.Write(b)
	return err
}

// Flush pushes buffered lines through the encoder. A reader only sees them
// once the frame is closed by rotation or Close.
func (w *JSONLZstdWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seg == nil {
		return nil
	}
	if err := w.seg.buf.Flush(); err != nil {
		return err
	}
	return w.seg.enc.Flush()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seg == nil {
		return nil
	}
	err := w.seg.close()
	w.seg, w.key = nil, ""
	return err
}

func (w *JSONLZstdWriter) switchLocked(key string) error {
	if w.seg != nil {
		err := w.seg.close()
		w.seg, w.key = nil, ""
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	seg, err := openSegment(filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, key)))
	if err != nil {
		return err
	}
	w.seg, w.key = seg, key
	return nil
}

// ReadJournal decodes every entry of one journal file in write order.
func ReadJournal(path string) ([]JournalEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var out []JournalEntry
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for line := 1; sc.Scan(); line++ {
		var e JournalEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// JournalEntry is one persistent game event as it appears in the journal.
type JournalEntry struct {
	Date string `json:"date"`
	model.SimEvent
}

// EventJournal copies persistent game events out of the state as they are
// produced. It remembers the next sequence number to write, so calling
// Sync after every advance writes each event exactly once.
type EventJournal struct {
	w       *JSONLZstdWriter
	nextSeq uint64
}

func NewEventJournal(dir string) *EventJournal {
	return &EventJournal{w: NewJSONLZstdWriter(dir, "events")}
}

// Sync writes events of st with seq >= the journal's cursor and returns how
// many were written. Events trimmed from the state before Sync are lost.
func (j *EventJournal) Sync(st *model.GameState) (int, error) {
	n := 0
	for _, ev := range st.Events {
		if ev.Seq < j.nextSeq {
			continue
		}
		e := JournalEntry{Date: model.Date(ev.Day).String(), SimEvent: ev}
		if err := j.w.Write(e); err != nil {
			return n, err
		}
		j.nextSeq = ev.Seq + 1
		n++
	}
	return n, nil
}

// Skip moves the cursor so events already in st are never written.
func (j *EventJournal) Skip(st *model.GameState) { j.nextSeq = st.NextEventSeq }

func (j *EventJournal) Flush() error { return j.w.Flush() }
func (j *EventJournal) Close() error { return j.w.Close() }
