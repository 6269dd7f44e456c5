package savemirror

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Uploader is the write side of an object store.
type Uploader interface {
	Put(ctx context.Context, key string, body []byte) error
}

type Stats struct {
	Queued    int    `json:"queued"`
	Enqueued  uint64 `json:"enqueued_total"`
	Dropped   uint64 `json:"dropped_total"`
	Uploaded  uint64 `json:"uploaded_total"`
	Failed    uint64 `json:"failed_total"`
	LastOKUTC int64  `json:"last_ok_unix,omitempty"`
}

type Options struct {
	Workers     int
	Queue       int
	EnqueueWait time.Duration
	Attempts    int
	Backoff     time.Duration
	Logger      *log.Logger
}

// Mirror uploads local files under root, keyed by their path relative to
// root. Uploads run on background workers; the day loop never waits on the
// network beyond EnqueueWait.
type Mirror struct {
	up     Uploader
	root   string
	prefix string
	opt    Options

	jobs chan string
	wg   sync.WaitGroup
	once sync.Once

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	uploaded atomic.Uint64
	failed   atomic.Uint64
	lastOK   atomic.Int64
}

func New(up Uploader, root, prefix string, opt Options) *Mirror {
	if opt.Workers <= 0 {
		opt.Workers = 1
	}
	if opt.Queue <= 0 {
		opt.Queue = 256
	}
	if opt.EnqueueWait <= 0 {
		opt.EnqueueWait = 25 * time.Millisecond
	}
	if opt.Attempts <= 0 {
		opt.Attempts = 4
	}
	if opt.Backoff <= 0 {
		opt.Backoff = 200 * time.Millisecond
	}
	m := &Mirror{
		up:     up,
		root:   root,
		prefix: strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		opt:    opt,
		jobs:   make(chan string, opt.Queue),
	}
	for i := 0; i < opt.Workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

// Enqueue schedules localPath for upload. A full queue drops the file after
// a short wait.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil {
		return
	}
	m.enqueued.Add(1)
	select {
	case m.jobs <- localPath:
		return
	default:
	}
	t := time.NewTimer(m.opt.EnqueueWait)
	defer t.Stop()
	select {
	case m.jobs <- localPath:
	case <-t.C:
		n := m.dropped.Add(1)
		m.printf("mirror drop path=%s dropped_total=%d", localPath, n)
	}
}

// Close drains queued uploads and stops the workers.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		close(m.jobs)
		m.wg.Wait()
	})
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		Queued:    len(m.jobs),
		Enqueued:  m.enqueued.Load(),
		Dropped:   m.dropped.Load(),
		Uploaded:  m.uploaded.Load(),
		Failed:    m.failed.Load(),
		LastOKUTC: m.lastOK.Load(),
	}
}

func (m *Mirror) worker() {
	defer m.wg.Done()
	for p := range m.jobs {
		if err := m.upload(p); err != nil {
			m.failed.Add(1)
			m.printf("mirror upload failed path=%s err=%v", p, err)
			continue
		}
		m.uploaded.Add(1)
		m.lastOK.Store(time.Now().UTC().Unix())
	}
}

func (m *Mirror) upload(localPath string) error {
	key, err := m.Key(localPath)
	if err != nil {
		return err
	}
	body, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	var last error
	for attempt := 1; attempt <= m.opt.Attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		last = m.up.Put(ctx, key, body)
		cancel()
		if last == nil {
			return nil
		}
		if attempt < m.opt.Attempts {
			time.Sleep(time.Duration(attempt*attempt) * m.opt.Backoff)
		}
	}
	return last
}

// Key maps a local path under root to its object key.
func (m *Mirror) Key(localPath string) (string, error) {
	root, err := filepath.Abs(m.root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("savemirror: %s is outside %s", abs, root)
	}
	if m.prefix != "" {
		return path.Join(m.prefix, rel), nil
	}
	return rel, nil
}

func (m *Mirror) printf(format string, args ...any) {
	if m.opt.Logger != nil {
		m.opt.Logger.Printf(format, args...)
	}
}
