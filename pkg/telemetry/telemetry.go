// Package telemetry records per-stage timings of slow requests as JSON
// lines, one file per trace name, written by a background goroutine.
package telemetry

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"
	json "github.com/goccy/go-json"
	"github.com/valyala/bytebufferpool"
)

type Step struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration_ms"`
}

type Trace struct {
	Name    string    `json:"name"`
	Start   time.Time `json:"start"`
	Steps   []Step    `json:"steps"`
	TotalMS float64   `json:"total_ms"`

	mu       sync.Mutex
	lastMark time.Time
	tel      *Telemetry
}

type Options struct {
	Dir           string
	BufferSize    int
	QueueSize     int
	FlushInterval time.Duration
	MaxFileSize   int64
	// SlowThreshold drops traces whose total time is below it.
	SlowThreshold time.Duration
	// RotateCron is a cron expression; when due, each trace file is moved
	// aside with a timestamp suffix and reopened. Empty disables rotation.
	RotateCron string
}

// Telemetry manages async writing of traces to per-name files.
// A nil *Telemetry hands out nil traces, which ignore every call.
type Telemetry struct {
	opts    Options
	mu      sync.Mutex
	files   map[string]*os.File
	buffers map[string]*bufio.Writer
	traces  chan *Trace
	stopCh  chan struct{}
	stopped atomic.Bool
	wg      sync.WaitGroup
	dropped atomic.Int64

	nextRotate time.Time
}

// New creates the directory and starts the background writer.
func New(opts Options) (*Telemetry, error) {
	if opts.RotateCron != "" && !gronx.IsValid(opts.RotateCron) {
		return nil, fmt.Errorf("telemetry: invalid rotate cron %q", opts.RotateCron)
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, err
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64 << 10
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	t := &Telemetry{
		opts:    opts,
		files:   make(map[string]*os.File),
		buffers: make(map[string]*bufio.Writer),
		traces:  make(chan *Trace, opts.QueueSize),
		stopCh:  make(chan struct{}),
	}
	t.scheduleRotate(time.Now())
	t.wg.Add(1)
	go t.writerLoop()
	return t, nil
}

// Track starts a new trace linked to this telemetry.
func (t *Telemetry) Track(name string) *Trace {
	if t == nil {
		return nil
	}
	now := time.Now()
	return &Trace{
		Name:     name,
		Start:    now,
		lastMark: now,
		tel:      t,
	}
}

// Dropped reports traces discarded because the queue was full or closed.
func (t *Telemetry) Dropped() int64 {
	if t == nil {
		return 0
	}
	return t.dropped.Load()
}

// Mark records the elapsed duration since the last mark. Marks after
// Finish are ignored.
func (tr *Trace) Mark(label string) {
	if tr == nil {
		return
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.tel == nil {
		return
	}
	now := time.Now()
	tr.Steps = append(tr.Steps, Step{Name: label, Duration: now.Sub(tr.lastMark).Seconds() * 1000})
	tr.lastMark = now
}

// Finish closes the trace and queues it when it crossed the slow
// threshold. Safe to call more than once.
func (tr *Trace) Finish() {
	if tr == nil {
		return
	}
	tr.mu.Lock()
	t := tr.tel
	if t == nil {
		tr.mu.Unlock()
		return
	}
	tr.tel = nil
	total := time.Since(tr.Start)
	tr.TotalMS = total.Seconds() * 1000

	var sum float64
	for _, s := range tr.Steps {
		sum += s.Duration
	}
	if remaining := tr.TotalMS - sum; remaining > 0.001 {
		tr.Steps = append(tr.Steps, Step{Name: "unmarked", Duration: remaining})
	}
	tr.mu.Unlock()

	if total < t.opts.SlowThreshold || t.stopped.Load() {
		return
	}
	select {
	case t.traces <- tr:
	default:
		t.dropped.Add(1)
	}
}

func (t *Telemetry) writerLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case tr := <-t.traces:
			t.write(tr)

		case now := <-ticker.C:
			t.mu.Lock()
			t.flushLocked()
			if t.rotateDue(now) {
				t.rotateLocked(now)
			}
			t.mu.Unlock()

		case <-t.stopCh:
		drain:
			for {
				select {
				case tr := <-t.traces:
					t.write(tr)
				default:
					break drain
				}
			}
			t.mu.Lock()
			t.flushLocked()
			for _, f := range t.files {
				f.Sync()
				f.Close()
			}
			t.mu.Unlock()
			return
		}
	}
}

func (t *Telemetry) write(tr *Trace) {
	if tr == nil {
		return
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	enc := json.NewEncoder(buf)
	if err := enc.Encode(tr); err != nil {
		return
	}
	t.mu.Lock()
	b := t.getBufferFor(tr.Name)
	b.Write(buf.B)
	t.mu.Unlock()
}

func (t *Telemetry) flushLocked() {
	for name, b := range t.buffers {
		b.Flush()
		f := t.files[name]
		if f == nil || t.opts.MaxFileSize <= 0 {
			continue
		}
		if fi, err := f.Stat(); err == nil && fi.Size() > t.opts.MaxFileSize {
			// truncate when over the size cap
			f.Close()
			newF, err := os.OpenFile(f.Name(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				delete(t.files, name)
				delete(t.buffers, name)
				continue
			}
			t.files[name] = newF
			t.buffers[name] = bufio.NewWriterSize(newF, t.opts.BufferSize)
			fmt.Fprintf(os.Stderr, "telemetry: truncated %s (size exceeded %d bytes)\n", name, t.opts.MaxFileSize)
		}
	}
}

// scheduleRotate computes the next cron tick strictly after now.
func (t *Telemetry) scheduleRotate(now time.Time) {
	if t.opts.RotateCron == "" {
		return
	}
	next, err := gronx.NextTickAfter(t.opts.RotateCron, now.UTC(), false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: rotate cron %q: %v\n", t.opts.RotateCron, err)
		t.nextRotate = time.Time{}
		return
	}
	t.nextRotate = next
}

func (t *Telemetry) rotateDue(now time.Time) bool {
	if t.nextRotate.IsZero() || now.Before(t.nextRotate) {
		return false
	}
	t.scheduleRotate(now)
	return true
}

func (t *Telemetry) rotateLocked(now time.Time) {
	stamp := now.UTC().Format("20060102T150405")
	for name, f := range t.files {
		t.buffers[name].Flush()
		f.Close()
		path := f.Name()
		ext := filepath.Ext(path)
		os.Rename(path, fmt.Sprintf("%s.%s%s", path[:len(path)-len(ext)], stamp, ext))
		delete(t.files, name)
		delete(t.buffers, name)
	}
}

// Rotate moves current files aside immediately.
func (t *Telemetry) Rotate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rotateLocked(time.Now())
}

func (t *Telemetry) getBufferFor(name string) *bufio.Writer {
	if b, ok := t.buffers[name]; ok {
		return b
	}
	path := filepath.Join(t.opts.Dir, fmt.Sprintf("%s.jsonl", name))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: failed to open %s: %v\n", path, err)
		return bufio.NewWriter(os.Stderr)
	}
	b := bufio.NewWriterSize(f, t.opts.BufferSize)
	t.files[name] = f
	t.buffers[name] = b
	return b
}

// Close stops the background writer and flushes all remaining data.
func (t *Telemetry) Close() {
	if t == nil {
		return
	}
	if t.stopped.CompareAndSwap(false, true) {
		close(t.stopCh)
		t.wg.Wait()
	}
}
