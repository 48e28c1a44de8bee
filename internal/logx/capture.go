package logx

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrCaptureActive is returned by BeginCapture when a capture is already running.
var ErrCaptureActive = errors.New("log capture already active")

// Capture is the log routing resource held for the lifetime of one pool run.
// Worker slots are indexed by worker number; slot i is only ever touched by
// worker i until Replay.
type Capture struct {
	svc     *Service
	level   zerolog.Level
	main    *WorkerLog
	workers []*WorkerLog
	once    sync.Once
}

// BeginCapture detaches the sinks and starts buffering. Records written by
// loggers from Logger go to a shared "main" slot; workers get their own slots
// through Worker.
func (s *Service) BeginCapture(workers int) (*Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture != nil {
		return nil, ErrCaptureActive
	}
	if workers < 1 {
		workers = 1
	}

	c := &Capture{
		svc:     s,
		level:   s.level,
		workers: make([]*WorkerLog, workers),
	}
	c.main = newWorkerLog(-1, s.level)
	s.capture = c
	s.out.set(c.main.writer)
	return c, nil
}

// Worker returns the buffer for worker id, creating it on first use.
// It must only be called from the goroutine that owns that worker id.
func (c *Capture) Worker(id int) *WorkerLog {
	if wl := c.workers[id]; wl != nil {
		return wl
	}
	wl := newWorkerLog(id, c.level)
	c.workers[id] = wl
	return wl
}

// Replay re-attaches the sinks, writes every captured record back (the main
// slot first, then workers in id order), and reinitializes the service.
// Plain records go to file sinks, colorized records to all other sinks.
// Calling Replay more than once is a no-op.
func (c *Capture) Replay() {
	c.once.Do(func() {
		s := c.svc
		s.mu.Lock()
		defer s.mu.Unlock()

		s.reset()
		slots := append([]*WorkerLog{c.main}, c.workers...)
		for _, wl := range slots {
			if wl == nil {
				continue
			}
			plain := wl.plain.snapshot()
			color := wl.color.snapshot()
			for _, sink := range s.sinks {
				records := color
				if sink.File {
					records = plain
				}
				for _, rec := range records {
					_, _ = sink.Writer.Write(rec)
				}
			}
		}

		s.capture = nil
		c.workers = nil
		c.main = nil
		s.reset()
	})
}

// WorkerLog buffers the records one worker emits, in both output forms.
type WorkerLog struct {
	ID     int
	plain  recordBuffer
	color  recordBuffer
	writer zerolog.LevelWriter
	logger zerolog.Logger
}

func newWorkerLog(id int, level zerolog.Level) *WorkerLog {
	wl := &WorkerLog{ID: id}
	wl.writer = zerolog.MultiLevelWriter(&wl.plain, newConsoleWriter(&wl.color))
	ctx := zerolog.New(wl.writer).Level(level).With().Timestamp()
	if id >= 0 {
		ctx = ctx.Int("worker", id)
	}
	wl.logger = ctx.Logger()
	return wl
}

// Logger returns a logger that writes only into this worker's buffers.
func (w *WorkerLog) Logger() zerolog.Logger { return w.logger }

// Plain returns the captured plain records in emission order.
func (w *WorkerLog) Plain() []string { return w.plain.strings() }

// Colored returns the captured colorized records in emission order.
func (w *WorkerLog) Colored() []string { return w.color.strings() }

// recordBuffer keeps each Write as a separate record. zerolog issues exactly
// one Write per event.
type recordBuffer struct {
	mu      sync.Mutex
	records [][]byte
}

func (b *recordBuffer) Write(p []byte) (int, error) {
	rec := append([]byte(nil), p...)
	b.mu.Lock()
	b.records = append(b.records, rec)
	b.mu.Unlock()
	return len(p), nil
}

func (b *recordBuffer) snapshot() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.records...)
}

func (b *recordBuffer) strings() []string {
	recs := b.snapshot()
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = string(r)
	}
	return out
}
