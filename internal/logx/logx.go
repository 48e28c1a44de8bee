// Package logx owns the process log sinks and the per-worker capture used
// while a worker pool is running.
//
// In steady state every record fans out to all sinks: file sinks receive the
// plain JSON line, other sinks receive a colorized console rendering. During a
// capture the sinks are detached and records are buffered per worker instead;
// Replay writes them back once the pool has drained.
package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// globalsOnce guards the process-wide zerolog field settings.
var globalsOnce sync.Once

// Sink is one permanent log destination.
type Sink struct {
	Name   string
	Writer io.Writer
	// File sinks receive plain JSON records; all others receive colorized text.
	File bool
}

// Service owns the sink set. Loggers returned by Logger stay valid across
// captures because they write through a switchable writer.
type Service struct {
	mu      sync.Mutex
	level   zerolog.Level
	sinks   []Sink
	files   []*os.File
	out     *switchWriter
	capture *Capture
}

// New creates a service logging at level to the given sinks. With no sinks it
// logs colorized text to stdout.
func New(level string, sinks ...Sink) *Service {
	globalsOnce.Do(func() {
		zerolog.TimeFieldFormat = consoleTimeFormat
		zerolog.ErrorFieldName = "err"
	})

	if len(sinks) == 0 {
		sinks = []Sink{{Name: "stdout", Writer: os.Stdout}}
	}
	s := &Service{
		level: ParseLevel(level, zerolog.InfoLevel),
		sinks: sinks,
		out:   &switchWriter{},
	}
	s.reset()
	return s
}

// OpenFile appends path as a file sink. The file is closed by Close.
func (s *Service) OpenFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %q: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, f)
	s.sinks = append(s.sinks, Sink{Name: path, Writer: f, File: true})
	if s.capture == nil {
		s.reset()
	}
	return nil
}

// Logger returns a root logger bound to the service.
func (s *Service) Logger() zerolog.Logger {
	s.mu.Lock()
	lvl := s.level
	s.mu.Unlock()
	return zerolog.New(s.out).Level(lvl).With().Timestamp().Logger()
}

// Level returns the configured minimum level.
func (s *Service) Level() zerolog.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Close closes every file opened by OpenFile.
func (s *Service) Close() error {
	s.mu.Lock()
	files := s.files
	s.files = nil
	s.mu.Unlock()

	var firstErr error
	for _, f := range files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// reset rebuilds the steady-state fanout from the sink set. Callers hold mu
// (or own the service exclusively).
func (s *Service) reset() {
	writers := make([]io.Writer, 0, len(s.sinks))
	for _, sink := range s.sinks {
		if sink.File {
			writers = append(writers, zerolog.SyncWriter(sink.Writer))
		} else {
			writers = append(writers, newConsoleWriter(sink.Writer))
		}
	}
	s.out.set(zerolog.MultiLevelWriter(writers...))
}

func newConsoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
}

// switchWriter forwards to a target that can be swapped while loggers hold it.
type switchWriter struct {
	mu sync.RWMutex
	w  zerolog.LevelWriter
}

func (s *switchWriter) set(w zerolog.LevelWriter) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.RLock()
	w := s.w
	s.mu.RUnlock()
	if w == nil {
		return len(p), nil
	}
	return w.Write(p)
}

func (s *switchWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s.mu.RLock()
	w := s.w
	s.mu.RUnlock()
	if w == nil {
		return len(p), nil
	}
	return w.WriteLevel(level, p)
}

// ParseLevel maps a config string onto a zerolog level, falling back to def.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}
