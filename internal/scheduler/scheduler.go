// Package scheduler triggers sign-in runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// RunFunc performs one scheduled run. It receives the scheduler's context and
// should return once the run is finished.
type RunFunc func(ctx context.Context)

// Scheduler owns the daemon loop. Runs never overlap: a tick that fires while
// the previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	run    RunFunc
	job    cron.Job
	logger zerolog.Logger

	mu    sync.Mutex
	entry cron.EntryID
	spec  string
	ctx   context.Context
}

// NewScheduler creates a scheduler firing run on spec (a standard 5-field
// cron expression or descriptor such as "@daily") in loc.
func NewScheduler(spec string, loc *time.Location, run RunFunc, logger zerolog.Logger) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron:   cron.New(cron.WithLogger(cl)),
		run:    run,
		logger: logger,
		ctx:    context.Background(),
	}
	// One wrapped job shared by every schedule, so the overlap guard survives
	// Reschedule and manual triggers. Recover sits inside the guard so a
	// panicking run still releases it.
	s.job = cron.NewChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)).Then(cron.FuncJob(s.fire))
	if err := s.Reschedule(spec, loc); err != nil {
		return nil, err
	}
	return s, nil
}

// Reschedule replaces the current schedule. It is safe to call while Run is
// active; a run already in progress is not interrupted.
func (s *Scheduler) Reschedule(spec string, loc *time.Location) error {
	full := withLocation(spec, loc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if full == s.spec {
		return nil
	}
	sched, err := cron.ParseStandard(full)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	id := s.cron.Schedule(sched, s.job)
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	s.spec = full
	s.logger.Info().Str("schedule", full).Time("next", s.nextLocked()).Msg("schedule set")
	return nil
}

// Validate reports whether spec is a valid schedule in loc.
func Validate(spec string, loc *time.Location) error {
	if _, err := cron.ParseStandard(withLocation(spec, loc)); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Next returns the next activation time, zero if the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Scheduler) nextLocked() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Run starts the schedule and blocks until ctx is cancelled. With runNow set it
// performs one run immediately. On shutdown it waits for an in-flight run to
// finish. It returns nil on graceful shutdown.
func (s *Scheduler) Run(ctx context.Context, runNow bool) error {
	s.mu.Lock()
	s.ctx = ctx
	spec := s.spec
	s.mu.Unlock()

	s.logger.Info().Str("schedule", spec).Msg("starting scheduler")
	s.cron.Start()

	if runNow {
		s.trigger()
	}

	<-ctx.Done()
	s.logger.Info().Msg("shutting down scheduler")
	<-s.cron.Stop().Done()
	return nil
}

// trigger runs the wrapped job outside the schedule, honoring the overlap guard.
func (s *Scheduler) trigger() {
	s.job.Run()
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.run(ctx)
}

func withLocation(spec string, loc *time.Location) string {
	if loc == nil {
		return spec
	}
	return "CRON_TZ=" + loc.String() + " " + spec
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
