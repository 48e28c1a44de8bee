// Package engine dispatches accepted jobs over a bounded worker pool and runs
// the sign-in, messages and details stages for each one.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/jobs"
	"github.com/amishk599/autosignin/internal/logx"
	"github.com/amishk599/autosignin/internal/model"
)

// Resolver looks up the site responsible for a job.
type Resolver interface {
	Resolve(siteID string) (model.Site, error)
}

// Outcome is the result of one Run: the jobs that were dispatched and the
// jobs the freshness gate refused.
type Outcome struct {
	Accepted []*model.Job
	Rejected []*model.Job
}

// Engine owns the worker pool and the log capture for the duration of a run.
type Engine struct {
	sites  Resolver
	logs   *logx.Service
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used by the freshness gate.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. logs may be nil, in which case worker output goes
// straight to the engine logger without capture.
func New(sites Resolver, logs *logx.Service, opts ...Option) *Engine {
	e := &Engine{
		sites:  sites,
		logs:   logs,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	if logs != nil {
		e.logger = logs.Logger()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run gates all jobs, dispatches the accepted ones across cfg.MaxWorkers
// workers and blocks until every job has finished. Captured worker logs are
// replayed before Run returns.
func (e *Engine) Run(ctx context.Context, all []*model.Job, cfg *config.Config) *Outcome {
	accepted, rejected := jobs.Gate(all, e.now)
	for _, job := range rejected {
		e.logger.Error().Str("site", job.SiteID).Msg(job.RejectReason())
	}
	out := &Outcome{Accepted: accepted, Rejected: rejected}
	if len(accepted) == 0 {
		return out
	}

	workers := cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}

	var capture *logx.Capture
	if e.logs != nil {
		c, err := e.logs.BeginCapture(workers)
		if err != nil {
			e.logger.Warn().Err(err).Msg("running without per-worker log capture")
		} else {
			capture = c
			defer capture.Replay()
		}
	}

	queue := make(chan *model.Job, len(accepted))
	for _, job := range accepted {
		queue <- job
	}
	close(queue)

	e.logger.Info().Int("jobs", len(accepted)).Int("workers", workers).Msg("dispatching jobs")

	var wg sync.WaitGroup
	for id := 0; id < workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			var (
				log   zerolog.Logger
				ready bool
			)
			for job := range queue {
				// Buffers are created on the worker's first job.
				if !ready {
					log, ready = e.workerLogger(capture, id), true
				}
				e.execute(ctx, log, job, cfg)
			}
		}(id)
	}
	wg.Wait()

	return out
}

func (e *Engine) workerLogger(c *logx.Capture, id int) zerolog.Logger {
	if c == nil {
		return e.logger.With().Int("worker", id).Logger()
	}
	return c.Worker(id).Logger()
}

type stage struct {
	name    model.Stage
	enabled bool
	run     func(context.Context, *model.Job, *config.Config) error
	output  func(*model.Job) string
	format  func(*model.Job, string) string
}

// execute runs one job's stages in order, stopping at the first failure.
func (e *Engine) execute(ctx context.Context, log zerolog.Logger, job *model.Job, cfg *config.Config) {
	defer job.ClearTransient()

	site, err := e.sites.Resolve(job.SiteID)
	if err != nil {
		job.SetPrefix(model.StageSignIn)
		log.Error().Err(err).Str("title", job.Title).Msg("resolve site")
		job.Fail(fmt.Sprintf("Exception: %v", err))
		return
	}
	h := site.NewHandler()
	ctx = log.WithContext(ctx)

	stages := []stage{
		{
			name:    model.StageSignIn,
			enabled: true,
			run:     h.SignIn,
			output:  func(j *model.Job) string { return j.Result },
			format:  func(j *model.Job, v string) string { return j.Title + " " + v },
		},
		{
			name:    model.StageMessages,
			enabled: cfg.GetMessages,
			run:     h.GetMessages,
			output:  func(j *model.Job) string { return j.Messages },
			format:  func(j *model.Job, v string) string { return fmt.Sprintf("site_name: %s, messages: %s", j.SiteID, v) },
		},
		{
			name:    model.StageDetails,
			enabled: cfg.GetDetails,
			run:     h.GetDetails,
			output:  func(j *model.Job) string { return j.Details },
			format:  func(j *model.Job, v string) string { return fmt.Sprintf("site_name: %s, details: %s", j.SiteID, v) },
		},
	}

	for _, st := range stages {
		if !st.enabled {
			continue
		}
		job.SetPrefix(st.name)
		runStage(ctx, log, job, cfg, st.run)
		if job.Failed() {
			log.Warn().Str("title", job.Title).Msg(job.Reason())
			return
		}
		if v := st.output(job); v != "" {
			log.Info().Msg(st.format(job, v))
		}
	}
}

// runStage invokes one handler method. A returned error or a panic fails the
// job under the current stage prefix instead of escaping the worker.
func runStage(ctx context.Context, log zerolog.Logger, job *model.Job, cfg *config.Config,
	fn func(context.Context, *model.Job, *config.Config) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("title", job.Title).
				Str("stage", string(job.Prefix())).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("handler panicked")
			job.Fail(fmt.Sprintf("Exception: %v", r))
		}
	}()

	if err := fn(ctx, job, cfg); err != nil {
		log.Error().
			Err(err).
			Str("title", job.Title).
			Str("stage", string(job.Prefix())).
			Msg("stage failed")
		job.Fail(fmt.Sprintf("Exception: %v", err))
	}
}
