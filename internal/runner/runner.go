// Package runner owns one complete sign-in run: build jobs, execute them,
// then report, store and notify.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/engine"
	"github.com/amishk599/autosignin/internal/filter"
	"github.com/amishk599/autosignin/internal/jobs"
	"github.com/amishk599/autosignin/internal/logx"
	"github.com/amishk599/autosignin/internal/model"
	"github.com/amishk599/autosignin/internal/registry"
	"github.com/amishk599/autosignin/internal/report"
)

// Runner wires the execution core to its outer collaborators.
type Runner struct {
	sites    *registry.Registry
	logs     *logx.Service
	store    model.ReportStore
	notifier model.Notifier
	filter   *filter.SiteFilter
	out      io.Writer
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore keeps finished reports in s.
func WithStore(s model.ReportStore) Option { return func(r *Runner) { r.store = s } }

// WithNotifier sends finished reports through n.
func WithNotifier(n model.Notifier) Option { return func(r *Runner) { r.notifier = n } }

// WithFilter restricts runs to the sites f matches.
func WithFilter(f *filter.SiteFilter) Option { return func(r *Runner) { r.filter = f } }

// WithOutput sets where the rendered report table is written.
func WithOutput(w io.Writer) Option { return func(r *Runner) { r.out = w } }

// WithClock overrides the clock used for titles, the freshness gate and timestamps.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// NewRunner creates a runner wired with all its dependencies.
func NewRunner(sites *registry.Registry, logs *logx.Service, opts ...Option) *Runner {
	r := &Runner{
		sites:  sites,
		logs:   logs,
		out:    os.Stdout,
		logger: logs.Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one run with cfg. Configuration errors (schema collision,
// unknown site, failing entry hook, bad filter) abort the run and are returned. Job failures are
// only visible in the report. The report is nil when get_details is off.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*model.Report, error) {
	started := r.now()

	if err := r.sites.Validate(); err != nil {
		return nil, fmt.Errorf("aggregating site schemas: %w", err)
	}

	runCfg := *cfg
	if r.filter != nil {
		filtered, err := r.filter.Apply(cfg.Sites)
		if err != nil {
			return nil, fmt.Errorf("filtering sites: %w", err)
		}
		runCfg.Sites = filtered
	}

	built, err := jobs.Build(&runCfg, r.sites, r.now)
	if err != nil {
		return nil, fmt.Errorf("building jobs: %w", err)
	}
	if len(built) == 0 {
		r.logger.Warn().Msg("no sites configured, nothing to do")
		return nil, nil
	}

	out := engine.New(r.sites, r.logs, engine.WithClock(r.now)).Run(ctx, built, &runCfg)

	if !runCfg.GetDetails {
		r.logger.Info().Int("jobs", len(out.Accepted)).Int("rejected", len(out.Rejected)).Msg("run complete")
		return nil, nil
	}

	rep := report.Build(r.newID(), started, r.now(), out)
	fmt.Fprint(r.out, report.Render(rep))

	if r.store != nil {
		if err := r.store.SaveReport(rep); err != nil {
			r.logger.Error().Err(err).Str("run_id", rep.RunID).Msg("saving report")
		}
		if err := r.store.Cleanup(cfg.Store.Retention); err != nil {
			r.logger.Error().Err(err).Msg("cleaning up old reports")
		}
	}
	if r.notifier != nil {
		if err := r.notifier.Notify(rep); err != nil {
			r.logger.Error().Err(err).Str("run_id", rep.RunID).Msg("sending report")
		}
	}

	r.logger.Info().
		Str("run_id", rep.RunID).
		Int("succeeded", rep.Succeeded()).
		Int("failed", rep.FailedCount()).
		Int("rejected", len(rep.Rejected)).
		Dur("took", rep.FinishedAt.Sub(rep.StartedAt)).
		Msg("run complete")
	return rep, nil
}
