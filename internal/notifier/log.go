package notifier

import (
	"github.com/rs/zerolog"

	"github.com/amishk599/autosignin/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes a finished report to the given logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier returns a notifier that logs the report.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs one summary record and one record per entry.
// Returns nil (logging does not fail).
func (n *LogNotifier) Notify(r *model.Report) error {
	n.logger.Info().
		Str("run_id", r.RunID).
		Int("succeeded", r.Succeeded()).
		Int("failed", r.FailedCount()).
		Int("rejected", len(r.Rejected)).
		Msg("sign-in report")

	for _, e := range r.Entries {
		if e.Failed {
			n.logger.Warn().Str("site", e.SiteID).Str("title", e.Title).Str("reason", e.Reason).Msg("sign-in failed")
			continue
		}
		ev := n.logger.Info().Str("site", e.SiteID).Str("title", e.Title).Str("result", e.Result)
		if e.Messages != "" {
			ev = ev.Str("messages", e.Messages)
		}
		if e.Details != "" {
			ev = ev.Str("details", e.Details)
		}
		ev.Msg("signed in")
	}
	for _, e := range r.Rejected {
		n.logger.Warn().Str("site", e.SiteID).Str("title", e.Title).Msg(e.Reason)
	}
	return nil
}
