package model

import "time"

// Report summarizes one run across all dispatched jobs.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Entries    []ReportEntry // dispatched jobs, in dispatch order
	Rejected   []ReportEntry // jobs refused by the freshness gate
}

// ReportEntry is the read-only snapshot of one job.
type ReportEntry struct {
	SiteID   string
	Title    string
	Result   string
	Messages string
	Details  string
	Failed   bool
	Reason   string
}

// Succeeded counts dispatched entries that did not fail.
func (r *Report) Succeeded() int {
	n := 0
	for _, e := range r.Entries {
		if !e.Failed {
			n++
		}
	}
	return n
}

// FailedCount counts dispatched entries that failed.
func (r *Report) FailedCount() int {
	return len(r.Entries) - r.Succeeded()
}

// Notifier delivers a finished report somewhere a human will read it.
type Notifier interface {
	Notify(r *Report) error
}

// ReportStore keeps the history of finished runs.
type ReportStore interface {
	SaveReport(r *Report) error
	LatestReport() (*Report, error)
	Cleanup(olderThan time.Duration) error
}
