// Package report compiles and renders the summary of one run.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/amishk599/autosignin/internal/engine"
	"github.com/amishk599/autosignin/internal/model"
)

// Build snapshots the outcome of a run. It only reads the jobs.
func Build(runID string, started, finished time.Time, out *engine.Outcome) *model.Report {
	r := &model.Report{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if out == nil {
		return r
	}
	for _, job := range out.Accepted {
		r.Entries = append(r.Entries, model.ReportEntry{
			SiteID:   job.SiteID,
			Title:    job.Title,
			Result:   job.Result,
			Messages: job.Messages,
			Details:  job.Details,
			Failed:   job.Failed(),
			Reason:   job.Reason(),
		})
	}
	for _, job := range out.Rejected {
		r.Rejected = append(r.Rejected, model.ReportEntry{
			SiteID: job.SiteID,
			Title:  job.Title,
			Failed: true,
			Reason: job.RejectReason(),
		})
	}
	return r
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	failedStyle = cellStyle.
			Foreground(lipgloss.Color("196"))

	okStyle = cellStyle.
		Foreground(lipgloss.Color("42"))

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

const statusColumn = 2

// Status returns the one-word state of an entry.
func Status(e model.ReportEntry) string {
	if e.Failed {
		return "failed"
	}
	return "ok"
}

// Render draws the report as a table followed by a summary line.
func Render(r *model.Report) string {
	rows := make([][]string, 0, len(r.Entries)+len(r.Rejected))
	for _, e := range r.Entries {
		result := e.Result
		if e.Failed {
			result = e.Reason
		}
		rows = append(rows, []string{e.SiteID, e.Title, Status(e), oneLine(result), oneLine(e.Messages), oneLine(e.Details)})
	}
	for _, e := range r.Rejected {
		rows = append(rows, []string{e.SiteID, e.Title, "rejected", e.Reason, "", ""})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("SITE", "TITLE", "STATUS", "RESULT", "MESSAGES", "DETAILS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusColumn && row >= 0 && row < len(rows) {
				if rows[row][col] == "ok" {
					return okStyle
				}
				return failedStyle
			}
			return cellStyle
		})

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n")
	fmt.Fprintf(&b, "%d succeeded, %d failed, %d rejected", r.Succeeded(), r.FailedCount(), len(r.Rejected))
	if !r.FinishedAt.IsZero() && !r.StartedAt.IsZero() {
		fmt.Fprintf(&b, " in %s", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	b.WriteString("\n")
	return b.String()
}

// Summary is the plain text form used by notifiers.
func Summary(r *model.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sign-in report %s: %d succeeded, %d failed, %d rejected\n",
		r.StartedAt.Format("2006-01-02 15:04"), r.Succeeded(), r.FailedCount(), len(r.Rejected))
	for _, e := range r.Entries {
		if e.Failed {
			fmt.Fprintf(&b, "✗ %s: %s\n", e.Title, e.Reason)
			continue
		}
		fmt.Fprintf(&b, "✓ %s: %s\n", e.Title, e.Result)
		if e.Messages != "" {
			fmt.Fprintf(&b, "    messages: %s\n", e.Messages)
		}
		if e.Details != "" {
			fmt.Fprintf(&b, "    details: %s\n", e.Details)
		}
	}
	for _, e := range r.Rejected {
		fmt.Fprintf(&b, "- %s\n", e.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
