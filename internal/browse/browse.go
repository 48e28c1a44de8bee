// Package browse is an interactive viewer for stored run reports.
package browse

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/autosignin/internal/model"
	"github.com/amishk599/autosignin/internal/report"
)

// Lines per item in the list panes (title + subtitle + blank separator).
const itemHeight = 3

const (
	paneRuns = iota
	paneEntries
)

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

// row is one line of the entries pane: a dispatched or rejected job.
type row struct {
	entry  model.ReportEntry
	status string // ok, failed or rejected
}

type browseModel struct {
	runs          []*model.Report
	runsViewport  viewport.Model
	rowsViewport  viewport.Model
	activePane    int
	runCursor     int
	rowCursor     int
	width, height int
	ready         bool

	view           viewState
	detailViewport viewport.Model
}

func newModel(runs []*model.Report) browseModel {
	return browseModel{runs: runs}
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}
	return m, nil
}

func (m browseModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		if m.activePane == paneRuns {
			m.activePane = paneEntries
			m.recalcContent()
			return m, nil
		}
		return m.openDetailView()
	}

	var cmd tea.Cmd
	if m.activePane == paneRuns {
		m.runsViewport, cmd = m.runsViewport.Update(msg)
	} else {
		m.rowsViewport, cmd = m.rowsViewport.Update(msg)
	}
	return m, cmd
}

func (m browseModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	}
	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m *browseModel) moveCursor(delta int) {
	if m.activePane == paneRuns {
		m.runCursor = clamp(m.runCursor+delta, 0, max(len(m.runs)-1, 0))
		m.rowCursor = 0
		m.rowsViewport.SetYOffset(0)
		return
	}
	m.rowCursor = clamp(m.rowCursor+delta, 0, max(len(m.rows())-1, 0))
}

func (m *browseModel) ensureCursorVisible() {
	vp, cursor := &m.runsViewport, m.runCursor
	if m.activePane == paneEntries {
		vp, cursor = &m.rowsViewport, m.rowCursor
	}

	top := cursor * itemHeight
	bottom := top + itemHeight - 1
	if top < vp.YOffset {
		vp.SetYOffset(top)
	} else if bottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(bottom - vp.Height + 1)
	}
}

func (m browseModel) openDetailView() (tea.Model, tea.Cmd) {
	if len(m.rows()) == 0 {
		return m, nil
	}
	m.view = viewDetail
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

// selectedRun returns the run under the runs cursor, nil when there are none.
func (m browseModel) selectedRun() *model.Report {
	if len(m.runs) == 0 {
		return nil
	}
	return m.runs[m.runCursor]
}

// rows lists the selected run's dispatched jobs followed by its rejected ones.
func (m browseModel) rows() []row {
	r := m.selectedRun()
	if r == nil {
		return nil
	}
	out := make([]row, 0, len(r.Entries)+len(r.Rejected))
	for _, e := range r.Entries {
		out = append(out, row{entry: e, status: report.Status(e)})
	}
	for _, e := range r.Rejected {
		out = append(out, row{entry: e, status: "rejected"})
	}
	return out
}

func (m *browseModel) recalcLayout() {
	// Runs pane takes a third of the width; 2 border chars per pane + 1 gap.
	runsWidth := max((m.width-5)/3, 20)
	rowsWidth := max(m.width-5-runsWidth, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.runsViewport = viewport.New(runsWidth, paneHeight)
		m.rowsViewport = viewport.New(rowsWidth, paneHeight)
		m.ready = true
	} else {
		m.runsViewport.Width = runsWidth
		m.runsViewport.Height = paneHeight
		m.rowsViewport.Width = rowsWidth
		m.rowsViewport.Height = paneHeight
	}
	m.recalcContent()
}

func (m *browseModel) recalcContent() {
	m.runsViewport.SetContent(renderRuns(m.runs, m.runCursor, m.activePane == paneRuns))
	m.rowsViewport.SetContent(renderRows(m.rows(), m.rowCursor, m.activePane == paneEntries))
}

func (m browseModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m browseModel) viewList() string {
	runsHeader := fmt.Sprintf(" Runs (%d)", len(m.runs))
	rowsHeader := " Jobs"
	if r := m.selectedRun(); r != nil {
		rowsHeader = fmt.Sprintf(" Jobs (%d)", len(r.Entries)+len(r.Rejected))
	}

	runsHeaderSt, rowsHeaderSt := activeHeaderStyle, inactiveHeaderStyle
	runsBorder, rowsBorder := activeBorderStyle, inactiveBorderStyle
	if m.activePane == paneEntries {
		runsHeaderSt, rowsHeaderSt = inactiveHeaderStyle, activeHeaderStyle
		runsBorder, rowsBorder = inactiveBorderStyle, activeBorderStyle
	}

	runsWidth, rowsWidth := m.runsViewport.Width, m.rowsViewport.Width
	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(runsWidth+2).Render(runsHeaderSt.Render(runsHeader)),
		" ",
		lipgloss.NewStyle().Width(rowsWidth+2).Render(rowsHeaderSt.Render(rowsHeader)),
	)
	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		runsBorder.Width(runsWidth).Render(m.runsViewport.View()),
		" ",
		rowsBorder.Width(rowsWidth).Render(m.rowsViewport.View()),
	)

	statusText := " ←/→/Tab switch  ↑/↓ cursor  Enter open  q quit"
	if r := m.selectedRun(); r != nil {
		statusText = fmt.Sprintf(" %d succeeded | %d failed | %d rejected   %s",
			r.Succeeded(), r.FailedCount(), len(r.Rejected), statusText)
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m browseModel) viewDetail() string {
	title := detailTitleStyle.Render("Job Details")
	content := activeBorderStyle.Width(m.width - 2).Render(m.detailViewport.View())
	statusBar := statusBarStyle.Width(m.width).Render(" esc/backspace back  ↑/↓ scroll  q quit")
	return title + "\n" + content + "\n" + statusBar
}

func (m browseModel) renderDetail() string {
	rows := m.rows()
	if len(rows) == 0 {
		return ""
	}
	sel := rows[m.rowCursor]
	e := sel.entry
	wrapWidth := max(m.width-8-detailLabelStyle.GetWidth(), 20)

	var b strings.Builder
	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(wordWrap(value, wrapWidth)))
		b.WriteByte('\n')
	}

	addField("Title", e.Title)
	addField("Site", e.SiteID)
	addField("Status", styleStatus(sel.status))
	if r := m.selectedRun(); r != nil {
		addField("Run", r.RunID)
		addField("Started", r.StartedAt.Local().Format("2006-01-02 15:04:05 MST"))
	}
	b.WriteByte('\n')
	addField("Reason", e.Reason)
	addField("Result", e.Result)
	addField("Messages", e.Messages)
	addField("Details", e.Details)
	return b.String()
}

func renderRuns(runs []*model.Report, cursor int, isActive bool) string {
	if len(runs) == 0 {
		return "  (no runs yet)"
	}

	var b strings.Builder
	for i, r := range runs {
		titleSt, subtitleSt, prefix := itemTitleStyle, itemSubtitleStyle, "  "
		if isActive && i == cursor {
			titleSt, subtitleSt, prefix = selectedTitleStyle, selectedSubtitleStyle, "> "
		} else if i == cursor {
			prefix = "» "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(r.StartedAt.Local().Format("2006-01-02 15:04")))
		b.WriteByte('\n')
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%d ok · %d failed · %d rejected",
			r.Succeeded(), r.FailedCount(), len(r.Rejected))))
		b.WriteByte('\n')
		if i < len(runs)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderRows(rows []row, cursor int, isActive bool) string {
	if len(rows) == 0 {
		return "  (no jobs)"
	}

	var b strings.Builder
	for i, r := range rows {
		titleSt, subtitleSt, prefix := itemTitleStyle, itemSubtitleStyle, "  "
		if isActive && i == cursor {
			titleSt, subtitleSt, prefix = selectedTitleStyle, selectedSubtitleStyle, "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(r.entry.Title))
		b.WriteString(" ")
		b.WriteString(styleStatus(r.status))
		b.WriteByte('\n')

		summary := r.entry.Result
		if r.status != "ok" {
			summary = r.entry.Reason
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(firstLine(summary)))
		b.WriteByte('\n')
		if i < len(rows)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func styleStatus(status string) string {
	switch status {
	case "ok":
		return okStatusStyle.Render(status)
	case "rejected":
		return rejectedStatusStyle.Render(status)
	default:
		return failedStatusStyle.Render(status)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func wordWrap(text string, width int) string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) <= width {
				line += " " + w
			} else {
				out = append(out, line)
				line = w
			}
		}
		out = append(out, line)
	}
	// Continuation lines line up under the value column.
	return strings.Join(out, "\n"+strings.Repeat(" ", detailLabelStyle.GetWidth()))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Run launches the interactive report browser over runs, newest first.
func Run(runs []*model.Report) error {
	p := tea.NewProgram(newModel(runs), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
