package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/session"
)

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// =============================================================================
// ExportModel - live view of background exports
// =============================================================================

// exportRow is one job as shown in the table.
type exportRow struct {
	id      uuid.UUID
	name    string
	kind    string
	status  session.Status
	paths   []string
	bytes   int64
	err     error
	started time.Time
	took    time.Duration
}

type (
	eventMsg  session.Event
	closedMsg struct{}
	tickMsg   time.Time
)

// ExportModel follows an exporter's events until its channel closes.
type ExportModel struct {
	rows   []exportRow
	index  map[uuid.UUID]int
	events <-chan session.Event
	cancel context.CancelFunc

	frame      int
	done       bool
	cancelling bool
}

// namedJob labels a submitted job for display.
type namedJob struct {
	ID   uuid.UUID
	Name string
}

// newExportModel creates a model listing jobs in order. Events for jobs not
// listed are shown by kind.
func newExportModel(events <-chan session.Event, jobs []namedJob, cancel context.CancelFunc) ExportModel {
	m := ExportModel{
		index:  make(map[uuid.UUID]int),
		events: events,
		cancel: cancel,
	}
	for _, j := range jobs {
		m.index[j.ID] = len(m.rows)
		m.rows = append(m.rows, exportRow{id: j.ID, name: j.Name})
	}
	return m
}

func waitForEvent(events <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m ExportModel) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick())
}

func (m ExportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil && !m.cancelling {
				m.cancel()
			}
			m.cancelling = true
		}
	case eventMsg:
		m.apply(session.Event(msg))
		return m, waitForEvent(m.events)
	case closedMsg:
		m.done = true
		return m, tea.Quit
	case tickMsg:
		m.frame++
		return m, tick()
	}
	return m, nil
}

func (m *ExportModel) apply(ev session.Event) {
	i, ok := m.index[ev.JobID]
	if !ok {
		i = len(m.rows)
		m.index[ev.JobID] = i
		m.rows = append(m.rows, exportRow{id: ev.JobID, name: ev.Kind})
	}
	row := &m.rows[i]
	row.kind = ev.Kind
	row.status = ev.Status
	switch ev.Status {
	case session.StatusRunning:
		row.started = ev.Time
	default:
		row.paths = ev.Paths
		row.bytes = ev.Stats.Bytes
		row.err = ev.Err
		if !row.started.IsZero() {
			row.took = ev.Time.Sub(row.started)
		}
	}
}

// Failed counts the jobs that reported an error.
func (m ExportModel) Failed() int {
	n := 0
	for _, r := range m.rows {
		if r.status == session.StatusFailed {
			n++
		}
	}
	return n
}

func (m ExportModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Exports"))
	b.WriteString("\n")
	switch {
	case m.done:
		b.WriteString(listDimStyle.Render("finished"))
	case m.cancelling:
		b.WriteString(StyleWarning.Render("cancelling..."))
	default:
		b.WriteString(listDimStyle.Render("q cancel"))
	}
	b.WriteString("\n\n")

	rows := make([][]string, 0, len(m.rows))
	for _, r := range m.rows {
		rows = append(rows, []string{m.icon(r), r.name, r.kind, m.detail(r)})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Asset", "Kind", "Result").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if row < 0 || row >= len(m.rows) {
				return lipgloss.NewStyle()
			}
			switch m.rows[row].status {
			case session.StatusDone:
				return lipgloss.NewStyle().Foreground(colorGreen)
			case session.StatusFailed:
				return lipgloss.NewStyle().Foreground(colorRed)
			case session.StatusRunning:
				return lipgloss.NewStyle().Foreground(colorWhite)
			}
			return lipgloss.NewStyle().Foreground(colorDim)
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	return b.String()
}

func (m ExportModel) icon(r exportRow) string {
	switch r.status {
	case session.StatusDone:
		return iconSuccess
	case session.StatusFailed:
		return iconError
	case session.StatusRunning:
		return spinnerFrames[m.frame%len(spinnerFrames)]
	}
	return iconRunning
}

func (m ExportModel) detail(r exportRow) string {
	switch r.status {
	case session.StatusDone:
		parts := append([]string{}, r.paths...)
		if r.bytes > 0 {
			parts = append(parts, formatBytes(r.bytes))
		}
		if r.took > 0 {
			parts = append(parts, r.took.Round(time.Millisecond).String())
		}
		return strings.Join(parts, "  ")
	case session.StatusFailed:
		return truncate(errors.UserMessage(r.err), 60)
	case session.StatusRunning:
		return "running"
	}
	return "queued"
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

// summary renders the final state as plain status lines.
func (m ExportModel) summary() string {
	var b strings.Builder
	for _, r := range m.rows {
		switch r.status {
		case session.StatusDone:
			fmt.Fprintf(&b, "%s %s %s\n", styleIconSuccess.Render(iconSuccess), r.name, StyleDim.Render(strings.Join(r.paths, ", ")))
		case session.StatusFailed:
			fmt.Fprintf(&b, "%s %s %s\n", styleIconError.Render(iconError), r.name, StyleError.Render(errors.UserMessage(r.err)))
		default:
			fmt.Fprintf(&b, "%s %s %s\n", styleIconWarning.Render(iconWarning), r.name, StyleWarning.Render("not finished"))
		}
	}
	return b.String()
}
