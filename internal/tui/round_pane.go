package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/lyricflow/internal/events"
)

// RoundSummary is one line of round history.
type RoundSummary struct {
	Number   int
	Eligible []string
	Blocked  int
	NewFacts []string
	Duration time.Duration
	Done     bool
}

// RoundPaneModel shows run progress and the history of rounds.
type RoundPaneModel struct {
	total     int
	completed int
	running   int
	failed    int
	pending   int
	skipped   int
	rounds    []RoundSummary
	width     int
	height    int
	focused   bool
}

// NewRoundPaneModel creates a new round pane model.
func NewRoundPaneModel() RoundPaneModel {
	return RoundPaneModel{}
}

// Update handles messages for the round pane.
func (m RoundPaneModel) Update(msg tea.Msg) (RoundPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.RunProgressEvent:
		m.total = msg.Total
		m.completed = msg.Completed
		m.running = msg.Running
		m.failed = msg.Failed
		m.pending = msg.Pending
		m.skipped = msg.Skipped

	case events.RoundStartedEvent:
		m.rounds = append(m.rounds, RoundSummary{
			Number:   msg.Round,
			Eligible: msg.Eligible,
			Blocked:  msg.Blocked,
		})

	case events.RoundCompletedEvent:
		for i := range m.rounds {
			if m.rounds[i].Number == msg.Round {
				m.rounds[i].NewFacts = msg.NewFacts
				m.rounds[i].Duration = msg.Duration
				m.rounds[i].Done = true
			}
		}
	}

	return m, nil
}

// Rounds returns the round history seen so far.
func (m RoundPaneModel) Rounds() []RoundSummary {
	return m.rounds
}

// View renders the round pane.
func (m RoundPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Rounds")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Total:     %d\n", m.total)
	fmt.Fprintf(&b, "Completed: %s\n", StyleStatusComplete.Render(fmt.Sprint(m.completed)))
	fmt.Fprintf(&b, "Running:   %s\n", StyleStatusRunning.Render(fmt.Sprint(m.running)))
	fmt.Fprintf(&b, "Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprint(m.failed)))
	fmt.Fprintf(&b, "Pending:   %s\n", StyleStatusPending.Render(fmt.Sprint(m.pending)))
	fmt.Fprintf(&b, "Skipped:   %s\n", StyleStatusPending.Render(fmt.Sprint(m.skipped)))
	b.WriteString("\n")

	if m.total > 0 {
		barWidth := min(m.width-4, 40)
		completedWidth := (m.completed * barWidth) / m.total
		failedWidth := (m.failed * barWidth) / m.total
		runningWidth := (m.running * barWidth) / m.total
		restWidth := barWidth - completedWidth - failedWidth - runningWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, restWidth)))

		fmt.Fprintf(&b, "[%s]  %d/%d\n\n", bar, m.completed, m.total)
	}

	// Most recent rounds last; older ones scroll off the top
	lines := make([]string, 0, len(m.rounds))
	for _, r := range m.rounds {
		line := fmt.Sprintf("#%d  %s", r.Number, strings.Join(r.Eligible, ", "))
		if r.Done {
			facts := "no new facts"
			if len(r.NewFacts) > 0 {
				facts = StyleFact.Render("+" + strings.Join(r.NewFacts, ", +"))
			}
			line += fmt.Sprintf("  -> %s (%v)", facts, r.Duration.Round(time.Millisecond))
		} else {
			line = StyleStatusRunning.Render(line)
		}
		lines = append(lines, line)
	}
	room := max(m.height-16, 1)
	if len(lines) > room {
		lines = lines[len(lines)-room:]
	}
	b.WriteString(strings.Join(lines, "\n"))

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *RoundPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *RoundPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
