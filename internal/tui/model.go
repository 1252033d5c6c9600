// Package tui renders a live view of a run from the scheduler's event bus.
package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/lyricflow/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTasks PaneID = iota
	PaneRounds
)

const paneCount = 2

// runFinishedMsg is sent once the event bus has been closed.
type runFinishedMsg struct{}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	taskPane    TaskPaneModel
	roundPane   RoundPaneModel
	focusedPane PaneID
	eventSub    <-chan events.Event
	width       int
	height      int
	quitting    bool
	finished    bool
}

// New creates a new TUI model subscribed to every topic on eventBus.
// Create it before the run starts so no event is missed.
func New(eventBus *events.EventBus) Model {
	return Model{
		taskPane:    NewTaskPaneModel(),
		roundPane:   NewRoundPaneModel(),
		focusedPane: PaneTasks,
		eventSub:    eventBus.SubscribeAll(events.DefaultBufferSize),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return runFinishedMsg{}
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.NextPane):
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case key.Matches(msg, keys.PrevPane):
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case key.Matches(msg, keys.TasksPane):
			m.focusedPane = PaneTasks
			m.updateFocusStates()

		case key.Matches(msg, keys.RoundsPane):
			m.focusedPane = PaneRounds
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneTasks {
				var cmd tea.Cmd
				m.taskPane, cmd = m.taskPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case tickMsg:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd)

	case events.TaskStartedEvent, events.TaskOutputEvent, events.TaskCompletedEvent,
		events.TaskRescheduledEvent, events.TaskFailedEvent:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.RoundStartedEvent, events.RoundCompletedEvent, events.RunProgressEvent:
		var cmd tea.Cmd
		m.roundPane, cmd = m.roundPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case runFinishedMsg:
		m.finished = true
	}

	return m, tea.Batch(cmds...)
}

// Finished reports whether the run's event stream has ended.
func (m Model) Finished() bool {
	return m.finished
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	panes := lipgloss.JoinHorizontal(lipgloss.Top, m.taskPane.View(), m.roundPane.View())
	return lipgloss.JoinVertical(lipgloss.Left, panes, HelpView(m.finished))
}

// computeLayout gives 60% of the width to tasks and the rest to rounds.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 60) / 100
	availableHeight := m.height - 1 // help bar

	m.taskPane.SetSize(leftWidth, availableHeight)
	m.roundPane.SetSize(m.width-leftWidth, availableHeight)
	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.taskPane.SetFocused(m.focusedPane == PaneTasks)
	m.roundPane.SetFocused(m.focusedPane == PaneRounds)
}
