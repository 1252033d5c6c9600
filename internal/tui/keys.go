package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Quit       key.Binding
	NextPane   key.Binding
	PrevPane   key.Binding
	TasksPane  key.Binding
	RoundsPane key.Binding
	Up         key.Binding
	Down       key.Binding
}

var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	NextPane:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("Tab", "cycle focus")),
	PrevPane:   key.NewBinding(key.WithKeys("shift+tab")),
	TasksPane:  key.NewBinding(key.WithKeys("1"), key.WithHelp("1/2", "jump to pane")),
	RoundsPane: key.NewBinding(key.WithKeys("2")),
	Up:         key.NewBinding(key.WithKeys("k", "up")),
	Down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/k", "select task")),
}

// HelpView returns a one-line help bar built from the bindings that carry help text.
func HelpView(finished bool) string {
	var parts []string
	if finished {
		parts = append(parts, "Run finished")
	}
	for _, b := range []key.Binding{keys.NextPane, keys.TasksPane, keys.Down, keys.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return StyleHelp.Render(strings.Join(parts, " | "))
}
