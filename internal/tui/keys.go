package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	QuitIdle key.Binding
	Help     key.Binding
	NextPane key.Binding
	PrevPane key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	QuitIdle: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit (outside the editor)"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
	NextPane: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next pane"),
	),
	PrevPane: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "previous pane"),
	),
}

func (k keyMap) global() []key.Binding {
	return []key.Binding{k.Quit, k.QuitIdle, k.Help, k.NextPane, k.PrevPane}
}
