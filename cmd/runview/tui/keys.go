package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Run    key.Binding
	Clear  key.Binding
	Load   key.Binding
	Focus  key.Binding
	Indent key.Binding
	Cancel key.Binding
	Quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Run: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "run"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear"),
		),
		Load: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "load file"),
		),
		Focus: key.NewBinding(
			key.WithKeys("shift+tab", "ctrl+t"),
			key.WithHelp("shift+tab", "switch pane"),
		),
		// Indents in the editor; switches pane elsewhere.
		Indent: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "indent"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel/quit"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Clear, k.Load, k.Focus, k.Cancel, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Run, k.Clear, k.Load},
		{k.Focus, k.Indent, k.Cancel, k.Quit},
	}
}
