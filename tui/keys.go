package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dashboard keybindings.
type KeyMap struct {
	Up   key.Binding
	Down key.Binding

	Open key.Binding
	Back key.Binding
	Quit key.Binding

	NextCategory key.Binding
	PrevCategory key.Binding
	AllMail      key.Binding

	Refresh key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		NextCategory: key.NewBinding(
			key.WithKeys("tab", "l", "right"),
			key.WithHelp("tab", "next category"),
		),
		PrevCategory: key.NewBinding(
			key.WithKeys("shift+tab", "h", "left"),
			key.WithHelp("shift+tab", "prev category"),
		),
		AllMail: key.NewBinding(
			key.WithKeys("a", "0"),
			key.WithHelp("a", "all mail"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

// hints renders the short help shown in the status bar.
func (k KeyMap) hints(bindings ...key.Binding) string {
	out := ""
	for i, b := range bindings {
		if i > 0 {
			out += " | "
		}
		h := b.Help()
		out += "[" + h.Key + "]:" + h.Desc
	}
	return out
}
