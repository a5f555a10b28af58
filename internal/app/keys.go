package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap defines the global keybindings. Arrow keys and letters are left to
// the tabs; the timeline uses them to drive the viewport.
type KeyMap struct {
	Tab1    key.Binding
	Tab2    key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Refresh key.Binding
	Save    key.Binding
	Help    key.Binding
	Quit    key.Binding
	Escape  key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Tab1:    key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "timeline")),
		Tab2:    key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "info")),
		NextTab: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		PrevTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
		Refresh: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "refresh stats")),
		Save:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save session")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Escape:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close help")),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Save, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab1, k.Tab2, k.NextTab, k.PrevTab},
		{k.Refresh, k.Save, k.Help, k.Quit},
	}
}

// global reports whether msg is handled by the application rather than the
// active tab. Escape is only global while the help panel is open.
func (k KeyMap) global(msg tea.KeyMsg, helpOpen bool) bool {
	if helpOpen && key.Matches(msg, k.Escape) {
		return true
	}
	return key.Matches(msg, k.Quit, k.Help, k.Tab1, k.Tab2,
		k.NextTab, k.PrevTab, k.Refresh, k.Save)
}
