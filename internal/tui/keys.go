package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle      key.Binding
	Reset       key.Binding
	Skip        key.Binding
	Ack         key.Binding
	Dismiss     key.Binding
	SessionUp   key.Binding
	SessionDown key.Binding
	BreakUp     key.Binding
	BreakDown   key.Binding
	Silent      key.Binding
	AutoAdvance key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Toggle:      key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "start/pause")),
		Reset:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		Skip:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
		Ack:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "ok")),
		Dismiss:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss")),
		SessionUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "session length")),
		SessionDown: key.NewBinding(key.WithKeys("-")),
		BreakUp:     key.NewBinding(key.WithKeys("]"), key.WithHelp("[/]", "break length")),
		BreakDown:   key.NewBinding(key.WithKeys("[")),
		Silent:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		AutoAdvance: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto-advance")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Reset, k.Skip, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Reset, k.Skip},
		{k.Ack, k.Dismiss},
		{k.SessionUp, k.BreakUp, k.Silent, k.AutoAdvance},
		{k.Help, k.Quit},
	}
}
