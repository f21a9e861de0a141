package tui

import "github.com/charmbracelet/bubbles/key"

// TopKeys are the key bindings of the statistics view.
type TopKeys struct {
	Up    key.Binding
	Down  key.Binding
	Pause key.Binding
	Burst key.Binding
	Reset key.Binding
	Help  key.Binding
	Quit  key.Binding
}

func NewTopKeys() TopKeys {
	return TopKeys{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous port"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next port"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p", "pause traffic"),
		),
		Burst: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "burst into selected port"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset selected buffers"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "Q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit"),
		),
	}
}

func (k TopKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Pause, k.Burst, k.Quit}
}

func (k TopKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Pause, k.Burst, k.Reset},
		{k.Help, k.Quit},
	}
}
