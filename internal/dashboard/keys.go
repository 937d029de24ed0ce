package dashboard

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	Scan      key.Binding
	ForceScan key.Binding
	Snapshot  key.Binding
	Clear     key.Binding
	Up        key.Binding
	Down      key.Binding
	Expand    key.Binding
	Help      key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Scan: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "scan now"),
	),
	ForceScan: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "force scan"),
	),
	Snapshot: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "snapshot"),
	),
	Clear: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "clear history"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓", "down"),
	),
	Expand: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "expand country"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
}

const helpText = "q: quit  r: scan  R: force scan  s: snapshot  c: clear history  ↑/↓: select  enter: expand  ?: help"
