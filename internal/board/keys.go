package board

import "github.com/charmbracelet/bubbles/key"

// boardKeys are active while the board has focus
type boardKeys struct {
	Left     key.Binding
	Right    key.Binding
	Up       key.Binding
	Down     key.Binding
	MoveBack key.Binding
	MoveNext key.Binding
	Open     key.Binding
	New      key.Binding
	Reassign key.Binding
	Delete   key.Binding
	Quit     key.Binding
}

var keys = boardKeys{
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("h/l", "column"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("h/l", "column"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("j/k", "task"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("j/k", "task"),
	),
	MoveBack: key.NewBinding(
		key.WithKeys("<", ","),
		key.WithHelp("</>", "move"),
	),
	MoveNext: key.NewBinding(
		key.WithKeys(">", "."),
		key.WithHelp("</>", "move"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "comments"),
	),
	New: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new task"),
	),
	Reassign: key.NewBinding(
		key.WithKeys("A"),
		key.WithHelp("A", "reassign"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// botKeys drive the agent's bot endpoint and are bound only in agent view
type botKeys struct {
	Create   key.Binding
	Comment  key.Binding
	Complete key.Binding
}

var agentKeys = botKeys{
	Create: key.NewBinding(
		key.WithKeys("B"),
		key.WithHelp("B", "bot task"),
	),
	Comment: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "bot comment"),
	),
	Complete: key.NewBinding(
		key.WithKeys("C"),
		key.WithHelp("C", "bot complete"),
	),
}

// threadKeys are active while the comment pane is open
type threadKeys struct {
	Add   key.Binding
	Close key.Binding
}

var commentKeys = threadKeys{
	Add: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "add comment"),
	),
	Close: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
}

func hints(bindings ...key.Binding) string {
	out := ""
	seen := make(map[string]bool)
	for _, b := range bindings {
		h := b.Help()
		if seen[h.Key] {
			continue
		}
		seen[h.Key] = true
		if out != "" {
			out += "  "
		}
		out += h.Key + " " + h.Desc
	}
	return out
}
