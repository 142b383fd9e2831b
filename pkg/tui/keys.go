package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds all TUI key bindings.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Edit    key.Binding
	Call    key.Binding
	AddElem key.Binding
	DelElem key.Binding
	Counter key.Binding
	Save    key.Binding
	Load    key.Binding
	Back    key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Edit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "edit"),
	),
	Call: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "call"),
	),
	AddElem: key.NewBinding(
		key.WithKeys("+"),
		key.WithHelp("+", "add element"),
	),
	DelElem: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "remove element"),
	),
	Counter: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "counter"),
	),
	Save: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "save request"),
	),
	Load: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "load request"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// keyBarText renders the context-sensitive key hint string.
func keyBarText(m mode, editing bool) string {
	if editing {
		return keyStyle.Render("Enter") + keyDescStyle.Render(":commit") + "  " +
			keyStyle.Render("Esc") + keyDescStyle.Render(":cancel")
	}
	switch m {
	case modePicker:
		return keyStyle.Render("↑↓") + keyDescStyle.Render(":browse") + "  " +
			keyStyle.Render("Enter") + keyDescStyle.Render(":select") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	default:
		return keyStyle.Render("↑↓") + keyDescStyle.Render(":browse") + "  " +
			keyStyle.Render("Enter") + keyDescStyle.Render(":edit") + "  " +
			keyStyle.Render("c") + keyDescStyle.Render(":call") + "  " +
			keyStyle.Render("+/-") + keyDescStyle.Render(":elements") + "  " +
			keyStyle.Render("i") + keyDescStyle.Render(":counter") + "  " +
			keyStyle.Render("s/l") + keyDescStyle.Render(":save/load") + "  " +
			keyStyle.Render("esc") + keyDescStyle.Render(":back") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	}
}
