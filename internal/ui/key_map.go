package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	enter   key.Binding
	back    key.Binding
	tab     key.Binding
	queue   key.Binding
	more    key.Binding
	refresh key.Binding
	pause   key.Binding
	next    key.Binding
	prev    key.Binding
	shuffle key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next lineup")),
		queue:   key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "queue")),
		more:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "load more")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		pause:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause/resume")),
		next:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next track")),
		prev:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous track")),
		shuffle: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.enter, k.tab, k.queue, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.tab, k.queue, k.more, k.refresh},
		{k.pause, k.next, k.prev, k.shuffle},
		{k.quit},
	}
}
