package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/halcyonfm/trackline/internal/tasks"
)

var (
	_ tea.Msg = storeUpdateMsg{}
	_ tea.Msg = dispatchedMsg{}
)

// storeUpdateMsg carries one fetch progress event from the store's update
// channel into the Elm loop.
type storeUpdateMsg struct {
	update tasks.Update
}

// dispatchedMsg reports the outcome of a fire-and-forget intent dispatch.
type dispatchedMsg struct {
	err error
}
