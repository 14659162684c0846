// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a two-pane catalog browser:
//  1. [BrowseView] : Page through the entries of the active lineup
//  2. [QueueView] : Inspect and steer the playback queue
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Fetch outcomes flow through the store's update channel, so the list refreshes as pages land without blocking the event loop.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, tab, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
