package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/halcyonfm/trackline/internal/formatter"
	"github.com/halcyonfm/trackline/internal/lineup"
	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/shared"
	"github.com/halcyonfm/trackline/internal/store"
	"github.com/halcyonfm/trackline/internal/tasks"
	"github.com/halcyonfm/trackline/internal/uid"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	BrowseView ViewState = iota
	QueueView
)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	store    *store.Store
	updates  <-chan tasks.Update
	prefixes []string
	current  int
	pageSize int

	view      ViewState
	width     int
	height    int
	entryList list.Model
	queueList list.Model
	listReady bool
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model over a populated store. prefixes names the
// registered lineups in display order; the first is shown on start.
func NewModel(ctx context.Context, st *store.Store, prefixes []string, pageSize int) *Model {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Model{
		ctx:      ctx,
		store:    st,
		updates:  st.Updates(),
		prefixes: prefixes,
		pageSize: pageSize,
		view:     BrowseView,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

func (m *Model) prefix() string {
	if len(m.prefixes) == 0 {
		return ""
	}
	return m.prefixes[m.current]
}

// Init kicks off the first page fetch for the starting lineup and starts
// draining the store's update channel.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchPage(0, false), m.waitForUpdate())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.listReady {
			m.entryList.SetSize(msg.Width-4, msg.Height-8)
			m.queueList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case BrowseView:
			return m.handleBrowseKeys(msg)
		case QueueView:
			return m.handleQueueKeys(msg)
		}

	case storeUpdateMsg:
		if msg.update.Prefix == m.prefix() &&
			(msg.update.Phase == tasks.FetchSucceeded || msg.update.Phase == tasks.FetchFailed) {
			m.refreshEntryList()
		}
		return m, m.waitForUpdate()

	case dispatchedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.refreshQueueList()
		}
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case BrowseView:
		return m.renderBrowse()
	case QueueView:
		return m.renderQueue()
	default:
		return ""
	}
}

func (m *Model) handleBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.current = (m.current + 1) % len(m.prefixes)
		m.refreshEntryList()
		return m, m.fetchIfIdle()
	case "v":
		m.view = QueueView
		m.refreshQueueList()
		return m, nil
	case "m":
		lin, err := m.store.Lineup(m.prefix())
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, m.fetchPage(len(lin.Entries), false)
	case "r":
		return m, m.fetchPage(0, true)
	case "enter":
		if selected := m.entryList.SelectedItem(); selected != nil {
			if item, ok := selected.(entryItem); ok {
				return m, m.play(item.row.UID)
			}
		}
	case " ":
		return m, m.togglePause()
	}

	var cmd tea.Cmd
	m.entryList, cmd = m.entryList.Update(msg)
	return m, cmd
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "v":
		m.view = BrowseView
		return m, nil
	case "n":
		m.store.NextTrack()
		m.refreshQueueList()
		return m, nil
	case "p":
		m.store.PreviousTrack()
		m.refreshQueueList()
		return m, nil
	case "s":
		m.store.ToggleShuffle()
		return m, nil
	case " ":
		return m, m.togglePause()
	}

	var cmd tea.Cmd
	m.queueList, cmd = m.queueList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !m.listReady {
		return m, nil
	}
	var cmd tea.Cmd
	switch m.view {
	case BrowseView:
		m.entryList, cmd = m.entryList.Update(msg)
	case QueueView:
		m.queueList, cmd = m.queueList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPage(offset int, overwrite bool) tea.Cmd {
	prefix := m.prefix()
	return func() tea.Msg {
		err := m.store.Dispatch(m.ctx, prefix, lineup.FetchMetadatas{
			Offset:    offset,
			Limit:     m.pageSize,
			Overwrite: overwrite,
		})
		if errors.Is(err, shared.ErrFetchInFlight) {
			err = nil
		}
		return dispatchedMsg{err: err}
	}
}

// fetchIfIdle fetches the first page of the active lineup unless it already
// holds entries or has a fetch running.
func (m *Model) fetchIfIdle() tea.Cmd {
	lin, err := m.store.Lineup(m.prefix())
	if err != nil {
		m.err = err
		return nil
	}
	if lin.Status != lineup.StatusIdle {
		return nil
	}
	return m.fetchPage(0, false)
}

func (m *Model) play(uidStr string) tea.Cmd {
	prefix := m.prefix()
	return func() tea.Msg {
		u, err := uid.Parse(uidStr)
		if err != nil {
			return dispatchedMsg{err: err}
		}
		return dispatchedMsg{err: m.store.Dispatch(m.ctx, prefix, lineup.Play{UID: u})}
	}
}

func (m *Model) togglePause() tea.Cmd {
	prefix := m.prefix()
	return func() tea.Msg {
		if _, playing := m.store.NowPlaying(); playing {
			return dispatchedMsg{err: m.store.Dispatch(m.ctx, prefix, lineup.Pause{})}
		}
		m.store.Resume()
		return dispatchedMsg{}
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.updates
		if !ok {
			return nil
		}
		return storeUpdateMsg{update: update}
	}
}

func (m *Model) refreshEntryList() {
	lin, err := m.store.Lineup(m.prefix())
	if err != nil {
		m.err = err
		return
	}
	rows := formatter.BuildRows(lin.Entries, m.store.Entity)
	items := make([]list.Item, len(rows))
	for i, row := range rows {
		items[i] = entryItem{row: row}
	}

	if !m.listReady {
		m.entryList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.queueList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
		m.entryList.SetSize(m.width-4, m.height-8)
		m.queueList.SetSize(m.width-4, m.height-8)
		m.listReady = true
	} else {
		m.entryList.SetItems(items)
	}
	m.entryList.Title = fmt.Sprintf("%s (%s)", lin.Prefix, lin.Status)
	if lin.Status == lineup.StatusFailed {
		m.err = fmt.Errorf("fetch failed for %s", lin.Prefix)
	}
}

func (m *Model) refreshQueueList() {
	if !m.listReady {
		return
	}
	queued := m.store.QueueItems()
	rows := formatter.QueueRows(queued, m.store.Entity)
	now, playing := m.store.NowPlaying()

	items := make([]list.Item, len(rows))
	for i, row := range rows {
		items[i] = queueItem{
			row:     row,
			playing: playing && queued[i].UID.Equal(now.UID),
		}
	}
	m.queueList.SetItems(items)
	m.queueList.Title = fmt.Sprintf("Queue (%d)", len(items))
}

func (m *Model) renderBrowse() string {
	if !m.listReady {
		return styles.help.Render("Loading lineup...")
	}
	view := m.entryList.View()
	if m.err != nil {
		view = fmt.Sprintf("%s\n%s", view, styles.err.Render(m.err.Error()))
	}
	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	return fmt.Sprintf("%s\n\n%s", view, helpView)
}

func (m *Model) renderQueue() string {
	if !m.listReady {
		return styles.help.Render("Queue is empty")
	}
	header := ""
	if now, playing := m.store.NowPlaying(); playing {
		if ent, ok := m.store.Entity(now.Kind, now.ID); ok {
			if title, ok := ent.Metadata[models.FieldTitle].(string); ok {
				header = styles.ok.Render("Now playing: " + title)
			}
		}
	}
	helpView := m.help.ShortHelpView(m.keys.FullHelp()[2])
	if header != "" {
		return fmt.Sprintf("%s\n\n%s\n\n%s", header, m.queueList.View(), helpView)
	}
	return fmt.Sprintf("%s\n\n%s", m.queueList.View(), helpView)
}
