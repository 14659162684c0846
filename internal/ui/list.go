package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/halcyonfm/trackline/internal/formatter"
	"github.com/halcyonfm/trackline/internal/shared"
)

var (
	_ list.Item = entryItem{}
	_ list.Item = queueItem{}
)

// entryItem wraps a [formatter.Row] to implement [list.Item].
type entryItem struct {
	row formatter.Row
}

func (i entryItem) FilterValue() string { return i.row.Title }

func (i entryItem) Title() string {
	if i.row.Title == "" {
		return i.row.UID
	}
	return i.row.Title
}

func (i entryItem) Description() string {
	desc := strings.ToLower(i.row.Kind)
	if i.row.Owner != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.row.Owner)
	}
	if i.row.Duration > 0 {
		desc = fmt.Sprintf("%s • %s", desc, shared.FormatDuration(i.row.Duration))
	}
	if i.row.Deleted {
		desc = fmt.Sprintf("%s • unavailable", desc)
	}
	return desc
}

// queueItem wraps a queue row, marking the item under the cursor.
type queueItem struct {
	row     formatter.Row
	playing bool
}

func (i queueItem) FilterValue() string { return i.row.Title }

func (i queueItem) Title() string {
	title := i.row.Title
	if title == "" {
		title = i.row.UID
	}
	if i.playing {
		return "▶ " + title
	}
	return title
}

func (i queueItem) Description() string {
	desc := strings.ToLower(i.row.Kind)
	if i.row.Owner != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.row.Owner)
	}
	return desc
}
