// Package queue implements the single global playback list.
//
// Queue items are a derived snapshot of one lineup's entries, not a live
// view: when a lineup becomes the playback source its entries are copied and
// re-keyed with a UID whose source chain is extended with the queue context
// segment, so queue UIDs never alias lineup UIDs even though (kind, id)
// match. The queue is pure state; cache subscriptions for queue UIDs are
// wired by the store, which is why mutating operations hand removed items
// back to the caller for teardown.
package queue

import (
	"math/rand"

	"github.com/halcyonfm/trackline/internal/lineup"
	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/uid"
)

// RepeatMode controls what Next does at the end of the list.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatSingle
	RepeatAll
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatSingle:
		return "single"
	case RepeatAll:
		return "all"
	default:
		return ""
	}
}

// Item is one element of the playback queue. UID is the queue-keyed
// identifier (entry UID with the queue segment appended); EntryUID is the
// originating lineup entry's UID, kept so a re-fetch of the driving lineup
// can reuse it. Derived lists the nested collection-track UIDs this item's
// subscription tree holds, torn down together on reset.
type Item struct {
	UID      uid.UID
	EntryUID uid.UID
	Kind     models.Kind
	ID       int64
	Source   string
	Derived  []uid.UID
}

// FromEntry derives a queue item from a lineup entry by extending the UID's
// source chain with the queue context segment.
func FromEntry(e lineup.Entry, source string) Item {
	return Item{
		UID:      e.UID.WithChainSegment(uid.QueueSegment),
		EntryUID: e.UID,
		Kind:     e.Kind,
		ID:       e.ID,
		Source:   source,
	}
}

// Queue is the global ordered playback list. Not safe for concurrent use;
// the store serializes access.
type Queue struct {
	items          []Item
	index          int
	playbackSource string
	repeat         RepeatMode
	shuffle        bool
	order          []int
	playing        bool
	rng            *rand.Rand
}

// New creates an empty queue. A nil rng falls back to the global source.
func New(rng *rand.Rand) *Queue {
	return &Queue{rng: rng}
}

// Len returns the number of queued items.
func (q *Queue) Len() int { return len(q.items) }

// Source returns the prefix of the lineup currently driving playback.
func (q *Queue) Source() string { return q.playbackSource }

// IsPlaying reports whether playback is active (not paused, non-empty queue).
func (q *Queue) IsPlaying() bool { return q.playing && len(q.items) > 0 }

// Repeat returns the current repeat mode.
func (q *Queue) Repeat() RepeatMode { return q.repeat }

// SetRepeat sets the repeat mode.
func (q *Queue) SetRepeat(mode RepeatMode) { q.repeat = mode }

// Shuffle reports whether shuffle is enabled.
func (q *Queue) Shuffle() bool { return q.shuffle }

// CurrentIndex returns the cursor position.
func (q *Queue) CurrentIndex() int { return q.index }

// Current returns the item under the cursor.
func (q *Queue) Current() (Item, bool) {
	if len(q.items) == 0 || q.index < 0 || q.index >= len(q.items) {
		return Item{}, false
	}
	return q.items[q.index], true
}

// Items returns a copy of the queued items in order.
func (q *Queue) Items() []Item {
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// Replace rebuilds the queue wholesale from a new driving lineup, returning
// the previous items for subscription teardown. The cursor resets to the
// head; callers seek it afterwards with CursorTo.
func (q *Queue) Replace(source string, items []Item) (removed []Item) {
	removed = q.items
	q.items = make([]Item, len(items))
	copy(q.items, items)
	q.playbackSource = source
	q.index = 0
	q.reshuffle()
	return removed
}

// Append mirrors newly published entries from the driving lineup onto the
// end of the queue. The caller checks that the source matches.
func (q *Queue) Append(items []Item) {
	q.items = append(q.items, items...)
	q.reshuffle()
}

// CursorTo seeks the cursor to the item derived from the given lineup entry
// UID, falling back to the first item with the same (kind, id). Marks
// playback active on success.
func (q *Queue) CursorTo(entryUID uid.UID) bool {
	for i, item := range q.items {
		if item.EntryUID.Equal(entryUID) {
			q.index = i
			q.playing = true
			return true
		}
	}
	for i, item := range q.items {
		if item.Kind == entryUID.Kind && item.ID == entryUID.ID {
			q.index = i
			q.playing = true
			return true
		}
	}
	return false
}

// Pause suspends playback, leaving the cursor in place.
func (q *Queue) Pause() { q.playing = false }

// Resume marks playback active again when an item is under the cursor.
func (q *Queue) Resume() bool {
	if _, ok := q.Current(); !ok {
		return false
	}
	q.playing = true
	return true
}

// Next advances the cursor honoring repeat mode and shuffle. At the end of
// the list, RepeatOff stops playback, RepeatAll wraps, and RepeatSingle
// stays put. Returns the new current item.
func (q *Queue) Next() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	if q.repeat == RepeatSingle {
		return q.items[q.index], true
	}

	next, ok := q.step(1)
	if !ok {
		if q.repeat != RepeatAll {
			q.playing = false
			return Item{}, false
		}
		next = q.first()
	}
	q.index = next
	return q.items[q.index], true
}

// Previous moves the cursor back one position, wrapping under RepeatAll.
func (q *Queue) Previous() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	if q.repeat == RepeatSingle {
		return q.items[q.index], true
	}

	prev, ok := q.step(-1)
	if !ok {
		if q.repeat != RepeatAll {
			return q.items[q.index], true
		}
		prev = q.last()
	}
	q.index = prev
	return q.items[q.index], true
}

// Reorder reorders the queue to the given queue-UID sequence, but only when
// the issuing lineup is the one driving playback; otherwise it is a no-op.
// The source-mismatch case silently doing nothing mirrors the long-standing
// client behavior; see DESIGN.md before "fixing" it.
func (q *Queue) Reorder(source string, ordered []uid.UID) bool {
	if source != q.playbackSource {
		return false
	}

	var current *Item
	if c, ok := q.Current(); ok {
		current = &c
	}

	index := make(map[string]int, len(q.items))
	for i, item := range q.items {
		index[item.UID.String()] = i
	}

	next := make([]Item, 0, len(q.items))
	taken := make(map[int]struct{}, len(q.items))
	for _, u := range ordered {
		if i, ok := index[u.String()]; ok {
			if _, dup := taken[i]; !dup {
				next = append(next, q.items[i])
				taken[i] = struct{}{}
			}
		}
	}
	for i, item := range q.items {
		if _, ok := taken[i]; !ok {
			next = append(next, item)
		}
	}
	q.items = next

	// Keep the cursor on the same item across the reorder.
	if current != nil {
		for i, item := range q.items {
			if item.UID.Equal(current.UID) {
				q.index = i
				break
			}
		}
	}
	q.reshuffle()
	return true
}

// ToggleShuffle flips shuffle and returns the new state. The permutation is
// regenerated each time shuffle turns on.
func (q *Queue) ToggleShuffle() bool {
	q.shuffle = !q.shuffle
	q.reshuffle()
	return q.shuffle
}

// Clear empties the queue and returns the removed items so their UIDs (and
// every derived nested-collection-track UID) can be unsubscribed in one
// batch per kind.
func (q *Queue) Clear() (removed []Item) {
	removed = q.items
	q.items = nil
	q.index = 0
	q.order = nil
	q.playbackSource = ""
	q.playing = false
	return removed
}

// QueuedEntryUID returns the originating entry UID of the queue position
// already referencing (kind, id) under the given source, so a lineup
// re-fetch can reuse it instead of minting a fresh UID.
func (q *Queue) QueuedEntryUID(source string, kind models.Kind, id int64) (uid.UID, bool) {
	for _, item := range q.items {
		if item.Source == source && item.Kind == kind && item.ID == id {
			return item.EntryUID, true
		}
	}
	return uid.UID{}, false
}

// step returns the index one hop away in play order, reporting false at the
// boundary. In shuffle mode play order is the stored permutation.
func (q *Queue) step(dir int) (int, bool) {
	if !q.shuffle {
		next := q.index + dir
		if next < 0 || next >= len(q.items) {
			return 0, false
		}
		return next, true
	}

	pos := 0
	for i, idx := range q.order {
		if idx == q.index {
			pos = i
			break
		}
	}
	pos += dir
	if pos < 0 || pos >= len(q.order) {
		return 0, false
	}
	return q.order[pos], true
}

func (q *Queue) first() int {
	if q.shuffle && len(q.order) > 0 {
		return q.order[0]
	}
	return 0
}

func (q *Queue) last() int {
	if q.shuffle && len(q.order) > 0 {
		return q.order[len(q.order)-1]
	}
	return len(q.items) - 1
}

func (q *Queue) reshuffle() {
	if !q.shuffle {
		q.order = nil
		return
	}
	q.order = make([]int, len(q.items))
	for i := range q.order {
		q.order[i] = i
	}
	swap := func(i, j int) { q.order[i], q.order[j] = q.order[j], q.order[i] }
	if q.rng != nil {
		q.rng.Shuffle(len(q.order), swap)
	} else {
		rand.Shuffle(len(q.order), swap)
	}
}
