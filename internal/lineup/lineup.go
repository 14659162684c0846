// Package lineup implements the per-view ordered state the client renders:
// entries carrying context-distinct UIDs, a pagination cursor, a fetch status
// machine, and an optional cross-page dedupe set.
//
// A Lineup is pure state; it performs no I/O and takes no locks. The store
// package owns the locking and wires lineup mutations to cache subscription
// changes, so the invariants here stay auditable: a published entry's entity
// is always in the cache before the entry is visible, and Reset hands every
// removed entry back to the caller for unsubscription.
package lineup

import (
	"fmt"

	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/uid"
)

// Status is the fetch state of a lineup.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return ""
	}
}

// Entry is one ordered element of a lineup. Retained holds the projection of
// metadata fields the view pins inline (the retain selector's output); all
// other fields are looked up from the cache by (Kind, ID).
//
// Owner and Nested record the exact UIDs this entry's commit subscribed
// alongside its own: the embedded owner's UID and, for collections, every
// nested track UID. Teardown releases these recorded UIDs rather than
// re-deriving them, so later metadata updates cannot orphan a subscription.
type Entry struct {
	UID      uid.UID
	Kind     models.Kind
	ID       int64
	Retained map[string]any
	Owner    uid.UID
	Nested   []uid.UID
}

// DedupeKey identifies the logical entity independent of context, used to
// suppress repeats across pages when dedupe is enabled.
func (e Entry) DedupeKey() string {
	return fmt.Sprintf("%s:%d", e.Kind, e.ID)
}

// Lineup is the ordered, paginated, fetch-stateful view state for one prefix.
type Lineup struct {
	Prefix  string
	Source  string
	Entries []Entry
	Status  Status
	Offset  int
	Limit   int
	Total   int
	Dedupe  bool
	InView  bool

	// Counts from the most recent successful page, surfaced so the caller
	// can render "N items removed".
	NullCount    int
	DeletedCount int

	entryIDs map[string]struct{}
}

// New creates an idle lineup for the given view-instance prefix.
func New(prefix string, dedupe bool) *Lineup {
	return &Lineup{
		Prefix:   prefix,
		Status:   StatusIdle,
		Dedupe:   dedupe,
		entryIDs: make(map[string]struct{}),
	}
}

// BeginFetch transitions the lineup to LOADING and records the logical source
// key the in-flight fetch was issued under.
func (l *Lineup) BeginFetch(source string, offset, limit int) {
	l.Status = StatusLoading
	l.Source = source
	l.Offset = offset
	l.Limit = limit
}

// Publish applies a successful page. When overwrite is set the previous
// entries are replaced (and returned as removed, so the caller can tear down
// their subscriptions); otherwise the page appends. With dedupe enabled,
// entries whose logical (kind, id) was already seen by this lineup instance
// are silently dropped across pages.
//
// Returns the entries actually accepted into the lineup and the entries
// removed by an overwrite.
func (l *Lineup) Publish(entries []Entry, offset, limit, nullCount, deletedCount int, overwrite bool) (accepted, removed []Entry) {
	if overwrite {
		removed = l.Entries
		l.Entries = nil
		l.entryIDs = make(map[string]struct{})
	}

	for _, e := range entries {
		if l.Dedupe {
			key := e.DedupeKey()
			if _, seen := l.entryIDs[key]; seen {
				continue
			}
			l.entryIDs[key] = struct{}{}
		}
		l.Entries = append(l.Entries, e)
		accepted = append(accepted, e)
	}

	l.Status = StatusSuccess
	l.Offset = offset
	l.Limit = limit
	l.Total = len(l.Entries)
	l.NullCount = nullCount
	l.DeletedCount = deletedCount
	return accepted, removed
}

// Fail transitions the lineup to FAILED. Entries are left untouched; a failed
// page writes nothing.
func (l *Lineup) Fail() {
	l.Status = StatusFailed
}

// Matches reports whether a reset with the given source applies to this
// lineup: an absent source matches unconditionally.
func (l *Lineup) Matches(source string) bool {
	return source == "" || source == l.Source
}

// Reset returns the lineup to IDLE, clearing entries and the dedupe set. The
// removed entries are returned so the caller can unsubscribe their UIDs.
func (l *Lineup) Reset() (removed []Entry) {
	removed = l.Entries
	l.Entries = nil
	l.entryIDs = make(map[string]struct{})
	l.Status = StatusIdle
	l.Offset = 0
	l.Total = 0
	l.NullCount = 0
	l.DeletedCount = 0
	return removed
}

// Add inserts a single entry at the end of the lineup, honoring dedupe.
// Reports whether the entry was accepted.
func (l *Lineup) Add(e Entry) bool {
	if l.Dedupe {
		key := e.DedupeKey()
		if _, seen := l.entryIDs[key]; seen {
			return false
		}
		l.entryIDs[key] = struct{}{}
	}
	l.Entries = append(l.Entries, e)
	l.Total = len(l.Entries)
	return true
}

// Remove deletes the entry carrying the given UID. Returns the removed entry
// so the caller can unsubscribe it, or false when no entry matches.
func (l *Lineup) Remove(kind models.Kind, u uid.UID) (Entry, bool) {
	for i, e := range l.Entries {
		if e.Kind == kind && e.UID.Equal(u) {
			l.Entries = append(l.Entries[:i:i], l.Entries[i+1:]...)
			l.Total = len(l.Entries)
			if l.Dedupe {
				delete(l.entryIDs, e.DedupeKey())
			}
			return e, true
		}
	}
	return Entry{}, false
}

// ApplyOrder reorders entries to match the given UID sequence. UIDs not in
// the lineup are ignored; entries not named keep their relative order after
// the named ones. Returns whether anything moved.
func (l *Lineup) ApplyOrder(ordered []uid.UID) bool {
	index := make(map[string]int, len(l.Entries))
	for i, e := range l.Entries {
		index[e.UID.String()] = i
	}

	next := make([]Entry, 0, len(l.Entries))
	taken := make(map[int]struct{}, len(l.Entries))
	for _, u := range ordered {
		if i, ok := index[u.String()]; ok {
			if _, dup := taken[i]; !dup {
				next = append(next, l.Entries[i])
				taken[i] = struct{}{}
			}
		}
	}
	for i, e := range l.Entries {
		if _, ok := taken[i]; !ok {
			next = append(next, e)
		}
	}

	moved := false
	for i := range next {
		if !next[i].UID.Equal(l.Entries[i].UID) {
			moved = true
			break
		}
	}
	l.Entries = next
	return moved
}

// Entry returns the entry carrying the given UID.
func (l *Lineup) Entry(u uid.UID) (Entry, bool) {
	for _, e := range l.Entries {
		if e.UID.Equal(u) {
			return e, true
		}
	}
	return Entry{}, false
}

// Snapshot returns a copy of the lineup safe to hand to readers. The dedupe
// set is internal state and is not copied.
func (l *Lineup) Snapshot() Lineup {
	out := *l
	out.Entries = make([]Entry, len(l.Entries))
	copy(out.Entries, l.Entries)
	out.entryIDs = nil
	return out
}
