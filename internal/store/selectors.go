package store

import (
	"fmt"

	"github.com/halcyonfm/trackline/internal/cache"
	"github.com/halcyonfm/trackline/internal/lineup"
	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/queue"
	"github.com/halcyonfm/trackline/internal/shared"
	"github.com/halcyonfm/trackline/internal/uid"
)

// Lineup returns a snapshot of the lineup registered under prefix.
func (s *Store) Lineup(prefix string) (lineup.Lineup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.lineups[prefix]
	if !ok {
		return lineup.Lineup{}, fmt.Errorf("%w: %s", shared.ErrUnknownLineup, prefix)
	}
	return reg.lin.Snapshot(), nil
}

// Prefixes returns the registered lineup prefixes.
func (s *Store) Prefixes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.lineups))
	for prefix := range s.lineups {
		out = append(out, prefix)
	}
	return out
}

// Entity returns a snapshot of the cached entity for (kind, id).
func (s *Store) Entity(kind models.Kind, id int64) (cache.Entity, bool) {
	return s.cache.Get(kind, id)
}

// EntityByUID resolves a UID to its cached entity snapshot.
func (s *Store) EntityByUID(u uid.UID) (cache.Entity, bool) {
	return s.cache.GetByUID(u)
}

// NowPlaying returns the queue item under the cursor and whether playback is
// active.
func (s *Store) NowPlaying() (queue.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.queue.Current()
	return item, ok && s.queue.IsPlaying()
}

// IsPlayingUID reports whether playback is active on the item derived from
// the given lineup entry UID.
func (s *Store) IsPlayingUID(u uid.UID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.queue.IsPlaying() {
		return false
	}
	item, ok := s.queue.Current()
	return ok && item.EntryUID.Equal(u)
}

// QueueItems returns a copy of the queued items in order.
func (s *Store) QueueItems() []queue.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Items()
}

// QueueSource returns the source of the lineup driving playback, or "" when
// nothing is queued.
func (s *Store) QueueSource() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Source()
}

// NextTrack advances playback, honoring repeat mode and shuffle.
func (s *Store) NextTrack() (queue.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Next()
}

// PreviousTrack steps playback backwards.
func (s *Store) PreviousTrack() (queue.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Previous()
}

// Resume restarts playback at the cursor.
func (s *Store) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Resume()
}

// ToggleShuffle flips shuffle mode and returns the new state.
func (s *Store) ToggleShuffle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.ToggleShuffle()
}

// RepeatMode returns the current repeat mode.
func (s *Store) RepeatMode() queue.RepeatMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Repeat()
}

// SetRepeat sets the repeat mode.
func (s *Store) SetRepeat(mode queue.RepeatMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.SetRepeat(mode)
}

// ClearQueue empties the queue and releases every queued subscription,
// including derived nested-collection-track UIDs, one batch per kind.
func (s *Store) ClearQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := s.queue.Clear()
	s.unsubscribeQueueItems(cleared, nil)
}
