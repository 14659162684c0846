package store

import (
	"context"
	"fmt"

	"github.com/halcyonfm/trackline/internal/cache"
	"github.com/halcyonfm/trackline/internal/lineup"
	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/queue"
	"github.com/halcyonfm/trackline/internal/shared"
	"github.com/halcyonfm/trackline/internal/tasks"
	"github.com/halcyonfm/trackline/internal/uid"
)

// Dispatch applies one intent against the lineup registered under prefix.
// Every state transition is serialized through the store mutex; fetch work
// runs on a background goroutine and lands via [Store.CommitPage].
func (s *Store) Dispatch(ctx context.Context, prefix string, intent lineup.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.lineups[prefix]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrUnknownLineup, prefix)
	}

	switch it := intent.(type) {
	case lineup.FetchMetadatas:
		return s.beginFetch(ctx, reg, tasks.PageRequest{
			Offset:    it.Offset,
			Limit:     it.Limit,
			Overwrite: it.Overwrite,
			Payload:   it.Payload,
		})
	case lineup.RefreshInView:
		if !reg.lin.InView {
			return nil
		}
		return s.beginFetch(ctx, reg, tasks.PageRequest{Limit: it.Limit, Overwrite: true, Payload: it.Payload})
	case lineup.Reset:
		s.resetLineup(reg, it.Source)
		return nil
	case lineup.Play:
		return s.play(reg, it.UID)
	case lineup.Pause:
		s.queue.Pause()
		return nil
	case lineup.Add:
		return s.addEntry(reg, it.Entry)
	case lineup.Remove:
		return s.removeEntry(reg, it.Kind, it.UID)
	case lineup.UpdateOrder:
		return s.reorder(reg, it.UIDs)
	case lineup.SetInView:
		reg.lin.InView = it.InView
		return nil
	default:
		return fmt.Errorf("%w: unhandled intent %T", shared.ErrInvalidInput, intent)
	}
}

// beginFetch starts a page fetch for reg. At most one fetch per lineup is in
// flight; a second is rejected rather than queued. Called with mu held.
func (s *Store) beginFetch(ctx context.Context, reg *registration, req tasks.PageRequest) error {
	if reg.cancel != nil {
		return fmt.Errorf("%w: %s", shared.ErrFetchInFlight, reg.cfg.Prefix)
	}

	source := reg.cfg.SourceFor(req.Payload)
	reg.lin.BeginFetch(source, req.Offset, req.Limit)

	fetchCtx, cancel := context.WithCancel(ctx)
	reg.cancel = cancel
	id := shared.GenerateID()
	reg.fetchID = id

	go func() {
		defer cancel()
		// Failures and cancellations are reported by the engine and sink;
		// nothing to do with the return value here.
		_ = s.engine.FetchPage(fetchCtx, reg.cfg, req, s.updates)

		s.mu.Lock()
		if reg.fetchID == id {
			reg.cancel = nil
		}
		s.mu.Unlock()
	}()
	return nil
}

// resetLineup cancels any in-flight fetch and releases every subscription the
// lineup holds. When the lineup was driving playback the queue is cleared and
// torn down in the same pass. An empty source matches unconditionally.
func (s *Store) resetLineup(reg *registration, source string) {
	if !reg.lin.Matches(source) {
		return
	}
	if reg.cancel != nil {
		reg.cancel()
		reg.cancel = nil
	}

	current := reg.lin.Source
	removed := reg.lin.Reset()
	s.teardownEntries(removed, nil)

	if current != "" && s.queue.Source() == current {
		cleared := s.queue.Clear()
		s.unsubscribeQueueItems(cleared, nil)
	}
}

// play starts playback from the entry carrying u. When the entry's lineup is
// already driving an active queue only the cursor moves; otherwise the queue
// is rebuilt wholesale from the lineup's current entries.
func (s *Store) play(reg *registration, u uid.UID) error {
	source := u.Source()
	if s.queue.Source() == source && s.queue.IsPlaying() {
		if !s.queue.CursorTo(u) {
			return fmt.Errorf("%w: %s", shared.ErrEntryNotFound, u.String())
		}
		return nil
	}

	if _, ok := reg.lin.Entry(u); !ok {
		return fmt.Errorf("%w: %s", shared.ErrEntryNotFound, u.String())
	}

	items := make([]queue.Item, 0, len(reg.lin.Entries))
	for _, e := range reg.lin.Entries {
		items = append(items, s.queueItem(e, source))
	}

	keep := make(map[string]struct{}, len(items))
	for _, item := range items {
		keep[item.UID.String()] = struct{}{}
		for _, d := range item.Derived {
			keep[d.String()] = struct{}{}
		}
	}

	removed := s.queue.Replace(source, items)
	s.subscribeQueueItems(items)
	s.unsubscribeQueueItems(removed, keep)
	s.queue.CursorTo(u)
	return nil
}

// addEntry appends an out-of-band entry (a local pin) to the lineup and takes
// out its cache subscription. When the lineup drives playback the queue
// mirrors the addition.
func (s *Store) addEntry(reg *registration, e lineup.Entry) error {
	if !e.UID.Valid() {
		return fmt.Errorf("%w: invalid uid %q", shared.ErrInvalidInput, e.UID.String())
	}
	if !reg.lin.Add(e) {
		return fmt.Errorf("%w: duplicate entry %s", shared.ErrInvalidInput, e.DedupeKey())
	}
	s.cache.Subscribe(e.Kind, []cache.Ref{{UID: e.UID, ID: e.ID}})

	if reg.lin.Source != "" && s.queue.Source() == reg.lin.Source {
		item := s.queueItem(e, reg.lin.Source)
		s.queue.Append([]queue.Item{item})
		s.subscribeQueueItems([]queue.Item{item})
	}
	return nil
}

// removeEntry deletes the entry carrying u from the lineup and releases its
// subscription tree. The queue is left untouched: queued items hold their own
// subscriptions, so the entity stays alive until the queue itself turns over.
func (s *Store) removeEntry(reg *registration, kind models.Kind, u uid.UID) error {
	entry, ok := reg.lin.Remove(kind, u)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrEntryNotFound, u.String())
	}
	s.teardownEntries([]lineup.Entry{entry}, nil)
	return nil
}

// reorder applies a new entry order to the lineup and forwards it to the
// queue re-keyed into queue UIDs. The queue side only applies when this
// lineup is driving playback.
func (s *Store) reorder(reg *registration, ordered []uid.UID) error {
	reg.lin.ApplyOrder(ordered)

	queueOrder := make([]uid.UID, len(ordered))
	for i, u := range ordered {
		queueOrder[i] = u.WithChainSegment(uid.QueueSegment)
	}
	s.queue.Reorder(reg.lin.Source, queueOrder)
	return nil
}
