package store

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/halcyonfm/trackline/internal/cache"
	"github.com/halcyonfm/trackline/internal/lineup"
	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/queue"
	"github.com/halcyonfm/trackline/internal/shared"
	"github.com/halcyonfm/trackline/internal/tasks"
	"github.com/halcyonfm/trackline/internal/uid"
)

// Archiver persists surviving raw items for offline browsing. Writes are
// best-effort: failures are logged and never block a page commit.
type Archiver interface {
	ArchiveTrack(t *models.RawTrack) error
	ArchiveCollection(c *models.RawCollection) error
}

// registration pairs a lineup with its fetch configuration and the cancel
// handle of the in-flight fetch, if any. fetchID tokens the in-flight fetch
// so a finished goroutine only clears its own cancel handle.
type registration struct {
	cfg     tasks.LineupConfig
	lin     *lineup.Lineup
	cancel  context.CancelFunc
	fetchID string
}

// Store is the single owner of client state. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	cache    *cache.Cache
	queue    *queue.Queue
	engine   *tasks.Engine
	lineups  map[string]*registration
	archiver Archiver
	logger   *log.Logger
	updates  chan tasks.Update
}

// Config carries the optional dependencies of a [Store].
type Config struct {
	Logger   *log.Logger
	Archiver Archiver
	Limiter  *rate.Limiter // provider rate limit shared by all lineups
	// FirstPageDelay is passed through to the fetch engine; see
	// [tasks.EngineConfig].
	FirstPageDelay time.Duration
	Rand           *rand.Rand // shuffle permutation source
}

// New creates a Store with an empty cache and queue. Lineups are added
// afterwards with [Store.Register].
func New(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Store{
		cache:    cache.New(logger),
		queue:    queue.New(cfg.Rand),
		lineups:  make(map[string]*registration),
		archiver: cfg.Archiver,
		logger:   logger,
		updates:  make(chan tasks.Update, 64),
	}
	engine, err := tasks.NewEngine(tasks.EngineConfig{
		Sink:           s,
		Queued:         s,
		Held:           s,
		Limiter:        cfg.Limiter,
		FirstPageDelay: cfg.FirstPageDelay,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return s, nil
}

// Register adds a lineup under its prefix. Prefixes are unique per store.
func (s *Store) Register(cfg tasks.LineupConfig) error {
	if cfg.Prefix == "" || cfg.Fetch == nil {
		return fmt.Errorf("%w: lineup needs a prefix and a fetch func", shared.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lineups[cfg.Prefix]; ok {
		return fmt.Errorf("%w: prefix %q already registered", shared.ErrInvalidInput, cfg.Prefix)
	}
	s.lineups[cfg.Prefix] = &registration{cfg: cfg, lin: lineup.New(cfg.Prefix, cfg.Dedupe)}
	return nil
}

// Updates returns the fetch progress stream consumed by CLI/UI layers.
// Events are dropped rather than blocking a fetch when nobody reads.
func (s *Store) Updates() <-chan tasks.Update { return s.updates }

// QueuedEntryUID implements [tasks.QueueIndex].
func (s *Store) QueuedEntryUID(source string, kind models.Kind, id int64) (uid.UID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.QueuedEntryUID(source, kind, id)
}

// EntryUIDHeld implements [tasks.EntryIndex].
func (s *Store) EntryUIDHeld(prefix string, u uid.UID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.lineups[prefix]
	if !ok {
		return false
	}
	_, held := reg.lin.Entry(u)
	return held
}

// CommitPage implements [tasks.CommitSink]. The whole page lands under one
// mutex acquisition, cache writes before lineup publication, so a reader can
// never observe a published entry whose entity is missing. A cancelled fetch
// context discards the page without touching any state.
func (s *Store) CommitPage(ctx context.Context, commit tasks.PageCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s", shared.ErrFetchCancelled, commit.Prefix)
	}
	reg, ok := s.lineups[commit.Prefix]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrUnknownLineup, commit.Prefix)
	}

	s.cache.Add(models.KindCollection, commit.Collections)
	s.cache.Subscribe(models.KindTrack, commit.NestedTracks)
	s.cache.Add(models.KindTrack, commit.Tracks)
	s.cache.Add(models.KindUser, commit.Users)

	accepted, removed := reg.lin.Publish(commit.Entries, commit.Offset, commit.Limit,
		commit.NullCount, commit.DeletedCount, commit.Overwrite)

	// Entries rejected by dedupe, and entries displaced by an overwrite,
	// give their subscriptions back. Any UID in a surviving entry's tree is
	// left alone: rejected duplicates share their UID string with the entry
	// that beat them, and an overwrite that reused a queued identifier
	// re-established the very subscriptions the displaced entry held.
	keep := make(map[string]struct{})
	var stale []lineup.Entry
	for _, e := range commit.Entries {
		if _, held := reg.lin.Entry(e.UID); held {
			keep[e.UID.String()] = struct{}{}
			keep[e.Owner.String()] = struct{}{}
			for _, n := range e.Nested {
				keep[n.String()] = struct{}{}
			}
		} else {
			stale = append(stale, e)
		}
	}
	stale = append(stale, removed...)
	s.teardownEntries(stale, keep)

	if s.queue.Source() == commit.Source {
		s.mirrorAccepted(commit.Source, accepted)
	}

	s.archive(commit.Raw)
	return nil
}

// FailPage implements [tasks.CommitSink]. A failure arriving after the
// lineup moved on (reset, or refetched under a different source) is ignored.
func (s *Store) FailPage(ctx context.Context, prefix, source string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	reg, ok := s.lineups[prefix]
	if !ok || reg.lin.Source != source {
		return
	}
	reg.lin.Fail()
	s.logger.Error("lineup fetch failed", "prefix", prefix, "source", source, "err", cause)
}

// mirrorAccepted appends newly published entries onto the queue when their
// lineup is the one driving playback. Entries whose entity is already queued
// under this source arrived with a reused UID and are already present.
func (s *Store) mirrorAccepted(source string, entries []lineup.Entry) {
	var items []queue.Item
	for _, e := range entries {
		if _, queued := s.queue.QueuedEntryUID(source, e.Kind, e.ID); queued {
			continue
		}
		items = append(items, s.queueItem(e, source))
	}
	if len(items) == 0 {
		return
	}
	s.queue.Append(items)
	s.subscribeQueueItems(items)
}

// queueItem re-keys a lineup entry for the queue. For collections the nested
// track UIDs recorded on the entry are re-keyed with the queue segment so the
// queue's subscription tree covers every playable track, not just the
// collection entity. Pinned entries carry no recorded tree; their track list
// falls back to cache metadata.
func (s *Store) queueItem(e lineup.Entry, source string) queue.Item {
	item := queue.FromEntry(e, source)
	if e.Kind != models.KindCollection {
		return item
	}
	for _, n := range e.Nested {
		item.Derived = append(item.Derived, n.WithChainSegment(uid.QueueSegment))
	}
	if len(item.Derived) > 0 {
		return item
	}
	ent, ok := s.cache.Get(models.KindCollection, e.ID)
	if !ok {
		return item
	}
	for i, ref := range models.CollectionTrackRefs(ent.Metadata) {
		derived := uid.Make(models.KindTrack, ref.Track, source, uid.CollectionSegment(e.ID), uid.QueueSegment).WithIndex(i)
		item.Derived = append(item.Derived, derived)
	}
	return item
}

func (s *Store) subscribeQueueItems(items []queue.Item) {
	refs := make(map[models.Kind][]cache.Ref)
	for _, item := range items {
		refs[item.Kind] = append(refs[item.Kind], cache.Ref{UID: item.UID, ID: item.ID})
		for _, d := range item.Derived {
			refs[models.KindTrack] = append(refs[models.KindTrack], cache.Ref{UID: d, ID: d.ID})
		}
	}
	for kind, r := range refs {
		s.cache.Subscribe(kind, r)
	}
}

// unsubscribeQueueItems releases the subscriptions of removed queue items,
// one batch per kind. UIDs named in keep survive; a rebuild that reuses a
// UID string must not tear down the subscription it just re-established.
func (s *Store) unsubscribeQueueItems(items []queue.Item, keep map[string]struct{}) {
	uids := make(map[models.Kind][]uid.UID)
	drop := func(kind models.Kind, u uid.UID) {
		if _, kept := keep[u.String()]; kept {
			return
		}
		uids[kind] = append(uids[kind], u)
	}
	for _, item := range items {
		drop(item.Kind, item.UID)
		for _, d := range item.Derived {
			drop(models.KindTrack, d)
		}
	}
	for kind, us := range uids {
		s.cache.Unsubscribe(kind, us)
	}
}

// teardownEntries releases the cache subscriptions held by entries that left
// a lineup: the entry's own UID, its recorded owner UID, and for collections
// every recorded nested track UID. The recorded tree is authoritative even
// when cache metadata has since been overwritten. UIDs named in keep are part
// of a surviving entry's tree and stay subscribed.
func (s *Store) teardownEntries(entries []lineup.Entry, keep map[string]struct{}) {
	uids := make(map[models.Kind][]uid.UID)
	seen := make(map[string]struct{})
	drop := func(kind models.Kind, u uid.UID) {
		key := u.String()
		if _, kept := keep[key]; kept {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		uids[kind] = append(uids[kind], u)
	}

	for _, e := range entries {
		drop(e.Kind, e.UID)
		if e.Owner.Valid() {
			drop(models.KindUser, e.Owner)
		}
		for _, n := range e.Nested {
			drop(models.KindTrack, n)
		}
	}

	for kind, us := range uids {
		s.cache.Unsubscribe(kind, us)
	}
}

func (s *Store) archive(raw []models.RawItem) {
	if s.archiver == nil {
		return
	}
	for _, item := range raw {
		var err error
		switch {
		case item.Track != nil:
			err = s.archiver.ArchiveTrack(item.Track)
		case item.Collection != nil:
			err = s.archiver.ArchiveCollection(item.Collection)
		}
		if err != nil {
			s.logger.Warn("archive write failed", "kind", item.Kind(), "id", item.ID(), "err", err)
		}
	}
}
