package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/halcyonfm/trackline/internal/cache"
	"github.com/halcyonfm/trackline/internal/lineup"
	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/services"
	"github.com/halcyonfm/trackline/internal/shared"
	"github.com/halcyonfm/trackline/internal/uid"
)

// FetchFunc pulls one raw page for a lineup from the catalog provider.
type FetchFunc func(ctx context.Context, args services.PageArgs) ([]models.RawItem, error)

// RetainFunc selects payload fields preserved on the published lineup entry.
// A nil RetainFunc retains nothing.
type RetainFunc func(item models.RawItem) map[string]any

// SourceFunc derives the source key of a fetch from its page payload, for
// lineups that represent multiple sub-identities under one prefix (a
// per-profile page keyed by user id, a search keyed by query).
type SourceFunc func(payload map[string]any) string

// LineupConfig describes one registered lineup: where its pages come from and
// how raw items are filtered and retained.
type LineupConfig struct {
	Prefix string
	Fetch  FetchFunc
	Retain RetainFunc
	Source SourceFunc // optional; defaults to Prefix
	Dedupe bool

	// KeepDeleted keeps items flagged deleted instead of dropping them, for
	// library views that surface tombstones.
	KeepDeleted bool
	// KeepGated keeps stream-gated tracks and private collections, for views
	// over the signed-in user's own catalog.
	KeepGated bool
}

// SourceFor resolves the source key for a fetch with the given payload.
func (c LineupConfig) SourceFor(payload map[string]any) string {
	if c.Source != nil {
		if s := c.Source(payload); s != "" {
			return s
		}
	}
	return c.Prefix
}

// PageRequest identifies one page fetch against a lineup.
type PageRequest struct {
	Offset    int
	Limit     int
	Overwrite bool
	Payload   map[string]any
}

// PageCommit is the fully prepared result of one page fetch. Everything in it
// is plain data; the sink applies it atomically or discards it whole.
//
// Cache batches are ordered: Collections are written first, then NestedTracks
// subscribed, then Tracks and Users, so a reader never observes an entry whose
// nested references point at nothing.
type PageCommit struct {
	Prefix    string
	Source    string
	Offset    int
	Limit     int
	Overwrite bool

	Collections  []cache.AddItem
	NestedTracks []cache.Ref
	Tracks       []cache.AddItem
	Users        []cache.AddItem

	Entries      []lineup.Entry
	Raw          []models.RawItem // surviving raw items, for write-through archival
	NullCount    int
	DeletedCount int
}

// CommitSink applies prepared pages to client state. Implementations must
// honor ctx: a page whose fetch was cancelled is discarded without any state
// change, returning [shared.ErrFetchCancelled].
type CommitSink interface {
	CommitPage(ctx context.Context, commit PageCommit) error
	FailPage(ctx context.Context, prefix, source string, cause error)
}

// QueueIndex reports whether an entity is already queued under a source, so a
// re-fetched page can reuse the identifier the queue item was keyed from.
type QueueIndex interface {
	QueuedEntryUID(source string, kind models.Kind, id int64) (uid.UID, bool)
}

// EntryIndex reports whether a lineup already holds an entry under a UID.
// Appending pages consult it so a repeat of a logical id never mints a UID
// byte-identical to one already published.
type EntryIndex interface {
	EntryUIDHeld(prefix string, u uid.UID) bool
}

// EngineConfig carries the dependencies of an [Engine].
type EngineConfig struct {
	Sink    CommitSink
	Queued  QueueIndex
	Held    EntryIndex
	Limiter *rate.Limiter // optional provider rate limit
	// FirstPageDelay inserts a pause before the first page of a freshly reset
	// lineup, smoothing over rapid view switches.
	FirstPageDelay time.Duration
	Logger         *log.Logger
}

// Engine runs page fetches and hands the prepared results to a [CommitSink].
type Engine struct {
	sink           CommitSink
	queued         QueueIndex
	held           EntryIndex
	limiter        *rate.Limiter
	firstPageDelay time.Duration
	logger         *log.Logger
}

// NewEngine creates an Engine from cfg. Sink is required; a nil Logger is
// replaced with the default logger.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Sink == nil {
		return nil, fmt.Errorf("%w: commit sink not configured", shared.ErrServiceUnavailable)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		sink:           cfg.Sink,
		queued:         cfg.Queued,
		held:           cfg.Held,
		limiter:        cfg.Limiter,
		firstPageDelay: cfg.FirstPageDelay,
		logger:         logger,
	}, nil
}

// FetchPage runs one page fetch end to end: rate limiting, provider call,
// filter pass, identifier assignment, and commit. Cancellation of ctx at any
// point abandons the page without committing.
func (e *Engine) FetchPage(ctx context.Context, cfg LineupConfig, req PageRequest, progress chan<- Update) error {
	source := cfg.SourceFor(req.Payload)

	if req.Offset == 0 && e.firstPageDelay > 0 {
		timer := time.NewTimer(e.firstPageDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %s", shared.ErrFetchCancelled, cfg.Prefix)
		case <-timer.C:
		}
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s", shared.ErrFetchCancelled, cfg.Prefix)
		}
	}

	sendProgress(progress, fetchStartedUpdate(cfg.Prefix, source, req.Offset, req.Limit))

	items, err := cfg.Fetch(ctx, services.PageArgs{Offset: req.Offset, Limit: req.Limit, Payload: req.Payload})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", shared.ErrFetchCancelled, cfg.Prefix)
		}
		e.logger.Warn("page fetch failed", "prefix", cfg.Prefix, "source", source, "offset", req.Offset, "err", err)
		e.sink.FailPage(ctx, cfg.Prefix, source, err)
		sendProgress(progress, fetchFailedUpdate(cfg.Prefix, source, err))
		return err
	}

	commit := preparePage(cfg, source, req, items, e.queued, e.held)
	if err := e.sink.CommitPage(ctx, commit); err != nil {
		if errors.Is(err, shared.ErrFetchCancelled) {
			e.logger.Debug("page discarded", "prefix", cfg.Prefix, "source", source, "offset", req.Offset)
		}
		return err
	}

	sendProgress(progress, fetchSucceededUpdate(commit))
	return nil
}

// preparePage runs the filter pass and identifier assignment over one raw
// page. It is pure apart from the queue and entry index lookups.
func preparePage(cfg LineupConfig, source string, req PageRequest, items []models.RawItem, queued QueueIndex, held EntryIndex) PageCommit {
	commit := PageCommit{
		Prefix:    cfg.Prefix,
		Source:    source,
		Offset:    req.Offset,
		Limit:     req.Limit,
		Overwrite: req.Overwrite,
	}

	// UIDs minted for this page, plus (unless overwriting) any already held by
	// the lineup. Repeats of one logical id in a non-dedupe lineup each get an
	// occurrence index so no two entries ever share a cache subscription.
	minted := make(map[string]struct{})
	taken := func(u uid.UID) bool {
		if _, dup := minted[u.String()]; dup {
			return true
		}
		return !req.Overwrite && held != nil && held.EntryUIDHeld(cfg.Prefix, u)
	}

	for _, item := range items {
		if item.IsNull() {
			commit.NullCount++
			continue
		}
		if !survives(cfg, item) {
			continue
		}

		kind, id := item.Kind(), item.ID()

		var entryUID uid.UID
		var queuedMatch bool
		if queued != nil {
			entryUID, queuedMatch = queued.QueuedEntryUID(source, kind, id)
			queuedMatch = queuedMatch && !taken(entryUID)
		}
		if !queuedMatch {
			base := uid.Make(kind, id, source)
			entryUID = base
			if !cfg.Dedupe {
				for i := 1; taken(entryUID); i++ {
					entryUID = base.WithIndex(i)
				}
			}
		}
		minted[entryUID.String()] = struct{}{}

		entry := lineup.Entry{UID: entryUID, Kind: kind, ID: id}

		var owner models.RawUser
		switch kind {
		case models.KindTrack:
			owner = item.Track.User
			commit.Tracks = append(commit.Tracks, cache.AddItem{
				ID:       id,
				UID:      entryUID,
				Metadata: models.TrackMetadata(item.Track),
			})
		case models.KindCollection:
			owner = item.Collection.User
			commit.Collections = append(commit.Collections, cache.AddItem{
				ID:       id,
				UID:      entryUID,
				Metadata: models.CollectionMetadata(item.Collection),
			})
			segment := uid.CollectionSegment(id)
			if entryUID.HasIndex() {
				// Later occurrences of the same collection nest under their
				// own segment so their track subscriptions stay independent.
				segment += "." + strconv.Itoa(entryUID.Index)
			}
			for i, ref := range item.Collection.PlaylistContents.TrackIDs {
				nested := uid.Make(models.KindTrack, ref.Track, source, segment).WithIndex(i)
				commit.NestedTracks = append(commit.NestedTracks, cache.Ref{UID: nested, ID: ref.Track})
				entry.Nested = append(entry.Nested, nested)
			}
		}

		ownerUID := uid.Make(models.KindUser, owner.UserID, source, uid.OwnerSegment(kind, id))
		if entryUID.HasIndex() {
			ownerUID = ownerUID.WithIndex(entryUID.Index)
		}
		commit.Users = append(commit.Users, cache.AddItem{
			ID:       owner.UserID,
			UID:      ownerUID,
			Metadata: models.UserMetadata(&owner),
		})
		entry.Owner = ownerUID

		if cfg.Retain != nil {
			entry.Retained = cfg.Retain(item)
		}
		commit.Entries = append(commit.Entries, entry)
		commit.Raw = append(commit.Raw, item)
	}

	if n := req.Limit - len(commit.Entries) - commit.NullCount; n > 0 {
		commit.DeletedCount = n
	}
	return commit
}

// survives applies the filter rules of cfg to a non-null item.
func survives(cfg LineupConfig, item models.RawItem) bool {
	switch {
	case item.Track != nil:
		t := item.Track
		if t.IsDelete && !cfg.KeepDeleted {
			return false
		}
		if t.User.IsDeactivated {
			return false
		}
		if t.IsStreamGated && !cfg.KeepGated {
			return false
		}
	case item.Collection != nil:
		c := item.Collection
		if c.IsDelete && !cfg.KeepDeleted {
			return false
		}
		if c.User.IsDeactivated {
			return false
		}
		if c.IsPrivate && !cfg.KeepGated {
			return false
		}
	}
	return true
}
