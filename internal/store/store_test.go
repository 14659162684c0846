package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/halcyonfm/trackline/internal/lineup"
	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/services"
	"github.com/halcyonfm/trackline/internal/shared"
	"github.com/halcyonfm/trackline/internal/tasks"
	"github.com/halcyonfm/trackline/internal/uid"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Logger: shared.NewLogger(io.Discard)})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return s
}

func rawTrack(id, owner int64) models.RawItem {
	return models.RawItem{Track: &models.RawTrack{
		TrackID:  id,
		Title:    fmt.Sprintf("track %d", id),
		Duration: 200,
		User:     models.RawUser{UserID: owner, Handle: fmt.Sprintf("user%d", owner)},
	}}
}

func rawCollection(id, owner int64, trackIDs ...int64) models.RawItem {
	refs := make([]models.RawCollectionTrack, len(trackIDs))
	for i, tid := range trackIDs {
		refs[i] = models.RawCollectionTrack{Track: tid}
	}
	return models.RawItem{Collection: &models.RawCollection{
		PlaylistID:       id,
		PlaylistName:     fmt.Sprintf("collection %d", id),
		User:             models.RawUser{UserID: owner, Handle: fmt.Sprintf("user%d", owner)},
		PlaylistContents: models.RawCollectionContents{TrackIDs: refs},
	}}
}

func pageFetch(items []models.RawItem) tasks.FetchFunc {
	return func(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
		return items, nil
	}
}

// waitForStatus polls the lineup until it reaches want or the deadline hits.
func waitForStatus(t *testing.T, s *Store, prefix string, want lineup.Status) lineup.Lineup {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		lin, err := s.Lineup(prefix)
		if err != nil {
			t.Fatalf("Lineup(%q) returned error: %v", prefix, err)
		}
		if lin.Status == want {
			return lin
		}
		time.Sleep(2 * time.Millisecond)
	}
	lin, _ := s.Lineup(prefix)
	t.Fatalf("lineup %q never reached %s (still %s)", prefix, want, lin.Status)
	return lineup.Lineup{}
}

func fetchPage(t *testing.T, s *Store, prefix string, offset, limit int, overwrite bool) lineup.Lineup {
	t.Helper()
	err := s.Dispatch(context.Background(), prefix, lineup.FetchMetadatas{Offset: offset, Limit: limit, Overwrite: overwrite})
	if err != nil {
		t.Fatalf("Dispatch(FetchMetadatas) returned error: %v", err)
	}
	return waitForStatus(t, s, prefix, lineup.StatusSuccess)
}

func TestStoreFetch(t *testing.T) {
	t.Run("publishes a filtered page with cache population", func(t *testing.T) {
		s := testStore(t)
		items := []models.RawItem{
			{}, // null element
			rawTrack(1, 10),
			rawCollection(9, 13, 5, 6),
		}
		if err := s.Register(tasks.LineupConfig{Prefix: "feed", Fetch: pageFetch(items)}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		lin := fetchPage(t, s, "feed", 0, 4, false)

		if len(lin.Entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(lin.Entries))
		}
		if lin.NullCount != 1 {
			t.Errorf("NullCount = %d, want 1", lin.NullCount)
		}
		if lin.DeletedCount != 1 {
			t.Errorf("DeletedCount = %d, want 1", lin.DeletedCount)
		}
		if got := lin.Entries[0].UID.String(); got != "TRACK:1:feed" {
			t.Errorf("first entry uid = %q, want TRACK:1:feed", got)
		}

		if _, ok := s.Entity(models.KindTrack, 1); !ok {
			t.Error("track 1 missing from cache")
		}
		if _, ok := s.Entity(models.KindCollection, 9); !ok {
			t.Error("collection 9 missing from cache")
		}
		for _, id := range []int64{5, 6} {
			ent, ok := s.Entity(models.KindTrack, id)
			if !ok {
				t.Fatalf("nested track %d missing from cache", id)
			}
			if ent.Subscribers != 1 {
				t.Errorf("nested track %d subscribers = %d, want 1", id, ent.Subscribers)
			}
		}
		for _, owner := range []int64{10, 13} {
			if _, ok := s.Entity(models.KindUser, owner); !ok {
				t.Errorf("owner %d missing from cache", owner)
			}
		}
	})

	t.Run("same entity in two contexts holds two subscriptions", func(t *testing.T) {
		s := testStore(t)
		items := []models.RawItem{
			rawTrack(3, 10),
			rawCollection(9, 13, 3),
		}
		if err := s.Register(tasks.LineupConfig{Prefix: "library", Fetch: pageFetch(items)}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		fetchPage(t, s, "library", 0, 2, false)

		ent, ok := s.Entity(models.KindTrack, 3)
		if !ok {
			t.Fatal("track 3 missing from cache")
		}
		if ent.Subscribers != 2 {
			t.Errorf("track 3 subscribers = %d, want 2 (entry and nested)", ent.Subscribers)
		}

		nested := uid.Make(models.KindTrack, 3, "library", uid.CollectionSegment(9)).WithIndex(0)
		if e, ok := s.EntityByUID(nested); !ok || e.ID != 3 {
			t.Errorf("nested uid %q did not resolve to track 3", nested.String())
		}
	})

	t.Run("rejects a second fetch while one is in flight", func(t *testing.T) {
		s := testStore(t)
		release := make(chan struct{})
		blocked := func(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
			<-release
			return nil, nil
		}
		if err := s.Register(tasks.LineupConfig{Prefix: "feed", Fetch: blocked}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		if err := s.Dispatch(context.Background(), "feed", lineup.FetchMetadatas{Limit: 5}); err != nil {
			t.Fatalf("first fetch returned error: %v", err)
		}
		err := s.Dispatch(context.Background(), "feed", lineup.FetchMetadatas{Limit: 5})
		if !errors.Is(err, shared.ErrFetchInFlight) {
			t.Errorf("second fetch error = %v, want ErrFetchInFlight", err)
		}
		close(release)
		waitForStatus(t, s, "feed", lineup.StatusSuccess)
	})

	t.Run("reset cancels an in-flight fetch without writes", func(t *testing.T) {
		s := testStore(t)
		release := make(chan struct{})
		done := make(chan struct{})
		blocked := func(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
			defer close(done)
			<-release
			return []models.RawItem{rawTrack(1, 10)}, nil
		}
		if err := s.Register(tasks.LineupConfig{Prefix: "feed", Fetch: blocked}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		if err := s.Dispatch(context.Background(), "feed", lineup.FetchMetadatas{Limit: 1}); err != nil {
			t.Fatalf("fetch returned error: %v", err)
		}
		if err := s.Dispatch(context.Background(), "feed", lineup.Reset{}); err != nil {
			t.Fatalf("reset returned error: %v", err)
		}
		close(release)
		<-done
		// Give the commit path a moment to run into the cancelled context.
		time.Sleep(20 * time.Millisecond)

		lin, err := s.Lineup("feed")
		if err != nil {
			t.Fatalf("Lineup returned error: %v", err)
		}
		if lin.Status != lineup.StatusIdle {
			t.Errorf("status = %s, want idle after reset", lin.Status)
		}
		if len(lin.Entries) != 0 {
			t.Errorf("expected no entries, got %d", len(lin.Entries))
		}
		if _, ok := s.Entity(models.KindTrack, 1); ok {
			t.Error("cancelled page still wrote track 1 to the cache")
		}
	})

	t.Run("provider failure marks the lineup failed", func(t *testing.T) {
		s := testStore(t)
		failing := func(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
			return nil, fmt.Errorf("upstream down")
		}
		if err := s.Register(tasks.LineupConfig{Prefix: "feed", Fetch: failing}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		if err := s.Dispatch(context.Background(), "feed", lineup.FetchMetadatas{Limit: 5}); err != nil {
			t.Fatalf("fetch returned error: %v", err)
		}
		waitForStatus(t, s, "feed", lineup.StatusFailed)
	})

	t.Run("dedupe drops repeats across pages and reclaims their subscriptions", func(t *testing.T) {
		s := testStore(t)
		pages := [][]models.RawItem{
			{rawTrack(1, 10), rawTrack(2, 10)},
			{rawTrack(2, 10), rawTrack(3, 10)},
		}
		fetch := func(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
			if args.Offset == 0 {
				return pages[0], nil
			}
			return pages[1], nil
		}
		if err := s.Register(tasks.LineupConfig{Prefix: "trending", Fetch: fetch, Dedupe: true}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		fetchPage(t, s, "trending", 0, 2, false)
		lin := fetchPage(t, s, "trending", 2, 2, false)

		if len(lin.Entries) != 3 {
			t.Fatalf("expected 3 deduped entries, got %d", len(lin.Entries))
		}
		ent, ok := s.Entity(models.KindTrack, 2)
		if !ok {
			t.Fatal("track 2 missing from cache")
		}
		if ent.Subscribers != 1 {
			t.Errorf("track 2 subscribers = %d, want 1 after dedupe", ent.Subscribers)
		}
	})

	t.Run("repeats in a non-dedupe lineup mint distinct identifiers", func(t *testing.T) {
		s := testStore(t)
		fetch := func(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
			if args.Offset == 0 {
				return []models.RawItem{rawTrack(5, 10), rawTrack(5, 10)}, nil
			}
			return []models.RawItem{rawTrack(5, 10)}, nil
		}
		if err := s.Register(tasks.LineupConfig{Prefix: "feed", Fetch: fetch}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		fetchPage(t, s, "feed", 0, 2, false)
		lin := fetchPage(t, s, "feed", 2, 1, false)

		if len(lin.Entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(lin.Entries))
		}
		want := []string{"TRACK:5:feed", "TRACK:5:feed:1", "TRACK:5:feed:2"}
		for i, w := range want {
			if got := lin.Entries[i].UID.String(); got != w {
				t.Errorf("entry %d uid = %q, want %q", i, got, w)
			}
		}
		ent, ok := s.Entity(models.KindTrack, 5)
		if !ok {
			t.Fatal("track 5 missing from cache")
		}
		if ent.Subscribers != 3 {
			t.Errorf("track 5 subscribers = %d, want 3 (one per repeat)", ent.Subscribers)
		}
	})

	t.Run("overwrite refetch releases the displaced collection tree", func(t *testing.T) {
		s := testStore(t)
		full := true
		fetch := func(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
			if full {
				return []models.RawItem{rawCollection(9, 13, 5, 6)}, nil
			}
			return []models.RawItem{rawCollection(9, 13, 6)}, nil
		}
		if err := s.Register(tasks.LineupConfig{Prefix: "library", Fetch: fetch}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		fetchPage(t, s, "library", 0, 1, false)
		full = false
		fetchPage(t, s, "library", 0, 1, true)

		if _, ok := s.Entity(models.KindTrack, 5); ok {
			t.Error("track 5 outlived the collection version that referenced it")
		}
		ent, ok := s.Entity(models.KindTrack, 6)
		if !ok {
			t.Fatal("track 6 missing after overwrite")
		}
		if ent.Subscribers != 1 {
			t.Errorf("track 6 subscribers = %d, want 1 after overwrite", ent.Subscribers)
		}

		if err := s.Dispatch(context.Background(), "library", lineup.Reset{}); err != nil {
			t.Fatalf("Reset returned error: %v", err)
		}
		if _, ok := s.Entity(models.KindTrack, 6); ok {
			t.Error("track 6 survived reset with no subscribers")
		}
		if _, ok := s.Entity(models.KindCollection, 9); ok {
			t.Error("collection 9 survived reset with no subscribers")
		}
		if _, ok := s.Entity(models.KindUser, 13); ok {
			t.Error("owner 13 survived reset with no subscribers")
		}
	})

	t.Run("refresh applies only while the view is visible", func(t *testing.T) {
		s := testStore(t)
		var mu sync.Mutex
		var offsets []int
		fetch := func(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
			mu.Lock()
			defer mu.Unlock()
			offsets = append(offsets, args.Offset)
			if len(offsets) == 1 {
				return []models.RawItem{rawTrack(1, 10)}, nil
			}
			return []models.RawItem{rawTrack(2, 10)}, nil
		}
		if err := s.Register(tasks.LineupConfig{Prefix: "feed", Fetch: fetch}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		if err := s.Dispatch(context.Background(), "feed", lineup.RefreshInView{Limit: 1}); err != nil {
			t.Fatalf("hidden refresh returned error: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
		lin, _ := s.Lineup("feed")
		if lin.Status != lineup.StatusIdle {
			t.Errorf("status = %s, want idle while hidden", lin.Status)
		}
		mu.Lock()
		if n := len(offsets); n != 0 {
			t.Fatalf("hidden refresh hit the provider %d times", n)
		}
		mu.Unlock()

		if err := s.Dispatch(context.Background(), "feed", lineup.SetInView{InView: true}); err != nil {
			t.Fatalf("SetInView returned error: %v", err)
		}
		fetchPage(t, s, "feed", 0, 1, false)

		if err := s.Dispatch(context.Background(), "feed", lineup.RefreshInView{Limit: 1}); err != nil {
			t.Fatalf("visible refresh returned error: %v", err)
		}
		lin = waitForStatus(t, s, "feed", lineup.StatusSuccess)

		if len(lin.Entries) != 1 || lin.Entries[0].ID != 2 {
			t.Fatalf("expected refresh to replace entries with track 2, got %+v", lin.Entries)
		}
		mu.Lock()
		defer mu.Unlock()
		if len(offsets) != 2 {
			t.Fatalf("provider called %d times, want 2", len(offsets))
		}
		if offsets[1] != 0 {
			t.Errorf("refresh fetched offset %d, want 0", offsets[1])
		}
	})

	t.Run("unknown prefix is rejected", func(t *testing.T) {
		s := testStore(t)
		err := s.Dispatch(context.Background(), "nope", lineup.FetchMetadatas{Limit: 1})
		if !errors.Is(err, shared.ErrUnknownLineup) {
			t.Errorf("Dispatch error = %v, want ErrUnknownLineup", err)
		}
	})
}

func TestStoreQueue(t *testing.T) {
	setup := func(t *testing.T) *Store {
		t.Helper()
		s := testStore(t)
		items := []models.RawItem{
			rawTrack(1, 10),
			rawCollection(9, 13, 5, 6),
		}
		if err := s.Register(tasks.LineupConfig{Prefix: "feed", Fetch: pageFetch(items)}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		fetchPage(t, s, "feed", 0, 3, false)
		return s
	}

	t.Run("play rebuilds the queue from the lineup", func(t *testing.T) {
		s := setup(t)
		trackUID := uid.Make(models.KindTrack, 1, "feed")
		if err := s.Dispatch(context.Background(), "feed", lineup.Play{UID: trackUID}); err != nil {
			t.Fatalf("Play returned error: %v", err)
		}

		queued := s.QueueItems()
		if len(queued) != 2 {
			t.Fatalf("expected 2 queue items, got %d", len(queued))
		}
		if got := queued[0].UID.String(); got != "TRACK:1:feed,queue" {
			t.Errorf("queue uid = %q, want TRACK:1:feed,queue", got)
		}
		if len(queued[1].Derived) != 2 {
			t.Errorf("collection item derived = %d uids, want 2", len(queued[1].Derived))
		}

		now, playing := s.NowPlaying()
		if !playing || now.ID != 1 {
			t.Errorf("NowPlaying = (%+v, %v), want track 1 playing", now, playing)
		}
		if !s.IsPlayingUID(trackUID) {
			t.Error("IsPlayingUID(track 1) = false, want true")
		}

		// The entry and its queue mirror each hold a subscription.
		if ent, _ := s.Entity(models.KindTrack, 1); ent.Subscribers != 2 {
			t.Errorf("track 1 subscribers = %d, want 2", ent.Subscribers)
		}
		// Nested track: lineup nesting plus the derived queue uid.
		if ent, _ := s.Entity(models.KindTrack, 5); ent.Subscribers != 2 {
			t.Errorf("nested track 5 subscribers = %d, want 2", ent.Subscribers)
		}
	})

	t.Run("play within the driving lineup only moves the cursor", func(t *testing.T) {
		s := setup(t)
		if err := s.Dispatch(context.Background(), "feed", lineup.Play{UID: uid.Make(models.KindTrack, 1, "feed")}); err != nil {
			t.Fatalf("Play returned error: %v", err)
		}
		before := s.QueueItems()

		err := s.Dispatch(context.Background(), "feed", lineup.Play{UID: uid.Make(models.KindCollection, 9, "feed")})
		if err != nil {
			t.Fatalf("second Play returned error: %v", err)
		}
		after := s.QueueItems()
		if len(after) != len(before) {
			t.Errorf("queue length changed from %d to %d on cursor move", len(before), len(after))
		}
		now, playing := s.NowPlaying()
		if !playing || now.Kind != models.KindCollection || now.ID != 9 {
			t.Errorf("NowPlaying = (%+v, %v), want collection 9", now, playing)
		}
	})

	t.Run("new pages mirror onto the queue while driving playback", func(t *testing.T) {
		s := testStore(t)
		fetch := func(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
			if args.Offset == 0 {
				return []models.RawItem{rawTrack(1, 10)}, nil
			}
			return []models.RawItem{rawTrack(2, 10)}, nil
		}
		if err := s.Register(tasks.LineupConfig{Prefix: "feed", Fetch: fetch}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		fetchPage(t, s, "feed", 0, 1, false)
		if err := s.Dispatch(context.Background(), "feed", lineup.Play{UID: uid.Make(models.KindTrack, 1, "feed")}); err != nil {
			t.Fatalf("Play returned error: %v", err)
		}

		fetchPage(t, s, "feed", 1, 1, false)

		queued := s.QueueItems()
		if len(queued) != 2 {
			t.Fatalf("expected queue to mirror new page, got %d items", len(queued))
		}
		if queued[1].ID != 2 {
			t.Errorf("appended queue item id = %d, want 2", queued[1].ID)
		}
	})

	t.Run("overwrite refetch reuses queued identifiers", func(t *testing.T) {
		s := testStore(t)
		fetch := pageFetch([]models.RawItem{rawTrack(1, 10)})
		if err := s.Register(tasks.LineupConfig{Prefix: "feed", Fetch: fetch}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		fetchPage(t, s, "feed", 0, 1, false)
		if err := s.Dispatch(context.Background(), "feed", lineup.Play{UID: uid.Make(models.KindTrack, 1, "feed")}); err != nil {
			t.Fatalf("Play returned error: %v", err)
		}

		lin := fetchPage(t, s, "feed", 0, 1, true)

		queued := s.QueueItems()
		if len(queued) != 1 {
			t.Fatalf("expected 1 queue item after overwrite, got %d", len(queued))
		}
		if !lin.Entries[0].UID.Equal(queued[0].EntryUID) {
			t.Errorf("refetched entry uid %q does not match queued uid %q",
				lin.Entries[0].UID.String(), queued[0].EntryUID.String())
		}
		if ent, _ := s.Entity(models.KindTrack, 1); ent.Subscribers != 2 {
			t.Errorf("track 1 subscribers = %d, want 2 after overwrite", ent.Subscribers)
		}
	})

	t.Run("reset of the driving lineup clears the queue and evicts", func(t *testing.T) {
		s := setup(t)
		if err := s.Dispatch(context.Background(), "feed", lineup.Play{UID: uid.Make(models.KindTrack, 1, "feed")}); err != nil {
			t.Fatalf("Play returned error: %v", err)
		}
		if err := s.Dispatch(context.Background(), "feed", lineup.Reset{}); err != nil {
			t.Fatalf("Reset returned error: %v", err)
		}

		if got := len(s.QueueItems()); got != 0 {
			t.Errorf("queue still holds %d items after reset", got)
		}
		for _, id := range []int64{1, 5, 6} {
			if _, ok := s.Entity(models.KindTrack, id); ok {
				t.Errorf("track %d survived reset with no subscribers", id)
			}
		}
		if _, ok := s.Entity(models.KindCollection, 9); ok {
			t.Error("collection 9 survived reset with no subscribers")
		}
		if _, ok := s.Entity(models.KindUser, 10); ok {
			t.Error("owner 10 survived reset with no subscribers")
		}
	})

	t.Run("pause and resume", func(t *testing.T) {
		s := setup(t)
		if err := s.Dispatch(context.Background(), "feed", lineup.Play{UID: uid.Make(models.KindTrack, 1, "feed")}); err != nil {
			t.Fatalf("Play returned error: %v", err)
		}
		if err := s.Dispatch(context.Background(), "feed", lineup.Pause{}); err != nil {
			t.Fatalf("Pause returned error: %v", err)
		}
		if _, playing := s.NowPlaying(); playing {
			t.Error("still playing after pause")
		}
		if !s.Resume() {
			t.Error("Resume = false with an item under the cursor")
		}
		if _, playing := s.NowPlaying(); !playing {
			t.Error("not playing after resume")
		}
	})

	t.Run("reorder follows through to the queue", func(t *testing.T) {
		s := setup(t)
		if err := s.Dispatch(context.Background(), "feed", lineup.Play{UID: uid.Make(models.KindTrack, 1, "feed")}); err != nil {
			t.Fatalf("Play returned error: %v", err)
		}
		order := []uid.UID{
			uid.Make(models.KindCollection, 9, "feed"),
			uid.Make(models.KindTrack, 1, "feed"),
		}
		if err := s.Dispatch(context.Background(), "feed", lineup.UpdateOrder{UIDs: order}); err != nil {
			t.Fatalf("UpdateOrder returned error: %v", err)
		}

		lin, _ := s.Lineup("feed")
		if lin.Entries[0].Kind != models.KindCollection {
			t.Error("lineup order did not change")
		}
		queued := s.QueueItems()
		if queued[0].Kind != models.KindCollection {
			t.Error("queue order did not follow the lineup")
		}
		// Cursor stays on the item that was playing.
		now, playing := s.NowPlaying()
		if !playing || now.ID != 1 {
			t.Errorf("NowPlaying = (%+v, %v), want track 1 still playing", now, playing)
		}
	})
}

func TestStoreEntries(t *testing.T) {
	t.Run("remove releases the entry's subscription tree", func(t *testing.T) {
		s := testStore(t)
		items := []models.RawItem{rawCollection(9, 13, 5)}
		if err := s.Register(tasks.LineupConfig{Prefix: "library", Fetch: pageFetch(items)}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		fetchPage(t, s, "library", 0, 1, false)

		collUID := uid.Make(models.KindCollection, 9, "library")
		err := s.Dispatch(context.Background(), "library", lineup.Remove{Kind: models.KindCollection, UID: collUID})
		if err != nil {
			t.Fatalf("Remove returned error: %v", err)
		}

		if _, ok := s.Entity(models.KindCollection, 9); ok {
			t.Error("collection 9 survived removal")
		}
		if _, ok := s.Entity(models.KindTrack, 5); ok {
			t.Error("nested track 5 survived removal")
		}
		if _, ok := s.Entity(models.KindUser, 13); ok {
			t.Error("owner 13 survived removal")
		}
		lin, _ := s.Lineup("library")
		if len(lin.Entries) != 0 {
			t.Errorf("lineup still holds %d entries", len(lin.Entries))
		}
	})

	t.Run("removing one repeat leaves the survivor cached", func(t *testing.T) {
		s := testStore(t)
		items := []models.RawItem{rawTrack(5, 10), rawTrack(5, 10)}
		if err := s.Register(tasks.LineupConfig{Prefix: "feed", Fetch: pageFetch(items)}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		fetchPage(t, s, "feed", 0, 2, false)

		first := uid.Make(models.KindTrack, 5, "feed")
		if err := s.Dispatch(context.Background(), "feed", lineup.Remove{Kind: models.KindTrack, UID: first}); err != nil {
			t.Fatalf("Remove returned error: %v", err)
		}

		lin, _ := s.Lineup("feed")
		if len(lin.Entries) != 1 {
			t.Fatalf("lineup holds %d entries, want 1", len(lin.Entries))
		}
		ent, ok := s.Entity(models.KindTrack, 5)
		if !ok {
			t.Fatal("track 5 evicted while the second entry still holds it")
		}
		if ent.Subscribers != 1 {
			t.Errorf("track 5 subscribers = %d, want 1", ent.Subscribers)
		}
		if _, ok := s.Entity(models.KindUser, 10); !ok {
			t.Error("owner 10 evicted while the second entry still holds it")
		}
	})

	t.Run("remove of an unknown entry errors", func(t *testing.T) {
		s := testStore(t)
		if err := s.Register(tasks.LineupConfig{Prefix: "library", Fetch: pageFetch(nil)}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		err := s.Dispatch(context.Background(), "library", lineup.Remove{
			Kind: models.KindTrack,
			UID:  uid.Make(models.KindTrack, 999, "library"),
		})
		if !errors.Is(err, shared.ErrEntryNotFound) {
			t.Errorf("Remove error = %v, want ErrEntryNotFound", err)
		}
	})

	t.Run("add pins an entry and subscribes it", func(t *testing.T) {
		s := testStore(t)
		if err := s.Register(tasks.LineupConfig{Prefix: "library", Fetch: pageFetch(nil)}); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		e := lineup.Entry{
			UID:  uid.Make(models.KindTrack, 42, "library"),
			Kind: models.KindTrack,
			ID:   42,
		}
		if err := s.Dispatch(context.Background(), "library", lineup.Add{Entry: e}); err != nil {
			t.Fatalf("Add returned error: %v", err)
		}

		ent, ok := s.Entity(models.KindTrack, 42)
		if !ok {
			t.Fatal("pinned track 42 missing from cache")
		}
		if ent.Subscribers != 1 {
			t.Errorf("pinned track subscribers = %d, want 1", ent.Subscribers)
		}
		lin, _ := s.Lineup("library")
		if len(lin.Entries) != 1 {
			t.Errorf("lineup holds %d entries, want 1", len(lin.Entries))
		}
	})
}
