package cache

import (
	"testing"

	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/uid"
)

func TestCache(t *testing.T) {
	feedUID := uid.Make(models.KindTrack, 1, "feed")
	libraryUID := uid.Make(models.KindTrack, 1, "library")

	t.Run("Add creates and subscribes", func(t *testing.T) {
		c := New(nil)
		c.Add(models.KindTrack, []AddItem{
			{ID: 1, UID: feedUID, Metadata: map[string]any{models.FieldTitle: "one"}},
		})

		e, ok := c.Get(models.KindTrack, 1)
		if !ok {
			t.Fatal("expected entity after add")
		}
		if e.Metadata[models.FieldTitle] != "one" {
			t.Errorf("unexpected metadata: %v", e.Metadata)
		}
		if e.Subscribers != 1 {
			t.Errorf("expected 1 subscriber, got %d", e.Subscribers)
		}
	})

	t.Run("Add is idempotent per uid", func(t *testing.T) {
		c := New(nil)
		item := AddItem{ID: 1, UID: feedUID, Metadata: map[string]any{}}
		c.Add(models.KindTrack, []AddItem{item})
		c.Add(models.KindTrack, []AddItem{item})

		if n := c.SubscriberCount(models.KindTrack, 1); n != 1 {
			t.Errorf("expected subscriber count 1, got %d", n)
		}
	})

	t.Run("metadata shallow merges", func(t *testing.T) {
		c := New(nil)
		c.Add(models.KindTrack, []AddItem{
			{ID: 1, UID: feedUID, Metadata: map[string]any{models.FieldTitle: "one", models.FieldDuration: 180}},
		})
		c.Update(models.KindTrack, []UpdateItem{
			{ID: 1, Metadata: map[string]any{models.FieldTitle: "renamed"}},
		})

		e, _ := c.Get(models.KindTrack, 1)
		if e.Metadata[models.FieldTitle] != "renamed" {
			t.Errorf("expected merged title, got %v", e.Metadata[models.FieldTitle])
		}
		if e.Metadata[models.FieldDuration] != 180 {
			t.Error("partial update clobbered unrelated field")
		}
	})

	t.Run("Update skips absent ids and keeps subscriber sets", func(t *testing.T) {
		c := New(nil)
		c.Update(models.KindTrack, []UpdateItem{{ID: 99, Metadata: map[string]any{"x": 1}}})
		if _, ok := c.Get(models.KindTrack, 99); ok {
			t.Error("update must not create entities")
		}
	})

	t.Run("Subscribe creates bare entity", func(t *testing.T) {
		c := New(nil)
		c.Subscribe(models.KindTrack, []Ref{{UID: feedUID, ID: 1}})

		e, ok := c.Get(models.KindTrack, 1)
		if !ok {
			t.Fatal("expected bare entity after subscribe")
		}
		if len(e.Metadata) != 0 {
			t.Errorf("expected empty metadata, got %v", e.Metadata)
		}

		// A later add fills the metadata in.
		c.Add(models.KindTrack, []AddItem{{ID: 1, UID: libraryUID, Metadata: map[string]any{models.FieldTitle: "one"}}})
		e, _ = c.Get(models.KindTrack, 1)
		if e.Metadata[models.FieldTitle] != "one" || e.Subscribers != 2 {
			t.Errorf("unexpected entity after fill-in: %+v", e)
		}
	})

	t.Run("reference counting", func(t *testing.T) {
		c := New(nil)
		c.Add(models.KindTrack, []AddItem{
			{ID: 1, UID: feedUID, Metadata: map[string]any{}},
			{ID: 1, UID: libraryUID, Metadata: map[string]any{}},
		})

		c.Unsubscribe(models.KindTrack, []uid.UID{feedUID})
		if _, ok := c.Get(models.KindTrack, 1); !ok {
			t.Fatal("entity evicted while a subscriber remains")
		}

		c.Unsubscribe(models.KindTrack, []uid.UID{libraryUID})
		if _, ok := c.Get(models.KindTrack, 1); ok {
			t.Fatal("entity must be evicted once the last subscriber is removed")
		}
	})

	t.Run("eviction fires after the whole batch", func(t *testing.T) {
		// Removing and re-adding the same uid in one logical step must not
		// strand the entity; per-batch ops apply additions before the
		// transition-to-zero check runs.
		c := New(nil)
		c.Add(models.KindTrack, []AddItem{{ID: 1, UID: feedUID, Metadata: map[string]any{}}})
		c.Subscribe(models.KindTrack, []Ref{{UID: libraryUID, ID: 1}})
		c.Unsubscribe(models.KindTrack, []uid.UID{feedUID})

		if n := c.SubscriberCount(models.KindTrack, 1); n != 1 {
			t.Errorf("expected the later subscription to survive, count = %d", n)
		}
	})

	t.Run("unsubscribe unknown uid is a no-op", func(t *testing.T) {
		c := New(nil)
		c.Unsubscribe(models.KindTrack, []uid.UID{feedUID})
		if _, ok := c.Get(models.KindTrack, 1); ok {
			t.Error("unexpected entity")
		}
	})

	t.Run("deleted tombstone is sticky", func(t *testing.T) {
		c := New(nil)
		c.Add(models.KindTrack, []AddItem{
			{ID: 1, UID: feedUID, Metadata: map[string]any{models.FieldDeleted: true}},
		})
		// A later fetch of the same id reports it live again; the tombstone
		// must survive the metadata overwrite.
		c.Add(models.KindTrack, []AddItem{
			{ID: 1, UID: libraryUID, Metadata: map[string]any{models.FieldDeleted: false, models.FieldTitle: "back"}},
		})

		e, _ := c.Get(models.KindTrack, 1)
		if !e.MarkedDeleted {
			t.Error("tombstone did not survive overwrite")
		}
		if e.Metadata[models.FieldTitle] != "back" {
			t.Error("metadata merge skipped")
		}
	})

	t.Run("kinds are partitioned", func(t *testing.T) {
		c := New(nil)
		c.Add(models.KindTrack, []AddItem{{ID: 7, UID: uid.Make(models.KindTrack, 7, "feed"), Metadata: map[string]any{}}})
		if _, ok := c.Get(models.KindCollection, 7); ok {
			t.Error("collection bucket leaked track entity")
		}
	})

	t.Run("GetByUID", func(t *testing.T) {
		c := New(nil)
		c.Add(models.KindTrack, []AddItem{{ID: 1, UID: feedUID, Metadata: map[string]any{}}})

		if _, ok := c.GetByUID(libraryUID); !ok {
			t.Error("any uid addressing (kind,id) should resolve the entity")
		}
		if !c.Subscribed(feedUID) {
			t.Error("expected feed uid subscribed")
		}
		if c.Subscribed(libraryUID) {
			t.Error("library uid was never subscribed")
		}
	})

	t.Run("snapshot metadata is a copy", func(t *testing.T) {
		c := New(nil)
		c.Add(models.KindTrack, []AddItem{{ID: 1, UID: feedUID, Metadata: map[string]any{models.FieldTitle: "one"}}})
		e, _ := c.Get(models.KindTrack, 1)
		e.Metadata[models.FieldTitle] = "mutated"

		fresh, _ := c.Get(models.KindTrack, 1)
		if fresh.Metadata[models.FieldTitle] != "one" {
			t.Error("snapshot aliased live cache metadata")
		}
	})
}
