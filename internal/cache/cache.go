// Package cache implements the kind-partitioned, reference-counted entity
// store shared by every lineup and the playback queue.
//
// Entities are addressed by raw (kind, id) but kept alive by the set of UIDs
// currently subscribed to them. An entity exists iff its subscriber set is
// non-empty; the last unsubscribe evicts it synchronously. All mutation goes
// through discrete batch operations (Add/Update/Subscribe/Unsubscribe) that
// are individually atomic: no reader can observe a half-applied batch, and
// eviction is computed only after a whole batch's additions have been applied.
package cache

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/uid"
)

// AddItem is one element of an Add batch.
type AddItem struct {
	ID       int64
	UID      uid.UID
	Metadata map[string]any
}

// UpdateItem is one element of an Update batch.
type UpdateItem struct {
	ID       int64
	Metadata map[string]any
}

// Ref pairs a UID with the raw id it subscribes to.
type Ref struct {
	UID uid.UID
	ID  int64
}

// Entity is a read-only snapshot of one cache entry. Metadata is copied at
// snapshot time; mutating it does not affect the cache.
type Entity struct {
	Kind          models.Kind
	ID            int64
	Metadata      map[string]any
	MarkedDeleted bool
	Subscribers   int
}

type entry struct {
	metadata      map[string]any
	subscribers   map[string]struct{}
	markedDeleted bool
}

// Cache is the reference-counted entity store. Safe for concurrent use.
type Cache struct {
	mu     sync.Mutex
	kinds  map[models.Kind]map[int64]*entry
	logger *log.Logger
}

// New creates an empty Cache. A nil logger disables cache logging.
func New(logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Cache{
		kinds:  make(map[models.Kind]map[int64]*entry),
		logger: logger,
	}
}

func (c *Cache) bucket(kind models.Kind) map[int64]*entry {
	b, ok := c.kinds[kind]
	if !ok {
		b = make(map[int64]*entry)
		c.kinds[kind] = b
	}
	return b
}

func newEntry() *entry {
	return &entry{
		metadata:    make(map[string]any),
		subscribers: make(map[string]struct{}),
	}
}

// merge shallow-merges metadata into the entry. The deleted flag is a sticky
// tombstone: once set it survives any later metadata overwrite, so a re-fetch
// of the same id cannot resurrect a deleted entity.
func (e *entry) merge(metadata map[string]any) {
	for k, v := range metadata {
		e.metadata[k] = v
	}
	if deleted, ok := metadata[models.FieldDeleted].(bool); ok && deleted {
		e.markedDeleted = true
	}
}

// Add creates entities for absent ids, shallow-merges metadata into present
// ones, and subscribes each item's UID. Idempotent per UID.
func (c *Cache) Add(kind models.Kind, items []AddItem) {
	if len(items) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.bucket(kind)
	for _, item := range items {
		e, ok := b[item.ID]
		if !ok {
			e = newEntry()
			b[item.ID] = e
		}
		e.merge(item.Metadata)
		e.subscribers[item.UID.String()] = struct{}{}
	}
	c.logger.Debug("cache add", "kind", kind, "count", len(items))
}

// Update shallow-merges metadata into present entities. Ids not in the cache
// are skipped; Update never changes subscriber sets.
func (c *Cache) Update(kind models.Kind, items []UpdateItem) {
	if len(items) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.bucket(kind)
	for _, item := range items {
		if e, ok := b[item.ID]; ok {
			e.merge(item.Metadata)
		}
	}
}

// Subscribe adds each ref's UID to the entity's subscriber set, creating a
// bare entity with empty metadata when none exists yet. Later Add/Update
// calls fill the metadata in.
func (c *Cache) Subscribe(kind models.Kind, refs []Ref) {
	if len(refs) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.bucket(kind)
	for _, ref := range refs {
		e, ok := b[ref.ID]
		if !ok {
			e = newEntry()
			b[ref.ID] = e
		}
		e.subscribers[ref.UID.String()] = struct{}{}
	}
}

// Unsubscribe removes each UID from its entity's subscriber set. Eviction is
// applied after the whole batch: any entity whose subscriber set transitioned
// to empty is removed synchronously.
func (c *Cache) Unsubscribe(kind models.Kind, uids []uid.UID) {
	if len(uids) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.bucket(kind)
	touched := make(map[int64]struct{}, len(uids))
	for _, u := range uids {
		if e, ok := b[u.ID]; ok {
			delete(e.subscribers, u.String())
			touched[u.ID] = struct{}{}
		}
	}

	evicted := 0
	for id := range touched {
		if e, ok := b[id]; ok && len(e.subscribers) == 0 {
			delete(b, id)
			evicted++
		}
	}
	if evicted > 0 {
		c.logger.Debug("cache evict", "kind", kind, "count", evicted)
	}
}

// Get returns a snapshot of the entity for (kind, id), or false when the
// entity is absent.
func (c *Cache) Get(kind models.Kind, id int64) (Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot(kind, id)
}

// GetByUID returns a snapshot of the entity a UID refers to. The UID need not
// itself be subscribed; it only supplies the (kind, id) address.
func (c *Cache) GetByUID(u uid.UID) (Entity, bool) {
	return c.Get(u.Kind, u.ID)
}

// SubscriberCount returns the number of UIDs holding (kind, id) alive.
func (c *Cache) SubscriberCount(kind models.Kind, id int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.kinds[kind][id]
	if !ok {
		return 0
	}
	return len(e.subscribers)
}

// Subscribed reports whether the given UID currently holds a subscription.
func (c *Cache) Subscribed(u uid.UID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.kinds[u.Kind][u.ID]
	if !ok {
		return false
	}
	_, ok = e.subscribers[u.String()]
	return ok
}

func (c *Cache) snapshot(kind models.Kind, id int64) (Entity, bool) {
	e, ok := c.kinds[kind][id]
	if !ok {
		return Entity{}, false
	}
	metadata := make(map[string]any, len(e.metadata))
	for k, v := range e.metadata {
		metadata[k] = v
	}
	return Entity{
		Kind:          kind,
		ID:            id,
		Metadata:      metadata,
		MarkedDeleted: e.markedDeleted,
		Subscribers:   len(e.subscribers),
	}, true
}
