package lineup

import (
	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/uid"
)

// Intent is the closed set of operations a view can dispatch against a
// lineup. Intents are namespaced by lineup prefix at the dispatch surface, so
// two mounted views never collide. The store switches over the union
// exhaustively; adding a variant without handling it is a compile-visible
// hole in that switch.
type Intent interface {
	isIntent()
}

// FetchMetadatas requests one page from the lineup's metadata provider.
type FetchMetadatas struct {
	Offset    int
	Limit     int
	Overwrite bool
	Payload   map[string]any
}

// Reset clears the lineup and unsubscribes its entries. When Source is set,
// the reset only applies (and only cancels an in-flight fetch) if it matches
// the lineup's current source key.
type Reset struct {
	Source string
}

// Play starts or resumes playback at the entry carrying UID.
type Play struct {
	UID uid.UID
}

// Pause suspends playback, leaving the queue cursor in place.
type Pause struct{}

// Add appends a single entry to the lineup outside the fetch pipeline.
type Add struct {
	Entry Entry
}

// Remove deletes the entry carrying UID from the lineup.
type Remove struct {
	Kind models.Kind
	UID  uid.UID
}

// UpdateOrder reorders the lineup's entries to the given UID sequence.
type UpdateOrder struct {
	UIDs []uid.UID
}

// RefreshInView re-fetches from offset zero, but only when the view reports
// itself currently visible.
type RefreshInView struct {
	Limit   int
	Payload map[string]any
}

// SetInView records whether the owning view is currently visible.
type SetInView struct {
	InView bool
}

func (FetchMetadatas) isIntent() {}
func (Reset) isIntent()          {}
func (Play) isIntent()           {}
func (Pause) isIntent()          {}
func (Add) isIntent()            {}
func (Remove) isIntent()         {}
func (UpdateOrder) isIntent()    {}
func (RefreshInView) isIntent()  {}
func (SetInView) isIntent()      {}
