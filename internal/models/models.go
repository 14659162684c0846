package models

import (
	"encoding/json"
	"fmt"
)

// Kind is the entity category tag partitioning the cache.
type Kind string

const (
	KindTrack      Kind = "TRACK"
	KindCollection Kind = "COLLECTION"
	KindUser       Kind = "USER"
)

// Valid reports whether k is one of the known entity kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindTrack, KindCollection, KindUser:
		return true
	}
	return false
}

// ParseKind converts a string into a [Kind], rejecting unknown values.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return k, nil
}

// RawUser is the owner record embedded in raw tracks and collections.
type RawUser struct {
	UserID        int64  `json:"user_id"`
	Handle        string `json:"handle"`
	Name          string `json:"name"`
	IsDeactivated bool   `json:"is_deactivated"`
}

// RawSegment is one entry of a track's segment payload. The client treats the
// payload opaquely; it is carried into cache metadata untouched.
type RawSegment struct {
	Duration  float64 `json:"duration"`
	Multihash string  `json:"multihash"`
}

// RawTrack is a track item as returned by the catalog metadata API.
type RawTrack struct {
	TrackID       int64        `json:"track_id"`
	Title         string       `json:"title"`
	IsDelete      bool         `json:"is_delete"`
	IsStreamGated bool         `json:"is_stream_gated"`
	Duration      int          `json:"duration"`
	TrackSegments []RawSegment `json:"track_segments"`
	User          RawUser      `json:"user"`
	DateAdded     string       `json:"date_added,omitempty"`
}

// RawCollectionTrack is one ordered track reference inside a collection.
type RawCollectionTrack struct {
	Track int64 `json:"track"`
	Time  int64 `json:"time"`
}

// RawCollectionContents holds a collection's ordered track references.
type RawCollectionContents struct {
	TrackIDs []RawCollectionTrack `json:"track_ids"`
}

// RawCollection is a playlist or album item as returned by the catalog API.
type RawCollection struct {
	PlaylistID       int64                 `json:"playlist_id"`
	PlaylistName     string                `json:"playlist_name"`
	IsDelete         bool                  `json:"is_delete"`
	IsPrivate        bool                  `json:"is_private"`
	User             RawUser               `json:"user"`
	PlaylistContents RawCollectionContents `json:"playlist_contents"`
	DateAdded        string                `json:"date_added,omitempty"`
}

// RawItem is a tagged union over the raw item kinds a lineup page can carry.
// A feed page mixes tracks and collections; JSON null elements decode to an
// item with no variant set (see [RawItem.IsNull]).
type RawItem struct {
	Track      *RawTrack
	Collection *RawCollection
}

// IsNull reports whether the item decoded from a JSON null element.
func (i RawItem) IsNull() bool {
	return i.Track == nil && i.Collection == nil
}

// Kind returns the entity kind of the populated variant. Null items report
// KindTrack by convention; callers filter nulls before looking at kinds.
func (i RawItem) Kind() Kind {
	if i.Collection != nil {
		return KindCollection
	}
	return KindTrack
}

// ID returns the catalog id of the populated variant, or 0 for null items.
func (i RawItem) ID() int64 {
	switch {
	case i.Track != nil:
		return i.Track.TrackID
	case i.Collection != nil:
		return i.Collection.PlaylistID
	}
	return 0
}

// UnmarshalJSON decodes a raw lineup element, discriminating tracks from
// collections by the presence of playlist_id.
func (i *RawItem) UnmarshalJSON(data []byte) error {
	i.Track = nil
	i.Collection = nil

	var probe struct {
		TrackID    *int64 `json:"track_id"`
		PlaylistID *int64 `json:"playlist_id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("failed to probe raw item: %w", err)
	}

	switch {
	case probe.PlaylistID != nil:
		var c RawCollection
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("failed to decode collection item: %w", err)
		}
		i.Collection = &c
	case probe.TrackID != nil:
		var t RawTrack
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to decode track item: %w", err)
		}
		i.Track = &t
	}
	// Neither id present: JSON null or an empty object, both treated as null.
	return nil
}

// MarshalJSON encodes the populated variant, or null when neither is set.
func (i RawItem) MarshalJSON() ([]byte, error) {
	switch {
	case i.Collection != nil:
		return json.Marshal(i.Collection)
	case i.Track != nil:
		return json.Marshal(i.Track)
	}
	return []byte("null"), nil
}

// Well-known cache metadata keys. Metadata records are opaque maps so that
// partial updates from different subscribers shallow-merge instead of
// clobbering each other; these constants keep the key spelling in one place.
const (
	FieldTitle     = "title"
	FieldOwnerID   = "owner_id"
	FieldOwner     = "owner_handle"
	FieldDuration  = "duration"
	FieldSegments  = "track_segments"
	FieldDeleted   = "is_delete"
	FieldPrivate   = "is_private"
	FieldGated     = "is_stream_gated"
	FieldTrackIDs  = "track_ids"
	FieldDateAdded = "date_added"
)

// TrackMetadata builds the cache metadata record for a raw track.
func TrackMetadata(t *RawTrack) map[string]any {
	return map[string]any{
		FieldTitle:    t.Title,
		FieldOwnerID:  t.User.UserID,
		FieldOwner:    t.User.Handle,
		FieldDuration: t.Duration,
		FieldSegments: t.TrackSegments,
		FieldDeleted:  t.IsDelete,
		FieldGated:    t.IsStreamGated,
	}
}

// CollectionMetadata builds the cache metadata record for a raw collection.
// The ordered track references are carried so queue derivation can re-key
// nested tracks without refetching.
func CollectionMetadata(c *RawCollection) map[string]any {
	ids := make([]RawCollectionTrack, len(c.PlaylistContents.TrackIDs))
	copy(ids, c.PlaylistContents.TrackIDs)
	return map[string]any{
		FieldTitle:    c.PlaylistName,
		FieldOwnerID:  c.User.UserID,
		FieldOwner:    c.User.Handle,
		FieldDeleted:  c.IsDelete,
		FieldPrivate:  c.IsPrivate,
		FieldTrackIDs: ids,
	}
}

// UserMetadata builds the cache metadata record for an embedded owner.
func UserMetadata(u *RawUser) map[string]any {
	return map[string]any{
		FieldTitle:   u.Name,
		FieldOwner:   u.Handle,
		FieldOwnerID: u.UserID,
	}
}

// CollectionTrackRefs extracts the ordered track references from a cache
// metadata record previously built by [CollectionMetadata]. Returns nil when
// the record carries none.
func CollectionTrackRefs(metadata map[string]any) []RawCollectionTrack {
	refs, ok := metadata[FieldTrackIDs].([]RawCollectionTrack)
	if !ok {
		return nil
	}
	out := make([]RawCollectionTrack, len(refs))
	copy(out, refs)
	return out
}
