// Package models defines the shared data model for the trackline client.
//
// The package contains two categories of types. Raw provider items are the
// JSON shapes returned by catalog metadata providers: [RawTrack] (a track as
// returned by the catalog API), [RawCollection] (a playlist/album with its
// ordered track references), [RawUser] (the owner record embedded in tracks
// and collections), and [RawItem] (a tagged union of the above, decoding
// mixed feed responses). Cache metadata helpers cover the other half: cache
// entities carry opaque metadata records (shallow-merged maps), the Field*
// constants name the well-known keys, and TrackMetadata/CollectionMetadata/
// UserMetadata build those records from raw provider items.
//
// The [Kind] type partitions the entity cache; every identifier in the system
// (raw id, UID, lineup entry, queue item) carries one.
package models
