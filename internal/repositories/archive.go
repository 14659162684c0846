package repositories

import (
	"fmt"

	"github.com/halcyonfm/trackline/internal/models"
)

// CatalogArchive is the write-through adapter the store hands surviving fetch
// items to. Writes are best-effort: a failed archive write never fails the
// fetch that triggered it, so callers log and move on.
type CatalogArchive struct {
	tracks      *TrackRepository
	collections *CollectionRepository
}

// NewCatalogArchive creates a CatalogArchive over both repositories.
func NewCatalogArchive(tracks *TrackRepository, collections *CollectionRepository) *CatalogArchive {
	return &CatalogArchive{tracks: tracks, collections: collections}
}

// ArchiveTrack persists the metadata of one fetched track.
func (a *CatalogArchive) ArchiveTrack(t *models.RawTrack) error {
	err := a.tracks.Upsert(Track{
		ID:          t.TrackID,
		Title:       t.Title,
		OwnerID:     t.User.UserID,
		OwnerHandle: t.User.Handle,
		Duration:    t.Duration,
	})
	if err != nil {
		return fmt.Errorf("failed to archive track: %w", err)
	}
	return nil
}

// ArchiveCollection persists the metadata and ordered track references of one
// fetched collection.
func (a *CatalogArchive) ArchiveCollection(c *models.RawCollection) error {
	refs := make([]CollectionTrack, 0, len(c.PlaylistContents.TrackIDs))
	for i, ref := range c.PlaylistContents.TrackIDs {
		refs = append(refs, CollectionTrack{Position: i, TrackID: ref.Track, AddedAt: ref.Time})
	}

	err := a.collections.Upsert(Collection{
		ID:          c.PlaylistID,
		Title:       c.PlaylistName,
		OwnerID:     c.User.UserID,
		OwnerHandle: c.User.Handle,
	}, refs)
	if err != nil {
		return fmt.Errorf("failed to archive collection: %w", err)
	}
	return nil
}
