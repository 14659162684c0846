package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// Collection is one row of the offline collection table.
type Collection struct {
	ID          int64
	Title       string
	OwnerID     int64
	OwnerHandle string
	TrackCount  int
	FetchedAt   time.Time
}

// CollectionTrack is one ordered track reference of a cached collection.
type CollectionTrack struct {
	Position int
	TrackID  int64
	AddedAt  int64
}

// CollectionRepository persists collection metadata and ordered track
// references keyed by catalog id.
type CollectionRepository struct {
	db *sql.DB
}

// NewCollectionRepository creates a new CollectionRepository with the given database connection
func NewCollectionRepository(db *sql.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// Upsert inserts or refreshes a collection row along with its ordered track
// references, replacing any previous reference set in one transaction.
func (r *CollectionRepository) Upsert(collection Collection, refs []CollectionTrack) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO collections (id, title, owner_id, owner_handle, track_count, fetched_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			owner_id = excluded.owner_id,
			owner_handle = excluded.owner_handle,
			track_count = excluded.track_count,
			fetched_at = CURRENT_TIMESTAMP
	`
	if _, err := tx.Exec(query, collection.ID, collection.Title, collection.OwnerID, collection.OwnerHandle, len(refs)); err != nil {
		return fmt.Errorf("failed to upsert collection %d: %w", collection.ID, err)
	}

	if _, err := tx.Exec("DELETE FROM collection_tracks WHERE collection_id = ?", collection.ID); err != nil {
		return fmt.Errorf("failed to clear collection refs: %w", err)
	}
	for _, ref := range refs {
		if _, err := tx.Exec(
			"INSERT INTO collection_tracks (collection_id, position, track_id, added_at) VALUES (?, ?, ?, ?)",
			collection.ID, ref.Position, ref.TrackID, ref.AddedAt,
		); err != nil {
			return fmt.Errorf("failed to insert collection ref: %w", err)
		}
	}

	return tx.Commit()
}

// Get retrieves a collection and its ordered track references by catalog id.
func (r *CollectionRepository) Get(id int64) (*Collection, []CollectionTrack, error) {
	var c Collection
	err := r.db.QueryRow(`
		SELECT id, title, owner_id, owner_handle, track_count, fetched_at
		FROM collections WHERE id = ?
	`, id).Scan(&c.ID, &c.Title, &c.OwnerID, &c.OwnerHandle, &c.TrackCount, &c.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get collection %d: %w", id, err)
	}

	rows, err := r.db.Query(`
		SELECT position, track_id, added_at
		FROM collection_tracks WHERE collection_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list collection refs: %w", err)
	}
	defer rows.Close()

	var refs []CollectionTrack
	for rows.Next() {
		var ref CollectionTrack
		if err := rows.Scan(&ref.Position, &ref.TrackID, &ref.AddedAt); err != nil {
			return nil, nil, fmt.Errorf("failed to scan collection ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return &c, refs, rows.Err()
}

// Count returns the number of cached collections.
func (r *CollectionRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM collections").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count collections: %w", err)
	}
	return n, nil
}
