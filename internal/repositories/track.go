package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// Track is one row of the offline track table.
type Track struct {
	ID          int64
	Title       string
	OwnerID     int64
	OwnerHandle string
	Duration    int
	FetchedAt   time.Time
}

// TrackRepository persists track metadata keyed by catalog id.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Upsert inserts or refreshes a track row.
func (r *TrackRepository) Upsert(track Track) error {
	query := `
		INSERT INTO tracks (id, title, owner_id, owner_handle, duration, fetched_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			owner_id = excluded.owner_id,
			owner_handle = excluded.owner_handle,
			duration = excluded.duration,
			fetched_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Exec(query, track.ID, track.Title, track.OwnerID, track.OwnerHandle, track.Duration); err != nil {
		return fmt.Errorf("failed to upsert track %d: %w", track.ID, err)
	}
	return nil
}

// Get retrieves a track by catalog id.
func (r *TrackRepository) Get(id int64) (*Track, error) {
	query := `
		SELECT id, title, owner_id, owner_handle, duration, fetched_at
		FROM tracks WHERE id = ?
	`
	var t Track
	err := r.db.QueryRow(query, id).Scan(&t.ID, &t.Title, &t.OwnerID, &t.OwnerHandle, &t.Duration, &t.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track %d: %w", id, err)
	}
	return &t, nil
}

// ListByOwner retrieves all cached tracks owned by the given user, most
// recently fetched first.
func (r *TrackRepository) ListByOwner(ownerID int64) ([]Track, error) {
	query := `
		SELECT id, title, owner_id, owner_handle, duration, fetched_at
		FROM tracks WHERE owner_id = ? ORDER BY fetched_at DESC
	`
	rows, err := r.db.Query(query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.ID, &t.Title, &t.OwnerID, &t.OwnerHandle, &t.Duration, &t.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// Count returns the number of cached tracks.
func (r *TrackRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM tracks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}
