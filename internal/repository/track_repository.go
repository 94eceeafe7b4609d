package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/jam-queue/internal/model"
)

// TrackRepo provides data access to the `tracks` table.
type TrackRepo struct {
    db *sql.DB
}

// NewTrackRepo returns a new TrackRepo bound to the given database.
func NewTrackRepo(db *sql.DB) *TrackRepo { return &TrackRepo{db: db} }

// Create inserts a new track into its jam's queue and populates the
// generated ID and timestamps on the provided model.  The played flag
// always starts false; only an advance may flip it.
func (r *TrackRepo) Create(ctx context.Context, t *model.Track) error {
    const q = `INSERT INTO tracks
               (jam_id, provider, external_id, title, artist, duration_seconds, thumbnail_url, submitter_id)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q,
        t.JamID, t.Provider, t.ExternalID, t.Title, t.Artist,
        t.DurationSeconds, t.ThumbnailURL, t.SubmitterID,
    )
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    t.ID = uint64(id)
    // Query back the row to populate defaults set by the database.
    const sel = `SELECT played, created_at FROM tracks WHERE id = ?`
    return r.db.QueryRowContext(ctx, sel, t.ID).Scan(&t.Played, &t.CreatedAt)
}

// GetByID fetches a track by id, returning ErrTrackNotFound when absent.
func (r *TrackRepo) GetByID(ctx context.Context, id uint64) (*model.Track, error) {
    const q = `SELECT id, jam_id, provider, external_id, title, artist,
                      duration_seconds, thumbnail_url, submitter_id, played, created_at
               FROM tracks WHERE id = ?`
    var t model.Track
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &t.ID, &t.JamID, &t.Provider, &t.ExternalID, &t.Title, &t.Artist,
        &t.DurationSeconds, &t.ThumbnailURL, &t.SubmitterID, &t.Played, &t.CreatedAt,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrTrackNotFound
    }
    if err != nil {
        return nil, err
    }
    return &t, nil
}
