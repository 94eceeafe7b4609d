package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/jam-queue/internal/model"
)

// JamRepo provides data access to the `jams` table.  A jam is the unit of
// isolation for everything else in this service: advances serialize on the
// jam row, and cache keys and event channels are namespaced by jam id.
type JamRepo struct {
    db *sql.DB
}

// NewJamRepo returns a new JamRepo bound to the given database.
func NewJamRepo(db *sql.DB) *JamRepo { return &JamRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span several repositories.
func (r *JamRepo) DB() *sql.DB { return r.db }

// Create inserts a new jam owned by hostID and returns the populated model.
func (r *JamRepo) Create(ctx context.Context, name string, hostID uint64) (*model.Jam, error) {
    res, err := r.db.ExecContext(ctx,
        `INSERT INTO jams (name, host_id) VALUES (?, ?)`, name, hostID)
    if err != nil {
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }
    return r.GetByID(ctx, uint64(id))
}

// GetByID fetches a jam by id.  It returns ErrJamNotFound when no row
// exists so callers can map the failure without inspecting sql errors.
func (r *JamRepo) GetByID(ctx context.Context, id uint64) (*model.Jam, error) {
    const q = `SELECT id, name, host_id, is_active, created_at, updated_at FROM jams WHERE id = ?`
    var j model.Jam
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &j.ID, &j.Name, &j.HostID, &j.IsActive, &j.CreatedAt, &j.UpdatedAt,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrJamNotFound
    }
    if err != nil {
        return nil, err
    }
    return &j, nil
}

// JamStats aggregates per-jam counters for the stats endpoint.  The values
// are always computed from the track and vote rows; cached copies of this
// struct are a read optimization, never a source of truth.
type JamStats struct {
    JamID       uint64 `json:"jam_id"`
    TrackCount  uint64 `json:"track_count"`
    PlayedCount uint64 `json:"played_count"`
    VoteCount   uint64 `json:"vote_count"`
}

// Stats recomputes the aggregate counters for one jam.
func (r *JamRepo) Stats(ctx context.Context, jamID uint64) (*JamStats, error) {
    if _, err := r.GetByID(ctx, jamID); err != nil {
        return nil, err
    }
    st := &JamStats{JamID: jamID}
    const trackQ = `SELECT COUNT(*), COALESCE(SUM(played), 0) FROM tracks WHERE jam_id = ?`
    if err := r.db.QueryRowContext(ctx, trackQ, jamID).Scan(&st.TrackCount, &st.PlayedCount); err != nil {
        return nil, err
    }
    const voteQ = `SELECT COUNT(*)
                   FROM votes v
                   JOIN tracks t ON t.id = v.track_id
                   WHERE t.jam_id = ?`
    if err := r.db.QueryRowContext(ctx, voteQ, jamID).Scan(&st.VoteCount); err != nil {
        return nil, err
    }
    return st, nil
}
