package repository

import (
    "context"
    "database/sql"
    "errors"
)

// QueueRepo implements the queue selector and snapshot reads over the
// tracks/votes/now_playing tables.  Advances serialize on the jam row so
// the "read unplayed set, flip played, move the pointer" sequence is one
// atomic unit per jam; different jams never block each other.
type QueueRepo struct {
    db *sql.DB
}

// NewQueueRepo returns a new QueueRepo bound to the given database.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

// QueueTrack is one unplayed track in a snapshot, decorated with its net
// score and (when requested for a user) the viewer's own vote.
type QueueTrack struct {
    ID              uint64  `json:"id"`
    Provider        string  `json:"provider"`
    ExternalID      string  `json:"external_id"`
    Title           string  `json:"title"`
    Artist          string  `json:"artist"`
    DurationSeconds uint32  `json:"duration_seconds"`
    ThumbnailURL    string  `json:"thumbnail_url"`
    SubmitterID     uint64  `json:"submitter_id"`
    NetScore        int     `json:"net_score"`
    UserVote        *string `json:"user_vote,omitempty"` // "UP", "DOWN" or absent
}

// QueueSnapshot is the full queue view for one jam: the unplayed tracks
// ordered by score (ties broken by ascending track id, so the order is
// stable and repeatable) plus the active track, if any.
type QueueSnapshot struct {
    JamID  uint64       `json:"jam_id"`
    Tracks []QueueTrack `json:"tracks"`
    Active *QueueTrack  `json:"active,omitempty"`
}

const scoreExpr = `COALESCE(SUM(CASE v.direction WHEN 'UP' THEN 1 ELSE -1 END), 0)`

// AdvanceNext atomically selects the next track for a jam.  Within one
// transaction it locks the jam row (serializing concurrent advances for the
// same jam), picks the unplayed track with the highest net score breaking
// ties by ascending id, marks it played and upserts the now_playing pointer.
// When no unplayed track remains it clears the pointer and reports
// queueEmpty.  Losing a lock race on the played flag returns ErrConflict;
// the system is intact, the caller just has to re-read.
func (r *QueueRepo) AdvanceNext(ctx context.Context, jamID uint64) (trackID uint64, queueEmpty bool, err error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return 0, false, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // Lock the jam row. Also doubles as the existence check.
    var locked uint64
    err = tx.QueryRowContext(ctx, `SELECT id FROM jams WHERE id = ? FOR UPDATE`, jamID).Scan(&locked)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, false, ErrJamNotFound
    }
    if err != nil {
        return 0, false, err
    }

    const pickQ = `SELECT t.id
                   FROM tracks t
                   LEFT JOIN votes v ON v.track_id = t.id
                   WHERE t.jam_id = ? AND t.played = 0
                   GROUP BY t.id
                   ORDER BY ` + scoreExpr + ` DESC, t.id ASC
                   LIMIT 1`
    var pick uint64
    err = tx.QueryRowContext(ctx, pickQ, jamID).Scan(&pick)
    if errors.Is(err, sql.ErrNoRows) {
        // Queue exhausted: clear the pointer so nothing reads as playing.
        if _, err := tx.ExecContext(ctx, `DELETE FROM now_playing WHERE jam_id = ?`, jamID); err != nil {
            return 0, false, err
        }
        if err := tx.Commit(); err != nil {
            return 0, false, err
        }
        committed = true
        return 0, true, nil
    }
    if err != nil {
        return 0, false, err
    }

    res, err := tx.ExecContext(ctx, `UPDATE tracks SET played = 1 WHERE id = ? AND played = 0`, pick)
    if err != nil {
        return 0, false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return 0, false, err
    }
    if n != 1 {
        // Someone marked it played between our read and write. The jam lock
        // should prevent this; treat it as a retryable race all the same.
        return 0, false, ErrConflict
    }

    // Upsert keyed by jam_id keeps the pointer singular per jam.
    const upsertQ = `INSERT INTO now_playing (jam_id, track_id, started_at)
                     VALUES (?, ?, UTC_TIMESTAMP())
                     ON DUPLICATE KEY UPDATE track_id = VALUES(track_id), started_at = VALUES(started_at)`
    if _, err := tx.ExecContext(ctx, upsertQ, jamID, pick); err != nil {
        return 0, false, err
    }
    if err := tx.Commit(); err != nil {
        return 0, false, err
    }
    committed = true
    return pick, false, nil
}

// Snapshot assembles the full queue view for one jam.  Pass userID = 0 to
// skip decorating tracks with the viewer's vote.  The result is computed
// entirely from the authoritative tables; callers cache it with a short TTL.
func (r *QueueRepo) Snapshot(ctx context.Context, jamID, userID uint64) (*QueueSnapshot, error) {
    const q = `SELECT t.id, t.provider, t.external_id, t.title, t.artist,
                      t.duration_seconds, t.thumbnail_url, t.submitter_id,
                      ` + scoreExpr + ` AS net_score
               FROM tracks t
               LEFT JOIN votes v ON v.track_id = t.id
               WHERE t.jam_id = ? AND t.played = 0
               GROUP BY t.id, t.provider, t.external_id, t.title, t.artist,
                        t.duration_seconds, t.thumbnail_url, t.submitter_id
               ORDER BY net_score DESC, t.id ASC`
    rows, err := r.db.QueryContext(ctx, q, jamID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    snap := &QueueSnapshot{JamID: jamID, Tracks: []QueueTrack{}}
    for rows.Next() {
        var qt QueueTrack
        if err := rows.Scan(
            &qt.ID, &qt.Provider, &qt.ExternalID, &qt.Title, &qt.Artist,
            &qt.DurationSeconds, &qt.ThumbnailURL, &qt.SubmitterID, &qt.NetScore,
        ); err != nil {
            return nil, err
        }
        snap.Tracks = append(snap.Tracks, qt)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }

    active, err := r.activeTrack(ctx, jamID)
    if err != nil {
        return nil, err
    }
    snap.Active = active

    if userID != 0 {
        votes, err := NewVoteRepo(r.db).ByUserForJam(ctx, userID, jamID)
        if err != nil {
            return nil, err
        }
        for i := range snap.Tracks {
            if dir, ok := votes[snap.Tracks[i].ID]; ok {
                s := string(dir)
                snap.Tracks[i].UserVote = &s
            }
        }
        if snap.Active != nil {
            if dir, ok := votes[snap.Active.ID]; ok {
                s := string(dir)
                snap.Active.UserVote = &s
            }
        }
    }
    return snap, nil
}

// activeTrack loads the now-playing track with its score, or nil when the
// jam has no active pointer.
func (r *QueueRepo) activeTrack(ctx context.Context, jamID uint64) (*QueueTrack, error) {
    const q = `SELECT t.id, t.provider, t.external_id, t.title, t.artist,
                      t.duration_seconds, t.thumbnail_url, t.submitter_id,
                      ` + scoreExpr + `
               FROM now_playing np
               JOIN tracks t ON t.id = np.track_id
               LEFT JOIN votes v ON v.track_id = t.id
               WHERE np.jam_id = ?
               GROUP BY t.id, t.provider, t.external_id, t.title, t.artist,
                        t.duration_seconds, t.thumbnail_url, t.submitter_id`
    var qt QueueTrack
    err := r.db.QueryRowContext(ctx, q, jamID).Scan(
        &qt.ID, &qt.Provider, &qt.ExternalID, &qt.Title, &qt.Artist,
        &qt.DurationSeconds, &qt.ThumbnailURL, &qt.SubmitterID, &qt.NetScore,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &qt, nil
}
