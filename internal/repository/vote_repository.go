package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/iliyamo/jam-queue/internal/model"
)

// VoteRepo provides data access to the `votes` table.  The table's primary
// key is (user_id, track_id), which is what makes the single-row-per-pair
// invariant hold even if two writers race past the row lock: the second
// insert fails with a duplicate key instead of creating a second row.
type VoteRepo struct {
    db *sql.DB
}

// NewVoteRepo returns a new VoteRepo bound to the given database.
func NewVoteRepo(db *sql.DB) *VoteRepo { return &VoteRepo{db: db} }

// Cast applies one user's vote on one track and returns what happened plus
// the track's resulting net score.  The whole decision runs inside a single
// transaction with the existing vote row locked, so concurrent casts for
// the same (user, track) pair serialize:
//
//   no row            -> insert               (added)
//   same direction    -> delete               (removed, toggle-off)
//   opposite direction-> update in place      (switched)
//
// The net score is recomputed from the vote rows in the same transaction,
// never tracked as a counter, so the returned value reflects exactly the
// committed state.  A duplicate-key failure on the insert path means a
// concurrent cast won the race; it surfaces as ErrConflict and is safe to
// retry because of the toggle semantics.
func (r *VoteRepo) Cast(ctx context.Context, userID, trackID uint64, dir model.Direction) (model.VoteOutcome, int, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return "", 0, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // Lock the current vote row for this pair, if any.
    var current model.Direction
    err = tx.QueryRowContext(ctx,
        `SELECT direction FROM votes WHERE user_id = ? AND track_id = ? FOR UPDATE`,
        userID, trackID,
    ).Scan(&current)

    var outcome model.VoteOutcome
    switch {
    case errors.Is(err, sql.ErrNoRows):
        _, err = tx.ExecContext(ctx,
            `INSERT INTO votes (user_id, track_id, direction) VALUES (?, ?, ?)`,
            userID, trackID, string(dir))
        if err != nil {
            if strings.Contains(strings.ToLower(err.Error()), "1062") {
                return "", 0, ErrConflict
            }
            return "", 0, err
        }
        outcome = model.VoteAdded
    case err != nil:
        return "", 0, err
    case current == dir:
        if _, err = tx.ExecContext(ctx,
            `DELETE FROM votes WHERE user_id = ? AND track_id = ?`,
            userID, trackID); err != nil {
            return "", 0, err
        }
        outcome = model.VoteRemoved
    default:
        // Replacing the direction on the locked row removes the old vote and
        // records the new one as one atomic write.
        if _, err = tx.ExecContext(ctx,
            `UPDATE votes SET direction = ?, created_at = UTC_TIMESTAMP() WHERE user_id = ? AND track_id = ?`,
            string(dir), userID, trackID); err != nil {
            return "", 0, err
        }
        outcome = model.VoteSwitched
    }

    score, err := netScoreTx(ctx, tx, trackID)
    if err != nil {
        return "", 0, err
    }
    if err := tx.Commit(); err != nil {
        return "", 0, err
    }
    committed = true
    return outcome, score, nil
}

// NetScore recomputes upvotes minus downvotes for a track from the raw vote
// rows.  Zero is returned for tracks with no votes.
func (r *VoteRepo) NetScore(ctx context.Context, trackID uint64) (int, error) {
    const q = `SELECT COALESCE(SUM(CASE direction WHEN 'UP' THEN 1 ELSE -1 END), 0)
               FROM votes WHERE track_id = ?`
    var score int
    if err := r.db.QueryRowContext(ctx, q, trackID).Scan(&score); err != nil {
        return 0, err
    }
    return score, nil
}

func netScoreTx(ctx context.Context, tx *sql.Tx, trackID uint64) (int, error) {
    const q = `SELECT COALESCE(SUM(CASE direction WHEN 'UP' THEN 1 ELSE -1 END), 0)
               FROM votes WHERE track_id = ?`
    var score int
    if err := tx.QueryRowContext(ctx, q, trackID).Scan(&score); err != nil {
        return 0, err
    }
    return score, nil
}

// ByUserForJam returns the calling user's current votes across a jam's
// tracks, keyed by track id.  Used to decorate queue snapshots with the
// viewer's own vote.
func (r *VoteRepo) ByUserForJam(ctx context.Context, userID, jamID uint64) (map[uint64]model.Direction, error) {
    const q = `SELECT v.track_id, v.direction
               FROM votes v
               JOIN tracks t ON t.id = v.track_id
               WHERE v.user_id = ? AND t.jam_id = ?`
    rows, err := r.db.QueryContext(ctx, q, userID, jamID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make(map[uint64]model.Direction)
    for rows.Next() {
        var tid uint64
        var dir model.Direction
        if err := rows.Scan(&tid, &dir); err != nil {
            return nil, err
        }
        out[tid] = dir
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}
