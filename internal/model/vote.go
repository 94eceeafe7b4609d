package model

import "time"

// Direction is a vote's polarity.  The database stores it as an
// ENUM('UP','DOWN'); the zero value is invalid on purpose so a missing
// direction never silently counts as a vote.
type Direction string

const (
    DirectionUp   Direction = "UP"
    DirectionDown Direction = "DOWN"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
    return d == DirectionUp || d == DirectionDown
}

// Weight returns the direction's contribution to a track's net score.
func (d Direction) Weight() int {
    if d == DirectionUp {
        return 1
    }
    return -1
}

// Vote is one user's current opinion on one track, mirroring the `votes`
// table.  The primary key is (user_id, track_id), so at most one row exists
// per pair: re-voting the same direction deletes the row (toggle-off) and
// voting the opposite direction replaces it.  Votes are never historized.
type Vote struct {
    UserID    uint64    // votes.user_id
    TrackID   uint64    // votes.track_id
    Direction Direction // votes.direction
    CreatedAt time.Time // votes.created_at
}

// VoteOutcome describes what a cast-vote call actually did to the ledger.
type VoteOutcome string

const (
    VoteAdded    VoteOutcome = "added"    // no previous vote; row inserted
    VoteRemoved  VoteOutcome = "removed"  // same direction again; row deleted
    VoteSwitched VoteOutcome = "switched" // opposite direction; row replaced
)
