package service

import (
    "context"

    "github.com/iliyamo/jam-queue/internal/cache"
    "github.com/iliyamo/jam-queue/internal/model"
    "github.com/iliyamo/jam-queue/internal/notifier"
    "github.com/iliyamo/jam-queue/internal/repository"
)

// The coordinator talks to its collaborators through these small
// interfaces.  The repository types satisfy them directly; tests swap in
// in-memory implementations.

// JamStore is the jam lifecycle surface the coordinator needs.
type JamStore interface {
    Create(ctx context.Context, name string, hostID uint64) (*model.Jam, error)
    GetByID(ctx context.Context, id uint64) (*model.Jam, error)
    Stats(ctx context.Context, jamID uint64) (*repository.JamStats, error)
}

// TrackStore persists submitted tracks.
type TrackStore interface {
    Create(ctx context.Context, t *model.Track) error
    GetByID(ctx context.Context, id uint64) (*model.Track, error)
}

// VoteStore applies and reads votes.  Cast must be atomic per
// (user, track) pair and must return the net score as of its own commit.
type VoteStore interface {
    Cast(ctx context.Context, userID, trackID uint64, dir model.Direction) (model.VoteOutcome, int, error)
    NetScore(ctx context.Context, trackID uint64) (int, error)
    ByUserForJam(ctx context.Context, userID, jamID uint64) (map[uint64]model.Direction, error)
}

// QueueStore selects next tracks and reads queue snapshots.  AdvanceNext
// must serialize per jam; Snapshot with userID = 0 must return a
// viewer-independent view.
type QueueStore interface {
    AdvanceNext(ctx context.Context, jamID uint64) (trackID uint64, queueEmpty bool, err error)
    Snapshot(ctx context.Context, jamID, userID uint64) (*repository.QueueSnapshot, error)
}

// UserStore answers whether an acting principal exists and is active.
type UserStore interface {
    Exists(ctx context.Context, id uint64) (bool, error)
}

// Cache is the derived-data cache.  Implementations must degrade rather
// than fail: Get reports cache.ErrMiss for every problem, Put and
// Invalidate never return errors.
type Cache interface {
    Get(ctx context.Context, ns cache.Namespace, key string, dest any) error
    Put(ctx context.Context, ns cache.Namespace, key string, val any)
    Invalidate(ctx context.Context, ns cache.Namespace, keys ...string)
}

// Publisher delivers change events to live subscribers, best-effort.
type Publisher interface {
    Publish(ctx context.Context, ev notifier.Event)
}
