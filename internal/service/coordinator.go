package service

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/jam-queue/internal/cache"
    "github.com/iliyamo/jam-queue/internal/metadata"
    "github.com/iliyamo/jam-queue/internal/model"
    "github.com/iliyamo/jam-queue/internal/notifier"
    "github.com/iliyamo/jam-queue/internal/queue"
    "github.com/iliyamo/jam-queue/internal/repository"
)

// Coordinator sequences every queue mutation the same way: validate the
// input, apply the atomic store mutation, invalidate the derived cache
// entries the mutation made stale, then publish a change event.  The first
// two steps decide the outcome; the last two are best-effort and never turn
// a committed mutation into an error.
type Coordinator struct {
    Jams   JamStore
    Tracks TrackStore
    Votes  VoteStore
    Queue  QueueStore
    Users  UserStore

    Cache  Cache
    Events Publisher

    Metadata metadata.Provider

    // Durable, when set, receives a copy of every accepted submission for
    // the message broker.  It runs detached from the request and its
    // errors are logged by the publisher itself.
    Durable func(ctx context.Context, ev queue.TrackSubmittedEvent) error
}

// NewCoordinator wires a Coordinator over the production repositories.
func NewCoordinator(
    jams JamStore, tracks TrackStore, votes VoteStore, q QueueStore, users UserStore,
    c Cache, events Publisher, md metadata.Provider,
) *Coordinator {
    return &Coordinator{
        Jams: jams, Tracks: tracks, Votes: votes, Queue: q, Users: users,
        Cache: c, Events: events, Metadata: md,
        Durable: queue.PublishTrackSubmitted,
    }
}

// CreateJam opens a new jam owned by hostID.
func (co *Coordinator) CreateJam(ctx context.Context, hostID uint64, name string) (*model.Jam, error) {
    if name == "" {
        return nil, fmt.Errorf("%w: jam name must not be empty", ErrValidation)
    }
    if err := co.requireUser(ctx, hostID); err != nil {
        return nil, err
    }
    jam, err := co.Jams.Create(ctx, name, hostID)
    if err != nil {
        return nil, mapStoreError(err)
    }
    return jam, nil
}

// VoteResult is what a cast settles on: the outcome of this user's action
// and the track's net score as of the mutation's commit.
type VoteResult struct {
    TrackID  uint64            `json:"track_id"`
    JamID    uint64            `json:"jam_id"`
    Outcome  model.VoteOutcome `json:"applied"`
    NetScore int               `json:"net_score"`
}

// CastVote applies one user's up or down vote on a track.  Voting twice in
// the same direction removes the vote; voting the opposite direction
// switches it.  The returned net score is recomputed inside the mutating
// transaction, so repeated identical calls are safe to retry after a
// transient failure.
func (co *Coordinator) CastVote(ctx context.Context, userID, trackID uint64, dir model.Direction) (*VoteResult, error) {
    if !dir.Valid() {
        return nil, fmt.Errorf("%w: direction must be UP or DOWN", ErrValidation)
    }
    if err := co.requireUser(ctx, userID); err != nil {
        return nil, err
    }
    track, err := co.Tracks.GetByID(ctx, trackID)
    if err != nil {
        return nil, mapStoreError(err)
    }

    outcome, score, err := co.Votes.Cast(ctx, userID, trackID, dir)
    if err != nil {
        return nil, mapStoreError(err)
    }

    co.invalidateAfterVote(ctx, track.JamID, trackID, userID)
    co.Events.Publish(ctx, notifier.Event{
        Type:  notifier.TypeVoteChanged,
        JamID: track.JamID,
        VoteChanged: &notifier.VoteChanged{
            TrackID:     trackID,
            NetScore:    score,
            ActorUserID: userID,
        },
    })
    return &VoteResult{TrackID: trackID, JamID: track.JamID, Outcome: outcome, NetScore: score}, nil
}

// SubmitTrack resolves an external reference through the metadata provider
// and appends it to the jam's queue.  Provider lookups are cached for a
// long TTL because external metadata is effectively immutable.
func (co *Coordinator) SubmitTrack(ctx context.Context, jamID, submitterID uint64, provider, externalID string) (*model.Track, error) {
    if provider == "" || externalID == "" {
        return nil, fmt.Errorf("%w: provider and external id are required", ErrValidation)
    }
    if err := co.requireUser(ctx, submitterID); err != nil {
        return nil, err
    }
    jam, err := co.Jams.GetByID(ctx, jamID)
    if err != nil {
        return nil, mapStoreError(err)
    }

    md, err := co.lookupMetadata(ctx, provider, externalID)
    if err != nil {
        return nil, err
    }

    track := &model.Track{
        JamID:           jamID,
        Provider:        provider,
        ExternalID:      externalID,
        Title:           md.Title,
        Artist:          md.Artist,
        DurationSeconds: md.DurationSeconds,
        ThumbnailURL:    md.ThumbnailURL,
        SubmitterID:     submitterID,
    }
    if err := co.Tracks.Create(ctx, track); err != nil {
        return nil, mapStoreError(err)
    }

    co.Cache.Invalidate(ctx, cache.NamespaceQueue, cache.QueueKey(jamID))
    co.Cache.Invalidate(ctx, cache.NamespaceStats, cache.StatsKey(jamID))
    co.Events.Publish(ctx, notifier.Event{
        Type:       notifier.TypeTrackAdded,
        JamID:      jamID,
        TrackAdded: &notifier.TrackAdded{TrackID: track.ID},
    })

    if co.Durable != nil {
        ev := queue.TrackSubmittedEvent{
            TrackID:         track.ID,
            JamID:           jamID,
            JamName:         jam.Name,
            SubmitterID:     submitterID,
            Provider:        provider,
            ExternalID:      externalID,
            Title:           track.Title,
            Artist:          track.Artist,
            DurationSeconds: track.DurationSeconds,
            SubmittedAt:     time.Now().UTC().Format(time.RFC3339),
        }
        // Detached from the request: the submission is already committed
        // and a broker outage must not fail it.
        go func() {
            pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
            defer cancel()
            _ = co.Durable(pctx, ev)
        }()
    }
    return track, nil
}

// AdvanceResult reports what an advance settled on.
type AdvanceResult struct {
    JamID         uint64  `json:"jam_id"`
    ActiveTrackID *uint64 `json:"active_track_id"`
    QueueEmpty    bool    `json:"queue_empty"`
}

// AdvanceNext moves the jam to its next track: the unplayed track with the
// highest net score, ties broken by submission order.  Concurrent advances
// for the same jam serialize in the store; each winner is consumed exactly
// once.  An empty queue is a normal outcome, not an error.
func (co *Coordinator) AdvanceNext(ctx context.Context, jamID uint64) (*AdvanceResult, error) {
    trackID, empty, err := co.Queue.AdvanceNext(ctx, jamID)
    if err != nil {
        return nil, mapStoreError(err)
    }

    co.Cache.Invalidate(ctx, cache.NamespaceQueue, cache.QueueKey(jamID))
    co.Cache.Invalidate(ctx, cache.NamespaceStats, cache.StatsKey(jamID))

    res := &AdvanceResult{JamID: jamID, QueueEmpty: empty}
    if !empty {
        id := trackID
        res.ActiveTrackID = &id
    }
    co.Events.Publish(ctx, notifier.Event{
        Type:  notifier.TypeQueueAdvanced,
        JamID: jamID,
        QueueAdvanced: &notifier.QueueAdvanced{
            ActiveTrackID: res.ActiveTrackID,
            QueueEmpty:    empty,
        },
    })
    return res, nil
}

// QueueView returns the jam's queue ordered by net score.  The
// viewer-independent snapshot and the viewer's own votes are cached
// separately so one user's read never leaks their votes into another
// user's view.  Pass userID = 0 for an undecorated view.
func (co *Coordinator) QueueView(ctx context.Context, jamID, userID uint64) (*repository.QueueSnapshot, error) {
    if _, err := co.Jams.GetByID(ctx, jamID); err != nil {
        return nil, mapStoreError(err)
    }

    var snap repository.QueueSnapshot
    if err := co.Cache.Get(ctx, cache.NamespaceQueue, cache.QueueKey(jamID), &snap); err != nil {
        fresh, err := co.Queue.Snapshot(ctx, jamID, 0)
        if err != nil {
            return nil, mapStoreError(err)
        }
        co.Cache.Put(ctx, cache.NamespaceQueue, cache.QueueKey(jamID), fresh)
        snap = *fresh
    }
    if userID == 0 {
        return &snap, nil
    }

    votes, err := co.userVotes(ctx, jamID, userID)
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
    return &snap, nil
}

// TrackScore returns a track's current net score, cached briefly.
func (co *Coordinator) TrackScore(ctx context.Context, trackID uint64) (int, error) {
    var score int
    if err := co.Cache.Get(ctx, cache.NamespaceTally, cache.TallyKey(trackID), &score); err == nil {
        return score, nil
    }
    if _, err := co.Tracks.GetByID(ctx, trackID); err != nil {
        return 0, mapStoreError(err)
    }
    score, err := co.Votes.NetScore(ctx, trackID)
    if err != nil {
        return 0, mapStoreError(err)
    }
    co.Cache.Put(ctx, cache.NamespaceTally, cache.TallyKey(trackID), score)
    return score, nil
}

// JamStats returns the jam's aggregate counters, cached briefly.
func (co *Coordinator) JamStats(ctx context.Context, jamID uint64) (*repository.JamStats, error) {
    var st repository.JamStats
    if err := co.Cache.Get(ctx, cache.NamespaceStats, cache.StatsKey(jamID), &st); err == nil {
        return &st, nil
    }
    fresh, err := co.Jams.Stats(ctx, jamID)
    if err != nil {
        return nil, mapStoreError(err)
    }
    co.Cache.Put(ctx, cache.NamespaceStats, cache.StatsKey(jamID), fresh)
    return fresh, nil
}

func (co *Coordinator) requireUser(ctx context.Context, userID uint64) error {
    if userID == 0 {
        return fmt.Errorf("%w: missing user id", ErrAuthentication)
    }
    ok, err := co.Users.Exists(ctx, userID)
    if err != nil {
        return mapStoreError(err)
    }
    if !ok {
        return fmt.Errorf("%w: user %d", ErrAuthentication, userID)
    }
    return nil
}

// invalidateAfterVote names every derived value a vote mutation touches:
// the track's tally, the jam's ordered snapshot, the voter's own vote set
// and the jam counters.
func (co *Coordinator) invalidateAfterVote(ctx context.Context, jamID, trackID, userID uint64) {
    co.Cache.Invalidate(ctx, cache.NamespaceTally, cache.TallyKey(trackID))
    co.Cache.Invalidate(ctx, cache.NamespaceQueue, cache.QueueKey(jamID))
    co.Cache.Invalidate(ctx, cache.NamespaceVotes, cache.UserVotesKey(jamID, userID))
    co.Cache.Invalidate(ctx, cache.NamespaceStats, cache.StatsKey(jamID))
}

func (co *Coordinator) userVotes(ctx context.Context, jamID, userID uint64) (map[uint64]model.Direction, error) {
    votes := make(map[uint64]model.Direction)
    if err := co.Cache.Get(ctx, cache.NamespaceVotes, cache.UserVotesKey(jamID, userID), &votes); err == nil {
        return votes, nil
    }
    votes, err := co.Votes.ByUserForJam(ctx, userID, jamID)
    if err != nil {
        return nil, mapStoreError(err)
    }
    co.Cache.Put(ctx, cache.NamespaceVotes, cache.UserVotesKey(jamID, userID), votes)
    return votes, nil
}

// lookupMetadata resolves (provider, externalID) through the cache and the
// metadata provider, translating provider failures into the service
// taxonomy: an unknown reference is a bad submission, everything else is a
// transient failure the client may retry.
func (co *Coordinator) lookupMetadata(ctx context.Context, provider, externalID string) (*metadata.TrackMetadata, error) {
    var md metadata.TrackMetadata
    if err := co.Cache.Get(ctx, cache.NamespaceMetadata, cache.MetadataKey(provider, externalID), &md); err == nil {
        return &md, nil
    }
    fresh, err := co.Metadata.Lookup(ctx, provider, externalID)
    switch {
    case errors.Is(err, metadata.ErrNotFound):
        return nil, fmt.Errorf("%w: unknown %s reference %q", ErrValidation, provider, externalID)
    case errors.Is(err, metadata.ErrRateLimited), errors.Is(err, metadata.ErrUnavailable):
        return nil, fmt.Errorf("%w: metadata lookup: %v", ErrStorage, err)
    case err != nil:
        return nil, fmt.Errorf("%w: metadata lookup: %v", ErrStorage, err)
    }
    co.Cache.Put(ctx, cache.NamespaceMetadata, cache.MetadataKey(provider, externalID), fresh)
    return fresh, nil
}
