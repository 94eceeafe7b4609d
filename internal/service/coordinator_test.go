package service

import (
    "context"
    "encoding/json"
    "errors"
    "sort"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/jam-queue/internal/cache"
    "github.com/iliyamo/jam-queue/internal/config"
    "github.com/iliyamo/jam-queue/internal/metadata"
    "github.com/iliyamo/jam-queue/internal/model"
    "github.com/iliyamo/jam-queue/internal/notifier"
    "github.com/iliyamo/jam-queue/internal/queue"
    "github.com/iliyamo/jam-queue/internal/repository"
)

// memStore is an in-memory stand-in for the MySQL repositories.  A single
// mutex gives it the same observable atomicity the real stores get from
// transactions: casts serialize per call and advances consume each track
// exactly once.
type memStore struct {
    mu         sync.Mutex
    users      map[uint64]bool
    jams       map[uint64]*model.Jam
    tracks     map[uint64]*model.Track
    votes      map[voteKey]model.Direction
    nowPlaying map[uint64]uint64
    nextJamID  uint64
    nextTrack  uint64

    snapshotCalls int
}

type voteKey struct {
    user  uint64
    track uint64
}

func newMemStore() *memStore {
    return &memStore{
        users:      make(map[uint64]bool),
        jams:       make(map[uint64]*model.Jam),
        tracks:     make(map[uint64]*model.Track),
        votes:      make(map[voteKey]model.Direction),
        nowPlaying: make(map[uint64]uint64),
    }
}

func (m *memStore) addUser(id uint64) { m.users[id] = true }

func (m *memStore) Exists(ctx context.Context, id uint64) (bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.users[id], nil
}

func (m *memStore) Create(ctx context.Context, name string, hostID uint64) (*model.Jam, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.nextJamID++
    j := &model.Jam{ID: m.nextJamID, Name: name, HostID: hostID, IsActive: true, CreatedAt: time.Now().UTC()}
    m.jams[j.ID] = j
    return j, nil
}

func (m *memStore) GetByID(ctx context.Context, id uint64) (*model.Jam, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    j, ok := m.jams[id]
    if !ok {
        return nil, repository.ErrJamNotFound
    }
    cp := *j
    return &cp, nil
}

func (m *memStore) Stats(ctx context.Context, jamID uint64) (*repository.JamStats, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.jams[jamID]; !ok {
        return nil, repository.ErrJamNotFound
    }
    st := &repository.JamStats{JamID: jamID}
    for _, t := range m.tracks {
        if t.JamID != jamID {
            continue
        }
        st.TrackCount++
        if t.Played {
            st.PlayedCount++
        }
        for k := range m.votes {
            if k.track == t.ID {
                st.VoteCount++
            }
        }
    }
    return st, nil
}

// trackStore wraps memStore so both Create methods can coexist despite the
// identical names on JamStore and TrackStore.
type trackStore struct{ *memStore }

func (m trackStore) Create(ctx context.Context, t *model.Track) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.nextTrack++
    t.ID = m.nextTrack
    t.CreatedAt = time.Now().UTC()
    cp := *t
    m.tracks[t.ID] = &cp
    return nil
}

func (m trackStore) GetByID(ctx context.Context, id uint64) (*model.Track, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    t, ok := m.tracks[id]
    if !ok {
        return nil, repository.ErrTrackNotFound
    }
    cp := *t
    return &cp, nil
}

func (m *memStore) Cast(ctx context.Context, userID, trackID uint64, dir model.Direction) (model.VoteOutcome, int, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.tracks[trackID]; !ok {
        return "", 0, repository.ErrTrackNotFound
    }
    k := voteKey{user: userID, track: trackID}
    var outcome model.VoteOutcome
    current, ok := m.votes[k]
    switch {
    case !ok:
        m.votes[k] = dir
        outcome = model.VoteAdded
    case current == dir:
        delete(m.votes, k)
        outcome = model.VoteRemoved
    default:
        m.votes[k] = dir
        outcome = model.VoteSwitched
    }
    return outcome, m.netScoreLocked(trackID), nil
}

func (m *memStore) NetScore(ctx context.Context, trackID uint64) (int, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.netScoreLocked(trackID), nil
}

func (m *memStore) netScoreLocked(trackID uint64) int {
    score := 0
    for k, dir := range m.votes {
        if k.track == trackID {
            score += dir.Weight()
        }
    }
    return score
}

func (m *memStore) ByUserForJam(ctx context.Context, userID, jamID uint64) (map[uint64]model.Direction, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    out := make(map[uint64]model.Direction)
    for k, dir := range m.votes {
        if k.user != userID {
            continue
        }
        if t, ok := m.tracks[k.track]; ok && t.JamID == jamID {
            out[k.track] = dir
        }
    }
    return out, nil
}

func (m *memStore) AdvanceNext(ctx context.Context, jamID uint64) (uint64, bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.jams[jamID]; !ok {
        return 0, false, repository.ErrJamNotFound
    }
    pick := m.pickLocked(jamID)
    if pick == 0 {
        delete(m.nowPlaying, jamID)
        return 0, true, nil
    }
    m.tracks[pick].Played = true
    m.nowPlaying[jamID] = pick
    return pick, false, nil
}

// pickLocked mirrors the selector: highest net score first, ties broken by
// ascending track id, played tracks excluded.
func (m *memStore) pickLocked(jamID uint64) uint64 {
    var best uint64
    bestScore := 0
    for id, t := range m.tracks {
        if t.JamID != jamID || t.Played {
            continue
        }
        score := m.netScoreLocked(id)
        if best == 0 || score > bestScore || (score == bestScore && id < best) {
            best, bestScore = id, score
        }
    }
    return best
}

func (m *memStore) Snapshot(ctx context.Context, jamID, userID uint64) (*repository.QueueSnapshot, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.snapshotCalls++
    snap := &repository.QueueSnapshot{JamID: jamID, Tracks: []repository.QueueTrack{}}
    for id, t := range m.tracks {
        if t.JamID != jamID || t.Played {
            continue
        }
        snap.Tracks = append(snap.Tracks, repository.QueueTrack{
            ID: id, Provider: t.Provider, ExternalID: t.ExternalID,
            Title: t.Title, Artist: t.Artist, SubmitterID: t.SubmitterID,
            NetScore: m.netScoreLocked(id),
        })
    }
    sort.Slice(snap.Tracks, func(i, j int) bool {
        a, b := snap.Tracks[i], snap.Tracks[j]
        if a.NetScore != b.NetScore {
            return a.NetScore > b.NetScore
        }
        return a.ID < b.ID
    })
    if active, ok := m.nowPlaying[jamID]; ok {
        t := m.tracks[active]
        snap.Active = &repository.QueueTrack{
            ID: active, Provider: t.Provider, ExternalID: t.ExternalID,
            Title: t.Title, Artist: t.Artist, SubmitterID: t.SubmitterID,
            NetScore: m.netScoreLocked(active),
        }
    }
    return snap, nil
}

// fakeCache stores JSON blobs like the Redis cache does, so anything that
// survives a Put/Get here survives the real encoder too.
type fakeCache struct {
    mu   sync.Mutex
    data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string][]byte)} }

func (c *fakeCache) k(ns cache.Namespace, key string) string { return string(ns) + ":" + key }

func (c *fakeCache) Get(ctx context.Context, ns cache.Namespace, key string, dest any) error {
    c.mu.Lock()
    bs, ok := c.data[c.k(ns, key)]
    c.mu.Unlock()
    if !ok {
        return cache.ErrMiss
    }
    if err := json.Unmarshal(bs, dest); err != nil {
        return cache.ErrMiss
    }
    return nil
}

func (c *fakeCache) Put(ctx context.Context, ns cache.Namespace, key string, val any) {
    bs, err := json.Marshal(val)
    if err != nil {
        return
    }
    c.mu.Lock()
    c.data[c.k(ns, key)] = bs
    c.mu.Unlock()
}

func (c *fakeCache) Invalidate(ctx context.Context, ns cache.Namespace, keys ...string) {
    c.mu.Lock()
    for _, key := range keys {
        delete(c.data, c.k(ns, key))
    }
    c.mu.Unlock()
}

// fakeProvider answers metadata lookups from a fixed table.
type fakeProvider struct {
    mu      sync.Mutex
    known   map[string]metadata.TrackMetadata
    err     error
    lookups int
}

func (p *fakeProvider) Lookup(ctx context.Context, provider, externalID string) (*metadata.TrackMetadata, error) {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.lookups++
    if p.err != nil {
        return nil, p.err
    }
    md, ok := p.known[provider+":"+externalID]
    if !ok {
        return nil, metadata.ErrNotFound
    }
    return &md, nil
}

type fixture struct {
    co    *Coordinator
    store *memStore
    cache *fakeCache
    notif *notifier.Notifier
    prov  *fakeProvider
    jamID uint64
}

func newFixture(t *testing.T) *fixture {
    t.Helper()
    store := newMemStore()
    store.addUser(1)
    store.addUser(2)
    store.addUser(3)
    fc := newFakeCache()
    notif := notifier.New(notifier.NewBroker(), nil)
    prov := &fakeProvider{known: map[string]metadata.TrackMetadata{
        "youtube:abc": {Title: "Song A", Artist: "Artist A"},
        "youtube:def": {Title: "Song B", Artist: "Artist B"},
    }}
    co := NewCoordinator(store, trackStore{store}, store, store, store, fc, notif, prov)
    co.Durable = nil

    jam, err := co.CreateJam(context.Background(), 1, "friday night")
    require.NoError(t, err)
    return &fixture{co: co, store: store, cache: fc, notif: notif, prov: prov, jamID: jam.ID}
}

// seedTrack bypasses the metadata provider for tests that only care about
// queue mechanics.
func (f *fixture) seedTrack(t *testing.T, title string) uint64 {
    t.Helper()
    tr := &model.Track{JamID: f.jamID, Provider: "youtube", ExternalID: title, Title: title, SubmitterID: 1}
    require.NoError(t, trackStore{f.store}.Create(context.Background(), tr))
    return tr.ID
}

func (f *fixture) cast(t *testing.T, userID, trackID uint64, dir model.Direction) *VoteResult {
    t.Helper()
    res, err := f.co.CastVote(context.Background(), userID, trackID, dir)
    require.NoError(t, err)
    return res
}

func TestCastVoteLifecycle(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()
    track := f.seedTrack(t, "one")

    t.Run("first vote adds a row", func(t *testing.T) {
        res := f.cast(t, 1, track, model.DirectionUp)
        assert.Equal(t, model.VoteAdded, res.Outcome)
        assert.Equal(t, 1, res.NetScore)
        assert.Equal(t, f.jamID, res.JamID)
    })

    t.Run("same direction toggles off", func(t *testing.T) {
        res := f.cast(t, 1, track, model.DirectionUp)
        assert.Equal(t, model.VoteRemoved, res.Outcome)
        assert.Equal(t, 0, res.NetScore)
    })

    t.Run("opposite direction switches in place", func(t *testing.T) {
        f.cast(t, 1, track, model.DirectionUp)
        res := f.cast(t, 1, track, model.DirectionDown)
        assert.Equal(t, model.VoteSwitched, res.Outcome)
        // A switch moves the net score by two, never one.
        assert.Equal(t, -1, res.NetScore)
    })

    t.Run("votes from different users accumulate", func(t *testing.T) {
        f.cast(t, 2, track, model.DirectionUp)
        res := f.cast(t, 3, track, model.DirectionUp)
        assert.Equal(t, 1, res.NetScore) // -1 from user 1, +2 from users 2 and 3
    })

    t.Run("invalid direction is rejected before any lookup", func(t *testing.T) {
        _, err := f.co.CastVote(ctx, 1, track, model.Direction("SIDEWAYS"))
        assert.ErrorIs(t, err, ErrValidation)
    })

    t.Run("unknown user is rejected", func(t *testing.T) {
        _, err := f.co.CastVote(ctx, 99, track, model.DirectionUp)
        assert.ErrorIs(t, err, ErrAuthentication)
    })

    t.Run("unknown track is not found", func(t *testing.T) {
        _, err := f.co.CastVote(ctx, 1, 4040, model.DirectionUp)
        assert.ErrorIs(t, err, ErrNotFound)
    })
}

func TestAdvanceNextSelection(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    a := f.seedTrack(t, "a")
    b := f.seedTrack(t, "b")
    c := f.seedTrack(t, "c")

    // b: +2, a and c tie at 0; the tie breaks toward the older track a.
    f.cast(t, 1, b, model.DirectionUp)
    f.cast(t, 2, b, model.DirectionUp)

    t.Run("highest score wins", func(t *testing.T) {
        res, err := f.co.AdvanceNext(ctx, f.jamID)
        require.NoError(t, err)
        require.NotNil(t, res.ActiveTrackID)
        assert.Equal(t, b, *res.ActiveTrackID)
        assert.False(t, res.QueueEmpty)
    })

    t.Run("ties break by submission order", func(t *testing.T) {
        res, err := f.co.AdvanceNext(ctx, f.jamID)
        require.NoError(t, err)
        require.NotNil(t, res.ActiveTrackID)
        assert.Equal(t, a, *res.ActiveTrackID)
    })

    t.Run("played tracks never come back", func(t *testing.T) {
        // Upvoting the already-played b must not resurrect it.
        f.cast(t, 3, b, model.DirectionUp)
        res, err := f.co.AdvanceNext(ctx, f.jamID)
        require.NoError(t, err)
        require.NotNil(t, res.ActiveTrackID)
        assert.Equal(t, c, *res.ActiveTrackID)
    })

    t.Run("exhausted queue clears the pointer", func(t *testing.T) {
        res, err := f.co.AdvanceNext(ctx, f.jamID)
        require.NoError(t, err)
        assert.True(t, res.QueueEmpty)
        assert.Nil(t, res.ActiveTrackID)

        snap, err := f.co.QueueView(ctx, f.jamID, 0)
        require.NoError(t, err)
        assert.Nil(t, snap.Active)
        assert.Empty(t, snap.Tracks)
    })

    t.Run("advancing an empty queue stays empty", func(t *testing.T) {
        res, err := f.co.AdvanceNext(ctx, f.jamID)
        require.NoError(t, err)
        assert.True(t, res.QueueEmpty)
    })

    t.Run("unknown jam is not found", func(t *testing.T) {
        _, err := f.co.AdvanceNext(ctx, 4040)
        assert.ErrorIs(t, err, ErrNotFound)
    })
}

func TestQueueViewDecoration(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    a := f.seedTrack(t, "a")
    b := f.seedTrack(t, "b")
    f.cast(t, 1, a, model.DirectionUp)
    f.cast(t, 1, b, model.DirectionDown)

    t.Run("viewer sees own votes", func(t *testing.T) {
        snap, err := f.co.QueueView(ctx, f.jamID, 1)
        require.NoError(t, err)
        require.Len(t, snap.Tracks, 2)
        assert.Equal(t, a, snap.Tracks[0].ID) // +1 sorts above -1
        require.NotNil(t, snap.Tracks[0].UserVote)
        assert.Equal(t, "UP", *snap.Tracks[0].UserVote)
        require.NotNil(t, snap.Tracks[1].UserVote)
        assert.Equal(t, "DOWN", *snap.Tracks[1].UserVote)
    })

    t.Run("another viewer's snapshot is not polluted", func(t *testing.T) {
        snap, err := f.co.QueueView(ctx, f.jamID, 2)
        require.NoError(t, err)
        for _, tr := range snap.Tracks {
            assert.Nil(t, tr.UserVote)
        }
    })

    t.Run("anonymous view carries no votes", func(t *testing.T) {
        snap, err := f.co.QueueView(ctx, f.jamID, 0)
        require.NoError(t, err)
        for _, tr := range snap.Tracks {
            assert.Nil(t, tr.UserVote)
        }
    })

    t.Run("repeated reads hit the cache", func(t *testing.T) {
        before := f.store.snapshotCalls
        for i := 0; i < 5; i++ {
            _, err := f.co.QueueView(ctx, f.jamID, 0)
            require.NoError(t, err)
        }
        assert.Equal(t, before, f.store.snapshotCalls)
    })

    t.Run("unknown jam is not found", func(t *testing.T) {
        _, err := f.co.QueueView(ctx, 4040, 1)
        assert.ErrorIs(t, err, ErrNotFound)
    })
}

func TestVoteInvalidatesDerivedData(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()
    track := f.seedTrack(t, "one")

    // Prime every derived value.
    _, err := f.co.QueueView(ctx, f.jamID, 1)
    require.NoError(t, err)
    score, err := f.co.TrackScore(ctx, track)
    require.NoError(t, err)
    assert.Equal(t, 0, score)
    _, err = f.co.JamStats(ctx, f.jamID)
    require.NoError(t, err)

    f.cast(t, 1, track, model.DirectionUp)

    // Every read now reflects the committed vote, not the cached past.
    snap, err := f.co.QueueView(ctx, f.jamID, 1)
    require.NoError(t, err)
    require.Len(t, snap.Tracks, 1)
    assert.Equal(t, 1, snap.Tracks[0].NetScore)
    require.NotNil(t, snap.Tracks[0].UserVote)

    score, err = f.co.TrackScore(ctx, track)
    require.NoError(t, err)
    assert.Equal(t, 1, score)

    st, err := f.co.JamStats(ctx, f.jamID)
    require.NoError(t, err)
    assert.Equal(t, uint64(1), st.VoteCount)
}

func TestSubmitTrack(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    t.Run("resolves metadata and queues the track", func(t *testing.T) {
        tr, err := f.co.SubmitTrack(ctx, f.jamID, 1, "youtube", "abc")
        require.NoError(t, err)
        assert.NotZero(t, tr.ID)
        assert.Equal(t, "Song A", tr.Title)
        assert.Equal(t, "Artist A", tr.Artist)

        snap, err := f.co.QueueView(ctx, f.jamID, 0)
        require.NoError(t, err)
        require.Len(t, snap.Tracks, 1)
        assert.Equal(t, tr.ID, snap.Tracks[0].ID)
    })

    t.Run("metadata lookups are cached", func(t *testing.T) {
        before := f.prov.lookups
        _, err := f.co.SubmitTrack(ctx, f.jamID, 2, "youtube", "abc")
        require.NoError(t, err)
        assert.Equal(t, before, f.prov.lookups)
    })

    t.Run("unknown reference is rejected as invalid", func(t *testing.T) {
        _, err := f.co.SubmitTrack(ctx, f.jamID, 1, "youtube", "nope")
        assert.ErrorIs(t, err, ErrValidation)
    })

    t.Run("provider outage is a storage failure", func(t *testing.T) {
        f.prov.err = metadata.ErrUnavailable
        defer func() { f.prov.err = nil }()
        _, err := f.co.SubmitTrack(ctx, f.jamID, 1, "youtube", "def")
        assert.ErrorIs(t, err, ErrStorage)
    })

    t.Run("empty reference is rejected", func(t *testing.T) {
        _, err := f.co.SubmitTrack(ctx, f.jamID, 1, "youtube", "")
        assert.ErrorIs(t, err, ErrValidation)
    })

    t.Run("unknown jam is not found", func(t *testing.T) {
        _, err := f.co.SubmitTrack(ctx, 4040, 1, "youtube", "abc")
        assert.ErrorIs(t, err, ErrNotFound)
    })

    t.Run("accepted submissions reach the durable publisher", func(t *testing.T) {
        published := make(chan queue.TrackSubmittedEvent, 1)
        f.co.Durable = func(ctx context.Context, ev queue.TrackSubmittedEvent) error {
            published <- ev
            return nil
        }
        defer func() { f.co.Durable = nil }()

        tr, err := f.co.SubmitTrack(ctx, f.jamID, 1, "youtube", "def")
        require.NoError(t, err)
        select {
        case ev := <-published:
            assert.Equal(t, tr.ID, ev.TrackID)
            assert.Equal(t, "friday night", ev.JamName)
            assert.Equal(t, "Song B", ev.Title)
        case <-time.After(2 * time.Second):
            t.Fatal("durable publish never happened")
        }
    })
}

func TestEventsReachSubscribers(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()
    track := f.seedTrack(t, "one")

    sub := f.notif.Subscribe(f.jamID)
    defer sub.Close()

    recv := func() notifier.Event {
        select {
        case ev := <-sub.C:
            return ev
        case <-time.After(time.Second):
            t.Fatal("no event delivered")
            return notifier.Event{}
        }
    }

    f.cast(t, 1, track, model.DirectionUp)
    ev := recv()
    require.Equal(t, notifier.TypeVoteChanged, ev.Type)
    require.NotNil(t, ev.VoteChanged)
    assert.Equal(t, track, ev.VoteChanged.TrackID)
    assert.Equal(t, 1, ev.VoteChanged.NetScore)
    assert.Equal(t, uint64(1), ev.VoteChanged.ActorUserID)

    _, err := f.co.AdvanceNext(ctx, f.jamID)
    require.NoError(t, err)
    ev = recv()
    require.Equal(t, notifier.TypeQueueAdvanced, ev.Type)
    require.NotNil(t, ev.QueueAdvanced)
    require.NotNil(t, ev.QueueAdvanced.ActiveTrackID)
    assert.Equal(t, track, *ev.QueueAdvanced.ActiveTrackID)

    _, err = f.co.SubmitTrack(ctx, f.jamID, 1, "youtube", "abc")
    require.NoError(t, err)
    ev = recv()
    require.Equal(t, notifier.TypeTrackAdded, ev.Type)
    require.NotNil(t, ev.TrackAdded)

    // Events for other jams never leak into this subscription.
    other, err := f.co.CreateJam(ctx, 2, "other room")
    require.NoError(t, err)
    _, err = f.co.SubmitTrack(ctx, other.ID, 2, "youtube", "abc")
    require.NoError(t, err)
    select {
    case ev := <-sub.C:
        t.Fatalf("unexpected cross-jam event: %+v", ev)
    case <-time.After(50 * time.Millisecond):
    }
}

func TestConcurrentCastsSamePair(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()
    track := f.seedTrack(t, "contended")

    const workers = 32
    var wg sync.WaitGroup
    for i := 0; i < workers; i++ {
        dir := model.DirectionUp
        if i%3 == 0 {
            dir = model.DirectionDown
        }
        wg.Add(1)
        go func(d model.Direction) {
            defer wg.Done()
            _, err := f.co.CastVote(ctx, 1, track, d)
            assert.NoError(t, err)
        }(dir)
    }
    wg.Wait()

    // However the casts interleaved, the pair holds at most one row and
    // the score is exactly that row's weight.
    f.store.mu.Lock()
    dir, exists := f.store.votes[voteKey{user: 1, track: track}]
    f.store.mu.Unlock()

    score, err := f.co.TrackScore(ctx, track)
    require.NoError(t, err)
    if exists {
        assert.Equal(t, dir.Weight(), score)
    } else {
        assert.Zero(t, score)
    }
}

func TestConcurrentAdvancesConsumeEachTrackOnce(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()

    tracks := map[uint64]bool{
        f.seedTrack(t, "a"): true,
        f.seedTrack(t, "b"): true,
        f.seedTrack(t, "c"): true,
    }

    const workers = 10
    results := make(chan *AdvanceResult, workers)
    var wg sync.WaitGroup
    for i := 0; i < workers; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            res, err := f.co.AdvanceNext(ctx, f.jamID)
            if assert.NoError(t, err) {
                results <- res
            }
        }()
    }
    wg.Wait()
    close(results)

    won := make(map[uint64]int)
    empties := 0
    for res := range results {
        if res.QueueEmpty {
            empties++
            continue
        }
        require.NotNil(t, res.ActiveTrackID)
        won[*res.ActiveTrackID]++
    }
    assert.Len(t, won, len(tracks))
    for id, n := range won {
        assert.True(t, tracks[id], "advance returned a track that was never queued: %d", id)
        assert.Equal(t, 1, n, "track %d was consumed more than once", id)
    }
    assert.Equal(t, workers-len(tracks), empties)
}

func TestRunsWithoutCache(t *testing.T) {
    // A disabled cache store behaves as permanently empty; every operation
    // falls through to the authoritative store and still works.
    store := newMemStore()
    store.addUser(1)
    degraded := cache.New(config.CacheConfig{Enabled: false}, nil)
    notif := notifier.New(notifier.NewBroker(), nil)
    prov := &fakeProvider{known: map[string]metadata.TrackMetadata{
        "youtube:abc": {Title: "Song A", Artist: "Artist A"},
    }}
    co := NewCoordinator(store, trackStore{store}, store, store, store, degraded, notif, prov)
    co.Durable = nil

    ctx := context.Background()
    jam, err := co.CreateJam(ctx, 1, "offline party")
    require.NoError(t, err)

    tr, err := co.SubmitTrack(ctx, jam.ID, 1, "youtube", "abc")
    require.NoError(t, err)

    res, err := co.CastVote(ctx, 1, tr.ID, model.DirectionUp)
    require.NoError(t, err)
    assert.Equal(t, 1, res.NetScore)

    snap, err := co.QueueView(ctx, jam.ID, 1)
    require.NoError(t, err)
    require.Len(t, snap.Tracks, 1)
    assert.Equal(t, 1, snap.Tracks[0].NetScore)

    adv, err := co.AdvanceNext(ctx, jam.ID)
    require.NoError(t, err)
    require.NotNil(t, adv.ActiveTrackID)
    assert.Equal(t, tr.ID, *adv.ActiveTrackID)
}

func TestErrorTaxonomyMapping(t *testing.T) {
    cases := []struct {
        name string
        in   error
        want error
    }{
        {"jam not found", repository.ErrJamNotFound, ErrNotFound},
        {"track not found", repository.ErrTrackNotFound, ErrNotFound},
        {"user not found", repository.ErrUserNotFound, ErrNotFound},
        {"conflict", repository.ErrConflict, ErrConflict},
        {"anything else", errors.New("connection reset"), ErrStorage},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            assert.ErrorIs(t, mapStoreError(tc.in), tc.want)
        })
    }
    assert.NoError(t, mapStoreError(nil))
}
