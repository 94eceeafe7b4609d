package model

import "time"

// Jam represents one collaborative queue instance as stored in the `jams`
// table.  Every track, vote and now-playing pointer belongs to exactly one
// jam; operations on different jams never contend with each other.
type Jam struct {
    ID        uint64    // jams.id
    Name      string    // jams.name
    HostID    uint64    // jams.host_id (user who created the jam)
    IsActive  bool      // jams.is_active
    CreatedAt time.Time // jams.created_at
    UpdatedAt time.Time // jams.updated_at
}

// NowPlaying mirrors the `now_playing` table: the track currently selected
// as playing for a jam.  The jam_id column is unique, so a jam can never
// point at two tracks at once; absence of a row means nothing is playing.
type NowPlaying struct {
    JamID     uint64    // now_playing.jam_id (unique)
    TrackID   uint64    // now_playing.track_id
    StartedAt time.Time // now_playing.started_at
}
