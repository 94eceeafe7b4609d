package model

import "time"

// Track represents one submitted, playable item in a jam's queue as stored
// in the `tracks` table.  Provider plus ExternalID identify the item at the
// external media provider; title/artist/duration/thumbnail are copied from
// the provider's metadata at submission time.
//
// Played is monotonic: it flips false→true exactly once, when the track is
// selected by an advance, and never reverts.  Tracks are not deleted by this
// service; removing them is a session-management concern.
type Track struct {
    ID              uint64    // tracks.id
    JamID           uint64    // tracks.jam_id
    Provider        string    // tracks.provider (e.g. "youtube")
    ExternalID      string    // tracks.external_id
    Title           string    // tracks.title
    Artist          string    // tracks.artist
    DurationSeconds uint32    // tracks.duration_seconds
    ThumbnailURL    string    // tracks.thumbnail_url
    SubmitterID     uint64    // tracks.submitter_id
    Played          bool      // tracks.played
    CreatedAt       time.Time // tracks.created_at
}
