// Package queue defines message payloads exchanged over the message broker.
package queue

// TrackSubmittedEvent is published when a track is added to a jam's queue.
// It contains enough information for downstream consumers to log, notify or
// feed analytics without querying the primary database.
type TrackSubmittedEvent struct {
    TrackID         uint64 `json:"track_id"`
    JamID           uint64 `json:"jam_id"`
    JamName         string `json:"jam_name"`
    SubmitterID     uint64 `json:"submitter_id"`
    Provider        string `json:"provider"`
    ExternalID      string `json:"external_id"`
    Title           string `json:"title"`
    Artist          string `json:"artist"`
    DurationSeconds uint32 `json:"duration_seconds"`
    SubmittedAt     string `json:"submitted_at"`
}
