// Package notifier fans out queue-change events to session subscribers.
// Delivery is best-effort and at-least-once at most: a slow or briefly
// disconnected subscriber may miss events and is expected to recover by
// re-reading the queue snapshot.  The notifier only reduces polling; it is
// never the source of truth.
package notifier

import "encoding/json"

// Type tags the closed set of event kinds.  Payloads are decoded from and
// encoded to JSON only at the transport boundary (SSE writer, Redis
// bridge); inside the service events are plain structs.
type Type string

const (
    TypeVoteChanged   Type = "vote_changed"
    TypeQueueAdvanced Type = "queue_advanced"
    TypeTrackAdded    Type = "track_added"
)

// VoteChanged reports a vote mutation and the track's resulting net score,
// as computed inside the mutating transaction.
type VoteChanged struct {
    TrackID     uint64 `json:"track_id"`
    NetScore    int    `json:"net_score"`
    ActorUserID uint64 `json:"actor_user_id"`
}

// QueueAdvanced reports a queue advance.  ActiveTrackID is nil when the
// queue ran empty.
type QueueAdvanced struct {
    ActiveTrackID *uint64 `json:"active_track_id"`
    QueueEmpty    bool    `json:"queue_empty"`
}

// TrackAdded reports a new submission to the queue.
type TrackAdded struct {
    TrackID uint64 `json:"track_id"`
}

// Event is the tagged union carried to subscribers.  Exactly one payload
// pointer is non-nil, matching Type.
type Event struct {
    Type          Type           `json:"type"`
    JamID         uint64         `json:"jam_id"`
    VoteChanged   *VoteChanged   `json:"vote_changed,omitempty"`
    QueueAdvanced *QueueAdvanced `json:"queue_advanced,omitempty"`
    TrackAdded    *TrackAdded    `json:"track_added,omitempty"`
}

// Encode serializes the event for the wire.
func (e Event) Encode() ([]byte, error) {
    return json.Marshal(e)
}

// Decode parses a wire payload back into an Event.
func Decode(bs []byte) (Event, error) {
    var e Event
    err := json.Unmarshal(bs, &e)
    return e, err
}
