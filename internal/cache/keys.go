package cache

import "strconv"

// Key naming convention: {prefix}:{namespace}:{entity ids}.  These helpers
// are the only place keys are spelled out, so a mutation path and the read
// path it invalidates cannot drift apart.

// QueueKey names a jam's queue snapshot (viewer-independent part of the
// key; per-user decoration is keyed separately, see UserVotesKey).
func QueueKey(jamID uint64) string {
    return strconv.FormatUint(jamID, 10)
}

// TallyKey names a track's cached net score.
func TallyKey(trackID uint64) string {
    return strconv.FormatUint(trackID, 10)
}

// UserVotesKey names one user's vote set within a jam.
func UserVotesKey(jamID, userID uint64) string {
    return strconv.FormatUint(jamID, 10) + ":" + strconv.FormatUint(userID, 10)
}

// StatsKey names a jam's aggregate counters.
func StatsKey(jamID uint64) string {
    return strconv.FormatUint(jamID, 10)
}

// MetadataKey names a provider lookup by external reference.
func MetadataKey(provider, externalID string) string {
    return provider + ":" + externalID
}
