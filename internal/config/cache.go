package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// CacheConfig defines settings for the derived-data cache.  Each namespace
// gets its own TTL because the data differs in how stale it may safely be:
// queue snapshots, tallies and per-user vote sets change on every vote and
// carry single-digit-second TTLs as a safety net behind explicit
// invalidation, while provider metadata is immutable in practice and is kept
// for a full day.  Prefix namespaces all keys so several deployments can
// share one Redis instance.
type CacheConfig struct {
    Enabled     bool
    Prefix      string
    QueueTTL    time.Duration // unplayed-queue and active-track snapshots
    TallyTTL    time.Duration // per-track net scores
    VotesTTL    time.Duration // per-user vote sets
    StatsTTL    time.Duration // per-session aggregate stats
    MetadataTTL time.Duration // external provider lookups
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
// Defaults are used when variables are not set.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:     getenv("CACHE_ENABLED", "true") == "true",
        Prefix:      getenv("CACHE_PREFIX", "jam"),
        QueueTTL:    parseDur(getenv("CACHE_QUEUE_TTL", "5s")),
        TallyTTL:    parseDur(getenv("CACHE_TALLY_TTL", "5s")),
        VotesTTL:    parseDur(getenv("CACHE_VOTES_TTL", "5s")),
        StatsTTL:    parseDur(getenv("CACHE_STATS_TTL", "15s")),
        MetadataTTL: parseDur(getenv("CACHE_METADATA_TTL", "24h")),
    }
}

// Helper functions shared with redis.go and ratelimit.go.
func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseDur(s string) time.Duration {
    d, err := time.ParseDuration(s)
    if err != nil {
        return time.Second
    }
    return d
}

func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    switch strings.ToLower(v) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return d
}
