package cache

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"

    "github.com/iliyamo/jam-queue/internal/config"
)

func testConfig() config.CacheConfig {
    return config.CacheConfig{
        Enabled:     true,
        Prefix:      "jam",
        QueueTTL:    5 * time.Second,
        TallyTTL:    5 * time.Second,
        VotesTTL:    5 * time.Second,
        StatsTTL:    15 * time.Second,
        MetadataTTL: 24 * time.Hour,
    }
}

func TestStoreDegradesWithoutRedis(t *testing.T) {
    ctx := context.Background()
    s := New(testConfig(), nil)

    var out int
    assert.ErrorIs(t, s.Get(ctx, NamespaceTally, "1", &out), ErrMiss)

    // Writes and invalidations must be silent no-ops, never panics.
    s.Put(ctx, NamespaceTally, "1", 42)
    s.Invalidate(ctx, NamespaceTally, "1")
    assert.ErrorIs(t, s.Get(ctx, NamespaceTally, "1", &out), ErrMiss)
}

func TestStoreDisabledByConfig(t *testing.T) {
    cfg := testConfig()
    cfg.Enabled = false
    s := New(cfg, nil)

    var out string
    assert.ErrorIs(t, s.Get(context.Background(), NamespaceQueue, "1", &out), ErrMiss)
}

func TestNamespaceTTLs(t *testing.T) {
    s := New(testConfig(), nil)
    assert.Equal(t, 5*time.Second, s.TTL(NamespaceQueue))
    assert.Equal(t, 5*time.Second, s.TTL(NamespaceTally))
    assert.Equal(t, 5*time.Second, s.TTL(NamespaceVotes))
    assert.Equal(t, 15*time.Second, s.TTL(NamespaceStats))
    assert.Equal(t, 24*time.Hour, s.TTL(NamespaceMetadata))
    // Unknown namespaces fall back to a short TTL rather than forever.
    assert.Equal(t, time.Second, s.TTL(Namespace("bogus")))
}

func TestKeyLayout(t *testing.T) {
    s := New(testConfig(), nil)
    assert.Equal(t, "jam:queue:7", s.key(NamespaceQueue, QueueKey(7)))
    assert.Equal(t, "jam:tally:12", s.key(NamespaceTally, TallyKey(12)))
    assert.Equal(t, "jam:votes:7:3", s.key(NamespaceVotes, UserVotesKey(7, 3)))
    assert.Equal(t, "jam:stats:7", s.key(NamespaceStats, StatsKey(7)))
    assert.Equal(t, "jam:meta:youtube:abc", s.key(NamespaceMetadata, MetadataKey("youtube", "abc")))
}
