// Package cache implements the derived-data cache that fronts the primary
// database.  Values are JSON blobs stored in Redis under namespaced keys,
// each namespace with its own TTL.  The cache is strictly an optimization:
// every method degrades to a no-op or a miss when Redis is not configured
// or unreachable, and callers must always be able to recompute from the
// authoritative store.  Consistency comes from explicit invalidation by the
// session coordinator; the short TTLs are only a safety net behind it.
package cache

import (
    "context"
    "encoding/json"
    "errors"
    "log"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/jam-queue/internal/config"
)

// Namespace identifies one class of cached value.  Namespaces exist so an
// invalidation can name exactly the derived data a mutation made stale.
type Namespace string

const (
    NamespaceQueue    Namespace = "queue" // per-jam queue snapshot
    NamespaceTally    Namespace = "tally" // per-track net score
    NamespaceVotes    Namespace = "votes" // per-user vote set within a jam
    NamespaceStats    Namespace = "stats" // per-jam aggregate counters
    NamespaceMetadata Namespace = "meta"  // external provider lookups
)

// ErrMiss is returned by Get when no usable value exists.  Redis being
// down, the entry being absent or the payload failing to decode all look
// the same to the caller: recompute from the store and Put the result.
var ErrMiss = errors.New("cache miss")

// Store is the Redis-backed cache.  A Store constructed with a nil client
// is valid and behaves as permanently empty, which is how the service runs
// when Redis is unavailable at startup.
type Store struct {
    cfg config.CacheConfig
    rdb *redis.Client
}

// New returns a Store over the given client.  rdb may be nil.
func New(cfg config.CacheConfig, rdb *redis.Client) *Store {
    return &Store{cfg: cfg, rdb: rdb}
}

func (s *Store) active() bool {
    return s != nil && s.cfg.Enabled && s.rdb != nil
}

// TTL returns the configured lifetime for a namespace.
func (s *Store) TTL(ns Namespace) time.Duration {
    switch ns {
    case NamespaceQueue:
        return s.cfg.QueueTTL
    case NamespaceTally:
        return s.cfg.TallyTTL
    case NamespaceVotes:
        return s.cfg.VotesTTL
    case NamespaceStats:
        return s.cfg.StatsTTL
    case NamespaceMetadata:
        return s.cfg.MetadataTTL
    }
    return time.Second
}

func (s *Store) key(ns Namespace, key string) string {
    return s.cfg.Prefix + ":" + string(ns) + ":" + key
}

// Get loads the value stored under (ns, key) into dest.  Any failure is
// reported as ErrMiss so callers follow the single recompute-and-Put path.
func (s *Store) Get(ctx context.Context, ns Namespace, key string, dest any) error {
    if !s.active() {
        return ErrMiss
    }
    bs, err := s.rdb.Get(ctx, s.key(ns, key)).Bytes()
    if err != nil {
        if !errors.Is(err, redis.Nil) {
            log.Printf("cache: get %s/%s failed: %v", ns, key, err)
        }
        return ErrMiss
    }
    if err := json.Unmarshal(bs, dest); err != nil {
        log.Printf("cache: decode %s/%s failed: %v", ns, key, err)
        return ErrMiss
    }
    return nil
}

// Put stores val under (ns, key) with the namespace TTL.  Failures are
// logged and swallowed; a value that never lands just means the next read
// recomputes.
func (s *Store) Put(ctx context.Context, ns Namespace, key string, val any) {
    if !s.active() {
        return
    }
    bs, err := json.Marshal(val)
    if err != nil {
        log.Printf("cache: encode %s/%s failed: %v", ns, key, err)
        return
    }
    if err := s.rdb.SetEx(ctx, s.key(ns, key), bs, s.TTL(ns)).Err(); err != nil {
        log.Printf("cache: put %s/%s failed: %v", ns, key, err)
    }
}

// Invalidate removes the named entries.  Failures are logged and
// swallowed; the namespace TTL bounds how long a missed invalidation can
// serve stale data.
func (s *Store) Invalidate(ctx context.Context, ns Namespace, keys ...string) {
    if !s.active() || len(keys) == 0 {
        return
    }
    full := make([]string, 0, len(keys))
    for _, k := range keys {
        full = append(full, s.key(ns, k))
    }
    if err := s.rdb.Del(ctx, full...).Err(); err != nil {
        log.Printf("cache: invalidate %s failed: %v", ns, err)
    }
}
