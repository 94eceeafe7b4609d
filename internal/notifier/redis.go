package notifier

import (
    "context"
    "log"
    "strconv"
    "strings"
    "sync"

    "github.com/redis/go-redis/v9"
)

// channelPrefix namespaces the pub/sub channels, one channel per jam.
const channelPrefix = "jam:events:"

func channelFor(jamID uint64) string {
    return channelPrefix + strconv.FormatUint(jamID, 10)
}

// Notifier is the process-facing publish/subscribe surface.  With a Redis
// client it bridges events across server processes: publishes go to the
// jam's Redis channel and a background receive loop feeds everything that
// arrives back into the local broker.  Without a client (nil, or Redis
// down at startup) it degrades to purely in-process fan-out, which is
// still correct for a single server.
type Notifier struct {
    broker *Broker
    rdb    *redis.Client

    ctx    context.Context
    cancel context.CancelFunc
    pubsub *redis.PubSub
    wg     sync.WaitGroup
}

// New builds a Notifier over the given broker.  rdb may be nil.
func New(broker *Broker, rdb *redis.Client) *Notifier {
    ctx, cancel := context.WithCancel(context.Background())
    return &Notifier{broker: broker, rdb: rdb, ctx: ctx, cancel: cancel}
}

// Start begins the cross-process receive loop.  It is a no-op in
// in-process mode.
func (n *Notifier) Start() {
    if n.rdb == nil {
        return
    }
    n.pubsub = n.rdb.PSubscribe(n.ctx, channelPrefix+"*")
    n.wg.Add(1)
    go n.receive()
}

func (n *Notifier) receive() {
    defer n.wg.Done()
    for {
        msg, err := n.pubsub.ReceiveMessage(n.ctx)
        if err != nil {
            if n.ctx.Err() != nil {
                return
            }
            log.Printf("notifier: receive failed: %v", err)
            continue
        }
        if !strings.HasPrefix(msg.Channel, channelPrefix) {
            continue
        }
        ev, err := Decode([]byte(msg.Payload))
        if err != nil {
            log.Printf("notifier: decode event failed: %v", err)
            continue
        }
        n.broker.Publish(ev)
    }
}

// Publish fans ev out to the jam's subscribers.  In bridged mode the event
// travels through Redis so every process (this one included) delivers it
// via its receive loop; if the Redis publish fails the event is delivered
// locally anyway so subscribers on this process are not left behind.
func (n *Notifier) Publish(ctx context.Context, ev Event) {
    if n.rdb == nil {
        n.broker.Publish(ev)
        return
    }
    bs, err := ev.Encode()
    if err != nil {
        log.Printf("notifier: encode event failed: %v", err)
        return
    }
    if err := n.rdb.Publish(ctx, channelFor(ev.JamID), bs).Err(); err != nil {
        log.Printf("notifier: redis publish failed, delivering locally: %v", err)
        n.broker.Publish(ev)
    }
}

// Subscribe registers a listener for one jam.  The caller must Close the
// subscriber when done.
func (n *Notifier) Subscribe(jamID uint64) *Subscriber {
    return n.broker.Subscribe(jamID)
}

// Close stops the receive loop and waits for it to drain.
func (n *Notifier) Close() {
    n.cancel()
    if n.pubsub != nil {
        _ = n.pubsub.Close()
    }
    n.wg.Wait()
}
