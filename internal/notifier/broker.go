package notifier

import (
    "sync"
)

// subscriberBuffer is how many undelivered events a subscriber may lag
// behind before further events are dropped for it.
const subscriberBuffer = 16

// Subscriber is one long-lived session listener.  Events arrive on C.
// Close releases the subscription; it is safe to call more than once and
// must be called when the consumer goes away or the broker leaks channels.
type Subscriber struct {
    C chan Event

    jamID  uint64
    broker *Broker
    once   sync.Once
}

// Close detaches the subscriber from its broker and closes C.
func (s *Subscriber) Close() {
    s.once.Do(func() {
        s.broker.remove(s)
    })
}

// Broker is the in-process fan-out: per-jam subscriber sets with
// non-blocking delivery.  A publish never waits on a slow subscriber; a
// full buffer simply drops that event for that subscriber, who recovers by
// re-reading the queue.
type Broker struct {
    mu   sync.RWMutex
    subs map[uint64]map[*Subscriber]struct{}
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
    return &Broker{subs: make(map[uint64]map[*Subscriber]struct{})}
}

// Subscribe registers a new listener for one jam's events.
func (b *Broker) Subscribe(jamID uint64) *Subscriber {
    s := &Subscriber{
        C:      make(chan Event, subscriberBuffer),
        jamID:  jamID,
        broker: b,
    }
    b.mu.Lock()
    set, ok := b.subs[jamID]
    if !ok {
        set = make(map[*Subscriber]struct{})
        b.subs[jamID] = set
    }
    set[s] = struct{}{}
    b.mu.Unlock()
    return s
}

// remove detaches and closes a subscriber.  Closing under the write lock
// is what keeps concurrent publishes (which hold the read lock while
// sending) from racing a send against the close.
func (b *Broker) remove(s *Subscriber) {
    b.mu.Lock()
    defer b.mu.Unlock()
    set, ok := b.subs[s.jamID]
    if !ok {
        return
    }
    if _, ok := set[s]; !ok {
        return
    }
    delete(set, s)
    if len(set) == 0 {
        delete(b.subs, s.jamID)
    }
    close(s.C)
}

// Publish delivers ev to every current subscriber of its jam without
// blocking.  Subscribers whose buffers are full miss the event.
func (b *Broker) Publish(ev Event) {
    b.mu.RLock()
    defer b.mu.RUnlock()
    for s := range b.subs[ev.JamID] {
        select {
        case s.C <- ev:
        default: // subscriber lagging; drop rather than block the publisher
        }
    }
}

// SubscriberCount reports how many listeners a jam currently has.
func (b *Broker) SubscriberCount(jamID uint64) int {
    b.mu.RLock()
    defer b.mu.RUnlock()
    return len(b.subs[jamID])
}
