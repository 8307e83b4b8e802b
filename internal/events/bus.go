// Package events is the in-process event bus §6.3 names as "exposed to
// external collaborators": failover events, focus events, identity
// changes, and journal snapshots. Components publish typed events; any
// number of subscribers (an admin bridge, a tray icon, a log sink) drain
// them independently.
package events

import (
	"context"
	"sync"
	"time"
)

// Kind identifies the event payload's shape.
type Kind string

const (
	KindFailover         Kind = "failover"
	KindFocusGranted     Kind = "focus_granted"
	KindFocusDenied      Kind = "focus_denied"
	KindFocusReleased    Kind = "focus_released"
	KindIdentityChanged  Kind = "identity_changed"
	KindJournalSnapshot  Kind = "journal_snapshot"
	KindClientJoined     Kind = "client_joined"
	KindClientRetired    Kind = "client_retired"
)

// Event is the envelope every published value is wrapped in.
type Event struct {
	Kind Kind       `json:"kind"`
	At   time.Time  `json:"at"`
	Data any        `json:"data"`
}

// Failover is KindFailover's payload.
type Failover struct {
	FromHost int    `json:"from_host"`
	ToHost   int    `json:"to_host"`
	Reason   string `json:"reason"`
}

// Focus is the payload for the three KindFocus* kinds.
type Focus struct {
	ClientID uint64 `json:"client_id"`
}

// IdentityChanged is KindIdentityChanged's payload.
type IdentityChanged struct {
	ClientID uint64 `json:"client_id"`
	Name     string `json:"name"`
}

// JournalSnapshot is KindJournalSnapshot's payload.
type JournalSnapshot struct {
	Epoch uint32 `json:"epoch"`
	Seq   uint32 `json:"seq"`
}

// ClientRoster is the payload for KindClientJoined/KindClientRetired, per
// SPEC_FULL.md's supplemented ClientRegistration lifecycle events.
type ClientRoster struct {
	ClientID uint64 `json:"client_id"`
}

// Bus fans published events out to every subscriber. Safe for concurrent
// use: Publish queues onto a channel drained by the Run loop, while
// Subscribe and unsubscribe update the subscriber set under a mutex.
type Bus struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}

	publish chan Event
}

// NewBus allocates a Bus. Call Run in a goroutine to start the dispatch
// loop.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[chan Event]struct{}),
		publish:     make(chan Event, 256),
	}
}

// Run dispatches published events to subscribers until ctx is cancelled,
// at which point every subscriber channel is closed.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for c := range b.subscribers {
				close(c)
			}
			b.subscribers = make(map[chan Event]struct{})
			b.mu.Unlock()
			return

		case ev := <-b.publish:
			b.mu.Lock()
			for c := range b.subscribers {
				select {
				case c <- ev:
				default:
					// Slow subscriber: drop rather than block the bus.
				}
			}
			b.mu.Unlock()
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is buffered; a subscriber that falls
// behind loses events rather than stalling publishers.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 32
	}
	c := make(chan Event, buffer)
	b.mu.Lock()
	b.subscribers[c] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[c]; ok {
			delete(b.subscribers, c)
			close(c)
		}
		b.mu.Unlock()
	}
	return c, unsubscribe
}

// Publish queues an event for delivery. Non-blocking: if the internal
// queue is full the event is dropped, a fire-and-forget contract.
func (b *Bus) Publish(kind Kind, data any) {
	ev := Event{Kind: kind, At: time.Now(), Data: data}
	select {
	case b.publish <- ev:
	default:
	}
}
