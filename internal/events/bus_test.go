package events

import (
	"context"
	"testing"
	"time"
)

func drainOne(t *testing.T, c <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-c:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestSubscriberReceivesPublishedEvent(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	c, unsubscribe := bus.Subscribe(4)
	defer unsubscribe()

	bus.Publish(KindFailover, Failover{FromHost: 0, ToHost: 1, Reason: "manual"})

	ev := drainOne(t, c)
	if ev.Kind != KindFailover {
		t.Fatalf("Kind = %v, want %v", ev.Kind, KindFailover)
	}
	payload, ok := ev.Data.(Failover)
	if !ok || payload.ToHost != 1 {
		t.Fatalf("Data = %+v, want Failover{ToHost:1}", ev.Data)
	}
}

func TestMultipleSubscribersEachReceiveEvent(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	c1, unsub1 := bus.Subscribe(4)
	defer unsub1()
	c2, unsub2 := bus.Subscribe(4)
	defer unsub2()

	bus.Publish(KindClientJoined, ClientRoster{ClientID: 7})

	ev1 := drainOne(t, c1)
	ev2 := drainOne(t, c2)
	if ev1.Kind != KindClientJoined || ev2.Kind != KindClientJoined {
		t.Fatalf("expected both subscribers to see client_joined, got %v and %v", ev1.Kind, ev2.Kind)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	c, unsubscribe := bus.Subscribe(4)
	unsubscribe()

	// unsubscribe closes the channel before returning; wait briefly so no
	// dispatch is in flight, then assert the channel is closed and drained.
	time.Sleep(10 * time.Millisecond)
	select {
	case _, open := <-c:
		if open {
			t.Fatal("expected channel to be closed after unsubscribe")
		}
	default:
		t.Fatal("expected closed channel to be immediately readable")
	}
}

func TestPublishDropsWhenSubscriberBufferFull(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	c, unsubscribe := bus.Subscribe(1)
	defer unsubscribe()

	bus.Publish(KindFocusGranted, Focus{ClientID: 1})
	time.Sleep(10 * time.Millisecond)
	bus.Publish(KindFocusGranted, Focus{ClientID: 2})
	time.Sleep(10 * time.Millisecond)
	bus.Publish(KindFocusGranted, Focus{ClientID: 3})
	time.Sleep(10 * time.Millisecond)

	// Buffer of 1: only the first publish is guaranteed to land before the
	// dispatch loop tries (and fails) to deliver the rest.
	ev := drainOne(t, c)
	if ev.Data.(Focus).ClientID != 1 {
		t.Fatalf("expected first event to survive, got %+v", ev.Data)
	}
	select {
	case extra := <-c:
		t.Fatalf("expected no further buffered events, got %+v", extra)
	default:
	}
}
