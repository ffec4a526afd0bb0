package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("feed.", 10)
	defer unsub()

	b.Publish(NewEvent(KindFeedStatusChanged, "test"))

	select {
	case evt := <-ch:
		if evt.Kind != KindFeedStatusChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, KindFeedStatusChanged)
		}
		if evt.Timestamp.IsZero() {
			t.Error("NewEvent should stamp the event")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("push.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindNotificationsChanged})
	b.Publish(Event{Kind: KindPushMessage})

	select {
	case evt := <-ch:
		if evt.Kind != KindPushMessage {
			t.Errorf("got kind %q, want %s", evt.Kind, KindPushMessage)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the notify event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("notify.", 10)
	unsub()
	unsub()

	if b.Len() != 0 {
		t.Errorf("Len() = %d after unsubscribe, want 0", b.Len())
	}
	b.Publish(Event{Kind: KindNotificationsChanged})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}

func TestUnsubscribeKeepsOtherSubscribers(t *testing.T) {
	b := New()
	first, unsubFirst := b.Subscribe("", 1)
	second, unsubSecond := b.Subscribe("", 1)
	defer unsubSecond()

	third, unsubThird := b.Subscribe("", 1)
	defer unsubThird()
	unsubFirst()

	b.Publish(Event{Kind: "x"})

	if len(first) != 0 {
		t.Error("removed subscriber received an event")
	}
	if len(second) != 1 || len(third) != 1 {
		t.Errorf("second=%d third=%d, want 1 each", len(second), len(third))
	}
}
