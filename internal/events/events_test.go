package events

import (
	"testing"
	"time"
)

func TestBus_FanOut(t *testing.T) {
	b := NewBus(4)
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish(New("s1", "setFilter"))

	for _, ch := range []chan Event{a, c} {
		select {
		case ev := <-ch:
			if ev.Action != "setFilter" || ev.Session != "s1" || ev.ID == "" {
				t.Fatalf("unexpected event %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus(1)
	ch := b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(New("", "setLoading"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if len(ch) != 1 {
		t.Fatalf("buffered=%d want 1", len(ch))
	}
}

func TestBus_UnsubscribeClosesOnce(t *testing.T) {
	b := NewBus(0)
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	b.Publish(New("", "noop"))
}
