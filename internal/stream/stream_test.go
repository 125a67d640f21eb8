package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishFansOutToSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)
	if got := s.SubscriberCount(); got != 2 {
		t.Fatalf("SubscriberCount = %d, want 2", got)
	}

	s.Publish(ActivityEvent{Kind: KindRFPCreated, Actor: "admin@gmail.com", Subject: "rfp-1"})

	for name, ch := range map[string]<-chan ActivityEvent{"a": a, "b": b} {
		select {
		case evt := <-ch:
			if evt.Kind != KindRFPCreated || evt.Subject != "rfp-1" {
				t.Fatalf("%s: unexpected event %+v", name, evt)
			}
			if evt.Timestamp.IsZero() {
				t.Fatalf("%s: timestamp not filled in", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: no event received", name)
		}
	}
}

func TestSubscriberRemovedOnContextCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)

	cancel()
	deadline := time.After(time.Second)
	for {
		if _, open := <-ch; !open {
			break
		}
		select {
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		default:
		}
	}
	if got := s.SubscriberCount(); got != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", got)
	}
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = s.Subscribe(ctx) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(ActivityEvent{Kind: KindUserUpdated})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
