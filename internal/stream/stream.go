// Package stream fan-outs activity events to live dashboard
// subscribers (SSE clients).
package stream

import (
	"context"
	"sync"
	"time"
)

// Kind labels what happened.
type Kind string

const (
	KindUserSignedUp  Kind = "user.signed_up"
	KindUserUpdated   Kind = "user.updated"
	KindUserDeleted   Kind = "user.deleted"
	KindRFPCreated    Kind = "rfp.created"
	KindRFPUpdated    Kind = "rfp.updated"
	KindRFPDeleted    Kind = "rfp.deleted"
	KindLoginSucceeded Kind = "login.succeeded"
)

// ActivityEvent is one entry on the dashboard activity feed. Actor is
// the email of the user who performed the action; Subject identifies
// the affected record.
type ActivityEvent struct {
	Kind      Kind      `json:"kind"`
	Actor     string    `json:"actor,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan ActivityEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan ActivityEvent)}
}

// Subscribe registers a subscriber and returns a channel which will
// receive events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan ActivityEvent {
	ch := make(chan ActivityEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers. A zero Timestamp is
// filled in with the current time.
func (s *Stream) Publish(evt ActivityEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
