package events

import (
	"context"
	"sync"
	"time"
)

// Change-event types emitted by the authorization engine. External audit
// sinks subscribe to these; the engine does not own audit storage.
const (
	TypeAssignmentCreated   = "assignment.created"
	TypeAssignmentRevoked   = "assignment.revoked"
	TypeGrantAdded          = "grant.added"
	TypeGrantRemoved        = "grant.removed"
	TypeMembershipSynced    = "membership.synced"
	TypeMembershipDeactived = "membership.deactivated"
)

// Event describes one mutation of the role/grant state.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	Layer      string    `json:"layer,omitempty"`
	Role       string    `json:"role,omitempty"`
	Permission string    `json:"permission,omitempty"`
	ResourceID string    `json:"resource_id,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stream fan-outs change events to all active subscribers (SSE clients,
// audit forwarders).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

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

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt Event) {
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
