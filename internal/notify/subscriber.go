package notify

import (
	"sync"
	"sync/atomic"
)

// Subscriber receives events from the rooms it has joined. Its channel
// is buffered; when the buffer is full the hub drops the event rather
// than block the publisher.
type Subscriber struct {
	id string
	ch chan *Event

	mu    sync.RWMutex
	rooms map[string]struct{}

	closed atomic.Bool
}

func newSubscriber(id string, bufferSize int) *Subscriber {
	return &Subscriber{
		id:    id,
		ch:    make(chan *Event, bufferSize),
		rooms: make(map[string]struct{}),
	}
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C returns the read-only event channel. It is closed when the
// subscriber is removed from the hub.
func (s *Subscriber) C() <-chan *Event { return s.ch }

// Rooms returns a copy of the joined room names.
func (s *Subscriber) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		out = append(out, room)
	}
	return out
}

func (s *Subscriber) addRoom(room string) {
	s.mu.Lock()
	s.rooms[room] = struct{}{}
	s.mu.Unlock()
}

func (s *Subscriber) removeRoom(room string) {
	s.mu.Lock()
	delete(s.rooms, room)
	s.mu.Unlock()
}

// send attempts a non-blocking delivery. Returns false when the event
// was dropped (closed subscriber or full buffer). The read lock pairs
// with Close so the channel cannot close between the state check and
// the send.
func (s *Subscriber) send(evt *Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return false
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

// Close closes the subscriber channel. Safe to call multiple times and
// safe against concurrent sends.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}
