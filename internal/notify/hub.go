// Package notify fans committed repair events out to connected clients
// through ephemeral rooms. Membership lives only for a connection's
// lifetime; there is no persistence or replay, and delivery is strictly
// best-effort — a publish never blocks the mutation path.
package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Room kinds. A user-room carries events meant for one party; a
// repair-room carries events for anyone observing that repair. The
// technicians room receives new incoming repairs.
const RoomTechnicians = "technicians"

// UserRoom returns the room name for a single user's events.
func UserRoom(userID string) string { return "user:" + userID }

// RepairRoom returns the room name for a repair's observers.
func RepairRoom(repairID string) string { return "repair:" + repairID }

// Event is the envelope delivered to subscribers.
type Event struct {
	Room      string    `json:"room"`
	Name      string    `json:"event"`
	Timestamp time.Time `json:"ts"`
	Payload   any       `json:"payload"`
}

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 64

// Hub is the in-process room registry. Safe for concurrent use.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Subscriber // room → subscriberID → subscriber

	logger     *slog.Logger
	bufferSize int

	published atomic.Int64
	dropped   atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) HubOption {
	return func(h *Hub) { h.bufferSize = size }
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		rooms:      make(map[string]map[string]*Subscriber),
		logger:     logger,
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe creates a subscriber and joins it to the given rooms.
func (h *Hub) Subscribe(subscriberID string, rooms ...string) *Subscriber {
	sub := newSubscriber(subscriberID, h.bufferSize)
	for _, room := range rooms {
		h.Join(room, sub)
	}
	return sub
}

// Join adds a subscriber to a room, creating the room if needed.
func (h *Hub) Join(room string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[string]*Subscriber)
		h.rooms[room] = subs
	}
	subs[sub.ID()] = sub
	sub.addRoom(room)
}

// Leave removes a subscriber from a room. Empty rooms are cleaned up.
func (h *Hub) Leave(room, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[room]
	if !ok {
		return
	}
	if sub, exists := subs[subscriberID]; exists {
		sub.removeRoom(room)
		delete(subs, subscriberID)
	}
	if len(subs) == 0 {
		delete(h.rooms, room)
	}
}

// Remove detaches a subscriber from every room and closes it.
func (h *Hub) Remove(subscriberID string) {
	h.mu.Lock()
	var closing *Subscriber
	for room, subs := range h.rooms {
		if sub, ok := subs[subscriberID]; ok {
			sub.removeRoom(room)
			delete(subs, subscriberID)
			closing = sub
		}
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	if closing != nil {
		closing.Close()
	}
}

// Publish delivers an event to every subscriber in the room. It never
// blocks: a subscriber with a full buffer misses the event.
func (h *Hub) Publish(room, name string, payload any) {
	evt := &Event{
		Room:      room,
		Name:      name,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	h.mu.RLock()
	subs := h.rooms[room]
	// Copy so the send loop runs without the lock held.
	targets := make([]*Subscriber, 0, len(subs))
	for _, s := range subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if s.send(evt) {
			h.published.Add(1)
		} else {
			h.dropped.Add(1)
			h.logger.Debug("event dropped",
				slog.String("room", room),
				slog.String("event", name),
				slog.String("subscriber", s.ID()),
			)
		}
	}
}

// RoomCount returns the number of active rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// SubscriberCount returns the number of subscribers in a room.
func (h *Hub) SubscriberCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Stats returns hub counters.
func (h *Hub) Stats() (published, dropped int64) {
	return h.published.Load(), h.dropped.Load()
}

// Close detaches and closes every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	seen := make(map[string]*Subscriber)
	for _, subs := range h.rooms {
		for id, sub := range subs {
			seen[id] = sub
		}
	}
	h.rooms = make(map[string]map[string]*Subscriber)
	h.mu.Unlock()

	for _, sub := range seen {
		sub.Close()
	}
	h.logger.Info("notification hub closed")
}
