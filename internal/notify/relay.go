package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Publisher is anything that can deliver a room-scoped event.
type Publisher interface {
	Publish(room, event string, payload any)
}

// MultiPublisher fans one publish out to several publishers.
type MultiPublisher []Publisher

// Publish implements Publisher.
func (m MultiPublisher) Publish(room, event string, payload any) {
	for _, p := range m {
		p.Publish(room, event, payload)
	}
}

// Envelope is the wire format events travel in between instances.
type Envelope struct {
	Origin    string          `json:"origin"`
	Room      string          `json:"room"`
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"ts"`
	Payload   json.RawMessage `json:"payload"`
}

// AMQPPublisher is the broker edge the relay writes to.
type AMQPPublisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Relay mirrors every committed event onto a fanout exchange so peer
// instances can deliver it to their own room subscribers. Like the hub,
// it is fire-and-forget: a broker failure is logged and swallowed, the
// already-committed mutation is never rolled back or failed.
type Relay struct {
	client  AMQPPublisher
	origin  string
	logger  *slog.Logger
	timeout time.Duration
}

// NewRelay creates a relay publishing as the given origin instance.
func NewRelay(client AMQPPublisher, origin string, logger *slog.Logger) *Relay {
	return &Relay{
		client:  client,
		origin:  origin,
		logger:  logger,
		timeout: 2 * time.Second,
	}
}

// Publish implements Publisher.
func (r *Relay) Publish(room, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("failed to marshal event payload",
			slog.String("room", room),
			slog.String("event", event),
			slog.Any("error", err),
		)
		return
	}

	body, err := json.Marshal(Envelope{
		Origin:    r.origin,
		Room:      room,
		Event:     event,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	})
	if err != nil {
		r.logger.Error("failed to marshal event envelope",
			slog.String("room", room),
			slog.String("event", event),
			slog.Any("error", err),
		)
		return
	}

	// The mutation that produced this event already committed; the
	// broker write must not hold up its response.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.client.Publish(ctx, body, "application/json"); err != nil {
			r.logger.Warn("failed to relay event",
				slog.String("room", room),
				slog.String("event", event),
				slog.Any("error", err),
			)
		}
	}()
}
