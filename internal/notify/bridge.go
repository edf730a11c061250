package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/fixmate/repair-be/shared/rabbitmq"
)

// BridgeQueueName derives the per-instance queue the bridge consumes
// from. Every instance must bind its own queue to the fanout exchange:
// a single shared queue would round-robin relayed events across
// instances, so each event would reach only one of them.
func BridgeQueueName(base, origin string) string {
	return base + "." + origin
}

// Bridge consumes relayed events from the fanout exchange and
// republishes them into the local hub, so a client connected to this
// instance still sees events committed on a peer. Events originated by
// this instance are skipped; the hub already delivered them.
type Bridge struct {
	client *rabbitmq.Client
	hub    *Hub
	origin string
	logger *slog.Logger
}

// NewBridge creates a bridge for the given origin instance.
func NewBridge(client *rabbitmq.Client, hub *Hub, origin string, logger *slog.Logger) *Bridge {
	return &Bridge{
		client: client,
		hub:    hub,
		origin: origin,
		logger: logger,
	}
}

// Run consumes until the context is canceled or the delivery channel
// closes. It is meant to run in its own goroutine.
func (b *Bridge) Run(ctx context.Context) error {
	deliveries, err := b.client.Consume("notify-bridge-" + b.origin)
	if err != nil {
		return err
	}

	b.logger.Info("notify bridge started",
		slog.String("origin", b.origin),
	)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("notify bridge stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				b.logger.Warn("notify bridge delivery channel closed")
				return nil
			}

			if err := b.deliver(delivery.Body); err != nil {
				b.logger.Error("failed to parse relayed event",
					slog.Any("error", err),
				)
				// Malformed, don't requeue.
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					b.logger.Error("failed to NACK malformed event",
						slog.Any("error", nackErr),
					)
				}
				continue
			}

			if ackErr := delivery.Ack(false); ackErr != nil {
				b.logger.Error("failed to ACK relayed event",
					slog.Any("error", ackErr),
				)
			}
		}
	}
}

// deliver parses one relayed frame and republishes it into the local
// hub unless this instance originated it (the hub already delivered
// those directly).
func (b *Bridge) deliver(body []byte) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Origin == b.origin {
		return nil
	}
	b.hub.Publish(env.Room, env.Event, env.Payload)
	return nil
}
