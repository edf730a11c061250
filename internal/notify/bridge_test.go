package notify

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func relayedBody(t *testing.T, origin, room, event string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(Envelope{
		Origin:    origin,
		Room:      room,
		Event:     event,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	})
	require.NoError(t, err)
	return body
}

func TestBridge_Deliver(t *testing.T) {
	t.Run("foreign-origin event reaches local rooms", func(t *testing.T) {
		hub := newTestHub()
		defer hub.Close()
		sub := hub.Subscribe("conn-1", RepairRoom("r-1"))

		bridge := NewBridge(nil, hub, "instance-a", newTestLogger())

		body := relayedBody(t, "instance-b", RepairRoom("r-1"), "repair_updated", map[string]string{"repair_id": "r-1"})
		require.NoError(t, bridge.deliver(body))

		events := drain(sub)
		require.Len(t, events, 1)
		assert.Equal(t, "repair_updated", events[0].Name)
		assert.Equal(t, RepairRoom("r-1"), events[0].Room)
		assert.JSONEq(t, `{"repair_id":"r-1"}`, string(events[0].Payload.(json.RawMessage)))
	})

	t.Run("own-origin event is skipped", func(t *testing.T) {
		hub := newTestHub()
		defer hub.Close()
		sub := hub.Subscribe("conn-1", RepairRoom("r-1"))

		bridge := NewBridge(nil, hub, "instance-a", newTestLogger())

		body := relayedBody(t, "instance-a", RepairRoom("r-1"), "repair_updated", nil)
		require.NoError(t, bridge.deliver(body))
		assert.Empty(t, drain(sub))
	})

	t.Run("malformed frame is an error", func(t *testing.T) {
		hub := newTestHub()
		defer hub.Close()

		bridge := NewBridge(nil, hub, "instance-a", newTestLogger())
		assert.Error(t, bridge.deliver([]byte("not json")))
	})
}

// Each instance must end up with its own queue on the fanout exchange;
// sharing one queue would split relayed events across instances.
func TestBridgeQueueName(t *testing.T) {
	a := BridgeQueueName("repair.notify", "instance-a")
	b := BridgeQueueName("repair.notify", "instance-b")

	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "repair.notify")
	assert.Contains(t, a, "instance-a")
}
